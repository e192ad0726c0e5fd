package handlers

import (
	"fmt"
	"net/http"
	"time"

	"cloud.google.com/go/civil"
	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"github.com/benvon/taskboard/internal/board"
	"github.com/benvon/taskboard/internal/models"
)

// BoardHandler serves the board views and the UI state around them
type BoardHandler struct {
	sessionResolver
}

// NewBoardHandler creates a new board handler
func NewBoardHandler(sessions SessionSource, logger *zap.Logger) *BoardHandler {
	return &BoardHandler{sessionResolver: newSessionResolver(sessions, logger)}
}

// RegisterRoutes registers board routes on the given router.
// The router should already have the /api/v1 prefix.
func (h *BoardHandler) RegisterRoutes(r *mux.Router) {
	r.HandleFunc("/board", h.GetBoard).Methods("GET")
	r.HandleFunc("/calendar", h.GetCalendar).Methods("GET")
	r.HandleFunc("/board/filters", h.SetFilters).Methods("PUT")
	r.HandleFunc("/board/view", h.SetView).Methods("PUT")
	r.HandleFunc("/board/reload", h.Reload).Methods("POST")
	r.HandleFunc("/board/modals", h.SetModals).Methods("PUT")

	r.HandleFunc("/board/selection", h.GetSelection).Methods("GET")
	r.HandleFunc("/board/selection/toggle", h.ToggleSelected).Methods("POST")
	r.HandleFunc("/board/selection/all", h.SelectAll).Methods("POST")
	r.HandleFunc("/board/selection", h.ClearSelection).Methods("DELETE")

	r.HandleFunc("/board/drag/start", h.DragStart).Methods("POST")
	r.HandleFunc("/board/drag/hover", h.DragHover).Methods("POST")
	r.HandleFunc("/board/drag/drop", h.DragDrop).Methods("POST")
	r.HandleFunc("/board/drag/date", h.DragDate).Methods("POST")
	r.HandleFunc("/board/drag/cancel", h.DragCancel).Methods("POST")
}

// GetBoard returns the columns view
func (h *BoardHandler) GetBoard(w http.ResponseWriter, r *http.Request) {
	sess, ok := h.session(w, r)
	if !ok {
		return
	}
	respondJSON(w, http.StatusOK, sess.Board())
}

// GetCalendar returns the month grid for ?month=YYYY-MM, defaulting to
// the current month
func (h *BoardHandler) GetCalendar(w http.ResponseWriter, r *http.Request) {
	sess, ok := h.session(w, r)
	if !ok {
		return
	}
	today := sess.Clock().Today()
	year, month := today.Year, today.Month
	if raw := r.URL.Query().Get("month"); raw != "" {
		t, err := time.Parse("2006-01", raw)
		if err != nil {
			h.fail(w, sess, fmt.Errorf("%w: month must be YYYY-MM", board.ErrValidation))
			return
		}
		year, month = t.Year(), t.Month()
	}
	view, err := sess.Calendar(year, month)
	if err != nil {
		h.fail(w, sess, err)
		return
	}
	respondJSON(w, http.StatusOK, view)
}

// SetFilters replaces the filter criteria and returns the filtered board
func (h *BoardHandler) SetFilters(w http.ResponseWriter, r *http.Request) {
	sess, ok := h.session(w, r)
	if !ok {
		return
	}
	var c board.Criteria
	if err := decodeJSON(r, &c); err != nil {
		h.fail(w, sess, err)
		return
	}
	if err := sess.SetFilters(c); err != nil {
		h.fail(w, sess, err)
		return
	}
	respondJSON(w, http.StatusOK, sess.Board())
}

type viewRequest struct {
	View models.ViewMode `json:"view"`
}

// SetView switches between the columns and calendar views
func (h *BoardHandler) SetView(w http.ResponseWriter, r *http.Request) {
	sess, ok := h.session(w, r)
	if !ok {
		return
	}
	var req viewRequest
	if err := decodeJSON(r, &req); err != nil {
		h.fail(w, sess, err)
		return
	}
	if err := sess.SetView(r.Context(), req.View); err != nil {
		h.fail(w, sess, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]models.ViewMode{"view": sess.Store().View()})
}

// Reload refetches the current profile's data
func (h *BoardHandler) Reload(w http.ResponseWriter, r *http.Request) {
	sess, ok := h.session(w, r)
	if !ok {
		return
	}
	if err := sess.Reload(r.Context()); err != nil {
		h.fail(w, sess, err)
		return
	}
	respondJSON(w, http.StatusOK, sess.Board())
}

// SetModals opens or closes the task panel, the comments dialog and the
// new-task dialog
func (h *BoardHandler) SetModals(w http.ResponseWriter, r *http.Request) {
	sess, ok := h.session(w, r)
	if !ok {
		return
	}
	var m board.ModalState
	if err := decodeJSON(r, &m); err != nil {
		h.fail(w, sess, err)
		return
	}
	if m.NewTask.Column != "" && !m.NewTask.Column.Valid() {
		h.fail(w, sess, fmt.Errorf("%w: unknown column %q", board.ErrValidation, m.NewTask.Column))
		return
	}
	store := sess.Store()
	for _, id := range []*uuid.UUID{m.TaskPanel, m.CommentsModal} {
		if id == nil {
			continue
		}
		if _, found := store.Task(*id); !found {
			h.fail(w, sess, fmt.Errorf("task %s: %w", id, board.ErrTaskNotFound))
			return
		}
	}
	store.OpenTaskPanel(m.TaskPanel)
	store.OpenComments(m.CommentsModal)
	store.SetNewTaskModal(m.NewTask)
	respondJSON(w, http.StatusOK, store.Modals())
}

type selectionRequest struct {
	TaskID uuid.UUID `json:"task_id"`
}

// GetSelection returns the selected task ids
func (h *BoardHandler) GetSelection(w http.ResponseWriter, r *http.Request) {
	sess, ok := h.session(w, r)
	if !ok {
		return
	}
	respondJSON(w, http.StatusOK, sess.Store().Selected())
}

// ToggleSelected adds a task to the selection or removes it
func (h *BoardHandler) ToggleSelected(w http.ResponseWriter, r *http.Request) {
	sess, ok := h.session(w, r)
	if !ok {
		return
	}
	var req selectionRequest
	if err := decodeJSON(r, &req); err != nil {
		h.fail(w, sess, err)
		return
	}
	selected, err := sess.ToggleSelected(req.TaskID)
	if err != nil {
		h.fail(w, sess, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{
		"task_id":  req.TaskID,
		"selected": selected,
		"ids":      sess.Store().Selected(),
	})
}

// SelectAll selects every visible task
func (h *BoardHandler) SelectAll(w http.ResponseWriter, r *http.Request) {
	sess, ok := h.session(w, r)
	if !ok {
		return
	}
	respondJSON(w, http.StatusOK, sess.SelectVisible())
}

// ClearSelection empties the selection
func (h *BoardHandler) ClearSelection(w http.ResponseWriter, r *http.Request) {
	sess, ok := h.session(w, r)
	if !ok {
		return
	}
	sess.Store().ClearSelection()
	respondJSON(w, http.StatusOK, []uuid.UUID{})
}

// dragState is the drag engine state returned by every drag call
type dragState struct {
	TaskID   *uuid.UUID         `json:"task_id,omitempty"`
	Active   *models.TaskStatus `json:"active_column,omitempty"`
	Awaiting *models.TaskStatus `json:"awaiting_date,omitempty"`
}

func currentDrag(sess *board.Session) dragState {
	id, active, awaiting := sess.Drag().State()
	return dragState{TaskID: id, Active: active, Awaiting: awaiting}
}

type dragRequest struct {
	TaskID uuid.UUID `json:"task_id,omitempty"`
	OverID string    `json:"over_id,omitempty"`
}

// DragStart begins dragging a task
func (h *BoardHandler) DragStart(w http.ResponseWriter, r *http.Request) {
	sess, ok := h.session(w, r)
	if !ok {
		return
	}
	var req dragRequest
	if err := decodeJSON(r, &req); err != nil {
		h.fail(w, sess, err)
		return
	}
	if _, err := sess.Drag().Start(req.TaskID); err != nil {
		h.fail(w, sess, err)
		return
	}
	respondJSON(w, http.StatusOK, currentDrag(sess))
}

// DragHover moves the highlight to the column or task under the pointer
func (h *BoardHandler) DragHover(w http.ResponseWriter, r *http.Request) {
	sess, ok := h.session(w, r)
	if !ok {
		return
	}
	var req dragRequest
	if err := decodeJSON(r, &req); err != nil {
		h.fail(w, sess, err)
		return
	}
	if _, err := sess.Drag().Hover(req.OverID); err != nil {
		h.fail(w, sess, err)
		return
	}
	respondJSON(w, http.StatusOK, currentDrag(sess))
}

type dropResponse struct {
	Result board.DropResult `json:"result"`
	Task   *models.Task     `json:"task,omitempty"`
	Drag   dragState        `json:"drag"`
}

// DragDrop ends the gesture. A committed drop is applied at once and saved
// in the background.
func (h *BoardHandler) DragDrop(w http.ResponseWriter, r *http.Request) {
	sess, ok := h.session(w, r)
	if !ok {
		return
	}
	var req dragRequest
	if err := decodeJSON(r, &req); err != nil {
		h.fail(w, sess, err)
		return
	}
	res, p, err := sess.Drop(r.Context(), req.OverID)
	if err != nil {
		h.fail(w, sess, err)
		return
	}
	respondPending(w, r, p, func() any {
		out := dropResponse{Result: res, Drag: currentDrag(sess)}
		if res.Move != nil {
			if t, found := sess.Store().Task(res.Move.TaskID); found {
				out.Task = &t
			}
		}
		return out
	})
}

type dateRequest struct {
	Date civil.Date `json:"date"`
}

// DragDate completes a drop onto the scheduled or overdue column
func (h *BoardHandler) DragDate(w http.ResponseWriter, r *http.Request) {
	sess, ok := h.session(w, r)
	if !ok {
		return
	}
	var req dateRequest
	if err := decodeJSON(r, &req); err != nil {
		h.fail(w, sess, err)
		return
	}
	if !req.Date.IsValid() {
		h.fail(w, sess, fmt.Errorf("%w: date is required", board.ErrValidation))
		return
	}
	move, p, err := sess.ConfirmDrop(r.Context(), req.Date)
	if err != nil {
		h.fail(w, sess, err)
		return
	}
	respondPending(w, r, p, func() any {
		out := dropResponse{
			Result: board.DropResult{Kind: board.DropCommitted, Move: &move},
			Drag:   currentDrag(sess),
		}
		if t, found := sess.Store().Task(move.TaskID); found {
			out.Task = &t
		}
		return out
	})
}

// DragCancel abandons the gesture, including a drop waiting for a date
func (h *BoardHandler) DragCancel(w http.ResponseWriter, r *http.Request) {
	sess, ok := h.session(w, r)
	if !ok {
		return
	}
	sess.Drag().CancelDate()
	respondJSON(w, http.StatusOK, currentDrag(sess))
}
