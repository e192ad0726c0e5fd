package handlers

import (
	"encoding/json"
	"fmt"
	"net/http"
	"slices"

	"cloud.google.com/go/civil"
	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"github.com/benvon/taskboard/internal/board"
	"github.com/benvon/taskboard/internal/models"
)

// TaskHandler handles tasks and the rows hanging off them
type TaskHandler struct {
	sessionResolver
}

// NewTaskHandler creates a new task handler
func NewTaskHandler(sessions SessionSource, logger *zap.Logger) *TaskHandler {
	return &TaskHandler{sessionResolver: newSessionResolver(sessions, logger)}
}

// RegisterRoutes registers task routes on the given router.
// The router should already have the /api/v1 prefix.
func (h *TaskHandler) RegisterRoutes(r *mux.Router) {
	r.HandleFunc("/tasks", h.CreateTask).Methods("POST")
	r.HandleFunc("/tasks/{id}", h.GetTask).Methods("GET")
	r.HandleFunc("/tasks/{id}", h.UpdateTask).Methods("PATCH")
	r.HandleFunc("/tasks/{id}", h.DeleteTask).Methods("DELETE")
	r.HandleFunc("/tasks/{id}/complete", h.ToggleComplete).Methods("POST")

	r.HandleFunc("/tasks/{id}/subtasks", h.AddSubtask).Methods("POST")
	r.HandleFunc("/tasks/{id}/subtasks/{subtaskID}", h.RenameSubtask).Methods("PATCH")
	r.HandleFunc("/tasks/{id}/subtasks/{subtaskID}", h.DeleteSubtask).Methods("DELETE")
	r.HandleFunc("/tasks/{id}/subtasks/{subtaskID}/complete", h.ToggleSubtask).Methods("POST")

	r.HandleFunc("/tasks/{id}/comments", h.ListComments).Methods("GET")
	r.HandleFunc("/tasks/{id}/comments", h.AddComment).Methods("POST")
	r.HandleFunc("/tasks/{id}/comments/{commentID}", h.EditComment).Methods("PATCH")
	r.HandleFunc("/tasks/{id}/comments/{commentID}", h.DeleteComment).Methods("DELETE")
	r.HandleFunc("/tasks/{id}/comments/{commentID}/attachments", h.AddCommentAttachment).Methods("POST")

	r.HandleFunc("/tasks/{id}/attachments", h.ListAttachments).Methods("GET")
	r.HandleFunc("/tasks/{id}/attachments", h.AddAttachment).Methods("POST")
	r.HandleFunc("/tasks/{id}/attachments/{attachmentID}", h.DeleteAttachment).Methods("DELETE")
	r.HandleFunc("/attachments/{attachmentID}/url", h.AttachmentURL).Methods("GET")
	r.HandleFunc("/attachments/{attachmentID}/download", h.DownloadAttachment).Methods("GET")
}

// createTaskRequest is the body of POST /tasks. With a multipart body it is
// sent as the "task" field next to the "files" parts.
type createTaskRequest struct {
	Title             string                    `json:"title"`
	Description       *string                   `json:"description,omitempty"`
	CategoryID        *uuid.UUID                `json:"category_id,omitempty"`
	Priority          models.Priority           `json:"priority,omitempty"`
	DueDate           *civil.Date               `json:"due_date,omitempty"`
	DueTime           *civil.Time               `json:"due_time,omitempty"`
	IsRecurring       bool                      `json:"is_recurring"`
	RecurrencePattern *models.RecurrencePattern `json:"recurrence_pattern,omitempty"`
	Column            models.TaskStatus         `json:"column,omitempty"`
	Subtasks          []string                  `json:"subtasks,omitempty"`
}

func (req createTaskRequest) toNewTask(files []board.Upload) board.NewTask {
	return board.NewTask{
		Title:             req.Title,
		Description:       req.Description,
		CategoryID:        req.CategoryID,
		Priority:          req.Priority,
		DueDate:           req.DueDate,
		DueTime:           req.DueTime,
		IsRecurring:       req.IsRecurring,
		RecurrencePattern: req.RecurrencePattern,
		Column:            req.Column,
		Subtasks:          req.Subtasks,
		Files:             files,
	}
}

// CreateTask creates a task with its optional subtasks and files
func (h *TaskHandler) CreateTask(w http.ResponseWriter, r *http.Request) {
	sess, ok := h.session(w, r)
	if !ok {
		return
	}

	var req createTaskRequest
	var files []board.Upload
	if isMultipart(r) {
		set, uploads, err := parseUploads(r, "files")
		if err != nil {
			h.fail(w, sess, err)
			return
		}
		defer set.Close()
		if err := json.Unmarshal([]byte(r.FormValue("task")), &req); err != nil {
			h.fail(w, sess, fmt.Errorf("%w: invalid task field: %v", board.ErrValidation, err))
			return
		}
		files = uploads
	} else if err := decodeJSON(r, &req); err != nil {
		h.fail(w, sess, err)
		return
	}

	task, err := sess.CreateTask(r.Context(), req.toNewTask(files))
	if err != nil {
		h.fail(w, sess, err)
		return
	}
	sess.Store().SetNewTaskModal(board.NewTaskModal{})
	respondJSON(w, http.StatusCreated, task)
}

// GetTask returns a task and opens it in the detail panel
func (h *TaskHandler) GetTask(w http.ResponseWriter, r *http.Request) {
	sess, ok := h.session(w, r)
	if !ok {
		return
	}
	id, err := pathID(r, "id")
	if err != nil {
		h.fail(w, sess, err)
		return
	}
	task, found := sess.Store().Task(id)
	if !found {
		h.fail(w, sess, fmt.Errorf("task %s: %w", id, board.ErrTaskNotFound))
		return
	}
	sess.Store().OpenTaskPanel(&id)
	respondJSON(w, http.StatusOK, task)
}

var patchableTaskFields = map[string]models.TaskField{
	"title":              models.TaskFieldTitle,
	"description":        models.TaskFieldDescription,
	"category_id":        models.TaskFieldCategoryID,
	"priority":           models.TaskFieldPriority,
	"status":             models.TaskFieldStatus,
	"due_date":           models.TaskFieldDueDate,
	"due_time":           models.TaskFieldDueTime,
	"order":              models.TaskFieldOrder,
	"is_recurring":       models.TaskFieldIsRecurring,
	"recurrence_pattern": models.TaskFieldRecurrencePattern,
}

// parseTaskPatch reads a partial task. The keys present in the body are the
// fields to change; null clears an optional field.
func parseTaskPatch(r *http.Request) (board.TaskPatch, error) {
	var raw map[string]json.RawMessage
	if err := json.NewDecoder(r.Body).Decode(&raw); err != nil {
		return board.TaskPatch{}, fmt.Errorf("%w: invalid request body: %v", board.ErrValidation, err)
	}

	var p board.TaskPatch
	v := &p.Values
	for key, val := range raw {
		field, ok := patchableTaskFields[key]
		if !ok {
			return board.TaskPatch{}, fmt.Errorf("%w: field %q cannot be changed", board.ErrValidation, key)
		}
		var dst any
		switch field {
		case models.TaskFieldTitle:
			dst = &v.Title
		case models.TaskFieldDescription:
			dst = &v.Description
		case models.TaskFieldCategoryID:
			dst = &v.CategoryID
		case models.TaskFieldPriority:
			dst = &v.Priority
		case models.TaskFieldStatus:
			dst = &v.Status
		case models.TaskFieldDueDate:
			dst = &v.DueDate
		case models.TaskFieldDueTime:
			dst = &v.DueTime
		case models.TaskFieldOrder:
			dst = &v.Order
		case models.TaskFieldIsRecurring:
			dst = &v.IsRecurring
		case models.TaskFieldRecurrencePattern:
			dst = &v.RecurrencePattern
		}
		if err := json.Unmarshal(val, dst); err != nil {
			return board.TaskPatch{}, fmt.Errorf("%w: invalid %s: %v", board.ErrValidation, key, err)
		}
		p.Fields = append(p.Fields, field)
	}
	slices.Sort(p.Fields)
	return p, nil
}

// UpdateTask applies a field edit at once; it is saved after the edit
// debounce interval, so the response is 202.
func (h *TaskHandler) UpdateTask(w http.ResponseWriter, r *http.Request) {
	sess, ok := h.session(w, r)
	if !ok {
		return
	}
	id, err := pathID(r, "id")
	if err != nil {
		h.fail(w, sess, err)
		return
	}
	patch, err := parseTaskPatch(r)
	if err != nil {
		h.fail(w, sess, err)
		return
	}
	task, err := sess.EditTask(r.Context(), id, patch)
	if err != nil {
		h.fail(w, sess, err)
		return
	}
	respondJSON(w, http.StatusAccepted, task)
}

// DeleteTask removes a task; the notification it raises can undo it
func (h *TaskHandler) DeleteTask(w http.ResponseWriter, r *http.Request) {
	sess, ok := h.session(w, r)
	if !ok {
		return
	}
	id, err := pathID(r, "id")
	if err != nil {
		h.fail(w, sess, err)
		return
	}
	p, err := sess.DeleteTask(r.Context(), id)
	if err != nil {
		h.fail(w, sess, err)
		return
	}
	respondPending(w, r, p, func() any { return map[string]any{"id": id} })
}

// ToggleComplete flips a task between completed and pending
func (h *TaskHandler) ToggleComplete(w http.ResponseWriter, r *http.Request) {
	sess, ok := h.session(w, r)
	if !ok {
		return
	}
	id, err := pathID(r, "id")
	if err != nil {
		h.fail(w, sess, err)
		return
	}
	p, err := sess.ToggleComplete(r.Context(), id)
	if err != nil {
		h.fail(w, sess, err)
		return
	}
	respondPending(w, r, p, taskState(sess, id))
}

// taskState reads the current state of a task when the response is written
func taskState(sess *board.Session, id uuid.UUID) func() any {
	return func() any {
		t, ok := sess.Store().Task(id)
		if !ok {
			return nil
		}
		return t
	}
}

type titleRequest struct {
	Title string `json:"title"`
}

// AddSubtask adds a subtask under a task
func (h *TaskHandler) AddSubtask(w http.ResponseWriter, r *http.Request) {
	sess, ok := h.session(w, r)
	if !ok {
		return
	}
	parentID, err := pathID(r, "id")
	if err != nil {
		h.fail(w, sess, err)
		return
	}
	var req titleRequest
	if err := decodeJSON(r, &req); err != nil {
		h.fail(w, sess, err)
		return
	}
	p, sub, err := sess.AddSubtask(r.Context(), parentID, req.Title)
	if err != nil {
		h.fail(w, sess, err)
		return
	}
	respondPending(w, r, p, func() any { return sub })
}

func (h *TaskHandler) subtaskIDs(w http.ResponseWriter, r *http.Request, sess *board.Session) (uuid.UUID, uuid.UUID, bool) {
	parentID, err := pathID(r, "id")
	if err != nil {
		h.fail(w, sess, err)
		return uuid.Nil, uuid.Nil, false
	}
	id, err := pathID(r, "subtaskID")
	if err != nil {
		h.fail(w, sess, err)
		return uuid.Nil, uuid.Nil, false
	}
	return parentID, id, true
}

// RenameSubtask changes a subtask's title
func (h *TaskHandler) RenameSubtask(w http.ResponseWriter, r *http.Request) {
	sess, ok := h.session(w, r)
	if !ok {
		return
	}
	parentID, id, ok := h.subtaskIDs(w, r, sess)
	if !ok {
		return
	}
	var req titleRequest
	if err := decodeJSON(r, &req); err != nil {
		h.fail(w, sess, err)
		return
	}
	p, err := sess.RenameSubtask(r.Context(), parentID, id, req.Title)
	if err != nil {
		h.fail(w, sess, err)
		return
	}
	respondPending(w, r, p, taskState(sess, parentID))
}

// ToggleSubtask flips a subtask's completion
func (h *TaskHandler) ToggleSubtask(w http.ResponseWriter, r *http.Request) {
	sess, ok := h.session(w, r)
	if !ok {
		return
	}
	parentID, id, ok := h.subtaskIDs(w, r, sess)
	if !ok {
		return
	}
	p, err := sess.ToggleSubtask(r.Context(), parentID, id)
	if err != nil {
		h.fail(w, sess, err)
		return
	}
	respondPending(w, r, p, taskState(sess, parentID))
}

// DeleteSubtask removes a subtask
func (h *TaskHandler) DeleteSubtask(w http.ResponseWriter, r *http.Request) {
	sess, ok := h.session(w, r)
	if !ok {
		return
	}
	parentID, id, ok := h.subtaskIDs(w, r, sess)
	if !ok {
		return
	}
	p, err := sess.DeleteSubtask(r.Context(), parentID, id)
	if err != nil {
		h.fail(w, sess, err)
		return
	}
	respondPending(w, r, p, taskState(sess, parentID))
}
