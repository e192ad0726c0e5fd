package handlers

import (
	"fmt"
	"net/http"

	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"github.com/benvon/taskboard/internal/board"
)

// SettingsHandler handles user settings and the daily summary
type SettingsHandler struct {
	sessionResolver
}

// NewSettingsHandler creates a new settings handler
func NewSettingsHandler(sessions SessionSource, logger *zap.Logger) *SettingsHandler {
	return &SettingsHandler{sessionResolver: newSessionResolver(sessions, logger)}
}

// RegisterRoutes registers settings routes on the given router.
// The router should already have the /api/v1 prefix.
func (h *SettingsHandler) RegisterRoutes(r *mux.Router) {
	r.HandleFunc("/settings", h.GetSettings).Methods("GET")
	r.HandleFunc("/settings", h.UpdateSettings).Methods("PATCH")
	r.HandleFunc("/summary", h.GetSummary).Methods("GET")
	r.HandleFunc("/summary/dismiss", h.DismissSummary).Methods("POST")
}

// GetSettings returns the user's settings
func (h *SettingsHandler) GetSettings(w http.ResponseWriter, r *http.Request) {
	sess, ok := h.session(w, r)
	if !ok {
		return
	}
	settings := sess.Store().Settings()
	if settings == nil {
		h.fail(w, sess, fmt.Errorf("settings: %w", board.ErrNotFound))
		return
	}
	respondJSON(w, http.StatusOK, settings)
}

// UpdateSettings changes theme, auto-archive days or column order
func (h *SettingsHandler) UpdateSettings(w http.ResponseWriter, r *http.Request) {
	sess, ok := h.session(w, r)
	if !ok {
		return
	}
	var patch board.SettingsPatch
	if err := decodeJSON(r, &patch); err != nil {
		h.fail(w, sess, err)
		return
	}
	settings, err := sess.UpdateSettings(r.Context(), patch)
	if err != nil {
		h.fail(w, sess, err)
		return
	}
	respondJSON(w, http.StatusOK, settings)
}

// GetSummary returns today's summary and whether it should be shown
func (h *SettingsHandler) GetSummary(w http.ResponseWriter, r *http.Request) {
	sess, ok := h.session(w, r)
	if !ok {
		return
	}
	respondJSON(w, http.StatusOK, sess.DailySummary())
}

// DismissSummary hides the summary until tomorrow
func (h *SettingsHandler) DismissSummary(w http.ResponseWriter, r *http.Request) {
	sess, ok := h.session(w, r)
	if !ok {
		return
	}
	if err := sess.DismissSummary(r.Context()); err != nil {
		h.fail(w, sess, err)
		return
	}
	respondJSON(w, http.StatusOK, sess.DailySummary())
}
