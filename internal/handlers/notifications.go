package handlers

import (
	"net/http"

	"github.com/gorilla/mux"
	"go.uber.org/zap"
)

// NotificationHandler drains queued notifications and runs their undo actions
type NotificationHandler struct {
	sessionResolver
	live http.Handler
}

// NewNotificationHandler creates a notification handler. live serves the
// websocket push channel; it may be nil.
func NewNotificationHandler(sessions SessionSource, live http.Handler, logger *zap.Logger) *NotificationHandler {
	return &NotificationHandler{sessionResolver: newSessionResolver(sessions, logger), live: live}
}

// RegisterRoutes registers notification routes on the given router.
// The router should already have the /api/v1 prefix.
func (h *NotificationHandler) RegisterRoutes(r *mux.Router) {
	r.HandleFunc("/notifications", h.Drain).Methods("GET")
	r.HandleFunc("/notifications/{id}/undo", h.Undo).Methods("POST")
	if h.live != nil {
		r.Handle("/notifications/ws", h.live).Methods("GET")
	}
}

// Drain returns and clears the queued notifications
func (h *NotificationHandler) Drain(w http.ResponseWriter, r *http.Request) {
	sess, ok := h.session(w, r)
	if !ok {
		return
	}
	respondJSON(w, http.StatusOK, sess.Notifications())
}

// Undo reverses the action a notification offered to undo
func (h *NotificationHandler) Undo(w http.ResponseWriter, r *http.Request) {
	sess, ok := h.session(w, r)
	if !ok {
		return
	}
	id, err := pathID(r, "id")
	if err != nil {
		h.fail(w, sess, err)
		return
	}
	p, err := sess.Undo(r.Context(), id)
	if err != nil {
		h.fail(w, sess, err)
		return
	}
	respondPending(w, r, p, func() any { return sess.Board() })
}
