package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"github.com/benvon/taskboard/internal/board"
	"github.com/benvon/taskboard/internal/database"
	"github.com/benvon/taskboard/internal/services/auth"
	"github.com/benvon/taskboard/internal/storage"
)

// respondJSON sends a JSON response
func respondJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	response := map[string]any{
		"success":   true,
		"data":      data,
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	}

	if err := json.NewEncoder(w).Encode(response); err != nil {
		http.Error(w, "Failed to encode response", http.StatusInternalServerError)
	}
}

// sanitizeErrorMessage trims error messages before they reach clients
func sanitizeErrorMessage(message string) string {
	sanitized := message
	if len(sanitized) > 200 {
		sanitized = sanitized[:200] + "..."
	}
	return sanitized
}

// respondJSONError sends an error JSON response with sanitized error messages
func respondJSONError(w http.ResponseWriter, status int, errorType, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	sanitizedMessage := sanitizeErrorMessage(message)

	response := map[string]any{
		"success":   false,
		"error":     errorType,
		"message":   sanitizedMessage,
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	}

	if err := json.NewEncoder(w).Encode(response); err != nil {
		http.Error(w, "Failed to encode response", http.StatusInternalServerError)
	}
}

// statusFor maps a domain error to its HTTP status and error type
func statusFor(err error) (int, string) {
	switch {
	case errors.Is(err, board.ErrValidation),
		errors.Is(err, auth.ErrInvalidPassword),
		errors.Is(err, storage.ErrTooLarge):
		return http.StatusBadRequest, "Validation Error"
	case errors.Is(err, auth.ErrUnauthenticated), errors.Is(err, auth.ErrInvalidState):
		return http.StatusUnauthorized, "Unauthorized"
	case errors.Is(err, board.ErrTaskNotFound),
		errors.Is(err, board.ErrNotFound),
		errors.Is(err, database.ErrNotFound),
		errors.Is(err, storage.ErrObjectNotFound):
		return http.StatusNotFound, "Not Found"
	case errors.Is(err, board.ErrNoDrag),
		errors.Is(err, board.ErrNoDatePending),
		errors.Is(err, board.ErrNoProfile):
		return http.StatusConflict, "Conflict"
	case errors.Is(err, auth.ErrNotConfigured), errors.Is(err, board.ErrBlobsDisabled):
		return http.StatusNotImplemented, "Not Implemented"
	default:
		return http.StatusInternalServerError, "Internal Server Error"
	}
}

// respondError writes err as an error envelope. Internal errors are logged
// and replaced by a generic message. Validation failures are also raised as
// a notification on sess when one is given.
func respondError(w http.ResponseWriter, logger *zap.Logger, sess *board.Session, err error) {
	status, errorType := statusFor(err)
	message := err.Error()
	if status == http.StatusInternalServerError {
		logger.Error("request_failed", zap.Error(err))
		message = "An unexpected error occurred"
	}
	if status == http.StatusBadRequest && sess != nil {
		sess.Notify(board.Notification{Level: board.LevelError, Message: sanitizeErrorMessage(message)})
	}
	respondJSONError(w, status, errorType, message)
}

// respondPending answers an optimistic change. By default it returns 202
// with the optimistic state at once; with ?wait=true it blocks until the
// remote call settled and reports a rollback as 502.
func respondPending(w http.ResponseWriter, r *http.Request, p *board.Pending, data func() any) {
	if p == nil {
		respondJSON(w, http.StatusOK, data())
		return
	}
	if r.URL.Query().Get("wait") != "true" {
		respondJSON(w, http.StatusAccepted, data())
		return
	}
	select {
	case <-p.Done():
	case <-r.Context().Done():
		respondJSON(w, http.StatusAccepted, data())
		return
	}
	if err := p.Wait(); err != nil {
		respondJSONError(w, http.StatusBadGateway, "Remote Error", "The change was reverted: "+err.Error())
		return
	}
	respondJSON(w, http.StatusOK, data())
}

// decodeJSON reads the request body into dst, rejecting unknown fields
func decodeJSON(r *http.Request, dst any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		return fmt.Errorf("%w: invalid request body: %v", board.ErrValidation, err)
	}
	return nil
}

// pathID parses the named route variable as a uuid
func pathID(r *http.Request, name string) (uuid.UUID, error) {
	id, err := uuid.Parse(mux.Vars(r)[name])
	if err != nil {
		return uuid.Nil, fmt.Errorf("%w: invalid %s", board.ErrValidation, name)
	}
	return id, nil
}
