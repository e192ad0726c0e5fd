package handlers

import (
	"context"
	"net/http"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/benvon/taskboard/internal/board"
	"github.com/benvon/taskboard/internal/request"
)

// SessionSource hands out the board session of a signed-in user
type SessionSource interface {
	Get(ctx context.Context, userID uuid.UUID) (*board.Session, error)
}

// sessionResolver is shared by the handlers that work on a user's board
type sessionResolver struct {
	sessions SessionSource
	logger   *zap.Logger
}

func newSessionResolver(sessions SessionSource, logger *zap.Logger) sessionResolver {
	if logger == nil {
		logger = zap.NewNop()
	}
	return sessionResolver{sessions: sessions, logger: logger}
}

// session returns the caller's board session, writing the error response
// itself when there is none
func (h sessionResolver) session(w http.ResponseWriter, r *http.Request) (*board.Session, bool) {
	user := request.UserFromContext(r)
	if user == nil {
		respondJSONError(w, http.StatusUnauthorized, "Unauthorized", "User not found in context")
		return nil, false
	}
	sess, err := h.sessions.Get(r.Context(), user.ID)
	if err != nil {
		h.logger.Error("board_session_load_failed", zap.String("user_id", user.ID.String()), zap.Error(err))
		respondJSONError(w, http.StatusServiceUnavailable, "Service Unavailable", "Failed to load the board")
		return nil, false
	}
	return sess, true
}

func (h sessionResolver) fail(w http.ResponseWriter, sess *board.Session, err error) {
	respondError(w, h.logger, sess, err)
}
