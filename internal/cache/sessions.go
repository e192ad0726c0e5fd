package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/benvon/taskboard/internal/models"
)

var (
	// ErrSessionNotFound is returned for unknown or expired session tokens
	ErrSessionNotFound = errors.New("session not found")
	// ErrStateNotFound is returned for unknown, expired or reused login states
	ErrStateNotFound = errors.New("login state not found")
)

// SessionStore keeps signed-in sessions and pending login states
type SessionStore struct {
	rdb *redis.Client
}

// NewSessionStore creates a session store on c
func NewSessionStore(c *Client) *SessionStore {
	return &SessionStore{rdb: c.rdb}
}

func sessionKey(token string) string {
	return key("session", token)
}

func stateKey(state string) string {
	return key("login", state)
}

// Save stores a session until its expiry
func (s *SessionStore) Save(ctx context.Context, sess models.AuthSession) error {
	ttl := time.Until(sess.ExpiresAt)
	if ttl <= 0 {
		return fmt.Errorf("session already expired at %s", sess.ExpiresAt.Format(time.RFC3339))
	}
	raw, err := json.Marshal(sess)
	if err != nil {
		return fmt.Errorf("failed to encode session: %w", err)
	}
	if err := s.rdb.Set(ctx, sessionKey(sess.Token), raw, ttl).Err(); err != nil {
		return fmt.Errorf("failed to save session: %w", err)
	}
	return nil
}

// Get returns the session for token
func (s *SessionStore) Get(ctx context.Context, token string) (*models.AuthSession, error) {
	raw, err := s.rdb.Get(ctx, sessionKey(token)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrSessionNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load session: %w", err)
	}
	var sess models.AuthSession
	if err := json.Unmarshal(raw, &sess); err != nil {
		return nil, fmt.Errorf("failed to decode session: %w", err)
	}
	return &sess, nil
}

// Delete ends a session
func (s *SessionStore) Delete(ctx context.Context, token string) error {
	if err := s.rdb.Del(ctx, sessionKey(token)).Err(); err != nil {
		return fmt.Errorf("failed to delete session: %w", err)
	}
	return nil
}

// SaveState stores a pending login for ttl
func (s *SessionStore) SaveState(ctx context.Context, st models.LoginState, ttl time.Duration) error {
	raw, err := json.Marshal(st)
	if err != nil {
		return fmt.Errorf("failed to encode login state: %w", err)
	}
	if err := s.rdb.Set(ctx, stateKey(st.State), raw, ttl).Err(); err != nil {
		return fmt.Errorf("failed to save login state: %w", err)
	}
	return nil
}

// TakeState returns a pending login and removes it, so each state is used once
func (s *SessionStore) TakeState(ctx context.Context, state string) (*models.LoginState, error) {
	raw, err := s.rdb.GetDel(ctx, stateKey(state)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrStateNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load login state: %w", err)
	}
	var st models.LoginState
	if err := json.Unmarshal(raw, &st); err != nil {
		return nil, fmt.Errorf("failed to decode login state: %w", err)
	}
	return &st, nil
}
