package board

import (
	"context"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

// Manager owns the live session of every signed-in user. Concurrent first
// requests for the same user share one load.
type Manager struct {
	gw   Gateway
	opts Options

	mu       sync.RWMutex
	sessions map[uuid.UUID]*Session
	loads    singleflight.Group
}

// NewManager creates a manager whose sessions share gw and opts
func NewManager(gw Gateway, opts Options) *Manager {
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	if gw.Blobs == nil {
		gw.Blobs = noBlobs{}
	}
	return &Manager{gw: gw, opts: opts, sessions: make(map[uuid.UUID]*Session)}
}

// Get returns the user's session, loading it on first use
func (m *Manager) Get(ctx context.Context, userID uuid.UUID) (*Session, error) {
	m.mu.RLock()
	s, ok := m.sessions[userID]
	m.mu.RUnlock()
	if ok {
		return s, nil
	}

	v, err, _ := m.loads.Do(userID.String(), func() (any, error) {
		m.mu.RLock()
		s, ok := m.sessions[userID]
		m.mu.RUnlock()
		if ok {
			return s, nil
		}
		s = NewSession(userID, m.gw, m.opts)
		if err := s.Load(context.WithoutCancel(ctx)); err != nil {
			return nil, err
		}
		m.mu.Lock()
		m.sessions[userID] = s
		m.mu.Unlock()
		m.opts.Logger.Debug("board_session_loaded", zap.String("user_id", userID.String()))
		return s, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*Session), nil
}

// Evict closes and forgets a user's session, e.g. on sign-out
func (m *Manager) Evict(userID uuid.UUID) {
	m.mu.Lock()
	s, ok := m.sessions[userID]
	delete(m.sessions, userID)
	m.mu.Unlock()
	if ok {
		s.Close()
	}
}

// Close flushes and closes every session
func (m *Manager) Close() {
	m.mu.Lock()
	sessions := m.sessions
	m.sessions = make(map[uuid.UUID]*Session)
	m.mu.Unlock()

	var wg sync.WaitGroup
	for _, s := range sessions {
		wg.Add(1)
		go func() {
			defer wg.Done()
			s.Close()
		}()
	}
	wg.Wait()
}
