package board

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

// Level is the severity of a transient notification
type Level string

const (
	LevelSuccess Level = "success"
	LevelError   Level = "error"
	LevelInfo    Level = "info"
)

// Notification is a transient message for the user (a toast). When UndoID
// is set the client may post it back to reverse the action.
type Notification struct {
	ID        uuid.UUID  `json:"id"`
	Level     Level      `json:"level"`
	Message   string     `json:"message"`
	UndoID    *uuid.UUID `json:"undo_id,omitempty"`
	CreatedAt time.Time  `json:"created_at"`
}

// Notifier receives notifications as they are raised
type Notifier interface {
	Notify(Notification)
}

// Publisher pushes a user's notifications to live connections
type Publisher interface {
	Publish(userID uuid.UUID, n Notification)
}

const maxQueuedNotifications = 50

// notificationQueue buffers notifications until the client drains them.
// The oldest entries are dropped once the queue is full.
type notificationQueue struct {
	mu    sync.Mutex
	items []Notification
}

func (q *notificationQueue) push(n Notification) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.items = append(q.items, n)
	if over := len(q.items) - maxQueuedNotifications; over > 0 {
		q.items = q.items[over:]
	}
}

func (q *notificationQueue) drain() []Notification {
	q.mu.Lock()
	defer q.mu.Unlock()
	out := q.items
	q.items = nil
	if out == nil {
		out = []Notification{}
	}
	return out
}
