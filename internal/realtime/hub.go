// Package realtime pushes board notifications to a user's open websocket
// connections.
package realtime

import (
	"encoding/json"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/benvon/taskboard/internal/board"
)

// Client is one live connection
type Client interface {
	Send(message []byte) bool
	Close()
}

// Event is the frame written to clients
type Event struct {
	Type string `json:"type"`
	Data any    `json:"data"`
}

// EventNotification carries a board.Notification
const EventNotification = "notification"

// Hub maintains active user connections and broadcasts events to them
type Hub struct {
	mu      sync.RWMutex
	clients map[uuid.UUID]map[Client]struct{}
	logger  *zap.Logger
}

var _ board.Publisher = (*Hub)(nil)

// NewHub creates an empty hub
func NewHub(logger *zap.Logger) *Hub {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Hub{
		clients: make(map[uuid.UUID]map[Client]struct{}),
		logger:  logger,
	}
}

// Register adds a client under a user ID
func (h *Hub) Register(userID uuid.UUID, client Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.clients[userID]; !ok {
		h.clients[userID] = make(map[Client]struct{})
	}
	h.clients[userID][client] = struct{}{}
}

// Unregister removes a client; if user has no more clients, cleans up map
func (h *Hub) Unregister(userID uuid.UUID, client Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if clients, ok := h.clients[userID]; ok {
		delete(clients, client)
		if len(clients) == 0 {
			delete(h.clients, userID)
		}
	}
}

// Connections returns how many clients userID has open
func (h *Hub) Connections(userID uuid.UUID) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients[userID])
}

// Publish sends a notification to every connection of userID
func (h *Hub) Publish(userID uuid.UUID, n board.Notification) {
	h.Broadcast(userID, Event{Type: EventNotification, Data: n})
}

// Broadcast sends an event to all clients of a user. Clients whose write
// fails are dropped.
func (h *Hub) Broadcast(userID uuid.UUID, ev Event) {
	msg, err := json.Marshal(ev)
	if err != nil {
		h.logger.Error("realtime_event_encode_failed", zap.String("type", ev.Type), zap.Error(err))
		return
	}

	h.mu.RLock()
	clients := make([]Client, 0, len(h.clients[userID]))
	for c := range h.clients[userID] {
		clients = append(clients, c)
	}
	h.mu.RUnlock()

	for _, c := range clients {
		if !c.Send(msg) {
			h.Unregister(userID, c)
			c.Close()
		}
	}
}

// CloseAll closes every connection
func (h *Hub) CloseAll() {
	h.mu.Lock()
	all := h.clients
	h.clients = make(map[uuid.UUID]map[Client]struct{})
	h.mu.Unlock()

	for _, clients := range all {
		for c := range clients {
			c.Close()
		}
	}
}
