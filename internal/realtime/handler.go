package realtime

import (
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/benvon/taskboard/internal/request"
)

const (
	writeWait  = 5 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = 30 * time.Second
	readLimit  = 1024
)

// wsClient implements Client by wrapping a websocket connection.
// Writes are serialized since publishes arrive from many goroutines.
type wsClient struct {
	mu   sync.Mutex
	conn *websocket.Conn
}

func (c *wsClient) Send(message []byte) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
	return c.conn.WriteMessage(websocket.TextMessage, message) == nil
}

func (c *wsClient) ping() error {
	return c.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait))
}

func (c *wsClient) Close() {
	_ = c.conn.Close()
}

// OriginChecker reports whether a browser origin may open a socket
type OriginChecker func(origin string) bool

// Handler upgrades signed-in requests to websockets and registers them
type Handler struct {
	hub      *Hub
	upgrader websocket.Upgrader
	logger   *zap.Logger
}

// NewHandler creates a websocket handler. Origins are accepted when they
// match the request host or allowed reports true.
func NewHandler(hub *Hub, allowed OriginChecker, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{
		hub:    hub,
		logger: logger,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				origin := r.Header.Get("Origin")
				if origin == "" {
					return true
				}
				if u, err := url.Parse(origin); err == nil && u.Host == r.Host {
					return true
				}
				return allowed != nil && allowed(origin)
			},
		},
	}
}

// ServeHTTP requires the auth middleware to have set the user
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	user := request.UserFromContext(r)
	if user == nil {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("websocket_upgrade_failed", zap.Error(err))
		return
	}

	client := &wsClient{conn: conn}
	h.hub.Register(user.ID, client)
	h.logger.Debug("websocket_connected", zap.String("user_id", user.ID.String()))

	pingTicker := time.NewTicker(pingPeriod)
	done := make(chan struct{})
	go func() {
		for {
			select {
			case <-done:
				return
			case <-pingTicker.C:
				if err := client.ping(); err != nil {
					return
				}
			}
		}
	}()
	defer func() {
		close(done)
		pingTicker.Stop()
		h.hub.Unregister(user.ID, client)
		client.Close()
	}()

	conn.SetReadLimit(readLimit)
	_ = conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	// The socket is push-only; reads just keep the pong handler running
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
	}
}
