package realtime

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/benvon/taskboard/internal/board"
	"github.com/benvon/taskboard/internal/models"
	"github.com/benvon/taskboard/internal/request"
)

type mockClient struct {
	mu     sync.Mutex
	sent   [][]byte
	fail   bool
	closed bool
}

func (m *mockClient) Send(message []byte) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.fail {
		return false
	}
	m.sent = append(m.sent, message)
	return true
}

func (m *mockClient) Close() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
}

func TestHubPublish(t *testing.T) {
	t.Parallel()

	hub := NewHub(nil)
	alice, bob := uuid.New(), uuid.New()
	a1, a2, b1 := &mockClient{}, &mockClient{}, &mockClient{}
	broken := &mockClient{fail: true}
	hub.Register(alice, a1)
	hub.Register(alice, a2)
	hub.Register(alice, broken)
	hub.Register(bob, b1)

	n := board.Notification{ID: uuid.New(), Level: board.LevelSuccess, Message: "Task created"}
	hub.Publish(alice, n)

	for i, c := range []*mockClient{a1, a2} {
		if len(c.sent) != 1 {
			t.Fatalf("client %d got %d messages, want 1", i, len(c.sent))
		}
		var ev struct {
			Type string             `json:"type"`
			Data board.Notification `json:"data"`
		}
		if err := json.Unmarshal(c.sent[0], &ev); err != nil {
			t.Fatal(err)
		}
		if ev.Type != EventNotification || ev.Data.Message != "Task created" {
			t.Errorf("event = %+v", ev)
		}
	}
	if len(b1.sent) != 0 {
		t.Error("other users must not receive the notification")
	}
	if !broken.closed || hub.Connections(alice) != 2 {
		t.Errorf("failed client should be dropped, connections = %d", hub.Connections(alice))
	}

	hub.Unregister(alice, a1)
	hub.Unregister(alice, a2)
	if hub.Connections(alice) != 0 {
		t.Error("expected no connections")
	}

	hub.CloseAll()
	if !b1.closed || hub.Connections(bob) != 0 {
		t.Error("CloseAll should close every client")
	}
}

func TestHandler(t *testing.T) {
	t.Parallel()

	hub := NewHub(nil)
	user := &models.User{ID: uuid.New()}
	ws := NewHandler(hub, func(origin string) bool { return origin == "https://board.example.com" }, nil)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("X-Anonymous") == "" {
			r = r.WithContext(request.WithUser(r.Context(), user))
		}
		ws.ServeHTTP(w, r)
	}))
	t.Cleanup(srv.Close)
	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http")

	t.Run("anonymous rejected", func(t *testing.T) {
		_, resp, err := websocket.DefaultDialer.Dial(wsURL, http.Header{"X-Anonymous": {"1"}})
		if err == nil {
			t.Fatal("expected dial to fail")
		}
		if resp == nil || resp.StatusCode != http.StatusUnauthorized {
			t.Errorf("resp = %v", resp)
		}
	})

	t.Run("foreign origin rejected", func(t *testing.T) {
		_, resp, err := websocket.DefaultDialer.Dial(wsURL, http.Header{"Origin": {"https://evil.example.com"}})
		if err == nil {
			t.Fatal("expected dial to fail")
		}
		if resp == nil || resp.StatusCode != http.StatusForbidden {
			t.Errorf("resp = %v", resp)
		}
	})

	t.Run("receives notifications", func(t *testing.T) {
		conn, _, err := websocket.DefaultDialer.Dial(wsURL, http.Header{"Origin": {"https://board.example.com"}})
		if err != nil {
			t.Fatalf("dial: %v", err)
		}
		defer conn.Close()

		deadline := time.Now().Add(2 * time.Second)
		for hub.Connections(user.ID) == 0 {
			if time.Now().After(deadline) {
				t.Fatal("client never registered")
			}
			time.Sleep(5 * time.Millisecond)
		}

		hub.Publish(user.ID, board.Notification{Level: board.LevelError, Message: "Failed to update task"})

		_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
		var ev struct {
			Type string             `json:"type"`
			Data board.Notification `json:"data"`
		}
		if err := conn.ReadJSON(&ev); err != nil {
			t.Fatalf("read: %v", err)
		}
		if ev.Type != EventNotification || ev.Data.Level != board.LevelError {
			t.Errorf("event = %+v", ev)
		}
	})
}
