package middleware

import (
	"bufio"
	"net"
	"net/http"
	"net/http/httptest"
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestLogging(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name      string
		method    string
		path      string
		status    int
		body      string
		wantMsg   string
		wantLevel zapcore.Level
	}{
		{name: "board read", method: http.MethodGet, path: "/api/v1/board", status: http.StatusOK, body: `{"success":true}`, wantMsg: "http_request", wantLevel: zapcore.InfoLevel},
		{name: "optimistic accept", method: http.MethodPost, path: "/api/v1/tasks/1/complete", status: http.StatusAccepted, wantMsg: "http_request", wantLevel: zapcore.InfoLevel},
		{name: "validation failure", method: http.MethodPost, path: "/api/v1/tasks", status: http.StatusBadRequest, wantMsg: "http_request", wantLevel: zapcore.WarnLevel},
		{name: "rolled back wait", method: http.MethodDelete, path: "/api/v1/tasks/1", status: http.StatusBadGateway, wantMsg: "http_request", wantLevel: zapcore.ErrorLevel},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			core, logs := observer.New(zapcore.DebugLevel)
			h := Logging(zap.New(core))(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			}))

			w := httptest.NewRecorder()
			h.ServeHTTP(w, httptest.NewRequest(tt.method, tt.path, nil))

			if w.Code != tt.status {
				t.Errorf("status = %d, want %d", w.Code, tt.status)
			}
			entries := logs.All()
			if len(entries) != 1 {
				t.Fatalf("got %d log entries, want 1", len(entries))
			}
			e := entries[0]
			if e.Message != tt.wantMsg || e.Level != tt.wantLevel {
				t.Errorf("logged %s at %s, want %s at %s", e.Message, e.Level, tt.wantMsg, tt.wantLevel)
			}
			ctx := e.ContextMap()
			if ctx["path"] != tt.path {
				t.Errorf("path = %v, want %s", ctx["path"], tt.path)
			}
			if ctx["bytes"] != int64(len(tt.body)) {
				t.Errorf("bytes = %v, want %d", ctx["bytes"], len(tt.body))
			}
		})
	}
}

type hijackableRecorder struct {
	*httptest.ResponseRecorder
}

func (h hijackableRecorder) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	server, client := net.Pipe()
	_ = client.Close()
	return server, bufio.NewReadWriter(bufio.NewReader(server), bufio.NewWriter(server)), nil
}

func TestLoggingWebsocket(t *testing.T) {
	t.Parallel()

	core, logs := observer.New(zapcore.DebugLevel)
	h := Logging(zap.New(core))(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		conn, _, err := w.(http.Hijacker).Hijack()
		if err != nil {
			t.Errorf("Hijack() error = %v", err)
			return
		}
		_ = conn.Close()
	}))

	h.ServeHTTP(hijackableRecorder{httptest.NewRecorder()}, httptest.NewRequest(http.MethodGet, "/api/v1/notifications/ws", nil))

	if logs.FilterMessage("websocket_closed").Len() != 1 {
		t.Errorf("expected a websocket_closed entry, got %v", logs.All())
	}
}
