package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/benvon/taskboard/internal/board"
	"github.com/benvon/taskboard/internal/database"
	"github.com/benvon/taskboard/internal/services/auth"
	"github.com/benvon/taskboard/internal/storage"
)

func TestRespondJSON(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		status   int
		data     any
		validate func(*testing.T, map[string]any)
	}{
		{
			name:   "object",
			status: http.StatusOK,
			data:   map[string]string{"message": "hello"},
			validate: func(t *testing.T, body map[string]any) {
				data, ok := body["data"].(map[string]any)
				if !ok || data["message"] != "hello" {
					t.Errorf("Expected message 'hello', got %v", body["data"])
				}
			},
		},
		{
			name:   "nil data",
			status: http.StatusCreated,
			data:   nil,
			validate: func(t *testing.T, body map[string]any) {
				if body["data"] != nil {
					t.Error("Expected data to be nil")
				}
			},
		},
		{
			name:   "array data",
			status: http.StatusAccepted,
			data:   []string{"a", "b", "c"},
			validate: func(t *testing.T, body map[string]any) {
				if data, ok := body["data"].([]any); !ok || len(data) != 3 {
					t.Errorf("Expected array of 3, got %v", body["data"])
				}
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			w := httptest.NewRecorder()
			respondJSON(w, tt.status, tt.data)

			if w.Code != tt.status {
				t.Errorf("Expected status %d, got %d", tt.status, w.Code)
			}
			if ct := w.Header().Get("Content-Type"); ct != "application/json" {
				t.Errorf("Expected Content-Type 'application/json', got '%s'", ct)
			}
			var body map[string]any
			if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
				t.Fatalf("Failed to decode response: %v", err)
			}
			if success, ok := body["success"].(bool); !ok || !success {
				t.Error("Expected success to be true")
			}
			ts, _ := body["timestamp"].(string)
			if _, err := time.Parse(time.RFC3339, ts); err != nil {
				t.Errorf("Timestamp '%s' is not valid RFC3339: %v", ts, err)
			}
			if tt.validate != nil {
				tt.validate(t, body)
			}
		})
	}
}

func TestRespondJSONError(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name            string
		message         string
		expectedMessage string
	}{
		{name: "short message", message: "Invalid input", expectedMessage: "Invalid input"},
		{name: "long message is truncated", message: strings.Repeat("x", 250), expectedMessage: strings.Repeat("x", 200) + "..."},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			w := httptest.NewRecorder()
			respondJSONError(w, http.StatusBadRequest, "Bad Request", tt.message)

			if w.Code != http.StatusBadRequest {
				t.Errorf("Expected status 400, got %d", w.Code)
			}
			var body map[string]any
			if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
				t.Fatalf("Failed to decode response: %v", err)
			}
			if success, ok := body["success"].(bool); !ok || success {
				t.Error("Expected success to be false")
			}
			if body["error"] != "Bad Request" {
				t.Errorf("Expected error 'Bad Request', got '%v'", body["error"])
			}
			if body["message"] != tt.expectedMessage {
				t.Errorf("Expected message %q, got %q", tt.expectedMessage, body["message"])
			}
		})
	}
}

func TestStatusFor(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		err  error
		want int
	}{
		{name: "validation", err: fmt.Errorf("%w: title is required", board.ErrValidation), want: http.StatusBadRequest},
		{name: "last profile", err: board.ErrLastProfile, want: http.StatusBadRequest},
		{name: "file too large", err: storage.ErrTooLarge, want: http.StatusBadRequest},
		{name: "password", err: auth.ErrInvalidPassword, want: http.StatusBadRequest},
		{name: "unauthenticated", err: auth.ErrUnauthenticated, want: http.StatusUnauthorized},
		{name: "task missing", err: fmt.Errorf("task x: %w", board.ErrTaskNotFound), want: http.StatusNotFound},
		{name: "row missing", err: fmt.Errorf("user: %w", database.ErrNotFound), want: http.StatusNotFound},
		{name: "no drag", err: board.ErrNoDrag, want: http.StatusConflict},
		{name: "provider not configured", err: auth.ErrNotConfigured, want: http.StatusNotImplemented},
		{name: "anything else", err: errors.New("boom"), want: http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if got, _ := statusFor(tt.err); got != tt.want {
				t.Errorf("statusFor(%v) = %d, want %d", tt.err, got, tt.want)
			}
		})
	}
}

func TestRespondErrorHidesInternalDetails(t *testing.T) {
	t.Parallel()

	w := httptest.NewRecorder()
	respondError(w, zap.NewNop(), nil, errors.New("pq: password authentication failed"))

	if w.Code != http.StatusInternalServerError {
		t.Fatalf("Expected status 500, got %d", w.Code)
	}
	if strings.Contains(w.Body.String(), "pq:") {
		t.Errorf("Expected the internal error to be hidden, got %s", w.Body.String())
	}
}

// pendingOf runs a mutation whose remote call returns err once release is closed
func pendingOf(t *testing.T, err error, release chan struct{}) *board.Pending {
	t.Helper()
	exec := board.NewExecutor(nil, nil, time.Second)
	p, runErr := board.Run(context.Background(), exec, board.Mutation[struct{}]{
		Name:     "test",
		Snapshot: func() (struct{}, error) { return struct{}{}, nil },
		Remote: func(context.Context) error {
			<-release
			return err
		},
	})
	if runErr != nil {
		t.Fatal(runErr)
	}
	return p
}

func TestRespondPending(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name           string
		query          string
		remoteErr      error
		expectedStatus int
	}{
		{name: "accepted without waiting", expectedStatus: http.StatusAccepted},
		{name: "wait for success", query: "?wait=true", expectedStatus: http.StatusOK},
		{name: "wait for rollback", query: "?wait=true", remoteErr: errRemote, expectedStatus: http.StatusBadGateway},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			release := make(chan struct{})
			p := pendingOf(t, tt.remoteErr, release)
			if tt.query != "" {
				close(release)
			} else {
				defer close(release)
			}

			w := httptest.NewRecorder()
			r := httptest.NewRequest(http.MethodPost, "/api/v1/tasks/x/complete"+tt.query, nil)
			respondPending(w, r, p, func() any { return "state" })

			if w.Code != tt.expectedStatus {
				t.Errorf("Expected status %d, got %d: %s", tt.expectedStatus, w.Code, w.Body.String())
			}
		})
	}
}

func TestDecodeJSON(t *testing.T) {
	t.Parallel()

	var dst struct {
		Title string `json:"title"`
	}
	r := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"title":"a","extra":1}`))
	if err := decodeJSON(r, &dst); !errors.Is(err, board.ErrValidation) {
		t.Errorf("Expected a validation error for unknown fields, got %v", err)
	}

	r = httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"title":"a"}`))
	if err := decodeJSON(r, &dst); err != nil || dst.Title != "a" {
		t.Errorf("Expected title 'a', got %q (%v)", dst.Title, err)
	}
}
