package handlers

import (
	"bytes"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"cloud.google.com/go/civil"
	"github.com/google/uuid"

	"github.com/benvon/taskboard/internal/board"
	"github.com/benvon/taskboard/internal/models"
)

func decodeEnvelope[T any](t *testing.T, rr *httptest.ResponseRecorder) envelope[T] {
	t.Helper()
	var env envelope[T]
	if err := json.Unmarshal(rr.Body.Bytes(), &env); err != nil {
		t.Fatalf("Failed to decode response %q: %v", rr.Body.String(), err)
	}
	return env
}

func TestCreateTask(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name           string
		body           string
		expectedStatus int
		validate       func(*testing.T, *apiFixture, *httptest.ResponseRecorder)
	}{
		{
			name:           "from the today column",
			body:           `{"title":"  Write report ","priority":"high","column":"today","subtasks":["outline","draft"]}`,
			expectedStatus: http.StatusCreated,
			validate: func(t *testing.T, f *apiFixture, rr *httptest.ResponseRecorder) {
				task := decodeEnvelope[models.Task](t, rr).Data
				if task.Title != "Write report" {
					t.Errorf("Expected trimmed title, got %q", task.Title)
				}
				if task.Status != models.TaskStatusPending {
					t.Errorf("Expected stored status pending, got %s", task.Status)
				}
				if task.DueDate == nil || *task.DueDate != civil.DateOf(testToday) {
					t.Errorf("Expected due date %s, got %v", civil.DateOf(testToday), task.DueDate)
				}
				stored, ok := f.remote.task(task.ID)
				if !ok {
					t.Fatal("Expected task to be persisted")
				}
				if stored.Priority != models.PriorityHigh {
					t.Errorf("Expected priority high, got %s", stored.Priority)
				}
			},
		},
		{
			name:           "empty title",
			body:           `{"title":"   "}`,
			expectedStatus: http.StatusBadRequest,
			validate: func(t *testing.T, f *apiFixture, rr *httptest.ResponseRecorder) {
				env := decodeEnvelope[any](t, rr)
				if env.Success || env.Error != "Validation Error" {
					t.Errorf("Expected validation error envelope, got %+v", env)
				}
				notes := f.session(t).Notifications()
				if len(notes) == 0 || notes[len(notes)-1].Level != board.LevelError {
					t.Errorf("Expected an error notification, got %+v", notes)
				}
			},
		},
		{
			name:           "unknown field",
			body:           `{"title":"x","owner":"someone"}`,
			expectedStatus: http.StatusBadRequest,
		},
		{
			name:           "invalid priority",
			body:           `{"title":"x","priority":"urgent"}`,
			expectedStatus: http.StatusBadRequest,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			f := newAPIFixture(t)
			rr := f.do(t, http.MethodPost, "/api/v1/tasks", strings.NewReader(tt.body), "application/json")
			if rr.Code != tt.expectedStatus {
				t.Fatalf("Expected status %d, got %d: %s", tt.expectedStatus, rr.Code, rr.Body.String())
			}
			if tt.validate != nil {
				tt.validate(t, f, rr)
			}
		})
	}
}

func TestCreateTaskMultipart(t *testing.T) {
	t.Parallel()
	f := newAPIFixture(t)

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	if err := mw.WriteField("task", `{"title":"With files"}`); err != nil {
		t.Fatal(err)
	}
	fw, err := mw.CreateFormFile("files", "notes.txt")
	if err != nil {
		t.Fatal(err)
	}
	_, _ = fw.Write([]byte("hello"))
	if err := mw.Close(); err != nil {
		t.Fatal(err)
	}

	rr := f.do(t, http.MethodPost, "/api/v1/tasks", &body, mw.FormDataContentType())
	if rr.Code != http.StatusCreated {
		t.Fatalf("Expected status 201, got %d: %s", rr.Code, rr.Body.String())
	}
	task := decodeEnvelope[models.Task](t, rr).Data
	f.session(t).Wait()

	f.remote.mu.Lock()
	defer f.remote.mu.Unlock()
	var found bool
	for _, a := range f.remote.attachments {
		if a.TaskID != nil && *a.TaskID == task.ID && a.FileName == "notes.txt" {
			found = string(f.remote.blobs[a.FilePath]) == "hello"
		}
	}
	if !found {
		t.Error("Expected the file to be uploaded and recorded")
	}
}

func TestToggleComplete(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name           string
		failRemote     bool
		expectedStatus int
		expectedStored models.TaskStatus
		expectedLocal  models.TaskStatus
	}{
		{
			name:           "saved",
			expectedStatus: http.StatusOK,
			expectedStored: models.TaskStatusCompleted,
			expectedLocal:  models.TaskStatusCompleted,
		},
		{
			name:           "rolled back",
			failRemote:     true,
			expectedStatus: http.StatusBadGateway,
			expectedStored: models.TaskStatusPending,
			expectedLocal:  models.TaskStatusPending,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			f := newAPIFixture(t)
			task := f.seedTask(t, models.Task{Title: "Pay rent"})
			f.remote.setFailUpdates(tt.failRemote)

			rr := f.do(t, http.MethodPost, "/api/v1/tasks/"+task.ID.String()+"/complete?wait=true", nil, "")
			if rr.Code != tt.expectedStatus {
				t.Fatalf("Expected status %d, got %d: %s", tt.expectedStatus, rr.Code, rr.Body.String())
			}

			stored, _ := f.remote.task(task.ID)
			if stored.Status != tt.expectedStored {
				t.Errorf("Expected stored status %s, got %s", tt.expectedStored, stored.Status)
			}
			local, _ := f.session(t).Store().Task(task.ID)
			if local.Status != tt.expectedLocal {
				t.Errorf("Expected local status %s, got %s", tt.expectedLocal, local.Status)
			}
			if tt.failRemote && local.CompletedAt != nil {
				t.Error("Expected completed_at to be rolled back")
			}
		})
	}
}

func TestToggleCompleteAcceptedWithoutWait(t *testing.T) {
	t.Parallel()
	f := newAPIFixture(t)
	task := f.seedTask(t, models.Task{Title: "Water plants"})

	rr := f.do(t, http.MethodPost, "/api/v1/tasks/"+task.ID.String()+"/complete", nil, "")
	if rr.Code != http.StatusAccepted {
		t.Fatalf("Expected status 202, got %d", rr.Code)
	}
	got := decodeEnvelope[models.Task](t, rr).Data
	if got.Status != models.TaskStatusCompleted || got.CompletedAt == nil {
		t.Errorf("Expected the optimistic completed state, got %s", got.Status)
	}
	f.session(t).Wait()
}

func TestUndoCompletion(t *testing.T) {
	t.Parallel()
	f := newAPIFixture(t)
	task := f.seedTask(t, models.Task{Title: "Call mom"})

	rr := f.do(t, http.MethodPost, "/api/v1/tasks/"+task.ID.String()+"/complete?wait=true", nil, "")
	if rr.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d", rr.Code)
	}

	rr = f.do(t, http.MethodGet, "/api/v1/notifications", nil, "")
	notes := decodeEnvelope[[]board.Notification](t, rr).Data
	var undoID *uuid.UUID
	for _, n := range notes {
		if n.UndoID != nil {
			undoID = n.UndoID
		}
	}
	if undoID == nil {
		t.Fatalf("Expected an undoable notification, got %+v", notes)
	}

	rr = f.do(t, http.MethodPost, "/api/v1/notifications/"+undoID.String()+"/undo?wait=true", nil, "")
	if rr.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d: %s", rr.Code, rr.Body.String())
	}
	stored, _ := f.remote.task(task.ID)
	if stored.Status != models.TaskStatusPending || stored.CompletedAt != nil {
		t.Errorf("Expected the task back in pending, got %s", stored.Status)
	}

	rr = f.do(t, http.MethodPost, "/api/v1/notifications/"+undoID.String()+"/undo", nil, "")
	if rr.Code != http.StatusNotFound {
		t.Errorf("Expected a second undo to be 404, got %d", rr.Code)
	}
}

func TestUpdateTaskDebounced(t *testing.T) {
	t.Parallel()
	f := newAPIFixture(t)
	task := f.seedTask(t, models.Task{Title: "Draft"})
	path := "/api/v1/tasks/" + task.ID.String()

	rr := f.do(t, http.MethodPatch, path, strings.NewReader(`{"title":"Final"}`), "application/json")
	if rr.Code != http.StatusAccepted {
		t.Fatalf("Expected status 202, got %d: %s", rr.Code, rr.Body.String())
	}
	rr = f.do(t, http.MethodPatch, path, strings.NewReader(`{"priority":"high","description":null}`), "application/json")
	if rr.Code != http.StatusAccepted {
		t.Fatalf("Expected status 202, got %d: %s", rr.Code, rr.Body.String())
	}
	if got := decodeEnvelope[models.Task](t, rr).Data; got.Title != "Final" || got.Priority != models.PriorityHigh {
		t.Errorf("Expected both edits applied locally, got %q/%s", got.Title, got.Priority)
	}

	sess := f.session(t)
	sess.Flush()
	sess.Wait()
	stored, _ := f.remote.task(task.ID)
	if stored.Title != "Final" || stored.Priority != models.PriorityHigh {
		t.Errorf("Expected both edits saved, got %q/%s", stored.Title, stored.Priority)
	}
}

func TestUpdateTaskRejectsUnknownField(t *testing.T) {
	t.Parallel()
	f := newAPIFixture(t)
	task := f.seedTask(t, models.Task{Title: "Draft"})

	rr := f.do(t, http.MethodPatch, "/api/v1/tasks/"+task.ID.String(), strings.NewReader(`{"completed_at":null}`), "application/json")
	if rr.Code != http.StatusBadRequest {
		t.Errorf("Expected status 400, got %d", rr.Code)
	}
}

func TestTaskNotFound(t *testing.T) {
	t.Parallel()
	f := newAPIFixture(t)

	tests := []struct {
		name   string
		method string
		path   string
		want   int
	}{
		{name: "get unknown", method: http.MethodGet, path: "/api/v1/tasks/" + uuid.NewString(), want: http.StatusNotFound},
		{name: "delete unknown", method: http.MethodDelete, path: "/api/v1/tasks/" + uuid.NewString(), want: http.StatusNotFound},
		{name: "malformed id", method: http.MethodGet, path: "/api/v1/tasks/not-a-uuid", want: http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rr := f.do(t, tt.method, tt.path, nil, "")
			if rr.Code != tt.want {
				t.Errorf("Expected status %d, got %d", tt.want, rr.Code)
			}
		})
	}
}

func TestAttachmentRoundTrip(t *testing.T) {
	t.Parallel()
	f := newAPIFixture(t)
	task := f.seedTask(t, models.Task{Title: "Receipts"})

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	fw, err := mw.CreateFormFile("file", "receipt.txt")
	if err != nil {
		t.Fatal(err)
	}
	_, _ = fw.Write([]byte("total: 42"))
	_ = mw.Close()

	rr := f.do(t, http.MethodPost, "/api/v1/tasks/"+task.ID.String()+"/attachments?wait=true", &body, mw.FormDataContentType())
	if rr.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d: %s", rr.Code, rr.Body.String())
	}
	a := decodeEnvelope[models.Attachment](t, rr).Data
	if a.FileName != "receipt.txt" || a.FileSize != int64(len("total: 42")) {
		t.Errorf("Unexpected attachment %+v", a)
	}

	rr = f.do(t, http.MethodGet, "/api/v1/attachments/"+a.ID.String()+"/url", nil, "")
	if rr.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d", rr.Code)
	}
	if url := decodeEnvelope[map[string]string](t, rr).Data["url"]; !strings.Contains(url, "ttl=3600") {
		t.Errorf("Expected a one hour signed URL, got %q", url)
	}

	rr = f.do(t, http.MethodGet, "/api/v1/attachments/"+a.ID.String()+"/download", nil, "")
	if rr.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d", rr.Code)
	}
	if rr.Body.String() != "total: 42" {
		t.Errorf("Expected file contents, got %q", rr.Body.String())
	}
	if cd := rr.Header().Get("Content-Disposition"); !strings.Contains(cd, "receipt.txt") {
		t.Errorf("Expected filename in Content-Disposition, got %q", cd)
	}
}

func TestAddAttachmentRequiresOneFile(t *testing.T) {
	t.Parallel()
	f := newAPIFixture(t)
	task := f.seedTask(t, models.Task{Title: "Receipts"})

	rr := f.do(t, http.MethodPost, "/api/v1/tasks/"+task.ID.String()+"/attachments", strings.NewReader(`{}`), "application/json")
	if rr.Code != http.StatusBadRequest {
		t.Errorf("Expected status 400, got %d", rr.Code)
	}
}

func TestUnauthenticatedRequest(t *testing.T) {
	t.Parallel()
	f := newAPIFixture(t)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/board", nil)
	rr := httptest.NewRecorder()
	f.router.ServeHTTP(rr, req)
	if rr.Code != http.StatusUnauthorized {
		t.Errorf("Expected status 401, got %d", rr.Code)
	}
}
