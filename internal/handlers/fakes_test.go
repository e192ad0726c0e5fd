package handlers

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"slices"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"

	"github.com/benvon/taskboard/internal/board"
	"github.com/benvon/taskboard/internal/database"
	"github.com/benvon/taskboard/internal/models"
	"github.com/benvon/taskboard/internal/request"
)

var errRemote = errors.New("remote unavailable")

// memoryRemote is an in-memory backend behind every gateway interface
type memoryRemote struct {
	mu          sync.Mutex
	tasks       map[uuid.UUID]models.Task
	profiles    []models.Profile
	categories  []models.Category
	comments    map[uuid.UUID]models.Comment
	attachments map[uuid.UUID]models.Attachment
	settings    map[uuid.UUID]models.UserSettings
	blobs       map[string][]byte
	failUpdates bool
}

func newMemoryRemote() *memoryRemote {
	return &memoryRemote{
		tasks:       make(map[uuid.UUID]models.Task),
		comments:    make(map[uuid.UUID]models.Comment),
		attachments: make(map[uuid.UUID]models.Attachment),
		settings:    make(map[uuid.UUID]models.UserSettings),
		blobs:       make(map[string][]byte),
	}
}

func (m *memoryRemote) gateway() board.Gateway {
	return board.Gateway{
		Tasks:       memTasks{m},
		Profiles:    memProfiles{m},
		Categories:  memCategories{m},
		Comments:    memComments{m},
		Attachments: memAttachments{m},
		Settings:    memSettings{m},
		Blobs:       memBlobs{m},
	}
}

func (m *memoryRemote) setFailUpdates(v bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failUpdates = v
}

func (m *memoryRemote) task(id uuid.UUID) (models.Task, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.tasks[id]
	return t, ok
}

func missing(what string, id uuid.UUID) error {
	return fmt.Errorf("%s %s: %w", what, id, database.ErrNotFound)
}

type memTasks struct{ m *memoryRemote }

func (f memTasks) ListByProfile(_ context.Context, profileID uuid.UUID) ([]models.Task, error) {
	f.m.mu.Lock()
	defer f.m.mu.Unlock()
	var out []models.Task
	for _, t := range f.m.tasks {
		if t.ProfileID == profileID && t.ParentTaskID == nil {
			out = append(out, t.Clone())
		}
	}
	slices.SortFunc(out, func(a, b models.Task) int { return a.Order - b.Order })
	return out, nil
}

func (f memTasks) GetByID(_ context.Context, id uuid.UUID) (*models.Task, error) {
	f.m.mu.Lock()
	defer f.m.mu.Unlock()
	t, ok := f.m.tasks[id]
	if !ok {
		return nil, missing("task", id)
	}
	c := t.Clone()
	return &c, nil
}

func (f memTasks) Create(_ context.Context, task *models.Task) error {
	f.m.mu.Lock()
	defer f.m.mu.Unlock()
	if task.ID == uuid.Nil {
		task.ID = uuid.New()
	}
	f.m.tasks[task.ID] = task.Clone()
	return nil
}

func (f memTasks) Update(_ context.Context, task *models.Task, _ ...models.TaskField) error {
	f.m.mu.Lock()
	defer f.m.mu.Unlock()
	if f.m.failUpdates {
		return errRemote
	}
	if _, ok := f.m.tasks[task.ID]; !ok {
		return missing("task", task.ID)
	}
	f.m.tasks[task.ID] = task.Clone()
	return nil
}

func (f memTasks) Delete(_ context.Context, id uuid.UUID) error {
	f.m.mu.Lock()
	defer f.m.mu.Unlock()
	delete(f.m.tasks, id)
	return nil
}

func (f memTasks) Restore(_ context.Context, task *models.Task) error {
	f.m.mu.Lock()
	defer f.m.mu.Unlock()
	f.m.tasks[task.ID] = task.Clone()
	return nil
}

type memProfiles struct{ m *memoryRemote }

func (f memProfiles) List(_ context.Context, userID uuid.UUID) ([]models.Profile, error) {
	f.m.mu.Lock()
	defer f.m.mu.Unlock()
	var out []models.Profile
	for _, p := range f.m.profiles {
		if p.UserID == userID {
			out = append(out, p)
		}
	}
	return out, nil
}

func (f memProfiles) Create(_ context.Context, p *models.Profile) error {
	f.m.mu.Lock()
	defer f.m.mu.Unlock()
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	f.m.profiles = append(f.m.profiles, *p)
	return nil
}

func (f memProfiles) Update(_ context.Context, p *models.Profile) error {
	f.m.mu.Lock()
	defer f.m.mu.Unlock()
	for i := range f.m.profiles {
		if f.m.profiles[i].ID == p.ID {
			f.m.profiles[i] = *p
			return nil
		}
	}
	return missing("profile", p.ID)
}

func (f memProfiles) Delete(_ context.Context, id uuid.UUID) error {
	f.m.mu.Lock()
	defer f.m.mu.Unlock()
	f.m.profiles = slices.DeleteFunc(f.m.profiles, func(p models.Profile) bool { return p.ID == id })
	return nil
}

type memCategories struct{ m *memoryRemote }

func (f memCategories) ListByProfile(_ context.Context, profileID uuid.UUID) ([]models.Category, error) {
	f.m.mu.Lock()
	defer f.m.mu.Unlock()
	var out []models.Category
	for _, c := range f.m.categories {
		if c.ProfileID == profileID {
			out = append(out, c)
		}
	}
	return out, nil
}

func (f memCategories) Create(_ context.Context, c *models.Category) error {
	f.m.mu.Lock()
	defer f.m.mu.Unlock()
	if c.ID == uuid.Nil {
		c.ID = uuid.New()
	}
	f.m.categories = append(f.m.categories, *c)
	return nil
}

func (f memCategories) Update(_ context.Context, c *models.Category) error {
	f.m.mu.Lock()
	defer f.m.mu.Unlock()
	for i := range f.m.categories {
		if f.m.categories[i].ID == c.ID {
			f.m.categories[i] = *c
			return nil
		}
	}
	return missing("category", c.ID)
}

func (f memCategories) Delete(_ context.Context, id uuid.UUID) error {
	f.m.mu.Lock()
	defer f.m.mu.Unlock()
	f.m.categories = slices.DeleteFunc(f.m.categories, func(c models.Category) bool { return c.ID == id })
	return nil
}

type memComments struct{ m *memoryRemote }

func (f memComments) ListByTask(_ context.Context, taskID uuid.UUID) ([]models.Comment, error) {
	f.m.mu.Lock()
	defer f.m.mu.Unlock()
	var out []models.Comment
	for _, c := range f.m.comments {
		if c.TaskID == taskID {
			out = append(out, c.Clone())
		}
	}
	return out, nil
}

func (f memComments) Create(_ context.Context, c *models.Comment) error {
	f.m.mu.Lock()
	defer f.m.mu.Unlock()
	stored := c.Clone()
	stored.Attachments = nil
	f.m.comments[c.ID] = stored
	return nil
}

func (f memComments) Update(_ context.Context, c *models.Comment) error {
	f.m.mu.Lock()
	defer f.m.mu.Unlock()
	f.m.comments[c.ID] = c.Clone()
	return nil
}

func (f memComments) Delete(_ context.Context, id uuid.UUID) error {
	f.m.mu.Lock()
	defer f.m.mu.Unlock()
	delete(f.m.comments, id)
	return nil
}

type memAttachments struct{ m *memoryRemote }

func (f memAttachments) ListByTask(_ context.Context, taskID uuid.UUID) ([]models.Attachment, error) {
	f.m.mu.Lock()
	defer f.m.mu.Unlock()
	var out []models.Attachment
	for _, a := range f.m.attachments {
		if a.TaskID != nil && *a.TaskID == taskID {
			out = append(out, a.Clone())
		}
	}
	return out, nil
}

func (f memAttachments) GetByID(_ context.Context, id uuid.UUID) (*models.Attachment, error) {
	f.m.mu.Lock()
	defer f.m.mu.Unlock()
	a, ok := f.m.attachments[id]
	if !ok {
		return nil, missing("attachment", id)
	}
	return &a, nil
}

func (f memAttachments) Create(_ context.Context, a *models.Attachment) error {
	f.m.mu.Lock()
	defer f.m.mu.Unlock()
	f.m.attachments[a.ID] = a.Clone()
	return nil
}

func (f memAttachments) Delete(_ context.Context, id uuid.UUID) error {
	f.m.mu.Lock()
	defer f.m.mu.Unlock()
	delete(f.m.attachments, id)
	return nil
}

type memSettings struct{ m *memoryRemote }

func (f memSettings) Get(_ context.Context, userID uuid.UUID) (*models.UserSettings, error) {
	f.m.mu.Lock()
	defer f.m.mu.Unlock()
	s, ok := f.m.settings[userID]
	if !ok {
		return nil, missing("settings", userID)
	}
	return &s, nil
}

func (f memSettings) Create(_ context.Context, s *models.UserSettings) error {
	return f.Update(context.Background(), s)
}

func (f memSettings) Update(_ context.Context, s *models.UserSettings) error {
	f.m.mu.Lock()
	defer f.m.mu.Unlock()
	f.m.settings[s.UserID] = *s
	return nil
}

type memBlobs struct{ m *memoryRemote }

func (f memBlobs) Upload(_ context.Context, path string, body io.Reader, _ int64, _ string) error {
	data, err := io.ReadAll(body)
	if err != nil {
		return err
	}
	f.m.mu.Lock()
	defer f.m.mu.Unlock()
	f.m.blobs[path] = data
	return nil
}

func (f memBlobs) Download(_ context.Context, path string) (io.ReadCloser, error) {
	f.m.mu.Lock()
	defer f.m.mu.Unlock()
	data, ok := f.m.blobs[path]
	if !ok {
		return nil, fmt.Errorf("blob %s not found", path)
	}
	return io.NopCloser(bytes.NewReader(data)), nil
}

func (f memBlobs) Remove(_ context.Context, path string) error {
	f.m.mu.Lock()
	defer f.m.mu.Unlock()
	delete(f.m.blobs, path)
	return nil
}

func (f memBlobs) SignedURL(_ context.Context, path string, ttl time.Duration) (string, error) {
	return fmt.Sprintf("https://blobs.test/%s?ttl=%d", path, int(ttl.Seconds())), nil
}

var (
	_ board.TaskGateway       = memTasks{}
	_ board.ProfileGateway    = memProfiles{}
	_ board.CategoryGateway   = memCategories{}
	_ board.CommentGateway    = memComments{}
	_ board.AttachmentGateway = memAttachments{}
	_ board.SettingsGateway   = memSettings{}
	_ board.BlobStore         = memBlobs{}
)

// testToday is the board date every handler test runs on
var testToday = time.Date(2024, time.March, 15, 10, 0, 0, 0, time.UTC)

// apiFixture serves every board-facing handler for one signed-in user
type apiFixture struct {
	remote  *memoryRemote
	manager *board.Manager
	router  *mux.Router
	user    *models.User
}

func newAPIFixture(t *testing.T) *apiFixture {
	t.Helper()
	remote := newMemoryRemote()
	manager := board.NewManager(remote.gateway(), board.Options{
		Clock:        board.FixedClock{At: testToday},
		EditDebounce: 20 * time.Millisecond,
	})
	t.Cleanup(manager.Close)

	r := mux.NewRouter()
	api := r.PathPrefix("/api/v1").Subrouter()
	NewBoardHandler(manager, nil).RegisterRoutes(api)
	NewTaskHandler(manager, nil).RegisterRoutes(api)
	NewProfileHandler(manager, nil).RegisterRoutes(api)
	NewSettingsHandler(manager, nil).RegisterRoutes(api)
	NewNotificationHandler(manager, nil, nil).RegisterRoutes(api)

	return &apiFixture{
		remote:  remote,
		manager: manager,
		router:  r,
		user:    &models.User{ID: uuid.New(), Email: "user@example.com"},
	}
}

// do sends a request as the fixture's user
func (f *apiFixture) do(t *testing.T, method, path string, body io.Reader, contentType string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, body)
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	req = req.WithContext(request.WithUser(req.Context(), f.user))
	rr := httptest.NewRecorder()
	f.router.ServeHTTP(rr, req)
	return rr
}

func (f *apiFixture) session(t *testing.T) *board.Session {
	t.Helper()
	sess, err := f.manager.Get(context.Background(), f.user.ID)
	if err != nil {
		t.Fatalf("Failed to load session: %v", err)
	}
	return sess
}

// seedTask stores a task in the user's current profile and reloads the board
func (f *apiFixture) seedTask(t *testing.T, task models.Task) models.Task {
	t.Helper()
	sess := f.session(t)
	profileID, ok := sess.Store().CurrentProfile()
	if !ok {
		t.Fatal("No current profile")
	}
	if task.ID == uuid.Nil {
		task.ID = uuid.New()
	}
	task.ProfileID = profileID
	if task.Priority == "" {
		task.Priority = models.PriorityMedium
	}
	if task.Status == "" {
		task.Status = models.TaskStatusPending
	}
	f.remote.mu.Lock()
	f.remote.tasks[task.ID] = task.Clone()
	f.remote.mu.Unlock()
	if err := sess.Reload(context.Background()); err != nil {
		t.Fatalf("Failed to reload: %v", err)
	}
	return task
}

// envelope is the response wrapper every endpoint uses
type envelope[T any] struct {
	Success bool   `json:"success"`
	Data    T      `json:"data"`
	Error   string `json:"error"`
	Message string `json:"message"`
}
