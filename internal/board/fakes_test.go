package board

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"slices"
	"sync"
	"testing"
	"time"

	"cloud.google.com/go/civil"
	"github.com/google/uuid"

	"github.com/benvon/taskboard/internal/database"
	"github.com/benvon/taskboard/internal/models"
)

// call records one gateway call
type call struct {
	Op     string
	ID     uuid.UUID
	Fields []models.TaskField
	Task   models.Task
}

// fakeRemote is an in-memory backend behind every gateway interface
type fakeRemote struct {
	mu          sync.Mutex
	tasks       map[uuid.UUID]models.Task
	profiles    []models.Profile
	categories  []models.Category
	comments    map[uuid.UUID]models.Comment
	attachments map[uuid.UUID]models.Attachment
	settings    *models.UserSettings
	blobs       map[string][]byte
	prefs       map[uuid.UUID]models.Preferences
	calls       []call

	// fail makes the named operation return the error
	fail map[string]error
	// gate, when set, holds every task update until it is closed
	gate chan struct{}
	// holds keeps calls of one operation waiting until released
	holds map[string]chan struct{}
}

func newFakeRemote() *fakeRemote {
	return &fakeRemote{
		tasks:       make(map[uuid.UUID]models.Task),
		comments:    make(map[uuid.UUID]models.Comment),
		attachments: make(map[uuid.UUID]models.Attachment),
		blobs:       make(map[string][]byte),
		prefs:       make(map[uuid.UUID]models.Preferences),
		fail:        make(map[string]error),
		holds:       make(map[string]chan struct{}),
	}
}

func (r *fakeRemote) gateway() Gateway {
	return Gateway{
		Tasks:       fakeTasks{r},
		Profiles:    fakeProfiles{r},
		Categories:  fakeCategories{r},
		Comments:    fakeComments{r},
		Attachments: fakeAttachments{r},
		Settings:    fakeSettings{r},
		Blobs:       fakeBlobs{r},
		Preferences: fakePrefs{r},
	}
}

func (r *fakeRemote) record(c call) error {
	r.mu.Lock()
	held := r.holds[c.Op]
	r.mu.Unlock()
	if held != nil {
		<-held
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = append(r.calls, c)
	return r.fail[c.Op]
}

func (r *fakeRemote) failOn(op string, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.fail[op] = err
}

// hold makes calls of op wait until release is called
func (r *fakeRemote) hold(op string) (release func()) {
	ch := make(chan struct{})
	r.mu.Lock()
	r.holds[op] = ch
	r.mu.Unlock()
	var once sync.Once
	return func() { once.Do(func() { close(ch) }) }
}

// callsTo returns the recorded calls of one operation
func (r *fakeRemote) callsTo(op string) []call {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []call
	for _, c := range r.calls {
		if c.Op == op {
			out = append(out, c)
		}
	}
	return out
}

func (r *fakeRemote) callCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.calls)
}

func notFound(what string, id uuid.UUID) error {
	return fmt.Errorf("%s %s: %w", what, id, database.ErrNotFound)
}

type fakeTasks struct{ r *fakeRemote }

var _ TaskGateway = fakeTasks{}

func (f fakeTasks) ListByProfile(_ context.Context, profileID uuid.UUID) ([]models.Task, error) {
	if err := f.r.record(call{Op: "tasks.list", ID: profileID}); err != nil {
		return nil, err
	}
	f.r.mu.Lock()
	defer f.r.mu.Unlock()
	var out []models.Task
	for _, t := range f.r.tasks {
		if t.ProfileID == profileID && t.ParentTaskID == nil {
			out = append(out, t.Clone())
		}
	}
	slices.SortFunc(out, func(a, b models.Task) int { return a.Order - b.Order })
	return out, nil
}

func (f fakeTasks) GetByID(_ context.Context, id uuid.UUID) (*models.Task, error) {
	if err := f.r.record(call{Op: "tasks.get", ID: id}); err != nil {
		return nil, err
	}
	f.r.mu.Lock()
	defer f.r.mu.Unlock()
	t, ok := f.r.tasks[id]
	if !ok {
		return nil, notFound("task", id)
	}
	c := t.Clone()
	return &c, nil
}

func (f fakeTasks) Create(_ context.Context, task *models.Task) error {
	if err := f.r.record(call{Op: "tasks.create", ID: task.ID, Task: task.Clone()}); err != nil {
		return err
	}
	f.r.mu.Lock()
	defer f.r.mu.Unlock()
	if task.ID == uuid.Nil {
		task.ID = uuid.New()
	}
	f.r.tasks[task.ID] = task.Clone()
	return nil
}

func (f fakeTasks) Update(_ context.Context, task *models.Task, fields ...models.TaskField) error {
	if gate := f.r.gate; gate != nil {
		<-gate
	}
	if err := f.r.record(call{Op: "tasks.update", ID: task.ID, Fields: slices.Clone(fields), Task: task.Clone()}); err != nil {
		return err
	}
	f.r.mu.Lock()
	defer f.r.mu.Unlock()
	stored, ok := f.r.tasks[task.ID]
	if !ok {
		return notFound("task", task.ID)
	}
	for _, field := range fields {
		copyTaskField(&stored, task, field)
	}
	f.r.tasks[task.ID] = stored
	return nil
}

func (f fakeTasks) Delete(_ context.Context, id uuid.UUID) error {
	if err := f.r.record(call{Op: "tasks.delete", ID: id}); err != nil {
		return err
	}
	f.r.mu.Lock()
	defer f.r.mu.Unlock()
	if _, ok := f.r.tasks[id]; !ok {
		return notFound("task", id)
	}
	delete(f.r.tasks, id)
	return nil
}

func (f fakeTasks) Restore(_ context.Context, task *models.Task) error {
	if err := f.r.record(call{Op: "tasks.restore", ID: task.ID, Task: task.Clone()}); err != nil {
		return err
	}
	f.r.mu.Lock()
	defer f.r.mu.Unlock()
	f.r.tasks[task.ID] = task.Clone()
	return nil
}

type fakeProfiles struct{ r *fakeRemote }

var _ ProfileGateway = fakeProfiles{}

func (f fakeProfiles) List(_ context.Context, userID uuid.UUID) ([]models.Profile, error) {
	if err := f.r.record(call{Op: "profiles.list", ID: userID}); err != nil {
		return nil, err
	}
	f.r.mu.Lock()
	defer f.r.mu.Unlock()
	return slices.Clone(f.r.profiles), nil
}

func (f fakeProfiles) Create(_ context.Context, p *models.Profile) error {
	if err := f.r.record(call{Op: "profiles.create"}); err != nil {
		return err
	}
	f.r.mu.Lock()
	defer f.r.mu.Unlock()
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	f.r.profiles = append(f.r.profiles, *p)
	return nil
}

func (f fakeProfiles) Update(_ context.Context, p *models.Profile) error {
	if err := f.r.record(call{Op: "profiles.update", ID: p.ID}); err != nil {
		return err
	}
	f.r.mu.Lock()
	defer f.r.mu.Unlock()
	for i := range f.r.profiles {
		if f.r.profiles[i].ID == p.ID {
			f.r.profiles[i] = *p
			return nil
		}
	}
	return notFound("profile", p.ID)
}

func (f fakeProfiles) Delete(_ context.Context, id uuid.UUID) error {
	if err := f.r.record(call{Op: "profiles.delete", ID: id}); err != nil {
		return err
	}
	f.r.mu.Lock()
	defer f.r.mu.Unlock()
	f.r.profiles = slices.DeleteFunc(f.r.profiles, func(p models.Profile) bool { return p.ID == id })
	return nil
}

type fakeCategories struct{ r *fakeRemote }

var _ CategoryGateway = fakeCategories{}

func (f fakeCategories) ListByProfile(_ context.Context, profileID uuid.UUID) ([]models.Category, error) {
	if err := f.r.record(call{Op: "categories.list", ID: profileID}); err != nil {
		return nil, err
	}
	f.r.mu.Lock()
	defer f.r.mu.Unlock()
	var out []models.Category
	for _, c := range f.r.categories {
		if c.ProfileID == profileID {
			out = append(out, c)
		}
	}
	return out, nil
}

func (f fakeCategories) Create(_ context.Context, c *models.Category) error {
	if err := f.r.record(call{Op: "categories.create"}); err != nil {
		return err
	}
	f.r.mu.Lock()
	defer f.r.mu.Unlock()
	if c.ID == uuid.Nil {
		c.ID = uuid.New()
	}
	f.r.categories = append(f.r.categories, *c)
	return nil
}

func (f fakeCategories) Update(_ context.Context, c *models.Category) error {
	return f.r.record(call{Op: "categories.update", ID: c.ID})
}

func (f fakeCategories) Delete(_ context.Context, id uuid.UUID) error {
	if err := f.r.record(call{Op: "categories.delete", ID: id}); err != nil {
		return err
	}
	f.r.mu.Lock()
	defer f.r.mu.Unlock()
	f.r.categories = slices.DeleteFunc(f.r.categories, func(c models.Category) bool { return c.ID == id })
	return nil
}

type fakeComments struct{ r *fakeRemote }

var _ CommentGateway = fakeComments{}

func (f fakeComments) ListByTask(_ context.Context, taskID uuid.UUID) ([]models.Comment, error) {
	if err := f.r.record(call{Op: "comments.list", ID: taskID}); err != nil {
		return nil, err
	}
	f.r.mu.Lock()
	defer f.r.mu.Unlock()
	var out []models.Comment
	for _, c := range f.r.comments {
		if c.TaskID == taskID {
			out = append(out, c.Clone())
		}
	}
	return out, nil
}

func (f fakeComments) Create(_ context.Context, c *models.Comment) error {
	if err := f.r.record(call{Op: "comments.create", ID: c.ID}); err != nil {
		return err
	}
	f.r.mu.Lock()
	defer f.r.mu.Unlock()
	stored := c.Clone()
	stored.Attachments = nil
	f.r.comments[c.ID] = stored
	return nil
}

func (f fakeComments) Update(_ context.Context, c *models.Comment) error {
	return f.r.record(call{Op: "comments.update", ID: c.ID})
}

func (f fakeComments) Delete(_ context.Context, id uuid.UUID) error {
	if err := f.r.record(call{Op: "comments.delete", ID: id}); err != nil {
		return err
	}
	f.r.mu.Lock()
	defer f.r.mu.Unlock()
	delete(f.r.comments, id)
	return nil
}

type fakeAttachments struct{ r *fakeRemote }

var _ AttachmentGateway = fakeAttachments{}

func (f fakeAttachments) ListByTask(_ context.Context, taskID uuid.UUID) ([]models.Attachment, error) {
	if err := f.r.record(call{Op: "attachments.list", ID: taskID}); err != nil {
		return nil, err
	}
	f.r.mu.Lock()
	defer f.r.mu.Unlock()
	var out []models.Attachment
	for _, a := range f.r.attachments {
		if a.TaskID != nil && *a.TaskID == taskID {
			out = append(out, a.Clone())
		}
	}
	return out, nil
}

func (f fakeAttachments) GetByID(_ context.Context, id uuid.UUID) (*models.Attachment, error) {
	f.r.mu.Lock()
	defer f.r.mu.Unlock()
	a, ok := f.r.attachments[id]
	if !ok {
		return nil, notFound("attachment", id)
	}
	return &a, nil
}

func (f fakeAttachments) Create(_ context.Context, a *models.Attachment) error {
	if err := f.r.record(call{Op: "attachments.create", ID: a.ID}); err != nil {
		return err
	}
	f.r.mu.Lock()
	defer f.r.mu.Unlock()
	f.r.attachments[a.ID] = a.Clone()
	return nil
}

func (f fakeAttachments) Delete(_ context.Context, id uuid.UUID) error {
	if err := f.r.record(call{Op: "attachments.delete", ID: id}); err != nil {
		return err
	}
	f.r.mu.Lock()
	defer f.r.mu.Unlock()
	delete(f.r.attachments, id)
	return nil
}

type fakeSettings struct{ r *fakeRemote }

var _ SettingsGateway = fakeSettings{}

func (f fakeSettings) Get(_ context.Context, userID uuid.UUID) (*models.UserSettings, error) {
	if err := f.r.record(call{Op: "settings.get", ID: userID}); err != nil {
		return nil, err
	}
	f.r.mu.Lock()
	defer f.r.mu.Unlock()
	if f.r.settings == nil {
		return nil, notFound("settings", userID)
	}
	s := *f.r.settings
	return &s, nil
}

func (f fakeSettings) Create(_ context.Context, s *models.UserSettings) error {
	if err := f.r.record(call{Op: "settings.create", ID: s.UserID}); err != nil {
		return err
	}
	f.r.mu.Lock()
	defer f.r.mu.Unlock()
	cp := *s
	f.r.settings = &cp
	return nil
}

func (f fakeSettings) Update(_ context.Context, s *models.UserSettings) error {
	if err := f.r.record(call{Op: "settings.update", ID: s.UserID}); err != nil {
		return err
	}
	f.r.mu.Lock()
	defer f.r.mu.Unlock()
	cp := *s
	f.r.settings = &cp
	return nil
}

type fakeBlobs struct{ r *fakeRemote }

var _ BlobStore = fakeBlobs{}

func (f fakeBlobs) Upload(_ context.Context, path string, body io.Reader, _ int64, _ string) error {
	if err := f.r.record(call{Op: "blobs.upload"}); err != nil {
		return err
	}
	data, err := io.ReadAll(body)
	if err != nil {
		return err
	}
	f.r.mu.Lock()
	defer f.r.mu.Unlock()
	f.r.blobs[path] = data
	return nil
}

func (f fakeBlobs) Download(_ context.Context, path string) (io.ReadCloser, error) {
	f.r.mu.Lock()
	defer f.r.mu.Unlock()
	data, ok := f.r.blobs[path]
	if !ok {
		return nil, fmt.Errorf("blob %s not found", path)
	}
	return io.NopCloser(bytes.NewReader(data)), nil
}

func (f fakeBlobs) Remove(_ context.Context, path string) error {
	if err := f.r.record(call{Op: "blobs.remove"}); err != nil {
		return err
	}
	f.r.mu.Lock()
	defer f.r.mu.Unlock()
	delete(f.r.blobs, path)
	return nil
}

func (f fakeBlobs) SignedURL(_ context.Context, path string, ttl time.Duration) (string, error) {
	return fmt.Sprintf("https://blobs.test/%s?ttl=%d", path, int(ttl.Seconds())), nil
}

type fakePrefs struct{ r *fakeRemote }

var _ PreferenceCache = fakePrefs{}

func (f fakePrefs) Load(_ context.Context, userID uuid.UUID) (models.Preferences, error) {
	f.r.mu.Lock()
	defer f.r.mu.Unlock()
	return f.r.prefs[userID], nil
}

func (f fakePrefs) Save(_ context.Context, userID uuid.UUID, prefs models.Preferences) error {
	f.r.mu.Lock()
	defer f.r.mu.Unlock()
	f.r.prefs[userID] = prefs
	return nil
}

// testClock is fixed at 2024-03-15 10:00 UTC
var testClock = FixedClock{At: time.Date(2024, time.March, 15, 10, 0, 0, 0, time.UTC)}

// fixture is a loaded session over a fake remote with one profile
type fixture struct {
	remote  *fakeRemote
	session *Session
	userID  uuid.UUID
	profile models.Profile
}

func newFixture(t *testing.T, tasks ...models.Task) *fixture {
	t.Helper()
	r := newFakeRemote()
	userID := uuid.New()
	profile := models.Profile{ID: uuid.New(), UserID: userID, Name: "Main"}
	r.profiles = []models.Profile{profile}
	r.settings = models.DefaultUserSettings(userID)
	r.settings.DefaultProfileID = &profile.ID
	for _, task := range tasks {
		task.ProfileID = profile.ID
		r.tasks[task.ID] = task
	}

	s := NewSession(userID, r.gateway(), Options{
		Clock:        testClock,
		EditDebounce: 100 * time.Millisecond,
	})
	if err := s.Load(context.Background()); err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	t.Cleanup(s.Close)
	r.mu.Lock()
	r.calls = nil
	r.mu.Unlock()
	return &fixture{remote: r, session: s, userID: userID, profile: profile}
}

func date(y int, m time.Month, d int) *civil.Date {
	return &civil.Date{Year: y, Month: m, Day: d}
}

func newTask(title string, opts ...func(*models.Task)) models.Task {
	t := models.Task{
		ID:       uuid.New(),
		Title:    title,
		Priority: models.PriorityMedium,
		Status:   models.TaskStatusPending,
	}
	for _, o := range opts {
		o(&t)
	}
	return t
}

func withDue(d *civil.Date) func(*models.Task) {
	return func(t *models.Task) { t.DueDate = d }
}

func withStatus(s models.TaskStatus) func(*models.Task) {
	return func(t *models.Task) { t.Status = s }
}

func withPriority(p models.Priority) func(*models.Task) {
	return func(t *models.Task) { t.Priority = p }
}
