package board

import (
	"slices"
	"sync"

	"github.com/google/uuid"

	"github.com/benvon/taskboard/internal/models"
)

// NewTaskModal is the state of the task creation dialog
type NewTaskModal struct {
	Open   bool              `json:"open"`
	Column models.TaskStatus `json:"column,omitempty"`
}

// Store is the in-memory state of one user's board. Every read returns
// copies and every write goes through a method, so callers never share
// memory with the store.
type Store struct {
	mu sync.Mutex

	tasks      []models.Task
	profiles   []models.Profile
	categories []models.Category
	settings   *models.UserSettings
	current    *uuid.UUID

	filters   Criteria
	view      models.ViewMode
	selected  map[uuid.UUID]struct{}
	panelTask *uuid.UUID
	comments  *uuid.UUID
	newTask   NewTaskModal
	loading   bool
}

// NewStore returns an empty store in columns view
func NewStore() *Store {
	return &Store{
		view:     models.ViewModeColumns,
		selected: make(map[uuid.UUID]struct{}),
	}
}

// Tasks returns a deep copy of every task in store order
func (s *Store) Tasks() []models.Task {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]models.Task, len(s.tasks))
	for i, t := range s.tasks {
		out[i] = t.Clone()
	}
	return out
}

// Task returns a copy of the task with the given id
func (s *Store) Task(id uuid.UUID) (models.Task, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if i := s.indexOf(id); i >= 0 {
		return s.tasks[i].Clone(), true
	}
	return models.Task{}, false
}

// SetTasks replaces the task list and prunes the selection to tasks that still exist
func (s *Store) SetTasks(tasks []models.Task) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tasks = make([]models.Task, len(tasks))
	for i, t := range tasks {
		s.tasks[i] = t.Clone()
	}
	for id := range s.selected {
		if s.indexOf(id) < 0 {
			delete(s.selected, id)
		}
	}
}

// PutTask replaces the task with the same id, or appends it
func (s *Store) PutTask(t models.Task) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t = t.Clone()
	s.linkCategory(&t)
	if i := s.indexOf(t.ID); i >= 0 {
		s.tasks[i] = t
		return
	}
	s.tasks = append(s.tasks, t)
}

// UpdateTask applies fn to the stored task and returns the task as it was
// before the change. It reports false when the task is not in the store.
func (s *Store) UpdateTask(id uuid.UUID, fn func(*models.Task)) (models.Task, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	i := s.indexOf(id)
	if i < 0 {
		return models.Task{}, false
	}
	before := s.tasks[i].Clone()
	fn(&s.tasks[i])
	s.linkCategory(&s.tasks[i])
	return before, true
}

// RemoveTask deletes a task and returns it with the index it occupied
func (s *Store) RemoveTask(id uuid.UUID) (models.Task, int, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	i := s.indexOf(id)
	if i < 0 {
		return models.Task{}, -1, false
	}
	removed := s.tasks[i]
	s.tasks = slices.Delete(s.tasks, i, i+1)
	delete(s.selected, id)
	return removed, i, true
}

// InsertTaskAt puts t back at index i (clamped to the list bounds). A task
// with the same id already present is replaced in place instead.
func (s *Store) InsertTaskAt(t models.Task, i int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t = t.Clone()
	s.linkCategory(&t)
	if j := s.indexOf(t.ID); j >= 0 {
		s.tasks[j] = t
		return
	}
	i = max(0, min(i, len(s.tasks)))
	s.tasks = slices.Insert(s.tasks, i, t)
}

// linkCategory points a task's category relation at the stored category.
// Callers hold the lock.
func (s *Store) linkCategory(t *models.Task) {
	t.Category = nil
	if t.CategoryID == nil {
		return
	}
	if i := slices.IndexFunc(s.categories, func(c models.Category) bool { return c.ID == *t.CategoryID }); i >= 0 {
		c := s.categories[i]
		t.Category = &c
	}
}

func (s *Store) indexOf(id uuid.UUID) int {
	return slices.IndexFunc(s.tasks, func(t models.Task) bool { return t.ID == id })
}

// Profiles returns the user's profiles in display order
func (s *Store) Profiles() []models.Profile {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Clone(s.profiles)
}

// SetProfiles replaces the profile list
func (s *Store) SetProfiles(p []models.Profile) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.profiles = slices.Clone(p)
}

// PutProfile replaces or appends a profile
func (s *Store) PutProfile(p models.Profile) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if i := slices.IndexFunc(s.profiles, func(x models.Profile) bool { return x.ID == p.ID }); i >= 0 {
		s.profiles[i] = p
		return
	}
	s.profiles = append(s.profiles, p)
}

// RemoveProfile deletes a profile from the list
func (s *Store) RemoveProfile(id uuid.UUID) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.profiles = slices.DeleteFunc(s.profiles, func(x models.Profile) bool { return x.ID == id })
}

// CurrentProfile returns the active profile id
func (s *Store) CurrentProfile() (uuid.UUID, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.current == nil {
		return uuid.Nil, false
	}
	return *s.current, true
}

// SetCurrentProfile sets the active profile id
func (s *Store) SetCurrentProfile(id uuid.UUID) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.current = &id
}

// Categories returns the current profile's categories
func (s *Store) Categories() []models.Category {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Clone(s.categories)
}

// Category looks a category up by id
func (s *Store) Category(id uuid.UUID) (models.Category, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if i := slices.IndexFunc(s.categories, func(c models.Category) bool { return c.ID == id }); i >= 0 {
		return s.categories[i], true
	}
	return models.Category{}, false
}

// SetCategories replaces the category list and relinks every task
func (s *Store) SetCategories(c []models.Category) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.categories = slices.Clone(c)
	for i := range s.tasks {
		s.linkCategory(&s.tasks[i])
	}
}

// PutCategory replaces or appends a category
func (s *Store) PutCategory(c models.Category) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if i := slices.IndexFunc(s.categories, func(x models.Category) bool { return x.ID == c.ID }); i >= 0 {
		s.categories[i] = c
	} else {
		s.categories = append(s.categories, c)
	}
	for i := range s.tasks {
		if s.tasks[i].CategoryID != nil && *s.tasks[i].CategoryID == c.ID {
			s.linkCategory(&s.tasks[i])
		}
	}
}

// RemoveCategory deletes a category, detaches it from tasks and clears a
// category filter that pointed at it.
func (s *Store) RemoveCategory(id uuid.UUID) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.categories = slices.DeleteFunc(s.categories, func(x models.Category) bool { return x.ID == id })
	for i := range s.tasks {
		if s.tasks[i].CategoryID != nil && *s.tasks[i].CategoryID == id {
			s.tasks[i].CategoryID = nil
			s.tasks[i].Category = nil
		}
	}
	if s.filters.CategoryID != nil && *s.filters.CategoryID == id {
		s.filters.CategoryID = nil
	}
}

// Settings returns a copy of the user settings, nil before the first load
func (s *Store) Settings() *models.UserSettings {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.settings == nil {
		return nil
	}
	cp := *s.settings
	cp.ColumnsOrder = slices.Clone(s.settings.ColumnsOrder)
	return &cp
}

// SetSettings replaces the user settings
func (s *Store) SetSettings(settings *models.UserSettings) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if settings == nil {
		s.settings = nil
		return
	}
	cp := *settings
	cp.ColumnsOrder = slices.Clone(settings.ColumnsOrder)
	s.settings = &cp
}

// Filters returns the active filter criteria
func (s *Store) Filters() Criteria {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.filters
}

// SetFilters replaces the filter criteria
func (s *Store) SetFilters(c Criteria) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.filters = c
}

// View returns the active view mode
func (s *Store) View() models.ViewMode {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.view
}

// SetView sets the view mode
func (s *Store) SetView(v models.ViewMode) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.view = v
}

// ToggleSelected flips a task's membership in the multi-selection
func (s *Store) ToggleSelected(id uuid.UUID) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.selected[id]; ok {
		delete(s.selected, id)
		return false
	}
	if s.indexOf(id) < 0 {
		return false
	}
	s.selected[id] = struct{}{}
	return true
}

// SelectAll selects the given tasks
func (s *Store) SelectAll(ids []uuid.UUID) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, id := range ids {
		if s.indexOf(id) >= 0 {
			s.selected[id] = struct{}{}
		}
	}
}

// ClearSelection empties the multi-selection
func (s *Store) ClearSelection() {
	s.mu.Lock()
	defer s.mu.Unlock()
	clear(s.selected)
}

// Selected returns the selected task ids in store order
func (s *Store) Selected() []uuid.UUID {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]uuid.UUID, 0, len(s.selected))
	for _, t := range s.tasks {
		if _, ok := s.selected[t.ID]; ok {
			out = append(out, t.ID)
		}
	}
	return out
}

// ModalState is a snapshot of the open dialogs
type ModalState struct {
	TaskPanel     *uuid.UUID   `json:"task_panel,omitempty"`
	CommentsModal *uuid.UUID   `json:"comments_modal,omitempty"`
	NewTask       NewTaskModal `json:"new_task"`
}

// Modals returns which dialogs are open
func (s *Store) Modals() ModalState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return ModalState{TaskPanel: copyID(s.panelTask), CommentsModal: copyID(s.comments), NewTask: s.newTask}
}

// OpenTaskPanel shows the detail panel for a task; nil closes it
func (s *Store) OpenTaskPanel(id *uuid.UUID) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.panelTask = copyID(id)
}

// OpenComments shows the comments dialog for a task; nil closes it
func (s *Store) OpenComments(id *uuid.UUID) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.comments = copyID(id)
}

// SetNewTaskModal opens or closes the creation dialog
func (s *Store) SetNewTaskModal(m NewTaskModal) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !m.Open {
		m.Column = ""
	}
	s.newTask = m
}

// Loading reports whether a full reload is in progress
func (s *Store) Loading() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.loading
}

// SetLoading marks a full reload as in progress or finished
func (s *Store) SetLoading(v bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.loading = v
}

func copyID(id *uuid.UUID) *uuid.UUID {
	if id == nil {
		return nil
	}
	v := *id
	return &v
}
