package board

import (
	"context"
	"fmt"
	"slices"
	"strings"
	"time"

	"cloud.google.com/go/civil"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/benvon/taskboard/internal/models"
)

// NewTask is the input of the task creation dialog
type NewTask struct {
	Title             string
	Description       *string
	CategoryID        *uuid.UUID
	Priority          models.Priority
	DueDate           *civil.Date
	DueTime           *civil.Time
	IsRecurring       bool
	RecurrencePattern *models.RecurrencePattern
	// Column is the column the dialog was opened from. Opening from today
	// pre-fills today's date when no date was picked.
	Column   models.TaskStatus
	Subtasks []string
	Files    []Upload
}

// CreateTask inserts a task, then its subtasks and attachments. A failed
// sub-step is reported but does not undo the task itself.
func (s *Session) CreateTask(ctx context.Context, in NewTask) (models.Task, error) {
	profileID, err := s.currentProfile()
	if err != nil {
		return models.Task{}, err
	}
	title := strings.TrimSpace(in.Title)
	if title == "" {
		return models.Task{}, invalid("title is required")
	}
	if in.Priority == "" {
		in.Priority = models.PriorityMedium
	}
	if err := s.validateTaskValues(in.Priority, models.TaskStatusPending, in.CategoryID, in.RecurrencePattern); err != nil {
		return models.Task{}, err
	}
	for _, f := range in.Files {
		if err := checkUpload(f); err != nil {
			return models.Task{}, err
		}
	}

	dueDate := in.DueDate
	if dueDate == nil && in.Column == models.TaskStatusToday {
		today := s.clock.Today()
		dueDate = &today
	}

	task := models.Task{
		ID:                uuid.New(),
		ProfileID:         profileID,
		CategoryID:        in.CategoryID,
		Title:             title,
		Description:       trimmedOrNil(in.Description),
		Priority:          in.Priority,
		Status:            models.TaskStatusPending,
		DueDate:           dueDate,
		DueTime:           in.DueTime,
		Order:             len(s.store.Tasks()),
		IsRecurring:       in.IsRecurring,
		RecurrencePattern: in.RecurrencePattern,
	}
	if !task.IsRecurring {
		task.RecurrencePattern = nil
	}

	if err := s.gw.Tasks.Create(ctx, &task); err != nil {
		s.logger.Error("task_create_failed", zap.Error(err))
		s.notifyError("Could not create the task")
		return models.Task{}, err
	}

	for i, raw := range in.Subtasks {
		subTitle := strings.TrimSpace(raw)
		if subTitle == "" {
			continue
		}
		sub := newSubtask(task, subTitle, i)
		if err := s.gw.Tasks.Create(ctx, &sub); err != nil {
			s.logger.Warn("subtask_create_failed", zap.String("task_id", task.ID.String()), zap.Error(err))
			s.notifyError(fmt.Sprintf("Could not add subtask %q", subTitle))
			continue
		}
		task.Subtasks = append(task.Subtasks, sub)
	}

	for _, f := range in.Files {
		a, err := s.storeAttachment(ctx, f, &task.ID, nil)
		if err != nil {
			s.logger.Warn("attachment_create_failed", zap.String("task_id", task.ID.String()), zap.Error(err))
			s.notifyError(fmt.Sprintf("Could not attach %s", f.Name))
			continue
		}
		task.Attachments = append(task.Attachments, a)
	}

	s.store.PutTask(task)
	s.store.SetNewTaskModal(NewTaskModal{})
	s.notifySuccess("Task created")
	created, _ := s.store.Task(task.ID)
	return created, nil
}

// TaskPatch carries new values for the listed fields; other fields of
// Values are ignored.
type TaskPatch struct {
	Fields []models.TaskField
	Values models.Task
}

// EditTask applies a field edit at once and schedules it to be persisted
// after the debounce interval. Edits to the same task within the interval
// are sent together.
func (s *Session) EditTask(ctx context.Context, id uuid.UUID, patch TaskPatch) (models.Task, error) {
	if len(patch.Fields) == 0 {
		return models.Task{}, invalid("nothing to update")
	}
	v := patch.Values
	fields := slices.Clone(patch.Fields)
	for _, f := range fields {
		switch f {
		case models.TaskFieldTitle:
			v.Title = strings.TrimSpace(v.Title)
			if v.Title == "" {
				return models.Task{}, invalid("title is required")
			}
		case models.TaskFieldPriority:
			if err := s.validateTaskValues(v.Priority, "", nil, nil); err != nil {
				return models.Task{}, err
			}
		case models.TaskFieldStatus:
			if err := s.validateTaskValues("", v.Status, nil, nil); err != nil {
				return models.Task{}, err
			}
		case models.TaskFieldCategoryID:
			if err := s.validateTaskValues("", "", v.CategoryID, nil); err != nil {
				return models.Task{}, err
			}
		case models.TaskFieldRecurrencePattern:
			if err := s.validateTaskValues("", "", nil, v.RecurrencePattern); err != nil {
				return models.Task{}, err
			}
		case models.TaskFieldDescription, models.TaskFieldDueDate, models.TaskFieldDueTime,
			models.TaskFieldCompletedAt, models.TaskFieldOrder, models.TaskFieldIsRecurring:
		default:
			return models.Task{}, invalid("unknown field %q", f)
		}
	}
	statusEdit := slices.Contains(fields, models.TaskFieldStatus)
	copied := fields
	if statusEdit && !slices.Contains(fields, models.TaskFieldCompletedAt) {
		fields = append(fields, models.TaskFieldCompletedAt)
	}

	now := s.clock.Now()
	before, ok := s.store.UpdateTask(id, func(t *models.Task) {
		for _, f := range copied {
			copyTaskField(t, &v, f)
		}
		if statusEdit {
			settleCompletedAt(t, now)
		}
	})
	if !ok {
		return models.Task{}, fmt.Errorf("task %s: %w", id, ErrTaskNotFound)
	}

	s.edits.Schedule(id, before, fields, func(snapshot models.Task, fields []models.TaskField) {
		s.persistEdit(ctx, id, snapshot, fields)
	})

	updated, _ := s.store.Task(id)
	return updated, nil
}

func (s *Session) persistEdit(ctx context.Context, id uuid.UUID, snapshot models.Task, fields []models.TaskField) {
	_, err := Run(ctx, s.exec, Mutation[models.Task]{
		Name:     "edit_task",
		Snapshot: func() (models.Task, error) { return snapshot, nil },
		Remote: func(ctx context.Context) error {
			current, ok := s.store.Task(id)
			if !ok {
				return nil
			}
			return s.gw.Tasks.Update(ctx, &current, fields...)
		},
		Restore: func(snap models.Task) {
			s.store.UpdateTask(id, func(t *models.Task) {
				for _, f := range fields {
					copyTaskField(t, &snap, f)
				}
			})
		},
		FailureMessage: "Could not save your changes",
	})
	if err != nil {
		s.logger.Error("task_edit_not_persisted", zap.Error(err))
	}
}

// ToggleComplete flips a task between completed and pending. Completing
// raises a notification whose undo restores the previous status.
func (s *Session) ToggleComplete(ctx context.Context, id uuid.UUID) (*Pending, error) {
	var prev models.Task
	return Run(ctx, s.exec, Mutation[models.Task]{
		Name: "toggle_complete",
		Snapshot: func() (models.Task, error) {
			t, ok := s.store.Task(id)
			if !ok {
				return models.Task{}, fmt.Errorf("task %s: %w", id, ErrTaskNotFound)
			}
			prev = t
			return t, nil
		},
		Apply: func(snap models.Task) {
			now := s.clock.Now()
			s.store.UpdateTask(id, func(t *models.Task) {
				if snap.Status != models.TaskStatusCompleted {
					t.Status = models.TaskStatusCompleted
					t.CompletedAt = &now
				} else {
					t.Status = models.TaskStatusPending
					t.CompletedAt = nil
				}
			})
		},
		Remote: func(ctx context.Context) error {
			current, ok := s.store.Task(id)
			if !ok {
				return fmt.Errorf("task %s: %w", id, ErrTaskNotFound)
			}
			return s.gw.Tasks.Update(ctx, &current, models.TaskFieldStatus, models.TaskFieldCompletedAt)
		},
		Restore: s.restoreTask,
		OnSuccess: func() *Notification {
			if prev.Status == models.TaskStatusCompleted {
				return nil
			}
			status, completedAt := prev.Status, prev.CompletedAt
			undoID := s.registerUndo(func(ctx context.Context) (*Pending, error) {
				return s.setCompletion(ctx, id, status, completedAt)
			})
			return &Notification{Level: LevelSuccess, Message: "Task completed", UndoID: &undoID}
		},
		FailureMessage: "Could not update the task",
	})
}

// setCompletion writes a status and completed-at pair; it backs the undo of
// ToggleComplete.
func (s *Session) setCompletion(ctx context.Context, id uuid.UUID, status models.TaskStatus, completedAt *time.Time) (*Pending, error) {
	return Run(ctx, s.exec, Mutation[models.Task]{
		Name: "undo_complete",
		Snapshot: func() (models.Task, error) {
			t, ok := s.store.Task(id)
			if !ok {
				return models.Task{}, fmt.Errorf("task %s: %w", id, ErrTaskNotFound)
			}
			return t, nil
		},
		Apply: func(models.Task) {
			s.store.UpdateTask(id, func(t *models.Task) {
				t.Status = status
				t.CompletedAt = completedAt
			})
		},
		Remote: func(ctx context.Context) error {
			current, ok := s.store.Task(id)
			if !ok {
				return fmt.Errorf("task %s: %w", id, ErrTaskNotFound)
			}
			return s.gw.Tasks.Update(ctx, &current, models.TaskFieldStatus, models.TaskFieldCompletedAt)
		},
		Restore:        s.restoreTask,
		FailureMessage: "Could not undo",
	})
}

func (s *Session) restoreTask(snap models.Task) {
	s.store.UpdateTask(snap.ID, func(t *models.Task) { *t = snap.Clone() })
}

// MoveTask persists a committed drop as one update of status, due date and
// completed-at.
func (s *Session) MoveTask(ctx context.Context, m Move) (*Pending, error) {
	return Run(ctx, s.exec, Mutation[models.Task]{
		Name: "move_task",
		Snapshot: func() (models.Task, error) {
			t, ok := s.store.Task(m.TaskID)
			if !ok {
				return models.Task{}, fmt.Errorf("task %s: %w", m.TaskID, ErrTaskNotFound)
			}
			return t, nil
		},
		Apply: func(models.Task) {
			s.store.UpdateTask(m.TaskID, m.ApplyTo)
		},
		Remote: func(ctx context.Context) error {
			moved := models.Task{ID: m.TaskID}
			m.ApplyTo(&moved)
			return s.gw.Tasks.Update(ctx, &moved, MoveFields...)
		},
		Restore:        s.restoreTask,
		FailureMessage: "Could not move the task",
	})
}

// DeleteTask removes a task at once. The success notification carries an
// undo that restores the task with its original id and relations.
func (s *Session) DeleteTask(ctx context.Context, id uuid.UUID) (*Pending, error) {
	type removed struct {
		task  models.Task
		index int
	}
	var full models.Task

	return Run(ctx, s.exec, Mutation[removed]{
		Name: "delete_task",
		Snapshot: func() (removed, error) {
			t, ok := s.store.Task(id)
			if !ok {
				return removed{}, fmt.Errorf("task %s: %w", id, ErrTaskNotFound)
			}
			idx := slices.IndexFunc(s.store.Tasks(), func(x models.Task) bool { return x.ID == id })
			return removed{task: t, index: idx}, nil
		},
		Apply: func(removed) {
			s.store.RemoveTask(id)
			if m := s.store.Modals(); m.TaskPanel != nil && *m.TaskPanel == id {
				s.store.OpenTaskPanel(nil)
			}
		},
		Remote: func(ctx context.Context) error {
			t, err := s.gw.Tasks.GetByID(ctx, id)
			if err != nil {
				return err
			}
			if t.Comments, err = s.gw.Comments.ListByTask(ctx, id); err != nil {
				return err
			}
			if t.Attachments, err = s.gw.Attachments.ListByTask(ctx, id); err != nil {
				return err
			}
			full = *t
			return s.gw.Tasks.Delete(ctx, id)
		},
		Restore: func(r removed) {
			if current, ok := s.store.CurrentProfile(); ok && current == r.task.ProfileID {
				s.store.InsertTaskAt(r.task, r.index)
			}
		},
		OnSuccess: func() *Notification {
			restored := full.Clone()
			undoID := s.registerUndo(func(ctx context.Context) (*Pending, error) {
				return s.restoreDeleted(ctx, restored)
			})
			return &Notification{Level: LevelSuccess, Message: "Task deleted", UndoID: &undoID}
		},
		FailureMessage: "Could not delete the task",
	})
}

func (s *Session) restoreDeleted(ctx context.Context, task models.Task) (*Pending, error) {
	return Run(ctx, s.exec, Mutation[models.Task]{
		Name:     "restore_task",
		Snapshot: func() (models.Task, error) { return task, nil },
		Apply: func(t models.Task) {
			if current, ok := s.store.CurrentProfile(); ok && current == t.ProfileID {
				s.store.PutTask(t)
			}
		},
		Remote: func(ctx context.Context) error {
			restored := task.Clone()
			return s.gw.Tasks.Restore(ctx, &restored)
		},
		Restore: func(t models.Task) {
			s.store.RemoveTask(t.ID)
		},
		OnSuccess: func() *Notification {
			return &Notification{Level: LevelSuccess, Message: "Task restored"}
		},
		FailureMessage: "Could not restore the task",
	})
}

func (s *Session) validateTaskValues(p models.Priority, st models.TaskStatus, categoryID *uuid.UUID, rp *models.RecurrencePattern) error {
	if p != "" && p != models.PriorityLow && p != models.PriorityMedium && p != models.PriorityHigh {
		return invalid("unknown priority %q", p)
	}
	if st != "" && !st.Valid() {
		return invalid("unknown status %q", st)
	}
	if categoryID != nil {
		if _, ok := s.store.Category(*categoryID); !ok {
			return invalid("unknown category %s", categoryID)
		}
	}
	if rp != nil {
		switch rp.Type {
		case models.RecurrenceDaily, models.RecurrenceWeekdays, models.RecurrenceWeekly,
			models.RecurrenceMonthly, models.RecurrenceCustom:
		default:
			return invalid("unknown recurrence type %q", rp.Type)
		}
		for _, d := range rp.DaysOfWeek {
			if d < 0 || d > 6 {
				return invalid("day of week %d out of range", d)
			}
		}
		if rp.DayOfMonth != nil && (*rp.DayOfMonth < 1 || *rp.DayOfMonth > 31) {
			return invalid("day of month %d out of range", *rp.DayOfMonth)
		}
	}
	return nil
}

// settleCompletedAt stamps a completed task that has no completion time and
// clears the time on tasks that are neither completed nor archived
func settleCompletedAt(t *models.Task, now time.Time) {
	switch t.Status {
	case models.TaskStatusCompleted:
		if t.CompletedAt == nil {
			t.CompletedAt = &now
		}
	case models.TaskStatusArchived:
	default:
		t.CompletedAt = nil
	}
}

func copyTaskField(dst, src *models.Task, f models.TaskField) {
	c := src.Clone()
	switch f {
	case models.TaskFieldTitle:
		dst.Title = c.Title
	case models.TaskFieldDescription:
		dst.Description = c.Description
	case models.TaskFieldCategoryID:
		dst.CategoryID = c.CategoryID
	case models.TaskFieldPriority:
		dst.Priority = c.Priority
	case models.TaskFieldStatus:
		dst.Status = c.Status
	case models.TaskFieldDueDate:
		dst.DueDate = c.DueDate
	case models.TaskFieldDueTime:
		dst.DueTime = c.DueTime
	case models.TaskFieldCompletedAt:
		dst.CompletedAt = c.CompletedAt
	case models.TaskFieldOrder:
		dst.Order = c.Order
	case models.TaskFieldIsRecurring:
		dst.IsRecurring = c.IsRecurring
	case models.TaskFieldRecurrencePattern:
		dst.RecurrencePattern = c.RecurrencePattern
	}
}

func trimmedOrNil(s *string) *string {
	if s == nil {
		return nil
	}
	v := strings.TrimSpace(*s)
	if v == "" {
		return nil
	}
	return &v
}
