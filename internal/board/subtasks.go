package board

import (
	"context"
	"fmt"
	"slices"
	"strings"

	"github.com/google/uuid"

	"github.com/benvon/taskboard/internal/models"
)

// newSubtask builds a child of parent. Ids are generated here so the
// optimistic entry and the inserted row agree.
func newSubtask(parent models.Task, title string, order int) models.Task {
	return models.Task{
		ID:           uuid.New(),
		ProfileID:    parent.ProfileID,
		ParentTaskID: &parent.ID,
		Title:        title,
		Priority:     models.PriorityMedium,
		Status:       models.TaskStatusPending,
		Order:        order,
	}
}

// subtaskMutation runs a change of one subtask of parentID. A failed call
// puts only that subtask back as it was.
func (s *Session) subtaskMutation(ctx context.Context, name string, parentID, id uuid.UUID,
	apply func([]models.Task) []models.Task, remote func(ctx context.Context) error, failure string) (*Pending, error) {
	return Run(ctx, s.exec, Mutation[entry[models.Task]]{
		Name: name,
		Snapshot: func() (entry[models.Task], error) {
			t, ok := s.store.Task(parentID)
			if !ok {
				return entry[models.Task]{}, fmt.Errorf("task %s: %w", parentID, ErrTaskNotFound)
			}
			return entryOf(t.Subtasks, id, idOfTask), nil
		},
		Apply: func(entry[models.Task]) {
			s.store.UpdateTask(parentID, func(t *models.Task) { t.Subtasks = apply(t.Subtasks) })
		},
		Remote: remote,
		Restore: func(e entry[models.Task]) {
			e.item = e.item.Clone()
			s.store.UpdateTask(parentID, func(t *models.Task) { t.Subtasks = putBack(t.Subtasks, id, e, idOfTask) })
		},
		FailureMessage: failure,
	})
}

func (s *Session) subtask(parentID, id uuid.UUID) (models.Task, error) {
	parent, ok := s.store.Task(parentID)
	if !ok {
		return models.Task{}, fmt.Errorf("task %s: %w", parentID, ErrTaskNotFound)
	}
	i := slices.IndexFunc(parent.Subtasks, func(t models.Task) bool { return t.ID == id })
	if i < 0 {
		return models.Task{}, fmt.Errorf("subtask %s: %w", id, ErrTaskNotFound)
	}
	return parent.Subtasks[i], nil
}

// AddSubtask appends a subtask to a task
func (s *Session) AddSubtask(ctx context.Context, parentID uuid.UUID, title string) (*Pending, models.Task, error) {
	title = strings.TrimSpace(title)
	if title == "" {
		return nil, models.Task{}, invalid("title is required")
	}
	parent, ok := s.store.Task(parentID)
	if !ok {
		return nil, models.Task{}, fmt.Errorf("task %s: %w", parentID, ErrTaskNotFound)
	}
	if parent.ParentTaskID != nil {
		return nil, models.Task{}, invalid("subtasks cannot be nested")
	}
	sub := newSubtask(parent, title, len(parent.Subtasks))
	sub.CreatedAt = s.clock.Now()
	sub.UpdatedAt = sub.CreatedAt

	p, err := s.subtaskMutation(ctx, "add_subtask", parentID, sub.ID,
		func(list []models.Task) []models.Task { return append(list, sub.Clone()) },
		func(ctx context.Context) error {
			row := sub.Clone()
			return s.gw.Tasks.Create(ctx, &row)
		},
		"Could not add the subtask",
	)
	return p, sub, err
}

// RenameSubtask changes a subtask's title
func (s *Session) RenameSubtask(ctx context.Context, parentID, id uuid.UUID, title string) (*Pending, error) {
	title = strings.TrimSpace(title)
	if title == "" {
		return nil, invalid("title is required")
	}
	if _, err := s.subtask(parentID, id); err != nil {
		return nil, err
	}
	return s.subtaskMutation(ctx, "edit_subtask", parentID, id,
		func(list []models.Task) []models.Task {
			for i := range list {
				if list[i].ID == id {
					list[i].Title = title
				}
			}
			return list
		},
		func(ctx context.Context) error {
			return s.gw.Tasks.Update(ctx, &models.Task{ID: id, Title: title}, models.TaskFieldTitle)
		},
		"Could not update the subtask",
	)
}

// ToggleSubtask flips a subtask between completed and pending
func (s *Session) ToggleSubtask(ctx context.Context, parentID, id uuid.UUID) (*Pending, error) {
	sub, err := s.subtask(parentID, id)
	if err != nil {
		return nil, err
	}
	next := models.Task{ID: id, Status: models.TaskStatusCompleted}
	if sub.Status == models.TaskStatusCompleted {
		next.Status = models.TaskStatusPending
	} else {
		now := s.clock.Now()
		next.CompletedAt = &now
	}
	return s.subtaskMutation(ctx, "toggle_subtask", parentID, id,
		func(list []models.Task) []models.Task {
			for i := range list {
				if list[i].ID == id {
					list[i].Status = next.Status
					list[i].CompletedAt = next.CompletedAt
				}
			}
			return list
		},
		func(ctx context.Context) error {
			row := next.Clone()
			return s.gw.Tasks.Update(ctx, &row, models.TaskFieldStatus, models.TaskFieldCompletedAt)
		},
		"Could not update the subtask",
	)
}

// DeleteSubtask removes a subtask
func (s *Session) DeleteSubtask(ctx context.Context, parentID, id uuid.UUID) (*Pending, error) {
	if _, err := s.subtask(parentID, id); err != nil {
		return nil, err
	}
	return s.subtaskMutation(ctx, "delete_subtask", parentID, id,
		func(list []models.Task) []models.Task {
			return slices.DeleteFunc(list, func(t models.Task) bool { return t.ID == id })
		},
		func(ctx context.Context) error { return s.gw.Tasks.Delete(ctx, id) },
		"Could not delete the subtask",
	)
}
