package board

import (
	"strings"

	"cloud.google.com/go/civil"
	"github.com/google/uuid"

	"github.com/benvon/taskboard/internal/models"
)

// Criteria narrows the visible tasks. Zero-valued fields match everything
type Criteria struct {
	Search       string           `json:"search"`
	CategoryID   *uuid.UUID       `json:"category_id,omitempty"`
	Priority     *models.Priority `json:"priority,omitempty"`
	SelectedDate *civil.Date      `json:"selected_date,omitempty"`
}

// Matches reports whether t satisfies every active criterion
func (c Criteria) Matches(t models.Task) bool {
	if c.Search != "" {
		q := strings.ToLower(c.Search)
		inTitle := strings.Contains(strings.ToLower(t.Title), q)
		inDescription := t.Description != nil && strings.Contains(strings.ToLower(*t.Description), q)
		if !inTitle && !inDescription {
			return false
		}
	}
	if c.CategoryID != nil && (t.CategoryID == nil || *t.CategoryID != *c.CategoryID) {
		return false
	}
	if c.Priority != nil && t.Priority != *c.Priority {
		return false
	}
	if c.SelectedDate != nil && (t.DueDate == nil || *t.DueDate != *c.SelectedDate) {
		return false
	}
	return true
}

// Filter returns the tasks matching c, preserving input order
func Filter(tasks []models.Task, c Criteria) []models.Task {
	out := make([]models.Task, 0, len(tasks))
	for _, t := range tasks {
		if c.Matches(t) {
			out = append(out, t)
		}
	}
	return out
}

// ExcludeArchived drops tasks whose stored status is archived
func ExcludeArchived(tasks []models.Task) []models.Task {
	out := make([]models.Task, 0, len(tasks))
	for _, t := range tasks {
		if t.Status != models.TaskStatusArchived {
			out = append(out, t)
		}
	}
	return out
}
