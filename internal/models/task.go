package models

import (
	"time"

	"cloud.google.com/go/civil"
	"github.com/google/uuid"
)

// Priority represents how urgent a task is
type Priority string

const (
	PriorityLow    Priority = "low"
	PriorityMedium Priority = "medium"
	PriorityHigh   Priority = "high"
)

// Rank returns the sort rank of the priority (high first)
func (p Priority) Rank() int {
	switch p {
	case PriorityHigh:
		return 0
	case PriorityMedium:
		return 1
	default:
		return 2
	}
}

// TaskStatus represents the stored status of a task. The same values name the
// board columns a task is displayed in.
type TaskStatus string

const (
	TaskStatusPending   TaskStatus = "pending"
	TaskStatusToday     TaskStatus = "today"
	TaskStatusScheduled TaskStatus = "scheduled"
	TaskStatusOverdue   TaskStatus = "overdue"
	TaskStatusCompleted TaskStatus = "completed"
	TaskStatusArchived  TaskStatus = "archived"
)

// AllStatuses lists every status in default column order
var AllStatuses = []TaskStatus{
	TaskStatusPending,
	TaskStatusToday,
	TaskStatusScheduled,
	TaskStatusOverdue,
	TaskStatusCompleted,
	TaskStatusArchived,
}

// Valid reports whether s is a known status
func (s TaskStatus) Valid() bool {
	for _, v := range AllStatuses {
		if s == v {
			return true
		}
	}
	return false
}

// Terminal reports whether the stored status is authoritative for display
func (s TaskStatus) Terminal() bool {
	return s == TaskStatusCompleted || s == TaskStatusArchived
}

// RecurrenceType is the kind of repetition of a recurring task
type RecurrenceType string

const (
	RecurrenceDaily    RecurrenceType = "daily"
	RecurrenceWeekdays RecurrenceType = "weekdays"
	RecurrenceWeekly   RecurrenceType = "weekly"
	RecurrenceMonthly  RecurrenceType = "monthly"
	RecurrenceCustom   RecurrenceType = "custom"
)

// RecurrencePattern describes how a recurring task repeats
type RecurrencePattern struct {
	Type        RecurrenceType `json:"type"`
	Interval    *int           `json:"interval,omitempty"`
	DaysOfWeek  []int          `json:"days_of_week,omitempty"` // 0 = Sunday
	DayOfMonth  *int           `json:"day_of_month,omitempty"`
	EndDate     *civil.Date    `json:"end_date,omitempty"`
	Occurrences *int           `json:"occurrences,omitempty"`
}

// Task represents a task, optionally carrying its related rows
type Task struct {
	ID                uuid.UUID          `json:"id"`
	ProfileID         uuid.UUID          `json:"profile_id"`
	CategoryID        *uuid.UUID         `json:"category_id,omitempty"`
	ParentTaskID      *uuid.UUID         `json:"parent_task_id,omitempty"`
	Title             string             `json:"title"`
	Description       *string            `json:"description,omitempty"`
	Priority          Priority           `json:"priority"`
	Status            TaskStatus         `json:"status"`
	DueDate           *civil.Date        `json:"due_date,omitempty"`
	DueTime           *civil.Time        `json:"due_time,omitempty"`
	CompletedAt       *time.Time         `json:"completed_at,omitempty"`
	Order             int                `json:"order"`
	IsRecurring       bool               `json:"is_recurring"`
	RecurrencePattern *RecurrencePattern `json:"recurrence_pattern,omitempty"`
	CreatedAt         time.Time          `json:"created_at"`
	UpdatedAt         time.Time          `json:"updated_at"`

	Category    *Category    `json:"category,omitempty"`
	Subtasks    []Task       `json:"subtasks,omitempty"`
	Comments    []Comment    `json:"comments,omitempty"`
	Attachments []Attachment `json:"attachments,omitempty"`
}

// TaskField names a persisted task column. Updates carry a set of fields so
// only the columns a mutation touched are written.
type TaskField string

const (
	TaskFieldTitle             TaskField = "title"
	TaskFieldDescription       TaskField = "description"
	TaskFieldCategoryID        TaskField = "category_id"
	TaskFieldPriority          TaskField = "priority"
	TaskFieldStatus            TaskField = "status"
	TaskFieldDueDate           TaskField = "due_date"
	TaskFieldDueTime           TaskField = "due_time"
	TaskFieldCompletedAt       TaskField = "completed_at"
	TaskFieldOrder             TaskField = "order"
	TaskFieldIsRecurring       TaskField = "is_recurring"
	TaskFieldRecurrencePattern TaskField = "recurrence_pattern"
)

// Clone returns a deep copy of the task and its relations
func (t Task) Clone() Task {
	c := t
	c.CategoryID = clonePtr(t.CategoryID)
	c.ParentTaskID = clonePtr(t.ParentTaskID)
	c.Description = clonePtr(t.Description)
	c.DueDate = clonePtr(t.DueDate)
	c.DueTime = clonePtr(t.DueTime)
	c.CompletedAt = clonePtr(t.CompletedAt)
	if t.RecurrencePattern != nil {
		rp := *t.RecurrencePattern
		rp.Interval = clonePtr(rp.Interval)
		rp.DayOfMonth = clonePtr(rp.DayOfMonth)
		rp.EndDate = clonePtr(rp.EndDate)
		rp.Occurrences = clonePtr(rp.Occurrences)
		if rp.DaysOfWeek != nil {
			rp.DaysOfWeek = append([]int(nil), rp.DaysOfWeek...)
		}
		c.RecurrencePattern = &rp
	}
	if t.Category != nil {
		cat := t.Category.Clone()
		c.Category = &cat
	}
	if t.Subtasks != nil {
		c.Subtasks = make([]Task, len(t.Subtasks))
		for i, s := range t.Subtasks {
			c.Subtasks[i] = s.Clone()
		}
	}
	if t.Comments != nil {
		c.Comments = make([]Comment, len(t.Comments))
		for i, cm := range t.Comments {
			c.Comments[i] = cm.Clone()
		}
	}
	if t.Attachments != nil {
		c.Attachments = make([]Attachment, len(t.Attachments))
		for i, a := range t.Attachments {
			c.Attachments[i] = a.Clone()
		}
	}
	return c
}

func clonePtr[T any](p *T) *T {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}
