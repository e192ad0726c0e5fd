package board

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"cloud.google.com/go/civil"
	"github.com/google/uuid"

	"github.com/benvon/taskboard/internal/models"
)

var (
	// ErrNoDrag is returned when a drag operation arrives without a drag in progress
	ErrNoDrag = errors.New("no drag in progress")
	// ErrNoDatePending is returned when a date is confirmed while no drop awaits one
	ErrNoDatePending = errors.New("no drop is waiting for a date")
)

// DropKind classifies the result of a drop
type DropKind string

const (
	DropCancelled DropKind = "cancelled"
	DropNoOp      DropKind = "noop"
	DropCommitted DropKind = "committed"
	DropAwaitDate DropKind = "awaiting_date"
)

// Move is the change a committed drop makes to a task. It is persisted as
// one update of the status, due date and completed-at fields.
type Move struct {
	TaskID      uuid.UUID         `json:"task_id"`
	From        models.TaskStatus `json:"from"`
	To          models.TaskStatus `json:"to"`
	DueDate     *civil.Date       `json:"due_date,omitempty"`
	CompletedAt *time.Time        `json:"completed_at,omitempty"`
}

// MoveFields are the task fields a move writes
var MoveFields = []models.TaskField{
	models.TaskFieldStatus,
	models.TaskFieldDueDate,
	models.TaskFieldCompletedAt,
}

// ApplyTo sets the moved fields on t
func (m Move) ApplyTo(t *models.Task) {
	t.Status = m.To
	t.DueDate = m.DueDate
	t.CompletedAt = m.CompletedAt
}

// DropResult is what a drop resolved to
type DropResult struct {
	Kind DropKind `json:"kind"`
	Move *Move    `json:"move,omitempty"`
	// Target is the column waiting for a date when Kind is DropAwaitDate
	Target models.TaskStatus `json:"target,omitempty"`
}

// TaskLookup finds a task by id
type TaskLookup func(id uuid.UUID) (models.Task, bool)

// DragEngine tracks one drag gesture: start, hovering over columns or
// tasks, then a drop that commits, does nothing, cancels, or waits for a
// date to be picked.
type DragEngine struct {
	lookup TaskLookup
	clock  Clock

	mu       sync.Mutex
	taskID   *uuid.UUID
	active   *models.TaskStatus
	awaiting *models.TaskStatus
}

// NewDragEngine creates an idle drag engine
func NewDragEngine(lookup TaskLookup, clock Clock) *DragEngine {
	return &DragEngine{lookup: lookup, clock: clock}
}

// Start begins dragging a task; its display column becomes the active column
func (d *DragEngine) Start(taskID uuid.UUID) (models.TaskStatus, error) {
	task, ok := d.lookup(taskID)
	if !ok {
		return "", fmt.Errorf("task %s: %w", taskID, ErrTaskNotFound)
	}
	col := DisplayStatus(task, d.clock.Today())

	d.mu.Lock()
	defer d.mu.Unlock()
	d.taskID = &taskID
	d.active = &col
	d.awaiting = nil
	return col, nil
}

// Hover updates the highlighted column. overID may name a column or a task;
// anything else clears the highlight without ending the drag.
func (d *DragEngine) Hover(overID string) (*models.TaskStatus, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.taskID == nil {
		return nil, ErrNoDrag
	}
	d.active = d.resolveOver(overID)
	return copyStatus(d.active), nil
}

func (d *DragEngine) resolveOver(overID string) *models.TaskStatus {
	if s := models.TaskStatus(overID); s.Valid() {
		return &s
	}
	if id, err := uuid.Parse(overID); err == nil {
		if t, ok := d.lookup(id); ok {
			s := DisplayStatus(t, d.clock.Today())
			return &s
		}
	}
	return nil
}

// Drop ends the gesture over overID. Dropping on a column targets that
// column; dropping on anything else targets the active column. A drop onto
// the scheduled or overdue column waits for ConfirmDate or CancelDate.
func (d *DragEngine) Drop(overID string) (DropResult, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.taskID == nil {
		return DropResult{}, ErrNoDrag
	}

	var target *models.TaskStatus
	if s := models.TaskStatus(overID); s.Valid() {
		target = &s
	} else if overID != "" {
		target = d.active
	}
	d.active = nil

	if target == nil {
		d.reset()
		return DropResult{Kind: DropCancelled}, nil
	}

	task, ok := d.lookup(*d.taskID)
	if !ok {
		d.reset()
		return DropResult{Kind: DropCancelled}, nil
	}
	if *target == DisplayStatus(task, d.clock.Today()) {
		d.reset()
		return DropResult{Kind: DropNoOp}, nil
	}

	if *target == models.TaskStatusScheduled || *target == models.TaskStatusOverdue {
		d.awaiting = target
		return DropResult{Kind: DropAwaitDate, Target: *target}, nil
	}

	move := PlanMove(task, *target, nil, d.clock)
	d.reset()
	return DropResult{Kind: DropCommitted, Move: &move}, nil
}

// ConfirmDate completes a drop that was waiting for a date
func (d *DragEngine) ConfirmDate(date civil.Date) (Move, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.taskID == nil || d.awaiting == nil {
		return Move{}, ErrNoDatePending
	}
	task, ok := d.lookup(*d.taskID)
	target := *d.awaiting
	d.reset()
	if !ok {
		return Move{}, ErrTaskNotFound
	}
	return PlanMove(task, target, &date, d.clock), nil
}

// CancelDate discards a drop that was waiting for a date; nothing is applied
func (d *DragEngine) CancelDate() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.reset()
}

// State reports the dragged task, active column and any column awaiting a date
func (d *DragEngine) State() (taskID *uuid.UUID, active, awaiting *models.TaskStatus) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.taskID != nil {
		id := *d.taskID
		taskID = &id
	}
	return taskID, copyStatus(d.active), copyStatus(d.awaiting)
}

func (d *DragEngine) reset() {
	d.taskID = nil
	d.active = nil
	d.awaiting = nil
}

// PlanMove computes the fields a task gets when moved to target. date is the
// picked due date for scheduled and overdue targets and is ignored elsewhere.
func PlanMove(task models.Task, target models.TaskStatus, date *civil.Date, clock Clock) Move {
	m := Move{
		TaskID:  task.ID,
		From:    DisplayStatus(task, clock.Today()),
		To:      target,
		DueDate: task.DueDate,
	}

	switch target {
	case models.TaskStatusPending:
		m.DueDate = nil
	case models.TaskStatusToday:
		today := clock.Today()
		m.DueDate = &today
	case models.TaskStatusScheduled, models.TaskStatusOverdue:
		if date != nil {
			d := *date
			m.DueDate = &d
		}
	}

	switch target {
	case models.TaskStatusCompleted:
		now := clock.Now()
		m.CompletedAt = &now
	case models.TaskStatusArchived:
		m.CompletedAt = task.CompletedAt
	default:
		m.CompletedAt = nil
	}
	if m.DueDate != nil {
		d := *m.DueDate
		m.DueDate = &d
	}
	if m.CompletedAt != nil {
		t := *m.CompletedAt
		m.CompletedAt = &t
	}
	return m
}

func copyStatus(s *models.TaskStatus) *models.TaskStatus {
	if s == nil {
		return nil
	}
	v := *s
	return &v
}

// Drop ends the session's drag gesture and persists a committed move
func (s *Session) Drop(ctx context.Context, overID string) (DropResult, *Pending, error) {
	res, err := s.drag.Drop(overID)
	if err != nil || res.Kind != DropCommitted {
		return res, nil, err
	}
	p, err := s.MoveTask(ctx, *res.Move)
	return res, p, err
}

// ConfirmDrop persists a drop onto the scheduled or overdue column with the
// picked date
func (s *Session) ConfirmDrop(ctx context.Context, date civil.Date) (Move, *Pending, error) {
	m, err := s.drag.ConfirmDate(date)
	if err != nil {
		return Move{}, nil, err
	}
	p, err := s.MoveTask(ctx, m)
	return m, p, err
}
