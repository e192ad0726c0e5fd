package board

import (
	"context"
	"errors"
	"testing"
	"time"

	"cloud.google.com/go/civil"
	"github.com/google/go-cmp/cmp"

	"github.com/benvon/taskboard/internal/models"
)

func TestDropOnOwnColumnIsNoOp(t *testing.T) {
	t.Parallel()

	today := testClock.Today()
	task := newTask("call mom", withDue(&today))
	f := newFixture(t, task)
	before := f.session.Store().Tasks()

	for _, over := range []string{string(models.TaskStatusToday), task.ID.String()} {
		if _, err := f.session.Drag().Start(task.ID); err != nil {
			t.Fatalf("Start() error = %v", err)
		}
		res, p, err := f.session.Drop(context.Background(), over)
		if err != nil {
			t.Fatalf("Drop(%q) error = %v", over, err)
		}
		if res.Kind != DropNoOp || p != nil {
			t.Errorf("Drop(%q) = %v, %v, want noop without pending call", over, res.Kind, p)
		}
	}

	f.session.Wait()
	if n := f.remote.callCount(); n != 0 {
		t.Errorf("remote calls = %d, want 0", n)
	}
	if diff := cmp.Diff(before, f.session.Store().Tasks()); diff != "" {
		t.Errorf("store changed (-before +after):\n%s", diff)
	}
}

func TestDropOnToday(t *testing.T) {
	t.Parallel()

	task := newTask("buy stamps")
	f := newFixture(t, task)

	if _, err := f.session.Drag().Start(task.ID); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	res, p, err := f.session.Drop(context.Background(), string(models.TaskStatusToday))
	if err != nil {
		t.Fatalf("Drop() error = %v", err)
	}
	if res.Kind != DropCommitted {
		t.Fatalf("Drop() kind = %v, want committed", res.Kind)
	}
	if err := p.Wait(); err != nil {
		t.Fatalf("remote error = %v", err)
	}

	got, _ := f.session.Store().Task(task.ID)
	today := testClock.Today()
	if got.Status != models.TaskStatusToday || got.DueDate == nil || *got.DueDate != today {
		t.Errorf("task = status %q due %v, want today on %v", got.Status, got.DueDate, today)
	}

	updates := f.remote.callsTo("tasks.update")
	if len(updates) != 1 {
		t.Fatalf("update calls = %d, want 1", len(updates))
	}
	if diff := cmp.Diff(MoveFields, updates[0].Fields); diff != "" {
		t.Errorf("updated fields mismatch (-want +got):\n%s", diff)
	}
	if updates[0].Task.Status != models.TaskStatusToday || *updates[0].Task.DueDate != today {
		t.Errorf("update carried status %q due %v", updates[0].Task.Status, updates[0].Task.DueDate)
	}
}

func TestDropOnScheduledAwaitsDate(t *testing.T) {
	t.Parallel()

	t.Run("cancel leaves the task alone", func(t *testing.T) {
		t.Parallel()
		task := newTask("renew passport")
		f := newFixture(t, task)

		if _, err := f.session.Drag().Start(task.ID); err != nil {
			t.Fatalf("Start() error = %v", err)
		}
		res, p, err := f.session.Drop(context.Background(), string(models.TaskStatusScheduled))
		if err != nil {
			t.Fatalf("Drop() error = %v", err)
		}
		if res.Kind != DropAwaitDate || res.Target != models.TaskStatusScheduled || p != nil {
			t.Fatalf("Drop() = %+v, %v, want awaiting date for scheduled", res, p)
		}
		if n := f.remote.callCount(); n != 0 {
			t.Errorf("remote calls before date = %d, want 0", n)
		}

		f.session.Drag().CancelDate()
		f.session.Wait()

		got, _ := f.session.Store().Task(task.ID)
		if got.Status != models.TaskStatusPending || got.DueDate != nil {
			t.Errorf("task after cancel = status %q due %v, want pending without date", got.Status, got.DueDate)
		}
		if n := f.remote.callCount(); n != 0 {
			t.Errorf("remote calls after cancel = %d, want 0", n)
		}
		if _, _, err := f.session.ConfirmDrop(context.Background(), testClock.Today()); !errors.Is(err, ErrNoDatePending) {
			t.Errorf("ConfirmDrop() after cancel error = %v, want ErrNoDatePending", err)
		}
	})

	t.Run("confirm applies the picked date", func(t *testing.T) {
		t.Parallel()
		task := newTask("renew passport")
		f := newFixture(t, task)

		if _, err := f.session.Drag().Start(task.ID); err != nil {
			t.Fatalf("Start() error = %v", err)
		}
		if _, _, err := f.session.Drop(context.Background(), string(models.TaskStatusScheduled)); err != nil {
			t.Fatalf("Drop() error = %v", err)
		}
		picked := civil.Date{Year: 2024, Month: time.April, Day: 2}
		m, p, err := f.session.ConfirmDrop(context.Background(), picked)
		if err != nil {
			t.Fatalf("ConfirmDrop() error = %v", err)
		}
		if err := p.Wait(); err != nil {
			t.Fatalf("remote error = %v", err)
		}
		if m.To != models.TaskStatusScheduled || *m.DueDate != picked {
			t.Errorf("move = %+v, want scheduled on %v", m, picked)
		}
		if n := len(f.remote.callsTo("tasks.update")); n != 1 {
			t.Errorf("update calls = %d, want 1", n)
		}
	})
}

func TestDragEngineHoverAndDrop(t *testing.T) {
	t.Parallel()

	today := testClock.Today()
	dragged := newTask("dragged")
	neighbour := newTask("neighbour", withDue(&today))
	f := newFixture(t, dragged, neighbour)
	d := f.session.Drag()

	if _, err := d.Hover("today"); !errors.Is(err, ErrNoDrag) {
		t.Errorf("Hover() before Start error = %v, want ErrNoDrag", err)
	}

	col, err := d.Start(dragged.ID)
	if err != nil || col != models.TaskStatusPending {
		t.Fatalf("Start() = %q, %v, want pending", col, err)
	}

	active, err := d.Hover(neighbour.ID.String())
	if err != nil || active == nil || *active != models.TaskStatusToday {
		t.Errorf("Hover(task) = %v, %v, want the task's column today", active, err)
	}
	active, _ = d.Hover("not-a-target")
	if active != nil {
		t.Errorf("Hover(unknown) = %v, want cleared", *active)
	}
	if id, _, _ := d.State(); id == nil {
		t.Error("drag ended on an unknown hover target")
	}

	res, err := d.Drop(neighbour.ID.String())
	if err != nil {
		t.Fatalf("Drop() error = %v", err)
	}
	if res.Kind != DropCancelled {
		t.Errorf("Drop() without active column = %v, want cancelled", res.Kind)
	}

	if _, err := d.Start(dragged.ID); err != nil {
		t.Fatal(err)
	}
	if _, err := d.Hover(neighbour.ID.String()); err != nil {
		t.Fatal(err)
	}
	res, _ = d.Drop(neighbour.ID.String())
	if res.Kind != DropCommitted || res.Move.To != models.TaskStatusToday {
		t.Errorf("Drop() on task in today = %+v, want committed to today", res)
	}

	if _, err := d.Start(dragged.ID); err != nil {
		t.Fatal(err)
	}
	if res, _ := d.Drop(""); res.Kind != DropCancelled {
		t.Errorf("Drop(outside) = %v, want cancelled", res.Kind)
	}
}

func TestPlanMove(t *testing.T) {
	t.Parallel()

	now := testClock.Now()
	earlier := now.Add(-48 * time.Hour)
	today := testClock.Today()
	due := today.AddDays(3)
	picked := today.AddDays(7)

	done := newTask("done", withStatus(models.TaskStatusCompleted), withDue(&due), func(t *models.Task) { t.CompletedAt = &earlier })
	open := newTask("open", withDue(&due))

	tests := []struct {
		name     string
		task     models.Task
		target   models.TaskStatus
		date     *civil.Date
		wantDue  *civil.Date
		wantDone *time.Time
	}{
		{"pending clears the date", open, models.TaskStatusPending, nil, nil, nil},
		{"today sets today", open, models.TaskStatusToday, nil, &today, nil},
		{"scheduled takes the picked date", open, models.TaskStatusScheduled, &picked, &picked, nil},
		{"overdue takes the picked date", open, models.TaskStatusOverdue, &picked, &picked, nil},
		{"completed stamps now and keeps the date", open, models.TaskStatusCompleted, nil, &due, &now},
		{"archived keeps completed-at", done, models.TaskStatusArchived, nil, &due, &earlier},
		{"reopening clears completed-at", done, models.TaskStatusToday, nil, &today, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			m := PlanMove(tt.task, tt.target, tt.date, testClock)
			if m.To != tt.target {
				t.Errorf("To = %q, want %q", m.To, tt.target)
			}
			if diff := cmp.Diff(tt.wantDue, m.DueDate); diff != "" {
				t.Errorf("DueDate mismatch (-want +got):\n%s", diff)
			}
			if diff := cmp.Diff(tt.wantDone, m.CompletedAt); diff != "" {
				t.Errorf("CompletedAt mismatch (-want +got):\n%s", diff)
			}
		})
	}
}
