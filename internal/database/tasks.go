package database

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/benvon/taskboard/internal/models"
)

// taskColumns is the select list shared by every task read. The category and
// the one level of subtasks ride along as JSON so a board load is one query.
const taskColumns = `
	t.id, t.profile_id, t.category_id, t.parent_task_id, t.title, t.description,
	t.priority, t.status, t.due_date, t.due_time, t.completed_at, t."order",
	t.is_recurring, t.recurrence_pattern, t.created_at, t.updated_at,
	(SELECT row_to_json(c) FROM categories c WHERE c.id = t.category_id) AS category,
	COALESCE((
		SELECT json_agg(s ORDER BY s."order", s.created_at)
		FROM tasks s WHERE s.parent_task_id = t.id
	), '[]'::json) AS subtasks`

var taskQueryColumns = columnSet{
	"id":             "t.id",
	"profile_id":     "t.profile_id",
	"category_id":    "t.category_id",
	"parent_task_id": "t.parent_task_id",
	"priority":       "t.priority",
	"status":         "t.status",
	"due_date":       "t.due_date",
	"order":          `t."order"`,
	"created_at":     "t.created_at",
}

// TaskRepository handles task database operations
type TaskRepository struct {
	db     *DB
	logger *zap.Logger
}

// NewTaskRepository creates a new task repository
func NewTaskRepository(db *DB) *TaskRepository {
	return &TaskRepository{db: db, logger: zap.NewNop()}
}

// SetLogger sets the logger used for non-fatal query diagnostics
func (r *TaskRepository) SetLogger(logger *zap.Logger) {
	if logger != nil {
		r.logger = logger
	}
}

// Select returns tasks matching q, each with its category and subtasks
func (r *TaskRepository) Select(ctx context.Context, q Query) ([]models.Task, error) {
	clause, args, err := q.build(taskQueryColumns, 0)
	if err != nil {
		return nil, fmt.Errorf("failed to build task query: %w", err)
	}

	rows, err := r.db.QueryContext(ctx, `SELECT `+taskColumns+` FROM tasks t WHERE TRUE`+clause, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query tasks: %w", err)
	}
	defer closeRows(rows)

	var tasks []models.Task
	for rows.Next() {
		task, err := scanTask(rows)
		if err != nil {
			return nil, err
		}
		tasks = append(tasks, *task)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating tasks: %w", err)
	}

	r.logger.Debug("tasks_selected",
		zap.Int("filters", len(q.Filters)),
		zap.Int("count", len(tasks)),
	)
	return tasks, nil
}

// ListByProfile returns the top-level tasks of a profile in board order
func (r *TaskRepository) ListByProfile(ctx context.Context, profileID uuid.UUID) ([]models.Task, error) {
	return r.Select(ctx, Query{
		Filters: []Filter{Eq("profile_id", profileID), IsNull("parent_task_id", true)},
		OrderBy: []Order{{Column: "order"}, {Column: "created_at"}},
	})
}

// GetByID retrieves a task with its category and subtasks
func (r *TaskRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.Task, error) {
	tasks, err := r.Select(ctx, Query{Filters: []Filter{Eq("id", id)}, Limit: 1})
	if err != nil {
		return nil, err
	}
	if len(tasks) == 0 {
		return nil, fmt.Errorf("task %s: %w", id, ErrNotFound)
	}
	return &tasks[0], nil
}

// Create inserts a task. A zero ID is replaced with a fresh one
func (r *TaskRepository) Create(ctx context.Context, task *models.Task) error {
	if task.ID == uuid.Nil {
		task.ID = uuid.New()
	}
	if err := insertTask(ctx, r.db, task); err != nil {
		return fmt.Errorf("failed to create task: %w", err)
	}
	return nil
}

// Update writes the given fields of task; other columns are left untouched.
// An empty field list writes every mutable column.
func (r *TaskRepository) Update(ctx context.Context, task *models.Task, fields ...models.TaskField) error {
	if len(fields) == 0 {
		fields = allTaskFields
	}

	sets := make([]string, 0, len(fields)+1)
	args := []any{task.ID}
	seen := make(map[models.TaskField]bool, len(fields))
	for _, f := range fields {
		if seen[f] {
			continue
		}
		seen[f] = true
		col, value, err := taskFieldValue(task, f)
		if err != nil {
			return err
		}
		args = append(args, value)
		sets = append(sets, fmt.Sprintf("%s = $%d", col, len(args)))
	}
	args = append(args, time.Now())
	sets = append(sets, fmt.Sprintf("updated_at = $%d", len(args)))

	query := `UPDATE tasks SET ` + strings.Join(sets, ", ") + ` WHERE id = $1 RETURNING updated_at`
	err := r.db.QueryRowContext(ctx, query, args...).Scan(&task.UpdatedAt)
	if err == sql.ErrNoRows {
		return fmt.Errorf("task %s: %w", task.ID, ErrNotFound)
	}
	if err != nil {
		return fmt.Errorf("failed to update task: %w", err)
	}
	return nil
}

// Delete removes a task; subtasks, comments and attachment records cascade
func (r *TaskRepository) Delete(ctx context.Context, id uuid.UUID) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM tasks WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete task: %w", err)
	}
	return expectAffected(result, "task "+id.String())
}

// Restore re-inserts a deleted task under its original id together with its
// subtasks, comments and attachment records, in one transaction.
func (r *TaskRepository) Restore(ctx context.Context, task *models.Task) error {
	return r.db.WithTx(ctx, func(tx *sql.Tx) error {
		if err := insertTask(ctx, tx, task); err != nil {
			return fmt.Errorf("failed to restore task: %w", err)
		}
		for i := range task.Subtasks {
			sub := task.Subtasks[i]
			sub.ParentTaskID = &task.ID
			if err := insertTask(ctx, tx, &sub); err != nil {
				return fmt.Errorf("failed to restore subtask: %w", err)
			}
		}
		for _, c := range task.Comments {
			if _, err := tx.ExecContext(ctx, `
				INSERT INTO task_comments (id, task_id, content, created_at, updated_at)
				VALUES ($1, $2, $3, $4, $5)
			`, c.ID, task.ID, c.Content, c.CreatedAt, c.UpdatedAt); err != nil {
				return fmt.Errorf("failed to restore comment: %w", err)
			}
			for _, a := range c.Attachments {
				a.CommentID = &c.ID
				if err := insertAttachment(ctx, tx, &a); err != nil {
					return fmt.Errorf("failed to restore comment attachment: %w", err)
				}
			}
		}
		for _, a := range task.Attachments {
			a.TaskID = &task.ID
			if err := insertAttachment(ctx, tx, &a); err != nil {
				return fmt.Errorf("failed to restore attachment: %w", err)
			}
		}
		return nil
	})
}

// execer is satisfied by both *DB and *sql.Tx
type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func insertTask(ctx context.Context, db execer, t *models.Task) error {
	now := time.Now()
	if t.CreatedAt.IsZero() {
		t.CreatedAt = now
	}
	if t.UpdatedAt.IsZero() {
		t.UpdatedAt = now
	}
	_, err := db.ExecContext(ctx, `
		INSERT INTO tasks (
			id, profile_id, category_id, parent_task_id, title, description, priority, status,
			due_date, due_time, completed_at, "order", is_recurring, recurrence_pattern, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)
	`,
		t.ID,
		t.ProfileID,
		t.CategoryID,
		t.ParentTaskID,
		t.Title,
		t.Description,
		t.Priority,
		t.Status,
		dateValue(t.DueDate),
		timeOfDayValue(t.DueTime),
		t.CompletedAt,
		t.Order,
		t.IsRecurring,
		recurrenceJSON{Pattern: t.RecurrencePattern},
		t.CreatedAt,
		t.UpdatedAt,
	)
	return err
}

var allTaskFields = []models.TaskField{
	models.TaskFieldTitle,
	models.TaskFieldDescription,
	models.TaskFieldCategoryID,
	models.TaskFieldPriority,
	models.TaskFieldStatus,
	models.TaskFieldDueDate,
	models.TaskFieldDueTime,
	models.TaskFieldCompletedAt,
	models.TaskFieldOrder,
	models.TaskFieldIsRecurring,
	models.TaskFieldRecurrencePattern,
}

func taskFieldValue(t *models.Task, f models.TaskField) (string, any, error) {
	switch f {
	case models.TaskFieldTitle:
		return "title", t.Title, nil
	case models.TaskFieldDescription:
		return "description", t.Description, nil
	case models.TaskFieldCategoryID:
		return "category_id", t.CategoryID, nil
	case models.TaskFieldPriority:
		return "priority", t.Priority, nil
	case models.TaskFieldStatus:
		return "status", t.Status, nil
	case models.TaskFieldDueDate:
		return "due_date", dateValue(t.DueDate), nil
	case models.TaskFieldDueTime:
		return "due_time", timeOfDayValue(t.DueTime), nil
	case models.TaskFieldCompletedAt:
		return "completed_at", t.CompletedAt, nil
	case models.TaskFieldOrder:
		return `"order"`, t.Order, nil
	case models.TaskFieldIsRecurring:
		return "is_recurring", t.IsRecurring, nil
	case models.TaskFieldRecurrencePattern:
		return "recurrence_pattern", recurrenceJSON{Pattern: t.RecurrencePattern}, nil
	default:
		return "", nil, fmt.Errorf("unknown task field %q", f)
	}
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanTask(row rowScanner) (*models.Task, error) {
	var (
		t            models.Task
		dueDate      nullDate
		dueTime      nullTimeOfDay
		recurrence   recurrenceJSON
		categoryJSON []byte
		subtasksJSON []byte
	)
	err := row.Scan(
		&t.ID,
		&t.ProfileID,
		&t.CategoryID,
		&t.ParentTaskID,
		&t.Title,
		&t.Description,
		&t.Priority,
		&t.Status,
		&dueDate,
		&dueTime,
		&t.CompletedAt,
		&t.Order,
		&t.IsRecurring,
		&recurrence,
		&t.CreatedAt,
		&t.UpdatedAt,
		&categoryJSON,
		&subtasksJSON,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to scan task: %w", err)
	}
	t.DueDate = dueDate.ptr()
	t.DueTime = dueTime.ptr()
	t.RecurrencePattern = recurrence.Pattern

	if len(categoryJSON) > 0 {
		var c models.Category
		if err := json.Unmarshal(categoryJSON, &c); err != nil {
			return nil, fmt.Errorf("failed to decode task category: %w", err)
		}
		t.Category = &c
	}
	if len(subtasksJSON) > 0 {
		if err := json.Unmarshal(subtasksJSON, &t.Subtasks); err != nil {
			return nil, fmt.Errorf("failed to decode subtasks: %w", err)
		}
		if len(t.Subtasks) == 0 {
			t.Subtasks = nil
		}
	}
	return &t, nil
}
