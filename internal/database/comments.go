package database

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/benvon/taskboard/internal/models"
)

// CommentRepository handles task comment database operations
type CommentRepository struct {
	db *DB
}

// NewCommentRepository creates a new comment repository
func NewCommentRepository(db *DB) *CommentRepository {
	return &CommentRepository{db: db}
}

// ListByTask returns a task's comments, oldest first, with their attachments
func (r *CommentRepository) ListByTask(ctx context.Context, taskID uuid.UUID) ([]models.Comment, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT c.id, c.task_id, c.content, c.created_at, c.updated_at,
			COALESCE((
				SELECT json_agg(a ORDER BY a.created_at)
				FROM comment_attachments a WHERE a.comment_id = c.id
			), '[]'::json)
		FROM task_comments c
		WHERE c.task_id = $1
		ORDER BY c.created_at
	`, taskID)
	if err != nil {
		return nil, fmt.Errorf("failed to query comments: %w", err)
	}
	defer closeRows(rows)

	var comments []models.Comment
	for rows.Next() {
		var (
			c           models.Comment
			attachments []byte
		)
		if err := rows.Scan(&c.ID, &c.TaskID, &c.Content, &c.CreatedAt, &c.UpdatedAt, &attachments); err != nil {
			return nil, fmt.Errorf("failed to scan comment: %w", err)
		}
		if err := json.Unmarshal(attachments, &c.Attachments); err != nil {
			return nil, fmt.Errorf("failed to decode comment attachments: %w", err)
		}
		if len(c.Attachments) == 0 {
			c.Attachments = nil
		}
		comments = append(comments, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating comments: %w", err)
	}
	return comments, nil
}

// Create inserts a comment. The caller may supply the id so an optimistic
// local copy and the stored row agree.
func (r *CommentRepository) Create(ctx context.Context, c *models.Comment) error {
	if c.ID == uuid.Nil {
		c.ID = uuid.New()
	}
	now := time.Now()
	err := r.db.QueryRowContext(ctx, `
		INSERT INTO task_comments (id, task_id, content, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING created_at, updated_at
	`, c.ID, c.TaskID, c.Content, now, now).Scan(&c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to create comment: %w", err)
	}
	return nil
}

// Update writes the comment content
func (r *CommentRepository) Update(ctx context.Context, c *models.Comment) error {
	err := r.db.QueryRowContext(ctx, `
		UPDATE task_comments SET content = $2, updated_at = $3
		WHERE id = $1
		RETURNING updated_at
	`, c.ID, c.Content, time.Now()).Scan(&c.UpdatedAt)
	if err == sql.ErrNoRows {
		return fmt.Errorf("comment %s: %w", c.ID, ErrNotFound)
	}
	if err != nil {
		return fmt.Errorf("failed to update comment: %w", err)
	}
	return nil
}

// Delete removes a comment and its attachment records
func (r *CommentRepository) Delete(ctx context.Context, id uuid.UUID) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM task_comments WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete comment: %w", err)
	}
	return expectAffected(result, "comment "+id.String())
}
