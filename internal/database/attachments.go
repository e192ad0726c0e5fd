package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/benvon/taskboard/internal/models"
)

// AttachmentRepository handles attachment records for both tasks and comments.
// The blobs themselves live in the object store.
type AttachmentRepository struct {
	db *DB
}

// NewAttachmentRepository creates a new attachment repository
func NewAttachmentRepository(db *DB) *AttachmentRepository {
	return &AttachmentRepository{db: db}
}

// ListByTask returns the attachments owned directly by a task
func (r *AttachmentRepository) ListByTask(ctx context.Context, taskID uuid.UUID) ([]models.Attachment, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, task_id, NULL::uuid, file_name, file_path, file_type, file_size, created_at
		FROM task_attachments
		WHERE task_id = $1
		ORDER BY created_at
	`, taskID)
	if err != nil {
		return nil, fmt.Errorf("failed to query attachments: %w", err)
	}
	defer closeRows(rows)

	var out []models.Attachment
	for rows.Next() {
		a, err := scanAttachment(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating attachments: %w", err)
	}
	return out, nil
}

// GetByID looks an attachment up in either owner table
func (r *AttachmentRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.Attachment, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT id, task_id, NULL::uuid, file_name, file_path, file_type, file_size, created_at
		FROM task_attachments WHERE id = $1
		UNION ALL
		SELECT id, NULL::uuid, comment_id, file_name, file_path, file_type, file_size, created_at
		FROM comment_attachments WHERE id = $1
		LIMIT 1
	`, id)
	a, err := scanAttachment(row)
	if err != nil {
		if isNoRows(err) {
			return nil, fmt.Errorf("attachment %s: %w", id, ErrNotFound)
		}
		return nil, err
	}
	return a, nil
}

// Create inserts an attachment record into the table matching its owner
func (r *AttachmentRepository) Create(ctx context.Context, a *models.Attachment) error {
	if a.ID == uuid.Nil {
		a.ID = uuid.New()
	}
	if err := insertAttachment(ctx, r.db, a); err != nil {
		return fmt.Errorf("failed to create attachment: %w", err)
	}
	return nil
}

// Delete removes an attachment record from whichever table holds it
func (r *AttachmentRepository) Delete(ctx context.Context, id uuid.UUID) error {
	var deleted uuid.UUID
	err := r.db.QueryRowContext(ctx, `
		WITH t AS (DELETE FROM task_attachments WHERE id = $1 RETURNING id),
		     c AS (DELETE FROM comment_attachments WHERE id = $1 RETURNING id)
		SELECT id FROM t UNION ALL SELECT id FROM c
		LIMIT 1
	`, id).Scan(&deleted)
	if err == sql.ErrNoRows {
		return fmt.Errorf("attachment %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return fmt.Errorf("failed to delete attachment: %w", err)
	}
	return nil
}

func insertAttachment(ctx context.Context, db execer, a *models.Attachment) error {
	if a.CreatedAt.IsZero() {
		a.CreatedAt = time.Now()
	}
	switch {
	case a.TaskID != nil && a.CommentID == nil:
		_, err := db.ExecContext(ctx, `
			INSERT INTO task_attachments (id, task_id, file_name, file_path, file_type, file_size, created_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7)
		`, a.ID, *a.TaskID, a.FileName, a.FilePath, a.FileType, a.FileSize, a.CreatedAt)
		return err
	case a.CommentID != nil && a.TaskID == nil:
		_, err := db.ExecContext(ctx, `
			INSERT INTO comment_attachments (id, comment_id, file_name, file_path, file_type, file_size, created_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7)
		`, a.ID, *a.CommentID, a.FileName, a.FilePath, a.FileType, a.FileSize, a.CreatedAt)
		return err
	default:
		return fmt.Errorf("attachment must belong to exactly one of task or comment")
	}
}

func scanAttachment(row rowScanner) (*models.Attachment, error) {
	var a models.Attachment
	err := row.Scan(&a.ID, &a.TaskID, &a.CommentID, &a.FileName, &a.FilePath, &a.FileType, &a.FileSize, &a.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to scan attachment: %w", err)
	}
	return &a, nil
}

func isNoRows(err error) bool {
	return err != nil && errors.Is(err, sql.ErrNoRows)
}
