package board

import (
	"context"
	"fmt"
	"io"
	"slices"

	"github.com/google/uuid"
	"go.uber.org/zap"

	logpkg "github.com/benvon/taskboard/internal/logger"
	"github.com/benvon/taskboard/internal/models"
	"github.com/benvon/taskboard/internal/storage"
)

// Upload is a file to attach. Size must be known before the upload starts
type Upload struct {
	Name        string
	ContentType string
	Size        int64
	Body        io.Reader
}

func checkUpload(u Upload) error {
	if u.Name == "" {
		return invalid("file name is required")
	}
	if err := storage.CheckSize(u.Size); err != nil {
		return fmt.Errorf("%w: %w", ErrValidation, err)
	}
	return nil
}

// storeAttachment uploads the blob and then inserts its record. The blob is
// removed again if the record cannot be written.
func (s *Session) storeAttachment(ctx context.Context, u Upload, taskID, commentID *uuid.UUID) (models.Attachment, error) {
	a, err := s.uploadBlob(ctx, u, taskID, commentID)
	if err != nil {
		return models.Attachment{}, err
	}
	if err := s.gw.Attachments.Create(ctx, &a); err != nil {
		s.removeBlob(ctx, a.FilePath)
		return models.Attachment{}, fmt.Errorf("failed to record attachment: %w", err)
	}
	return a, nil
}

func (s *Session) uploadBlob(ctx context.Context, u Upload, taskID, commentID *uuid.UUID) (models.Attachment, error) {
	owner := taskID
	if owner == nil {
		owner = commentID
	}
	contentType := u.ContentType
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	a := models.Attachment{
		ID:        uuid.New(),
		TaskID:    taskID,
		CommentID: commentID,
		FileName:  u.Name,
		FilePath:  storage.ObjectPath(*owner, u.Name, s.clock.Now()),
		FileType:  contentType,
		FileSize:  u.Size,
		CreatedAt: s.clock.Now(),
	}
	if err := s.gw.Blobs.Upload(ctx, a.FilePath, u.Body, u.Size, contentType); err != nil {
		return models.Attachment{}, fmt.Errorf("failed to upload %s: %w", u.Name, err)
	}
	return a, nil
}

func (s *Session) removeBlob(ctx context.Context, path string) {
	if err := s.gw.Blobs.Remove(context.WithoutCancel(ctx), path); err != nil {
		s.logger.Warn("blob_remove_failed", zap.String("path", logpkg.SanitizePath(path)), zap.Error(err))
	}
}

// LoadAttachments fetches a task's attachments into the store
func (s *Session) LoadAttachments(ctx context.Context, taskID uuid.UUID) ([]models.Attachment, error) {
	if _, ok := s.store.Task(taskID); !ok {
		return nil, fmt.Errorf("task %s: %w", taskID, ErrTaskNotFound)
	}
	list, err := s.gw.Attachments.ListByTask(ctx, taskID)
	if err != nil {
		s.notifyError("Could not load attachments")
		return nil, err
	}
	s.store.UpdateTask(taskID, func(t *models.Task) { t.Attachments = list })
	return list, nil
}

// AddAttachment uploads a file for a task. The upload happens first; the
// record is then added optimistically and, if it cannot be saved, the blob
// is removed along with the local entry.
func (s *Session) AddAttachment(ctx context.Context, taskID uuid.UUID, u Upload) (*Pending, models.Attachment, error) {
	if err := checkUpload(u); err != nil {
		s.notifyError("File is too large or invalid")
		return nil, models.Attachment{}, err
	}
	if _, ok := s.store.Task(taskID); !ok {
		return nil, models.Attachment{}, fmt.Errorf("task %s: %w", taskID, ErrTaskNotFound)
	}

	a, err := s.uploadBlob(ctx, u, &taskID, nil)
	if err != nil {
		s.logger.Warn("attachment_upload_failed",
			zap.String("task_id", taskID.String()),
			zap.String("file_name", logpkg.SanitizeFileName(u.Name)),
			zap.Error(err),
		)
		s.notifyError(fmt.Sprintf("Could not upload %s", u.Name))
		return nil, models.Attachment{}, err
	}

	p, err := Run(ctx, s.exec, Mutation[entry[models.Attachment]]{
		Name:     "add_attachment",
		Snapshot: s.attachmentSnapshot(taskID, a.ID),
		Apply: func(entry[models.Attachment]) {
			s.store.UpdateTask(taskID, func(t *models.Task) { t.Attachments = append(t.Attachments, a.Clone()) })
		},
		Remote: func(ctx context.Context) error {
			rec := a.Clone()
			if err := s.gw.Attachments.Create(ctx, &rec); err != nil {
				s.removeBlob(ctx, a.FilePath)
				return err
			}
			return nil
		},
		Restore: s.restoreAttachment(taskID, a.ID),
		OnSuccess: func() *Notification {
			return &Notification{Level: LevelSuccess, Message: fmt.Sprintf("%s attached", a.FileName)}
		},
		FailureMessage: fmt.Sprintf("Could not attach %s", u.Name),
	})
	return p, a, err
}

// DeleteAttachment removes an attachment record and then its blob
func (s *Session) DeleteAttachment(ctx context.Context, taskID, attachmentID uuid.UUID) (*Pending, error) {
	var path string
	return Run(ctx, s.exec, Mutation[entry[models.Attachment]]{
		Name: "delete_attachment",
		Snapshot: func() (entry[models.Attachment], error) {
			e, err := s.attachmentSnapshot(taskID, attachmentID)()
			if err != nil {
				return e, err
			}
			if !e.found {
				return e, fmt.Errorf("attachment %s: %w", attachmentID, ErrNotFound)
			}
			path = e.item.FilePath
			return e, nil
		},
		Apply: func(entry[models.Attachment]) {
			s.store.UpdateTask(taskID, func(t *models.Task) {
				t.Attachments = slices.DeleteFunc(t.Attachments, func(a models.Attachment) bool { return a.ID == attachmentID })
			})
		},
		Remote: func(ctx context.Context) error {
			if err := s.gw.Attachments.Delete(ctx, attachmentID); err != nil {
				return err
			}
			s.removeBlob(ctx, path)
			return nil
		},
		Restore:        s.restoreAttachment(taskID, attachmentID),
		FailureMessage: "Could not delete the attachment",
	})
}

func (s *Session) attachmentSnapshot(taskID, attachmentID uuid.UUID) func() (entry[models.Attachment], error) {
	return func() (entry[models.Attachment], error) {
		t, ok := s.store.Task(taskID)
		if !ok {
			return entry[models.Attachment]{}, fmt.Errorf("task %s: %w", taskID, ErrTaskNotFound)
		}
		return entryOf(t.Attachments, attachmentID, idOfAttachment), nil
	}
}

func (s *Session) restoreAttachment(taskID, attachmentID uuid.UUID) func(entry[models.Attachment]) {
	return func(e entry[models.Attachment]) {
		e.item = e.item.Clone()
		s.store.UpdateTask(taskID, func(t *models.Task) {
			t.Attachments = putBack(t.Attachments, attachmentID, e, idOfAttachment)
		})
	}
}

// findAttachment locates an attachment on a board task or one of its
// loaded comments. Attachments outside the user's board are not found.
func (s *Session) findAttachment(id uuid.UUID) (models.Attachment, bool) {
	for _, t := range s.store.Tasks() {
		for _, a := range t.Attachments {
			if a.ID == id {
				return a, true
			}
		}
		for _, c := range t.Comments {
			for _, a := range c.Attachments {
				if a.ID == id {
					return a, true
				}
			}
		}
	}
	return models.Attachment{}, false
}

// AttachmentURL returns a signed preview URL for an attachment
func (s *Session) AttachmentURL(ctx context.Context, id uuid.UUID) (string, error) {
	a, ok := s.findAttachment(id)
	if !ok {
		return "", fmt.Errorf("attachment %s: %w", id, ErrNotFound)
	}
	return s.gw.Blobs.SignedURL(ctx, a.FilePath, storage.DefaultURLTTL)
}

// OpenAttachment streams an attachment's contents
func (s *Session) OpenAttachment(ctx context.Context, id uuid.UUID) (models.Attachment, io.ReadCloser, error) {
	a, ok := s.findAttachment(id)
	if !ok {
		return models.Attachment{}, nil, fmt.Errorf("attachment %s: %w", id, ErrNotFound)
	}
	rc, err := s.gw.Blobs.Download(ctx, a.FilePath)
	if err != nil {
		return models.Attachment{}, nil, err
	}
	return a, rc, nil
}
