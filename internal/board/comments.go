package board

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/benvon/taskboard/internal/models"
)

// LoadComments fetches a task's comments into the store and opens the
// comments dialog for it.
func (s *Session) LoadComments(ctx context.Context, taskID uuid.UUID) ([]models.Comment, error) {
	if _, ok := s.store.Task(taskID); !ok {
		return nil, fmt.Errorf("task %s: %w", taskID, ErrTaskNotFound)
	}
	list, err := s.gw.Comments.ListByTask(ctx, taskID)
	if err != nil {
		s.notifyError("Could not load comments")
		return nil, err
	}
	s.store.UpdateTask(taskID, func(t *models.Task) { t.Comments = list })
	s.store.OpenComments(&taskID)
	return list, nil
}

// AddComment posts a comment with optional files. Files are uploaded
// before the comment appears; the comment and its attachment records are
// then saved in the background and removed again, blobs included, if that
// fails.
func (s *Session) AddComment(ctx context.Context, taskID uuid.UUID, content string, files []Upload) (*Pending, models.Comment, error) {
	content = strings.TrimSpace(content)
	if content == "" && len(files) == 0 {
		return nil, models.Comment{}, invalid("comment is empty")
	}
	for _, f := range files {
		if err := checkUpload(f); err != nil {
			s.notifyError("File is too large or invalid")
			return nil, models.Comment{}, err
		}
	}
	if _, ok := s.store.Task(taskID); !ok {
		return nil, models.Comment{}, fmt.Errorf("task %s: %w", taskID, ErrTaskNotFound)
	}

	now := s.clock.Now()
	c := models.Comment{ID: uuid.New(), TaskID: taskID, Content: content, CreatedAt: now, UpdatedAt: now}
	for _, f := range files {
		a, err := s.uploadBlob(ctx, f, nil, &c.ID)
		if err != nil {
			s.logger.Warn("comment_attachment_upload_failed", zap.String("task_id", taskID.String()), zap.Error(err))
			s.notifyError(fmt.Sprintf("Could not upload %s", f.Name))
			continue
		}
		c.Attachments = append(c.Attachments, a)
	}

	p, err := Run(ctx, s.exec, Mutation[entry[models.Comment]]{
		Name:     "add_comment",
		Snapshot: s.commentSnapshot(taskID, c.ID),
		Apply: func(entry[models.Comment]) {
			s.store.UpdateTask(taskID, func(t *models.Task) { t.Comments = append(t.Comments, c.Clone()) })
		},
		Remote: func(ctx context.Context) error {
			row := c.Clone()
			if err := s.gw.Comments.Create(ctx, &row); err != nil {
				for _, a := range c.Attachments {
					s.removeBlob(ctx, a.FilePath)
				}
				return err
			}
			var errs []error
			for _, a := range c.Attachments {
				rec := a.Clone()
				if err := s.gw.Attachments.Create(ctx, &rec); err != nil {
					s.removeBlob(ctx, a.FilePath)
					errs = append(errs, fmt.Errorf("failed to record %s: %w", a.FileName, err))
					s.dropCommentAttachment(taskID, c.ID, a.ID)
				}
			}
			if err := errors.Join(errs...); err != nil {
				s.logger.Warn("comment_attachment_record_failed", zap.Error(err))
				s.notifyError("Some files could not be attached")
			}
			return nil
		},
		Restore:        s.restoreComment(taskID, c.ID),
		FailureMessage: "Could not add the comment",
	})
	return p, c, err
}

func (s *Session) dropCommentAttachment(taskID, commentID, attachmentID uuid.UUID) {
	s.store.UpdateTask(taskID, func(t *models.Task) {
		for i := range t.Comments {
			if t.Comments[i].ID == commentID {
				t.Comments[i].Attachments = slices.DeleteFunc(t.Comments[i].Attachments,
					func(a models.Attachment) bool { return a.ID == attachmentID })
			}
		}
	})
}

// EditComment replaces a comment's text
func (s *Session) EditComment(ctx context.Context, taskID, commentID uuid.UUID, content string) (*Pending, error) {
	content = strings.TrimSpace(content)
	if content == "" {
		return nil, invalid("comment is empty")
	}
	now := s.clock.Now()
	return Run(ctx, s.exec, Mutation[entry[models.Comment]]{
		Name:     "edit_comment",
		Snapshot: s.existingComment(taskID, commentID),
		Apply: func(entry[models.Comment]) {
			s.store.UpdateTask(taskID, func(t *models.Task) {
				for i := range t.Comments {
					if t.Comments[i].ID == commentID {
						t.Comments[i].Content = content
						t.Comments[i].UpdatedAt = now
					}
				}
			})
		},
		Remote: func(ctx context.Context) error {
			return s.gw.Comments.Update(ctx, &models.Comment{ID: commentID, TaskID: taskID, Content: content})
		},
		Restore:        s.restoreComment(taskID, commentID),
		FailureMessage: "Could not update the comment",
	})
}

// DeleteComment removes a comment. Its attachment records go with it
func (s *Session) DeleteComment(ctx context.Context, taskID, commentID uuid.UUID) (*Pending, error) {
	return Run(ctx, s.exec, Mutation[entry[models.Comment]]{
		Name:     "delete_comment",
		Snapshot: s.existingComment(taskID, commentID),
		Apply: func(entry[models.Comment]) {
			s.store.UpdateTask(taskID, func(t *models.Task) {
				t.Comments = slices.DeleteFunc(t.Comments, func(c models.Comment) bool { return c.ID == commentID })
			})
		},
		Remote: func(ctx context.Context) error {
			return s.gw.Comments.Delete(ctx, commentID)
		},
		Restore:        s.restoreComment(taskID, commentID),
		FailureMessage: "Could not delete the comment",
	})
}

// AddCommentAttachment uploads a file onto an existing comment
func (s *Session) AddCommentAttachment(ctx context.Context, taskID, commentID uuid.UUID, u Upload) (*Pending, models.Attachment, error) {
	if err := checkUpload(u); err != nil {
		s.notifyError("File is too large or invalid")
		return nil, models.Attachment{}, err
	}
	snapshot := s.existingComment(taskID, commentID)
	if _, err := snapshot(); err != nil {
		return nil, models.Attachment{}, err
	}
	a, err := s.uploadBlob(ctx, u, nil, &commentID)
	if err != nil {
		s.notifyError(fmt.Sprintf("Could not upload %s", u.Name))
		return nil, models.Attachment{}, err
	}

	p, err := Run(ctx, s.exec, Mutation[entry[models.Comment]]{
		Name:     "add_comment_attachment",
		Snapshot: snapshot,
		Apply: func(entry[models.Comment]) {
			s.store.UpdateTask(taskID, func(t *models.Task) {
				for i := range t.Comments {
					if t.Comments[i].ID == commentID {
						t.Comments[i].Attachments = append(t.Comments[i].Attachments, a.Clone())
					}
				}
			})
		},
		Remote: func(ctx context.Context) error {
			rec := a.Clone()
			if err := s.gw.Attachments.Create(ctx, &rec); err != nil {
				s.removeBlob(ctx, a.FilePath)
				return err
			}
			return nil
		},
		Restore: func(entry[models.Comment]) {
			s.dropCommentAttachment(taskID, commentID, a.ID)
		},
		FailureMessage: fmt.Sprintf("Could not attach %s", u.Name),
	})
	return p, a, err
}

// commentSnapshot captures one comment of a task, which may not exist yet
func (s *Session) commentSnapshot(taskID, commentID uuid.UUID) func() (entry[models.Comment], error) {
	return func() (entry[models.Comment], error) {
		t, ok := s.store.Task(taskID)
		if !ok {
			return entry[models.Comment]{}, fmt.Errorf("task %s: %w", taskID, ErrTaskNotFound)
		}
		return entryOf(t.Comments, commentID, idOfComment), nil
	}
}

func (s *Session) existingComment(taskID, commentID uuid.UUID) func() (entry[models.Comment], error) {
	return func() (entry[models.Comment], error) {
		e, err := s.commentSnapshot(taskID, commentID)()
		if err != nil {
			return e, err
		}
		if !e.found {
			return e, fmt.Errorf("comment %s: %w", commentID, ErrNotFound)
		}
		return e, nil
	}
}

// restoreComment puts one comment back as it was before the change
func (s *Session) restoreComment(taskID, commentID uuid.UUID) func(entry[models.Comment]) {
	return func(e entry[models.Comment]) {
		e.item = e.item.Clone()
		s.store.UpdateTask(taskID, func(t *models.Task) { t.Comments = putBack(t.Comments, commentID, e, idOfComment) })
	}
}
