package models

import (
	"time"

	"github.com/google/uuid"
)

// Comment is a note attached to a task
type Comment struct {
	ID          uuid.UUID    `json:"id"`
	TaskID      uuid.UUID    `json:"task_id"`
	Content     string       `json:"content"`
	CreatedAt   time.Time    `json:"created_at"`
	UpdatedAt   time.Time    `json:"updated_at"`
	Attachments []Attachment `json:"attachments,omitempty"`
}

// Clone returns a deep copy of the comment
func (c Comment) Clone() Comment {
	out := c
	if c.Attachments != nil {
		out.Attachments = make([]Attachment, len(c.Attachments))
		for i, a := range c.Attachments {
			out.Attachments[i] = a.Clone()
		}
	}
	return out
}

// Attachment is file metadata for a blob owned by a task or by a comment.
// Exactly one of TaskID and CommentID is set.
type Attachment struct {
	ID        uuid.UUID  `json:"id"`
	TaskID    *uuid.UUID `json:"task_id,omitempty"`
	CommentID *uuid.UUID `json:"comment_id,omitempty"`
	FileName  string     `json:"file_name"`
	FilePath  string     `json:"file_path"`
	FileType  string     `json:"file_type"`
	FileSize  int64      `json:"file_size"`
	CreatedAt time.Time  `json:"created_at"`
}

// Clone returns a deep copy of the attachment
func (a Attachment) Clone() Attachment {
	out := a
	out.TaskID = clonePtr(a.TaskID)
	out.CommentID = clonePtr(a.CommentID)
	return out
}
