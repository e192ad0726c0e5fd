package handlers

import (
	"net/http"

	"github.com/google/uuid"

	"github.com/benvon/taskboard/internal/board"
)

type commentRequest struct {
	Content string `json:"content"`
}

// ListComments loads a task's comments and opens the comments dialog
func (h *TaskHandler) ListComments(w http.ResponseWriter, r *http.Request) {
	sess, ok := h.session(w, r)
	if !ok {
		return
	}
	taskID, err := pathID(r, "id")
	if err != nil {
		h.fail(w, sess, err)
		return
	}
	comments, err := sess.LoadComments(r.Context(), taskID)
	if err != nil {
		h.fail(w, sess, err)
		return
	}
	respondJSON(w, http.StatusOK, comments)
}

// AddComment posts a comment. A multipart body carries the text in the
// "content" field and files under "files".
func (h *TaskHandler) AddComment(w http.ResponseWriter, r *http.Request) {
	sess, ok := h.session(w, r)
	if !ok {
		return
	}
	taskID, err := pathID(r, "id")
	if err != nil {
		h.fail(w, sess, err)
		return
	}

	var req commentRequest
	var files []board.Upload
	if isMultipart(r) {
		set, uploads, err := parseUploads(r, "files")
		if err != nil {
			h.fail(w, sess, err)
			return
		}
		defer set.Close()
		req.Content = r.FormValue("content")
		files = uploads
	} else if err := decodeJSON(r, &req); err != nil {
		h.fail(w, sess, err)
		return
	}

	p, comment, err := sess.AddComment(r.Context(), taskID, req.Content, files)
	if err != nil {
		h.fail(w, sess, err)
		return
	}
	respondPending(w, r, p, func() any { return comment })
}

func (h *TaskHandler) commentIDs(w http.ResponseWriter, r *http.Request, sess *board.Session) (uuid.UUID, uuid.UUID, bool) {
	taskID, err := pathID(r, "id")
	if err != nil {
		h.fail(w, sess, err)
		return uuid.Nil, uuid.Nil, false
	}
	commentID, err := pathID(r, "commentID")
	if err != nil {
		h.fail(w, sess, err)
		return uuid.Nil, uuid.Nil, false
	}
	return taskID, commentID, true
}

// commentsState reads a task's comments when the response is written
func commentsState(sess *board.Session, taskID uuid.UUID) func() any {
	return func() any {
		t, ok := sess.Store().Task(taskID)
		if !ok {
			return nil
		}
		return t.Comments
	}
}

// EditComment changes a comment's text
func (h *TaskHandler) EditComment(w http.ResponseWriter, r *http.Request) {
	sess, ok := h.session(w, r)
	if !ok {
		return
	}
	taskID, commentID, ok := h.commentIDs(w, r, sess)
	if !ok {
		return
	}
	var req commentRequest
	if err := decodeJSON(r, &req); err != nil {
		h.fail(w, sess, err)
		return
	}
	p, err := sess.EditComment(r.Context(), taskID, commentID, req.Content)
	if err != nil {
		h.fail(w, sess, err)
		return
	}
	respondPending(w, r, p, commentsState(sess, taskID))
}

// DeleteComment removes a comment
func (h *TaskHandler) DeleteComment(w http.ResponseWriter, r *http.Request) {
	sess, ok := h.session(w, r)
	if !ok {
		return
	}
	taskID, commentID, ok := h.commentIDs(w, r, sess)
	if !ok {
		return
	}
	p, err := sess.DeleteComment(r.Context(), taskID, commentID)
	if err != nil {
		h.fail(w, sess, err)
		return
	}
	respondPending(w, r, p, commentsState(sess, taskID))
}

// AddCommentAttachment attaches one file, sent as "file", to a comment
func (h *TaskHandler) AddCommentAttachment(w http.ResponseWriter, r *http.Request) {
	sess, ok := h.session(w, r)
	if !ok {
		return
	}
	taskID, commentID, ok := h.commentIDs(w, r, sess)
	if !ok {
		return
	}
	set, upload, err := singleUpload(r)
	if err != nil {
		h.fail(w, sess, err)
		return
	}
	defer set.Close()

	p, a, err := sess.AddCommentAttachment(r.Context(), taskID, commentID, upload)
	if err != nil {
		h.fail(w, sess, err)
		return
	}
	respondPending(w, r, p, func() any { return a })
}
