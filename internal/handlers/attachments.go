package handlers

import (
	"fmt"
	"io"
	"mime"
	"net/http"
	"strconv"

	"go.uber.org/zap"

	"github.com/benvon/taskboard/internal/board"
)

// singleUpload parses a multipart body holding exactly one "file" part
func singleUpload(r *http.Request) (*uploadSet, board.Upload, error) {
	if !isMultipart(r) {
		return nil, board.Upload{}, fmt.Errorf("%w: expected a multipart/form-data body", board.ErrValidation)
	}
	set, uploads, err := parseUploads(r, "file")
	if err != nil {
		return nil, board.Upload{}, err
	}
	if len(uploads) != 1 {
		set.Close()
		return nil, board.Upload{}, fmt.Errorf("%w: expected exactly one file, got %d", board.ErrValidation, len(uploads))
	}
	return set, uploads[0], nil
}

// ListAttachments loads a task's attachments
func (h *TaskHandler) ListAttachments(w http.ResponseWriter, r *http.Request) {
	sess, ok := h.session(w, r)
	if !ok {
		return
	}
	taskID, err := pathID(r, "id")
	if err != nil {
		h.fail(w, sess, err)
		return
	}
	attachments, err := sess.LoadAttachments(r.Context(), taskID)
	if err != nil {
		h.fail(w, sess, err)
		return
	}
	respondJSON(w, http.StatusOK, attachments)
}

// AddAttachment uploads one file, sent as "file", to a task
func (h *TaskHandler) AddAttachment(w http.ResponseWriter, r *http.Request) {
	sess, ok := h.session(w, r)
	if !ok {
		return
	}
	taskID, err := pathID(r, "id")
	if err != nil {
		h.fail(w, sess, err)
		return
	}
	set, upload, err := singleUpload(r)
	if err != nil {
		h.fail(w, sess, err)
		return
	}
	defer set.Close()

	p, a, err := sess.AddAttachment(r.Context(), taskID, upload)
	if err != nil {
		h.fail(w, sess, err)
		return
	}
	respondPending(w, r, p, func() any { return a })
}

// DeleteAttachment removes the record, then the file
func (h *TaskHandler) DeleteAttachment(w http.ResponseWriter, r *http.Request) {
	sess, ok := h.session(w, r)
	if !ok {
		return
	}
	taskID, err := pathID(r, "id")
	if err != nil {
		h.fail(w, sess, err)
		return
	}
	attachmentID, err := pathID(r, "attachmentID")
	if err != nil {
		h.fail(w, sess, err)
		return
	}
	p, err := sess.DeleteAttachment(r.Context(), taskID, attachmentID)
	if err != nil {
		h.fail(w, sess, err)
		return
	}
	respondPending(w, r, p, func() any { return map[string]any{"id": attachmentID} })
}

// AttachmentURL returns a short-lived URL for previewing a file
func (h *TaskHandler) AttachmentURL(w http.ResponseWriter, r *http.Request) {
	sess, ok := h.session(w, r)
	if !ok {
		return
	}
	id, err := pathID(r, "attachmentID")
	if err != nil {
		h.fail(w, sess, err)
		return
	}
	url, err := sess.AttachmentURL(r.Context(), id)
	if err != nil {
		h.fail(w, sess, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"url": url})
}

// DownloadAttachment streams a file to the client
func (h *TaskHandler) DownloadAttachment(w http.ResponseWriter, r *http.Request) {
	sess, ok := h.session(w, r)
	if !ok {
		return
	}
	id, err := pathID(r, "attachmentID")
	if err != nil {
		h.fail(w, sess, err)
		return
	}
	a, body, err := sess.OpenAttachment(r.Context(), id)
	if err != nil {
		h.fail(w, sess, err)
		return
	}
	defer func() { _ = body.Close() }()

	contentType := a.FileType
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Disposition", mime.FormatMediaType("attachment", map[string]string{"filename": a.FileName}))
	if a.FileSize > 0 {
		w.Header().Set("Content-Length", strconv.FormatInt(a.FileSize, 10))
	}
	w.WriteHeader(http.StatusOK)
	if _, err := io.Copy(w, body); err != nil {
		h.logger.Warn("attachment_download_interrupted", zap.String("attachment_id", id.String()), zap.Error(err))
	}
}
