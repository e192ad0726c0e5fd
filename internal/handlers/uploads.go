package handlers

import (
	"errors"
	"fmt"
	"mime"
	"mime/multipart"
	"net/http"

	"github.com/benvon/taskboard/internal/board"
)

// multipartMemory is how much of a multipart body is kept in memory before
// spilling to temporary files
const multipartMemory = 8 << 20

// uploadSet is the files of a multipart request, opened for reading
type uploadSet struct {
	form  *multipart.Form
	files []multipart.File
}

// parseUploads parses a multipart body and opens every file under field.
// Close must be called once the uploads have been consumed.
func parseUploads(r *http.Request, field string) (*uploadSet, []board.Upload, error) {
	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return nil, nil, fmt.Errorf("%w: upload exceeds %d bytes", board.ErrValidation, tooLarge.Limit)
		}
		return nil, nil, fmt.Errorf("%w: invalid multipart body: %v", board.ErrValidation, err)
	}
	set := &uploadSet{form: r.MultipartForm}
	var uploads []board.Upload
	for _, fh := range r.MultipartForm.File[field] {
		f, err := fh.Open()
		if err != nil {
			set.Close()
			return nil, nil, fmt.Errorf("failed to open upload %s: %w", fh.Filename, err)
		}
		set.files = append(set.files, f)
		uploads = append(uploads, board.Upload{
			Name:        fh.Filename,
			ContentType: fh.Header.Get("Content-Type"),
			Size:        fh.Size,
			Body:        f,
		})
	}
	return set, uploads, nil
}

// Close releases the opened files and any temporary files
func (s *uploadSet) Close() {
	for _, f := range s.files {
		_ = f.Close()
	}
	if s.form != nil {
		_ = s.form.RemoveAll()
	}
}

func isMultipart(r *http.Request) bool {
	mt, _, err := mime.ParseMediaType(r.Header.Get("Content-Type"))
	return err == nil && mt == "multipart/form-data"
}
