package board

import (
	"errors"
	"fmt"
)

var (
	// ErrValidation marks input rejected before any remote call
	ErrValidation = errors.New("validation failed")
	// ErrLastProfile is returned when deleting the only remaining profile
	ErrLastProfile = fmt.Errorf("%w: cannot delete the last profile", ErrValidation)
	// ErrTaskNotFound is returned when a task id is not on the board
	ErrTaskNotFound = errors.New("task not found")
	// ErrNotFound is returned for other entities missing from the board
	ErrNotFound = errors.New("not found")
	// ErrNoProfile is returned when an action needs a current profile and none is set
	ErrNoProfile = errors.New("no current profile")
	// ErrBlobsDisabled is returned by attachment calls when no object store is configured
	ErrBlobsDisabled = errors.New("attachments are not configured")
)

// invalid wraps a validation message so errors.Is(err, ErrValidation) holds
func invalid(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrValidation, fmt.Sprintf(format, args...))
}
