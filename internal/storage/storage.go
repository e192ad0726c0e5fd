// Package storage keeps attachment contents in an S3-compatible object store.
package storage

import (
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"path"
	"strings"
	"time"

	"github.com/google/uuid"
)

// MaxObjectSize is the largest attachment accepted, in bytes
const MaxObjectSize int64 = 25 << 20

// DefaultURLTTL is how long a signed preview URL stays valid
const DefaultURLTTL = time.Hour

var (
	// ErrTooLarge is returned for uploads above MaxObjectSize
	ErrTooLarge = errors.New("file exceeds the 25 MiB limit")
	// ErrObjectNotFound is returned when a path has no object
	ErrObjectNotFound = errors.New("object not found")
)

// CheckSize rejects sizes the store will not accept
func CheckSize(size int64) error {
	if size < 0 {
		return fmt.Errorf("invalid file size %d", size)
	}
	if size > MaxObjectSize {
		return fmt.Errorf("%w: %d bytes", ErrTooLarge, size)
	}
	return nil
}

// ObjectPath builds the key for a new object owned by a task or comment:
// <owner-id>/<unix-millis>-<random>.<ext>. The extension is taken from the
// original file name, lower-cased, and omitted when there is none.
func ObjectPath(owner uuid.UUID, fileName string, now time.Time) string {
	key := fmt.Sprintf("%s/%d-%s", owner, now.UnixMilli(), randomSuffix())
	if ext := strings.ToLower(strings.TrimPrefix(path.Ext(path.Base(fileName)), ".")); ext != "" && isSafeExt(ext) {
		key += "." + ext
	}
	return key
}

func randomSuffix() string {
	b := make([]byte, 6)
	if _, err := rand.Read(b); err != nil {
		return uuid.NewString()[:12]
	}
	return hex.EncodeToString(b)
}

func isSafeExt(ext string) bool {
	if len(ext) > 16 {
		return false
	}
	for _, r := range ext {
		if (r < 'a' || r > 'z') && (r < '0' || r > '9') {
			return false
		}
	}
	return true
}
