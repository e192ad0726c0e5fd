package storage

import (
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/google/uuid"
)

func TestObjectPath(t *testing.T) {
	t.Parallel()

	owner := uuid.MustParse("6a1e0a52-58b4-4bd4-9d2b-3f3c62d1c0a1")
	now := time.UnixMilli(1718000000123)

	tests := []struct {
		name     string
		fileName string
		pattern  string
	}{
		{"keeps extension", "report.PDF", `^6a1e0a52-58b4-4bd4-9d2b-3f3c62d1c0a1/1718000000123-[0-9a-f]{12}\.pdf$`},
		{"no extension", "README", `^6a1e0a52-58b4-4bd4-9d2b-3f3c62d1c0a1/1718000000123-[0-9a-f]{12}$`},
		{"strips directories", "../../etc/passwd.txt", `^6a1e0a52-58b4-4bd4-9d2b-3f3c62d1c0a1/1718000000123-[0-9a-f]{12}\.txt$`},
		{"drops unsafe extension", "x.p$p", `^6a1e0a52-58b4-4bd4-9d2b-3f3c62d1c0a1/1718000000123-[0-9a-f]{12}$`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got := ObjectPath(owner, tt.fileName, now)
			if !regexp.MustCompile(tt.pattern).MatchString(got) {
				t.Errorf("ObjectPath(%q) = %q, want match %s", tt.fileName, got, tt.pattern)
			}
		})
	}

	if a, b := ObjectPath(owner, "a.png", now), ObjectPath(owner, "a.png", now); a == b {
		t.Errorf("ObjectPath returned the same key twice: %s", a)
	}
}

func TestCheckSize(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		size    int64
		wantErr error
	}{
		{"empty file", 0, nil},
		{"exactly at limit", MaxObjectSize, nil},
		{"one byte over", MaxObjectSize + 1, ErrTooLarge},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			err := CheckSize(tt.size)
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("CheckSize(%d) = %v, want %v", tt.size, err, tt.wantErr)
			}
		})
	}

	if err := CheckSize(-1); err == nil {
		t.Error("CheckSize(-1) = nil, want error")
	}
}
