// Package storage keeps finished export files.
package storage

import (
	"context"
	"errors"
	"path"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
)

// ErrEmptyDocument is returned when there is nothing to store
var ErrEmptyDocument = errors.New("document is empty")

// Store persists an export file
type Store interface {
	Save(ctx context.Context, req *SaveRequest) (*SaveResult, error)
}

// SaveRequest contains a finished document
type SaveRequest struct {
	// JobID identifies the export; a new one is generated when nil
	JobID uuid.UUID
	// Name is the user-facing file name
	Name string
	// Data is the complete PDF
	Data []byte
	// CreatedAt dates the storage path; now when zero
	CreatedAt time.Time
}

// SaveResult describes where a document went
type SaveResult struct {
	JobID uuid.UUID
	// Key is the store-relative path
	Key string
	// Location is the absolute path or URL of the document
	Location string
	Size     int64
}

// NewJobID returns a fresh export job id
func NewJobID() uuid.UUID {
	return uuid.New()
}

// objectKey builds {yyyy}/{mm}/{jobID}-{name}.pdf and fills in request defaults
func objectKey(req *SaveRequest) string {
	if req.JobID == uuid.Nil {
		req.JobID = NewJobID()
	}
	if req.CreatedAt.IsZero() {
		req.CreatedAt = time.Now()
	}
	return path.Join(
		strconv.Itoa(req.CreatedAt.Year()),
		twoDigits(int(req.CreatedAt.Month())),
		req.JobID.String()+"-"+SanitizeName(req.Name)+".pdf",
	)
}

func twoDigits(n int) string {
	if n < 10 {
		return "0" + strconv.Itoa(n)
	}
	return strconv.Itoa(n)
}

// SanitizeName reduces a file name to letters, digits, '-', '_' and '.',
// without the .pdf extension. Empty results become "export".
func SanitizeName(name string) string {
	name = strings.TrimSpace(name)
	if strings.HasSuffix(strings.ToLower(name), ".pdf") {
		name = name[:len(name)-4]
	}

	var b strings.Builder
	dash := false
	for _, r := range name {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '_', r == '.':
			b.WriteRune(r)
			dash = false
		default:
			if !dash && b.Len() > 0 {
				b.WriteByte('-')
				dash = true
			}
		}
	}

	out := strings.Trim(b.String(), "-.")
	for strings.Contains(out, "..") {
		out = strings.ReplaceAll(out, "..", ".")
	}
	if out == "" {
		return "export"
	}
	return out
}
