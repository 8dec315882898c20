package driven

import (
	"context"
	"io"
)

// FileStore keeps uploaded documents until they are indexed.
type FileStore interface {
	// Save writes r under a unique name derived from filename and returns
	// the stored path and the number of bytes written. At most limit bytes
	// are accepted when limit > 0; larger uploads fail with
	// domain.ErrInvalidUpload and nothing is kept.
	Save(ctx context.Context, filename string, r io.Reader, limit int64) (path string, size int64, err error)

	// Exists reports whether a stored file is present
	Exists(ctx context.Context, path string) (bool, error)

	// Remove deletes a stored file. Removing a missing file is not an error.
	Remove(ctx context.Context, path string) error
}
