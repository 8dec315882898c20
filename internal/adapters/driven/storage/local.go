// Package storage keeps uploaded documents on the local filesystem until
// the worker has indexed them.
package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"

	"github.com/custodia-labs/askmydocs/internal/core/domain"
	"github.com/custodia-labs/askmydocs/internal/core/ports/driven"
)

// Verify interface compliance
var _ driven.FileStore = (*LocalStore)(nil)

// LocalStore writes uploads under a single directory. Stored names are
// "<uuid>_<original name>" so two uploads of the same file never collide.
type LocalStore struct {
	dir string
}

// NewLocalStore creates the upload directory if needed.
func NewLocalStore(dir string) (*LocalStore, error) {
	if strings.TrimSpace(dir) == "" {
		return nil, fmt.Errorf("%w: upload directory is required", domain.ErrConfiguration)
	}
	abs, err := filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("%w: resolve %s: %v", domain.ErrConfiguration, dir, err)
	}
	if err := os.MkdirAll(abs, 0o755); err != nil {
		return nil, fmt.Errorf("%w: create upload directory: %v", domain.ErrStorage, err)
	}
	return &LocalStore{dir: abs}, nil
}

// Dir returns the absolute upload directory
func (s *LocalStore) Dir() string {
	return s.dir
}

// Save copies r into the upload directory, refusing more than limit bytes.
func (s *LocalStore) Save(ctx context.Context, filename string, r io.Reader, limit int64) (string, int64, error) {
	if err := ctx.Err(); err != nil {
		return "", 0, err
	}
	name := filepath.Base(strings.TrimSpace(filename))
	if name == "" || name == "." || name == string(filepath.Separator) {
		return "", 0, fmt.Errorf("%w: filename is required", domain.ErrInvalidUpload)
	}

	path := filepath.Join(s.dir, uuid.NewString()+"_"+name)
	f, err := os.OpenFile(path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o644)
	if err != nil {
		return "", 0, fmt.Errorf("%w: create %s: %v", domain.ErrStorage, path, err)
	}

	src := r
	if limit > 0 {
		// One extra byte tells an exact-limit upload from an oversized one
		src = io.LimitReader(r, limit+1)
	}
	n, err := io.Copy(f, src)
	if err == nil {
		err = f.Sync()
	}
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		_ = os.Remove(path)
		return "", 0, fmt.Errorf("%w: write %s: %v", domain.ErrStorage, name, err)
	}
	if limit > 0 && n > limit {
		_ = os.Remove(path)
		return "", 0, fmt.Errorf("%w: %s exceeds %d bytes", domain.ErrInvalidUpload, name, limit)
	}

	return path, n, nil
}

// Exists reports whether a stored upload is present
func (s *LocalStore) Exists(_ context.Context, path string) (bool, error) {
	_, err := os.Stat(path)
	if err == nil {
		return true, nil
	}
	if errors.Is(err, os.ErrNotExist) {
		return false, nil
	}
	return false, fmt.Errorf("%w: stat %s: %v", domain.ErrStorage, path, err)
}

// Remove deletes a stored upload. Paths outside the upload directory are
// refused so a forged task payload cannot delete arbitrary files.
func (s *LocalStore) Remove(_ context.Context, path string) error {
	if path == "" {
		return nil
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return fmt.Errorf("%w: resolve %s: %v", domain.ErrStorage, path, err)
	}
	if filepath.Dir(abs) != s.dir {
		return fmt.Errorf("%w: %s is outside the upload directory", domain.ErrStorage, path)
	}
	if err := os.Remove(abs); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("%w: remove %s: %v", domain.ErrStorage, path, err)
	}
	return nil
}
