package mocks

import (
	"context"
	"fmt"
	"io"
	"sync"

	"github.com/custodia-labs/askmydocs/internal/core/domain"
	"github.com/custodia-labs/askmydocs/internal/core/ports/driven"
)

var _ driven.FileStore = (*MockFileStore)(nil)

// MockFileStore keeps uploaded bytes in memory
type MockFileStore struct {
	mu      sync.Mutex
	files   map[string][]byte
	removed []string
	seq     int
}

// NewMockFileStore creates a new MockFileStore
func NewMockFileStore() *MockFileStore {
	return &MockFileStore{files: make(map[string][]byte)}
}

func (m *MockFileStore) Save(ctx context.Context, filename string, r io.Reader, limit int64) (string, int64, error) {
	reader := r
	if limit > 0 {
		reader = io.LimitReader(r, limit+1)
	}
	data, err := io.ReadAll(reader)
	if err != nil {
		return "", 0, fmt.Errorf("%w: %v", domain.ErrStorage, err)
	}
	if limit > 0 && int64(len(data)) > limit {
		return "", 0, fmt.Errorf("%w: file exceeds %d bytes", domain.ErrInvalidUpload, limit)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.seq++
	path := fmt.Sprintf("mem://%d/%s", m.seq, filename)
	m.files[path] = data
	return path, int64(len(data)), nil
}

func (m *MockFileStore) Exists(ctx context.Context, path string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.files[path]
	return ok, nil
}

func (m *MockFileStore) Remove(ctx context.Context, path string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.files, path)
	m.removed = append(m.removed, path)
	return nil
}

// Content returns the bytes stored at path
func (m *MockFileStore) Content(path string) ([]byte, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	data, ok := m.files[path]
	return data, ok
}

// Removed returns every path passed to Remove
func (m *MockFileStore) Removed() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]string, len(m.removed))
	copy(out, m.removed)
	return out
}
