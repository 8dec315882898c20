package mocks

import (
	"context"
	"fmt"
	"sync"

	"github.com/custodia-labs/askmydocs/internal/core/domain"
	"github.com/custodia-labs/askmydocs/internal/core/ports/driven"
)

var (
	_ driven.VectorIndex        = (*MockVectorIndex)(nil)
	_ driven.VectorIndexFactory = (*MockVectorIndexFactory)(nil)
)

// MockVectorIndex keeps passages in memory. Search returns passages in
// insertion order with score 1 unless SearchFn is set.
type MockVectorIndex struct {
	mu       sync.RWMutex
	embedder driven.EmbeddingService
	disk     *MockIndexDisk
	passages []domain.Passage
	built    bool

	SearchFn func(query []float32, k int) ([]domain.ScoredPassage, error)
}

// NewMockVectorIndex creates an empty index backed by its own disk.
func NewMockVectorIndex(embedder driven.EmbeddingService) *MockVectorIndex {
	return &MockVectorIndex{embedder: embedder, disk: NewMockIndexDisk()}
}

// NewMockVectorIndexWith creates a built index holding passages.
func NewMockVectorIndexWith(passages ...domain.Passage) *MockVectorIndex {
	idx := NewMockVectorIndex(nil)
	idx.passages = append(idx.passages, passages...)
	idx.built = true
	return idx
}

func (m *MockVectorIndex) Build(ctx context.Context, passages []domain.Passage) error {
	if err := m.embed(ctx, passages); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.passages = clonePassages(passages)
	m.built = true
	return nil
}

func (m *MockVectorIndex) Append(ctx context.Context, passages []domain.Passage) error {
	if err := m.embed(ctx, passages); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.passages = append(m.passages, clonePassages(passages)...)
	m.built = true
	return nil
}

func (m *MockVectorIndex) DeleteDocument(ctx context.Context, documentID string) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	kept := m.passages[:0]
	removed := 0
	for _, p := range m.passages {
		if p.DocumentID() == documentID {
			removed++
			continue
		}
		kept = append(kept, p)
	}
	m.passages = kept
	return removed, nil
}

func (m *MockVectorIndex) Persist(ctx context.Context, path string) error {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.disk.write(path, m.passages)
}

func (m *MockVectorIndex) Load(ctx context.Context, path string) error {
	passages, err := m.disk.read(path)
	if err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.passages = passages
	m.built = true
	return nil
}

func (m *MockVectorIndex) Search(ctx context.Context, query []float32, k int) ([]domain.ScoredPassage, error) {
	if m.SearchFn != nil {
		return m.SearchFn(query, k)
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	k = max(k, 0)
	if k > len(m.passages) {
		k = len(m.passages)
	}
	out := make([]domain.ScoredPassage, 0, k)
	for _, p := range m.passages[:k] {
		out = append(out, domain.ScoredPassage{Passage: p.Clone(), Score: 1})
	}
	return out, nil
}

func (m *MockVectorIndex) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.passages)
}

func (m *MockVectorIndex) Built() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.built
}

func (m *MockVectorIndex) Identity() domain.ProviderIdentity {
	if m.embedder == nil {
		return domain.ProviderIdentity{Provider: "mock", Model: "mock"}
	}
	return domain.ProviderIdentity{Provider: "mock", Model: m.embedder.Model(), Dimensions: m.embedder.Dimensions()}
}

func (m *MockVectorIndex) Close() error {
	return nil
}

// Passages returns a copy of the stored passages.
func (m *MockVectorIndex) Passages() []domain.Passage {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return clonePassages(m.passages)
}

func (m *MockVectorIndex) embed(ctx context.Context, passages []domain.Passage) error {
	if m.embedder == nil || len(passages) == 0 {
		return nil
	}
	texts := make([]string, len(passages))
	for i, p := range passages {
		texts[i] = p.Text
	}
	_, err := m.embedder.Embed(ctx, texts)
	return err
}

// MockIndexDisk stands in for the filesystem shared by indexes from one factory.
type MockIndexDisk struct {
	mu       sync.Mutex
	bundles  map[string][]domain.Passage
	persists int

	// PersistErr is returned by every Persist when set
	PersistErr error
}

// NewMockIndexDisk creates an empty disk
func NewMockIndexDisk() *MockIndexDisk {
	return &MockIndexDisk{bundles: make(map[string][]domain.Passage)}
}

func (d *MockIndexDisk) write(path string, passages []domain.Passage) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.PersistErr != nil {
		return d.PersistErr
	}
	d.bundles[path] = clonePassages(passages)
	d.persists++
	return nil
}

func (d *MockIndexDisk) read(path string) ([]domain.Passage, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	passages, ok := d.bundles[path]
	if !ok {
		return nil, fmt.Errorf("index %s: %w", path, domain.ErrNotFound)
	}
	return clonePassages(passages), nil
}

// Persists returns how many bundles were written.
func (d *MockIndexDisk) Persists() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.persists
}

// Bundle returns the passages last persisted at path.
func (d *MockIndexDisk) Bundle(path string) ([]domain.Passage, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	passages, ok := d.bundles[path]
	return clonePassages(passages), ok
}

// MockVectorIndexFactory creates MockVectorIndex instances sharing one disk.
type MockVectorIndexFactory struct {
	Disk *MockIndexDisk
}

// NewMockVectorIndexFactory creates a factory with an empty disk
func NewMockVectorIndexFactory() *MockVectorIndexFactory {
	return &MockVectorIndexFactory{Disk: NewMockIndexDisk()}
}

func (f *MockVectorIndexFactory) NewIndex(embedder driven.EmbeddingService) (driven.VectorIndex, error) {
	return &MockVectorIndex{embedder: embedder, disk: f.Disk}, nil
}

func (f *MockVectorIndexFactory) Backend() string {
	return "mock"
}

func clonePassages(passages []domain.Passage) []domain.Passage {
	out := make([]domain.Passage, len(passages))
	for i, p := range passages {
		out[i] = p.Clone()
	}
	return out
}
