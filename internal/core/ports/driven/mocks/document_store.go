package mocks

import (
	"context"
	"sort"
	"sync"

	"github.com/custodia-labs/askmydocs/internal/core/domain"
	"github.com/custodia-labs/askmydocs/internal/core/ports/driven"
)

var _ driven.DocumentStore = (*MockDocumentStore)(nil)

// MockDocumentStore is a mock implementation of DocumentStore for testing
type MockDocumentStore struct {
	mu   sync.RWMutex
	docs map[string]*domain.DocumentRecord

	// SaveErr is returned by Save when set
	SaveErr error
}

// NewMockDocumentStore creates a new MockDocumentStore
func NewMockDocumentStore() *MockDocumentStore {
	return &MockDocumentStore{
		docs: make(map[string]*domain.DocumentRecord),
	}
}

func (m *MockDocumentStore) Save(ctx context.Context, doc *domain.DocumentRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.SaveErr != nil {
		return m.SaveErr
	}
	cp := *doc
	m.docs[doc.ID] = &cp
	return nil
}

func (m *MockDocumentStore) Get(ctx context.Context, id string) (*domain.DocumentRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	doc, ok := m.docs[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	cp := *doc
	return &cp, nil
}

func (m *MockDocumentStore) List(ctx context.Context, limit, offset int) ([]*domain.DocumentRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	all := make([]*domain.DocumentRecord, 0, len(m.docs))
	for _, doc := range m.docs {
		cp := *doc
		all = append(all, &cp)
	}
	sort.SliceStable(all, func(i, j int) bool {
		return all[i].CreatedAt.After(all[j].CreatedAt)
	})

	if offset >= len(all) {
		return []*domain.DocumentRecord{}, nil
	}
	end := len(all)
	if limit > 0 && offset+limit < end {
		end = offset + limit
	}
	return all[offset:end], nil
}

func (m *MockDocumentStore) Delete(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.docs[id]; !ok {
		return domain.ErrNotFound
	}
	delete(m.docs, id)
	return nil
}

func (m *MockDocumentStore) Count(ctx context.Context) (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.docs), nil
}

func (m *MockDocumentStore) Ping(ctx context.Context) error {
	return nil
}
