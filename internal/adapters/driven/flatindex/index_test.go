package flatindex

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/custodia-labs/askmydocs/internal/adapters/driven/bundle"
	"github.com/custodia-labs/askmydocs/internal/core/domain"
	"github.com/custodia-labs/askmydocs/internal/core/ports/driven/mocks"
)

func pinnedEmbedder() *mocks.MockEmbeddingService {
	emb := mocks.NewMockEmbeddingService()
	emb.SetDimensions(3)
	emb.SetVector("trip cancellation", []float32{1, 0, 0})
	emb.SetVector("medical emergency", []float32{0, 1, 0})
	emb.SetVector("lost baggage", []float32{0, 0, 1})
	emb.SetVector("baggage delay", []float32{0, 0, 1})
	emb.SetVector("cancel", []float32{0.9, 0.1, 0})
	emb.SetVector("bags", []float32{0, 0, 1})
	return emb
}

func doc(text, docID string) domain.Passage {
	return domain.NewPassage(text, map[string]string{
		domain.MetaSource:     "policy.pdf",
		domain.MetaSection:    "COVERAGE",
		domain.MetaDocumentID: docID,
	})
}

func builtIndex(t *testing.T, emb *mocks.MockEmbeddingService) *Index {
	t.Helper()
	idx := New(emb, "mock", nil)
	require.NoError(t, idx.Build(context.Background(), []domain.Passage{
		doc("trip cancellation", "d1"),
		doc("medical emergency", "d1"),
		doc("lost baggage", "d2"),
		doc("baggage delay", "d2"),
	}))
	return idx
}

func TestIndex_SearchUnbuilt(t *testing.T) {
	idx := New(pinnedEmbedder(), "mock", nil)

	for _, k := range []int{1, 3, 10} {
		results, err := idx.Search(context.Background(), []float32{1, 0, 0}, k)
		require.NoError(t, err)
		assert.NotNil(t, results)
		assert.Empty(t, results)
	}
	assert.False(t, idx.Built())
}

func TestIndex_BuildUsesOneBatchedCall(t *testing.T) {
	emb := pinnedEmbedder()
	idx := builtIndex(t, emb)

	assert.Equal(t, 1, emb.EmbedCalls())
	assert.Equal(t, 4, idx.Len())
	assert.True(t, idx.Built())
	assert.Equal(t, domain.ProviderIdentity{Provider: "mock", Model: "mock-embedding-model", Dimensions: 3}, idx.Identity())
}

func TestIndex_SearchRanksByCosine(t *testing.T) {
	idx := builtIndex(t, pinnedEmbedder())

	results, err := idx.Search(context.Background(), []float32{0.9, 0.1, 0}, 2)
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.Equal(t, "trip cancellation", results[0].Passage.Text)
	assert.Equal(t, "medical emergency", results[1].Passage.Text)
	assert.Greater(t, results[0].Score, results[1].Score)
}

func TestIndex_SearchTiesKeepInsertionOrder(t *testing.T) {
	idx := builtIndex(t, pinnedEmbedder())

	results, err := idx.Search(context.Background(), []float32{0, 0, 1}, 2)
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.Equal(t, "lost baggage", results[0].Passage.Text)
	assert.Equal(t, "baggage delay", results[1].Passage.Text)
	assert.InDelta(t, results[0].Score, results[1].Score, 1e-12)
}

func TestIndex_SearchKLargerThanIndex(t *testing.T) {
	idx := builtIndex(t, pinnedEmbedder())

	results, err := idx.Search(context.Background(), []float32{1, 0, 0}, 50)
	require.NoError(t, err)
	assert.Len(t, results, 4)
}

func TestIndex_SearchEmptyIndex(t *testing.T) {
	idx := New(pinnedEmbedder(), "mock", nil)
	require.NoError(t, idx.Build(context.Background(), nil))

	results, err := idx.Search(context.Background(), []float32{1, 0, 0}, 3)
	require.NoError(t, err)
	assert.Empty(t, results)
}

func TestIndex_SearchDimensionMismatch(t *testing.T) {
	idx := builtIndex(t, pinnedEmbedder())

	_, err := idx.Search(context.Background(), []float32{1, 0}, 3)
	assert.ErrorIs(t, err, domain.ErrEmbeddingProvider)
}

func TestIndex_SearchReturnsCopies(t *testing.T) {
	idx := builtIndex(t, pinnedEmbedder())

	results, err := idx.Search(context.Background(), []float32{1, 0, 0}, 1)
	require.NoError(t, err)
	results[0].Passage.Metadata[domain.MetaSection] = "CHANGED"

	again, err := idx.Search(context.Background(), []float32{1, 0, 0}, 1)
	require.NoError(t, err)
	assert.Equal(t, "COVERAGE", again[0].Passage.Section())
}

func TestIndex_BuildFailureKeepsPreviousContent(t *testing.T) {
	emb := pinnedEmbedder()
	idx := builtIndex(t, emb)

	emb.SetFailNext(true)
	err := idx.Build(context.Background(), []domain.Passage{doc("cancel", "d3")})
	assert.ErrorIs(t, err, domain.ErrEmbeddingProvider)
	assert.Equal(t, 4, idx.Len())
}

func TestIndex_AppendAndDeleteDocument(t *testing.T) {
	emb := pinnedEmbedder()
	idx := builtIndex(t, emb)

	require.NoError(t, idx.Append(context.Background(), []domain.Passage{doc("bags", "d3")}))
	assert.Equal(t, 5, idx.Len())
	assert.Equal(t, 2, emb.EmbedCalls())

	removed, err := idx.DeleteDocument(context.Background(), "d2")
	require.NoError(t, err)
	assert.Equal(t, 2, removed)

	texts := []string{}
	for _, p := range idx.Passages() {
		texts = append(texts, p.Text)
	}
	assert.Equal(t, []string{"trip cancellation", "medical emergency", "bags"}, texts)

	removed, err = idx.DeleteDocument(context.Background(), "missing")
	require.NoError(t, err)
	assert.Zero(t, removed)
}

func TestIndex_PersistLoadRoundTrip(t *testing.T) {
	emb := pinnedEmbedder()
	idx := builtIndex(t, emb)
	path := filepath.Join(t.TempDir(), "data", "vector_store")

	require.NoError(t, idx.Persist(context.Background(), path))

	loaded := New(emb, "mock", nil)
	require.NoError(t, loaded.Load(context.Background(), path))
	assert.True(t, loaded.Built())
	assert.Equal(t, idx.Passages(), loaded.Passages())
	assert.Equal(t, idx.Identity(), loaded.Identity())

	want, err := idx.Search(context.Background(), []float32{0.9, 0.1, 0}, 3)
	require.NoError(t, err)
	got, err := loaded.Search(context.Background(), []float32{0.9, 0.1, 0}, 3)
	require.NoError(t, err)
	assert.Equal(t, want, got)
}

func TestIndex_PersistOverExistingBundle(t *testing.T) {
	emb := pinnedEmbedder()
	path := filepath.Join(t.TempDir(), "vector_store")

	first := builtIndex(t, emb)
	require.NoError(t, first.Persist(context.Background(), path))

	second := New(emb, "mock", nil)
	require.NoError(t, second.Build(context.Background(), []domain.Passage{doc("cancel", "d9")}))
	require.NoError(t, second.Persist(context.Background(), path))

	loaded := New(emb, "mock", nil)
	require.NoError(t, loaded.Load(context.Background(), path))
	assert.Equal(t, 1, loaded.Len())
}

func TestIndex_LoadMissing(t *testing.T) {
	idx := New(pinnedEmbedder(), "mock", nil)

	err := idx.Load(context.Background(), filepath.Join(t.TempDir(), "nothing"))
	assert.ErrorIs(t, err, domain.ErrNotFound)
	assert.False(t, idx.Built())
}

func TestIndex_LoadTamperedData(t *testing.T) {
	emb := pinnedEmbedder()
	path := filepath.Join(t.TempDir(), "vector_store")
	require.NoError(t, builtIndex(t, emb).Persist(context.Background(), path))

	data := filepath.Join(path, "index.gob")
	raw, err := os.ReadFile(data)
	require.NoError(t, err)
	raw[len(raw)-1] ^= 0xff
	require.NoError(t, os.WriteFile(data, raw, 0o644))

	err = New(emb, "mock", nil).Load(context.Background(), path)
	assert.ErrorIs(t, err, domain.ErrCorruptIndex)
}

func TestIndex_LoadDimensionMismatch(t *testing.T) {
	path := filepath.Join(t.TempDir(), "vector_store")
	require.NoError(t, builtIndex(t, pinnedEmbedder()).Persist(context.Background(), path))

	other := mocks.NewMockEmbeddingService()
	other.SetDimensions(8)

	err := New(other, "mock", nil).Load(context.Background(), path)
	assert.ErrorIs(t, err, domain.ErrCorruptIndex)
}

func TestIndex_LoadForeignBackend(t *testing.T) {
	emb := pinnedEmbedder()
	path := filepath.Join(t.TempDir(), "vector_store")
	require.NoError(t, builtIndex(t, emb).Persist(context.Background(), path))

	manifestPath := filepath.Join(path, bundle.ManifestFile)
	raw, err := os.ReadFile(manifestPath)
	require.NoError(t, err)
	var m bundle.Manifest
	require.NoError(t, yaml.Unmarshal(raw, &m))
	m.Backend = "qdrant"
	raw, err = yaml.Marshal(m)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(manifestPath, raw, 0o644))

	err = New(emb, "mock", nil).Load(context.Background(), path)
	assert.ErrorIs(t, err, domain.ErrCorruptIndex)
}

func TestIndex_ConcurrentSearch(t *testing.T) {
	idx := builtIndex(t, pinnedEmbedder())

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			results, err := idx.Search(context.Background(), []float32{1, 0, 0}, 1)
			assert.NoError(t, err)
			assert.Equal(t, "trip cancellation", results[0].Passage.Text)
		}()
	}
	wg.Wait()
}

func TestFactory(t *testing.T) {
	f := NewFactory("openai", nil)
	assert.Equal(t, "flat", f.Backend())

	_, err := f.NewIndex(nil)
	assert.ErrorIs(t, err, domain.ErrConfiguration)

	idx, err := f.NewIndex(pinnedEmbedder())
	require.NoError(t, err)
	assert.Equal(t, "openai", idx.Identity().Provider)
}
