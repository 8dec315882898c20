package qdrantindex

import (
	"context"
	"os"
	"path/filepath"
	"strconv"
	"testing"

	"github.com/qdrant/go-client/qdrant"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/askmydocs/internal/adapters/driven/bundle"
	"github.com/custodia-labs/askmydocs/internal/core/domain"
	"github.com/custodia-labs/askmydocs/internal/core/ports/driven/mocks"
)

func TestPayloadRoundTrip(t *testing.T) {
	p := domain.NewPassage("Trip cancellation is covered.", map[string]string{
		domain.MetaSource:     "policy.pdf",
		domain.MetaSection:    "COVERAGE",
		domain.MetaDocumentID: "doc-1",
	})

	got, seq := fromPayload(qdrant.NewValueMap(toPayload(p, 7)))
	assert.Equal(t, p, got)
	assert.Equal(t, int64(7), seq)
}

func TestRank_TiesKeepInsertionOrder(t *testing.T) {
	hit := func(text string, score float64, seq int64) rankedHit {
		return rankedHit{ScoredPassage: domain.ScoredPassage{Passage: domain.NewPassage(text, nil), Score: score}, seq: seq}
	}

	ranked := rank([]rankedHit{
		hit("c", 0.5, 2),
		hit("b", 0.9, 1),
		hit("a", 0.9, 0),
	})

	texts := []string{ranked[0].Passage.Text, ranked[1].Passage.Text, ranked[2].Passage.Text}
	assert.Equal(t, []string{"a", "b", "c"}, texts)
}

func TestCollectTies_WidensUntilTiesAreSettled(t *testing.T) {
	// Equal scores returned latest-inserted first, like an arbitrary
	// server-side tie order.
	all := make([]rankedHit, 40)
	for i := range all {
		seq := int64(len(all) - 1 - i)
		all[i] = rankedHit{ScoredPassage: domain.ScoredPassage{Passage: domain.NewPassage(strconv.FormatInt(seq, 10), nil), Score: 0.9}, seq: seq}
	}
	var limits []int
	query := func(limit int) ([]rankedHit, error) {
		limits = append(limits, limit)
		return append([]rankedHit(nil), all[:limit]...), nil
	}

	hits, err := collectTies(2, len(all), query)
	require.NoError(t, err)
	assert.Equal(t, []int{10, 20, 40}, limits)

	ranked := rank(hits)[:2]
	assert.Equal(t, "0", ranked[0].Passage.Text)
	assert.Equal(t, "1", ranked[1].Passage.Text)
}

func TestCollectTies_StopsBelowCutoffScore(t *testing.T) {
	all := make([]rankedHit, 40)
	for i := range all {
		all[i] = rankedHit{ScoredPassage: domain.ScoredPassage{Score: 1 - float64(i)/100}, seq: int64(i)}
	}
	calls := 0
	hits, err := collectTies(3, len(all), func(limit int) ([]rankedHit, error) {
		calls++
		return all[:limit], nil
	})
	require.NoError(t, err)
	assert.Equal(t, 1, calls)
	assert.Len(t, hits, 3+tieMargin)
}

func TestIndex_LocalMutations(t *testing.T) {
	emb := mocks.NewMockEmbeddingService()
	idx := &Index{base: "test", embedder: emb, provider: "mock"}

	results, err := idx.Search(context.Background(), make([]float32, 8), 3)
	require.NoError(t, err)
	assert.Empty(t, results)

	require.NoError(t, idx.Build(context.Background(), []domain.Passage{
		domain.NewPassage("one", map[string]string{domain.MetaDocumentID: "a"}),
		domain.NewPassage("two", map[string]string{domain.MetaDocumentID: "b"}),
	}))
	require.NoError(t, idx.Append(context.Background(), []domain.Passage{
		domain.NewPassage("three", map[string]string{domain.MetaDocumentID: "a"}),
	}))
	assert.Equal(t, 3, idx.Len())
	assert.True(t, idx.Built())
	assert.Equal(t, 8, idx.Identity().Dimensions)

	removed, err := idx.DeleteDocument(context.Background(), "a")
	require.NoError(t, err)
	assert.Equal(t, 2, removed)
	assert.Equal(t, "two", idx.Passages()[0].Text)

	// Not persisted yet, so there is no collection to search
	_, err = idx.Search(context.Background(), make([]float32, 8), 3)
	assert.ErrorIs(t, err, domain.ErrUninitializedIndex)
}

func TestIndex_LoadRejectsFlatBundle(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "vector_store")
	require.NoError(t, bundle.Write(dir, &bundle.Manifest{
		Version:  bundle.FormatVersion,
		Backend:  "flat",
		Identity: domain.ProviderIdentity{Dimensions: 8},
	}))

	idx := &Index{base: "test", embedder: mocks.NewMockEmbeddingService()}
	assert.ErrorIs(t, idx.Load(context.Background(), dir), domain.ErrCorruptIndex)
	assert.ErrorIs(t, idx.Load(context.Background(), filepath.Join(dir, "missing")), domain.ErrNotFound)
}

// TestQdrant_Integration runs against a live server when QDRANT_HOST is set.
func TestQdrant_Integration(t *testing.T) {
	host := os.Getenv("QDRANT_HOST")
	if host == "" {
		t.Skip("QDRANT_HOST not set")
	}
	port, _ := strconv.Atoi(os.Getenv("QDRANT_PORT"))

	factory, err := NewFactory(Config{Host: host, Port: port, Collection: "askmydocs_test", Provider: "mock"})
	require.NoError(t, err)
	defer factory.Close()
	require.NoError(t, factory.Ping(context.Background()))

	emb := mocks.NewMockEmbeddingService()
	emb.SetDimensions(3)
	emb.SetVector("lost baggage", []float32{0, 0, 1})
	emb.SetVector("baggage delay", []float32{0, 0, 1})
	emb.SetVector("trip cancellation", []float32{1, 0, 0})

	idx, err := factory.NewIndex(emb)
	require.NoError(t, err)
	require.NoError(t, idx.Build(context.Background(), []domain.Passage{
		domain.NewPassage("trip cancellation", nil),
		domain.NewPassage("lost baggage", nil),
		domain.NewPassage("baggage delay", nil),
	}))

	path := filepath.Join(t.TempDir(), "vector_store")
	require.NoError(t, idx.Persist(context.Background(), path))

	loaded, err := factory.NewIndex(emb)
	require.NoError(t, err)
	require.NoError(t, loaded.Load(context.Background(), path))
	assert.Equal(t, 3, loaded.Len())

	results, err := loaded.Search(context.Background(), []float32{0, 0, 1}, 2)
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.Equal(t, "lost baggage", results[0].Passage.Text)
	assert.Equal(t, "baggage delay", results[1].Passage.Text)
}
