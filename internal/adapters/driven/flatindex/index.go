// Package flatindex is an exact, in-memory vector index persisted as a
// gob bundle. Search is a linear cosine scan.
package flatindex

import (
	"bytes"
	"context"
	"encoding/gob"
	"fmt"
	"log/slog"
	"math"
	"sort"
	"sync"
	"time"

	"github.com/custodia-labs/askmydocs/internal/adapters/driven/bundle"
	"github.com/custodia-labs/askmydocs/internal/core/domain"
	"github.com/custodia-labs/askmydocs/internal/core/ports/driven"
)

// Ensure Index implements VectorIndex
var _ driven.VectorIndex = (*Index)(nil)

const (
	// Backend is the name recorded in bundle manifests
	Backend = "flat"

	dataFile = "index.gob"
)

// entry is one stored passage and its vector.
type entry struct {
	passage domain.Passage
	vector  []float32
	norm    float64
}

// snapshot is the gob payload of a bundle.
type snapshot struct {
	Passages []domain.Passage
	Vectors  [][]float32
}

// Index is a flat cosine-similarity index.
// Thread-safe: Search takes a read lock, mutations take the write lock.
type Index struct {
	mu       sync.RWMutex
	embedder driven.EmbeddingService
	provider string
	logger   *slog.Logger

	entries    []entry
	dimensions int
	built      bool
}

// New creates an empty index whose vectors come from embedder.
func New(embedder driven.EmbeddingService, provider string, logger *slog.Logger) *Index {
	if logger == nil {
		logger = slog.Default()
	}
	return &Index{
		embedder: embedder,
		provider: provider,
		logger:   logger.With("component", "flatindex"),
	}
}

// Build embeds passages and replaces the index content.
func (x *Index) Build(ctx context.Context, passages []domain.Passage) error {
	entries, dims, err := x.embed(ctx, passages)
	if err != nil {
		return err
	}

	x.mu.Lock()
	defer x.mu.Unlock()
	x.entries = entries
	x.dimensions = dims
	x.built = true

	x.logger.Debug("index built", "passages", len(entries), "dimensions", dims)
	return nil
}

// Append embeds passages and adds them after the existing ones.
func (x *Index) Append(ctx context.Context, passages []domain.Passage) error {
	if len(passages) == 0 {
		x.mu.Lock()
		x.built = true
		x.mu.Unlock()
		return nil
	}

	entries, dims, err := x.embed(ctx, passages)
	if err != nil {
		return err
	}

	x.mu.Lock()
	defer x.mu.Unlock()
	if x.dimensions != 0 && len(x.entries) > 0 && dims != x.dimensions {
		return fmt.Errorf("%w: provider returned %d dimensions, index holds %d",
			domain.ErrEmbeddingProvider, dims, x.dimensions)
	}
	x.entries = append(x.entries, entries...)
	x.dimensions = dims
	x.built = true
	return nil
}

// DeleteDocument removes every passage indexed under documentID.
func (x *Index) DeleteDocument(ctx context.Context, documentID string) (int, error) {
	x.mu.Lock()
	defer x.mu.Unlock()

	kept := make([]entry, 0, len(x.entries))
	for _, e := range x.entries {
		if e.passage.DocumentID() != documentID {
			kept = append(kept, e)
		}
	}
	removed := len(x.entries) - len(kept)
	x.entries = kept
	return removed, nil
}

// Search returns the k passages most similar to query, best first.
// Equal scores keep insertion order. An index that holds nothing, built or
// not, returns an empty result.
func (x *Index) Search(ctx context.Context, query []float32, k int) ([]domain.ScoredPassage, error) {
	x.mu.RLock()
	defer x.mu.RUnlock()

	if len(x.entries) == 0 || k <= 0 {
		return []domain.ScoredPassage{}, nil
	}
	if len(query) != x.dimensions {
		return nil, fmt.Errorf("%w: query has %d dimensions, index holds %d",
			domain.ErrEmbeddingProvider, len(query), x.dimensions)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	qnorm := norm(query)
	results := make([]domain.ScoredPassage, len(x.entries))
	for i, e := range x.entries {
		results[i] = domain.ScoredPassage{
			Passage: e.passage,
			Score:   cosine(query, qnorm, e.vector, e.norm),
		}
	}

	sort.SliceStable(results, func(i, j int) bool {
		return results[i].Score > results[j].Score
	})

	if k > len(results) {
		k = len(results)
	}
	out := results[:k]
	for i := range out {
		out[i].Passage = out[i].Passage.Clone()
	}
	return out, nil
}

// Persist writes the index as a bundle directory at path.
func (x *Index) Persist(ctx context.Context, path string) error {
	x.mu.RLock()
	snap := snapshot{
		Passages: make([]domain.Passage, len(x.entries)),
		Vectors:  make([][]float32, len(x.entries)),
	}
	for i, e := range x.entries {
		snap.Passages[i] = e.passage
		snap.Vectors[i] = e.vector
	}
	identity := x.identityLocked()
	x.mu.RUnlock()

	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(snap); err != nil {
		return fmt.Errorf("%w: encode index: %v", domain.ErrStorage, err)
	}
	data := buf.Bytes()

	manifest := &bundle.Manifest{
		Version:   bundle.FormatVersion,
		Backend:   Backend,
		Identity:  identity,
		Count:     len(snap.Passages),
		CreatedAt: time.Now().UTC(),
		DataFile:  dataFile,
		Checksum:  bundle.Checksum(data),
	}
	if err := bundle.Write(path, manifest, bundle.File{Name: dataFile, Data: data}); err != nil {
		return err
	}

	x.logger.Info("index persisted", "path", path, "passages", manifest.Count)
	return nil
}

// Load replaces the index content with the bundle at path.
func (x *Index) Load(ctx context.Context, path string) error {
	manifest, err := bundle.ReadManifest(path)
	if err != nil {
		return err
	}
	if manifest.Backend != Backend {
		return fmt.Errorf("%w: bundle was written by the %q backend", domain.ErrCorruptIndex, manifest.Backend)
	}
	if want := x.embedder.Dimensions(); want > 0 && manifest.Identity.Dimensions > 0 && want != manifest.Identity.Dimensions {
		return fmt.Errorf("%w: bundle has %d dimensions, provider %s produces %d",
			domain.ErrCorruptIndex, manifest.Identity.Dimensions, x.embedder.Model(), want)
	}

	data, err := bundle.ReadData(path, manifest)
	if err != nil {
		return err
	}

	var snap snapshot
	if err := gob.NewDecoder(bytes.NewReader(data)).Decode(&snap); err != nil {
		return fmt.Errorf("%w: decode index: %v", domain.ErrCorruptIndex, err)
	}
	if len(snap.Passages) != len(snap.Vectors) || len(snap.Passages) != manifest.Count {
		return fmt.Errorf("%w: manifest lists %d passages, data holds %d passages and %d vectors",
			domain.ErrCorruptIndex, manifest.Count, len(snap.Passages), len(snap.Vectors))
	}

	entries := make([]entry, len(snap.Passages))
	for i := range snap.Passages {
		if len(snap.Vectors[i]) != manifest.Identity.Dimensions {
			return fmt.Errorf("%w: vector %d has %d dimensions, manifest says %d",
				domain.ErrCorruptIndex, i, len(snap.Vectors[i]), manifest.Identity.Dimensions)
		}
		entries[i] = newEntry(snap.Passages[i], snap.Vectors[i])
	}

	x.mu.Lock()
	defer x.mu.Unlock()
	x.entries = entries
	x.dimensions = manifest.Identity.Dimensions
	x.built = true

	x.logger.Info("index loaded", "path", path, "passages", len(entries), "identity", manifest.Identity.String())
	return nil
}

// Len returns the number of stored passages.
func (x *Index) Len() int {
	x.mu.RLock()
	defer x.mu.RUnlock()
	return len(x.entries)
}

// Passages returns copies of the stored passages in insertion order.
func (x *Index) Passages() []domain.Passage {
	x.mu.RLock()
	defer x.mu.RUnlock()
	out := make([]domain.Passage, len(x.entries))
	for i, e := range x.entries {
		out[i] = e.passage.Clone()
	}
	return out
}

// Built reports whether Build, Append or Load has completed.
func (x *Index) Built() bool {
	x.mu.RLock()
	defer x.mu.RUnlock()
	return x.built
}

// Identity returns the embedding provider identity of the stored vectors.
func (x *Index) Identity() domain.ProviderIdentity {
	x.mu.RLock()
	defer x.mu.RUnlock()
	return x.identityLocked()
}

func (x *Index) identityLocked() domain.ProviderIdentity {
	dims := x.dimensions
	if dims == 0 {
		dims = x.embedder.Dimensions()
	}
	return domain.ProviderIdentity{
		Provider:   x.provider,
		Model:      x.embedder.Model(),
		Dimensions: dims,
	}
}

// Close drops the stored vectors.
func (x *Index) Close() error {
	x.mu.Lock()
	defer x.mu.Unlock()
	x.entries = nil
	return nil
}

// embed runs one batched provider call and pairs vectors with passages.
func (x *Index) embed(ctx context.Context, passages []domain.Passage) ([]entry, int, error) {
	if len(passages) == 0 {
		return []entry{}, 0, nil
	}

	texts := make([]string, len(passages))
	for i, p := range passages {
		texts[i] = p.Text
	}

	vectors, err := x.embedder.Embed(ctx, texts)
	if err != nil {
		return nil, 0, err
	}
	if len(vectors) != len(passages) {
		return nil, 0, fmt.Errorf("%w: provider returned %d vectors for %d passages",
			domain.ErrEmbeddingProvider, len(vectors), len(passages))
	}

	dims := len(vectors[0])
	entries := make([]entry, len(passages))
	for i, p := range passages {
		if len(vectors[i]) != dims || dims == 0 {
			return nil, 0, fmt.Errorf("%w: inconsistent vector dimensions", domain.ErrEmbeddingProvider)
		}
		entries[i] = newEntry(p.Clone(), vectors[i])
	}
	return entries, dims, nil
}

func newEntry(p domain.Passage, v []float32) entry {
	return entry{passage: p, vector: v, norm: norm(v)}
}

func norm(v []float32) float64 {
	var sum float64
	for _, f := range v {
		sum += float64(f) * float64(f)
	}
	return math.Sqrt(sum)
}

// cosine returns 0 when either vector has zero length.
func cosine(a []float32, anorm float64, b []float32, bnorm float64) float64 {
	if anorm == 0 || bnorm == 0 {
		return 0
	}
	var dot float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
	}
	return dot / (anorm * bnorm)
}
