package qdrantindex

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/qdrant/go-client/qdrant"

	"github.com/custodia-labs/askmydocs/internal/adapters/driven/bundle"
	"github.com/custodia-labs/askmydocs/internal/core/domain"
	"github.com/custodia-labs/askmydocs/internal/core/ports/driven"
)

// Ensure Index implements VectorIndex
var _ driven.VectorIndex = (*Index)(nil)

const (
	payloadText     = "text"
	payloadSeq      = "seq"
	payloadMetadata = "metadata"

	upsertBatchSize = 256
)

// point is one passage held locally until the next Persist.
type point struct {
	passage domain.Passage
	vector  []float32
}

// Index mirrors its passages and vectors in memory and writes them to a
// fresh collection on Persist. Search goes to the collection the instance
// was persisted to or loaded from, so a built but unpersisted index
// reports domain.ErrUninitializedIndex.
type Index struct {
	client   *qdrant.Client
	base     string
	embedder driven.EmbeddingService
	provider string
	logger   *slog.Logger

	mu         sync.RWMutex
	points     []point
	dimensions int
	built      bool
	collection string
}

// Build embeds passages and replaces the local content.
func (x *Index) Build(ctx context.Context, passages []domain.Passage) error {
	points, dims, err := x.embed(ctx, passages)
	if err != nil {
		return err
	}

	x.mu.Lock()
	defer x.mu.Unlock()
	x.points = points
	x.dimensions = dims
	x.built = true
	return nil
}

// Append embeds passages and adds them after the existing ones.
func (x *Index) Append(ctx context.Context, passages []domain.Passage) error {
	points, dims, err := x.embed(ctx, passages)
	if err != nil {
		return err
	}

	x.mu.Lock()
	defer x.mu.Unlock()
	if len(points) > 0 {
		if len(x.points) > 0 && dims != x.dimensions {
			return fmt.Errorf("%w: provider returned %d dimensions, index holds %d",
				domain.ErrEmbeddingProvider, dims, x.dimensions)
		}
		x.dimensions = dims
	}
	x.points = append(x.points, points...)
	x.built = true
	return nil
}

// DeleteDocument removes every passage indexed under documentID.
func (x *Index) DeleteDocument(ctx context.Context, documentID string) (int, error) {
	x.mu.Lock()
	defer x.mu.Unlock()

	kept := make([]point, 0, len(x.points))
	for _, p := range x.points {
		if p.passage.DocumentID() != documentID {
			kept = append(kept, p)
		}
	}
	removed := len(x.points) - len(kept)
	x.points = kept
	return removed, nil
}

// Search queries the instance's collection and orders the hits by score,
// then insertion order.
func (x *Index) Search(ctx context.Context, query []float32, k int) ([]domain.ScoredPassage, error) {
	x.mu.RLock()
	collection, built, count, dims := x.collection, x.built, len(x.points), x.dimensions
	x.mu.RUnlock()

	if count == 0 || k <= 0 {
		return []domain.ScoredPassage{}, nil
	}
	if !built || collection == "" {
		return nil, domain.ErrUninitializedIndex
	}
	if len(query) != dims {
		return nil, fmt.Errorf("%w: query has %d dimensions, index holds %d",
			domain.ErrEmbeddingProvider, len(query), dims)
	}

	hits, err := collectTies(k, count, func(limit int) ([]rankedHit, error) {
		n := uint64(limit)
		found, err := x.client.Query(ctx, &qdrant.QueryPoints{
			CollectionName: collection,
			Query:          qdrant.NewQuery(query...),
			Limit:          &n,
			WithPayload:    qdrant.NewWithPayload(true),
		})
		if err != nil {
			return nil, fmt.Errorf("%w: qdrant query: %v", domain.ErrStorage, err)
		}
		ranked := make([]rankedHit, len(found))
		for i, h := range found {
			p, seq := fromPayload(h.GetPayload())
			ranked[i] = rankedHit{ScoredPassage: domain.ScoredPassage{Passage: p, Score: float64(h.GetScore())}, seq: seq}
		}
		return ranked, nil
	})
	if err != nil {
		return nil, err
	}

	results := rank(hits)
	if len(results) > k {
		results = results[:k]
	}
	return results, nil
}

// tieMargin is how many hits past k are fetched up front so ties at the
// cut-off can be settled by insertion order.
const tieMargin = 8

// collectTies runs query with a growing limit until every hit scoring the
// same as the k-th one is included, or the collection is exhausted. Qdrant
// orders equal scores arbitrarily, so a plain top-k could drop an earlier
// passage in favour of a later one.
func collectTies(k, total int, query func(limit int) ([]rankedHit, error)) ([]rankedHit, error) {
	limit := min(k+tieMargin, total)
	for {
		hits, err := query(limit)
		if err != nil {
			return nil, err
		}
		if len(hits) <= k || len(hits) < limit || limit >= total {
			return hits, nil
		}
		if hits[len(hits)-1].Score < hits[k-1].Score {
			return hits, nil
		}
		limit = min(limit*2, total)
	}
}

// Persist upserts every point into a new collection generation and points
// the bundle manifest at it. The generation before the replaced one is
// dropped.
func (x *Index) Persist(ctx context.Context, path string) error {
	x.mu.RLock()
	points := make([]point, len(x.points))
	copy(points, x.points)
	identity := x.identityLocked()
	x.mu.RUnlock()

	var previous, stale string
	if old, err := bundle.ReadManifest(path); err == nil && old.Backend == Backend {
		previous, stale = old.Collection, old.Previous
	}

	collection := fmt.Sprintf("%s_%s", x.base, strings.ReplaceAll(uuid.NewString(), "-", "")[:12])
	if err := x.createCollection(ctx, collection, identity.Dimensions); err != nil {
		return err
	}
	if err := x.upsert(ctx, collection, points); err != nil {
		_ = x.client.DeleteCollection(context.WithoutCancel(ctx), collection)
		return err
	}

	manifest := &bundle.Manifest{
		Version:    bundle.FormatVersion,
		Backend:    Backend,
		Identity:   identity,
		Count:      len(points),
		CreatedAt:  time.Now().UTC(),
		Collection: collection,
		Previous:   previous,
	}
	if err := bundle.Write(path, manifest); err != nil {
		_ = x.client.DeleteCollection(context.WithoutCancel(ctx), collection)
		return err
	}

	x.mu.Lock()
	x.collection = collection
	x.mu.Unlock()

	if stale != "" && stale != previous {
		if err := x.client.DeleteCollection(ctx, stale); err != nil {
			x.logger.Warn("failed to drop stale collection", "collection", stale, "error", err)
		}
	}

	x.logger.Info("index persisted", "path", path, "collection", collection, "passages", len(points))
	return nil
}

// Load points the index at the collection named by the bundle at path and
// mirrors its points locally.
func (x *Index) Load(ctx context.Context, path string) error {
	manifest, err := bundle.ReadManifest(path)
	if err != nil {
		return err
	}
	if manifest.Backend != Backend || manifest.Collection == "" {
		return fmt.Errorf("%w: bundle does not point at a qdrant collection", domain.ErrCorruptIndex)
	}
	if want := x.embedder.Dimensions(); want > 0 && manifest.Identity.Dimensions > 0 && want != manifest.Identity.Dimensions {
		return fmt.Errorf("%w: bundle has %d dimensions, provider %s produces %d",
			domain.ErrCorruptIndex, manifest.Identity.Dimensions, x.embedder.Model(), want)
	}

	exists, err := x.client.CollectionExists(ctx, manifest.Collection)
	if err != nil {
		return fmt.Errorf("%w: qdrant: %v", domain.ErrStorage, err)
	}
	if !exists {
		return fmt.Errorf("%w: collection %s is missing", domain.ErrCorruptIndex, manifest.Collection)
	}

	if manifest.Count > 0 {
		info, err := x.client.GetCollectionInfo(ctx, manifest.Collection)
		if err != nil {
			return fmt.Errorf("%w: qdrant: %v", domain.ErrStorage, err)
		}
		size := info.GetConfig().GetParams().GetVectorsConfig().GetParams().GetSize()
		if int(size) != manifest.Identity.Dimensions {
			return fmt.Errorf("%w: collection %s holds %d-dimension vectors, manifest says %d",
				domain.ErrCorruptIndex, manifest.Collection, size, manifest.Identity.Dimensions)
		}
	}

	points, err := x.scroll(ctx, manifest.Collection, manifest.Count)
	if err != nil {
		return err
	}
	if len(points) != manifest.Count {
		return fmt.Errorf("%w: manifest lists %d passages, collection holds %d",
			domain.ErrCorruptIndex, manifest.Count, len(points))
	}

	x.mu.Lock()
	defer x.mu.Unlock()
	x.points = points
	x.dimensions = manifest.Identity.Dimensions
	x.collection = manifest.Collection
	x.built = true
	return nil
}

// Len returns the number of stored passages.
func (x *Index) Len() int {
	x.mu.RLock()
	defer x.mu.RUnlock()
	return len(x.points)
}

// Passages returns copies of the stored passages in insertion order.
func (x *Index) Passages() []domain.Passage {
	x.mu.RLock()
	defer x.mu.RUnlock()
	out := make([]domain.Passage, len(x.points))
	for i, p := range x.points {
		out[i] = p.passage.Clone()
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
	return domain.ProviderIdentity{Provider: x.provider, Model: x.embedder.Model(), Dimensions: dims}
}

// Close drops the local mirror. The client belongs to the Factory.
func (x *Index) Close() error {
	x.mu.Lock()
	defer x.mu.Unlock()
	x.points = nil
	return nil
}

func (x *Index) embed(ctx context.Context, passages []domain.Passage) ([]point, int, error) {
	if len(passages) == 0 {
		return []point{}, 0, nil
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
	points := make([]point, len(passages))
	for i, p := range passages {
		if dims == 0 || len(vectors[i]) != dims {
			return nil, 0, fmt.Errorf("%w: inconsistent vector dimensions", domain.ErrEmbeddingProvider)
		}
		points[i] = point{passage: p.Clone(), vector: vectors[i]}
	}
	return points, dims, nil
}

func (x *Index) createCollection(ctx context.Context, name string, dims int) error {
	if dims <= 0 {
		return fmt.Errorf("%w: cannot create a collection without a vector size", domain.ErrConfiguration)
	}
	err := x.client.CreateCollection(ctx, &qdrant.CreateCollection{
		CollectionName: name,
		VectorsConfig: &qdrant.VectorsConfig{
			Config: &qdrant.VectorsConfig_Params{
				Params: &qdrant.VectorParams{
					Size:     uint64(dims),
					Distance: qdrant.Distance_Cosine,
				},
			},
		},
	})
	if err != nil {
		return fmt.Errorf("%w: create collection %s: %v", domain.ErrStorage, name, err)
	}
	return nil
}

func (x *Index) upsert(ctx context.Context, collection string, points []point) error {
	for start := 0; start < len(points); start += upsertBatchSize {
		end := min(start+upsertBatchSize, len(points))

		batch := make([]*qdrant.PointStruct, 0, end-start)
		for i := start; i < end; i++ {
			batch = append(batch, &qdrant.PointStruct{
				Id:      qdrant.NewIDUUID(uuid.NewString()),
				Vectors: qdrant.NewVectors(points[i].vector...),
				Payload: qdrant.NewValueMap(toPayload(points[i].passage, i)),
			})
		}

		if _, err := x.client.Upsert(ctx, &qdrant.UpsertPoints{
			CollectionName: collection,
			Wait:           qdrant.PtrOf(true),
			Points:         batch,
		}); err != nil {
			return fmt.Errorf("%w: upsert into %s: %v", domain.ErrStorage, collection, err)
		}
	}
	return nil
}

func (x *Index) scroll(ctx context.Context, collection string, count int) ([]point, error) {
	if count == 0 {
		return []point{}, nil
	}

	limit := uint32(count)
	retrieved, err := x.client.Scroll(ctx, &qdrant.ScrollPoints{
		CollectionName: collection,
		Limit:          &limit,
		WithPayload:    qdrant.NewWithPayload(true),
		WithVectors:    qdrant.NewWithVectors(true),
	})
	if err != nil {
		return nil, fmt.Errorf("%w: scroll %s: %v", domain.ErrStorage, collection, err)
	}

	ordered := make([]rankedPoint, len(retrieved))
	for i, r := range retrieved {
		p, seq := fromPayload(r.GetPayload())
		ordered[i] = rankedPoint{point: point{passage: p, vector: r.GetVectors().GetVector().GetData()}, seq: seq}
	}
	sort.SliceStable(ordered, func(i, j int) bool { return ordered[i].seq < ordered[j].seq })

	points := make([]point, len(ordered))
	for i, o := range ordered {
		points[i] = o.point
	}
	return points, nil
}
