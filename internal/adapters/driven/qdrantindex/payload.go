package qdrantindex

import (
	"sort"

	"github.com/qdrant/go-client/qdrant"

	"github.com/custodia-labs/askmydocs/internal/core/domain"
)

type rankedHit struct {
	domain.ScoredPassage
	seq int64
}

type rankedPoint struct {
	point
	seq int64
}

// toPayload stores the passage text, its metadata and its insertion
// position so ties can be broken the same way as the flat index.
func toPayload(p domain.Passage, seq int) map[string]any {
	meta := make(map[string]any, len(p.Metadata))
	for k, v := range p.Metadata {
		meta[k] = v
	}
	return map[string]any{
		payloadText:     p.Text,
		payloadSeq:      int64(seq),
		payloadMetadata: meta,
	}
}

func fromPayload(payload map[string]*qdrant.Value) (domain.Passage, int64) {
	meta := map[string]string{}
	for k, v := range payload[payloadMetadata].GetStructValue().GetFields() {
		meta[k] = v.GetStringValue()
	}
	return domain.Passage{
		Text:     payload[payloadText].GetStringValue(),
		Metadata: meta,
	}, payload[payloadSeq].GetIntegerValue()
}

// rank orders hits by score descending, then by insertion position.
func rank(hits []rankedHit) []domain.ScoredPassage {
	sort.SliceStable(hits, func(i, j int) bool {
		if hits[i].Score != hits[j].Score {
			return hits[i].Score > hits[j].Score
		}
		return hits[i].seq < hits[j].seq
	})
	out := make([]domain.ScoredPassage, len(hits))
	for i, h := range hits {
		out[i] = h.ScoredPassage
	}
	return out
}
