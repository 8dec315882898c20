package domain

import (
	"fmt"
	"time"
)

// ProviderIdentity records which embedding model produced an index's vectors.
// Vectors from different identities must never share an index.
type ProviderIdentity struct {
	Provider   string `json:"provider" yaml:"provider"`
	Model      string `json:"model" yaml:"model"`
	Dimensions int    `json:"dimensions" yaml:"dimensions"`
}

func (p ProviderIdentity) String() string {
	return fmt.Sprintf("%s/%s (%d)", p.Provider, p.Model, p.Dimensions)
}

// Compatible reports whether vectors from other can be searched with p.
// Only the dimension is binding; a model rename with the same width loads.
func (p ProviderIdentity) Compatible(other ProviderIdentity) bool {
	return p.Dimensions == other.Dimensions
}

// IndexStats summarises the live index.
type IndexStats struct {
	Backend   string           `json:"backend"`
	Path      string           `json:"path"`
	Passages  int              `json:"passages"`
	Identity  ProviderIdentity `json:"identity"`
	LoadedAt  time.Time        `json:"loaded_at"`
	Generated string           `json:"generation,omitempty"`
}
