// Package index owns the lifecycle of per-user vector collections:
// lazy creation, incremental upsert with an automatic rebuild fallback,
// full rebuild, and nearest-neighbor queries. The Manager is the sole
// mutator of user collections; physical isolation of one collection per
// user is the multi-tenancy invariant of the whole system.
package index

import "context"

// Record is a single vector plus payload to store in a collection.
type Record struct {
	ID      string
	Vector  []float32
	Payload map[string]any
}

// Hit is a single nearest-neighbor search result.
type Hit struct {
	ID      string
	Score   float32
	Payload map[string]any
}

// VectorBackend abstracts the storage engine holding named vector
// collections. One Qdrant adapter exists; tests inject fakes.
type VectorBackend interface {
	EnsureCollection(ctx context.Context, name string, dims int) error
	DeleteCollection(ctx context.Context, name string) error
	CollectionExists(ctx context.Context, name string) (bool, error)
	Upsert(ctx context.Context, name string, records []Record) error
	Search(ctx context.Context, name string, vector []float32, limit int) ([]Hit, error)
}
