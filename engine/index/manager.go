package index

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/google/uuid"

	"github.com/docsage-ai/docsage/engine/domain"
)

// namespace for deterministic point IDs: same user + same content maps
// to the same point, so re-upserting a chunk overwrites instead of
// duplicating.
var pointNamespace = uuid.MustParse("6ba7b810-9dad-11d1-80b4-00c04fd430c8")

// Manager owns per-user vector collections. All mutations of a user's
// collection go through the same per-user lock, so a rebuild can never
// interleave with an upsert for that user.
type Manager struct {
	backend VectorBackend
	dims    int
	log     *slog.Logger

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

// NewManager creates a Manager storing vectors of the given dimension.
func NewManager(backend VectorBackend, dims int, log *slog.Logger) *Manager {
	if log == nil {
		log = slog.Default()
	}
	return &Manager{
		backend: backend,
		dims:    dims,
		log:     log,
		locks:   make(map[string]*sync.Mutex),
	}
}

// CollectionName returns the collection holding a user's vectors.
func CollectionName(userID string) string {
	return "user_" + userID
}

func (m *Manager) userLock(userID string) *sync.Mutex {
	m.mu.Lock()
	defer m.mu.Unlock()
	l, ok := m.locks[userID]
	if !ok {
		l = &sync.Mutex{}
		m.locks[userID] = l
	}
	return l
}

// Put adds chunks to the user's collection. When the incremental upsert
// fails, Put falls back to a full rebuild from the same chunks; only a
// failed rebuild is reported to the caller.
func (m *Manager) Put(ctx context.Context, userID string, chunks []domain.Chunk, vectors [][]float32) error {
	l := m.userLock(userID)
	l.Lock()
	defer l.Unlock()

	if err := m.upsert(ctx, userID, chunks, vectors); err != nil {
		m.log.Warn("index upsert failed, rebuilding collection",
			"user_id", userID, "chunks", len(chunks), "error", err)
		return m.rebuild(ctx, userID, chunks, vectors)
	}
	return nil
}

// Rebuild drops the user's collection and repopulates it from scratch.
func (m *Manager) Rebuild(ctx context.Context, userID string, chunks []domain.Chunk, vectors [][]float32) error {
	l := m.userLock(userID)
	l.Lock()
	defer l.Unlock()
	return m.rebuild(ctx, userID, chunks, vectors)
}

// Drop removes the user's collection entirely.
func (m *Manager) Drop(ctx context.Context, userID string) error {
	l := m.userLock(userID)
	l.Lock()
	defer l.Unlock()
	return m.backend.DeleteCollection(ctx, CollectionName(userID))
}

// TopK returns up to k chunks nearest to the query vector. A user with
// no collection yet gets an empty result, not an error.
func (m *Manager) TopK(ctx context.Context, userID string, vector []float32, k int) ([]domain.ScoredChunk, error) {
	name := CollectionName(userID)

	exists, err := m.backend.CollectionExists(ctx, name)
	if err != nil {
		return nil, fmt.Errorf("index: check collection %s: %w", name, err)
	}
	if !exists {
		return []domain.ScoredChunk{}, nil
	}

	hits, err := m.backend.Search(ctx, name, vector, k)
	if err != nil {
		return nil, fmt.Errorf("index: search %s: %w", name, err)
	}

	out := make([]domain.ScoredChunk, 0, len(hits))
	for _, h := range hits {
		content, _ := h.Payload["content"].(string)
		meta := make(map[string]any, len(h.Payload))
		for key, v := range h.Payload {
			if key == "content" {
				continue
			}
			meta[key] = v
		}
		out = append(out, domain.ScoredChunk{
			Chunk: domain.Chunk{Content: content, Metadata: meta},
			Score: h.Score,
		})
	}
	return out, nil
}

func (m *Manager) upsert(ctx context.Context, userID string, chunks []domain.Chunk, vectors [][]float32) error {
	name := CollectionName(userID)
	if err := m.backend.EnsureCollection(ctx, name, m.dims); err != nil {
		return fmt.Errorf("index: %w: ensure %s: %v", domain.ErrIndexUpsert, name, err)
	}
	records, err := buildRecords(userID, chunks, vectors)
	if err != nil {
		return fmt.Errorf("index: %w: %v", domain.ErrIndexUpsert, err)
	}
	if err := m.backend.Upsert(ctx, name, records); err != nil {
		return fmt.Errorf("index: %w: upsert into %s: %v", domain.ErrIndexUpsert, name, err)
	}
	return nil
}

func (m *Manager) rebuild(ctx context.Context, userID string, chunks []domain.Chunk, vectors [][]float32) error {
	name := CollectionName(userID)
	if err := m.backend.DeleteCollection(ctx, name); err != nil {
		return fmt.Errorf("index: %w: drop %s: %v", domain.ErrIndexRebuild, name, err)
	}
	if err := m.backend.EnsureCollection(ctx, name, m.dims); err != nil {
		return fmt.Errorf("index: %w: recreate %s: %v", domain.ErrIndexRebuild, name, err)
	}
	records, err := buildRecords(userID, chunks, vectors)
	if err != nil {
		return fmt.Errorf("index: %w: %v", domain.ErrIndexRebuild, err)
	}
	if err := m.backend.Upsert(ctx, name, records); err != nil {
		return fmt.Errorf("index: %w: populate %s: %v", domain.ErrIndexRebuild, name, err)
	}
	return nil
}

func buildRecords(userID string, chunks []domain.Chunk, vectors [][]float32) ([]Record, error) {
	if len(chunks) != len(vectors) {
		return nil, fmt.Errorf("%d chunks but %d vectors", len(chunks), len(vectors))
	}
	records := make([]Record, len(chunks))
	for i, c := range chunks {
		payload := make(map[string]any, len(c.Metadata)+1)
		for k, v := range c.Metadata {
			payload[k] = v
		}
		payload["content"] = c.Content
		records[i] = Record{
			ID:      uuid.NewSHA1(pointNamespace, []byte(userID+"\x00"+c.Content)).String(),
			Vector:  vectors[i],
			Payload: payload,
		}
	}
	return records, nil
}
