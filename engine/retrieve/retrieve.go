// Package retrieve answers "which stored chunks are closest to this
// question" by embedding the question and delegating to the per-user
// index.
package retrieve

import (
	"context"
	"fmt"

	"github.com/docsage-ai/docsage/engine/domain"
	"github.com/docsage-ai/docsage/engine/embed"
)

// DefaultK is how many chunks a query pulls into the answer context.
const DefaultK = 3

// Index is the slice of the index manager the retriever needs.
type Index interface {
	TopK(ctx context.Context, userID string, vector []float32, k int) ([]domain.ScoredChunk, error)
}

// Retriever embeds questions and searches the caller's collection.
type Retriever struct {
	embedder embed.Embedder
	index    Index
	k        int
}

// New creates a Retriever. k <= 0 selects DefaultK.
func New(embedder embed.Embedder, index Index, k int) *Retriever {
	if k <= 0 {
		k = DefaultK
	}
	return &Retriever{embedder: embedder, index: index, k: k}
}

// Retrieve returns up to k chunks from the user's collection nearest to
// the question. An empty or missing collection yields an empty slice.
func (r *Retriever) Retrieve(ctx context.Context, userID, question string) ([]domain.ScoredChunk, error) {
	vectors, err := r.embedder.Embed(ctx, []string{question})
	if err != nil {
		return nil, fmt.Errorf("retrieve: embed question: %w", err)
	}
	if len(vectors) != 1 {
		return nil, fmt.Errorf("retrieve: %w: got %d vectors for one question", domain.ErrEmbedding, len(vectors))
	}
	return r.index.TopK(ctx, userID, vectors[0], r.k)
}
