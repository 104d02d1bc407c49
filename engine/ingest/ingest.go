// Package ingest runs the upload-time pipeline: load a source file into
// segments, split into chunks, embed, and add to the owner's vector
// collection. Each stage short-circuits the pipeline on failure, so a
// broken embedding call never leaves half a document in the index.
package ingest

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/docsage-ai/docsage/engine/chunk"
	"github.com/docsage-ai/docsage/engine/domain"
	"github.com/docsage-ai/docsage/engine/embed"
	"github.com/docsage-ai/docsage/engine/loader"
	"github.com/docsage-ai/docsage/pkg/fn"
)

// embedBatchSize bounds a single embeddings request.
const embedBatchSize = 100

// Index is the slice of the index manager ingestion needs.
type Index interface {
	Put(ctx context.Context, userID string, chunks []domain.Chunk, vectors [][]float32) error
}

// Deps wires the pipeline's collaborators.
type Deps struct {
	Loaders  *loader.Registry
	Embedder embed.Embedder
	Index    Index
	Chunking chunk.Options
	Retry    fn.RetryOpts
	Logger   *slog.Logger
}

// Pipeline ingests one document at a time for a given user.
type Pipeline struct {
	deps Deps
}

// New creates an ingestion pipeline. Zero-valued chunking and retry
// options fall back to package defaults.
func New(deps Deps) *Pipeline {
	if deps.Chunking.MaxSize == 0 {
		deps.Chunking = chunk.Options{MaxSize: chunk.DefaultMaxSize, Overlap: chunk.DefaultOverlap}
	}
	if deps.Retry.MaxAttempts == 0 {
		deps.Retry = fn.DefaultRetry
	}
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	return &Pipeline{deps: deps}
}

// Result reports what one ingestion run produced.
type Result struct {
	Segments int
	Chunks   int
}

type staged struct {
	userID   string
	path     string
	segments []domain.Segment
	chunks   []domain.Chunk
	vectors  [][]float32
}

// Ingest loads, chunks, embeds and indexes one file for the user.
// An empty or unparseable source fails with domain.ErrLoad; nothing is
// written to the index unless every stage succeeded.
func (p *Pipeline) Ingest(ctx context.Context, userID, path string) (Result, error) {
	pipeline := fn.Pipeline(
		fn.TracedStage("ingest.load", p.loadStage()),
		fn.TracedStage("ingest.chunk", p.chunkStage()),
		fn.TracedStage("ingest.embed", fn.RetryStage(p.deps.Retry, p.embedStage())),
		fn.TracedStage("ingest.index", p.indexStage()),
		fn.TapStage(func(_ context.Context, s staged) {
			p.deps.Logger.Info("document ingested",
				"user_id", s.userID, "path", s.path,
				"segments", len(s.segments), "chunks", len(s.chunks))
		}),
	)

	r := pipeline(ctx, staged{userID: userID, path: path})
	s, err := r.Unwrap()
	if err != nil {
		return Result{}, err
	}
	return Result{Segments: len(s.segments), Chunks: len(s.chunks)}, nil
}

func (p *Pipeline) loadStage() fn.Stage[staged, staged] {
	return func(ctx context.Context, s staged) fn.Result[staged] {
		segments, err := p.deps.Loaders.Load(ctx, s.path)
		if err != nil {
			return fn.Err[staged](err)
		}
		if len(segments) == 0 {
			return fn.Errf[staged]("ingest: %w: %s produced no content", domain.ErrLoad, s.path)
		}
		s.segments = segments
		return fn.Ok(s)
	}
}

func (p *Pipeline) chunkStage() fn.Stage[staged, staged] {
	return func(_ context.Context, s staged) fn.Result[staged] {
		s.chunks = chunk.Split(s.segments, p.deps.Chunking)
		if len(s.chunks) == 0 {
			return fn.Errf[staged]("ingest: %w: %s produced no chunks", domain.ErrLoad, s.path)
		}
		return fn.Ok(s)
	}
}

func (p *Pipeline) embedStage() fn.Stage[staged, staged] {
	return func(ctx context.Context, s staged) fn.Result[staged] {
		texts := fn.Map(s.chunks, func(c domain.Chunk) string { return c.Content })
		vectors := make([][]float32, 0, len(texts))
		for _, batch := range fn.Chunk(texts, embedBatchSize) {
			vs, err := p.deps.Embedder.Embed(ctx, batch)
			if err != nil {
				return fn.Err[staged](err)
			}
			vectors = append(vectors, vs...)
		}
		if len(vectors) != len(s.chunks) {
			return fn.Errf[staged]("ingest: %w: %d vectors for %d chunks",
				domain.ErrEmbedding, len(vectors), len(s.chunks))
		}
		s.vectors = vectors
		return fn.Ok(s)
	}
}

func (p *Pipeline) indexStage() fn.Stage[staged, staged] {
	return func(ctx context.Context, s staged) fn.Result[staged] {
		if err := p.deps.Index.Put(ctx, s.userID, s.chunks, s.vectors); err != nil {
			return fn.Err[staged](fmt.Errorf("ingest: index %s: %w", s.path, err))
		}
		return fn.Ok(s)
	}
}
