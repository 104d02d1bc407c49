// Package query runs the answer-time pipeline. Every question triggers
// a full reload of the user's documents and a rebuild of their vector
// collection before retrieval, so the index always reflects the files
// on disk; a stale or partially-written index cannot survive a query.
package query

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/docsage-ai/docsage/engine/chunk"
	"github.com/docsage-ai/docsage/engine/domain"
	"github.com/docsage-ai/docsage/engine/embed"
	"github.com/docsage-ai/docsage/engine/loader"
	"github.com/docsage-ai/docsage/pkg/fn"
)

const embedBatchSize = 100

// Store lists a user's documents and persists query history.
type Store interface {
	ListDocuments(ctx context.Context, userID string) ([]domain.SourceDocument, error)
	SaveQuery(ctx context.Context, rec *domain.QueryRecord) error
}

// Files resolves a stored document to its path on disk.
type Files interface {
	Path(userID, filename string) string
}

// Index rebuilds a user's collection from scratch.
type Index interface {
	Rebuild(ctx context.Context, userID string, chunks []domain.Chunk, vectors [][]float32) error
}

// Retriever finds the chunks nearest to a question.
type Retriever interface {
	Retrieve(ctx context.Context, userID, question string) ([]domain.ScoredChunk, error)
}

// Synthesizer produces an answer from question plus context chunks.
type Synthesizer interface {
	Answer(ctx context.Context, question string, chunks []domain.ScoredChunk) (string, error)
}

// Deps wires the orchestrator's collaborators.
type Deps struct {
	Store       Store
	Files       Files
	Loaders     *loader.Registry
	Embedder    embed.Embedder
	Index       Index
	Retriever   Retriever
	Synthesizer Synthesizer
	Chunking    chunk.Options
	Logger      *slog.Logger
}

// Orchestrator answers questions against a user's document corpus.
type Orchestrator struct {
	deps Deps
}

// New creates an Orchestrator. Zero-valued chunking options fall back
// to package defaults.
func New(deps Deps) *Orchestrator {
	if deps.Chunking.MaxSize == 0 {
		deps.Chunking = chunk.Options{MaxSize: chunk.DefaultMaxSize, Overlap: chunk.DefaultOverlap}
	}
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	return &Orchestrator{deps: deps}
}

// Ask answers one question for one user and records the exchange.
// Documents that fail to load are skipped with a warning; a user whose
// corpus is empty still gets the refusal answer and a history record.
// The returned hits are the chunks the answer was synthesized from.
func (o *Orchestrator) Ask(ctx context.Context, userID, question string) (*domain.QueryRecord, []domain.ScoredChunk, error) {
	question = strings.TrimSpace(question)
	if err := domain.ValidateQuestion(question); err != nil {
		return nil, nil, err
	}

	chunks, err := o.reload(ctx, userID)
	if err != nil {
		return nil, nil, err
	}

	vectors, err := o.embedAll(ctx, chunks)
	if err != nil {
		return nil, nil, err
	}

	if err := o.deps.Index.Rebuild(ctx, userID, chunks, vectors); err != nil {
		return nil, nil, err
	}

	hits, err := o.deps.Retriever.Retrieve(ctx, userID, question)
	if err != nil {
		return nil, nil, err
	}

	answer, err := o.deps.Synthesizer.Answer(ctx, question, hits)
	if err != nil {
		return nil, nil, err
	}

	rec := &domain.QueryRecord{
		ID:        uuid.NewString(),
		UserID:    userID,
		Question:  question,
		Answer:    answer,
		CreatedAt: time.Now().UTC(),
	}
	if err := o.deps.Store.SaveQuery(ctx, rec); err != nil {
		// The user already has their answer; losing one history row is
		// not worth failing the request.
		o.deps.Logger.Error("failed to persist query record",
			"user_id", userID, "error", err)
	}
	return rec, hits, nil
}

// reload loads and chunks every document the user has. A document that
// fails to load is logged and skipped rather than failing the query.
func (o *Orchestrator) reload(ctx context.Context, userID string) ([]domain.Chunk, error) {
	docs, err := o.deps.Store.ListDocuments(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("query: list documents: %w", err)
	}

	var all []domain.Chunk
	for _, doc := range docs {
		path := o.deps.Files.Path(userID, doc.Filename)
		segments, err := o.deps.Loaders.Load(ctx, path)
		if err != nil {
			if errors.Is(err, domain.ErrLoad) {
				o.deps.Logger.Warn("skipping unreadable document",
					"user_id", userID, "filename", doc.Filename, "error", err)
				continue
			}
			return nil, err
		}
		all = append(all, chunk.Split(segments, o.deps.Chunking)...)
	}
	return all, nil
}

func (o *Orchestrator) embedAll(ctx context.Context, chunks []domain.Chunk) ([][]float32, error) {
	texts := fn.Map(chunks, func(c domain.Chunk) string { return c.Content })
	vectors := make([][]float32, 0, len(texts))
	for _, batch := range fn.Chunk(texts, embedBatchSize) {
		vs, err := o.deps.Embedder.Embed(ctx, batch)
		if err != nil {
			return nil, err
		}
		vectors = append(vectors, vs...)
	}
	return vectors, nil
}
