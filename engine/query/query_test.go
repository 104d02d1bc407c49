package query

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/docsage-ai/docsage/engine/domain"
	"github.com/docsage-ai/docsage/engine/loader"
)

type fakeStore struct {
	docs    []domain.SourceDocument
	listErr error
	saveErr error
	saved   []*domain.QueryRecord
}

func (f *fakeStore) ListDocuments(_ context.Context, _ string) ([]domain.SourceDocument, error) {
	return f.docs, f.listErr
}

func (f *fakeStore) SaveQuery(_ context.Context, rec *domain.QueryRecord) error {
	if f.saveErr != nil {
		return f.saveErr
	}
	f.saved = append(f.saved, rec)
	return nil
}

type fakeFiles struct{ dir string }

func (f fakeFiles) Path(_, filename string) string {
	return filepath.Join(f.dir, filename)
}

type fakeEmbedder struct{ err error }

func (f fakeEmbedder) Embed(_ context.Context, texts []string) ([][]float32, error) {
	if f.err != nil {
		return nil, f.err
	}
	vecs := make([][]float32, len(texts))
	for i := range texts {
		vecs[i] = []float32{1, 0}
	}
	return vecs, nil
}

type fakeIndex struct {
	rebuilt []domain.Chunk
	calls   int
	err     error
}

func (f *fakeIndex) Rebuild(_ context.Context, _ string, chunks []domain.Chunk, _ [][]float32) error {
	f.calls++
	f.rebuilt = chunks
	return f.err
}

type fakeRetriever struct {
	hits []domain.ScoredChunk
	err  error
}

func (f fakeRetriever) Retrieve(_ context.Context, _, _ string) ([]domain.ScoredChunk, error) {
	return f.hits, f.err
}

type fakeSynth struct {
	answer string
	err    error
}

func (f fakeSynth) Answer(_ context.Context, _ string, chunks []domain.ScoredChunk) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	if len(chunks) == 0 {
		return "I don't know.", nil
	}
	return f.answer, nil
}

func writeDoc(t *testing.T, dir, name, content string) {
	t.Helper()
	if err := os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
}

func newOrchestrator(store *fakeStore, dir string, idx *fakeIndex, ret fakeRetriever, syn fakeSynth) *Orchestrator {
	return New(Deps{
		Store:       store,
		Files:       fakeFiles{dir: dir},
		Loaders:     loader.NewRegistry(),
		Embedder:    fakeEmbedder{},
		Index:       idx,
		Retriever:   ret,
		Synthesizer: syn,
	})
}

func TestAskRebuildsFromAllDocuments(t *testing.T) {
	dir := t.TempDir()
	writeDoc(t, dir, "a.txt", "alpha content")
	writeDoc(t, dir, "b.txt", "beta content")

	store := &fakeStore{docs: []domain.SourceDocument{
		{UserID: "u1", Filename: "a.txt"},
		{UserID: "u1", Filename: "b.txt"},
	}}
	idx := &fakeIndex{}
	ret := fakeRetriever{hits: []domain.ScoredChunk{{Chunk: domain.Chunk{Content: "alpha content"}}}}
	o := newOrchestrator(store, dir, idx, ret, fakeSynth{answer: "alpha."})

	rec, sources, err := o.Ask(context.Background(), "u1", "what is alpha?")
	if err != nil {
		t.Fatal(err)
	}
	if idx.calls != 1 || len(idx.rebuilt) != 2 {
		t.Fatalf("rebuild calls=%d chunks=%d", idx.calls, len(idx.rebuilt))
	}
	if rec.Answer != "alpha." || rec.Question != "what is alpha?" || rec.UserID != "u1" {
		t.Fatalf("record = %+v", rec)
	}
	if len(store.saved) != 1 || store.saved[0] != rec {
		t.Fatal("record not persisted")
	}
	if rec.ID == "" || rec.CreatedAt.IsZero() {
		t.Fatalf("record missing id or timestamp: %+v", rec)
	}
	if len(sources) != 1 || sources[0].Content != "alpha content" {
		t.Fatalf("sources = %#v", sources)
	}
}

func TestAskSkipsUnreadableDocuments(t *testing.T) {
	dir := t.TempDir()
	writeDoc(t, dir, "good.txt", "readable content")

	store := &fakeStore{docs: []domain.SourceDocument{
		{UserID: "u1", Filename: "good.txt"},
		{UserID: "u1", Filename: "missing.txt"},
	}}
	idx := &fakeIndex{}
	o := newOrchestrator(store, dir, idx, fakeRetriever{}, fakeSynth{answer: "ok"})

	if _, _, err := o.Ask(context.Background(), "u1", "anything?"); err != nil {
		t.Fatal(err)
	}
	if len(idx.rebuilt) != 1 {
		t.Fatalf("rebuilt with %d chunks, want 1 (missing doc skipped)", len(idx.rebuilt))
	}
}

func TestAskEmptyCorpusStillRecordsRefusal(t *testing.T) {
	store := &fakeStore{}
	idx := &fakeIndex{}
	o := newOrchestrator(store, t.TempDir(), idx, fakeRetriever{}, fakeSynth{})

	rec, sources, err := o.Ask(context.Background(), "u1", "anything?")
	if err != nil {
		t.Fatal(err)
	}
	if rec.Answer != "I don't know." {
		t.Fatalf("answer = %q", rec.Answer)
	}
	if len(sources) != 0 {
		t.Fatalf("empty corpus produced sources: %#v", sources)
	}
	if len(store.saved) != 1 {
		t.Fatal("refusal answer was not persisted")
	}
	if idx.calls != 1 {
		t.Fatal("index was not rebuilt for empty corpus")
	}
}

func TestAskSynthesisFailureWritesNoRecord(t *testing.T) {
	dir := t.TempDir()
	writeDoc(t, dir, "a.txt", "content")
	store := &fakeStore{docs: []domain.SourceDocument{{UserID: "u1", Filename: "a.txt"}}}
	o := newOrchestrator(store, dir, &fakeIndex{},
		fakeRetriever{hits: []domain.ScoredChunk{{Chunk: domain.Chunk{Content: "content"}}}},
		fakeSynth{err: domain.ErrSynthesis})

	_, _, err := o.Ask(context.Background(), "u1", "q?")
	if !errors.Is(err, domain.ErrSynthesis) {
		t.Fatalf("got %v, want ErrSynthesis", err)
	}
	if len(store.saved) != 0 {
		t.Fatal("record persisted despite synthesis failure")
	}
}

func TestAskRejectsEmptyQuestion(t *testing.T) {
	o := newOrchestrator(&fakeStore{}, t.TempDir(), &fakeIndex{}, fakeRetriever{}, fakeSynth{})
	_, _, err := o.Ask(context.Background(), "u1", "   ")
	if !errors.Is(err, domain.ErrEmptyQuestion) {
		t.Fatalf("got %v, want ErrEmptyQuestion", err)
	}
}

func TestAskRebuildFailureAborts(t *testing.T) {
	dir := t.TempDir()
	writeDoc(t, dir, "a.txt", "content")
	store := &fakeStore{docs: []domain.SourceDocument{{UserID: "u1", Filename: "a.txt"}}}
	idx := &fakeIndex{err: domain.ErrIndexRebuild}
	o := newOrchestrator(store, dir, idx, fakeRetriever{}, fakeSynth{answer: "x"})

	_, _, err := o.Ask(context.Background(), "u1", "q?")
	if !errors.Is(err, domain.ErrIndexRebuild) {
		t.Fatalf("got %v, want ErrIndexRebuild", err)
	}
	if len(store.saved) != 0 {
		t.Fatal("record persisted despite rebuild failure")
	}
}

func TestAskHistoryFailureStillAnswers(t *testing.T) {
	dir := t.TempDir()
	writeDoc(t, dir, "a.txt", "content")
	store := &fakeStore{
		docs:    []domain.SourceDocument{{UserID: "u1", Filename: "a.txt"}},
		saveErr: errors.New("db locked"),
	}
	o := newOrchestrator(store, dir, &fakeIndex{},
		fakeRetriever{hits: []domain.ScoredChunk{{Chunk: domain.Chunk{Content: "content"}}}},
		fakeSynth{answer: "the answer"})

	rec, _, err := o.Ask(context.Background(), "u1", "q?")
	if err != nil {
		t.Fatal(err)
	}
	if rec.Answer != "the answer" {
		t.Fatalf("answer = %q", rec.Answer)
	}
}
