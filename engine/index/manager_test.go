package index

import (
	"context"
	"errors"
	"sort"
	"testing"

	"github.com/docsage-ai/docsage/engine/domain"
)

// fakeBackend is an in-memory VectorBackend.
type fakeBackend struct {
	collections map[string][]Record
	failUpsert  bool
	failedOnce  bool
}

func newFakeBackend() *fakeBackend {
	return &fakeBackend{collections: make(map[string][]Record)}
}

func (f *fakeBackend) EnsureCollection(_ context.Context, name string, _ int) error {
	if _, ok := f.collections[name]; !ok {
		f.collections[name] = nil
	}
	return nil
}

func (f *fakeBackend) DeleteCollection(_ context.Context, name string) error {
	delete(f.collections, name)
	return nil
}

func (f *fakeBackend) CollectionExists(_ context.Context, name string) (bool, error) {
	_, ok := f.collections[name]
	return ok, nil
}

func (f *fakeBackend) Upsert(_ context.Context, name string, records []Record) error {
	if f.failUpsert && !f.failedOnce {
		f.failedOnce = true
		return errors.New("storage unavailable")
	}
	existing := f.collections[name]
	for _, r := range records {
		replaced := false
		for i := range existing {
			if existing[i].ID == r.ID {
				existing[i] = r
				replaced = true
				break
			}
		}
		if !replaced {
			existing = append(existing, r)
		}
	}
	f.collections[name] = existing
	return nil
}

func (f *fakeBackend) Search(_ context.Context, name string, _ []float32, limit int) ([]Hit, error) {
	records := f.collections[name]
	hits := make([]Hit, 0, len(records))
	for _, r := range records {
		hits = append(hits, Hit{ID: r.ID, Score: 1, Payload: r.Payload})
	}
	if len(hits) > limit {
		hits = hits[:limit]
	}
	return hits, nil
}

func chunksOf(texts ...string) ([]domain.Chunk, [][]float32) {
	chunks := make([]domain.Chunk, len(texts))
	vectors := make([][]float32, len(texts))
	for i, txt := range texts {
		chunks[i] = domain.Chunk{Content: txt, Metadata: map[string]any{"filename": "f.txt"}}
		vectors[i] = []float32{float32(i), 1}
	}
	return chunks, vectors
}

func TestPutIsolatesUsers(t *testing.T) {
	backend := newFakeBackend()
	m := NewManager(backend, 2, nil)
	ctx := context.Background()

	ca, va := chunksOf("alice doc")
	cb, vb := chunksOf("bob doc")
	if err := m.Put(ctx, "alice", ca, va); err != nil {
		t.Fatal(err)
	}
	if err := m.Put(ctx, "bob", cb, vb); err != nil {
		t.Fatal(err)
	}

	got, err := m.TopK(ctx, "alice", []float32{0, 1}, 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 1 || got[0].Content != "alice doc" {
		t.Fatalf("alice sees %#v", got)
	}
}

func TestTopKMissingCollection(t *testing.T) {
	m := NewManager(newFakeBackend(), 2, nil)
	got, err := m.TopK(context.Background(), "nobody", []float32{0, 1}, 3)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 0 {
		t.Fatalf("got %d results from a user with no collection", len(got))
	}
}

func TestPutFallsBackToRebuild(t *testing.T) {
	backend := newFakeBackend()
	backend.failUpsert = true
	m := NewManager(backend, 2, nil)
	ctx := context.Background()

	chunks, vectors := chunksOf("one", "two", "three")
	if err := m.Put(ctx, "u1", chunks, vectors); err != nil {
		t.Fatalf("rebuild fallback should have recovered: %v", err)
	}

	got, err := m.TopK(ctx, "u1", []float32{0, 1}, 10)
	if err != nil {
		t.Fatal(err)
	}
	var contents []string
	for _, c := range got {
		contents = append(contents, c.Content)
	}
	sort.Strings(contents)
	want := []string{"one", "three", "two"}
	if len(contents) != len(want) {
		t.Fatalf("after fallback got %v", contents)
	}
	for i := range want {
		if contents[i] != want[i] {
			t.Fatalf("after fallback got %v, want %v", contents, want)
		}
	}
}

func TestPutIdempotentForSameContent(t *testing.T) {
	backend := newFakeBackend()
	m := NewManager(backend, 2, nil)
	ctx := context.Background()

	chunks, vectors := chunksOf("same chunk")
	if err := m.Put(ctx, "u1", chunks, vectors); err != nil {
		t.Fatal(err)
	}
	if err := m.Put(ctx, "u1", chunks, vectors); err != nil {
		t.Fatal(err)
	}
	if n := len(backend.collections[CollectionName("u1")]); n != 1 {
		t.Fatalf("duplicate content stored %d times", n)
	}
}

func TestPutAppendsAcrossUploads(t *testing.T) {
	backend := newFakeBackend()
	m := NewManager(backend, 2, nil)
	ctx := context.Background()

	c1, v1 := chunksOf("from the first upload")
	if err := m.Put(ctx, "u1", c1, v1); err != nil {
		t.Fatal(err)
	}
	c2, v2 := chunksOf("from the second upload")
	if err := m.Put(ctx, "u1", c2, v2); err != nil {
		t.Fatal(err)
	}

	got, err := m.TopK(ctx, "u1", []float32{0, 1}, 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 2 {
		t.Fatalf("after two uploads got %d chunks, want 2", len(got))
	}
}

func TestRebuildReplacesEverything(t *testing.T) {
	backend := newFakeBackend()
	m := NewManager(backend, 2, nil)
	ctx := context.Background()

	oldChunks, oldVecs := chunksOf("stale")
	if err := m.Put(ctx, "u1", oldChunks, oldVecs); err != nil {
		t.Fatal(err)
	}
	newChunks, newVecs := chunksOf("fresh")
	if err := m.Rebuild(ctx, "u1", newChunks, newVecs); err != nil {
		t.Fatal(err)
	}

	got, err := m.TopK(ctx, "u1", []float32{0, 1}, 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 1 || got[0].Content != "fresh" {
		t.Fatalf("rebuild left %#v", got)
	}
}

func TestDropRemovesOnlyThatUsersCollection(t *testing.T) {
	backend := newFakeBackend()
	m := NewManager(backend, 2, nil)
	ctx := context.Background()

	ca, va := chunksOf("alice doc")
	cb, vb := chunksOf("bob doc")
	if err := m.Put(ctx, "alice", ca, va); err != nil {
		t.Fatal(err)
	}
	if err := m.Put(ctx, "bob", cb, vb); err != nil {
		t.Fatal(err)
	}

	if err := m.Drop(ctx, "alice"); err != nil {
		t.Fatal(err)
	}
	if _, ok := backend.collections[CollectionName("alice")]; ok {
		t.Fatal("alice's collection survived Drop")
	}
	got, err := m.TopK(ctx, "bob", []float32{0, 1}, 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 1 {
		t.Fatalf("bob's collection was affected: %#v", got)
	}
}

func TestPutVectorCountMismatch(t *testing.T) {
	m := NewManager(newFakeBackend(), 2, nil)
	chunks, _ := chunksOf("a", "b")
	err := m.Put(context.Background(), "u1", chunks, [][]float32{{0, 1}})
	if !errors.Is(err, domain.ErrIndexRebuild) {
		t.Fatalf("got %v, want ErrIndexRebuild after failed fallback", err)
	}
}

func TestTopKSeparatesContentFromMetadata(t *testing.T) {
	backend := newFakeBackend()
	m := NewManager(backend, 2, nil)
	ctx := context.Background()

	chunks, vectors := chunksOf("body text")
	if err := m.Put(ctx, "u1", chunks, vectors); err != nil {
		t.Fatal(err)
	}
	got, err := m.TopK(ctx, "u1", []float32{0, 1}, 1)
	if err != nil {
		t.Fatal(err)
	}
	if got[0].Content != "body text" {
		t.Fatalf("content = %q", got[0].Content)
	}
	if _, ok := got[0].Metadata["content"]; ok {
		t.Fatal("content leaked into metadata")
	}
	if got[0].Metadata["filename"] != "f.txt" {
		t.Fatalf("metadata = %#v", got[0].Metadata)
	}
}
