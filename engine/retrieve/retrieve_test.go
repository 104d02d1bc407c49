package retrieve

import (
	"context"
	"errors"
	"testing"

	"github.com/docsage-ai/docsage/engine/domain"
)

type fakeEmbedder struct {
	vectors [][]float32
	err     error
	gotText string
}

func (f *fakeEmbedder) Embed(_ context.Context, texts []string) ([][]float32, error) {
	if len(texts) > 0 {
		f.gotText = texts[0]
	}
	return f.vectors, f.err
}

type fakeIndex struct {
	chunks    []domain.ScoredChunk
	gotUser   string
	gotVector []float32
	gotK      int
}

func (f *fakeIndex) TopK(_ context.Context, userID string, vector []float32, k int) ([]domain.ScoredChunk, error) {
	f.gotUser = userID
	f.gotVector = vector
	f.gotK = k
	return f.chunks, nil
}

func TestRetrievePassesQuestionVector(t *testing.T) {
	emb := &fakeEmbedder{vectors: [][]float32{{0.5, 0.5}}}
	idx := &fakeIndex{chunks: []domain.ScoredChunk{
		{Chunk: domain.Chunk{Content: "relevant"}, Score: 0.9},
	}}
	r := New(emb, idx, 0)

	got, err := r.Retrieve(context.Background(), "u1", "what is this?")
	if err != nil {
		t.Fatal(err)
	}
	if emb.gotText != "what is this?" {
		t.Fatalf("embedded %q", emb.gotText)
	}
	if idx.gotUser != "u1" || idx.gotK != DefaultK {
		t.Fatalf("searched user=%q k=%d", idx.gotUser, idx.gotK)
	}
	if len(got) != 1 || got[0].Content != "relevant" {
		t.Fatalf("got %#v", got)
	}
}

func TestRetrieveEmbedFailure(t *testing.T) {
	emb := &fakeEmbedder{err: domain.ErrEmbedding}
	r := New(emb, &fakeIndex{}, 3)
	_, err := r.Retrieve(context.Background(), "u1", "q")
	if !errors.Is(err, domain.ErrEmbedding) {
		t.Fatalf("got %v, want ErrEmbedding", err)
	}
}

func TestRetrieveCustomK(t *testing.T) {
	emb := &fakeEmbedder{vectors: [][]float32{{1}}}
	idx := &fakeIndex{}
	r := New(emb, idx, 7)
	if _, err := r.Retrieve(context.Background(), "u1", "q"); err != nil {
		t.Fatal(err)
	}
	if idx.gotK != 7 {
		t.Fatalf("k = %d", idx.gotK)
	}
}
