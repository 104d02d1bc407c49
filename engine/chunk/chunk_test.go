package chunk

import (
	"reflect"
	"strings"
	"testing"

	"github.com/docsage-ai/docsage/engine/domain"
)

// uniqueText builds n characters with no whitespace or sentence
// punctuation, so no boundary adjustment can kick in.
func uniqueText(n int) string {
	var b strings.Builder
	alphabet := "abcdefghijklmnopqrstuvwxyz0123456789"
	for b.Len() < n {
		b.WriteByte(alphabet[b.Len()%len(alphabet)])
	}
	return b.String()
}

func TestSplitBound(t *testing.T) {
	segs := []domain.Segment{{Text: uniqueText(5000)}}
	chunks := Split(segs, DefaultOptions())
	if len(chunks) == 0 {
		t.Fatal("expected chunks")
	}
	for i, c := range chunks {
		if len([]rune(c.Content)) > DefaultMaxSize {
			t.Fatalf("chunk %d exceeds max size: %d", i, len(c.Content))
		}
	}
}

func TestSplit1500CharsYieldsTwoChunks(t *testing.T) {
	text := uniqueText(1500)
	chunks := Split([]domain.Segment{{Text: text}}, Options{MaxSize: 1000, Overlap: 200})
	if len(chunks) != 2 {
		t.Fatalf("got %d chunks, want 2", len(chunks))
	}
	if chunks[0].Content != text[:1000] {
		t.Fatal("first chunk should be the first 1000 characters")
	}
	// Second chunk starts 200 characters before the 1000-character mark.
	if chunks[1].Content != text[800:] {
		t.Fatal("second chunk should start at offset 800")
	}
}

func TestSplitOverlap(t *testing.T) {
	text := uniqueText(3000)
	opts := Options{MaxSize: 1000, Overlap: 200}
	chunks := Split([]domain.Segment{{Text: text}}, opts)
	for i := 0; i+1 < len(chunks); i++ {
		a := chunks[i].Content
		b := chunks[i+1].Content
		if len(a) < opts.Overlap || len(b) < opts.Overlap {
			continue
		}
		if a[len(a)-opts.Overlap:] != b[:opts.Overlap] {
			t.Fatalf("chunks %d and %d do not overlap by %d chars", i, i+1, opts.Overlap)
		}
	}
}

func TestSplitPrefersParagraphBoundary(t *testing.T) {
	para1 := uniqueText(700)
	para2 := uniqueText(900)
	text := para1 + "\n\n" + para2
	chunks := Split([]domain.Segment{{Text: text}}, Options{MaxSize: 1000, Overlap: 100})
	if len(chunks) < 2 {
		t.Fatalf("got %d chunks, want at least 2", len(chunks))
	}
	if chunks[0].Content != para1 {
		t.Fatalf("first chunk should break at the paragraph boundary, got %d chars", len(chunks[0].Content))
	}
}

func TestSplitShortSegmentSingleChunk(t *testing.T) {
	chunks := Split([]domain.Segment{{Text: "short note"}}, DefaultOptions())
	if len(chunks) != 1 || chunks[0].Content != "short note" {
		t.Fatalf("short segment: %+v", chunks)
	}
}

func TestSplitSkipsBlankSegments(t *testing.T) {
	chunks := Split([]domain.Segment{{Text: "  \n\t "}, {Text: "real"}}, DefaultOptions())
	if len(chunks) != 1 || chunks[0].Content != "real" {
		t.Fatalf("blank segments should produce no chunks: %+v", chunks)
	}
}

func TestSplitChunksOwnTheirMetadata(t *testing.T) {
	segs := []domain.Segment{{
		Text:     uniqueText(1500),
		Metadata: map[string]any{"filename": "shared.txt"},
	}}
	chunks := Split(segs, Options{MaxSize: 1000, Overlap: 200})
	if len(chunks) != 2 {
		t.Fatalf("got %d chunks, want 2", len(chunks))
	}
	chunks[0].Metadata["filename"] = "mutated.txt"
	if chunks[1].Metadata["filename"] != "shared.txt" {
		t.Fatalf("mutating one chunk's metadata leaked into a sibling: %#v", chunks[1].Metadata)
	}
}

func TestSplitDeterministic(t *testing.T) {
	segs := []domain.Segment{{Text: uniqueText(2500), Metadata: map[string]any{"page": 1}}}
	a := Split(segs, DefaultOptions())
	b := Split(segs, DefaultOptions())
	if !reflect.DeepEqual(a, b) {
		t.Fatal("Split should be deterministic")
	}
}

func TestSplitCarriesSanitizedMetadata(t *testing.T) {
	segs := []domain.Segment{{
		Text: "hello world",
		Metadata: map[string]any{
			"filename": "notes.txt",
			"page":     3,
			"tags":     []string{"a"},
			"inner":    map[string]any{"x": 1},
			"missing":  nil,
		},
	}}
	chunks := Split(segs, DefaultOptions())
	if len(chunks) != 1 {
		t.Fatalf("got %d chunks", len(chunks))
	}
	want := map[string]any{"filename": "notes.txt", "page": 3}
	if !reflect.DeepEqual(chunks[0].Metadata, want) {
		t.Fatalf("metadata = %#v, want %#v", chunks[0].Metadata, want)
	}
}

func TestSanitizeIdempotent(t *testing.T) {
	m := map[string]any{
		"s": "str", "i": 42, "i64": int64(7), "f": 3.14, "b": true,
		"nested": map[string]any{"x": 1},
		"list":   []int{1, 2},
		"nil":    nil,
	}
	once := Sanitize(m)
	twice := Sanitize(once)
	if !reflect.DeepEqual(once, twice) {
		t.Fatal("Sanitize should be idempotent")
	}
	for k, v := range once {
		switch v.(type) {
		case string, bool, int, int32, int64, float32, float64:
		default:
			t.Fatalf("non-primitive value survived sanitization: %s=%#v", k, v)
		}
	}
	if _, ok := once["nested"]; ok {
		t.Fatal("nested map should be dropped")
	}
	if _, ok := once["nil"]; ok {
		t.Fatal("nil should be dropped")
	}
}

func TestSanitizeNil(t *testing.T) {
	if Sanitize(nil) != nil {
		t.Fatal("Sanitize(nil) should be nil")
	}
}
