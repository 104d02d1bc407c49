// Package chunk splits loader segments into bounded, overlapping text
// windows and strips metadata down to primitive values. Everything here is
// pure: no I/O, deterministic for identical inputs.
package chunk

import (
	"strings"

	"github.com/docsage-ai/docsage/engine/domain"
)

const (
	// DefaultMaxSize is the maximum chunk length in characters.
	DefaultMaxSize = 1000
	// DefaultOverlap is the number of characters shared with the previous
	// chunk from the same segment.
	DefaultOverlap = 200
)

// Options configures the splitter.
type Options struct {
	MaxSize int
	Overlap int
}

// DefaultOptions returns the standard 1000/200 configuration.
func DefaultOptions() Options {
	return Options{MaxSize: DefaultMaxSize, Overlap: DefaultOverlap}
}

// separators tried when looking for a natural break point, strongest first.
var separators = []string{"\n\n", "\n", ". ", " "}

// Split turns segments into chunks of at most opts.MaxSize characters,
// each overlapping the previous one by opts.Overlap characters. Break
// points prefer paragraph, then sentence, then word boundaries; that is
// best effort and never shrinks a window below half of MaxSize. Each
// chunk carries a sanitized copy of its segment's metadata.
func Split(segments []domain.Segment, opts Options) []domain.Chunk {
	if opts.MaxSize <= 0 {
		opts.MaxSize = DefaultMaxSize
	}
	if opts.Overlap < 0 {
		opts.Overlap = 0
	}
	if opts.Overlap >= opts.MaxSize {
		opts.Overlap = opts.MaxSize / 2
	}

	var chunks []domain.Chunk
	for _, seg := range segments {
		for _, text := range splitText(seg.Text, opts) {
			// Each chunk gets its own copy; mutating one chunk's
			// metadata must not touch its siblings.
			chunks = append(chunks, domain.Chunk{Content: text, Metadata: Sanitize(seg.Metadata)})
		}
	}
	return chunks
}

// splitText windows a single text. Windows step forward by
// MaxSize-Overlap so consecutive chunks share exactly Overlap characters
// unless a boundary adjustment shortened the previous window.
func splitText(text string, opts Options) []string {
	runes := []rune(text)
	if len(strings.TrimSpace(text)) == 0 {
		return nil
	}
	if len(runes) <= opts.MaxSize {
		return []string{strings.TrimSpace(text)}
	}

	var out []string
	start := 0
	for start < len(runes) {
		end := start + opts.MaxSize
		if end >= len(runes) {
			end = len(runes)
		} else {
			end = adjustBoundary(runes, start, end)
		}

		if s := strings.TrimSpace(string(runes[start:end])); s != "" {
			out = append(out, s)
		}
		if end == len(runes) {
			break
		}

		next := end - opts.Overlap
		if next <= start {
			// Forward progress regardless of overlap size.
			next = end
		}
		start = next
	}
	return out
}

// adjustBoundary moves end back to the nearest natural break inside
// [start, end), trying separators in order of preference. A break is only
// taken if it keeps at least half of the window, otherwise the hard cut
// stands.
func adjustBoundary(runes []rune, start, end int) int {
	window := string(runes[start:end])
	floor := (end - start) / 2
	for _, sep := range separators {
		if i := strings.LastIndex(window, sep); i >= 0 {
			cut := len([]rune(window[:i])) + len([]rune(sep))
			if cut > floor {
				return start + cut
			}
		}
	}
	return end
}
