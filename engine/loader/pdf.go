package loader

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/docsage-ai/docsage/engine/domain"
)

// PDF extracts text with the pdftotext utility, one segment per page.
// pdftotext separates pages with form feeds when writing to stdout.
type PDF struct {
	runner CommandRunner
}

// NewPDF creates a PDF loader backed by the given runner.
func NewPDF(runner CommandRunner) *PDF {
	return &PDF{runner: runner}
}

func (l *PDF) Load(ctx context.Context, path string) ([]domain.Segment, error) {
	out, err := l.runner.Run(ctx, "pdftotext", "-layout", path, "-")
	if err != nil {
		return nil, fmt.Errorf("loader %s: %w: pdftotext: %v", path, domain.ErrLoad, err)
	}

	filename := filepath.Base(path)
	pages := strings.Split(string(out), "\f")
	segments := make([]domain.Segment, 0, len(pages))
	for i, page := range pages {
		if strings.TrimSpace(page) == "" {
			continue
		}
		segments = append(segments, domain.Segment{
			Text: page,
			Metadata: map[string]any{
				"filename": filename,
				"page":     i + 1,
			},
		})
	}
	if len(segments) == 0 {
		return nil, fmt.Errorf("loader %s: %w: no extractable text", path, domain.ErrLoad)
	}
	return segments, nil
}
