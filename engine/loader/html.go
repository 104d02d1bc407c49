package loader

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/docsage-ai/docsage/engine/domain"
)

// HTML extracts visible text from an HTML file.
type HTML struct{}

// NewHTML creates the HTML loader.
func NewHTML() *HTML { return &HTML{} }

func (l *HTML) Load(_ context.Context, path string) ([]domain.Segment, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("loader %s: %w: %v", path, domain.ErrLoad, err)
	}
	defer f.Close()

	doc, err := goquery.NewDocumentFromReader(f)
	if err != nil {
		return nil, fmt.Errorf("loader %s: %w: %v", path, domain.ErrLoad, err)
	}
	doc.Find("script, style, noscript").Remove()

	text := collapseBlankLines(doc.Find("body").Text())
	if text == "" {
		text = collapseBlankLines(doc.Text())
	}
	if text == "" {
		return nil, fmt.Errorf("loader %s: %w: no extractable text", path, domain.ErrLoad)
	}

	meta := map[string]any{"filename": filepath.Base(path)}
	if title := strings.TrimSpace(doc.Find("title").First().Text()); title != "" {
		meta["title"] = title
	}
	return []domain.Segment{{Text: text, Metadata: meta}}, nil
}

// collapseBlankLines trims every line and drops empty ones.
func collapseBlankLines(s string) string {
	lines := strings.Split(s, "\n")
	out := lines[:0]
	for _, line := range lines {
		if t := strings.TrimSpace(line); t != "" {
			out = append(out, t)
		}
	}
	return strings.Join(out, "\n")
}
