package loader

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/docsage-ai/docsage/engine/domain"
)

// Text loads a plain-text file as a single segment.
type Text struct{}

// NewText creates the plain-text loader.
func NewText() *Text { return &Text{} }

func (l *Text) Load(_ context.Context, path string) ([]domain.Segment, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("loader %s: %w: %v", path, domain.ErrLoad, err)
	}
	if len(data) == 0 {
		return nil, nil
	}
	return []domain.Segment{{
		Text:     string(data),
		Metadata: map[string]any{"filename": filepath.Base(path)},
	}}, nil
}
