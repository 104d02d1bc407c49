// Package loader turns stored source files into raw text segments with
// source metadata. One Loader implementation exists per file family:
// PDF (one segment per page), DOCX, HTML, and plain text. Load failures
// wrap domain.ErrLoad so callers can skip a bad source and continue.
package loader

import (
	"context"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/docsage-ai/docsage/engine/domain"
)

// Loader reads a source file into text segments.
type Loader interface {
	Load(ctx context.Context, path string) ([]domain.Segment, error)
}

// CommandRunner executes an external command and returns its stdout.
// Injectable so loaders that shell out stay testable.
type CommandRunner interface {
	Run(ctx context.Context, name string, args ...string) ([]byte, error)
}

// ExecRunner runs commands with os/exec.
type ExecRunner struct{}

func (ExecRunner) Run(ctx context.Context, name string, args ...string) ([]byte, error) {
	return exec.CommandContext(ctx, name, args...).Output()
}

// Registry selects a loader by file extension.
type Registry struct {
	pdf  Loader
	docx Loader
	html Loader
	text Loader
}

// NewRegistry builds the default registry with all loader variants.
func NewRegistry() *Registry {
	return &Registry{
		pdf:  NewPDF(ExecRunner{}),
		docx: NewDocx(),
		html: NewHTML(),
		text: NewText(),
	}
}

// ForFile returns the loader for a path. Unknown extensions fall back to
// the plain-text loader, matching the permissive behavior of the generic
// document path.
func (r *Registry) ForFile(path string) Loader {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".pdf":
		return r.pdf
	case ".docx":
		return r.docx
	case ".html", ".htm":
		return r.html
	default:
		return r.text
	}
}

// Load dispatches on the path's extension.
func (r *Registry) Load(ctx context.Context, path string) ([]domain.Segment, error) {
	return r.ForFile(path).Load(ctx, path)
}
