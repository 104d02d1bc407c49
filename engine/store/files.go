package store

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/docsage-ai/docsage/engine/domain"
)

// FileStore keeps uploaded source files on disk, one directory per
// user under the root. New content is staged to a temporary location
// and only promoted over an existing file on Commit, so a failed
// ingestion can never destroy the previously stored version.
type FileStore struct {
	root string
}

// NewFileStore creates a FileStore rooted at dir.
func NewFileStore(dir string) *FileStore {
	return &FileStore{root: dir}
}

// Path returns where a user's file lives (or would live).
func (f *FileStore) Path(userID, filename string) string {
	return filepath.Join(f.root, userID, filename)
}

// Staged is an upload written to a temporary location inside the user's
// directory. It keeps the final filename as its base name so loaders
// record correct source metadata when reading the staged copy.
type Staged struct {
	tmpDir string
	path   string
	final  string
}

// Path returns the staged file's location on disk.
func (s *Staged) Path() string { return s.path }

// Commit promotes the staged file over the final location, replacing
// any existing file of the same name.
func (s *Staged) Commit() error {
	if err := os.Rename(s.path, s.final); err != nil {
		return fmt.Errorf("store: promote %s: %w", filepath.Base(s.final), err)
	}
	os.RemoveAll(s.tmpDir)
	return nil
}

// Discard removes the staged copy. An existing file at the final
// location is left untouched.
func (s *Staged) Discard() {
	os.RemoveAll(s.tmpDir)
}

// Stage writes a file for the user without touching any existing file
// of the same name. The filename must already be validated.
func (f *FileStore) Stage(userID, filename string, r io.Reader) (*Staged, error) {
	if err := domain.ValidateFilename(filename); err != nil {
		return nil, err
	}
	userDir := filepath.Join(f.root, userID)
	if err := os.MkdirAll(userDir, 0o755); err != nil {
		return nil, fmt.Errorf("store: create upload dir: %w", err)
	}
	tmpDir, err := os.MkdirTemp(userDir, ".staging-")
	if err != nil {
		return nil, fmt.Errorf("store: create staging dir: %w", err)
	}
	path := filepath.Join(tmpDir, filename)
	dst, err := os.Create(path)
	if err != nil {
		os.RemoveAll(tmpDir)
		return nil, fmt.Errorf("store: create %s: %w", filename, err)
	}
	if _, err := io.Copy(dst, r); err != nil {
		dst.Close()
		os.RemoveAll(tmpDir)
		return nil, fmt.Errorf("store: write %s: %w", filename, err)
	}
	if err := dst.Close(); err != nil {
		os.RemoveAll(tmpDir)
		return nil, fmt.Errorf("store: write %s: %w", filename, err)
	}
	return &Staged{
		tmpDir: tmpDir,
		path:   path,
		final:  filepath.Join(userDir, filename),
	}, nil
}

// Delete removes the user's file. Deleting a missing file is not an
// error.
func (f *FileStore) Delete(userID, filename string) error {
	if err := domain.ValidateFilename(filename); err != nil {
		return err
	}
	err := os.Remove(f.Path(userID, filename))
	if err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("store: delete %s: %w", filename, err)
	}
	return nil
}

// List returns the names of the user's files, sorted. Staging
// directories are not files and never appear.
func (f *FileStore) List(userID string) ([]string, error) {
	entries, err := os.ReadDir(filepath.Join(f.root, userID))
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("store: list uploads: %w", err)
	}
	var names []string
	for _, e := range entries {
		if !e.IsDir() {
			names = append(names, e.Name())
		}
	}
	return names, nil
}
