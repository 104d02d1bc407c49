// Package store persists document records, query history, folders and
// API tokens in SQLite, and owns the per-user upload directory tree.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/docsage-ai/docsage/engine/domain"
)

// ErrNotFound reports a lookup that matched nothing.
var ErrNotFound = errors.New("store: not found")

const schema = `
CREATE TABLE IF NOT EXISTS folders (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	user_id TEXT NOT NULL,
	name TEXT NOT NULL,
	UNIQUE(user_id, name)
);
CREATE TABLE IF NOT EXISTS documents (
	id TEXT PRIMARY KEY,
	user_id TEXT NOT NULL,
	filename TEXT NOT NULL,
	file_type TEXT NOT NULL,
	folder_id INTEGER REFERENCES folders(id) ON DELETE SET NULL,
	created_at TIMESTAMP NOT NULL,
	UNIQUE(user_id, filename)
);
CREATE TABLE IF NOT EXISTS queries (
	id TEXT PRIMARY KEY,
	user_id TEXT NOT NULL,
	question TEXT NOT NULL,
	answer TEXT NOT NULL,
	created_at TIMESTAMP NOT NULL
);
CREATE TABLE IF NOT EXISTS api_tokens (
	token TEXT PRIMARY KEY,
	user_id TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_documents_user ON documents(user_id);
CREATE INDEX IF NOT EXISTS idx_queries_user ON queries(user_id, created_at);
`

// Store wraps the SQLite database.
type Store struct {
	db *sql.DB
}

// Open opens (creating if needed) the database at path and applies the
// schema. Use ":memory:" for an in-memory database.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("store: open %s: %w", path, err)
	}
	// modernc's driver serializes writes; a single connection avoids
	// SQLITE_BUSY under concurrent handlers.
	db.SetMaxOpenConns(1)
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("store: apply schema: %w", err)
	}
	return &Store{db: db}, nil
}

// Close closes the database.
func (s *Store) Close() error { return s.db.Close() }

// AddDocument records a document. A missing ID or timestamp is filled
// in. Re-adding the same filename for the same user replaces the row.
func (s *Store) AddDocument(ctx context.Context, doc *domain.SourceDocument) error {
	if doc.ID == "" {
		doc.ID = uuid.NewString()
	}
	if doc.CreatedAt.IsZero() {
		doc.CreatedAt = time.Now().UTC()
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO documents (id, user_id, filename, file_type, folder_id, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(user_id, filename) DO UPDATE SET
			file_type = excluded.file_type,
			folder_id = excluded.folder_id,
			created_at = excluded.created_at`,
		doc.ID, doc.UserID, doc.Filename, doc.FileType, doc.FolderID, doc.CreatedAt)
	if err != nil {
		return fmt.Errorf("store: add document %s: %w", doc.Filename, err)
	}
	return nil
}

// ListDocuments returns the user's documents, newest first.
func (s *Store) ListDocuments(ctx context.Context, userID string) ([]domain.SourceDocument, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, user_id, filename, file_type, folder_id, created_at
		FROM documents WHERE user_id = ? ORDER BY created_at DESC, id`, userID)
	if err != nil {
		return nil, fmt.Errorf("store: list documents: %w", err)
	}
	defer rows.Close()

	var docs []domain.SourceDocument
	for rows.Next() {
		var d domain.SourceDocument
		if err := rows.Scan(&d.ID, &d.UserID, &d.Filename, &d.FileType, &d.FolderID, &d.CreatedAt); err != nil {
			return nil, fmt.Errorf("store: scan document: %w", err)
		}
		docs = append(docs, d)
	}
	return docs, rows.Err()
}

// GetDocument returns one of the user's documents by ID.
func (s *Store) GetDocument(ctx context.Context, userID, docID string) (*domain.SourceDocument, error) {
	var d domain.SourceDocument
	err := s.db.QueryRowContext(ctx, `
		SELECT id, user_id, filename, file_type, folder_id, created_at
		FROM documents WHERE user_id = ? AND id = ?`, userID, docID).
		Scan(&d.ID, &d.UserID, &d.Filename, &d.FileType, &d.FolderID, &d.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("store: get document %s: %w", docID, err)
	}
	return &d, nil
}

// DeleteDocument removes one of the user's documents.
func (s *Store) DeleteDocument(ctx context.Context, userID, docID string) error {
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM documents WHERE user_id = ? AND id = ?`, userID, docID)
	if err != nil {
		return fmt.Errorf("store: delete document %s: %w", docID, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// SaveQuery records one question/answer exchange.
func (s *Store) SaveQuery(ctx context.Context, rec *domain.QueryRecord) error {
	if rec.ID == "" {
		rec.ID = uuid.NewString()
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now().UTC()
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO queries (id, user_id, question, answer, created_at)
		VALUES (?, ?, ?, ?, ?)`,
		rec.ID, rec.UserID, rec.Question, rec.Answer, rec.CreatedAt)
	if err != nil {
		return fmt.Errorf("store: save query: %w", err)
	}
	return nil
}

// ListQueries returns the user's query history, newest first.
func (s *Store) ListQueries(ctx context.Context, userID string) ([]domain.QueryRecord, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, user_id, question, answer, created_at
		FROM queries WHERE user_id = ? ORDER BY created_at DESC, id`, userID)
	if err != nil {
		return nil, fmt.Errorf("store: list queries: %w", err)
	}
	defer rows.Close()

	var recs []domain.QueryRecord
	for rows.Next() {
		var r domain.QueryRecord
		if err := rows.Scan(&r.ID, &r.UserID, &r.Question, &r.Answer, &r.CreatedAt); err != nil {
			return nil, fmt.Errorf("store: scan query: %w", err)
		}
		recs = append(recs, r)
	}
	return recs, rows.Err()
}

// DeleteQuery removes one history entry.
func (s *Store) DeleteQuery(ctx context.Context, userID, queryID string) error {
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM queries WHERE user_id = ? AND id = ?`, userID, queryID)
	if err != nil {
		return fmt.Errorf("store: delete query %s: %w", queryID, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// SetDocumentFolder moves a document into a folder (nil detaches it).
func (s *Store) SetDocumentFolder(ctx context.Context, userID, docID string, folderID *int64) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE documents SET folder_id = ? WHERE user_id = ? AND id = ?`,
		folderID, userID, docID)
	if err != nil {
		return fmt.Errorf("store: move document %s: %w", docID, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// CreateFolder creates a named folder for the user.
func (s *Store) CreateFolder(ctx context.Context, userID, name string) (*domain.Folder, error) {
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO folders (user_id, name) VALUES (?, ?)`, userID, name)
	if err != nil {
		return nil, fmt.Errorf("store: create folder %q: %w", name, err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("store: folder id: %w", err)
	}
	return &domain.Folder{ID: id, UserID: userID, Name: name}, nil
}

// ListFolders returns the user's folders by name.
func (s *Store) ListFolders(ctx context.Context, userID string) ([]domain.Folder, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, user_id, name FROM folders WHERE user_id = ? ORDER BY name`, userID)
	if err != nil {
		return nil, fmt.Errorf("store: list folders: %w", err)
	}
	defer rows.Close()

	var folders []domain.Folder
	for rows.Next() {
		var f domain.Folder
		if err := rows.Scan(&f.ID, &f.UserID, &f.Name); err != nil {
			return nil, fmt.Errorf("store: scan folder: %w", err)
		}
		folders = append(folders, f)
	}
	return folders, rows.Err()
}

// RenameFolder changes a folder's name.
func (s *Store) RenameFolder(ctx context.Context, userID string, folderID int64, name string) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE folders SET name = ? WHERE user_id = ? AND id = ?`, name, userID, folderID)
	if err != nil {
		return fmt.Errorf("store: rename folder %d: %w", folderID, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// DeleteFolder removes a folder; documents inside it are detached, not
// deleted.
func (s *Store) DeleteFolder(ctx context.Context, userID string, folderID int64) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("store: delete folder %d: %w", folderID, err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx,
		`UPDATE documents SET folder_id = NULL WHERE user_id = ? AND folder_id = ?`,
		userID, folderID); err != nil {
		return fmt.Errorf("store: detach documents from folder %d: %w", folderID, err)
	}
	res, err := tx.ExecContext(ctx,
		`DELETE FROM folders WHERE user_id = ? AND id = ?`, userID, folderID)
	if err != nil {
		return fmt.Errorf("store: delete folder %d: %w", folderID, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return tx.Commit()
}

// UserForToken resolves an API token to a user ID.
func (s *Store) UserForToken(ctx context.Context, token string) (string, error) {
	var userID string
	err := s.db.QueryRowContext(ctx,
		`SELECT user_id FROM api_tokens WHERE token = ?`, token).Scan(&userID)
	if errors.Is(err, sql.ErrNoRows) {
		return "", ErrNotFound
	}
	if err != nil {
		return "", fmt.Errorf("store: lookup token: %w", err)
	}
	return userID, nil
}

// PutToken registers (or reassigns) an API token for a user.
func (s *Store) PutToken(ctx context.Context, token, userID string) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO api_tokens (token, user_id) VALUES (?, ?)
		ON CONFLICT(token) DO UPDATE SET user_id = excluded.user_id`,
		token, userID)
	if err != nil {
		return fmt.Errorf("store: put token: %w", err)
	}
	return nil
}
