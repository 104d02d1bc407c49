// Package domain defines core domain types, the error taxonomy, and
// validation for the DocSage pipeline. It acts as the validation gate at
// pipeline entry points.
package domain

import "time"

// SourceDocument is the persisted record of an uploaded or scraped source.
// It is immutable after creation except for folder assignment and deletion.
type SourceDocument struct {
	ID        string    `json:"id"`
	UserID    string    `json:"user_id"`
	Filename  string    `json:"filename"`
	FileType  string    `json:"file_type"`
	FolderID  *int64    `json:"folder_id,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// Segment is a raw unit of text produced by a loader, before chunking.
// PDF loaders yield one segment per page; plain-text loaders yield the
// whole file as a single segment.
type Segment struct {
	Text     string         `json:"text"`
	Metadata map[string]any `json:"metadata,omitempty"`
}

// Chunk is a bounded span of text derived from a source segment, carrying
// sanitized metadata. Metadata values are always string, int, int64,
// float64, or bool — never nil, map, or slice.
type Chunk struct {
	Content  string         `json:"content"`
	Metadata map[string]any `json:"metadata,omitempty"`
}

// ScoredChunk is a chunk returned from similarity search with its score.
type ScoredChunk struct {
	Chunk
	Score float32 `json:"score"`
}

// QueryRecord is an append-only audit entry for an answered question.
type QueryRecord struct {
	ID        string    `json:"id"`
	UserID    string    `json:"user_id"`
	Question  string    `json:"question"`
	Answer    string    `json:"answer"`
	CreatedAt time.Time `json:"created_at"`
}

// Folder groups a user's documents. Bookkeeping only; folders never
// affect retrieval.
type Folder struct {
	ID     int64  `json:"id"`
	UserID string `json:"user_id"`
	Name   string `json:"name"`
}
