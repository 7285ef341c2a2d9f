// Package store provides the persistent transactional store: collections,
// chunks, their embeddings, and a full-text keyword index, all inside one
// SQLite database file (§4.2, §6.2).
package store

import "time"

// Collection is a named bucket of chunks.
type Collection struct {
	ID          string
	Name        string
	Description string
	FileCount   int
	ChunkCount  int
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// Chunk is a single retrievable unit of content.
type Chunk struct {
	ID           string
	CollectionID string
	SourceFile   string
	ChunkIndex   int
	Text         string
	Embedding    []float32
	// Metadata is persisted verbatim as an opaque key→value map; values are
	// the ones onf.Value.ToAny produces (nil, bool, int64, float64, string,
	// []byte, []any, map[string]any) when decoding the onf-encoded blob.
	Metadata  map[string]any
	CreatedAt time.Time
	UpdatedAt time.Time
}

// FileSummary is one row of list_files: a source file and how many chunks
// it currently contributes to a collection (§4.2).
type FileSummary struct {
	SourceFile string
	ChunkCount int
}

// KeywordHit is one row of a keyword_search result: a chunk id and its raw
// BM25 score (lower is better, per the FTS5 ranking convention).
type KeywordHit struct {
	ChunkID string
	BM25    float64
}
