package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/aifbin/recall/internal/apperr"
)

// InsertChunk inserts a single chunk. It is equivalent to InsertChunks with
// a one-element batch.
func (s *Store) InsertChunk(ctx context.Context, c *Chunk) error {
	return s.InsertChunks(ctx, []*Chunk{c})
}

// InsertChunks inserts a batch of chunks inside one transaction. On any row
// failure the transaction aborts, leaving the store unchanged (§4.2).
//
// The per-collection embedding-dimension invariant (§3) is enforced here:
// every chunk's embedding must be non-empty, and every chunk targeting the
// same collection (whether already stored or newly inserted in this batch)
// must share one embedding length.
func (s *Store) InsertChunks(ctx context.Context, batch []*Chunk) error {
	if len(batch) == 0 {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return apperr.New(apperr.KindStore, "begin transaction", err)
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()

	expectedDim := map[string]int{}
	for _, c := range batch {
		if len(c.Embedding) == 0 {
			return apperr.New(apperr.KindStore, "embedding must be non-empty", nil).
				WithDetail("chunk_id", c.ID)
		}
		dim, ok := expectedDim[c.CollectionID]
		if !ok {
			existing, err := existingCollectionDim(ctx, tx, c.CollectionID)
			if err != nil {
				return err
			}
			if existing > 0 {
				dim = existing
			} else {
				dim = len(c.Embedding)
			}
			expectedDim[c.CollectionID] = dim
		}
		if len(c.Embedding) != dim {
			return apperr.New(apperr.KindDimMismatch, "embedding length differs from collection's established dimension", nil).
				WithDetail("chunk_id", c.ID).
				WithDetail("expected", fmt.Sprintf("%d", dim)).
				WithDetail("got", fmt.Sprintf("%d", len(c.Embedding)))
		}
	}

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO chunks (id, collection_id, source_file, chunk_index, text, embedding, metadata, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return apperr.New(apperr.KindStore, "prepare insert", err)
	}
	defer stmt.Close()

	now := time.Now().UTC().Unix()
	for _, c := range batch {
		createdAt, updatedAt := now, now
		if !c.CreatedAt.IsZero() {
			createdAt = c.CreatedAt.Unix()
		}
		if !c.UpdatedAt.IsZero() {
			updatedAt = c.UpdatedAt.Unix()
		}
		_, err := stmt.ExecContext(ctx,
			c.ID, c.CollectionID, c.SourceFile, c.ChunkIndex, c.Text,
			encodeEmbedding(c.Embedding), encodeMetadata(c.Metadata), createdAt, updatedAt)
		if err != nil {
			return apperr.New(apperr.KindStore, "insert chunk", err).WithDetail("chunk_id", c.ID)
		}
	}

	if err := tx.Commit(); err != nil {
		return apperr.New(apperr.KindStore, "commit transaction", err)
	}
	committed = true
	return nil
}

func existingCollectionDim(ctx context.Context, tx *sql.Tx, collectionID string) (int, error) {
	var n sql.NullInt64
	err := tx.QueryRowContext(ctx,
		`SELECT length(embedding)/4 FROM chunks WHERE collection_id = ? LIMIT 1`, collectionID).Scan(&n)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, nil
	}
	if err != nil {
		return 0, apperr.New(apperr.KindStore, "read collection embedding dimension", err)
	}
	if !n.Valid {
		return 0, nil
	}
	return int(n.Int64), nil
}

// GetChunk retrieves a single chunk by id.
func (s *Store) GetChunk(ctx context.Context, id string) (*Chunk, error) {
	row := s.db.QueryRowContext(ctx, chunkSelectColumns+` WHERE id = ?`, id)
	return scanChunk(row)
}

// GetChunksByCollection returns every chunk belonging to collectionID.
func (s *Store) GetChunksByCollection(ctx context.Context, collectionID string) ([]*Chunk, error) {
	rows, err := s.db.QueryContext(ctx, chunkSelectColumns+` WHERE collection_id = ?`, collectionID)
	if err != nil {
		return nil, apperr.New(apperr.KindStore, "query chunks by collection", err)
	}
	defer rows.Close()
	return scanChunks(rows)
}

// GetChunksBySourceFile returns every chunk for path, ordered by chunk
// index (§4.2).
func (s *Store) GetChunksBySourceFile(ctx context.Context, path string) ([]*Chunk, error) {
	rows, err := s.db.QueryContext(ctx, chunkSelectColumns+` WHERE source_file = ? ORDER BY chunk_index`, path)
	if err != nil {
		return nil, apperr.New(apperr.KindStore, "query chunks by source file", err)
	}
	defer rows.Close()
	return scanChunks(rows)
}

// ListChunksForSearch returns every chunk with an embedding, optionally
// restricted to one collection. It is the candidate set the search engine
// scores against (§4.5).
func (s *Store) ListChunksForSearch(ctx context.Context, collectionID string) ([]*Chunk, error) {
	if collectionID == "" {
		rows, err := s.db.QueryContext(ctx, chunkSelectColumns)
		if err != nil {
			return nil, apperr.New(apperr.KindStore, "query all chunks", err)
		}
		defer rows.Close()
		return scanChunks(rows)
	}
	return s.GetChunksByCollection(ctx, collectionID)
}

// DeleteChunk deletes a single chunk by id.
func (s *Store) DeleteChunk(ctx context.Context, id string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM chunks WHERE id = ?`, id)
	if err != nil {
		return apperr.New(apperr.KindStore, "delete chunk", err)
	}
	return nil
}

// DeleteChunksBySource deletes every chunk for path and returns how many
// rows were removed. It is the primitive that makes re-ingestion of a
// source file idempotent (§3, §4.3).
func (s *Store) DeleteChunksBySource(ctx context.Context, path string) (int, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM chunks WHERE source_file = ?`, path)
	if err != nil {
		return 0, apperr.New(apperr.KindStore, "delete chunks by source", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, apperr.New(apperr.KindStore, "rows affected", err)
	}
	return int(n), nil
}

// ListFiles returns (source_file, chunk_count) pairs, grouped and ordered
// by name, optionally restricted to one collection.
func (s *Store) ListFiles(ctx context.Context, collectionID string) ([]FileSummary, error) {
	query := `SELECT source_file, COUNT(*) FROM chunks`
	args := []any{}
	if collectionID != "" {
		query += ` WHERE collection_id = ?`
		args = append(args, collectionID)
	}
	query += ` GROUP BY source_file ORDER BY source_file`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, apperr.New(apperr.KindStore, "list files", err)
	}
	defer rows.Close()

	var out []FileSummary
	for rows.Next() {
		var f FileSummary
		if err := rows.Scan(&f.SourceFile, &f.ChunkCount); err != nil {
			return nil, apperr.New(apperr.KindStore, "scan file summary", err)
		}
		out = append(out, f)
	}
	if err := rows.Err(); err != nil {
		return nil, apperr.New(apperr.KindStore, "iterate file summaries", err)
	}
	return out, nil
}

const chunkSelectColumns = `SELECT id, collection_id, source_file, chunk_index, text, embedding, metadata, created_at, updated_at FROM chunks`

func scanChunk(row *sql.Row) (*Chunk, error) {
	return scanChunkRow(row)
}

func scanChunkRow(row rowScanner) (*Chunk, error) {
	var (
		c          Chunk
		embedding  []byte
		metadata   []byte
		createdAt  int64
		updatedAt  int64
	)
	err := row.Scan(&c.ID, &c.CollectionID, &c.SourceFile, &c.ChunkIndex, &c.Text,
		&embedding, &metadata, &createdAt, &updatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperr.New(apperr.KindNotFound, "chunk not found", err)
		}
		return nil, apperr.New(apperr.KindStore, "scan chunk", err)
	}
	c.Embedding = decodeEmbedding(embedding)
	md, mdErr := decodeMetadata(metadata)
	if mdErr != nil {
		return nil, apperr.New(apperr.KindStore, "decode chunk metadata", mdErr)
	}
	c.Metadata = md
	c.CreatedAt = time.Unix(createdAt, 0).UTC()
	c.UpdatedAt = time.Unix(updatedAt, 0).UTC()
	return &c, nil
}

func scanChunks(rows *sql.Rows) ([]*Chunk, error) {
	var out []*Chunk
	for rows.Next() {
		c, err := scanChunkRow(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	if err := rows.Err(); err != nil {
		return nil, apperr.New(apperr.KindStore, "iterate chunks", err)
	}
	return out, nil
}
