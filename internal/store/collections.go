package store

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/aifbin/recall/internal/apperr"
)

// CreateCollection creates a new named collection. It fails with
// apperr.KindDuplicate if the name already exists.
func (s *Store) CreateCollection(ctx context.Context, name, description string) (*Collection, error) {
	now := time.Now().UTC()
	c := &Collection{
		ID:          uuid.NewString(),
		Name:        name,
		Description: description,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO collections (id, name, description, file_count, chunk_count, created_at, updated_at)
		 VALUES (?, ?, ?, 0, 0, ?, ?)`,
		c.ID, c.Name, c.Description, c.CreatedAt.Unix(), c.UpdatedAt.Unix())
	if err != nil {
		if isUniqueViolation(err) {
			return nil, apperr.New(apperr.KindDuplicate, "collection already exists", err).WithDetail("name", name)
		}
		return nil, apperr.New(apperr.KindStore, "create collection", err)
	}
	return c, nil
}

// GetOrCreateCollection returns the named collection, creating it with an
// empty description if it does not exist yet (§3 "created on first
// ingestion into a new name").
func (s *Store) GetOrCreateCollection(ctx context.Context, name string) (*Collection, error) {
	c, err := s.GetCollection(ctx, name)
	if err == nil {
		return c, nil
	}
	if apperr.KindOf(err) != apperr.KindNotFound {
		return nil, err
	}
	c, err = s.CreateCollection(ctx, name, "")
	if err != nil && apperr.KindOf(err) == apperr.KindDuplicate {
		// Lost a race with a concurrent creator; fetch what they made.
		return s.GetCollection(ctx, name)
	}
	return c, err
}

// GetCollection looks up a collection by name.
func (s *Store) GetCollection(ctx context.Context, name string) (*Collection, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, name, description, file_count, chunk_count, created_at, updated_at
		 FROM collections WHERE name = ?`, name)
	return scanCollection(row)
}

// GetCollectionByID looks up a collection by id.
func (s *Store) GetCollectionByID(ctx context.Context, id string) (*Collection, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, name, description, file_count, chunk_count, created_at, updated_at
		 FROM collections WHERE id = ?`, id)
	return scanCollection(row)
}

// ListCollections returns every collection, ordered by name.
func (s *Store) ListCollections(ctx context.Context) ([]*Collection, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, name, description, file_count, chunk_count, created_at, updated_at
		 FROM collections ORDER BY name`)
	if err != nil {
		return nil, apperr.New(apperr.KindStore, "list collections", err)
	}
	defer rows.Close()

	var out []*Collection
	for rows.Next() {
		c, err := scanCollectionRows(rows)
		if err != nil {
			return nil, apperr.New(apperr.KindStore, "scan collection row", err)
		}
		out = append(out, c)
	}
	if err := rows.Err(); err != nil {
		return nil, apperr.New(apperr.KindStore, "iterate collections", err)
	}
	return out, nil
}

// DeleteCollection deletes the named collection and, via the foreign key's
// ON DELETE CASCADE, every chunk that belonged to it (§3 "cascade"). It
// returns whether a row was removed.
func (s *Store) DeleteCollection(ctx context.Context, name string) (bool, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM collections WHERE name = ?`, name)
	if err != nil {
		return false, apperr.New(apperr.KindStore, "delete collection", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, apperr.New(apperr.KindStore, "rows affected", err)
	}
	return n > 0, nil
}

// UpdateCollectionStats recomputes file_count and chunk_count for id and
// bumps updated_at (§4.2).
func (s *Store) UpdateCollectionStats(ctx context.Context, id string) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE collections SET
			chunk_count = (SELECT COUNT(*) FROM chunks WHERE collection_id = ?),
			file_count  = (SELECT COUNT(DISTINCT source_file) FROM chunks WHERE collection_id = ?),
			updated_at  = ?
		WHERE id = ?`,
		id, id, time.Now().UTC().Unix(), id)
	if err != nil {
		return apperr.New(apperr.KindStore, "update collection stats", err)
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanCollection(row *sql.Row) (*Collection, error) {
	return scanCollectionRows(row)
}

func scanCollectionRows(row rowScanner) (*Collection, error) {
	var (
		c            Collection
		description  sql.NullString
		createdAt    int64
		updatedAt    int64
	)
	err := row.Scan(&c.ID, &c.Name, &description, &c.FileCount, &c.ChunkCount, &createdAt, &updatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperr.New(apperr.KindNotFound, "collection not found", err)
		}
		return nil, apperr.New(apperr.KindStore, "scan collection", err)
	}
	c.Description = description.String
	c.CreatedAt = time.Unix(createdAt, 0).UTC()
	c.UpdatedAt = time.Unix(updatedAt, 0).UTC()
	return &c, nil
}

func isUniqueViolation(err error) bool {
	// modernc.org/sqlite surfaces SQLite's own message text; matching on it
	// is the same approach the teacher's sqlite_bm25.go uses for
	// corruption detection since the driver does not expose typed
	// constraint-violation errors.
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}
