package store

import (
	"context"
	"strings"

	"github.com/aifbin/recall/internal/apperr"
)

// KeywordSearch runs a BM25 keyword query over chunks_fts, optionally
// restricted to one collection, returning up to limit hits ordered by BM25
// ascending — SQLite's fts5 bm25() function emits lower-is-better scores,
// so the best match sorts first (§4.2).
//
// query is wrapped as a single quoted phrase before being handed to FTS5's
// query language, with any internal double quotes escaped by doubling, so
// that arbitrary free text never trips FTS5's own operator syntax.
func (s *Store) KeywordSearch(ctx context.Context, query, collectionID string, limit int) ([]KeywordHit, error) {
	if limit <= 0 {
		return nil, nil
	}

	phrase := escapeFTSPhrase(query)
	sqlQuery := `
		SELECT c.id, bm25(chunks_fts) AS score
		FROM chunks_fts
		JOIN chunks c ON c.rowid = chunks_fts.rowid
		WHERE chunks_fts MATCH ?`
	args := []any{phrase}
	if collectionID != "" {
		sqlQuery += ` AND c.collection_id = ?`
		args = append(args, collectionID)
	}
	sqlQuery += ` ORDER BY score ASC LIMIT ?`
	args = append(args, limit)

	rows, err := s.db.QueryContext(ctx, sqlQuery, args...)
	if err != nil {
		return nil, apperr.New(apperr.KindStore, "keyword search", err)
	}
	defer rows.Close()

	var out []KeywordHit
	for rows.Next() {
		var hit KeywordHit
		if err := rows.Scan(&hit.ChunkID, &hit.BM25); err != nil {
			return nil, apperr.New(apperr.KindStore, "scan keyword hit", err)
		}
		out = append(out, hit)
	}
	if err := rows.Err(); err != nil {
		return nil, apperr.New(apperr.KindStore, "iterate keyword hits", err)
	}
	return out, nil
}

func escapeFTSPhrase(query string) string {
	escaped := strings.ReplaceAll(query, `"`, `""`)
	return `"` + escaped + `"`
}
