package store

import (
	"context"
	"fmt"

	"github.com/aifbin/recall/internal/apperr"
)

// IntegrityReport summarizes the result of CheckIntegrity.
type IntegrityReport struct {
	OK               bool
	IntegrityCheck   string
	FTSTableExists   bool
	CollectionCount  int
	ChunkCount       int
}

// CheckIntegrity runs SQLite's own integrity check and verifies the
// chunks_fts virtual table is present, mirroring the validation the
// teacher repo runs before trusting an on-disk index.
func (s *Store) CheckIntegrity(ctx context.Context) (*IntegrityReport, error) {
	report := &IntegrityReport{}

	if err := s.db.QueryRowContext(ctx, `PRAGMA integrity_check`).Scan(&report.IntegrityCheck); err != nil {
		return nil, apperr.New(apperr.KindStore, "run integrity check", err)
	}
	report.OK = report.IntegrityCheck == "ok"

	var count int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM sqlite_master WHERE type='table' AND name='chunks_fts'`).Scan(&count)
	if err != nil {
		return nil, apperr.New(apperr.KindStore, "check fts table", err)
	}
	report.FTSTableExists = count > 0
	if !report.FTSTableExists {
		report.OK = false
	}

	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM collections`).Scan(&report.CollectionCount); err != nil {
		return nil, apperr.New(apperr.KindStore, "count collections", err)
	}
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM chunks`).Scan(&report.ChunkCount); err != nil {
		return nil, apperr.New(apperr.KindStore, "count chunks", err)
	}

	return report, nil
}

func (r *IntegrityReport) String() string {
	return fmt.Sprintf("ok=%v integrity_check=%q fts=%v collections=%d chunks=%d",
		r.OK, r.IntegrityCheck, r.FTSTableExists, r.CollectionCount, r.ChunkCount)
}
