package store

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"os/user"
	"path/filepath"
	"strings"
	"sync"

	"github.com/gofrs/flock"
	_ "modernc.org/sqlite" // pure-Go SQLite driver, no CGO

	"github.com/aifbin/recall/internal/apperr"
)

// Store is the single-file embedded relational store holding collections,
// chunks, their embeddings, and the keyword inverted index (§4.2).
//
// Store exclusively owns the underlying file handle and prepared
// statements. It is safe for concurrent use by multiple readers; writes are
// serialized by the database's WAL mode combined with a single-connection
// pool, matching the "process is the unit of writer ownership" policy
// of §5.
type Store struct {
	db   *sql.DB
	lock *flock.Flock
	path string

	mu     sync.RWMutex
	closed bool
}

// Option configures Open.
type Option func(*openConfig)

type openConfig struct {
	busyTimeoutMS int
}

// WithBusyTimeout overrides the default SQLite busy timeout.
func WithBusyTimeout(ms int) Option {
	return func(c *openConfig) { c.busyTimeoutMS = ms }
}

// Open creates or opens the store at path. A leading "~" is expanded to the
// user's home directory; parent directories are created as needed.
func Open(path string, opts ...Option) (*Store, error) {
	cfg := &openConfig{busyTimeoutMS: 5000}
	for _, opt := range opts {
		opt(cfg)
	}

	expanded, err := expandHome(path)
	if err != nil {
		return nil, apperr.New(apperr.KindStore, "expand store path", err)
	}

	if expanded != ":memory:" {
		dir := filepath.Dir(expanded)
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, apperr.New(apperr.KindStore, "create store directory", err).WithDetail("dir", dir)
		}
	}

	var lk *flock.Flock
	if expanded != ":memory:" {
		lk = flock.New(expanded + ".lock")
		locked, err := lk.TryLock()
		if err != nil {
			return nil, apperr.New(apperr.KindStore, "acquire store lock", err)
		}
		if !locked {
			return nil, apperr.New(apperr.KindStore, "store is locked by another process", nil).
				WithDetail("path", expanded)
		}
	}

	dsn := expanded
	if expanded != ":memory:" {
		dsn = fmt.Sprintf("%s?_pragma=journal_mode(WAL)&_pragma=synchronous(NORMAL)&_pragma=busy_timeout(%d)&_pragma=foreign_keys(1)",
			expanded, cfg.busyTimeoutMS)
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		if lk != nil {
			_ = lk.Unlock()
		}
		return nil, apperr.New(apperr.KindStore, "open database", err)
	}
	if expanded == ":memory:" {
		if _, pragErr := db.Exec("PRAGMA foreign_keys = ON"); pragErr != nil {
			_ = db.Close()
			return nil, apperr.New(apperr.KindStore, "enable foreign keys", pragErr)
		}
	}
	// Single writer, WAL-mode readers: a single shared connection keeps
	// every statement on one SQLite connection object so pragmas and the
	// transaction discipline below are consistent.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	s := &Store{db: db, lock: lk, path: expanded}
	if err := s.migrate(context.Background()); err != nil {
		_ = db.Close()
		if lk != nil {
			_ = lk.Unlock()
		}
		return nil, err
	}
	return s, nil
}

// Close releases the database handle and the writer lock.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	err := s.db.Close()
	if s.lock != nil {
		_ = s.lock.Unlock()
	}
	if err != nil {
		return apperr.New(apperr.KindStore, "close database", err)
	}
	return nil
}

func expandHome(path string) (string, error) {
	if path == ":memory:" || !strings.HasPrefix(path, "~") {
		return path, nil
	}
	u, err := user.Current()
	if err != nil {
		return "", err
	}
	rest := strings.TrimPrefix(path, "~")
	rest = strings.TrimPrefix(rest, string(filepath.Separator))
	return filepath.Join(u.HomeDir, rest), nil
}

// DefaultPath is the default database location (§6.5).
func DefaultPath() string {
	return "~/.aifbin-recall/index.db"
}
