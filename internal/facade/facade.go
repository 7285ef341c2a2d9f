// Package facade is the thin composition layer every transport (HTTP, tool
// protocol, terminal) binds to directly (§4.6). It owns no state beyond its
// four collaborators and performs no retrieval logic of its own: every
// method is a short dispatch to Store, SearchEngine, Embedder, or Indexer.
package facade

import (
	"context"
	"log/slog"
	"time"

	"github.com/aifbin/recall/internal/apperr"
	"github.com/aifbin/recall/internal/embed"
	"github.com/aifbin/recall/internal/index"
	"github.com/aifbin/recall/internal/search"
	"github.com/aifbin/recall/internal/store"
)

// Facade is the four-operation surface named in §4.6: search, recall,
// list_collections, index_directory.
type Facade struct {
	store    *store.Store
	engine   *search.Engine
	embedder embed.Embedder
	indexer  *index.Indexer
	logger   *slog.Logger
}

// New assembles a Facade over its four collaborators. logger defaults to
// slog.Default() if nil.
func New(s *store.Store, engine *search.Engine, embedder embed.Embedder, indexer *index.Indexer, logger *slog.Logger) *Facade {
	if logger == nil {
		logger = slog.Default()
	}
	return &Facade{store: s, engine: engine, embedder: embedder, indexer: indexer, logger: logger}
}

// SearchRequest is the search operation's small option record (§4.6). At
// least one of Query and QueryVector must be set; when QueryVector is empty
// the Facade asks the Embedder to embed Query before ranking (§2
// control-flow paragraph).
// When Keyword is true the fused Hybrid ranking runs instead of pure cosine.
type SearchRequest struct {
	Query       string
	QueryVector []float32
	Collection  string
	// Limit caps how many results are returned. nil means "use the
	// engine's default"; an explicit 0 means "return no results" (§4.5).
	Limit        *int
	Threshold    float64
	HybridWeight float64
	Keyword      bool
}

// Search resolves a query vector (embedding Query if one wasn't supplied)
// and ranks candidates via the SearchEngine.
func (f *Facade) Search(ctx context.Context, req SearchRequest) ([]search.Result, error) {
	if req.Query == "" && len(req.QueryVector) == 0 {
		return nil, apperr.New(apperr.KindInput, "search requires a query or a query vector", nil)
	}

	start := time.Now()
	qVec := req.QueryVector
	if len(qVec) == 0 {
		if f.embedder == nil {
			return nil, apperr.New(apperr.KindEmbedder, "no embedder configured to embed query text", nil)
		}
		v, err := f.embedder.Embed(ctx, req.Query)
		if err != nil {
			return nil, apperr.New(apperr.KindEmbedder, "embed query", err)
		}
		qVec = v
	}

	opts := search.Options{
		Collection:   req.Collection,
		Limit:        req.Limit,
		Threshold:    req.Threshold,
		HybridWeight: req.HybridWeight,
	}

	var (
		results []search.Result
		err     error
	)
	if req.Keyword {
		results, err = f.engine.Hybrid(ctx, qVec, req.Query, opts)
	} else {
		results, err = f.engine.Search(ctx, qVec, opts)
	}
	f.logger.Debug("search completed",
		"collection", req.Collection, "hybrid", req.Keyword,
		"results", len(results), "duration", time.Since(start), "error", err)
	return results, err
}

// Recall looks up a single chunk by id with no scoring.
func (f *Facade) Recall(ctx context.Context, chunkID string) (*store.Chunk, error) {
	return f.engine.Recall(ctx, chunkID)
}

// CollectionStats is the per-collection projection ListCollections returns,
// separate from the live store row so transports don't reach into store
// internals.
type CollectionStats struct {
	Name        string
	Description string
	FileCount   int
	ChunkCount  int
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// ListCollections returns every collection's stats snapshot, ordered by
// name.
func (f *Facade) ListCollections(ctx context.Context) ([]CollectionStats, error) {
	cols, err := f.store.ListCollections(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]CollectionStats, len(cols))
	for i, c := range cols {
		out[i] = CollectionStats{
			Name:        c.Name,
			Description: c.Description,
			FileCount:   c.FileCount,
			ChunkCount:  c.ChunkCount,
			CreatedAt:   c.CreatedAt,
			UpdatedAt:   c.UpdatedAt,
		}
	}
	return out, nil
}

// IndexDirectory drives the Indexer over root into collection, creating the
// collection on demand. recursive selects whether subdirectories of root
// are descended into (§6.3, §6.4 "recursive?").
func (f *Facade) IndexDirectory(ctx context.Context, root, collection string, recursive bool) (index.Result, error) {
	if f.indexer == nil {
		return index.Result{}, apperr.New(apperr.KindInput, "no indexer configured", nil)
	}
	return f.indexer.IndexDirectory(ctx, root, collection, recursive)
}

// Doctor runs the store's integrity report, the ambient hygiene check
// transports surface alongside the four core operations.
func (f *Facade) Doctor(ctx context.Context) (*store.IntegrityReport, error) {
	return f.store.CheckIntegrity(ctx)
}
