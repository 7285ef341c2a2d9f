package search

import (
	"context"
	"math"
	"sort"

	"github.com/aifbin/recall/internal/apperr"
	"github.com/aifbin/recall/internal/store"
)

// Engine executes ranking queries against a store. It embeds nothing itself
// — callers supply an already-computed query vector, keeping Engine a pure
// function of (store contents, query vector/text, options).
type Engine struct {
	store *store.Store
}

// NewEngine wraps s. s must not be nil.
func NewEngine(s *store.Store) *Engine {
	return &Engine{store: s}
}

// resolveCollectionID turns an options.Collection name into a collection id,
// or "" (meaning "every collection") if the option was left empty. It fails
// with apperr.KindNotFound if the name does not exist.
func (e *Engine) resolveCollectionID(ctx context.Context, name string) (string, error) {
	if name == "" {
		return "", nil
	}
	c, err := e.store.GetCollection(ctx, name)
	if err != nil {
		return "", err
	}
	return c.ID, nil
}

// Search performs pure vector ranking: cosine similarity between qVec and
// every candidate's stored embedding (§4.5).
func (e *Engine) Search(ctx context.Context, qVec []float32, opts Options) ([]Result, error) {
	collectionID, err := e.resolveCollectionID(ctx, opts.Collection)
	if err != nil {
		return nil, err
	}

	candidates, err := e.store.ListChunksForSearch(ctx, collectionID)
	if err != nil {
		return nil, err
	}

	results := make([]Result, 0, len(candidates))
	for _, c := range candidates {
		sim, err := cosineSimilarity(qVec, c.Embedding)
		if err != nil {
			return nil, err
		}
		if sim < opts.Threshold {
			continue
		}
		results = append(results, Result{Chunk: c, Score: sim, VectorScore: sim})
	}

	sort.SliceStable(results, func(i, j int) bool { return results[i].Score > results[j].Score })
	return truncate(results, opts.limit()), nil
}

// Hybrid fuses vector similarity with normalized BM25 keyword scores (§4.5).
// Every candidate contributes a vector score; only the top 3*limit keyword
// hits from the store contribute a keyword score. Candidates absent from
// one side contribute 0 for that side.
func (e *Engine) Hybrid(ctx context.Context, qVec []float32, qText string, opts Options) ([]Result, error) {
	collectionID, err := e.resolveCollectionID(ctx, opts.Collection)
	if err != nil {
		return nil, err
	}

	candidates, err := e.store.ListChunksForSearch(ctx, collectionID)
	if err != nil {
		return nil, err
	}

	chunkByID := make(map[string]*store.Chunk, len(candidates))
	vectorScore := make(map[string]float64, len(candidates))
	for _, c := range candidates {
		sim, err := cosineSimilarity(qVec, c.Embedding)
		if err != nil {
			return nil, err
		}
		chunkByID[c.ID] = c
		vectorScore[c.ID] = sim
	}

	hits, err := e.store.KeywordSearch(ctx, qText, collectionID, 3*opts.limit())
	if err != nil {
		return nil, err
	}
	keywordScore := normalizeBM25(hits)

	// chunks matched only by keyword search (e.g. filtered out of the
	// candidate set by a collection mismatch never happens here, but a hit
	// could reference a chunk this engine hasn't loaded if candidates and
	// hits were queried against different collections) still need their
	// Chunk populated for the result set.
	for id := range keywordScore {
		if _, ok := chunkByID[id]; ok {
			continue
		}
		c, err := e.store.GetChunk(ctx, id)
		if err != nil {
			if apperr.KindOf(err) == apperr.KindNotFound {
				continue
			}
			return nil, err
		}
		chunkByID[id] = c
	}

	w := opts.hybridWeight()
	seen := make(map[string]bool, len(chunkByID))
	results := make([]Result, 0, len(chunkByID))
	for id := range vectorScore {
		seen[id] = true
	}
	for id := range keywordScore {
		seen[id] = true
	}
	for id := range seen {
		v := vectorScore[id]
		k := keywordScore[id]
		fused := w*v + (1-w)*k
		if fused < opts.Threshold {
			continue
		}
		results = append(results, Result{
			Chunk:        chunkByID[id],
			Score:        fused,
			VectorScore: v,
			KeywordScore: k,
		})
	}

	sort.SliceStable(results, func(i, j int) bool {
		if results[i].Score != results[j].Score {
			return results[i].Score > results[j].Score
		}
		return results[i].Chunk.ID < results[j].Chunk.ID
	})
	return truncate(results, opts.limit()), nil
}

// Recall looks up a single chunk by id with no scoring.
func (e *Engine) Recall(ctx context.Context, id string) (*store.Chunk, error) {
	return e.store.GetChunk(ctx, id)
}

// normalizeBM25 min-max normalizes raw (lower-is-better) BM25 scores into
// 0..1 (higher-is-better), mapping the best hit to 1.0 and the worst to 0.0
// (§4.5). A flat score distribution (max == min) normalizes to 1.0 for every
// hit, since range is defined as 1 in that case and raw-min is always 0.
func normalizeBM25(hits []store.KeywordHit) map[string]float64 {
	out := make(map[string]float64, len(hits))
	if len(hits) == 0 {
		return out
	}

	min, max := hits[0].BM25, hits[0].BM25
	for _, h := range hits[1:] {
		if h.BM25 < min {
			min = h.BM25
		}
		if h.BM25 > max {
			max = h.BM25
		}
	}
	rng := max - min
	if rng == 0 {
		rng = 1
	}
	for _, h := range hits {
		out[h.ChunkID] = 1 - (h.BM25-min)/rng
	}
	return out
}

// cosineSimilarity computes cosine similarity between a and b. A zero
// magnitude on either side yields 0 rather than NaN. Differing lengths fail
// apperr.KindDimMismatch (§4.5).
func cosineSimilarity(a, b []float32) (float64, error) {
	if len(a) != len(b) {
		return 0, apperr.New(apperr.KindDimMismatch, "query vector dimension disagrees with stored embedding", nil)
	}

	var dot, magA, magB float64
	for i := range a {
		fa, fb := float64(a[i]), float64(b[i])
		dot += fa * fb
		magA += fa * fa
		magB += fb * fb
	}
	if magA == 0 || magB == 0 {
		return 0, nil
	}
	return dot / (math.Sqrt(magA) * math.Sqrt(magB)), nil
}

// truncate caps results to limit, which opts.limit() guarantees is >= 0.
// limit == 0 yields an empty (non-nil) slice per §4.5's "limit=0 returns []".
func truncate(results []Result, limit int) []Result {
	if limit < len(results) {
		return results[:limit]
	}
	return results
}
