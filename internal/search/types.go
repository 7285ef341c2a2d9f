// Package search implements the hybrid retrieval algorithm: pure cosine
// ranking and a fused cosine+BM25 ranking over chunks already persisted in
// the store (§4.5). It holds no state of its own beyond the store it reads
// from.
package search

import "github.com/aifbin/recall/internal/store"

// DefaultLimit is how many results Search/Hybrid return when Limit is unset.
const DefaultLimit = 10

// DefaultHybridWeight is the vector-vs-keyword fusion weight used when
// HybridWeight is unset. 1.0 would be pure vector search.
const DefaultHybridWeight = 0.7

// Options configures a Search or Hybrid call.
type Options struct {
	// Collection restricts candidates to one collection by name. Empty
	// means search across every collection.
	Collection string
	// Limit caps how many results are returned. nil (unset) means
	// DefaultLimit; an explicit 0 means "return no results", distinct from
	// leaving Limit unset (§4.5 "limit=0 returns []").
	Limit *int
	// Threshold discards results scoring below it. The zero value keeps
	// every non-negative score and drops negative ones.
	Threshold float64
	// HybridWeight is w in score = w*vector + (1-w)*keyword. Only used by
	// Hybrid. <= 0 means DefaultHybridWeight.
	HybridWeight float64
}

func (o Options) limit() int {
	if o.Limit == nil {
		return DefaultLimit
	}
	if *o.Limit < 0 {
		return 0
	}
	return *o.Limit
}

func (o Options) hybridWeight() float64 {
	if o.HybridWeight <= 0 {
		return DefaultHybridWeight
	}
	return o.HybridWeight
}

// Result is one ranked hit. VectorScore and KeywordScore are populated to
// the extent the ranking method computed them; Hybrid populates both,
// Search populates only VectorScore (equal to Score).
type Result struct {
	Chunk        *store.Chunk
	Score        float64
	VectorScore  float64
	KeywordScore float64
}
