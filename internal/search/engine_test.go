package search

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aifbin/recall/internal/apperr"
	"github.com/aifbin/recall/internal/store"
)

func newTestStore(t *testing.T) *store.Store {
	t.Helper()
	s, err := store.Open(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func mustCollection(t *testing.T, s *store.Store, name string) *store.Collection {
	t.Helper()
	c, err := s.CreateCollection(context.Background(), name, "")
	require.NoError(t, err)
	return c
}

func chunkWithVector(id, collectionID, text string, vec []float32) *store.Chunk {
	return &store.Chunk{
		ID:           id,
		CollectionID: collectionID,
		SourceFile:   "notes.aif-bin",
		ChunkIndex:   0,
		Text:         text,
		Embedding:    vec,
	}
}

func TestSearchRanksByCosineDescending(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	col := mustCollection(t, s, "docs")

	chunks := []*store.Chunk{
		chunkWithVector("a", col.ID, "close match", []float32{1, 0}),
		chunkWithVector("b", col.ID, "orthogonal", []float32{0, 1}),
		chunkWithVector("c", col.ID, "opposite", []float32{-1, 0}),
	}
	require.NoError(t, s.InsertChunks(ctx, chunks))

	eng := NewEngine(s)
	results, err := eng.Search(ctx, []float32{1, 0}, Options{Collection: "docs", Threshold: -1})
	require.NoError(t, err)
	require.Len(t, results, 3)
	assert.Equal(t, "a", results[0].Chunk.ID)
	assert.InDelta(t, 1.0, results[0].Score, 0.0001)
	assert.Equal(t, "b", results[1].Chunk.ID)
	assert.InDelta(t, 0.0, results[1].Score, 0.0001)
	assert.Equal(t, "c", results[2].Chunk.ID)
	assert.InDelta(t, -1.0, results[2].Score, 0.0001)
}

func TestSearchThresholdFiltersLowScores(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	col := mustCollection(t, s, "docs")
	require.NoError(t, s.InsertChunks(ctx, []*store.Chunk{
		chunkWithVector("a", col.ID, "aligned", []float32{1, 0}),
		chunkWithVector("b", col.ID, "orthogonal", []float32{0, 1}),
	}))

	eng := NewEngine(s)
	results, err := eng.Search(ctx, []float32{1, 0}, Options{Collection: "docs", Threshold: 0.5})
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "a", results[0].Chunk.ID)
}

func TestSearchUnknownCollectionFails(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	eng := NewEngine(s)

	_, err := eng.Search(ctx, []float32{1, 0}, Options{Collection: "missing"})
	require.Error(t, err)
	assert.Equal(t, apperr.KindNotFound, apperr.KindOf(err))
}

func TestSearchDimensionMismatchFails(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	col := mustCollection(t, s, "docs")
	require.NoError(t, s.InsertChunks(ctx, []*store.Chunk{
		chunkWithVector("a", col.ID, "a", []float32{1, 0, 0}),
	}))

	eng := NewEngine(s)
	_, err := eng.Search(ctx, []float32{1, 0}, Options{Collection: "docs"})
	require.Error(t, err)
	assert.Equal(t, apperr.KindDimMismatch, apperr.KindOf(err))
}

func TestSearchZeroMagnitudeYieldsZeroScoreNotError(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	col := mustCollection(t, s, "docs")
	require.NoError(t, s.InsertChunks(ctx, []*store.Chunk{
		chunkWithVector("a", col.ID, "zero", []float32{0, 0}),
	}))

	eng := NewEngine(s)
	results, err := eng.Search(ctx, []float32{1, 0}, Options{Collection: "docs"})
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, 0.0, results[0].Score)
}

func TestSearchEmptyCorpusReturnsEmptyNotError(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	mustCollection(t, s, "docs")

	eng := NewEngine(s)
	results, err := eng.Search(ctx, []float32{1, 0}, Options{Collection: "docs"})
	require.NoError(t, err)
	assert.Empty(t, results)
}

func TestSearchDefaultLimitCapsResults(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	col := mustCollection(t, s, "docs")

	var chunks []*store.Chunk
	for i := 0; i < DefaultLimit+5; i++ {
		chunks = append(chunks, chunkWithVector(
			string(rune('a'+i)), col.ID, "text", []float32{1, 0}))
	}
	require.NoError(t, s.InsertChunks(ctx, chunks))

	eng := NewEngine(s)
	results, err := eng.Search(ctx, []float32{1, 0}, Options{Collection: "docs"})
	require.NoError(t, err)
	assert.Len(t, results, DefaultLimit)
}

func TestSearchLimitZeroReturnsEmpty(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	col := mustCollection(t, s, "docs")
	require.NoError(t, s.InsertChunks(ctx, []*store.Chunk{
		chunkWithVector("a", col.ID, "aligned", []float32{1, 0}),
	}))

	eng := NewEngine(s)
	zero := 0
	results, err := eng.Search(ctx, []float32{1, 0}, Options{Collection: "docs", Limit: &zero})
	require.NoError(t, err)
	assert.NotNil(t, results)
	assert.Empty(t, results, "Limit: 0 must return [], distinct from Limit left unset (default)")
}

func TestHybridLimitZeroReturnsEmpty(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	col := mustCollection(t, s, "docs")
	require.NoError(t, s.InsertChunks(ctx, []*store.Chunk{
		chunkWithVector("a", col.ID, "widget gadget", []float32{1, 0}),
	}))

	eng := NewEngine(s)
	zero := 0
	results, err := eng.Hybrid(ctx, []float32{1, 0}, "widget", Options{Collection: "docs", Limit: &zero})
	require.NoError(t, err)
	assert.Empty(t, results, "Limit: 0 must return [] for Hybrid too")
}

func TestHybridPureVectorWeightIgnoresKeyword(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	col := mustCollection(t, s, "docs")
	require.NoError(t, s.InsertChunks(ctx, []*store.Chunk{
		chunkWithVector("a", col.ID, "the quick brown fox", []float32{1, 0}),
		chunkWithVector("b", col.ID, "jumps over the lazy dog", []float32{0, 1}),
	}))

	eng := NewEngine(s)
	results, err := eng.Hybrid(ctx, []float32{1, 0}, "dog", Options{Collection: "docs", HybridWeight: 1.0})
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.Equal(t, "a", results[0].Chunk.ID, "w=1 must rank purely on vector score regardless of keyword match")
}

func TestHybridFusesVectorAndKeywordScores(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	col := mustCollection(t, s, "docs")
	require.NoError(t, s.InsertChunks(ctx, []*store.Chunk{
		chunkWithVector("vector-only", col.ID, "zzz yyy xxx", []float32{1, 0}),
		chunkWithVector("keyword-only", col.ID, "widget gadget widget gadget", []float32{0, 1}),
	}))

	eng := NewEngine(s)
	results, err := eng.Hybrid(ctx, []float32{1, 0}, "widget", Options{Collection: "docs", HybridWeight: 0.5})
	require.NoError(t, err)
	require.Len(t, results, 2)

	byID := map[string]Result{}
	for _, r := range results {
		byID[r.Chunk.ID] = r
	}
	assert.InDelta(t, 1.0, byID["vector-only"].VectorScore, 0.0001)
	assert.Equal(t, 0.0, byID["vector-only"].KeywordScore)
	assert.Equal(t, 0.0, byID["keyword-only"].VectorScore)
	assert.Greater(t, byID["keyword-only"].KeywordScore, 0.0)
}

func TestHybridDefaultWeightFavorsVector(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	col := mustCollection(t, s, "docs")
	require.NoError(t, s.InsertChunks(ctx, []*store.Chunk{
		chunkWithVector("a", col.ID, "alpha beta gamma", []float32{1, 0}),
		chunkWithVector("b", col.ID, "alpha beta gamma", []float32{0, 1}),
	}))

	eng := NewEngine(s)
	results, err := eng.Hybrid(ctx, []float32{1, 0}, "alpha", Options{Collection: "docs"})
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.Equal(t, "a", results[0].Chunk.ID, "default hybrid_weight=0.7 should still favor the vector match on a tied keyword query")
}

func TestHybridUnknownCollectionFails(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	eng := NewEngine(s)

	_, err := eng.Hybrid(ctx, []float32{1, 0}, "query", Options{Collection: "missing"})
	require.Error(t, err)
	assert.Equal(t, apperr.KindNotFound, apperr.KindOf(err))
}

func TestRecallReturnsChunkDirectly(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	col := mustCollection(t, s, "docs")
	require.NoError(t, s.InsertChunks(ctx, []*store.Chunk{
		chunkWithVector("a", col.ID, "hello", []float32{1, 0}),
	}))

	eng := NewEngine(s)
	c, err := eng.Recall(ctx, "a")
	require.NoError(t, err)
	assert.Equal(t, "hello", c.Text)
}

func TestRecallUnknownIDFails(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	eng := NewEngine(s)

	_, err := eng.Recall(ctx, "missing")
	require.Error(t, err)
	assert.Equal(t, apperr.KindNotFound, apperr.KindOf(err))
}
