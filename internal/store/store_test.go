package store

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aifbin/recall/internal/apperr"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestCreateCollectionDuplicateRejected(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	_, err := s.CreateCollection(ctx, "c1", "")
	require.NoError(t, err)

	_, err = s.CreateCollection(ctx, "c1", "")
	require.Error(t, err)
	assert.Equal(t, apperr.KindDuplicate, apperr.KindOf(err))
}

func TestListCollectionsEmptyStore(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	list, err := s.ListCollections(ctx)
	require.NoError(t, err)
	assert.Empty(t, list)
}

func TestInsertChunksRejectsEmptyEmbedding(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	col, err := s.CreateCollection(ctx, "c1", "")
	require.NoError(t, err)

	err = s.InsertChunk(ctx, &Chunk{
		ID: "x", CollectionID: col.ID, SourceFile: "/a", ChunkIndex: 0, Text: "t",
	})
	require.Error(t, err)

	chunks, err := s.GetChunksByCollection(ctx, col.ID)
	require.NoError(t, err)
	assert.Empty(t, chunks, "rejected batch must leave the store unchanged")
}

func TestInsertChunksRejectsDimensionMismatchWithinCollection(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	col, err := s.CreateCollection(ctx, "c1", "")
	require.NoError(t, err)

	require.NoError(t, s.InsertChunk(ctx, &Chunk{
		ID: "x1", CollectionID: col.ID, SourceFile: "/a", ChunkIndex: 0,
		Text: "hello", Embedding: []float32{1, 0, 0},
	}))

	err = s.InsertChunk(ctx, &Chunk{
		ID: "x2", CollectionID: col.ID, SourceFile: "/a", ChunkIndex: 1,
		Text: "world", Embedding: []float32{1, 0},
	})
	require.Error(t, err)
	assert.Equal(t, apperr.KindDimMismatch, apperr.KindOf(err))
}

func TestInsertChunksBatchAbortsAtomically(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	col, err := s.CreateCollection(ctx, "c1", "")
	require.NoError(t, err)

	batch := []*Chunk{
		{ID: "ok1", CollectionID: col.ID, SourceFile: "/a", ChunkIndex: 0, Text: "good", Embedding: []float32{1, 0}},
		{ID: "bad", CollectionID: col.ID, SourceFile: "/a", ChunkIndex: 1, Text: "bad", Embedding: []float32{1, 0, 0}},
	}
	err = s.InsertChunks(ctx, batch)
	require.Error(t, err)

	chunks, err := s.GetChunksByCollection(ctx, col.ID)
	require.NoError(t, err)
	assert.Empty(t, chunks, "one bad row must abort the whole batch")
}

func TestReingestIsIdempotent(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	col, err := s.CreateCollection(ctx, "c1", "")
	require.NoError(t, err)

	ingest := func(n int) {
		_, err := s.DeleteChunksBySource(ctx, "/a")
		require.NoError(t, err)
		batch := make([]*Chunk, n)
		for i := 0; i < n; i++ {
			batch[i] = &Chunk{
				ID: idFor(i), CollectionID: col.ID, SourceFile: "/a", ChunkIndex: i,
				Text: "v", Embedding: []float32{1, 0},
			}
		}
		require.NoError(t, s.InsertChunks(ctx, batch))
	}

	ingest(2)
	ingest(2)

	chunks, err := s.GetChunksBySourceFile(ctx, "/a")
	require.NoError(t, err)
	assert.Len(t, chunks, 2, "re-ingesting twice must leave the same state as ingesting once")

	require.NoError(t, s.UpdateCollectionStats(ctx, col.ID))
	got, err := s.GetCollectionByID(ctx, col.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, got.ChunkCount)
	assert.Equal(t, 1, got.FileCount)
}

func idFor(i int) string {
	return []string{"id-0", "id-1", "id-2", "id-3"}[i]
}

func TestDeleteCollectionCascadesToChunks(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	col, err := s.CreateCollection(ctx, "c1", "")
	require.NoError(t, err)

	batch := make([]*Chunk, 10)
	for i := range batch {
		batch[i] = &Chunk{
			ID: idForN(i), CollectionID: col.ID, SourceFile: "/a", ChunkIndex: i,
			Text: "content", Embedding: []float32{1, 0},
		}
	}
	require.NoError(t, s.InsertChunks(ctx, batch))

	deleted, err := s.DeleteCollection(ctx, "c1")
	require.NoError(t, err)
	assert.True(t, deleted)

	chunks, err := s.GetChunksByCollection(ctx, col.ID)
	require.NoError(t, err)
	assert.Empty(t, chunks, "cascade delete must remove every chunk of the deleted collection")

	var ftsCount int
	require.NoError(t, s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM chunks_fts`).Scan(&ftsCount))
	assert.Zero(t, ftsCount, "the keyword index must have no stale entries after cascade delete")
}

func idForN(i int) string {
	return "n-" + string(rune('a'+i))
}

func TestKeywordSearchFindsMatchAndTriggerSync(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	col, err := s.CreateCollection(ctx, "c1", "")
	require.NoError(t, err)

	require.NoError(t, s.InsertChunks(ctx, []*Chunk{
		{ID: "a", CollectionID: col.ID, SourceFile: "/a", ChunkIndex: 0, Text: "apples and bananas", Embedding: []float32{1, 0}},
		{ID: "b", CollectionID: col.ID, SourceFile: "/b", ChunkIndex: 0, Text: "oranges", Embedding: []float32{0, 1}},
	}))

	hits, err := s.KeywordSearch(ctx, "apples", col.ID, 10)
	require.NoError(t, err)
	require.Len(t, hits, 1)
	assert.Equal(t, "a", hits[0].ChunkID)

	var chunkCount, ftsCount int
	require.NoError(t, s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM chunks`).Scan(&chunkCount))
	require.NoError(t, s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM chunks_fts`).Scan(&ftsCount))
	assert.Equal(t, chunkCount, ftsCount, "every chunk row must have exactly one keyword-index entry")
}

func TestKeywordSearchLimitZeroReturnsEmpty(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	col, err := s.CreateCollection(ctx, "c1", "")
	require.NoError(t, err)
	require.NoError(t, s.InsertChunk(ctx, &Chunk{
		ID: "a", CollectionID: col.ID, SourceFile: "/a", ChunkIndex: 0, Text: "hello", Embedding: []float32{1},
	}))

	hits, err := s.KeywordSearch(ctx, "hello", col.ID, 0)
	require.NoError(t, err)
	assert.Empty(t, hits)
}

func TestListFilesGroupedAndOrdered(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	col, err := s.CreateCollection(ctx, "c1", "")
	require.NoError(t, err)
	require.NoError(t, s.InsertChunks(ctx, []*Chunk{
		{ID: "1", CollectionID: col.ID, SourceFile: "/b.aif-bin", ChunkIndex: 0, Text: "x", Embedding: []float32{1}},
		{ID: "2", CollectionID: col.ID, SourceFile: "/a.aif-bin", ChunkIndex: 0, Text: "x", Embedding: []float32{1}},
		{ID: "3", CollectionID: col.ID, SourceFile: "/a.aif-bin", ChunkIndex: 1, Text: "y", Embedding: []float32{1}},
	}))

	files, err := s.ListFiles(ctx, col.ID)
	require.NoError(t, err)
	require.Len(t, files, 2)
	assert.Equal(t, "/a.aif-bin", files[0].SourceFile)
	assert.Equal(t, 2, files[0].ChunkCount)
	assert.Equal(t, "/b.aif-bin", files[1].SourceFile)
	assert.Equal(t, 1, files[1].ChunkCount)
}

func TestMetadataRoundTripsThroughStore(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	col, err := s.CreateCollection(ctx, "c1", "")
	require.NoError(t, err)

	meta := map[string]any{
		"embedding_dim": int64(3),
		"nested": map[string]any{
			"a": "b",
		},
		"tags": []any{"x", "y"},
	}
	require.NoError(t, s.InsertChunk(ctx, &Chunk{
		ID: "a", CollectionID: col.ID, SourceFile: "/a", ChunkIndex: 0,
		Text: "hi", Embedding: []float32{1, 0, 0}, Metadata: meta,
	}))

	got, err := s.GetChunk(ctx, "a")
	require.NoError(t, err)
	assert.EqualValues(t, meta["embedding_dim"], got.Metadata["embedding_dim"])
	assert.Equal(t, "b", got.Metadata["nested"].(map[string]any)["a"])
	assert.Equal(t, []any{"x", "y"}, got.Metadata["tags"])
}

func TestCheckIntegrityOnFreshStore(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	report, err := s.CheckIntegrity(ctx)
	require.NoError(t, err)
	assert.True(t, report.OK)
	assert.True(t, report.FTSTableExists)
}
