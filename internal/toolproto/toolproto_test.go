package toolproto

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aifbin/recall/internal/aifbintest"
	"github.com/aifbin/recall/internal/embed"
	"github.com/aifbin/recall/internal/facade"
	"github.com/aifbin/recall/internal/index"
	"github.com/aifbin/recall/internal/onf"
	"github.com/aifbin/recall/internal/search"
	"github.com/aifbin/recall/internal/store"
)

func newTestServer(t *testing.T) (*Server, *store.Store) {
	t.Helper()
	s, err := store.Open(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })

	engine := search.NewEngine(s)
	embedder := embed.NewStubEmbedder()
	t.Cleanup(func() { _ = embedder.Close() })
	ix := index.New(s, nil, nil)
	f := facade.New(s, engine, embedder, ix, nil)

	return New(f, "test", nil), s
}

func TestHandleSearchRequiresQueryOrEmbedding(t *testing.T) {
	srv, _ := newTestServer(t)
	res, _, err := srv.handleSearch(context.Background(), nil, SearchInput{})
	require.NoError(t, err)
	assert.True(t, res.IsError)
}

func TestHandleSearchReturnsRankedChunk(t *testing.T) {
	ctx := context.Background()
	srv, s := newTestServer(t)
	col, err := s.CreateCollection(ctx, "c", "")
	require.NoError(t, err)
	require.NoError(t, s.InsertChunk(ctx, &store.Chunk{
		ID: "a", CollectionID: col.ID, SourceFile: "x", Text: "hello world", Embedding: []float32{1, 0},
	}))

	res, _, err := srv.handleSearch(ctx, nil, SearchInput{
		Embedding: []float32{1, 0}, Collection: "c",
	})
	require.NoError(t, err)
	require.False(t, res.IsError)
	require.Len(t, res.Content, 1)
	block, ok := res.Content[0].(*mcp.TextContent)
	require.True(t, ok)
	assert.Contains(t, block.Text, "hello world")
}

func TestHandleSearchLimitZeroReturnsNoResultsText(t *testing.T) {
	ctx := context.Background()
	srv, s := newTestServer(t)
	col, err := s.CreateCollection(ctx, "c", "")
	require.NoError(t, err)
	require.NoError(t, s.InsertChunk(ctx, &store.Chunk{
		ID: "a", CollectionID: col.ID, SourceFile: "x", Text: "hello world", Embedding: []float32{1, 0},
	}))

	zero := 0
	res, _, err := srv.handleSearch(ctx, nil, SearchInput{
		Embedding: []float32{1, 0}, Collection: "c", Limit: &zero,
	})
	require.NoError(t, err)
	require.False(t, res.IsError)
	block, ok := res.Content[0].(*mcp.TextContent)
	require.True(t, ok)
	assert.Contains(t, block.Text, "no results", "limit=0 must report zero results, not the default-sized page")
}

func TestHandleGetRequiresID(t *testing.T) {
	srv, _ := newTestServer(t)
	res, _, err := srv.handleGet(context.Background(), nil, GetInput{})
	require.NoError(t, err)
	assert.True(t, res.IsError)
}

func TestHandleGetUnknownIDIsError(t *testing.T) {
	srv, _ := newTestServer(t)
	res, _, err := srv.handleGet(context.Background(), nil, GetInput{ID: "missing"})
	require.NoError(t, err)
	assert.True(t, res.IsError)
}

func TestHandleGetReturnsChunkText(t *testing.T) {
	ctx := context.Background()
	srv, s := newTestServer(t)
	col, err := s.CreateCollection(ctx, "c", "")
	require.NoError(t, err)
	require.NoError(t, s.InsertChunk(ctx, &store.Chunk{
		ID: "a", CollectionID: col.ID, SourceFile: "x", Text: "hello world", Embedding: []float32{1, 0},
	}))

	res, _, err := srv.handleGet(ctx, nil, GetInput{ID: "a"})
	require.NoError(t, err)
	require.False(t, res.IsError)
}

func TestHandleCollectionsListsEmpty(t *testing.T) {
	srv, _ := newTestServer(t)
	res, _, err := srv.handleCollections(context.Background(), nil, CollectionsInput{})
	require.NoError(t, err)
	require.False(t, res.IsError)
}

func TestHandleIndexRequiresPathAndCollection(t *testing.T) {
	srv, _ := newTestServer(t)
	res, _, err := srv.handleIndex(context.Background(), nil, IndexInput{})
	require.NoError(t, err)
	assert.True(t, res.IsError)
}

func TestHandleIndexIngestsDirectory(t *testing.T) {
	ctx := context.Background()
	srv, s := newTestServer(t)
	dir := t.TempDir()

	vec := make([]float32, 4)
	vec[0] = 1
	path := filepath.Join(dir, "a.aif-bin")
	require.NoError(t, os.WriteFile(path, aifbintest.Build(aifbintest.File{
		Version: 1,
		Chunks: []aifbintest.Chunk{
			{Type: 1, Text: "hello world", Metadata: map[string]onf.Value{
				"embedding": aifbintest.EmbeddingValue(vec),
			}},
		},
	}), 0o644))

	res, _, err := srv.handleIndex(ctx, nil, IndexInput{Path: dir, Collection: "c"})
	require.NoError(t, err)
	require.False(t, res.IsError)

	col, err := s.GetCollection(ctx, "c")
	require.NoError(t, err)
	assert.Equal(t, 1, col.ChunkCount)
}
