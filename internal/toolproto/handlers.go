package toolproto

import (
	"context"
	"fmt"
	"strings"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/aifbin/recall/internal/facade"
	"github.com/aifbin/recall/internal/search"
	"github.com/aifbin/recall/internal/store"
)

// SearchInput is recall_search's argument shape (§6.4).
type SearchInput struct {
	Query      string    `json:"query" jsonschema:"the text to search for"`
	Embedding  []float32 `json:"embedding,omitempty" jsonschema:"a precomputed query embedding; when omitted the server embeds Query"`
	Collection string    `json:"collection,omitempty" jsonschema:"restrict results to one collection by name"`
	// Limit is a pointer so an omitted field (nil, "use the default") is
	// distinguishable from an explicit 0 ("return no results", §4.5).
	Limit *int `json:"limit,omitempty" jsonschema:"maximum number of results; omit for the default, 0 for none"`
}

func (s *Server) handleSearch(ctx context.Context, _ *mcp.CallToolRequest, in SearchInput) (*mcp.CallToolResult, emptyOutput, error) {
	if strings.TrimSpace(in.Query) == "" && len(in.Embedding) == 0 {
		return errorResult(fmt.Errorf("query or embedding is required")), emptyOutput{}, nil
	}

	results, err := s.facade.Search(ctx, facade.SearchRequest{
		Query:       in.Query,
		QueryVector: in.Embedding,
		Collection:  in.Collection,
		Limit:       in.Limit,
		Keyword:     in.Query != "",
	})
	if err != nil {
		return errorResult(err), emptyOutput{}, nil
	}
	return textResult(formatResults(in.Query, results)), emptyOutput{}, nil
}

// GetInput is recall_get's argument shape (§6.4).
type GetInput struct {
	ID string `json:"id" jsonschema:"the chunk id to fetch"`
}

func (s *Server) handleGet(ctx context.Context, _ *mcp.CallToolRequest, in GetInput) (*mcp.CallToolResult, emptyOutput, error) {
	if strings.TrimSpace(in.ID) == "" {
		return errorResult(fmt.Errorf("id is required")), emptyOutput{}, nil
	}

	chunk, err := s.facade.Recall(ctx, in.ID)
	if err != nil {
		return errorResult(err), emptyOutput{}, nil
	}
	return textResult(formatChunk(chunk)), emptyOutput{}, nil
}

// CollectionsInput is recall_collections' argument shape — it takes none.
type CollectionsInput struct{}

func (s *Server) handleCollections(ctx context.Context, _ *mcp.CallToolRequest, _ CollectionsInput) (*mcp.CallToolResult, emptyOutput, error) {
	cols, err := s.facade.ListCollections(ctx)
	if err != nil {
		return errorResult(err), emptyOutput{}, nil
	}
	return textResult(formatCollections(cols)), emptyOutput{}, nil
}

// IndexInput is recall_index's argument shape (§6.4).
type IndexInput struct {
	Path       string `json:"path" jsonschema:"directory to walk for .aif-bin files"`
	Collection string `json:"collection" jsonschema:"collection to ingest into, created on demand"`
	Recursive  bool   `json:"recursive,omitempty" jsonschema:"descend into subdirectories, default false"`
}

func (s *Server) handleIndex(ctx context.Context, _ *mcp.CallToolRequest, in IndexInput) (*mcp.CallToolResult, emptyOutput, error) {
	if strings.TrimSpace(in.Path) == "" || strings.TrimSpace(in.Collection) == "" {
		return errorResult(fmt.Errorf("path and collection are required")), emptyOutput{}, nil
	}

	res, err := s.facade.IndexDirectory(ctx, in.Path, in.Collection, in.Recursive)
	if err != nil {
		return errorResult(err), emptyOutput{}, nil
	}
	return textResult(fmt.Sprintf("indexed %d file(s), %d chunk(s) into collection %q",
		res.FilesWithChunks, res.TotalChunks, in.Collection)), emptyOutput{}, nil
}

// formatResults renders ranked results as the plain text block every
// transport-agnostic tool reply in this protocol carries (§6.4).
func formatResults(query string, results []search.Result) string {
	if len(results) == 0 {
		if query != "" {
			return fmt.Sprintf("no results for %q", query)
		}
		return "no results"
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "%d result(s)", len(results))
	if query != "" {
		fmt.Fprintf(&sb, " for %q", query)
	}
	sb.WriteString("\n\n")
	for i, r := range results {
		if r.Chunk == nil {
			continue
		}
		fmt.Fprintf(&sb, "%d. [%s] score=%.4f vector=%.4f keyword=%.4f\n   %s\n\n",
			i+1, r.Chunk.ID, r.Score, r.VectorScore, r.KeywordScore, truncateText(r.Chunk.Text, 280))
	}
	return strings.TrimRight(sb.String(), "\n")
}

func formatChunk(c *store.Chunk) string {
	if c == nil {
		return "not found"
	}
	return fmt.Sprintf("id=%s source=%s#%d\n\n%s", c.ID, c.SourceFile, c.ChunkIndex, c.Text)
}

func formatCollections(cols []facade.CollectionStats) string {
	if len(cols) == 0 {
		return "no collections"
	}
	var sb strings.Builder
	for _, c := range cols {
		fmt.Fprintf(&sb, "%s: %d file(s), %d chunk(s)\n", c.Name, c.FileCount, c.ChunkCount)
	}
	return strings.TrimRight(sb.String(), "\n")
}

func truncateText(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max] + "…"
}
