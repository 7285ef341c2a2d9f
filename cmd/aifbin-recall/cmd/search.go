package cmd

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"

	"github.com/aifbin/recall/internal/facade"
)

type searchOutputRow struct {
	ID           string  `json:"id"`
	SourceFile   string  `json:"source_file"`
	Text         string  `json:"text"`
	Score        float64 `json:"score"`
	VectorScore  float64 `json:"vector_score"`
	KeywordScore float64 `json:"keyword_score"`
}

func newSearchCmd() *cobra.Command {
	var collection string
	var limit int
	var threshold float64
	var hybridWeight float64
	var keyword bool
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "search <query>",
		Short: "Search indexed memory chunks",
		Long: `search embeds the query text and ranks stored chunks by cosine
similarity (§4.5), or by the fused vector+keyword hybrid score when
--keyword is set.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(c *cobra.Command, args []string) error {
			query := strings.Join(args, " ")
			a, err := buildApp(c.Context())
			if err != nil {
				return err
			}
			defer func() { _ = a.Close() }()

			// --limit and --hybrid-weight fall back to the config file's
			// search defaults when the flag wasn't explicitly set, rather
			// than to the hardcoded flag default, so AIFBIN_RECALL_SEARCH_*
			// and a config file's search: section actually take effect.
			limitVal := limit
			if !c.Flags().Changed("limit") {
				limitVal = a.cfg.Search.DefaultLimit
			}
			hw := hybridWeight
			if !c.Flags().Changed("hybrid-weight") {
				hw = a.cfg.Search.DefaultHybridWeight
			}

			results, err := a.facade.Search(c.Context(), facade.SearchRequest{
				Query:        query,
				Collection:   collection,
				Limit:        &limitVal,
				Threshold:    threshold,
				HybridWeight: hw,
				Keyword:      keyword,
			})
			if err != nil {
				return err
			}

			rows := make([]searchOutputRow, 0, len(results))
			for _, r := range results {
				if r.Chunk == nil {
					continue
				}
				rows = append(rows, searchOutputRow{
					ID: r.Chunk.ID, SourceFile: r.Chunk.SourceFile, Text: r.Chunk.Text,
					Score: r.Score, VectorScore: r.VectorScore, KeywordScore: r.KeywordScore,
				})
			}

			out := c.OutOrStdout()
			useJSON := asJSON || !isatty.IsTerminal(os.Stdout.Fd())
			if useJSON {
				enc := json.NewEncoder(out)
				enc.SetIndent("", "  ")
				return enc.Encode(rows)
			}

			if len(rows) == 0 {
				fmt.Fprintln(out, "no results")
				return nil
			}
			for i, row := range rows {
				fmt.Fprintf(out, "%d. [%s] score=%.4f  %s\n", i+1, row.ID, row.Score, truncate(row.Text, 100))
			}
			return nil
		},
	}

	addCollectionFlag(cmd, &collection)
	cmd.Flags().IntVarP(&limit, "limit", "n", 0, "maximum number of results, 0 for none (default from config search.default_limit)")
	cmd.Flags().Float64Var(&threshold, "threshold", 0, "discard results scoring below this")
	cmd.Flags().Float64Var(&hybridWeight, "hybrid-weight", 0, "vector-vs-keyword fusion weight with --keyword (default from config search.default_hybrid_weight)")
	cmd.Flags().BoolVarP(&keyword, "keyword", "k", false, "fuse BM25 keyword scoring with vector similarity")
	cmd.Flags().BoolVar(&asJSON, "json", false, "force JSON output")
	return cmd
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max] + "…"
}
