// Package index drives ingestion: walking a directory for .aif-bin files,
// parsing each one, and writing its chunks through the store in a way that
// is safe to re-run over the same tree (§4.3).
package index

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"sort"

	"golang.org/x/sync/errgroup"

	"github.com/aifbin/recall/internal/apperr"
	"github.com/aifbin/recall/internal/parser"
	"github.com/aifbin/recall/internal/store"
)

// Concurrency bounds how many files are parsed in parallel during a
// directory ingestion. Writes still funnel through the store one file at a
// time, so this only parallelizes the CPU-bound parse step.
const Concurrency = 4

// Result summarizes one IndexDirectory run (§4.3 "return (files_with_chunks, total_chunks)").
type Result struct {
	FilesWithChunks int
	TotalChunks     int
}

// Indexer ingests .aif-bin files into a Store.
type Indexer struct {
	store  *store.Store
	parser *parser.Parser
	logger *slog.Logger
}

// New creates an Indexer over s. p defaults to parser.New() if nil; logger
// defaults to slog.Default() if nil.
func New(s *store.Store, p *parser.Parser, logger *slog.Logger) *Indexer {
	if p == nil {
		p = parser.New()
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Indexer{store: s, parser: p, logger: logger}
}

// parsedFile is the intermediate result of the concurrent parse stage: the
// file's path alongside either a usable ParsedFile or the reason it was
// skipped.
type parsedFile struct {
	path string
	pf   *parser.ParsedFile
	err  error
}

// IndexDirectory walks root for files named *.aif-bin and ingests each one
// into collectionName, creating the collection on demand. recursive selects
// whether subdirectories are descended into or only root's immediate
// entries are considered (§4.3 "recursive when requested, otherwise one
// level"). A parse failure is logged and the file skipped; it never aborts
// the rest of the batch (§4.3 "Failure isolation").
func (ix *Indexer) IndexDirectory(ctx context.Context, root, collectionName string, recursive bool) (Result, error) {
	paths, err := findAifbinFiles(root, recursive)
	if err != nil {
		return Result{}, apperr.New(apperr.KindInput, "walk index directory", err).WithDetail("root", root)
	}

	parsed := ix.parseAll(ctx, paths)

	collection, err := ix.store.GetOrCreateCollection(ctx, collectionName)
	if err != nil {
		return Result{}, err
	}

	var res Result
	for _, pf := range parsed {
		if pf.err != nil {
			ix.logger.Warn("skipping unparseable file", "path", pf.path, "error", pf.err)
			continue
		}
		n, err := ix.ingestParsedFile(ctx, collection.ID, pf.path, pf.pf)
		if err != nil {
			ix.logger.Warn("skipping file on ingest error", "path", pf.path, "error", err)
			continue
		}
		if n > 0 {
			res.FilesWithChunks++
			res.TotalChunks += n
		}
	}

	if err := ix.store.UpdateCollectionStats(ctx, collection.ID); err != nil {
		return Result{}, err
	}
	return res, nil
}

// parseAll parses every path concurrently, bounded by Concurrency, and
// returns results in the same order as paths so downstream processing stays
// deterministic regardless of scheduling order.
func (ix *Indexer) parseAll(ctx context.Context, paths []string) []parsedFile {
	out := make([]parsedFile, len(paths))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(Concurrency)

	for i, path := range paths {
		i, path := i, path
		g.Go(func() error {
			if gctx.Err() != nil {
				out[i] = parsedFile{path: path, err: gctx.Err()}
				return nil
			}
			pf, err := ix.parser.Parse(path)
			out[i] = parsedFile{path: path, pf: pf, err: err}
			return nil
		})
	}
	_ = g.Wait()
	return out
}

// ingestParsedFile replaces every chunk previously stored for path and
// inserts the filtered, re-indexed set from pf, returning how many chunks
// were inserted (§4.3 steps 2-5).
func (ix *Indexer) ingestParsedFile(ctx context.Context, collectionID, path string, pf *parser.ParsedFile) (int, error) {
	usable := make([]parser.ParsedChunk, 0, len(pf.Chunks))
	for _, c := range pf.Chunks {
		if len(c.Embedding) > 0 {
			usable = append(usable, c)
		}
	}
	if len(usable) == 0 {
		return 0, nil
	}

	if _, err := ix.store.DeleteChunksBySource(ctx, path); err != nil {
		return 0, err
	}

	chunks := make([]*store.Chunk, len(usable))
	for i, c := range usable {
		chunks[i] = &store.Chunk{
			ID:           c.ID,
			CollectionID: collectionID,
			SourceFile:   path,
			ChunkIndex:   i,
			Text:         c.Text,
			Embedding:    c.Embedding,
			Metadata:     buildChunkMetadata(c),
		}
	}

	if err := ix.store.InsertChunks(ctx, chunks); err != nil {
		return 0, err
	}
	return len(chunks), nil
}

// buildChunkMetadata carries the chunk's own metadata forward verbatim and
// augments it with the derived fields §4.3 step 4 names: embedding_dim
// always, original_created_at and original_modified_at only when the
// chunk's metadata carries created_at or modified_at.
func buildChunkMetadata(c parser.ParsedChunk) map[string]any {
	md := make(map[string]any, len(c.Metadata)+3)
	for k, v := range c.Metadata {
		md[k] = v.ToAny()
	}
	md["embedding_dim"] = int64(len(c.Embedding))
	if v, ok := c.Metadata["created_at"]; ok {
		md["original_created_at"] = v.ToAny()
	}
	if v, ok := c.Metadata["modified_at"]; ok {
		md["original_modified_at"] = v.ToAny()
	}
	return md
}

// findAifbinFiles walks root, returning absolute paths of every file whose
// name ends in ".aif-bin", sorted for deterministic ordering. When
// recursive is false only root's immediate entries are considered; nested
// directories are not descended into.
func findAifbinFiles(root string, recursive bool) ([]string, error) {
	if !recursive {
		return findAifbinFilesOneLevel(root)
	}

	var out []string
	err := filepath.Walk(root, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if info.IsDir() {
			return nil
		}
		if filepath.Ext(path) != ".aif-bin" {
			return nil
		}
		abs, err := filepath.Abs(path)
		if err != nil {
			return err
		}
		out = append(out, abs)
		return nil
	})
	if err != nil {
		return nil, err
	}
	sort.Strings(out)
	return out, nil
}

func findAifbinFilesOneLevel(root string) ([]string, error) {
	entries, err := os.ReadDir(root)
	if err != nil {
		return nil, err
	}
	var out []string
	for _, e := range entries {
		if e.IsDir() || filepath.Ext(e.Name()) != ".aif-bin" {
			continue
		}
		abs, err := filepath.Abs(filepath.Join(root, e.Name()))
		if err != nil {
			return nil, err
		}
		out = append(out, abs)
	}
	sort.Strings(out)
	return out, nil
}
