// Package cmd provides the terminal command dispatcher for aifbin-recall,
// a thin binding over the Facade (§4.6) — no command reimplements retrieval
// logic, mirroring the teacher's cmd/amanmcp/cmd package.
package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/aifbin/recall/internal/config"
	"github.com/aifbin/recall/internal/embed"
	"github.com/aifbin/recall/internal/facade"
	"github.com/aifbin/recall/internal/index"
	"github.com/aifbin/recall/internal/search"
	"github.com/aifbin/recall/internal/store"
)

// globalFlags are the root command's persistent flags, threaded down to
// every subcommand instead of living as package globals beyond this file.
type globalFlags struct {
	configPath string
	dbPath     string
	logLevel   string
}

var flags globalFlags

// app bundles the Facade together with the Store it owns, so commands can
// close the store on exit.
type app struct {
	facade *facade.Facade
	store  *store.Store
	cfg    *config.Config
	logger *slog.Logger
}

// buildApp loads configuration and assembles the Facade's collaborators the
// way amanmcp's CLI assembles its own engine/store pair per invocation: one
// Store per command run, closed via Close when the command returns.
func buildApp(ctx context.Context) (*app, error) {
	logger := newLogger(flags.logLevel)

	cfg, err := config.Load(flags.configPath)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	if flags.dbPath != "" {
		cfg.Store.Path = flags.dbPath
	}

	s, err := store.Open(cfg.Store.Path)
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}

	embedder, err := buildEmbedder(ctx, cfg)
	if err != nil {
		_ = s.Close()
		return nil, fmt.Errorf("build embedder: %w", err)
	}

	engine := search.NewEngine(s)
	ix := index.New(s, nil, logger)
	f := facade.New(s, engine, embedder, ix, logger)

	return &app{facade: f, store: s, cfg: cfg, logger: logger}, nil
}

func (a *app) Close() error {
	return a.store.Close()
}

// buildEmbedder selects the Embedder binding named by cfg.Embedder.Provider
// (§4.4, §D) and wraps it in the LRU cache when CacheSize is positive.
func buildEmbedder(ctx context.Context, cfg *config.Config) (embed.Embedder, error) {
	var base embed.Embedder
	switch cfg.Embedder.Provider {
	case "server":
		srv, err := embed.NewServerEmbedder(ctx, embed.ServerConfig{
			Host:  cfg.Embedder.Host,
			Model: cfg.Embedder.Model,
		})
		if err != nil {
			return nil, err
		}
		base = srv
	case "stub", "":
		base = embed.NewStubEmbedder()
	default:
		return nil, fmt.Errorf("unknown embedder provider %q", cfg.Embedder.Provider)
	}

	if cfg.Embedder.CacheSize > 0 {
		return embed.NewCachedEmbedder(base, cfg.Embedder.CacheSize), nil
	}
	return base, nil
}

// newLogger builds the process-wide structured logger threaded down as a
// field to every collaborator, rather than installed as a package global
// (§A ambient stack).
func newLogger(level string) *slog.Logger {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(level)); err != nil {
		lvl = slog.LevelInfo
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: lvl}))
}

// addCollectionFlag is shared by commands that take an optional
// --collection filter.
func addCollectionFlag(cmd *cobra.Command, dst *string) {
	cmd.Flags().StringVarP(dst, "collection", "c", "", "restrict to one collection by name")
}
