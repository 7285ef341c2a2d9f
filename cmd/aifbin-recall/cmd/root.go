package cmd

import (
	"github.com/spf13/cobra"

	"github.com/aifbin/recall/internal/config"
)

// Version is the CLI version string, overridable at build time via
// -ldflags "-X .../cmd.Version=...".
var Version = "dev"

// NewRootCmd creates the root command for the aifbin-recall CLI.
func NewRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "aifbin-recall",
		Short: "Local-first retrieval service over .aif-bin memory files",
		Long: `aifbin-recall ingests .aif-bin memory files into a persistent local
store and answers queries with ranked fragments, combining cosine similarity
over stored embeddings with BM25 keyword scoring.`,
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: false,
	}
	root.SetVersionTemplate("aifbin-recall version {{.Version}}\n")

	root.PersistentFlags().StringVar(&flags.configPath, "config", "", "config file path (default "+config.DefaultConfigPath()+")")
	root.PersistentFlags().StringVar(&flags.dbPath, "db", "", "database file path (overrides config)")
	root.PersistentFlags().StringVar(&flags.logLevel, "log-level", "info", "log level: debug, info, warn, error")

	root.AddCommand(newServeCmd())
	root.AddCommand(newIndexCmd())
	root.AddCommand(newSearchCmd())
	root.AddCommand(newCollectionsCmd())
	root.AddCommand(newDoctorCmd())

	return root
}

// Execute runs the root command.
func Execute() error {
	return NewRootCmd().Execute()
}
