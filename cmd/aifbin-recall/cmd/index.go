package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newIndexCmd() *cobra.Command {
	var collection string
	var recursive bool

	cmd := &cobra.Command{
		Use:   "index <path>",
		Short: "Ingest .aif-bin files under a directory into a collection",
		Long: `index walks path for files named *.aif-bin and ingests each one into
the named collection, creating it on demand (§4.3). Re-running index over a
file already ingested atomically replaces its prior chunks.`,
		Args: cobra.ExactArgs(1),
		RunE: func(c *cobra.Command, args []string) error {
			if collection == "" {
				return fmt.Errorf("--collection is required")
			}
			a, err := buildApp(c.Context())
			if err != nil {
				return err
			}
			defer func() { _ = a.Close() }()

			res, err := a.facade.IndexDirectory(c.Context(), args[0], collection, recursive)
			if err != nil {
				return err
			}
			fmt.Fprintf(c.OutOrStdout(), "indexed %d file(s), %d chunk(s) into %q\n",
				res.FilesWithChunks, res.TotalChunks, collection)
			return nil
		},
	}

	cmd.Flags().StringVarP(&collection, "collection", "c", "", "collection to ingest into (required)")
	cmd.Flags().BoolVarP(&recursive, "recursive", "r", false, "descend into subdirectories")
	return cmd
}
