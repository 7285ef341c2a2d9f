package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newDoctorCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "doctor",
		Short: "Check store integrity",
		Long: `doctor runs SQLite's own integrity check and verifies the keyword
inverted index table exists, mirroring the ambient store hygiene check the
teacher repo exposes as its own doctor command.`,
		Args: cobra.NoArgs,
		RunE: func(c *cobra.Command, args []string) error {
			a, err := buildApp(c.Context())
			if err != nil {
				return err
			}
			defer func() { _ = a.Close() }()

			report, err := a.facade.Doctor(c.Context())
			if err != nil {
				return err
			}

			out := c.OutOrStdout()
			if report.OK {
				fmt.Fprintln(out, "OK")
			} else {
				fmt.Fprintln(out, "PROBLEM")
			}
			fmt.Fprintf(out, "integrity_check: %s\n", report.IntegrityCheck)
			fmt.Fprintf(out, "fts_table_exists: %v\n", report.FTSTableExists)
			fmt.Fprintf(out, "collections: %d\n", report.CollectionCount)
			fmt.Fprintf(out, "chunks: %d\n", report.ChunkCount)
			if !report.OK {
				return fmt.Errorf("store integrity check failed")
			}
			return nil
		},
	}
}
