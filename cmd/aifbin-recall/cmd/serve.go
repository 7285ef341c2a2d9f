package cmd

import (
	"github.com/spf13/cobra"

	"github.com/aifbin/recall/internal/toolproto"
)

func newServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the tool-protocol server over stdio for an AI agent host",
		Long: `serve starts the line-delimited JSON tool protocol server (§6.4),
exposing recall_search, recall_get, recall_collections, and recall_index
over a single framed stdio pipe. The tool protocol serves one client at a
time, so nothing is written to stdout outside the protocol stream.`,
		Args: cobra.NoArgs,
		RunE: func(c *cobra.Command, args []string) error {
			a, err := buildApp(c.Context())
			if err != nil {
				return err
			}
			defer func() { _ = a.Close() }()

			srv := toolproto.New(a.facade, Version, a.logger)
			return srv.Serve(c.Context())
		},
	}
	return cmd
}
