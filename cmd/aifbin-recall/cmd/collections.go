package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newCollectionsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "collections",
		Short: "Manage collections",
	}
	cmd.AddCommand(newCollectionsListCmd())
	cmd.AddCommand(newCollectionsCreateCmd())
	cmd.AddCommand(newCollectionsDeleteCmd())
	return cmd
}

func newCollectionsListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List every collection and its file/chunk counts",
		Args:  cobra.NoArgs,
		RunE: func(c *cobra.Command, args []string) error {
			a, err := buildApp(c.Context())
			if err != nil {
				return err
			}
			defer func() { _ = a.Close() }()

			stats, err := a.facade.ListCollections(c.Context())
			if err != nil {
				return err
			}
			if len(stats) == 0 {
				fmt.Fprintln(c.OutOrStdout(), "no collections")
				return nil
			}
			for _, s := range stats {
				fmt.Fprintf(c.OutOrStdout(), "%s\t%d files\t%d chunks\t%s\n", s.Name, s.FileCount, s.ChunkCount, s.Description)
			}
			return nil
		},
	}
}

func newCollectionsCreateCmd() *cobra.Command {
	var description string
	cmd := &cobra.Command{
		Use:   "create <name>",
		Short: "Create a collection",
		Args:  cobra.ExactArgs(1),
		RunE: func(c *cobra.Command, args []string) error {
			a, err := buildApp(c.Context())
			if err != nil {
				return err
			}
			defer func() { _ = a.Close() }()

			if _, err := a.store.CreateCollection(c.Context(), args[0], description); err != nil {
				return err
			}
			fmt.Fprintf(c.OutOrStdout(), "created collection %q\n", args[0])
			return nil
		},
	}
	cmd.Flags().StringVarP(&description, "description", "d", "", "collection description")
	return cmd
}

func newCollectionsDeleteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "delete <name>",
		Short: "Delete a collection and cascade-delete its chunks",
		Args:  cobra.ExactArgs(1),
		RunE: func(c *cobra.Command, args []string) error {
			a, err := buildApp(c.Context())
			if err != nil {
				return err
			}
			defer func() { _ = a.Close() }()

			deleted, err := a.store.DeleteCollection(c.Context(), args[0])
			if err != nil {
				return err
			}
			if !deleted {
				return fmt.Errorf("collection %q not found", args[0])
			}
			fmt.Fprintf(c.OutOrStdout(), "deleted collection %q\n", args[0])
			return nil
		},
	}
}
