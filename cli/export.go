package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/brunobiangulo/goknow/export"
)

func newExportCommand(opts *Options) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export the knowledge graph to another system",
	}
	cmd.AddCommand(newExportNeo4jCommand(opts))
	return cmd
}

func newExportNeo4jCommand(opts *Options) *cobra.Command {
	var flags export.Neo4jConfig
	cmd := &cobra.Command{
		Use:   "neo4j",
		Short: "MERGE every node and edge into a Neo4j database",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			engine, cfg, logger, closeFn, err := opts.open(true)
			if err != nil {
				return err
			}
			defer closeFn()

			nc := cfg.Neo4j
			if flags.URI != "" {
				nc.URI = flags.URI
			}
			if flags.Username != "" {
				nc.Username = flags.Username
			}
			if flags.Password != "" {
				nc.Password = flags.Password
			}
			if flags.Database != "" {
				nc.Database = flags.Database
			}
			if flags.BatchSize > 0 {
				nc.BatchSize = flags.BatchSize
			}

			ctx := cmd.Context()
			exp, err := export.NewNeo4j(ctx, nc, logger.Named("neo4j"))
			if err != nil {
				return err
			}
			defer exp.Close(ctx)

			sum, err := exp.Export(ctx, engine.Graph().Graph())
			if err != nil {
				return err
			}
			fmt.Fprintf(opts.Out, "Đã xuất %d nút và %d cạnh sang %s\n", sum.Nodes, sum.Edges, nc.URI)
			return nil
		},
	}
	cmd.Flags().StringVar(&flags.URI, "uri", "", "bolt URI (overrides neo4j.uri)")
	cmd.Flags().StringVar(&flags.Username, "user", "", "user name")
	cmd.Flags().StringVar(&flags.Password, "password", "", "password")
	cmd.Flags().StringVar(&flags.Database, "database", "", "database name")
	cmd.Flags().IntVar(&flags.BatchSize, "batch", 0, "rows per UNWIND batch")
	return cmd
}
