package cli

import (
	"time"

	"github.com/spf13/cobra"

	"github.com/brunobiangulo/goknow/store"
)

func newStatsCommand(opts *Options) *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Show knowledge graph and history statistics",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			engine, _, _, closeFn, err := opts.open(true)
			if err != nil {
				return err
			}
			defer closeFn()

			stats, err := engine.Stats(cmd.Context())
			if err != nil {
				return err
			}
			if asJSON {
				return writeJSON(opts.Out, stats)
			}
			renderStats(opts.Out, stats, -1)
			return nil
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "print statistics as JSON")
	return cmd
}

func newHistoryCommand(opts *Options) *cobra.Command {
	var (
		like    string
		similar string
		limit   int
		asJSON  bool
	)
	cmd := &cobra.Command{
		Use:   "history",
		Short: "List answered questions",
		Example: `  goknow history --limit 20
  goknow history --like "phép cộng"
  goknow history --similar "cộng hai số là gì"`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			engine, _, _, closeFn, err := opts.open(true)
			if err != nil {
				return err
			}
			defer closeFn()

			ctx := cmd.Context()
			var entries []store.QueryLog
			switch {
			case similar != "":
				found, err := engine.SimilarQuestions(ctx, similar, limit)
				if err != nil {
					return err
				}
				for _, s := range found {
					entries = append(entries, s.QueryLog)
				}
			case like != "":
				entries, err = engine.SearchHistory(ctx, like, limit)
			default:
				entries, err = engine.History(ctx, limit)
			}
			if err != nil {
				return err
			}

			if asJSON {
				if entries == nil {
					entries = []store.QueryLog{}
				}
				return writeJSON(opts.Out, entries)
			}
			renderHistory(opts.Out, entries, time.Now())
			return nil
		},
	}
	cmd.Flags().StringVar(&like, "like", "", "only questions containing this text")
	cmd.Flags().StringVar(&similar, "similar", "", "questions closest in meaning (needs an embedding provider)")
	cmd.Flags().IntVarP(&limit, "limit", "n", 10, "maximum number of questions")
	cmd.Flags().BoolVar(&asJSON, "json", false, "print history as JSON")
	return cmd
}
