package cli

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/brunobiangulo/goknow"
	"github.com/brunobiangulo/goknow/collector"
	"github.com/brunobiangulo/goknow/learner"
	"github.com/brunobiangulo/goknow/parser"
)

func newLearnCommand(opts *Options) *cobra.Command {
	var queryContext string
	cmd := &cobra.Command{
		Use:   "learn <records.json>",
		Short: "Learn fact records from a JSON file",
		Long: `Learn fact records from a JSON file holding one record object or an array
of them. Each record has a title, content, source, confidence, entities and
relations. Malformed records are reported and skipped.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := os.ReadFile(args[0])
			if err != nil {
				return err
			}
			records, problems, err := learner.DecodeRecords(data)
			if err != nil {
				return fmt.Errorf("decoding %s: %w", args[0], err)
			}
			for _, p := range problems {
				fmt.Fprintln(opts.Out, errorStyle.Render("bỏ qua: "+p.Error()))
			}

			engine, _, _, closeFn, err := opts.open(true)
			if err != nil {
				return err
			}
			defer closeFn()
			return learnRecords(cmd, opts, engine, records, queryContext)
		},
	}
	cmd.Flags().StringVar(&queryContext, "context", "", "question the records answer; links learned entities to it")
	return cmd
}

func newIngestCommand(opts *Options) *cobra.Command {
	var queryContext string
	cmd := &cobra.Command{
		Use:   "ingest <dir>...",
		Short: "Learn the documents (pdf, xlsx, txt, md) under directories",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			engine, _, logger, closeFn, err := opts.open(true)
			if err != nil {
				return err
			}
			defer closeFn()

			docs := collector.NewDocumentSource(args, parser.NewRegistry(logger.Named("parser")), nil, logger.Named("documents"))
			records, err := docs.All(cmd.Context())
			if err != nil {
				return err
			}
			logger.Info("documents parsed", zap.Int("records", len(records)))
			fmt.Fprintf(opts.Out, "Đã đọc %d tài liệu\n", len(records))
			return learnRecords(cmd, opts, engine, records, queryContext)
		},
	}
	cmd.Flags().StringVar(&queryContext, "context", "", "topic the documents are about")
	return cmd
}

func learnRecords(cmd *cobra.Command, opts *Options, engine goknow.Engine, records []learner.Record, queryContext string) error {
	if len(records) == 0 {
		return goknow.ErrNoRecords
	}
	if !engine.Learn(cmd.Context(), records, queryContext) {
		return errors.New("learning failed, see the log for details")
	}
	renderLearn(opts.Out, engine.LastLearn())
	return nil
}
