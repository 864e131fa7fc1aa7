// Package cli implements the goknow command line: one-shot questions, an
// interactive chat, the HTTP server and maintenance commands.
package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/brunobiangulo/goknow"
)

// EngineFactory builds the engine a command runs against.
type EngineFactory func(cfg goknow.Config, logger *zap.Logger) (goknow.Engine, error)

// Options holds global flags and the I/O of all commands.
type Options struct {
	ConfigPath string
	Verbose    bool

	In  io.Reader
	Out io.Writer

	// NewEngine defaults to goknow.New.
	NewEngine EngineFactory

	// level follows the config file's log_level; nil when a flag or the
	// command fixes the level.
	level *zap.AtomicLevel
}

// NewRootCommand creates the goknow command tree.
func NewRootCommand(opts *Options) *cobra.Command {
	if opts.NewEngine == nil {
		opts.NewEngine = func(cfg goknow.Config, logger *zap.Logger) (goknow.Engine, error) {
			return goknow.New(cfg, goknow.WithLogger(logger), goknow.WithLogLevel(opts.level))
		}
	}

	cmd := &cobra.Command{
		Use:   "goknow",
		Short: "Self-learning knowledge graph assistant",
		Long: `goknow answers questions from a knowledge graph. When the graph does not
know enough it collects information from the web, LLM APIs and local
documents, learns it and answers again.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			if opts.In == nil {
				opts.In = cmd.InOrStdin()
			}
			if opts.Out == nil {
				opts.Out = cmd.OutOrStdout()
			}
		},
	}

	cmd.PersistentFlags().StringVarP(&opts.ConfigPath, "config", "c", os.Getenv("GOKNOW_CONFIG"), "path to config file (YAML or JSON)")
	cmd.PersistentFlags().BoolVarP(&opts.Verbose, "verbose", "v", false, "verbose output and debug logging")

	cmd.AddCommand(newAskCommand(opts))
	cmd.AddCommand(newChatCommand(opts))
	cmd.AddCommand(newServeCommand(opts))
	cmd.AddCommand(newLearnCommand(opts))
	cmd.AddCommand(newIngestCommand(opts))
	cmd.AddCommand(newStatsCommand(opts))
	cmd.AddCommand(newHistoryCommand(opts))
	cmd.AddCommand(newExportCommand(opts))
	return cmd
}

// load reads the configuration and builds the logger. Interactive commands
// only log warnings unless --verbose is set.
func (o *Options) load(interactive bool) (goknow.Config, *zap.Logger, error) {
	cfg, err := goknow.LoadConfig(o.ConfigPath)
	if err != nil {
		return cfg, nil, err
	}
	level := cfg.LogLevel
	switch {
	case o.Verbose:
		level = "debug"
	case interactive:
		level = "warn"
	}
	logger, lvl, err := goknow.NewLogger(level, o.Verbose)
	if err != nil {
		return cfg, nil, err
	}
	o.level = nil
	if !o.Verbose && !interactive {
		o.level = &lvl
	}
	return cfg, logger, nil
}

// open loads the configuration and creates the engine. The returned
// function closes the engine and flushes the logger.
func (o *Options) open(interactive bool) (goknow.Engine, goknow.Config, *zap.Logger, func(), error) {
	cfg, logger, err := o.load(interactive)
	if err != nil {
		return nil, cfg, nil, nil, err
	}
	engine, err := o.NewEngine(cfg, logger)
	if err != nil {
		logger.Sync()
		return nil, cfg, nil, nil, fmt.Errorf("creating engine: %w", err)
	}
	closeFn := func() {
		if err := engine.Close(); err != nil {
			logger.Warn("closing engine", zap.Error(err))
		}
		logger.Sync()
	}
	return engine, cfg, logger, closeFn, nil
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	enc.SetEscapeHTML(false)
	return enc.Encode(v)
}
