package cli

import (
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/brunobiangulo/goknow"
	"github.com/brunobiangulo/goknow/web"
)

func newServeCommand(opts *Options) *cobra.Command {
	var addr string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the chat page and JSON API",
		Long: `Serve the chat page and JSON API over HTTP. When a config file is given
it is watched and thresholds are reloaded on change.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			engine, cfg, logger, closeFn, err := opts.open(false)
			if err != nil {
				return err
			}
			defer closeFn()

			if addr != "" {
				cfg.Server.Addr = addr
			}
			srv, err := web.NewServer(engine, cfg.Server, logger.Named("http"))
			if err != nil {
				return err
			}

			g, ctx := errgroup.WithContext(cmd.Context())
			g.Go(func() error { return srv.ListenAndServe(ctx) })
			if opts.ConfigPath != "" {
				g.Go(func() error {
					if err := goknow.WatchConfig(ctx, opts.ConfigPath, engine, logger.Named("config")); err != nil {
						logger.Warn("config watcher stopped", zap.Error(err))
					}
					return nil
				})
			}
			return g.Wait()
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "listen address (overrides server.addr)")
	return cmd
}
