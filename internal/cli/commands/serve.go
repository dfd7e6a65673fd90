package commands

import (
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/conduit-lang/redisstore/internal/demo/twitter"
	"github.com/conduit-lang/redisstore/internal/web/inspect"
	"github.com/conduit-lang/redisstore/internal/web/server"
)

func newServeCommand(a *app) *cobra.Command {
	var (
		embedded bool
		seed     bool
		addr     string
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the read-only inspector",
		Long: `Serve a JSON view of registered entity types, their records and their
collections. The demo types are always registered; --seed also runs the demo
first, which is mostly useful with --embedded.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			s, cleanup, err := a.open(ctx, embedded)
			if err != nil {
				return err
			}
			defer cleanup()

			svc, err := twitter.NewService(s, a.logger)
			if err != nil {
				return err
			}
			if seed {
				if _, err := svc.Run(ctx); err != nil {
					return err
				}
			}

			listen := a.cfg.Inspect.Addr
			if addr != "" {
				listen = addr
			}
			srv := server.New(listen, inspect.NewHandler(s.Registry(), a.logger).Routes(), a.logger)
			a.logger.Info("serving inspector", zap.String("addr", listen))
			return srv.Run(ctx)
		},
	}

	cmd.Flags().BoolVar(&embedded, "embedded", false, "run against an in-process server")
	cmd.Flags().BoolVar(&seed, "seed", false, "run the demo before serving")
	cmd.Flags().StringVar(&addr, "addr", "", "listen address (overrides inspect.addr)")
	return cmd
}
