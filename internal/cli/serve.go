package cli

import (
	"context"
	"errors"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/soyeahso/uncover/internal/chat"
	"github.com/soyeahso/uncover/internal/gateway"
	"github.com/soyeahso/uncover/internal/logging"
)

func newServeCmd() *cobra.Command {
	var (
		port      int
		bind      string
		noSummary bool
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the UI bridge and the background summarizer",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			if port != 0 {
				cfg.Gateway.Port = port
			}
			if bind != "" {
				cfg.Gateway.Bind = bind
			}
			if err := validate(cfg); err != nil {
				return err
			}

			level := cfg.Logging.Level
			if logLevel != "" {
				level = logLevel
			}
			srvLog, err := logging.NewWithOptions(logging.Options{
				Level:        level,
				File:         paths.LogFile(cfg),
				ConsoleStyle: cfg.Logging.ConsoleStyle,
			})
			if err != nil {
				return err
			}
			defer srvLog.Close()

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			a, err := openApp(ctx, cfg, srvLog)
			if err != nil {
				return err
			}
			defer a.Close()

			srv := gateway.New(cfg.Gateway, a.chat, a.settings, srvLog,
				gateway.WithHooks(a.hooks),
				gateway.WithEndpoints(a.endpoints, a.remote),
				gateway.WithModels(a.models),
			)

			g, gctx := errgroup.WithContext(ctx)
			g.Go(func() error { return srv.Start(gctx) })

			if cfg.Summary.IsEnabled() && !noSummary {
				summarizer := chat.NewSummarizer(a.sessions, a.llm, a.settings.Get, a.hooks, chat.SummarizerConfig{
					Interval:    cfg.Summary.IntervalDuration(),
					Concurrency: cfg.Summary.Concurrency,
				}, srvLog)
				g.Go(func() error {
					if err := summarizer.Run(gctx); !errors.Is(err, context.Canceled) {
						return err
					}
					return nil
				})
			} else {
				srvLog.Info().Msg("session summarizer disabled")
			}

			return g.Wait()
		},
	}

	cmd.Flags().IntVar(&port, "port", 0, "override gateway port")
	cmd.Flags().StringVar(&bind, "bind", "", "override bind mode (loopback, lan, custom)")
	cmd.Flags().BoolVar(&noSummary, "no-summary", false, "do not rename sessions in the background")

	return cmd
}
