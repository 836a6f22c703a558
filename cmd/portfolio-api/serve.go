package main

import (
	"context"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/portpushpesh/portfolio-api/internal/mailer"
	"github.com/portpushpesh/portfolio-api/internal/server"
)

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := loadConfig()
			if err != nil {
				return err
			}

			ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
			defer cancel()

			strategy := cfg.Resolve(cfg.Mail.Strategy)
			if err := cfg.RequireFor(strategy); err != nil {
				logger.Warn("resume delivery is not fully configured; send-resume will answer 503",
					"strategy", strategy, "error", err)
			}

			d, err := mailer.New(ctx, cfg, mailer.WithLogger(logger))
			if err != nil {
				return err
			}

			st, err := server.OpenStore(cfg)
			if err != nil {
				return err
			}
			defer func() {
				if err := st.Close(); err != nil {
					logger.Warn("rate limit store close failed", "error", err)
				}
			}()

			logger.Info("portfolio-api starting",
				"env", cfg.Env,
				"strategy", strategy,
				"rate_limit_store", cfg.RateLimit.Store,
				"rate_limit", cfg.RateLimit.Max,
				"rate_limit_window", cfg.RateLimit.Window)

			if err := server.New(cfg, d, st, server.WithLogger(logger)).Run(ctx); err != nil {
				return err
			}
			logger.Info("portfolio-api stopped")
			return nil
		},
	}
}
