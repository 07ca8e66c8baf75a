package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/templui/thrive/internal/app"
	"github.com/templui/thrive/internal/config"
	"github.com/templui/thrive/internal/logger"
)

func JobCmd() *cobra.Command {
	return &cobra.Command{
		Use:       "job <name>",
		Short:     "Run a scheduled job once (achievements, maintenance)",
		Args:      cobra.ExactArgs(1),
		ValidArgs: []string{"achievements", "maintenance"},
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := config.Load()
			flush := logger.Init(logger.Options{
				Development: cfg.IsDevelopment(),
				SentryDSN:   cfg.SentryDSN,
				Environment: cfg.AppEnv,
			})
			defer flush()

			ctx := cmd.Context()
			a, err := app.New(ctx, cfg)
			if err != nil {
				return fmt.Errorf("failed to initialize app: %w", err)
			}
			defer a.Shutdown(ctx)

			return a.Scheduler.RunNow(args[0])
		},
	}
}
