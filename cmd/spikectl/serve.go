package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/danmuck/spikectl/internal/auth"
	"github.com/danmuck/spikectl/internal/chain"
	"github.com/danmuck/spikectl/internal/config"
	"github.com/danmuck/spikectl/internal/deploy"
	"github.com/danmuck/spikectl/internal/httpapi"
	"github.com/danmuck/spikectl/internal/journal"
	"github.com/danmuck/spikectl/internal/observability"
	"github.com/spf13/cobra"
	"github.com/tebeka/atexit"
)

func newServeCmd() *cobra.Command {
	var configPath string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Deploy the configured stack and serve the admin API.",
		RunE: func(cmd *cobra.Command, _ []string) error {
			envFile, _ := cmd.Flags().GetString("env-file")
			if err := loadDotEnv(envFile); err != nil {
				return err
			}
			logger := observability.InitLogger("spikectl")

			svc := defaultServiceConfig()
			if configPath != "" {
				loaded, err := loadServiceConfig(configPath)
				if err != nil {
					return err
				}
				svc = loaded
			}
			applyEnv(&svc)
			if err := validateServiceConfig(svc); err != nil {
				return err
			}

			deployment, err := config.LoadDeployment(svc.Deployment)
			if err != nil {
				return err
			}
			stack, err := deploy.BuildWith(deployment, chain.SystemClock{}, deploy.Options{
				Logger:   &logger,
				Recorder: observability.NewSpikerMetrics(),
			})
			if err != nil {
				return err
			}

			apiCfg := httpapi.Config{
				Name:        svc.Name,
				Addr:        svc.Addr,
				CorsOrigins: svc.CorsOrigins,
				Auth:        auth.StaticToken{Token: svc.AuthToken},
				Logger:      logger,
			}
			if svc.Journal != "" {
				j, err := journal.Open(svc.Journal, logger)
				if err != nil {
					return err
				}
				atexit.Register(func() {
					if err := j.Close(); err != nil {
						logger.Error().Err(err).Msg("journal close failed")
					}
				})
				apiCfg.Journal = j
			}

			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return httpapi.New(stack, apiCfg).Serve(ctx)
		},
	}
	cmd.Flags().StringVarP(&configPath, "config", "c", "", "service config (toml)")
	return cmd
}
