// cmd/storescrapexter/serve.go
package main

import (
	"context"
	"time"

	"github.com/spf13/cobra"

	"github.com/valpere/StoreScrapexter/internal/config"
	"github.com/valpere/StoreScrapexter/internal/dedupe"
	"github.com/valpere/StoreScrapexter/internal/monitoring"
	"github.com/valpere/StoreScrapexter/internal/pipeline"
	"github.com/valpere/StoreScrapexter/internal/scheduler"
	"github.com/valpere/StoreScrapexter/internal/server"
	"github.com/valpere/StoreScrapexter/internal/utils"
)

func (a *app) serveCommand() *cobra.Command {
	var address string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the HTTP API and run spiders on their schedules",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := a.loadConfig()
			if err != nil {
				return err
			}
			if address != "" {
				cfg.Server.Address = address
			}
			return a.serve(cmd.Context(), cfg)
		},
	}
	cmd.Flags().StringVar(&address, "address", "", "override server.address")
	return cmd
}

func (a *app) serve(ctx context.Context, cfg *config.Config) error {
	logger := utils.NewComponentLogger("serve")

	metrics := monitoring.NewMetricsManager(monitoring.MetricsConfig{EnableGoMetrics: true})
	runner := pipeline.NewRunner(cfg,
		pipeline.WithRegistry(a.registry),
		pipeline.WithMetrics(metrics),
		pipeline.WithErrorService(a.errors),
	)

	sched := scheduler.New(func(ctx context.Context, spider string) error {
		_, err := runner.Run(ctx, spider)
		return err
	}, utils.NewComponentLogger("scheduler"))
	if err := sched.Apply(cfg, a.registry.Names()); err != nil {
		return err
	}

	health := monitoring.NewHealthManager(monitoring.HealthConfig{Version: version})
	health.RegisterCheck(monitoring.GoroutineHealthCheck(10000))
	if cfg.Dedupe.Backend == "redis" {
		redisCfg := cfg.Dedupe.Redis
		health.RegisterCheck(monitoring.PingHealthCheck("redis", true, func(ctx context.Context) error {
			f, err := dedupe.NewRedisFilter(redisCfg, "health")
			if err != nil {
				return err
			}
			return f.Close()
		}))
	}

	srv := server.New(cfg.Server, runner, metrics,
		server.WithScheduler(sched),
		server.WithHealth(health),
	)

	if a.configPath != "" {
		watcher, err := config.NewWatcher(a.configPath, utils.NewComponentLogger("config-watcher"))
		if err != nil {
			return err
		}
		defer watcher.Close()
		watcher.OnChange(func(next *config.Config) {
			runner.UpdateConfig(next)
			if err := sched.Apply(next, a.registry.Names()); err != nil {
				logger.Errorf("schedule reload incomplete: %v", err)
			}
			logger.Info("configuration reloaded")
		})
	}

	sched.Start()
	defer func() {
		stopCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := sched.Stop(stopCtx); err != nil {
			logger.Warnf("scheduler did not stop cleanly: %v", err)
		}
	}()

	return srv.ListenAndServe(ctx)
}
