package main

import (
	"context"
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"

	"coverga/internal/dataset"
	"coverga/internal/metrics"
	"coverga/internal/platform"
	"coverga/internal/problem"
	"coverga/internal/server"
)

const shutdownTimeout = 10 * time.Second

func newServeCmd(global *globalFlags) *cobra.Command {
	var (
		addr  string
		watch bool
		data  datasetFlags
	)
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the optimization API with server-sent progress events",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, logger, err := global.load(cmd)
			if err != nil {
				return err
			}
			if cmd.Flags().Changed("addr") {
				cfg.Server.Addr = addr
			}
			if cmd.Flags().Changed("watch") {
				cfg.Dataset.Watch = watch
			}
			data.apply(cmd, &cfg.Dataset)
			if err := cfg.Validate(); err != nil {
				return err
			}

			ctx := cmd.Context()
			registry := prometheus.NewRegistry()
			registry.MustRegister(
				collectors.NewGoCollector(),
				collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
			)
			coordinator, closeStore, err := openCoordinator(ctx, cfg, platform.Config{
				Metrics: metrics.New(registry),
				Logger:  logger,
			})
			if err != nil {
				return err
			}
			defer closeStore()

			srv := server.New(server.Options{
				Coordinator:      coordinator,
				Defaults:         cfg.Engine.Evo(),
				Selector:         cfg.Engine.Selector,
				CORSOrigins:      cfg.Server.CORSOrigins,
				RunRatePerSecond: cfg.Server.RunRatePerSecond,
				RunBurst:         cfg.Server.RunBurst,
				Metrics:          promhttp.HandlerFor(registry, promhttp.HandlerOpts{Registry: registry}),
				Logger:           logger,
			})

			supervisor := platform.NewSupervisor(platform.SupervisorPolicy{MaxRestarts: 10}, logger)
			defer supervisor.StopAll()

			if cfg.Dataset.CoveragePath != "" {
				opts := datasetOptions(cfg.Dataset)
				instance, err := dataset.Load(opts)
				if err != nil {
					return err
				}
				srv.SetInstance(instance)
				logger.Info("dataset loaded", "clients", instance.Clients(), "facilities", instance.Facilities())

				if cfg.Dataset.Watch {
					onReload := func(instance *problem.Instance) {
						srv.SetInstance(instance)
						logger.Info("dataset reloaded", "clients", instance.Clients(), "facilities", instance.Facilities())
					}
					if err := supervisor.Go("dataset-watcher", platform.RestartOnFailure, func(ctx context.Context) error {
						return dataset.Watch(ctx, opts, dataset.DefaultDebounce, logger, onReload)
					}); err != nil {
						return err
					}
				}
			} else {
				logger.Warn("serving without a dataset; /run answers 503 until one is configured")
			}

			listener, err := net.Listen("tcp", cfg.Server.Addr)
			if err != nil {
				return err
			}
			httpServer := &http.Server{
				Handler:           srv.Handler(),
				ReadHeaderTimeout: 10 * time.Second,
			}
			serveErr := make(chan error, 1)
			go func() {
				serveErr <- httpServer.Serve(listener)
			}()
			logger.Info("server listening", "addr", listener.Addr().String(), "store", cfg.Store.Kind)

			select {
			case err := <-serveErr:
				if !errors.Is(err, http.ErrServerClosed) {
					return err
				}
				return nil
			case <-ctx.Done():
			}

			logger.Info("shutting down")
			coordinator.StopAll()
			shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
			defer cancel()
			return httpServer.Shutdown(shutdownCtx)
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "listen address (default from config, :5000)")
	cmd.Flags().BoolVar(&watch, "watch", false, "reload the dataset when its files change")
	data.register(cmd)
	return cmd
}
