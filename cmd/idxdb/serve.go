package main

import (
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/adfharrison1/idxdb/pkg/metrics"
	"github.com/adfharrison1/idxdb/pkg/server"
	"github.com/adfharrison1/idxdb/pkg/storage"
	"github.com/adfharrison1/idxdb/pkg/ttl"
)

func serveCmd(flags *rootFlags) *cobra.Command {
	var port int
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "serve the HTTP API",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, log, err := flags.load()
			if err != nil {
				return err
			}
			defer func() { _ = log.Sync() }()
			if port > 0 {
				cfg.Server.Port = port
			}

			var m *metrics.Metrics
			if cfg.Metrics.Enabled {
				m = metrics.New(prometheus.DefaultRegisterer)
			}

			engine := storage.NewStorageEngine(
				storage.WithLogger(log),
				storage.WithMetrics(m),
				storage.WithBuildBatchSize(cfg.Storage.BuildBatchSize),
				storage.WithSnapshot(cfg.Storage.DataFile, cfg.Storage.SnapshotInterval),
			)
			srv := server.NewServer(cfg, engine, server.WithLogger(log), server.WithMetrics(m))

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			if cfg.Storage.DataFile != "" {
				if err := srv.InitDB(ctx, cfg.Storage.DataFile); err != nil {
					return err
				}
				engine.StartBackgroundWorkers()
			} else {
				log.Warn("no data file configured, data is kept in memory only")
			}

			g, gctx := errgroup.WithContext(ctx)
			g.Go(func() error { return srv.Run(gctx) })
			if cfg.Reaper.Enabled {
				reaper := ttl.New(engine,
					ttl.WithInterval(cfg.Reaper.Interval),
					ttl.WithLogger(log),
					ttl.WithMetrics(m),
				)
				g.Go(func() error { return reaper.Run(gctx) })
			}
			runErr := g.Wait()

			engine.StopBackgroundWorkers()
			if cfg.Storage.DataFile != "" {
				if err := srv.SaveDB(cfg.Storage.DataFile); err != nil {
					log.Error("final snapshot failed", zap.Error(err))
					if runErr == nil {
						runErr = err
					}
				}
			}
			log.Info("server exited")
			return runErr
		},
	}
	cmd.Flags().IntVarP(&port, "port", "p", 0, "HTTP port, overrides server.port")
	return cmd
}
