package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/sungwon/mailjobs/internal/bootstrap"
	"github.com/sungwon/mailjobs/internal/config"
	"github.com/sungwon/mailjobs/internal/logger"
)

func main() {
	configPath := flag.String("config", "config", "directory containing config.yaml")
	metricsAddr := flag.String("metrics-addr", ":9091", "address for the /metrics endpoint")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	log := logger.NewFromConfig(cfg.Logging)
	log.Info().Msg("starting queue worker")

	if err := run(cfg, *metricsAddr, log); err != nil {
		log.Error().Err(err).Msg("queue worker exited with error")
		os.Exit(1)
	}
	log.Info().Msg("queue worker stopped")
}

func run(cfg *config.Config, metricsAddr string, log zerolog.Logger) error {
	// A standalone worker never sees jobs held in another process's memory.
	if !cfg.SharedBackends() {
		return fmt.Errorf("queue worker needs shared backends, got queue.type=%s store.type=%s",
			cfg.Queue.Type, cfg.Store.Type)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	app, err := bootstrap.Open(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer func() {
		if err := app.Close(); err != nil {
			log.Error().Err(err).Msg("failed to close components")
		}
	}()

	pool := app.NewPool()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return app.Health.Run(gctx) })
	g.Go(func() error { return app.RunRetention(gctx) })
	g.Go(func() error { return app.RunQueueMonitor(gctx) })
	g.Go(func() error { return pool.Run(gctx) })

	if cfg.Metrics.Enabled {
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.Handler())
		srv := &http.Server{Addr: metricsAddr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}

		g.Go(func() error {
			log.Info().Str("addr", metricsAddr).Msg("metrics listening")
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return fmt.Errorf("metrics server: %w", err)
			}
			return nil
		})
		g.Go(func() error {
			<-gctx.Done()
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		})
	}

	log.Info().
		Int("workers", cfg.Worker.Count).
		Str("queue", cfg.Queue.Type).
		Str("store", cfg.Store.Type).
		Msg("queue worker pool started")

	return g.Wait()
}
