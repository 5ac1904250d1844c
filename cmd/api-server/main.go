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

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/sungwon/mailjobs/internal/api"
	"github.com/sungwon/mailjobs/internal/bootstrap"
	"github.com/sungwon/mailjobs/internal/config"
	"github.com/sungwon/mailjobs/internal/logger"
)

func main() {
	configPath := flag.String("config", "config", "directory containing config.yaml")
	flag.Parse()

	// Load configuration
	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	// Initialize logger
	log := logger.NewFromConfig(cfg.Logging)
	log.Info().Msg("starting API server")

	if err := run(cfg, log); err != nil {
		log.Error().Err(err).Msg("API server exited with error")
		os.Exit(1)
	}
	log.Info().Msg("server stopped")
}

func run(cfg *config.Config, log zerolog.Logger) error {
	if !cfg.Worker.Embedded && !cfg.SharedBackends() {
		return errors.New("memory queue or store requires worker.embedded: true")
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

	router := api.NewRouter(api.RouterConfig{
		Jobs:      app.Dispatcher,
		Store:     app.Store,
		Transport: app.Health,
		Metrics:   cfg.Metrics.Enabled,
	}, log)

	// Configure HTTP server
	addr := cfg.API.Addr()
	srv := &http.Server{
		Addr:         addr,
		Handler:      router,
		ReadTimeout:  cfg.API.ReadTimeout,
		WriteTimeout: cfg.API.WriteTimeout,
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error { return app.Health.Run(gctx) })
	g.Go(func() error { return app.RunRetention(gctx) })
	g.Go(func() error { return app.RunQueueMonitor(gctx) })

	if cfg.Worker.Embedded {
		pool := app.NewPool()
		g.Go(func() error { return pool.Run(gctx) })
	}

	g.Go(func() error {
		log.Info().Str("addr", addr).Msg("API server listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		log.Info().Msg("shutting down server")

		// Graceful shutdown with 30-second timeout
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("server forced to shutdown: %w", err)
		}
		return nil
	})

	return g.Wait()
}
