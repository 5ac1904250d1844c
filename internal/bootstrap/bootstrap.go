// Package bootstrap wires the configured backends into the components the
// binaries run: the dispatcher, the handler registry and the executor pool.
package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/sungwon/mailjobs/internal/attachment"
	"github.com/sungwon/mailjobs/internal/config"
	"github.com/sungwon/mailjobs/internal/dispatch"
	"github.com/sungwon/mailjobs/internal/executor"
	"github.com/sungwon/mailjobs/internal/handler"
	"github.com/sungwon/mailjobs/internal/queue"
	"github.com/sungwon/mailjobs/internal/render"
	"github.com/sungwon/mailjobs/internal/resultstore"
	"github.com/sungwon/mailjobs/internal/transport"
)

const (
	retentionInterval   = time.Hour
	queueSampleInterval = 15 * time.Second
)

// App holds every long-lived component built from a Config.
type App struct {
	Config     *config.Config
	Store      resultstore.Store
	Queue      queue.Queue
	Transport  transport.Transport
	Health     *transport.HealthChecker
	Registry   *handler.Registry
	Dispatcher *dispatch.Service

	log zerolog.Logger
}

// Open connects the store and queue and builds the transport, templates,
// attachment store and handlers. Whatever was opened is closed again if a
// later step fails.
func Open(ctx context.Context, cfg *config.Config, log zerolog.Logger) (*App, error) {
	app := &App{Config: cfg, log: log}

	store, err := resultstore.New(ctx, cfg.Store)
	if err != nil {
		return nil, fmt.Errorf("open result store: %w", err)
	}
	app.Store = store

	q, err := queue.New(ctx, cfg.Queue, log)
	if err != nil {
		app.Close()
		return nil, fmt.Errorf("open queue: %w", err)
	}
	app.Queue = q

	t, err := transport.New(ctx, cfg.Transport)
	if err != nil {
		app.Close()
		return nil, fmt.Errorf("create transport: %w", err)
	}
	app.Transport = t
	app.Health = transport.NewHealthChecker(t, cfg.Transport.HealthInterval)

	files, err := attachment.New(ctx, cfg.Attachments, log)
	if err != nil {
		app.Close()
		return nil, fmt.Errorf("create attachment store: %w", err)
	}

	deliverer := handler.NewDeliverer(t, render.NewDirRenderer(cfg.Templates.Dir), files, cfg.Transport.From)
	app.Registry = handler.NewRegistry(deliverer)
	app.Dispatcher = dispatch.NewService(store, q, log)

	log.Info().
		Str("queue", cfg.Queue.Type).
		Str("store", cfg.Store.Type).
		Str("transport", t.GetName()).
		Str("attachments", cfg.Attachments.Type).
		Msg("components initialized")

	return app, nil
}

// NewPool builds an executor pool over the app's queue, store and handlers.
func (a *App) NewPool() *executor.Pool {
	return executor.NewPool(a.Queue, a.Store, a.Registry, a.Config.Worker, a.log)
}

// RunRetention purges expired terminal jobs until ctx is done. Backends
// that expire records themselves make it return at once.
func (a *App) RunRetention(ctx context.Context) error {
	return resultstore.RunRetention(ctx, a.Store, a.Config.Store.ResultTTL, retentionInterval, a.log)
}

// RunQueueMonitor publishes the queue depth gauge until ctx is done.
func (a *App) RunQueueMonitor(ctx context.Context) error {
	return queue.RunDepthMonitor(ctx, a.Queue, queueSampleInterval, a.log)
}

// Close releases the queue and the store.
func (a *App) Close() error {
	var errs []error
	if a.Queue != nil {
		if err := a.Queue.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close queue: %w", err))
		}
	}
	if a.Store != nil {
		if err := a.Store.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close store: %w", err))
		}
	}
	return errors.Join(errs...)
}
