// Package app wires configuration, store, engine and HTTP server together
// for the clientpulse binaries
package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/existflow/clientpulse/internal/config"
	"github.com/existflow/clientpulse/internal/engine"
	"github.com/existflow/clientpulse/internal/logger"
	"github.com/existflow/clientpulse/internal/store"
	"github.com/existflow/clientpulse/internal/store/mongostore"
	"github.com/existflow/clientpulse/internal/store/sqlstore"
	"github.com/existflow/clientpulse/internal/telemetry"
	"github.com/existflow/clientpulse/internal/txn"
	"github.com/existflow/clientpulse/server"
)

// Version is stamped at build time
var Version = "dev"

const shutdownTimeout = 10 * time.Second

// App holds the long-lived components of a running process
type App struct {
	Config   *config.Config
	Store    store.Store
	Engine   *engine.Engine
	Recorder telemetry.Recorder
	Log      *logger.Logger
}

// OpenStore connects to the database selected by cfg
func OpenStore(ctx context.Context, cfg config.StoreConfig) (store.Store, error) {
	switch cfg.Driver {
	case "mongodb":
		return mongostore.Open(ctx, cfg.DSN, cfg.Database)
	case "postgres", "sqlite", "libsql":
		return sqlstore.Open(cfg.Driver, cfg.DSN)
	default:
		return nil, fmt.Errorf("unsupported store driver %q", cfg.Driver)
	}
}

// Open builds the store, telemetry, coordinator and engine from cfg.
// The caller owns the returned App and must Close it
func Open(ctx context.Context, cfg *config.Config, log *logger.Logger) (*App, error) {
	if log == nil {
		log = logger.Nop()
	}

	s, err := OpenStore(ctx, cfg.Store)
	if err != nil {
		return nil, fmt.Errorf("failed to open store: %w", err)
	}

	rec, err := telemetry.New(ctx, cfg.Telemetry, Version)
	if err != nil {
		_ = s.Close()
		return nil, fmt.Errorf("failed to start telemetry: %w", err)
	}

	coord := txn.New(s,
		txn.WithPolicy(cfg.RetryPolicy()),
		txn.WithLogger(log),
		txn.WithRecorder(rec),
	)
	eng := engine.New(coord,
		engine.WithLogger(log),
		engine.WithRecorder(rec),
		engine.WithReconcileConcurrency(cfg.Reconcile.Concurrency),
	)

	log.Debug("store opened", logger.F("driver", cfg.Store.Driver))
	return &App{Config: cfg, Store: s, Engine: eng, Recorder: rec, Log: log}, nil
}

// Migrate prepares the store schema
func (a *App) Migrate(ctx context.Context) error {
	if err := a.Store.Migrate(ctx); err != nil {
		return fmt.Errorf("failed to migrate store: %w", err)
	}
	return nil
}

// Serve runs the HTTP server, and the reconciler when enabled, until ctx
// is cancelled or one of them fails
func (a *App) Serve(ctx context.Context) error {
	if err := a.Migrate(ctx); err != nil {
		return err
	}

	cfg := a.Config
	srv := server.New(a.Engine,
		server.WithLogger(a.Log),
		server.WithSessionTTL(cfg.Server.SessionTTL),
		server.WithCORSOrigins(cfg.Server.CORSOrigins),
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		if err := srv.Start(cfg.Server.Addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server failed: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		sctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		a.Log.Info("server shutting down")
		return srv.Shutdown(sctx)
	})

	if cfg.Reconcile.Enabled {
		r := engine.NewReconciler(a.Engine, cfg.Reconcile.Interval)
		a.Engine.OnClientDelete(r.Trigger)
		g.Go(func() error {
			if err := r.Run(gctx); err != nil && !errors.Is(err, context.Canceled) {
				return err
			}
			return nil
		})
		a.Log.Info("reconciler started", logger.F("interval", cfg.Reconcile.Interval.String()))
	}

	return g.Wait()
}

// Close flushes telemetry and closes the store
func (a *App) Close(ctx context.Context) error {
	var errs []error
	if err := a.Recorder.Close(ctx); err != nil {
		errs = append(errs, fmt.Errorf("failed to close telemetry: %w", err))
	}
	if err := a.Store.Close(); err != nil {
		errs = append(errs, fmt.Errorf("failed to close store: %w", err))
	}
	return errors.Join(errs...)
}
