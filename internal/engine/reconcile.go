package engine

import (
	"context"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/existflow/clientpulse/internal/apperr"
	"github.com/existflow/clientpulse/internal/logger"
	"github.com/existflow/clientpulse/internal/model"
	"github.com/existflow/clientpulse/internal/store"
)

// ReconcileReport summarises one reconciliation pass
type ReconcileReport struct {
	Checked  int           `json:"checked"`
	Repaired int           `json:"repaired"`
	Failed   int           `json:"failed"`
	Elapsed  time.Duration `json:"elapsed"`
}

// countSources derives a client's counters from its objectives and tasks
func countSources(ctx context.Context, tx store.Tx, ownerID, clientID string) (model.ClientCounters, error) {
	objectives, err := tx.Objectives().CountByClient(ctx, ownerID, clientID)
	if err != nil {
		return model.ClientCounters{}, err
	}
	tasks, err := tx.Tasks().CountByClient(ctx, ownerID, clientID)
	if err != nil {
		return model.ClientCounters{}, err
	}
	return model.ClientCounters{
		ObjectivesCount:     objectives.Total,
		ObjectivesCompleted: objectives.Completed,
		ObjectivesPending:   objectives.Total - objectives.Completed,
		TasksCompleted:      tasks.Completed,
		TasksInProgress:     tasks.InProgress,
		TasksPending:        tasks.Pending,
	}, nil
}

// ReconcileClient recomputes one client's counters inside a unit of work
// and rewrites them only when they differ. It reports whether it wrote
func (e *Engine) ReconcileClient(ctx context.Context, clientID, ownerID string) (bool, error) {
	repaired := false
	err := e.coord.Run(ctx, "counters.reconcile", func(ctx context.Context, tx store.Tx) error {
		repaired = false
		c, err := tx.Clients().Get(ctx, clientID, ownerID)
		if err != nil {
			return err
		}
		want, err := countSources(ctx, tx, ownerID, clientID)
		if err != nil {
			return err
		}
		if want == c.Counters {
			return nil
		}
		if err := tx.Clients().SetCounters(ctx, clientID, ownerID, want); err != nil {
			return err
		}
		e.log.Info("client counters repaired",
			logger.F("client_id", clientID),
			logger.F("was", c.Counters),
			logger.F("now", want),
		)
		repaired = true
		return nil
	})
	return repaired, err
}

// ReconcileOnce reconciles every client of every owner with bounded
// parallelism. Clients deleted mid-pass are skipped; other per-client
// failures are counted and logged without stopping the pass
func (e *Engine) ReconcileOnce(ctx context.Context) (ReconcileReport, error) {
	started := time.Now()
	clients, err := e.store.Reader().Clients().ListAll(ctx)
	if err != nil {
		return ReconcileReport{}, err
	}

	var (
		mu     sync.Mutex
		report ReconcileReport
	)
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.reconcileLimit)
	for _, c := range clients {
		c := c
		g.Go(func() error {
			repaired, err := e.ReconcileClient(gctx, c.ID, c.OwnerID)

			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				report.Checked++
				if repaired {
					report.Repaired++
				}
			case apperr.IsNotFound(err):
			case gctx.Err() != nil:
				return gctx.Err()
			default:
				report.Checked++
				report.Failed++
				e.log.Warn("reconcile failed", logger.F("client_id", c.ID), logger.Err(err))
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return report, err
	}

	report.Elapsed = time.Since(started)
	e.rec.CountersRepaired(ctx, report.Repaired)
	e.log.Info("reconcile pass finished",
		logger.F("checked", report.Checked),
		logger.F("repaired", report.Repaired),
		logger.F("failed", report.Failed),
	)
	return report, nil
}

// Reconciler runs ReconcileOnce on an interval and shortly after Trigger
type Reconciler struct {
	engine   *Engine
	interval time.Duration
	debounce time.Duration

	mu      sync.Mutex
	pending bool
	kick    chan struct{}
}

// NewReconciler creates a Reconciler; call Run to start it
func NewReconciler(e *Engine, interval time.Duration) *Reconciler {
	return &Reconciler{
		engine:   e,
		interval: interval,
		debounce: 5 * time.Second,
		kick:     make(chan struct{}, 1),
	}
}

// Trigger schedules an extra pass after the debounce period. Calls made
// while one is already scheduled are folded into it
func (r *Reconciler) Trigger() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.pending {
		return
	}
	r.pending = true
	select {
	case r.kick <- struct{}{}:
	default:
	}
}

// Run blocks until ctx is done
func (r *Reconciler) Run(ctx context.Context) error {
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	var debounce <-chan time.Time
	for {
		select {
		case <-ticker.C:
			r.pass(ctx)
		case <-r.kick:
			debounce = time.After(r.debounce)
		case <-debounce:
			debounce = nil
			r.mu.Lock()
			r.pending = false
			r.mu.Unlock()
			r.pass(ctx)
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

func (r *Reconciler) pass(ctx context.Context) {
	if _, err := r.engine.ReconcileOnce(ctx); err != nil && ctx.Err() == nil {
		r.engine.log.Error("reconcile pass failed", logger.Err(err))
	}
}
