package engine

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/existflow/clientpulse/internal/apperr"
	"github.com/existflow/clientpulse/internal/logger"
	"github.com/existflow/clientpulse/internal/model"
)

// Drift kinds reported by the verifier
const (
	DriftOrphanedTasks         = "orphaned_tasks"
	DriftOrphanedObjectives    = "orphaned_objectives"
	DriftOrphanedProfitability = "orphaned_profitability"
	DriftRunningBillableTimers = "running_billable_timers"
	DriftNegativeCounters      = "negative_counters"
	DriftUnbalancedObjectives  = "unbalanced_objectives"
	DriftObjectiveCount        = "objective_count_mismatch"
	DriftTaskCount             = "task_count_mismatch"
)

// warnings collects drift from concurrent checks
type warnings struct {
	mu   sync.Mutex
	list []apperr.DriftWarning
}

func (w *warnings) add(kind, ownerID, clientID, format string, args ...interface{}) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.list = append(w.list, apperr.DriftWarning{
		Kind:     kind,
		OwnerID:  ownerID,
		ClientID: clientID,
		Detail:   fmt.Sprintf(format, args...),
	})
}

func (w *warnings) sorted() []apperr.DriftWarning {
	sort.Slice(w.list, func(i, j int) bool {
		if w.list[i].ClientID != w.list[j].ClientID {
			return w.list[i].ClientID < w.list[j].ClientID
		}
		return w.list[i].Kind < w.list[j].Kind
	})
	return w.list
}

// AfterClientDelete is a best-effort read, outside any transaction, that
// looks for documents still pointing at a deleted client and for counters
// of the owner's remaining clients that went negative or out of balance.
// Findings are logged and counted, never repaired and never returned as
// errors
func (e *Engine) AfterClientDelete(ctx context.Context, ownerID, clientID string) []apperr.DriftWarning {
	r := e.store.Reader()
	w := &warnings{}

	var g errgroup.Group
	g.Go(func() error {
		counts, err := r.Tasks().CountByClient(ctx, ownerID, clientID)
		if err != nil {
			return fmt.Errorf("count tasks: %w", err)
		}
		if n := counts.Pending + counts.InProgress + counts.Completed; n > 0 {
			w.add(DriftOrphanedTasks, ownerID, clientID, "%d task(s) reference the deleted client", n)
		}
		return nil
	})
	g.Go(func() error {
		counts, err := r.Objectives().CountByClient(ctx, ownerID, clientID)
		if err != nil {
			return fmt.Errorf("count objectives: %w", err)
		}
		if counts.Total > 0 {
			w.add(DriftOrphanedObjectives, ownerID, clientID, "%d objective(s) reference the deleted client", counts.Total)
		}
		return nil
	})
	g.Go(func() error {
		_, err := r.Profitability().Get(ctx, ownerID, clientID)
		switch {
		case apperr.IsNotFound(err):
			return nil
		case err != nil:
			return fmt.Errorf("load profitability: %w", err)
		}
		w.add(DriftOrphanedProfitability, ownerID, clientID, "profitability record survived the delete")
		return nil
	})
	g.Go(func() error {
		n, err := r.Timers().CountRunningBillable(ctx, ownerID, clientID)
		if err != nil {
			return fmt.Errorf("count running timers: %w", err)
		}
		if n > 0 {
			w.add(DriftRunningBillableTimers, ownerID, clientID, "%d running billable timer(s) reference the deleted client", n)
		}
		return nil
	})
	g.Go(func() error {
		clients, err := r.Clients().List(ctx, ownerID)
		if err != nil {
			return fmt.Errorf("list clients: %w", err)
		}
		for _, c := range clients {
			checkCounters(w, c)
		}
		return nil
	})

	if err := g.Wait(); err != nil {
		e.log.Warn("consistency check incomplete",
			logger.F("owner_id", ownerID),
			logger.F("client_id", clientID),
			logger.Err(err),
		)
	}

	found := w.sorted()
	e.report(ctx, found)
	return found
}

// VerifyOwner recounts every client of the owner against its source rows
func (e *Engine) VerifyOwner(ctx context.Context, ownerID string) ([]apperr.DriftWarning, error) {
	if err := requireOwner(ownerID); err != nil {
		return nil, err
	}

	r := e.store.Reader()
	clients, err := r.Clients().List(ctx, ownerID)
	if err != nil {
		return nil, err
	}

	w := &warnings{}
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.reconcileLimit)
	for _, c := range clients {
		c := c
		g.Go(func() error {
			checkCounters(w, c)

			want, err := countSources(gctx, r, c.OwnerID, c.ID)
			if err != nil {
				return err
			}
			got := c.Counters
			if got.ObjectivesCount != want.ObjectivesCount || got.ObjectivesCompleted != want.ObjectivesCompleted {
				w.add(DriftObjectiveCount, c.OwnerID, c.ID,
					"counters say %d objective(s), %d completed; found %d, %d completed",
					got.ObjectivesCount, got.ObjectivesCompleted, want.ObjectivesCount, want.ObjectivesCompleted)
			}
			if got.TasksPending != want.TasksPending || got.TasksInProgress != want.TasksInProgress || got.TasksCompleted != want.TasksCompleted {
				w.add(DriftTaskCount, c.OwnerID, c.ID,
					"counters say %d/%d/%d pending/in progress/completed; found %d/%d/%d",
					got.TasksPending, got.TasksInProgress, got.TasksCompleted,
					want.TasksPending, want.TasksInProgress, want.TasksCompleted)
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	found := w.sorted()
	e.report(ctx, found)
	return found, nil
}

func checkCounters(w *warnings, c *model.Client) {
	if neg := c.Counters.Negative(); len(neg) > 0 {
		w.add(DriftNegativeCounters, c.OwnerID, c.ID, "negative counters: %v", neg)
	}
	if !c.Counters.Balanced() {
		w.add(DriftUnbalancedObjectives, c.OwnerID, c.ID, "objectives %d != completed %d + pending %d",
			c.Counters.ObjectivesCount, c.Counters.ObjectivesCompleted, c.Counters.ObjectivesPending)
	}
}

func (e *Engine) report(ctx context.Context, found []apperr.DriftWarning) {
	for _, d := range found {
		e.rec.DriftDetected(ctx, d.Kind)
		e.log.Warn("consistency drift",
			logger.F("kind", d.Kind),
			logger.F("owner_id", d.OwnerID),
			logger.F("client_id", d.ClientID),
			logger.F("detail", d.Detail),
		)
	}
}
