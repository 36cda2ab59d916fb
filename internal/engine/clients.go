package engine

import (
	"context"
	"strings"
	"time"

	"github.com/existflow/clientpulse/internal/apperr"
	"github.com/existflow/clientpulse/internal/logger"
	"github.com/existflow/clientpulse/internal/model"
	"github.com/existflow/clientpulse/internal/store"
)

// ClientInput is the payload for a new client. A positive HourlyRate turns
// on profitability tracking with MonthlyBudget as revenue
type ClientInput struct {
	Name          string
	Status        string
	HourlyRate    float64
	MonthlyBudget float64
}

// ClientPatch lists the fields an update changes; nil means unchanged
type ClientPatch struct {
	Name          *string
	Status        *string
	HourlyRate    *float64
	MonthlyBudget *float64
}

func validateBilling(rate, budget *float64) error {
	if rate != nil && *rate < 0 {
		return apperr.Invalid("hourly_rate", "must not be negative")
	}
	if budget != nil && *budget < 0 {
		return apperr.Invalid("monthly_budget", "must not be negative")
	}
	return nil
}

// CreateClient inserts a client with zero counters and, when billed
// hourly, its profitability record
func (e *Engine) CreateClient(ctx context.Context, in ClientInput, ownerID string) (*model.Client, error) {
	if err := requireOwner(ownerID); err != nil {
		return nil, err
	}
	if err := required("name", in.Name); err != nil {
		return nil, err
	}
	status := in.Status
	if status == "" {
		status = model.ClientActive
	}
	if !model.ValidClientStatus(status) {
		return nil, apperr.Invalid("status", "must be active, paused or archived")
	}
	if err := validateBilling(&in.HourlyRate, &in.MonthlyBudget); err != nil {
		return nil, err
	}

	now := e.now()
	c := &model.Client{
		ID:        e.newID(),
		OwnerID:   ownerID,
		Name:      strings.TrimSpace(in.Name),
		Status:    status,
		CreatedAt: now,
		UpdatedAt: now,
	}

	err := e.coord.Run(ctx, "client.create", func(ctx context.Context, tx store.Tx) error {
		if err := tx.Clients().Create(ctx, c); err != nil {
			return err
		}
		if in.HourlyRate <= 0 {
			return nil
		}
		rec := model.NewProfitabilityRecord(e.newID(), ownerID, c.ID, in.HourlyRate, in.MonthlyBudget, now)
		return tx.Profitability().Create(ctx, &rec)
	})
	if err != nil {
		return nil, err
	}

	e.log.Info("client created", logger.F("client_id", c.ID), logger.F("owner_id", ownerID))
	return c, nil
}

// UpdateClient changes name and status and reprices profitability when the
// rate or budget changes. A client without a record gets one once it has a
// positive rate
func (e *Engine) UpdateClient(ctx context.Context, id string, patch ClientPatch, ownerID string) (*model.Client, error) {
	if err := requireOwner(ownerID); err != nil {
		return nil, err
	}
	if patch.Name != nil && strings.TrimSpace(*patch.Name) == "" {
		return nil, apperr.Invalid("name", "must not be empty")
	}
	if patch.Status != nil && !model.ValidClientStatus(*patch.Status) {
		return nil, apperr.Invalid("status", "must be active, paused or archived")
	}
	if err := validateBilling(patch.HourlyRate, patch.MonthlyBudget); err != nil {
		return nil, err
	}

	var updated *model.Client
	err := e.coord.Run(ctx, "client.update", func(ctx context.Context, tx store.Tx) error {
		c, err := tx.Clients().Get(ctx, id, ownerID)
		if err != nil {
			return err
		}

		now := e.now()
		if patch.Name != nil || patch.Status != nil {
			if patch.Name != nil {
				c.Name = strings.TrimSpace(*patch.Name)
			}
			if patch.Status != nil {
				c.Status = *patch.Status
			}
			c.UpdatedAt = now
			if err := tx.Clients().UpdateDetails(ctx, c); err != nil {
				return err
			}
		}

		if patch.HourlyRate != nil || patch.MonthlyBudget != nil {
			if err := e.reprice(ctx, tx, c, patch, now); err != nil {
				return err
			}
		}
		updated = c
		return nil
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

func (e *Engine) reprice(ctx context.Context, tx store.Tx, c *model.Client, patch ClientPatch, now time.Time) error {
	rec, err := tx.Profitability().Get(ctx, c.OwnerID, c.ID)
	switch {
	case apperr.IsNotFound(err):
		var rate, budget float64
		if patch.HourlyRate != nil {
			rate = *patch.HourlyRate
		}
		if patch.MonthlyBudget != nil {
			budget = *patch.MonthlyBudget
		}
		if rate <= 0 {
			return nil
		}
		created := model.NewProfitabilityRecord(e.newID(), c.OwnerID, c.ID, rate, budget, now)
		return tx.Profitability().Create(ctx, &created)
	case err != nil:
		return err
	}

	rate, budget := rec.HourlyRate, rec.Revenue
	if patch.HourlyRate != nil {
		rate = *patch.HourlyRate
	}
	if patch.MonthlyBudget != nil {
		budget = *patch.MonthlyBudget
	}
	repriced := rec.Reprice(rate, budget, now)
	return tx.Profitability().Update(ctx, &repriced)
}

// DeleteClient removes the client with its objectives, tasks and
// profitability record in one unit of work. Timers that reference the
// client are kept as history. The consistency verifier runs afterwards
func (e *Engine) DeleteClient(ctx context.Context, id, ownerID string) error {
	if err := requireOwner(ownerID); err != nil {
		return err
	}

	var objectives, tasks int64
	err := e.coord.Run(ctx, "client.delete", func(ctx context.Context, tx store.Tx) error {
		if _, err := tx.Clients().Get(ctx, id, ownerID); err != nil {
			return err
		}

		var err error
		if objectives, err = tx.Objectives().DeleteByClient(ctx, ownerID, id); err != nil {
			return err
		}
		if tasks, err = tx.Tasks().DeleteByClient(ctx, ownerID, id); err != nil {
			return err
		}
		if _, err = tx.Profitability().DeleteByClient(ctx, ownerID, id); err != nil {
			return err
		}
		return tx.Clients().Delete(ctx, id, ownerID)
	})
	if err != nil {
		return err
	}

	e.log.Info("client deleted",
		logger.F("client_id", id),
		logger.F("objectives", objectives),
		logger.F("tasks", tasks),
	)

	e.AfterClientDelete(ctx, ownerID, id)
	if e.onClientDelete != nil {
		e.onClientDelete()
	}
	return nil
}

// GetClient returns one of the owner's clients
func (e *Engine) GetClient(ctx context.Context, id, ownerID string) (*model.Client, error) {
	if err := requireOwner(ownerID); err != nil {
		return nil, err
	}
	return e.store.Reader().Clients().Get(ctx, id, ownerID)
}

// ListClients returns the owner's clients by name
func (e *Engine) ListClients(ctx context.Context, ownerID string) ([]*model.Client, error) {
	if err := requireOwner(ownerID); err != nil {
		return nil, err
	}
	return e.store.Reader().Clients().List(ctx, ownerID)
}

// GetProfitability returns the client's profitability record
func (e *Engine) GetProfitability(ctx context.Context, clientID, ownerID string) (*model.ProfitabilityRecord, error) {
	if err := requireOwner(ownerID); err != nil {
		return nil, err
	}
	if _, err := e.store.Reader().Clients().Get(ctx, clientID, ownerID); err != nil {
		return nil, err
	}
	return e.store.Reader().Profitability().Get(ctx, ownerID, clientID)
}
