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

// ObjectiveInput is the payload for a new objective
type ObjectiveInput struct {
	ClientID     string
	Title        string
	Description  string
	TargetValue  float64
	CurrentValue float64
	Unit         string
	Category     string
	DueDate      *time.Time
}

// ObjectivePatch lists the fields an update changes; nil means unchanged
type ObjectivePatch struct {
	ClientID     *string
	Title        *string
	Description  *string
	TargetValue  *float64
	CurrentValue *float64
	Unit         *string
	Category     *string
	DueDate      *time.Time
	IsCompleted  *bool
}

func (in ObjectiveInput) validate() error {
	if err := required("title", in.Title); err != nil {
		return err
	}
	if err := required("client_id", in.ClientID); err != nil {
		return err
	}
	if in.TargetValue < 0 {
		return apperr.Invalid("target_value", "must not be negative")
	}
	return nil
}

func (p ObjectivePatch) validate() error {
	if p.Title != nil && strings.TrimSpace(*p.Title) == "" {
		return apperr.Invalid("title", "must not be empty")
	}
	if p.ClientID != nil && strings.TrimSpace(*p.ClientID) == "" {
		return apperr.Invalid("client_id", "must not be empty")
	}
	if p.TargetValue != nil && *p.TargetValue < 0 {
		return apperr.Invalid("target_value", "must not be negative")
	}
	return nil
}

// CreateObjective inserts a pending objective and counts it on its client
func (e *Engine) CreateObjective(ctx context.Context, in ObjectiveInput, ownerID string) (*model.Objective, error) {
	if err := requireOwner(ownerID); err != nil {
		return nil, err
	}
	if err := in.validate(); err != nil {
		return nil, err
	}

	now := e.now()
	o := &model.Objective{
		ID:           e.newID(),
		OwnerID:      ownerID,
		ClientID:     strings.TrimSpace(in.ClientID),
		Title:        strings.TrimSpace(in.Title),
		Description:  in.Description,
		TargetValue:  in.TargetValue,
		CurrentValue: in.CurrentValue,
		Unit:         in.Unit,
		Category:     in.Category,
		DueDate:      in.DueDate,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	o.Refresh()

	err := e.coord.Run(ctx, "objective.create", func(ctx context.Context, tx store.Tx) error {
		if _, err := tx.Clients().Get(ctx, o.ClientID, ownerID); err != nil {
			return err
		}
		if err := tx.Objectives().Create(ctx, o); err != nil {
			return err
		}
		return e.counters.Apply(ctx, tx, ownerID, o.ClientID, model.ObjectiveAdded(false).Plus(model.Touch(now)))
	})
	if err != nil {
		return nil, err
	}

	e.log.Debug("objective created", logger.F("objective_id", o.ID), logger.F("client_id", o.ClientID))
	return o, nil
}

// UpdateObjective applies patch and moves the objective between counter
// buckets. A re-parent moves it from the old client to the new one; a
// completion change moves it between completed and pending. Changing both
// in one call is rejected before anything is written
func (e *Engine) UpdateObjective(ctx context.Context, id string, patch ObjectivePatch, ownerID string) (*model.Objective, error) {
	if err := requireOwner(ownerID); err != nil {
		return nil, err
	}
	if err := required("id", id); err != nil {
		return nil, err
	}
	if err := patch.validate(); err != nil {
		return nil, err
	}

	var updated *model.Objective
	err := e.coord.Run(ctx, "objective.update", func(ctx context.Context, tx store.Tx) error {
		o, err := tx.Objectives().Get(ctx, id, ownerID)
		if err != nil {
			return err
		}

		prevClient, prevCompleted := o.ClientID, o.IsCompleted
		clientChanged := patch.ClientID != nil && strings.TrimSpace(*patch.ClientID) != prevClient
		completionChanged := patch.IsCompleted != nil && *patch.IsCompleted != prevCompleted
		if clientChanged && completionChanged {
			return apperr.Invalid("is_completed", "cannot change client and completion in one update")
		}

		now := e.now()
		patch.applyTo(o, now)

		if clientChanged {
			if _, err := tx.Clients().Get(ctx, o.ClientID, ownerID); err != nil {
				return err
			}
		}
		if err := tx.Objectives().Update(ctx, o); err != nil {
			return err
		}

		touch := model.Touch(now)
		switch {
		case clientChanged:
			if err := e.counters.ApplyIfPresent(ctx, tx, ownerID, prevClient, model.ObjectiveRemoved(prevCompleted).Plus(touch)); err != nil {
				return err
			}
			err = e.counters.Apply(ctx, tx, ownerID, o.ClientID, model.ObjectiveAdded(o.IsCompleted).Plus(touch))
		case completionChanged:
			err = e.counters.Apply(ctx, tx, ownerID, o.ClientID, model.ObjectiveCompletionChanged(o.IsCompleted).Plus(touch))
		default:
			err = e.counters.ApplyIfPresent(ctx, tx, ownerID, o.ClientID, touch)
		}
		if err != nil {
			return err
		}

		updated = o
		return nil
	})
	if err != nil {
		return nil, err
	}

	e.log.Debug("objective updated", logger.F("objective_id", id))
	return updated, nil
}

func (p ObjectivePatch) applyTo(o *model.Objective, now time.Time) {
	if p.ClientID != nil {
		o.ClientID = strings.TrimSpace(*p.ClientID)
	}
	if p.Title != nil {
		o.Title = strings.TrimSpace(*p.Title)
	}
	if p.Description != nil {
		o.Description = *p.Description
	}
	if p.TargetValue != nil {
		o.TargetValue = *p.TargetValue
	}
	if p.CurrentValue != nil {
		o.CurrentValue = *p.CurrentValue
	}
	if p.Unit != nil {
		o.Unit = *p.Unit
	}
	if p.Category != nil {
		o.Category = *p.Category
	}
	if p.DueDate != nil {
		o.DueDate = p.DueDate
	}

	completed := o.IsCompleted
	if p.IsCompleted != nil {
		completed = *p.IsCompleted
	}
	o.SetCompleted(completed, now)
	o.Refresh()
	o.UpdatedAt = now
}

// DeleteObjective removes an objective and uncounts it from its client
func (e *Engine) DeleteObjective(ctx context.Context, id, ownerID string) error {
	if err := requireOwner(ownerID); err != nil {
		return err
	}
	if err := required("id", id); err != nil {
		return err
	}

	err := e.coord.Run(ctx, "objective.delete", func(ctx context.Context, tx store.Tx) error {
		o, err := tx.Objectives().Get(ctx, id, ownerID)
		if err != nil {
			return err
		}
		if err := tx.Objectives().Delete(ctx, id, ownerID); err != nil {
			return err
		}
		delta := model.ObjectiveRemoved(o.IsCompleted).Plus(model.Touch(e.now()))
		return e.counters.ApplyIfPresent(ctx, tx, ownerID, o.ClientID, delta)
	})
	if err != nil {
		return err
	}

	e.log.Debug("objective deleted", logger.F("objective_id", id))
	return nil
}

// GetObjective returns one of the owner's objectives
func (e *Engine) GetObjective(ctx context.Context, id, ownerID string) (*model.Objective, error) {
	if err := requireOwner(ownerID); err != nil {
		return nil, err
	}
	return e.store.Reader().Objectives().Get(ctx, id, ownerID)
}

// ListObjectives returns the owner's objectives, optionally for one client
func (e *Engine) ListObjectives(ctx context.Context, ownerID string, clientID *string) ([]*model.Objective, error) {
	if err := requireOwner(ownerID); err != nil {
		return nil, err
	}
	return e.store.Reader().Objectives().List(ctx, ownerID, optionalID(clientID))
}
