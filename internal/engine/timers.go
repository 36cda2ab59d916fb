package engine

import (
	"context"
	"time"

	"github.com/existflow/clientpulse/internal/apperr"
	"github.com/existflow/clientpulse/internal/logger"
	"github.com/existflow/clientpulse/internal/model"
	"github.com/existflow/clientpulse/internal/store"
)

// StartTimerInput describes a new running timer
type StartTimerInput struct {
	OwnerID     string
	ClientID    *string
	TaskID      *string
	Billable    bool
	Description string
}

// StopTimerInput identifies the timer to stop. A non-nil DurationOverride
// replaces the measured duration verbatim
type StopTimerInput struct {
	TimerID          string
	OwnerID          string
	DurationOverride *int64
}

// StartTimer creates a running timer and bumps the client's lastActivity
func (e *Engine) StartTimer(ctx context.Context, in StartTimerInput) (*model.Timer, error) {
	if err := requireOwner(in.OwnerID); err != nil {
		return nil, err
	}
	clientID := optionalID(in.ClientID)
	taskID := optionalID(in.TaskID)
	if in.Billable && clientID == nil {
		return nil, apperr.Invalid("client_id", "required for billable timers")
	}

	now := e.now()
	t := &model.Timer{
		ID:          e.newID(),
		OwnerID:     in.OwnerID,
		ClientID:    clientID,
		TaskID:      taskID,
		Billable:    in.Billable,
		Description: in.Description,
		StartedAt:   now,
		CreatedAt:   now,
	}

	err := e.coord.Run(ctx, "timer.start", func(ctx context.Context, tx store.Tx) error {
		if clientID != nil {
			if _, err := tx.Clients().Get(ctx, *clientID, in.OwnerID); err != nil {
				return err
			}
		}
		if taskID != nil {
			task, err := tx.Tasks().Get(ctx, *taskID, in.OwnerID)
			if err != nil {
				return err
			}
			if clientID != nil && task.ClientID != *clientID {
				return apperr.Invalid("task_id", "task belongs to another client")
			}
		}
		if err := tx.Timers().Create(ctx, t); err != nil {
			return err
		}
		if clientID != nil {
			return e.counters.Apply(ctx, tx, in.OwnerID, *clientID, model.Touch(now))
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	e.log.Info("timer started", logger.F("timer_id", t.ID), logger.F("owner_id", t.OwnerID))
	return t, nil
}

// StopTimer ends a running timer and propagates its duration into the
// client's profitability record and the task's accumulated minutes, all in
// one unit of work. Only one of several concurrent stops can succeed; the
// others fail with NotFound
func (e *Engine) StopTimer(ctx context.Context, in StopTimerInput) (*model.Timer, error) {
	if err := requireOwner(in.OwnerID); err != nil {
		return nil, err
	}
	if err := required("timer_id", in.TimerID); err != nil {
		return nil, err
	}
	if in.DurationOverride != nil && *in.DurationOverride < 0 {
		return nil, apperr.Invalid("duration", "must not be negative")
	}

	var stopped *model.Timer
	err := e.coord.Run(ctx, "timer.stop", func(ctx context.Context, tx store.Tx) error {
		t, err := tx.Timers().GetRunning(ctx, in.TimerID, in.OwnerID)
		if err != nil {
			return err
		}

		end := e.now()
		duration := model.ElapsedSeconds(t.StartedAt, end)
		if in.DurationOverride != nil {
			duration = *in.DurationOverride
		}
		if duration < 0 {
			duration = 0
		}

		if err := tx.Timers().MarkStopped(ctx, t.ID, in.OwnerID, end, duration); err != nil {
			return err
		}
		t.EndedAt = &end
		t.Duration = &duration

		if err := e.propagate(ctx, tx, t, duration, model.SecondsToMinutes(duration), end); err != nil {
			return err
		}
		stopped = t
		return nil
	})
	if err != nil {
		return nil, err
	}

	e.rec.TimerStopped(ctx, stopped.Billable, *stopped.Duration)
	e.log.Info("timer stopped",
		logger.F("timer_id", stopped.ID),
		logger.F("owner_id", stopped.OwnerID),
		logger.F("duration", *stopped.Duration),
	)
	return stopped, nil
}

// CorrectTimerDuration overwrites the duration of a stopped timer and
// propagates the difference to profitability and task minutes
func (e *Engine) CorrectTimerDuration(ctx context.Context, timerID, ownerID string, seconds int64) (*model.Timer, error) {
	if err := requireOwner(ownerID); err != nil {
		return nil, err
	}
	if err := required("timer_id", timerID); err != nil {
		return nil, err
	}
	if seconds < 0 {
		return nil, apperr.Invalid("duration", "must not be negative")
	}

	var corrected *model.Timer
	err := e.coord.Run(ctx, "timer.correct", func(ctx context.Context, tx store.Tx) error {
		t, err := tx.Timers().Get(ctx, timerID, ownerID)
		if err != nil {
			return err
		}
		if t.IsRunning() {
			return apperr.Invalid("timer_id", "timer is still running")
		}

		var prev int64
		if t.Duration != nil {
			prev = *t.Duration
		}
		if err := tx.Timers().SetDuration(ctx, t.ID, ownerID, seconds); err != nil {
			return err
		}
		t.Duration = &seconds

		minutes := model.SecondsToMinutes(seconds) - model.SecondsToMinutes(prev)
		if err := e.propagate(ctx, tx, t, seconds-prev, minutes, e.now()); err != nil {
			return err
		}
		corrected = t
		return nil
	})
	if err != nil {
		return nil, err
	}

	e.log.Info("timer duration corrected", logger.F("timer_id", timerID), logger.F("duration", seconds))
	return corrected, nil
}

// propagate pushes tracked seconds into profitability, task minutes into
// the task and bumps the client's lastActivity. The client or task may have
// been deleted while the timer ran; that is not an error
func (e *Engine) propagate(ctx context.Context, tx store.Tx, t *model.Timer, seconds, minutes int64, at time.Time) error {
	if t.ClientID != nil && t.Billable && seconds != 0 {
		rec, err := tx.Profitability().Get(ctx, t.OwnerID, *t.ClientID)
		switch {
		case apperr.IsNotFound(err):
			// profitability tracking is optional per client
		case err != nil:
			return err
		default:
			updated := rec.AddHours(model.SecondsToHours(seconds), at)
			if err := tx.Profitability().Update(ctx, &updated); err != nil {
				return err
			}
		}
	}

	if t.TaskID != nil && minutes != 0 {
		err := tx.Tasks().AddMinutes(ctx, *t.TaskID, t.OwnerID, minutes, at)
		if err != nil && !apperr.IsNotFound(err) {
			return err
		}
	}

	if t.ClientID != nil {
		return e.counters.ApplyIfPresent(ctx, tx, t.OwnerID, *t.ClientID, model.Touch(at))
	}
	return nil
}

// GetTimer returns one of the owner's timers
func (e *Engine) GetTimer(ctx context.Context, id, ownerID string) (*model.Timer, error) {
	if err := requireOwner(ownerID); err != nil {
		return nil, err
	}
	return e.store.Reader().Timers().Get(ctx, id, ownerID)
}

// ListTimers returns the owner's timers, newest first
func (e *Engine) ListTimers(ctx context.Context, ownerID string, opts store.ListTimersOptions) ([]*model.Timer, error) {
	if err := requireOwner(ownerID); err != nil {
		return nil, err
	}
	return e.store.Reader().Timers().List(ctx, ownerID, opts)
}
