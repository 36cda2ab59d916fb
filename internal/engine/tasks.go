package engine

import (
	"context"
	"strings"

	"github.com/existflow/clientpulse/internal/apperr"
	"github.com/existflow/clientpulse/internal/logger"
	"github.com/existflow/clientpulse/internal/model"
	"github.com/existflow/clientpulse/internal/store"
)

// TaskInput is the payload for a new task
type TaskInput struct {
	ClientID string
	Title    string
	Status   string
}

// CreateTask inserts a task and counts it in its status bucket
func (e *Engine) CreateTask(ctx context.Context, in TaskInput, ownerID string) (*model.Task, error) {
	if err := requireOwner(ownerID); err != nil {
		return nil, err
	}
	if err := required("title", in.Title); err != nil {
		return nil, err
	}
	if err := required("client_id", in.ClientID); err != nil {
		return nil, err
	}
	status := in.Status
	if status == "" {
		status = model.TaskPending
	}
	if !model.ValidTaskStatus(status) {
		return nil, apperr.Invalid("status", "must be pending, in_progress or completed")
	}

	now := e.now()
	t := &model.Task{
		ID:        e.newID(),
		OwnerID:   ownerID,
		ClientID:  strings.TrimSpace(in.ClientID),
		Title:     strings.TrimSpace(in.Title),
		Status:    status,
		CreatedAt: now,
		UpdatedAt: now,
	}

	err := e.coord.Run(ctx, "task.create", func(ctx context.Context, tx store.Tx) error {
		if _, err := tx.Clients().Get(ctx, t.ClientID, ownerID); err != nil {
			return err
		}
		if err := tx.Tasks().Create(ctx, t); err != nil {
			return err
		}
		return e.counters.Apply(ctx, tx, ownerID, t.ClientID, model.TaskAdded(status).Plus(model.Touch(now)))
	})
	if err != nil {
		return nil, err
	}

	e.log.Debug("task created", logger.F("task_id", t.ID), logger.F("client_id", t.ClientID))
	return t, nil
}

// UpdateTaskStatus moves a task between status buckets
func (e *Engine) UpdateTaskStatus(ctx context.Context, id, status, ownerID string) (*model.Task, error) {
	if err := requireOwner(ownerID); err != nil {
		return nil, err
	}
	if !model.ValidTaskStatus(status) {
		return nil, apperr.Invalid("status", "must be pending, in_progress or completed")
	}

	var updated *model.Task
	err := e.coord.Run(ctx, "task.status", func(ctx context.Context, tx store.Tx) error {
		t, err := tx.Tasks().Get(ctx, id, ownerID)
		if err != nil {
			return err
		}
		if t.Status == status {
			updated = t
			return nil
		}

		now := e.now()
		from := t.Status
		if err := tx.Tasks().UpdateStatus(ctx, id, ownerID, status, now); err != nil {
			return err
		}
		t.Status = status
		t.UpdatedAt = now

		delta := model.TaskStatusMoved(from, status).Plus(model.Touch(now))
		if err := e.counters.ApplyIfPresent(ctx, tx, ownerID, t.ClientID, delta); err != nil {
			return err
		}
		updated = t
		return nil
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

// DeleteTask removes a task and uncounts it
func (e *Engine) DeleteTask(ctx context.Context, id, ownerID string) error {
	if err := requireOwner(ownerID); err != nil {
		return err
	}

	return e.coord.Run(ctx, "task.delete", func(ctx context.Context, tx store.Tx) error {
		t, err := tx.Tasks().Get(ctx, id, ownerID)
		if err != nil {
			return err
		}
		if err := tx.Tasks().Delete(ctx, id, ownerID); err != nil {
			return err
		}
		delta := model.TaskRemoved(t.Status).Plus(model.Touch(e.now()))
		return e.counters.ApplyIfPresent(ctx, tx, ownerID, t.ClientID, delta)
	})
}

// GetTask returns one of the owner's tasks
func (e *Engine) GetTask(ctx context.Context, id, ownerID string) (*model.Task, error) {
	if err := requireOwner(ownerID); err != nil {
		return nil, err
	}
	return e.store.Reader().Tasks().Get(ctx, id, ownerID)
}

// ListTasks returns the owner's tasks, optionally for one client
func (e *Engine) ListTasks(ctx context.Context, ownerID string, clientID *string) ([]*model.Task, error) {
	if err := requireOwner(ownerID); err != nil {
		return nil, err
	}
	return e.store.Reader().Tasks().List(ctx, ownerID, optionalID(clientID))
}
