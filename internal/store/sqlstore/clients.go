package sqlstore

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/existflow/clientpulse/internal/model"
)

const clientColumns = `id, owner_id, name, status,
	objectives_count, objectives_completed, objectives_pending,
	tasks_completed, tasks_in_progress, tasks_pending,
	last_activity, created_at, updated_at`

type clientRepository struct {
	c conn
}

func (r *clientRepository) Create(ctx context.Context, cl *model.Client) error {
	k := cl.Counters
	_, err := r.c.exec(ctx, `
		INSERT INTO clients (`+clientColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		cl.ID, cl.OwnerID, cl.Name, cl.Status,
		k.ObjectivesCount, k.ObjectivesCompleted, k.ObjectivesPending,
		k.TasksCompleted, k.TasksInProgress, k.TasksPending,
		nullTime(cl.LastActivity), mustTime(cl.CreatedAt), mustTime(cl.UpdatedAt),
	)
	return wrapInsert(err, "client")
}

func (r *clientRepository) Get(ctx context.Context, id, ownerID string) (*model.Client, error) {
	row := r.c.queryRow(ctx, `
		SELECT `+clientColumns+` FROM clients
		WHERE id = ? AND owner_id = ?`,
		id, ownerID,
	)
	cl, err := scanClient(row)
	if err != nil {
		return nil, notFoundOr(err, "client", id)
	}
	return cl, nil
}

func (r *clientRepository) List(ctx context.Context, ownerID string) ([]*model.Client, error) {
	return r.list(ctx, `SELECT `+clientColumns+` FROM clients WHERE owner_id = ? ORDER BY name`, ownerID)
}

func (r *clientRepository) ListAll(ctx context.Context) ([]*model.Client, error) {
	return r.list(ctx, `SELECT `+clientColumns+` FROM clients ORDER BY owner_id, id`)
}

func (r *clientRepository) list(ctx context.Context, query string, args ...any) ([]*model.Client, error) {
	rows, err := r.c.query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list clients: %w", err)
	}
	defer rows.Close()

	var clients []*model.Client
	for rows.Next() {
		cl, err := scanClient(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan client: %w", err)
		}
		clients = append(clients, cl)
	}
	return clients, rows.Err()
}

func (r *clientRepository) UpdateDetails(ctx context.Context, cl *model.Client) error {
	res, err := r.c.exec(ctx, `
		UPDATE clients SET name = ?, status = ?, updated_at = ?
		WHERE id = ? AND owner_id = ?`,
		cl.Name, cl.Status, mustTime(cl.UpdatedAt), cl.ID, cl.OwnerID,
	)
	if err != nil {
		return fmt.Errorf("failed to update client: %w", err)
	}
	return checkRowsAffected(res, "client", cl.ID)
}

// ApplyDelta is a single UPDATE with relative increments so concurrent
// writers never lose each other's adjustments
func (r *clientRepository) ApplyDelta(ctx context.Context, id, ownerID string, d model.CounterDelta) error {
	touch := nullTime(d.Touch)
	res, err := r.c.exec(ctx, `
		UPDATE clients SET
			objectives_count = objectives_count + ?,
			objectives_completed = objectives_completed + ?,
			objectives_pending = objectives_pending + ?,
			tasks_completed = tasks_completed + ?,
			tasks_in_progress = tasks_in_progress + ?,
			tasks_pending = tasks_pending + ?,
			last_activity = COALESCE(?, last_activity),
			updated_at = COALESCE(?, updated_at)
		WHERE id = ? AND owner_id = ?`,
		d.ObjectivesCount, d.ObjectivesCompleted, d.ObjectivesPending,
		d.TasksCompleted, d.TasksInProgress, d.TasksPending,
		touch, touch, id, ownerID,
	)
	if err != nil {
		return fmt.Errorf("failed to apply counter delta: %w", err)
	}
	return checkRowsAffected(res, "client", id)
}

func (r *clientRepository) SetCounters(ctx context.Context, id, ownerID string, k model.ClientCounters) error {
	res, err := r.c.exec(ctx, `
		UPDATE clients SET
			objectives_count = ?, objectives_completed = ?, objectives_pending = ?,
			tasks_completed = ?, tasks_in_progress = ?, tasks_pending = ?
		WHERE id = ? AND owner_id = ?`,
		k.ObjectivesCount, k.ObjectivesCompleted, k.ObjectivesPending,
		k.TasksCompleted, k.TasksInProgress, k.TasksPending,
		id, ownerID,
	)
	if err != nil {
		return fmt.Errorf("failed to set counters: %w", err)
	}
	return checkRowsAffected(res, "client", id)
}

func (r *clientRepository) Delete(ctx context.Context, id, ownerID string) error {
	res, err := r.c.exec(ctx, `DELETE FROM clients WHERE id = ? AND owner_id = ?`, id, ownerID)
	if err != nil {
		return fmt.Errorf("failed to delete client: %w", err)
	}
	return checkRowsAffected(res, "client", id)
}

func scanClient(s scanner) (*model.Client, error) {
	var (
		cl               model.Client
		lastActivity     sql.NullString
		created, updated string
	)
	k := &cl.Counters
	if err := s.Scan(&cl.ID, &cl.OwnerID, &cl.Name, &cl.Status,
		&k.ObjectivesCount, &k.ObjectivesCompleted, &k.ObjectivesPending,
		&k.TasksCompleted, &k.TasksInProgress, &k.TasksPending,
		&lastActivity, &created, &updated); err != nil {
		return nil, err
	}

	var err error
	if cl.LastActivity, err = parseNullableTime(lastActivity); err != nil {
		return nil, err
	}
	if cl.CreatedAt, err = parseRequiredTime(created); err != nil {
		return nil, err
	}
	if cl.UpdatedAt, err = parseRequiredTime(updated); err != nil {
		return nil, err
	}
	return &cl, nil
}
