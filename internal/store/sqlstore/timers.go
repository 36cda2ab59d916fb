package sqlstore

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/existflow/clientpulse/internal/model"
	"github.com/existflow/clientpulse/internal/store"
)

const timerColumns = `id, owner_id, client_id, task_id, billable, description, started_at, ended_at, duration, created_at`

type timerRepository struct {
	c conn
}

func (r *timerRepository) Create(ctx context.Context, t *model.Timer) error {
	_, err := r.c.exec(ctx, `
		INSERT INTO timers (`+timerColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		t.ID, t.OwnerID, nullString(t.ClientID), nullString(t.TaskID), t.Billable, t.Description,
		mustTime(t.StartedAt), nullTime(t.EndedAt), nullInt(t.Duration), mustTime(t.CreatedAt),
	)
	return wrapInsert(err, "timer")
}

func (r *timerRepository) Get(ctx context.Context, id, ownerID string) (*model.Timer, error) {
	row := r.c.queryRow(ctx, `
		SELECT `+timerColumns+` FROM timers
		WHERE id = ? AND owner_id = ?`,
		id, ownerID,
	)
	t, err := scanTimer(row)
	if err != nil {
		return nil, notFoundOr(err, "timer", id)
	}
	return t, nil
}

func (r *timerRepository) GetRunning(ctx context.Context, id, ownerID string) (*model.Timer, error) {
	row := r.c.queryRow(ctx, `
		SELECT `+timerColumns+` FROM timers
		WHERE id = ? AND owner_id = ? AND ended_at IS NULL`,
		id, ownerID,
	)
	t, err := scanTimer(row)
	if err != nil {
		return nil, notFoundOr(err, "running timer", id)
	}
	return t, nil
}

func (r *timerRepository) MarkStopped(ctx context.Context, id, ownerID string, endedAt time.Time, duration int64) error {
	res, err := r.c.exec(ctx, `
		UPDATE timers SET ended_at = ?, duration = ?
		WHERE id = ? AND owner_id = ? AND ended_at IS NULL`,
		mustTime(endedAt), duration, id, ownerID,
	)
	if err != nil {
		return fmt.Errorf("failed to stop timer: %w", err)
	}
	return checkRowsAffected(res, "running timer", id)
}

func (r *timerRepository) SetDuration(ctx context.Context, id, ownerID string, duration int64) error {
	res, err := r.c.exec(ctx, `
		UPDATE timers SET duration = ?
		WHERE id = ? AND owner_id = ? AND ended_at IS NOT NULL`,
		duration, id, ownerID,
	)
	if err != nil {
		return fmt.Errorf("failed to correct timer duration: %w", err)
	}
	return checkRowsAffected(res, "stopped timer", id)
}

func (r *timerRepository) List(ctx context.Context, ownerID string, opts store.ListTimersOptions) ([]*model.Timer, error) {
	query := `SELECT ` + timerColumns + ` FROM timers WHERE owner_id = ?`
	args := []any{ownerID}
	if opts.RunningOnly {
		query += ` AND ended_at IS NULL`
	}
	if opts.ClientID != nil {
		query += ` AND client_id = ?`
		args = append(args, *opts.ClientID)
	}
	query += ` ORDER BY started_at DESC`
	if opts.Limit > 0 {
		query += ` LIMIT ?`
		args = append(args, opts.Limit)
	}

	rows, err := r.c.query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list timers: %w", err)
	}
	defer rows.Close()

	var timers []*model.Timer
	for rows.Next() {
		t, err := scanTimer(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan timer: %w", err)
		}
		timers = append(timers, t)
	}
	return timers, rows.Err()
}

func (r *timerRepository) CountRunningBillable(ctx context.Context, ownerID, clientID string) (int64, error) {
	var n int64
	err := r.c.queryRow(ctx, `
		SELECT COUNT(*) FROM timers
		WHERE owner_id = ? AND client_id = ? AND ended_at IS NULL AND billable = ?`,
		ownerID, clientID, true,
	).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("failed to count running timers: %w", err)
	}
	return n, nil
}

func scanTimer(s scanner) (*model.Timer, error) {
	var (
		t                  model.Timer
		clientID, taskID   sql.NullString
		startedAt, created string
		endedAt            sql.NullString
		duration           sql.NullInt64
	)
	if err := s.Scan(&t.ID, &t.OwnerID, &clientID, &taskID, &t.Billable, &t.Description,
		&startedAt, &endedAt, &duration, &created); err != nil {
		return nil, err
	}

	var err error
	t.ClientID = stringPtr(clientID)
	t.TaskID = stringPtr(taskID)
	if t.StartedAt, err = parseRequiredTime(startedAt); err != nil {
		return nil, err
	}
	if t.EndedAt, err = parseNullableTime(endedAt); err != nil {
		return nil, err
	}
	if t.CreatedAt, err = parseRequiredTime(created); err != nil {
		return nil, err
	}
	if duration.Valid {
		d := duration.Int64
		t.Duration = &d
	}
	return &t, nil
}
