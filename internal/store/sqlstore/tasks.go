package sqlstore

import (
	"context"
	"fmt"
	"time"

	"github.com/existflow/clientpulse/internal/model"
)

const taskColumns = `id, owner_id, client_id, title, status, actual_minutes, created_at, updated_at`

type taskRepository struct {
	c conn
}

func (r *taskRepository) Create(ctx context.Context, t *model.Task) error {
	_, err := r.c.exec(ctx, `
		INSERT INTO tasks (`+taskColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		t.ID, t.OwnerID, t.ClientID, t.Title, t.Status, t.ActualMinutes,
		mustTime(t.CreatedAt), mustTime(t.UpdatedAt),
	)
	return wrapInsert(err, "task")
}

func (r *taskRepository) Get(ctx context.Context, id, ownerID string) (*model.Task, error) {
	row := r.c.queryRow(ctx, `
		SELECT `+taskColumns+` FROM tasks
		WHERE id = ? AND owner_id = ?`,
		id, ownerID,
	)
	t, err := scanTask(row)
	if err != nil {
		return nil, notFoundOr(err, "task", id)
	}
	return t, nil
}

func (r *taskRepository) List(ctx context.Context, ownerID string, clientID *string) ([]*model.Task, error) {
	query := `SELECT ` + taskColumns + ` FROM tasks WHERE owner_id = ?`
	args := []any{ownerID}
	if clientID != nil {
		query += ` AND client_id = ?`
		args = append(args, *clientID)
	}
	query += ` ORDER BY created_at`

	rows, err := r.c.query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list tasks: %w", err)
	}
	defer rows.Close()

	var tasks []*model.Task
	for rows.Next() {
		t, err := scanTask(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan task: %w", err)
		}
		tasks = append(tasks, t)
	}
	return tasks, rows.Err()
}

func (r *taskRepository) UpdateStatus(ctx context.Context, id, ownerID, status string, at time.Time) error {
	res, err := r.c.exec(ctx, `
		UPDATE tasks SET status = ?, updated_at = ?
		WHERE id = ? AND owner_id = ?`,
		status, mustTime(at), id, ownerID,
	)
	if err != nil {
		return fmt.Errorf("failed to update task status: %w", err)
	}
	return checkRowsAffected(res, "task", id)
}

func (r *taskRepository) AddMinutes(ctx context.Context, id, ownerID string, minutes int64, at time.Time) error {
	res, err := r.c.exec(ctx, `
		UPDATE tasks SET actual_minutes = actual_minutes + ?, updated_at = ?
		WHERE id = ? AND owner_id = ?`,
		minutes, mustTime(at), id, ownerID,
	)
	if err != nil {
		return fmt.Errorf("failed to add task minutes: %w", err)
	}
	return checkRowsAffected(res, "task", id)
}

func (r *taskRepository) Delete(ctx context.Context, id, ownerID string) error {
	res, err := r.c.exec(ctx, `DELETE FROM tasks WHERE id = ? AND owner_id = ?`, id, ownerID)
	if err != nil {
		return fmt.Errorf("failed to delete task: %w", err)
	}
	return checkRowsAffected(res, "task", id)
}

func (r *taskRepository) DeleteByClient(ctx context.Context, ownerID, clientID string) (int64, error) {
	res, err := r.c.exec(ctx, `DELETE FROM tasks WHERE owner_id = ? AND client_id = ?`, ownerID, clientID)
	if err != nil {
		return 0, fmt.Errorf("failed to delete client tasks: %w", err)
	}
	return res.RowsAffected()
}

func (r *taskRepository) CountByClient(ctx context.Context, ownerID, clientID string) (model.TaskCounts, error) {
	rows, err := r.c.query(ctx, `
		SELECT status, COUNT(*) FROM tasks
		WHERE owner_id = ? AND client_id = ?
		GROUP BY status`,
		ownerID, clientID,
	)
	if err != nil {
		return model.TaskCounts{}, fmt.Errorf("failed to count tasks: %w", err)
	}
	defer rows.Close()

	var counts model.TaskCounts
	for rows.Next() {
		var status string
		var n int64
		if err := rows.Scan(&status, &n); err != nil {
			return model.TaskCounts{}, fmt.Errorf("failed to scan task count: %w", err)
		}
		switch status {
		case model.TaskCompleted:
			counts.Completed += n
		case model.TaskInProgress:
			counts.InProgress += n
		default:
			counts.Pending += n
		}
	}
	return counts, rows.Err()
}

func scanTask(s scanner) (*model.Task, error) {
	var (
		t                model.Task
		created, updated string
	)
	if err := s.Scan(&t.ID, &t.OwnerID, &t.ClientID, &t.Title, &t.Status, &t.ActualMinutes,
		&created, &updated); err != nil {
		return nil, err
	}

	var err error
	if t.CreatedAt, err = parseRequiredTime(created); err != nil {
		return nil, err
	}
	if t.UpdatedAt, err = parseRequiredTime(updated); err != nil {
		return nil, err
	}
	return &t, nil
}
