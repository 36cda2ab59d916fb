package sqlstore

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/existflow/clientpulse/internal/model"
)

const objectiveColumns = `id, owner_id, client_id, title, description, target_value, current_value,
	unit, is_completed, progress, due_date, category, completed_at, created_at, updated_at`

type objectiveRepository struct {
	c conn
}

func (r *objectiveRepository) Create(ctx context.Context, o *model.Objective) error {
	_, err := r.c.exec(ctx, `
		INSERT INTO objectives (`+objectiveColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		o.ID, o.OwnerID, o.ClientID, o.Title, o.Description, o.TargetValue, o.CurrentValue,
		o.Unit, o.IsCompleted, nullProgress(o.Progress), nullTime(o.DueDate), o.Category,
		nullTime(o.CompletedAt), mustTime(o.CreatedAt), mustTime(o.UpdatedAt),
	)
	return wrapInsert(err, "objective")
}

func (r *objectiveRepository) Get(ctx context.Context, id, ownerID string) (*model.Objective, error) {
	row := r.c.queryRow(ctx, `
		SELECT `+objectiveColumns+` FROM objectives
		WHERE id = ? AND owner_id = ?`,
		id, ownerID,
	)
	o, err := scanObjective(row)
	if err != nil {
		return nil, notFoundOr(err, "objective", id)
	}
	return o, nil
}

func (r *objectiveRepository) List(ctx context.Context, ownerID string, clientID *string) ([]*model.Objective, error) {
	query := `SELECT ` + objectiveColumns + ` FROM objectives WHERE owner_id = ?`
	args := []any{ownerID}
	if clientID != nil {
		query += ` AND client_id = ?`
		args = append(args, *clientID)
	}
	query += ` ORDER BY created_at`

	rows, err := r.c.query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list objectives: %w", err)
	}
	defer rows.Close()

	var objectives []*model.Objective
	for rows.Next() {
		o, err := scanObjective(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan objective: %w", err)
		}
		objectives = append(objectives, o)
	}
	return objectives, rows.Err()
}

func (r *objectiveRepository) Update(ctx context.Context, o *model.Objective) error {
	res, err := r.c.exec(ctx, `
		UPDATE objectives SET
			client_id = ?, title = ?, description = ?, target_value = ?, current_value = ?,
			unit = ?, is_completed = ?, progress = ?, due_date = ?, category = ?,
			completed_at = ?, updated_at = ?
		WHERE id = ? AND owner_id = ?`,
		o.ClientID, o.Title, o.Description, o.TargetValue, o.CurrentValue,
		o.Unit, o.IsCompleted, nullProgress(o.Progress), nullTime(o.DueDate), o.Category,
		nullTime(o.CompletedAt), mustTime(o.UpdatedAt),
		o.ID, o.OwnerID,
	)
	if err != nil {
		return fmt.Errorf("failed to update objective: %w", err)
	}
	return checkRowsAffected(res, "objective", o.ID)
}

func (r *objectiveRepository) Delete(ctx context.Context, id, ownerID string) error {
	res, err := r.c.exec(ctx, `DELETE FROM objectives WHERE id = ? AND owner_id = ?`, id, ownerID)
	if err != nil {
		return fmt.Errorf("failed to delete objective: %w", err)
	}
	return checkRowsAffected(res, "objective", id)
}

func (r *objectiveRepository) DeleteByClient(ctx context.Context, ownerID, clientID string) (int64, error) {
	res, err := r.c.exec(ctx, `DELETE FROM objectives WHERE owner_id = ? AND client_id = ?`, ownerID, clientID)
	if err != nil {
		return 0, fmt.Errorf("failed to delete client objectives: %w", err)
	}
	return res.RowsAffected()
}

func (r *objectiveRepository) CountByClient(ctx context.Context, ownerID, clientID string) (model.ObjectiveCounts, error) {
	var counts model.ObjectiveCounts
	err := r.c.queryRow(ctx, `
		SELECT COUNT(*), COALESCE(SUM(CASE WHEN is_completed THEN 1 ELSE 0 END), 0)
		FROM objectives
		WHERE owner_id = ? AND client_id = ?`,
		ownerID, clientID,
	).Scan(&counts.Total, &counts.Completed)
	if err != nil {
		return model.ObjectiveCounts{}, fmt.Errorf("failed to count objectives: %w", err)
	}
	return counts, nil
}

func nullProgress(p *int) any {
	if p == nil {
		return nil
	}
	return int64(*p)
}

func scanObjective(s scanner) (*model.Objective, error) {
	var (
		o                    model.Objective
		progress             sql.NullInt64
		dueDate, completedAt sql.NullString
		created, updated     string
	)
	if err := s.Scan(&o.ID, &o.OwnerID, &o.ClientID, &o.Title, &o.Description, &o.TargetValue,
		&o.CurrentValue, &o.Unit, &o.IsCompleted, &progress, &dueDate, &o.Category,
		&completedAt, &created, &updated); err != nil {
		return nil, err
	}

	var err error
	if progress.Valid {
		p := int(progress.Int64)
		o.Progress = &p
	}
	if o.DueDate, err = parseNullableTime(dueDate); err != nil {
		return nil, err
	}
	if o.CompletedAt, err = parseNullableTime(completedAt); err != nil {
		return nil, err
	}
	if o.CreatedAt, err = parseRequiredTime(created); err != nil {
		return nil, err
	}
	if o.UpdatedAt, err = parseRequiredTime(updated); err != nil {
		return nil, err
	}
	return &o, nil
}
