package sqlstore

import (
	"context"
	"fmt"

	"github.com/existflow/clientpulse/internal/model"
)

const profitabilityColumns = `id, owner_id, client_id, hourly_rate, target_hours, actual_hours,
	revenue, cost, profit, profitability, remaining_hours, updated_at`

type profitabilityRepository struct {
	c conn
}

func (r *profitabilityRepository) Create(ctx context.Context, p *model.ProfitabilityRecord) error {
	_, err := r.c.exec(ctx, `
		INSERT INTO profitability (`+profitabilityColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		p.ID, p.OwnerID, p.ClientID, p.HourlyRate, p.TargetHours, p.ActualHours,
		p.Revenue, p.Cost, p.Profit, p.Profitability, p.RemainingHours, mustTime(p.UpdatedAt),
	)
	return wrapInsert(err, "profitability record")
}

func (r *profitabilityRepository) Get(ctx context.Context, ownerID, clientID string) (*model.ProfitabilityRecord, error) {
	var (
		p       model.ProfitabilityRecord
		updated string
	)
	err := r.c.queryRow(ctx, `
		SELECT `+profitabilityColumns+` FROM profitability
		WHERE owner_id = ? AND client_id = ?`,
		ownerID, clientID,
	).Scan(&p.ID, &p.OwnerID, &p.ClientID, &p.HourlyRate, &p.TargetHours, &p.ActualHours,
		&p.Revenue, &p.Cost, &p.Profit, &p.Profitability, &p.RemainingHours, &updated)
	if err != nil {
		return nil, notFoundOr(err, "profitability record", clientID)
	}
	if p.UpdatedAt, err = parseRequiredTime(updated); err != nil {
		return nil, err
	}
	return &p, nil
}

func (r *profitabilityRepository) Update(ctx context.Context, p *model.ProfitabilityRecord) error {
	res, err := r.c.exec(ctx, `
		UPDATE profitability SET
			hourly_rate = ?, target_hours = ?, actual_hours = ?, revenue = ?,
			cost = ?, profit = ?, profitability = ?, remaining_hours = ?, updated_at = ?
		WHERE owner_id = ? AND client_id = ?`,
		p.HourlyRate, p.TargetHours, p.ActualHours, p.Revenue,
		p.Cost, p.Profit, p.Profitability, p.RemainingHours, mustTime(p.UpdatedAt),
		p.OwnerID, p.ClientID,
	)
	if err != nil {
		return fmt.Errorf("failed to update profitability: %w", err)
	}
	return checkRowsAffected(res, "profitability record", p.ClientID)
}

func (r *profitabilityRepository) DeleteByClient(ctx context.Context, ownerID, clientID string) (int64, error) {
	res, err := r.c.exec(ctx, `DELETE FROM profitability WHERE owner_id = ? AND client_id = ?`, ownerID, clientID)
	if err != nil {
		return 0, fmt.Errorf("failed to delete profitability: %w", err)
	}
	return res.RowsAffected()
}
