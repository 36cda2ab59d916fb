package engine

import (
	"context"

	"github.com/existflow/clientpulse/internal/apperr"
	"github.com/existflow/clientpulse/internal/logger"
	"github.com/existflow/clientpulse/internal/model"
	"github.com/existflow/clientpulse/internal/store"
)

// Counters is the only writer of client counters and lastActivity.
// Every adjustment is one atomic increment in the caller's transaction
type Counters struct {
	log *logger.Logger
}

// Apply adds d to the client's counters. A zero delta is skipped; a missing
// client fails with NotFound
func (c Counters) Apply(ctx context.Context, tx store.Tx, ownerID, clientID string, d model.CounterDelta) error {
	if d.IsZero() {
		return nil
	}
	return tx.Clients().ApplyDelta(ctx, clientID, ownerID, d)
}

// ApplyIfPresent is Apply for clients that may have been deleted since the
// referencing entity was written
func (c Counters) ApplyIfPresent(ctx context.Context, tx store.Tx, ownerID, clientID string, d model.CounterDelta) error {
	err := c.Apply(ctx, tx, ownerID, clientID, d)
	if apperr.IsNotFound(err) {
		c.log.Debug("counter delta skipped, client is gone", logger.F("client_id", clientID))
		return nil
	}
	return err
}
