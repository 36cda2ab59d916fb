package mongostore

import (
	"context"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/existflow/clientpulse/internal/model"
)

type profitabilityRepository struct {
	col *mongo.Collection
	b   binder
}

func (r *profitabilityRepository) Create(ctx context.Context, p *model.ProfitabilityRecord) error {
	_, err := r.col.InsertOne(r.b.ctx(ctx), p)
	return wrapInsert(err, "profitability record")
}

func (r *profitabilityRepository) Get(ctx context.Context, ownerID, clientID string) (*model.ProfitabilityRecord, error) {
	var p model.ProfitabilityRecord
	err := r.col.FindOne(r.b.ctx(ctx), bson.M{"ownerId": ownerID, "clientId": clientID}).Decode(&p)
	if err != nil {
		return nil, notFoundOr(err, "profitability record", clientID)
	}
	return &p, nil
}

func (r *profitabilityRepository) Update(ctx context.Context, p *model.ProfitabilityRecord) error {
	res, err := r.col.ReplaceOne(r.b.ctx(ctx), bson.M{"ownerId": p.OwnerID, "clientId": p.ClientID}, p)
	if err != nil {
		return fmt.Errorf("failed to update profitability: %w", err)
	}
	return matched(res, "profitability record", p.ClientID)
}

func (r *profitabilityRepository) DeleteByClient(ctx context.Context, ownerID, clientID string) (int64, error) {
	res, err := r.col.DeleteMany(r.b.ctx(ctx), bson.M{"ownerId": ownerID, "clientId": clientID})
	if err != nil {
		return 0, fmt.Errorf("failed to delete profitability: %w", err)
	}
	return res.DeletedCount, nil
}
