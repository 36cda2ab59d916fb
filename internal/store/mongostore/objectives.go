package mongostore

import (
	"context"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/existflow/clientpulse/internal/model"
)

type objectiveRepository struct {
	col *mongo.Collection
	b   binder
}

func (r *objectiveRepository) Create(ctx context.Context, o *model.Objective) error {
	_, err := r.col.InsertOne(r.b.ctx(ctx), o)
	return wrapInsert(err, "objective")
}

func (r *objectiveRepository) Get(ctx context.Context, id, ownerID string) (*model.Objective, error) {
	var o model.Objective
	if err := r.col.FindOne(r.b.ctx(ctx), byOwner(id, ownerID)).Decode(&o); err != nil {
		return nil, notFoundOr(err, "objective", id)
	}
	return &o, nil
}

func (r *objectiveRepository) List(ctx context.Context, ownerID string, clientID *string) ([]*model.Objective, error) {
	filter := bson.M{"ownerId": ownerID}
	if clientID != nil {
		filter["clientId"] = *clientID
	}
	cur, err := r.col.Find(r.b.ctx(ctx), filter, options.Find().SetSort(bson.D{{Key: "createdAt", Value: 1}}))
	if err != nil {
		return nil, fmt.Errorf("failed to list objectives: %w", err)
	}
	var objectives []*model.Objective
	if err := cur.All(r.b.ctx(ctx), &objectives); err != nil {
		return nil, fmt.Errorf("failed to decode objectives: %w", err)
	}
	return objectives, nil
}

func (r *objectiveRepository) Update(ctx context.Context, o *model.Objective) error {
	res, err := r.col.ReplaceOne(r.b.ctx(ctx), byOwner(o.ID, o.OwnerID), o)
	if err != nil {
		return fmt.Errorf("failed to update objective: %w", err)
	}
	return matched(res, "objective", o.ID)
}

func (r *objectiveRepository) Delete(ctx context.Context, id, ownerID string) error {
	res, err := r.col.DeleteOne(r.b.ctx(ctx), byOwner(id, ownerID))
	if err != nil {
		return fmt.Errorf("failed to delete objective: %w", err)
	}
	if res.DeletedCount == 0 {
		return notFoundOr(mongo.ErrNoDocuments, "objective", id)
	}
	return nil
}

func (r *objectiveRepository) DeleteByClient(ctx context.Context, ownerID, clientID string) (int64, error) {
	res, err := r.col.DeleteMany(r.b.ctx(ctx), bson.M{"ownerId": ownerID, "clientId": clientID})
	if err != nil {
		return 0, fmt.Errorf("failed to delete client objectives: %w", err)
	}
	return res.DeletedCount, nil
}

func (r *objectiveRepository) CountByClient(ctx context.Context, ownerID, clientID string) (model.ObjectiveCounts, error) {
	filter := bson.M{"ownerId": ownerID, "clientId": clientID}
	total, err := r.col.CountDocuments(r.b.ctx(ctx), filter)
	if err != nil {
		return model.ObjectiveCounts{}, fmt.Errorf("failed to count objectives: %w", err)
	}
	filter["isCompleted"] = true
	completed, err := r.col.CountDocuments(r.b.ctx(ctx), filter)
	if err != nil {
		return model.ObjectiveCounts{}, fmt.Errorf("failed to count completed objectives: %w", err)
	}
	return model.ObjectiveCounts{Total: total, Completed: completed}, nil
}
