package mongostore

import (
	"context"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/existflow/clientpulse/internal/model"
)

type clientRepository struct {
	col *mongo.Collection
	b   binder
}

func (r *clientRepository) Create(ctx context.Context, c *model.Client) error {
	_, err := r.col.InsertOne(r.b.ctx(ctx), c)
	return wrapInsert(err, "client")
}

func (r *clientRepository) Get(ctx context.Context, id, ownerID string) (*model.Client, error) {
	var c model.Client
	if err := r.col.FindOne(r.b.ctx(ctx), byOwner(id, ownerID)).Decode(&c); err != nil {
		return nil, notFoundOr(err, "client", id)
	}
	return &c, nil
}

func (r *clientRepository) List(ctx context.Context, ownerID string) ([]*model.Client, error) {
	return r.find(ctx, bson.M{"ownerId": ownerID}, bson.D{{Key: "name", Value: 1}})
}

func (r *clientRepository) ListAll(ctx context.Context) ([]*model.Client, error) {
	return r.find(ctx, bson.M{}, bson.D{{Key: "ownerId", Value: 1}, {Key: "_id", Value: 1}})
}

func (r *clientRepository) find(ctx context.Context, filter bson.M, sort bson.D) ([]*model.Client, error) {
	cur, err := r.col.Find(r.b.ctx(ctx), filter, options.Find().SetSort(sort))
	if err != nil {
		return nil, fmt.Errorf("failed to list clients: %w", err)
	}
	var clients []*model.Client
	if err := cur.All(r.b.ctx(ctx), &clients); err != nil {
		return nil, fmt.Errorf("failed to decode clients: %w", err)
	}
	return clients, nil
}

func (r *clientRepository) UpdateDetails(ctx context.Context, c *model.Client) error {
	res, err := r.col.UpdateOne(r.b.ctx(ctx), byOwner(c.ID, c.OwnerID), bson.M{
		"$set": bson.M{"name": c.Name, "status": c.Status, "updatedAt": c.UpdatedAt},
	})
	if err != nil {
		return fmt.Errorf("failed to update client: %w", err)
	}
	return matched(res, "client", c.ID)
}

// ApplyDelta uses $inc so concurrent writers never lose each other's adjustments
func (r *clientRepository) ApplyDelta(ctx context.Context, id, ownerID string, d model.CounterDelta) error {
	update := bson.M{}
	inc := bson.M{}
	add := func(field string, v int64) {
		if v != 0 {
			inc["counters."+field] = v
		}
	}
	add("objectivesCount", d.ObjectivesCount)
	add("objectivesCompleted", d.ObjectivesCompleted)
	add("objectivesPending", d.ObjectivesPending)
	add("tasksCompleted", d.TasksCompleted)
	add("tasksInProgress", d.TasksInProgress)
	add("tasksPending", d.TasksPending)
	if len(inc) > 0 {
		update["$inc"] = inc
	}
	if d.Touch != nil {
		update["$set"] = bson.M{"lastActivity": *d.Touch, "updatedAt": *d.Touch}
	}
	if len(update) == 0 {
		return nil
	}

	res, err := r.col.UpdateOne(r.b.ctx(ctx), byOwner(id, ownerID), update)
	if err != nil {
		return fmt.Errorf("failed to apply counter delta: %w", err)
	}
	return matched(res, "client", id)
}

func (r *clientRepository) SetCounters(ctx context.Context, id, ownerID string, k model.ClientCounters) error {
	res, err := r.col.UpdateOne(r.b.ctx(ctx), byOwner(id, ownerID), bson.M{
		"$set": bson.M{"counters": k},
	})
	if err != nil {
		return fmt.Errorf("failed to set counters: %w", err)
	}
	return matched(res, "client", id)
}

func (r *clientRepository) Delete(ctx context.Context, id, ownerID string) error {
	res, err := r.col.DeleteOne(r.b.ctx(ctx), byOwner(id, ownerID))
	if err != nil {
		return fmt.Errorf("failed to delete client: %w", err)
	}
	if res.DeletedCount == 0 {
		return notFoundOr(mongo.ErrNoDocuments, "client", id)
	}
	return nil
}
