package mongostore

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/existflow/clientpulse/internal/model"
)

type taskRepository struct {
	col *mongo.Collection
	b   binder
}

func (r *taskRepository) Create(ctx context.Context, t *model.Task) error {
	_, err := r.col.InsertOne(r.b.ctx(ctx), t)
	return wrapInsert(err, "task")
}

func (r *taskRepository) Get(ctx context.Context, id, ownerID string) (*model.Task, error) {
	var t model.Task
	if err := r.col.FindOne(r.b.ctx(ctx), byOwner(id, ownerID)).Decode(&t); err != nil {
		return nil, notFoundOr(err, "task", id)
	}
	return &t, nil
}

func (r *taskRepository) List(ctx context.Context, ownerID string, clientID *string) ([]*model.Task, error) {
	filter := bson.M{"ownerId": ownerID}
	if clientID != nil {
		filter["clientId"] = *clientID
	}
	cur, err := r.col.Find(r.b.ctx(ctx), filter, options.Find().SetSort(bson.D{{Key: "createdAt", Value: 1}}))
	if err != nil {
		return nil, fmt.Errorf("failed to list tasks: %w", err)
	}
	var tasks []*model.Task
	if err := cur.All(r.b.ctx(ctx), &tasks); err != nil {
		return nil, fmt.Errorf("failed to decode tasks: %w", err)
	}
	return tasks, nil
}

func (r *taskRepository) UpdateStatus(ctx context.Context, id, ownerID, status string, at time.Time) error {
	res, err := r.col.UpdateOne(r.b.ctx(ctx), byOwner(id, ownerID), bson.M{
		"$set": bson.M{"status": status, "updatedAt": at},
	})
	if err != nil {
		return fmt.Errorf("failed to update task status: %w", err)
	}
	return matched(res, "task", id)
}

func (r *taskRepository) AddMinutes(ctx context.Context, id, ownerID string, minutes int64, at time.Time) error {
	res, err := r.col.UpdateOne(r.b.ctx(ctx), byOwner(id, ownerID), bson.M{
		"$inc": bson.M{"actualMinutes": minutes},
		"$set": bson.M{"updatedAt": at},
	})
	if err != nil {
		return fmt.Errorf("failed to add task minutes: %w", err)
	}
	return matched(res, "task", id)
}

func (r *taskRepository) Delete(ctx context.Context, id, ownerID string) error {
	res, err := r.col.DeleteOne(r.b.ctx(ctx), byOwner(id, ownerID))
	if err != nil {
		return fmt.Errorf("failed to delete task: %w", err)
	}
	if res.DeletedCount == 0 {
		return notFoundOr(mongo.ErrNoDocuments, "task", id)
	}
	return nil
}

func (r *taskRepository) DeleteByClient(ctx context.Context, ownerID, clientID string) (int64, error) {
	res, err := r.col.DeleteMany(r.b.ctx(ctx), bson.M{"ownerId": ownerID, "clientId": clientID})
	if err != nil {
		return 0, fmt.Errorf("failed to delete client tasks: %w", err)
	}
	return res.DeletedCount, nil
}

func (r *taskRepository) CountByClient(ctx context.Context, ownerID, clientID string) (model.TaskCounts, error) {
	cur, err := r.col.Aggregate(r.b.ctx(ctx), mongo.Pipeline{
		{{Key: "$match", Value: bson.M{"ownerId": ownerID, "clientId": clientID}}},
		{{Key: "$group", Value: bson.M{"_id": "$status", "n": bson.M{"$sum": 1}}}},
	})
	if err != nil {
		return model.TaskCounts{}, fmt.Errorf("failed to count tasks: %w", err)
	}

	var groups []struct {
		Status string `bson:"_id"`
		N      int64  `bson:"n"`
	}
	if err := cur.All(r.b.ctx(ctx), &groups); err != nil {
		return model.TaskCounts{}, fmt.Errorf("failed to decode task counts: %w", err)
	}

	var counts model.TaskCounts
	for _, g := range groups {
		switch g.Status {
		case model.TaskCompleted:
			counts.Completed += g.N
		case model.TaskInProgress:
			counts.InProgress += g.N
		default:
			counts.Pending += g.N
		}
	}
	return counts, nil
}
