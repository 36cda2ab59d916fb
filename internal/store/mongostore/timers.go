package mongostore

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/existflow/clientpulse/internal/model"
	"github.com/existflow/clientpulse/internal/store"
)

type timerRepository struct {
	col *mongo.Collection
	b   binder
}

func (r *timerRepository) Create(ctx context.Context, t *model.Timer) error {
	_, err := r.col.InsertOne(r.b.ctx(ctx), t)
	return wrapInsert(err, "timer")
}

func (r *timerRepository) Get(ctx context.Context, id, ownerID string) (*model.Timer, error) {
	var t model.Timer
	if err := r.col.FindOne(r.b.ctx(ctx), byOwner(id, ownerID)).Decode(&t); err != nil {
		return nil, notFoundOr(err, "timer", id)
	}
	return &t, nil
}

func (r *timerRepository) GetRunning(ctx context.Context, id, ownerID string) (*model.Timer, error) {
	filter := byOwner(id, ownerID)
	filter["endedAt"] = nil

	var t model.Timer
	if err := r.col.FindOne(r.b.ctx(ctx), filter).Decode(&t); err != nil {
		return nil, notFoundOr(err, "running timer", id)
	}
	return &t, nil
}

func (r *timerRepository) MarkStopped(ctx context.Context, id, ownerID string, endedAt time.Time, duration int64) error {
	filter := byOwner(id, ownerID)
	filter["endedAt"] = nil

	res, err := r.col.UpdateOne(r.b.ctx(ctx), filter, bson.M{
		"$set": bson.M{"endedAt": endedAt, "duration": duration},
	})
	if err != nil {
		return fmt.Errorf("failed to stop timer: %w", err)
	}
	return matched(res, "running timer", id)
}

func (r *timerRepository) SetDuration(ctx context.Context, id, ownerID string, duration int64) error {
	filter := byOwner(id, ownerID)
	filter["endedAt"] = bson.M{"$ne": nil}

	res, err := r.col.UpdateOne(r.b.ctx(ctx), filter, bson.M{
		"$set": bson.M{"duration": duration},
	})
	if err != nil {
		return fmt.Errorf("failed to correct timer duration: %w", err)
	}
	return matched(res, "stopped timer", id)
}

func (r *timerRepository) List(ctx context.Context, ownerID string, opts store.ListTimersOptions) ([]*model.Timer, error) {
	filter := bson.M{"ownerId": ownerID}
	if opts.RunningOnly {
		filter["endedAt"] = nil
	}
	if opts.ClientID != nil {
		filter["clientId"] = *opts.ClientID
	}

	findOpts := options.Find().SetSort(bson.D{{Key: "startedAt", Value: -1}})
	if opts.Limit > 0 {
		findOpts.SetLimit(int64(opts.Limit))
	}

	cur, err := r.col.Find(r.b.ctx(ctx), filter, findOpts)
	if err != nil {
		return nil, fmt.Errorf("failed to list timers: %w", err)
	}
	var timers []*model.Timer
	if err := cur.All(r.b.ctx(ctx), &timers); err != nil {
		return nil, fmt.Errorf("failed to decode timers: %w", err)
	}
	return timers, nil
}

func (r *timerRepository) CountRunningBillable(ctx context.Context, ownerID, clientID string) (int64, error) {
	n, err := r.col.CountDocuments(r.b.ctx(ctx), bson.M{
		"ownerId":  ownerID,
		"clientId": clientID,
		"endedAt":  nil,
		"billable": true,
	})
	if err != nil {
		return 0, fmt.Errorf("failed to count running timers: %w", err)
	}
	return n, nil
}
