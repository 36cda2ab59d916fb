package mongostore

import (
	"context"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/existflow/clientpulse/internal/model"
)

type accountRepository struct {
	db *mongo.Database
}

func (r *accountRepository) CreateOwner(ctx context.Context, o *model.Owner) error {
	_, err := r.db.Collection(colOwners).InsertOne(ctx, o)
	return wrapInsert(err, "owner")
}

func (r *accountRepository) GetOwner(ctx context.Context, id string) (*model.Owner, error) {
	var o model.Owner
	if err := r.db.Collection(colOwners).FindOne(ctx, bson.M{"_id": id}).Decode(&o); err != nil {
		return nil, notFoundOr(err, "owner", id)
	}
	return &o, nil
}

func (r *accountRepository) GetOwnerByUsername(ctx context.Context, username string) (*model.Owner, error) {
	var o model.Owner
	if err := r.db.Collection(colOwners).FindOne(ctx, bson.M{"username": username}).Decode(&o); err != nil {
		return nil, notFoundOr(err, "owner", username)
	}
	return &o, nil
}

func (r *accountRepository) CreateSession(ctx context.Context, s *model.Session) error {
	_, err := r.db.Collection(colSessions).InsertOne(ctx, s)
	return wrapInsert(err, "session")
}

func (r *accountRepository) GetSession(ctx context.Context, token string) (*model.Session, error) {
	var s model.Session
	if err := r.db.Collection(colSessions).FindOne(ctx, bson.M{"_id": token}).Decode(&s); err != nil {
		return nil, notFoundOr(err, "session", "")
	}
	return &s, nil
}

func (r *accountRepository) DeleteSession(ctx context.Context, token string) error {
	if _, err := r.db.Collection(colSessions).DeleteOne(ctx, bson.M{"_id": token}); err != nil {
		return fmt.Errorf("failed to delete session: %w", err)
	}
	return nil
}
