// Package mongostore implements the store ports on MongoDB. Units of work
// are multi-document transactions on a client session, so the deployment
// must be a replica set or sharded cluster
package mongostore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readconcern"
	"go.mongodb.org/mongo-driver/mongo/writeconcern"

	"github.com/existflow/clientpulse/internal/apperr"
	"github.com/existflow/clientpulse/internal/store"
)

// Collection names
const (
	colOwners        = "owners"
	colSessions      = "sessions"
	colClients       = "clients"
	colTasks         = "tasks"
	colTimers        = "timers"
	colObjectives    = "objectives"
	colProfitability = "profitability"
)

// writeConflict is the server code for a transaction write conflict
const writeConflict = 112

// Transaction error labels set by the server and the driver
const (
	labelTransient     = "TransientTransactionError"
	labelUnknownCommit = "UnknownTransactionCommitResult"
)

// commitRetries bounds how often an ambiguous commit is retried
const commitRetries = 3

// Store implements store.Store on a MongoDB database
type Store struct {
	client *mongo.Client
	db     *mongo.Database
}

var _ store.Store = (*Store)(nil)

// Open connects to uri and uses the named database
func Open(ctx context.Context, uri, database string) (*Store, error) {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("failed to connect to mongodb: %w", err)
	}
	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("failed to ping mongodb: %w", err)
	}
	return New(client, database), nil
}

// New wraps a connected client
func New(client *mongo.Client, database string) *Store {
	return &Store{client: client, db: client.Database(database)}
}

// Begin starts a session with a snapshot, majority-acknowledged transaction
func (s *Store) Begin(ctx context.Context) (store.Session, error) {
	sess, err := s.client.StartSession()
	if err != nil {
		return nil, fmt.Errorf("failed to start session: %w", err)
	}
	txOpts := options.Transaction().
		SetReadConcern(readconcern.Snapshot()).
		SetWriteConcern(writeconcern.Majority())
	if err := sess.StartTransaction(txOpts); err != nil {
		sess.EndSession(ctx)
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	return &session{sess: sess, repos: newRepos(s.db, sess)}, nil
}

// Reader returns repositories that read without a session
func (s *Store) Reader() store.Tx {
	return newRepos(s.db, nil)
}

// Accounts returns the owner and session repository
func (s *Store) Accounts() store.AccountRepository {
	return &accountRepository{db: s.db}
}

// Retryable reports transient transaction errors and write conflicts, after
// which nothing was committed. Unknown commit results are retried inside
// Commit and are not reported here
func (s *Store) Retryable(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, apperr.ErrConflict) {
		return true
	}
	var se mongo.ServerError
	if errors.As(err, &se) && se.HasErrorCode(writeConflict) {
		return true
	}
	return hasLabel(err, labelTransient)
}

func hasLabel(err error, label string) bool {
	var se mongo.ServerError
	if errors.As(err, &se) && se.HasErrorLabel(label) {
		return true
	}
	var le mongo.LabeledError
	return errors.As(err, &le) && le.HasErrorLabel(label)
}

// commitWithRetry re-issues commit while the server reports an unknown
// commit result. Any other failure is returned at once
func commitWithRetry(ctx context.Context, commit func(context.Context) error, b backoff.BackOff) error {
	var last error
	err := backoff.Retry(func() error {
		last = commit(ctx)
		if last == nil || hasLabel(last, labelUnknownCommit) {
			return last
		}
		return backoff.Permanent(last)
	}, backoff.WithContext(b, ctx))
	if err == nil {
		return nil
	}
	// a cancelled context hides the last commit error behind ctx.Err()
	if hasLabel(last, labelUnknownCommit) {
		return fmt.Errorf("failed to commit: %w: %w", store.ErrCommitUnknown, last)
	}
	return fmt.Errorf("failed to commit: %w", err)
}

func newCommitBackOff() backoff.BackOff {
	exp := backoff.NewExponentialBackOff()
	exp.InitialInterval = 10 * time.Millisecond
	exp.MaxInterval = 200 * time.Millisecond
	exp.MaxElapsedTime = 0
	return backoff.WithMaxRetries(exp, commitRetries)
}

// Migrate creates the indexes the repositories rely on
func (s *Store) Migrate(ctx context.Context) error {
	indexes := map[string][]mongo.IndexModel{
		colOwners: {
			{Keys: bson.D{{Key: "username", Value: 1}}, Options: options.Index().SetUnique(true)},
			{Keys: bson.D{{Key: "email", Value: 1}}, Options: options.Index().SetUnique(true)},
		},
		colClients: {
			{Keys: bson.D{{Key: "ownerId", Value: 1}, {Key: "name", Value: 1}}},
		},
		colProfitability: {
			{Keys: bson.D{{Key: "ownerId", Value: 1}, {Key: "clientId", Value: 1}}, Options: options.Index().SetUnique(true)},
		},
		colTasks: {
			{Keys: bson.D{{Key: "ownerId", Value: 1}, {Key: "clientId", Value: 1}}},
		},
		colTimers: {
			{Keys: bson.D{{Key: "ownerId", Value: 1}, {Key: "startedAt", Value: -1}}},
			{Keys: bson.D{{Key: "ownerId", Value: 1}, {Key: "clientId", Value: 1}}},
		},
		colObjectives: {
			{Keys: bson.D{{Key: "ownerId", Value: 1}, {Key: "clientId", Value: 1}}},
		},
	}

	for name, models := range indexes {
		// Transactions cannot create collections implicitly on older servers
		if err := s.db.CreateCollection(ctx, name); err != nil && !isNamespaceExists(err) {
			return fmt.Errorf("failed to create collection %s: %w", name, err)
		}
		if _, err := s.db.Collection(name).Indexes().CreateMany(ctx, models); err != nil {
			return fmt.Errorf("failed to create indexes on %s: %w", name, err)
		}
	}
	if err := s.db.CreateCollection(ctx, colSessions); err != nil && !isNamespaceExists(err) {
		return fmt.Errorf("failed to create collection %s: %w", colSessions, err)
	}
	return nil
}

// Close disconnects the client
func (s *Store) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return s.client.Disconnect(ctx)
}

func isNamespaceExists(err error) bool {
	var ce mongo.CommandError
	if errors.As(err, &ce) {
		return ce.Code == 48 || ce.Name == "NamespaceExists"
	}
	return false
}

type session struct {
	sess mongo.Session
	*repos
}

func (s *session) Commit(ctx context.Context) error {
	defer s.sess.EndSession(ctx)
	return commitWithRetry(ctx, s.sess.CommitTransaction, newCommitBackOff())
}

func (s *session) Abort(ctx context.Context) error {
	defer s.sess.EndSession(ctx)
	if err := s.sess.AbortTransaction(ctx); err != nil {
		return fmt.Errorf("failed to abort: %w", err)
	}
	return nil
}

type repos struct {
	timers        *timerRepository
	clients       *clientRepository
	tasks         *taskRepository
	objectives    *objectiveRepository
	profitability *profitabilityRepository
}

func newRepos(db *mongo.Database, sess mongo.Session) *repos {
	b := binder{sess: sess}
	return &repos{
		timers:        &timerRepository{col: db.Collection(colTimers), b: b},
		clients:       &clientRepository{col: db.Collection(colClients), b: b},
		tasks:         &taskRepository{col: db.Collection(colTasks), b: b},
		objectives:    &objectiveRepository{col: db.Collection(colObjectives), b: b},
		profitability: &profitabilityRepository{col: db.Collection(colProfitability), b: b},
	}
}

func (r *repos) Timers() store.TimerRepository                { return r.timers }
func (r *repos) Clients() store.ClientRepository              { return r.clients }
func (r *repos) Tasks() store.TaskRepository                  { return r.tasks }
func (r *repos) Objectives() store.ObjectiveRepository        { return r.objectives }
func (r *repos) Profitability() store.ProfitabilityRepository { return r.profitability }

// binder attaches the transaction session to each operation's context
type binder struct {
	sess mongo.Session
}

func (b binder) ctx(ctx context.Context) context.Context {
	if b.sess == nil {
		return ctx
	}
	return mongo.NewSessionContext(ctx, b.sess)
}

func wrapInsert(err error, what string) error {
	if err == nil {
		return nil
	}
	if mongo.IsDuplicateKeyError(err) {
		return fmt.Errorf("failed to create %s: %w", what, store.ErrDuplicate)
	}
	return fmt.Errorf("failed to create %s: %w", what, err)
}

func notFoundOr(err error, entity, id string) error {
	if errors.Is(err, mongo.ErrNoDocuments) {
		return apperr.NotFound(entity, id)
	}
	return fmt.Errorf("failed to get %s: %w", entity, err)
}

func matched(res *mongo.UpdateResult, entity, id string) error {
	if res.MatchedCount == 0 {
		return apperr.NotFound(entity, id)
	}
	return nil
}

func byOwner(id, ownerID string) bson.M {
	return bson.M{"_id": id, "ownerId": ownerID}
}
