// Package store declares the persistence ports the engine runs against.
// Implementations live in sqlstore (Postgres, SQLite, libsql) and
// mongostore (MongoDB). Every engine write goes through a Session opened by
// the transaction coordinator; Reader is for best-effort, non-transactional
// reads only
package store

import (
	"context"
	"errors"
	"time"

	"github.com/existflow/clientpulse/internal/model"
)

// ErrDuplicate is returned when an insert violates a uniqueness constraint
var ErrDuplicate = errors.New("duplicate key")

// ErrCommitUnknown is returned by Commit when the database cannot say
// whether the transaction landed. A unit of work failing with it must not
// be re-run
var ErrCommitUnknown = errors.New("commit outcome unknown")

// Store opens units of work against a backing database
type Store interface {
	// Begin opens a transactional session. Exactly one of Commit or Abort
	// must be called on it
	Begin(ctx context.Context) (Session, error)
	// Reader returns repositories that read outside any transaction
	Reader() Tx
	// Accounts returns the owner/session repository used by the HTTP boundary
	Accounts() AccountRepository
	// Retryable reports whether err is a transient conflict worth retrying
	Retryable(err error) bool
	// Migrate creates the schema or indexes the store needs
	Migrate(ctx context.Context) error
	Close() error
}

// Session is an open unit of work
type Session interface {
	Tx
	// Commit makes the unit of work durable. An error Retryable classifies
	// as transient means nothing was written
	Commit(ctx context.Context) error
	Abort(ctx context.Context) error
}

// Tx exposes the repositories bound to one session
type Tx interface {
	Timers() TimerRepository
	Clients() ClientRepository
	Tasks() TaskRepository
	Objectives() ObjectiveRepository
	Profitability() ProfitabilityRepository
}

// TimerRepository persists timers
type TimerRepository interface {
	Create(ctx context.Context, t *model.Timer) error
	Get(ctx context.Context, id, ownerID string) (*model.Timer, error)
	// GetRunning fails with NotFound unless the timer exists, is owned and is running
	GetRunning(ctx context.Context, id, ownerID string) (*model.Timer, error)
	// MarkStopped sets end and duration only while the timer is still running
	MarkStopped(ctx context.Context, id, ownerID string, endedAt time.Time, duration int64) error
	// SetDuration overwrites the duration of a stopped timer
	SetDuration(ctx context.Context, id, ownerID string, duration int64) error
	List(ctx context.Context, ownerID string, opts ListTimersOptions) ([]*model.Timer, error)
	// CountRunningBillable counts running billable timers for a client
	CountRunningBillable(ctx context.Context, ownerID, clientID string) (int64, error)
}

// ListTimersOptions filters timer listings
type ListTimersOptions struct {
	RunningOnly bool
	ClientID    *string
	Limit       int
}

// ClientRepository persists clients and their counters
type ClientRepository interface {
	Create(ctx context.Context, c *model.Client) error
	Get(ctx context.Context, id, ownerID string) (*model.Client, error)
	List(ctx context.Context, ownerID string) ([]*model.Client, error)
	// ListAll returns every client across owners, for reconciliation
	ListAll(ctx context.Context) ([]*model.Client, error)
	UpdateDetails(ctx context.Context, c *model.Client) error
	// ApplyDelta applies counter adjustments as one atomic increment
	ApplyDelta(ctx context.Context, id, ownerID string, d model.CounterDelta) error
	// SetCounters overwrites all counters, for reconciliation
	SetCounters(ctx context.Context, id, ownerID string, c model.ClientCounters) error
	Delete(ctx context.Context, id, ownerID string) error
}

// TaskRepository persists tasks
type TaskRepository interface {
	Create(ctx context.Context, t *model.Task) error
	Get(ctx context.Context, id, ownerID string) (*model.Task, error)
	List(ctx context.Context, ownerID string, clientID *string) ([]*model.Task, error)
	UpdateStatus(ctx context.Context, id, ownerID, status string, at time.Time) error
	// AddMinutes increments the accumulated time atomically
	AddMinutes(ctx context.Context, id, ownerID string, minutes int64, at time.Time) error
	Delete(ctx context.Context, id, ownerID string) error
	DeleteByClient(ctx context.Context, ownerID, clientID string) (int64, error)
	CountByClient(ctx context.Context, ownerID, clientID string) (model.TaskCounts, error)
}

// ObjectiveRepository persists objectives
type ObjectiveRepository interface {
	Create(ctx context.Context, o *model.Objective) error
	Get(ctx context.Context, id, ownerID string) (*model.Objective, error)
	List(ctx context.Context, ownerID string, clientID *string) ([]*model.Objective, error)
	Update(ctx context.Context, o *model.Objective) error
	Delete(ctx context.Context, id, ownerID string) error
	DeleteByClient(ctx context.Context, ownerID, clientID string) (int64, error)
	CountByClient(ctx context.Context, ownerID, clientID string) (model.ObjectiveCounts, error)
}

// ProfitabilityRepository persists profitability records
type ProfitabilityRepository interface {
	Create(ctx context.Context, p *model.ProfitabilityRecord) error
	// Get fails with NotFound when the client has no profitability tracking
	Get(ctx context.Context, ownerID, clientID string) (*model.ProfitabilityRecord, error)
	Update(ctx context.Context, p *model.ProfitabilityRecord) error
	DeleteByClient(ctx context.Context, ownerID, clientID string) (int64, error)
}

// AccountRepository persists owners and login sessions
type AccountRepository interface {
	CreateOwner(ctx context.Context, o *model.Owner) error
	GetOwner(ctx context.Context, id string) (*model.Owner, error)
	GetOwnerByUsername(ctx context.Context, username string) (*model.Owner, error)
	CreateSession(ctx context.Context, s *model.Session) error
	GetSession(ctx context.Context, token string) (*model.Session, error)
	DeleteSession(ctx context.Context, token string) error
}
