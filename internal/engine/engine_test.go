package engine

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/existflow/clientpulse/internal/model"
	"github.com/existflow/clientpulse/internal/store"
	"github.com/existflow/clientpulse/internal/store/sqlstore"
	"github.com/existflow/clientpulse/internal/txn"
)

const owner = "owner-1"

// fakeClock is a settable engine clock
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2024, 5, 6, 9, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

// testDB opens a migrated SQLite store in a temp dir
func testDB(t *testing.T) *sqlstore.DB {
	t.Helper()
	db, err := sqlstore.Open("sqlite", filepath.Join(t.TempDir(), "engine.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	require.NoError(t, db.Migrate(context.Background()))
	return db
}

func fastRetries() txn.Option {
	return txn.WithPolicy(txn.Policy{MaxAttempts: 3, InitialInterval: time.Millisecond, MaxInterval: 5 * time.Millisecond})
}

func newTestEngine(t *testing.T, s store.Store) (*Engine, *fakeClock) {
	t.Helper()
	clock := newFakeClock()
	return New(txn.New(s, fastRetries()), WithClock(clock.Now)), clock
}

func setup(t *testing.T) (*Engine, *fakeClock, *sqlstore.DB) {
	t.Helper()
	db := testDB(t)
	e, clock := newTestEngine(t, db)
	return e, clock, db
}

func mustClient(t *testing.T, e *Engine, rate, budget float64) *model.Client {
	t.Helper()
	c, err := e.CreateClient(context.Background(), ClientInput{Name: "Acme", HourlyRate: rate, MonthlyBudget: budget}, owner)
	require.NoError(t, err)
	return c
}

func mustTask(t *testing.T, e *Engine, clientID string) *model.Task {
	t.Helper()
	task, err := e.CreateTask(context.Background(), TaskInput{ClientID: clientID, Title: "Landing page"}, owner)
	require.NoError(t, err)
	return task
}

func mustObjective(t *testing.T, e *Engine, clientID string) *model.Objective {
	t.Helper()
	o, err := e.CreateObjective(context.Background(), ObjectiveInput{ClientID: clientID, Title: "Launch", TargetValue: 10}, owner)
	require.NoError(t, err)
	return o
}

func counters(t *testing.T, e *Engine, clientID string) model.ClientCounters {
	t.Helper()
	c, err := e.GetClient(context.Background(), clientID, owner)
	require.NoError(t, err)
	return c.Counters
}

func ptr[T any](v T) *T { return &v }

var errInjected = errors.New("injected failure")

// faultyStore fails chosen repository writes inside units of work
type faultyStore struct {
	store.Store
	failAddMinutes    bool
	failProfitability bool
	failApplyDelta    bool
}

func (f *faultyStore) Begin(ctx context.Context) (store.Session, error) {
	sess, err := f.Store.Begin(ctx)
	if err != nil {
		return nil, err
	}
	return &faultySession{Session: sess, f: f}, nil
}

type faultySession struct {
	store.Session
	f *faultyStore
}

func (s *faultySession) Tasks() store.TaskRepository {
	return &faultyTasks{TaskRepository: s.Session.Tasks(), f: s.f}
}

func (s *faultySession) Profitability() store.ProfitabilityRepository {
	return &faultyProfitability{ProfitabilityRepository: s.Session.Profitability(), f: s.f}
}

func (s *faultySession) Clients() store.ClientRepository {
	return &faultyClients{ClientRepository: s.Session.Clients(), f: s.f}
}

type faultyTasks struct {
	store.TaskRepository
	f *faultyStore
}

func (r *faultyTasks) AddMinutes(ctx context.Context, id, ownerID string, minutes int64, at time.Time) error {
	if r.f.failAddMinutes {
		return errInjected
	}
	return r.TaskRepository.AddMinutes(ctx, id, ownerID, minutes, at)
}

type faultyProfitability struct {
	store.ProfitabilityRepository
	f *faultyStore
}

func (r *faultyProfitability) Update(ctx context.Context, p *model.ProfitabilityRecord) error {
	if r.f.failProfitability {
		return errInjected
	}
	return r.ProfitabilityRepository.Update(ctx, p)
}

type faultyClients struct {
	store.ClientRepository
	f *faultyStore
}

func (r *faultyClients) ApplyDelta(ctx context.Context, id, ownerID string, d model.CounterDelta) error {
	if r.f.failApplyDelta {
		return errInjected
	}
	return r.ClientRepository.ApplyDelta(ctx, id, ownerID, d)
}
