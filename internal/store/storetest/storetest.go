// Package storetest holds the behavioral suite every store adapter must pass
package storetest

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/existflow/clientpulse/internal/apperr"
	"github.com/existflow/clientpulse/internal/model"
	"github.com/existflow/clientpulse/internal/store"
)

// Factory returns a migrated, empty store. It registers its own cleanup
type Factory func(t *testing.T) store.Store

// Run executes the conformance suite against stores produced by newStore
func Run(t *testing.T, newStore Factory) {
	tests := []struct {
		name string
		fn   func(t *testing.T, s store.Store)
	}{
		{"Accounts", testAccounts},
		{"ClientCounters", testClientCounters},
		{"ClientTouchWithoutCounts", testClientTouch},
		{"TimerStopIsConditional", testTimerStop},
		{"ConcurrentTimerStops", testConcurrentStops},
		{"TimerListing", testTimerListing},
		{"TaskCountsAndMinutes", testTasks},
		{"ObjectiveCountsAndUpdate", testObjectives},
		{"ProfitabilityUniquePerClient", testProfitability},
		{"AbortDiscardsWrites", testAbort},
		{"OwnerScoping", testOwnerScoping},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.fn(t, newStore(t))
		})
	}
}

// Now returns a UTC instant truncated to milliseconds, the coarsest
// precision any adapter stores
func Now() time.Time {
	return time.Now().UTC().Truncate(time.Millisecond)
}

func newID() string { return uuid.New().String() }

func inTx(t *testing.T, s store.Store, fn func(tx store.Tx) error) error {
	t.Helper()
	ctx := context.Background()
	sess, err := s.Begin(ctx)
	require.NoError(t, err)
	if err := fn(sess); err != nil {
		_ = sess.Abort(ctx)
		return err
	}
	return sess.Commit(ctx)
}

// SeedClient inserts a client with zeroed counters
func SeedClient(t *testing.T, s store.Store, ownerID string) *model.Client {
	t.Helper()
	now := Now()
	c := &model.Client{
		ID:        newID(),
		OwnerID:   ownerID,
		Name:      "Acme " + newID()[:8],
		Status:    model.ClientActive,
		CreatedAt: now,
		UpdatedAt: now,
	}
	require.NoError(t, inTx(t, s, func(tx store.Tx) error {
		return tx.Clients().Create(context.Background(), c)
	}))
	return c
}

func seedRunningTimer(t *testing.T, s store.Store, ownerID string, clientID *string, started time.Time) *model.Timer {
	t.Helper()
	tm := &model.Timer{
		ID:        newID(),
		OwnerID:   ownerID,
		ClientID:  clientID,
		Billable:  clientID != nil,
		StartedAt: started,
		CreatedAt: started,
	}
	require.NoError(t, inTx(t, s, func(tx store.Tx) error {
		return tx.Timers().Create(context.Background(), tm)
	}))
	return tm
}

func testAccounts(t *testing.T, s store.Store) {
	ctx := context.Background()
	now := Now()
	owner := &model.Owner{ID: newID(), Username: "ada", Email: "ada@example.com", PasswordHash: "x", CreatedAt: now}
	require.NoError(t, s.Accounts().CreateOwner(ctx, owner))

	dup := *owner
	dup.ID = newID()
	dup.Email = "other@example.com"
	assert.ErrorIs(t, s.Accounts().CreateOwner(ctx, &dup), store.ErrDuplicate)

	got, err := s.Accounts().GetOwnerByUsername(ctx, "ada")
	require.NoError(t, err)
	assert.Equal(t, owner.ID, got.ID)

	sess := &model.Session{Token: newID(), OwnerID: owner.ID, ExpiresAt: now.Add(time.Hour), CreatedAt: now}
	require.NoError(t, s.Accounts().CreateSession(ctx, sess))
	gotSess, err := s.Accounts().GetSession(ctx, sess.Token)
	require.NoError(t, err)
	assert.Equal(t, owner.ID, gotSess.OwnerID)
	assert.True(t, gotSess.ExpiresAt.Equal(sess.ExpiresAt))

	require.NoError(t, s.Accounts().DeleteSession(ctx, sess.Token))
	_, err = s.Accounts().GetSession(ctx, sess.Token)
	assert.True(t, apperr.IsNotFound(err))
}

func testClientCounters(t *testing.T, s store.Store) {
	ctx := context.Background()
	owner := newID()
	c := SeedClient(t, s, owner)
	at := Now().Add(time.Minute)

	delta := model.ObjectiveAdded(false).Plus(model.TaskAdded(model.TaskInProgress)).Plus(model.Touch(at))
	require.NoError(t, inTx(t, s, func(tx store.Tx) error {
		return tx.Clients().ApplyDelta(ctx, c.ID, owner, delta)
	}))

	got, err := s.Reader().Clients().Get(ctx, c.ID, owner)
	require.NoError(t, err)
	assert.Equal(t, model.ClientCounters{
		ObjectivesCount:   1,
		ObjectivesPending: 1,
		TasksInProgress:   1,
	}, got.Counters)
	require.NotNil(t, got.LastActivity)
	assert.True(t, got.LastActivity.Equal(at))

	require.NoError(t, inTx(t, s, func(tx store.Tx) error {
		return tx.Clients().SetCounters(ctx, c.ID, owner, model.ClientCounters{TasksCompleted: 3})
	}))
	got, err = s.Reader().Clients().Get(ctx, c.ID, owner)
	require.NoError(t, err)
	assert.Equal(t, model.ClientCounters{TasksCompleted: 3}, got.Counters)

	err = inTx(t, s, func(tx store.Tx) error {
		return tx.Clients().ApplyDelta(ctx, newID(), owner, model.TaskAdded(model.TaskPending))
	})
	assert.True(t, apperr.IsNotFound(err))
}

func testClientTouch(t *testing.T, s store.Store) {
	ctx := context.Background()
	owner := newID()
	c := SeedClient(t, s, owner)
	at := Now().Add(time.Hour)

	require.NoError(t, inTx(t, s, func(tx store.Tx) error {
		return tx.Clients().ApplyDelta(ctx, c.ID, owner, model.Touch(at))
	}))

	got, err := s.Reader().Clients().Get(ctx, c.ID, owner)
	require.NoError(t, err)
	assert.Equal(t, model.ClientCounters{}, got.Counters)
	require.NotNil(t, got.LastActivity)
	assert.True(t, got.LastActivity.Equal(at))
	assert.True(t, got.UpdatedAt.Equal(at))
}

func testTimerStop(t *testing.T, s store.Store) {
	ctx := context.Background()
	owner := newID()
	started := Now().Add(-time.Hour)
	tm := seedRunningTimer(t, s, owner, nil, started)

	running, err := s.Reader().Timers().GetRunning(ctx, tm.ID, owner)
	require.NoError(t, err)
	assert.True(t, running.IsRunning())

	ended := started.Add(90 * time.Minute)
	require.NoError(t, inTx(t, s, func(tx store.Tx) error {
		return tx.Timers().MarkStopped(ctx, tm.ID, owner, ended, 5400)
	}))

	err = inTx(t, s, func(tx store.Tx) error {
		return tx.Timers().MarkStopped(ctx, tm.ID, owner, ended, 5400)
	})
	assert.True(t, apperr.IsNotFound(err), "second stop must not match")

	_, err = s.Reader().Timers().GetRunning(ctx, tm.ID, owner)
	assert.True(t, apperr.IsNotFound(err))

	got, err := s.Reader().Timers().Get(ctx, tm.ID, owner)
	require.NoError(t, err)
	require.NotNil(t, got.EndedAt)
	require.NotNil(t, got.Duration)
	assert.True(t, got.EndedAt.Equal(ended))
	assert.Equal(t, int64(5400), *got.Duration)

	require.NoError(t, inTx(t, s, func(tx store.Tx) error {
		return tx.Timers().SetDuration(ctx, tm.ID, owner, 3600)
	}))
	got, err = s.Reader().Timers().Get(ctx, tm.ID, owner)
	require.NoError(t, err)
	assert.Equal(t, int64(3600), *got.Duration)
}

func testConcurrentStops(t *testing.T, s store.Store) {
	ctx := context.Background()
	owner := newID()
	tm := seedRunningTimer(t, s, owner, nil, Now().Add(-time.Minute))

	const workers = 8
	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		success int
	)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			sess, err := s.Begin(ctx)
			if err != nil {
				return
			}
			if err := sess.Timers().MarkStopped(ctx, tm.ID, owner, Now(), 60); err != nil {
				_ = sess.Abort(ctx)
				return
			}
			if err := sess.Commit(ctx); err != nil {
				return
			}
			mu.Lock()
			success++
			mu.Unlock()
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, success)
}

func testTimerListing(t *testing.T, s store.Store) {
	ctx := context.Background()
	owner := newID()
	client := newID()
	base := Now().Add(-3 * time.Hour)

	a := seedRunningTimer(t, s, owner, &client, base)
	b := seedRunningTimer(t, s, owner, nil, base.Add(time.Hour))
	c := seedRunningTimer(t, s, owner, &client, base.Add(2*time.Hour))
	require.NoError(t, inTx(t, s, func(tx store.Tx) error {
		return tx.Timers().MarkStopped(ctx, a.ID, owner, base.Add(30*time.Minute), 1800)
	}))

	all, err := s.Reader().Timers().List(ctx, owner, store.ListTimersOptions{})
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, []string{c.ID, b.ID, a.ID}, []string{all[0].ID, all[1].ID, all[2].ID})

	running, err := s.Reader().Timers().List(ctx, owner, store.ListTimersOptions{RunningOnly: true, ClientID: &client})
	require.NoError(t, err)
	require.Len(t, running, 1)
	assert.Equal(t, c.ID, running[0].ID)

	limited, err := s.Reader().Timers().List(ctx, owner, store.ListTimersOptions{Limit: 2})
	require.NoError(t, err)
	assert.Len(t, limited, 2)

	n, err := s.Reader().Timers().CountRunningBillable(ctx, owner, client)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
}

func testTasks(t *testing.T, s store.Store) {
	ctx := context.Background()
	owner := newID()
	c := SeedClient(t, s, owner)
	now := Now()

	statuses := []string{model.TaskPending, model.TaskPending, model.TaskInProgress, model.TaskCompleted}
	var ids []string
	require.NoError(t, inTx(t, s, func(tx store.Tx) error {
		for i, st := range statuses {
			task := &model.Task{
				ID:        newID(),
				OwnerID:   owner,
				ClientID:  c.ID,
				Title:     "task",
				Status:    st,
				CreatedAt: now.Add(time.Duration(i) * time.Second),
				UpdatedAt: now,
			}
			if err := tx.Tasks().Create(ctx, task); err != nil {
				return err
			}
			ids = append(ids, task.ID)
		}
		return nil
	}))

	counts, err := s.Reader().Tasks().CountByClient(ctx, owner, c.ID)
	require.NoError(t, err)
	assert.Equal(t, model.TaskCounts{Pending: 2, InProgress: 1, Completed: 1}, counts)

	require.NoError(t, inTx(t, s, func(tx store.Tx) error {
		if err := tx.Tasks().AddMinutes(ctx, ids[0], owner, 25, now); err != nil {
			return err
		}
		if err := tx.Tasks().AddMinutes(ctx, ids[0], owner, 5, now); err != nil {
			return err
		}
		return tx.Tasks().UpdateStatus(ctx, ids[0], owner, model.TaskCompleted, now)
	}))

	got, err := s.Reader().Tasks().Get(ctx, ids[0], owner)
	require.NoError(t, err)
	assert.Equal(t, int64(30), got.ActualMinutes)
	assert.Equal(t, model.TaskCompleted, got.Status)

	listed, err := s.Reader().Tasks().List(ctx, owner, &c.ID)
	require.NoError(t, err)
	assert.Len(t, listed, 4)

	var deleted int64
	require.NoError(t, inTx(t, s, func(tx store.Tx) error {
		var err error
		deleted, err = tx.Tasks().DeleteByClient(ctx, owner, c.ID)
		return err
	}))
	assert.Equal(t, int64(4), deleted)

	err = inTx(t, s, func(tx store.Tx) error {
		return tx.Tasks().AddMinutes(ctx, ids[1], owner, 1, now)
	})
	assert.True(t, apperr.IsNotFound(err))
}

func testObjectives(t *testing.T, s store.Store) {
	ctx := context.Background()
	owner := newID()
	c := SeedClient(t, s, owner)
	now := Now()

	o := &model.Objective{
		ID:           newID(),
		OwnerID:      owner,
		ClientID:     c.ID,
		Title:        "Ship v1",
		TargetValue:  10,
		CurrentValue: 4,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	o.Refresh()
	other := &model.Objective{
		ID:          newID(),
		OwnerID:     owner,
		ClientID:    c.ID,
		Title:       "Done already",
		IsCompleted: true,
		CompletedAt: &now,
		CreatedAt:   now.Add(time.Second),
		UpdatedAt:   now,
	}
	require.NoError(t, inTx(t, s, func(tx store.Tx) error {
		if err := tx.Objectives().Create(ctx, o); err != nil {
			return err
		}
		return tx.Objectives().Create(ctx, other)
	}))

	counts, err := s.Reader().Objectives().CountByClient(ctx, owner, c.ID)
	require.NoError(t, err)
	assert.Equal(t, model.ObjectiveCounts{Total: 2, Completed: 1}, counts)

	got, err := s.Reader().Objectives().Get(ctx, o.ID, owner)
	require.NoError(t, err)
	require.NotNil(t, got.Progress)
	assert.Equal(t, 40, *got.Progress)
	assert.Nil(t, got.CompletedAt)

	got.CurrentValue = 12
	got.Refresh()
	got.SetCompleted(true, now)
	got.UpdatedAt = now
	require.NoError(t, inTx(t, s, func(tx store.Tx) error {
		return tx.Objectives().Update(ctx, got)
	}))

	again, err := s.Reader().Objectives().Get(ctx, o.ID, owner)
	require.NoError(t, err)
	assert.Equal(t, 100, *again.Progress)
	assert.True(t, again.IsCompleted)
	require.NotNil(t, again.CompletedAt)

	require.NoError(t, inTx(t, s, func(tx store.Tx) error {
		return tx.Objectives().Delete(ctx, other.ID, owner)
	}))
	counts, err = s.Reader().Objectives().CountByClient(ctx, owner, c.ID)
	require.NoError(t, err)
	assert.Equal(t, model.ObjectiveCounts{Total: 1, Completed: 1}, counts)
}

func testProfitability(t *testing.T, s store.Store) {
	ctx := context.Background()
	owner := newID()
	c := SeedClient(t, s, owner)
	now := Now()

	rec := model.NewProfitabilityRecord(newID(), owner, c.ID, 100, 1000, now)
	require.NoError(t, inTx(t, s, func(tx store.Tx) error {
		return tx.Profitability().Create(ctx, &rec)
	}))

	dup := model.NewProfitabilityRecord(newID(), owner, c.ID, 50, 500, now)
	err := inTx(t, s, func(tx store.Tx) error {
		return tx.Profitability().Create(ctx, &dup)
	})
	assert.ErrorIs(t, err, store.ErrDuplicate)

	updated := rec.AddHours(5, now)
	require.NoError(t, inTx(t, s, func(tx store.Tx) error {
		return tx.Profitability().Update(ctx, &updated)
	}))

	got, err := s.Reader().Profitability().Get(ctx, owner, c.ID)
	require.NoError(t, err)
	assert.InDelta(t, 5.0, got.ActualHours, 1e-9)
	assert.InDelta(t, 500.0, got.Profit, 1e-9)
	assert.InDelta(t, 5.0, got.RemainingHours, 1e-9)

	_, err = s.Reader().Profitability().Get(ctx, owner, newID())
	assert.True(t, apperr.IsNotFound(err))
}

func testAbort(t *testing.T, s store.Store) {
	ctx := context.Background()
	owner := newID()
	c := SeedClient(t, s, owner)

	sess, err := s.Begin(ctx)
	require.NoError(t, err)
	require.NoError(t, sess.Clients().ApplyDelta(ctx, c.ID, owner, model.TaskAdded(model.TaskPending)))
	require.NoError(t, sess.Abort(ctx))

	got, err := s.Reader().Clients().Get(ctx, c.ID, owner)
	require.NoError(t, err)
	assert.Equal(t, int64(0), got.Counters.TasksPending)
}

func testOwnerScoping(t *testing.T, s store.Store) {
	ctx := context.Background()
	owner := newID()
	c := SeedClient(t, s, owner)

	_, err := s.Reader().Clients().Get(ctx, c.ID, newID())
	assert.True(t, apperr.IsNotFound(err))

	err = inTx(t, s, func(tx store.Tx) error {
		return tx.Clients().Delete(ctx, c.ID, newID())
	})
	assert.True(t, apperr.IsNotFound(err))

	list, err := s.Reader().Clients().List(ctx, owner)
	require.NoError(t, err)
	assert.Len(t, list, 1)
}
