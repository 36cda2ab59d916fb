package engine

import (
	"context"
	"math/rand"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/existflow/clientpulse/internal/apperr"
	"github.com/existflow/clientpulse/internal/model"
	"github.com/existflow/clientpulse/internal/telemetry"
	"github.com/existflow/clientpulse/internal/txn"
)

// driftRecorder remembers drift kinds and repair counts
type driftRecorder struct {
	telemetry.NoOp
	mu       sync.Mutex
	kinds    []string
	repaired int
}

func (r *driftRecorder) DriftDetected(_ context.Context, kind string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.kinds = append(r.kinds, kind)
}

func (r *driftRecorder) CountersRepaired(_ context.Context, n int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.repaired += n
}

func kinds(found []apperr.DriftWarning) []string {
	out := make([]string, 0, len(found))
	for _, d := range found {
		out = append(out, d.Kind)
	}
	return out
}

func TestAfterClientDelete_Clean(t *testing.T) {
	ctx := context.Background()
	e, _, _ := setup(t)
	c := mustClient(t, e, 100, 1000)
	mustTask(t, e, c.ID)
	mustObjective(t, e, c.ID)
	mustClient(t, e, 0, 0)

	require.NoError(t, e.DeleteClient(ctx, c.ID, owner))
	assert.Empty(t, e.AfterClientDelete(ctx, owner, c.ID))
}

func TestAfterClientDelete_ReportsDrift(t *testing.T) {
	ctx := context.Background()
	db := testDB(t)
	rec := &driftRecorder{}
	e := New(txn.New(db, fastRetries()), WithRecorder(rec))

	c := mustClient(t, e, 100, 1000)
	survivor := mustClient(t, e, 0, 0)
	_, err := e.StartTimer(ctx, StartTimerInput{OwnerID: owner, ClientID: &c.ID, Billable: true})
	require.NoError(t, err)
	require.NoError(t, db.Reader().Clients().SetCounters(ctx, survivor.ID, owner, model.ClientCounters{ObjectivesCount: 2, ObjectivesPending: 1, TasksPending: -1}))

	require.NoError(t, e.DeleteClient(ctx, c.ID, owner))

	found := e.AfterClientDelete(ctx, owner, c.ID)
	assert.ElementsMatch(t, []string{DriftRunningBillableTimers, DriftNegativeCounters, DriftUnbalancedObjectives}, kinds(found))

	rec.mu.Lock()
	defer rec.mu.Unlock()
	// once from the delete itself, once from the explicit call
	assert.Len(t, rec.kinds, 6)
}

func TestVerifyOwner_DetectsAndReconcileRepairs(t *testing.T) {
	ctx := context.Background()
	db := testDB(t)
	rec := &driftRecorder{}
	e := New(txn.New(db, fastRetries()), WithRecorder(rec))

	c := mustClient(t, e, 0, 0)
	healthy := mustClient(t, e, 0, 0)
	mustTask(t, e, c.ID)
	mustTask(t, e, healthy.ID)
	o := mustObjective(t, e, c.ID)
	_, err := e.UpdateObjective(ctx, o.ID, ObjectivePatch{IsCompleted: ptr(true)}, owner)
	require.NoError(t, err)

	found, err := e.VerifyOwner(ctx, owner)
	require.NoError(t, err)
	assert.Empty(t, found)

	require.NoError(t, db.Reader().Clients().SetCounters(ctx, c.ID, owner, model.ClientCounters{ObjectivesCount: 3, ObjectivesCompleted: 3, TasksInProgress: 4}))

	found, err = e.VerifyOwner(ctx, owner)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{DriftObjectiveCount, DriftTaskCount}, kinds(found))
	for _, d := range found {
		assert.Equal(t, c.ID, d.ClientID)
	}

	report, err := e.ReconcileOnce(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, report.Checked)
	assert.Equal(t, 1, report.Repaired)
	assert.Zero(t, report.Failed)
	assert.Equal(t, model.ClientCounters{ObjectivesCount: 1, ObjectivesCompleted: 1, TasksPending: 1}, counters(t, e, c.ID))

	report, err = e.ReconcileOnce(ctx)
	require.NoError(t, err)
	assert.Zero(t, report.Repaired)

	rec.mu.Lock()
	assert.Equal(t, 1, rec.repaired)
	rec.mu.Unlock()
}

func TestVerifyOwner_RequiresOwner(t *testing.T) {
	e, _, _ := setup(t)
	_, err := e.VerifyOwner(context.Background(), "")
	assert.Error(t, err)
}

func TestReconciler_TriggerRunsPass(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	e, _, db := setup(t)
	c := mustClient(t, e, 0, 0)
	require.NoError(t, db.Reader().Clients().SetCounters(ctx, c.ID, owner, model.ClientCounters{TasksCompleted: 9}))

	r := NewReconciler(e, time.Hour)
	r.debounce = 10 * time.Millisecond
	done := make(chan error, 1)
	go func() { done <- r.Run(ctx) }()

	r.Trigger()
	r.Trigger()

	assert.Eventually(t, func() bool {
		got, err := e.GetClient(ctx, c.ID, owner)
		return err == nil && got.Counters == model.ClientCounters{}
	}, 2*time.Second, 20*time.Millisecond)

	cancel()
	assert.ErrorIs(t, <-done, context.Canceled)
}

// TestCountersConserved drives a random mix of operations and checks that
// the stored counters always match a recount of the source rows
func TestCountersConserved(t *testing.T) {
	ctx := context.Background()
	e, clock, _ := setup(t)
	rng := rand.New(rand.NewSource(42))

	clients := []*model.Client{mustClient(t, e, 80, 4000), mustClient(t, e, 0, 0), mustClient(t, e, 120, 0)}
	var objectives []*model.Objective
	var tasks []*model.Task
	statuses := []string{model.TaskPending, model.TaskInProgress, model.TaskCompleted}

	pick := func() *model.Client { return clients[rng.Intn(len(clients))] }

	for i := 0; i < 200; i++ {
		clock.Advance(time.Duration(rng.Intn(600)) * time.Second)
		switch op := rng.Intn(7); {
		case op == 0 || len(objectives) == 0:
			o, err := e.CreateObjective(ctx, ObjectiveInput{ClientID: pick().ID, Title: "o", TargetValue: 5}, owner)
			require.NoError(t, err)
			objectives = append(objectives, o)
		case op == 1:
			o := objectives[rng.Intn(len(objectives))]
			_, err := e.UpdateObjective(ctx, o.ID, ObjectivePatch{IsCompleted: ptr(rng.Intn(2) == 0)}, owner)
			require.NoError(t, err)
		case op == 2:
			o := objectives[rng.Intn(len(objectives))]
			_, err := e.UpdateObjective(ctx, o.ID, ObjectivePatch{ClientID: &pick().ID}, owner)
			require.NoError(t, err)
		case op == 3:
			idx := rng.Intn(len(objectives))
			require.NoError(t, e.DeleteObjective(ctx, objectives[idx].ID, owner))
			objectives = append(objectives[:idx], objectives[idx+1:]...)
		case op == 4 || len(tasks) == 0:
			task, err := e.CreateTask(ctx, TaskInput{ClientID: pick().ID, Title: "t", Status: statuses[rng.Intn(3)]}, owner)
			require.NoError(t, err)
			tasks = append(tasks, task)
		case op == 5:
			task := tasks[rng.Intn(len(tasks))]
			_, err := e.UpdateTaskStatus(ctx, task.ID, statuses[rng.Intn(3)], owner)
			require.NoError(t, err)
		default:
			task := tasks[rng.Intn(len(tasks))]
			timer, err := e.StartTimer(ctx, StartTimerInput{OwnerID: owner, ClientID: &task.ClientID, TaskID: &task.ID, Billable: rng.Intn(2) == 0})
			require.NoError(t, err)
			clock.Advance(time.Duration(rng.Intn(7200)) * time.Second)
			_, err = e.StopTimer(ctx, StopTimerInput{TimerID: timer.ID, OwnerID: owner})
			require.NoError(t, err)
		}

		found, err := e.VerifyOwner(ctx, owner)
		require.NoError(t, err)
		require.Empty(t, found, "drift after step %d", i)
	}

	for _, c := range clients {
		got := counters(t, e, c.ID)
		assert.True(t, got.Balanced())
		assert.Empty(t, got.Negative())
	}
}
