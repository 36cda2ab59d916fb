package engine

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/existflow/clientpulse/internal/apperr"
	"github.com/existflow/clientpulse/internal/model"
)

func TestCreateObjective_CountsPending(t *testing.T) {
	ctx := context.Background()
	e, clock, _ := setup(t)
	client := mustClient(t, e, 0, 0)
	clock.Advance(time.Minute)

	o, err := e.CreateObjective(ctx, ObjectiveInput{ClientID: client.ID, Title: "Grow MRR", TargetValue: 200, CurrentValue: 50}, owner)
	require.NoError(t, err)
	require.NotNil(t, o.Progress)
	assert.Equal(t, 25, *o.Progress)
	assert.False(t, o.IsCompleted)
	assert.Nil(t, o.CompletedAt)

	assert.Equal(t, model.ClientCounters{ObjectivesCount: 1, ObjectivesPending: 1}, counters(t, e, client.ID))

	got, err := e.GetClient(ctx, client.ID, owner)
	require.NoError(t, err)
	assert.True(t, got.LastActivity.Equal(clock.Now()))
}

func TestCreateObjective_Rejections(t *testing.T) {
	ctx := context.Background()
	e, _, _ := setup(t)
	client := mustClient(t, e, 0, 0)

	tests := []struct {
		name  string
		in    ObjectiveInput
		check func(error) bool
	}{
		{"missing title", ObjectiveInput{ClientID: client.ID}, apperr.IsValidation},
		{"missing client", ObjectiveInput{Title: "x"}, apperr.IsValidation},
		{"negative target", ObjectiveInput{ClientID: client.ID, Title: "x", TargetValue: -1}, apperr.IsValidation},
		{"unknown client", ObjectiveInput{ClientID: "nope", Title: "x"}, apperr.IsNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := e.CreateObjective(ctx, tt.in, owner)
			assert.True(t, tt.check(err), "unexpected error %v", err)
		})
	}

	list, err := e.ListObjectives(ctx, owner, nil)
	require.NoError(t, err)
	assert.Empty(t, list)
	assert.Equal(t, model.ClientCounters{}, counters(t, e, client.ID))
}

func TestCreateObjective_ProgressBounds(t *testing.T) {
	ctx := context.Background()
	e, _, _ := setup(t)
	client := mustClient(t, e, 0, 0)

	noTarget, err := e.CreateObjective(ctx, ObjectiveInput{ClientID: client.ID, Title: "Open ended", CurrentValue: 7}, owner)
	require.NoError(t, err)
	assert.Nil(t, noTarget.Progress)

	over, err := e.CreateObjective(ctx, ObjectiveInput{ClientID: client.ID, Title: "Overshoot", TargetValue: 10, CurrentValue: 35}, owner)
	require.NoError(t, err)
	assert.Equal(t, 100, *over.Progress)
}

func TestUpdateObjective_CompletionMovesBuckets(t *testing.T) {
	ctx := context.Background()
	e, clock, _ := setup(t)
	client := mustClient(t, e, 0, 0)
	o := mustObjective(t, e, client.ID)

	clock.Advance(time.Hour)
	completedAt := clock.Now()
	done, err := e.UpdateObjective(ctx, o.ID, ObjectivePatch{IsCompleted: ptr(true), CurrentValue: ptr(10.0)}, owner)
	require.NoError(t, err)
	assert.True(t, done.IsCompleted)
	require.NotNil(t, done.CompletedAt)
	assert.True(t, done.CompletedAt.Equal(completedAt))
	assert.Equal(t, 100, *done.Progress)
	assert.Equal(t, model.ClientCounters{ObjectivesCount: 1, ObjectivesCompleted: 1}, counters(t, e, client.ID))

	clock.Advance(time.Hour)
	renamed, err := e.UpdateObjective(ctx, o.ID, ObjectivePatch{Title: ptr("Launched"), IsCompleted: ptr(true)}, owner)
	require.NoError(t, err)
	assert.True(t, renamed.CompletedAt.Equal(completedAt), "completion time is kept while completed")
	assert.Equal(t, model.ClientCounters{ObjectivesCount: 1, ObjectivesCompleted: 1}, counters(t, e, client.ID))

	reopened, err := e.UpdateObjective(ctx, o.ID, ObjectivePatch{IsCompleted: ptr(false)}, owner)
	require.NoError(t, err)
	assert.Nil(t, reopened.CompletedAt)
	assert.Equal(t, model.ClientCounters{ObjectivesCount: 1, ObjectivesPending: 1}, counters(t, e, client.ID))
}

func TestUpdateObjective_Reparent(t *testing.T) {
	ctx := context.Background()
	e, _, _ := setup(t)
	a := mustClient(t, e, 0, 0)
	b := mustClient(t, e, 0, 0)
	o := mustObjective(t, e, a.ID)

	_, err := e.UpdateObjective(ctx, o.ID, ObjectivePatch{IsCompleted: ptr(true)}, owner)
	require.NoError(t, err)

	moved, err := e.UpdateObjective(ctx, o.ID, ObjectivePatch{ClientID: &b.ID}, owner)
	require.NoError(t, err)
	assert.Equal(t, b.ID, moved.ClientID)
	assert.True(t, moved.IsCompleted)

	assert.Equal(t, model.ClientCounters{}, counters(t, e, a.ID))
	assert.Equal(t, model.ClientCounters{ObjectivesCount: 1, ObjectivesCompleted: 1}, counters(t, e, b.ID))
}

func TestUpdateObjective_ReparentAndCompleteRejected(t *testing.T) {
	ctx := context.Background()
	e, _, _ := setup(t)
	a := mustClient(t, e, 0, 0)
	b := mustClient(t, e, 0, 0)
	o := mustObjective(t, e, a.ID)

	_, err := e.UpdateObjective(ctx, o.ID, ObjectivePatch{ClientID: &b.ID, IsCompleted: ptr(true)}, owner)
	assert.True(t, apperr.IsValidation(err))

	got, err := e.GetObjective(ctx, o.ID, owner)
	require.NoError(t, err)
	assert.Equal(t, a.ID, got.ClientID)
	assert.False(t, got.IsCompleted)
	assert.Equal(t, model.ClientCounters{ObjectivesCount: 1, ObjectivesPending: 1}, counters(t, e, a.ID))
	assert.Equal(t, model.ClientCounters{}, counters(t, e, b.ID))
}

func TestUpdateObjective_ReparentToUnknownClient(t *testing.T) {
	ctx := context.Background()
	e, _, _ := setup(t)
	a := mustClient(t, e, 0, 0)
	o := mustObjective(t, e, a.ID)

	_, err := e.UpdateObjective(ctx, o.ID, ObjectivePatch{ClientID: ptr("ghost")}, owner)
	assert.True(t, apperr.IsNotFound(err))

	got, err := e.GetObjective(ctx, o.ID, owner)
	require.NoError(t, err)
	assert.Equal(t, a.ID, got.ClientID)
	assert.Equal(t, model.ClientCounters{ObjectivesCount: 1, ObjectivesPending: 1}, counters(t, e, a.ID))
}

func TestUpdateObjective_Missing(t *testing.T) {
	e, _, _ := setup(t)
	_, err := e.UpdateObjective(context.Background(), "missing", ObjectivePatch{Title: ptr("x")}, owner)
	assert.True(t, apperr.IsNotFound(err))
}

func TestUpdateObjective_RecomputesProgress(t *testing.T) {
	ctx := context.Background()
	e, _, _ := setup(t)
	client := mustClient(t, e, 0, 0)
	o := mustObjective(t, e, client.ID)

	got, err := e.UpdateObjective(ctx, o.ID, ObjectivePatch{CurrentValue: ptr(3.0)}, owner)
	require.NoError(t, err)
	assert.Equal(t, 30, *got.Progress)

	got, err = e.UpdateObjective(ctx, o.ID, ObjectivePatch{TargetValue: ptr(0.0)}, owner)
	require.NoError(t, err)
	assert.Nil(t, got.Progress)
}

func TestDeleteObjective_UsesPriorFlag(t *testing.T) {
	ctx := context.Background()
	e, _, _ := setup(t)
	client := mustClient(t, e, 0, 0)
	pending := mustObjective(t, e, client.ID)
	completed := mustObjective(t, e, client.ID)
	_, err := e.UpdateObjective(ctx, completed.ID, ObjectivePatch{IsCompleted: ptr(true)}, owner)
	require.NoError(t, err)

	require.NoError(t, e.DeleteObjective(ctx, completed.ID, owner))
	assert.Equal(t, model.ClientCounters{ObjectivesCount: 1, ObjectivesPending: 1}, counters(t, e, client.ID))

	require.NoError(t, e.DeleteObjective(ctx, pending.ID, owner))
	assert.Equal(t, model.ClientCounters{}, counters(t, e, client.ID))

	err = e.DeleteObjective(ctx, pending.ID, owner)
	assert.True(t, apperr.IsNotFound(err))
}

func TestObjectiveLifecycle_AbortsOnCounterFailure(t *testing.T) {
	ctx := context.Background()
	db := testDB(t)
	faulty := &faultyStore{Store: db}
	e, _ := newTestEngine(t, faulty)
	client := mustClient(t, e, 0, 0)

	faulty.failApplyDelta = true
	_, err := e.CreateObjective(ctx, ObjectiveInput{ClientID: client.ID, Title: "x"}, owner)
	var abort *apperr.TransactionAbortError
	require.ErrorAs(t, err, &abort)

	list, err := db.Reader().Objectives().List(ctx, owner, nil)
	require.NoError(t, err)
	assert.Empty(t, list, "objective insert must roll back with the counter update")
}
