package engine

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/existflow/clientpulse/internal/apperr"
	"github.com/existflow/clientpulse/internal/model"
	"github.com/existflow/clientpulse/internal/store"
)

func TestCreateClient(t *testing.T) {
	ctx := context.Background()
	e, _, _ := setup(t)

	c, err := e.CreateClient(ctx, ClientInput{Name: "  Globex  "}, owner)
	require.NoError(t, err)
	assert.Equal(t, "Globex", c.Name)
	assert.Equal(t, model.ClientActive, c.Status)

	_, err = e.GetProfitability(ctx, c.ID, owner)
	assert.True(t, apperr.IsNotFound(err), "no rate, no profitability tracking")

	_, err = e.CreateClient(ctx, ClientInput{Name: ""}, owner)
	assert.True(t, apperr.IsValidation(err))
	_, err = e.CreateClient(ctx, ClientInput{Name: "x", Status: "gone"}, owner)
	assert.True(t, apperr.IsValidation(err))
	_, err = e.CreateClient(ctx, ClientInput{Name: "x", HourlyRate: -1}, owner)
	assert.True(t, apperr.IsValidation(err))
	_, err = e.CreateClient(ctx, ClientInput{Name: "x"}, "")
	assert.ErrorIs(t, err, apperr.ErrUnauthorized)
}

func TestUpdateClient_Reprices(t *testing.T) {
	ctx := context.Background()
	e, clock, _ := setup(t)
	c := mustClient(t, e, 100, 1000)

	timer, err := e.StartTimer(ctx, StartTimerInput{OwnerID: owner, ClientID: &c.ID, Billable: true})
	require.NoError(t, err)
	clock.Advance(2 * time.Hour)
	_, err = e.StopTimer(ctx, StopTimerInput{TimerID: timer.ID, OwnerID: owner})
	require.NoError(t, err)

	updated, err := e.UpdateClient(ctx, c.ID, ClientPatch{Name: ptr("Acme Corp"), HourlyRate: ptr(50.0)}, owner)
	require.NoError(t, err)
	assert.Equal(t, "Acme Corp", updated.Name)

	rec, err := e.GetProfitability(ctx, c.ID, owner)
	require.NoError(t, err)
	assert.Equal(t, 50.0, rec.HourlyRate)
	assert.Equal(t, 20.0, rec.TargetHours)
	assert.InDelta(t, 2.0, rec.ActualHours, 1e-9)
	assert.Equal(t, 900.0, rec.Profit)
}

func TestUpdateClient_StartsTrackingLazily(t *testing.T) {
	ctx := context.Background()
	e, _, _ := setup(t)
	c := mustClient(t, e, 0, 0)

	_, err := e.UpdateClient(ctx, c.ID, ClientPatch{MonthlyBudget: ptr(500.0)}, owner)
	require.NoError(t, err)
	_, err = e.GetProfitability(ctx, c.ID, owner)
	assert.True(t, apperr.IsNotFound(err), "a budget without a rate tracks nothing")

	_, err = e.UpdateClient(ctx, c.ID, ClientPatch{HourlyRate: ptr(25.0), MonthlyBudget: ptr(500.0)}, owner)
	require.NoError(t, err)
	rec, err := e.GetProfitability(ctx, c.ID, owner)
	require.NoError(t, err)
	assert.Equal(t, 20.0, rec.TargetHours)
}

func TestDeleteClient_Cascades(t *testing.T) {
	ctx := context.Background()
	e, _, db := setup(t)
	c := mustClient(t, e, 100, 1000)
	other := mustClient(t, e, 0, 0)
	mustTask(t, e, c.ID)
	mustObjective(t, e, c.ID)
	mustObjective(t, e, other.ID)

	hooked := false
	e.OnClientDelete(func() { hooked = true })

	require.NoError(t, e.DeleteClient(ctx, c.ID, owner))
	assert.True(t, hooked)

	_, err := e.GetClient(ctx, c.ID, owner)
	assert.True(t, apperr.IsNotFound(err))

	tasks, err := db.Reader().Tasks().CountByClient(ctx, owner, c.ID)
	require.NoError(t, err)
	assert.Equal(t, model.TaskCounts{}, tasks)
	objectives, err := db.Reader().Objectives().CountByClient(ctx, owner, c.ID)
	require.NoError(t, err)
	assert.Equal(t, model.ObjectiveCounts{}, objectives)
	_, err = db.Reader().Profitability().Get(ctx, owner, c.ID)
	assert.True(t, apperr.IsNotFound(err))

	assert.Equal(t, model.ClientCounters{ObjectivesCount: 1, ObjectivesPending: 1}, counters(t, e, other.ID))

	err = e.DeleteClient(ctx, c.ID, owner)
	assert.True(t, apperr.IsNotFound(err))
}

func TestDeleteClient_KeepsTimers(t *testing.T) {
	ctx := context.Background()
	e, _, _ := setup(t)
	c := mustClient(t, e, 100, 1000)
	_, err := e.StartTimer(ctx, StartTimerInput{OwnerID: owner, ClientID: &c.ID, Billable: true})
	require.NoError(t, err)

	require.NoError(t, e.DeleteClient(ctx, c.ID, owner))

	timers, err := e.ListTimers(ctx, owner, store.ListTimersOptions{ClientID: &c.ID})
	require.NoError(t, err)
	assert.Len(t, timers, 1)
}
