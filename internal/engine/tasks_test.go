package engine

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/existflow/clientpulse/internal/apperr"
	"github.com/existflow/clientpulse/internal/model"
)

func TestTaskLifecycle_Counters(t *testing.T) {
	ctx := context.Background()
	e, _, _ := setup(t)
	client := mustClient(t, e, 0, 0)

	a := mustTask(t, e, client.ID)
	b := mustTask(t, e, client.ID)
	assert.Equal(t, model.ClientCounters{TasksPending: 2}, counters(t, e, client.ID))

	moved, err := e.UpdateTaskStatus(ctx, a.ID, model.TaskInProgress, owner)
	require.NoError(t, err)
	assert.Equal(t, model.TaskInProgress, moved.Status)
	assert.Equal(t, model.ClientCounters{TasksPending: 1, TasksInProgress: 1}, counters(t, e, client.ID))

	_, err = e.UpdateTaskStatus(ctx, a.ID, model.TaskInProgress, owner)
	require.NoError(t, err)
	assert.Equal(t, model.ClientCounters{TasksPending: 1, TasksInProgress: 1}, counters(t, e, client.ID), "same status is a no-op")

	_, err = e.UpdateTaskStatus(ctx, a.ID, model.TaskCompleted, owner)
	require.NoError(t, err)
	require.NoError(t, e.DeleteTask(ctx, b.ID, owner))
	assert.Equal(t, model.ClientCounters{TasksCompleted: 1}, counters(t, e, client.ID))

	list, err := e.ListTasks(ctx, owner, &client.ID)
	require.NoError(t, err)
	assert.Len(t, list, 1)
}

func TestTaskLifecycle_Rejections(t *testing.T) {
	ctx := context.Background()
	e, _, _ := setup(t)
	client := mustClient(t, e, 0, 0)
	task := mustTask(t, e, client.ID)

	_, err := e.CreateTask(ctx, TaskInput{ClientID: client.ID}, owner)
	assert.True(t, apperr.IsValidation(err))

	_, err = e.CreateTask(ctx, TaskInput{ClientID: "ghost", Title: "x"}, owner)
	assert.True(t, apperr.IsNotFound(err))

	_, err = e.CreateTask(ctx, TaskInput{ClientID: client.ID, Title: "x", Status: "blocked"}, owner)
	assert.True(t, apperr.IsValidation(err))

	_, err = e.UpdateTaskStatus(ctx, task.ID, "done", owner)
	assert.True(t, apperr.IsValidation(err))

	err = e.DeleteTask(ctx, "ghost", owner)
	assert.True(t, apperr.IsNotFound(err))
}
