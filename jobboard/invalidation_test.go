package jobboard

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jobdeck/go-querycache/event"
	"github.com/jobdeck/go-querycache/querycache"
)

func TestBindInvalidation(t *testing.T) {
	ctx := context.Background()

	client, err := querycache.NewClient(querycache.Config{Enabled: true, StaleTime: time.Minute})
	require.NoError(t, err)
	defer client.Close()

	dispatcher := event.NewDispatcher()
	defer dispatcher.Close()

	unbind := BindInvalidation(dispatcher, client)
	defer unbind()

	require.NoError(t, client.Set(ctx, ActiveJobs(), "jobs"))
	require.NoError(t, client.Set(ctx, Applications().Append("mine"), "apps"))

	require.NoError(t, dispatcher.Dispatch(ctx, NewJobCreated("7")))

	jobsSnap, err := client.Get(ctx, ActiveJobs())
	require.NoError(t, err)
	assert.Equal(t, querycache.StateStale, jobsSnap.State, "jobs entry should be invalidated")

	appsSnap, err := client.Get(ctx, Applications().Append("mine"))
	require.NoError(t, err)
	assert.Equal(t, querycache.StateFresh, appsSnap.State, "applications entry untouched by job.created")
}

func TestBindInvalidation_UnbindStopsListening(t *testing.T) {
	ctx := context.Background()

	client, err := querycache.NewClient(querycache.Config{Enabled: true, StaleTime: time.Minute})
	require.NoError(t, err)
	defer client.Close()

	dispatcher := event.NewDispatcher()
	defer dispatcher.Close()

	unbind := BindInvalidation(dispatcher, client)
	unbind()

	require.NoError(t, client.Set(ctx, ActiveJobs(), "jobs"))
	require.NoError(t, dispatcher.Dispatch(ctx, NewJobUpdated("7")))

	snap, err := client.Get(ctx, ActiveJobs())
	require.NoError(t, err)
	assert.Equal(t, querycache.StateFresh, snap.State)
}
