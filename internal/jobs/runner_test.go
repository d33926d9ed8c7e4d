package jobs

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/opencatalog/search-indexer/internal/model"
)

func insertRunning(t *testing.T, store *MemoryStore, tenant, id string) {
	t.Helper()
	require.NoError(t, store.Insert(context.Background(), Record{
		ID: id, Tenant: tenant, Status: model.JobInProgress,
	}))
}

func TestRunAsyncCompletesJob(t *testing.T) {
	store := NewMemoryStore()
	runner := NewRunner(store, nil)
	insertRunning(t, store, "diku", "j1")

	runner.RunAsync("diku", "j1", func(context.Context) error { return nil })
	runner.Wait()

	rec, err := store.Get(context.Background(), "diku", "j1")
	require.NoError(t, err)
	assert.Equal(t, model.JobCompleted, rec.Status)
}

func TestRunAsyncRecordsError(t *testing.T) {
	store := NewMemoryStore()
	runner := NewRunner(store, nil)
	insertRunning(t, store, "diku", "j1")

	runner.RunAsync("diku", "j1", func(context.Context) error {
		return errors.New("disk full")
	})
	runner.Wait()

	rec, err := store.Get(context.Background(), "diku", "j1")
	require.NoError(t, err)
	assert.Equal(t, model.JobError, rec.Status)
	assert.Equal(t, "disk full", rec.ErrorText)
}

func TestRunAsyncCapturesPanic(t *testing.T) {
	store := NewMemoryStore()
	runner := NewRunner(store, nil)
	insertRunning(t, store, "diku", "j1")

	runner.RunAsync("diku", "j1", func(context.Context) error {
		panic("nil map write")
	})
	runner.Wait()

	rec, err := store.Get(context.Background(), "diku", "j1")
	require.NoError(t, err)
	assert.Equal(t, model.JobError, rec.Status)
	assert.Contains(t, rec.ErrorText, "nil map write")
}

func TestTerminalStatusSticks(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()
	insertRunning(t, store, "diku", "j1")

	require.NoError(t, store.SetStatus(ctx, "diku", "j1", model.JobError, "boom"))
	require.NoError(t, store.SetStatus(ctx, "diku", "j1", model.JobCompleted, ""))

	rec, err := store.Get(ctx, "diku", "j1")
	require.NoError(t, err)
	assert.Equal(t, model.JobError, rec.Status)
	assert.Equal(t, "boom", rec.ErrorText)
}
