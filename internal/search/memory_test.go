package search

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/opencatalog/search-indexer/internal/model"
)

func TestCreateIndexAssignsFreshGeneration(t *testing.T) {
	e := NewMemoryEngine()
	ctx := context.Background()

	require.NoError(t, e.CreateIndex(ctx, "idx", "{}", "{}"))
	first, err := e.IndexUUID(ctx, "idx")
	require.NoError(t, err)

	require.Error(t, e.CreateIndex(ctx, "idx", "{}", "{}"))

	require.NoError(t, e.DropIndex(ctx, "idx"))
	require.NoError(t, e.CreateIndex(ctx, "idx", "{}", "{}"))
	second, err := e.IndexUUID(ctx, "idx")
	require.NoError(t, err)
	assert.NotEqual(t, first, second)
}

func TestBulkWriteIndexAndDelete(t *testing.T) {
	e := NewMemoryEngine()
	ctx := context.Background()
	require.NoError(t, e.CreateIndex(ctx, "idx", "{}", "{}"))

	result := e.BulkWrite(ctx, []model.DocumentWrite{
		{ID: "a", Index: "idx", Action: model.ActionIndex, Body: []byte(`{"v":1}`)},
		{ID: "b", Index: "idx", Action: model.ActionIndex, Body: []byte(`{"v":2}`)},
		{ID: "a", Index: "idx", Action: model.ActionDelete},
	})
	require.False(t, result.IsError())

	count, err := e.CountDocuments(ctx, "idx")
	require.NoError(t, err)
	assert.Equal(t, 1, count)

	body, ok := e.Document("idx", "b")
	require.True(t, ok)
	assert.JSONEq(t, `{"v":2}`, string(body))
}

func TestBulkWriteMissingIndexFails(t *testing.T) {
	e := NewMemoryEngine()
	result := e.BulkWrite(context.Background(), []model.DocumentWrite{
		{ID: "a", Index: "missing", Action: model.ActionIndex, Body: []byte(`{}`)},
	})
	assert.True(t, result.IsError())
	assert.Contains(t, result.Message, "missing")
}

func TestBulkWriteFailedBatchLeavesNoPartialState(t *testing.T) {
	e := NewMemoryEngine()
	ctx := context.Background()
	require.NoError(t, e.CreateIndex(ctx, "idx", "{}", "{}"))

	result := e.BulkWrite(ctx, []model.DocumentWrite{
		{ID: "a", Index: "idx", Action: model.ActionIndex, Body: []byte(`{"v":1}`)},
		{ID: "b", Index: "missing", Action: model.ActionIndex, Body: []byte(`{"v":2}`)},
	})
	require.True(t, result.IsError())

	// The write before the bad target must not have been applied.
	_, ok := e.Document("idx", "a")
	assert.False(t, ok)
	count, err := e.CountDocuments(ctx, "idx")
	require.NoError(t, err)
	assert.Equal(t, 0, count)
}

func TestBulkWriteCopiesBody(t *testing.T) {
	e := NewMemoryEngine()
	ctx := context.Background()
	require.NoError(t, e.CreateIndex(ctx, "idx", "{}", "{}"))

	src := []byte(`{"v":1}`)
	e.BulkWrite(ctx, []model.DocumentWrite{{ID: "a", Index: "idx", Action: model.ActionIndex, Body: src}})
	src[0] = 'X'

	body, _ := e.Document("idx", "a")
	assert.JSONEq(t, `{"v":1}`, string(body))
}
