package consortium

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/opencatalog/search-indexer/internal/metadata"
	"github.com/opencatalog/search-indexer/internal/model"
	"github.com/opencatalog/search-indexer/pkg/config"
	apperrors "github.com/opencatalog/search-indexer/pkg/errors"
)

func newTestAggregator(t *testing.T) (*Aggregator, *MemoryStore) {
	t.Helper()
	store := NewMemoryStore()
	tenants := NewConfigTenantProvider(config.ConsortiumConfig{
		Consortia: []config.Consortium{{CentralTenant: "central", Members: []string{"m1", "m2"}}},
	})
	catalog, err := metadata.Default()
	require.NoError(t, err)
	agg := NewAggregator(store, catalog, tenants, nil)

	// Deterministic, strictly increasing clock for last-writer-wins.
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	step := 0
	agg.now = func() time.Time {
		step++
		return base.Add(time.Duration(step) * time.Second)
	}
	return agg, store
}

func upsert(id, tenant, title string) model.ResourceEvent {
	return model.ResourceEvent{
		ID: id, Resource: "instance", Tenant: tenant, Type: model.EventUpdate,
		New: map[string]any{"id": id, "title": title},
	}
}

func TestStandaloneTenantRejected(t *testing.T) {
	agg, _ := newTestAggregator(t)
	_, err := agg.MergeAndWrite(context.Background(), "loner", []model.ResourceEvent{upsert("a", "loner", "x")})
	require.Error(t, err)
	assert.ErrorIs(t, err, apperrors.ErrValidation)
}

func TestLastWriterWinsAcrossMembers(t *testing.T) {
	agg, _ := newTestAggregator(t)
	ctx := context.Background()

	_, err := agg.MergeAndWrite(ctx, "m1", []model.ResourceEvent{upsert("a", "m1", "from m1")})
	require.NoError(t, err)

	writes, err := agg.MergeAndWrite(ctx, "m2", []model.ResourceEvent{upsert("a", "m2", "from m2")})
	require.NoError(t, err)
	require.Len(t, writes, 1)

	w := writes[0]
	assert.Equal(t, model.ActionIndex, w.Action)
	assert.Equal(t, "instance_central", w.Index)

	var body map[string]any
	require.NoError(t, json.Unmarshal(w.Body, &body))
	assert.Equal(t, "from m2", body["title"])
	assert.Equal(t, true, body["shared"])
	assert.Equal(t, []any{"m1", "m2"}, body["memberTenants"])
}

func TestDeleteKeepsDocumentWhileOtherClaimsRemain(t *testing.T) {
	agg, _ := newTestAggregator(t)
	ctx := context.Background()

	_, err := agg.MergeAndWrite(ctx, "m1", []model.ResourceEvent{upsert("a", "m1", "from m1")})
	require.NoError(t, err)
	_, err = agg.MergeAndWrite(ctx, "m2", []model.ResourceEvent{upsert("a", "m2", "from m2")})
	require.NoError(t, err)

	writes, err := agg.MergeAndWrite(ctx, "m2", []model.ResourceEvent{
		{ID: "a", Resource: "instance", Tenant: "m2", Type: model.EventDelete},
	})
	require.NoError(t, err)
	require.Len(t, writes, 1)

	w := writes[0]
	assert.Equal(t, model.ActionIndex, w.Action)

	var body map[string]any
	require.NoError(t, json.Unmarshal(w.Body, &body))
	assert.Equal(t, "from m1", body["title"])
	assert.Equal(t, []any{"m1"}, body["memberTenants"])
}

func TestDeleteOfLastClaimRemovesDocument(t *testing.T) {
	agg, _ := newTestAggregator(t)
	ctx := context.Background()

	_, err := agg.MergeAndWrite(ctx, "m1", []model.ResourceEvent{upsert("a", "m1", "only claim")})
	require.NoError(t, err)

	writes, err := agg.MergeAndWrite(ctx, "m1", []model.ResourceEvent{
		{ID: "a", Resource: "instance", Tenant: "m1", Type: model.EventDelete},
	})
	require.NoError(t, err)
	require.Len(t, writes, 1)
	assert.Equal(t, model.ActionDelete, writes[0].Action)
	assert.Equal(t, "instance_central", writes[0].Index)
}

func TestCentralTenantWritesThroughAggregator(t *testing.T) {
	agg, _ := newTestAggregator(t)
	writes, err := agg.MergeAndWrite(context.Background(), "central", []model.ResourceEvent{upsert("a", "central", "central copy")})
	require.NoError(t, err)
	require.Len(t, writes, 1)
	assert.Equal(t, "instance_central", writes[0].Index)
}

func TestSecondaryResourceClaimsTargetPrimaryCentralIndex(t *testing.T) {
	agg, _ := newTestAggregator(t)
	ctx := context.Background()

	writes, err := agg.MergeAndWrite(ctx, "m1", []model.ResourceEvent{{
		ID: "s1", Resource: "instance_subject", Tenant: "m1", Type: model.EventCreate,
		New: map[string]any{"id": "s1", "value": "maps"},
	}})
	require.NoError(t, err)
	require.Len(t, writes, 1)
	assert.Equal(t, "instance", writes[0].Resource)
	assert.Equal(t, "instance_central", writes[0].Index)

	writes, err = agg.MergeAndWrite(ctx, "m1", []model.ResourceEvent{{
		ID: "s1", Resource: "instance_subject", Tenant: "m1", Type: model.EventDelete,
	}})
	require.NoError(t, err)
	require.Len(t, writes, 1)
	assert.Equal(t, model.ActionDelete, writes[0].Action)
	assert.Equal(t, "instance", writes[0].Resource)
	assert.Equal(t, "instance_central", writes[0].Index)
}

func TestEqualTimestampClaimsPickStableWinner(t *testing.T) {
	agg, _ := newTestAggregator(t)
	ctx := context.Background()

	// Frozen clock: both members claim at the same instant, so recency
	// cannot pick the winner.
	agg.now = func() time.Time { return time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC) }

	_, err := agg.MergeAndWrite(ctx, "m1", []model.ResourceEvent{upsert("a", "m1", "from m1")})
	require.NoError(t, err)

	// Rebuild repeatedly: the winner must not depend on claim order.
	for i := 0; i < 5; i++ {
		writes, err := agg.MergeAndWrite(ctx, "m2", []model.ResourceEvent{upsert("a", "m2", "from m2")})
		require.NoError(t, err)
		require.Len(t, writes, 1)

		var body map[string]any
		require.NoError(t, json.Unmarshal(writes[0].Body, &body))
		assert.Equal(t, "from m1", body["title"])
	}
}

func TestDeleteAllClearsProvenance(t *testing.T) {
	agg, store := newTestAggregator(t)
	ctx := context.Background()

	_, err := agg.MergeAndWrite(ctx, "m1", []model.ResourceEvent{upsert("a", "m1", "x"), upsert("b", "m1", "y")})
	require.NoError(t, err)

	require.NoError(t, agg.DeleteAll(ctx, "central"))

	claims, err := store.Claims(ctx, "central", "a")
	require.NoError(t, err)
	assert.Empty(t, claims)
}
