package consolidate

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/opencatalog/search-indexer/internal/metadata"
	"github.com/opencatalog/search-indexer/internal/model"
)

func newConsolidator(t *testing.T) *Consolidator {
	t.Helper()
	catalog, err := metadata.Default()
	require.NoError(t, err)
	return New(catalog)
}

func TestEmptyBatch(t *testing.T) {
	result := newConsolidator(t).Consolidate(nil)
	assert.Empty(t, result.Events)
	assert.Empty(t, result.Failed)
}

func TestMalformedEventsDegradePerItem(t *testing.T) {
	events := []model.ResourceEvent{
		{ID: "", Resource: "instance", Tenant: "t1", Type: model.EventCreate},
		{ID: "a", Resource: "", Tenant: "t1", Type: model.EventCreate},
		{ID: "b", Resource: "instance", Tenant: "t1", Type: model.EventCreate, New: map[string]any{"title": "ok"}},
	}
	result := newConsolidator(t).Consolidate(events)

	require.Len(t, result.Events, 1)
	assert.Equal(t, "b", result.Events[0].ID)
	assert.Len(t, result.Failed, 2)
}

func TestLastEventWinsAtFirstPosition(t *testing.T) {
	events := []model.ResourceEvent{
		{ID: "a", Resource: "instance", Tenant: "t1", Type: model.EventCreate, New: map[string]any{"v": "1"}},
		{ID: "b", Resource: "instance", Tenant: "t1", Type: model.EventCreate, New: map[string]any{"v": "1"}},
		{ID: "a", Resource: "instance", Tenant: "t1", Type: model.EventUpdate, New: map[string]any{"v": "2"}},
	}
	result := newConsolidator(t).Consolidate(events)

	require.Len(t, result.Events, 2)
	assert.Equal(t, "a", result.Events[0].ID)
	assert.Equal(t, model.EventUpdate, result.Events[0].Type)
	assert.Equal(t, "2", result.Events[0].New["v"])
	assert.Equal(t, "b", result.Events[1].ID)
}

func TestSameIDDifferentTenantsKeptApart(t *testing.T) {
	events := []model.ResourceEvent{
		{ID: "a", Resource: "instance", Tenant: "t1", Type: model.EventCreate, New: map[string]any{}},
		{ID: "a", Resource: "instance", Tenant: "t2", Type: model.EventCreate, New: map[string]any{}},
	}
	result := newConsolidator(t).Consolidate(events)
	assert.Len(t, result.Events, 2)
}

func TestDeleteCarriesIdentityOnly(t *testing.T) {
	events := []model.ResourceEvent{
		{
			ID: "a", Resource: "instance", Tenant: "t1", Type: model.EventDelete,
			Old: map[string]any{"title": "stale"},
		},
	}
	result := newConsolidator(t).Consolidate(events)

	require.Len(t, result.Events, 1)
	ev := result.Events[0]
	assert.Equal(t, model.EventDelete, ev.Type)
	assert.Nil(t, ev.New)
	assert.Nil(t, ev.Old)
}

func TestReparentedEventSplitsIntoTwo(t *testing.T) {
	events := []model.ResourceEvent{
		{
			ID: "sub1", Resource: "instance_subject", Tenant: "t1", Type: model.EventUpdate,
			Old: map[string]any{"instanceId": "old-parent", "value": "history"},
			New: map[string]any{"instanceId": "new-parent", "value": "history"},
		},
	}
	result := newConsolidator(t).Consolidate(events)

	require.Len(t, result.Events, 2)

	removal := result.Events[0]
	assert.Equal(t, "old-parent", removal.ID)
	assert.Equal(t, "instance", removal.Resource)
	assert.Equal(t, model.EventUpdate, removal.Type)
	assert.Equal(t, "old-parent", removal.New["instanceId"])

	addition := result.Events[1]
	assert.Equal(t, "new-parent", addition.ID)
	assert.Equal(t, "instance", addition.Resource)
	assert.Equal(t, model.EventCreate, addition.Type)
	assert.Equal(t, "new-parent", addition.New["instanceId"])
}

func TestUnchangedParentPassesThrough(t *testing.T) {
	events := []model.ResourceEvent{
		{
			ID: "sub1", Resource: "instance_subject", Tenant: "t1", Type: model.EventUpdate,
			Old: map[string]any{"instanceId": "p1", "value": "old"},
			New: map[string]any{"instanceId": "p1", "value": "new"},
		},
	}
	result := newConsolidator(t).Consolidate(events)

	require.Len(t, result.Events, 1)
	assert.Equal(t, "sub1", result.Events[0].ID)
}

func TestResourceWithoutParentFieldNeverSplits(t *testing.T) {
	events := []model.ResourceEvent{
		{
			ID: "auth1", Resource: "authority", Tenant: "t1", Type: model.EventUpdate,
			Old: map[string]any{"instanceId": "a"},
			New: map[string]any{"instanceId": "b"},
		},
	}
	result := newConsolidator(t).Consolidate(events)

	require.Len(t, result.Events, 1)
	assert.Equal(t, "auth1", result.Events[0].ID)
}
