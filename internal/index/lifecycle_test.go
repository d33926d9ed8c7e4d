package index

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/opencatalog/search-indexer/internal/metadata"
	"github.com/opencatalog/search-indexer/internal/model"
	"github.com/opencatalog/search-indexer/internal/search"
	apperrors "github.com/opencatalog/search-indexer/pkg/errors"
)

func newLifecycle(t *testing.T) (*Service, *search.MemoryEngine) {
	t.Helper()
	catalog, err := metadata.Default()
	require.NoError(t, err)
	engine := search.NewMemoryEngine()
	return NewService(engine, catalog, StaticMappings{}, testDefaults), engine
}

func TestCreateIndexUnknownResource(t *testing.T) {
	svc, engine := newLifecycle(t)
	err := svc.CreateIndex(context.Background(), "ghost", "diku", nil)

	require.Error(t, err)
	assert.ErrorIs(t, err, apperrors.ErrResourceNotFound)
	assert.Contains(t, err.Error(),
		"Index cannot be created for the resource because resource description is not found.")

	exists, _ := engine.IndexExists(context.Background(), "ghost_diku")
	assert.False(t, exists)
}

func TestCreateIndexIsIdempotent(t *testing.T) {
	svc, engine := newLifecycle(t)
	ctx := context.Background()

	require.NoError(t, svc.CreateIndex(ctx, "instance", "diku", nil))
	firstUUID, err := engine.IndexUUID(ctx, "instance_diku")
	require.NoError(t, err)

	// Second create is a no-op success, not a recreation.
	require.NoError(t, svc.CreateIndex(ctx, "instance", "diku", nil))
	secondUUID, err := engine.IndexUUID(ctx, "instance_diku")
	require.NoError(t, err)
	assert.Equal(t, firstUUID, secondUUID)
}

func TestRecreateChangesIndexIdentity(t *testing.T) {
	svc, engine := newLifecycle(t)
	ctx := context.Background()

	require.NoError(t, svc.CreateIndex(ctx, "instance", "diku", nil))
	before, err := engine.IndexUUID(ctx, "instance_diku")
	require.NoError(t, err)

	require.NoError(t, svc.Recreate(ctx, "instance", "diku", nil))
	after, err := engine.IndexUUID(ctx, "instance_diku")
	require.NoError(t, err)
	assert.NotEqual(t, before, after)

	count, err := engine.CountDocuments(ctx, "instance_diku")
	require.NoError(t, err)
	assert.Zero(t, count)
}

func TestDropMissingIndexIsNoOp(t *testing.T) {
	svc, _ := newLifecycle(t)
	assert.NoError(t, svc.DropIndex(context.Background(), "instance", "diku"))
}

func TestUpdateMappingsUnknownResource(t *testing.T) {
	svc, _ := newLifecycle(t)
	err := svc.UpdateMappings(context.Background(), "ghost", "diku")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Mappings cannot be updated, resource name is invalid.")
}

func TestUpdateIndexSettingsUnknownResource(t *testing.T) {
	svc, _ := newLifecycle(t)
	err := svc.UpdateIndexSettings(context.Background(), "ghost", "diku", nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Index Settings cannot be updated, resource name is invalid.")
}

func TestUpdateIndexSettingsAppliesDynamicFields(t *testing.T) {
	svc, engine := newLifecycle(t)
	ctx := context.Background()
	require.NoError(t, svc.CreateIndex(ctx, "instance", "diku", nil))

	replicas, refresh := 1, -1
	require.NoError(t, svc.UpdateIndexSettings(ctx, "instance", "diku", &model.DynamicSettings{
		NumberOfReplicas: &replicas,
		RefreshInterval:  &refresh,
	}))

	settings, ok := engine.Settings("instance_diku")
	require.True(t, ok)
	assert.JSONEq(t, `{"index":{"number_of_replicas":1,"refresh_interval":"-1"}}`, settings)
}
