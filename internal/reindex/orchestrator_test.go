package reindex

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/opencatalog/search-indexer/internal/consortium"
	"github.com/opencatalog/search-indexer/internal/index"
	"github.com/opencatalog/search-indexer/internal/metadata"
	"github.com/opencatalog/search-indexer/internal/model"
	"github.com/opencatalog/search-indexer/internal/search"
	"github.com/opencatalog/search-indexer/pkg/config"
	apperrors "github.com/opencatalog/search-indexer/pkg/errors"
)

type fakeClient struct {
	uris []string
}

func (f *fakeClient) SubmitReindex(_ context.Context, uri string) (model.ReindexJob, error) {
	f.uris = append(f.uris, uri)
	return model.ReindexJob{ID: "remote-job", JobStatus: model.JobInProgress, SubmittedDate: time.Now()}, nil
}

type fakeTree struct {
	engine *search.MemoryEngine
	roots  []string
	// resource -> document count to write during repopulation
	fixture map[string]int
}

func (f *fakeTree) ReindexAll(ctx context.Context, tenant, root string) error {
	f.roots = append(f.roots, root)
	for resource, count := range f.fixture {
		var writes []model.DocumentWrite
		for i := 0; i < count; i++ {
			writes = append(writes, model.DocumentWrite{
				ID:       resource + string(rune('a'+i)),
				Resource: resource,
				Index:    index.IndexName(resource, tenant),
				Action:   model.ActionIndex,
				Body:     []byte(`{}`),
			})
		}
		if result := f.engine.BulkWrite(ctx, writes); result.IsError() {
			return assert.AnError
		}
	}
	return nil
}

type fakeCleaner struct {
	cleared []string
}

func (f *fakeCleaner) DeleteAll(_ context.Context, centralTenant string) error {
	f.cleared = append(f.cleared, centralTenant)
	return nil
}

type fixture struct {
	orchestrator *Orchestrator
	engine       *search.MemoryEngine
	lifecycle    *index.Service
	client       *fakeClient
	tree         *fakeTree
	cleaner      *fakeCleaner
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	catalog, err := metadata.Default()
	require.NoError(t, err)

	engine := search.NewMemoryEngine()
	lifecycle := index.NewService(engine, catalog, index.StaticMappings{}, config.EngineConfig{
		NumberOfShards: 4, NumberOfReplicas: 2, RefreshInterval: 1,
	})
	tenants := consortium.NewConfigTenantProvider(config.ConsortiumConfig{
		Consortia: []config.Consortium{{CentralTenant: "central", Members: []string{"m1"}}},
	})
	client := &fakeClient{}
	tree := &fakeTree{
		engine: engine,
		fixture: map[string]int{
			"location": 3, "campus": 2, "library": 2, "institution": 2,
		},
	}
	cleaner := &fakeCleaner{}

	return &fixture{
		orchestrator: NewOrchestrator(catalog, lifecycle, tenants, cleaner, tree, client, config.ReindexConfig{
			Endpoints: map[string]string{},
		}, nil),
		engine:    engine,
		lifecycle: lifecycle,
		client:    client,
		tree:      tree,
		cleaner:   cleaner,
	}
}

func TestUnknownResourceFailsValidationWithoutSideEffects(t *testing.T) {
	f := newFixture(t)
	_, err := f.orchestrator.Reindex(context.Background(), "diku", model.ReindexRequest{ResourceName: "ghost"})

	require.Error(t, err)
	assert.ErrorIs(t, err, apperrors.ErrValidation)
	assert.Contains(t, err.Error(), "Unexpected value 'ghost'")
	assert.Empty(t, f.client.uris)
	assert.Empty(t, f.tree.roots)
}

func TestSecondaryResourceRejected(t *testing.T) {
	f := newFixture(t)
	_, err := f.orchestrator.Reindex(context.Background(), "diku", model.ReindexRequest{ResourceName: "contributor"})

	require.Error(t, err)
	assert.ErrorIs(t, err, apperrors.ErrSecondaryResource)
	assert.Contains(t, err.Error(), "Unexpected value 'contributor'")
	assert.Empty(t, f.client.uris)
}

func TestExternalReindexSubmitsTrigger(t *testing.T) {
	f := newFixture(t)
	job, err := f.orchestrator.Reindex(context.Background(), "diku", model.ReindexRequest{ResourceName: "authority"})

	require.NoError(t, err)
	assert.Equal(t, model.JobInProgress, job.JobStatus)
	assert.Equal(t, []string{"http://authority-storage/reindex"}, f.client.uris)
}

func TestExternalRecreateDropsAndRecreates(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	require.NoError(t, f.lifecycle.CreateIndex(ctx, "authority", "diku", nil))
	before, err := f.engine.IndexUUID(ctx, "authority_diku")
	require.NoError(t, err)

	_, err = f.orchestrator.Reindex(ctx, "diku", model.ReindexRequest{ResourceName: "authority", RecreateIndex: true})
	require.NoError(t, err)

	after, err := f.engine.IndexUUID(ctx, "authority_diku")
	require.NoError(t, err)
	assert.NotEqual(t, before, after)
	assert.Len(t, f.client.uris, 1)
}

func TestInstanceRecreateClearsConsortiumShadowState(t *testing.T) {
	f := newFixture(t)
	_, err := f.orchestrator.Reindex(context.Background(), "central", model.ReindexRequest{ResourceName: "instance", RecreateIndex: true})

	require.NoError(t, err)
	assert.Equal(t, []string{"central"}, f.cleaner.cleared)
}

func TestStandaloneInstanceRecreateSkipsShadowClear(t *testing.T) {
	f := newFixture(t)
	_, err := f.orchestrator.Reindex(context.Background(), "diku", model.ReindexRequest{ResourceName: "instance", RecreateIndex: true})

	require.NoError(t, err)
	assert.Empty(t, f.cleaner.cleared)
}

func TestMemberTenantSharedResourceIsPureAck(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	require.NoError(t, f.lifecycle.CreateIndex(ctx, "instance", "central", nil))
	before, err := f.engine.IndexUUID(ctx, "instance_central")
	require.NoError(t, err)

	job, err := f.orchestrator.Reindex(ctx, "m1", model.ReindexRequest{ResourceName: "instance", RecreateIndex: true})
	require.NoError(t, err)
	assert.Equal(t, model.JobCompleted, job.JobStatus)
	assert.Empty(t, f.client.uris)
	assert.Empty(t, f.cleaner.cleared)

	after, err := f.engine.IndexUUID(ctx, "instance_central")
	require.NoError(t, err)
	assert.Equal(t, before, after)
}

func TestMemberTenantUnsharedResourceStillReindexes(t *testing.T) {
	f := newFixture(t)
	_, err := f.orchestrator.Reindex(context.Background(), "m1", model.ReindexRequest{ResourceName: "authority"})
	require.NoError(t, err)
	assert.Len(t, f.client.uris, 1)
}

func TestTreeRecreateRepopulatesSynchronously(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	job, err := f.orchestrator.Reindex(ctx, "diku", model.ReindexRequest{ResourceName: "location", RecreateIndex: true})
	require.NoError(t, err)
	assert.Equal(t, model.JobCompleted, job.JobStatus)
	assert.Equal(t, []string{"location"}, f.tree.roots)

	expected := map[string]int{"location": 3, "campus": 2, "library": 2, "institution": 2}
	for resource, want := range expected {
		count, err := f.engine.CountDocuments(ctx, index.IndexName(resource, "diku"))
		require.NoError(t, err)
		assert.Equal(t, want, count, resource)
	}
}

func TestStructuralRecreateLeavesEmptyIndexWithNewIdentity(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	require.NoError(t, f.lifecycle.CreateIndex(ctx, "linked_data_work", "diku", nil))
	f.engine.BulkWrite(ctx, []model.DocumentWrite{{
		ID: "w1", Resource: "linked_data_work", Index: "linked_data_work_diku",
		Action: model.ActionIndex, Body: []byte(`{}`),
	}})
	before, err := f.engine.IndexUUID(ctx, "linked_data_work_diku")
	require.NoError(t, err)

	job, err := f.orchestrator.Reindex(ctx, "diku", model.ReindexRequest{ResourceName: "linked_data_work", RecreateIndex: true})
	require.NoError(t, err)
	assert.Equal(t, model.JobCompleted, job.JobStatus)

	after, err := f.engine.IndexUUID(ctx, "linked_data_work_diku")
	require.NoError(t, err)
	assert.NotEqual(t, before, after)

	count, err := f.engine.CountDocuments(ctx, "linked_data_work_diku")
	require.NoError(t, err)
	assert.Zero(t, count)
}

func TestStructuralWithoutRecreateIsPureAck(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	require.NoError(t, f.lifecycle.CreateIndex(ctx, "linked_data_work", "diku", nil))
	f.engine.BulkWrite(ctx, []model.DocumentWrite{{
		ID: "w1", Resource: "linked_data_work", Index: "linked_data_work_diku",
		Action: model.ActionIndex, Body: []byte(`{}`),
	}})
	before, err := f.engine.IndexUUID(ctx, "linked_data_work_diku")
	require.NoError(t, err)

	job, err := f.orchestrator.Reindex(ctx, "diku", model.ReindexRequest{ResourceName: "linked_data_work"})
	require.NoError(t, err)
	assert.Equal(t, model.JobCompleted, job.JobStatus)

	after, err := f.engine.IndexUUID(ctx, "linked_data_work_diku")
	require.NoError(t, err)
	assert.Equal(t, before, after)

	count, err := f.engine.CountDocuments(ctx, "linked_data_work_diku")
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestAllResourcesRecreateTouchesEachIndexOnce(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	job, err := f.orchestrator.Reindex(ctx, "diku", model.ReindexRequest{RecreateIndex: true})
	require.NoError(t, err)
	// External producers report in progress; the aggregate job reflects that.
	assert.Equal(t, model.JobInProgress, job.JobStatus)

	// instance + authority triggers submitted.
	assert.Len(t, f.client.uris, 2)
	// Tree repopulated once.
	assert.Equal(t, []string{"location"}, f.tree.roots)

	for _, name := range []string{
		"instance", "instance_subject", "contributor", "authority",
		"location", "campus", "library", "institution",
		"linked_data_work", "linked_data_authority",
	} {
		exists, err := f.engine.IndexExists(ctx, index.IndexName(name, "diku"))
		require.NoError(t, err)
		assert.True(t, exists, name)
	}
}

func TestEndpointResolutionOrder(t *testing.T) {
	catalog, err := metadata.NewCatalog([]metadata.ResourceDescription{
		{Name: "configured", ReindexMode: metadata.ReindexExternal},
		{Name: "declared", ReindexMode: metadata.ReindexExternal, ReindexEndpoint: "http://declared.example/reindex"},
		{Name: "derived", ReindexMode: metadata.ReindexExternal},
	})
	require.NoError(t, err)

	o := &Orchestrator{catalog: catalog, cfg: config.ReindexConfig{
		Endpoints: map[string]string{"configured": "http://cfg.example/reindex"},
	}}

	find := func(name string) metadata.ResourceDescription {
		d, ok := catalog.Find(name)
		require.True(t, ok)
		return d
	}
	assert.Equal(t, "http://cfg.example/reindex", o.endpoint(find("configured")))
	assert.Equal(t, "http://declared.example/reindex", o.endpoint(find("declared")))
	assert.Equal(t, "http://derived-storage/reindex", o.endpoint(find("derived")))
}
