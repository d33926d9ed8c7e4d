package server

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/opencatalog/search-indexer/internal/consortium"
	"github.com/opencatalog/search-indexer/internal/index"
	"github.com/opencatalog/search-indexer/internal/jobs"
	"github.com/opencatalog/search-indexer/internal/metadata"
	"github.com/opencatalog/search-indexer/internal/model"
	"github.com/opencatalog/search-indexer/internal/reindex"
	"github.com/opencatalog/search-indexer/internal/search"
	"github.com/opencatalog/search-indexer/pkg/config"
	"github.com/opencatalog/search-indexer/pkg/health"
	"github.com/opencatalog/search-indexer/pkg/metrics"
)

// Prometheus collectors register globally; one set serves every test.
var testMetrics = metrics.New()

type stubClient struct{}

func (stubClient) SubmitReindex(context.Context, string) (model.ReindexJob, error) {
	return model.ReindexJob{ID: "remote", JobStatus: model.JobInProgress, SubmittedDate: time.Now()}, nil
}

type stubTree struct{}

func (stubTree) ReindexAll(context.Context, string, string) error { return nil }

type stubCleaner struct{}

func (stubCleaner) DeleteAll(context.Context, string) error { return nil }

type stubSource struct{}

func (stubSource) StreamIDs(_ context.Context, _, _ string, emit func(string) error) error {
	return emit("id-1")
}

type stubSink struct{}

func (stubSink) Write(context.Context, string, []string) error { return nil }

func newTestServer(t *testing.T) (*httptest.Server, *jobs.Runner) {
	t.Helper()
	catalog, err := metadata.Default()
	require.NoError(t, err)

	engine := search.NewMemoryEngine()
	lifecycle := index.NewService(engine, catalog, index.StaticMappings{}, config.EngineConfig{
		NumberOfShards: 4, NumberOfReplicas: 2, RefreshInterval: 1,
	})
	tenants := consortium.NewConfigTenantProvider(config.ConsortiumConfig{})
	orchestrator := reindex.NewOrchestrator(catalog, lifecycle, tenants, stubCleaner{}, stubTree{}, stubClient{}, config.ReindexConfig{}, nil)

	store := jobs.NewMemoryStore()
	runner := jobs.NewRunner(store, nil)
	streams := jobs.NewStreamService(store, runner, stubSource{}, stubSink{})

	handler := New(NewHandler(orchestrator, lifecycle, streams), health.NewChecker(), testMetrics, 5*time.Second)
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return srv, runner
}

func do(t *testing.T, srv *httptest.Server, method, path, tenant, body string) *http.Response {
	t.Helper()
	req, err := http.NewRequest(method, srv.URL+path, strings.NewReader(body))
	require.NoError(t, err)
	if tenant != "" {
		req.Header.Set(TenantHeader, tenant)
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := srv.Client().Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func decodeBody(t *testing.T, resp *http.Response, into any) {
	t.Helper()
	require.NoError(t, json.NewDecoder(resp.Body).Decode(into))
}

func TestReindexEndpoint(t *testing.T) {
	srv, _ := newTestServer(t)

	resp := do(t, srv, http.MethodPost, "/search/index/inventory/reindex", "diku",
		`{"resourceName":"authority"}`)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var job model.ReindexJob
	decodeBody(t, resp, &job)
	assert.Equal(t, model.JobInProgress, job.JobStatus)
	assert.NotEmpty(t, job.ID)
}

func TestReindexUnknownResourceIs400(t *testing.T) {
	srv, _ := newTestServer(t)

	resp := do(t, srv, http.MethodPost, "/search/index/inventory/reindex", "diku",
		`{"resourceName":"ghost"}`)
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)

	var body map[string]string
	decodeBody(t, resp, &body)
	assert.Contains(t, body["error"], "Unexpected value 'ghost'")
}

func TestMissingTenantHeaderIs400(t *testing.T) {
	srv, _ := newTestServer(t)

	resp := do(t, srv, http.MethodPost, "/search/index/inventory/reindex", "", `{}`)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestMalformedBodyIs400(t *testing.T) {
	srv, _ := newTestServer(t)

	resp := do(t, srv, http.MethodPost, "/search/index/indices", "diku", `{not json`)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestCreateIndexEndpoint(t *testing.T) {
	srv, _ := newTestServer(t)

	resp := do(t, srv, http.MethodPost, "/search/index/indices", "diku",
		`{"resourceName":"instance"}`)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var result model.OperationResult
	decodeBody(t, resp, &result)
	assert.False(t, result.IsError())
}

func TestCreateIndexUnknownResourceIs400(t *testing.T) {
	srv, _ := newTestServer(t)

	resp := do(t, srv, http.MethodPost, "/search/index/indices", "diku",
		`{"resourceName":"ghost"}`)
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)

	var body map[string]string
	decodeBody(t, resp, &body)
	assert.Contains(t, body["error"], "resource description is not found")
}

func TestUpdateSettingsEndpoint(t *testing.T) {
	srv, _ := newTestServer(t)

	resp := do(t, srv, http.MethodPost, "/search/index/indices", "diku",
		`{"resourceName":"instance"}`)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp = do(t, srv, http.MethodPut, "/search/index/settings", "diku",
		`{"resourceName":"instance","settings":{"numberOfReplicas":3,"refreshInterval":30}}`)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestStreamJobRoundTrip(t *testing.T) {
	srv, runner := newTestServer(t)

	resp := do(t, srv, http.MethodPost, "/search/resources/jobs", "diku",
		`{"entityType":"instance","query":"title=war"}`)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var created jobs.Record
	decodeBody(t, resp, &created)
	require.NotEmpty(t, created.ID)
	assert.Equal(t, model.JobInProgress, created.Status)
	runner.Wait()

	resp = do(t, srv, http.MethodGet, "/search/resources/jobs/"+created.ID, "diku", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var polled jobs.Record
	decodeBody(t, resp, &polled)
	assert.Equal(t, model.JobCompleted, polled.Status)
}

func TestStreamJobMissingEntityTypeIs400(t *testing.T) {
	srv, _ := newTestServer(t)

	resp := do(t, srv, http.MethodPost, "/search/resources/jobs", "diku", `{"query":"x"}`)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestUnknownJobIs404(t *testing.T) {
	srv, _ := newTestServer(t)

	resp := do(t, srv, http.MethodGet, "/search/resources/jobs/nope", "diku", "")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestHealthEndpoints(t *testing.T) {
	srv, _ := newTestServer(t)

	resp := do(t, srv, http.MethodGet, "/health", "", "")
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp = do(t, srv, http.MethodGet, "/ready", "", "")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestRequestIDEchoedBack(t *testing.T) {
	srv, _ := newTestServer(t)

	req, err := http.NewRequest(http.MethodGet, srv.URL+"/health", nil)
	require.NoError(t, err)
	req.Header.Set("X-Request-ID", "req-42")
	resp, err := srv.Client().Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, "req-42", resp.Header.Get("X-Request-ID"))
}
