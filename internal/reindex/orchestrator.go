package reindex

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/opencatalog/search-indexer/internal/consortium"
	"github.com/opencatalog/search-indexer/internal/index"
	"github.com/opencatalog/search-indexer/internal/metadata"
	"github.com/opencatalog/search-indexer/internal/model"
	"github.com/opencatalog/search-indexer/pkg/config"
	apperrors "github.com/opencatalog/search-indexer/pkg/errors"
	"github.com/opencatalog/search-indexer/pkg/metrics"
)

// TreeReindexer repopulates a tree resource and its secondaries from the
// source of truth.
type TreeReindexer interface {
	ReindexAll(ctx context.Context, tenant, root string) error
}

// ProvenanceCleaner clears consortium-aggregated shadow state under a
// central tenant.
type ProvenanceCleaner interface {
	DeleteAll(ctx context.Context, centralTenant string) error
}

// Orchestrator decides, per primary resource and tenant role, what a full
// reindex does: which physical indexes are recreated, whether repopulation
// is synchronous, delegated to an external producer, or skipped entirely.
// All name validation happens before any index mutation.
type Orchestrator struct {
	catalog   *metadata.Catalog
	lifecycle *index.Service
	tenants   consortium.TenantProvider
	cleaner   ProvenanceCleaner
	tree      TreeReindexer
	client    Client
	cfg       config.ReindexConfig
	metrics   *metrics.Metrics
	logger    *slog.Logger
	now       func() time.Time
}

// NewOrchestrator creates an Orchestrator.
func NewOrchestrator(
	catalog *metadata.Catalog,
	lifecycle *index.Service,
	tenants consortium.TenantProvider,
	cleaner ProvenanceCleaner,
	tree TreeReindexer,
	client Client,
	cfg config.ReindexConfig,
	m *metrics.Metrics,
) *Orchestrator {
	return &Orchestrator{
		catalog:   catalog,
		lifecycle: lifecycle,
		tenants:   tenants,
		cleaner:   cleaner,
		tree:      tree,
		client:    client,
		cfg:       cfg,
		metrics:   m,
		logger:    slog.Default().With("component", "reindex-orchestrator"),
		now:       time.Now,
	}
}

// Reindex runs the request against the tenant. An explicit resource name
// must resolve to a primary resource; an absent name covers every primary
// resource the catalog knows. Validation failures leave all indexes
// untouched.
func (o *Orchestrator) Reindex(ctx context.Context, tenant string, req model.ReindexRequest) (model.ReindexJob, error) {
	descriptions, err := o.resolve(req.ResourceName)
	if err != nil {
		return model.ReindexJob{}, err
	}

	// Physical indexes recreated so far, across all resolved resources. A
	// secondary referenced by two parents is recreated exactly once.
	recreated := make(map[string]bool)

	if req.ResourceName != "" {
		return o.reindexOne(ctx, tenant, descriptions[0], req.RecreateIndex, recreated)
	}

	anyRunning := false
	for _, d := range descriptions {
		job, err := o.reindexOne(ctx, tenant, d, req.RecreateIndex, recreated)
		if err != nil {
			return model.ReindexJob{}, fmt.Errorf("reindexing %s: %w", d.Name, err)
		}
		if job.JobStatus == model.JobInProgress {
			anyRunning = true
		}
	}
	status := model.JobCompleted
	if anyRunning {
		status = model.JobInProgress
	}
	return o.newJob(status), nil
}

// resolve maps the request's resource name onto catalog descriptions,
// rejecting unknown and secondary names before any side effect.
func (o *Orchestrator) resolve(resourceName string) ([]metadata.ResourceDescription, error) {
	if resourceName == "" {
		names := o.catalog.PrimaryResourceNames()
		descriptions := make([]metadata.ResourceDescription, 0, len(names))
		for _, name := range names {
			d, _ := o.catalog.Find(name)
			descriptions = append(descriptions, d)
		}
		return descriptions, nil
	}

	d, ok := o.catalog.Find(resourceName)
	if !ok {
		return nil, apperrors.Validationf("Unexpected value '%s'", resourceName)
	}
	if d.IsSecondary() {
		return nil, apperrors.Newf(apperrors.ErrSecondaryResource, http.StatusBadRequest,
			"Unexpected value '%s'", resourceName)
	}
	return []metadata.ResourceDescription{d}, nil
}

func (o *Orchestrator) reindexOne(ctx context.Context, tenant string, d metadata.ResourceDescription, recreate bool, recreated map[string]bool) (model.ReindexJob, error) {
	// Member tenants never mutate local indexes for shared resources; the
	// write path aggregates their data into the central index.
	if d.ConsortiumShared && o.tenants.Role(tenant) == model.RoleMember {
		o.logger.Info("skipping member-tenant reindex for shared resource",
			"resource", d.Name, "tenant", tenant)
		return o.newJob(model.JobCompleted), nil
	}

	var (
		job model.ReindexJob
		err error
	)
	switch d.ReindexMode {
	case metadata.ReindexExternal:
		job, err = o.reindexExternal(ctx, tenant, d, recreate, recreated)
	case metadata.ReindexTree:
		job, err = o.reindexTree(ctx, tenant, d, recreate, recreated)
	case metadata.ReindexStructural:
		job, err = o.reindexStructural(ctx, tenant, d, recreate, recreated)
	default:
		err = apperrors.Validationf("Unexpected value '%s'", d.Name)
	}

	if o.metrics != nil {
		status := "ok"
		if err != nil {
			status = "error"
		}
		o.metrics.ReindexJobsTotal.WithLabelValues(string(d.ReindexMode), status).Inc()
	}
	return job, err
}

// reindexExternal recreates indexes when asked, then hands repopulation to
// the resource's storage module. The returned handle belongs to that
// producer; its completion is observed out of band.
func (o *Orchestrator) reindexExternal(ctx context.Context, tenant string, d metadata.ResourceDescription, recreate bool, recreated map[string]bool) (model.ReindexJob, error) {
	if recreate {
		if d.ConsortiumShared {
			if central, ok := o.tenants.CentralTenant(tenant); ok {
				if err := o.cleaner.DeleteAll(ctx, central); err != nil {
					return model.ReindexJob{}, err
				}
			}
		}
		if err := o.recreateTree(ctx, tenant, d.Name, recreated); err != nil {
			return model.ReindexJob{}, err
		}
	}

	job, err := o.client.SubmitReindex(ctx, o.endpoint(d))
	if err != nil {
		return model.ReindexJob{}, err
	}
	o.logger.Info("external reindex submitted", "resource", d.Name, "tenant", tenant, "job_id", job.ID)
	return job, nil
}

// reindexTree recreates the whole hierarchy's indexes when asked, then
// synchronously re-derives every document before reporting completion.
func (o *Orchestrator) reindexTree(ctx context.Context, tenant string, d metadata.ResourceDescription, recreate bool, recreated map[string]bool) (model.ReindexJob, error) {
	if recreate {
		if err := o.recreateTree(ctx, tenant, d.Name, recreated); err != nil {
			return model.ReindexJob{}, err
		}
	}
	if err := o.tree.ReindexAll(ctx, tenant, d.Name); err != nil {
		return model.ReindexJob{}, err
	}
	return o.newJob(model.JobCompleted), nil
}

// reindexStructural only rebuilds the physical index; documents reappear on
// the next external write cycle. Without recreation it is a pure
// acknowledgment and no engine call is made.
func (o *Orchestrator) reindexStructural(ctx context.Context, tenant string, d metadata.ResourceDescription, recreate bool, recreated map[string]bool) (model.ReindexJob, error) {
	if recreate {
		if err := o.recreateTree(ctx, tenant, d.Name, recreated); err != nil {
			return model.ReindexJob{}, err
		}
	}
	return o.newJob(model.JobCompleted), nil
}

// recreateTree drops and recreates the physical indexes of root and its
// secondaries, each at most once per request.
func (o *Orchestrator) recreateTree(ctx context.Context, tenant, root string, recreated map[string]bool) error {
	names := append([]string{root}, o.catalog.SecondaryResourceNames(root)...)
	for _, name := range names {
		physical := index.IndexName(name, tenant)
		if recreated[physical] {
			continue
		}
		if err := o.lifecycle.Recreate(ctx, name, tenant, nil); err != nil {
			return err
		}
		recreated[physical] = true
		if o.metrics != nil {
			o.metrics.IndexRecreations.Inc()
		}
	}
	return nil
}

// endpoint resolves the external producer URL for a resource: explicit
// configuration first, then the catalog entry, then the naming convention.
func (o *Orchestrator) endpoint(d metadata.ResourceDescription) string {
	if uri, ok := o.cfg.Endpoints[d.Name]; ok && uri != "" {
		return uri
	}
	if d.ReindexEndpoint != "" {
		return d.ReindexEndpoint
	}
	return fmt.Sprintf("http://%s-storage/reindex", d.Name)
}

func (o *Orchestrator) newJob(status model.JobStatus) model.ReindexJob {
	return model.ReindexJob{
		ID:            uuid.NewString(),
		JobStatus:     status,
		SubmittedDate: o.now().UTC(),
	}
}
