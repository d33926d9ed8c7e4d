package consortium

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/opencatalog/search-indexer/internal/index"
	"github.com/opencatalog/search-indexer/internal/metadata"
	"github.com/opencatalog/search-indexer/internal/model"
	apperrors "github.com/opencatalog/search-indexer/pkg/errors"
	"github.com/opencatalog/search-indexer/pkg/metrics"
)

// Aggregator merges member-tenant resource state into the central tenant's
// index. The dedup key is the resource id alone: the same id reported by two
// member tenants is one central document, with the most recently updated
// claim winning the body. A delete retracts only the deleting member's
// claim; the central document disappears when the last claim is gone.
type Aggregator struct {
	store   Store
	catalog *metadata.Catalog
	tenants TenantProvider
	metrics *metrics.Metrics
	logger  *slog.Logger
	now     func() time.Time
}

// NewAggregator creates an Aggregator over the given provenance store.
func NewAggregator(store Store, catalog *metadata.Catalog, tenants TenantProvider, m *metrics.Metrics) *Aggregator {
	return &Aggregator{
		store:   store,
		catalog: catalog,
		tenants: tenants,
		metrics: m,
		logger:  slog.Default().With("component", "consortium-aggregator"),
		now:     time.Now,
	}
}

// MergeAndWrite folds the member tenant's events into the provenance store
// and returns the document writes that bring the central index in line with
// the surviving claims. The caller performs the actual bulk write.
func (a *Aggregator) MergeAndWrite(ctx context.Context, memberTenant string, events []model.ResourceEvent) ([]model.DocumentWrite, error) {
	central, ok := a.tenants.CentralTenant(memberTenant)
	if !ok {
		return nil, apperrors.Validationf("tenant %s does not participate in a consortium", memberTenant)
	}

	writes := make([]model.DocumentWrite, 0, len(events))
	for _, ev := range events {
		// Secondary resources have no index of their own: their claims
		// fold into the primary's central index, same as the standalone
		// conversion path does.
		primary := a.catalog.PrimaryFor(ev.Resource)
		if primary == "" {
			primary = ev.Resource
		}
		var (
			write model.DocumentWrite
			err   error
		)
		if ev.Type == model.EventDelete {
			write, err = a.retract(ctx, central, memberTenant, primary, ev)
		} else {
			write, err = a.claim(ctx, central, memberTenant, primary, ev)
		}
		if err != nil {
			return nil, err
		}
		if write.ID != "" {
			writes = append(writes, write)
		}
	}
	return writes, nil
}

// claim records the member's current state for the id and rebuilds the
// central document from all live claims.
func (a *Aggregator) claim(ctx context.Context, central, memberTenant, primary string, ev model.ResourceEvent) (model.DocumentWrite, error) {
	payload := ev.BodyJSON()
	if payload == nil {
		return model.DocumentWrite{}, nil
	}
	c := Claim{Tenant: memberTenant, Payload: payload, UpdatedAt: a.now()}
	if err := a.store.Save(ctx, central, ev.ID, c); err != nil {
		return model.DocumentWrite{}, err
	}
	if a.metrics != nil {
		a.metrics.ConsortiumMerges.WithLabelValues("save").Inc()
	}
	return a.rebuild(ctx, central, primary, ev)
}

// retract drops the member's claim; remaining claims keep the document
// alive with a rebuilt body.
func (a *Aggregator) retract(ctx context.Context, central, memberTenant, primary string, ev model.ResourceEvent) (model.DocumentWrite, error) {
	if err := a.store.Remove(ctx, central, ev.ID, memberTenant); err != nil {
		return model.DocumentWrite{}, err
	}
	if a.metrics != nil {
		a.metrics.ConsortiumMerges.WithLabelValues("delete").Inc()
	}
	claims, err := a.store.Claims(ctx, central, ev.ID)
	if err != nil {
		return model.DocumentWrite{}, err
	}
	if len(claims) == 0 {
		return model.DocumentWrite{
			ID:       ev.ID,
			Resource: primary,
			Index:    index.IndexName(primary, central),
			Action:   model.ActionDelete,
		}, nil
	}
	return a.rebuild(ctx, central, primary, ev)
}

// rebuild merges all live claims for the id into one central document: the
// most recent claim supplies the body, and the full claimant list is
// carried on the document so searches can filter by holding tenant.
func (a *Aggregator) rebuild(ctx context.Context, central, primary string, ev model.ResourceEvent) (model.DocumentWrite, error) {
	claims, err := a.store.Claims(ctx, central, ev.ID)
	if err != nil {
		return model.DocumentWrite{}, err
	}
	if len(claims) == 0 {
		return model.DocumentWrite{}, nil
	}

	// Stores hand back claims in no particular order, so equal timestamps
	// break on tenant id to keep the winner stable across rebuilds.
	winner := claims[0]
	tenants := make([]string, 0, len(claims))
	for _, c := range claims {
		tenants = append(tenants, c.Tenant)
		switch {
		case c.UpdatedAt.After(winner.UpdatedAt):
			winner = c
		case c.UpdatedAt.Equal(winner.UpdatedAt) && c.Tenant < winner.Tenant:
			winner = c
		}
	}
	sort.Strings(tenants)

	var body map[string]any
	if err := json.Unmarshal(winner.Payload, &body); err != nil {
		return model.DocumentWrite{}, fmt.Errorf("decoding winning claim for %s: %w", ev.ID, err)
	}
	body["shared"] = true
	body["memberTenants"] = tenants
	merged, err := json.Marshal(body)
	if err != nil {
		return model.DocumentWrite{}, fmt.Errorf("encoding merged document for %s: %w", ev.ID, err)
	}
	return model.DocumentWrite{
		ID:       ev.ID,
		Resource: primary,
		Index:    index.IndexName(primary, central),
		Action:   model.ActionIndex,
		Body:     merged,
	}, nil
}

// DeleteAll clears every provenance claim under the central tenant. The
// reindex orchestrator calls this when an instance-root index is recreated
// so stale shadow copies cannot resurface.
func (a *Aggregator) DeleteAll(ctx context.Context, centralTenant string) error {
	a.logger.Info("clearing consortium provenance", "central_tenant", centralTenant)
	if err := a.store.DeleteAll(ctx, centralTenant); err != nil {
		return fmt.Errorf("clearing provenance for %s: %w", centralTenant, err)
	}
	return nil
}
