// Package pipeline drives the write path: raw resource events are
// consolidated, converted into document writes, routed through consortium
// aggregation where tenant sharing applies, and bulk-written to the engine.
package pipeline

import (
	"context"
	"log/slog"
	"net/http"
	"sort"
	"strings"
	"time"

	"github.com/opencatalog/search-indexer/internal/consolidate"
	"github.com/opencatalog/search-indexer/internal/consortium"
	"github.com/opencatalog/search-indexer/internal/convert"
	"github.com/opencatalog/search-indexer/internal/index"
	"github.com/opencatalog/search-indexer/internal/metadata"
	"github.com/opencatalog/search-indexer/internal/model"
	"github.com/opencatalog/search-indexer/internal/search"
	apperrors "github.com/opencatalog/search-indexer/pkg/errors"
	"github.com/opencatalog/search-indexer/pkg/metrics"
)

// ResourceFetcher loads current full resource bodies by id, as events ready
// for the write path.
type ResourceFetcher interface {
	Fetch(ctx context.Context, tenant string, ids []string) ([]model.ResourceEvent, error)
}

// MessageProducer forwards derived secondary events downstream. Sends are
// fire-and-forget: a publish failure never fails the write that derived
// the events.
type MessageProducer interface {
	Send(ctx context.Context, events []model.ResourceEvent) error
}

// Service is the resource write pipeline.
type Service struct {
	consolidator *consolidate.Consolidator
	converter    *convert.Converter
	lifecycle    *index.Service
	engine       search.Engine
	catalog      *metadata.Catalog
	tenants      consortium.TenantProvider
	aggregator   *consortium.Aggregator
	fetcher      ResourceFetcher
	producer     MessageProducer
	metrics      *metrics.Metrics
	logger       *slog.Logger
}

// NewService wires the write pipeline. fetcher and producer may be nil when
// id-driven indexing or contributor fan-out notifications are not deployed.
func NewService(
	consolidator *consolidate.Consolidator,
	converter *convert.Converter,
	lifecycle *index.Service,
	engine search.Engine,
	catalog *metadata.Catalog,
	tenants consortium.TenantProvider,
	aggregator *consortium.Aggregator,
	fetcher ResourceFetcher,
	producer MessageProducer,
	m *metrics.Metrics,
) *Service {
	return &Service{
		consolidator: consolidator,
		converter:    converter,
		lifecycle:    lifecycle,
		engine:       engine,
		catalog:      catalog,
		tenants:      tenants,
		aggregator:   aggregator,
		fetcher:      fetcher,
		producer:     producer,
		metrics:      m,
		logger:       slog.Default().With("component", "resource-pipeline"),
	}
}

// IndexResources runs one batch through the full pipeline. Empty input is a
// success, not an error. Malformed events degrade per item; well-formed
// events in the same batch are still written.
func (s *Service) IndexResources(ctx context.Context, events []model.ResourceEvent) (model.OperationResult, error) {
	if len(events) == 0 {
		return model.SuccessResult(), nil
	}

	consolidated := s.consolidator.Consolidate(events)
	if s.metrics != nil {
		s.metrics.EventsConsolidated.Add(float64(len(consolidated.Events)))
		s.metrics.EventsDropped.Add(float64(len(consolidated.Failed)))
	}
	for _, failed := range consolidated.Failed {
		s.logger.Warn("event dropped", "resource", failed.Event.Resource, "id", failed.Event.ID, "reason", failed.Reason)
	}

	direct, aggregated := s.route(consolidated.Events)

	writes, skipped := s.converter.Convert(direct)
	if s.metrics != nil && len(skipped) > 0 {
		s.metrics.EventsDropped.Add(float64(len(skipped)))
	}

	flat := flatten(writes)
	for memberTenant, tenantEvents := range aggregated {
		merged, err := s.aggregator.MergeAndWrite(ctx, memberTenant, tenantEvents)
		if err != nil {
			return model.ErrorResult(err.Error()), err
		}
		flat = append(flat, merged...)
	}

	if result, err := s.write(ctx, flat); err != nil || result.IsError() {
		return result, err
	}

	s.notifyContributors(ctx, consolidated.Events)
	return model.SuccessResult(), nil
}

// IndexInstancesByID fetches the current bodies of the given ids and runs
// them through the pipeline as update events.
func (s *Service) IndexInstancesByID(ctx context.Context, tenant string, ids []string) (model.OperationResult, error) {
	if len(ids) == 0 {
		return model.SuccessResult(), nil
	}
	if s.fetcher == nil {
		err := apperrors.New(apperrors.ErrInternal, http.StatusNotImplemented, "no resource fetcher configured")
		return model.ErrorResult(err.Message), err
	}
	events, err := s.fetcher.Fetch(ctx, tenant, ids)
	if err != nil {
		return model.ErrorResult(err.Error()), err
	}
	return s.IndexResources(ctx, events)
}

// route splits the batch: events for consortium-shared resources from
// consortium participants go through the aggregator, grouped by tenant;
// everything else converts directly. This is what keeps a member tenant
// from ever mutating its own index for a shared resource.
func (s *Service) route(events []model.ResourceEvent) (direct []model.ResourceEvent, aggregated map[string][]model.ResourceEvent) {
	aggregated = make(map[string][]model.ResourceEvent)
	for _, ev := range events {
		primary := s.catalog.PrimaryFor(ev.Resource)
		d, ok := s.catalog.Find(primary)
		shared := ok && d.ConsortiumShared
		if shared && s.tenants.Role(ev.Tenant) != model.RoleStandalone {
			aggregated[ev.Tenant] = append(aggregated[ev.Tenant], ev)
			continue
		}
		direct = append(direct, ev)
	}
	return direct, aggregated
}

// write ensures every target index exists, then bulk-writes the batch.
func (s *Service) write(ctx context.Context, writes []model.DocumentWrite) (model.OperationResult, error) {
	if len(writes) == 0 {
		return model.SuccessResult(), nil
	}

	ensured := make(map[string]bool)
	for _, w := range writes {
		if ensured[w.Index] {
			continue
		}
		tenant := strings.TrimPrefix(w.Index, w.Resource+"_")
		if err := s.lifecycle.EnsureIndex(ctx, w.Resource, tenant); err != nil {
			return model.ErrorResult(err.Error()), err
		}
		ensured[w.Index] = true
	}

	start := time.Now()
	result := s.engine.BulkWrite(ctx, writes)
	if s.metrics != nil {
		s.metrics.BulkWriteDuration.Observe(time.Since(start).Seconds())
	}
	if result.IsError() {
		if s.metrics != nil {
			s.metrics.BulkWriteFailures.Inc()
		}
		return result, nil
	}
	if s.metrics != nil {
		for _, w := range writes {
			s.metrics.DocumentsWritten.WithLabelValues(string(w.Action)).Inc()
		}
	}
	return result, nil
}

// notifyContributors publishes derived contributor-change events for
// resources declaring contribution rules. Failures are logged and dropped.
func (s *Service) notifyContributors(ctx context.Context, events []model.ResourceEvent) {
	if s.producer == nil {
		return
	}
	var derived []model.ResourceEvent
	for _, ev := range events {
		if ev.Type == model.EventDelete {
			continue
		}
		d, ok := s.catalog.Find(ev.Resource)
		if !ok {
			continue
		}
		for _, rule := range d.Contributions {
			entries, ok := ev.New[rule.Field].([]any)
			if !ok {
				continue
			}
			for _, raw := range entries {
				entry, ok := raw.(map[string]any)
				if !ok {
					continue
				}
				id, _ := entry[rule.IDField].(string)
				if id == "" {
					continue
				}
				derived = append(derived, model.ResourceEvent{
					ID:       id,
					Resource: rule.Target,
					Tenant:   ev.Tenant,
					Type:     model.EventUpdate,
					New:      entry,
				})
			}
		}
	}
	if len(derived) == 0 {
		return
	}
	if err := s.producer.Send(ctx, derived); err != nil {
		s.logger.Warn("contributor notification publish failed", "count", len(derived), "error", err)
	}
}

// flatten joins the per-resource buckets in stable resource order.
func flatten(byResource map[string][]model.DocumentWrite) []model.DocumentWrite {
	resources := make([]string, 0, len(byResource))
	for resource := range byResource {
		resources = append(resources, resource)
	}
	sort.Strings(resources)

	var out []model.DocumentWrite
	for _, resource := range resources {
		out = append(out, byResource[resource]...)
	}
	return out
}
