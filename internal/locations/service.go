// Package locations repopulates the location-hierarchy indexes (location,
// campus, library, institution) synchronously from the source of truth.
// Unlike external-reindex resources there is no out-of-band producer: a tree
// reindex is complete when this package returns.
package locations

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/opencatalog/search-indexer/internal/index"
	"github.com/opencatalog/search-indexer/internal/metadata"
	"github.com/opencatalog/search-indexer/internal/model"
	"github.com/opencatalog/search-indexer/internal/search"
	apperrors "github.com/opencatalog/search-indexer/pkg/errors"
	"github.com/opencatalog/search-indexer/pkg/metrics"
	"github.com/opencatalog/search-indexer/pkg/resilience"
)

// resourceTimeout bounds one resource's repopulation so a stuck source read
// cannot hang the whole tree reindex.
const resourceTimeout = 5 * time.Minute

// Record is one source-of-truth row for a tree resource.
type Record struct {
	ID   string
	Body map[string]any
}

// SourceReader loads the current full set of records for one tree resource
// under a tenant.
type SourceReader interface {
	Read(ctx context.Context, tenant, resource string) ([]Record, error)
}

// Service re-derives tree-resource documents. Each resource in the tree,
// the root included, owns its own physical index.
type Service struct {
	reader    SourceReader
	lifecycle *index.Service
	engine    search.Engine
	catalog   *metadata.Catalog
	metrics   *metrics.Metrics
	workers   int
	logger    *slog.Logger
}

// NewService creates a tree-reindex Service with at most workers concurrent
// per-resource repopulations.
func NewService(reader SourceReader, lifecycle *index.Service, engine search.Engine, catalog *metadata.Catalog, m *metrics.Metrics, workers int) *Service {
	if workers < 1 {
		workers = 1
	}
	return &Service{
		reader:    reader,
		lifecycle: lifecycle,
		engine:    engine,
		catalog:   catalog,
		metrics:   m,
		workers:   workers,
		logger:    slog.Default().With("component", "location-reindex"),
	}
}

// ReindexAll repopulates the root resource and every resource folding under
// it, in parallel. A failure in one resource does not stop the others; the
// first error is returned after all workers finish, so a subsequent call
// can repair a partial result.
func (s *Service) ReindexAll(ctx context.Context, tenant, root string) error {
	names := append([]string{root}, s.catalog.SecondaryResourceNames(root)...)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.workers)
	for _, name := range names {
		g.Go(func() error {
			return resilience.WithTimeout(gctx, resourceTimeout, name, func(ctx context.Context) error {
				return s.Reindex(ctx, tenant, name)
			})
		})
	}
	if err := g.Wait(); err != nil {
		return fmt.Errorf("repopulating %s tree: %w", root, err)
	}
	return nil
}

// Reindex repopulates one tree resource's index from the source of truth.
func (s *Service) Reindex(ctx context.Context, tenant, resource string) error {
	records, err := s.reader.Read(ctx, tenant, resource)
	if err != nil {
		return fmt.Errorf("reading %s records: %w", resource, err)
	}
	if err := s.lifecycle.EnsureIndex(ctx, resource, tenant); err != nil {
		return err
	}
	if len(records) == 0 {
		return nil
	}

	target := index.IndexName(resource, tenant)
	writes := make([]model.DocumentWrite, 0, len(records))
	for _, rec := range records {
		body, err := json.Marshal(rec.Body)
		if err != nil {
			return fmt.Errorf("encoding %s record %s: %w", resource, rec.ID, err)
		}
		writes = append(writes, model.DocumentWrite{
			ID:       rec.ID,
			Resource: resource,
			Index:    target,
			Action:   model.ActionIndex,
			Body:     body,
		})
	}

	result := s.engine.BulkWrite(ctx, writes)
	if result.IsError() {
		return apperrors.New(apperrors.ErrEngineFailure, http.StatusServiceUnavailable, result.Message)
	}
	if s.metrics != nil {
		s.metrics.DocumentsWritten.WithLabelValues("index").Add(float64(len(writes)))
	}
	s.logger.Info("tree resource repopulated", "resource", resource, "tenant", tenant, "documents", len(writes))
	return nil
}
