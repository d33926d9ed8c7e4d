// Package index implements the index lifecycle manager: create, drop,
// mappings and settings updates for physical indexes, with the
// resource-name validation and settings normalization rules in one place.
// All index mutation in the system goes through this service.
package index

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/opencatalog/search-indexer/internal/metadata"
	"github.com/opencatalog/search-indexer/internal/model"
	"github.com/opencatalog/search-indexer/internal/search"
	"github.com/opencatalog/search-indexer/pkg/config"
	apperrors "github.com/opencatalog/search-indexer/pkg/errors"
)

// IndexName returns the physical index name for a resource and effective
// tenant. The convention is deterministic so any caller can address an
// index without going through this service.
func IndexName(resource, tenant string) string {
	return resource + "_" + tenant
}

// MappingsProvider supplies the mappings JSON for a resource. Template
// generation from resource-description files lives outside this module.
type MappingsProvider interface {
	Mappings(resource string) (string, error)
}

// StaticMappings is a MappingsProvider backed by a fixed table. Resources
// without an entry get an empty mappings document.
type StaticMappings map[string]string

func (m StaticMappings) Mappings(resource string) (string, error) {
	if mappings, ok := m[resource]; ok {
		return mappings, nil
	}
	return "{}", nil
}

// Service is the index lifecycle manager.
type Service struct {
	engine   search.Engine
	catalog  *metadata.Catalog
	mappings MappingsProvider
	defaults config.EngineConfig
	logger   *slog.Logger
}

// NewService creates a lifecycle Service with the given engine defaults.
func NewService(engine search.Engine, catalog *metadata.Catalog, mappings MappingsProvider, defaults config.EngineConfig) *Service {
	return &Service{
		engine:   engine,
		catalog:  catalog,
		mappings: mappings,
		defaults: defaults,
		logger:   slog.Default().With("component", "index-lifecycle"),
	}
}

// CreateIndex creates the index for resource under tenant. Creation is a
// no-op success when the index already exists; callers needing recreation
// must Drop first. opts overrides the configured static settings.
func (s *Service) CreateIndex(ctx context.Context, resource, tenant string, opts *model.IndexSettings) error {
	if _, ok := s.catalog.Find(resource); !ok {
		return apperrors.New(apperrors.ErrResourceNotFound, http.StatusBadRequest,
			"Index cannot be created for the resource because resource description is not found.")
	}
	name := IndexName(resource, tenant)
	exists, err := s.engine.IndexExists(ctx, name)
	if err != nil {
		return err
	}
	if exists {
		return nil
	}

	mappings, err := s.mappings.Mappings(resource)
	if err != nil {
		return err
	}
	settings := renderSettings(s.defaults, opts)
	if err := s.engine.CreateIndex(ctx, name, settings, mappings); err != nil {
		return err
	}
	s.logger.Info("index created", "index", name)
	return nil
}

// EnsureIndex guarantees the resource's index exists before any write
// targeting it is issued.
func (s *Service) EnsureIndex(ctx context.Context, resource, tenant string) error {
	return s.CreateIndex(ctx, resource, tenant, nil)
}

// DropIndex removes the resource's index if it exists.
func (s *Service) DropIndex(ctx context.Context, resource, tenant string) error {
	name := IndexName(resource, tenant)
	exists, err := s.engine.IndexExists(ctx, name)
	if err != nil {
		return err
	}
	if !exists {
		return nil
	}
	if err := s.engine.DropIndex(ctx, name); err != nil {
		return err
	}
	s.logger.Info("index dropped", "index", name)
	return nil
}

// Recreate drops and recreates the resource's index. The index is not
// considered writable until both operations and the settings application
// have completed.
func (s *Service) Recreate(ctx context.Context, resource, tenant string, opts *model.IndexSettings) error {
	if err := s.DropIndex(ctx, resource, tenant); err != nil {
		return err
	}
	return s.CreateIndex(ctx, resource, tenant, opts)
}

// UpdateMappings re-applies the resource's mappings to its index.
func (s *Service) UpdateMappings(ctx context.Context, resource, tenant string) error {
	if _, ok := s.catalog.Find(resource); !ok {
		return apperrors.New(apperrors.ErrResourceNotFound, http.StatusBadRequest,
			"Mappings cannot be updated, resource name is invalid.")
	}
	mappings, err := s.mappings.Mappings(resource)
	if err != nil {
		return err
	}
	return s.engine.UpdateMappings(ctx, IndexName(resource, tenant), mappings)
}

// UpdateIndexSettings applies dynamic settings (replica count and refresh
// interval only) to the resource's index.
func (s *Service) UpdateIndexSettings(ctx context.Context, resource, tenant string, opts *model.DynamicSettings) error {
	if _, ok := s.catalog.Find(resource); !ok {
		return apperrors.New(apperrors.ErrResourceNotFound, http.StatusBadRequest,
			"Index Settings cannot be updated, resource name is invalid.")
	}
	settings := renderDynamicSettings(s.defaults, opts)
	return s.engine.UpdateIndexSettings(ctx, IndexName(resource, tenant), settings)
}
