// Package jobs tracks long-running tenant-scoped work: job records, the
// async runner that binds tenant context to each unit of work, and the
// streaming resource-id job service.
package jobs

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/opencatalog/search-indexer/internal/model"
	apperrors "github.com/opencatalog/search-indexer/pkg/errors"
)

// Record is one persisted streaming job.
type Record struct {
	ID          string          `json:"id"`
	Tenant      string          `json:"-"`
	Query       string          `json:"query"`
	EntityType  string          `json:"entityType"`
	Status      model.JobStatus `json:"status"`
	StagingName string          `json:"-"`
	CreatedDate time.Time       `json:"createdDate"`
	ErrorText   string          `json:"errorText,omitempty"`
}

// Store persists job records. Status updates must be monotonic: once a
// record is terminal it never leaves that state.
type Store interface {
	Insert(ctx context.Context, rec Record) error
	Get(ctx context.Context, tenant, id string) (Record, error)
	SetStatus(ctx context.Context, tenant, id string, status model.JobStatus, errorText string) error
	StagingNameInUse(ctx context.Context, name string) (bool, error)
}

// MemoryStore is an in-memory Store used by tests and local mode.
type MemoryStore struct {
	mu      sync.RWMutex
	records map[string]Record
	staging map[string]bool
}

// NewMemoryStore creates an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		records: make(map[string]Record),
		staging: make(map[string]bool),
	}
}

func (s *MemoryStore) key(tenant, id string) string {
	return tenant + "|" + id
}

func (s *MemoryStore) Insert(_ context.Context, rec Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records[s.key(rec.Tenant, rec.ID)] = rec
	if rec.StagingName != "" {
		s.staging[rec.StagingName] = true
	}
	return nil
}

func (s *MemoryStore) Get(_ context.Context, tenant, id string) (Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, ok := s.records[s.key(tenant, id)]
	if !ok {
		return Record{}, apperrors.Newf(apperrors.ErrJobNotFound, http.StatusNotFound, "job %s not found", id)
	}
	return rec, nil
}

func (s *MemoryStore) SetStatus(_ context.Context, tenant, id string, status model.JobStatus, errorText string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := s.key(tenant, id)
	rec, ok := s.records[key]
	if !ok {
		return apperrors.Newf(apperrors.ErrJobNotFound, http.StatusNotFound, "job %s not found", id)
	}
	if rec.Status.Terminal() {
		return nil
	}
	rec.Status = status
	rec.ErrorText = errorText
	s.records[key] = rec
	return nil
}

func (s *MemoryStore) StagingNameInUse(_ context.Context, name string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.staging[name], nil
}
