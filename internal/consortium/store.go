package consortium

import (
	"context"
	"sync"
	"time"
)

// Claim records one member tenant's current state for a shared resource id.
type Claim struct {
	Tenant    string    `json:"tenant"`
	Payload   []byte    `json:"payload"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// Store tracks per-tenant provenance for shared resource ids. Presence
// alone is not enough: a delete from one member removes the id from the
// central index only when no other member still claims it.
type Store interface {
	Save(ctx context.Context, centralTenant, resourceID string, claim Claim) error
	Remove(ctx context.Context, centralTenant, resourceID, memberTenant string) error
	Claims(ctx context.Context, centralTenant, resourceID string) ([]Claim, error)
	DeleteAll(ctx context.Context, centralTenant string) error
}

// MemoryStore is an in-memory Store used by tests and local mode.
type MemoryStore struct {
	mu     sync.RWMutex
	claims map[string]map[string]Claim
}

// NewMemoryStore creates an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{claims: make(map[string]map[string]Claim)}
}

func (s *MemoryStore) key(centralTenant, resourceID string) string {
	return centralTenant + "|" + resourceID
}

func (s *MemoryStore) Save(_ context.Context, centralTenant, resourceID string, claim Claim) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := s.key(centralTenant, resourceID)
	if s.claims[key] == nil {
		s.claims[key] = make(map[string]Claim)
	}
	s.claims[key][claim.Tenant] = claim
	return nil
}

func (s *MemoryStore) Remove(_ context.Context, centralTenant, resourceID, memberTenant string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := s.key(centralTenant, resourceID)
	delete(s.claims[key], memberTenant)
	if len(s.claims[key]) == 0 {
		delete(s.claims, key)
	}
	return nil
}

func (s *MemoryStore) Claims(_ context.Context, centralTenant, resourceID string) ([]Claim, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	byTenant := s.claims[s.key(centralTenant, resourceID)]
	out := make([]Claim, 0, len(byTenant))
	for _, claim := range byTenant {
		out = append(out, claim)
	}
	return out, nil
}

func (s *MemoryStore) DeleteAll(_ context.Context, centralTenant string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	prefix := centralTenant + "|"
	for key := range s.claims {
		if len(key) > len(prefix) && key[:len(prefix)] == prefix {
			delete(s.claims, key)
		}
	}
	return nil
}
