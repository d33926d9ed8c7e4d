package search

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"github.com/opencatalog/search-indexer/internal/model"
)

// MemoryEngine is an in-memory Engine used by tests and local development.
// Every created index gets a fresh generation uuid, so drop-and-recreate
// semantics are observable the same way they are against a real engine.
type MemoryEngine struct {
	mu      sync.RWMutex
	indexes map[string]*memIndex
}

type memIndex struct {
	uuid     string
	settings string
	mappings string
	docs     map[string][]byte
}

// NewMemoryEngine creates an empty MemoryEngine.
func NewMemoryEngine() *MemoryEngine {
	return &MemoryEngine{indexes: make(map[string]*memIndex)}
}

func (e *MemoryEngine) IndexExists(_ context.Context, index string) (bool, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	_, ok := e.indexes[index]
	return ok, nil
}

func (e *MemoryEngine) CreateIndex(_ context.Context, index, settingsJSON, mappingsJSON string) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if _, ok := e.indexes[index]; ok {
		return fmt.Errorf("index %s already exists", index)
	}
	e.indexes[index] = &memIndex{
		uuid:     uuid.NewString(),
		settings: settingsJSON,
		mappings: mappingsJSON,
		docs:     make(map[string][]byte),
	}
	return nil
}

func (e *MemoryEngine) DropIndex(_ context.Context, index string) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if _, ok := e.indexes[index]; !ok {
		return fmt.Errorf("index %s does not exist", index)
	}
	delete(e.indexes, index)
	return nil
}

func (e *MemoryEngine) UpdateMappings(_ context.Context, index, mappingsJSON string) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	idx, ok := e.indexes[index]
	if !ok {
		return fmt.Errorf("index %s does not exist", index)
	}
	idx.mappings = mappingsJSON
	return nil
}

func (e *MemoryEngine) UpdateIndexSettings(_ context.Context, index, settingsJSON string) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	idx, ok := e.indexes[index]
	if !ok {
		return fmt.Errorf("index %s does not exist", index)
	}
	idx.settings = settingsJSON
	return nil
}

// BulkWrite applies the batch atomically: every target index and action
// is checked before the first document changes, so a failed batch leaves
// no partial state behind.
func (e *MemoryEngine) BulkWrite(_ context.Context, writes []model.DocumentWrite) model.OperationResult {
	e.mu.Lock()
	defer e.mu.Unlock()
	for _, w := range writes {
		if _, ok := e.indexes[w.Index]; !ok {
			return model.ErrorResult(fmt.Sprintf("index %s does not exist", w.Index))
		}
		if w.Action != model.ActionIndex && w.Action != model.ActionDelete {
			return model.ErrorResult(fmt.Sprintf("unsupported bulk action %q", w.Action))
		}
	}
	for _, w := range writes {
		idx := e.indexes[w.Index]
		switch w.Action {
		case model.ActionIndex:
			body := make([]byte, len(w.Body))
			copy(body, w.Body)
			idx.docs[w.ID] = body
		case model.ActionDelete:
			delete(idx.docs, w.ID)
		}
	}
	return model.SuccessResult()
}

func (e *MemoryEngine) CountDocuments(_ context.Context, index string) (int, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	idx, ok := e.indexes[index]
	if !ok {
		return 0, fmt.Errorf("index %s does not exist", index)
	}
	return len(idx.docs), nil
}

func (e *MemoryEngine) IndexUUID(_ context.Context, index string) (string, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	idx, ok := e.indexes[index]
	if !ok {
		return "", fmt.Errorf("index %s does not exist", index)
	}
	return idx.uuid, nil
}

// Document returns the stored body for the given document id, if present.
func (e *MemoryEngine) Document(index, id string) ([]byte, bool) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	idx, ok := e.indexes[index]
	if !ok {
		return nil, false
	}
	body, ok := idx.docs[id]
	return body, ok
}

// Settings returns the settings JSON the index was last configured with.
func (e *MemoryEngine) Settings(index string) (string, bool) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	idx, ok := e.indexes[index]
	if !ok {
		return "", false
	}
	return idx.settings, true
}
