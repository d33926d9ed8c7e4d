// Package search defines the boundary to the document search engine and
// its two implementations: an OpenSearch-compatible HTTP client for
// production and an in-memory engine for tests and local mode.
//
// The engine owns index storage and querying; this module only decides
// what to write and when. All index mutation in the system goes through
// the lifecycle service on top of this interface.
package search

import (
	"context"

	"github.com/opencatalog/search-indexer/internal/model"
)

// Engine is the document search engine boundary.
type Engine interface {
	// IndexExists reports whether the physical index exists.
	IndexExists(ctx context.Context, index string) (bool, error)

	// CreateIndex creates the index with the given settings and mappings
	// JSON. Creating an index that already exists is an error at this
	// level; callers check existence first.
	CreateIndex(ctx context.Context, index, settingsJSON, mappingsJSON string) error

	// DropIndex removes the index and all its documents.
	DropIndex(ctx context.Context, index string) error

	// UpdateMappings applies a mappings JSON document to an existing index.
	UpdateMappings(ctx context.Context, index, mappingsJSON string) error

	// UpdateIndexSettings applies dynamic settings to an existing index.
	UpdateIndexSettings(ctx context.Context, index, settingsJSON string) error

	// BulkWrite applies a batch of document operations. Engine failures
	// are reported in the result, not raised; a batch write replaces the
	// whole document so the last write per id within a batch wins.
	BulkWrite(ctx context.Context, writes []model.DocumentWrite) model.OperationResult

	// CountDocuments returns the number of documents in the index.
	CountDocuments(ctx context.Context, index string) (int, error)

	// IndexUUID returns the index's generation identifier, which changes
	// whenever the index is dropped and recreated.
	IndexUUID(ctx context.Context, index string) (string, error)
}
