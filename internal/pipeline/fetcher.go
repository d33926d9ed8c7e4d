package pipeline

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/lib/pq"

	"github.com/opencatalog/search-indexer/internal/model"
	"github.com/opencatalog/search-indexer/pkg/postgres"
)

// PostgresFetcher loads current instance bodies from the catalog database
// and replays them as update events. Ids with no backing row become delete
// events so a stale document cannot outlive its record.
type PostgresFetcher struct {
	db       *postgres.Client
	resource string
}

// NewPostgresFetcher creates a ResourceFetcher for the given resource type.
func NewPostgresFetcher(db *postgres.Client, resource string) *PostgresFetcher {
	return &PostgresFetcher{db: db, resource: resource}
}

func (f *PostgresFetcher) Fetch(ctx context.Context, tenant string, ids []string) ([]model.ResourceEvent, error) {
	rows, err := f.db.DB.QueryContext(ctx,
		`SELECT id, data FROM catalog_records
		 WHERE tenant = $1 AND resource = $2 AND id = ANY($3::uuid[])`,
		tenant, f.resource, pq.Array(ids),
	)
	if err != nil {
		return nil, fmt.Errorf("fetching %s records: %w", f.resource, err)
	}
	defer rows.Close()

	found := make(map[string]bool, len(ids))
	var events []model.ResourceEvent
	for rows.Next() {
		var (
			id   string
			data []byte
		)
		if err := rows.Scan(&id, &data); err != nil {
			return nil, fmt.Errorf("scanning %s record: %w", f.resource, err)
		}
		var body map[string]any
		if err := json.Unmarshal(data, &body); err != nil {
			return nil, fmt.Errorf("decoding %s record %s: %w", f.resource, id, err)
		}
		found[id] = true
		events = append(events, model.ResourceEvent{
			ID:       id,
			Resource: f.resource,
			Tenant:   tenant,
			Type:     model.EventUpdate,
			New:      body,
		})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating %s records: %w", f.resource, err)
	}

	for _, id := range ids {
		if !found[id] {
			events = append(events, model.ResourceEvent{
				ID:       id,
				Resource: f.resource,
				Tenant:   tenant,
				Type:     model.EventDelete,
			})
		}
	}
	return events, nil
}
