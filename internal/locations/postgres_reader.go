package locations

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/opencatalog/search-indexer/pkg/postgres"
)

// PostgresReader loads tree-resource records from the catalog database.
//
// It requires a `catalog_records` table:
//
//	CREATE TABLE catalog_records (
//	    tenant   TEXT NOT NULL,
//	    resource TEXT NOT NULL,
//	    id       UUID NOT NULL,
//	    data     JSONB NOT NULL,
//	    PRIMARY KEY (tenant, resource, id)
//	);
type PostgresReader struct {
	db *postgres.Client
}

// NewPostgresReader creates a SourceReader backed by the given client.
func NewPostgresReader(db *postgres.Client) *PostgresReader {
	return &PostgresReader{db: db}
}

func (r *PostgresReader) Read(ctx context.Context, tenant, resource string) ([]Record, error) {
	rows, err := r.db.DB.QueryContext(ctx,
		`SELECT id, data FROM catalog_records WHERE tenant = $1 AND resource = $2 ORDER BY id`,
		tenant, resource,
	)
	if err != nil {
		return nil, fmt.Errorf("querying %s records for %s: %w", resource, tenant, err)
	}
	defer rows.Close()

	var records []Record
	for rows.Next() {
		var (
			rec  Record
			data []byte
		)
		if err := rows.Scan(&rec.ID, &data); err != nil {
			return nil, fmt.Errorf("scanning %s record: %w", resource, err)
		}
		if err := json.Unmarshal(data, &rec.Body); err != nil {
			return nil, fmt.Errorf("decoding %s record %s: %w", resource, rec.ID, err)
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating %s records: %w", resource, err)
	}
	return records, nil
}
