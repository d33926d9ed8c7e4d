package jobs

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/lib/pq"

	"github.com/opencatalog/search-indexer/pkg/logger"
	"github.com/opencatalog/search-indexer/pkg/postgres"
)

// PostgresIDSource streams entity ids from the catalog database. The tenant
// comes from the context the job runner bound, not from a parameter, so a
// job can never read across tenants.
type PostgresIDSource struct {
	db *postgres.Client
}

// NewPostgresIDSource creates an IDSource backed by the given client.
func NewPostgresIDSource(db *postgres.Client) *PostgresIDSource {
	return &PostgresIDSource{db: db}
}

func (s *PostgresIDSource) StreamIDs(ctx context.Context, entityType, query string, emit func(id string) error) error {
	tenant, ok := logger.TenantFromContext(ctx)
	if !ok {
		return fmt.Errorf("streaming %s ids: no tenant bound to context", entityType)
	}
	rows, err := s.db.DB.QueryContext(ctx,
		`SELECT id FROM catalog_records
		 WHERE tenant = $1 AND resource = $2 AND ($3 = '' OR data::text LIKE '%' || $3 || '%')
		 ORDER BY id`,
		tenant, entityType, query,
	)
	if err != nil {
		return fmt.Errorf("querying %s ids: %w", entityType, err)
	}
	defer rows.Close()

	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return fmt.Errorf("scanning %s id: %w", entityType, err)
		}
		if err := emit(id); err != nil {
			return err
		}
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("iterating %s ids: %w", entityType, err)
	}
	return nil
}

// PostgresIDSink stages streamed ids under the job's staging name.
//
// It requires a `stream_job_ids` table:
//
//	CREATE TABLE stream_job_ids (
//	    staging_name TEXT NOT NULL,
//	    id           UUID NOT NULL
//	);
type PostgresIDSink struct {
	db *postgres.Client
}

// NewPostgresIDSink creates an IDSink backed by the given client.
func NewPostgresIDSink(db *postgres.Client) *PostgresIDSink {
	return &PostgresIDSink{db: db}
}

func (s *PostgresIDSink) Write(ctx context.Context, stagingName string, ids []string) error {
	err := s.db.InTx(ctx, func(tx *sql.Tx) error {
		stmt, err := tx.PrepareContext(ctx, pq.CopyIn("stream_job_ids", "staging_name", "id"))
		if err != nil {
			return fmt.Errorf("preparing staging copy: %w", err)
		}
		defer stmt.Close()
		for _, id := range ids {
			if _, err := stmt.ExecContext(ctx, stagingName, id); err != nil {
				return fmt.Errorf("copying id %s: %w", id, err)
			}
		}
		// Closing the COPY stream flushes it.
		if _, err := stmt.ExecContext(ctx); err != nil {
			return fmt.Errorf("flushing staging copy: %w", err)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("staging %d ids under %s: %w", len(ids), stagingName, err)
	}
	return nil
}
