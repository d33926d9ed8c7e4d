package jobs

import (
	"context"
	"database/sql"
	"fmt"
	"net/http"

	"github.com/opencatalog/search-indexer/internal/model"
	apperrors "github.com/opencatalog/search-indexer/pkg/errors"
	"github.com/opencatalog/search-indexer/pkg/postgres"
)

// PostgresStore persists job records in PostgreSQL.
//
// It requires a `stream_jobs` table:
//
//	CREATE TABLE stream_jobs (
//	    id           UUID PRIMARY KEY,
//	    tenant       TEXT NOT NULL,
//	    query        TEXT NOT NULL,
//	    entity_type  TEXT NOT NULL,
//	    status       TEXT NOT NULL,
//	    staging_name TEXT NOT NULL UNIQUE,
//	    created_date TIMESTAMPTZ NOT NULL,
//	    error_text   TEXT NOT NULL DEFAULT ''
//	);
type PostgresStore struct {
	db *postgres.Client
}

// NewPostgresStore creates a Store backed by the given Postgres client.
func NewPostgresStore(db *postgres.Client) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) Insert(ctx context.Context, rec Record) error {
	_, err := s.db.DB.ExecContext(ctx,
		`INSERT INTO stream_jobs (id, tenant, query, entity_type, status, staging_name, created_date, error_text)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		rec.ID, rec.Tenant, rec.Query, rec.EntityType, string(rec.Status), rec.StagingName, rec.CreatedDate, rec.ErrorText,
	)
	if err != nil {
		return fmt.Errorf("inserting job %s: %w", rec.ID, err)
	}
	return nil
}

func (s *PostgresStore) Get(ctx context.Context, tenant, id string) (Record, error) {
	var (
		rec    Record
		status string
	)
	err := s.db.DB.QueryRowContext(ctx,
		`SELECT id, tenant, query, entity_type, status, staging_name, created_date, error_text
		 FROM stream_jobs WHERE tenant = $1 AND id = $2`,
		tenant, id,
	).Scan(&rec.ID, &rec.Tenant, &rec.Query, &rec.EntityType, &status, &rec.StagingName, &rec.CreatedDate, &rec.ErrorText)
	if err == sql.ErrNoRows {
		return Record{}, apperrors.Newf(apperrors.ErrJobNotFound, http.StatusNotFound, "job %s not found", id)
	}
	if err != nil {
		return Record{}, fmt.Errorf("querying job %s: %w", id, err)
	}
	rec.Status = model.JobStatus(status)
	return rec, nil
}

func (s *PostgresStore) SetStatus(ctx context.Context, tenant, id string, status model.JobStatus, errorText string) error {
	// Terminal states stick: the WHERE clause refuses to move a job out
	// of Completed or Error.
	result, err := s.db.DB.ExecContext(ctx,
		`UPDATE stream_jobs SET status = $1, error_text = $2
		 WHERE tenant = $3 AND id = $4 AND status NOT IN ($5, $6)`,
		string(status), errorText, tenant, id,
		string(model.JobCompleted), string(model.JobError),
	)
	if err != nil {
		return fmt.Errorf("updating job %s status: %w", id, err)
	}
	if _, err := result.RowsAffected(); err != nil {
		return fmt.Errorf("updating job %s status: %w", id, err)
	}
	return nil
}

func (s *PostgresStore) StagingNameInUse(ctx context.Context, name string) (bool, error) {
	var exists bool
	err := s.db.DB.QueryRowContext(ctx,
		`SELECT EXISTS (SELECT 1 FROM stream_jobs WHERE staging_name = $1)`,
		name,
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("checking staging name %s: %w", name, err)
	}
	return exists, nil
}
