package jobs

import (
	"context"
	"crypto/rand"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/opencatalog/search-indexer/internal/model"
	apperrors "github.com/opencatalog/search-indexer/pkg/errors"
)

const (
	stagingNameLength   = 32
	stagingNameAlphabet = "abcdefghijklmnopqrstuvwxyz"
	stagingNameAttempts = 5
	streamBatchSize     = 1000
)

// IDSource streams the ids of entities matching a query, in source order.
type IDSource interface {
	StreamIDs(ctx context.Context, entityType, query string, emit func(id string) error) error
}

// IDSink receives id batches under a job's staging name.
type IDSink interface {
	Write(ctx context.Context, stagingName string, ids []string) error
}

// StreamService creates and tracks streaming resource-id jobs. Creation
// returns as soon as the job record is persisted; the id stream itself runs
// asynchronously under the caller's tenant.
type StreamService struct {
	store  Store
	runner *Runner
	source IDSource
	sink   IDSink
	logger *slog.Logger
	now    func() time.Time
}

// NewStreamService creates a StreamService.
func NewStreamService(store Store, runner *Runner, source IDSource, sink IDSink) *StreamService {
	return &StreamService{
		store:  store,
		runner: runner,
		source: source,
		sink:   sink,
		logger: slog.Default().With("component", "stream-jobs"),
		now:    time.Now,
	}
}

// CreateStreamJob persists a new in-progress job and starts its id stream.
// The staging name is random and verified unused before the record is
// written, so two concurrent jobs can never share staging state.
func (s *StreamService) CreateStreamJob(ctx context.Context, tenant, entityType, query string) (Record, error) {
	if entityType == "" {
		return Record{}, apperrors.Validation("entity type is required")
	}
	staging, err := s.reserveStagingName(ctx)
	if err != nil {
		return Record{}, err
	}

	rec := Record{
		ID:          uuid.NewString(),
		Tenant:      tenant,
		Query:       query,
		EntityType:  entityType,
		Status:      model.JobInProgress,
		StagingName: staging,
		CreatedDate: s.now().UTC(),
	}
	if err := s.store.Insert(ctx, rec); err != nil {
		return Record{}, err
	}
	s.logger.Info("stream job created", "tenant", tenant, "job_id", rec.ID, "entity_type", entityType)

	s.runner.RunAsync(tenant, rec.ID, func(ctx context.Context) error {
		return s.stream(ctx, rec)
	})
	return rec, nil
}

// GetJob returns the job record for polling.
func (s *StreamService) GetJob(ctx context.Context, tenant, id string) (Record, error) {
	return s.store.Get(ctx, tenant, id)
}

// stream drains the id source into the sink in fixed-size batches.
func (s *StreamService) stream(ctx context.Context, rec Record) error {
	batch := make([]string, 0, streamBatchSize)
	flush := func() error {
		if len(batch) == 0 {
			return nil
		}
		if err := s.sink.Write(ctx, rec.StagingName, batch); err != nil {
			return fmt.Errorf("staging %d ids for job %s: %w", len(batch), rec.ID, err)
		}
		batch = batch[:0]
		return nil
	}

	err := s.source.StreamIDs(ctx, rec.EntityType, rec.Query, func(id string) error {
		batch = append(batch, id)
		if len(batch) == streamBatchSize {
			return flush()
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("streaming ids for job %s: %w", rec.ID, err)
	}
	return flush()
}

// reserveStagingName generates a random staging name and retries on the
// unlikely collision with an existing record.
func (s *StreamService) reserveStagingName(ctx context.Context) (string, error) {
	for attempt := 0; attempt < stagingNameAttempts; attempt++ {
		name, err := randomStagingName()
		if err != nil {
			return "", err
		}
		inUse, err := s.store.StagingNameInUse(ctx, name)
		if err != nil {
			return "", err
		}
		if !inUse {
			return name, nil
		}
	}
	return "", fmt.Errorf("generating staging name: %d collisions in a row", stagingNameAttempts)
}

func randomStagingName() (string, error) {
	buf := make([]byte, stagingNameLength)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("generating staging name: %w", err)
	}
	for i, b := range buf {
		buf[i] = stagingNameAlphabet[int(b)%len(stagingNameAlphabet)]
	}
	return string(buf), nil
}
