package jobs

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/opencatalog/search-indexer/internal/model"
	"github.com/opencatalog/search-indexer/pkg/logger"
	"github.com/opencatalog/search-indexer/pkg/metrics"
)

// Runner executes units of work asynchronously with a tenant bound into the
// work's context for its entire execution. Each submission gets its own
// goroutine; there is no queue and no global lock across tenants.
type Runner struct {
	store   Store
	metrics *metrics.Metrics
	logger  *slog.Logger
	wg      sync.WaitGroup
}

// NewRunner creates a Runner recording terminal statuses in the given Store.
func NewRunner(store Store, m *metrics.Metrics) *Runner {
	return &Runner{
		store:   store,
		metrics: m,
		logger:  slog.Default().With("component", "job-runner"),
	}
}

// RunAsync starts work on its own goroutine and returns immediately. The
// tenant id is bound into the context so every downstream call resolves the
// caller's indexes. Errors and panics from work are captured into the job's
// terminal status, never lost.
func (r *Runner) RunAsync(tenantID, jobID string, work func(ctx context.Context) error) {
	ctx := logger.WithTenant(context.Background(), tenantID)
	if r.metrics != nil {
		r.metrics.JobsRunning.Inc()
	}
	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		if r.metrics != nil {
			defer r.metrics.JobsRunning.Dec()
		}
		err := r.run(ctx, work)
		if err != nil {
			r.logger.Error("job failed", "tenant", tenantID, "job_id", jobID, "error", err)
			r.finish(ctx, tenantID, jobID, model.JobError, err.Error())
			return
		}
		r.logger.Info("job completed", "tenant", tenantID, "job_id", jobID)
		r.finish(ctx, tenantID, jobID, model.JobCompleted, "")
	}()
}

// run invokes work, converting a panic into an ordinary error.
func (r *Runner) run(ctx context.Context, work func(ctx context.Context) error) (err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("job panicked: %v", rec)
		}
	}()
	return work(ctx)
}

func (r *Runner) finish(ctx context.Context, tenantID, jobID string, status model.JobStatus, errorText string) {
	if err := r.store.SetStatus(ctx, tenantID, jobID, status, errorText); err != nil {
		r.logger.Error("recording job status failed", "tenant", tenantID, "job_id", jobID, "error", err)
	}
}

// Wait blocks until every submitted job has finished. Used on shutdown and
// in tests.
func (r *Runner) Wait() {
	r.wg.Wait()
}
