// Package reindex implements the reindex orchestrator: the per-resource
// decision of what a full reindex must do to physical indexes, and the
// client for external bulk-reindex producers.
package reindex

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/opencatalog/search-indexer/internal/model"
	"github.com/opencatalog/search-indexer/pkg/metrics"
	"github.com/opencatalog/search-indexer/pkg/resilience"
)

// Client submits a one-shot bulk-reindex trigger to an external producer.
// The trigger's completion is observed out of band; this client never polls.
type Client interface {
	SubmitReindex(ctx context.Context, uri string) (model.ReindexJob, error)
}

// HTTPClient is a Client over plain HTTP with a circuit breaker, so a dead
// storage module fails fast instead of tying up every orchestrator call.
type HTTPClient struct {
	http    *http.Client
	breaker *resilience.CircuitBreaker
	metrics *metrics.Metrics
	logger  *slog.Logger
}

// NewHTTPClient creates an HTTPClient with the given request timeout.
func NewHTTPClient(timeout time.Duration, m *metrics.Metrics) *HTTPClient {
	return &HTTPClient{
		http:    &http.Client{Timeout: timeout},
		breaker: resilience.NewCircuitBreaker("reindex-producer", resilience.CircuitBreakerConfig{}),
		metrics: m,
		logger:  slog.Default().With("component", "reindex-client"),
	}
}

func (c *HTTPClient) SubmitReindex(ctx context.Context, uri string) (model.ReindexJob, error) {
	var job model.ReindexJob
	err := c.breaker.Execute(func() error {
		var execErr error
		job, execErr = c.submit(ctx, uri)
		return execErr
	})
	if c.metrics != nil {
		c.metrics.CircuitBreakerState.WithLabelValues("reindex-producer").Set(float64(c.breaker.State()))
	}
	if err != nil {
		return model.ReindexJob{}, err
	}
	return job, nil
}

func (c *HTTPClient) submit(ctx context.Context, uri string) (model.ReindexJob, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, uri, bytes.NewReader([]byte("{}")))
	if err != nil {
		return model.ReindexJob{}, fmt.Errorf("building reindex request for %s: %w", uri, err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return model.ReindexJob{}, fmt.Errorf("submitting reindex to %s: %w", uri, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return model.ReindexJob{}, fmt.Errorf("reading reindex response from %s: %w", uri, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return model.ReindexJob{}, fmt.Errorf("reindex trigger %s returned %d: %s", uri, resp.StatusCode, string(body))
	}

	var job model.ReindexJob
	if len(body) > 0 {
		if err := json.Unmarshal(body, &job); err != nil {
			return model.ReindexJob{}, fmt.Errorf("decoding reindex response from %s: %w", uri, err)
		}
	}
	// Some producers acknowledge with an empty body; synthesize the handle.
	if job.ID == "" {
		job.ID = uuid.NewString()
	}
	if job.JobStatus == "" {
		job.JobStatus = model.JobInProgress
	}
	if job.SubmittedDate.IsZero() {
		job.SubmittedDate = time.Now().UTC()
	}
	c.logger.Info("reindex trigger submitted", "uri", uri, "job_id", job.ID)
	return job, nil
}
