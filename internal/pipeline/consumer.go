package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/opencatalog/search-indexer/internal/model"
	"github.com/opencatalog/search-indexer/pkg/config"
	apperrors "github.com/opencatalog/search-indexer/pkg/errors"
	"github.com/opencatalog/search-indexer/pkg/kafka"
	"github.com/opencatalog/search-indexer/pkg/logger"
	"github.com/opencatalog/search-indexer/pkg/resilience"
)

// instanceIDBatch is the payload of the instance-ids topic: a request to
// re-derive and re-index the listed instances for one tenant.
type instanceIDBatch struct {
	Tenant string   `json:"tenant"`
	IDs    []string `json:"ids"`
}

// writeRetry only covers transient engine trouble. Validation failures are
// permanent: redelivering the same batch cannot make it valid.
var writeRetry = resilience.RetryConfig{
	MaxAttempts: 5,
	Permanent: func(err error) bool {
		return errors.Is(err, apperrors.ErrValidation)
	},
}

// NewEventConsumer consumes raw resource events and feeds them to the
// pipeline. Writes are retried with backoff so a batch racing an index
// recreation lands once the new index is writable, instead of being
// silently dropped.
func NewEventConsumer(cfg config.KafkaConfig, topic string, service *Service) *kafka.Consumer {
	log := slog.Default().With("component", "event-consumer")
	return kafka.NewConsumer(cfg, topic, func(ctx context.Context, key, value []byte) error {
		ev, err := kafka.DecodeJSON[model.ResourceEvent](value)
		if err != nil {
			// Poison message: log and commit, redelivery cannot fix it.
			log.Error("dropping undecodable event", "key", string(key), "error", err)
			return nil
		}
		ctx = logger.WithTenant(ctx, ev.Tenant)
		return resilience.Retry(ctx, "index-resources", writeRetry, func() error {
			result, err := service.IndexResources(ctx, []model.ResourceEvent{ev})
			if err != nil {
				return err
			}
			if result.IsError() {
				return fmt.Errorf("indexing event %s: %s", ev.ID, result.Message)
			}
			return nil
		})
	})
}

// NewInstanceIDConsumer consumes id batches and re-indexes the referenced
// instances from their current source-of-truth bodies.
func NewInstanceIDConsumer(cfg config.KafkaConfig, topic string, service *Service) *kafka.Consumer {
	log := slog.Default().With("component", "instance-id-consumer")
	return kafka.NewConsumer(cfg, topic, func(ctx context.Context, key, value []byte) error {
		batch, err := kafka.DecodeJSON[instanceIDBatch](value)
		if err != nil {
			log.Error("dropping undecodable id batch", "key", string(key), "error", err)
			return nil
		}
		ctx = logger.WithTenant(ctx, batch.Tenant)
		return resilience.Retry(ctx, "index-instances-by-id", writeRetry, func() error {
			result, err := service.IndexInstancesByID(ctx, batch.Tenant, batch.IDs)
			if err != nil {
				return err
			}
			if result.IsError() {
				return fmt.Errorf("indexing %d instance ids: %s", len(batch.IDs), result.Message)
			}
			return nil
		})
	})
}
