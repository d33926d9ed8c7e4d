package pipeline

import (
	"context"

	"github.com/opencatalog/search-indexer/internal/model"
	"github.com/opencatalog/search-indexer/pkg/kafka"
)

// KafkaMessageProducer publishes derived events to the contributor topic.
type KafkaMessageProducer struct {
	producer *kafka.Producer
}

// NewKafkaMessageProducer wraps a topic producer as a MessageProducer.
func NewKafkaMessageProducer(producer *kafka.Producer) *KafkaMessageProducer {
	return &KafkaMessageProducer{producer: producer}
}

func (p *KafkaMessageProducer) Send(ctx context.Context, events []model.ResourceEvent) error {
	batch := make([]kafka.Event, 0, len(events))
	for _, ev := range events {
		// Key by tenant and id so updates for one document stay ordered
		// within a partition.
		batch = append(batch, kafka.Event{Key: ev.Tenant + ":" + ev.ID, Value: ev})
	}
	return p.producer.PublishBatch(ctx, batch)
}
