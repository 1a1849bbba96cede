package events

import (
	"context"
	"fmt"

	"lingo-service/ddd/domain/gateway"
	"lingo-service/pkg/kafka"
)

// KafkaPublisher 将任务事件写入 Kafka，以任务ID作为消息 key
type KafkaPublisher struct {
	client *kafka.Client
	topic  string
}

func NewKafkaPublisher(client *kafka.Client, topic string) *KafkaPublisher {
	return &KafkaPublisher{client: client, topic: topic}
}

func (p *KafkaPublisher) Publish(ctx context.Context, event gateway.TaskEvent) error {
	if err := p.client.ProduceJSON(ctx, p.topic, event.TaskID, event); err != nil {
		return fmt.Errorf("kafka publish task event %s: %w", event.TaskID, err)
	}
	return nil
}
