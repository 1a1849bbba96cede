package events

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"lingo-service/ddd/domain/gateway"
	"lingo-service/pkg/rabbitmq"
)

// RabbitMQPublisher 将任务事件发布到 topic exchange，routing key 形如 task.success
type RabbitMQPublisher struct {
	client   *rabbitmq.Client
	exchange string
}

func NewRabbitMQPublisher(client *rabbitmq.Client, exchange string) (*RabbitMQPublisher, error) {
	if err := client.DeclareExchange(exchange); err != nil {
		return nil, err
	}
	return &RabbitMQPublisher{client: client, exchange: exchange}, nil
}

func (p *RabbitMQPublisher) Publish(ctx context.Context, event gateway.TaskEvent) error {
	body, err := json.Marshal(event)
	if err != nil {
		return err
	}
	if err := p.client.Publish(ctx, p.exchange, RoutingKey(event), body); err != nil {
		return fmt.Errorf("rabbitmq publish task event %s: %w", event.TaskID, err)
	}
	return nil
}

// RoutingKey task.<state>
func RoutingKey(event gateway.TaskEvent) string {
	return "task." + strings.ToLower(event.State)
}
