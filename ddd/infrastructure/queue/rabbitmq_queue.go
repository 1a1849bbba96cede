package queue

import (
	"context"
	"fmt"
	"sync"

	amqp "github.com/rabbitmq/amqp091-go"

	"lingo-service/pkg/rabbitmq"
)

// RabbitMQTaskQueue publishes task ids as persistent messages on a durable queue and
// acknowledges them manually, so unacked deliveries return to the queue when a
// worker disconnects.
type RabbitMQTaskQueue struct {
	client   *rabbitmq.Client
	name     string
	prefetch int

	mu         sync.Mutex
	ch         *amqp.Channel
	deliveries <-chan amqp.Delivery
	closed     bool
}

func NewRabbitMQTaskQueue(client *rabbitmq.Client, name string, prefetch int) (*RabbitMQTaskQueue, error) {
	if err := client.DeclareQueue(name); err != nil {
		return nil, err
	}
	if prefetch <= 0 {
		prefetch = 1
	}
	return &RabbitMQTaskQueue{client: client, name: name, prefetch: prefetch}, nil
}

func (q *RabbitMQTaskQueue) Enqueue(ctx context.Context, taskID string) error {
	q.mu.Lock()
	closed := q.closed
	q.mu.Unlock()
	if closed {
		return ErrQueueClosed
	}
	return q.client.Publish(ctx, "", q.name, []byte(taskID))
}

// consume lazily opens the consumer channel on first Dequeue.
func (q *RabbitMQTaskQueue) consume() (<-chan amqp.Delivery, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return nil, ErrQueueClosed
	}
	if q.deliveries != nil {
		return q.deliveries, nil
	}
	ch, err := q.client.Channel()
	if err != nil {
		return nil, fmt.Errorf("open consumer channel: %w", err)
	}
	if err := ch.Qos(q.prefetch, 0, false); err != nil {
		_ = ch.Close()
		return nil, fmt.Errorf("set qos: %w", err)
	}
	msgs, err := ch.Consume(q.name, "", false, false, false, false, nil)
	if err != nil {
		_ = ch.Close()
		return nil, fmt.Errorf("consume %s: %w", q.name, err)
	}
	q.ch = ch
	q.deliveries = msgs
	return msgs, nil
}

func (q *RabbitMQTaskQueue) Dequeue(ctx context.Context) (*Delivery, error) {
	msgs, err := q.consume()
	if err != nil {
		return nil, err
	}
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case msg, ok := <-msgs:
		if !ok {
			return nil, ErrQueueClosed
		}
		return NewDelivery(string(msg.Body), func(context.Context) error {
			return msg.Ack(false)
		}), nil
	}
}

func (q *RabbitMQTaskQueue) Size(context.Context) (int64, error) {
	ch, err := q.client.Channel()
	if err != nil {
		return 0, err
	}
	defer ch.Close()
	info, err := ch.QueueDeclarePassive(q.name, true, false, false, false, nil)
	if err != nil {
		return 0, err
	}
	return int64(info.Messages), nil
}

// Close closes the consumer channel; unacked messages are redelivered by the broker.
func (q *RabbitMQTaskQueue) Close() error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return nil
	}
	q.closed = true
	if q.ch != nil {
		return q.ch.Close()
	}
	return nil
}
