package rabbitmq

import (
	"context"
	"fmt"
	"sync"

	"lingo-service/pkg/logger"

	amqp "github.com/rabbitmq/amqp091-go"
)

// Client owns one AMQP connection. Channels are not safe for concurrent publishing,
// so publishers share a mutex guarded channel while consumers open their own.
type Client struct {
	conn *amqp.Connection
	pub  *amqp.Channel
	mu   sync.Mutex
}

// Dial connects to the broker.
func Dial(url string) (*Client, error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("error to connect to RabbitMQ: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("error to open channel: %w", err)
	}
	return &Client{conn: conn, pub: ch}, nil
}

// Channel opens a dedicated channel, typically for a consumer.
func (c *Client) Channel() (*amqp.Channel, error) {
	return c.conn.Channel()
}

// DeclareQueue declares a durable queue.
func (c *Client) DeclareQueue(name string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, err := c.pub.QueueDeclare(name, true, false, false, false, nil); err != nil {
		return fmt.Errorf("error to declare queue: %w", err)
	}
	return nil
}

// DeclareExchange declares a durable topic exchange.
func (c *Client) DeclareExchange(name string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.pub.ExchangeDeclare(name, amqp.ExchangeTopic, true, false, false, false, nil); err != nil {
		return fmt.Errorf("error to declare exchange: %w", err)
	}
	return nil
}

// Publish sends a persistent message.
func (c *Client) Publish(ctx context.Context, exchange, routingKey string, body []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	err := c.pub.PublishWithContext(ctx, exchange, routingKey, false, false, amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		Body:         body,
	})
	if err != nil {
		return fmt.Errorf("failed to publish message: %w", err)
	}
	return nil
}

func (c *Client) Close() {
	if c.pub != nil {
		_ = c.pub.Close()
	}
	if c.conn != nil {
		_ = c.conn.Close()
	}
	logger.Infof("RabbitMQ connection closed")
}
