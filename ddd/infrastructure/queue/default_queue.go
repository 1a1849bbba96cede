package queue

import (
	"fmt"

	"github.com/redis/go-redis/v9"

	"lingo-service/pkg/config"
	"lingo-service/pkg/rabbitmq"
)

// Backends carries the connections a queue driver may need.
type Backends struct {
	Redis    *redis.Client
	RabbitMQ *rabbitmq.Client
}

// New 根据配置创建任务队列
func New(cfg *config.Config, b Backends) (TaskQueue, error) {
	switch cfg.Queue.Driver {
	case "redis":
		if b.Redis == nil {
			return nil, fmt.Errorf("queue driver redis requires a redis connection")
		}
		return NewRedisTaskQueue(b.Redis, cfg.Queue.Name, cfg.Worker.WorkerID), nil
	case "rabbitmq":
		if b.RabbitMQ == nil {
			return nil, fmt.Errorf("queue driver rabbitmq requires rabbitmq.enabled")
		}
		return NewRabbitMQTaskQueue(b.RabbitMQ, cfg.Queue.Name, cfg.RabbitMQ.Prefetch)
	case "memory":
		return NewMemoryTaskQueue(cfg.Queue.Capacity), nil
	}
	return nil, fmt.Errorf("unknown queue driver %q", cfg.Queue.Driver)
}
