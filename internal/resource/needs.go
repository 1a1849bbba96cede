package resource

import (
	"slices"

	"lingo-service/pkg/config"
)

// NeedsRedis 队列、结果或翻译缓存任一使用 Redis 时需要连接
func NeedsRedis(cfg *config.Config) bool {
	return cfg.Queue.Driver == "redis" ||
		cfg.Result.Driver == "redis" ||
		cfg.Translation.CacheDriver == "redis" ||
		cfg.Translation.CacheDriver == "tiered"
}

// NeedsMySQL 任务状态存储为 mysql 时需要连接
func NeedsMySQL(cfg *config.Config) bool {
	return cfg.Storage.TaskDriver == "mysql"
}

// NeedsRabbitMQ 队列或事件发布使用 RabbitMQ 时需要连接
func NeedsRabbitMQ(cfg *config.Config) bool {
	return cfg.RabbitMQ.Enabled || cfg.Queue.Driver == "rabbitmq" || slices.Contains(cfg.Events.Drivers, "rabbitmq")
}

// NeedsKafka 提交入口或事件发布使用 Kafka 时需要连接
func NeedsKafka(cfg *config.Config) bool {
	return cfg.Kafka.Enabled || slices.Contains(cfg.Events.Drivers, "kafka")
}
