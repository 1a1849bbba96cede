package resource

import (
	"sync"

	"lingo-service/pkg/config"
	"lingo-service/pkg/kafka"
	"lingo-service/pkg/logger"
	"lingo-service/pkg/manager"
)

var (
	kafkaResourceOnce sync.Once
	kafkaSingleton    *KafkaResource
)

// KafkaResource 持有共享的 Kafka 客户端
type KafkaResource struct {
	client *kafka.Client
}

func DefaultKafkaResource() *KafkaResource {
	kafkaResourceOnce.Do(func() {
		kafkaSingleton = &KafkaResource{}
	})
	return kafkaSingleton
}

func (r *KafkaResource) MustOpen() {
	if r.client != nil {
		return
	}
	cfg := config.GetGlobalConfig()
	if !NeedsKafka(cfg) {
		logger.Debugf("Kafka not required, skipped")
		return
	}
	r.client = kafka.NewClient(cfg.Kafka)
	for _, topic := range []string{cfg.Kafka.Topics.TaskSubmissions, cfg.Kafka.Topics.TaskEvents} {
		if topic == "" {
			continue
		}
		if err := r.client.EnsureTopic(topic, 1, 1); err != nil {
			// 主题可能已存在或由运维预先创建
			logger.Warnf("Ensure kafka topic failed topic=%s error=%v", topic, err)
		}
	}
}

func (r *KafkaResource) Close() {
	if r.client != nil {
		r.client.Close()
		r.client = nil
	}
}

// Client nil when Kafka is not in use.
func (r *KafkaResource) Client() *kafka.Client { return r.client }

type KafkaResourcePlugin struct{}

func (p *KafkaResourcePlugin) Name() string { return "kafka" }

func (p *KafkaResourcePlugin) MustCreateResource() manager.Resource { return DefaultKafkaResource() }
