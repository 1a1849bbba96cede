package resource

import (
	"sync"

	"lingo-service/pkg/config"
	"lingo-service/pkg/logger"
	"lingo-service/pkg/manager"
	"lingo-service/pkg/rabbitmq"
)

var (
	rabbitResourceOnce sync.Once
	rabbitSingleton    *RabbitMQResource
)

// RabbitMQResource 持有共享的 AMQP 连接
type RabbitMQResource struct {
	client *rabbitmq.Client
}

func DefaultRabbitMQResource() *RabbitMQResource {
	rabbitResourceOnce.Do(func() {
		rabbitSingleton = &RabbitMQResource{}
	})
	return rabbitSingleton
}

func (r *RabbitMQResource) MustOpen() {
	if r.client != nil {
		return
	}
	cfg := config.GetGlobalConfig()
	if !NeedsRabbitMQ(cfg) {
		logger.Debugf("RabbitMQ not required, skipped")
		return
	}
	client, err := rabbitmq.Dial(cfg.RabbitMQ.URL)
	if err != nil {
		panic(err.Error())
	}
	r.client = client
}

func (r *RabbitMQResource) Close() {
	if r.client != nil {
		r.client.Close()
		r.client = nil
	}
}

// Client nil when RabbitMQ is not in use.
func (r *RabbitMQResource) Client() *rabbitmq.Client { return r.client }

type RabbitMQResourcePlugin struct{}

func (p *RabbitMQResourcePlugin) Name() string { return "rabbitmq" }

func (p *RabbitMQResourcePlugin) MustCreateResource() manager.Resource {
	return DefaultRabbitMQResource()
}
