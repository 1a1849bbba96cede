package resource

import "lingo-service/pkg/manager"

func init() {
	// 注册资源插件；未启用的资源在 MustOpen 中跳过
	manager.RegisterResourcePlugin(&MySqlResourcePlugin{})
	manager.RegisterResourcePlugin(&RedisResourcePlugin{})
	manager.RegisterResourcePlugin(&MinioResourcePlugin{})
	manager.RegisterResourcePlugin(&KafkaResourcePlugin{})
	manager.RegisterResourcePlugin(&RabbitMQResourcePlugin{})
}
