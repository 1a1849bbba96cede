// Package bootstrap assembles the dependency graph from configuration and the
// opened resources. Infrastructure packages only see raw clients; the wiring lives here.
package bootstrap

import (
	"fmt"
	"slices"

	"github.com/redis/go-redis/v9"

	"lingo-service/ddd/application/app"
	"lingo-service/ddd/domain/gateway"
	"lingo-service/ddd/domain/port"
	"lingo-service/ddd/domain/repo"
	"lingo-service/ddd/domain/service"
	"lingo-service/ddd/infrastructure/cache"
	"lingo-service/ddd/infrastructure/database/persistence"
	"lingo-service/ddd/infrastructure/events"
	"lingo-service/ddd/infrastructure/executor"
	"lingo-service/ddd/infrastructure/media"
	"lingo-service/ddd/infrastructure/progress"
	"lingo-service/ddd/infrastructure/queue"
	"lingo-service/ddd/infrastructure/result"
	"lingo-service/ddd/infrastructure/speech"
	"lingo-service/ddd/infrastructure/storage"
	"lingo-service/ddd/infrastructure/translation"
	"lingo-service/internal/resource"
	"lingo-service/pkg/config"
	"lingo-service/pkg/logger"
	"lingo-service/pkg/manager"
)

// Container 组装结果，Close 释放由 bootstrap 创建的对象（队列）
type Container struct {
	Deps  *manager.Dependencies
	Queue queue.TaskQueue
}

func (c *Container) Close() {
	if c.Queue != nil {
		if err := c.Queue.Close(); err != nil {
			logger.Warnf("Close task queue failed error=%v", err)
		}
	}
}

// Build 资源必须已通过 manager.MustInitResources 打开
func Build(cfg *config.Config) (*Container, error) {
	redisClient := resource.DefaultRedisResource().Client()

	taskRepo, err := buildTaskRepository(cfg)
	if err != nil {
		return nil, err
	}

	q, err := queue.New(cfg, queue.Backends{
		Redis:    redisClient,
		RabbitMQ: resource.DefaultRabbitMQResource().Client(),
	})
	if err != nil {
		return nil, fmt.Errorf("build task queue: %w", err)
	}

	results, err := buildResultStore(cfg, redisClient)
	if err != nil {
		_ = q.Close()
		return nil, err
	}

	chain, err := buildTranslationChain(cfg, redisClient)
	if err != nil {
		_ = q.Close()
		return nil, err
	}

	runner := executor.NewExecRunner()
	resolver := media.NewResolver(cfg.Extraction, buildStorage(), runner)
	extractor := executor.NewFFmpegExtractor(cfg.Extraction, runner, resolver)

	engine, err := speech.NewEngine(cfg.Transcription, runner)
	if err != nil {
		_ = q.Close()
		return nil, fmt.Errorf("build speech engine: %w", err)
	}
	var profiles app.ProfileResolver
	if pa, ok := engine.(speech.ProfileAware); ok {
		profiles = pa.Profiles()
	}
	transcriber := service.NewTranscriptionService(engine, service.TranscriptionConfig{
		DefaultProfile:              cfg.Transcription.DefaultProfile,
		LanguageConfidenceThreshold: cfg.Transcription.LanguageConfidenceThreshold,
	})

	sink := progress.NewRepoSink(taskRepo)
	pipeline := service.NewPipelineService(extractor, transcriber, chain, results, sink, sink, service.PipelineConfig{
		Extract: port.ExtractOptions{
			SampleRate:       cfg.Extraction.SampleRate,
			Mono:             true,
			MaxChunkDuration: cfg.Extraction.MaxChunkDuration,
		},
	})

	publisher, err := buildPublisher(cfg)
	if err != nil {
		_ = q.Close()
		return nil, err
	}

	taskApp := app.NewTaskApp(app.TaskAppDeps{
		Repo:           taskRepo,
		Queue:          q,
		Results:        results,
		Resolver:       resolver,
		Profiles:       profiles,
		Providers:      chain,
		Publisher:      publisher,
		Prober:         resolver,
		DefaultProfile: cfg.Transcription.DefaultProfile,
	})

	logger.Info("Dependencies assembled", map[string]interface{}{
		"task_driver":   cfg.Storage.TaskDriver,
		"queue_driver":  cfg.Queue.Driver,
		"result_driver": cfg.Result.Driver,
		"cache_driver":  cfg.Translation.CacheDriver,
		"speech_engine": engine.Name(),
		"event_drivers": cfg.Events.Drivers,
	})

	return &Container{
		Deps: &manager.Dependencies{
			Config:    cfg,
			TaskApp:   taskApp,
			TaskRepo:  taskRepo,
			Queue:     q,
			Pipeline:  pipeline,
			Chain:     chain,
			Publisher: publisher,
			Kafka:     resource.DefaultKafkaResource().Client(),
		},
		Queue: q,
	}, nil
}

func buildTaskRepository(cfg *config.Config) (repo.TaskRepository, error) {
	switch cfg.Storage.TaskDriver {
	case "mysql":
		db := resource.DefaultMySqlResource().DB()
		if db == nil {
			return nil, fmt.Errorf("task driver mysql requires a database connection")
		}
		if cfg.Database.AutoMigrate {
			if err := persistence.AutoMigrate(db); err != nil {
				return nil, fmt.Errorf("migrate task table: %w", err)
			}
		}
		return persistence.NewTaskRepository(db), nil
	case "memory":
		logger.Warnf("Using in-memory task repository, state is lost on restart")
		return persistence.NewMemoryTaskRepository(), nil
	}
	return nil, fmt.Errorf("unknown task driver %q", cfg.Storage.TaskDriver)
}

func buildResultStore(cfg *config.Config, client *redis.Client) (repo.ResultStore, error) {
	switch cfg.Result.Driver {
	case "redis":
		if client == nil {
			return nil, fmt.Errorf("result driver redis requires a redis connection")
		}
		return result.NewRedisResultStore(client, cfg.Result.KeyPrefix, cfg.Result.Expiration), nil
	case "memory":
		return result.NewMemoryResultStore(cfg.Result.Expiration), nil
	}
	return nil, fmt.Errorf("unknown result driver %q", cfg.Result.Driver)
}

func buildTranslationChain(cfg *config.Config, client *redis.Client) (*service.TranslationChain, error) {
	tc := cfg.Translation
	var c port.TranslationCache
	switch tc.CacheDriver {
	case "memory", "":
		c = cache.NewMemoryCache(tc.CacheCapacity)
	case "redis", "tiered":
		if client == nil {
			return nil, fmt.Errorf("translation cache %s requires a redis connection", tc.CacheDriver)
		}
		shared := cache.NewRedisCache(client, "lingo:translation:", tc.CacheTTL)
		if tc.CacheDriver == "redis" {
			c = shared
		} else {
			c = cache.NewTieredCache(cache.NewMemoryCache(tc.CacheCapacity), shared)
		}
	default:
		return nil, fmt.Errorf("unknown translation cache driver %q", tc.CacheDriver)
	}

	specs, err := translation.BuildProviders(tc.Providers)
	if err != nil {
		return nil, fmt.Errorf("build translation providers: %w", err)
	}
	if len(specs) == 0 {
		logger.Warnf("No translation providers enabled, translation requests will fail")
	}
	return service.NewTranslationChain(service.ChainConfig{
		MaxTextLength:      tc.MaxTextLength,
		RateWaitTimeout:    tc.RateWaitTimeout,
		FailureThreshold:   tc.FailureThreshold,
		FailureWindow:      tc.FailureWindow,
		Cooldown:           tc.Cooldown,
		SegmentConcurrency: tc.SegmentConcurrency,
	}, c, specs), nil
}

// buildStorage 未启用 MinIO 时返回 nil 接口，s3:// 引用会被拒绝
func buildStorage() gateway.StorageGateway {
	r := resource.DefaultMinioResource()
	if r.GetClient() == nil {
		return nil
	}
	return storage.NewMinioStorage(r.GetClient(), r.GetBucketName())
}

func buildPublisher(cfg *config.Config) (gateway.TaskEventPublisher, error) {
	var publishers []gateway.TaskEventPublisher
	if slices.Contains(cfg.Events.Drivers, "kafka") {
		client := resource.DefaultKafkaResource().Client()
		if client == nil || cfg.Kafka.Topics.TaskEvents == "" {
			return nil, fmt.Errorf("kafka events require a kafka connection and topics.task_events")
		}
		publishers = append(publishers, events.NewKafkaPublisher(client, cfg.Kafka.Topics.TaskEvents))
	}
	if slices.Contains(cfg.Events.Drivers, "rabbitmq") {
		client := resource.DefaultRabbitMQResource().Client()
		if client == nil {
			return nil, fmt.Errorf("rabbitmq events require a rabbitmq connection")
		}
		p, err := events.NewRabbitMQPublisher(client, cfg.RabbitMQ.EventExchange)
		if err != nil {
			return nil, fmt.Errorf("declare event exchange: %w", err)
		}
		publishers = append(publishers, p)
	}
	if len(publishers) == 0 {
		return events.NopPublisher{}, nil
	}
	return events.NewMultiPublisher(publishers...), nil
}
