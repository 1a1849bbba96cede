package worker

import (
	"fmt"

	"lingo-service/pkg/config"
	"lingo-service/pkg/logger"
	"lingo-service/pkg/manager"
	"lingo-service/pkg/task"
)

// PipelineWorkerComponentPlugin 负责组装工作池和恢复流程
type PipelineWorkerComponentPlugin struct{}

func (p *PipelineWorkerComponentPlugin) Name() string {
	return "pipelineWorkerComponent"
}

func (p *PipelineWorkerComponentPlugin) MustCreateComponent(deps *manager.Dependencies) manager.Component {
	cfg := deps.Config
	if cfg == nil {
		cfg = config.GetGlobalConfig()
	}
	if !cfg.Worker.Enabled {
		return nil
	}
	if deps.Pipeline == nil || deps.TaskRepo == nil || deps.Queue == nil {
		panic("pipeline worker requires pipeline, task repository and queue")
	}

	pool := NewPipelineWorker(Config{
		WorkerID:            cfg.Worker.WorkerID,
		PoolSize:            cfg.Worker.PoolSize,
		HeartbeatInterval:   cfg.Worker.HeartbeatInterval,
		SoftTimeout:         cfg.Scheduler.SoftTimeout,
		HardTimeout:         cfg.Scheduler.HardTimeout,
		MaxRequeue:          cfg.Scheduler.MaxRequeue,
		RetryOnTimeout:      cfg.Scheduler.RetryOnTimeout,
		ShutdownGracePeriod: cfg.Worker.ShutdownGracePeriod,
	}, deps.Queue, deps.TaskRepo, deps.Pipeline, deps.Publisher)

	recovery := NewRecovery(RecoveryConfig{
		StaleAfter: cfg.Scheduler.StaleAfter,
		Interval:   cfg.Scheduler.RecoveryInterval,
		MaxRequeue: cfg.Scheduler.MaxRequeue,
	}, deps.TaskRepo, deps.Queue, deps.Publisher)

	return &pipelineWorkerComponent{
		name:     "pipelineWorker",
		pool:     pool,
		recovery: recovery,
	}
}

type pipelineWorkerComponent struct {
	name     string
	pool     *PipelineWorker
	recovery *Recovery
}

// Start 注册后台任务，由 task 管理器统一启动
func (c *pipelineWorkerComponent) Start() error {
	if c.pool == nil {
		return fmt.Errorf("pipeline worker not initialized")
	}
	// 恢复先于工作池启动，保证遗留消息先回到队列
	task.Register(c.recovery)
	task.Register(c.pool)
	logger.Infof("Pipeline worker component registered background tasks name=%s", c.name)
	return nil
}

// Stop 背景任务由 task 管理器停止，这里保持幂等
func (c *pipelineWorkerComponent) Stop() error {
	logger.Infof("Pipeline worker component stopped name=%s stats=%+v", c.name, c.pool.GetStats())
	return nil
}

func (c *pipelineWorkerComponent) GetName() string {
	return c.name
}
