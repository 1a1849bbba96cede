package worker

import (
	"context"
	"fmt"
	"sync"
	"time"

	"lingo-service/ddd/domain/entity"
	"lingo-service/ddd/domain/fault"
	"lingo-service/ddd/domain/gateway"
	"lingo-service/ddd/domain/repo"
	"lingo-service/ddd/domain/vo"
	"lingo-service/ddd/infrastructure/queue"
	"lingo-service/pkg/logger"
)

// recoverableQueue is implemented by queues that keep in-flight messages per consumer.
type recoverableQueue interface {
	Recover(ctx context.Context) (int, error)
}

// RecoveryConfig 恢复流程配置
type RecoveryConfig struct {
	StaleAfter time.Duration
	Interval   time.Duration
	MaxRequeue int
	BatchSize  int
}

// Recovery 在启动时重新投递遗留任务，并周期性接管心跳超时的 RUNNING 任务和消息丢失的 PENDING 任务
type Recovery struct {
	cfg       RecoveryConfig
	repo      repo.TaskRepository
	queue     queue.TaskQueue
	publisher gateway.TaskEventPublisher
	now       func() time.Time

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

func NewRecovery(cfg RecoveryConfig, r repo.TaskRepository, q queue.TaskQueue, publisher gateway.TaskEventPublisher) *Recovery {
	if cfg.StaleAfter <= 0 {
		cfg.StaleAfter = time.Minute
	}
	if cfg.Interval <= 0 {
		cfg.Interval = 30 * time.Second
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 500
	}
	return &Recovery{cfg: cfg, repo: r, queue: q, publisher: publisher, now: time.Now}
}

func (rc *Recovery) Name() string { return "taskRecovery" }

// Start 先执行一次启动恢复，再开启周期巡检
func (rc *Recovery) Start(ctx context.Context) error {
	if err := rc.RecoverOnStartup(ctx); err != nil {
		return err
	}
	loopCtx, cancel := context.WithCancel(ctx)
	rc.cancel = cancel
	rc.wg.Add(1)
	go rc.loop(loopCtx)
	return nil
}

func (rc *Recovery) Stop() error {
	if rc.cancel != nil {
		rc.cancel()
	}
	rc.wg.Wait()
	return nil
}

// RecoverOnStartup 把本节点处理队列中的消息放回待处理队列，并重新投递所有 PENDING 任务。
// 重复投递由领取时的状态检查过滤。
func (rc *Recovery) RecoverOnStartup(ctx context.Context) error {
	if rq, ok := rc.queue.(recoverableQueue); ok {
		n, err := rq.Recover(ctx)
		if err != nil {
			return fmt.Errorf("recover processing list: %w", err)
		}
		if n > 0 {
			logger.Infof("Recovered in-flight deliveries count=%d", n)
		}
	}
	pending, err := rc.repo.ListByState(ctx, vo.TaskStatePending, rc.cfg.BatchSize)
	if err != nil {
		return fmt.Errorf("list pending tasks: %w", err)
	}
	for _, t := range pending {
		if err := rc.queue.Enqueue(ctx, t.TaskID()); err != nil {
			logger.Errorf("Re-enqueue pending task failed task_id=%s error=%v", t.TaskID(), err)
		}
	}
	if len(pending) > 0 {
		logger.Infof("Re-enqueued pending tasks count=%d", len(pending))
	}
	return nil
}

func (rc *Recovery) loop(ctx context.Context) {
	defer rc.wg.Done()
	ticker := time.NewTicker(rc.cfg.Interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			rc.RecoverStale(ctx)
			rc.RecoverPending(ctx)
		}
	}
}

// RecoverStale 心跳超时的 RUNNING 任务视为 worker 崩溃：预算内重新入队，否则 WorkerFault
func (rc *Recovery) RecoverStale(ctx context.Context) int {
	running, err := rc.repo.ListByState(ctx, vo.TaskStateRunning, rc.cfg.BatchSize)
	if err != nil {
		logger.Errorf("List running tasks failed error=%v", err)
		return 0
	}
	recovered := 0
	for _, candidate := range running {
		if !rc.isStale(candidate) {
			continue
		}
		requeued := false
		final, err := rc.repo.Update(ctx, candidate.TaskID(), func(t *entity.TaskEntity) error {
			if !t.IsRunning() || !rc.isStale(t) {
				return repo.ErrNoChange
			}
			now := rc.now()
			if t.Requeues() < rc.cfg.MaxRequeue {
				requeued = true
				return t.Requeue(true, now)
			}
			taskErr := fault.ToTaskError(fault.AtStage(t.Progress().Stage, &fault.SchedulerError{
				Kind:    fault.KindWorkerFault,
				Message: "worker stopped sending heartbeats",
			}))
			return t.Fail(taskErr, now)
		})
		if err != nil {
			logger.Errorf("Recover stale task failed task_id=%s error=%v", candidate.TaskID(), err)
			continue
		}
		if requeued {
			if err := rc.queue.Enqueue(ctx, final.TaskID()); err != nil {
				logger.Errorf("Re-enqueue stale task failed task_id=%s error=%v", final.TaskID(), err)
			}
			logger.Warnf("Stale task requeued task_id=%s previous_worker=%s", final.TaskID(), candidate.WorkerID())
			recovered++
			continue
		}
		if final.State() == vo.TaskStateFailure {
			logger.Errorf("Stale task failed task_id=%s previous_worker=%s", final.TaskID(), candidate.WorkerID())
			publishTerminal(ctx, rc.publisher, final)
			recovered++
		}
	}
	return recovered
}

// RecoverPending 队列为空时，重新投递超过 StaleAfter 仍未被领取的 PENDING 任务。
// 这类任务的消息已丢失（领取失败或重新入队失败）；重复投递由领取时的状态检查过滤。
func (rc *Recovery) RecoverPending(ctx context.Context) int {
	size, err := rc.queue.Size(ctx)
	if err != nil {
		logger.Warnf("Queue size unavailable, skip pending sweep error=%v", err)
		return 0
	}
	if size > 0 {
		return 0
	}
	pending, err := rc.repo.ListByState(ctx, vo.TaskStatePending, rc.cfg.BatchSize)
	if err != nil {
		logger.Errorf("List pending tasks failed error=%v", err)
		return 0
	}
	requeued := 0
	for _, t := range pending {
		if rc.now().Sub(t.UpdatedAt()) <= rc.cfg.StaleAfter {
			continue
		}
		if err := rc.queue.Enqueue(ctx, t.TaskID()); err != nil {
			logger.Errorf("Re-enqueue stranded task failed task_id=%s error=%v", t.TaskID(), err)
			continue
		}
		requeued++
	}
	if requeued > 0 {
		logger.Warnf("Re-enqueued stranded pending tasks count=%d", requeued)
	}
	return requeued
}

func (rc *Recovery) isStale(t *entity.TaskEntity) bool {
	last := t.HeartbeatAt()
	if last == nil {
		last = t.StartedAt()
	}
	if last == nil {
		u := t.UpdatedAt()
		last = &u
	}
	return rc.now().Sub(*last) > rc.cfg.StaleAfter
}
