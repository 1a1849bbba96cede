package worker

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"sync"
	"sync/atomic"
	"time"

	"lingo-service/ddd/domain/entity"
	"lingo-service/ddd/domain/fault"
	"lingo-service/ddd/domain/gateway"
	"lingo-service/ddd/domain/repo"
	"lingo-service/ddd/domain/service"
	"lingo-service/ddd/domain/vo"
	"lingo-service/ddd/infrastructure/queue"
	"lingo-service/pkg/logger"
)

// PipelineRunner runs one task through all stages.
type PipelineRunner interface {
	Run(ctx context.Context, req service.PipelineRequest) (*vo.TaskResult, error)
}

// Config 工作池配置
type Config struct {
	WorkerID            string
	PoolSize            int
	HeartbeatInterval   time.Duration
	SoftTimeout         time.Duration
	HardTimeout         time.Duration
	MaxRequeue          int
	RetryOnTimeout      bool
	ShutdownGracePeriod time.Duration
	ClaimRetryBackoff   time.Duration
}

// WorkerStats 工作器统计信息
type WorkerStats struct {
	ProcessedTasks   uint64    `json:"processed_tasks"`
	SuccessfulTasks  uint64    `json:"successful_tasks"`
	FailedTasks      uint64    `json:"failed_tasks"`
	CancelledTasks   uint64    `json:"cancelled_tasks"`
	RequeuedTasks    uint64    `json:"requeued_tasks"`
	CurrentlyRunning int       `json:"currently_running"`
	StartTime        time.Time `json:"start_time"`
	LastTaskTime     time.Time `json:"last_task_time"`
}

// PipelineWorker 固定大小的工作池：出队、领取、执行流水线、写终态
type PipelineWorker struct {
	cfg       Config
	queue     queue.TaskQueue
	repo      repo.TaskRepository
	runner    PipelineRunner
	publisher gateway.TaskEventPublisher
	now       func() time.Time

	running bool
	cancel  context.CancelFunc
	stats   WorkerStats
	mu      sync.RWMutex
	wg      sync.WaitGroup
}

// NewPipelineWorker 创建工作池
func NewPipelineWorker(cfg Config, q queue.TaskQueue, r repo.TaskRepository, runner PipelineRunner, publisher gateway.TaskEventPublisher) *PipelineWorker {
	if cfg.PoolSize <= 0 {
		cfg.PoolSize = 1
	}
	if cfg.HardTimeout <= 0 {
		cfg.HardTimeout = 2 * time.Hour
	}
	if cfg.SoftTimeout <= 0 || cfg.SoftTimeout >= cfg.HardTimeout {
		cfg.SoftTimeout = cfg.HardTimeout - cfg.HardTimeout/24
	}
	if cfg.HeartbeatInterval <= 0 {
		cfg.HeartbeatInterval = 15 * time.Second
	}
	if cfg.ShutdownGracePeriod <= 0 {
		cfg.ShutdownGracePeriod = 10 * time.Second
	}
	if cfg.ClaimRetryBackoff <= 0 {
		cfg.ClaimRetryBackoff = time.Second
	}
	return &PipelineWorker{
		cfg:       cfg,
		queue:     q,
		repo:      r,
		runner:    runner,
		publisher: publisher,
		now:       time.Now,
	}
}

func (w *PipelineWorker) Name() string { return "pipelineWorker" }

// Start 启动工作协程
func (w *PipelineWorker) Start(ctx context.Context) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.running {
		return fmt.Errorf("worker %s is already running", w.cfg.WorkerID)
	}
	workerCtx, cancel := context.WithCancel(ctx)
	w.cancel = cancel
	w.running = true
	w.stats.StartTime = w.now()

	logger.Infof("Starting pipeline worker worker_id=%s pool_size=%d soft_timeout=%s hard_timeout=%s",
		w.cfg.WorkerID, w.cfg.PoolSize, w.cfg.SoftTimeout, w.cfg.HardTimeout)
	for i := 0; i < w.cfg.PoolSize; i++ {
		w.wg.Add(1)
		go w.workerLoop(workerCtx, i)
	}
	return nil
}

// Stop 停止出队并等待在途任务交还；调用方随后关闭队列
func (w *PipelineWorker) Stop() error {
	w.mu.Lock()
	if !w.running {
		w.mu.Unlock()
		return nil
	}
	logger.Infof("Stopping pipeline worker worker_id=%s", w.cfg.WorkerID)
	if w.cancel != nil {
		w.cancel()
	}
	w.mu.Unlock()

	w.wg.Wait()

	w.mu.Lock()
	w.running = false
	w.mu.Unlock()
	logger.Infof("Pipeline worker stopped worker_id=%s", w.cfg.WorkerID)
	return nil
}

// IsRunning 检查工作器是否运行中
func (w *PipelineWorker) IsRunning() bool {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.running
}

// GetStats 获取工作器统计信息
func (w *PipelineWorker) GetStats() WorkerStats {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.stats
}

func (w *PipelineWorker) workerLoop(ctx context.Context, slot int) {
	defer w.wg.Done()

	logger.Debugf("Worker slot started worker_id=%s slot=%d", w.cfg.WorkerID, slot)
	defer logger.Debugf("Worker slot stopped worker_id=%s slot=%d", w.cfg.WorkerID, slot)

	for {
		if ctx.Err() != nil {
			return
		}
		d, err := w.queue.Dequeue(ctx)
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) || errors.Is(err, queue.ErrQueueClosed) {
				return
			}
			logger.Errorf("Dequeue failed worker_id=%s slot=%d error=%v", w.cfg.WorkerID, slot, err)
			select {
			case <-ctx.Done():
				return
			case <-time.After(time.Second): // 避免忙等待
			}
			continue
		}
		if d == nil {
			continue
		}
		w.process(ctx, d)
	}
}

// process 处理一条投递。领取失败（重复消息、已取消、已终态）时直接确认。
func (w *PipelineWorker) process(ctx context.Context, d *queue.Delivery) {
	task, claimed, err := w.claim(ctx, d.TaskID)
	if err != nil && !errors.Is(err, repo.ErrTaskNotFound) {
		logger.Errorf("Claim task failed task_id=%s error=%v", d.TaskID, err)
		w.retryDelivery(ctx, d)
		return
	}
	if !claimed {
		logger.Debugf("Skip delivery task_id=%s", d.TaskID)
		w.ack(d)
		return
	}

	w.updateStats(func(s *WorkerStats) {
		s.CurrentlyRunning++
		s.LastTaskTime = w.now()
	})
	defer w.updateStats(func(s *WorkerStats) {
		s.CurrentlyRunning--
		s.ProcessedTasks++
	})

	logger.Infof("Task claimed task_id=%s worker_id=%s attempt=%d", task.TaskID(), w.cfg.WorkerID, task.Attempts())
	out := w.execute(ctx, task)
	w.finish(task, out)
	w.ack(d)
}

// retryDelivery 领取失败（仓储暂不可用）时退避后重新入队，成功后确认原消息。
// 重新入队失败时消息保持未确认，任务仍为 PENDING，由恢复巡检重新投递。
func (w *PipelineWorker) retryDelivery(ctx context.Context, d *queue.Delivery) {
	select {
	case <-ctx.Done():
		return
	case <-time.After(w.cfg.ClaimRetryBackoff):
	}
	if err := w.queue.Enqueue(ctx, d.TaskID); err != nil {
		logger.Errorf("Re-enqueue after claim failure failed task_id=%s error=%v", d.TaskID, err)
		return
	}
	w.ack(d)
}

// claim PENDING -> RUNNING，同一任务只有一个 worker 能成功
func (w *PipelineWorker) claim(ctx context.Context, taskID string) (*entity.TaskEntity, bool, error) {
	claimed := false
	task, err := w.repo.Update(ctx, taskID, func(t *entity.TaskEntity) error {
		if !t.IsPending() {
			return repo.ErrNoChange
		}
		if err := t.Claim(w.cfg.WorkerID, w.now()); err != nil {
			return err
		}
		claimed = true
		return nil
	})
	return task, claimed, err
}

type outcomeKind int

const (
	outcomeDone outcomeKind = iota
	outcomePanic
	outcomeSoftTimeout
	outcomeHardTimeout
	outcomeShutdown
)

type runOutcome struct {
	kind   outcomeKind
	result *vo.TaskResult
	err    error
}

// execute 在软/硬超时约束下运行流水线
func (w *PipelineWorker) execute(ctx context.Context, task *entity.TaskEntity) runOutcome {
	runCtx, cancelRun := context.WithCancel(ctx)
	defer cancelRun()

	var softFired atomic.Bool
	soft := time.AfterFunc(w.cfg.SoftTimeout, func() {
		softFired.Store(true)
		logger.Warnf("Soft timeout reached, requesting cancel task_id=%s", task.TaskID())
		w.requestTimeoutCancel(task.TaskID())
	})
	defer soft.Stop()
	hard := time.NewTimer(w.cfg.HardTimeout)
	defer hard.Stop()

	go w.heartbeat(runCtx, task.TaskID())

	done := make(chan runOutcome, 1)
	go func() {
		done <- w.runSafely(runCtx, task)
	}()

	select {
	case out := <-done:
		switch {
		case out.kind != outcomeDone || out.err == nil:
		case ctx.Err() != nil:
			out.kind = outcomeShutdown
		case errors.Is(out.err, fault.ErrCancelled) && softFired.Load():
			out.kind = outcomeSoftTimeout
		}
		return out
	case <-hard.C:
		cancelRun()
		logger.Errorf("Hard timeout reached task_id=%s timeout=%s", task.TaskID(), w.cfg.HardTimeout)
		return runOutcome{kind: outcomeHardTimeout, err: context.DeadlineExceeded}
	case <-ctx.Done():
		cancelRun()
		// 给流水线一点时间释放临时文件；恰好完成的任务照常提交
		select {
		case out := <-done:
			if out.kind == outcomeDone && out.err == nil {
				return out
			}
		case <-time.After(w.cfg.ShutdownGracePeriod):
		}
		return runOutcome{kind: outcomeShutdown, err: ctx.Err()}
	}
}

func (w *PipelineWorker) runSafely(ctx context.Context, task *entity.TaskEntity) (out runOutcome) {
	defer func() {
		if r := recover(); r != nil {
			logger.Errorf("Pipeline panic task_id=%s panic=%v\n%s", task.TaskID(), r, debug.Stack())
			out = runOutcome{kind: outcomePanic, err: fmt.Errorf("panic: %v", r)}
		}
	}()
	res, err := w.runner.Run(ctx, service.PipelineRequest{
		TaskID:   task.TaskID(),
		MediaRef: task.InputRef(),
		Options:  task.Options(),
	})
	return runOutcome{kind: outcomeDone, result: res, err: err}
}

func (w *PipelineWorker) heartbeat(ctx context.Context, taskID string) {
	ticker := time.NewTicker(w.cfg.HeartbeatInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			_, err := w.repo.Update(ctx, taskID, func(t *entity.TaskEntity) error {
				if t.WorkerID() != w.cfg.WorkerID || !t.Heartbeat(w.now()) {
					return repo.ErrNoChange
				}
				return nil
			})
			if err != nil && ctx.Err() == nil {
				logger.Warnf("Heartbeat failed task_id=%s error=%v", taskID, err)
			}
		}
	}
}

func (w *PipelineWorker) requestTimeoutCancel(taskID string) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_, err := w.repo.Update(ctx, taskID, func(t *entity.TaskEntity) error {
		if !t.RequestTimeoutCancel(w.now()) {
			return repo.ErrNoChange
		}
		return nil
	})
	if err != nil {
		logger.Errorf("Request cancel failed task_id=%s error=%v", taskID, err)
	}
}

// finish 写终态或交还任务。使用独立 context，关闭过程中也要完成写入。
func (w *PipelineWorker) finish(claimed *entity.TaskEntity, out runOutcome) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	taskID := claimed.TaskID()
	requeue := false
	final, err := w.repo.Update(ctx, taskID, func(t *entity.TaskEntity) error {
		// 恢复流程可能已经接管了该任务
		if !t.IsRunning() || t.WorkerID() != w.cfg.WorkerID || t.Attempts() != claimed.Attempts() {
			return repo.ErrNoChange
		}
		now := w.now()
		switch out.kind {
		case outcomeShutdown:
			requeue = true
			return t.Requeue(false, now)
		case outcomePanic:
			if t.Requeues() < w.cfg.MaxRequeue {
				requeue = true
				return t.Requeue(true, now)
			}
			return t.Fail(schedulerError(fault.KindWorkerFault, t.Progress().Stage, out.err), now)
		case outcomeHardTimeout, outcomeSoftTimeout:
			if t.UserCancelRequested() {
				return t.Cancel(now)
			}
			if w.cfg.RetryOnTimeout && t.Requeues() < w.cfg.MaxRequeue {
				requeue = true
				return t.Requeue(true, now)
			}
			return t.Fail(schedulerError(fault.KindTimeout, t.Progress().Stage, out.err), now)
		}
		switch {
		case out.err == nil:
			return t.Succeed("", now)
		case errors.Is(out.err, fault.ErrCancelled):
			return t.Cancel(now)
		default:
			return t.Fail(fault.ToTaskError(out.err), now)
		}
	})
	if err != nil {
		logger.Errorf("Finish task failed task_id=%s error=%v", taskID, err)
		return
	}
	if final == nil || (!final.IsTerminal() && !requeue) {
		logger.Warnf("Task taken over before finish task_id=%s", taskID)
		return
	}

	if requeue {
		w.updateStats(func(s *WorkerStats) { s.RequeuedTasks++ })
		if err := w.queue.Enqueue(ctx, taskID); err != nil {
			// 任务仍为 PENDING，恢复巡检会重新入队
			logger.Errorf("Re-enqueue task failed task_id=%s error=%v", taskID, err)
		}
		logger.Warnf("Task requeued task_id=%s requeues=%d error=%v", taskID, final.Requeues(), out.err)
		return
	}

	switch final.State() {
	case vo.TaskStateSuccess:
		w.updateStats(func(s *WorkerStats) { s.SuccessfulTasks++ })
		logger.Infof("Task succeeded task_id=%s result_ref=%s", taskID, final.ResultRef())
	case vo.TaskStateCancelled:
		w.updateStats(func(s *WorkerStats) { s.CancelledTasks++ })
		logger.Infof("Task cancelled task_id=%s", taskID)
	default:
		w.updateStats(func(s *WorkerStats) { s.FailedTasks++ })
		logger.Errorf("Task failed task_id=%s error=%v", taskID, out.err)
	}
	publishTerminal(ctx, w.publisher, final)
}

func (w *PipelineWorker) ack(d *queue.Delivery) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := d.Ack(ctx); err != nil {
		logger.Warnf("Ack delivery failed task_id=%s error=%v", d.TaskID, err)
	}
}

func (w *PipelineWorker) updateStats(fn func(*WorkerStats)) {
	w.mu.Lock()
	defer w.mu.Unlock()
	fn(&w.stats)
}

func schedulerError(kind fault.Kind, stage vo.Stage, cause error) *vo.TaskError {
	return fault.ToTaskError(fault.AtStage(stage, &fault.SchedulerError{Kind: kind, Err: cause}))
}

// publishTerminal 发布终态事件，失败只记录日志
func publishTerminal(ctx context.Context, publisher gateway.TaskEventPublisher, t *entity.TaskEntity) {
	if publisher == nil || t == nil || !t.IsTerminal() {
		return
	}
	event := gateway.TaskEvent{
		TaskID:     t.TaskID(),
		State:      t.State().String(),
		ResultRef:  t.ResultRef(),
		OccurredAt: t.UpdatedAt(),
	}
	if e := t.Error(); e != nil {
		event.ErrorKind = e.Kind
		event.Message = e.Message
	}
	if err := publisher.Publish(ctx, event); err != nil {
		logger.Warnf("Publish task event failed task_id=%s state=%s error=%v", event.TaskID, event.State, err)
	}
}
