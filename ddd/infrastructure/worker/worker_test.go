package worker

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"lingo-service/ddd/domain/entity"
	"lingo-service/ddd/domain/fault"
	"lingo-service/ddd/domain/gateway"
	"lingo-service/ddd/domain/repo"
	"lingo-service/ddd/domain/service"
	"lingo-service/ddd/domain/vo"
	"lingo-service/ddd/infrastructure/database/persistence"
	"lingo-service/ddd/infrastructure/progress"
	"lingo-service/ddd/infrastructure/queue"
)

type runnerFunc func(ctx context.Context, req service.PipelineRequest) (*vo.TaskResult, error)

func (f runnerFunc) Run(ctx context.Context, req service.PipelineRequest) (*vo.TaskResult, error) {
	return f(ctx, req)
}

type eventLog struct {
	mu     sync.Mutex
	events []gateway.TaskEvent
}

func (l *eventLog) Publish(_ context.Context, e gateway.TaskEvent) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.events = append(l.events, e)
	return nil
}

func (l *eventLog) all() []gateway.TaskEvent {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]gateway.TaskEvent(nil), l.events...)
}

type fixture struct {
	repo   *persistence.MemoryTaskRepository
	queue  *queue.MemoryTaskQueue
	events *eventLog
	pool   *PipelineWorker
}

func newFixture(t *testing.T, cfg Config, runner PipelineRunner) *fixture {
	t.Helper()
	if cfg.WorkerID == "" {
		cfg.WorkerID = "w-test"
	}
	if cfg.MaxRequeue == 0 {
		cfg.MaxRequeue = 1
	}
	f := &fixture{
		repo:   persistence.NewMemoryTaskRepository(),
		queue:  queue.NewMemoryTaskQueue(16),
		events: &eventLog{},
	}
	f.pool = NewPipelineWorker(cfg, f.queue, f.repo, runner, f.events)
	t.Cleanup(func() { _ = f.queue.Close() })
	return f
}

func (f *fixture) submit(t *testing.T) string {
	t.Helper()
	task := entity.NewTaskEntity("/media/talk.mp4", vo.TaskOptions{TargetLanguage: "es"})
	if err := f.repo.Create(context.Background(), task); err != nil {
		t.Fatalf("create: %v", err)
	}
	return task.TaskID()
}

func (f *fixture) get(t *testing.T, id string) *entity.TaskEntity {
	t.Helper()
	task, err := f.repo.Get(context.Background(), id)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	return task
}

// TestSuccessfulRunReachesSuccess verifies claim, run, terminal state and event.
func TestSuccessfulRunReachesSuccess(t *testing.T) {
	var calls atomic.Int64
	f := newFixture(t, Config{}, runnerFunc(func(_ context.Context, req service.PipelineRequest) (*vo.TaskResult, error) {
		calls.Add(1)
		if req.MediaRef != "/media/talk.mp4" || req.Options.TargetLanguage != "es" {
			t.Errorf("request = %+v", req)
		}
		return &vo.TaskResult{TaskID: req.TaskID, FullText: "hola"}, nil
	}))
	id := f.submit(t)

	f.pool.process(context.Background(), queue.NewDelivery(id, nil))

	got := f.get(t, id)
	if got.State() != vo.TaskStateSuccess || got.Progress().Percent != 100 {
		t.Fatalf("task = %+v", got.Snapshot())
	}
	if calls.Load() != 1 {
		t.Fatalf("runner calls = %d, want 1", calls.Load())
	}
	events := f.events.all()
	if len(events) != 1 || events[0].State != "SUCCESS" || events[0].TaskID != id {
		t.Fatalf("events = %+v", events)
	}
	if s := f.pool.GetStats(); s.SuccessfulTasks != 1 || s.CurrentlyRunning != 0 {
		t.Fatalf("stats = %+v", s)
	}
}

// TestDuplicateDeliveryIsSkipped verifies a second message for a finished task never runs it.
func TestDuplicateDeliveryIsSkipped(t *testing.T) {
	var calls atomic.Int64
	f := newFixture(t, Config{}, runnerFunc(func(context.Context, service.PipelineRequest) (*vo.TaskResult, error) {
		calls.Add(1)
		return &vo.TaskResult{}, nil
	}))
	id := f.submit(t)

	var acks atomic.Int64
	ack := func(context.Context) error { acks.Add(1); return nil }
	f.pool.process(context.Background(), queue.NewDelivery(id, ack))
	f.pool.process(context.Background(), queue.NewDelivery(id, ack))
	f.pool.process(context.Background(), queue.NewDelivery("missing", ack))

	if calls.Load() != 1 {
		t.Fatalf("runner calls = %d, want 1", calls.Load())
	}
	if acks.Load() != 3 {
		t.Fatalf("acks = %d, want 3", acks.Load())
	}
}

// TestCancelledRunEndsCancelled verifies a cooperative cancel becomes CANCELLED.
func TestCancelledRunEndsCancelled(t *testing.T) {
	f := newFixture(t, Config{}, nil)
	f.pool.runner = runnerFunc(func(ctx context.Context, req service.PipelineRequest) (*vo.TaskResult, error) {
		_, _ = f.repo.Update(ctx, req.TaskID, func(t *entity.TaskEntity) error {
			t.RequestCancel(time.Now())
			return nil
		})
		return nil, fault.AtStage(vo.StageTranscription, fault.ErrCancelled)
	})
	id := f.submit(t)

	f.pool.process(context.Background(), queue.NewDelivery(id, nil))

	if got := f.get(t, id); got.State() != vo.TaskStateCancelled {
		t.Fatalf("state = %s, want CANCELLED", got.State())
	}
}

// TestStageFailureIsRecorded verifies a stage error fails the task with kind and stage.
func TestStageFailureIsRecorded(t *testing.T) {
	f := newFixture(t, Config{}, runnerFunc(func(context.Context, service.PipelineRequest) (*vo.TaskResult, error) {
		return nil, fault.AtStage(vo.StageExtraction, &fault.ExtractionError{Kind: fault.KindNoAudioTrack, Message: "no audio stream"})
	}))
	id := f.submit(t)

	f.pool.process(context.Background(), queue.NewDelivery(id, nil))

	got := f.get(t, id)
	if got.State() != vo.TaskStateFailure {
		t.Fatalf("state = %s, want FAILURE", got.State())
	}
	if e := got.Error(); e == nil || e.Kind != "NoAudioTrack" || e.Stage != vo.StageExtraction {
		t.Fatalf("error = %+v", got.Error())
	}
}

// TestPanicIsRequeuedOnceThenWorkerFault verifies the crash budget.
func TestPanicIsRequeuedOnceThenWorkerFault(t *testing.T) {
	f := newFixture(t, Config{MaxRequeue: 1}, runnerFunc(func(context.Context, service.PipelineRequest) (*vo.TaskResult, error) {
		panic("decoder exploded")
	}))
	id := f.submit(t)

	f.pool.process(context.Background(), queue.NewDelivery(id, nil))
	got := f.get(t, id)
	if got.State() != vo.TaskStatePending || got.Requeues() != 1 {
		t.Fatalf("after first panic = %+v", got.Snapshot())
	}
	if n, _ := f.queue.Size(context.Background()); n != 1 {
		t.Fatalf("queue size = %d, want 1", n)
	}

	d, err := f.queue.Dequeue(context.Background())
	if err != nil {
		t.Fatalf("dequeue: %v", err)
	}
	f.pool.process(context.Background(), d)
	got = f.get(t, id)
	if got.State() != vo.TaskStateFailure || got.Error() == nil || got.Error().Kind != "WorkerFault" {
		t.Fatalf("after second panic = %+v", got.Snapshot())
	}
	if got.Attempts() != 2 {
		t.Fatalf("attempts = %d, want 2", got.Attempts())
	}
}

// TestHardTimeoutFailsAndFreesSlot verifies a stuck run is abandoned with Timeout.
func TestHardTimeoutFailsAndFreesSlot(t *testing.T) {
	release := make(chan struct{})
	defer close(release)
	f := newFixture(t, Config{SoftTimeout: 20 * time.Millisecond, HardTimeout: 60 * time.Millisecond},
		runnerFunc(func(context.Context, service.PipelineRequest) (*vo.TaskResult, error) {
			<-release // ignores cancellation on purpose
			return nil, nil
		}))
	id := f.submit(t)

	done := make(chan struct{})
	go func() {
		f.pool.process(context.Background(), queue.NewDelivery(id, nil))
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("slot was not freed after hard timeout")
	}

	got := f.get(t, id)
	if got.State() != vo.TaskStateFailure || got.Error() == nil || got.Error().Kind != "Timeout" {
		t.Fatalf("task = %+v", got.Snapshot())
	}
	if !got.CancelRequested() {
		t.Fatal("soft timeout should have requested cancellation first")
	}
}

// TestSoftTimeoutStopsAtBoundary verifies the soft timer cancels a cooperative run as Timeout.
func TestSoftTimeoutStopsAtBoundary(t *testing.T) {
	f := newFixture(t, Config{SoftTimeout: 20 * time.Millisecond, HardTimeout: time.Second}, nil)
	f.pool.runner = runnerFunc(func(ctx context.Context, req service.PipelineRequest) (*vo.TaskResult, error) {
		for {
			task, _ := f.repo.Get(ctx, req.TaskID)
			if task.CancelRequested() {
				return nil, fault.AtStage(vo.StageTranslation, fault.ErrCancelled)
			}
			time.Sleep(5 * time.Millisecond)
		}
	})
	id := f.submit(t)

	f.pool.process(context.Background(), queue.NewDelivery(id, nil))

	got := f.get(t, id)
	if got.State() != vo.TaskStateFailure || got.Error().Kind != "Timeout" {
		t.Fatalf("task = %+v", got.Snapshot())
	}
}

// TestShutdownHandsTaskBack verifies in-flight tasks return to PENDING without using the budget.
func TestShutdownHandsTaskBack(t *testing.T) {
	started := make(chan struct{})
	f := newFixture(t, Config{ShutdownGracePeriod: time.Second}, runnerFunc(func(ctx context.Context, _ service.PipelineRequest) (*vo.TaskResult, error) {
		close(started)
		<-ctx.Done()
		return nil, ctx.Err()
	}))
	id := f.submit(t)
	if err := f.queue.Enqueue(context.Background(), id); err != nil {
		t.Fatalf("enqueue: %v", err)
	}

	if err := f.pool.Start(context.Background()); err != nil {
		t.Fatalf("start: %v", err)
	}
	select {
	case <-started:
	case <-time.After(2 * time.Second):
		t.Fatal("task never started")
	}
	if err := f.pool.Stop(); err != nil {
		t.Fatalf("stop: %v", err)
	}

	got := f.get(t, id)
	if got.State() != vo.TaskStatePending || got.Requeues() != 0 {
		t.Fatalf("task = %+v", got.Snapshot())
	}
	if n, _ := f.queue.Size(context.Background()); n != 1 {
		t.Fatalf("queue size = %d, want 1", n)
	}
	if len(f.events.all()) != 0 {
		t.Fatal("handoff must not publish a terminal event")
	}
}

// TestRecoveryRequeuesStaleTask verifies stale RUNNING tasks are requeued once, then fail.
func TestRecoveryRequeuesStaleTask(t *testing.T) {
	ctx := context.Background()
	r := persistence.NewMemoryTaskRepository()
	q := queue.NewMemoryTaskQueue(8)
	defer q.Close()
	events := &eventLog{}

	task := entity.NewTaskEntity("/in.mp4", vo.TaskOptions{})
	long := time.Now().Add(-time.Hour)
	_ = task.Claim("dead-worker", long)
	_ = r.Create(ctx, task)

	rc := NewRecovery(RecoveryConfig{StaleAfter: time.Minute, MaxRequeue: 1}, r, q, events)
	if n := rc.RecoverStale(ctx); n != 1 {
		t.Fatalf("recovered = %d, want 1", n)
	}
	got, _ := r.Get(ctx, task.TaskID())
	if got.State() != vo.TaskStatePending || got.Requeues() != 1 {
		t.Fatalf("after first recovery = %+v", got.Snapshot())
	}

	_, _ = r.Update(ctx, task.TaskID(), func(t *entity.TaskEntity) error { return t.Claim("dead-again", long) })
	rc.RecoverStale(ctx)
	got, _ = r.Get(ctx, task.TaskID())
	if got.State() != vo.TaskStateFailure || got.Error().Kind != "WorkerFault" {
		t.Fatalf("after second recovery = %+v", got.Snapshot())
	}
	if ev := events.all(); len(ev) != 1 || ev[0].ErrorKind != "WorkerFault" {
		t.Fatalf("events = %+v", ev)
	}
}

// TestRecoveryIgnoresFreshHeartbeat verifies a live task is left alone.
func TestRecoveryIgnoresFreshHeartbeat(t *testing.T) {
	ctx := context.Background()
	r := persistence.NewMemoryTaskRepository()
	q := queue.NewMemoryTaskQueue(8)
	defer q.Close()

	task := entity.NewTaskEntity("/in.mp4", vo.TaskOptions{})
	_ = task.Claim("live", time.Now())
	_ = r.Create(ctx, task)

	rc := NewRecovery(RecoveryConfig{StaleAfter: time.Minute}, r, q, nil)
	if n := rc.RecoverStale(ctx); n != 0 {
		t.Fatalf("recovered = %d, want 0", n)
	}
}

// TestStartupReenqueuesPending verifies PENDING tasks are put back on the queue at startup.
func TestStartupReenqueuesPending(t *testing.T) {
	ctx := context.Background()
	r := persistence.NewMemoryTaskRepository()
	q := queue.NewMemoryTaskQueue(8)
	defer q.Close()
	for i := 0; i < 3; i++ {
		_ = r.Create(ctx, entity.NewTaskEntity("/in.mp4", vo.TaskOptions{}))
	}

	rc := NewRecovery(RecoveryConfig{}, r, q, nil)
	if err := rc.RecoverOnStartup(ctx); err != nil {
		t.Fatalf("recover: %v", err)
	}
	if n, _ := q.Size(ctx); n != 3 {
		t.Fatalf("queue size = %d, want 3", n)
	}
}

// TestSoftTimeoutRetryRunsAgain verifies that with RetryOnTimeout the retried run is not
// stopped by the cancel flag the soft timeout left behind.
func TestSoftTimeoutRetryRunsAgain(t *testing.T) {
	f := newFixture(t, Config{SoftTimeout: 20 * time.Millisecond, HardTimeout: time.Second, RetryOnTimeout: true, MaxRequeue: 1}, nil)
	gate := progress.NewRepoSink(f.repo)
	var runs atomic.Int64
	f.pool.runner = runnerFunc(func(ctx context.Context, req service.PipelineRequest) (*vo.TaskResult, error) {
		if runs.Add(1) == 1 {
			for {
				if err := gate.Checkpoint(ctx, req.TaskID, vo.StageTranscription); err != nil {
					return nil, fault.AtStage(vo.StageTranscription, err)
				}
				time.Sleep(5 * time.Millisecond)
			}
		}
		if err := gate.Checkpoint(ctx, req.TaskID, vo.StageExtraction); err != nil {
			return nil, fault.AtStage(vo.StageExtraction, err)
		}
		return &vo.TaskResult{TaskID: req.TaskID}, nil
	})
	id := f.submit(t)

	f.pool.process(context.Background(), queue.NewDelivery(id, nil))
	got := f.get(t, id)
	if got.State() != vo.TaskStatePending || got.Requeues() != 1 || got.CancelRequested() {
		t.Fatalf("after soft timeout = %+v", got.Snapshot())
	}

	d, err := f.queue.Dequeue(context.Background())
	if err != nil {
		t.Fatalf("dequeue: %v", err)
	}
	f.pool.process(context.Background(), d)
	if got := f.get(t, id); got.State() != vo.TaskStateSuccess {
		t.Fatalf("retry run = %+v", got.Snapshot())
	}
	if runs.Load() != 2 {
		t.Fatalf("runs = %d, want 2", runs.Load())
	}
}

// TestUserCancelDuringSoftTimeoutEndsCancelled verifies a user cancel is not turned into a retry.
func TestUserCancelDuringSoftTimeoutEndsCancelled(t *testing.T) {
	f := newFixture(t, Config{SoftTimeout: 20 * time.Millisecond, HardTimeout: time.Second, RetryOnTimeout: true, MaxRequeue: 1}, nil)
	gate := progress.NewRepoSink(f.repo)
	f.pool.runner = runnerFunc(func(ctx context.Context, req service.PipelineRequest) (*vo.TaskResult, error) {
		for {
			if err := gate.Checkpoint(ctx, req.TaskID, vo.StageTranslation); err != nil {
				// 软超时之后用户也发起了取消
				_, _ = f.repo.Update(ctx, req.TaskID, func(t *entity.TaskEntity) error {
					t.RequestCancel(time.Now())
					return nil
				})
				return nil, fault.AtStage(vo.StageTranslation, err)
			}
			time.Sleep(5 * time.Millisecond)
		}
	})
	id := f.submit(t)

	f.pool.process(context.Background(), queue.NewDelivery(id, nil))
	if got := f.get(t, id); got.State() != vo.TaskStateCancelled {
		t.Fatalf("task = %+v", got.Snapshot())
	}
}

// flakyRepo fails the next n Update calls with a transient error.
type flakyRepo struct {
	*persistence.MemoryTaskRepository
	failures atomic.Int64
}

func (r *flakyRepo) Update(ctx context.Context, taskID string, mutate func(*entity.TaskEntity) error) (*entity.TaskEntity, error) {
	if r.failures.Add(-1) >= 0 {
		return nil, errors.New("connection reset by peer")
	}
	return r.MemoryTaskRepository.Update(ctx, taskID, mutate)
}

var _ repo.TaskRepository = (*flakyRepo)(nil)

// TestClaimFailureRequeuesDelivery verifies a transient repository error does not strand the task.
func TestClaimFailureRequeuesDelivery(t *testing.T) {
	f := newFixture(t, Config{ClaimRetryBackoff: time.Millisecond}, runnerFunc(func(_ context.Context, req service.PipelineRequest) (*vo.TaskResult, error) {
		return &vo.TaskResult{TaskID: req.TaskID}, nil
	}))
	flaky := &flakyRepo{MemoryTaskRepository: f.repo}
	flaky.failures.Store(1)
	f.pool.repo = flaky
	id := f.submit(t)

	var acks atomic.Int64
	f.pool.process(context.Background(), queue.NewDelivery(id, func(context.Context) error { acks.Add(1); return nil }))

	if got := f.get(t, id); got.State() != vo.TaskStatePending {
		t.Fatalf("after failed claim = %+v", got.Snapshot())
	}
	if n, _ := f.queue.Size(context.Background()); n != 1 {
		t.Fatalf("queue size = %d, want 1", n)
	}
	if acks.Load() != 1 {
		t.Fatalf("acks = %d, want 1", acks.Load())
	}

	d, err := f.queue.Dequeue(context.Background())
	if err != nil {
		t.Fatalf("dequeue: %v", err)
	}
	f.pool.process(context.Background(), d)
	if got := f.get(t, id); got.State() != vo.TaskStateSuccess {
		t.Fatalf("after retry = %+v", got.Snapshot())
	}
}

// TestRecoverPendingRequeuesStrandedTask verifies the periodic sweep re-delivers PENDING tasks
// whose message was lost, and leaves a busy queue alone.
func TestRecoverPendingRequeuesStrandedTask(t *testing.T) {
	ctx := context.Background()
	r := persistence.NewMemoryTaskRepository()
	q := queue.NewMemoryTaskQueue(8)
	defer q.Close()
	task := entity.NewTaskEntity("/in.mp4", vo.TaskOptions{})
	_ = r.Create(ctx, task)

	rc := NewRecovery(RecoveryConfig{StaleAfter: time.Minute}, r, q, nil)
	if n := rc.RecoverPending(ctx); n != 0 {
		t.Fatalf("fresh task re-enqueued: %d", n)
	}

	rc.now = func() time.Time { return time.Now().Add(time.Hour) }
	if n := rc.RecoverPending(ctx); n != 1 {
		t.Fatalf("recovered = %d, want 1", n)
	}
	if n := rc.RecoverPending(ctx); n != 0 {
		t.Fatalf("non-empty queue swept again: %d", n)
	}
	d, err := q.Dequeue(ctx)
	if err != nil || d.TaskID != task.TaskID() {
		t.Fatalf("dequeued %v, %v", d, err)
	}
}
