package entity

import (
	"fmt"
	"time"

	"lingo-service/ddd/domain/vo"

	"github.com/google/uuid"
)

// TaskEntity 媒体处理任务实体
type TaskEntity struct {
	taskID          string         // 任务ID
	state           vo.TaskState   // 任务状态
	inputRef        string         // 源媒体引用，只保存引用不保存内容
	options         vo.TaskOptions // 目标语言、模型配置
	progress        vo.Progress    // 进度
	taskErr         *vo.TaskError  // 失败原因
	resultRef       string         // 结果存储引用
	cancelRequested bool           // 运行中取消标记
	timeoutCancel   bool           // 取消标记由软超时设置，重新入队时清除
	workerID        string         // 领取该任务的 worker
	attempts        int            // 被领取次数
	requeues        int            // 故障后重新入队次数
	createdAt       time.Time
	updatedAt       time.Time
	startedAt       *time.Time
	heartbeatAt     *time.Time
	finishedAt      *time.Time
}

// NewTaskEntity 创建 PENDING 状态的新任务
func NewTaskEntity(inputRef string, options vo.TaskOptions) *TaskEntity {
	now := time.Now()
	return &TaskEntity{
		taskID:    uuid.NewString(),
		state:     vo.TaskStatePending,
		inputRef:  inputRef,
		options:   options,
		progress:  vo.Progress{Stage: vo.StageQueued, Percent: 0, UpdatedAt: now},
		createdAt: now,
		updatedAt: now,
	}
}

// TaskSnapshot carries every persisted field; used by repositories to rebuild entities.
type TaskSnapshot struct {
	TaskID          string
	State           vo.TaskState
	InputRef        string
	Options         vo.TaskOptions
	Progress        vo.Progress
	Error           *vo.TaskError
	ResultRef       string
	CancelRequested bool
	TimeoutCancel   bool
	WorkerID        string
	Attempts        int
	Requeues        int
	CreatedAt       time.Time
	UpdatedAt       time.Time
	StartedAt       *time.Time
	HeartbeatAt     *time.Time
	FinishedAt      *time.Time
}

// RestoreTaskEntity 从持久化数据重建实体
func RestoreTaskEntity(s TaskSnapshot) *TaskEntity {
	return &TaskEntity{
		taskID:          s.TaskID,
		state:           s.State,
		inputRef:        s.InputRef,
		options:         s.Options,
		progress:        s.Progress,
		taskErr:         s.Error,
		resultRef:       s.ResultRef,
		cancelRequested: s.CancelRequested,
		timeoutCancel:   s.TimeoutCancel,
		workerID:        s.WorkerID,
		attempts:        s.Attempts,
		requeues:        s.Requeues,
		createdAt:       s.CreatedAt,
		updatedAt:       s.UpdatedAt,
		startedAt:       s.StartedAt,
		heartbeatAt:     s.HeartbeatAt,
		finishedAt:      s.FinishedAt,
	}
}

// Snapshot 导出全部字段
func (t *TaskEntity) Snapshot() TaskSnapshot {
	return TaskSnapshot{
		TaskID:          t.taskID,
		State:           t.state,
		InputRef:        t.inputRef,
		Options:         t.options,
		Progress:        t.progress,
		Error:           t.taskErr,
		ResultRef:       t.resultRef,
		CancelRequested: t.cancelRequested,
		TimeoutCancel:   t.timeoutCancel,
		WorkerID:        t.workerID,
		Attempts:        t.attempts,
		Requeues:        t.requeues,
		CreatedAt:       t.createdAt,
		UpdatedAt:       t.updatedAt,
		StartedAt:       t.startedAt,
		HeartbeatAt:     t.heartbeatAt,
		FinishedAt:      t.finishedAt,
	}
}

// Getters
func (t *TaskEntity) TaskID() string          { return t.taskID }
func (t *TaskEntity) State() vo.TaskState     { return t.state }
func (t *TaskEntity) InputRef() string        { return t.inputRef }
func (t *TaskEntity) Options() vo.TaskOptions { return t.options }
func (t *TaskEntity) Progress() vo.Progress   { return t.progress }
func (t *TaskEntity) Error() *vo.TaskError    { return t.taskErr }
func (t *TaskEntity) ResultRef() string       { return t.resultRef }
func (t *TaskEntity) CancelRequested() bool   { return t.cancelRequested }
func (t *TaskEntity) TimeoutCancel() bool     { return t.timeoutCancel }
func (t *TaskEntity) WorkerID() string        { return t.workerID }
func (t *TaskEntity) Attempts() int           { return t.attempts }
func (t *TaskEntity) Requeues() int           { return t.requeues }
func (t *TaskEntity) CreatedAt() time.Time    { return t.createdAt }
func (t *TaskEntity) UpdatedAt() time.Time    { return t.updatedAt }
func (t *TaskEntity) StartedAt() *time.Time   { return t.startedAt }
func (t *TaskEntity) HeartbeatAt() *time.Time { return t.heartbeatAt }
func (t *TaskEntity) FinishedAt() *time.Time  { return t.finishedAt }
func (t *TaskEntity) IsTerminal() bool        { return t.state.IsTerminal() }
func (t *TaskEntity) IsPending() bool         { return t.state == vo.TaskStatePending }
func (t *TaskEntity) IsRunning() bool         { return t.state == vo.TaskStateRunning }

// Claim PENDING -> RUNNING
func (t *TaskEntity) Claim(workerID string, now time.Time) error {
	if err := t.transition(vo.TaskStateRunning, now); err != nil {
		return err
	}
	t.workerID = workerID
	t.attempts++
	t.startedAt = &now
	t.heartbeatAt = &now
	return nil
}

// Succeed RUNNING -> SUCCESS
func (t *TaskEntity) Succeed(resultRef string, now time.Time) error {
	if err := t.transition(vo.TaskStateSuccess, now); err != nil {
		return err
	}
	if resultRef != "" {
		t.resultRef = resultRef
	}
	t.progress = vo.Progress{Stage: vo.StageDone, Percent: 100, Message: "completed", UpdatedAt: now}
	t.finishedAt = &now
	return nil
}

// Fail RUNNING -> FAILURE
func (t *TaskEntity) Fail(taskErr *vo.TaskError, now time.Time) error {
	if err := t.transition(vo.TaskStateFailure, now); err != nil {
		return err
	}
	t.taskErr = taskErr
	t.finishedAt = &now
	return nil
}

// Cancel PENDING|RUNNING -> CANCELLED
func (t *TaskEntity) Cancel(now time.Time) error {
	if err := t.transition(vo.TaskStateCancelled, now); err != nil {
		return err
	}
	t.cancelRequested = true
	t.timeoutCancel = false
	t.finishedAt = &now
	return nil
}

// Requeue RUNNING -> PENDING. countAsFault is false for graceful shutdown handoff.
func (t *TaskEntity) Requeue(countAsFault bool, now time.Time) error {
	if err := t.transition(vo.TaskStatePending, now); err != nil {
		return err
	}
	if countAsFault {
		t.requeues++
	}
	// 超时触发的取消只作用于上一次运行；用户取消保留
	if t.timeoutCancel {
		t.cancelRequested = false
		t.timeoutCancel = false
	}
	t.workerID = ""
	t.heartbeatAt = nil
	t.progress = vo.Progress{Stage: vo.StageQueued, Percent: 0, Message: "requeued", UpdatedAt: now}
	return nil
}

// RequestCancel 设置用户取消标记，由 worker 在阶段边界处观察。
// 已有的超时取消标记会被升级为用户取消。
func (t *TaskEntity) RequestCancel(now time.Time) bool {
	if t.IsTerminal() || (t.cancelRequested && !t.timeoutCancel) {
		return false
	}
	t.cancelRequested = true
	t.timeoutCancel = false
	t.updatedAt = now
	return true
}

// RequestTimeoutCancel sets the cancel flag on behalf of the soft timeout.
func (t *TaskEntity) RequestTimeoutCancel(now time.Time) bool {
	if t.IsTerminal() || t.cancelRequested {
		return false
	}
	t.cancelRequested = true
	t.timeoutCancel = true
	t.updatedAt = now
	return true
}

// UserCancelRequested reports a cancel issued through CancelTask.
func (t *TaskEntity) UserCancelRequested() bool {
	return t.cancelRequested && !t.timeoutCancel
}

// ApplyProgress 更新进度；终态任务或进度回退时不生效
func (t *TaskEntity) ApplyProgress(p vo.Progress) bool {
	if t.state != vo.TaskStateRunning {
		return false
	}
	if p.Percent < t.progress.Percent {
		return false
	}
	t.progress = p
	t.updatedAt = p.UpdatedAt
	return true
}

// AttachResult 记录结果引用，只允许运行中写入
func (t *TaskEntity) AttachResult(ref string, now time.Time) bool {
	if t.state != vo.TaskStateRunning {
		return false
	}
	t.resultRef = ref
	t.updatedAt = now
	return true
}

// Heartbeat 刷新心跳
func (t *TaskEntity) Heartbeat(now time.Time) bool {
	if t.state != vo.TaskStateRunning {
		return false
	}
	t.heartbeatAt = &now
	return true
}

func (t *TaskEntity) transition(to vo.TaskState, now time.Time) error {
	if !t.state.CanTransitionTo(to) {
		return fmt.Errorf("task %s: invalid transition %s -> %s", t.taskID, t.state, to)
	}
	t.state = to
	t.updatedAt = now
	return nil
}
