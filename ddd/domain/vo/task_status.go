package vo

// TaskState 任务状态
type TaskState string

const (
	// TaskStatePending 已提交，等待调度
	TaskStatePending TaskState = "PENDING"
	// TaskStateRunning 已被 worker 领取
	TaskStateRunning TaskState = "RUNNING"
	// TaskStateSuccess 成功
	TaskStateSuccess TaskState = "SUCCESS"
	// TaskStateFailure 失败
	TaskStateFailure TaskState = "FAILURE"
	// TaskStateCancelled 已取消
	TaskStateCancelled TaskState = "CANCELLED"
)

// IsValid 检查状态是否有效
func (s TaskState) IsValid() bool {
	switch s {
	case TaskStatePending, TaskStateRunning, TaskStateSuccess, TaskStateFailure, TaskStateCancelled:
		return true
	default:
		return false
	}
}

// String 返回状态字符串
func (s TaskState) String() string {
	return string(s)
}

// IsTerminal 检查是否为最终状态
func (s TaskState) IsTerminal() bool {
	return s == TaskStateSuccess || s == TaskStateFailure || s == TaskStateCancelled
}

// CanTransitionTo 检查是否可以转换到目标状态。
// RUNNING -> PENDING 只用于 worker 故障后的重新入队。
func (s TaskState) CanTransitionTo(target TaskState) bool {
	switch s {
	case TaskStatePending:
		return target == TaskStateRunning || target == TaskStateCancelled
	case TaskStateRunning:
		return target == TaskStateSuccess || target == TaskStateFailure ||
			target == TaskStateCancelled || target == TaskStatePending
	default:
		return false // 最终状态不能转换
	}
}
