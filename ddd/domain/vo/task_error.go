package vo

// TaskError 对外可见的任务错误，只包含错误类型、阶段和可读信息
type TaskError struct {
	Kind    string `json:"kind"`
	Stage   Stage  `json:"stage,omitempty"`
	Message string `json:"message"`
}
