package po

import "time"

// TaskPO 任务持久化对象
type TaskPO struct {
	ID                uint       `gorm:"primaryKey;autoIncrement" json:"id"`
	TaskID            string     `gorm:"column:task_id;uniqueIndex;size:36;not null" json:"task_id"`
	State             string     `gorm:"column:state;index;size:16;not null" json:"state"`
	InputRef          string     `gorm:"column:input_ref;size:1024;not null" json:"input_ref"`
	TargetLanguage    string     `gorm:"column:target_language;size:16" json:"target_language"`
	ModelProfile      string     `gorm:"column:model_profile;size:32" json:"model_profile"`
	ProgressStage     string     `gorm:"column:progress_stage;size:16" json:"progress_stage"`
	ProgressPercent   int        `gorm:"column:progress_percent;default:0" json:"progress_percent"`
	ProgressMessage   string     `gorm:"column:progress_message;size:255" json:"progress_message"`
	ProgressUpdatedAt time.Time  `gorm:"column:progress_updated_at" json:"progress_updated_at"`
	ErrorKind         string     `gorm:"column:error_kind;size:32" json:"error_kind"`
	ErrorStage        string     `gorm:"column:error_stage;size:16" json:"error_stage"`
	ErrorMessage      string     `gorm:"column:error_message;type:text" json:"error_message"`
	ResultRef         string     `gorm:"column:result_ref;size:128" json:"result_ref"`
	CancelRequested   bool       `gorm:"column:cancel_requested;default:false" json:"cancel_requested"`
	TimeoutCancel     bool       `gorm:"column:timeout_cancel;default:false" json:"timeout_cancel"`
	WorkerID          string     `gorm:"column:worker_id;index;size:64" json:"worker_id"`
	Attempts          int        `gorm:"column:attempts;default:0" json:"attempts"`
	Requeues          int        `gorm:"column:requeues;default:0" json:"requeues"`
	CreatedAt         time.Time  `gorm:"column:created_at;index" json:"created_at"`
	UpdatedAt         time.Time  `gorm:"column:updated_at" json:"updated_at"`
	StartedAt         *time.Time `gorm:"column:started_at" json:"started_at,omitempty"`
	HeartbeatAt       *time.Time `gorm:"column:heartbeat_at" json:"heartbeat_at,omitempty"`
	FinishedAt        *time.Time `gorm:"column:finished_at" json:"finished_at,omitempty"`
}

// TableName 指定表名
func (TaskPO) TableName() string {
	return "media_tasks"
}
