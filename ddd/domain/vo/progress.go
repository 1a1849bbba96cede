package vo

import "time"

// Stage 流水线阶段
type Stage string

const (
	StageQueued        Stage = "queued"
	StageExtraction    Stage = "extraction"
	StageTranscription Stage = "transcription"
	StageTranslation   Stage = "translation"
	StageStoring       Stage = "storing"
	StageDone          Stage = "done"
)

func (s Stage) String() string { return string(s) }

// Progress 任务进度快照
type Progress struct {
	Stage     Stage     `json:"stage"`
	Percent   int       `json:"percent"`
	Message   string    `json:"message,omitempty"`
	UpdatedAt time.Time `json:"updated_at"`
}

// NewProgress clamps percent into 0..100.
func NewProgress(stage Stage, percent int, message string) Progress {
	if percent < 0 {
		percent = 0
	}
	if percent > 100 {
		percent = 100
	}
	return Progress{Stage: stage, Percent: percent, Message: message, UpdatedAt: time.Now()}
}
