package dto

import (
	"time"

	"lingo-service/ddd/domain/entity"
	"lingo-service/ddd/domain/vo"
)

// SubmitTaskDto 提交结果
type SubmitTaskDto struct {
	TaskID string `json:"task_id"`
	State  string `json:"state"`
}

// TaskStatusDto 任务状态，只暴露错误类型和可读信息
type TaskStatusDto struct {
	TaskID          string        `json:"task_id"`
	State           string        `json:"state"`
	Progress        vo.Progress   `json:"progress"`
	Error           *vo.TaskError `json:"error,omitempty"`
	CancelRequested bool          `json:"cancel_requested,omitempty"`
	TargetLanguage  string        `json:"target_language,omitempty"`
	ModelProfile    string        `json:"model_profile,omitempty"`
	Attempts        int           `json:"attempts"`
	CreatedAt       time.Time     `json:"created_at"`
	UpdatedAt       time.Time     `json:"updated_at"`
	FinishedAt      *time.Time    `json:"finished_at,omitempty"`
}

// NewTaskStatusDto 从实体创建DTO
func NewTaskStatusDto(t *entity.TaskEntity) *TaskStatusDto {
	if t == nil {
		return nil
	}
	return &TaskStatusDto{
		TaskID:          t.TaskID(),
		State:           t.State().String(),
		Progress:        t.Progress(),
		Error:           t.Error(),
		CancelRequested: t.CancelRequested() && !t.IsTerminal(),
		TargetLanguage:  t.Options().TargetLanguage,
		ModelProfile:    t.Options().ModelProfile,
		Attempts:        t.Attempts(),
		CreatedAt:       t.CreatedAt(),
		UpdatedAt:       t.UpdatedAt(),
		FinishedAt:      t.FinishedAt(),
	}
}

// TaskResultDto 任务结果
type TaskResultDto struct {
	TaskID                string                 `json:"task_id"`
	FullText              string                 `json:"full_text"`
	Segments              []vo.TranscriptSegment `json:"segments"`
	DetectedLanguage      string                 `json:"detected_language"`
	LanguageConfidence    float64                `json:"language_confidence"`
	LowConfidenceLanguage bool                   `json:"low_confidence_language"`
	NoSpeech              bool                   `json:"no_speech"`
	TranslatedText        *string                `json:"translated_text,omitempty"`
	TargetLanguage        string                 `json:"target_language,omitempty"`
	ProviderUsed          string                 `json:"provider_used,omitempty"`
	AudioDuration         float64                `json:"audio_duration"`
	CompletedAt           time.Time              `json:"completed_at"`
}

// NewTaskResultDto 译文仅在请求了目标语言时返回
func NewTaskResultDto(r *vo.TaskResult) *TaskResultDto {
	if r == nil {
		return nil
	}
	out := &TaskResultDto{
		TaskID:                r.TaskID,
		FullText:              r.FullText,
		Segments:              r.Segments,
		DetectedLanguage:      r.DetectedLanguage,
		LanguageConfidence:    r.LanguageConfidence,
		LowConfidenceLanguage: r.LowConfidenceLanguage,
		NoSpeech:              r.NoSpeech,
		TargetLanguage:        r.TargetLanguage,
		ProviderUsed:          r.ProviderUsed,
		AudioDuration:         r.AudioDuration,
		CompletedAt:           r.CompletedAt,
	}
	if out.Segments == nil {
		out.Segments = []vo.TranscriptSegment{}
	}
	if r.TargetLanguage != "" {
		text := r.TranslatedText
		out.TranslatedText = &text
	}
	return out
}

// CancelTaskDto 取消结果。对终态任务取消是无操作，Accepted 为 false。
type CancelTaskDto struct {
	TaskID          string `json:"task_id"`
	State           string `json:"state"`
	Accepted        bool   `json:"accepted"`
	CancelRequested bool   `json:"cancel_requested"`
}
