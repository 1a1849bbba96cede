package cqe

import (
	"strings"

	"lingo-service/ddd/domain/vo"
	"lingo-service/pkg/errno"
)

// SubmitTaskCqe 提交任务请求
type SubmitTaskCqe struct {
	MediaRef       string `json:"media_ref"`                 // 本地路径、s3://bucket/key 或远程视频 URL
	TargetLanguage string `json:"target_language,omitempty"` // 为空时不翻译
	ModelProfile   string `json:"model_profile,omitempty"`   // 识别模型档位
}

// Validate 校验并规范化请求
func (req *SubmitTaskCqe) Validate() error {
	req.MediaRef = strings.TrimSpace(req.MediaRef)
	if req.MediaRef == "" {
		return errno.ErrMediaRefRequired
	}
	req.TargetLanguage = vo.NormalizeLanguage(req.TargetLanguage)
	if req.TargetLanguage != "" && !vo.IsValidLanguage(req.TargetLanguage) {
		return errno.NewBizError(errno.ErrInvalidLanguage, req.TargetLanguage)
	}
	req.ModelProfile = strings.TrimSpace(req.ModelProfile)
	return nil
}

// Options 转换为任务参数
func (req *SubmitTaskCqe) Options() vo.TaskOptions {
	return vo.TaskOptions{TargetLanguage: req.TargetLanguage, ModelProfile: req.ModelProfile}
}

// TaskIDCqe 按任务ID查询或取消
type TaskIDCqe struct {
	TaskID string `json:"task_id" uri:"task_id"`
}

func (req *TaskIDCqe) Validate() error {
	req.TaskID = strings.TrimSpace(req.TaskID)
	if req.TaskID == "" {
		return errno.ErrTaskIDRequired
	}
	return nil
}

// EstimateCqe 处理耗时估算请求，media_ref 与 duration_seconds 二选一
type EstimateCqe struct {
	MediaRef        string  `json:"media_ref" form:"media_ref"`
	DurationSeconds float64 `json:"duration_seconds" form:"duration_seconds"`
	ModelProfile    string  `json:"model_profile" form:"model_profile"`
}

func (req *EstimateCqe) Validate() error {
	req.MediaRef = strings.TrimSpace(req.MediaRef)
	req.ModelProfile = strings.TrimSpace(req.ModelProfile)
	if req.DurationSeconds < 0 {
		return errno.NewBizError(errno.ErrInvalidInput, "duration_seconds must not be negative")
	}
	if req.DurationSeconds == 0 && req.MediaRef == "" {
		return errno.NewBizError(errno.ErrInvalidInput, "media_ref or duration_seconds is required")
	}
	return nil
}
