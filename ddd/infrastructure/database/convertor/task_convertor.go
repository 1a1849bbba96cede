package convertor

import (
	"lingo-service/ddd/domain/entity"
	"lingo-service/ddd/domain/vo"
	"lingo-service/ddd/infrastructure/database/po"
)

// TaskConvertor 任务实体与持久化对象转换
type TaskConvertor struct{}

func NewTaskConvertor() *TaskConvertor {
	return &TaskConvertor{}
}

// ToEntity 将PO转换为Entity
func (c *TaskConvertor) ToEntity(p *po.TaskPO) *entity.TaskEntity {
	if p == nil {
		return nil
	}
	var taskErr *vo.TaskError
	if p.ErrorKind != "" {
		taskErr = &vo.TaskError{Kind: p.ErrorKind, Stage: vo.Stage(p.ErrorStage), Message: p.ErrorMessage}
	}
	return entity.RestoreTaskEntity(entity.TaskSnapshot{
		TaskID:   p.TaskID,
		State:    vo.TaskState(p.State),
		InputRef: p.InputRef,
		Options: vo.TaskOptions{
			TargetLanguage: p.TargetLanguage,
			ModelProfile:   p.ModelProfile,
		},
		Progress: vo.Progress{
			Stage:     vo.Stage(p.ProgressStage),
			Percent:   p.ProgressPercent,
			Message:   p.ProgressMessage,
			UpdatedAt: p.ProgressUpdatedAt,
		},
		Error:           taskErr,
		ResultRef:       p.ResultRef,
		CancelRequested: p.CancelRequested,
		TimeoutCancel:   p.TimeoutCancel,
		WorkerID:        p.WorkerID,
		Attempts:        p.Attempts,
		Requeues:        p.Requeues,
		CreatedAt:       p.CreatedAt,
		UpdatedAt:       p.UpdatedAt,
		StartedAt:       p.StartedAt,
		HeartbeatAt:     p.HeartbeatAt,
		FinishedAt:      p.FinishedAt,
	})
}

// ToPO 将Entity转换为PO；id 为已存在记录的主键，新建时传 0
func (c *TaskConvertor) ToPO(t *entity.TaskEntity, id uint) *po.TaskPO {
	s := t.Snapshot()
	out := &po.TaskPO{
		ID:                id,
		TaskID:            s.TaskID,
		State:             s.State.String(),
		InputRef:          s.InputRef,
		TargetLanguage:    s.Options.TargetLanguage,
		ModelProfile:      s.Options.ModelProfile,
		ProgressStage:     s.Progress.Stage.String(),
		ProgressPercent:   s.Progress.Percent,
		ProgressMessage:   truncate(s.Progress.Message, 255),
		ProgressUpdatedAt: s.Progress.UpdatedAt,
		ResultRef:         s.ResultRef,
		CancelRequested:   s.CancelRequested,
		TimeoutCancel:     s.TimeoutCancel,
		WorkerID:          s.WorkerID,
		Attempts:          s.Attempts,
		Requeues:          s.Requeues,
		CreatedAt:         s.CreatedAt,
		UpdatedAt:         s.UpdatedAt,
		StartedAt:         s.StartedAt,
		HeartbeatAt:       s.HeartbeatAt,
		FinishedAt:        s.FinishedAt,
	}
	if s.Error != nil {
		out.ErrorKind = s.Error.Kind
		out.ErrorStage = s.Error.Stage.String()
		out.ErrorMessage = s.Error.Message
	}
	return out
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}
