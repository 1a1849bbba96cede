package progress

import (
	"context"
	"time"

	"lingo-service/ddd/domain/entity"
	"lingo-service/ddd/domain/fault"
	"lingo-service/ddd/domain/port"
	"lingo-service/ddd/domain/repo"
	"lingo-service/ddd/domain/vo"
)

// RepoSink writes progress through the task repository and doubles as the stage gate.
// All writes go through Update so they serialize with cancel and claim.
type RepoSink struct {
	repo repo.TaskRepository
	now  func() time.Time
}

var (
	_ port.ProgressSink = (*RepoSink)(nil)
	_ port.StageGate    = (*RepoSink)(nil)
)

func NewRepoSink(r repo.TaskRepository) *RepoSink {
	return &RepoSink{repo: r, now: time.Now}
}

func (s *RepoSink) SaveProgress(ctx context.Context, taskID string, p vo.Progress) error {
	if p.UpdatedAt.IsZero() {
		p.UpdatedAt = s.now()
	}
	_, err := s.repo.Update(ctx, taskID, func(t *entity.TaskEntity) error {
		if !t.ApplyProgress(p) {
			return repo.ErrNoChange
		}
		t.Heartbeat(s.now())
		return nil
	})
	return err
}

func (s *RepoSink) SaveResultRef(ctx context.Context, taskID, resultRef string) error {
	_, err := s.repo.Update(ctx, taskID, func(t *entity.TaskEntity) error {
		if !t.AttachResult(resultRef, s.now()) {
			return repo.ErrNoChange
		}
		return nil
	})
	return err
}

// Checkpoint 阶段边界检查：已请求取消或任务不再运行时返回 fault.ErrCancelled
func (s *RepoSink) Checkpoint(ctx context.Context, taskID string, _ vo.Stage) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	t, err := s.repo.Get(ctx, taskID)
	if err != nil {
		return err
	}
	if t.CancelRequested() || t.State() == vo.TaskStateCancelled {
		return fault.ErrCancelled
	}
	return nil
}
