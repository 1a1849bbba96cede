package repo

import (
	"context"
	"errors"

	"lingo-service/ddd/domain/entity"
	"lingo-service/ddd/domain/vo"
)

var (
	// ErrTaskNotFound 任务不存在
	ErrTaskNotFound = errors.New("task not found")
	// ErrNoChange lets an Update mutator skip the write without failing.
	ErrNoChange = errors.New("no change")
)

// TaskRepository 任务仓储。Update 在同一原子操作内读取、修改、写回任务，
// 是所有状态迁移的唯一入口。
type TaskRepository interface {
	Create(ctx context.Context, task *entity.TaskEntity) error
	Get(ctx context.Context, taskID string) (*entity.TaskEntity, error)
	Delete(ctx context.Context, taskID string) error
	// Update applies mutate under a per-task lock. If mutate returns ErrNoChange the
	// task is returned unchanged and no error is reported; any other error aborts.
	Update(ctx context.Context, taskID string, mutate func(task *entity.TaskEntity) error) (*entity.TaskEntity, error)
	ListByState(ctx context.Context, state vo.TaskState, limit int) ([]*entity.TaskEntity, error)
}
