package persistence

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"lingo-service/ddd/domain/entity"
	"lingo-service/ddd/domain/repo"
	"lingo-service/ddd/domain/vo"
)

// MemoryTaskRepository 进程内任务仓储，单机部署和测试使用。
// 保存快照而非实体指针，调用方拿到的实体修改不会泄漏回仓储。
type MemoryTaskRepository struct {
	mu    sync.Mutex
	tasks map[string]entity.TaskSnapshot
}

func NewMemoryTaskRepository() *MemoryTaskRepository {
	return &MemoryTaskRepository{tasks: make(map[string]entity.TaskSnapshot)}
}

func (r *MemoryTaskRepository) Create(_ context.Context, task *entity.TaskEntity) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.tasks[task.TaskID()]; ok {
		return fmt.Errorf("create task %s: duplicate id", task.TaskID())
	}
	r.tasks[task.TaskID()] = copySnapshot(task.Snapshot())
	return nil
}

func (r *MemoryTaskRepository) Get(_ context.Context, taskID string) (*entity.TaskEntity, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.tasks[taskID]
	if !ok {
		return nil, repo.ErrTaskNotFound
	}
	return entity.RestoreTaskEntity(copySnapshot(s)), nil
}

func (r *MemoryTaskRepository) Delete(_ context.Context, taskID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.tasks, taskID)
	return nil
}

func (r *MemoryTaskRepository) Update(_ context.Context, taskID string, mutate func(task *entity.TaskEntity) error) (*entity.TaskEntity, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.tasks[taskID]
	if !ok {
		return nil, repo.ErrTaskNotFound
	}
	task := entity.RestoreTaskEntity(copySnapshot(s))
	if err := mutate(task); err != nil {
		if errors.Is(err, repo.ErrNoChange) {
			return entity.RestoreTaskEntity(copySnapshot(s)), nil
		}
		return nil, err
	}
	r.tasks[taskID] = copySnapshot(task.Snapshot())
	return task, nil
}

func (r *MemoryTaskRepository) ListByState(_ context.Context, state vo.TaskState, limit int) ([]*entity.TaskEntity, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var list []entity.TaskSnapshot
	for _, s := range r.tasks {
		if s.State == state {
			list = append(list, s)
		}
	}
	sort.Slice(list, func(i, j int) bool { return list[i].UpdatedAt.Before(list[j].UpdatedAt) })
	if limit > 0 && len(list) > limit {
		list = list[:limit]
	}
	tasks := make([]*entity.TaskEntity, 0, len(list))
	for _, s := range list {
		tasks = append(tasks, entity.RestoreTaskEntity(copySnapshot(s)))
	}
	return tasks, nil
}

func copySnapshot(s entity.TaskSnapshot) entity.TaskSnapshot {
	if s.Error != nil {
		e := *s.Error
		s.Error = &e
	}
	s.StartedAt = copyTime(s.StartedAt)
	s.HeartbeatAt = copyTime(s.HeartbeatAt)
	s.FinishedAt = copyTime(s.FinishedAt)
	return s
}

func copyTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	v := *t
	return &v
}
