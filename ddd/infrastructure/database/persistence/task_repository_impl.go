package persistence

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"

	"lingo-service/ddd/domain/entity"
	"lingo-service/ddd/domain/repo"
	"lingo-service/ddd/domain/vo"
	"lingo-service/ddd/infrastructure/database/convertor"
	"lingo-service/ddd/infrastructure/database/dao"
	"lingo-service/ddd/infrastructure/database/po"
)

// TaskRepositoryImpl 基于 MySQL 的任务仓储实现
type TaskRepositoryImpl struct {
	dao       *dao.TaskDAO
	convertor *convertor.TaskConvertor
}

// NewTaskRepository 创建任务仓储实例
func NewTaskRepository(db *gorm.DB) repo.TaskRepository {
	return &TaskRepositoryImpl{
		dao:       dao.NewTaskDAO(db),
		convertor: convertor.NewTaskConvertor(),
	}
}

// AutoMigrate 创建或更新任务表
func AutoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(&po.TaskPO{})
}

func (r *TaskRepositoryImpl) Create(ctx context.Context, task *entity.TaskEntity) error {
	if err := r.dao.Create(ctx, r.convertor.ToPO(task, 0)); err != nil {
		return fmt.Errorf("create task %s: %w", task.TaskID(), err)
	}
	return nil
}

func (r *TaskRepositoryImpl) Get(ctx context.Context, taskID string) (*entity.TaskEntity, error) {
	p, err := r.dao.FindByTaskID(ctx, taskID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, repo.ErrTaskNotFound
		}
		return nil, fmt.Errorf("get task %s: %w", taskID, err)
	}
	return r.convertor.ToEntity(p), nil
}

func (r *TaskRepositoryImpl) Delete(ctx context.Context, taskID string) error {
	return r.dao.DeleteByTaskID(ctx, taskID)
}

// Update 在事务内 SELECT ... FOR UPDATE，保证同一任务的状态迁移串行执行
func (r *TaskRepositoryImpl) Update(ctx context.Context, taskID string, mutate func(task *entity.TaskEntity) error) (*entity.TaskEntity, error) {
	var result *entity.TaskEntity
	err := r.dao.DB(ctx).Transaction(func(tx *gorm.DB) error {
		p, err := r.dao.LockByTaskID(tx, taskID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return repo.ErrTaskNotFound
			}
			return err
		}
		task := r.convertor.ToEntity(p)
		if err := mutate(task); err != nil {
			if errors.Is(err, repo.ErrNoChange) {
				result = r.convertor.ToEntity(p)
				return nil
			}
			return err
		}
		if err := r.dao.Save(tx, r.convertor.ToPO(task, p.ID)); err != nil {
			return err
		}
		result = task
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

func (r *TaskRepositoryImpl) ListByState(ctx context.Context, state vo.TaskState, limit int) ([]*entity.TaskEntity, error) {
	list, err := r.dao.QueryByState(ctx, state.String(), limit)
	if err != nil {
		return nil, err
	}
	tasks := make([]*entity.TaskEntity, 0, len(list))
	for _, p := range list {
		tasks = append(tasks, r.convertor.ToEntity(p))
	}
	return tasks, nil
}
