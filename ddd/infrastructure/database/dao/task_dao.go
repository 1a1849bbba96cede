package dao

import (
	"context"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"lingo-service/ddd/infrastructure/database/po"
	"lingo-service/pkg/logger"
)

// TaskDAO 任务数据访问对象
type TaskDAO struct {
	db *gorm.DB
}

// NewTaskDAO 创建任务DAO实例
func NewTaskDAO(db *gorm.DB) *TaskDAO {
	return &TaskDAO{db: db}
}

// DB 返回底层连接，用于开启事务
func (d *TaskDAO) DB(ctx context.Context) *gorm.DB {
	return d.db.WithContext(ctx)
}

// Create 创建任务
func (d *TaskDAO) Create(ctx context.Context, task *po.TaskPO) error {
	if err := d.db.WithContext(ctx).Create(task).Error; err != nil {
		logger.Errorf("Error creating task task_id=%s error=%v", task.TaskID, err)
		return err
	}
	return nil
}

// FindByTaskID 根据任务ID查询
func (d *TaskDAO) FindByTaskID(ctx context.Context, taskID string) (*po.TaskPO, error) {
	var task po.TaskPO
	if err := d.db.WithContext(ctx).Where("task_id = ?", taskID).First(&task).Error; err != nil {
		return nil, err
	}
	return &task, nil
}

// LockByTaskID 在事务内以 SELECT ... FOR UPDATE 读取任务
func (d *TaskDAO) LockByTaskID(tx *gorm.DB, taskID string) (*po.TaskPO, error) {
	var task po.TaskPO
	if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).Where("task_id = ?", taskID).First(&task).Error; err != nil {
		return nil, err
	}
	return &task, nil
}

// Save 写回全部字段
func (d *TaskDAO) Save(tx *gorm.DB, task *po.TaskPO) error {
	if err := tx.Save(task).Error; err != nil {
		logger.Errorf("Error saving task task_id=%s error=%v", task.TaskID, err)
		return err
	}
	return nil
}

// DeleteByTaskID 删除任务
func (d *TaskDAO) DeleteByTaskID(ctx context.Context, taskID string) error {
	return d.db.WithContext(ctx).Where("task_id = ?", taskID).Delete(&po.TaskPO{}).Error
}

// QueryByState 根据状态查询任务，按更新时间升序
func (d *TaskDAO) QueryByState(ctx context.Context, state string, limit int) ([]*po.TaskPO, error) {
	var tasks []*po.TaskPO
	query := d.db.WithContext(ctx).Where("state = ?", state).Order("updated_at ASC")
	if limit > 0 {
		query = query.Limit(limit)
	}
	if err := query.Find(&tasks).Error; err != nil {
		logger.Errorf("Error query tasks by state state=%s error=%v", state, err)
		return nil, err
	}
	return tasks, nil
}
