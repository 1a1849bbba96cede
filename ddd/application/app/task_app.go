package app

import (
	"context"
	"errors"
	"time"

	"lingo-service/ddd/application/cqe"
	"lingo-service/ddd/application/dto"
	"lingo-service/ddd/domain/entity"
	"lingo-service/ddd/domain/gateway"
	"lingo-service/ddd/domain/port"
	"lingo-service/ddd/domain/repo"
	"lingo-service/ddd/domain/service"
	"lingo-service/ddd/domain/vo"
	"lingo-service/ddd/infrastructure/queue"
	"lingo-service/pkg/assert"
	"lingo-service/pkg/errno"
	"lingo-service/pkg/logger"
)

// TaskApp 任务契约：提交、查询状态、获取结果、取消
type TaskApp interface {
	SubmitTask(ctx context.Context, req *cqe.SubmitTaskCqe) (*dto.SubmitTaskDto, error)
	GetTaskStatus(ctx context.Context, taskID string) (*dto.TaskStatusDto, error)
	GetTaskResult(ctx context.Context, taskID string) (*dto.TaskResultDto, error)
	CancelTask(ctx context.Context, taskID string) (*dto.CancelTaskDto, error)
	// ProviderStatus 翻译提供方健康状态
	ProviderStatus(ctx context.Context) []service.ProviderStatus
	// SupportedLanguages 常用目标语言列表
	SupportedLanguages(ctx context.Context) []vo.Language
	// EstimateProcessing 估算处理耗时，不创建任务
	EstimateProcessing(ctx context.Context, req *cqe.EstimateCqe) (*service.ProcessingEstimate, error)
}

// DurationProber reads the media duration without decoding it.
type DurationProber interface {
	ProbeDuration(ctx context.Context, mediaRef string) (time.Duration, error)
}

// ProfileResolver validates a model profile name.
type ProfileResolver interface {
	Resolve(profile string) (string, error)
}

// ProviderStatusSource reports translation provider health.
type ProviderStatusSource interface {
	ProviderStatus() []service.ProviderStatus
}

// TaskAppDeps 任务应用服务依赖
type TaskAppDeps struct {
	Repo      repo.TaskRepository
	Queue     queue.TaskQueue
	Results   repo.ResultStore
	Resolver  port.MediaResolver
	Profiles  ProfileResolver            // 可选
	Providers ProviderStatusSource       // 可选
	Publisher gateway.TaskEventPublisher // 可选
	Prober    DurationProber             // 可选，估算时按 media_ref 探测时长
	// DefaultProfile 未指定档位时估算使用的模型档位
	DefaultProfile string
}

type taskAppImpl struct {
	repo      repo.TaskRepository
	queue     queue.TaskQueue
	results   repo.ResultStore
	resolver  port.MediaResolver
	profiles  ProfileResolver
	providers ProviderStatusSource
	publisher gateway.TaskEventPublisher
	prober    DurationProber
	profile   string
	now       func() time.Time
}

// NewTaskApp 创建任务应用服务
func NewTaskApp(deps TaskAppDeps) TaskApp {
	assert.NotNil(deps.Repo, "task repository")
	assert.NotNil(deps.Queue, "task queue")
	assert.NotNil(deps.Results, "result store")
	assert.NotNil(deps.Resolver, "media resolver")
	return &taskAppImpl{
		repo:      deps.Repo,
		queue:     deps.Queue,
		results:   deps.Results,
		resolver:  deps.Resolver,
		profiles:  deps.Profiles,
		providers: deps.Providers,
		publisher: deps.Publisher,
		prober:    deps.Prober,
		profile:   deps.DefaultProfile,
		now:       time.Now,
	}
}

func (a *taskAppImpl) SubmitTask(ctx context.Context, req *cqe.SubmitTaskCqe) (*dto.SubmitTaskDto, error) {
	if req == nil {
		return nil, errno.ErrInvalidInput
	}
	if err := req.Validate(); err != nil {
		return nil, err
	}
	if req.ModelProfile != "" && a.profiles != nil {
		if _, err := a.profiles.Resolve(req.ModelProfile); err != nil {
			return nil, errno.NewBizError(errno.ErrInvalidProfile, err.Error())
		}
	}
	if err := a.resolver.Validate(ctx, req.MediaRef); err != nil {
		return nil, errno.NewBizError(errno.ErrUnsupportedMedia, err.Error())
	}

	task := entity.NewTaskEntity(req.MediaRef, req.Options())
	if err := a.repo.Create(ctx, task); err != nil {
		logger.Errorf("Create task failed media_ref=%s error=%v", req.MediaRef, err)
		return nil, errno.NewBizError(errno.ErrDatabase, err.Error())
	}

	// 入队失败时删除记录，调用方可以直接重试
	if err := a.queue.Enqueue(ctx, task.TaskID()); err != nil {
		logger.Errorf("Enqueue task failed task_id=%s error=%v", task.TaskID(), err)
		if derr := a.repo.Delete(context.WithoutCancel(ctx), task.TaskID()); derr != nil {
			logger.Errorf("Delete unqueued task failed task_id=%s error=%v", task.TaskID(), derr)
		}
		return nil, errno.NewBizError(errno.ErrQueueUnavailable, err.Error())
	}

	logger.Infof("Task submitted task_id=%s media_ref=%s target_language=%s model_profile=%s",
		task.TaskID(), req.MediaRef, req.TargetLanguage, req.ModelProfile)
	return &dto.SubmitTaskDto{TaskID: task.TaskID(), State: task.State().String()}, nil
}

func (a *taskAppImpl) GetTaskStatus(ctx context.Context, taskID string) (*dto.TaskStatusDto, error) {
	task, err := a.load(ctx, taskID)
	if err != nil {
		return nil, err
	}
	return dto.NewTaskStatusDto(task), nil
}

func (a *taskAppImpl) GetTaskResult(ctx context.Context, taskID string) (*dto.TaskResultDto, error) {
	task, err := a.load(ctx, taskID)
	if err != nil {
		return nil, err
	}
	if task.State() != vo.TaskStateSuccess || task.ResultRef() == "" {
		return nil, errno.NewBizError(errno.ErrResultNotReady, "task is "+task.State().String())
	}
	result, err := a.results.Get(ctx, task.ResultRef())
	if err != nil {
		if errors.Is(err, repo.ErrResultExpired) {
			return nil, errno.ErrResultExpired
		}
		logger.Errorf("Load result failed task_id=%s result_ref=%s error=%v", taskID, task.ResultRef(), err)
		return nil, errno.NewBizError(errno.ErrInternalServer, "result store unavailable")
	}
	return dto.NewTaskResultDto(result), nil
}

// CancelTask PENDING 直接取消；RUNNING 设置取消标记，由 worker 在阶段边界处理；终态为无操作
func (a *taskAppImpl) CancelTask(ctx context.Context, taskID string) (*dto.CancelTaskDto, error) {
	id := cqe.TaskIDCqe{TaskID: taskID}
	if err := id.Validate(); err != nil {
		return nil, err
	}
	accepted := false
	task, err := a.repo.Update(ctx, id.TaskID, func(t *entity.TaskEntity) error {
		now := a.now()
		switch {
		case t.IsPending():
			accepted = true
			return t.Cancel(now)
		case t.IsRunning():
			if !t.RequestCancel(now) {
				return repo.ErrNoChange
			}
			accepted = true
			return nil
		default:
			return repo.ErrNoChange
		}
	})
	if err != nil {
		if errors.Is(err, repo.ErrTaskNotFound) {
			return nil, errno.ErrTaskNotFound
		}
		return nil, errno.NewBizError(errno.ErrDatabase, err.Error())
	}

	if accepted {
		logger.Infof("Task cancel accepted task_id=%s state=%s", task.TaskID(), task.State())
	}
	if accepted && task.State() == vo.TaskStateCancelled && a.publisher != nil {
		event := gateway.TaskEvent{TaskID: task.TaskID(), State: task.State().String(), OccurredAt: task.UpdatedAt()}
		if err := a.publisher.Publish(ctx, event); err != nil {
			logger.Warnf("Publish task event failed task_id=%s error=%v", task.TaskID(), err)
		}
	}
	return &dto.CancelTaskDto{
		TaskID:          task.TaskID(),
		State:           task.State().String(),
		Accepted:        accepted,
		CancelRequested: task.CancelRequested() && !task.IsTerminal(),
	}, nil
}

func (a *taskAppImpl) ProviderStatus(context.Context) []service.ProviderStatus {
	if a.providers == nil {
		return []service.ProviderStatus{}
	}
	return a.providers.ProviderStatus()
}

func (a *taskAppImpl) SupportedLanguages(context.Context) []vo.Language {
	return vo.SupportedLanguages()
}

func (a *taskAppImpl) EstimateProcessing(ctx context.Context, req *cqe.EstimateCqe) (*service.ProcessingEstimate, error) {
	if req == nil {
		return nil, errno.ErrInvalidInput
	}
	if err := req.Validate(); err != nil {
		return nil, err
	}
	profile := req.ModelProfile
	if profile == "" {
		profile = a.profile
	}
	if req.ModelProfile != "" && a.profiles != nil {
		if _, err := a.profiles.Resolve(req.ModelProfile); err != nil {
			return nil, errno.NewBizError(errno.ErrInvalidProfile, err.Error())
		}
	}

	duration := time.Duration(req.DurationSeconds * float64(time.Second))
	if duration == 0 {
		if a.prober == nil {
			return nil, errno.NewBizError(errno.ErrInvalidInput, "duration_seconds is required")
		}
		if err := a.resolver.Validate(ctx, req.MediaRef); err != nil {
			return nil, errno.NewBizError(errno.ErrUnsupportedMedia, err.Error())
		}
		d, err := a.prober.ProbeDuration(ctx, req.MediaRef)
		if err != nil {
			logger.Warnf("Probe media duration failed media_ref=%s error=%v", req.MediaRef, err)
			return nil, errno.NewBizError(errno.ErrUnsupportedMedia, err.Error())
		}
		duration = d
	}
	est := service.EstimateProcessing(duration, profile)
	return &est, nil
}

func (a *taskAppImpl) load(ctx context.Context, taskID string) (*entity.TaskEntity, error) {
	id := cqe.TaskIDCqe{TaskID: taskID}
	if err := id.Validate(); err != nil {
		return nil, err
	}
	task, err := a.repo.Get(ctx, id.TaskID)
	if err != nil {
		if errors.Is(err, repo.ErrTaskNotFound) {
			return nil, errno.ErrTaskNotFound
		}
		return nil, errno.NewBizError(errno.ErrDatabase, err.Error())
	}
	return task, nil
}
