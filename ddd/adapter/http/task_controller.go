package http

import (
	"lingo-service/ddd/application/app"
	"lingo-service/ddd/application/cqe"
	"lingo-service/pkg/errno"
	"lingo-service/pkg/restapi"

	"github.com/gin-gonic/gin"
)

// TaskController 任务契约的 HTTP 入口
type TaskController struct {
	taskApp app.TaskApp
}

func NewTaskController(taskApp app.TaskApp) *TaskController {
	return &TaskController{taskApp: taskApp}
}

// SubmitTask 提交任务，立即返回 task_id
func (c *TaskController) SubmitTask(ctx *gin.Context) {
	var req cqe.SubmitTaskCqe
	if err := ctx.ShouldBindJSON(&req); err != nil {
		restapi.Failed(ctx, errno.NewBizError(errno.ErrInvalidInput, err.Error()))
		return
	}

	resp, err := c.taskApp.SubmitTask(ctx.Request.Context(), &req)
	if err != nil {
		restapi.Failed(ctx, err)
		return
	}
	restapi.Accepted(ctx, resp)
}

// GetTaskStatus 查询任务状态和进度
func (c *TaskController) GetTaskStatus(ctx *gin.Context) {
	resp, err := c.taskApp.GetTaskStatus(ctx.Request.Context(), ctx.Param("task_id"))
	if err != nil {
		restapi.Failed(ctx, err)
		return
	}
	restapi.Success(ctx, resp)
}

// GetTaskResult 获取识别和翻译结果
func (c *TaskController) GetTaskResult(ctx *gin.Context) {
	resp, err := c.taskApp.GetTaskResult(ctx.Request.Context(), ctx.Param("task_id"))
	if err != nil {
		restapi.Failed(ctx, err)
		return
	}
	restapi.Success(ctx, resp)
}

// CancelTask 取消任务
func (c *TaskController) CancelTask(ctx *gin.Context) {
	resp, err := c.taskApp.CancelTask(ctx.Request.Context(), ctx.Param("task_id"))
	if err != nil {
		restapi.Failed(ctx, err)
		return
	}
	restapi.Success(ctx, resp)
}

// ListLanguages 支持的目标语言
func (c *TaskController) ListLanguages(ctx *gin.Context) {
	restapi.Success(ctx, gin.H{"languages": c.taskApp.SupportedLanguages(ctx.Request.Context())})
}

// EstimateProcessing 估算处理耗时
func (c *TaskController) EstimateProcessing(ctx *gin.Context) {
	var req cqe.EstimateCqe
	if err := ctx.ShouldBindQuery(&req); err != nil {
		restapi.Failed(ctx, errno.NewBizError(errno.ErrInvalidInput, err.Error()))
		return
	}
	resp, err := c.taskApp.EstimateProcessing(ctx.Request.Context(), &req)
	if err != nil {
		restapi.Failed(ctx, err)
		return
	}
	restapi.Success(ctx, resp)
}

// ListProviders 翻译提供方健康状态
func (c *TaskController) ListProviders(ctx *gin.Context) {
	restapi.Success(ctx, gin.H{"providers": c.taskApp.ProviderStatus(ctx.Request.Context())})
}
