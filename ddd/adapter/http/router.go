package http

import (
	"net/http"

	"lingo-service/pkg/manager"
	"lingo-service/pkg/middleware"

	"github.com/gin-gonic/gin"
)

func init() {
	manager.RegisterRoutePlugin(&TaskRoutePlugin{})
}

// TaskRoutePlugin 注册任务相关路由
type TaskRoutePlugin struct{}

func (p *TaskRoutePlugin) Name() string {
	return "taskRoutes"
}

func (p *TaskRoutePlugin) Register(router gin.IRouter, deps *manager.Dependencies) {
	if deps == nil || deps.TaskApp == nil {
		panic("task routes require TaskApp")
	}
	SetupRoutes(router, NewTaskController(deps.TaskApp))
}

// SetupRoutes 设置路由
func SetupRoutes(router gin.IRouter, taskController *TaskController) {
	v1 := router.Group("/api/v1")
	{
		tasks := v1.Group("/tasks")
		{
			tasks.POST("", taskController.SubmitTask)                   // 提交任务
			tasks.GET("/:task_id", taskController.GetTaskStatus)        // 查询状态
			tasks.GET("/:task_id/result", taskController.GetTaskResult) // 获取结果
			tasks.POST("/:task_id/cancel", taskController.CancelTask)   // 取消任务
		}
		v1.GET("/providers", taskController.ListProviders)
		v1.GET("/languages", taskController.ListLanguages)
		v1.GET("/estimate", taskController.EstimateProcessing) // ?media_ref= 或 ?duration_seconds=
	}

	// 健康检查路由
	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":  "ok",
			"service": "lingo-service",
		})
	})
}

// SetupMiddleware 设置中间件
func SetupMiddleware(engine *gin.Engine) {
	engine.Use(func(c *gin.Context) {
		c.Header("Access-Control-Allow-Origin", "*")
		c.Header("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		c.Header("Access-Control-Allow-Headers", "Content-Type, Authorization, X-Request-ID")

		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}
		c.Next()
	})
	engine.Use(middleware.RequestContextMiddleware())
	engine.Use(gin.Recovery())
}
