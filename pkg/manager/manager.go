package manager

import (
	"fmt"
	"sync"

	"lingo-service/ddd/application/app"
	"lingo-service/ddd/domain/gateway"
	"lingo-service/ddd/domain/repo"
	"lingo-service/ddd/domain/service"
	"lingo-service/ddd/infrastructure/queue"
	"lingo-service/pkg/config"
	"lingo-service/pkg/kafka"
	"lingo-service/pkg/logger"

	"github.com/gin-gonic/gin"
)

// Resource 外部连接类资源（Redis、MySQL、MinIO...），MustOpen 失败直接 panic
type Resource interface {
	MustOpen()
	Close()
}

// ResourcePlugin 在 init 中注册，启动时统一创建
type ResourcePlugin interface {
	Name() string
	MustCreateResource() Resource
}

// Component 有生命周期的后台组件
type Component interface {
	Start() error
	Stop() error
	GetName() string
}

// ComponentPlugin 组件插件
type ComponentPlugin interface {
	Name() string
	MustCreateComponent(deps *Dependencies) Component
}

// RoutePlugin 路由插件
type RoutePlugin interface {
	Name() string
	Register(router gin.IRouter, deps *Dependencies)
}

// Dependencies 依赖注入容器，由启动流程显式组装
type Dependencies struct {
	Config    *config.Config
	TaskApp   app.TaskApp
	TaskRepo  repo.TaskRepository
	Queue     queue.TaskQueue
	Pipeline  *service.PipelineService
	Chain     *service.TranslationChain
	Publisher gateway.TaskEventPublisher
	Kafka     *kafka.Client // nil 表示未启用 Kafka
}

type registry struct {
	mu               sync.Mutex
	resourcePlugins  []ResourcePlugin
	resources        []Resource
	componentPlugins []ComponentPlugin
	components       []Component
	routePlugins     []RoutePlugin
}

var defaultRegistry = &registry{}

func RegisterResourcePlugin(p ResourcePlugin) {
	defaultRegistry.mu.Lock()
	defer defaultRegistry.mu.Unlock()
	defaultRegistry.resourcePlugins = append(defaultRegistry.resourcePlugins, p)
}

func RegisterComponentPlugin(p ComponentPlugin) {
	defaultRegistry.mu.Lock()
	defer defaultRegistry.mu.Unlock()
	defaultRegistry.componentPlugins = append(defaultRegistry.componentPlugins, p)
}

func RegisterRoutePlugin(p RoutePlugin) {
	defaultRegistry.mu.Lock()
	defer defaultRegistry.mu.Unlock()
	defaultRegistry.routePlugins = append(defaultRegistry.routePlugins, p)
}

// MustInitResources 按注册顺序打开所有资源
func MustInitResources() {
	defaultRegistry.mu.Lock()
	defer defaultRegistry.mu.Unlock()
	for _, p := range defaultRegistry.resourcePlugins {
		r := p.MustCreateResource()
		r.MustOpen()
		defaultRegistry.resources = append(defaultRegistry.resources, r)
		logger.Infof("Resource opened name=%s", p.Name())
	}
}

// CloseResources 逆序关闭资源
func CloseResources() {
	defaultRegistry.mu.Lock()
	defer defaultRegistry.mu.Unlock()
	for i := len(defaultRegistry.resources) - 1; i >= 0; i-- {
		defaultRegistry.resources[i].Close()
	}
	defaultRegistry.resources = nil
}

// MustInitComponents 创建并启动全部组件
func MustInitComponents(deps *Dependencies) {
	defaultRegistry.mu.Lock()
	defer defaultRegistry.mu.Unlock()
	for _, p := range defaultRegistry.componentPlugins {
		c := p.MustCreateComponent(deps)
		if c == nil {
			logger.Infof("Component skipped name=%s", p.Name())
			continue
		}
		if err := c.Start(); err != nil {
			panic(fmt.Sprintf("start component %s: %v", c.GetName(), err))
		}
		defaultRegistry.components = append(defaultRegistry.components, c)
		logger.Infof("Component started name=%s", c.GetName())
	}
}

// RegisterAllRoutes 注册全部路由插件
func RegisterAllRoutes(router gin.IRouter, deps *Dependencies) {
	defaultRegistry.mu.Lock()
	defer defaultRegistry.mu.Unlock()
	for _, p := range defaultRegistry.routePlugins {
		p.Register(router, deps)
		logger.Infof("Routes registered name=%s", p.Name())
	}
}

// Shutdown 逆序停止组件
func Shutdown() {
	defaultRegistry.mu.Lock()
	defer defaultRegistry.mu.Unlock()
	for i := len(defaultRegistry.components) - 1; i >= 0; i-- {
		c := defaultRegistry.components[i]
		if err := c.Stop(); err != nil {
			logger.Errorf("Component stop failed name=%s error=%v", c.GetName(), err)
		}
	}
	defaultRegistry.components = nil
}
