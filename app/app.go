package app

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/exec"
	"os/signal"
	"strings"
	"syscall"
	"time"

	taskGrpc "lingo-service/ddd/adapter/grpc"
	httpadapter "lingo-service/ddd/adapter/http"
	"lingo-service/internal/bootstrap"
	"lingo-service/pkg/config"
	"lingo-service/pkg/logger"
	"lingo-service/pkg/manager"
	"lingo-service/pkg/observability"
	"lingo-service/pkg/registry"
	"lingo-service/pkg/task"

	"github.com/gin-gonic/gin"
	"google.golang.org/grpc"

	_ "lingo-service/ddd/adapter/component"
	_ "lingo-service/ddd/infrastructure/worker"

	// 导入资源包以触发init函数
	_ "lingo-service/internal/resource"
)

// Role 进程角色
type Role string

const (
	RoleAll    Role = "all"    // 接口 + worker
	RoleAPI    Role = "api"    // 只接收请求
	RoleWorker Role = "worker" // 只执行任务
)

// RoleFromEnv 读取 LINGO_ROLE，默认 all
func RoleFromEnv() Role {
	switch Role(strings.ToLower(strings.TrimSpace(os.Getenv("LINGO_ROLE")))) {
	case RoleAPI:
		return RoleAPI
	case RoleWorker:
		return RoleWorker
	}
	return RoleAll
}

func (r Role) servesAPI() bool { return r != RoleWorker }

func Run(role Role) {
	fmt.Printf("[STARTUP] Starting lingo service role=%s...\n", role)

	cfgPath := resolveConfigPath()
	cfg, err := config.Load(cfgPath)
	if err != nil {
		fmt.Printf("[ERROR] Failed to load config (%s): %v\n", cfgPath, err)
		os.Exit(1)
	}
	switch role {
	case RoleAPI:
		cfg.Worker.Enabled = false
	case RoleWorker:
		cfg.Worker.Enabled = true
		cfg.Kafka.Topics.TaskSubmissions = ""
	}
	// 设置全局配置（必须在资源管理器初始化之前）
	config.SetGlobalConfig(cfg)
	fmt.Printf("[STARTUP] Config file loaded: %s\n", cfgPath)

	logService := logger.NewLogger(cfg)
	logger.SetGlobalLogger(logService)
	logger.Debug("Logger initialized", map[string]interface{}{
		"level":  cfg.Log.Level,
		"format": cfg.Log.Format,
		"output": cfg.Log.Output,
	})
	logger.Infof("Lingo service starting role=%s worker_id=%s", role, cfg.Worker.WorkerID)

	stopProfiling, err := observability.StartProfiling(cfg.Profiling)
	if err != nil {
		logger.Warnf("Profiling disabled error=%v", err)
	}
	defer stopProfiling()

	// worker 依赖 ffmpeg，直接在启动阶段失败
	if cfg.Worker.Enabled {
		checkBinary("ffmpeg", cfg.Extraction.FFmpegPath, "extraction.ffmpeg_path")
		if cfg.Transcription.Driver == "" || cfg.Transcription.Driver == "whisper_cli" {
			checkBinary("whisper-cli", cfg.Transcription.BinaryPath, "transcription.binary_path")
		}
	}

	logger.Infof("Initializing resource manager...")
	manager.MustInitResources()
	defer manager.CloseResources()

	container, err := bootstrap.Build(cfg)
	if err != nil {
		logger.Fatal(fmt.Sprintf("Failed to assemble dependencies error=%v", err))
	}
	deps := container.Deps

	logger.Infof("Initializing components...")
	manager.MustInitComponents(deps)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := task.StartAll(ctx); err != nil {
		logger.Fatal(fmt.Sprintf("Failed to start background tasks error=%v", err))
	}

	var (
		server     *http.Server
		grpcServer *grpc.Server
		grpcAddr   string
		httpAddr   string
	)
	if role.servesAPI() {
		grpcServer, grpcAddr = startGRPC(cfg, deps)
		server, httpAddr = startHTTP(cfg, deps)
	}

	var reg *registry.ServiceRegistry
	if cfg.ServiceRegistry.Enabled {
		reg, err = registry.NewServiceRegistry(cfg.ServiceRegistry)
		if err != nil {
			logger.Errorf("Service registry unavailable error=%v", err)
		} else if err := reg.Register(registry.NodeInfo{
			ServiceID: cfg.ServiceRegistry.ServiceID,
			HTTPAddr:  httpAddr,
			GRPCAddr:  grpcAddr,
			WorkerID:  cfg.Worker.WorkerID,
			PoolSize:  workerPoolSize(cfg),
			StartedAt: time.Now().Unix(),
		}); err != nil {
			logger.Errorf("Service registration failed error=%v", err)
			reg = nil
		}
	}

	// 等待中断信号
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Infof("Received shutdown signal, shutting down...")

	if reg != nil {
		if err := reg.Deregister(); err != nil {
			logger.Warnf("Service deregister failed error=%v", err)
		}
	}

	if grpcServer != nil {
		logger.Infof("Stopping gRPC server... address=%s", grpcAddr)
		grpcServer.GracefulStop()
	}
	if server != nil {
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
		if err := server.Shutdown(shutdownCtx); err != nil {
			logger.Errorf("HTTP server forced to close error=%v", err)
		}
		shutdownCancel()
	}

	// 运行中的任务在宽限期内完成，否则交还队列；队列必须在此之后关闭
	if err := task.StopAll(); err != nil {
		logger.Errorf("Stop background tasks failed error=%v", err)
	}
	manager.Shutdown()
	container.Close()

	logger.Infof("Lingo service exited safely")
	logService.Close()
}

func startGRPC(cfg *config.Config, deps *manager.Dependencies) (*grpc.Server, string) {
	if !cfg.GRPCServer.Enabled {
		return nil, ""
	}
	addr := fmt.Sprintf("%s:%d", cfg.GRPCServer.Host, cfg.GRPCServer.Port)
	lis, err := net.Listen("tcp", addr)
	if err != nil {
		logger.Fatal(fmt.Sprintf("Failed to listen on gRPC port address=%s error=%v", addr, err))
	}
	srv := grpc.NewServer()
	taskGrpc.RegisterTaskServiceServer(srv, taskGrpc.NewTaskGrpcServer(deps.TaskApp))

	go func() {
		logger.Infof("gRPC server started address=%s service=%s", addr, taskGrpc.ServiceName)
		if err := srv.Serve(lis); err != nil && !errors.Is(err, grpc.ErrServerStopped) {
			logger.Errorf("gRPC server encountered an error error=%v", err)
		}
	}()
	return srv, addr
}

func startHTTP(cfg *config.Config, deps *manager.Dependencies) (*http.Server, string) {
	if cfg.Server.Mode != "" {
		gin.SetMode(cfg.Server.Mode)
	}
	router := gin.New()
	httpadapter.SetupMiddleware(router)
	manager.RegisterAllRoutes(router, deps)

	port := getEnv("PORT", fmt.Sprintf("%d", cfg.Server.Port))
	addr := cfg.Server.Host + ":" + port
	server := &http.Server{
		Addr:         addr,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}
	go func() {
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal(fmt.Sprintf("Failed to start HTTP server error=%v", err))
		}
	}()
	logger.Infof("HTTP server started addr=%s health_url=%s api_url=%s", addr,
		fmt.Sprintf("http://localhost:%s/health", port), fmt.Sprintf("http://localhost:%s/api/v1", port))
	return server, addr
}

func workerPoolSize(cfg *config.Config) int {
	if !cfg.Worker.Enabled {
		return 0
	}
	return cfg.Worker.PoolSize
}

func checkBinary(name, configured, key string) {
	bin := strings.TrimSpace(configured)
	if bin == "" {
		bin = name
	}
	if _, err := exec.LookPath(bin); err != nil {
		logger.Fatal(fmt.Sprintf("%s binary not found, please install or set %s binary=%s error=%s", name, key, bin, err.Error()))
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// resolveConfigPath 根据环境选择配置文件，支持CONFIG_PATH覆盖、CONFIG_ENV区分环境
func resolveConfigPath() string {
	if path := os.Getenv("CONFIG_PATH"); path != "" {
		return path
	}

	env := strings.ToLower(strings.TrimSpace(os.Getenv("CONFIG_ENV")))
	if env == "" {
		env = "dev"
	}

	switch env {
	case "prod", "production":
		return "configs/config_prod.yaml"
	case "dev", "development":
		return "configs/config.dev.yaml"
	default:
		return fmt.Sprintf("configs/config.%s.yaml", env)
	}
}
