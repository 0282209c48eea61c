package main

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/BaSui01/flowrunner/api/handlers"
	"github.com/BaSui01/flowrunner/internal/server"
)

// dbStatsInterval 连接池指标的采样周期
const dbStatsInterval = 15 * time.Second

// skipAuthPaths 免认证的探针与版本接口
var skipAuthPaths = []string{"/health", "/healthz", "/ready", "/version"}

// =============================================================================
// 🖥️ Server
// =============================================================================

// Server 是 FlowRunner 的 HTTP 服务，包含 API 与独立的 metrics 端口
type Server struct {
	app    *app
	logger *zap.Logger

	httpManager    *server.Manager
	metricsManager *server.Manager

	healthHandler   *handlers.HealthHandler
	workflowHandler *handlers.WorkflowHandler
	runsHandler     *handlers.RunsHandler

	// 限流清理与指标采样协程的生命周期
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewServer 基于已装配的组件创建服务器
func NewServer(a *app) *Server {
	s := &Server{app: a, logger: a.logger}
	s.initHandlers()
	return s
}

func (s *Server) initHandlers() {
	cfg := s.app.cfg

	s.healthHandler = handlers.NewHealthHandler(s.logger)
	if s.app.cache != nil {
		s.healthHandler.RegisterCheck(handlers.NewPingCheck("redis", s.app.cache.Ping))
	}
	if s.app.db != nil {
		s.healthHandler.RegisterCheck(handlers.NewPingCheck("database", s.app.db.Ping))
	}
	if s.app.provider != nil {
		s.healthHandler.RegisterCheck(handlers.NewPingCheck("llm", s.app.planner.HealthCheck))
	}

	opts := []handlers.WorkflowOption{
		handlers.WithPlanner(s.app.planner),
		handlers.WithObserver(s.app.metrics),
		handlers.WithAsync(s.app.pool),
	}
	if s.app.history != nil {
		opts = append(opts, handlers.WithHistory(s.app.history))
		s.runsHandler = handlers.NewRunsHandler(s.app.history, s.logger)
	}
	s.workflowHandler = handlers.NewWorkflowHandler(s.app.executor, handlers.WorkflowConfig{
		MaxBodyBytes: cfg.Server.MaxBodyBytes,
		RunTimeout:   cfg.Executor.RunTimeout,
		StreamBuffer: cfg.Executor.StreamBuffer,
	}, s.logger, opts...)
}

// routes 注册全部路由（Go 1.22 方法与路径参数模式）
func (s *Server) routes() *http.ServeMux {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /health", s.healthHandler.HandleHealth)
	mux.HandleFunc("GET /healthz", s.healthHandler.HandleHealthz)
	mux.HandleFunc("GET /ready", s.healthHandler.HandleReady)
	mux.HandleFunc("GET /version", s.healthHandler.HandleVersion(Version, BuildTime, GitCommit))

	mux.HandleFunc("GET /api/v1/actions", handlers.HandleListActions)
	mux.HandleFunc("POST /api/v1/workflows/plan", s.workflowHandler.HandlePlan)
	mux.HandleFunc("POST /api/v1/workflows/validate", s.workflowHandler.HandleValidate)
	mux.HandleFunc("POST /api/v1/workflows/run", s.workflowHandler.HandleRun)
	mux.HandleFunc("GET /api/v1/workflows/run/ws", s.workflowHandler.HandleRunWS)

	if s.runsHandler != nil {
		mux.HandleFunc("GET /api/v1/runs", s.runsHandler.HandleList)
		mux.HandleFunc("GET /api/v1/runs/{id}", s.runsHandler.HandleGet)
	}
	return mux
}

// Handler 返回带完整中间件链的 API 处理器
func (s *Server) Handler(ctx context.Context) http.Handler {
	cfg := s.app.cfg.Server

	middlewares := []Middleware{
		Recovery(s.logger),
		RequestID(),
		SecurityHeaders(),
		RequestLogger(s.logger),
		MetricsMiddleware(s.app.metrics),
		OTelTracing(),
		CORS(cfg.CORSAllowedOrigins),
	}

	// 认证在限流之前，使限流可以按 subject 计数
	switch {
	case cfg.JWT.Secret != "":
		middlewares = append(middlewares, JWTAuth(cfg.JWT, skipAuthPaths, s.logger))
		s.logger.Info("JWT authentication enabled")
	case len(cfg.APIKeys) > 0:
		middlewares = append(middlewares, APIKeyAuth(cfg.APIKeys, skipAuthPaths, true))
		s.logger.Info("API key authentication enabled", zap.Int("keys", len(cfg.APIKeys)))
	default:
		s.logger.Warn("no authentication configured, API is open")
	}

	if cfg.RateLimitRPS > 0 {
		middlewares = append(middlewares, RateLimiter(ctx, cfg.RateLimitRPS, cfg.RateLimitBurst))
	}

	return Chain(s.routes(), middlewares...)
}

// =============================================================================
// 🚀 启动与关闭
// =============================================================================

// Start 启动 API 与 metrics 服务器
func (s *Server) Start() error {
	ctx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel
	cfg := s.app.cfg.Server

	s.httpManager = server.NewManager("api", s.Handler(ctx), server.Config{
		Addr:            fmt.Sprintf(":%d", cfg.HTTPPort),
		ReadTimeout:     cfg.ReadTimeout,
		WriteTimeout:    cfg.WriteTimeout,
		IdleTimeout:     2 * time.Minute,
		MaxHeaderBytes:  1 << 20,
		ShutdownTimeout: cfg.ShutdownTimeout,
		TLSCertFile:     cfg.TLSCertFile,
		TLSKeyFile:      cfg.TLSKeyFile,
	}, s.logger)
	if err := s.httpManager.Start(); err != nil {
		cancel()
		return fmt.Errorf("start api server: %w", err)
	}

	if cfg.MetricsPort > 0 {
		metricsMux := http.NewServeMux()
		metricsMux.Handle("GET /metrics", promhttp.HandlerFor(s.app.registry, promhttp.HandlerOpts{Registry: s.app.registry}))
		s.metricsManager = server.NewManager("metrics", metricsMux, server.Config{
			Addr:            fmt.Sprintf(":%d", cfg.MetricsPort),
			ReadTimeout:     10 * time.Second,
			WriteTimeout:    10 * time.Second,
			ShutdownTimeout: cfg.ShutdownTimeout,
		}, s.logger)
		if err := s.metricsManager.Start(); err != nil {
			cancel()
			_ = s.httpManager.Shutdown(context.Background())
			return fmt.Errorf("start metrics server: %w", err)
		}
	}

	if s.app.db != nil {
		s.wg.Add(1)
		go s.recordDBStats(ctx)
	}

	s.logger.Info("All servers started",
		zap.String("api_addr", s.httpManager.Addr()),
		zap.Int("metrics_port", cfg.MetricsPort),
		zap.Bool("tls", cfg.TLSCertFile != ""),
	)
	return nil
}

// Errors 返回任一服务器的运行期错误
func (s *Server) Errors() <-chan error {
	out := make(chan error, 2)
	forward := func(m *server.Manager) {
		if m == nil {
			return
		}
		go func() {
			if err, ok := <-m.Errors(); ok && err != nil {
				out <- err
			}
		}()
	}
	forward(s.httpManager)
	forward(s.metricsManager)
	return out
}

func (s *Server) recordDBStats(ctx context.Context) {
	defer s.wg.Done()
	ticker := time.NewTicker(dbStatsInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			stats := s.app.db.Stats()
			s.app.metrics.RecordDBConnections(s.app.db.Driver(), stats.Open, stats.Idle)
		}
	}
}

// Shutdown 先停止接收请求，再关闭组件与 telemetry 之外的后台协程
func (s *Server) Shutdown(ctx context.Context) {
	s.logger.Info("Starting graceful shutdown...")

	if s.httpManager != nil {
		if err := s.httpManager.Shutdown(ctx); err != nil {
			s.logger.Error("API server shutdown error", zap.Error(err))
		}
	}
	if s.metricsManager != nil {
		if err := s.metricsManager.Shutdown(ctx); err != nil {
			s.logger.Error("Metrics server shutdown error", zap.Error(err))
		}
	}

	if s.cancel != nil {
		s.cancel()
	}
	s.wg.Wait()

	if err := s.app.Close(ctx); err != nil {
		s.logger.Error("Component shutdown error", zap.Error(err))
	}
	s.logger.Info("Graceful shutdown completed")
}
