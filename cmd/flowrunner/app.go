package main

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/zap"

	"github.com/BaSui01/flowrunner/config"
	"github.com/BaSui01/flowrunner/internal/cache"
	"github.com/BaSui01/flowrunner/internal/database"
	"github.com/BaSui01/flowrunner/internal/metrics"
	"github.com/BaSui01/flowrunner/internal/pool"
	"github.com/BaSui01/flowrunner/internal/store"
	"github.com/BaSui01/flowrunner/internal/telemetry"
	"github.com/BaSui01/flowrunner/llm"
	"github.com/BaSui01/flowrunner/llm/providers/gemini"
	"github.com/BaSui01/flowrunner/planner"
	"github.com/BaSui01/flowrunner/workflow"
	"github.com/BaSui01/flowrunner/workflow/action"
)

// =============================================================================
// 🧩 组件装配
// =============================================================================

// app 持有由配置构建出的全部运行时组件。
// 可选组件（cache、db、provider、history）未启用时为 nil。
type app struct {
	cfg    *config.Config
	logger *zap.Logger

	registry *prometheus.Registry
	metrics  *metrics.Collector

	cache    *cache.Manager
	db       *database.PoolManager
	provider llm.Provider

	planner  *planner.Planner
	actions  *action.Set
	executor *workflow.Executor
	history  workflow.HistoryStore
	pool     *pool.WorkerPool
}

// newApp 按配置装配组件。启用了但无法连接的 Redis 或数据库直接返回错误。
func newApp(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*app, error) {
	a := &app{cfg: cfg, logger: logger}

	a.registry = prometheus.NewRegistry()
	a.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	a.metrics = metrics.NewCollectorWithRegistry("flowrunner", a.registry, logger)

	if cfg.Redis.Enabled {
		mgr, err := cache.NewManager(cache.Config{
			Addr:                cfg.Redis.Addr,
			Password:            cfg.Redis.Password,
			DB:                  cfg.Redis.DB,
			KeyPrefix:           cfg.Redis.KeyPrefix,
			DefaultTTL:          cfg.Planner.CacheTTL,
			MaxRetries:          3,
			PoolSize:            cfg.Redis.PoolSize,
			MinIdleConns:        cfg.Redis.MinIdleConns,
			HealthCheckInterval: 30 * time.Second,
			TLS:                 cfg.Redis.TLS,
		}, logger)
		if err != nil {
			return nil, fmt.Errorf("connect redis: %w", err)
		}
		mgr.SetRecorder(a.metrics)
		a.cache = mgr
	}

	if cfg.Database.Enabled {
		pm, err := database.Open(cfg.Database.Driver, cfg.Database.DSN(), database.PoolConfig{
			MaxIdleConns:    cfg.Database.MaxIdleConns,
			MaxOpenConns:    cfg.Database.MaxOpenConns,
			ConnMaxLifetime: cfg.Database.ConnMaxLifetime,
			ConnMaxIdleTime: 10 * time.Minute,
		}, logger)
		if err != nil {
			a.closeOnError(ctx)
			return nil, fmt.Errorf("open database: %w", err)
		}
		a.db = pm
	}

	a.provider = a.buildProvider()

	plannerOpts := []planner.Option{planner.WithRecorder(a.metrics)}
	if a.cache != nil {
		plannerOpts = append(plannerOpts, planner.WithCache(a.cache))
	}
	a.planner = planner.New(a.provider, planner.Config{
		Model:       cfg.Planner.Model,
		Temperature: float32(cfg.Planner.Temperature),
		MaxTokens:   cfg.Planner.MaxTokens,
		Timeout:     cfg.Planner.Timeout,
		Validate:    cfg.Planner.Validate,
		CacheTTL:    cfg.Planner.CacheTTL,
	}, logger, plannerOpts...)

	a.actions = action.NewSet(action.Config{
		Scraper: action.ScraperConfig{
			Mode:         cfg.Actions.Scraper.Mode,
			MaxFragments: cfg.Actions.Scraper.MaxFragments,
		},
		AI: action.AIConfig{
			Model:         cfg.Actions.AI.Model,
			MaxInputRunes: cfg.Actions.AI.MaxInputRunes,
		},
		Email: action.EmailConfig{DefaultRecipient: cfg.Actions.Email.DefaultRecipient},
		APICaller: action.APICallerConfig{
			AllowLocal:     cfg.Actions.APICaller.AllowLocal,
			DefaultHeaders: cfg.Actions.APICaller.DefaultHeaders,
		},
		OutboundRPS:   cfg.Actions.OutboundRPS,
		OutboundBurst: cfg.Actions.OutboundBurst,
		HTTPTimeout:   cfg.Actions.HTTPTimeout,
		UserAgent:     cfg.Actions.UserAgent,
	}, action.Deps{
		Provider: a.provider,
		Mailer:   a.buildMailer(),
	}, logger)

	a.executor = workflow.NewExecutor(
		telemetry.TraceDispatcher(a.actions),
		workflow.WithLogger(logger),
		workflow.WithValidation(cfg.Executor.Validate),
		workflow.WithRecorder(a.metrics),
	)

	history, err := a.buildHistory(ctx)
	if err != nil {
		a.closeOnError(ctx)
		return nil, err
	}
	a.history = history

	a.pool = pool.New(pool.Config{
		Workers:   cfg.Executor.AsyncWorkers,
		QueueSize: cfg.Executor.AsyncQueue,
	}, logger)

	return a, nil
}

// buildProvider 未配置 API Key 时返回 nil，ai_processor 与 planner 走各自的降级路径
func (a *app) buildProvider() llm.Provider {
	cfg := a.cfg.LLM
	if cfg.Provider == "none" || cfg.APIKey == "" {
		a.logger.Info("llm provider disabled, ai_processor will use its fallback")
		return nil
	}

	p := gemini.NewGeminiProvider(gemini.Config{
		APIKey:  cfg.APIKey,
		BaseURL: cfg.BaseURL,
		Model:   cfg.Model,
		Timeout: cfg.Timeout,
	}, a.logger)

	return llm.Instrument(p,
		llm.RecoveryMiddleware(a.logger),
		llm.LoggingMiddleware(a.logger, p.Name()),
		llm.MetricsMiddleware(a.metrics, p.Name()),
		llm.TimeoutMiddleware(cfg.Timeout),
	)
}

func (a *app) buildMailer() action.Mailer {
	if a.cfg.Actions.Email.Backend == action.MailerBackendRedis && a.cache != nil {
		key := a.cfg.Actions.Email.OutboxKey
		if key == "" {
			key = action.DefaultOutboxKey
		}
		return action.NewRedisMailer(a.cache.Client(), key, a.logger)
	}
	return action.NewLogMailer(a.logger)
}

func (a *app) buildHistory(ctx context.Context) (workflow.HistoryStore, error) {
	switch a.cfg.Executor.History {
	case "none":
		return nil, nil
	case "database":
		if a.db == nil {
			return nil, errors.New("executor.history=database requires database.enabled")
		}
		s := store.NewGormHistoryStore(a.db, a.logger)
		if a.cfg.Database.AutoMigrate || a.cfg.Database.Driver == database.DriverSQLite {
			if err := s.AutoMigrate(ctx); err != nil {
				return nil, fmt.Errorf("migrate run history: %w", err)
			}
		}
		return s, nil
	default:
		return workflow.NewMemoryHistoryStore(), nil
	}
}

// Close 依次关闭工作池、缓存与数据库
func (a *app) Close(ctx context.Context) error {
	var errs []error
	if a.pool != nil {
		if err := a.pool.Close(ctx); err != nil {
			errs = append(errs, fmt.Errorf("close worker pool: %w", err))
		}
	}
	if a.cache != nil {
		if err := a.cache.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close redis: %w", err))
		}
	}
	if a.db != nil {
		if err := a.db.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close database: %w", err))
		}
	}
	return errors.Join(errs...)
}

func (a *app) closeOnError(ctx context.Context) {
	if err := a.Close(ctx); err != nil {
		a.logger.Warn("cleanup after startup failure", zap.Error(err))
	}
}
