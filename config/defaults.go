// =============================================================================
// 📦 FlowRunner 默认配置
// =============================================================================
// 提供所有配置项的合理默认值
// =============================================================================
package config

import "time"

// DefaultConfig 返回默认配置
func DefaultConfig() *Config {
	return &Config{
		Server:    DefaultServerConfig(),
		LLM:       DefaultLLMConfig(),
		Planner:   DefaultPlannerConfig(),
		Executor:  DefaultExecutorConfig(),
		Actions:   DefaultActionsConfig(),
		Redis:     DefaultRedisConfig(),
		Database:  DefaultDatabaseConfig(),
		Log:       DefaultLogConfig(),
		Telemetry: DefaultTelemetryConfig(),
	}
}

// DefaultServerConfig 返回默认服务器配置
func DefaultServerConfig() ServerConfig {
	return ServerConfig{
		HTTPPort:        8080,
		MetricsPort:     9091,
		ReadTimeout:     30 * time.Second,
		WriteTimeout:    5 * time.Minute,
		ShutdownTimeout: 15 * time.Second,
		MaxBodyBytes:    1 << 20,
		RateLimitRPS:    20,
		RateLimitBurst:  40,
	}
}

// DefaultLLMConfig 返回默认 LLM 配置
func DefaultLLMConfig() LLMConfig {
	return LLMConfig{
		Provider: "gemini",
		BaseURL:  "https://generativelanguage.googleapis.com",
		Model:    "gemini-3-flash-preview",
		Timeout:  60 * time.Second,
	}
}

// DefaultPlannerConfig 返回默认规划器配置
func DefaultPlannerConfig() PlannerConfig {
	return PlannerConfig{
		Model:    "gemini-3-flash-preview",
		Timeout:  60 * time.Second,
		Validate: true,
	}
}

// DefaultExecutorConfig 返回默认执行器配置
func DefaultExecutorConfig() ExecutorConfig {
	return ExecutorConfig{
		Validate:     false,
		RunTimeout:   5 * time.Minute,
		StreamBuffer: 16,
		History:      "memory",
		AsyncWorkers: 4,
		AsyncQueue:   64,
	}
}

// DefaultActionsConfig 返回默认动作配置
func DefaultActionsConfig() ActionsConfig {
	return ActionsConfig{
		OutboundRPS:   5,
		OutboundBurst: 10,
		HTTPTimeout:   15 * time.Second,
		UserAgent:     "flowrunner/1.0",
		Scraper: ScraperConfig{
			Mode:         "simulated",
			MaxFragments: 50,
		},
		AI: AIConfig{
			Model:         "gemini-3-flash-preview",
			MaxInputRunes: 10000,
		},
		Email: EmailConfig{
			Backend:          "log",
			DefaultRecipient: "me@example.com",
			OutboxKey:        "flowrunner:outbox",
		},
	}
}

// DefaultRedisConfig 返回默认 Redis 配置
func DefaultRedisConfig() RedisConfig {
	return RedisConfig{
		Enabled:      false,
		Addr:         "localhost:6379",
		KeyPrefix:    "flowrunner:",
		PoolSize:     10,
		MinIdleConns: 2,
	}
}

// DefaultDatabaseConfig 返回默认数据库配置
func DefaultDatabaseConfig() DatabaseConfig {
	return DatabaseConfig{
		Enabled:         false,
		Driver:          "postgres",
		Host:            "localhost",
		Port:            5432,
		User:            "flowrunner",
		Name:            "flowrunner",
		SSLMode:         "disable",
		MaxOpenConns:    25,
		MaxIdleConns:    5,
		ConnMaxLifetime: 5 * time.Minute,
	}
}

// DefaultLogConfig 返回默认日志配置
func DefaultLogConfig() LogConfig {
	return LogConfig{
		Level:            "info",
		Format:           "json",
		OutputPaths:      []string{"stdout"},
		EnableCaller:     true,
		EnableStacktrace: false,
	}
}

// DefaultTelemetryConfig 返回默认遥测配置
func DefaultTelemetryConfig() TelemetryConfig {
	return TelemetryConfig{
		Enabled:       false,
		OTLPEndpoint:  "localhost:4317",
		ServiceName:   "flowrunner",
		SampleRate:    0.1,
		Insecure:      true,
		ExportMetrics: true,
	}
}
