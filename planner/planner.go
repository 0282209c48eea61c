package planner

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"strings"
	"time"

	"github.com/BaSui01/flowrunner/internal/cache"
	"github.com/BaSui01/flowrunner/llm"
	"github.com/BaSui01/flowrunner/types"
	"github.com/BaSui01/flowrunner/workflow"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

// DefaultModel is used when Config.Model is empty.
const DefaultModel = "gemini-3-flash-preview"

const cacheKeyPrefix = "plan:"

// Config controls how plans are requested and checked.
type Config struct {
	Model       string        `yaml:"model" json:"model" env:"MODEL"`
	Temperature float32       `yaml:"temperature" json:"temperature" env:"TEMPERATURE"`
	MaxTokens   int           `yaml:"max_tokens" json:"max_tokens" env:"MAX_TOKENS"`
	Timeout     time.Duration `yaml:"timeout" json:"timeout" env:"TIMEOUT"`
	// Validate 为 true 时，规划结果还要通过 workflow.Validate
	Validate bool `yaml:"validate" json:"validate" env:"VALIDATE"`
	// CacheTTL 为 0 时不缓存
	CacheTTL time.Duration `yaml:"cache_ttl" json:"cache_ttl" env:"CACHE_TTL"`
}

// DefaultConfig returns the planner defaults.
func DefaultConfig() Config {
	return Config{
		Model:    DefaultModel,
		Timeout:  60 * time.Second,
		Validate: true,
		CacheTTL: time.Hour,
	}
}

// Cache stores serialized plans. *cache.Manager satisfies it.
type Cache interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key string, value string, ttl time.Duration) error
}

// Recorder receives plan outcomes; status is "success", "cached" or "error".
type Recorder interface {
	RecordPlan(status string, d time.Duration)
}

// Planner turns natural-language requests into workflow graphs.
type Planner struct {
	provider llm.Provider
	cfg      Config
	cache    Cache
	recorder Recorder
	logger   *zap.Logger
	group    singleflight.Group
}

// Option configures a Planner.
type Option func(*Planner)

// WithCache enables plan caching.
func WithCache(c Cache) Option {
	return func(p *Planner) { p.cache = c }
}

// WithRecorder attaches a metrics recorder.
func WithRecorder(r Recorder) Option {
	return func(p *Planner) { p.recorder = r }
}

// New creates a planner. provider may be nil, in which case Generate reports
// PLANNER_UNAVAILABLE.
func New(provider llm.Provider, cfg Config, logger *zap.Logger, opts ...Option) *Planner {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.Model == "" {
		cfg.Model = DefaultModel
	}
	p := &Planner{
		provider: provider,
		cfg:      cfg,
		logger:   logger.With(zap.String("component", "planner")),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// CacheKey returns the cache key for a prompt.
func CacheKey(prompt string) string {
	sum := sha256.Sum256([]byte(normalizePrompt(prompt)))
	return cacheKeyPrefix + hex.EncodeToString(sum[:])
}

func normalizePrompt(prompt string) string {
	return strings.Join(strings.Fields(prompt), " ")
}

// Generate asks the model for a plan. Identical prompts that are in flight at
// the same time share one model call; every caller gets its own copy.
func (p *Planner) Generate(ctx context.Context, prompt string) (*workflow.Graph, error) {
	prompt = normalizePrompt(prompt)
	if prompt == "" {
		return nil, types.NewError(types.ErrInvalidRequest, "prompt is required").WithHTTPStatus(400)
	}
	if p.provider == nil {
		return nil, types.NewError(types.ErrPlannerUnavailable, "no LLM provider configured").WithHTTPStatus(503)
	}

	start := time.Now()
	key := CacheKey(prompt)

	if g := p.fromCache(ctx, key); g != nil {
		p.record("cached", start)
		return g, nil
	}

	// 共享调用脱离发起者的取消信号，每个调用方只等待自己的 ctx
	ch := p.group.DoChan(key, func() (any, error) {
		shared, cancel := p.sharedContext(ctx)
		defer cancel()
		return p.plan(shared, prompt, key)
	})

	select {
	case <-ctx.Done():
		p.record("error", start)
		return nil, providerError(ctx.Err())
	case res := <-ch:
		if res.Err != nil {
			p.record("error", start)
			return nil, res.Err
		}
		if res.Shared {
			p.logger.Debug("plan shared with concurrent request", zap.String("key", key))
		}
		p.record("success", start)
		return res.Val.(*workflow.Graph).Clone(), nil
	}
}

// sharedContext 保留 ctx 中的值（request id 等），去掉取消，超时由 cfg.Timeout 限定
func (p *Planner) sharedContext(ctx context.Context) (context.Context, context.CancelFunc) {
	detached := context.WithoutCancel(ctx)
	if p.cfg.Timeout > 0 {
		return context.WithTimeout(detached, p.cfg.Timeout)
	}
	return context.WithCancel(detached)
}

func (p *Planner) plan(ctx context.Context, prompt, key string) (*workflow.Graph, error) {
	req := &llm.ChatRequest{
		Model: p.cfg.Model,
		Messages: []llm.Message{
			{Role: llm.RoleSystem, Content: SystemPrompt()},
			{Role: llm.RoleUser, Content: UserPrompt(prompt)},
		},
		MaxTokens:        p.cfg.MaxTokens,
		Temperature:      p.cfg.Temperature,
		ResponseMIMEType: "application/json",
		Timeout:          p.cfg.Timeout,
	}
	if traceID, ok := types.RequestID(ctx); ok {
		req.TraceID = traceID
	}

	resp, err := p.provider.Completion(ctx, req)
	if err != nil {
		p.logger.Warn("workflow generation failed", zap.Error(err))
		return nil, providerError(err)
	}

	g, err := ParsePlan(resp.Text())
	if err != nil {
		p.logger.Warn("model returned an unusable plan", zap.Error(err))
		return nil, err
	}

	if p.cfg.Validate {
		if err := workflow.Validate(g); err != nil {
			return nil, invalidPlan("generated workflow failed validation", err)
		}
	}

	p.toCache(ctx, key, g)

	p.logger.Info("workflow planned",
		zap.String("workflow", g.WorkflowName),
		zap.Int("nodes", len(g.Nodes)))
	return g, nil
}

func providerError(err error) error {
	e := types.NewError(types.ErrPlannerUnavailable, "workflow planning failed").WithCause(err).WithHTTPStatus(502)
	var llmErr *llm.Error
	if errors.As(err, &llmErr) {
		e = e.WithRetryable(llmErr.Retryable)
		if llmErr.Code == llm.ErrProviderUnavailable {
			e = e.WithHTTPStatus(503)
		}
	}
	if errors.Is(err, context.DeadlineExceeded) {
		e = e.WithHTTPStatus(504).WithRetryable(true)
	}
	return e
}

// 缓存错误只记录日志，不影响规划
func (p *Planner) fromCache(ctx context.Context, key string) *workflow.Graph {
	if p.cache == nil || p.cfg.CacheTTL <= 0 {
		return nil
	}
	raw, err := p.cache.Get(ctx, key)
	if err != nil {
		if !cache.IsCacheMiss(err) {
			p.logger.Warn("plan cache read failed", zap.Error(err))
		}
		return nil
	}
	g, err := workflow.ParseGraphJSON([]byte(raw))
	if err != nil {
		p.logger.Warn("cached plan is corrupt, ignoring", zap.String("key", key), zap.Error(err))
		return nil
	}
	return g
}

func (p *Planner) toCache(ctx context.Context, key string, g *workflow.Graph) {
	if p.cache == nil || p.cfg.CacheTTL <= 0 {
		return
	}
	data, err := g.ToJSON()
	if err != nil {
		p.logger.Warn("plan encode for cache failed", zap.Error(err))
		return
	}
	if err := p.cache.Set(ctx, key, string(data), p.cfg.CacheTTL); err != nil {
		p.logger.Warn("plan cache write failed", zap.Error(err))
	}
}

func (p *Planner) record(status string, start time.Time) {
	if p.recorder != nil {
		p.recorder.RecordPlan(status, time.Since(start))
	}
}

// HealthCheck reports whether the underlying provider is reachable.
func (p *Planner) HealthCheck(ctx context.Context) error {
	if p.provider == nil {
		return types.NewError(types.ErrPlannerUnavailable, "no LLM provider configured")
	}
	status, err := p.provider.HealthCheck(ctx)
	if err != nil {
		return err
	}
	if status != nil && !status.Healthy {
		return types.NewError(types.ErrPlannerUnavailable, "LLM provider unhealthy")
	}
	return nil
}
