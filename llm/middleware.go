package llm

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
)

// Handler processes a request and returns a response.
type Handler func(ctx context.Context, req *ChatRequest) (*ChatResponse, error)

// Middleware wraps a handler with additional functionality.
type Middleware func(next Handler) Handler

// Chain applies middlewares so that the first one is the outermost.
func Chain(h Handler, middlewares ...Middleware) Handler {
	for i := len(middlewares) - 1; i >= 0; i-- {
		h = middlewares[i](h)
	}
	return h
}

// Recorder receives one observation per completion call.
type Recorder interface {
	RecordLLMRequest(provider, model, status string, duration time.Duration, promptTokens, completionTokens int)
}

// LoggingMiddleware logs each call at debug level and failures at warn.
func LoggingMiddleware(logger *zap.Logger, provider string) Middleware {
	if logger == nil {
		logger = zap.NewNop()
	}
	return func(next Handler) Handler {
		return func(ctx context.Context, req *ChatRequest) (*ChatResponse, error) {
			start := time.Now()
			resp, err := next(ctx, req)

			fields := []zap.Field{
				zap.String("provider", provider),
				zap.String("model", req.Model),
				zap.Int("messages", len(req.Messages)),
				zap.Duration("duration", time.Since(start)),
			}
			if req.TraceID != "" {
				fields = append(fields, zap.String("trace_id", req.TraceID))
			}
			if err != nil {
				logger.Warn("llm completion failed", append(fields, zap.Error(err))...)
				return resp, err
			}
			logger.Debug("llm completion", append(fields, zap.Int("total_tokens", resp.Usage.TotalTokens))...)
			return resp, nil
		}
	}
}

// TimeoutMiddleware bounds each call; a per-request Timeout overrides d.
func TimeoutMiddleware(d time.Duration) Middleware {
	return func(next Handler) Handler {
		return func(ctx context.Context, req *ChatRequest) (*ChatResponse, error) {
			timeout := d
			if req.Timeout > 0 {
				timeout = req.Timeout
			}
			if timeout <= 0 {
				return next(ctx, req)
			}
			ctx, cancel := context.WithTimeout(ctx, timeout)
			defer cancel()
			return next(ctx, req)
		}
	}
}

// PanicError represents a recovered panic inside a provider.
type PanicError struct {
	Value any
}

func (e *PanicError) Error() string {
	return fmt.Sprintf("llm provider panic: %v", e.Value)
}

// RecoveryMiddleware converts provider panics into *PanicError.
func RecoveryMiddleware(logger *zap.Logger) Middleware {
	if logger == nil {
		logger = zap.NewNop()
	}
	return func(next Handler) Handler {
		return func(ctx context.Context, req *ChatRequest) (resp *ChatResponse, err error) {
			defer func() {
				if r := recover(); r != nil {
					logger.Error("llm provider panic", zap.Any("panic", r), zap.Stack("stack"))
					resp, err = nil, &PanicError{Value: r}
				}
			}()
			return next(ctx, req)
		}
	}
}

// MetricsMiddleware reports status, latency and token usage to rec.
func MetricsMiddleware(rec Recorder, provider string) Middleware {
	return func(next Handler) Handler {
		return func(ctx context.Context, req *ChatRequest) (*ChatResponse, error) {
			start := time.Now()
			resp, err := next(ctx, req)

			var prompt, completion int
			if resp != nil {
				prompt, completion = resp.Usage.PromptTokens, resp.Usage.CompletionTokens
			}
			rec.RecordLLMRequest(provider, req.Model, callStatus(err), time.Since(start), prompt, completion)
			return resp, err
		}
	}
}

func callStatus(err error) string {
	if err == nil {
		return "success"
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return "timeout"
	}
	var le *Error
	if errors.As(err, &le) && le.Code == ErrRateLimited {
		return "rate_limited"
	}
	return "error"
}

// instrumentedProvider routes Completion through a middleware chain.
type instrumentedProvider struct {
	Provider
	handler Handler
}

// Instrument wraps p so that every Completion passes through middlewares.
func Instrument(p Provider, middlewares ...Middleware) Provider {
	if p == nil || len(middlewares) == 0 {
		return p
	}
	return &instrumentedProvider{Provider: p, handler: Chain(p.Completion, middlewares...)}
}

func (p *instrumentedProvider) Completion(ctx context.Context, req *ChatRequest) (*ChatResponse, error) {
	return p.handler(ctx, req)
}
