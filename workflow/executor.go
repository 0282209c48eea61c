package workflow

import (
	"context"
	"fmt"
	"time"

	"github.com/BaSui01/flowrunner/types"
	"github.com/BaSui01/flowrunner/workflow/action"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

// ErrUnknownAction is returned for a node whose action has no handler.
var ErrUnknownAction = action.ErrUnknownAction

// Dispatcher runs the handler registered for an action.
type Dispatcher interface {
	Dispatch(ctx context.Context, actionName string, params map[string]any, input any) (any, error)
}

// DispatcherFunc adapts a function to Dispatcher.
type DispatcherFunc func(ctx context.Context, actionName string, params map[string]any, input any) (any, error)

func (f DispatcherFunc) Dispatch(ctx context.Context, actionName string, params map[string]any, input any) (any, error) {
	return f(ctx, actionName, params, input)
}

// Recorder receives run and node measurements (see internal/metrics).
type Recorder interface {
	RecordNode(actionName, status string, duration time.Duration)
	RecordRun(status string, duration time.Duration)
}

// RunStatus is the final state of a run.
type RunStatus string

const (
	RunStatusSuccess RunStatus = "success"
	RunStatusFailed  RunStatus = "failed"
	RunStatusInvalid RunStatus = "invalid"
)

// RunResult is the finished signal of a run. Run never returns an error;
// everything the caller needs is here.
type RunResult struct {
	RunID        string         `json:"run_id"`
	WorkflowName string         `json:"workflow_name"`
	Status       RunStatus      `json:"status"`
	Outputs      map[string]any `json:"outputs"`
	FailedNode   string         `json:"failed_node,omitempty"`
	Error        string         `json:"error,omitempty"`
	// Unreached 失败或校验不通过后从未开始的节点（按 execution_order）
	Unreached []string `json:"unreached,omitempty"`
	// Missing execution_order 中找不到对应节点、被静默跳过的位置
	Missing   []string      `json:"missing,omitempty"`
	StartedAt time.Time     `json:"started_at"`
	EndedAt   time.Time     `json:"ended_at"`
	Duration  time.Duration `json:"duration"`
	Err       error         `json:"-"`
}

// Executor runs workflow graphs sequentially in execution_order.
type Executor struct {
	dispatcher Dispatcher
	logger     *zap.Logger
	validate   bool
	recorder   Recorder
	tracer     trace.Tracer
	newID      func() string
	now        func() time.Time
}

// Option configures an Executor.
type Option func(*Executor)

// WithLogger sets the executor logger.
func WithLogger(logger *zap.Logger) Option {
	return func(e *Executor) {
		if logger != nil {
			e.logger = logger
		}
	}
}

// WithValidation makes Run validate the graph before executing anything.
func WithValidation(enabled bool) Option {
	return func(e *Executor) { e.validate = enabled }
}

// WithRecorder attaches a metrics recorder.
func WithRecorder(r Recorder) Option {
	return func(e *Executor) { e.recorder = r }
}

// WithTracer overrides the OpenTelemetry tracer.
func WithTracer(t trace.Tracer) Option {
	return func(e *Executor) {
		if t != nil {
			e.tracer = t
		}
	}
}

// WithIDGenerator overrides run id generation.
func WithIDGenerator(fn func() string) Option {
	return func(e *Executor) {
		if fn != nil {
			e.newID = fn
		}
	}
}

// WithClock overrides the time source used for log timestamps.
func WithClock(now func() time.Time) Option {
	return func(e *Executor) {
		if now != nil {
			e.now = now
		}
	}
}

// NewExecutor creates an executor dispatching to d.
func NewExecutor(d Dispatcher, opts ...Option) *Executor {
	e := &Executor{
		dispatcher: d,
		logger:     zap.NewNop(),
		tracer:     otel.Tracer("flowrunner/workflow"),
		newID:      uuid.NewString,
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}
	e.logger = e.logger.With(zap.String("component", "workflow_executor"))
	return e
}

// ValidationEnabled reports whether Run validates graphs first.
func (e *Executor) ValidationEnabled() bool { return e.validate }

// Run executes graph once, emitting logs to sink. A fresh ExecutionContext
// is used per call. The run stops at the first failing node.
func (e *Executor) Run(ctx context.Context, graph *Graph, sink LogSink) *RunResult {
	if sink == nil {
		sink = nopSink{}
	}

	runID, ok := types.RunID(ctx)
	if !ok {
		runID = e.newID()
		ctx = types.WithRunID(ctx, runID)
	}

	start := e.now()
	result := &RunResult{
		RunID:     runID,
		Status:    RunStatusSuccess,
		Outputs:   map[string]any{},
		StartedAt: start,
	}
	if graph != nil {
		result.WorkflowName = graph.WorkflowName
	}

	ctx, span := e.tracer.Start(ctx, "workflow.run", trace.WithAttributes(
		attribute.String("workflow.run_id", runID),
		attribute.String("workflow.name", result.WorkflowName),
	))
	defer span.End()

	logger := e.logger.With(zap.String("run_id", runID), zap.String("workflow", result.WorkflowName))

	if graph == nil || e.validate {
		if err := Validate(graph); err != nil {
			result.Status = RunStatusInvalid
			result.Err = err
			result.Error = err.Error()
			if graph != nil {
				result.Unreached = append([]string(nil), graph.ExecutionOrder...)
			}
			span.SetStatus(codes.Error, "invalid graph")
			logger.Warn("workflow graph rejected", zap.Error(err))
			return e.finish(result)
		}
	}

	logger.Info("workflow run started", zap.Int("nodes", len(graph.Nodes)))

	ec := NewExecutionContext()
	idx := graph.index()

	for pos, nodeID := range graph.ExecutionOrder {
		node, ok := idx[nodeID]
		if !ok {
			result.Missing = append(result.Missing, nodeID)
			logger.Debug("execution_order references missing node, skipping", zap.String("node_id", nodeID))
			continue
		}

		if err := e.runNode(ctx, node, ec, sink, logger); err != nil {
			result.Status = RunStatusFailed
			result.FailedNode = nodeID
			result.Err = err
			result.Error = err.Error()
			for _, rest := range graph.ExecutionOrder[pos+1:] {
				if _, exists := idx[rest]; exists {
					result.Unreached = append(result.Unreached, rest)
				} else {
					result.Missing = append(result.Missing, rest)
				}
			}
			span.SetStatus(codes.Error, err.Error())
			logger.Warn("workflow run halted", zap.String("node_id", nodeID), zap.Error(err))
			break
		}
	}

	result.Outputs = ec.Snapshot()
	if result.Status == RunStatusSuccess {
		logger.Info("workflow run finished", zap.Int("outputs", len(result.Outputs)))
	}
	return e.finish(result)
}

func (e *Executor) finish(result *RunResult) *RunResult {
	result.EndedAt = e.now()
	result.Duration = result.EndedAt.Sub(result.StartedAt)
	if e.recorder != nil {
		e.recorder.RecordRun(string(result.Status), result.Duration)
	}
	return result
}

// runNode 执行单个节点：running → 解析输入 → 分发 → success/error
func (e *Executor) runNode(ctx context.Context, node *Node, ec *ExecutionContext, sink LogSink, logger *zap.Logger) error {
	ctx, span := e.tracer.Start(ctx, "workflow.node", trace.WithAttributes(
		attribute.String("workflow.node_id", node.ID),
		attribute.String("workflow.action", node.Action),
	))
	defer span.End()

	started := e.now()
	sink.Emit(ExecutionLog{
		NodeID:    node.ID,
		Status:    LogStatusRunning,
		StartTime: epochMillis(started),
	})

	output, err := e.invoke(ctx, node, ec)
	ended := e.now()

	if err == nil {
		err = ec.Set(node.ID, output)
	}

	if e.recorder != nil {
		status := string(LogStatusSuccess)
		if err != nil {
			status = string(LogStatusError)
		}
		e.recorder.RecordNode(node.Action, status, ended.Sub(started))
	}

	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		sink.Emit(ExecutionLog{
			NodeID:  node.ID,
			Status:  LogStatusError,
			Error:   err.Error(),
			EndTime: epochMillis(ended),
		})
		return err
	}

	logger.Debug("node succeeded",
		zap.String("node_id", node.ID),
		zap.String("action", node.Action),
		zap.Duration("duration", ended.Sub(started)))
	sink.Emit(ExecutionLog{
		NodeID:  node.ID,
		Status:  LogStatusSuccess,
		Output:  output,
		EndTime: epochMillis(ended),
	})
	return nil
}

func (e *Executor) invoke(ctx context.Context, node *Node, ec *ExecutionContext) (output any, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("action %s panicked: %v", node.Action, r)
		}
	}()

	if ec.Has(node.ID) {
		return nil, fmt.Errorf("%w: %s", ErrContextKeyExists, node.ID)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if e.dispatcher == nil {
		return nil, fmt.Errorf("%w: %s", ErrUnknownAction, node.Action)
	}

	input := ResolveInput(node, ec)
	return e.dispatcher.Dispatch(ctx, node.Action, node.Params, input)
}
