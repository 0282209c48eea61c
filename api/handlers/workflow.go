package handlers

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/BaSui01/flowrunner/api"
	"github.com/BaSui01/flowrunner/internal/pool"
	"github.com/BaSui01/flowrunner/types"
	"github.com/BaSui01/flowrunner/workflow"
	"github.com/goccy/go-json"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// historySaveTimeout 保存运行历史的超时，与请求上下文无关
const historySaveTimeout = 5 * time.Second

// =============================================================================
// 🔌 依赖接口
// =============================================================================

// Planner 把自然语言转换为工作流图
type Planner interface {
	Generate(ctx context.Context, prompt string) (*workflow.Graph, error)
}

// Runner 执行工作流图，由 *workflow.Executor 实现
type Runner interface {
	Run(ctx context.Context, graph *workflow.Graph, sink workflow.LogSink) *workflow.RunResult
}

// Submitter 接收异步任务，由 *pool.WorkerPool 实现
type Submitter interface {
	Submit(task pool.Task) error
}

// Observer 观察运行与流连接数量，由 *metrics.Collector 实现
type Observer interface {
	RunStarted()
	RunFinished()
	StreamOpened(transport string)
	StreamClosed(transport string)
}

type nopObserver struct{}

func (nopObserver) RunStarted()         {}
func (nopObserver) RunFinished()        {}
func (nopObserver) StreamOpened(string) {}
func (nopObserver) StreamClosed(string) {}

// WorkflowConfig 工作流接口的限制
type WorkflowConfig struct {
	MaxBodyBytes int64
	// RunTimeout 单次运行上限；0 表示不限制
	RunTimeout time.Duration
	// StreamBuffer 流式接口的日志缓冲
	StreamBuffer int
}

// =============================================================================
// 🚀 WorkflowHandler
// =============================================================================

// WorkflowHandler 处理规划、校验与执行请求
type WorkflowHandler struct {
	planner  Planner
	runner   Runner
	history  workflow.HistoryStore
	async    Submitter
	observer Observer
	cfg      WorkflowConfig
	logger   *zap.Logger
	newID    func() string
}

// WorkflowOption 配置 WorkflowHandler
type WorkflowOption func(*WorkflowHandler)

// WithPlanner 启用 prompt 规划；未设置时规划请求返回 PLANNER_UNAVAILABLE
func WithPlanner(p Planner) WorkflowOption {
	return func(h *WorkflowHandler) { h.planner = p }
}

// WithHistory 保存每次运行的历史
func WithHistory(s workflow.HistoryStore) WorkflowOption {
	return func(h *WorkflowHandler) { h.history = s }
}

// WithAsync 启用 ?async=true
func WithAsync(s Submitter) WorkflowOption {
	return func(h *WorkflowHandler) { h.async = s }
}

// WithObserver 挂载运行观察者
func WithObserver(o Observer) WorkflowOption {
	return func(h *WorkflowHandler) {
		if o != nil {
			h.observer = o
		}
	}
}

// WithRunIDGenerator 覆盖运行 ID 生成
func WithRunIDGenerator(fn func() string) WorkflowOption {
	return func(h *WorkflowHandler) {
		if fn != nil {
			h.newID = fn
		}
	}
}

// NewWorkflowHandler 创建工作流处理器
func NewWorkflowHandler(runner Runner, cfg WorkflowConfig, logger *zap.Logger, opts ...WorkflowOption) *WorkflowHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.MaxBodyBytes <= 0 {
		cfg.MaxBodyBytes = DefaultMaxBodyBytes
	}
	if cfg.StreamBuffer <= 0 {
		cfg.StreamBuffer = 16
	}
	h := &WorkflowHandler{
		runner:   runner,
		observer: nopObserver{},
		cfg:      cfg,
		logger:   logger.With(zap.String("handler", "workflow")),
		newID:    uuid.NewString,
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// =============================================================================
// 🎯 HTTP 处理程序
// =============================================================================

// HandlePlan 处理 POST /api/v1/workflows/plan
func (h *WorkflowHandler) HandlePlan(w http.ResponseWriter, r *http.Request) {
	var req api.PlanRequest
	if err := DecodeJSONBody(w, r, &req, h.cfg.MaxBodyBytes, h.logger); err != nil {
		return
	}
	if strings.TrimSpace(req.Prompt) == "" {
		WriteErrorMessage(w, r, http.StatusBadRequest, types.ErrInvalidRequest, "prompt is required", h.logger)
		return
	}

	graph, err := h.plan(r.Context(), req.Prompt)
	if err != nil {
		WriteAnyError(w, r, err, h.logger)
		return
	}
	WriteSuccess(w, r, api.PlanResponse{Graph: graph})
}

// HandleValidate 处理 POST /api/v1/workflows/validate。
// 可解码的图总是返回 200，valid 字段给出结论。
func (h *WorkflowHandler) HandleValidate(w http.ResponseWriter, r *http.Request) {
	var req api.ValidateRequest
	if err := DecodeJSONBody(w, r, &req, h.cfg.MaxBodyBytes, h.logger); err != nil {
		return
	}
	if req.Graph == nil {
		WriteErrorMessage(w, r, http.StatusBadRequest, types.ErrInvalidRequest, "graph is required", h.logger)
		return
	}

	resp := api.ValidateResponse{Valid: true}
	if err := workflow.Validate(req.Graph); err != nil {
		resp.Valid = false
		resp.Problems = validationDetails(err)
		if len(resp.Problems) == 0 {
			resp.Problems = []string{err.Error()}
		}
	}
	WriteSuccess(w, r, resp)
}

// HandleRun 处理 POST /api/v1/workflows/run。
// Accept: text/event-stream 时以 SSE 推送日志；?async=true 时立即返回 202。
// 运行本身失败（节点报错、图被拒）仍返回 200，结果在 status 字段中。
func (h *WorkflowHandler) HandleRun(w http.ResponseWriter, r *http.Request) {
	var req api.RunRequest
	if err := DecodeJSONBody(w, r, &req, h.cfg.MaxBodyBytes, h.logger); err != nil {
		return
	}

	graph, planned, err := h.resolveGraph(r.Context(), &req)
	if err != nil {
		WriteAnyError(w, r, err, h.logger)
		return
	}

	switch {
	case isTrue(r.URL.Query().Get("async")):
		h.runAsync(w, r, graph)
	case wantsEventStream(r):
		h.runSSE(w, r, graph, planned)
	default:
		sink := &workflow.CollectSink{}
		result := h.execute(r.Context(), h.newID(), graph, sink)
		resp := api.NewRunResponse(result, sink.Logs())
		if planned {
			resp.Graph = graph
		}
		WriteSuccess(w, r, resp)
	}
}

// =============================================================================
// 🔧 执行流程
// =============================================================================

// resolveGraph 取出请求中的图，或用 prompt 规划一个
func (h *WorkflowHandler) resolveGraph(ctx context.Context, req *api.RunRequest) (*workflow.Graph, bool, error) {
	hasPrompt := strings.TrimSpace(req.Prompt) != ""
	switch {
	case req.Graph != nil && hasPrompt:
		return nil, false, types.NewError(types.ErrInvalidRequest, "graph and prompt are mutually exclusive")
	case req.Graph == nil && !hasPrompt:
		return nil, false, types.NewError(types.ErrInvalidRequest, "either graph or prompt is required")
	}

	graph := req.Graph
	planned := false
	if graph == nil {
		g, err := h.plan(ctx, req.Prompt)
		if err != nil {
			return nil, false, err
		}
		graph, planned = g, true
	}

	if req.Validate != nil && *req.Validate {
		if err := workflow.Validate(graph); err != nil {
			return nil, false, err
		}
	}
	return graph, planned, nil
}

func (h *WorkflowHandler) plan(ctx context.Context, prompt string) (*workflow.Graph, error) {
	if h.planner == nil {
		return nil, types.NewError(types.ErrPlannerUnavailable, "planner is not configured")
	}
	return h.planner.Generate(ctx, prompt)
}

// execute 运行图并保存历史；sink 可为 nil
func (h *WorkflowHandler) execute(ctx context.Context, runID string, graph *workflow.Graph, sink workflow.LogSink) *workflow.RunResult {
	ctx = types.WithRunID(ctx, runID)
	if h.cfg.RunTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, h.cfg.RunTimeout)
		defer cancel()
	}

	recorder := workflow.NewHistoryRecorder(runID, graph)
	sinks := workflow.MultiSink{recorder}
	if sink != nil {
		sinks = append(sinks, sink)
	}

	h.observer.RunStarted()
	result := h.runner.Run(ctx, graph, sinks)
	h.observer.RunFinished()

	h.saveHistory(ctx, recorder.Complete(result))
	return result
}

// saveHistory 失败只记日志，不影响运行结果
func (h *WorkflowHandler) saveHistory(ctx context.Context, hist *workflow.ExecutionHistory) {
	if h.history == nil || hist == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), historySaveTimeout)
	defer cancel()
	if err := h.history.Save(ctx, hist); err != nil {
		h.logger.Warn("failed to save run history",
			zap.String("run_id", hist.RunID),
			zap.Error(err),
		)
	}
}

// runAsync 先保存 running 状态的历史，再把运行交给工作池
func (h *WorkflowHandler) runAsync(w http.ResponseWriter, r *http.Request, graph *workflow.Graph) {
	if h.async == nil || h.history == nil {
		WriteErrorMessage(w, r, http.StatusServiceUnavailable, types.ErrServiceUnavailable, "async runs are not enabled", h.logger)
		return
	}

	runID := h.newID()
	pending := workflow.NewHistoryRecorder(runID, graph)
	h.saveHistory(r.Context(), pending.History())

	err := h.async.Submit(func(ctx context.Context) error {
		result := h.execute(ctx, runID, graph, nil)
		if result.Status != workflow.RunStatusSuccess {
			return fmt.Errorf("run %s finished with status %s", runID, result.Status)
		}
		return nil
	})
	if err != nil {
		// 未入队的运行不能一直停在 running
		rejected := pending.Complete(nil)
		rejected.Error = err.Error()
		h.saveHistory(r.Context(), rejected)

		apiErr := types.NewError(types.ErrServiceUnavailable, "run queue is full").
			WithCause(err).
			WithRetryable(errors.Is(err, pool.ErrPoolFull))
		WriteError(w, r, apiErr, h.logger)
		return
	}

	h.logger.Info("async run accepted", zap.String("run_id", runID))
	WriteStatus(w, r, http.StatusAccepted, api.RunAccepted{
		RunID:     runID,
		Status:    string(workflow.HistoryStatusRunning),
		StatusURL: "/api/v1/runs/" + runID,
	})
}

// runSSE 每条日志一个 data 帧，结束时发送 event: done
func (h *WorkflowHandler) runSSE(w http.ResponseWriter, r *http.Request, graph *workflow.Graph, planned bool) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		WriteErrorMessage(w, r, http.StatusInternalServerError, types.ErrInternalError, "streaming not supported", h.logger)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	h.observer.StreamOpened("sse")
	defer h.observer.StreamClosed("sse")

	ctx := r.Context()
	sink := workflow.NewChannelSink(ctx, h.cfg.StreamBuffer)
	done := make(chan *workflow.RunResult, 1)
	go func() {
		defer sink.Close()
		done <- h.execute(ctx, h.newID(), graph, sink)
	}()

	for log := range sink.Logs() {
		// 客户端断开后继续排空通道，运行会随上下文取消而结束
		_ = writeSSE(w, "", log)
		flusher.Flush()
	}

	resp := api.NewRunResponse(<-done, nil)
	if planned {
		resp.Graph = graph
	}
	_ = writeSSE(w, "done", resp)
	flusher.Flush()
}

func writeSSE(w http.ResponseWriter, event string, payload any) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	if event != "" {
		if _, err := fmt.Fprintf(w, "event: %s\n", event); err != nil {
			return err
		}
	}
	_, err = fmt.Fprintf(w, "data: %s\n\n", data)
	return err
}

func wantsEventStream(r *http.Request) bool {
	return strings.Contains(r.Header.Get("Accept"), "text/event-stream")
}

func isTrue(v string) bool {
	switch strings.ToLower(v) {
	case "1", "true", "yes":
		return true
	}
	return false
}
