package api

import (
	"time"

	"github.com/BaSui01/flowrunner/workflow"
	"github.com/BaSui01/flowrunner/workflow/action"
)

// =============================================================================
// 📝 规划与校验
// =============================================================================

// PlanRequest 规划请求
type PlanRequest struct {
	// 自然语言描述的自动化需求
	Prompt string `json:"prompt" example:"Every morning scrape techcrunch and email me a summary"`
}

// PlanResponse 规划结果
type PlanResponse struct {
	Graph *workflow.Graph `json:"graph"`
}

// ValidateRequest 校验请求
type ValidateRequest struct {
	Graph *workflow.Graph `json:"graph"`
}

// ValidateResponse 校验结果；Valid 为 false 时 Problems 列出全部问题
type ValidateResponse struct {
	Valid    bool     `json:"valid"`
	Problems []string `json:"problems,omitempty"`
}

// =============================================================================
// ▶️ 执行
// =============================================================================

// RunRequest 执行请求，graph 与 prompt 二选一。
// 只给 prompt 时先调用规划器生成图再执行。
type RunRequest struct {
	Graph  *workflow.Graph `json:"graph,omitempty"`
	Prompt string          `json:"prompt,omitempty"`
	// 覆盖服务端 executor.validate 配置
	Validate *bool `json:"validate,omitempty"`
}

// RunResponse 同步执行结果
type RunResponse struct {
	RunID        string                  `json:"run_id"`
	WorkflowName string                  `json:"workflow_name,omitempty"`
	Status       workflow.RunStatus      `json:"status"`
	Logs         []workflow.ExecutionLog `json:"logs"`
	Outputs      map[string]any          `json:"outputs"`
	FailedNode   string                  `json:"failed_node,omitempty"`
	Error        string                  `json:"error,omitempty"`
	Unreached    []string                `json:"unreached,omitempty"`
	Missing      []string                `json:"missing,omitempty"`
	StartedAt    time.Time               `json:"started_at"`
	EndedAt      time.Time               `json:"ended_at"`
	DurationMs   int64                   `json:"duration_ms"`
	// 由 prompt 规划出的图，便于客户端展示
	Graph *workflow.Graph `json:"graph,omitempty"`
}

// NewRunResponse 由执行结果和收集到的日志构造响应
func NewRunResponse(result *workflow.RunResult, logs []workflow.ExecutionLog) RunResponse {
	if logs == nil {
		logs = []workflow.ExecutionLog{}
	}
	outputs := result.Outputs
	if outputs == nil {
		outputs = map[string]any{}
	}
	return RunResponse{
		RunID:        result.RunID,
		WorkflowName: result.WorkflowName,
		Status:       result.Status,
		Logs:         logs,
		Outputs:      outputs,
		FailedNode:   result.FailedNode,
		Error:        result.Error,
		Unreached:    result.Unreached,
		Missing:      result.Missing,
		StartedAt:    result.StartedAt,
		EndedAt:      result.EndedAt,
		DurationMs:   result.Duration.Milliseconds(),
	}
}

// RunAccepted 异步执行的受理回执（HTTP 202）
type RunAccepted struct {
	RunID     string `json:"run_id"`
	Status    string `json:"status"`
	StatusURL string `json:"status_url"`
}

// StreamMessage WebSocket 下行消息：type 为 log 或 done
type StreamMessage struct {
	Type   string                 `json:"type"`
	Log    *workflow.ExecutionLog `json:"log,omitempty"`
	Result *RunResponse           `json:"result,omitempty"`
	Error  string                 `json:"error,omitempty"`
}

// =============================================================================
// 📚 动作目录与历史
// =============================================================================

// ActionsResponse 动作目录
type ActionsResponse struct {
	Actions []action.Descriptor `json:"actions"`
}

// RunListResponse 历史列表
type RunListResponse struct {
	Runs  []*workflow.ExecutionHistory `json:"runs"`
	Count int                          `json:"count"`
}
