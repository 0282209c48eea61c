package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/BaSui01/flowrunner/api"
	"github.com/BaSui01/flowrunner/types"
	"github.com/BaSui01/flowrunner/workflow"
	"github.com/BaSui01/flowrunner/workflow/action"
	"go.uber.org/zap"
)

const (
	defaultRunListLimit = 50
	maxRunListLimit     = 500
)

// =============================================================================
// 📜 运行历史
// =============================================================================

// RunsHandler 查询运行历史
type RunsHandler struct {
	store  workflow.HistoryStore
	logger *zap.Logger
}

// NewRunsHandler 创建历史处理器
func NewRunsHandler(store workflow.HistoryStore, logger *zap.Logger) *RunsHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RunsHandler{store: store, logger: logger.With(zap.String("handler", "runs"))}
}

// HandleList 处理 GET /api/v1/runs?limit=N，最新的在前
func (h *RunsHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	limit := defaultRunListLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			WriteErrorMessage(w, r, http.StatusBadRequest, types.ErrInvalidRequest, "limit must be a positive integer", h.logger)
			return
		}
		limit = min(n, maxRunListLimit)
	}

	runs, err := h.store.List(r.Context(), limit)
	if err != nil {
		WriteAnyError(w, r, types.NewError(types.ErrInternalError, "failed to list runs").WithCause(err), h.logger)
		return
	}
	if runs == nil {
		runs = []*workflow.ExecutionHistory{}
	}
	WriteSuccess(w, r, api.RunListResponse{Runs: runs, Count: len(runs)})
}

// HandleGet 处理 GET /api/v1/runs/{id}
func (h *RunsHandler) HandleGet(w http.ResponseWriter, r *http.Request) {
	runID := r.PathValue("id")
	if runID == "" {
		WriteErrorMessage(w, r, http.StatusBadRequest, types.ErrInvalidRequest, "run id is required", h.logger)
		return
	}

	hist, err := h.store.Get(r.Context(), runID)
	if errors.Is(err, workflow.ErrRunNotFound) {
		WriteErrorMessage(w, r, http.StatusNotFound, types.ErrRunNotFound, "run "+runID+" not found", nil)
		return
	}
	if err != nil {
		WriteAnyError(w, r, types.NewError(types.ErrInternalError, "failed to load run").WithCause(err), h.logger)
		return
	}
	WriteSuccess(w, r, hist)
}

// HandleListActions 处理 GET /api/v1/actions
func HandleListActions(w http.ResponseWriter, r *http.Request) {
	WriteSuccess(w, r, api.ActionsResponse{Actions: action.Catalog()})
}
