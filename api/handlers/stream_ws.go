package handlers

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/BaSui01/flowrunner/api"
	"github.com/BaSui01/flowrunner/types"
	"github.com/BaSui01/flowrunner/workflow"
	"github.com/coder/websocket"
	"github.com/goccy/go-json"
	"go.uber.org/zap"
)

// wsRequestTimeout 等待客户端发送运行请求的时间
const wsRequestTimeout = 30 * time.Second

// HandleRunWS 处理 GET /api/v1/workflows/run/ws。
// 客户端发送一条 RunRequest，服务端逐条推送 log 消息，最后发送 done 并关闭。
func (h *WorkflowHandler) HandleRunWS(w http.ResponseWriter, r *http.Request) {
	conn, err := websocket.Accept(w, r, nil)
	if err != nil {
		h.logger.Debug("websocket upgrade failed", zap.Error(err))
		return
	}
	defer conn.CloseNow()
	conn.SetReadLimit(h.cfg.MaxBodyBytes)

	h.observer.StreamOpened("websocket")
	defer h.observer.StreamClosed("websocket")

	req, err := readRunRequest(r.Context(), conn)
	if err != nil {
		h.closeWithError(r.Context(), conn, websocket.StatusPolicyViolation, types.NewError(types.ErrInvalidRequest, "invalid run request").WithCause(err))
		return
	}

	graph, planned, err := h.resolveGraph(r.Context(), req)
	if err != nil {
		h.closeWithError(r.Context(), conn, websocket.StatusNormalClosure, err)
		return
	}

	// 之后不再读取；对端关闭时 ctx 被取消，运行随之停止
	ctx := conn.CloseRead(r.Context())

	sink := workflow.NewChannelSink(ctx, h.cfg.StreamBuffer)
	done := make(chan *workflow.RunResult, 1)
	go func() {
		defer sink.Close()
		done <- h.execute(ctx, h.newID(), graph, sink)
	}()

	writeOK := true
	for log := range sink.Logs() {
		if !writeOK {
			continue
		}
		if err := writeWS(ctx, conn, api.StreamMessage{Type: "log", Log: &log}); err != nil {
			h.logger.Debug("websocket write failed", zap.Error(err))
			writeOK = false
		}
	}

	resp := api.NewRunResponse(<-done, nil)
	if planned {
		resp.Graph = graph
	}
	if !writeOK {
		return
	}
	if err := writeWS(ctx, conn, api.StreamMessage{Type: "done", Result: &resp}); err != nil {
		h.logger.Debug("websocket write failed", zap.Error(err))
		return
	}
	_ = conn.Close(websocket.StatusNormalClosure, "run finished")
}

func readRunRequest(ctx context.Context, conn *websocket.Conn) (*api.RunRequest, error) {
	ctx, cancel := context.WithTimeout(ctx, wsRequestTimeout)
	defer cancel()

	typ, data, err := conn.Read(ctx)
	if err != nil {
		return nil, fmt.Errorf("websocket read: %w", err)
	}
	if typ != websocket.MessageText {
		return nil, fmt.Errorf("expected a text message")
	}

	var req api.RunRequest
	if err := json.Unmarshal(data, &req); err != nil {
		return nil, fmt.Errorf("unmarshal run request: %w", err)
	}
	return &req, nil
}

// closeWithError 发送 error 消息后关闭连接
func (h *WorkflowHandler) closeWithError(ctx context.Context, conn *websocket.Conn, code websocket.StatusCode, err error) {
	h.logger.Warn("websocket run rejected", zap.Error(err))

	msg := err.Error()
	if apiErr, ok := types.AsError(err); ok {
		msg = string(apiErr.Code) + ": " + apiErr.Message
	}
	_ = writeWS(ctx, conn, api.StreamMessage{Type: "error", Error: msg})
	_ = conn.Close(code, "run rejected")
}

func writeWS(ctx context.Context, conn *websocket.Conn, msg api.StreamMessage) error {
	data, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("marshal message: %w", err)
	}
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	return conn.Write(ctx, websocket.MessageText, data)
}
