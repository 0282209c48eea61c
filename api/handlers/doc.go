// Copyright (c) FlowRunner Authors.
// Licensed under the MIT License.

/*
Package handlers 提供 FlowRunner HTTP API 的请求处理器实现。

# 核心类型

  - WorkflowHandler: 规划、校验、执行（JSON / SSE / 异步）以及 WebSocket 日志流
  - RunsHandler: 运行历史列表与详情
  - HealthHandler: /health、/healthz、/ready、/version
  - Response: 统一 JSON 响应结构（success + data + error + timestamp）
  - ErrorInfo: 结构化错误信息，含 code、message、details、retryable
  - ResponseWriter: 包装 http.ResponseWriter 以捕获状态码与字节数

# 约定

  - DecodeJSONBody 限制请求体大小并拒绝未知字段，失败时已写出错误响应
  - types.ErrorCode 自动映射为 HTTP 状态码；图校验问题放在 error.details
  - 运行失败不是请求失败：节点报错或图被拒时仍返回 200，结果看 status
  - SSE 每条 ExecutionLog 一个 data 帧，最后是 event: done 帧
*/
package handlers
