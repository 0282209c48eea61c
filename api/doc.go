// Package api 定义 FlowRunner HTTP API 的请求与响应结构。
//
// # 端点
//
//   - GET  /health、/healthz、/ready、/version
//   - GET  /api/v1/actions                 动作目录
//   - POST /api/v1/workflows/plan          自然语言 → 工作流图
//   - POST /api/v1/workflows/validate      结构校验
//   - POST /api/v1/workflows/run           同步 JSON、SSE 或 ?async=true
//   - GET  /api/v1/workflows/run/ws        WebSocket 日志流
//   - GET  /api/v1/runs、/api/v1/runs/{id} 运行历史
//
// # 认证
//
// 配置了 server.api_keys 时需要 X-API-Key 头；配置了 server.jwt_secret 时
// 需要 Authorization: Bearer <token>。
//
// 所有 JSON 响应都包在 handlers.Response 中：
//
//	{"success": true, "data": {...}, "timestamp": "..."}
package api
