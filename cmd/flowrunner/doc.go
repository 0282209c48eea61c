// Copyright (c) FlowRunner Authors.
// Licensed under the MIT License.

/*
Package main 提供 FlowRunner 的可执行入口。

# 概述

cmd/flowrunner 把配置装配为运行时组件（LLM provider、规划器、动作集、
执行器、运行历史、异步工作池），并通过子命令对外提供：

  - serve    启动 HTTP API 与独立的 Prometheus metrics 端口
  - run      在本地执行工作流文件，以 JSON Lines 输出日志
  - plan     由自然语言生成工作流图
  - migrate  PostgreSQL / MySQL 表结构迁移
  - health   探测运行中服务的 /health
  - version  输出构建注入的版本信息

# 中间件链

Recovery → RequestID → SecurityHeaders → RequestLogger → Metrics →
OTelTracing → CORS → 认证（JWT 或 X-API-Key）→ RateLimiter。
/health、/healthz、/ready、/version 免认证。

# 优雅关闭

收到 SIGINT/SIGTERM 后依次关闭 API 服务、metrics 服务、后台协程、
工作池、Redis、数据库，最后刷新 telemetry。
*/
package main
