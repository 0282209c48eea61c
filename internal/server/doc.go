// Copyright (c) FlowRunner Authors.
// Licensed under the MIT License.

// Package server 管理 FlowRunner 的 HTTP 服务器生命周期：非阻塞启动、
// 可选 TLS（tlsutil 加固配置）、优雅关闭与异步错误传播。cmd/flowrunner
// 用它分别承载 API 服务与 /metrics 服务。
package server
