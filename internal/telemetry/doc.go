// Copyright (c) FlowRunner Authors.
// Licensed under the MIT License.

// Package telemetry 封装 OpenTelemetry SDK 初始化（OTLP gRPC 导出 trace 与
// metric），并提供 TraceDispatcher：在执行器的 workflow.node span 之下为每个
// 动作调用开启子 span。遥测禁用时全局 provider 为 noop，不连接外部服务。
package telemetry
