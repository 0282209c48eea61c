// Copyright (c) FlowRunner Authors.
// Licensed under the MIT License.

/*
Package types 提供 FlowRunner 的全局共享类型定义。

types 是最底层的公共包，不依赖任何内部包，为 workflow、planner、llm、
api 等上层模块提供统一的错误体系与 Context 传播工具。

# 核心类型

  - Error / ErrorCode: 结构化错误，含 HTTP 状态码与 Retryable 标记
  - WithRequestID / WithRunID / WithSubject: Context 传播
*/
package types
