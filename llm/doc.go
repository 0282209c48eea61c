// Copyright (c) FlowRunner Authors.
// Licensed under the MIT License.

/*
# 概述

包 llm 定义工作流规划器和 ai_processor 动作共用的 LLM 抽象：统一的
请求/响应结构、错误码以及 Provider 接口。具体实现位于 llm/providers 下。

# 核心类型

  - Provider: Completion / HealthCheck / Name
  - ChatRequest: 模型、消息、采样参数与 ResponseMIMEType
  - ChatResponse: 候选结果与用量，Text() 取第一个候选文本
  - Error: 带 HTTP 状态与可重试标记的 Provider 错误
*/
package llm
