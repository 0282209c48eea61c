// Copyright (c) FlowRunner Authors.
// Licensed under the MIT License.

/*
# 概述

包 gemini 提供 Google Gemini 模型的 Provider 适配实现，直接对接
Gemini REST API（generativelanguage.googleapis.com）。

# 核心结构体

  - GeminiProvider: 持有 http.Client 与 Config；使用 x-goog-api-key 请求头认证
  - geminiRequest / geminiResponse: Gemini 原生请求/响应结构

# 构造函数

  - NewGeminiProvider(cfg, logger): 创建实例，默认模型 gemini-3-flash-preview

# 支持能力

  - Completions（/v1beta/models/{model}:generateContent）
  - generationConfig.responseMimeType（规划器要求 application/json 输出）
  - HealthCheck
*/
package gemini
