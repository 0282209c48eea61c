// Copyright (c) FlowRunner Authors.
// Licensed under the MIT License.

/*
Package workflow 提供工作流图模型与顺序执行引擎。

# 概述

规划器（planner 包）把自然语言请求转换成 Graph；Executor 按
execution_order 逐个执行节点：解析依赖输入、分发给动作处理器、
写入 ExecutionContext，并把每个节点的状态通过 LogSink 推送给观察者。
执行严格串行，不重试，遇到第一个失败节点即停止。

# 核心接口与类型

  - Graph / Node: 不可变的执行计划（JSON/YAML/HCL 均可加载）
  - ExecutionContext: 单次运行的 node id → 输出映射，每个键只写一次
  - ResolveInput: 无依赖 → nil，单依赖 → 直接输出，多依赖 → []any
  - Executor: 顺序执行器，Run 永不返回 error，只返回 RunResult
  - Dispatcher: 动作分发接口，由 workflow/action.Set 实现
  - LogSink: 日志观察者：SinkFunc、ChannelSink、MultiSink、CollectSink
  - Validate: 可选的结构校验（唯一 id、已知动作、依赖存在、无环、顺序一致）
  - HistoryRecorder: 从日志流构建 ExecutionHistory 的 LogSink
  - HistoryStore: 运行历史存储（MemoryHistoryStore，internal/store 提供 GORM 实现）

# 日志语义

每个被执行的节点先收到 running（带 startTime），随后恰好一条
success（output + endTime）或 error（error + endTime）。失败节点之后的
节点不会收到任何日志，它们列在 RunResult.Unreached 中；execution_order
里找不到的 id 被静默跳过，记录在 RunResult.Missing 中。
*/
package workflow
