// Copyright (c) FlowRunner Authors.
// Licensed under the MIT License.

/*
Package metrics 基于 Prometheus 采集 FlowRunner 的运行指标。

Collector 用 promauto.With 注册到指定 Registry（NewCollector 使用默认
Registry），并直接满足各组件的记录接口：workflow.Recorder（节点与运行）、
planner.Recorder、cache.Recorder、llm.Recorder。此外还记录 HTTP 请求、
流式连接数与数据库连接池状态。HTTP 状态码按 2xx/3xx/4xx/5xx 归类。
*/
package metrics
