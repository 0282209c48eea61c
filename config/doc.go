// Copyright (c) FlowRunner Authors.
// Licensed under the MIT License.

// Package config 提供 FlowRunner 的配置管理功能。
//
// 配置按 默认值 → YAML 文件 → FLOWRUNNER_ 前缀环境变量 的顺序叠加，
// 分为 server、llm、planner、executor、actions、redis、database、log、
// telemetry 九个部分。Config.Validate 检查端口、provider、抓取模式、
// 邮件后端、历史存储与数据库驱动之间的组合是否合法。
package config
