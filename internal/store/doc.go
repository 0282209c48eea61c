// Copyright (c) FlowRunner Authors.
// Licensed under the MIT License.

// Package store 将 workflow.ExecutionHistory 持久化到关系数据库。
//
// GormHistoryStore 使用 workflow_runs 与 workflow_node_runs 两张表，
// 通过 database.PoolManager 的可重试事务写入。postgres/mysql 的表结构由
// internal/migration 管理，sqlite 则调用 AutoMigrate 建表。
package store
