// Copyright (c) FlowRunner Authors.
// Licensed under the MIT License.

/*
Package migration 管理运行历史表（workflow_runs、workflow_node_runs）的
版本化 Schema，基于 golang-migrate 与 embed.FS 内嵌的 SQL 脚本。

支持 PostgreSQL 与 MySQL。sqlite 没有内嵌脚本，ParseDatabaseType 对其
返回 ErrUnsupportedDatabase，由 store 包在 auto_migrate 开启时建表。

  - Migrator / DefaultMigrator：Up、Down、DownAll、Steps、Goto、Force、
    Version、Status、Info。
  - NewMigratorFromConfig：从 config.DatabaseConfig 拼接连接串。
  - CLI：`flowrunner migrate <command>` 的终端输出层。
*/
package migration
