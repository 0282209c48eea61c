// Copyright (c) FlowRunner Authors.
// Licensed under the MIT License.

/*
包 database 提供基于 GORM 的数据库打开与连接池管理，供运行历史存储使用。

# 核心类型

  - PoolManager：持有 GORM DB 与底层 sql.DB，提供 DB/Driver/Ping/Stats/Close。
    探活交给 /ready，连接数由服务端定时读取。
  - PoolConfig：最大空闲/打开连接数、连接生命周期与写入尝试次数。
  - Open/Dialector：按 postgres、mysql、sqlite 选择方言；sqlite 使用
    glebarez/sqlite（纯 Go）。

# 写入

Write 在事务中保存运行历史。按驱动错误类型识别写冲突并按指数退避重试：
postgres 的 40001/40P01，mysql 的 1213/1205，sqlite 的 BUSY/LOCKED，
以及 driver.ErrBadConn。其余错误直接返回。
*/
package database
