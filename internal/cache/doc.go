// Copyright (c) FlowRunner Authors.
// Licensed under the MIT License.

/*
包 cache 提供基于 Redis 的缓存管理能力，供规划结果缓存与邮件发件箱使用。

# 核心类型

  - Manager：持有 Redis 客户端，提供 Get/Set/Delete 与 GetJSON/SetJSON，
    所有键自动加上 Config.KeyPrefix。
  - Config：地址、密码、连接池、默认 TTL 与健康检查间隔。
  - Stats：进程内命中计数加上 Redis INFO 中的内存与连接信息。
  - Recorder：命中/未命中回调，由 metrics.Collector 实现。

# 错误语义

未命中返回 ErrCacheMiss（用 IsCacheMiss 判断），关闭后的调用返回 ErrClosed。
*/
package cache
