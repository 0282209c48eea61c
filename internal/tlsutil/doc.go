// Copyright (c) FlowRunner Authors.
// Licensed under the MIT License.

// Package tlsutil 提供集中式 TLS 配置（TLS 1.2+，仅 AEAD 密码套件），
// 用于动作出站请求、Gemini Provider 与 Redis 连接。
package tlsutil
