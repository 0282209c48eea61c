// Copyright (c) FlowRunner Authors.
// Licensed under the MIT License.

/*
Package testutil 提供 FlowRunner 测试的共享工具和辅助函数。

# 核心能力

  - 上下文辅助: TestContext / TestContextWithTimeout / CancelledContext，
    自动注册 Cleanup 防止泄漏
  - 断言工具: AssertJSONEqual / AssertContains / AssertEventuallyTrue
  - 通道辅助: WaitFor / WaitForChannel / DrainChannel
  - 数据工具: MustJSON / MustParseJSON / SampleGraphJSON

# 子包

  - testutil/mocks: MockProvider（llm.Provider 的可编程实现，
    支持固定响应、错误注入、延迟与调用记录）
*/
package testutil
