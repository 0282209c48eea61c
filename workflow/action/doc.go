// Copyright (c) FlowRunner Authors.
// Licensed under the MIT License.

/*
Package action 实现工作流的六种动作处理器。

动作集合是封闭的：Kind 只有 web_scraper、ai_processor、email_sender、
data_filter、scheduler、api_caller 六种，Set.Dispatch 用穷举 switch 分发。
每个处理器在边界处用 DecodeParams 把 map[string]any 解码成自己的参数结构体，
之后只处理类型化的值。

  - Scheduler: 输出 {triggered_at, schedule}，从不失败
  - WebScraper: simulated（默认）或 http 模式，返回文本片段
  - AIProcessor: 通过 llm.Provider 按指令处理上游输出
  - DataFilter: 取前 N 个（可选条件匹配）元素，非序列输入原样透传
  - EmailSender: 交给 Mailer（log / redis 发件箱），返回发送确认
  - APICaller: 真实 HTTP 请求，任何失败都回退到模拟响应

web_scraper 与 api_caller 共享 Outbound（http.Client + 令牌桶限流）。
*/
package action
