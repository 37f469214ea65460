// Package observability 提供可观测性相关的子包。
//
// 子包列表：
//   - xstatus: 进程内状态树与轮询 HTTP 导出器
//   - xruntime: Go 运行时指标采集，桥接到 xstatus 状态树
//
// 设计原则：
//   - 状态读取零侵入：绑定现有变量，不要求业务代码改用专门的计数器类型
//   - 快照与格式化分离：持锁阶段只做取值，序列化在锁外进行
//   - 单连接轮询服务器：面向低频排障读取，不追求吞吐
package observability
