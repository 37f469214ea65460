// Package xstatus 提供进程内状态暴露能力：业务代码把运行中的数值（计数、
// 大小、最近值等）注册到层级化的 Registry，内嵌的极简 HTTP 服务器按需把
// 整棵树渲染为一份 JSON 快照。
//
// # 概述
//
// xstatus 面向长驻进程设计，核心诉求是业务热路径上的更新开销接近零：
// 注册的是值的引用（指针、atomic、回调），更新侧不经过本库的任何代码。
// 读取侧采用两阶段的"快照-再格式化"协议，把共享锁的持有时间压缩到
// 一次定长拷贝。
//
//   - Registry: 线程安全的值/子树容器，可通过 key 前缀组成层级
//   - Server: 内嵌的轮询式 HTTP/1.1 GET 服务器，也是树的根 Registry
//
// # 快照协议
//
// 每个 Registry 持有一把私有的结构锁（保护 slot/子树列表），以及一把
// 可选的、与业务代码共享的值锁。渲染时先在值锁内对所有 slot 执行快照
// （标量为一次定长拷贝），随后释放值锁再做格式化。业务代码若在自己的
// 临界区内一起更新多个关联值，同一把值锁即可保证快照不撕裂。
//
// 整棵树的渲染不是单一原子快照：不同 slot 可能反映不同时刻，但单个值
// 不会出现撕裂读。
//
// # 服务器
//
// 服务器只支持 HTTP/1.1 GET，每个请求后关闭连接，所有路径返回同一份
// 快照。请求参数 callback=<名字> 时返回 JSONP（application/javascript），
// 否则返回 application/json。
//
// 频繁访问会反复抢占与业务共享的值锁，因此 ServeForever/Start 在每个
// 请求之后固定休眠 throttle（默认 50ms）作为限流。
//
// 注意: callback 参数会原样回显到响应体中，不做任何转义或校验。这是
// 刻意保留的已知风险，调用方不应把端口暴露给不可信网络。
//
// # 注册绑定
//
// Add 按注册值的形态选择四种存储绑定之一：
//
//  1. 指向基础类型的指针（*int64、*bool 等）：锁内拷贝、锁外格式化
//  2. sync/atomic 句柄（*atomic.Int64 等）：快照阶段 Load、锁外格式化
//  3. 回调（func() int64、func() string 等）：锁内调用、锁外格式化
//  4. 其余一切（字符串、结构体等不透明值）：锁内完成全部格式化，
//     锁外仅拷贝已生成的文本
//
// # 层级
//
// AddGroup 把子 Registry 挂到任意多个父节点下，渲染时按路径累积前缀。
// 环状挂载不做检测，会导致无界递归，由调用方保证无环。
package xstatus
