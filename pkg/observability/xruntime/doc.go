// Package xruntime 将 Go 运行时指标桥接到 xstatus 的状态树。
//
// # 概述
//
// Collector 定期采样 runtime 的 goroutine 数与内存统计，写入一组受
// 内部互斥锁保护的普通字段，并把这些字段绑定到一个 xstatus.Registry。
// 渲染侧在同一把锁下取快照，因此一次采样内的各字段彼此一致。
//
// 典型用法是把 Collector 的 Registry 挂载到状态服务器:
//
//	c := xruntime.NewCollector()
//	c.Start()
//	defer c.Stop()
//	srv.AddGroup(c.Registry(), "")
//
// runtime.ReadMemStats 会短暂停顿所有 goroutine，采样间隔不宜过短。
package xruntime
