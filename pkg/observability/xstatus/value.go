package xstatus

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"sync/atomic"
)

// slot 是一个已注册的值：注册期生成的静态头部，加上一对快照/渲染闭包。
//
// snapshot 在值锁（若有）内调用，要求廉价且不触碰输出流；render 在锁外
// 调用，只允许读取 snapshot 留下的私有副本。两者合起来等价于在值锁的
// 临界区内原子地读了一次值。
type slot struct {
	// header 是 item 中永不变化的部分，注册时一次性生成：
	// <转义后的前缀+key>:<tags>","level":<n>,"desc":"<转义后的描述>","value":
	// 避免每次渲染重复做标签拼接和转义。
	header string

	snapshot func()
	render   func(b *bytes.Buffer)
}

// newSlot 按绑定值的形态选择存储绑定。
//
// 基础类型（定长、拷贝即读）走"锁内拷贝、锁外格式化"；字符串与其余
// 不透明值走"锁内完成格式化、锁外只拷贝文本"——它们的表示或格式化
// 过程无法保证并发拷贝安全，风险部分全部留在锁内完成。
func newSlot(binding any, header string) *slot {
	s := &slot{header: header}

	switch v := binding.(type) {

	// 指向基础类型的指针：锁内解引用拷贝。
	case *int:
		s.bindSigned(func() int64 { return int64(*v) })
	case *int8:
		s.bindSigned(func() int64 { return int64(*v) })
	case *int16:
		s.bindSigned(func() int64 { return int64(*v) })
	case *int32:
		s.bindSigned(func() int64 { return int64(*v) })
	case *int64:
		s.bindSigned(func() int64 { return *v })
	case *uint:
		s.bindUnsigned(func() uint64 { return uint64(*v) })
	case *uint8:
		s.bindUnsigned(func() uint64 { return uint64(*v) })
	case *uint16:
		s.bindUnsigned(func() uint64 { return uint64(*v) })
	case *uint32:
		s.bindUnsigned(func() uint64 { return uint64(*v) })
	case *uint64:
		s.bindUnsigned(func() uint64 { return *v })
	case *uintptr:
		s.bindUnsigned(func() uint64 { return uint64(*v) })
	case *float32:
		s.bindFloat(func() float64 { return float64(*v) })
	case *float64:
		s.bindFloat(func() float64 { return *v })
	case *bool:
		s.bindBool(func() bool { return *v })

	// sync/atomic 句柄：来源自带同步，快照阶段 Load 一次。
	case *atomic.Int32:
		s.bindSigned(func() int64 { return int64(v.Load()) })
	case *atomic.Int64:
		s.bindSigned(v.Load)
	case *atomic.Uint32:
		s.bindUnsigned(func() uint64 { return uint64(v.Load()) })
	case *atomic.Uint64:
		s.bindUnsigned(v.Load)
	case *atomic.Bool:
		s.bindBool(v.Load)

	// 回调：锁内调用，返回值即私有副本。
	case func() int64:
		s.bindSigned(v)
	case func() uint64:
		s.bindUnsigned(v)
	case func() float64:
		s.bindFloat(v)
	case func() bool:
		s.bindBool(v)
	case func() string:
		s.bindString(v)

	// 字符串：不透明值，按 EscapeJSON 契约在锁内完成转义。
	case string:
		s.bindString(func() string { return v })
	case *string:
		s.bindString(func() string { return *v })

	default:
		s.bindOpaque(binding)
	}

	return s
}

func (s *slot) bindSigned(load func() int64) {
	var cell int64
	s.snapshot = func() { cell = load() }
	s.render = func(b *bytes.Buffer) { b.WriteString(strconv.FormatInt(cell, 10)) }
}

func (s *slot) bindUnsigned(load func() uint64) {
	var cell uint64
	s.snapshot = func() { cell = load() }
	s.render = func(b *bytes.Buffer) { b.WriteString(strconv.FormatUint(cell, 10)) }
}

func (s *slot) bindFloat(load func() float64) {
	var cell float64
	s.snapshot = func() { cell = load() }
	s.render = func(b *bytes.Buffer) { appendFloat(b, cell) }
}

func (s *slot) bindBool(load func() bool) {
	var cell bool
	s.snapshot = func() { cell = load() }
	s.render = func(b *bytes.Buffer) { b.WriteString(strconv.FormatBool(cell)) }
}

func (s *slot) bindString(load func() string) {
	var prepared string
	s.snapshot = func() { prepared = `"` + EscapeJSON(load()) + `"` }
	s.render = func(b *bytes.Buffer) { b.WriteString(prepared) }
}

// bindOpaque 兜底处理任意类型：锁内用 encoding/json 生成完整文本。
// 序列化失败不是契约的一部分，降级为一条错误说明字符串而不是让渲染
// 中断——与 Add 不返回错误的约定一致。
func (s *slot) bindOpaque(v any) {
	var prepared []byte
	s.snapshot = func() {
		data, err := json.Marshal(v)
		if err != nil {
			data = []byte(`"` + EscapeJSON(fmt.Sprintf("<marshal error: %v>", err)) + `"`)
		}
		prepared = data
	}
	s.render = func(b *bytes.Buffer) { b.Write(prepared) }
}
