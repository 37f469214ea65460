package xstatus

import (
	"bytes"
	"strconv"
	"sync"
)

// Registry 是状态值与子树的有序容器。
//
// 所有方法都是线程安全的。结构锁为每个 Registry 私有，保护 slot 与
// 子树两个列表；值锁由应用代码创建并与 Registry 共享（见 NewRegistry），
// 仅在快照阶段短暂持有。两把锁永远不同。
//
// 同一个 Registry 可以挂在多个父节点下（共享所有权），渲染时按各自
// 路径累积前缀，互不影响。
type Registry struct {
	keyPrefix string

	// valueMu 与应用代码共享的可选值锁。Registry 不拥有它的生命周期，
	// 也从不在快照阶段之外持有它。nil 表示没有值锁。
	valueMu *sync.Mutex

	mu     sync.Mutex // 结构锁
	slots  []*slot
	groups []childGroup
}

type childGroup struct {
	keyPrefix string
	child     *Registry
}

// NewRegistry 创建 Registry。keyPrefix 会在渲染时拼在所有后代 key 之前；
// valueMu 是与应用共享的值锁，传 nil 表示不需要跨值一致快照。
func NewRegistry(keyPrefix string, valueMu *sync.Mutex) *Registry {
	return &Registry{keyPrefix: keyPrefix, valueMu: valueMu}
}

// Add 注册一个值。binding 的形态决定存储绑定（见包文档），key、tags、
// level、desc 为注册后不可变的元数据。
//
// 均摊常数时间，只拿结构锁，从不触碰值锁；渲染进行中追加是安全的，
// 进行中的渲染可能看到也可能看不到新值，但绝不会看到构造了一半的值。
func (r *Registry) Add(binding any, key string, tags Tags, level Level, desc string) {
	s := newSlot(binding, r.itemHeader(key, tags, level, desc))

	r.mu.Lock()
	defer r.mu.Unlock()
	r.slots = append(r.slots, s)
}

// AddGroup 把 child 作为子树挂到本 Registry 下，child 的所有 key 都会
// 追加 keyPrefix 前缀（可为空）。child 为共享引用，可同时挂在多个父
// 节点下或由应用另行持有。
//
// 环状挂载不做检测：把某个 Registry 直接或间接挂到它自己下面会在渲染
// 时无界递归，由调用方保证无环。
func (r *Registry) AddGroup(child *Registry, keyPrefix string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.groups = append(r.groups, childGroup{keyPrefix: keyPrefix, child: child})
}

// itemHeader 生成 item 中静态不变的片段，从 key 开始直到 "value": 为止。
// 标签按注册顺序用 "-" 连接，与原始数据一样不做转义。
func (r *Registry) itemHeader(key string, tags Tags, level Level, desc string) string {
	var b bytes.Buffer
	b.WriteString(EscapeJSON(r.keyPrefix))
	b.WriteString(EscapeJSON(key))
	b.WriteByte(':')
	for i, tag := range tags {
		if i > 0 {
			b.WriteByte('-')
		}
		b.WriteString(string(tag))
	}
	b.WriteString(`","level":`)
	b.WriteString(strconv.FormatUint(uint64(level), 10))
	b.WriteString(`,"desc":"`)
	b.WriteString(EscapeJSON(desc))
	b.WriteString(`","value":`)
	return b.String()
}

// appendItems 执行快照-渲染协议，把本 Registry 及所有后代的 item 追加
// 到 b 中。keyPrefix 是祖先链累积下来的前缀，first 跨整棵树传递逗号
// 分隔状态。
//
// 整个调用持有结构锁（子树递归各自拿自己的结构锁）；值锁只覆盖快照
// 阶段。顺序保证：先本节点的 slot（注册序），再各子树（挂载序，深度
// 优先），不排序、不去重。
func (r *Registry) appendItems(b *bytes.Buffer, keyPrefix string, first *bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.valueMu != nil {
		r.valueMu.Lock()
	}
	for _, s := range r.slots {
		s.snapshot()
	}
	if r.valueMu != nil {
		r.valueMu.Unlock()
	}

	escapedPrefix := EscapeJSON(keyPrefix)
	for _, s := range r.slots {
		if !*first {
			b.WriteByte(',')
		}
		*first = false
		b.WriteString(`{"key":"`)
		b.WriteString(escapedPrefix)
		b.WriteString(s.header)
		s.render(b)
		b.WriteByte('}')
	}

	for _, g := range r.groups {
		g.child.appendItems(b, keyPrefix+r.keyPrefix+g.keyPrefix, first)
	}
}

// ItemsJSON 渲染本 Registry 及所有后代为一个 JSON 数组，主要用于诊断
// 和测试。HTTP 访问请使用 Server。
func (r *Registry) ItemsJSON() []byte {
	var b bytes.Buffer
	b.WriteByte('[')
	first := true
	r.appendItems(&b, "", &first)
	b.WriteByte(']')
	return b.Bytes()
}
