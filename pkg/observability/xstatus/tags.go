package xstatus

// Tag 是附在 key 后面的短标签，描述值的语义角色（计数、大小等）。
type Tag string

// 预定义标签。
const (
	TagCount    Tag = "count"
	TagSize     Tag = "size"
	TagLast     Tag = "last"
	TagTotal    Tag = "total"
	TagMin      Tag = "min"
	TagMax      Tag = "max"
	TagCurrent  Tag = "current"
	TagDuration Tag = "duration"
	TagTime     Tag = "time"
)

// Tags 是有序的标签序列。渲染时按注册顺序用 "-" 连接，不去重。
type Tags []Tag

// Level 是值的重要性序数，0 最高 4 最低。纯展示元数据，供消费端做
// 过滤，对行为没有任何影响。
type Level uint32

// 预定义级别。
const (
	LevelHighest Level = iota
	LevelHigh
	LevelMedium
	LevelLow
	LevelLowest
)
