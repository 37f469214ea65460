package xstatus

import (
	"bytes"
	"fmt"
	"strconv"
)

// EscapeJSON 转义 JSON 字符串中必须转义的字节：反斜杠、双引号以及
// 0x00–0x1F 的控制字节，统一转成小写的 \u00xx。其余字节（包括多字节
// UTF-8 序列）原样通过——JSON 默认就是 UTF-8 编码，不需要更多处理。
func EscapeJSON(s string) string {
	// 快速路径：多数 key/desc 不含需要转义的字节。
	i := 0
	for ; i < len(s); i++ {
		if needsEscape(s[i]) {
			break
		}
	}
	if i == len(s) {
		return s
	}

	var b bytes.Buffer
	b.Grow(len(s) + 8)
	b.WriteString(s[:i])
	for ; i < len(s); i++ {
		c := s[i]
		if needsEscape(c) {
			fmt.Fprintf(&b, `\u%04x`, c)
		} else {
			b.WriteByte(c)
		}
	}
	return b.String()
}

func needsEscape(c byte) bool {
	return c == '"' || c == '\\' || c <= 0x1f
}

// appendFloat 以 float64 的最短往返十进制形式写入 b。
func appendFloat(b *bytes.Buffer, f float64) {
	b.WriteString(strconv.FormatFloat(f, 'g', -1, 64))
}
