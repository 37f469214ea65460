package xstatus

import (
	"bytes"
	"strconv"
	"strings"
	"time"
)

// envelopeVersion 响应信封的格式版本号。
const envelopeVersion = 4

// callbackParam JSONP 回调参数名（含等号）。
const callbackParam = "callback="

// errorResponse 生成无响应体的 400 响应。
func errorResponse(message string) []byte {
	return []byte("HTTP/1.1 400 " + message + "\r\n\r\n")
}

// doHTTP 解析累积到的请求字节并生成完整响应。
//
// 只接受 GET 和 HTTP/1.1，其余一律 400；路径对路由没有意义，所有路径
// 返回同一份快照。
func (s *Server) doHTTP(req []byte) []byte {
	if len(req) == 0 {
		return errorResponse("empty request")
	}

	i := bytes.IndexByte(req, ' ')
	if i < 0 {
		return errorResponse("missing method")
	}
	method := string(req[:i])
	if method != "GET" {
		return errorResponse("only get is supported")
	}

	rest := req[i+1:]
	j := bytes.IndexByte(rest, ' ')
	if j < 0 {
		return errorResponse("missing url")
	}
	url := string(rest[:j])

	rest = rest[j+1:]
	k := bytes.IndexByte(rest, '\r')
	if k < 0 {
		return errorResponse("missing version")
	}
	if version := string(rest[:k]); version != "HTTP/1.1" {
		return errorResponse("only http/1.1 is supported")
	}

	cb := extractCallback(url)
	content := s.renderEnvelope(cb)

	var b bytes.Buffer
	b.Grow(len(content) + 128)
	b.WriteString("HTTP/1.1 200 OK\r\n")
	if cb != "" {
		b.WriteString("Content-Type: application/javascript; charset=utf-8\r\n")
	} else {
		b.WriteString("Content-Type: application/json; charset=utf-8\r\n")
	}
	b.WriteString("Cache-Control: no-cache, no-store\r\n")
	b.WriteString("Content-Length: ")
	b.WriteString(strconv.Itoa(len(content)))
	b.WriteString("\r\n\r\n")
	b.Write(content)
	return b.Bytes()
}

// extractCallback 从路径+查询串中提取 JSONP 回调名。只看 callback=
// 的第一次出现，且其前一个字节必须是 '?' 或 '&'；回调名到下一个 '&'
// 或串尾为止。
//
// 回调名不做校验也不做转义，原样回显（已知的反射型内容风险，见包
// 文档）。
func extractCallback(url string) string {
	i := strings.Index(url, callbackParam)
	if i <= 0 {
		return ""
	}
	if url[i-1] != '?' && url[i-1] != '&' {
		return ""
	}
	cb := url[i+len(callbackParam):]
	if j := strings.IndexByte(cb, '&'); j >= 0 {
		cb = cb[:j]
	}
	return cb
}

// renderEnvelope 渲染响应体：完整的 JSON 信封，或 cb 非空时的 JSONP
// 包装 <cb>(<envelope>);。
func (s *Server) renderEnvelope(cb string) []byte {
	var b bytes.Buffer

	if cb != "" {
		b.WriteString(cb)
		b.WriteByte('(')
	}

	b.WriteString(`{"version":`)
	b.WriteString(strconv.Itoa(envelopeVersion))
	b.WriteString(`,"timestamp":`)
	sec := float64(time.Now().UnixNano()) / 1e9
	b.WriteString(strconv.FormatFloat(sec, 'f', -1, 64))
	b.WriteString(`,"items":[`)

	first := true
	s.appendItems(&b, "", &first)

	b.WriteString("]}")

	if cb != "" {
		b.WriteString(");")
	}
	return b.Bytes()
}
