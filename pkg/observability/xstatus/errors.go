package xstatus

import "errors"

// 预定义错误。
var (
	// ErrNoFreePort 表示端口扫描范围内没有可绑定的端口。
	ErrNoFreePort = errors.New("xstatus: could not bind socket on any port in range")
)
