package xstatus

import (
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"
)

// 默认配置值。
const (
	// DefaultPortMin 端口扫描范围下界（含）。
	DefaultPortMin uint16 = 22200

	// DefaultPortMax 端口扫描范围上界（含）。
	DefaultPortMax uint16 = 22240

	// DefaultThrottle 两次请求之间的默认休眠时间，保护与业务共享的
	// 值锁不被高频轮询反复抢占。
	DefaultThrottle = 50 * time.Millisecond

	// DefaultRequestMaxTime 单个请求（读+写）的最长处理时间，超过后
	// 放弃连接。
	DefaultRequestMaxTime = 2 * time.Second
)

// minPollWait 轮询间隔下限，防止 throttle 很小时退化成忙等。
const minPollWait = 200 * time.Microsecond

// listenBacklog 期望的监听队列长度。服务器单连接处理，突发访问最多在
// 内核队列中积压这么多连接。Go 的 net 包不暴露单个监听器的 backlog
// （由系统 somaxconn 决定），此常量仅作文档保留。
const listenBacklog = 32

// options 服务器配置（非导出，仅通过 Option 函数式选项设置）。
type options struct {
	// KeyPrefix 根 Registry 的 key 前缀。
	KeyPrefix string

	// ValueMu 与应用共享的值锁，nil 表示没有。
	ValueMu *sync.Mutex

	// PortMin、PortMax 绑定时的端口扫描范围（含两端）。WithPort 把
	// 两者设成同一个值即只试该端口。
	PortMin uint16
	PortMax uint16

	// RequestMaxTime 单请求最长处理时间。
	RequestMaxTime time.Duration

	// Logger 后台服务循环的日志输出。仅用于 Start 启动的后台
	// goroutine 退出路径，同步调用（ServeOnce/ServeForever）的错误
	// 直接返回给调用方。
	Logger *slog.Logger
}

// Option 配置选项函数类型。
type Option func(*options)

// defaultOptions 返回默认配置。
func defaultOptions() *options {
	return &options{
		PortMin:        DefaultPortMin,
		PortMax:        DefaultPortMax,
		RequestMaxTime: DefaultRequestMaxTime,
		Logger:         slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
}

// WithKeyPrefix 设置根 Registry 的 key 前缀。
func WithKeyPrefix(prefix string) Option {
	return func(o *options) {
		o.KeyPrefix = prefix
	}
}

// WithValueLock 设置与应用共享的值锁。锁由应用创建并持有生命周期，
// 服务器只在快照阶段短暂加锁。
func WithValueLock(mu *sync.Mutex) Option {
	return func(o *options) {
		o.ValueMu = mu
	}
}

// WithPort 绑定指定端口，不做范围扫描。传 0 等价于默认范围扫描。
func WithPort(port uint16) Option {
	return func(o *options) {
		if port == 0 {
			o.PortMin, o.PortMax = DefaultPortMin, DefaultPortMax
			return
		}
		o.PortMin, o.PortMax = port, port
	}
}

// WithPortRange 设置端口扫描范围（含两端）。
func WithPortRange(min, max uint16) Option {
	return func(o *options) {
		o.PortMin, o.PortMax = min, max
	}
}

// WithRequestMaxTime 设置单请求最长处理时间。
func WithRequestMaxTime(d time.Duration) Option {
	return func(o *options) {
		o.RequestMaxTime = d
	}
}

// WithLogger 设置后台服务循环的日志输出。默认丢弃。
func WithLogger(logger *slog.Logger) Option {
	return func(o *options) {
		if logger != nil {
			o.Logger = logger
		}
	}
}

// validateOptions 校验配置合法性。
func validateOptions(opts *options) error {
	if opts.PortMin == 0 || opts.PortMax == 0 {
		return fmt.Errorf("xstatus: port range must not contain 0 (got %d-%d)", opts.PortMin, opts.PortMax)
	}
	if opts.PortMin > opts.PortMax {
		return fmt.Errorf("xstatus: invalid port range %d-%d", opts.PortMin, opts.PortMax)
	}
	if opts.RequestMaxTime <= 0 {
		return fmt.Errorf("xstatus: RequestMaxTime must be positive (got %v)", opts.RequestMaxTime)
	}
	return nil
}
