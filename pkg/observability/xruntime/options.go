package xruntime

import (
	"fmt"
	"time"
)

// 默认配置。
const (
	// DefaultKeyPrefix 是采集器状态树的默认键前缀。
	DefaultKeyPrefix = "/runtime"
	// DefaultInterval 是默认采样间隔。
	DefaultInterval = 10 * time.Second
)

// options 保存采集器配置。
type options struct {
	// KeyPrefix 是挂载到状态树时的键前缀。
	KeyPrefix string
	// Interval 是后台采样间隔。
	Interval time.Duration
}

func defaultOptions() options {
	return options{
		KeyPrefix: DefaultKeyPrefix,
		Interval:  DefaultInterval,
	}
}

// Option 配置 Collector。
type Option func(*options)

// WithKeyPrefix 设置状态树键前缀。
func WithKeyPrefix(prefix string) Option {
	return func(o *options) { o.KeyPrefix = prefix }
}

// WithInterval 设置后台采样间隔。
func WithInterval(interval time.Duration) Option {
	return func(o *options) { o.Interval = interval }
}

func validateOptions(o options) error {
	if o.Interval <= 0 {
		return fmt.Errorf("xruntime: interval must be positive, got %v", o.Interval)
	}
	return nil
}
