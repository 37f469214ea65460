package xruntime

import (
	"runtime"
	"sync"
	"time"

	"github.com/omeyang/xstatus/pkg/observability/xstatus"
)

// Collector 采样 Go 运行时指标并暴露为 xstatus 状态树。
//
// 所有指标字段由同一把互斥锁保护，该锁同时作为 Registry 的值锁，
// 保证单次渲染看到的是同一轮采样的结果。
type Collector struct {
	opts options
	reg  *xstatus.Registry

	mu             sync.Mutex
	goroutines     int64
	heapBytes      uint64
	heapObjects    uint64
	gcCount        uint64
	gcPauseSeconds float64

	lifeMu sync.Mutex
	done   chan struct{} // 非 nil 表示后台采样已启动
	stop   chan struct{}
}

// NewCollector 创建采集器并完成一次初始采样。
func NewCollector(opts ...Option) (*Collector, error) {
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}
	if err := validateOptions(o); err != nil {
		return nil, err
	}

	c := &Collector{opts: o}
	c.reg = xstatus.NewRegistry(o.KeyPrefix, &c.mu)
	c.reg.Add(&c.goroutines, "/goroutines", xstatus.Tags{xstatus.TagCurrent}, xstatus.LevelMedium, "Number of live goroutines.")
	c.reg.Add(&c.heapBytes, "/heap_bytes", xstatus.Tags{xstatus.TagSize, xstatus.TagCurrent}, xstatus.LevelMedium, "Bytes of allocated heap objects.")
	c.reg.Add(&c.heapObjects, "/heap_objects", xstatus.Tags{xstatus.TagSize, xstatus.TagCurrent}, xstatus.LevelLow, "Number of allocated heap objects.")
	c.reg.Add(&c.gcCount, "/gc", xstatus.Tags{xstatus.TagCount}, xstatus.LevelLow, "Completed GC cycles.")
	c.reg.Add(&c.gcPauseSeconds, "/gc_pause", xstatus.Tags{xstatus.TagDuration, xstatus.TagTotal}, xstatus.LevelLow, "Cumulative GC stop-the-world pause in seconds.")

	c.Collect()
	return c, nil
}

// Registry 返回采集器的状态树，用于挂载到服务器或父级分组。
func (c *Collector) Registry() *xstatus.Registry {
	return c.reg
}

// Collect 立即执行一次采样。
func (c *Collector) Collect() {
	goroutines := int64(runtime.NumGoroutine())
	var ms runtime.MemStats
	runtime.ReadMemStats(&ms)

	c.mu.Lock()
	defer c.mu.Unlock()
	c.goroutines = goroutines
	c.heapBytes = ms.HeapAlloc
	c.heapObjects = ms.HeapObjects
	c.gcCount = uint64(ms.NumGC)
	c.gcPauseSeconds = float64(ms.PauseTotalNs) / float64(time.Second)
}

// Start 启动后台定期采样。重复调用无效果。
func (c *Collector) Start() {
	c.lifeMu.Lock()
	defer c.lifeMu.Unlock()
	if c.done != nil {
		return
	}
	c.stop = make(chan struct{})
	c.done = make(chan struct{})

	go func(stop, done chan struct{}) {
		defer close(done)
		ticker := time.NewTicker(c.opts.Interval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				c.Collect()
			case <-stop:
				return
			}
		}
	}(c.stop, c.done)
}

// Stop 停止后台采样并等待采样协程退出。未启动时立即返回。
func (c *Collector) Stop() {
	c.lifeMu.Lock()
	defer c.lifeMu.Unlock()
	if c.done == nil {
		return
	}
	close(c.stop)
	<-c.done
	c.done = nil
	c.stop = nil
}
