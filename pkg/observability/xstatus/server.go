package xstatus

import (
	"bytes"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"strconv"
	"sync"
	"sync/atomic"
	"syscall"
	"time"
)

// acceptForever 是 ServeForever 使用的 accept 超时：等效于无限等待，
// 停止请求仍然在每个轮询 tick 被检查。
const acceptForever = 24 * time.Hour

// Server 是内嵌的极简 HTTP 状态服务器，同时也是树根 Registry——
// 直接在它上面 Add/AddGroup 即可。
//
// 所有方法线程安全。服务器每次只处理一个请求，处理完即关闭连接；
// 所有等待（accept、读、写）都有界，且每个轮询 tick 都检查停止标志，
// 因此取消延迟以一个轮询间隔为上界，不受网络状况影响。
type Server struct {
	*Registry

	opts *options
	ln   *net.TCPListener
	port uint16

	stopped atomic.Bool

	// lifeMu 保护 done。与 Registry 的结构锁无关。
	lifeMu sync.Mutex
	done   chan struct{}
}

// NewServer 创建服务器并立即绑定端口。默认在 22200–22240 范围内扫描
// 第一个可用端口；WithPort 可以绑定指定端口。绑定失败是进程启动级
// 错误，快速失败且不重试（范围扫描本身除外）。
func NewServer(opts ...Option) (*Server, error) {
	options := defaultOptions()
	for _, opt := range opts {
		opt(options)
	}
	if err := validateOptions(options); err != nil {
		return nil, err
	}

	s := &Server{
		Registry: NewRegistry(options.KeyPrefix, options.ValueMu),
		opts:     options,
	}
	if err := s.bind(); err != nil {
		return nil, err
	}
	return s, nil
}

// bind 创建监听 socket。Go 的 TCP 监听器默认带 SO_REUSEADDR，接受
// 队列由运行时管理（期望长度见 listenBacklog）。
func (s *Server) bind() error {
	for port := s.opts.PortMin; ; port++ {
		ln, err := net.Listen("tcp", ":"+strconv.Itoa(int(port)))
		if err == nil {
			s.ln = ln.(*net.TCPListener)
			s.port = port
			return nil
		}
		if !errors.Is(err, syscall.EADDRINUSE) {
			return fmt.Errorf("xstatus: could not bind socket on port %d: %w", port, err)
		}
		if port >= s.opts.PortMax {
			return fmt.Errorf("%w (%d-%d)", ErrNoFreePort, s.opts.PortMin, s.opts.PortMax)
		}
	}
}

// Port 返回实际绑定的端口。
func (s *Server) Port() uint16 {
	return s.port
}

// ServeOnce 处理最多一个请求。在 timeout 内没有连接进来、或 Stop 被
// 调用时返回 false。返回 true 表示接受并处理了一个连接——不保证请求
// 完整或合法，只表示有连接被服务过。
//
// 资源类错误（accept 失败等，"暂时没有连接"除外）直接返回。
func (s *Server) ServeOnce(timeout time.Duration) (bool, error) {
	return s.serveOnce(timeout, minPollWait)
}

// ServeForever 循环处理请求直到 Stop 被调用。每处理完一个请求休眠
// throttle，作为对共享值锁的限流；轮询间隔取 throttle/10，下限
// minPollWait。资源类错误终止循环并返回。
func (s *Server) ServeForever(throttle time.Duration) error {
	pollWait := throttle / 10
	if pollWait < minPollWait {
		pollWait = minPollWait
	}

	for !s.stopped.Load() {
		served, err := s.serveOnce(acceptForever, pollWait)
		if err != nil {
			return err
		}
		if served {
			time.Sleep(throttle)
		}
	}
	return nil
}

// Start 启动后台 goroutine 运行 ServeForever。幂等：已启动时再次调用
// 是空操作。后台循环因资源错误退出时记录日志（见 WithLogger）。
func (s *Server) Start(throttle time.Duration) {
	s.lifeMu.Lock()
	defer s.lifeMu.Unlock()

	if s.done != nil {
		return
	}

	done := make(chan struct{})
	s.done = done
	go func() {
		defer close(done)
		if err := s.ServeForever(throttle); err != nil {
			s.opts.Logger.Error("xstatus: serve loop exited", slog.Any("error", err))
		}
	}()
}

// Stop 请求停止服务。若 Start 启动过后台 goroutine 则阻塞等待其退出；
// 否则立即返回。可以从任意线程调用，包括进程的退出路径，且无需先调
// 用过 Start。停止是协作式的，延迟以一个轮询间隔为上界。
func (s *Server) Stop() {
	s.stopped.Store(true)

	s.lifeMu.Lock()
	defer s.lifeMu.Unlock()
	if s.done != nil {
		<-s.done
		s.done = nil
	}
}

// Close 停止服务并关闭监听 socket。关闭后服务器不可再使用。
func (s *Server) Close() error {
	s.Stop()
	return s.ln.Close()
}

// serveOnce 执行一轮 Accepting→Reading→Responding。accept 以 pollWait
// 为步长轮询，每个 tick 前后检查停止标志，超过 acceptTimeout 仍无连接
// 时返回 false。
func (s *Server) serveOnce(acceptTimeout, pollWait time.Duration) (bool, error) {
	deadline := time.Now().Add(acceptTimeout)

	for {
		if s.stopped.Load() {
			return false, nil
		}

		if err := s.ln.SetDeadline(time.Now().Add(pollWait)); err != nil {
			return false, fmt.Errorf("xstatus: set accept deadline: %w", err)
		}

		conn, err := s.ln.Accept()
		if err != nil {
			var ne net.Error
			if errors.As(err, &ne) && ne.Timeout() {
				if time.Now().After(deadline) {
					return false, nil
				}
				continue
			}
			if errors.Is(err, net.ErrClosed) {
				return false, nil
			}
			return false, fmt.Errorf("xstatus: error accepting connection: %w", err)
		}

		return s.handleConn(conn, pollWait), nil
	}
}

// handleConn 处理一个已接受的连接：有界轮询地读到头部结束符
// CRLFCRLF，生成响应后有界轮询地写回，最后无条件关闭连接。
//
// 请求超时、对端关闭或读写出错都只是放弃这个连接，依旧算作"served"；
// 只有停止请求返回 false。
func (s *Server) handleConn(conn net.Conn, pollWait time.Duration) bool {
	defer conn.Close() //nolint:errcheck // 放弃连接的所有路径都走这里

	reqDeadline := time.Now().Add(s.opts.RequestMaxTime)

	var data []byte
	buf := make([]byte, 2048)
	for {
		if s.stopped.Load() {
			return false
		}

		_ = conn.SetReadDeadline(time.Now().Add(pollWait))
		n, err := conn.Read(buf)
		if n > 0 {
			data = append(data, buf[:n]...)
		}
		if len(data) >= 4 && bytes.Equal(data[len(data)-4:], crlfcrlf) {
			break
		}
		if err != nil {
			var ne net.Error
			if errors.As(err, &ne) && ne.Timeout() {
				if time.Now().After(reqDeadline) {
					return true
				}
				continue
			}
			return true
		}
	}

	resp := s.doHTTP(data)

	for len(resp) > 0 {
		if s.stopped.Load() {
			return false
		}

		_ = conn.SetWriteDeadline(time.Now().Add(pollWait))
		n, err := conn.Write(resp)
		resp = resp[n:]
		if err != nil {
			var ne net.Error
			if errors.As(err, &ne) && ne.Timeout() {
				if time.Now().After(reqDeadline) {
					return true
				}
				continue
			}
			return true
		}
	}
	return true
}

var crlfcrlf = []byte("\r\n\r\n")
