package xstatus

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"strings"
	"testing"
	"time"
)

// envelope 是测试侧对响应信封的解码结构。
type envelope struct {
	Version   int     `json:"version"`
	Timestamp float64 `json:"timestamp"`
	Items     []struct {
		Key   string  `json:"key"`
		Level int     `json:"level"`
		Desc  string  `json:"desc"`
		Value float64 `json:"value"`
	} `json:"items"`
}

// rawRequest 发送原始字节并读到对端关闭为止。
func rawRequest(tb testing.TB, port uint16, data string) string {
	tb.Helper()

	conn, err := net.Dial("tcp", fmt.Sprintf("127.0.0.1:%d", port))
	if err != nil {
		tb.Fatalf("dial port %d: %v", port, err)
	}
	defer conn.Close()

	if _, err := conn.Write([]byte(data)); err != nil {
		tb.Fatalf("write request: %v", err)
	}
	_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	resp, err := io.ReadAll(conn)
	if err != nil {
		tb.Fatalf("read response: %v", err)
	}
	return string(resp)
}

func newTestServer(tb testing.TB, opts ...Option) *Server {
	tb.Helper()
	srv, err := NewServer(opts...)
	if err != nil {
		tb.Fatalf("NewServer() error = %v", err)
	}
	tb.Cleanup(func() {
		if err := srv.Close(); err != nil && !errors.Is(err, net.ErrClosed) {
			tb.Errorf("Close() error = %v", err)
		}
	})
	return srv
}

func TestServer_ServeOnceBasic(t *testing.T) {
	srv := newTestServer(t)

	var val uint16 = 1
	srv.Add(&val, "/val", Tags{TagLast, TagCount}, 0, "A value.")

	served := make(chan bool, 1)
	go func() {
		ok, err := srv.ServeOnce(10 * time.Second)
		if err != nil {
			t.Errorf("ServeOnce() error = %v", err)
		}
		served <- ok
	}()

	resp := rawRequest(t, srv.Port(), "GET / HTTP/1.1\r\n\r\n")

	if ok := <-served; !ok {
		t.Error("ServeOnce() = false, want true")
	}
	if !strings.HasPrefix(resp, "HTTP/1.1 200 OK\r\n") {
		t.Fatalf("unexpected status line: %q", resp)
	}

	body := resp[strings.Index(resp, "\r\n\r\n")+4:]
	var env envelope
	if err := json.Unmarshal([]byte(body), &env); err != nil {
		t.Fatalf("unmarshal body %q: %v", body, err)
	}

	if env.Version != 4 {
		t.Errorf("version = %d, want 4", env.Version)
	}
	now := float64(time.Now().Unix())
	if env.Timestamp < now-3600 || env.Timestamp > now+3600 {
		t.Errorf("timestamp = %f, not near %f", env.Timestamp, now)
	}
	if len(env.Items) != 1 {
		t.Fatalf("items = %d, want 1", len(env.Items))
	}
	item := env.Items[0]
	if item.Key != "/val:last-count" {
		t.Errorf("key = %q, want %q", item.Key, "/val:last-count")
	}
	if item.Level != 0 {
		t.Errorf("level = %d, want 0", item.Level)
	}
	if item.Desc != "A value." {
		t.Errorf("desc = %q, want %q", item.Desc, "A value.")
	}
	if item.Value != 1 {
		t.Errorf("value = %v, want 1", item.Value)
	}
}

func TestServer_JSONPEndToEnd(t *testing.T) {
	srv := newTestServer(t)
	srv.Start(time.Millisecond)
	defer srv.Stop()

	resp := rawRequest(t, srv.Port(), "GET /?callback=render HTTP/1.1\r\n\r\n")

	if !strings.Contains(resp, "Content-Type: application/javascript; charset=utf-8\r\n") {
		t.Errorf("missing javascript content type: %q", resp)
	}
	body := resp[strings.Index(resp, "\r\n\r\n")+4:]
	if !strings.HasPrefix(body, "render({") || !strings.HasSuffix(body, "});") {
		t.Errorf("body not wrapped as JSONP: %q", body)
	}
}

func TestServer_BadRequestEndToEnd(t *testing.T) {
	srv := newTestServer(t)
	srv.Start(time.Millisecond)
	defer srv.Stop()

	resp := rawRequest(t, srv.Port(), "POST / HTTP/1.1\r\n\r\n")
	if resp != "HTTP/1.1 400 only get is supported\r\n\r\n" {
		t.Errorf("response = %q", resp)
	}
}

func TestServer_ServeOnceTimeout(t *testing.T) {
	srv := newTestServer(t)

	before := time.Now()
	served, err := srv.ServeOnce(20 * time.Millisecond)
	elapsed := time.Since(before)

	if err != nil {
		t.Fatalf("ServeOnce() error = %v", err)
	}
	if served {
		t.Error("ServeOnce() = true with no connection")
	}
	if elapsed < 10*time.Millisecond {
		t.Errorf("returned after %v, before the timeout", elapsed)
	}
	if elapsed > 2*time.Second {
		t.Errorf("returned after %v, far beyond the timeout", elapsed)
	}
}

func TestServer_PortScanDistinctPorts(t *testing.T) {
	s1 := newTestServer(t)
	s2 := newTestServer(t)

	if s1.Port() == s2.Port() {
		t.Errorf("both servers bound port %d", s1.Port())
	}
	for _, s := range []*Server{s1, s2} {
		if s.Port() < DefaultPortMin || s.Port() > DefaultPortMax {
			t.Errorf("port %d outside default range %d-%d", s.Port(), DefaultPortMin, DefaultPortMax)
		}
	}
}

func TestServer_ExactPortConflict(t *testing.T) {
	s1 := newTestServer(t)

	_, err := NewServer(WithPort(s1.Port()))
	if !errors.Is(err, ErrNoFreePort) {
		t.Errorf("NewServer(WithPort(taken)) error = %v, want ErrNoFreePort", err)
	}
}

func TestServer_InvalidOptions(t *testing.T) {
	if _, err := NewServer(WithPortRange(2000, 1000)); err == nil {
		t.Error("NewServer() with inverted range: expected error")
	}
	if _, err := NewServer(WithRequestMaxTime(0)); err == nil {
		t.Error("NewServer() with zero RequestMaxTime: expected error")
	}
}

func TestServer_StartIdempotentStopSafe(t *testing.T) {
	srv := newTestServer(t)

	srv.Start(time.Millisecond)
	srv.Start(time.Millisecond) // 幂等

	resp := rawRequest(t, srv.Port(), "GET / HTTP/1.1\r\n\r\n")
	if !strings.HasPrefix(resp, "HTTP/1.1 200 OK\r\n") {
		t.Errorf("unexpected response: %q", resp)
	}

	srv.Stop()
	srv.Stop() // 重复 Stop 安全
}

func TestServer_StopWithoutStartReturnsImmediately(t *testing.T) {
	srv := newTestServer(t)

	done := make(chan struct{})
	go func() {
		srv.Stop()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Stop() without Start() blocked")
	}
}

func TestServer_StopInterruptsServeForever(t *testing.T) {
	srv := newTestServer(t)

	exited := make(chan error, 1)
	go func() {
		exited <- srv.ServeForever(10 * time.Millisecond)
	}()

	time.Sleep(20 * time.Millisecond)
	srv.Stop()

	select {
	case err := <-exited:
		if err != nil {
			t.Errorf("ServeForever() error = %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("ServeForever did not exit after Stop")
	}
}

func TestServer_IncompleteRequestAbandonedAfterMaxTime(t *testing.T) {
	srv := newTestServer(t, WithRequestMaxTime(50*time.Millisecond))

	served := make(chan bool, 1)
	go func() {
		ok, err := srv.ServeOnce(5 * time.Second)
		if err != nil {
			t.Errorf("ServeOnce() error = %v", err)
		}
		served <- ok
	}()

	conn, err := net.Dial("tcp", fmt.Sprintf("127.0.0.1:%d", srv.Port()))
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()
	if _, err := conn.Write([]byte("GET / HT")); err != nil {
		t.Fatalf("write: %v", err)
	}

	// 连接被接受过即算 served，即使请求从未读完。
	select {
	case ok := <-served:
		if !ok {
			t.Error("ServeOnce() = false, want true for abandoned connection")
		}
	case <-time.After(2 * time.Second):
		t.Fatal("ServeOnce did not return after request max time")
	}

	_ = conn.SetReadDeadline(time.Now().Add(time.Second))
	if data, err := io.ReadAll(conn); err != nil || len(data) != 0 {
		t.Errorf("expected clean close with no data, got %q, err %v", data, err)
	}
}

func TestServer_IsARegistry(t *testing.T) {
	srv := newTestServer(t, WithKeyPrefix("/svc"))

	var hits uint64 = 3
	cache := NewRegistry("/cache", nil)
	cache.Add(&hits, "/hit", Tags{TagCount}, LevelMedium, "Cache hit count.")
	srv.AddGroup(cache, "")

	want := `[{"key":"/svc/cache/hit:count","level":2,"desc":"Cache hit count.","value":3}]`
	if got := string(srv.ItemsJSON()); got != want {
		t.Errorf("ItemsJSON() = %s, want %s", got, want)
	}
}
