package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	retry "github.com/avast/retry-go/v5"
)

// Envelope 是状态服务器响应的顶层结构。
type Envelope struct {
	Version   int     `json:"version"`
	Timestamp float64 `json:"timestamp"`
	Items     []Item  `json:"items"`
}

// Item 是状态树中的一个条目。
type Item struct {
	Key   string          `json:"key"`
	Level int             `json:"level"`
	Desc  string          `json:"desc"`
	Value json.RawMessage `json:"value"`
}

// supportedVersion 是客户端能解析的信封版本。
const supportedVersion = 4

// Client xstatus 客户端。
type Client struct {
	timeout time.Duration
	retries int
	httpc   *http.Client
}

// NewClient 创建客户端。
func NewClient(timeout time.Duration, retries int) *Client {
	return &Client{
		timeout: timeout,
		retries: retries,
		httpc: &http.Client{
			Timeout: timeout,
			// 服务端是单连接轮询模型，禁用连接复用避免占住它的唯一槽位。
			Transport: &http.Transport{DisableKeepAlives: true},
		},
	}
}

// Fetch 拉取一台服务器的状态信封，失败时按固定间隔重试。
func (c *Client) Fetch(ctx context.Context, addr string) (*Envelope, error) {
	target, err := normalizeAddr(addr)
	if err != nil {
		return nil, err
	}

	return retry.NewWithData[*Envelope](
		retry.Context(ctx),
		retry.Attempts(attempts(c.retries)),
		retry.Delay(200*time.Millisecond),
		retry.DelayType(retry.FixedDelay),
		retry.LastErrorOnly(true),
	).Do(func() (*Envelope, error) {
		return c.fetchOnce(ctx, target)
	})
}

// FetchRaw 拉取原始响应体，用于 --json 输出。
func (c *Client) FetchRaw(ctx context.Context, addr string) ([]byte, error) {
	target, err := normalizeAddr(addr)
	if err != nil {
		return nil, err
	}

	return retry.NewWithData[[]byte](
		retry.Context(ctx),
		retry.Attempts(attempts(c.retries)),
		retry.Delay(200*time.Millisecond),
		retry.DelayType(retry.FixedDelay),
		retry.LastErrorOnly(true),
	).Do(func() ([]byte, error) {
		return c.get(ctx, target)
	})
}

func (c *Client) fetchOnce(ctx context.Context, target string) (*Envelope, error) {
	body, err := c.get(ctx, target)
	if err != nil {
		return nil, err
	}

	var env Envelope
	if err := json.Unmarshal(body, &env); err != nil {
		return nil, fmt.Errorf("解析响应失败: %w", err)
	}
	if env.Version != supportedVersion {
		return nil, fmt.Errorf("不支持的信封版本 %d（期望 %d）", env.Version, supportedVersion)
	}
	return &env, nil
}

func (c *Client) get(ctx context.Context, target string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return nil, fmt.Errorf("构建请求失败: %w", err)
	}

	resp, err := c.httpc.Do(req)
	if err != nil {
		return nil, fmt.Errorf("连接失败: %w", err)
	}
	defer func() { _ = resp.Body.Close() }() //nolint:errcheck // defer cleanup

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("读取响应失败: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("服务器返回 %s", resp.Status)
	}
	return body, nil
}

// normalizeAddr 将地址规范化为完整 URL。
// 接受 host:port、裸端口号（默认主机 127.0.0.1）或完整 http:// URL。
func normalizeAddr(addr string) (string, error) {
	if addr == "" {
		return "", fmt.Errorf("地址不能为空")
	}
	if strings.HasPrefix(addr, "http://") || strings.HasPrefix(addr, "https://") {
		return addr, nil
	}
	if port, err := strconv.ParseUint(addr, 10, 16); err == nil {
		return fmt.Sprintf("http://127.0.0.1:%d/", port), nil
	}
	if _, _, err := net.SplitHostPort(addr); err != nil {
		return "", fmt.Errorf("无效地址 %q（期望 host:port 或端口号）: %w", addr, err)
	}
	return "http://" + addr + "/", nil
}

// attempts 将重试次数转换为 retry-go 的总尝试次数。
func attempts(retries int) uint {
	if retries < 0 {
		retries = 0
	}
	return uint(retries) + 1
}
