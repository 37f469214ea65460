// xstatusctl 是 xstatus 状态服务器的命令行客户端。
//
// 用法:
//
//	xstatusctl [全局选项] <命令> [命令参数]
//
// 全局选项:
//
//	-t, --timeout  单次请求超时时间 (默认: 5s)
//	-r, --retries  请求失败重试次数 (默认: 3)
//
// 命令:
//
//	get <地址>...   拉取一个或多个状态服务器的当前状态
//	watch <地址>    定期拉取并打印单个服务器的状态
//	help            显示帮助信息
//
// 地址可以是 host:port，也可以是裸端口号（默认主机 127.0.0.1）。
// 状态服务器默认监听 22200-22240 范围内的第一个空闲端口。
//
// 退出码:
//
//	0: 命令执行成功
//	1: 命令执行失败（连接失败、响应异常等）
//	2: 参数错误（缺少地址、未知命令等）
//
// 示例:
//
//	xstatusctl get 22200                  # 拉取本机默认端口的状态
//	xstatusctl get app1:22200 app2:22200  # 并发拉取多台服务器
//	xstatusctl get --level 1 22200        # 只显示重要程度 <= 1 的条目
//	xstatusctl watch --interval 2s 22200  # 每 2 秒刷新一次
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/urfave/cli/v3"
)

// defaultTimeout 单次请求默认超时时间。
const defaultTimeout = 5 * time.Second

// defaultRetries 默认重试次数。
const defaultRetries = 3

// 版本信息（可通过 -ldflags 注入，例如:
//
//	go build -ldflags "-X main.Version=1.0.0 -X main.GitCommit=$(git rev-parse --short HEAD) -X main.BuildTime=$(date -u +%Y-%m-%dT%H:%M:%SZ)"
//
// ）。
var (
	Version   = "0.1.0-dev"
	GitCommit = "unknown"
	BuildTime = "unknown"
)

func main() {
	os.Exit(run())
}

// createApp 创建 CLI 应用。
func createApp() *cli.Command {
	return &cli.Command{
		Name:    "xstatusctl",
		Usage:   "xstatus 状态服务器命令行客户端",
		Version: fmt.Sprintf("%s (commit: %s, built: %s)", Version, GitCommit, BuildTime),
		Flags: []cli.Flag{
			&cli.DurationFlag{
				Name:    "timeout",
				Aliases: []string{"t"},
				Usage:   "单次请求超时时间",
				Value:   defaultTimeout,
			},
			&cli.IntFlag{
				Name:    "retries",
				Aliases: []string{"r"},
				Usage:   "请求失败重试次数",
				Value:   defaultRetries,
			},
		},
		Commands:       createCommands(),
		DefaultCommand: "help",
		Authors: []any{
			"XStatus Team",
		},
		// 设计决策: 禁止 urfave/cli 直接调用 os.Exit，
		// 由 run() 统一处理退出码映射，确保与文档退出码契约一致。
		ExitErrHandler: func(_ context.Context, _ *cli.Command, err error) {
			if _, ok := err.(cli.ExitCoder); ok {
				fmt.Fprintln(os.Stderr, err)
			}
		},
		Description: `xstatusctl 通过 xstatus 的轮询 HTTP 接口读取进程内状态树，
用于排障时快速查看一台或多台服务器的内部计数器。

主要命令:
  get <地址>...       拉取当前状态并逐行打印条目
    --level, -l       只显示重要程度不超过该值的条目 (0 最重要)
    --json            输出原始 JSON 信封
  watch <地址>        定期拉取并打印
    --interval, -i    刷新间隔 (默认: 1s)`,
	}
}

func run() int {
	app := createApp()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	setupSignalHandler(cancel)

	if err := app.Run(ctx, os.Args); err != nil {
		var exitErr *exitError
		if errors.As(err, &exitErr) {
			return exitErr.code
		}
		var usageErr *usageError
		if errors.As(err, &usageErr) {
			fmt.Fprintf(os.Stderr, "参数错误: %v\n", usageErr)
			return 2
		}
		// CLI 框架产生的参数错误（如未知 flag、未知命令）也返回退出码 2，
		// 与文档契约"参数错误 → 退出码 2"保持一致。
		if isCLIUsageError(err) {
			return 2
		}
		fmt.Fprintf(os.Stderr, "错误: %v\n", err)
		return 1
	}

	return 0
}
