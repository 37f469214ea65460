package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"sort"
	"syscall"
	"time"

	"github.com/urfave/cli/v3"
	"golang.org/x/sync/errgroup"
)

// exitError 表示需要非零退出码但已完成输出的场景。
// 命令内部已完成所有输出，main 只需设置退出码。
type exitError struct {
	code int
}

func (e *exitError) Error() string { return "" }

// usageError 表示用户参数错误，映射到退出码 2。
type usageError struct {
	msg string
}

func (e *usageError) Error() string { return e.msg }

// isCLIUsageError 判断错误是否由 CLI 框架的参数解析产生。
func isCLIUsageError(err error) bool {
	var coder cli.ExitCoder
	return errors.As(err, &coder)
}

// levelAll 表示不过滤重要程度。
const levelAll = -1

// 创建所有子命令。
func createCommands() []*cli.Command {
	return []*cli.Command{
		createGetCommand(),
		createWatchCommand(),
	}
}

// createGetCommand 创建 get 子命令。
func createGetCommand() *cli.Command {
	return &cli.Command{
		Name:      "get",
		Aliases:   []string{"g"},
		Usage:     "拉取一个或多个状态服务器的当前状态",
		ArgsUsage: "<地址>...",
		Flags: []cli.Flag{
			&cli.IntFlag{
				Name:    "level",
				Aliases: []string{"l"},
				Usage:   "只显示重要程度不超过该值的条目 (0 最重要)",
				Value:   levelAll,
			},
			&cli.BoolFlag{
				Name:  "json",
				Usage: "输出原始 JSON 信封",
			},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			client := NewClient(cmd.Duration("timeout"), int(cmd.Int("retries")))
			return cmdGet(ctx, client, cmd.Args().Slice(), int(cmd.Int("level")), cmd.Bool("json"))
		},
	}
}

// createWatchCommand 创建 watch 子命令。
func createWatchCommand() *cli.Command {
	return &cli.Command{
		Name:      "watch",
		Aliases:   []string{"w"},
		Usage:     "定期拉取并打印单个服务器的状态",
		ArgsUsage: "<地址>",
		Flags: []cli.Flag{
			&cli.IntFlag{
				Name:    "level",
				Aliases: []string{"l"},
				Usage:   "只显示重要程度不超过该值的条目 (0 最重要)",
				Value:   levelAll,
			},
			&cli.DurationFlag{
				Name:    "interval",
				Aliases: []string{"i"},
				Usage:   "刷新间隔",
				Value:   time.Second,
			},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			client := NewClient(cmd.Duration("timeout"), int(cmd.Int("retries")))
			return cmdWatch(ctx, client, cmd.Args().Slice(), int(cmd.Int("level")), cmd.Duration("interval"))
		},
	}
}

// cmdGet 并发拉取所有地址，按参数顺序输出结果。
func cmdGet(ctx context.Context, client *Client, addrs []string, level int, rawJSON bool) error {
	if len(addrs) == 0 {
		return &usageError{msg: "get 命令需要至少一个地址"}
	}

	if rawJSON {
		return getRaw(ctx, client, addrs)
	}

	envelopes := make([]*Envelope, len(addrs))
	g, gctx := errgroup.WithContext(ctx)
	for i, addr := range addrs {
		i, addr := i, addr
		g.Go(func() error {
			env, err := client.Fetch(gctx, addr)
			if err != nil {
				return fmt.Errorf("%s: %w", addr, err)
			}
			envelopes[i] = env
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	for i, env := range envelopes {
		if len(addrs) > 1 {
			fmt.Printf("== %s ==\n", addrs[i])
		}
		printEnvelope(env, level)
	}
	return nil
}

// getRaw 输出原始响应体，多个地址逐个拉取以保持输出顺序。
func getRaw(ctx context.Context, client *Client, addrs []string) error {
	for _, addr := range addrs {
		body, err := client.FetchRaw(ctx, addr)
		if err != nil {
			return fmt.Errorf("%s: %w", addr, err)
		}
		fmt.Println(string(body))
	}
	return nil
}

// cmdWatch 定期拉取并打印，直到收到取消信号。
func cmdWatch(ctx context.Context, client *Client, addrs []string, level int, interval time.Duration) error {
	if len(addrs) != 1 {
		return &usageError{msg: "watch 命令需要且仅需要一个地址"}
	}
	if interval <= 0 {
		return &usageError{msg: "刷新间隔必须为正"}
	}
	addr := addrs[0]

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		env, err := client.Fetch(ctx, addr)
		if err != nil {
			// 单次失败不退出，服务器可能正在重启。
			fmt.Fprintf(os.Stderr, "%s: %v\n", addr, err)
		} else {
			fmt.Printf("-- %s --\n", time.Unix(int64(env.Timestamp), 0).Format(time.RFC3339))
			printEnvelope(env, level)
		}

		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
	}
}

// printEnvelope 按键排序逐行打印条目。
func printEnvelope(env *Envelope, level int) {
	items := filterItems(env.Items, level)
	sort.SliceStable(items, func(i, j int) bool { return items[i].Key < items[j].Key })

	for _, it := range items {
		if it.Desc != "" {
			fmt.Printf("%s = %s  # %s\n", it.Key, string(it.Value), it.Desc)
		} else {
			fmt.Printf("%s = %s\n", it.Key, string(it.Value))
		}
	}
}

// filterItems 返回重要程度不超过 level 的条目。level 为 levelAll 时不过滤。
func filterItems(items []Item, level int) []Item {
	if level == levelAll {
		return items
	}
	filtered := make([]Item, 0, len(items))
	for _, it := range items {
		if it.Level <= level {
			filtered = append(filtered, it)
		}
	}
	return filtered
}

// setupSignalHandler 设置信号处理。
// 设计决策: 第一次信号优雅取消，第二次信号强制退出（退出码 130 = 128 + SIGINT）。
// 当命令阻塞时，用户可通过再次 Ctrl+C 强制退出。
func setupSignalHandler(cancel context.CancelFunc) {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		cancel() // 第一次信号: 优雅取消

		<-sigCh
		signal.Stop(sigCh) // 回收订阅
		os.Exit(130)       // 第二次信号: 强制退出
	}()
}
