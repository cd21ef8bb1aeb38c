package cmd

import (
	"context"
	"fmt"
	"os"
	"time"

	"multicryptobot/src/cex"
	"multicryptobot/src/config"

	"github.com/xpwu/go-cmd/arg"
	"github.com/xpwu/go-cmd/cmd"
)

// RegisterPingCmd 注册ping测试命令
func RegisterPingCmd() {
	var verbose bool
	var timeout int
	var exchange string

	cmd.RegisterCmd("ping", "test connectivity to the exchange API", func(args *arg.Arg) {
		args.Bool(&verbose, "v", "verbose output with detailed information")
		args.Int(&timeout, "t", "timeout in seconds (default: 10)")
		args.String(&exchange, "cex", "exchange name (default: from config.json)")
		args.Parse()

		// 设置默认超时
		if timeout <= 0 {
			timeout = 10
		}
		if exchange == "" {
			exchange = config.AppConfig.Exchange
		}

		err := runPingTest(exchange, verbose, timeout)
		if err != nil {
			fmt.Printf("❌ Ping test failed: %v\n", err)
			os.Exit(1)
		}
		fmt.Println("✅ Ping test successful!")
	})
}

// runPingTest 执行ping测试
func runPingTest(exchange string, verbose bool, timeoutSeconds int) error {
	client, err := cex.CreateCEXClient(exchange)
	if err != nil {
		return err
	}

	if verbose {
		fmt.Println("🌐 交易所API连通性测试")
		fmt.Println("================================")
		fmt.Printf("📡 交易所: %s\n", client.GetName())
		fmt.Printf("⏰ 超时时间: %d秒\n", timeoutSeconds)
		fmt.Println()
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Duration(timeoutSeconds)*time.Second)
	defer cancel()

	if verbose {
		fmt.Print("🔄 正在测试连接...")
	}

	startTime := time.Now()
	err = client.Ping(ctx)
	latency := time.Since(startTime)

	if err != nil {
		if verbose {
			fmt.Printf("\n❌ 连接失败: %v\n", err)
			fmt.Printf("⏱️ 测试耗时: %v\n", latency)
		}
		return err
	}

	if verbose {
		fmt.Printf(" 完成!\n")
		fmt.Printf("✅ 服务器响应正常\n")
		fmt.Printf("⏱️ 响应延迟: %v\n", latency)
		fmt.Println()
		fmt.Println("📊 连接状态: 正常")
		fmt.Printf("🌍 网络质量: %s\n", latencyGrade(latency))
	}

	return nil
}

// latencyGrade 网络质量评级
func latencyGrade(latency time.Duration) string {
	switch {
	case latency < 100*time.Millisecond:
		return "优秀"
	case latency < 300*time.Millisecond:
		return "良好"
	case latency < time.Second:
		return "一般"
	default:
		return "较差"
	}
}
