package cmd

import (
	"fmt"
	"os"
	"strings"

	"multicryptobot/src/config"
	"multicryptobot/src/trading"

	"github.com/xpwu/go-cmd/arg"
	"github.com/xpwu/go-cmd/cmd"
)

// RegisterRunCmd 注册主循环命令
func RegisterRunCmd() {
	var exchange string
	var live bool

	cmd.RegisterCmd("run", "run the multi-pair trading loop until interrupted", func(args *arg.Arg) {
		args.String(&exchange, "cex", "exchange name (default: from config.json)")
		args.Bool(&live, "live", "allow live orders when paper_trading is false in the config store")
		args.Parse()

		cfg := overrideConfig(exchange, live)
		if err := runTradingLoop(cfg); err != nil {
			fmt.Printf("❌ Trading system error: %v\n", err)
			os.Exit(1)
		}
	})
}

// RegisterOnceCmd 注册单轮执行命令
func RegisterOnceCmd() {
	var exchange string

	cmd.RegisterCmd("once", "run a single iteration over all active pairs and print the portfolio", func(args *arg.Arg) {
		args.String(&exchange, "cex", "exchange name (default: from config.json)")
		args.Parse()

		cfg := overrideConfig(exchange, false)
		if err := runSingleIteration(cfg); err != nil {
			fmt.Printf("❌ Iteration failed: %v\n", err)
			os.Exit(1)
		}
	})
}

// overrideConfig 命令行参数覆盖 config.json 中的值，返回副本
func overrideConfig(exchange string, live bool) *config.Config {
	cfg := *config.AppConfig
	if exchange != "" {
		cfg.Exchange = exchange
	}
	if live {
		cfg.EnableTrading = true
	}
	return &cfg
}

func runTradingLoop(cfg *config.Config) error {
	fmt.Println("🤖 Multi-Crypto Trading Bot")
	fmt.Println(strings.Repeat("=", 50))
	fmt.Printf("🏢 Exchange: %s\n", cfg.Exchange)
	fmt.Printf("⏰ Timeframe: %s\n", cfg.Engine.Timeframe)

	ctx, cancel := signalContext()
	defer cancel()

	ts, err := trading.NewTradingSystem(ctx, cfg)
	if err != nil {
		return fmt.Errorf("failed to create trading system: %w", err)
	}
	defer func() {
		if err := ts.Close(); err != nil {
			fmt.Printf("⚠️ Close: %v\n", err)
		}
	}()

	if ts.Mode() == "live" {
		fmt.Println("🔴 LIVE TRADING MODE - real orders will be placed")
	} else {
		fmt.Println("📝 Paper trading mode - orders are simulated")
	}
	fmt.Println("⚠️ Press Ctrl+C to stop")

	err = ts.Run(ctx)
	ts.PrintReport()
	if err != nil && ctx.Err() == nil {
		return err
	}

	fmt.Println("✅ Trading system stopped")
	return nil
}

func runSingleIteration(cfg *config.Config) error {
	ctx, cancel := signalContext()
	defer cancel()

	ts, err := trading.NewTradingSystem(ctx, cfg)
	if err != nil {
		return fmt.Errorf("failed to create trading system: %w", err)
	}
	defer func() { _ = ts.Close() }()

	if _, err := ts.Config().WarmCache(ctx); err != nil {
		fmt.Printf("⚠️ Cache warm failed: %v\n", err)
	}

	fmt.Printf("🔄 Running one iteration (%s)...\n", ts.Mode())
	if err := ts.RunOnce(ctx); err != nil {
		return err
	}

	ts.PrintReport()
	return nil
}
