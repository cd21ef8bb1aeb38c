package cmd

import (
	"context"
	"fmt"
	"os"
	"time"

	"multicryptobot/src/cex"
	"multicryptobot/src/config"
	"multicryptobot/src/database"
	"multicryptobot/src/timeframes"

	"github.com/shopspring/decimal"
	"github.com/xpwu/go-cmd/arg"
	"github.com/xpwu/go-cmd/cmd"
)

// RegisterKlineTestCmd 注册K线数据测试命令
func RegisterKlineTestCmd() {
	var symbol string
	var interval string
	var limit int
	var verbose bool
	var save bool

	cmd.RegisterCmd("kline", "fetch candles from the exchange, optionally saving them as market data", func(args *arg.Arg) {
		args.String(&symbol, "s", "trading pair (default: BTC/USDT)")
		args.String(&interval, "i", "kline interval (default: engine timeframe)")
		args.Int(&limit, "l", "number of klines (default: 10, max: 1000)")
		args.Bool(&verbose, "v", "verbose output with detailed information")
		args.Bool(&save, "save", "store the candles in the market_data table")
		args.Parse()

		// 设置默认值
		if symbol == "" {
			symbol = "BTC/USDT"
		}
		if interval == "" {
			interval = config.AppConfig.Engine.Timeframe
		}
		if limit <= 0 {
			limit = 10
		}
		if limit > 1000 {
			limit = 1000
		}

		err := runKlineTest(symbol, interval, limit, verbose, save)
		if err != nil {
			fmt.Printf("❌ K线数据测试失败: %v\n", err)
			os.Exit(1)
		}
	})
}

// runKlineTest 执行K线数据测试
func runKlineTest(symbol, interval string, limit int, verbose, save bool) error {
	pair, err := cex.ParseTradingPair(symbol)
	if err != nil {
		return err
	}
	if _, err := timeframes.Parse(interval); err != nil {
		return err
	}
	client, err := cex.CreateCEXClient(config.AppConfig.Exchange)
	if err != nil {
		return err
	}

	fmt.Printf("📊 K线数据获取测试\n")
	fmt.Printf("================================\n")
	fmt.Printf("🔸 交易对: %s\n", pair.String())
	fmt.Printf("🔸 时间周期: %s\n", interval)
	fmt.Printf("🔸 数据条数: %d\n", limit)
	fmt.Printf("🔸 数据源: %s\n", client.GetName())
	fmt.Println()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	fmt.Print("🔄 正在获取K线数据...")
	startTime := time.Now()

	klines, err := client.GetKlines(ctx, pair, interval, limit)
	if err != nil {
		fmt.Printf("\n❌ 获取失败: %v\n", err)
		return err
	}

	fmt.Printf(" 完成! (耗时: %v)\n", time.Since(startTime))

	if len(klines) == 0 {
		fmt.Println("⚠️ 未获取到数据")
		return nil
	}

	fmt.Printf("✅ 成功获取 %d 条K线数据\n\n", len(klines))

	latest := klines[len(klines)-1]
	fmt.Println("📈 数据概览:")
	fmt.Printf("├─ 最新时间: %s\n", formatTime(latest.OpenTime))
	fmt.Printf("├─ 最早时间: %s\n", formatTime(klines[0].OpenTime))
	fmt.Printf("├─ 最新价格: %s %s\n", latest.Close.String(), pair.Quote)
	fmt.Printf("└─ 最新成交量: %s %s\n", latest.Volume.String(), pair.Base)
	fmt.Println()

	if verbose {
		printKlineTable(klines, 5)
		printPriceChange(klines, pair.Quote)
	}

	if save {
		if err := saveKlines(ctx, interval, klines); err != nil {
			return err
		}
		fmt.Printf("💾 已保存 %d 条K线到 market_data\n", len(klines))
	}

	fmt.Println("\n✅ K线数据测试完成!")
	return nil
}

func saveKlines(ctx context.Context, interval string, klines []*cex.KlineData) error {
	db, err := database.NewPostgresDB(database.GlobalDatabaseConfig)
	if err != nil {
		return err
	}
	defer db.Close()

	if err := db.Migrate(ctx); err != nil {
		return err
	}
	return db.SaveMarketData(ctx, interval, klines)
}

// printKlineTable 最近n条K线
func printKlineTable(klines []*cex.KlineData, n int) {
	fmt.Printf("📋 详细K线数据 (最近%d条):\n", n)
	fmt.Println("时间          | 开盘价    | 最高价    | 最低价    | 收盘价    | 成交量")
	fmt.Println("--------------|----------|----------|----------|----------|----------")

	if len(klines) < n {
		n = len(klines)
	}
	for _, k := range klines[len(klines)-n:] {
		fmt.Printf("%s | %8s | %8s | %8s | %8s | %8s\n",
			formatTime(k.OpenTime),
			formatPrice(k.Open),
			formatPrice(k.High),
			formatPrice(k.Low),
			formatPrice(k.Close),
			formatVolume(k.Volume),
		)
	}
	fmt.Println()
}

func printPriceChange(klines []*cex.KlineData, quote string) {
	if len(klines) < 2 {
		return
	}
	latest := klines[len(klines)-1]
	previous := klines[len(klines)-2]

	priceChange := latest.Close.Sub(previous.Close)
	fmt.Println("📊 价格变化:")
	fmt.Printf("├─ 价格变化: %s %s\n", priceChange.String(), quote)
	if !previous.Close.IsZero() {
		pct := priceChange.Div(previous.Close).Mul(decimal.NewFromInt(100))
		fmt.Printf("├─ 变化幅度: %s%%\n", pct.StringFixed(2))
	}

	switch {
	case priceChange.IsPositive():
		fmt.Printf("└─ 趋势: 📈 上涨\n")
	case priceChange.IsNegative():
		fmt.Printf("└─ 趋势: 📉 下跌\n")
	default:
		fmt.Printf("└─ 趋势: ➡️ 平盘\n")
	}
}

// formatTime 格式化时间
func formatTime(t time.Time) string {
	return t.UTC().Format("01-02 15:04")
}

// formatPrice 格式化价格
func formatPrice(price decimal.Decimal) string {
	return price.StringFixed(2)
}

// formatVolume 格式化成交量
func formatVolume(volume decimal.Decimal) string {
	if volume.GreaterThan(decimal.NewFromInt(1000)) {
		return volume.Div(decimal.NewFromInt(1000)).StringFixed(1) + "K"
	}
	return volume.StringFixed(2)
}
