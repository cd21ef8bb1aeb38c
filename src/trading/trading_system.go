package trading

import (
	"context"
	"errors"
	"fmt"

	"multicryptobot/src/audit"
	"multicryptobot/src/cex"
	"multicryptobot/src/config"
	"multicryptobot/src/configcache"
	"multicryptobot/src/configsvc"
	"multicryptobot/src/database"
	"multicryptobot/src/engine"
	"multicryptobot/src/executor"
	"multicryptobot/src/mirror"
	"multicryptobot/src/notify"
	"multicryptobot/src/risk"

	"github.com/shopspring/decimal"
	"github.com/xpwu/go-log/log"
)

// Store 交易系统需要的持久化，由 database.PostgresDB 实现
type Store interface {
	configsvc.Store
	executor.Recorder
	audit.Sink
	engine.Persistence
	SaveMarketData(ctx context.Context, timeframe string, klines []*cex.KlineData) error
	GetMarketData(ctx context.Context, pair cex.TradingPair, timeframe string, limit int) ([]*cex.KlineData, error)
}

// Mirror Redis镜像，配置快照和持仓概况共用
type Mirror interface {
	configsvc.Mirror
	engine.Publisher
}

// Components 组装交易系统的外部依赖
type Components struct {
	Store    Store
	Client   cex.CEXClient
	Mirror   Mirror          // 可为空
	Notifier notify.Notifier // 为空时写日志
}

// TradingSystem 交易系统，每个服务只创建一次并显式传递
type TradingSystem struct {
	cfg *config.Config

	store    Store
	client   cex.CEXClient
	market   *database.KlineManager
	config   *configsvc.Service
	notifier *notify.Async
	gate     *risk.Gate
	book     *executor.Book
	engine   *engine.TradingEngine
	mode     string

	closers []func() error
}

// NewTradingSystem 连接数据库、交易所、Redis、Telegram并组装交易系统
func NewTradingSystem(ctx context.Context, cfg *config.Config) (*TradingSystem, error) {
	ctx, logger := log.WithCtx(ctx)
	logger.PushPrefix("TradingSystem")

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	client, err := cex.CreateCEXClient(cfg.Exchange)
	if err != nil {
		return nil, err
	}

	fmt.Printf("🗄️ Connecting to database %s@%s...", database.GlobalDatabaseConfig.DBName, database.GlobalDatabaseConfig.Host)
	db, err := database.NewPostgresDB(database.GlobalDatabaseConfig)
	if err != nil {
		fmt.Println(" failed")
		return nil, err
	}
	fmt.Println(" connected!")

	if err := db.Migrate(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}

	comps := Components{Store: db, Client: client}
	closers := []func() error{db.Close}

	if mirror.ConfigValue.Enabled {
		m, err := mirror.New(ctx, mirror.ConfigValue)
		if err != nil {
			logger.Info("警告: Redis镜像不可用，继续运行", "error", err)
		} else {
			comps.Mirror = m
			closers = append(closers, m.Close)
		}
	}

	comps.Notifier = baseNotifier(ctx, notify.TelegramConfigValue)

	ts := Assemble(ctx, cfg, comps)
	ts.closers = append(ts.closers, closers...)
	return ts, nil
}

// Assemble 用给定依赖组装交易系统
func Assemble(ctx context.Context, cfg *config.Config, c Components) *TradingSystem {
	ctx, logger := log.WithCtx(ctx)
	logger.PushPrefix("TradingSystem")

	base := c.Notifier
	if base == nil {
		base = notify.Log{}
	}

	svc := configsvc.New(c.Store, configcache.New(cfg.CacheTTL()))
	svc.SetWarmSchedule(cfg.WarmInterval(), cfg.WarmCheck())
	if c.Mirror != nil {
		svc.SetMirror(c.Mirror)
	}

	settings := svc.PortfolioSettings(ctx)
	gateway, mode := selectGateway(settings.PaperTrading, cfg.EnableTrading, c.Client)
	if !settings.PaperTrading && gateway == nil {
		logger.Info("警告: paper_trading=false 但 enable_trading 未开启，使用模拟盘")
	}
	logger.Info(fmt.Sprintf("交易模式: %s", mode))

	ts := &TradingSystem{
		cfg:      cfg,
		store:    c.Store,
		client:   c.Client,
		market:   database.NewKlineManager(c.Store, c.Client),
		config:   svc,
		notifier: notify.NewAsync(base, cfg.NotifyQueue),
		gate:     risk.NewGate(),
		book:     executor.NewBook(gateway, c.Store),
		mode:     mode,
	}

	deps := engine.Deps{
		Config:   svc,
		Market:   ts.market,
		Book:     ts.book,
		Gate:     ts.gate,
		Sink:     audit.Multi{c.Store, audit.LogSink{}},
		Notifier: ts.notifier,
		Store:    c.Store,
	}
	if c.Mirror != nil {
		deps.Mirror = c.Mirror
	}
	ts.engine = engine.NewTradingEngine(deps, engineOptions(cfg))
	return ts
}

// selectGateway 只有配置库关闭模拟盘且进程允许实盘时才真实下单
func selectGateway(paper, enableTrading bool, client cex.OrderGateway) (cex.OrderGateway, string) {
	if paper || !enableTrading || client == nil {
		return nil, "paper"
	}
	return client, "live"
}

// baseNotifier Telegram可用时用Telegram，否则写日志
func baseNotifier(ctx context.Context, cfg notify.TelegramConfig) notify.Notifier {
	if !cfg.Enabled {
		return notify.Log{}
	}
	tg, err := notify.NewTelegram(cfg)
	if err != nil {
		_, logger := log.WithCtx(ctx)
		logger.Info("警告: Telegram不可用，通知写入日志", "error", err)
		return notify.Log{}
	}
	return tg
}

func engineOptions(cfg *config.Config) engine.Options {
	return engine.Options{
		Name:            cfg.Engine.Name,
		Timeframe:       cfg.Engine.Timeframe,
		CandleLimit:     cfg.Engine.CandleLimit,
		WindowSize:      cfg.Engine.WindowSize,
		DefaultInterval: cfg.DefaultInterval(),
		ErrorBackoff:    cfg.ErrorBackoff(),
	}
}

// Run 预热配置缓存，启动自动预热，然后运行主循环直到ctx取消
func (ts *TradingSystem) Run(ctx context.Context) error {
	ctx, logger := log.WithCtx(ctx)
	logger.PushPrefix("TradingSystem")

	report := ts.config.Validate(ctx)
	for _, w := range report.Warnings {
		logger.Info("警告: " + w)
	}
	if !report.Valid {
		for _, e := range report.Errors {
			logger.Error("配置错误: " + e)
		}
		return errors.New("configuration is invalid, run the validate command for details")
	}

	result, err := ts.config.WarmCache(ctx)
	if err != nil {
		logger.Error("预热配置缓存失败", "error", err)
	} else {
		logger.Info(fmt.Sprintf("配置缓存已预热: pairs=%d, strategies=%d, duration=%s",
			result.TradingPairs, result.Strategies, result.Duration))
	}

	warmDone := ts.config.StartAutoWarm(ctx)
	err = ts.engine.Run(ctx)
	<-warmDone
	return err
}

// RunOnce 单轮处理所有交易对
func (ts *TradingSystem) RunOnce(ctx context.Context) error {
	return ts.engine.RunOnce(ctx)
}

// Stop 停止主循环
func (ts *TradingSystem) Stop() {
	ts.engine.Stop()
}

// Close 停止并释放资源
func (ts *TradingSystem) Close() error {
	ts.engine.Stop()
	ts.notifier.Close()

	var errs []error
	for i := len(ts.closers) - 1; i >= 0; i-- {
		if err := ts.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Config 配置服务
func (ts *TradingSystem) Config() *configsvc.Service { return ts.config }

// Engine 交易引擎
func (ts *TradingSystem) Engine() *engine.TradingEngine { return ts.engine }

// Mode paper 或 live
func (ts *TradingSystem) Mode() string { return ts.mode }

// PrintReport 打印各交易对概况
func (ts *TradingSystem) PrintReport() {
	reports := ts.engine.Report()
	fmt.Println("\n============================================================")
	fmt.Printf("📊 PORTFOLIO (%s)\n", ts.mode)
	fmt.Println("============================================================")
	if len(reports) == 0 {
		fmt.Println("No pairs processed")
		return
	}

	total := decimal.Zero
	fmt.Printf("%-12s %-6s %14s %14s %14s %10s  %s\n", "Symbol", "State", "Price", "Cash", "Value", "Trades", "Last decision")
	fmt.Println("------------------------------------------------------------------------------------------------")
	for _, r := range reports {
		total = total.Add(r.Portfolio.TotalValue)
		fmt.Printf("%-12s %-6s %14s %14s %14s %10d  %s\n",
			r.Symbol,
			r.Portfolio.State,
			r.Price.StringFixed(2),
			r.Portfolio.Cash.StringFixed(2),
			r.Portfolio.TotalValue.StringFixed(2),
			r.Risk.TradesToday,
			r.Decision)
	}
	fmt.Println("------------------------------------------------------------------------------------------------")
	fmt.Printf("Total value: $%s\n", total.StringFixed(2))
	fmt.Println("============================================================")
}
