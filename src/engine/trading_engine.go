package engine

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"multicryptobot/src/audit"
	"multicryptobot/src/cex"
	"multicryptobot/src/configsvc"
	"multicryptobot/src/database"
	"multicryptobot/src/executor"
	"multicryptobot/src/notify"
	"multicryptobot/src/risk"
	"multicryptobot/src/strategy"

	"github.com/shopspring/decimal"
	"github.com/xpwu/go-log/log"
)

// ConfigSource 引擎每轮读取的配置
type ConfigSource interface {
	LoadActivePairs(ctx context.Context) ([]database.TradingPairRow, error)
	EnabledStrategies(ctx context.Context, symbol string) []database.StrategyConfigRow
	StrategyWeights(ctx context.Context, symbol string) map[string]float64
	RiskLimitsForPair(ctx context.Context, symbol string) risk.Limits
	PortfolioSettings(ctx context.Context) configsvc.PortfolioSettings
}

// Persistence 信号、运行状态、持仓快照的持久化，可为空
type Persistence interface {
	SaveSignal(ctx context.Context, symbol string, sig strategy.Signal) error
	UpdateBotStatus(ctx context.Context, s database.BotStatus) error
	LatestSnapshot(ctx context.Context, symbol string) (*executor.Snapshot, error)
}

// Publisher 每轮结束后发布各交易对概况，可为空
type Publisher interface {
	Publish(ctx context.Context, key string, value interface{}) error
}

// PortfolioKey 概况在镜像中的键
const PortfolioKey = "portfolio"

// Options 引擎参数
type Options struct {
	Name            string
	Timeframe       string
	CandleLimit     int           // 每轮拉取的K线数
	WindowSize      int           // 每个交易对保留的K线数
	DefaultInterval time.Duration // check_interval 缺失时的轮询间隔
	ErrorBackoff    time.Duration // 一轮失败后的等待时间
}

// DefaultOptions 默认引擎参数
func DefaultOptions() Options {
	return Options{
		Name:            "multi-crypto-bot",
		Timeframe:       "1h",
		CandleLimit:     100,
		WindowSize:      DefaultWindowSize,
		DefaultInterval: 60 * time.Second,
		ErrorBackoff:    30 * time.Second,
	}
}

// Deps 引擎依赖
type Deps struct {
	Config   ConfigSource
	Market   cex.MarketData
	Book     *executor.Book
	Gate     *risk.Gate
	Sink     audit.Sink
	Notifier notify.Notifier
	Store    Persistence
	Mirror   Publisher
}

// TradingEngine 多交易对交易引擎
//
// 每轮按顺序处理所有启用的交易对，单个交易对的失败不影响其他交易对。
type TradingEngine struct {
	opts Options

	config   ConfigSource
	market   cex.MarketData
	book     *executor.Book
	gate     *risk.Gate
	sink     audit.Sink
	notifier notify.Notifier
	store    Persistence
	mirror   Publisher

	// 信号处理器
	signalRegistry *SignalHandlerRegistry

	pairs map[string]*pairRuntime

	mu         sync.Mutex
	isRunning  bool
	stopChan   chan struct{}
	errorCount int
	lastError  string
	iterations int

	now func() time.Time
}

// NewTradingEngine 创建交易引擎
func NewTradingEngine(deps Deps, opts Options) *TradingEngine {
	def := DefaultOptions()
	if opts.Name == "" {
		opts.Name = def.Name
	}
	if opts.Timeframe == "" {
		opts.Timeframe = def.Timeframe
	}
	if opts.CandleLimit <= 0 {
		opts.CandleLimit = def.CandleLimit
	}
	if opts.WindowSize <= 0 {
		opts.WindowSize = def.WindowSize
	}
	if opts.DefaultInterval <= 0 {
		opts.DefaultInterval = def.DefaultInterval
	}
	if opts.ErrorBackoff <= 0 {
		opts.ErrorBackoff = def.ErrorBackoff
	}

	if deps.Gate == nil {
		deps.Gate = risk.NewGate()
	}
	if deps.Sink == nil {
		deps.Sink = audit.LogSink{}
	}
	if deps.Book == nil {
		deps.Book = executor.NewBook(nil, nil)
	}

	e := &TradingEngine{
		opts:     opts,
		config:   deps.Config,
		market:   deps.Market,
		book:     deps.Book,
		gate:     deps.Gate,
		sink:     deps.Sink,
		notifier: deps.Notifier,
		store:    deps.Store,
		mirror:   deps.Mirror,
		pairs:    make(map[string]*pairRuntime),
		stopChan: make(chan struct{}),
		now:      time.Now,
	}

	// 注册默认的信号处理器
	e.signalRegistry = NewSignalHandlerRegistry()
	e.signalRegistry.RegisterHandler(strategy.ActionBuy, NewBuySignalHandler(e.sink, e.gate, e.notifier))
	e.signalRegistry.RegisterHandler(strategy.ActionSell, NewSellSignalHandler(e.sink, e.gate, e.notifier))

	return e
}

// Run 主循环，直到ctx取消或Stop
//
// 只有启动时加载交易对失败会返回错误，之后每轮的失败只记录并退避。
func (e *TradingEngine) Run(ctx context.Context) error {
	ctx, logger := log.WithCtx(ctx)
	logger.PushPrefix("TradingEngine")

	pairs, err := e.config.LoadActivePairs(ctx)
	if err != nil {
		return fmt.Errorf("failed to load initial configuration: %w", err)
	}

	settings := e.config.PortfolioSettings(ctx)
	logger.Info(fmt.Sprintf("开始交易: pairs=%d, paper=%v, interval=%ds",
		len(pairs), settings.PaperTrading, settings.CheckInterval))

	e.mu.Lock()
	e.isRunning = true
	e.mu.Unlock()

	e.updateStatus(ctx, "RUNNING")
	e.notify(ctx, notify.StatusMessage("STARTED", map[string]interface{}{
		"pairs":        len(pairs),
		"paper":        settings.PaperTrading,
		"interval_sec": settings.CheckInterval,
	}, e.now()))

	defer func() {
		e.mu.Lock()
		e.isRunning = false
		e.mu.Unlock()

		// ctx可能已取消，收尾写入使用独立的ctx
		done, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		e.updateStatus(done, "STOPPED")
		e.notify(done, notify.StatusMessage("STOPPED", map[string]interface{}{
			"iterations": e.Iterations(),
			"errors":     e.ErrorCount(),
		}, e.now()))
		logger.Info("交易已停止")
	}()

	for {
		wait := e.interval(ctx)
		if err := e.RunOnce(ctx); err != nil {
			if errors.Is(err, context.Canceled) {
				return nil
			}
			logger.Error("本轮处理失败", "error", err)
			wait = e.opts.ErrorBackoff
		}

		select {
		case <-ctx.Done():
			logger.Info("收到停止信号，退出交易")
			return nil
		case <-e.stopChan:
			logger.Info("手动停止交易")
			return nil
		case <-time.After(wait):
		}
	}
}

// Stop 停止交易引擎，可重复调用
func (e *TradingEngine) Stop() {
	e.mu.Lock()
	defer e.mu.Unlock()
	select {
	case <-e.stopChan:
	default:
		close(e.stopChan)
	}
}

// IsRunning 主循环是否在运行
func (e *TradingEngine) IsRunning() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.isRunning
}

// ErrorCount 累计错误数
func (e *TradingEngine) ErrorCount() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.errorCount
}

// Iterations 已完成的轮数
func (e *TradingEngine) Iterations() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.iterations
}

// RunOnce 处理一轮全部交易对
func (e *TradingEngine) RunOnce(ctx context.Context) error {
	ctx, logger := log.WithCtx(ctx)
	logger.PushPrefix("TradingEngine")

	pairs, err := e.config.LoadActivePairs(ctx)
	if err != nil {
		e.recordError(ctx, "", err)
		return fmt.Errorf("failed to load active pairs: %w", err)
	}
	settings := e.config.PortfolioSettings(ctx)

	logger.Debug("开始新一轮", "pairs", len(pairs))

	for _, row := range pairs {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if err := e.processPair(ctx, row, settings); err != nil {
			logger.Error(fmt.Sprintf("处理交易对失败: %s", row.Symbol), "error", err)
			e.recordError(ctx, row.Symbol, err)
		}
	}

	e.mu.Lock()
	e.iterations++
	e.mu.Unlock()

	e.updateStatus(ctx, "RUNNING")

	if e.mirror != nil {
		if err := e.mirror.Publish(ctx, PortfolioKey, e.Report()); err != nil {
			logger.Error("发布持仓概况失败", "error", err)
		}
	}
	return nil
}

// interval 本轮结束后的等待时间
func (e *TradingEngine) interval(ctx context.Context) time.Duration {
	seconds := e.config.PortfolioSettings(ctx).CheckInterval
	if seconds <= 0 {
		return e.opts.DefaultInterval
	}
	return time.Duration(seconds) * time.Second
}

func (e *TradingEngine) recordError(ctx context.Context, symbol string, err error) {
	e.mu.Lock()
	e.errorCount++
	e.lastError = err.Error()
	e.mu.Unlock()

	audit.Record(ctx, e.sink, audit.Event{
		Type:      audit.EventError,
		Category:  "system",
		Symbol:    symbol,
		Severity:  audit.SeverityError,
		Message:   err.Error(),
		ErrorCode: errorCode(err),
	})
}

func (e *TradingEngine) updateStatus(ctx context.Context, status string) {
	if e.store == nil {
		return
	}
	e.mu.Lock()
	s := database.BotStatus{
		Name:          e.opts.Name,
		Status:        status,
		OpenPositions: e.book.OpenPositions(),
		ErrorCount:    e.errorCount,
		LastError:     e.lastError,
		LastHeartbeat: e.now(),
	}
	e.mu.Unlock()

	if err := e.store.UpdateBotStatus(ctx, s); err != nil {
		_, logger := log.WithCtx(ctx)
		logger.Error("更新运行状态失败", "error", err)
	}
}

func (e *TradingEngine) notify(ctx context.Context, msg string) {
	if e.notifier == nil {
		return
	}
	if err := e.notifier.Send(ctx, msg); err != nil {
		_, logger := log.WithCtx(ctx)
		logger.Error("发送通知失败", "error", err)
	}
}

// PairReport 单个交易对的运行概况
type PairReport struct {
	Symbol     string                   `json:"symbol"`
	Price      decimal.Decimal          `json:"price"`
	Portfolio  *executor.Snapshot       `json:"portfolio"`
	Statistics map[string]interface{}   `json:"statistics"`
	Risk       risk.Stats               `json:"risk"`
	Strategies []map[string]interface{} `json:"strategies"`
	Decision   string                   `json:"last_decision"`
}

// Report 各交易对最近一轮的概况，按交易对排序，不与 Run 并发调用
func (e *TradingEngine) Report() []PairReport {
	reports := make([]PairReport, 0, len(e.pairs))
	for _, symbol := range e.book.Symbols() {
		rt, ok := e.pairs[symbol]
		if !ok {
			continue
		}
		r := PairReport{
			Symbol:     symbol,
			Price:      rt.lastPrice,
			Portfolio:  rt.ledger.Portfolio(rt.lastPrice),
			Statistics: rt.ledger.Statistics(rt.lastPrice),
			Risk:       e.gate.Stats(symbol),
			Decision:   rt.lastDecision,
		}
		for _, name := range rt.order {
			r.Strategies = append(r.Strategies, rt.strategies[name].Status())
		}
		reports = append(reports, r)
	}
	return reports
}
