package engine

import (
	"context"
	"errors"
	"sync"
	"time"

	"multicryptobot/src/audit"
	"multicryptobot/src/cex"
	"multicryptobot/src/configsvc"
	"multicryptobot/src/database"
	"multicryptobot/src/executor"
	"multicryptobot/src/risk"
	"multicryptobot/src/strategy"

	"github.com/shopspring/decimal"
)

var TestError = errors.New("test error")

var (
	btc = cex.TradingPair{Base: "BTC", Quote: "USDT"}
	eth = cex.TradingPair{Base: "ETH", Quote: "USDT"}

	testStart = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
)

// candles 以收盘价构造小时K线
func candles(pair cex.TradingPair, closes ...float64) []*cex.KlineData {
	out := make([]*cex.KlineData, len(closes))
	for i, c := range closes {
		price := decimal.NewFromFloat(c)
		out[i] = &cex.KlineData{
			TradingPair: pair,
			OpenTime:    testStart.Add(time.Duration(i) * time.Hour),
			Open:        price,
			High:        price,
			Low:         price,
			Close:       price,
			Volume:      decimal.NewFromInt(1000),
			CloseTime:   testStart.Add(time.Duration(i+1) * time.Hour),
		}
	}
	return out
}

func flat(v float64, n int) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = v
	}
	return out
}

func pairRow(symbol string) database.TradingPairRow {
	return database.TradingPairRow{
		Symbol:             symbol,
		IsActive:           true,
		InitialBalance:     decimal.NewFromInt(1000),
		TradeSizeUSD:       decimal.NewFromInt(100),
		MaxPositionPercent: 20,
		MinTradeAmount:     decimal.NewFromFloat(0.001),
		MaxTradeAmount:     decimal.NewFromInt(10000),
		PricePrecision:     2,
		AmountPrecision:    6,
	}
}

func smaRow(short, long int) database.StrategyConfigRow {
	return database.StrategyConfigRow{
		Name:       "sma",
		Type:       string(strategy.TypeSMACrossover),
		Enabled:    true,
		Weight:     1,
		Parameters: map[string]interface{}{"short_period": short, "long_period": long},
	}
}

// mockConfig 内存配置源
type mockConfig struct {
	ShouldError bool
	CallCount   int

	pairs      []database.TradingPairRow
	strategies map[string][]database.StrategyConfigRow
	weights    map[string]map[string]float64
	limits     risk.Limits
	settings   configsvc.PortfolioSettings
}

func newMockConfig(rows ...database.TradingPairRow) *mockConfig {
	m := &mockConfig{
		pairs:      rows,
		strategies: map[string][]database.StrategyConfigRow{},
		weights:    map[string]map[string]float64{},
		limits:     risk.DefaultLimits(),
		settings: configsvc.PortfolioSettings{
			TotalBalance:           10000,
			MaxConcurrentPositions: 3,
			PaperTrading:           true,
			CheckInterval:          60,
		},
	}
	for _, r := range rows {
		m.strategies[r.Symbol] = []database.StrategyConfigRow{smaRow(2, 4)}
		m.weights[r.Symbol] = map[string]float64{"sma": 1}
	}
	return m
}

func (m *mockConfig) LoadActivePairs(ctx context.Context) ([]database.TradingPairRow, error) {
	m.CallCount++
	if m.ShouldError {
		return nil, TestError
	}
	return m.pairs, nil
}

func (m *mockConfig) EnabledStrategies(ctx context.Context, symbol string) []database.StrategyConfigRow {
	return m.strategies[symbol]
}

func (m *mockConfig) StrategyWeights(ctx context.Context, symbol string) map[string]float64 {
	return m.weights[symbol]
}

func (m *mockConfig) RiskLimitsForPair(ctx context.Context, symbol string) risk.Limits {
	return m.limits
}

func (m *mockConfig) PortfolioSettings(ctx context.Context) configsvc.PortfolioSettings {
	return m.settings
}

// mockMarket 行情，按交易对设置价格和K线
type mockMarket struct {
	mu          sync.Mutex
	ShouldError map[string]bool
	CallCount   int
	LastLimit   int

	prices map[string]decimal.Decimal
	klines map[string][]*cex.KlineData
}

func newMockMarket() *mockMarket {
	return &mockMarket{
		ShouldError: map[string]bool{},
		prices:      map[string]decimal.Decimal{},
		klines:      map[string][]*cex.KlineData{},
	}
}

func (m *mockMarket) set(pair cex.TradingPair, price float64, klines []*cex.KlineData) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.prices[pair.String()] = decimal.NewFromFloat(price)
	if klines != nil {
		m.klines[pair.String()] = klines
	}
}

func (m *mockMarket) CurrentPrice(ctx context.Context, pair cex.TradingPair) (decimal.Decimal, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.CallCount++
	if m.ShouldError[pair.String()] {
		return decimal.Zero, TestError
	}
	return m.prices[pair.String()], nil
}

func (m *mockMarket) GetKlines(ctx context.Context, pair cex.TradingPair, interval string, limit int) ([]*cex.KlineData, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.CallCount++
	m.LastLimit = limit
	if m.ShouldError[pair.String()] {
		return nil, TestError
	}
	return m.klines[pair.String()], nil
}

// mockNotifier 记录通知
type mockNotifier struct {
	mu       sync.Mutex
	Messages []string
}

func (m *mockNotifier) Send(ctx context.Context, msg string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Messages = append(m.Messages, msg)
	return nil
}

func (m *mockNotifier) messages() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.Messages...)
}

// mockSink 记录审计事件
type mockSink struct {
	mu     sync.Mutex
	Events []audit.Event
}

func (m *mockSink) Record(ctx context.Context, event audit.Event) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Events = append(m.Events, event)
	return nil
}

func (m *mockSink) ofType(t audit.EventType) []audit.Event {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []audit.Event
	for _, e := range m.Events {
		if e.Type == t {
			out = append(out, e)
		}
	}
	return out
}

// mockStore 信号、状态、快照
type mockStore struct {
	mu        sync.Mutex
	Signals   []strategy.Signal
	Statuses  []database.BotStatus
	Snapshots map[string]*executor.Snapshot
}

func newMockStore() *mockStore {
	return &mockStore{Snapshots: map[string]*executor.Snapshot{}}
}

func (m *mockStore) SaveSignal(ctx context.Context, symbol string, sig strategy.Signal) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Signals = append(m.Signals, sig)
	return nil
}

func (m *mockStore) UpdateBotStatus(ctx context.Context, s database.BotStatus) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Statuses = append(m.Statuses, s)
	return nil
}

func (m *mockStore) LatestSnapshot(ctx context.Context, symbol string) (*executor.Snapshot, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.Snapshots[symbol], nil
}

func (m *mockStore) lastStatus() database.BotStatus {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.Statuses[len(m.Statuses)-1]
}

// mockMirror 记录发布的内容
type mockMirror struct {
	ShouldError bool
	CallCount   int
	Published   map[string]interface{}
}

func (m *mockMirror) Publish(ctx context.Context, key string, value interface{}) error {
	m.CallCount++
	if m.ShouldError {
		return TestError
	}
	if m.Published == nil {
		m.Published = map[string]interface{}{}
	}
	m.Published[key] = value
	return nil
}

// testEngine 组装一个模拟盘引擎
type testEngine struct {
	*TradingEngine
	config   *mockConfig
	market   *mockMarket
	notifier *mockNotifier
	sink     *mockSink
	store    *mockStore
	gate     *risk.Gate
	book     *executor.Book
}

func newTestEngine(config *mockConfig) *testEngine {
	te := &testEngine{
		config:   config,
		market:   newMockMarket(),
		notifier: &mockNotifier{},
		sink:     &mockSink{},
		store:    newMockStore(),
		gate:     risk.NewGate(),
		book:     executor.NewBook(nil, nil),
	}
	te.TradingEngine = NewTradingEngine(Deps{
		Config:   te.config,
		Market:   te.market,
		Book:     te.book,
		Gate:     te.gate,
		Sink:     te.sink,
		Notifier: te.notifier,
		Store:    te.store,
	}, Options{Timeframe: "1h", DefaultInterval: 10 * time.Millisecond, ErrorBackoff: 10 * time.Millisecond})
	return te
}
