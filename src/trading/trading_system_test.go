package trading

import (
	"context"
	"sync"
	"testing"
	"time"

	"multicryptobot/src/audit"
	"multicryptobot/src/cex"
	"multicryptobot/src/config"
	"multicryptobot/src/database"
	"multicryptobot/src/executor"
	"multicryptobot/src/notify"
	"multicryptobot/src/strategy"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// memStore 内存版的持久化
type memStore struct {
	mu sync.Mutex

	system     map[string]database.SystemConfigRow
	pairs      []database.TradingPairRow
	strategies map[string][]database.StrategyConfigRow

	Events    []audit.Event
	Orders    []*executor.OrderRecord
	Snapshots []*executor.Snapshot
	Statuses  []database.BotStatus
	Klines    int
}

func newMemStore(paper string) *memStore {
	return &memStore{
		system: map[string]database.SystemConfigRow{
			"paper_trading":            {Key: "paper_trading", Value: paper, Type: "boolean"},
			"check_interval":           {Key: "check_interval", Value: "60", Type: "integer"},
			"max_concurrent_positions": {Key: "max_concurrent_positions", Value: "3", Type: "integer"},
			"total_portfolio_balance":  {Key: "total_portfolio_balance", Value: "10000", Type: "float"},
		},
		pairs: []database.TradingPairRow{{
			Symbol:             "BTC/USDT",
			BaseCurrency:       "BTC",
			QuoteCurrency:      "USDT",
			IsActive:           true,
			InitialBalance:     decimal.NewFromInt(1000),
			TradeSizeUSD:       decimal.NewFromInt(100),
			MaxPositionPercent: 20,
			MinTradeAmount:     decimal.NewFromFloat(0.001),
			MaxTradeAmount:     decimal.NewFromInt(10000),
			PricePrecision:     2,
			AmountPrecision:    6,
		}},
		strategies: map[string][]database.StrategyConfigRow{
			"BTC/USDT": {{
				Symbol:     "BTC/USDT",
				Name:       "sma",
				Type:       string(strategy.TypeSMACrossover),
				Enabled:    true,
				Weight:     1,
				Parameters: map[string]interface{}{"short_period": 2, "long_period": 4},
			}},
		},
	}
}

func (m *memStore) GetSystemConfig(ctx context.Context, key string) (*database.SystemConfigRow, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	row, ok := m.system[key]
	if !ok {
		return nil, nil
	}
	return &row, nil
}

func (m *memStore) ListSystemConfig(ctx context.Context) ([]database.SystemConfigRow, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []database.SystemConfigRow
	for _, r := range m.system {
		out = append(out, r)
	}
	return out, nil
}

func (m *memStore) UpsertSystemConfig(ctx context.Context, row database.SystemConfigRow) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.system[row.Key] = row
	return nil
}

func (m *memStore) ListActivePairs(ctx context.Context) ([]database.TradingPairRow, error) {
	return m.pairs, nil
}

func (m *memStore) GetTradingPair(ctx context.Context, symbol string) (*database.TradingPairRow, error) {
	for i := range m.pairs {
		if m.pairs[i].Symbol == symbol {
			return &m.pairs[i], nil
		}
	}
	return nil, nil
}

func (m *memStore) UpsertTradingPair(ctx context.Context, row database.TradingPairRow) error {
	m.pairs = append(m.pairs, row)
	return nil
}

func (m *memStore) ListPairStrategies(ctx context.Context, symbol string) ([]database.StrategyConfigRow, error) {
	return m.strategies[symbol], nil
}

func (m *memStore) UpsertStrategyConfig(ctx context.Context, row database.StrategyConfigRow) error {
	m.strategies[row.Symbol] = append(m.strategies[row.Symbol], row)
	return nil
}

func (m *memStore) UpdateStrategyConfig(ctx context.Context, symbol, name string, update database.StrategyUpdate) error {
	return nil
}

func (m *memStore) GetRiskConfig(ctx context.Context, symbol string) (*database.RiskConfigRow, error) {
	return nil, nil
}

func (m *memStore) UpsertRiskConfig(ctx context.Context, row database.RiskConfigRow) error {
	return nil
}

func (m *memStore) UpdateRiskConfig(ctx context.Context, symbol string, fields map[string]interface{}) error {
	return nil
}

func (m *memStore) SaveOrder(ctx context.Context, order *executor.OrderRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Orders = append(m.Orders, order)
	return nil
}

func (m *memStore) SaveSnapshot(ctx context.Context, s *executor.Snapshot) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Snapshots = append(m.Snapshots, s)
	return nil
}

func (m *memStore) Record(ctx context.Context, e audit.Event) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Events = append(m.Events, e)
	return nil
}

func (m *memStore) SaveSignal(ctx context.Context, symbol string, sig strategy.Signal) error {
	return nil
}

func (m *memStore) UpdateBotStatus(ctx context.Context, s database.BotStatus) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Statuses = append(m.Statuses, s)
	return nil
}

func (m *memStore) LatestSnapshot(ctx context.Context, symbol string) (*executor.Snapshot, error) {
	return nil, nil
}

func (m *memStore) SaveMarketData(ctx context.Context, timeframe string, klines []*cex.KlineData) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Klines += len(klines)
	return nil
}

func (m *memStore) GetMarketData(ctx context.Context, pair cex.TradingPair, timeframe string, limit int) ([]*cex.KlineData, error) {
	return nil, nil
}

// mockClient 交易所
type mockClient struct {
	CallCount int
}

func (c *mockClient) GetName() string { return "mock" }

func (c *mockClient) CurrentPrice(ctx context.Context, pair cex.TradingPair) (decimal.Decimal, error) {
	c.CallCount++
	return decimal.NewFromInt(100), nil
}

func (c *mockClient) GetKlines(ctx context.Context, pair cex.TradingPair, interval string, limit int) ([]*cex.KlineData, error) {
	c.CallCount++
	start := time.Now().Add(-10 * time.Hour).Truncate(time.Hour)
	out := make([]*cex.KlineData, 10)
	for i := range out {
		p := decimal.NewFromInt(100)
		out[i] = &cex.KlineData{
			TradingPair: pair,
			OpenTime:    start.Add(time.Duration(i) * time.Hour),
			Open:        p,
			High:        p,
			Low:         p,
			Close:       p,
			Volume:      decimal.NewFromInt(1),
			CloseTime:   start.Add(time.Duration(i+1) * time.Hour),
		}
	}
	return out, nil
}

func (c *mockClient) PlaceMarketOrder(ctx context.Context, pair cex.TradingPair, side cex.OrderSide, amount decimal.Decimal) (*cex.OrderResult, error) {
	c.CallCount++
	return &cex.OrderResult{TradingPair: pair, Price: decimal.NewFromInt(100), Quantity: amount, Side: side, Status: "FILLED"}, nil
}

func (c *mockClient) GetAccount(ctx context.Context) ([]*cex.AccountBalance, error) {
	return nil, nil
}

func (c *mockClient) Ping(ctx context.Context) error { return nil }

func testConfig() *config.Config {
	c := *config.AppConfig
	return &c
}

func TestSelectGateway(t *testing.T) {
	client := &mockClient{}
	tests := []struct {
		name          string
		paper         bool
		enableTrading bool
		client        cex.OrderGateway
		wantMode      string
	}{
		{"paper trading", true, true, client, "paper"},
		{"live not enabled", false, false, client, "paper"},
		{"no client", false, true, nil, "paper"},
		{"live", false, true, client, "live"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			gw, mode := selectGateway(tt.paper, tt.enableTrading, tt.client)
			assert.Equal(t, tt.wantMode, mode)
			if tt.wantMode == "paper" {
				assert.Nil(t, gw)
			} else {
				assert.NotNil(t, gw)
			}
		})
	}
}

func TestBaseNotifier_Disabled(t *testing.T) {
	n := baseNotifier(context.Background(), notify.TelegramConfig{Enabled: false})
	assert.IsType(t, notify.Log{}, n)

	n = baseNotifier(context.Background(), notify.TelegramConfig{Enabled: true})
	assert.IsType(t, notify.Log{}, n, "missing token falls back to log")
}

func TestEngineOptions(t *testing.T) {
	cfg := testConfig()
	opts := engineOptions(cfg)
	assert.Equal(t, cfg.Engine.Timeframe, opts.Timeframe)
	assert.Equal(t, cfg.Engine.CandleLimit, opts.CandleLimit)
	assert.Equal(t, cfg.Engine.WindowSize, opts.WindowSize)
	assert.Equal(t, 60*time.Second, opts.DefaultInterval)
	assert.Equal(t, 30*time.Second, opts.ErrorBackoff)
}

func TestAssemble_PaperRunOnce(t *testing.T) {
	ctx := context.Background()
	store := newMemStore("true")
	client := &mockClient{}

	cfg := testConfig()
	cfg.EnableTrading = true
	ts := Assemble(ctx, cfg, Components{Store: store, Client: client})
	defer ts.Close()

	assert.Equal(t, "paper", ts.Mode())
	require.NoError(t, ts.RunOnce(ctx))

	store.mu.Lock()
	defer store.mu.Unlock()
	assert.Equal(t, 10, store.Klines, "fetched candles are persisted")
	assert.NotEmpty(t, store.Snapshots)
	require.NotEmpty(t, store.Statuses)
	assert.Equal(t, "RUNNING", store.Statuses[len(store.Statuses)-1].Status)

	reports := ts.Engine().Report()
	require.Len(t, reports, 1)
	assert.Equal(t, "BTC/USDT", reports[0].Symbol)
}

func TestAssemble_LiveMode(t *testing.T) {
	store := newMemStore("false")
	cfg := testConfig()
	cfg.EnableTrading = true

	ts := Assemble(context.Background(), cfg, Components{Store: store, Client: &mockClient{}})
	defer ts.Close()
	assert.Equal(t, "live", ts.Mode())

	cfg.EnableTrading = false
	ts2 := Assemble(context.Background(), cfg, Components{Store: store, Client: &mockClient{}})
	defer ts2.Close()
	assert.Equal(t, "paper", ts2.Mode())
}
