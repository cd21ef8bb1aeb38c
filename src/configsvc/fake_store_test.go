package configsvc

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"multicryptobot/src/database"
)

var errStoreDown = errors.New("connection refused")

// fakeStore 内存配置库
type fakeStore struct {
	mu          sync.Mutex
	ShouldError bool
	CallCount   map[string]int

	system     map[string]database.SystemConfigRow
	pairs      map[string]database.TradingPairRow
	strategies map[string][]database.StrategyConfigRow
	risk       map[string]database.RiskConfigRow
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		CallCount:  map[string]int{},
		system:     map[string]database.SystemConfigRow{},
		pairs:      map[string]database.TradingPairRow{},
		strategies: map[string][]database.StrategyConfigRow{},
		risk:       map[string]database.RiskConfigRow{},
	}
}

func (f *fakeStore) calls(name string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.CallCount[name]
}

func (f *fakeStore) setError(v bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.ShouldError = v
}

func (f *fakeStore) enter(name string) error {
	f.mu.Lock()
	f.CallCount[name]++
	fail := f.ShouldError
	f.mu.Unlock()
	if fail {
		return errStoreDown
	}
	return nil
}

func (f *fakeStore) GetSystemConfig(_ context.Context, key string) (*database.SystemConfigRow, error) {
	if err := f.enter("GetSystemConfig"); err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	row, ok := f.system[key]
	if !ok {
		return nil, nil
	}
	return &row, nil
}

func (f *fakeStore) ListSystemConfig(context.Context) ([]database.SystemConfigRow, error) {
	if err := f.enter("ListSystemConfig"); err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []database.SystemConfigRow
	for _, r := range f.system {
		out = append(out, r)
	}
	return out, nil
}

func (f *fakeStore) UpsertSystemConfig(_ context.Context, row database.SystemConfigRow) error {
	if err := f.enter("UpsertSystemConfig"); err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.system[row.Key] = row
	return nil
}

func (f *fakeStore) ListActivePairs(context.Context) ([]database.TradingPairRow, error) {
	if err := f.enter("ListActivePairs"); err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []database.TradingPairRow
	for _, p := range f.pairs {
		if p.IsActive {
			out = append(out, p)
		}
	}
	return out, nil
}

func (f *fakeStore) GetTradingPair(_ context.Context, symbol string) (*database.TradingPairRow, error) {
	if err := f.enter("GetTradingPair"); err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	p, ok := f.pairs[symbol]
	if !ok {
		return nil, nil
	}
	return &p, nil
}

func (f *fakeStore) UpsertTradingPair(_ context.Context, row database.TradingPairRow) error {
	if err := f.enter("UpsertTradingPair"); err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.pairs[row.Symbol] = row
	if _, ok := f.risk[row.Symbol]; !ok {
		f.risk[row.Symbol] = database.RiskConfigRow{Symbol: row.Symbol}
	}
	return nil
}

func (f *fakeStore) ListPairStrategies(_ context.Context, symbol string) ([]database.StrategyConfigRow, error) {
	if err := f.enter("ListPairStrategies"); err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]database.StrategyConfigRow(nil), f.strategies[symbol]...), nil
}

func (f *fakeStore) UpsertStrategyConfig(_ context.Context, row database.StrategyConfigRow) error {
	if err := f.enter("UpsertStrategyConfig"); err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	rows := f.strategies[row.Symbol]
	for i := range rows {
		if rows[i].Name == row.Name {
			rows[i] = row
			return nil
		}
	}
	f.strategies[row.Symbol] = append(rows, row)
	return nil
}

func (f *fakeStore) UpdateStrategyConfig(_ context.Context, symbol, name string, u database.StrategyUpdate) error {
	if err := f.enter("UpdateStrategyConfig"); err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	rows := f.strategies[symbol]
	for i := range rows {
		if rows[i].Name != name {
			continue
		}
		if u.Weight != nil {
			rows[i].Weight = *u.Weight
		}
		if u.Enabled != nil {
			rows[i].Enabled = *u.Enabled
		}
		if u.Parameters != nil {
			rows[i].Parameters = u.Parameters
		}
		return nil
	}
	return fmt.Errorf("strategy %s not configured for %s", name, symbol)
}

func (f *fakeStore) GetRiskConfig(_ context.Context, symbol string) (*database.RiskConfigRow, error) {
	if err := f.enter("GetRiskConfig"); err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	r, ok := f.risk[symbol]
	if !ok {
		return nil, nil
	}
	return &r, nil
}

func (f *fakeStore) UpsertRiskConfig(_ context.Context, row database.RiskConfigRow) error {
	if err := f.enter("UpsertRiskConfig"); err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.risk[row.Symbol] = row
	return nil
}

func (f *fakeStore) UpdateRiskConfig(_ context.Context, symbol string, fields map[string]interface{}) error {
	if err := f.enter("UpdateRiskConfig"); err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	r, ok := f.risk[symbol]
	if !ok {
		return fmt.Errorf("no risk config for %s", symbol)
	}
	if v, ok := fields["stop_loss_percent"].(float64); ok {
		r.StopLossPercent = v
	}
	if v, ok := fields["max_daily_trades"].(int); ok {
		r.MaxDailyTrades = v
	}
	f.risk[symbol] = r
	return nil
}

// fakeMirror 内存快照
type fakeMirror struct {
	mu          sync.Mutex
	ShouldError bool
	CallCount   int
	data        map[string]interface{}
}

func (m *fakeMirror) Publish(_ context.Context, key string, value interface{}) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.CallCount++
	if m.ShouldError {
		return errStoreDown
	}
	if m.data == nil {
		m.data = map[string]interface{}{}
	}
	m.data[key] = value
	return nil
}

func (m *fakeMirror) Fetch(_ context.Context, key string, out interface{}) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.data[key]
	if !ok {
		return false, nil
	}
	snap, ok := v.(Snapshot)
	if !ok {
		return false, fmt.Errorf("unexpected value for %s", key)
	}
	*(out.(*Snapshot)) = snap
	return true, nil
}
