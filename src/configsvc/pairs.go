package configsvc

import (
	"context"
	"fmt"
	"math"

	"multicryptobot/src/cex"
	"multicryptobot/src/database"
	"multicryptobot/src/risk"

	"github.com/shopspring/decimal"
	"github.com/xpwu/go-log/log"
)

// LoadActivePairs 启用的交易对；配置库不可用时退回最近一次预热快照
func (s *Service) LoadActivePairs(ctx context.Context) ([]database.TradingPairRow, error) {
	rows, err := s.loadPairs(ctx)
	if err != nil {
		var snap Snapshot
		if s.fetchSnapshot(ctx, &snap) && len(snap.Pairs) > 0 {
			return snap.Pairs, nil
		}
		return nil, err
	}
	return rows, nil
}

func (s *Service) loadPairs(ctx context.Context) ([]database.TradingPairRow, error) {
	return pairRows(s.cached(ctx, keyTradingPairs, s.fetchPairs))
}

func (s *Service) fetchPairs(ctx context.Context) (interface{}, error) {
	return s.store.ListActivePairs(ctx)
}

func pairRows(v interface{}, err error) ([]database.TradingPairRow, error) {
	if err != nil {
		return nil, err
	}
	rows, _ := v.([]database.TradingPairRow)
	return append([]database.TradingPairRow(nil), rows...), nil
}

// ActivePairs 同 LoadActivePairs，失败时记录日志并返回空列表
func (s *Service) ActivePairs(ctx context.Context) []database.TradingPairRow {
	rows, err := s.LoadActivePairs(ctx)
	if err != nil {
		unavailable(ctx, "交易对列表", err)
		return nil
	}
	return rows
}

// TradingConfigForPair 交易对配置，不存在时返回nil
func (s *Service) TradingConfigForPair(ctx context.Context, symbol string) (*database.TradingPairRow, error) {
	v, err := s.cached(ctx, pairConfigKey(symbol), func(ctx context.Context) (interface{}, error) {
		row, err := s.store.GetTradingPair(ctx, symbol)
		if err != nil || row == nil {
			return nil, err
		}
		return *row, nil
	})
	if err != nil {
		return nil, err
	}
	if v == nil {
		return nil, nil
	}
	row := v.(database.TradingPairRow)
	return &row, nil
}

// AddTradingPair 新增交易对，未填写的字段使用默认值
func (s *Service) AddTradingPair(ctx context.Context, row database.TradingPairRow) error {
	ctx, logger := log.WithCtx(ctx)
	logger.PushPrefix("ConfigService")

	pair, err := cex.ParseTradingPair(row.Symbol)
	if err != nil {
		return err
	}
	row.Symbol = pair.String()
	if row.BaseCurrency == "" {
		row.BaseCurrency = pair.Base
	}
	if row.QuoteCurrency == "" {
		row.QuoteCurrency = pair.Quote
	}
	applyPairDefaults(&row)

	if err := s.store.UpsertTradingPair(ctx, row); err != nil {
		return fmt.Errorf("failed to add trading pair %s: %w", row.Symbol, err)
	}

	s.invalidate(keyTradingPairs, pairConfigKey(row.Symbol), pairRiskKey(row.Symbol), keyPortfolioSettings)
	logger.Info("交易对已保存", "symbol", row.Symbol, "trade_size", row.TradeSizeUSD.String())
	return nil
}

func applyPairDefaults(row *database.TradingPairRow) {
	if row.InitialBalance.IsZero() {
		row.InitialBalance = decimal.NewFromInt(1000)
	}
	if row.TradeSizeUSD.IsZero() {
		row.TradeSizeUSD = decimal.NewFromInt(100)
	}
	if row.MaxPositionPercent == 0 {
		row.MaxPositionPercent = 20
	}
	if row.MinTradeAmount.IsZero() {
		row.MinTradeAmount = decimal.RequireFromString("0.001")
	}
	if row.MaxTradeAmount.IsZero() {
		row.MaxTradeAmount = decimal.NewFromInt(10000)
	}
	if row.PricePrecision == 0 {
		row.PricePrecision = 2
	}
	if row.AmountPrecision == 0 {
		row.AmountPrecision = 6
	}
}

// PairStrategies 交易对上配置的全部策略（含未启用），按权重降序
func (s *Service) PairStrategies(ctx context.Context, symbol string) ([]database.StrategyConfigRow, error) {
	return strategyRows(s.cached(ctx, pairStrategiesKey(symbol), s.fetchStrategies(symbol)))
}

func (s *Service) fetchStrategies(symbol string) func(ctx context.Context) (interface{}, error) {
	return func(ctx context.Context) (interface{}, error) {
		return s.store.ListPairStrategies(ctx, symbol)
	}
}

func strategyRows(v interface{}, err error) ([]database.StrategyConfigRow, error) {
	if err != nil {
		return nil, err
	}
	rows, _ := v.([]database.StrategyConfigRow)
	return append([]database.StrategyConfigRow(nil), rows...), nil
}

// EnabledStrategies 启用的策略，配置库不可用时为空
func (s *Service) EnabledStrategies(ctx context.Context, symbol string) []database.StrategyConfigRow {
	rows, err := s.PairStrategies(ctx, symbol)
	if err != nil {
		unavailable(ctx, "策略配置 "+symbol, err)
		return nil
	}
	out := rows[:0]
	for _, r := range rows {
		if r.Enabled {
			out = append(out, r)
		}
	}
	return out
}

// StrategyConfig 单个策略在交易对上的配置，不存在时返回nil
func (s *Service) StrategyConfig(ctx context.Context, symbol, name string) (*database.StrategyConfigRow, error) {
	v, err := s.cached(ctx, strategyConfigKey(symbol, name), func(ctx context.Context) (interface{}, error) {
		rows, err := s.PairStrategies(ctx, symbol)
		if err != nil {
			return nil, err
		}
		for _, r := range rows {
			if r.Name == name {
				return r, nil
			}
		}
		return nil, nil
	})
	if err != nil || v == nil {
		return nil, err
	}
	row := v.(database.StrategyConfigRow)
	return &row, nil
}

// StrategyWeights 启用策略的归一化权重
func (s *Service) StrategyWeights(ctx context.Context, symbol string) map[string]float64 {
	weights := NormalizeWeights(s.EnabledStrategies(ctx, symbol))
	if len(weights) > 0 {
		sum := 0.0
		for _, w := range weights {
			sum += w
		}
		if sum == 0 {
			_, logger := log.WithCtx(ctx)
			logger.PushPrefix("ConfigService")
			logger.Info(fmt.Sprintf("警告: %s 启用策略的权重之和为0，全部按0处理", symbol))
		}
	}
	return weights
}

// NormalizeWeights 启用策略的权重除以权重之和；和为0时全部为0，未启用的策略不出现
func NormalizeWeights(rows []database.StrategyConfigRow) map[string]float64 {
	total := 0.0
	for _, r := range rows {
		if r.Enabled {
			total += math.Max(r.Weight, 0)
		}
	}

	weights := make(map[string]float64)
	for _, r := range rows {
		if !r.Enabled {
			continue
		}
		if total == 0 {
			weights[r.Name] = 0
			continue
		}
		weights[r.Name] = math.Max(r.Weight, 0) / total
	}
	return weights
}

// UpdateStrategyConfig 部分更新交易对上的策略
func (s *Service) UpdateStrategyConfig(ctx context.Context, symbol, name string, update database.StrategyUpdate) error {
	if update.Weight != nil && *update.Weight < 0 {
		return fmt.Errorf("weight must be >= 0, got %v", *update.Weight)
	}
	if err := s.store.UpdateStrategyConfig(ctx, symbol, name, update); err != nil {
		return err
	}
	s.invalidate(pairStrategiesKey(symbol), strategyConfigKey(symbol, name))
	return nil
}

// UpsertStrategyConfig 新增或覆盖交易对上的策略
func (s *Service) UpsertStrategyConfig(ctx context.Context, row database.StrategyConfigRow) error {
	if row.Weight < 0 {
		return fmt.Errorf("weight must be >= 0, got %v", row.Weight)
	}
	if err := s.store.UpsertStrategyConfig(ctx, row); err != nil {
		return err
	}
	s.invalidate(pairStrategiesKey(row.Symbol), strategyConfigKey(row.Symbol, row.Name))
	return nil
}

// RiskConfig 交易对风控配置行，不存在时返回nil
func (s *Service) RiskConfig(ctx context.Context, symbol string) (*database.RiskConfigRow, error) {
	return riskRow(s.cached(ctx, pairRiskKey(symbol), s.fetchRisk(symbol)))
}

func (s *Service) fetchRisk(symbol string) func(ctx context.Context) (interface{}, error) {
	return func(ctx context.Context) (interface{}, error) {
		row, err := s.store.GetRiskConfig(ctx, symbol)
		if err != nil || row == nil {
			return nil, err
		}
		return *row, nil
	}
}

func riskRow(v interface{}, err error) (*database.RiskConfigRow, error) {
	if err != nil || v == nil {
		return nil, err
	}
	row := v.(database.RiskConfigRow)
	return &row, nil
}

// RiskLimitsForPair 交易对的风控限制，没有配置或读取失败时使用默认值
func (s *Service) RiskLimitsForPair(ctx context.Context, symbol string) risk.Limits {
	row, err := s.RiskConfig(ctx, symbol)
	if err != nil {
		unavailable(ctx, "风控配置 "+symbol, err)
	}
	if row == nil {
		return risk.DefaultLimits()
	}
	return LimitsFromRow(*row)
}

// LimitsFromRow 配置行转风控限制，非正数的字段使用默认值
func LimitsFromRow(row database.RiskConfigRow) risk.Limits {
	l := risk.DefaultLimits()
	if row.StopLossPercent > 0 {
		l.StopLossPercent = row.StopLossPercent
	}
	if row.TakeProfitPercent > 0 {
		l.TakeProfitPercent = row.TakeProfitPercent
	}
	if row.MaxDailyTrades > 0 {
		l.MaxDailyTrades = row.MaxDailyTrades
	}
	if row.MaxDailyLossPercent > 0 {
		l.MaxDailyLossPercent = row.MaxDailyLossPercent
	}
	l.TrailingStopEnabled = row.TrailingStopEnabled
	if row.TrailingStopPercent > 0 {
		l.TrailingStopPercent = row.TrailingStopPercent
	}
	if row.MaxDrawdownPercent > 0 {
		l.MaxDrawdownPercent = row.MaxDrawdownPercent
	}
	return l
}

// UpdatePairRiskConfig 更新风控配置，只接受白名单内的字段
func (s *Service) UpdatePairRiskConfig(ctx context.Context, symbol string, fields map[string]interface{}) error {
	allowed := make(map[string]bool, len(database.RiskConfigFields))
	for _, f := range database.RiskConfigFields {
		allowed[f] = true
	}
	for f := range fields {
		if !allowed[f] {
			return fmt.Errorf("unknown risk field %q", f)
		}
	}
	if err := s.store.UpdateRiskConfig(ctx, symbol, fields); err != nil {
		return err
	}
	s.invalidate(pairRiskKey(symbol))
	return nil
}

// UpsertRiskConfig 写入完整风控配置
func (s *Service) UpsertRiskConfig(ctx context.Context, row database.RiskConfigRow) error {
	if err := LimitsFromRow(row).Validate(); err != nil {
		return err
	}
	if err := s.store.UpsertRiskConfig(ctx, row); err != nil {
		return err
	}
	s.invalidate(pairRiskKey(row.Symbol))
	return nil
}

// ShouldTradePair 交易对启用且至少有一个启用的策略
func (s *Service) ShouldTradePair(ctx context.Context, symbol string) bool {
	cfg, err := s.TradingConfigForPair(ctx, symbol)
	if err != nil {
		unavailable(ctx, "交易对 "+symbol, err)
		return false
	}
	if cfg == nil || !cfg.IsActive {
		return false
	}
	return len(s.EnabledStrategies(ctx, symbol)) > 0
}
