package cmd

import (
	"context"
	"fmt"
	"os"

	"multicryptobot/src/cex"
	"multicryptobot/src/database"
	"multicryptobot/src/strategy"

	"github.com/shopspring/decimal"
	"github.com/xpwu/go-cmd/arg"
	"github.com/xpwu/go-cmd/cmd"
	"github.com/xpwu/go-log/log"
	"gopkg.in/yaml.v2"
)

// SeedFile 配置库初始化文件
type SeedFile struct {
	System []SeedSystem `yaml:"system"`
	Pairs  []SeedPair   `yaml:"pairs"`
}

// SeedSystem 一个系统配置项
type SeedSystem struct {
	Key         string      `yaml:"key"`
	Value       interface{} `yaml:"value"`
	Type        string      `yaml:"type"`
	Description string      `yaml:"description"`
	Category    string      `yaml:"category"`
}

// SeedPair 交易对及其策略、风控
type SeedPair struct {
	Symbol             string         `yaml:"symbol"`
	Active             *bool          `yaml:"active"`
	InitialBalance     float64        `yaml:"initial_balance"`
	TradeSizeUSD       float64        `yaml:"trade_size_usd"`
	MaxPositionPercent float64        `yaml:"max_position_percent"`
	MinTradeAmount     float64        `yaml:"min_trade_amount"`
	MaxTradeAmount     float64        `yaml:"max_trade_amount"`
	PricePrecision     int            `yaml:"price_precision"`
	AmountPrecision    int            `yaml:"amount_precision"`
	Strategies         []SeedStrategy `yaml:"strategies"`
	Risk               *SeedRisk      `yaml:"risk"`
}

// SeedStrategy 交易对上的一个策略
type SeedStrategy struct {
	Name        string                 `yaml:"name"`
	Type        string                 `yaml:"type"`
	DisplayName string                 `yaml:"display_name"`
	Enabled     *bool                  `yaml:"enabled"`
	Weight      *float64               `yaml:"weight"`
	Parameters  map[string]interface{} `yaml:"parameters"`
}

// SeedRisk 风控配置
type SeedRisk struct {
	StopLossPercent        float64 `yaml:"stop_loss_percent"`
	TakeProfitPercent      float64 `yaml:"take_profit_percent"`
	MaxDailyTrades         int     `yaml:"max_daily_trades"`
	MaxDailyLossPercent    float64 `yaml:"max_daily_loss_percent"`
	TrailingStopEnabled    bool    `yaml:"trailing_stop_enabled"`
	TrailingStopPercent    float64 `yaml:"trailing_stop_percent"`
	MaxDrawdownPercent     float64 `yaml:"max_drawdown_percent"`
	PositionSizingMethod   string  `yaml:"position_sizing_method"`
	VolatilityLookbackDays int     `yaml:"volatility_lookback_days"`
}

// seedTarget 由 configsvc.Service 实现
type seedTarget interface {
	SetSystemConfig(ctx context.Context, key string, value interface{}, typ, description, category string) error
	AddTradingPair(ctx context.Context, row database.TradingPairRow) error
	UpsertStrategyConfig(ctx context.Context, row database.StrategyConfigRow) error
	UpsertRiskConfig(ctx context.Context, row database.RiskConfigRow) error
}

// SeedResult 写入的条目数
type SeedResult struct {
	System     int
	Pairs      int
	Strategies int
	Risk       int
}

// RegisterSeedCmd 注册配置库初始化命令
func RegisterSeedCmd() {
	var file string

	cmd.RegisterCmd("seed", "load system settings, pairs, strategies and risk config from a YAML file", func(args *arg.Arg) {
		args.String(&file, "f", "seed file (default: seed.yaml)")
		args.Parse()

		if file == "" {
			file = "seed.yaml"
		}

		seed, err := loadSeedFile(file)
		if err != nil {
			fmt.Printf("❌ %v\n", err)
			os.Exit(1)
		}

		withConfig(func(ctx context.Context, s *configSession) error {
			res, err := applySeed(ctx, s.svc, seed)
			if err != nil {
				return err
			}
			fmt.Printf("✅ Seeded %d system keys, %d pairs, %d strategies, %d risk configs from %s\n",
				res.System, res.Pairs, res.Strategies, res.Risk, file)
			return nil
		})
	})
}

func loadSeedFile(path string) (*SeedFile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read seed file: %w", err)
	}
	return parseSeed(data)
}

func parseSeed(data []byte) (*SeedFile, error) {
	var seed SeedFile
	if err := yaml.UnmarshalStrict(data, &seed); err != nil {
		return nil, fmt.Errorf("failed to parse seed file: %w", err)
	}

	for i := range seed.System {
		seed.System[i].Value = normalizeYAML(seed.System[i].Value)
	}
	for i := range seed.Pairs {
		for j := range seed.Pairs[i].Strategies {
			st := &seed.Pairs[i].Strategies[j]
			if st.Parameters == nil {
				continue
			}
			st.Parameters = normalizeYAML(st.Parameters).(map[string]interface{})
		}
	}
	return &seed, nil
}

// normalizeYAML yaml.v2 的 map[interface{}]interface{} 转成可JSON编码的 map[string]interface{}
func normalizeYAML(v interface{}) interface{} {
	switch t := v.(type) {
	case map[interface{}]interface{}:
		m := make(map[string]interface{}, len(t))
		for k, val := range t {
			m[fmt.Sprint(k)] = normalizeYAML(val)
		}
		return m
	case map[string]interface{}:
		for k, val := range t {
			t[k] = normalizeYAML(val)
		}
		return t
	case []interface{}:
		for i, val := range t {
			t[i] = normalizeYAML(val)
		}
		return t
	}
	return v
}

// applySeed 依次写入系统配置、交易对、策略、风控；策略参数先经过校验
func applySeed(ctx context.Context, target seedTarget, seed *SeedFile) (SeedResult, error) {
	ctx, logger := log.WithCtx(ctx)
	logger.PushPrefix("Seed")

	var res SeedResult

	for _, sys := range seed.System {
		if sys.Key == "" {
			return res, fmt.Errorf("system entry without key")
		}
		if err := target.SetSystemConfig(ctx, sys.Key, sys.Value, sys.Type, sys.Description, sys.Category); err != nil {
			return res, err
		}
		res.System++
	}

	for _, p := range seed.Pairs {
		pair, err := cex.ParseTradingPair(p.Symbol)
		if err != nil {
			return res, err
		}
		symbol := pair.String()

		err = target.AddTradingPair(ctx, database.TradingPairRow{
			Symbol:             symbol,
			BaseCurrency:       pair.Base,
			QuoteCurrency:      pair.Quote,
			IsActive:           p.Active == nil || *p.Active,
			InitialBalance:     decimal.NewFromFloat(p.InitialBalance),
			TradeSizeUSD:       decimal.NewFromFloat(p.TradeSizeUSD),
			MaxPositionPercent: p.MaxPositionPercent,
			MinTradeAmount:     decimal.NewFromFloat(p.MinTradeAmount),
			MaxTradeAmount:     decimal.NewFromFloat(p.MaxTradeAmount),
			PricePrecision:     p.PricePrecision,
			AmountPrecision:    p.AmountPrecision,
		})
		if err != nil {
			return res, err
		}
		res.Pairs++

		for _, st := range p.Strategies {
			row, err := strategyRow(symbol, st)
			if err != nil {
				return res, err
			}
			if err := target.UpsertStrategyConfig(ctx, row); err != nil {
				return res, err
			}
			res.Strategies++
		}

		if p.Risk != nil {
			r := p.Risk
			err := target.UpsertRiskConfig(ctx, database.RiskConfigRow{
				Symbol:                 symbol,
				StopLossPercent:        r.StopLossPercent,
				TakeProfitPercent:      r.TakeProfitPercent,
				MaxDailyTrades:         r.MaxDailyTrades,
				MaxDailyLossPercent:    r.MaxDailyLossPercent,
				TrailingStopEnabled:    r.TrailingStopEnabled,
				TrailingStopPercent:    r.TrailingStopPercent,
				MaxDrawdownPercent:     r.MaxDrawdownPercent,
				PositionSizingMethod:   r.PositionSizingMethod,
				VolatilityLookbackDays: r.VolatilityLookbackDays,
			})
			if err != nil {
				return res, fmt.Errorf("%s: %w", symbol, err)
			}
			res.Risk++
		}

		logger.Info("交易对已写入", "symbol", symbol, "strategies", len(p.Strategies), "risk", p.Risk != nil)
	}

	return res, nil
}

func strategyRow(symbol string, st SeedStrategy) (database.StrategyConfigRow, error) {
	if st.Name == "" {
		return database.StrategyConfigRow{}, fmt.Errorf("%s: strategy without name", symbol)
	}
	kind := st.Type
	if kind == "" {
		kind = st.Name
	}
	if _, err := strategy.New(st.Name, strategy.Type(kind), st.Parameters); err != nil {
		return database.StrategyConfigRow{}, fmt.Errorf("%s/%s: %w", symbol, st.Name, err)
	}

	row := database.StrategyConfigRow{
		Symbol:      symbol,
		Name:        st.Name,
		DisplayName: st.DisplayName,
		Type:        kind,
		Enabled:     st.Enabled == nil || *st.Enabled,
		Weight:      1,
		Parameters:  st.Parameters,
	}
	if row.DisplayName == "" {
		row.DisplayName = st.Name
	}
	if st.Weight != nil {
		row.Weight = *st.Weight
	}
	if row.Parameters == nil {
		row.Parameters = map[string]interface{}{}
	}
	return row, nil
}
