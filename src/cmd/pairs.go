package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"multicryptobot/src/configsvc"
	"multicryptobot/src/database"

	"github.com/shopspring/decimal"
	"github.com/xpwu/go-cmd/arg"
	"github.com/xpwu/go-cmd/cmd"
)

// RegisterPairCmds 注册交易对、策略、风控配置命令
func RegisterPairCmds() {
	registerPairsCmd()
	registerPairAddCmd()
	registerStrategiesCmd()
	registerStrategyUpdateCmd()
	registerRiskCmd()
	registerRiskUpdateCmd()
}

func registerPairsCmd() {
	cmd.RegisterCmd("pairs", "list active trading pairs", func(args *arg.Arg) {
		args.Parse()

		withConfig(func(ctx context.Context, s *configSession) error {
			pairs, err := s.svc.LoadActivePairs(ctx)
			if err != nil {
				return err
			}

			fmt.Printf("📋 Active trading pairs: %d\n", len(pairs))
			fmt.Println(strings.Repeat("=", 90))
			fmt.Printf("%-12s %12s %12s %8s %12s %12s %6s\n", "Symbol", "Balance", "Trade size", "Max %", "Min amount", "Max amount", "Prec")
			fmt.Println(strings.Repeat("-", 90))

			symbols := make([]string, 0, len(pairs))
			for _, p := range pairs {
				symbols = append(symbols, p.Symbol)
				fmt.Printf("%-12s %12s %12s %8.1f %12s %12s %3d/%-2d\n",
					p.Symbol,
					p.InitialBalance.StringFixed(2),
					p.TradeSizeUSD.StringFixed(2),
					p.MaxPositionPercent,
					p.MinTradeAmount.String(),
					p.MaxTradeAmount.String(),
					p.PricePrecision,
					p.AmountPrecision)
			}

			if len(symbols) == 0 {
				return nil
			}
			total, err := s.db.SumMaxPositionPercent(ctx, symbols)
			if err != nil {
				return err
			}
			fmt.Println(strings.Repeat("-", 90))
			if total > 100 {
				fmt.Printf("⚠️ Total max position: %.1f%% (exceeds 100%%)\n", total)
			} else {
				fmt.Printf("📊 Total max position: %.1f%%\n", total)
			}
			return nil
		})
	})
}

func registerPairAddCmd() {
	var (
		symbol, base, quote   string
		balance, tradeSize    float64
		maxPosition           float64
		minAmount, maxAmount  float64
		pricePrec, amountPrec int
		inactive              bool
	)

	cmd.RegisterCmd("pair-add", "add or update a trading pair", func(args *arg.Arg) {
		args.String(&symbol, "s", "symbol, e.g. BTC/USDT")
		args.String(&base, "base", "base currency (used with -quote when -s is empty)")
		args.String(&quote, "quote", "quote currency")
		args.Float64(&balance, "balance", "initial balance (default: 1000)")
		args.Float64(&tradeSize, "size", "trade size in quote currency (default: 100)")
		args.Float64(&maxPosition, "maxpos", "max position percent (default: 20)")
		args.Float64(&minAmount, "min", "min trade amount (default: 0.001)")
		args.Float64(&maxAmount, "max", "max trade amount (default: 10000)")
		args.Int(&pricePrec, "pp", "price precision (default: 2)")
		args.Int(&amountPrec, "ap", "amount precision (default: 6)")
		args.Bool(&inactive, "inactive", "add the pair disabled")
		args.Parse()

		if symbol == "" && base != "" && quote != "" {
			symbol = base + "/" + quote
		}
		if symbol == "" {
			fmt.Println("❌ Error: -s or -base/-quote is required")
			fmt.Println("💡 Usage: pair-add -s ETH/USDT -balance 1000 -size 100")
			return
		}

		row := database.TradingPairRow{
			Symbol:             symbol,
			BaseCurrency:       strings.ToUpper(base),
			QuoteCurrency:      strings.ToUpper(quote),
			IsActive:           !inactive,
			InitialBalance:     decimal.NewFromFloat(balance),
			TradeSizeUSD:       decimal.NewFromFloat(tradeSize),
			MaxPositionPercent: maxPosition,
			MinTradeAmount:     decimal.NewFromFloat(minAmount),
			MaxTradeAmount:     decimal.NewFromFloat(maxAmount),
			PricePrecision:     pricePrec,
			AmountPrecision:    amountPrec,
		}

		withConfig(func(ctx context.Context, s *configSession) error {
			if err := s.svc.AddTradingPair(ctx, row); err != nil {
				return err
			}
			fmt.Printf("✅ Trading pair %s saved\n", strings.ToUpper(symbol))
			return nil
		})
	})
}

func registerStrategiesCmd() {
	var symbol string

	cmd.RegisterCmd("strategies", "list strategies configured on a pair", func(args *arg.Arg) {
		args.String(&symbol, "s", "symbol, e.g. BTC/USDT")
		args.Parse()

		if symbol == "" {
			fmt.Println("❌ Error: -s is required")
			return
		}

		withConfig(func(ctx context.Context, s *configSession) error {
			rows, err := s.svc.PairStrategies(ctx, strings.ToUpper(symbol))
			if err != nil {
				return err
			}
			weights := configsvc.NormalizeWeights(rows)

			fmt.Printf("🧠 Strategies on %s: %d\n", strings.ToUpper(symbol), len(rows))
			fmt.Println(strings.Repeat("=", 90))
			fmt.Printf("%-20s %-16s %-8s %8s %8s  %s\n", "Name", "Type", "Enabled", "Weight", "Norm", "Parameters")
			fmt.Println(strings.Repeat("-", 90))
			for _, r := range rows {
				params, _ := json.Marshal(r.Parameters)
				fmt.Printf("%-20s %-16s %-8t %8.2f %8.3f  %s\n", r.Name, r.Type, r.Enabled, r.Weight, weights[r.Name], params)
			}
			return nil
		})
	})
}

func registerStrategyUpdateCmd() {
	var symbol, name, enabled, weight, params string

	cmd.RegisterCmd("strategy-update", "update enabled flag, weight or parameters of a pair strategy", func(args *arg.Arg) {
		args.String(&symbol, "s", "symbol, e.g. BTC/USDT")
		args.String(&name, "name", "strategy name")
		args.String(&enabled, "enabled", "true|false")
		args.String(&weight, "weight", "voting weight")
		args.String(&params, "params", "parameters as a JSON object")
		args.Parse()

		if symbol == "" || name == "" {
			fmt.Println("❌ Error: -s and -name are required")
			fmt.Println(`💡 Usage: strategy-update -s BTC/USDT -name sma_crossover -weight 0.5 -params '{"short_period":10}'`)
			return
		}

		update, err := buildStrategyUpdate(enabled, weight, params)
		if err != nil {
			fmt.Printf("❌ %v\n", err)
			return
		}

		withConfig(func(ctx context.Context, s *configSession) error {
			if err := s.svc.UpdateStrategyConfig(ctx, strings.ToUpper(symbol), name, update); err != nil {
				return err
			}
			fmt.Printf("✅ Strategy %s on %s updated\n", name, strings.ToUpper(symbol))
			return nil
		})
	})
}

// buildStrategyUpdate 未给出的字段保持为nil
func buildStrategyUpdate(enabled, weight, params string) (database.StrategyUpdate, error) {
	var update database.StrategyUpdate

	if enabled != "" {
		v, err := strconv.ParseBool(enabled)
		if err != nil {
			return update, fmt.Errorf("invalid -enabled %q", enabled)
		}
		update.Enabled = &v
	}
	if weight != "" {
		v, err := strconv.ParseFloat(weight, 64)
		if err != nil || v < 0 {
			return update, fmt.Errorf("invalid -weight %q", weight)
		}
		update.Weight = &v
	}
	if params != "" {
		if err := json.Unmarshal([]byte(params), &update.Parameters); err != nil {
			return update, fmt.Errorf("invalid -params: %w", err)
		}
	}

	if update.Enabled == nil && update.Weight == nil && update.Parameters == nil {
		return update, fmt.Errorf("nothing to update: give -enabled, -weight or -params")
	}
	return update, nil
}

func registerRiskCmd() {
	var symbol string

	cmd.RegisterCmd("risk", "show the risk config of a pair", func(args *arg.Arg) {
		args.String(&symbol, "s", "symbol, e.g. BTC/USDT")
		args.Parse()

		if symbol == "" {
			fmt.Println("❌ Error: -s is required")
			return
		}
		symbol = strings.ToUpper(symbol)

		withConfig(func(ctx context.Context, s *configSession) error {
			row, err := s.svc.RiskConfig(ctx, symbol)
			if err != nil {
				return err
			}
			if row == nil {
				fmt.Printf("⚠️ No risk config for %s, defaults apply\n", symbol)
			}
			limits := s.svc.RiskLimitsForPair(ctx, symbol)

			fmt.Printf("🛡️ Risk limits for %s:\n", symbol)
			fmt.Printf("├─ Stop loss: %.2f%%\n", limits.StopLossPercent)
			fmt.Printf("├─ Take profit: %.2f%%\n", limits.TakeProfitPercent)
			fmt.Printf("├─ Max daily trades: %d\n", limits.MaxDailyTrades)
			fmt.Printf("├─ Max daily loss: %.2f%%\n", limits.MaxDailyLossPercent)
			fmt.Printf("├─ Trailing stop: %t (%.2f%%)\n", limits.TrailingStopEnabled, limits.TrailingStopPercent)
			fmt.Printf("└─ Max drawdown: %.2f%%\n", limits.MaxDrawdownPercent)
			if row != nil {
				fmt.Printf("   Sizing: %s, volatility lookback %d days\n", row.PositionSizingMethod, row.VolatilityLookbackDays)
			}
			return nil
		})
	})
}

func registerRiskUpdateCmd() {
	var symbol, field, value string

	cmd.RegisterCmd("risk-update", "update one risk config field of a pair", func(args *arg.Arg) {
		args.String(&symbol, "s", "symbol, e.g. BTC/USDT")
		args.String(&field, "field", "one of: "+strings.Join(database.RiskConfigFields, ", "))
		args.String(&value, "v", "new value")
		args.Parse()

		if symbol == "" || field == "" || value == "" {
			fmt.Println("❌ Error: -s, -field and -v are required")
			fmt.Println("💡 Usage: risk-update -s BTC/USDT -field stop_loss_percent -v 3")
			return
		}

		v, err := parseRiskField(field, value)
		if err != nil {
			fmt.Printf("❌ %v\n", err)
			return
		}

		withConfig(func(ctx context.Context, s *configSession) error {
			err := s.svc.UpdatePairRiskConfig(ctx, strings.ToUpper(symbol), map[string]interface{}{field: v})
			if err != nil {
				return err
			}
			fmt.Printf("✅ %s %s = %v\n", strings.ToUpper(symbol), field, v)
			return nil
		})
	})
}

// parseRiskField 按列类型解析风控字段
func parseRiskField(field, raw string) (interface{}, error) {
	switch field {
	case "trailing_stop_enabled":
		v, err := strconv.ParseBool(raw)
		if err != nil {
			return nil, fmt.Errorf("%s: invalid boolean %q", field, raw)
		}
		return v, nil
	case "max_daily_trades", "volatility_lookback_days":
		v, err := strconv.Atoi(raw)
		if err != nil || v < 0 {
			return nil, fmt.Errorf("%s: invalid integer %q", field, raw)
		}
		return v, nil
	case "position_sizing_method":
		return raw, nil
	case "stop_loss_percent", "take_profit_percent", "max_daily_loss_percent",
		"trailing_stop_percent", "max_drawdown_percent":
		v, err := strconv.ParseFloat(raw, 64)
		if err != nil || v < 0 {
			return nil, fmt.Errorf("%s: invalid number %q", field, raw)
		}
		return v, nil
	}
	return nil, fmt.Errorf("unknown risk field %q", field)
}
