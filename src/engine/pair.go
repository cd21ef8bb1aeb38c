package engine

import (
	"context"
	"encoding/json"
	"fmt"

	"multicryptobot/src/aggregator"
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

// defaultAmountPrecision 交易对未配置数量精度时使用
const defaultAmountPrecision = 8

// pairRuntime 单个交易对跨轮保留的状态
type pairRuntime struct {
	pair   cex.TradingPair
	ledger *executor.Ledger
	window *CandleWindow

	strategies   map[string]*strategy.Strategy
	fingerprints map[string]string // 策略名 -> 类型+参数，变化时重建实例
	order        []string

	peak         decimal.Decimal // 资产峰值，计算回撤用
	lastPrice    decimal.Decimal
	lastDecision string
}

// runtime 取得交易对的运行状态，第一次时创建账本并从最新快照恢复
func (e *TradingEngine) runtime(ctx context.Context, pair cex.TradingPair, row database.TradingPairRow) *pairRuntime {
	symbol := pair.String()
	if rt, ok := e.pairs[symbol]; ok {
		return rt
	}

	ctx, logger := log.WithCtx(ctx)

	initial := row.InitialBalance
	if !initial.IsPositive() {
		initial = decimal.NewFromInt(1000)
	}
	ledger := e.book.Ledger(pair, initial)

	if e.store != nil {
		snap, err := e.store.LatestSnapshot(ctx, symbol)
		if err != nil {
			logger.Error(fmt.Sprintf("读取持仓快照失败: %s", symbol), "error", err)
		} else if err := ledger.Restore(snap); err != nil {
			logger.Error(fmt.Sprintf("恢复持仓快照失败: %s", symbol), "error", err)
		} else if snap != nil {
			logger.Info(fmt.Sprintf("从快照恢复持仓: %s state=%s cash=%s crypto=%s",
				symbol, snap.State, snap.Cash.StringFixed(2), snap.Crypto.String()))
		}
	}

	e.gate.SetReferenceBalance(symbol, initial)

	rt := &pairRuntime{
		pair:         pair,
		ledger:       ledger,
		window:       NewCandleWindow(e.opts.WindowSize),
		strategies:   make(map[string]*strategy.Strategy),
		fingerprints: make(map[string]string),
		peak:         ledger.Cash(),
	}
	e.pairs[symbol] = rt
	return rt
}

// syncStrategies 按启用的策略配置同步策略实例，返回按配置顺序排列的实例
func (rt *pairRuntime) syncStrategies(ctx context.Context, rows []database.StrategyConfigRow) []*strategy.Strategy {
	ctx, logger := log.WithCtx(ctx)

	seen := make(map[string]bool, len(rows))
	order := make([]string, 0, len(rows))
	for _, row := range rows {
		raw, _ := json.Marshal(row.Parameters)
		fp := row.Type + ":" + string(raw)

		if st, ok := rt.strategies[row.Name]; ok && rt.fingerprints[row.Name] == fp {
			st.SetPosition(rt.ledger.IsLong())
			seen[row.Name] = true
			order = append(order, row.Name)
			continue
		}

		st, err := strategy.New(row.Name, strategy.Type(row.Type), row.Parameters)
		if err != nil {
			logger.Error(fmt.Sprintf("创建策略失败: %s/%s", rt.pair, row.Name), "error", err)
			continue
		}
		st.SetPosition(rt.ledger.IsLong())
		rt.strategies[row.Name] = st
		rt.fingerprints[row.Name] = fp
		seen[row.Name] = true
		order = append(order, row.Name)
	}

	for name := range rt.strategies {
		if !seen[name] {
			delete(rt.strategies, name)
			delete(rt.fingerprints, name)
		}
	}
	rt.order = order

	out := make([]*strategy.Strategy, 0, len(order))
	for _, name := range order {
		out = append(out, rt.strategies[name])
	}
	return out
}

// evaluate 执行策略，策略内部panic时视为HOLD
func evaluate(st *strategy.Strategy, candles []*cex.KlineData) (sig strategy.Signal) {
	defer func() {
		if r := recover(); r != nil {
			sig = strategy.Signal{
				StrategyID: st.ID(),
				Action:     strategy.ActionHold,
				Reason:     fmt.Sprintf("strategy panic: %v", r),
				Indicators: map[string]float64{},
			}
		}
	}()
	return st.Evaluate(candles)
}

// processPair 处理一个交易对的一轮
func (e *TradingEngine) processPair(ctx context.Context, row database.TradingPairRow, settings configsvc.PortfolioSettings) error {
	ctx, logger := log.WithCtx(ctx)

	pair, err := cex.ParseTradingPair(row.Symbol)
	if err != nil {
		return err
	}
	symbol := pair.String()
	logger.PushPrefix(symbol)

	rt := e.runtime(ctx, pair, row)

	rows := e.config.EnabledStrategies(ctx, symbol)
	strategies := rt.syncStrategies(ctx, rows)
	if len(strategies) == 0 && !rt.ledger.IsLong() {
		logger.Info("警告: 没有启用的策略，跳过")
		return nil
	}

	price, err := e.market.CurrentPrice(ctx, pair)
	if err != nil {
		return fmt.Errorf("failed to get current price: %w", err)
	}
	if !price.IsPositive() {
		return fmt.Errorf("invalid price %s for %s", price, symbol)
	}
	rt.lastPrice = price

	defer e.snapshot(ctx, rt, price)

	limits := e.config.RiskLimitsForPair(ctx, symbol)

	total := rt.ledger.Portfolio(price).TotalValue
	if total.GreaterThan(rt.peak) {
		rt.peak = total
	}
	dd := risk.CheckDrawdown(rt.peak, total, limits.MaxDrawdownPercent)

	// 止损止盈不依赖策略投票，每轮都检查
	if exited, err := e.forceExit(ctx, rt, price, limits); exited {
		return err
	}

	if len(strategies) == 0 {
		logger.Info("警告: 没有启用的策略，只检查止损止盈")
		return nil
	}

	limit := e.opts.CandleLimit
	if rt.window.Len() == 0 {
		limit = e.opts.WindowSize
	}
	klines, err := e.market.GetKlines(ctx, pair, e.opts.Timeframe, limit)
	if err != nil {
		return fmt.Errorf("failed to get klines: %w", err)
	}
	rt.window.Merge(klines)
	candles := rt.window.Candles()

	signals := make([]strategy.Signal, 0, len(strategies))
	for _, st := range strategies {
		sig := evaluate(st, candles)
		signals = append(signals, sig)
		if sig.Action != strategy.ActionHold {
			e.recordSignal(ctx, symbol, price, sig)
		}
	}

	weights := e.config.StrategyWeights(ctx, symbol)
	decision := aggregator.Aggregate(signals, weights, rt.ledger.IsLong())
	rt.lastDecision = fmt.Sprintf("%s (buy=%.2f sell=%.2f)", decision.Action, decision.BuyScore, decision.SellScore)

	logger.Debug("聚合决策", "action", string(decision.Action), "reason", decision.Reason)

	switch decision.Action {
	case strategy.ActionBuy:
		err = e.buy(ctx, rt, row, settings, limits, dd, price, decision)
	case strategy.ActionSell:
		_, err = e.signalRegistry.HandleSignal(ctx, strategy.ActionSell, &TradeRequest{
			Ledger:    rt.ledger,
			OrderType: executor.OrderTypeSell,
			Price:     price,
			Reason:    decision.Reason,
			Strategy:  strongest(decision.Signals, strategy.ActionSell),
		})
	}
	rt.setPosition()
	return err
}

// forceExit 持仓触发止损/止盈/移动止损时强制卖出，返回是否已处理
func (e *TradingEngine) forceExit(ctx context.Context, rt *pairRuntime, price decimal.Decimal, limits risk.Limits) (bool, error) {
	if !rt.ledger.IsLong() {
		return false, nil
	}
	ctx, logger := log.WithCtx(ctx)

	exit := e.gate.CheckExit(rt.pair.String(), risk.Position{
		EntryPrice: rt.ledger.EntryPrice(),
		EntryTime:  rt.ledger.EntryTime(),
	}, price, limits)
	if !exit.Triggered() {
		return false, nil
	}

	logger.Info(fmt.Sprintf("触发强制平仓: %s", exit.Reason))
	rt.lastDecision = string(exit.Kind)
	_, err := e.signalRegistry.HandleSignal(ctx, strategy.ActionSell, &TradeRequest{
		Ledger:    rt.ledger,
		OrderType: executor.OrderType(exit.Kind),
		Price:     price,
		Reason:    exit.Reason,
		Strategy:  "risk",
	})
	rt.setPosition()
	return true, err
}

// buy 风控检查、仓位计算，通过后下买单
func (e *TradingEngine) buy(ctx context.Context, rt *pairRuntime, row database.TradingPairRow,
	settings configsvc.PortfolioSettings, limits risk.Limits, dd risk.Drawdown,
	price decimal.Decimal, decision aggregator.Decision) error {

	ctx, logger := log.WithCtx(ctx)
	symbol := rt.pair.String()

	if dd.Stop {
		e.rejectBuy(ctx, symbol, fmt.Sprintf("drawdown %.2f%% reached limit %.2f%%", dd.Percent, limits.MaxDrawdownPercent))
		return nil
	}
	if settings.MaxConcurrentPositions > 0 && e.book.OpenPositions() >= settings.MaxConcurrentPositions {
		e.rejectBuy(ctx, symbol, fmt.Sprintf("max concurrent positions reached (%d)", settings.MaxConcurrentPositions))
		return nil
	}

	tradeSize := row.TradeSizeUSD
	if !tradeSize.IsPositive() {
		tradeSize = decimal.NewFromInt(100)
	}

	cash := rt.ledger.Cash()
	if d := e.gate.CanPlaceTrade(symbol, limits, cash, tradeSize); !d.Allowed {
		e.rejectBuy(ctx, symbol, d.Reason)
		return nil
	}

	mult := e.gate.PositionSizeMultiplier(symbol)
	if dd.ReduceSize {
		mult *= 0.5
	}
	size := risk.PositionSize(tradeSize, mult, decimal.NewFromFloat(settings.TotalBalance), row.MaxPositionPercent)
	if size.GreaterThan(cash) {
		size = cash
	}

	precision := int32(row.AmountPrecision)
	if precision <= 0 {
		precision = defaultAmountPrecision
	}
	amount := size.Div(price).Truncate(precision)
	if row.MaxTradeAmount.IsPositive() && amount.GreaterThan(row.MaxTradeAmount) {
		amount = row.MaxTradeAmount
	}
	if row.MinTradeAmount.IsPositive() && amount.LessThan(row.MinTradeAmount) {
		e.rejectBuy(ctx, symbol, fmt.Sprintf("amount %s below minimum %s", amount, row.MinTradeAmount))
		return nil
	}
	if err := risk.ValidateTradeParameters(price, amount, tradeSize); err != nil {
		e.rejectBuy(ctx, symbol, err.Error())
		return nil
	}

	logger.Info(fmt.Sprintf("买入: size=%s amount=%s multiplier=%.2f", size.StringFixed(2), amount, mult))

	_, err := e.signalRegistry.HandleSignal(ctx, strategy.ActionBuy, &TradeRequest{
		Ledger:    rt.ledger,
		OrderType: executor.OrderTypeBuy,
		Price:     price,
		Amount:    amount,
		Reason:    decision.Reason,
		Strategy:  strongest(decision.Signals, strategy.ActionBuy),
	})
	return err
}

func (e *TradingEngine) rejectBuy(ctx context.Context, symbol, reason string) {
	_, logger := log.WithCtx(ctx)
	logger.Info(fmt.Sprintf("买入被风控拒绝: %s", reason))
	audit.Record(ctx, e.sink, audit.Event{
		Type:     audit.EventSignal,
		Category: "risk",
		Symbol:   symbol,
		Severity: audit.SeverityWarning,
		Message:  "BUY rejected: " + reason,
	})
}

// recordSignal 非HOLD信号：落库、审计、通知
func (e *TradingEngine) recordSignal(ctx context.Context, symbol string, price decimal.Decimal, sig strategy.Signal) {
	ctx, logger := log.WithCtx(ctx)

	if sig.Timestamp.IsZero() {
		sig.Timestamp = e.now()
	}
	if e.store != nil {
		if err := e.store.SaveSignal(ctx, symbol, sig); err != nil {
			logger.Error("保存信号失败", "error", err)
		}
	}

	details := make(map[string]interface{}, len(sig.Indicators)+1)
	for k, v := range sig.Indicators {
		details[k] = v
	}
	details["confidence"] = sig.Confidence
	audit.Record(ctx, e.sink, audit.Event{
		Type:      audit.EventSignal,
		Category:  "strategy",
		Symbol:    symbol,
		Strategy:  sig.StrategyID,
		Severity:  audit.SeverityInfo,
		Message:   fmt.Sprintf("%s: %s", sig.Action, sig.Reason),
		Details:   details,
		Price:     decimal.NewNullDecimal(price),
		Timestamp: sig.Timestamp,
	})

	e.notify(ctx, notify.SignalMessage(symbol, string(sig.Action), sig.StrategyID, price, sig.Indicators, sig.Timestamp))
}

// snapshot 每轮结束写入持仓快照
func (e *TradingEngine) snapshot(ctx context.Context, rt *pairRuntime, price decimal.Decimal) {
	rt.ledger.Snapshot(ctx, price)
}

// setPosition 成交后同步各策略的持仓标志
func (rt *pairRuntime) setPosition() {
	long := rt.ledger.IsLong()
	for _, st := range rt.strategies {
		st.SetPosition(long)
	}
}

// strongest 给出决策方向上置信度最高的策略
func strongest(signals []strategy.Signal, action strategy.Action) string {
	best := ""
	conf := -1.0
	for _, s := range signals {
		if s.Action == action && s.Confidence > conf {
			best = s.StrategyID
			conf = s.Confidence
		}
	}
	return best
}
