package executor

import (
	"context"
	"fmt"
	"time"

	"multicryptobot/src/cex"

	"github.com/shopspring/decimal"
	"github.com/xpwu/go-log/log"
)

// Ledger 单个交易对的持仓状态机：FLAT --BUY--> LONG --SELL--> FLAT
//
// gateway 为空时为模拟盘，按决策价格成交。
// Ledger 不是并发安全的，同一交易对由引擎顺序驱动。
type Ledger struct {
	pair cex.TradingPair

	state      State
	cash       decimal.Decimal
	crypto     decimal.Decimal
	entryPrice decimal.Decimal
	entryTime  time.Time

	initialCash   decimal.Decimal
	totalTrades   int
	winningTrades int
	losingTrades  int
	realizedPnL   decimal.Decimal

	gateway  cex.OrderGateway
	recorder Recorder
	now      func() time.Time
}

// NewLedger 创建空仓账本
func NewLedger(pair cex.TradingPair, cash decimal.Decimal, gateway cex.OrderGateway, recorder Recorder) *Ledger {
	return &Ledger{
		pair:     pair,
		state:    StateFlat,
		cash:     cash,
		crypto:   decimal.Zero,

		initialCash: cash,
		realizedPnL: decimal.Zero,

		gateway:  gateway,
		recorder: recorder,
		now:      time.Now,
	}
}

// Pair 交易对
func (l *Ledger) Pair() cex.TradingPair { return l.pair }

// State 当前状态
func (l *Ledger) State() State { return l.state }

// IsLong 是否持仓
func (l *Ledger) IsLong() bool { return l.state == StateLong }

// Cash 现金余额
func (l *Ledger) Cash() decimal.Decimal { return l.cash }

// Crypto 持仓数量
func (l *Ledger) Crypto() decimal.Decimal { return l.crypto }

// EntryPrice 开仓价，空仓为零
func (l *Ledger) EntryPrice() decimal.Decimal { return l.entryPrice }

// EntryTime 开仓时间
func (l *Ledger) EntryTime() time.Time { return l.entryTime }

// IsPaper 是否模拟盘
func (l *Ledger) IsPaper() bool { return l.gateway == nil }

// Buy 空仓买入
func (l *Ledger) Buy(ctx context.Context, order Order) (*OrderRecord, error) {
	ctx, logger := log.WithCtx(ctx)
	logger.PushPrefix("Ledger")

	if l.state != StateFlat {
		return nil, fmt.Errorf("%w: buy while %s on %s", ErrInvalidTransition, l.state, l.pair)
	}
	if !order.Price.IsPositive() || !order.Amount.IsPositive() {
		return nil, fmt.Errorf("invalid buy order: price=%s amount=%s", order.Price, order.Amount)
	}
	cost := order.Price.Mul(order.Amount)
	if cost.GreaterThan(l.cash) {
		return nil, fmt.Errorf("%w: need %s, have %s", ErrInsufficientBalance, cost.StringFixed(2), l.cash.StringFixed(2))
	}
	order.Type = OrderTypeBuy

	record, err := l.fill(ctx, order, order.Amount)
	if err != nil {
		return nil, err
	}

	// 实盘成交价可能高于决策价，已成交不可回滚，现金最多扣到零
	if record.TotalValue.GreaterThan(l.cash) {
		logger.Info(fmt.Sprintf("警告: %s 成交额 %s 超过可用现金 %s，现金记为 0",
			l.pair, record.TotalValue.StringFixed(2), l.cash.StringFixed(2)))
		l.cash = decimal.Zero
	} else {
		l.cash = l.cash.Sub(record.TotalValue)
	}
	l.crypto = l.crypto.Add(record.Amount)
	l.entryPrice = record.Price
	l.entryTime = record.ExecutedAt
	l.state = StateLong
	l.totalTrades++

	logger.Info(fmt.Sprintf("买入成交 %s: amount=%s price=%s cash=%s",
		l.pair, record.Amount, record.Price, l.cash.StringFixed(2)))

	l.persist(ctx, record, record.Price)
	return record, nil
}

// Sell 持仓全部卖出，order.Type 可为 SELL/STOP_LOSS/TAKE_PROFIT/TRAILING_STOP；实盘部分成交时保持 LONG
func (l *Ledger) Sell(ctx context.Context, order Order) (*OrderRecord, error) {
	ctx, logger := log.WithCtx(ctx)
	logger.PushPrefix("Ledger")

	if l.state != StateLong {
		return nil, fmt.Errorf("%w: sell while %s on %s", ErrInvalidTransition, l.state, l.pair)
	}
	if !order.Price.IsPositive() {
		return nil, fmt.Errorf("invalid sell order: price=%s", order.Price)
	}
	if order.Type == "" || order.Type == OrderTypeBuy {
		order.Type = OrderTypeSell
	}

	record, err := l.fill(ctx, order, l.crypto)
	if err != nil {
		return nil, err
	}
	record.RealizedPnL = record.Price.Sub(l.entryPrice).Mul(record.Amount)

	l.cash = l.cash.Add(record.TotalValue)
	l.crypto = l.crypto.Sub(record.Amount)
	if l.crypto.IsPositive() {
		// 部分成交，剩余仓位保持 LONG，入场价不变
		logger.Info(fmt.Sprintf("警告: %s 卖单部分成交，剩余 %s", l.pair, l.crypto))
	} else {
		l.crypto = decimal.Zero
		l.entryPrice = decimal.Zero
		l.entryTime = time.Time{}
		l.state = StateFlat
	}
	l.totalTrades++
	l.realizedPnL = l.realizedPnL.Add(record.RealizedPnL)
	if record.RealizedPnL.IsPositive() {
		l.winningTrades++
	} else {
		l.losingTrades++
	}

	logger.Info(fmt.Sprintf("卖出成交 %s (%s): amount=%s price=%s pnl=%s cash=%s",
		l.pair, record.Type, record.Amount, record.Price, record.RealizedPnL.StringFixed(2), l.cash.StringFixed(2)))

	l.persist(ctx, record, record.Price)
	return record, nil
}

// fill 模拟盘直接按决策价成交，实盘走交易所市价单；失败时账本不变
func (l *Ledger) fill(ctx context.Context, order Order, amount decimal.Decimal) (*OrderRecord, error) {
	record := &OrderRecord{
		Symbol:        l.pair.String(),
		Type:          order.Type,
		Side:          order.Type.Side(),
		Price:         order.Price,
		Amount:        amount,
		Status:        "FILLED",
		PaperTrade:    l.gateway == nil,
		Reason:        order.Reason,
		Strategy:      order.Strategy,
		CorrelationID: order.CorrelationID,
		ExecutedAt:    l.now(),
	}

	if l.gateway == nil {
		record.OrderID = fmt.Sprintf("paper_%d", record.ExecutedAt.UnixNano())
	} else {
		result, err := l.gateway.PlaceMarketOrder(ctx, l.pair, record.Side, amount)
		if err != nil {
			return nil, fmt.Errorf("failed to place %s order: %w", record.Side, err)
		}
		record.OrderID = result.OrderID
		if result.Status != "" {
			record.Status = result.Status
		}
		if result.Price.IsPositive() {
			record.Price = result.Price
		}
		if result.Quantity.IsPositive() {
			record.Amount = result.Quantity
		}
		if !result.TransactTime.IsZero() {
			record.ExecutedAt = result.TransactTime
		}
	}

	record.TotalValue = record.Price.Mul(record.Amount)
	return record, nil
}

// Portfolio 按给定价格估值
func (l *Ledger) Portfolio(price decimal.Decimal) *Snapshot {
	s := &Snapshot{
		Symbol:        l.pair.String(),
		State:         l.state,
		Cash:          l.cash,
		Crypto:        l.crypto,
		Price:         price,
		TotalValue:    l.cash.Add(l.crypto.Mul(price)),
		EntryPrice:    l.entryPrice,
		UnrealizedPnL: decimal.Zero,
		Timestamp:     l.now(),
	}
	if l.state == StateLong {
		s.UnrealizedPnL = price.Sub(l.entryPrice).Mul(l.crypto)
	}
	return s
}

// Statistics 交易统计
func (l *Ledger) Statistics(price decimal.Decimal) map[string]interface{} {
	value := l.cash.Add(l.crypto.Mul(price))
	totalReturn := decimal.Zero
	if !l.initialCash.IsZero() {
		totalReturn = value.Sub(l.initialCash).Div(l.initialCash)
	}
	return map[string]interface{}{
		"initial_capital": l.initialCash,
		"portfolio":       value,
		"total_return":    totalReturn,
		"realized_pnl":    l.realizedPnL,
		"total_trades":    l.totalTrades,
		"winning_trades":  l.winningTrades,
		"losing_trades":   l.losingTrades,
		"cash":            l.cash,
		"position":        l.crypto,
		"state":           string(l.state),
	}
}

// Snapshot 记录一次快照，失败只记日志
func (l *Ledger) Snapshot(ctx context.Context, price decimal.Decimal) *Snapshot {
	s := l.Portfolio(price)
	if l.recorder == nil {
		return s
	}
	ctx, logger := log.WithCtx(ctx)
	logger.PushPrefix("Ledger")
	if err := l.recorder.SaveSnapshot(ctx, s); err != nil {
		logger.Error(fmt.Sprintf("保存快照失败 %s: %v", l.pair, err))
	}
	return s
}

func (l *Ledger) persist(ctx context.Context, record *OrderRecord, price decimal.Decimal) {
	if l.recorder == nil {
		return
	}
	_, logger := log.WithCtx(ctx)
	logger.PushPrefix("Ledger")
	if err := l.recorder.SaveOrder(ctx, record); err != nil {
		logger.Error(fmt.Sprintf("保存订单失败 %s %s: %v", l.pair, record.OrderID, err))
	}
	l.Snapshot(ctx, price)
}

// Restore 从最近一次快照恢复余额和持仓，只能在还没有交易的账本上调用
func (l *Ledger) Restore(s *Snapshot) error {
	if s == nil {
		return nil
	}
	if l.totalTrades > 0 {
		return fmt.Errorf("%w: restore after trading on %s", ErrInvalidTransition, l.pair)
	}
	if s.Symbol != l.pair.String() {
		return fmt.Errorf("snapshot symbol %s does not match %s", s.Symbol, l.pair)
	}

	switch s.State {
	case StateLong:
		if !s.Crypto.IsPositive() {
			return fmt.Errorf("long snapshot without position on %s", l.pair)
		}
		l.entryPrice = s.EntryPrice
		l.entryTime = s.Timestamp
	case StateFlat:
		l.entryPrice = decimal.Zero
		l.entryTime = time.Time{}
	default:
		return fmt.Errorf("unknown snapshot state %q", s.State)
	}

	l.state = s.State
	l.cash = s.Cash
	l.crypto = s.Crypto
	return nil
}
