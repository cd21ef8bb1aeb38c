package risk

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// ExitKind 强制平仓原因
type ExitKind string

const (
	ExitNone         ExitKind = ""
	ExitStopLoss     ExitKind = "STOP_LOSS"
	ExitTakeProfit   ExitKind = "TAKE_PROFIT"
	ExitTrailingStop ExitKind = "TRAILING_STOP"
)

// Position 持仓信息，EntryPrice为零表示空仓
type Position struct {
	EntryPrice decimal.Decimal
	EntryTime  time.Time
}

// Exit 止损止盈检查结果
type Exit struct {
	Kind       ExitKind
	PnLPercent float64
	Reason     string
}

// Triggered 是否需要强制卖出
func (e Exit) Triggered() bool { return e.Kind != ExitNone }

var hundred = decimal.NewFromInt(100)

// CheckExit 每轮对持仓做止损、止盈、移动止损检查，优先级依次降低
func (g *Gate) CheckExit(symbol string, pos Position, price decimal.Decimal, limits Limits) Exit {
	if !pos.EntryPrice.IsPositive() || !price.IsPositive() {
		return Exit{}
	}

	pnl := price.Sub(pos.EntryPrice).Div(pos.EntryPrice).Mul(hundred).InexactFloat64()

	// 1. 止损
	if pnl <= -limits.StopLossPercent {
		return Exit{Kind: ExitStopLoss, PnLPercent: pnl,
			Reason: fmt.Sprintf("stop loss triggered: %.2f%% (limit -%.2f%%)", pnl, limits.StopLossPercent)}
	}
	// 2. 止盈
	if pnl >= limits.TakeProfitPercent {
		return Exit{Kind: ExitTakeProfit, PnLPercent: pnl,
			Reason: fmt.Sprintf("take profit triggered: %.2f%% (target %.2f%%)", pnl, limits.TakeProfitPercent)}
	}
	// 3. 移动止损
	if !limits.TrailingStopEnabled {
		return Exit{PnLPercent: pnl}
	}

	g.mu.Lock()
	st, ok := g.pairs[symbol]
	if !ok {
		st = &pairState{}
		g.pairs[symbol] = st
	}
	if !st.entryTime.Equal(pos.EntryTime) || st.highest.IsZero() {
		st.entryTime = pos.EntryTime
		st.highest = pos.EntryPrice
	}
	if price.GreaterThan(st.highest) {
		st.highest = price
	}
	highest := st.highest
	g.mu.Unlock()

	stop := highest.Mul(decimal.NewFromInt(1).Sub(decimal.NewFromFloat(limits.TrailingStopPercent).Div(hundred)))
	if highest.GreaterThan(pos.EntryPrice) && price.LessThanOrEqual(stop) {
		return Exit{Kind: ExitTrailingStop, PnLPercent: pnl,
			Reason: fmt.Sprintf("trailing stop triggered: price %s <= %s (high %s)",
				price.String(), stop.StringFixed(8), highest.String())}
	}
	return Exit{PnLPercent: pnl}
}
