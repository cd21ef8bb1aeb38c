package risk

import (
	"fmt"
	"sync"
	"time"

	"github.com/shopspring/decimal"
)

// DefaultReferenceBalance 计算当日亏损百分比的基准资金
var DefaultReferenceBalance = decimal.NewFromInt(10000)

// Decision 风控检查结果，拒绝是正常的控制流而不是错误
type Decision struct {
	Allowed bool   `json:"allowed"`
	Reason  string `json:"reason"`
}

func allow() Decision { return Decision{Allowed: true, Reason: "trade allowed"} }

func reject(format string, args ...interface{}) Decision {
	return Decision{Allowed: false, Reason: fmt.Sprintf(format, args...)}
}

// pairState 单个交易对的风控计数
type pairState struct {
	day       string // UTC日期
	trades    int
	dailyLoss decimal.Decimal

	wins, losses      int
	consecutiveLosses int

	// 移动止损
	entryTime time.Time
	highest   decimal.Decimal
}

// Gate 风控闸门，按交易对维护当日计数和历史胜负
//
// 当日计数在新的UTC日期第一次被访问时清零。
type Gate struct {
	mu        sync.Mutex
	pairs     map[string]*pairState
	reference map[string]decimal.Decimal
	now       func() time.Time
}

// NewGate 创建风控闸门
func NewGate() *Gate {
	return &Gate{
		pairs:     make(map[string]*pairState),
		reference: make(map[string]decimal.Decimal),
		now:       time.Now,
	}
}

// SetClock 测试用
func (g *Gate) SetClock(now func() time.Time) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.now = now
}

// SetReferenceBalance 设置交易对计算亏损比例的基准资金
func (g *Gate) SetReferenceBalance(symbol string, balance decimal.Decimal) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if balance.IsPositive() {
		g.reference[symbol] = balance
	}
}

// state 调用方必须持有锁
func (g *Gate) state(symbol string) *pairState {
	st, ok := g.pairs[symbol]
	if !ok {
		st = &pairState{}
		g.pairs[symbol] = st
	}
	today := g.now().UTC().Format("2006-01-02")
	if st.day != today {
		st.day = today
		st.trades = 0
		st.dailyLoss = decimal.Zero
	}
	return st
}

func (g *Gate) dailyLossPercent(symbol string, st *pairState) float64 {
	ref, ok := g.reference[symbol]
	if !ok {
		ref = DefaultReferenceBalance
	}
	return st.dailyLoss.Div(ref).Mul(decimal.NewFromInt(100)).InexactFloat64()
}

// CanPlaceTrade 开仓前检查：当日交易次数、当日亏损、可用资金
func (g *Gate) CanPlaceTrade(symbol string, limits Limits, cash, tradeSize decimal.Decimal) Decision {
	g.mu.Lock()
	defer g.mu.Unlock()

	st := g.state(symbol)
	if st.trades >= limits.MaxDailyTrades {
		return reject("daily trade limit reached (%d)", limits.MaxDailyTrades)
	}
	if loss := g.dailyLossPercent(symbol, st); loss >= limits.MaxDailyLossPercent {
		return reject("daily loss limit reached (%.2f%% >= %.2f%%)", loss, limits.MaxDailyLossPercent)
	}
	if cash.LessThan(tradeSize) {
		return reject("insufficient balance for trade size (%s < %s)", cash.StringFixed(2), tradeSize.StringFixed(2))
	}
	return allow()
}

// RecordTrade 记录一笔已成交的订单
func (g *Gate) RecordTrade(symbol string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.state(symbol).trades++
}

// RecordResult 记录平仓盈亏，亏损计入当日亏损
func (g *Gate) RecordResult(symbol string, pnl decimal.Decimal) {
	g.mu.Lock()
	defer g.mu.Unlock()

	st := g.state(symbol)
	switch {
	case pnl.IsPositive():
		st.wins++
		st.consecutiveLosses = 0
	default:
		st.losses++
		st.consecutiveLosses++
		if pnl.IsNegative() {
			st.dailyLoss = st.dailyLoss.Add(pnl.Abs())
		}
	}
}

// Stats 交易对的风控统计
type Stats struct {
	TradesToday       int     `json:"trades_today"`
	DailyLossPercent  float64 `json:"daily_loss_percent"`
	TotalTrades       int     `json:"total_trades"` // 已平仓
	WinRate           float64 `json:"win_rate"`     // 百分比
	ConsecutiveLosses int     `json:"consecutive_losses"`
}

// Stats 当前统计
func (g *Gate) Stats(symbol string) Stats {
	g.mu.Lock()
	defer g.mu.Unlock()

	st := g.state(symbol)
	s := Stats{
		TradesToday:       st.trades,
		DailyLossPercent:  g.dailyLossPercent(symbol, st),
		TotalTrades:       st.wins + st.losses,
		ConsecutiveLosses: st.consecutiveLosses,
	}
	if s.TotalTrades > 0 {
		s.WinRate = float64(st.wins) / float64(s.TotalTrades) * 100
	}
	return s
}

// PositionSizeMultiplier 根据近期表现调整仓位
//
// 没有平仓记录时不看胜率。
func (g *Gate) PositionSizeMultiplier(symbol string) float64 {
	s := g.Stats(symbol)
	lowWinRate := s.TotalTrades > 0 && s.WinRate < 30
	if lowWinRate || s.ConsecutiveLosses >= 3 || s.DailyLossPercent > 3 {
		return 0.5
	}
	if s.WinRate > 70 && s.TotalTrades > 10 {
		return 1.2
	}
	return 1.0
}
