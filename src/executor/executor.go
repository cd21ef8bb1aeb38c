package executor

import (
	"context"
	"errors"
	"time"

	"multicryptobot/src/cex"

	"github.com/shopspring/decimal"
)

var (
	// ErrInvalidTransition 持仓时买入或空仓时卖出
	ErrInvalidTransition = errors.New("invalid position transition")
	// ErrInsufficientBalance 现金不足
	ErrInsufficientBalance = errors.New("insufficient balance")
)

// State 单个交易对的持仓状态
type State string

const (
	StateFlat State = "FLAT"
	StateLong State = "LONG"
)

// OrderType 订单类型，强制平仓与信号卖出分开记录
type OrderType string

const (
	OrderTypeBuy          OrderType = "BUY"
	OrderTypeSell         OrderType = "SELL"
	OrderTypeStopLoss     OrderType = "STOP_LOSS"
	OrderTypeTakeProfit   OrderType = "TAKE_PROFIT"
	OrderTypeTrailingStop OrderType = "TRAILING_STOP"
)

// Side 订单方向
func (t OrderType) Side() cex.OrderSide {
	if t == OrderTypeBuy {
		return cex.OrderSideBuy
	}
	return cex.OrderSideSell
}

// Order 引擎发给账本的下单请求
type Order struct {
	Type          OrderType
	Price         decimal.Decimal // 决策价格，模拟盘按此成交
	Amount        decimal.Decimal // 买入数量，卖出时忽略（全部卖出）
	Reason        string
	Strategy      string
	CorrelationID string
}

// OrderRecord 成交记录，对应 trade_orders 表
type OrderRecord struct {
	Symbol        string          `json:"symbol"`
	OrderID       string          `json:"order_id"`
	Type          OrderType       `json:"order_type"`
	Side          cex.OrderSide   `json:"side"`
	Price         decimal.Decimal `json:"price"`
	Amount        decimal.Decimal `json:"amount"`
	TotalValue    decimal.Decimal `json:"total_value"`
	Status        string          `json:"status"`
	PaperTrade    bool            `json:"paper_trade"`
	Reason        string          `json:"reason"`
	Strategy      string          `json:"strategy"`
	CorrelationID string          `json:"correlation_id"`
	RealizedPnL   decimal.Decimal `json:"realized_pnl"`
	ExecutedAt    time.Time       `json:"executed_at"`
}

// Snapshot 账本按市价估值的快照，对应 portfolio_snapshots 表
type Snapshot struct {
	Symbol        string          `json:"symbol"`
	State         State           `json:"state"`
	Cash          decimal.Decimal `json:"cash"`
	Crypto        decimal.Decimal `json:"crypto"`
	Price         decimal.Decimal `json:"price"`
	TotalValue    decimal.Decimal `json:"total_value"`
	EntryPrice    decimal.Decimal `json:"entry_price"`
	UnrealizedPnL decimal.Decimal `json:"unrealized_pnl"`
	Timestamp     time.Time       `json:"timestamp"`
}

// Recorder 持久化协作者，失败只记日志
type Recorder interface {
	SaveOrder(ctx context.Context, order *OrderRecord) error
	SaveSnapshot(ctx context.Context, snapshot *Snapshot) error
}
