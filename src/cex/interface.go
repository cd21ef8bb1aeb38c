package cex

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// ErrGateway 交易所/网络调用失败
var ErrGateway = errors.New("external gateway error")

// TradingPair 标准化的交易对
type TradingPair struct {
	Base  string // 基础货币，如 BTC, ETH
	Quote string // 计价货币，如 USDT
}

// String 返回 "BASE/QUOTE" 形式
func (tp TradingPair) String() string {
	return tp.Base + "/" + tp.Quote
}

// ParseTradingPair 解析 "BTC/USDT" 形式的交易对
func ParseTradingPair(symbol string) (TradingPair, error) {
	parts := strings.Split(strings.ToUpper(strings.TrimSpace(symbol)), "/")
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return TradingPair{}, fmt.Errorf("invalid trading pair %q, expected BASE/QUOTE", symbol)
	}
	return TradingPair{Base: parts[0], Quote: parts[1]}, nil
}

// KlineData 标准化的K线数据
type KlineData struct {
	TradingPair TradingPair     `json:"trading_pair"`
	OpenTime    time.Time       `json:"open_time"`  // 开盘时间
	Open        decimal.Decimal `json:"open"`       // 开盘价
	High        decimal.Decimal `json:"high"`       // 最高价
	Low         decimal.Decimal `json:"low"`        // 最低价
	Close       decimal.Decimal `json:"close"`      // 收盘价
	Volume      decimal.Decimal `json:"volume"`     // 成交量
	CloseTime   time.Time       `json:"close_time"` // 收盘时间
}

// OrderSide 订单方向
type OrderSide string

const (
	OrderSideBuy  OrderSide = "BUY"
	OrderSideSell OrderSide = "SELL"
)

// OrderResult 成交回报
type OrderResult struct {
	TradingPair   TradingPair     `json:"trading_pair"`
	OrderID       string          `json:"order_id"`
	ClientOrderID string          `json:"client_order_id"`
	Price         decimal.Decimal `json:"price"`    // 成交均价
	Quantity      decimal.Decimal `json:"quantity"` // 成交数量
	Side          OrderSide       `json:"side"`
	Status        string          `json:"status"`
	TransactTime  time.Time       `json:"transact_time"`
}

// AccountBalance 账户余额
type AccountBalance struct {
	Asset  string          `json:"asset"`
	Free   decimal.Decimal `json:"free"`
	Locked decimal.Decimal `json:"locked"`
}

// MarketData 行情接口
type MarketData interface {
	// CurrentPrice 获取最新成交价
	CurrentPrice(ctx context.Context, pair TradingPair) (decimal.Decimal, error)

	// GetKlines 获取最近limit根K线，按时间升序
	GetKlines(ctx context.Context, pair TradingPair, interval string, limit int) ([]*KlineData, error)
}

// OrderGateway 下单接口
type OrderGateway interface {
	// PlaceMarketOrder 市价下单，amount为基础货币数量
	PlaceMarketOrder(ctx context.Context, pair TradingPair, side OrderSide, amount decimal.Decimal) (*OrderResult, error)
}

// CEXClient 中心化交易所客户端
type CEXClient interface {
	MarketData
	OrderGateway

	// GetName 获取交易所名称
	GetName() string

	// GetAccount 获取账户信息
	GetAccount(ctx context.Context) ([]*AccountBalance, error)

	// Ping 测试连接
	Ping(ctx context.Context) error
}
