package binance

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"multicryptobot/src/cex"

	"github.com/adshao/go-binance/v2"
	"github.com/shopspring/decimal"
)

// Client Binance现货行情与下单网关
type Client struct {
	client *binance.Client
}

// NewClient 创建Binance客户端，baseURL为空时使用SDK默认地址
func NewClient(apiKey, secretKey, baseURL string, timeoutSeconds int) *Client {
	binanceClient := binance.NewClient(apiKey, secretKey)
	if baseURL != "" {
		binanceClient.BaseURL = baseURL
	}
	if timeoutSeconds > 0 {
		// 超时由网关负责，核心逻辑不主动中断调用
		binanceClient.HTTPClient = &http.Client{Timeout: time.Duration(timeoutSeconds) * time.Second}
	}

	return &Client{client: binanceClient}
}

// GetName 获取交易所名称
func (c *Client) GetName() string {
	return "binance"
}

// symbolOf 将交易对转换为Binance格式: BTCUSDT
func symbolOf(pair cex.TradingPair) string {
	return strings.ToUpper(pair.Base) + strings.ToUpper(pair.Quote)
}

// convertKline 转换Binance K线数据为标准格式
func convertKline(kline *binance.Kline, pair cex.TradingPair) (*cex.KlineData, error) {
	fields := []string{kline.Open, kline.High, kline.Low, kline.Close, kline.Volume}
	values := make([]decimal.Decimal, len(fields))
	for i, field := range fields {
		v, err := decimal.NewFromString(field)
		if err != nil {
			return nil, fmt.Errorf("invalid kline field %q: %w", field, err)
		}
		values[i] = v
	}

	return &cex.KlineData{
		TradingPair: pair,
		OpenTime:    time.UnixMilli(kline.OpenTime).UTC(),
		Open:        values[0],
		High:        values[1],
		Low:         values[2],
		Close:       values[3],
		Volume:      values[4],
		CloseTime:   time.UnixMilli(kline.CloseTime).UTC(),
	}, nil
}

// CurrentPrice 获取最新成交价
func (c *Client) CurrentPrice(ctx context.Context, pair cex.TradingPair) (decimal.Decimal, error) {
	prices, err := c.client.NewListPricesService().Symbol(symbolOf(pair)).Do(ctx)
	if err != nil {
		return decimal.Zero, fmt.Errorf("%w: failed to get price from Binance: %w", cex.ErrGateway, err)
	}
	for _, p := range prices {
		if p.Symbol == symbolOf(pair) {
			price, err := decimal.NewFromString(p.Price)
			if err != nil {
				return decimal.Zero, fmt.Errorf("%w: invalid price %q: %w", cex.ErrGateway, p.Price, err)
			}
			return price, nil
		}
	}
	return decimal.Zero, fmt.Errorf("%w: no price for %s", cex.ErrGateway, pair.String())
}

// GetKlines 获取K线数据
func (c *Client) GetKlines(ctx context.Context, pair cex.TradingPair, interval string, limit int) ([]*cex.KlineData, error) {
	klines, err := c.client.NewKlinesService().
		Symbol(symbolOf(pair)).
		Interval(interval).
		Limit(limit).
		Do(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to get klines from Binance: %w", cex.ErrGateway, err)
	}

	result := make([]*cex.KlineData, 0, len(klines))
	for _, kline := range klines {
		data, err := convertKline(kline, pair)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", cex.ErrGateway, err)
		}
		result = append(result, data)
	}
	return result, nil
}

// PlaceMarketOrder 市价下单
func (c *Client) PlaceMarketOrder(ctx context.Context, pair cex.TradingPair, side cex.OrderSide, amount decimal.Decimal) (*cex.OrderResult, error) {
	sideType := binance.SideTypeBuy
	if side == cex.OrderSideSell {
		sideType = binance.SideTypeSell
	}

	result, err := c.client.NewCreateOrderService().
		Symbol(symbolOf(pair)).
		Side(sideType).
		Type(binance.OrderTypeMarket).
		Quantity(amount.String()).
		Do(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to place %s order on Binance: %w", cex.ErrGateway, side, err)
	}

	quantity, _ := decimal.NewFromString(result.ExecutedQuantity)
	quoteQty, _ := decimal.NewFromString(result.CummulativeQuoteQuantity)
	price, _ := decimal.NewFromString(result.Price)

	return &cex.OrderResult{
		TradingPair:   pair,
		OrderID:       fmt.Sprintf("%d", result.OrderID),
		ClientOrderID: result.ClientOrderID,
		Price:         averageFillPrice(price, quantity, quoteQty),
		Quantity:      quantity,
		Side:          side,
		Status:        string(result.Status),
		TransactTime:  time.UnixMilli(result.TransactTime).UTC(),
	}, nil
}

// averageFillPrice 市价单的price字段为0，用成交额/成交量计算均价
func averageFillPrice(price, quantity, quoteQty decimal.Decimal) decimal.Decimal {
	if price.IsPositive() {
		return price
	}
	if quantity.IsPositive() {
		return quoteQty.Div(quantity)
	}
	return decimal.Zero
}

// GetAccount 获取账户信息
func (c *Client) GetAccount(ctx context.Context) ([]*cex.AccountBalance, error) {
	account, err := c.client.NewGetAccountService().Do(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to get account from Binance: %w", cex.ErrGateway, err)
	}

	balances := make([]*cex.AccountBalance, 0, len(account.Balances))
	for _, balance := range account.Balances {
		free, _ := decimal.NewFromString(balance.Free)
		locked, _ := decimal.NewFromString(balance.Locked)
		if free.IsZero() && locked.IsZero() {
			continue
		}
		balances = append(balances, &cex.AccountBalance{
			Asset:  balance.Asset,
			Free:   free,
			Locked: locked,
		})
	}
	return balances, nil
}

// Ping 测试连接
func (c *Client) Ping(ctx context.Context) error {
	if err := c.client.NewPingService().Do(ctx); err != nil {
		return fmt.Errorf("%w: Binance ping failed: %w", cex.ErrGateway, err)
	}
	return nil
}
