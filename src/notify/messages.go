package notify

import (
	"fmt"
	"html"
	"sort"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

const timeLayout = "2006-01-02 15:04:05 UTC"

func mode(paper bool) string {
	if paper {
		return "Paper Trading"
	}
	return "LIVE TRADING"
}

// Trade 成交通知内容
type Trade struct {
	Symbol     string
	OrderType  string
	Strategy   string
	Price      decimal.Decimal
	Amount     decimal.Decimal
	Reason     string
	Cash       decimal.Decimal
	Crypto     decimal.Decimal
	PnL        decimal.NullDecimal
	Paper      bool
	ExecutedAt time.Time
}

// TradeMessage 成交通知
func TradeMessage(t Trade) string {
	emoji := "🟢"
	if t.OrderType != "BUY" {
		emoji = "🔴"
	}
	var b strings.Builder
	fmt.Fprintf(&b, "%s <b>TRADE EXECUTED</b> %s\n\n", emoji, emoji)
	fmt.Fprintf(&b, "<b>Type:</b> %s\n", t.OrderType)
	fmt.Fprintf(&b, "<b>Symbol:</b> %s\n", t.Symbol)
	fmt.Fprintf(&b, "<b>Strategy:</b> %s\n", html.EscapeString(t.Strategy))
	fmt.Fprintf(&b, "<b>Price:</b> $%s\n", t.Price.StringFixed(2))
	fmt.Fprintf(&b, "<b>Amount:</b> %s\n", t.Amount.StringFixed(6))
	fmt.Fprintf(&b, "<b>Total Value:</b> $%s\n", t.Price.Mul(t.Amount).StringFixed(2))
	if t.PnL.Valid {
		fmt.Fprintf(&b, "<b>P&amp;L:</b> $%s\n", t.PnL.Decimal.StringFixed(2))
	}
	fmt.Fprintf(&b, "<b>Reason:</b> %s\n\n", html.EscapeString(t.Reason))
	b.WriteString("<b>💰 Portfolio Status:</b>\n")
	fmt.Fprintf(&b, "<b>USD Balance:</b> $%s\n", t.Cash.StringFixed(2))
	fmt.Fprintf(&b, "<b>Crypto Balance:</b> %s\n\n", t.Crypto.StringFixed(6))
	fmt.Fprintf(&b, "<b>⏰ Time:</b> %s\n", t.ExecutedAt.UTC().Format(timeLayout))
	fmt.Fprintf(&b, "<b>🧪 Mode:</b> %s", mode(t.Paper))
	return b.String()
}

// SignalMessage 信号通知，指标按名字排序
func SignalMessage(symbol, action, strategy string, price decimal.Decimal, indicators map[string]float64, at time.Time) string {
	emoji := "📈"
	if action == "SELL" {
		emoji = "📉"
	}
	var b strings.Builder
	fmt.Fprintf(&b, "%s <b>TRADING SIGNAL</b> %s\n\n", emoji, emoji)
	fmt.Fprintf(&b, "<b>Signal:</b> %s\n", action)
	fmt.Fprintf(&b, "<b>Symbol:</b> %s\n", symbol)
	fmt.Fprintf(&b, "<b>Strategy:</b> %s\n", html.EscapeString(strategy))
	fmt.Fprintf(&b, "<b>Price:</b> $%s\n", price.StringFixed(2))

	if len(indicators) > 0 {
		keys := make([]string, 0, len(indicators))
		for k := range indicators {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		b.WriteString("\n<b>📊 Indicators:</b>\n")
		for _, k := range keys {
			fmt.Fprintf(&b, "<b>%s:</b> %.2f\n", strings.ToUpper(k), indicators[k])
		}
	}
	fmt.Fprintf(&b, "\n<b>⏰ Time:</b> %s", at.UTC().Format(timeLayout))
	return b.String()
}

// ErrorMessage 错误通知
func ErrorMessage(errMsg, context string, at time.Time) string {
	var b strings.Builder
	b.WriteString("🚨 <b>TRADING BOT ERROR</b> 🚨\n\n")
	fmt.Fprintf(&b, "<b>Error:</b> %s", html.EscapeString(errMsg))
	if context != "" {
		fmt.Fprintf(&b, "\n<b>Context:</b> %s", html.EscapeString(context))
	}
	fmt.Fprintf(&b, "\n\n<b>⏰ Time:</b> %s", at.UTC().Format(timeLayout))
	return b.String()
}

// StatusMessage 运行状态通知
func StatusMessage(status string, info map[string]interface{}, at time.Time) string {
	emoji := "ℹ️"
	switch status {
	case "STARTED", "RUNNING":
		emoji = "🟢"
	case "STOPPED":
		emoji = "🔴"
	}
	var b strings.Builder
	fmt.Fprintf(&b, "%s <b>BOT STATUS UPDATE</b> %s\n\n", emoji, emoji)
	fmt.Fprintf(&b, "<b>Status:</b> %s\n", status)
	fmt.Fprintf(&b, "<b>Time:</b> %s", at.UTC().Format(timeLayout))

	if len(info) > 0 {
		keys := make([]string, 0, len(info))
		for k := range info {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		b.WriteString("\n\n<b>📊 Additional Info:</b>\n")
		for _, k := range keys {
			fmt.Fprintf(&b, "<b>%s:</b> %v\n", html.EscapeString(k), info[k])
		}
	}
	return b.String()
}
