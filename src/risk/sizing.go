package risk

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// MinTradeValue 单笔最小成交额
var MinTradeValue = decimal.NewFromInt(10)

// DrawdownLevel 回撤等级
type DrawdownLevel string

const (
	DrawdownLow    DrawdownLevel = "LOW"
	DrawdownMedium DrawdownLevel = "MEDIUM"
	DrawdownHigh   DrawdownLevel = "HIGH"
)

// Drawdown 回撤检查结果
type Drawdown struct {
	Amount     decimal.Decimal
	Percent    float64
	Level      DrawdownLevel
	ReduceSize bool
	Stop       bool
}

// CheckDrawdown 以峰值资产计算回撤
func CheckDrawdown(peak, current decimal.Decimal, maxDrawdownPercent float64) Drawdown {
	d := Drawdown{Amount: peak.Sub(current), Level: DrawdownLow}
	if peak.IsPositive() {
		d.Percent = d.Amount.Div(peak).Mul(hundred).InexactFloat64()
	}
	switch {
	case d.Percent > 10:
		d.Level = DrawdownHigh
	case d.Percent > 5:
		d.Level = DrawdownMedium
	}
	d.ReduceSize = d.Percent > 10
	d.Stop = d.Percent > maxDrawdownPercent
	return d
}

// ValidateTradeParameters 下单前的参数检查
func ValidateTradeParameters(price, amount, tradeSize decimal.Decimal) error {
	if !price.IsPositive() {
		return fmt.Errorf("invalid price %s: must be positive", price)
	}
	if !amount.IsPositive() {
		return fmt.Errorf("invalid amount %s: must be positive", amount)
	}
	value := price.Mul(amount)
	if value.LessThan(MinTradeValue) {
		return fmt.Errorf("trade value too small: %s (minimum %s)", value.StringFixed(2), MinTradeValue)
	}
	if tradeSize.IsPositive() && value.GreaterThan(tradeSize.Mul(decimal.NewFromInt(2))) {
		return fmt.Errorf("trade value too large: %s (maximum %s)", value.StringFixed(2), tradeSize.Mul(decimal.NewFromInt(2)).StringFixed(2))
	}
	return nil
}

// PositionSize 名义金额乘以系数，不超过总资产的 maxPositionPercent
func PositionSize(nominal decimal.Decimal, multiplier float64, totalBalance decimal.Decimal, maxPositionPercent float64) decimal.Decimal {
	size := nominal.Mul(decimal.NewFromFloat(multiplier))
	if maxPositionPercent > 0 && totalBalance.IsPositive() {
		limit := totalBalance.Mul(decimal.NewFromFloat(maxPositionPercent)).Div(hundred)
		if size.GreaterThan(limit) {
			size = limit
		}
	}
	return size
}
