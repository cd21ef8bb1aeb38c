package risk

import "fmt"

// Limits 一个交易对的风控参数，来自 pair_risk_config
type Limits struct {
	StopLossPercent     float64 `json:"stop_loss_percent"`
	TakeProfitPercent   float64 `json:"take_profit_percent"`
	MaxDailyTrades      int     `json:"max_daily_trades"`
	MaxDailyLossPercent float64 `json:"max_daily_loss_percent"`
	TrailingStopEnabled bool    `json:"trailing_stop_enabled"`
	TrailingStopPercent float64 `json:"trailing_stop_percent"`
	MaxDrawdownPercent  float64 `json:"max_drawdown_percent"`
}

// DefaultLimits 配置库中没有风控行时使用
func DefaultLimits() Limits {
	return Limits{
		StopLossPercent:     5,
		TakeProfitPercent:   10,
		MaxDailyTrades:      10,
		MaxDailyLossPercent: 5,
		TrailingStopEnabled: false,
		TrailingStopPercent: 2,
		MaxDrawdownPercent:  20,
	}
}

// Validate 验证参数有效性
func (l Limits) Validate() error {
	if l.StopLossPercent <= 0 || l.StopLossPercent >= 100 {
		return fmt.Errorf("stop_loss_percent must be in (0,100), got %v", l.StopLossPercent)
	}
	if l.TakeProfitPercent <= 0 {
		return fmt.Errorf("take_profit_percent must be positive, got %v", l.TakeProfitPercent)
	}
	if l.MaxDailyTrades <= 0 {
		return fmt.Errorf("max_daily_trades must be positive, got %d", l.MaxDailyTrades)
	}
	if l.MaxDailyLossPercent <= 0 {
		return fmt.Errorf("max_daily_loss_percent must be positive, got %v", l.MaxDailyLossPercent)
	}
	if l.TrailingStopEnabled && (l.TrailingStopPercent <= 0 || l.TrailingStopPercent >= 100) {
		return fmt.Errorf("trailing_stop_percent must be in (0,100), got %v", l.TrailingStopPercent)
	}
	if l.MaxDrawdownPercent <= 0 {
		return fmt.Errorf("max_drawdown_percent must be positive, got %v", l.MaxDrawdownPercent)
	}
	return nil
}
