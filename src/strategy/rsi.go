package strategy

import (
	"fmt"
	"math"

	"multicryptobot/src/cex"
	"multicryptobot/src/indicators"
)

const (
	rsiHistoryLimit  = 100
	divergenceWindow = 10
)

// rsiStrategy RSI超买超卖策略
type rsiStrategy struct {
	p        RSIParams
	history  *rollingSeries
	cooldown int
	blocked  bool
}

func newRSI(params map[string]interface{}) (*rsiStrategy, error) {
	p := GetDefaultRSIParams()
	var err error
	if p.Period, err = intParam(params, "period", p.Period); err != nil {
		return nil, err
	}
	if p.Oversold, err = floatParam(params, "oversold", p.Oversold); err != nil {
		return nil, err
	}
	if p.Overbought, err = floatParam(params, "overbought", p.Overbought); err != nil {
		return nil, err
	}
	if p.Cooldown, err = intParam(params, "cooldown", p.Cooldown); err != nil {
		return nil, err
	}
	if err := p.Validate(); err != nil {
		return nil, err
	}
	return &rsiStrategy{p: p, history: newRollingSeries(rsiHistoryLimit)}, nil
}

func (r *rsiStrategy) minDataPoints() int { return r.p.Period + 10 }

func (r *rsiStrategy) calculate(candles []*cex.KlineData, closes []float64) (map[string]float64, error) {
	value, err := indicators.RSI(closes, r.p.Period)
	if err != nil {
		return nil, err
	}
	r.history.push(candles[len(candles)-1].OpenTime, value)

	// 冷却计数每次计算减一，归零前不出信号
	r.blocked = r.cooldown > 0
	if r.cooldown > 0 {
		r.cooldown--
	}

	ind := map[string]float64{
		"rsi":           value,
		"current_price": closes[len(closes)-1],
		"divergence":    r.divergence(closes),
	}
	if r.history.len() >= 3 {
		ind["rsi_momentum"] = r.history.at(-1) - r.history.at(-3)
	}
	return ind, nil
}

func (r *rsiStrategy) shouldBuy(ind map[string]float64) (bool, string) {
	if r.blocked {
		return false, fmt.Sprintf("signal cooldown active (%d remaining)", r.cooldown+1)
	}
	value := ind["rsi"]
	if value > r.p.Oversold {
		return false, fmt.Sprintf("RSI %.1f not oversold", value)
	}
	momentum, ok := ind["rsi_momentum"]
	if !ok || momentum <= 0 {
		return false, fmt.Sprintf("RSI oversold but momentum not rising (RSI: %.1f)", value)
	}
	r.cooldown = r.p.Cooldown
	return true, fmt.Sprintf("RSI oversold (RSI: %.1f, momentum: +%.1f)", value, momentum)
}

func (r *rsiStrategy) shouldSell(ind map[string]float64) (bool, string) {
	if r.blocked {
		return false, fmt.Sprintf("signal cooldown active (%d remaining)", r.cooldown+1)
	}
	value := ind["rsi"]
	if value < r.p.Overbought {
		return false, fmt.Sprintf("RSI %.1f not overbought", value)
	}
	momentum, ok := ind["rsi_momentum"]
	if !ok || momentum >= 0 {
		return false, fmt.Sprintf("RSI overbought but momentum not falling (RSI: %.1f)", value)
	}
	r.cooldown = r.p.Cooldown
	return true, fmt.Sprintf("RSI overbought (RSI: %.1f, momentum: %.1f)", value, momentum)
}

func (r *rsiStrategy) confidence(_ []*cex.KlineData, ind map[string]float64, action Action) float64 {
	conf := 0.5
	value, momentum := ind["rsi"], ind["rsi_momentum"]

	switch action {
	case ActionBuy:
		switch {
		case value <= 20:
			conf += 0.3
		case value <= 25:
			conf += 0.2
		case value <= 30:
			conf += 0.1
		}
		if momentum > 2 {
			conf += 0.1
		}
	case ActionSell:
		switch {
		case value >= 80:
			conf += 0.3
		case value >= 75:
			conf += 0.2
		case value >= 70:
			conf += 0.1
		}
		if momentum < -2 {
			conf += 0.1
		}
	}

	if d := ind["divergence"]; d > 0 {
		conf += math.Min(d*0.2, 0.2)
	}
	return conf
}

// divergence 最近10根K线价格与RSI走势相反的强度，0表示无背离
func (r *rsiStrategy) divergence(closes []float64) float64 {
	if r.history.len() < divergenceWindow || len(closes) < divergenceWindow {
		return 0
	}
	prices := closes[len(closes)-divergenceWindow:]
	rsis := r.history.tail(divergenceWindow)
	if prices[0] == 0 || rsis[0] == 0 {
		return 0
	}

	priceTrend := (prices[len(prices)-1] - prices[0]) / prices[0]
	rsiTrend := (rsis[len(rsis)-1] - rsis[0]) / rsis[0]

	switch {
	case priceTrend < -0.02 && rsiTrend > 0.05:
		return math.Min(math.Abs(priceTrend)+rsiTrend, 1)
	case priceTrend > 0.02 && rsiTrend < -0.05:
		return math.Min(priceTrend+math.Abs(rsiTrend), 1)
	}
	return 0
}

func (r *rsiStrategy) params() map[string]interface{} {
	return map[string]interface{}{
		"period":     r.p.Period,
		"oversold":   r.p.Oversold,
		"overbought": r.p.Overbought,
		"cooldown":   r.p.Cooldown,
	}
}

func (r *rsiStrategy) status() map[string]interface{} {
	status := map[string]interface{}{"cooldown_remaining": r.cooldown, "trend_direction": "UNKNOWN"}
	if r.history.len() > 0 {
		last := r.history.at(-1)
		status["rsi"] = last
		status["rsi_level"] = indicators.RSILevel(last)
		status["trend_direction"] = indicators.RSILevel(last)
	}
	return status
}
