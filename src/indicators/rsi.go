package indicators

// RSI 相对强弱指标，涨跌幅取最近period个差值的简单平均（非Wilder平滑）
//
// 全部上涨返回100，全部下跌返回0，无波动返回50。
func RSI(prices []float64, period int) (float64, error) {
	if err := checkInput(prices, period); err != nil {
		return 0, err
	}
	if len(prices) < period+1 {
		return 0, ErrInsufficientData
	}

	window := prices[len(prices)-period-1:]
	gain, loss := 0.0, 0.0
	for i := 1; i < len(window); i++ {
		delta := window[i] - window[i-1]
		if delta > 0 {
			gain += delta
		} else {
			loss -= delta
		}
	}
	avgGain := gain / float64(period)
	avgLoss := loss / float64(period)

	switch {
	case avgGain == 0 && avgLoss == 0:
		return 50, nil
	case avgLoss == 0:
		return 100, nil
	}
	rs := avgGain / avgLoss
	return 100 - 100/(1+rs), nil
}

// RSILevel RSI区间描述
func RSILevel(rsi float64) string {
	switch {
	case rsi >= 80:
		return "EXTREMELY_OVERBOUGHT"
	case rsi >= 70:
		return "OVERBOUGHT"
	case rsi >= 60:
		return "BULLISH"
	case rsi >= 40:
		return "NEUTRAL"
	case rsi >= 30:
		return "BEARISH"
	case rsi >= 20:
		return "OVERSOLD"
	default:
		return "EXTREMELY_OVERSOLD"
	}
}
