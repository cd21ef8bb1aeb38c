package indicators

// SMA 简单移动平均，取最近period个价格
func SMA(prices []float64, period int) (float64, error) {
	if err := checkInput(prices, period); err != nil {
		return 0, err
	}
	if len(prices) < period {
		return 0, ErrInsufficientData
	}

	sum := 0.0
	for _, p := range prices[len(prices)-period:] {
		sum += p
	}
	return sum / float64(period), nil
}
