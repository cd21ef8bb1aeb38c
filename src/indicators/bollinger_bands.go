package indicators

import (
	"math"
)

// BollingerBands 布林道
type BollingerBands struct {
	Period     int     // 计算周期，通常为20
	Multiplier float64 // 标准差倍数，通常为2
}

// BollingerBandsResult 布林道计算结果
type BollingerBandsResult struct {
	UpperBand  float64 // 上轨
	MiddleBand float64 // 中轨（移动平均线）
	LowerBand  float64 // 下轨
	Price      float64 // 当前价格
}

// NewBollingerBands 创建布林道指标
func NewBollingerBands(period int, multiplier float64) *BollingerBands {
	return &BollingerBands{Period: period, Multiplier: multiplier}
}

// Calculate 计算最近Period个价格的布林道
func (bb *BollingerBands) Calculate(prices []float64) (*BollingerBandsResult, error) {
	if err := checkInput(prices, bb.Period); err != nil {
		return nil, err
	}
	if bb.Multiplier <= 0 {
		return nil, ErrInvalidMultiplier
	}
	if len(prices) < bb.Period {
		return nil, ErrInsufficientData
	}

	recent := prices[len(prices)-bb.Period:]
	mean, _ := SMA(recent, bb.Period)

	variance := 0.0
	for _, p := range recent {
		diff := p - mean
		variance += diff * diff
	}
	std := math.Sqrt(variance / float64(bb.Period))

	return &BollingerBandsResult{
		UpperBand:  mean + bb.Multiplier*std,
		MiddleBand: mean,
		LowerBand:  mean - bb.Multiplier*std,
		Price:      prices[len(prices)-1],
	}, nil
}

// IsUpperBreakout 价格触及或突破上轨
func (r *BollingerBandsResult) IsUpperBreakout() bool {
	return r.Price >= r.UpperBand
}

// IsLowerBreakout 价格触及或跌破下轨
func (r *BollingerBandsResult) IsLowerBreakout() bool {
	return r.Price <= r.LowerBand
}

// BandWidth (上轨-下轨)/中轨
func (r *BollingerBandsResult) BandWidth() float64 {
	if r.MiddleBand == 0 {
		return 0
	}
	return (r.UpperBand - r.LowerBand) / r.MiddleBand
}

// PercentB (价格-下轨)/(上轨-下轨)
func (r *BollingerBandsResult) PercentB() float64 {
	width := r.UpperBand - r.LowerBand
	if width == 0 {
		return 0.5
	}
	return (r.Price - r.LowerBand) / width
}
