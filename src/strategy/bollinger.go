package strategy

import (
	"fmt"

	"multicryptobot/src/cex"
	"multicryptobot/src/indicators"
)

// bollinger 布林道均值回归：跌破下轨买入，突破上轨卖出
type bollinger struct {
	p  BollingerParams
	bb *indicators.BollingerBands
}

func newBollinger(params map[string]interface{}) (*bollinger, error) {
	p := GetDefaultBollingerParams()
	var err error
	if p.Period, err = intParam(params, "period", p.Period); err != nil {
		return nil, err
	}
	if p.Multiplier, err = floatParam(params, "multiplier", p.Multiplier); err != nil {
		return nil, err
	}
	if err := p.Validate(); err != nil {
		return nil, err
	}
	return &bollinger{p: p, bb: indicators.NewBollingerBands(p.Period, p.Multiplier)}, nil
}

func (b *bollinger) minDataPoints() int { return b.p.Period + 5 }

func (b *bollinger) calculate(_ []*cex.KlineData, closes []float64) (map[string]float64, error) {
	result, err := b.bb.Calculate(closes)
	if err != nil {
		return nil, err
	}
	return map[string]float64{
		"upper_band":    result.UpperBand,
		"middle_band":   result.MiddleBand,
		"lower_band":    result.LowerBand,
		"current_price": result.Price,
		"percent_b":     result.PercentB(),
		"band_width":    result.BandWidth(),
	}, nil
}

func (b *bollinger) shouldBuy(ind map[string]float64) (bool, string) {
	price, lower := ind["current_price"], ind["lower_band"]
	if price <= lower {
		return true, fmt.Sprintf("price %.4f touched lower band %.4f", price, lower)
	}
	return false, "price above lower band"
}

func (b *bollinger) shouldSell(ind map[string]float64) (bool, string) {
	price, upper := ind["current_price"], ind["upper_band"]
	if price >= upper {
		return true, fmt.Sprintf("price %.4f touched upper band %.4f", price, upper)
	}
	return false, "price below upper band"
}

func (b *bollinger) confidence(_ []*cex.KlineData, ind map[string]float64, action Action) float64 {
	conf := 0.5
	pb := ind["percent_b"]
	if (action == ActionBuy && pb <= -0.1) || (action == ActionSell && pb >= 1.1) {
		conf += 0.2
	}
	// 带宽过窄时突破意义不大
	if ind["band_width"] > 0.04 {
		conf += 0.1
	}
	return conf
}

func (b *bollinger) params() map[string]interface{} {
	return map[string]interface{}{
		"period":     b.p.Period,
		"multiplier": b.p.Multiplier,
	}
}

func (b *bollinger) status() map[string]interface{} {
	return map[string]interface{}{}
}
