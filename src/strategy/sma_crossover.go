package strategy

import (
	"fmt"
	"math"

	"multicryptobot/src/cex"
	"multicryptobot/src/indicators"
)

const smaHistoryLimit = 50

// cross 均线交叉类型
type cross int

const (
	crossNone cross = iota
	crossGolden
	crossDeath
)

// detectCross 比较两条均线最近两个值
func detectCross(short, long []float64) cross {
	if len(short) < 2 || len(long) < 2 {
		return crossNone
	}
	sPrev, sCur := short[len(short)-2], short[len(short)-1]
	lPrev, lCur := long[len(long)-2], long[len(long)-1]

	if sPrev <= lPrev && sCur > lCur {
		return crossGolden
	}
	if sPrev >= lPrev && sCur < lCur {
		return crossDeath
	}
	return crossNone
}

// smaCrossover 均线交叉策略
type smaCrossover struct {
	p         SMAParams
	short     *rollingSeries
	long      *rollingSeries
	lastCross string
}

func newSMACrossover(params map[string]interface{}) (*smaCrossover, error) {
	p := GetDefaultSMAParams()
	var err error
	if p.ShortPeriod, err = intParam(params, "short_period", p.ShortPeriod); err != nil {
		return nil, err
	}
	if p.LongPeriod, err = intParam(params, "long_period", p.LongPeriod); err != nil {
		return nil, err
	}
	if err := p.Validate(); err != nil {
		return nil, err
	}
	return &smaCrossover{
		p:     p,
		short: newRollingSeries(smaHistoryLimit),
		long:  newRollingSeries(smaHistoryLimit),
	}, nil
}

func (s *smaCrossover) minDataPoints() int { return s.p.LongPeriod + 5 }

func (s *smaCrossover) calculate(candles []*cex.KlineData, closes []float64) (map[string]float64, error) {
	shortSMA, err := indicators.SMA(closes, s.p.ShortPeriod)
	if err != nil {
		return nil, err
	}
	longSMA, err := indicators.SMA(closes, s.p.LongPeriod)
	if err != nil {
		return nil, err
	}

	at := candles[len(candles)-1].OpenTime
	s.short.push(at, shortSMA)
	s.long.push(at, longSMA)

	return map[string]float64{
		"short_sma":          shortSMA,
		"long_sma":           longSMA,
		"current_price":      closes[len(closes)-1],
		"sma_spread":         shortSMA - longSMA,
		"sma_spread_percent": (shortSMA - longSMA) / longSMA * 100,
	}, nil
}

func (s *smaCrossover) shouldBuy(ind map[string]float64) (bool, string) {
	if s.short.len() < 2 || s.long.len() < 2 {
		return false, "insufficient SMA history for crossover detection"
	}
	if detectCross(s.short.values, s.long.values) == crossGolden {
		s.lastCross = "golden"
		return true, fmt.Sprintf("golden cross (SMA spread: %.2f%%)", ind["sma_spread_percent"])
	}
	return false, "no golden cross"
}

func (s *smaCrossover) shouldSell(ind map[string]float64) (bool, string) {
	if s.short.len() < 2 || s.long.len() < 2 {
		return false, "insufficient SMA history for crossover detection"
	}
	if detectCross(s.short.values, s.long.values) == crossDeath {
		s.lastCross = "death"
		return true, fmt.Sprintf("death cross (SMA spread: %.2f%%)", -ind["sma_spread_percent"])
	}
	return false, "no death cross"
}

func (s *smaCrossover) confidence(candles []*cex.KlineData, ind map[string]float64, action Action) float64 {
	conf := 0.6
	short, long, price := ind["short_sma"], ind["long_sma"], ind["current_price"]

	spread := math.Abs(ind["sma_spread_percent"])
	if spread > 2 {
		conf += 0.2
	} else if spread > 1 {
		conf += 0.1
	}

	if action == ActionBuy && price > short && short > long {
		conf += 0.1
	} else if action == ActionSell && price < short && short < long {
		conf += 0.1
	}

	if len(candles) >= 2 {
		cur := candles[len(candles)-1].Volume
		prev := candles[len(candles)-2].Volume
		if prev.IsPositive() && cur.InexactFloat64() > prev.InexactFloat64()*1.2 {
			conf += 0.1
		}
	}
	return conf
}

func (s *smaCrossover) params() map[string]interface{} {
	return map[string]interface{}{
		"short_period": s.p.ShortPeriod,
		"long_period":  s.p.LongPeriod,
	}
}

func (s *smaCrossover) status() map[string]interface{} {
	status := map[string]interface{}{"trend_direction": "UNKNOWN", "last_crossover": s.lastCross}
	if s.short.len() > 0 && s.long.len() > 0 {
		switch {
		case s.short.at(-1) > s.long.at(-1):
			status["trend_direction"] = "BULLISH"
		case s.short.at(-1) < s.long.at(-1):
			status["trend_direction"] = "BEARISH"
		default:
			status["trend_direction"] = "NEUTRAL"
		}
	}
	return status
}
