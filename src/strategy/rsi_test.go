package strategy

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// decline 从start起每根下跌1
func decline(start float64, n int) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = start - float64(i)
	}
	return out
}

// evaluateIncrementally 逐根喂入K线，返回每次的信号
func evaluateIncrementally(s *Strategy, closes []float64, from int) []Signal {
	candles := candlesFromCloses(closes)
	var out []Signal
	for n := from; n <= len(candles); n++ {
		out = append(out, s.Evaluate(candles[:n]))
	}
	return out
}

func TestRSI_OversoldBuyNeedsRisingMomentum(t *testing.T) {
	s, err := New("rsi", TypeRSI, nil)
	require.NoError(t, err)

	closes := decline(100, 30)
	signals := evaluateIncrementally(s, closes, 24)
	for _, sig := range signals {
		assert.Equal(t, ActionHold, sig.Action)
		assert.InDelta(t, 0, sig.Indicators["rsi"], 1e-9)
	}

	// 小幅反弹：RSI仍在超卖区且动量为正
	closes = append(closes, closes[len(closes)-1]+0.2)
	sig := s.Evaluate(candlesFromCloses(closes))
	require.Equal(t, ActionBuy, sig.Action)
	assert.Less(t, sig.Indicators["rsi"], 20.0)
	assert.Greater(t, sig.Indicators["rsi_momentum"], 0.0)
	// 0.5 + 0.3(RSI<=20)，动量不足2不加分
	assert.InDelta(t, 0.8, sig.Confidence, 1e-9)
}

func TestRSI_CooldownSuppressesFiveCalls(t *testing.T) {
	s, err := New("rsi", TypeRSI, nil)
	require.NoError(t, err)

	closes := decline(100, 30)
	evaluateIncrementally(s, closes, 24)

	// 持续小幅反弹，每一根都满足超卖+动量向上
	var signals []Signal
	for i := 0; i < 7; i++ {
		closes = append(closes, closes[len(closes)-1]+0.2)
		signals = append(signals, s.Evaluate(candlesFromCloses(closes)))
	}

	require.Equal(t, ActionBuy, signals[0].Action)
	for i := 1; i <= 5; i++ {
		assert.Equal(t, ActionHold, signals[i].Action, "call %d after signal", i)
		assert.Contains(t, signals[i].Reason, "cooldown")
		assert.LessOrEqual(t, signals[i].Indicators["rsi"], 30.0)
	}
	assert.Equal(t, ActionBuy, signals[6].Action, "cooldown over")
}

func TestRSI_OverboughtSellWhenLong(t *testing.T) {
	s, err := New("rsi", TypeRSI, nil)
	require.NoError(t, err)
	s.SetPosition(true)

	closes := make([]float64, 30)
	for i := range closes {
		closes[i] = 100 + float64(i)
	}
	signals := evaluateIncrementally(s, closes, 24)
	for _, sig := range signals {
		assert.Equal(t, ActionHold, sig.Action)
		assert.InDelta(t, 100, sig.Indicators["rsi"], 1e-9)
	}

	closes = append(closes, closes[len(closes)-1]-0.2)
	sig := s.Evaluate(candlesFromCloses(closes))
	assert.Equal(t, ActionSell, sig.Action)
	assert.Less(t, sig.Indicators["rsi_momentum"], 0.0)
}

func TestRSI_Divergence(t *testing.T) {
	r, err := newRSI(nil)
	require.NoError(t, err)

	// RSI 从 20 升至 30，价格下跌5%：看涨背离
	for i := 0; i < 10; i++ {
		r.history.push(testStart.Add(time.Duration(i)*time.Hour), 20+float64(i)*10/9)
	}
	closes := make([]float64, 10)
	for i := range closes {
		closes[i] = 100 - float64(i)*5/9
	}
	d := r.divergence(closes)
	assert.InDelta(t, 0.05+0.5, d, 1e-9)

	// 无背离
	flat := repeat(100, 10)
	assert.Equal(t, 0.0, r.divergence(flat))
}
