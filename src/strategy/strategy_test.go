package strategy

import (
	"testing"
	"time"

	"multicryptobot/src/cex"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testStart = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

// candlesFromCloses 以收盘价构造小时K线
func candlesFromCloses(closes []float64) []*cex.KlineData {
	out := make([]*cex.KlineData, len(closes))
	for i, c := range closes {
		price := decimal.NewFromFloat(c)
		out[i] = &cex.KlineData{
			TradingPair: cex.TradingPair{Base: "BTC", Quote: "USDT"},
			OpenTime:    testStart.Add(time.Duration(i) * time.Hour),
			Open:        price,
			High:        price,
			Low:         price,
			Close:       price,
			Volume:      decimal.NewFromInt(1000),
			CloseTime:   testStart.Add(time.Duration(i+1) * time.Hour),
		}
	}
	return out
}

func repeat(v float64, n int) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = v
	}
	return out
}

func TestNew(t *testing.T) {
	tests := []struct {
		name    string
		kind    Type
		params  map[string]interface{}
		wantErr bool
	}{
		{name: "sma defaults", kind: TypeSMACrossover},
		{name: "rsi from json numbers", kind: TypeRSI, params: map[string]interface{}{"period": float64(10), "oversold": float64(25)}},
		{name: "bollinger", kind: TypeBollinger, params: map[string]interface{}{"period": 15}},
		{name: "unknown tag", kind: Type("macd"), wantErr: true},
		{name: "short >= long", kind: TypeSMACrossover, params: map[string]interface{}{"short_period": 30, "long_period": 10}, wantErr: true},
		{name: "fractional period", kind: TypeRSI, params: map[string]interface{}{"period": 14.5}, wantErr: true},
		{name: "non numeric", kind: TypeBollinger, params: map[string]interface{}{"multiplier": "two"}, wantErr: true},
		{name: "inverted thresholds", kind: TypeRSI, params: map[string]interface{}{"oversold": 80, "overbought": 20}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, err := New("", tt.kind, tt.params)
			if tt.wantErr {
				assert.Error(t, err)
				assert.Nil(t, s)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, string(tt.kind), s.ID())
			assert.Equal(t, tt.kind, s.Type())
			assert.False(t, s.IsLong())
		})
	}
}

func TestValidateCandles(t *testing.T) {
	good := candlesFromCloses(repeat(100, 10))
	assert.NoError(t, ValidateCandles(good))

	t.Run("bad candle older than tail is ignored", func(t *testing.T) {
		candles := candlesFromCloses(repeat(100, 10))
		candles[0].Volume = decimal.Zero
		assert.NoError(t, ValidateCandles(candles))
	})

	t.Run("non-positive field in tail", func(t *testing.T) {
		candles := candlesFromCloses(repeat(100, 10))
		candles[7].Low = decimal.NewFromInt(-1)
		err := ValidateCandles(candles)
		assert.ErrorIs(t, err, ErrDataValidation)
	})

	t.Run("missing candle in tail", func(t *testing.T) {
		candles := candlesFromCloses(repeat(100, 10))
		candles[9] = nil
		assert.ErrorIs(t, ValidateCandles(candles), ErrDataValidation)
	})

	t.Run("empty", func(t *testing.T) {
		assert.ErrorIs(t, ValidateCandles(nil), ErrDataValidation)
	})
}

func TestStrategy_InvalidDataDegradesToHold(t *testing.T) {
	s, err := New("sma", TypeSMACrossover, map[string]interface{}{"short_period": 2, "long_period": 4})
	require.NoError(t, err)

	candles := candlesFromCloses(repeat(100, 12))
	candles[11].Volume = decimal.Zero

	sig := s.Evaluate(candles)
	assert.Equal(t, ActionHold, sig.Action)
	assert.Equal(t, 0.0, sig.Confidence)
	assert.Contains(t, sig.Reason, "invalid market data")
}

func TestStrategy_InsufficientData(t *testing.T) {
	s, err := New("rsi", TypeRSI, nil)
	require.NoError(t, err)

	sig := s.Evaluate(candlesFromCloses(repeat(100, 23)))
	assert.Equal(t, ActionHold, sig.Action)
	assert.Contains(t, sig.Reason, "insufficient data")
}

func TestStrategy_SignalHistoryBounded(t *testing.T) {
	s, err := New("sma", TypeSMACrossover, map[string]interface{}{"short_period": 2, "long_period": 4})
	require.NoError(t, err)

	candles := candlesFromCloses(repeat(100, 3))
	for i := 0; i < 150; i++ {
		s.Evaluate(candles)
	}
	assert.Len(t, s.RecentSignals(0), 100)
	assert.Len(t, s.RecentSignals(10), 10)

	status := s.Status()
	assert.Equal(t, 100, status["total_signals"])
	assert.Equal(t, 150, status["hold_signals"])
	assert.Equal(t, "FLAT", status["position"])
}

func TestStrategy_PositionGatesActions(t *testing.T) {
	s, err := New("bb", TypeBollinger, map[string]interface{}{"period": 10})
	require.NoError(t, err)

	noise := []float64{100, 101, 99, 100, 101, 99, 100, 101, 99}
	series := func(last float64) []float64 {
		closes := append(repeat(100, 10), noise...)
		return append(closes, last)
	}

	// 最后一根大跌，跌破下轨
	candles := candlesFromCloses(series(80))

	s.SetPosition(true)
	sig := s.Evaluate(candles)
	assert.Equal(t, ActionHold, sig.Action, "no BUY while long")

	s.SetPosition(false)
	sig = s.Evaluate(candles)
	assert.Equal(t, ActionBuy, sig.Action)
	assert.Greater(t, sig.Confidence, 0.0)
	assert.LessOrEqual(t, sig.Confidence, 1.0)
	assert.Contains(t, sig.Indicators, "lower_band")

	// 大涨突破上轨，空仓时不能卖
	up := candlesFromCloses(series(130))
	sig = s.Evaluate(up)
	assert.Equal(t, ActionHold, sig.Action)

	s.SetPosition(true)
	sig = s.Evaluate(up)
	assert.Equal(t, ActionSell, sig.Action)
}
