package aggregator

import (
	"testing"

	"multicryptobot/src/strategy"

	"github.com/stretchr/testify/assert"
)

func sig(id string, action strategy.Action, ind map[string]float64) strategy.Signal {
	return strategy.Signal{StrategyID: id, Action: action, Confidence: 0.7, Indicators: ind}
}

func TestAggregate(t *testing.T) {
	weights := map[string]float64{"a": 0.6, "b": 0.4}

	tests := []struct {
		name    string
		signals []strategy.Signal
		long    bool
		want    strategy.Action
	}{
		{
			name:    "buy outweighs sell when flat",
			signals: []strategy.Signal{sig("a", strategy.ActionBuy, nil), sig("b", strategy.ActionSell, nil)},
			want:    strategy.ActionBuy,
		},
		{
			name:    "buy blocked when long",
			signals: []strategy.Signal{sig("a", strategy.ActionBuy, nil), sig("b", strategy.ActionSell, nil)},
			long:    true,
			want:    strategy.ActionHold,
		},
		{
			name:    "sell when long",
			signals: []strategy.Signal{sig("a", strategy.ActionSell, nil), sig("b", strategy.ActionHold, nil)},
			long:    true,
			want:    strategy.ActionSell,
		},
		{
			name:    "sell blocked when flat",
			signals: []strategy.Signal{sig("a", strategy.ActionSell, nil)},
			want:    strategy.ActionHold,
		},
		{
			name:    "below threshold",
			signals: []strategy.Signal{sig("b", strategy.ActionBuy, nil), sig("a", strategy.ActionHold, nil)},
			want:    strategy.ActionHold,
		},
		{
			name:    "unknown strategy has no weight",
			signals: []strategy.Signal{sig("x", strategy.ActionBuy, nil)},
			want:    strategy.ActionHold,
		},
		{
			name:    "no signals",
			signals: nil,
			want:    strategy.ActionHold,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := Aggregate(tt.signals, weights, tt.long)
			assert.Equal(t, tt.want, d.Action, d.Reason)
		})
	}
}

func TestAggregate_Scores(t *testing.T) {
	d := Aggregate([]strategy.Signal{
		sig("a", strategy.ActionBuy, nil),
		sig("b", strategy.ActionSell, nil),
	}, map[string]float64{"a": 0.6, "b": 0.4}, false)

	assert.InDelta(t, 0.6, d.BuyScore, 1e-9)
	assert.InDelta(t, 0.4, d.SellScore, 1e-9)
	assert.Equal(t, strategy.ActionBuy, d.Action)
}

func TestAggregate_TieIsHold(t *testing.T) {
	d := Aggregate([]strategy.Signal{
		sig("a", strategy.ActionBuy, nil),
		sig("b", strategy.ActionSell, nil),
	}, map[string]float64{"a": 0.5, "b": 0.5}, false)

	assert.Equal(t, strategy.ActionHold, d.Action)
	assert.Equal(t, d.BuyScore, d.SellScore)
}

func TestAggregate_ZeroWeightsNeverTrade(t *testing.T) {
	d := Aggregate([]strategy.Signal{
		sig("a", strategy.ActionBuy, nil),
		sig("b", strategy.ActionBuy, nil),
	}, map[string]float64{"a": 0, "b": 0}, false)

	assert.Equal(t, strategy.ActionHold, d.Action)
	assert.Zero(t, d.BuyScore)
}

func TestAggregate_IndicatorsNamespaced(t *testing.T) {
	d := Aggregate([]strategy.Signal{
		sig("sma", strategy.ActionHold, map[string]float64{"current_price": 100, "short_sma": 99}),
		sig("rsi", strategy.ActionHold, map[string]float64{"current_price": 100, "rsi": 45}),
	}, nil, false)

	assert.Equal(t, map[string]float64{
		"sma.current_price": 100,
		"sma.short_sma":     99,
		"rsi.current_price": 100,
		"rsi.rsi":           45,
	}, d.Indicators)
	assert.Len(t, d.Signals, 2)
}
