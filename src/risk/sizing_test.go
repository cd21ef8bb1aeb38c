package risk

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func TestCheckDrawdown(t *testing.T) {
	peak := decimal.NewFromInt(10000)

	tests := []struct {
		name    string
		current int64
		level   DrawdownLevel
		reduce  bool
		stop    bool
	}{
		{name: "no drawdown", current: 10000, level: DrawdownLow},
		{name: "five percent is low", current: 9500, level: DrawdownLow},
		{name: "medium", current: 9400, level: DrawdownMedium},
		{name: "high", current: 8900, level: DrawdownHigh, reduce: true},
		{name: "twenty percent does not stop", current: 8000, level: DrawdownHigh, reduce: true},
		{name: "stop", current: 7900, level: DrawdownHigh, reduce: true, stop: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := CheckDrawdown(peak, decimal.NewFromInt(tt.current), 20)
			assert.Equal(t, tt.level, d.Level)
			assert.Equal(t, tt.reduce, d.ReduceSize)
			assert.Equal(t, tt.stop, d.Stop)
		})
	}

	assert.Equal(t, 0.0, CheckDrawdown(decimal.Zero, decimal.Zero, 20).Percent)
}

func TestValidateTradeParameters(t *testing.T) {
	size := decimal.NewFromInt(100)

	tests := []struct {
		name    string
		price   string
		amount  string
		wantErr bool
	}{
		{name: "ok", price: "100", amount: "0.5"},
		{name: "zero price", price: "0", amount: "1", wantErr: true},
		{name: "negative amount", price: "100", amount: "-1", wantErr: true},
		{name: "below minimum value", price: "100", amount: "0.09", wantErr: true},
		{name: "above twice trade size", price: "100", amount: "2.01", wantErr: true},
		{name: "exactly twice trade size", price: "100", amount: "2"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateTradeParameters(decimal.RequireFromString(tt.price), decimal.RequireFromString(tt.amount), size)
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestPositionSize(t *testing.T) {
	total := decimal.NewFromInt(1000)

	assert.True(t, PositionSize(decimal.NewFromInt(100), 1.0, total, 20).Equal(decimal.NewFromInt(100)))
	assert.True(t, PositionSize(decimal.NewFromInt(100), 0.5, total, 20).Equal(decimal.NewFromInt(50)))
	// 1.2 倍被 20% 上限截断
	assert.True(t, PositionSize(decimal.NewFromInt(200), 1.2, total, 20).Equal(decimal.NewFromInt(200)))
	assert.True(t, PositionSize(decimal.NewFromInt(100), 1.2, total, 0).Equal(decimal.NewFromInt(120)))
}
