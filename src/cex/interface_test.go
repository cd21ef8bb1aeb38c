package cex

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTradingPair_String(t *testing.T) {
	tests := []struct {
		name     string
		pair     TradingPair
		expected string
	}{
		{name: "BTC/USDT pair", pair: TradingPair{Base: "BTC", Quote: "USDT"}, expected: "BTC/USDT"},
		{name: "ETH/USDC pair", pair: TradingPair{Base: "ETH", Quote: "USDC"}, expected: "ETH/USDC"},
		{name: "empty pair", pair: TradingPair{}, expected: "/"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, tt.pair.String())
		})
	}
}

func TestParseTradingPair(t *testing.T) {
	tests := []struct {
		name    string
		symbol  string
		want    TradingPair
		wantErr bool
	}{
		{name: "standard", symbol: "BTC/USDT", want: TradingPair{Base: "BTC", Quote: "USDT"}},
		{name: "lower case with spaces", symbol: " eth/usdt ", want: TradingPair{Base: "ETH", Quote: "USDT"}},
		{name: "no separator", symbol: "BTCUSDT", wantErr: true},
		{name: "missing quote", symbol: "BTC/", wantErr: true},
		{name: "too many parts", symbol: "A/B/C", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseTradingPair(tt.symbol)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
			assert.Equal(t, tt.want.String(), got.String())
		})
	}
}
