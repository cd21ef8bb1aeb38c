package configsvc

import (
	"context"
	"testing"

	"multicryptobot/src/database"

	"github.com/stretchr/testify/assert"
)

func TestService_Validate(t *testing.T) {
	ctx := context.Background()

	t.Run("valid with warnings", func(t *testing.T) {
		report := New(seededStore(), nil).Validate(ctx)
		assert.True(t, report.Valid)
		assert.Empty(t, report.Errors)
		assert.Contains(t, report.Warnings, "ETH/USDT: no risk config, defaults apply")
		assert.Contains(t, report.Warnings, "total max_position_percent 110.0% exceeds 100%")
	})

	t.Run("errors", func(t *testing.T) {
		store := seededStore()
		delete(store.system, "check_interval")
		store.strategies["ETH/USDT"] = []database.StrategyConfigRow{
			{Symbol: "ETH/USDT", Name: "rsi", Type: "rsi", Enabled: false, Weight: 1},
		}
		store.strategies["BTC/USDT"] = append(store.strategies["BTC/USDT"],
			database.StrategyConfigRow{Symbol: "BTC/USDT", Name: "macd", Type: "macd", Enabled: true, Weight: 1})

		report := New(store, nil).Validate(ctx)
		assert.False(t, report.Valid)
		assert.Contains(t, report.Errors, `missing required system config "check_interval"`)
		assert.Contains(t, report.Errors, "ETH/USDT: no enabled strategies")
		assert.Contains(t, report.Errors, `BTC/USDT: strategy macd has unknown type "macd"`)
	})

	t.Run("zero weights warn", func(t *testing.T) {
		store := seededStore()
		store.strategies["ETH/USDT"][0].Weight = 0

		report := New(store, nil).Validate(ctx)
		assert.True(t, report.Valid)
		assert.Contains(t, report.Warnings, "ETH/USDT: enabled strategies all have zero weight")
	})

	t.Run("empty store", func(t *testing.T) {
		report := New(newFakeStore(), nil).Validate(ctx)
		assert.False(t, report.Valid)
		assert.Contains(t, report.Errors, "no active trading pairs")
		assert.Len(t, report.Errors, 1+len(RequiredSystemKeys))
	})
}
