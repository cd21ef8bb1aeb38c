package indicators

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBollingerBands_Calculate(t *testing.T) {
	bb := NewBollingerBands(3, 2.0)

	t.Run("insufficient data", func(t *testing.T) {
		result, err := bb.Calculate([]float64{100, 102})
		assert.Equal(t, ErrInsufficientData, err)
		assert.Nil(t, result)
	})

	t.Run("empty prices", func(t *testing.T) {
		_, err := bb.Calculate(nil)
		assert.Equal(t, ErrEmptyPrices, err)
	})

	t.Run("invalid parameters", func(t *testing.T) {
		_, err := NewBollingerBands(0, 2).Calculate([]float64{1, 2, 3})
		assert.Equal(t, ErrInvalidPeriod, err)
		_, err = NewBollingerBands(3, 0).Calculate([]float64{1, 2, 3})
		assert.Equal(t, ErrInvalidMultiplier, err)
	})

	t.Run("symmetric bands", func(t *testing.T) {
		result, err := bb.Calculate([]float64{100, 102, 98})
		require.NoError(t, err)
		assert.InDelta(t, 100, result.MiddleBand, 1e-9)
		assert.Greater(t, result.UpperBand, result.MiddleBand)
		assert.Less(t, result.LowerBand, result.MiddleBand)
		assert.InDelta(t, result.UpperBand-result.MiddleBand, result.MiddleBand-result.LowerBand, 1e-9)
		assert.Equal(t, 98.0, result.Price)
	})

	t.Run("uses only the last period prices", func(t *testing.T) {
		result, err := bb.Calculate([]float64{1, 1000, 50, 50, 50})
		require.NoError(t, err)
		assert.InDelta(t, 50, result.MiddleBand, 1e-9)
		assert.InDelta(t, 0, result.BandWidth(), 1e-9)
		assert.Equal(t, 0.5, result.PercentB())
	})
}

func TestBollingerBandsResult_Breakouts(t *testing.T) {
	r := &BollingerBandsResult{UpperBand: 110, MiddleBand: 100, LowerBand: 90}

	r.Price = 111
	assert.True(t, r.IsUpperBreakout())
	assert.False(t, r.IsLowerBreakout())
	assert.Greater(t, r.PercentB(), 1.0)

	r.Price = 90
	assert.True(t, r.IsLowerBreakout())
	assert.Equal(t, 0.0, r.PercentB())

	assert.InDelta(t, 0.2, r.BandWidth(), 1e-9)
}
