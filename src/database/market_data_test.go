package database

import (
	"context"
	"errors"
	"testing"
	"time"

	"multicryptobot/src/cex"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var btc = cex.TradingPair{Base: "BTC", Quote: "USDT"}

func kline(openTime time.Time, price float64) *cex.KlineData {
	c := decimal.NewFromFloat(price)
	return &cex.KlineData{
		TradingPair: btc,
		OpenTime:    openTime,
		Open:        c,
		High:        c,
		Low:         c,
		Close:       c,
		Volume:      decimal.NewFromInt(10),
		CloseTime:   openTime.Add(time.Hour - time.Millisecond),
	}
}

func TestPostgresDB_SaveMarketData(t *testing.T) {
	ctx := context.Background()
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	klines := []*cex.KlineData{kline(start, 50000)}

	t.Run("successful save", func(t *testing.T) {
		p, mock := newMockDB(t)
		mock.ExpectBegin()
		mock.ExpectPrepare("INSERT INTO market_data").ExpectExec().
			WithArgs("BTC/USDT", "1h", start, klines[0].Open, klines[0].High,
				klines[0].Low, klines[0].Close, klines[0].Volume, klines[0].CloseTime).
			WillReturnResult(sqlmock.NewResult(1, 1))
		mock.ExpectCommit()

		assert.NoError(t, p.SaveMarketData(ctx, "1h", klines))
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("empty klines", func(t *testing.T) {
		p, mock := newMockDB(t)
		assert.NoError(t, p.SaveMarketData(ctx, "1h", nil))
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("database error", func(t *testing.T) {
		p, mock := newMockDB(t)
		mock.ExpectBegin().WillReturnError(errors.New("connection refused"))

		err := p.SaveMarketData(ctx, "1h", klines)
		assert.ErrorContains(t, err, "failed to begin transaction")
	})
}

func TestPostgresDB_GetMarketData(t *testing.T) {
	p, mock := newMockDB(t)
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

	cols := []string{"timestamp", "open_price", "high_price", "low_price", "close_price", "volume", "close_time"}
	mock.ExpectQuery("SELECT (.+) FROM market_data").
		WithArgs("BTC/USDT", "1h", 2).
		WillReturnRows(sqlmock.NewRows(cols).
			AddRow(start.Add(time.Hour), "101", "102", "100", "101.5", "3", start.Add(2*time.Hour)).
			AddRow(start, "100", "101", "99", "100.5", "2", start.Add(time.Hour)))

	klines, err := p.GetMarketData(context.Background(), btc, "1h", 2)
	require.NoError(t, err)
	require.Len(t, klines, 2)
	assert.Equal(t, start, klines[0].OpenTime)
	assert.Equal(t, start.Add(time.Hour), klines[1].OpenTime)
	assert.Equal(t, "101.5", klines[1].Close.String())
	assert.Equal(t, btc, klines[0].TradingPair)
	assert.NoError(t, mock.ExpectationsWereMet())
}

type fakeKlineStore struct {
	klines      []*cex.KlineData
	ShouldError bool
	saved       []*cex.KlineData
}

func (s *fakeKlineStore) SaveMarketData(_ context.Context, _ string, klines []*cex.KlineData) error {
	s.saved = append(s.saved, klines...)
	return nil
}

func (s *fakeKlineStore) GetMarketData(_ context.Context, _ cex.TradingPair, _ string, limit int) ([]*cex.KlineData, error) {
	if s.ShouldError {
		return nil, errors.New("db down")
	}
	if len(s.klines) > limit {
		return s.klines[len(s.klines)-limit:], nil
	}
	return s.klines, nil
}

type fakeUpstream struct {
	klines      []*cex.KlineData
	ShouldError bool
	CallCount   int
}

func (u *fakeUpstream) CurrentPrice(context.Context, cex.TradingPair) (decimal.Decimal, error) {
	return decimal.NewFromInt(42), nil
}

func (u *fakeUpstream) GetKlines(_ context.Context, _ cex.TradingPair, _ string, _ int) ([]*cex.KlineData, error) {
	u.CallCount++
	if u.ShouldError {
		return nil, cex.ErrGateway
	}
	return u.klines, nil
}

func TestKlineManager_GetKlines(t *testing.T) {
	ctx := context.Background()
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	hours := func(from, n int) []*cex.KlineData {
		out := make([]*cex.KlineData, 0, n)
		for i := from; i < from+n; i++ {
			out = append(out, kline(start.Add(time.Duration(i)*time.Hour), float64(100+i)))
		}
		return out
	}

	t.Run("fresh database data skips network", func(t *testing.T) {
		store := &fakeKlineStore{klines: hours(0, 5)}
		up := &fakeUpstream{}
		km := NewKlineManager(store, up)
		km.now = func() time.Time { return start.Add(4*time.Hour + 10*time.Minute) }

		got, err := km.GetKlines(ctx, btc, "1h", 3)
		require.NoError(t, err)
		assert.Len(t, got, 3)
		assert.Equal(t, 0, up.CallCount)
	})

	t.Run("stale database data is supplemented and saved", func(t *testing.T) {
		store := &fakeKlineStore{klines: hours(0, 3)}
		up := &fakeUpstream{klines: hours(2, 3)}
		km := NewKlineManager(store, up)
		km.now = func() time.Time { return start.Add(4*time.Hour + 10*time.Minute) }

		got, err := km.GetKlines(ctx, btc, "1h", 3)
		require.NoError(t, err)
		require.Len(t, got, 3)
		assert.Equal(t, start.Add(2*time.Hour), got[0].OpenTime)
		assert.Equal(t, start.Add(4*time.Hour), got[2].OpenTime)
		assert.Equal(t, 1, up.CallCount)
		assert.Len(t, store.saved, 3)
	})

	t.Run("network failure falls back to database", func(t *testing.T) {
		store := &fakeKlineStore{klines: hours(0, 2)}
		up := &fakeUpstream{ShouldError: true}
		km := NewKlineManager(store, up)

		got, err := km.GetKlines(ctx, btc, "1h", 3)
		require.NoError(t, err)
		assert.Len(t, got, 2)
	})

	t.Run("both fail", func(t *testing.T) {
		store := &fakeKlineStore{ShouldError: true}
		up := &fakeUpstream{ShouldError: true}
		km := NewKlineManager(store, up)

		_, err := km.GetKlines(ctx, btc, "1h", 3)
		assert.ErrorIs(t, err, cex.ErrGateway)
	})

	t.Run("current price passes through", func(t *testing.T) {
		km := NewKlineManager(&fakeKlineStore{}, &fakeUpstream{})
		price, err := km.CurrentPrice(ctx, btc)
		require.NoError(t, err)
		assert.True(t, price.Equal(decimal.NewFromInt(42)))
	})
}

func TestMergeKlines(t *testing.T) {
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	older := []*cex.KlineData{kline(start, 1), kline(start.Add(time.Hour), 2)}
	newer := []*cex.KlineData{kline(start.Add(2*time.Hour), 3), kline(start.Add(time.Hour), 20)}

	merged := MergeKlines(older, newer)
	require.Len(t, merged, 3)
	assert.Equal(t, "1", merged[0].Close.String())
	assert.Equal(t, "20", merged[1].Close.String())
	assert.Equal(t, "3", merged[2].Close.String())
}
