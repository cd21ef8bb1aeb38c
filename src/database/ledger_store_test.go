package database

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"multicryptobot/src/cex"
	"multicryptobot/src/executor"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPostgresDB_SaveOrder(t *testing.T) {
	ctx := context.Background()
	at := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)
	order := &executor.OrderRecord{
		Symbol:        "BTC/USDT",
		OrderID:       "paper_1",
		Type:          executor.OrderTypeStopLoss,
		Side:          cex.OrderSideSell,
		Price:         decimal.NewFromInt(95),
		Amount:        decimal.NewFromInt(1),
		TotalValue:    decimal.NewFromInt(95),
		Status:        "FILLED",
		PaperTrade:    true,
		Reason:        "stop loss",
		CorrelationID: "c-1",
		RealizedPnL:   decimal.NewFromInt(-5),
		ExecutedAt:    at,
	}

	t.Run("successful save", func(t *testing.T) {
		p, mock := newMockDB(t)
		mock.ExpectBegin()
		mock.ExpectPrepare("INSERT INTO trade_orders").ExpectExec().
			WithArgs("BTC/USDT", "STOP_LOSS", "SELL", "", order.Price, order.Amount, order.TotalValue,
				order.RealizedPnL, "stop loss", true, "paper_1", "FILLED", "c-1", at).
			WillReturnResult(sqlmock.NewResult(1, 1))
		mock.ExpectCommit()

		assert.NoError(t, p.SaveOrder(ctx, order))
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("insert error rolls back", func(t *testing.T) {
		p, mock := newMockDB(t)
		mock.ExpectBegin()
		mock.ExpectPrepare("INSERT INTO trade_orders").ExpectExec().
			WillReturnError(sql.ErrConnDone)
		mock.ExpectRollback()

		err := p.SaveOrder(ctx, order)
		assert.ErrorContains(t, err, "failed to insert trade order")
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestPostgresDB_SaveSnapshot(t *testing.T) {
	p, mock := newMockDB(t)
	at := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)
	s := &executor.Snapshot{
		Symbol:        "BTC/USDT",
		State:         executor.StateLong,
		Cash:          decimal.NewFromInt(900),
		Crypto:        decimal.NewFromInt(1),
		Price:         decimal.NewFromInt(110),
		TotalValue:    decimal.NewFromInt(1010),
		EntryPrice:    decimal.NewFromInt(100),
		UnrealizedPnL: decimal.NewFromInt(10),
		Timestamp:     at,
	}

	mock.ExpectBegin()
	mock.ExpectPrepare("INSERT INTO portfolio_snapshots").ExpectExec().
		WithArgs("BTC/USDT", "LONG", s.Cash, s.Crypto, s.Price, s.TotalValue, s.EntryPrice, s.UnrealizedPnL, at).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()

	assert.NoError(t, p.SaveSnapshot(context.Background(), s))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresDB_GetTradeHistory(t *testing.T) {
	p, mock := newMockDB(t)
	at := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)

	cols := []string{
		"symbol", "order_type", "side", "strategy", "price", "amount", "total_value",
		"realized_pnl", "reason", "is_paper_trade", "exchange_order_id", "status",
		"correlation_id", "executed_at",
	}
	mock.ExpectQuery("SELECT (.+) FROM trade_orders WHERE symbol = \\$1 ORDER BY executed_at DESC LIMIT \\$2").
		WithArgs("BTC/USDT", 10).
		WillReturnRows(sqlmock.NewRows(cols).
			AddRow("BTC/USDT", "BUY", "BUY", "sma_crossover", "100", "1", "100", "0", nil, true, "paper_1", "FILLED", nil, at))

	orders, err := p.GetTradeHistory(context.Background(), "BTC/USDT", 10)
	require.NoError(t, err)
	require.Len(t, orders, 1)
	assert.Equal(t, executor.OrderTypeBuy, orders[0].Type)
	assert.Equal(t, cex.OrderSideBuy, orders[0].Side)
	assert.Equal(t, "sma_crossover", orders[0].Strategy)
	assert.Equal(t, "", orders[0].Reason)
	assert.True(t, orders[0].PaperTrade)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresDB_LatestSnapshot(t *testing.T) {
	ctx := context.Background()
	cols := []string{"state", "cash_balance", "crypto_balance", "current_price",
		"total_value_usd", "entry_price", "unrealized_pnl", "snapshot_time"}

	t.Run("found", func(t *testing.T) {
		p, mock := newMockDB(t)
		at := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)
		mock.ExpectQuery("SELECT (.+) FROM portfolio_snapshots").
			WithArgs("BTC/USDT").
			WillReturnRows(sqlmock.NewRows(cols).AddRow("LONG", "900", "1", "110", "1010", "100", "10", at))

		s, err := p.LatestSnapshot(ctx, "BTC/USDT")
		require.NoError(t, err)
		require.NotNil(t, s)
		assert.Equal(t, executor.StateLong, s.State)
		assert.True(t, s.Cash.Equal(decimal.NewFromInt(900)))
		assert.Equal(t, at, s.Timestamp)
	})

	t.Run("none", func(t *testing.T) {
		p, mock := newMockDB(t)
		mock.ExpectQuery("SELECT (.+) FROM portfolio_snapshots").
			WithArgs("ETH/USDT").
			WillReturnRows(sqlmock.NewRows(cols))

		s, err := p.LatestSnapshot(ctx, "ETH/USDT")
		assert.NoError(t, err)
		assert.Nil(t, s)
	})
}

func TestPostgresDB_PruneSnapshots(t *testing.T) {
	ctx := context.Background()
	before := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)

	t.Run("deletes old rows", func(t *testing.T) {
		p, mock := newMockDB(t)
		mock.ExpectExec("DELETE FROM portfolio_snapshots").
			WithArgs(before).
			WillReturnResult(sqlmock.NewResult(0, 7))

		n, err := p.PruneSnapshots(ctx, before)
		require.NoError(t, err)
		assert.Equal(t, int64(7), n)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("exec error", func(t *testing.T) {
		p, mock := newMockDB(t)
		mock.ExpectExec("DELETE FROM portfolio_snapshots").
			WithArgs(before).
			WillReturnError(sql.ErrConnDone)

		_, err := p.PruneSnapshots(ctx, before)
		assert.Error(t, err)
	})
}
