package database

import (
	"context"
	"testing"
	"time"

	"multicryptobot/src/audit"
	"multicryptobot/src/strategy"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPostgresDB_RecordEvent(t *testing.T) {
	p, mock := newMockDB(t)
	at := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)

	mock.ExpectExec("INSERT INTO event_log").
		WithArgs("ORDER_ATTEMPT", "trading", "BTC/USDT", nil, "INFO", "buy attempt",
			`{"confidence":0.8}`, "BUY", nil, "100", nil, nil, "c-1", nil, at).
		WillReturnResult(sqlmock.NewResult(1, 1))

	var sink audit.Sink = p
	err := sink.Record(context.Background(), audit.Event{
		Type:          audit.EventOrderAttempt,
		Category:      "trading",
		Symbol:        "BTC/USDT",
		Severity:      audit.SeverityInfo,
		Message:       "buy attempt",
		Details:       map[string]interface{}{"confidence": 0.8},
		OrderType:     "BUY",
		Price:         decimal.NewNullDecimal(decimal.NewFromInt(100)),
		CorrelationID: "c-1",
		Timestamp:     at,
	})
	assert.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresDB_ListEvents(t *testing.T) {
	p, mock := newMockDB(t)
	at := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)

	cols := []string{
		"event_type", "event_category", "symbol", "strategy", "severity", "message", "details",
		"order_type", "order_status", "price", "amount", "order_id", "correlation_id",
		"error_code", "event_timestamp",
	}
	mock.ExpectQuery("FROM event_log WHERE event_type IN \\(\\$1, \\$2\\) AND symbol = \\$3 ORDER BY event_timestamp DESC LIMIT \\$4").
		WithArgs("ORDER_SUCCESS", "ORDER_FAILED", "BTC/USDT", 50).
		WillReturnRows(sqlmock.NewRows(cols).
			AddRow("ORDER_FAILED", "trading", "BTC/USDT", nil, "ERROR", "sell failed", []byte(`{"error":"timeout"}`),
				"SELL", "FAILED", "105", nil, nil, "c-2", "GATEWAY", at))

	events, err := p.ListEvents(context.Background(), EventFilter{
		Types:  []audit.EventType{audit.EventOrderSuccess, audit.EventOrderFailed},
		Symbol: "BTC/USDT",
	})
	require.NoError(t, err)
	require.Len(t, events, 1)
	e := events[0]
	assert.Equal(t, audit.EventOrderFailed, e.Type)
	assert.Equal(t, audit.SeverityError, e.Severity)
	assert.Equal(t, "timeout", e.Details["error"])
	assert.True(t, e.Price.Valid)
	assert.False(t, e.Amount.Valid)
	assert.Equal(t, "c-2", e.CorrelationID)
	assert.Equal(t, "", e.Strategy)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresDB_EventStats(t *testing.T) {
	p, mock := newMockDB(t)
	since := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)

	mock.ExpectQuery("SELECT event_type, severity, COUNT").
		WithArgs(since).
		WillReturnRows(sqlmock.NewRows([]string{"event_type", "severity", "count"}).
			AddRow("ERROR", "ERROR", 2).
			AddRow("ORDER_SUCCESS", "INFO", 7))

	stats, err := p.EventStats(context.Background(), since)
	require.NoError(t, err)
	require.Len(t, stats, 2)
	assert.Equal(t, 7, stats[1].Count)
	assert.Equal(t, audit.EventOrderSuccess, stats[1].Type)
}

func TestPostgresDB_SaveSignal(t *testing.T) {
	p, mock := newMockDB(t)
	at := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)

	mock.ExpectExec("INSERT INTO strategy_signals").
		WithArgs("BTC/USDT", "rsi", "BUY", 0.8, "oversold", `{"rsi":25}`, at).
		WillReturnResult(sqlmock.NewResult(1, 1))

	err := p.SaveSignal(context.Background(), "BTC/USDT", strategy.Signal{
		StrategyID: "rsi",
		Action:     strategy.ActionBuy,
		Reason:     "oversold",
		Confidence: 0.8,
		Indicators: map[string]float64{"rsi": 25},
		Timestamp:  at,
	})
	assert.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresDB_UpdateBotStatus(t *testing.T) {
	p, mock := newMockDB(t)
	at := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)

	mock.ExpectExec("INSERT INTO bot_status").
		WithArgs("multicryptobot", "RUNNING", 1, 0, nil, at).
		WillReturnResult(sqlmock.NewResult(1, 1))

	err := p.UpdateBotStatus(context.Background(), BotStatus{
		Name: "multicryptobot", Status: "RUNNING", OpenPositions: 1, LastHeartbeat: at,
	})
	assert.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}
