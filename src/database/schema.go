package database

import (
	"context"
	"fmt"
)

var schema = []string{
	`CREATE TABLE IF NOT EXISTS system_config (
		config_key   VARCHAR(100) PRIMARY KEY,
		config_value TEXT NOT NULL,
		config_type  VARCHAR(20) NOT NULL DEFAULT 'string',
		description  TEXT,
		category     VARCHAR(50) NOT NULL DEFAULT 'general',
		is_active    BOOLEAN NOT NULL DEFAULT TRUE,
		updated_at   TIMESTAMPTZ NOT NULL DEFAULT CURRENT_TIMESTAMP
	)`,
	`CREATE TABLE IF NOT EXISTS trading_pairs (
		symbol               VARCHAR(20) PRIMARY KEY,
		base_currency        VARCHAR(10) NOT NULL,
		quote_currency       VARCHAR(10) NOT NULL,
		is_active            BOOLEAN NOT NULL DEFAULT TRUE,
		initial_balance      NUMERIC(20, 8) NOT NULL DEFAULT 1000,
		trade_size_usd       NUMERIC(20, 8) NOT NULL DEFAULT 100,
		max_position_percent NUMERIC(10, 4) NOT NULL DEFAULT 20,
		min_trade_amount     NUMERIC(20, 8) NOT NULL DEFAULT 0.001,
		max_trade_amount     NUMERIC(20, 8) NOT NULL DEFAULT 10000,
		price_precision      INTEGER NOT NULL DEFAULT 2,
		amount_precision     INTEGER NOT NULL DEFAULT 6,
		updated_at           TIMESTAMPTZ NOT NULL DEFAULT CURRENT_TIMESTAMP
	)`,
	`CREATE TABLE IF NOT EXISTS strategies (
		id            SERIAL PRIMARY KEY,
		strategy_name VARCHAR(50) NOT NULL UNIQUE,
		display_name  VARCHAR(100) NOT NULL,
		strategy_type VARCHAR(50) NOT NULL,
		is_active     BOOLEAN NOT NULL DEFAULT TRUE
	)`,
	`CREATE TABLE IF NOT EXISTS pair_strategy_config (
		id          SERIAL PRIMARY KEY,
		symbol      VARCHAR(20) NOT NULL REFERENCES trading_pairs(symbol),
		strategy_id INTEGER NOT NULL REFERENCES strategies(id),
		is_enabled  BOOLEAN NOT NULL DEFAULT TRUE,
		weight      NUMERIC(10, 4) NOT NULL DEFAULT 1,
		parameters  JSONB NOT NULL DEFAULT '{}',
		updated_at  TIMESTAMPTZ NOT NULL DEFAULT CURRENT_TIMESTAMP,
		UNIQUE (symbol, strategy_id)
	)`,
	`CREATE TABLE IF NOT EXISTS pair_risk_config (
		symbol                   VARCHAR(20) PRIMARY KEY REFERENCES trading_pairs(symbol),
		stop_loss_percent        NUMERIC(10, 4) NOT NULL DEFAULT 5,
		take_profit_percent      NUMERIC(10, 4) NOT NULL DEFAULT 10,
		max_daily_trades         INTEGER NOT NULL DEFAULT 10,
		max_daily_loss_percent   NUMERIC(10, 4) NOT NULL DEFAULT 5,
		trailing_stop_enabled    BOOLEAN NOT NULL DEFAULT FALSE,
		trailing_stop_percent    NUMERIC(10, 4) NOT NULL DEFAULT 2,
		max_drawdown_percent     NUMERIC(10, 4) NOT NULL DEFAULT 20,
		position_sizing_method   VARCHAR(20) NOT NULL DEFAULT 'fixed',
		volatility_lookback_days INTEGER NOT NULL DEFAULT 30,
		updated_at               TIMESTAMPTZ NOT NULL DEFAULT CURRENT_TIMESTAMP
	)`,
	`CREATE TABLE IF NOT EXISTS trade_orders (
		id                SERIAL PRIMARY KEY,
		symbol            VARCHAR(20) NOT NULL,
		order_type        VARCHAR(20) NOT NULL,
		side              VARCHAR(10) NOT NULL,
		strategy          VARCHAR(50),
		price             NUMERIC(20, 8) NOT NULL,
		amount            NUMERIC(20, 8) NOT NULL,
		total_value       NUMERIC(20, 8) NOT NULL,
		realized_pnl      NUMERIC(20, 8) NOT NULL DEFAULT 0,
		reason            TEXT,
		is_paper_trade    BOOLEAN NOT NULL DEFAULT TRUE,
		exchange_order_id VARCHAR(100),
		status            VARCHAR(20) NOT NULL,
		correlation_id    VARCHAR(100),
		executed_at       TIMESTAMPTZ NOT NULL,
		created_at        TIMESTAMPTZ NOT NULL DEFAULT CURRENT_TIMESTAMP
	)`,
	`CREATE TABLE IF NOT EXISTS portfolio_snapshots (
		id              SERIAL PRIMARY KEY,
		symbol          VARCHAR(20) NOT NULL,
		state           VARCHAR(10) NOT NULL,
		cash_balance    NUMERIC(20, 8) NOT NULL,
		crypto_balance  NUMERIC(20, 8) NOT NULL,
		current_price   NUMERIC(20, 8) NOT NULL,
		total_value_usd NUMERIC(20, 8) NOT NULL,
		entry_price     NUMERIC(20, 8) NOT NULL DEFAULT 0,
		unrealized_pnl  NUMERIC(20, 8) NOT NULL DEFAULT 0,
		snapshot_time   TIMESTAMPTZ NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS market_data (
		id          SERIAL PRIMARY KEY,
		symbol      VARCHAR(20) NOT NULL,
		timeframe   VARCHAR(10) NOT NULL,
		timestamp   TIMESTAMPTZ NOT NULL,
		open_price  NUMERIC(20, 8) NOT NULL,
		high_price  NUMERIC(20, 8) NOT NULL,
		low_price   NUMERIC(20, 8) NOT NULL,
		close_price NUMERIC(20, 8) NOT NULL,
		volume      NUMERIC(20, 8) NOT NULL,
		close_time  TIMESTAMPTZ NOT NULL,
		UNIQUE (symbol, timeframe, timestamp)
	)`,
	`CREATE TABLE IF NOT EXISTS event_log (
		id              SERIAL PRIMARY KEY,
		event_type      VARCHAR(50) NOT NULL,
		event_category  VARCHAR(30) NOT NULL,
		symbol          VARCHAR(20),
		strategy        VARCHAR(50),
		severity        VARCHAR(20) NOT NULL DEFAULT 'INFO',
		message         TEXT NOT NULL,
		details         JSONB,
		order_type      VARCHAR(20),
		order_status    VARCHAR(20),
		price           NUMERIC(20, 8),
		amount          NUMERIC(20, 8),
		order_id        VARCHAR(100),
		correlation_id  VARCHAR(100),
		error_code      VARCHAR(50),
		event_timestamp TIMESTAMPTZ NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS strategy_signals (
		id            SERIAL PRIMARY KEY,
		symbol        VARCHAR(20) NOT NULL,
		strategy_name VARCHAR(50) NOT NULL,
		signal_type   VARCHAR(10) NOT NULL,
		confidence    NUMERIC(10, 4) NOT NULL,
		reason        TEXT,
		indicators    JSONB,
		signal_time   TIMESTAMPTZ NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS bot_status (
		bot_name          VARCHAR(50) PRIMARY KEY,
		status            VARCHAR(20) NOT NULL,
		open_positions    INTEGER NOT NULL DEFAULT 0,
		error_count       INTEGER NOT NULL DEFAULT 0,
		last_error        TEXT,
		last_heartbeat    TIMESTAMPTZ NOT NULL DEFAULT CURRENT_TIMESTAMP
	)`,
	`CREATE INDEX IF NOT EXISTS idx_event_log_correlation ON event_log (correlation_id)`,
	`CREATE INDEX IF NOT EXISTS idx_trade_orders_symbol ON trade_orders (symbol, executed_at)`,
	`CREATE INDEX IF NOT EXISTS idx_snapshots_symbol ON portfolio_snapshots (symbol, snapshot_time)`,
}

// Migrate 建表，重复执行无副作用
func (p *PostgresDB) Migrate(ctx context.Context) error {
	tx, err := p.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	for _, stmt := range schema {
		if _, err := tx.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("failed to migrate schema: %w", err)
		}
	}

	return tx.Commit()
}
