package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"multicryptobot/src/cex"
	"multicryptobot/src/executor"
)

// SaveOrder 记录一笔成交，实现 executor.Recorder
func (p *PostgresDB) SaveOrder(ctx context.Context, order *executor.OrderRecord) error {
	tx, err := p.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO trade_orders (
			symbol, order_type, side, strategy, price, amount, total_value,
			realized_pnl, reason, is_paper_trade, exchange_order_id, status,
			correlation_id, executed_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare statement: %w", err)
	}
	defer stmt.Close()

	_, err = stmt.ExecContext(ctx,
		order.Symbol, string(order.Type), string(order.Side), order.Strategy,
		order.Price, order.Amount, order.TotalValue,
		order.RealizedPnL, order.Reason, order.PaperTrade, order.OrderID, order.Status,
		order.CorrelationID, order.ExecutedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert trade order: %w", err)
	}

	return tx.Commit()
}

// SaveSnapshot 记录一次账本快照，实现 executor.Recorder
func (p *PostgresDB) SaveSnapshot(ctx context.Context, s *executor.Snapshot) error {
	tx, err := p.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO portfolio_snapshots (
			symbol, state, cash_balance, crypto_balance, current_price,
			total_value_usd, entry_price, unrealized_pnl, snapshot_time
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare statement: %w", err)
	}
	defer stmt.Close()

	_, err = stmt.ExecContext(ctx,
		s.Symbol, string(s.State), s.Cash, s.Crypto, s.Price,
		s.TotalValue, s.EntryPrice, s.UnrealizedPnL, s.Timestamp,
	)
	if err != nil {
		return fmt.Errorf("failed to insert portfolio snapshot: %w", err)
	}

	return tx.Commit()
}

// GetTradeHistory 交易对最近的成交，按时间倒序；symbol为空时查全部
func (p *PostgresDB) GetTradeHistory(ctx context.Context, symbol string, limit int) ([]*executor.OrderRecord, error) {
	query := `
		SELECT symbol, order_type, side, strategy, price, amount, total_value,
		       realized_pnl, reason, is_paper_trade, exchange_order_id, status,
		       correlation_id, executed_at
		FROM trade_orders
	`
	args := []interface{}{}
	if symbol != "" {
		args = append(args, symbol)
		query += " WHERE symbol = $1"
	}
	query += " ORDER BY executed_at DESC"
	if limit > 0 {
		args = append(args, limit)
		query += fmt.Sprintf(" LIMIT $%d", len(args))
	}

	rows, err := p.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query trade orders: %w", err)
	}
	defer rows.Close()

	var orders []*executor.OrderRecord
	for rows.Next() {
		o := &executor.OrderRecord{}
		var orderType, side string
		var strategyName, reason, orderID, correlationID sql.NullString
		err := rows.Scan(&o.Symbol, &orderType, &side, &strategyName, &o.Price, &o.Amount, &o.TotalValue,
			&o.RealizedPnL, &reason, &o.PaperTrade, &orderID, &o.Status,
			&correlationID, &o.ExecutedAt)
		if err != nil {
			return nil, fmt.Errorf("failed to scan trade order: %w", err)
		}
		o.Type = executor.OrderType(orderType)
		o.Side = cex.OrderSide(side)
		o.Strategy = strategyName.String
		o.Reason = reason.String
		o.OrderID = orderID.String
		o.CorrelationID = correlationID.String
		orders = append(orders, o)
	}

	return orders, rows.Err()
}

// LatestSnapshot 交易对最新的快照，没有时返回nil
func (p *PostgresDB) LatestSnapshot(ctx context.Context, symbol string) (*executor.Snapshot, error) {
	s := &executor.Snapshot{Symbol: symbol}
	var state string
	err := p.db.QueryRowContext(ctx, `
		SELECT state, cash_balance, crypto_balance, current_price,
		       total_value_usd, entry_price, unrealized_pnl, snapshot_time
		FROM portfolio_snapshots
		WHERE symbol = $1
		ORDER BY snapshot_time DESC
		LIMIT 1
	`, symbol).Scan(&state, &s.Cash, &s.Crypto, &s.Price, &s.TotalValue, &s.EntryPrice, &s.UnrealizedPnL, &s.Timestamp)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get latest snapshot %s: %w", symbol, err)
	}
	s.State = executor.State(state)
	return s, nil
}

// PruneSnapshots 删除早于 before 的快照，每个交易对最新的一条总是保留
func (p *PostgresDB) PruneSnapshots(ctx context.Context, before time.Time) (int64, error) {
	res, err := p.db.ExecContext(ctx, `
		DELETE FROM portfolio_snapshots s
		WHERE s.snapshot_time < $1
		  AND s.snapshot_time < (
			SELECT MAX(snapshot_time) FROM portfolio_snapshots WHERE symbol = s.symbol
		  )
	`, before)
	if err != nil {
		return 0, fmt.Errorf("failed to prune snapshots: %w", err)
	}
	return res.RowsAffected()
}
