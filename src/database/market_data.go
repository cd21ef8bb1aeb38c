package database

import (
	"context"
	"fmt"

	"multicryptobot/src/cex"
)

// SaveMarketData 保存K线，(symbol, timeframe, timestamp) 已存在时覆盖
func (p *PostgresDB) SaveMarketData(ctx context.Context, timeframe string, klines []*cex.KlineData) error {
	if len(klines) == 0 {
		return nil
	}

	tx, err := p.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO market_data (
			symbol, timeframe, timestamp, open_price, high_price,
			low_price, close_price, volume, close_time
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (symbol, timeframe, timestamp)
		DO UPDATE SET
			open_price = EXCLUDED.open_price,
			high_price = EXCLUDED.high_price,
			low_price = EXCLUDED.low_price,
			close_price = EXCLUDED.close_price,
			volume = EXCLUDED.volume,
			close_time = EXCLUDED.close_time
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare statement: %w", err)
	}
	defer stmt.Close()

	for _, k := range klines {
		_, err = stmt.ExecContext(ctx,
			k.TradingPair.String(), timeframe, k.OpenTime.UTC(), k.Open, k.High,
			k.Low, k.Close, k.Volume, k.CloseTime.UTC(),
		)
		if err != nil {
			return fmt.Errorf("failed to insert market data: %w", err)
		}
	}

	return tx.Commit()
}

// GetMarketData 最近limit根K线，按时间升序
func (p *PostgresDB) GetMarketData(ctx context.Context, pair cex.TradingPair, timeframe string, limit int) ([]*cex.KlineData, error) {
	rows, err := p.db.QueryContext(ctx, `
		SELECT timestamp, open_price, high_price, low_price, close_price, volume, close_time
		FROM market_data
		WHERE symbol = $1 AND timeframe = $2
		ORDER BY timestamp DESC
		LIMIT $3
	`, pair.String(), timeframe, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query market data: %w", err)
	}
	defer rows.Close()

	var klines []*cex.KlineData
	for rows.Next() {
		k := &cex.KlineData{TradingPair: pair}
		if err := rows.Scan(&k.OpenTime, &k.Open, &k.High, &k.Low, &k.Close, &k.Volume, &k.CloseTime); err != nil {
			return nil, fmt.Errorf("failed to scan market data: %w", err)
		}
		klines = append(klines, k)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	// 倒序查询，翻转为升序
	for i, j := 0, len(klines)-1; i < j; i, j = i+1, j-1 {
		klines[i], klines[j] = klines[j], klines[i]
	}
	return klines, nil
}
