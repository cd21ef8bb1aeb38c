package database

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/lib/pq"
	"github.com/shopspring/decimal"
)

// SystemConfigRow system_config 表的一行
type SystemConfigRow struct {
	Key         string    `json:"config_key"`
	Value       string    `json:"config_value"`
	Type        string    `json:"config_type"` // boolean|integer|float|json|string
	Description string    `json:"description"`
	Category    string    `json:"category"`
	IsActive    bool      `json:"is_active"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// TradingPairRow trading_pairs 表的一行
type TradingPairRow struct {
	Symbol             string          `json:"symbol"`
	BaseCurrency       string          `json:"base_currency"`
	QuoteCurrency      string          `json:"quote_currency"`
	IsActive           bool            `json:"is_active"`
	InitialBalance     decimal.Decimal `json:"initial_balance"`
	TradeSizeUSD       decimal.Decimal `json:"trade_size_usd"`
	MaxPositionPercent float64         `json:"max_position_percent"`
	MinTradeAmount     decimal.Decimal `json:"min_trade_amount"`
	MaxTradeAmount     decimal.Decimal `json:"max_trade_amount"`
	PricePrecision     int             `json:"price_precision"`
	AmountPrecision    int             `json:"amount_precision"`
}

// StrategyConfigRow 交易对上一个策略的配置（pair_strategy_config JOIN strategies）
type StrategyConfigRow struct {
	Symbol      string                 `json:"symbol"`
	Name        string                 `json:"strategy_name"`
	DisplayName string                 `json:"display_name"`
	Type        string                 `json:"strategy_type"`
	Enabled     bool                   `json:"is_enabled"`
	Weight      float64                `json:"weight"`
	Parameters  map[string]interface{} `json:"parameters"`
}

// RiskConfigRow pair_risk_config 表的一行
type RiskConfigRow struct {
	Symbol                 string  `json:"symbol"`
	StopLossPercent        float64 `json:"stop_loss_percent"`
	TakeProfitPercent      float64 `json:"take_profit_percent"`
	MaxDailyTrades         int     `json:"max_daily_trades"`
	MaxDailyLossPercent    float64 `json:"max_daily_loss_percent"`
	TrailingStopEnabled    bool    `json:"trailing_stop_enabled"`
	TrailingStopPercent    float64 `json:"trailing_stop_percent"`
	MaxDrawdownPercent     float64 `json:"max_drawdown_percent"`
	PositionSizingMethod   string  `json:"position_sizing_method"`
	VolatilityLookbackDays int     `json:"volatility_lookback_days"`
}

// RiskConfigFields 允许通过 UpdateRiskConfig 修改的列
var RiskConfigFields = []string{
	"stop_loss_percent", "take_profit_percent", "max_daily_trades",
	"max_daily_loss_percent", "trailing_stop_enabled", "trailing_stop_percent",
	"max_drawdown_percent", "position_sizing_method", "volatility_lookback_days",
}

// GetSystemConfig 读取一个系统配置，不存在时返回nil
func (p *PostgresDB) GetSystemConfig(ctx context.Context, key string) (*SystemConfigRow, error) {
	var row SystemConfigRow
	var desc sql.NullString
	err := p.db.QueryRowContext(ctx, `
		SELECT config_key, config_value, config_type, description, category, is_active, updated_at
		FROM system_config
		WHERE config_key = $1 AND is_active = true
	`, key).Scan(&row.Key, &row.Value, &row.Type, &desc, &row.Category, &row.IsActive, &row.UpdatedAt)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get system config %s: %w", key, err)
	}
	row.Description = desc.String
	return &row, nil
}

// ListSystemConfig 全部生效的系统配置
func (p *PostgresDB) ListSystemConfig(ctx context.Context) ([]SystemConfigRow, error) {
	rows, err := p.db.QueryContext(ctx, `
		SELECT config_key, config_value, config_type, description, category, is_active, updated_at
		FROM system_config
		WHERE is_active = true
		ORDER BY category, config_key
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to query system config: %w", err)
	}
	defer rows.Close()

	var out []SystemConfigRow
	for rows.Next() {
		var row SystemConfigRow
		var desc sql.NullString
		if err := rows.Scan(&row.Key, &row.Value, &row.Type, &desc, &row.Category, &row.IsActive, &row.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan system config: %w", err)
		}
		row.Description = desc.String
		out = append(out, row)
	}
	return out, rows.Err()
}

// UpsertSystemConfig 写入系统配置，描述为空时保留原描述
func (p *PostgresDB) UpsertSystemConfig(ctx context.Context, row SystemConfigRow) error {
	tx, err := p.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO system_config (config_key, config_value, config_type, description, category)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (config_key)
		DO UPDATE SET
			config_value = EXCLUDED.config_value,
			config_type = EXCLUDED.config_type,
			description = COALESCE(NULLIF(EXCLUDED.description, ''), system_config.description),
			category = EXCLUDED.category,
			is_active = true,
			updated_at = CURRENT_TIMESTAMP
	`, row.Key, row.Value, row.Type, row.Description, row.Category)
	if err != nil {
		return fmt.Errorf("failed to upsert system config %s: %w", row.Key, err)
	}

	return tx.Commit()
}

const tradingPairColumns = `symbol, base_currency, quote_currency, is_active, initial_balance, trade_size_usd,
		       max_position_percent, min_trade_amount, max_trade_amount, price_precision, amount_precision`

func scanTradingPair(scan func(dest ...interface{}) error) (*TradingPairRow, error) {
	var row TradingPairRow
	err := scan(&row.Symbol, &row.BaseCurrency, &row.QuoteCurrency, &row.IsActive,
		&row.InitialBalance, &row.TradeSizeUSD, &row.MaxPositionPercent,
		&row.MinTradeAmount, &row.MaxTradeAmount, &row.PricePrecision, &row.AmountPrecision)
	if err != nil {
		return nil, err
	}
	return &row, nil
}

// ListActivePairs 全部启用的交易对
func (p *PostgresDB) ListActivePairs(ctx context.Context) ([]TradingPairRow, error) {
	rows, err := p.db.QueryContext(ctx, `
		SELECT `+tradingPairColumns+`
		FROM trading_pairs
		WHERE is_active = true
		ORDER BY symbol
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to query trading pairs: %w", err)
	}
	defer rows.Close()

	var out []TradingPairRow
	for rows.Next() {
		row, err := scanTradingPair(rows.Scan)
		if err != nil {
			return nil, fmt.Errorf("failed to scan trading pair: %w", err)
		}
		out = append(out, *row)
	}
	return out, rows.Err()
}

// GetTradingPair 读取交易对，不存在时返回nil
func (p *PostgresDB) GetTradingPair(ctx context.Context, symbol string) (*TradingPairRow, error) {
	row, err := scanTradingPair(p.db.QueryRowContext(ctx, `
		SELECT `+tradingPairColumns+`
		FROM trading_pairs
		WHERE symbol = $1
	`, symbol).Scan)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get trading pair %s: %w", symbol, err)
	}
	return row, nil
}

// UpsertTradingPair 新增或更新交易对，同时确保存在一行默认风控配置
func (p *PostgresDB) UpsertTradingPair(ctx context.Context, row TradingPairRow) error {
	tx, err := p.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO trading_pairs (
			symbol, base_currency, quote_currency, is_active, initial_balance, trade_size_usd,
			max_position_percent, min_trade_amount, max_trade_amount, price_precision, amount_precision
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		ON CONFLICT (symbol)
		DO UPDATE SET
			base_currency = EXCLUDED.base_currency,
			quote_currency = EXCLUDED.quote_currency,
			is_active = EXCLUDED.is_active,
			initial_balance = EXCLUDED.initial_balance,
			trade_size_usd = EXCLUDED.trade_size_usd,
			max_position_percent = EXCLUDED.max_position_percent,
			min_trade_amount = EXCLUDED.min_trade_amount,
			max_trade_amount = EXCLUDED.max_trade_amount,
			price_precision = EXCLUDED.price_precision,
			amount_precision = EXCLUDED.amount_precision,
			updated_at = CURRENT_TIMESTAMP
	`, row.Symbol, row.BaseCurrency, row.QuoteCurrency, row.IsActive, row.InitialBalance, row.TradeSizeUSD,
		row.MaxPositionPercent, row.MinTradeAmount, row.MaxTradeAmount, row.PricePrecision, row.AmountPrecision)
	if err != nil {
		return fmt.Errorf("failed to upsert trading pair %s: %w", row.Symbol, err)
	}

	_, err = tx.ExecContext(ctx,
		`INSERT INTO pair_risk_config (symbol) VALUES ($1) ON CONFLICT (symbol) DO NOTHING`, row.Symbol)
	if err != nil {
		return fmt.Errorf("failed to create risk config for %s: %w", row.Symbol, err)
	}

	return tx.Commit()
}

// ListPairStrategies 交易对上配置的全部策略，按权重降序
func (p *PostgresDB) ListPairStrategies(ctx context.Context, symbol string) ([]StrategyConfigRow, error) {
	rows, err := p.db.QueryContext(ctx, `
		SELECT psc.symbol, s.strategy_name, s.display_name, s.strategy_type,
		       psc.is_enabled, psc.weight, psc.parameters
		FROM pair_strategy_config psc
		JOIN strategies s ON psc.strategy_id = s.id
		WHERE psc.symbol = $1 AND s.is_active = true
		ORDER BY psc.weight DESC, s.strategy_name
	`, symbol)
	if err != nil {
		return nil, fmt.Errorf("failed to query strategies for %s: %w", symbol, err)
	}
	defer rows.Close()

	var out []StrategyConfigRow
	for rows.Next() {
		var row StrategyConfigRow
		var params []byte
		if err := rows.Scan(&row.Symbol, &row.Name, &row.DisplayName, &row.Type,
			&row.Enabled, &row.Weight, &params); err != nil {
			return nil, fmt.Errorf("failed to scan strategy config: %w", err)
		}
		row.Parameters = decodeParameters(params)
		out = append(out, row)
	}
	return out, rows.Err()
}

// decodeParameters 参数不是合法JSON对象时按空参数处理
func decodeParameters(raw []byte) map[string]interface{} {
	params := map[string]interface{}{}
	if len(raw) == 0 {
		return params
	}
	if err := json.Unmarshal(raw, &params); err != nil || params == nil {
		return map[string]interface{}{}
	}
	return params
}

// UpsertStrategyConfig 登记策略并写入交易对上的配置
func (p *PostgresDB) UpsertStrategyConfig(ctx context.Context, row StrategyConfigRow) error {
	params, err := json.Marshal(row.Parameters)
	if err != nil {
		return fmt.Errorf("failed to marshal parameters: %w", err)
	}
	if row.Parameters == nil {
		params = []byte("{}")
	}
	display := row.DisplayName
	if display == "" {
		display = row.Name
	}

	tx, err := p.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	var strategyID int64
	err = tx.QueryRowContext(ctx, `
		INSERT INTO strategies (strategy_name, display_name, strategy_type)
		VALUES ($1, $2, $3)
		ON CONFLICT (strategy_name)
		DO UPDATE SET display_name = EXCLUDED.display_name, strategy_type = EXCLUDED.strategy_type
		RETURNING id
	`, row.Name, display, row.Type).Scan(&strategyID)
	if err != nil {
		return fmt.Errorf("failed to upsert strategy %s: %w", row.Name, err)
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO pair_strategy_config (symbol, strategy_id, is_enabled, weight, parameters)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (symbol, strategy_id)
		DO UPDATE SET
			is_enabled = EXCLUDED.is_enabled,
			weight = EXCLUDED.weight,
			parameters = EXCLUDED.parameters,
			updated_at = CURRENT_TIMESTAMP
	`, row.Symbol, strategyID, row.Enabled, row.Weight, string(params))
	if err != nil {
		return fmt.Errorf("failed to upsert strategy config %s/%s: %w", row.Symbol, row.Name, err)
	}

	return tx.Commit()
}

// StrategyUpdate 部分更新，nil 字段保持不变
type StrategyUpdate struct {
	Parameters map[string]interface{}
	Weight     *float64
	Enabled    *bool
}

// UpdateStrategyConfig 更新交易对上的策略配置
func (p *PostgresDB) UpdateStrategyConfig(ctx context.Context, symbol, name string, update StrategyUpdate) error {
	sets := []string{}
	args := []interface{}{symbol, name}

	if update.Parameters != nil {
		params, err := json.Marshal(update.Parameters)
		if err != nil {
			return fmt.Errorf("failed to marshal parameters: %w", err)
		}
		args = append(args, string(params))
		sets = append(sets, fmt.Sprintf("parameters = $%d", len(args)))
	}
	if update.Weight != nil {
		args = append(args, *update.Weight)
		sets = append(sets, fmt.Sprintf("weight = $%d", len(args)))
	}
	if update.Enabled != nil {
		args = append(args, *update.Enabled)
		sets = append(sets, fmt.Sprintf("is_enabled = $%d", len(args)))
	}
	if len(sets) == 0 {
		return fmt.Errorf("no strategy fields to update for %s/%s", symbol, name)
	}
	sets = append(sets, "updated_at = CURRENT_TIMESTAMP")

	tx, err := p.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx, `
		UPDATE pair_strategy_config
		SET `+strings.Join(sets, ", ")+`
		FROM strategies s
		WHERE pair_strategy_config.strategy_id = s.id
		  AND pair_strategy_config.symbol = $1
		  AND s.strategy_name = $2
	`, args...)
	if err != nil {
		return fmt.Errorf("failed to update strategy config %s/%s: %w", symbol, name, err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("strategy %s not configured for %s", name, symbol)
	}

	return tx.Commit()
}

// GetRiskConfig 读取交易对风控配置，不存在时返回nil
func (p *PostgresDB) GetRiskConfig(ctx context.Context, symbol string) (*RiskConfigRow, error) {
	row := RiskConfigRow{Symbol: symbol}
	err := p.db.QueryRowContext(ctx, `
		SELECT stop_loss_percent, take_profit_percent, max_daily_trades,
		       max_daily_loss_percent, trailing_stop_enabled, trailing_stop_percent,
		       max_drawdown_percent, position_sizing_method, volatility_lookback_days
		FROM pair_risk_config
		WHERE symbol = $1
	`, symbol).Scan(&row.StopLossPercent, &row.TakeProfitPercent, &row.MaxDailyTrades,
		&row.MaxDailyLossPercent, &row.TrailingStopEnabled, &row.TrailingStopPercent,
		&row.MaxDrawdownPercent, &row.PositionSizingMethod, &row.VolatilityLookbackDays)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get risk config %s: %w", symbol, err)
	}
	return &row, nil
}

// UpsertRiskConfig 写入完整的风控配置
func (p *PostgresDB) UpsertRiskConfig(ctx context.Context, row RiskConfigRow) error {
	tx, err := p.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO pair_risk_config (
			symbol, stop_loss_percent, take_profit_percent, max_daily_trades,
			max_daily_loss_percent, trailing_stop_enabled, trailing_stop_percent,
			max_drawdown_percent, position_sizing_method, volatility_lookback_days
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		ON CONFLICT (symbol)
		DO UPDATE SET
			stop_loss_percent = EXCLUDED.stop_loss_percent,
			take_profit_percent = EXCLUDED.take_profit_percent,
			max_daily_trades = EXCLUDED.max_daily_trades,
			max_daily_loss_percent = EXCLUDED.max_daily_loss_percent,
			trailing_stop_enabled = EXCLUDED.trailing_stop_enabled,
			trailing_stop_percent = EXCLUDED.trailing_stop_percent,
			max_drawdown_percent = EXCLUDED.max_drawdown_percent,
			position_sizing_method = EXCLUDED.position_sizing_method,
			volatility_lookback_days = EXCLUDED.volatility_lookback_days,
			updated_at = CURRENT_TIMESTAMP
	`, row.Symbol, row.StopLossPercent, row.TakeProfitPercent, row.MaxDailyTrades,
		row.MaxDailyLossPercent, row.TrailingStopEnabled, row.TrailingStopPercent,
		row.MaxDrawdownPercent, row.PositionSizingMethod, row.VolatilityLookbackDays)
	if err != nil {
		return fmt.Errorf("failed to upsert risk config %s: %w", row.Symbol, err)
	}

	return tx.Commit()
}

// UpdateRiskConfig 只更新白名单内的列，出现未知列时整体拒绝
func (p *PostgresDB) UpdateRiskConfig(ctx context.Context, symbol string, fields map[string]interface{}) error {
	if len(fields) == 0 {
		return fmt.Errorf("no risk fields to update for %s", symbol)
	}

	allowed := make(map[string]bool, len(RiskConfigFields))
	for _, f := range RiskConfigFields {
		allowed[f] = true
	}

	sets := []string{}
	args := []interface{}{symbol}
	// 按白名单顺序拼接，保证SQL稳定
	for _, f := range RiskConfigFields {
		v, ok := fields[f]
		if !ok {
			continue
		}
		args = append(args, v)
		sets = append(sets, fmt.Sprintf("%s = $%d", f, len(args)))
	}
	for f := range fields {
		if !allowed[f] {
			return fmt.Errorf("unknown risk field %q", f)
		}
	}
	sets = append(sets, "updated_at = CURRENT_TIMESTAMP")

	tx, err := p.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx,
		`UPDATE pair_risk_config SET `+strings.Join(sets, ", ")+` WHERE symbol = $1`, args...)
	if err != nil {
		return fmt.Errorf("failed to update risk config %s: %w", symbol, err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("no risk config for %s", symbol)
	}

	return tx.Commit()
}

// SumMaxPositionPercent 启用交易对的 max_position_percent 之和
func (p *PostgresDB) SumMaxPositionPercent(ctx context.Context, symbols []string) (float64, error) {
	var total sql.NullFloat64
	err := p.db.QueryRowContext(ctx, `
		SELECT SUM(max_position_percent)
		FROM trading_pairs
		WHERE is_active = true AND symbol = ANY($1)
	`, pq.Array(symbols)).Scan(&total)
	if err != nil {
		return 0, fmt.Errorf("failed to sum max position percent: %w", err)
	}
	return total.Float64, nil
}
