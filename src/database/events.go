package database

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"multicryptobot/src/audit"
	"multicryptobot/src/strategy"
)

// Record 写入一条审计事件，实现 audit.Sink
func (p *PostgresDB) Record(ctx context.Context, e audit.Event) error {
	var details interface{}
	if len(e.Details) > 0 {
		raw, err := json.Marshal(e.Details)
		if err != nil {
			return fmt.Errorf("failed to marshal event details: %w", err)
		}
		details = string(raw)
	}

	_, err := p.db.ExecContext(ctx, `
		INSERT INTO event_log (
			event_type, event_category, symbol, strategy, severity, message, details,
			order_type, order_status, price, amount, order_id, correlation_id,
			error_code, event_timestamp
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)
	`, string(e.Type), e.Category, nullString(e.Symbol), nullString(e.Strategy), string(e.Severity),
		e.Message, details, nullString(e.OrderType), nullString(e.OrderStatus), e.Price, e.Amount,
		nullString(e.OrderID), nullString(e.CorrelationID), nullString(e.ErrorCode), e.Timestamp)
	if err != nil {
		return fmt.Errorf("failed to insert event: %w", err)
	}
	return nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

// EventFilter 事件查询条件，零值字段不参与过滤
type EventFilter struct {
	Types         []audit.EventType
	Symbol        string
	Severity      audit.Severity
	CorrelationID string
	Since         time.Time
	Limit         int
}

// ListEvents 按条件查询事件，按时间倒序
func (p *PostgresDB) ListEvents(ctx context.Context, f EventFilter) ([]audit.Event, error) {
	query := `
		SELECT event_type, event_category, symbol, strategy, severity, message, details,
		       order_type, order_status, price, amount, order_id, correlation_id,
		       error_code, event_timestamp
		FROM event_log
	`
	var where []string
	var args []interface{}

	if len(f.Types) > 0 {
		placeholders := make([]string, 0, len(f.Types))
		for _, t := range f.Types {
			args = append(args, string(t))
			placeholders = append(placeholders, fmt.Sprintf("$%d", len(args)))
		}
		where = append(where, "event_type IN ("+strings.Join(placeholders, ", ")+")")
	}
	if f.Symbol != "" {
		args = append(args, f.Symbol)
		where = append(where, fmt.Sprintf("symbol = $%d", len(args)))
	}
	if f.Severity != "" {
		args = append(args, string(f.Severity))
		where = append(where, fmt.Sprintf("severity = $%d", len(args)))
	}
	if f.CorrelationID != "" {
		args = append(args, f.CorrelationID)
		where = append(where, fmt.Sprintf("correlation_id = $%d", len(args)))
	}
	if !f.Since.IsZero() {
		args = append(args, f.Since)
		where = append(where, fmt.Sprintf("event_timestamp >= $%d", len(args)))
	}
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY event_timestamp DESC"

	limit := f.Limit
	if limit <= 0 {
		limit = 50
	}
	args = append(args, limit)
	query += fmt.Sprintf(" LIMIT $%d", len(args))

	rows, err := p.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query events: %w", err)
	}
	defer rows.Close()

	var events []audit.Event
	for rows.Next() {
		var e audit.Event
		var eventType, severity string
		var symbol, strategyName, orderType, orderStatus, orderID, correlationID, errorCode sql.NullString
		var details []byte
		err := rows.Scan(&eventType, &e.Category, &symbol, &strategyName, &severity, &e.Message, &details,
			&orderType, &orderStatus, &e.Price, &e.Amount, &orderID, &correlationID,
			&errorCode, &e.Timestamp)
		if err != nil {
			return nil, fmt.Errorf("failed to scan event: %w", err)
		}
		e.Type = audit.EventType(eventType)
		e.Severity = audit.Severity(severity)
		e.Symbol = symbol.String
		e.Strategy = strategyName.String
		e.OrderType = orderType.String
		e.OrderStatus = orderStatus.String
		e.OrderID = orderID.String
		e.CorrelationID = correlationID.String
		e.ErrorCode = errorCode.String
		if len(details) > 0 {
			_ = json.Unmarshal(details, &e.Details)
		}
		events = append(events, e)
	}

	return events, rows.Err()
}

// EventCount 按类型和级别汇总的事件数
type EventCount struct {
	Type     audit.EventType
	Severity audit.Severity
	Count    int
}

// EventStats 统计 since 之后的事件
func (p *PostgresDB) EventStats(ctx context.Context, since time.Time) ([]EventCount, error) {
	rows, err := p.db.QueryContext(ctx, `
		SELECT event_type, severity, COUNT(*)
		FROM event_log
		WHERE event_timestamp >= $1
		GROUP BY event_type, severity
		ORDER BY event_type, severity
	`, since)
	if err != nil {
		return nil, fmt.Errorf("failed to query event stats: %w", err)
	}
	defer rows.Close()

	var out []EventCount
	for rows.Next() {
		var c EventCount
		var eventType, severity string
		if err := rows.Scan(&eventType, &severity, &c.Count); err != nil {
			return nil, fmt.Errorf("failed to scan event stats: %w", err)
		}
		c.Type = audit.EventType(eventType)
		c.Severity = audit.Severity(severity)
		out = append(out, c)
	}
	return out, rows.Err()
}

// SaveSignal 记录策略信号
func (p *PostgresDB) SaveSignal(ctx context.Context, symbol string, sig strategy.Signal) error {
	indicators, err := json.Marshal(sig.Indicators)
	if err != nil {
		return fmt.Errorf("failed to marshal indicators: %w", err)
	}

	_, err = p.db.ExecContext(ctx, `
		INSERT INTO strategy_signals (
			symbol, strategy_name, signal_type, confidence, reason, indicators, signal_time
		) VALUES ($1, $2, $3, $4, $5, $6, $7)
	`, symbol, sig.StrategyID, string(sig.Action), sig.Confidence, sig.Reason, string(indicators), sig.Timestamp)
	if err != nil {
		return fmt.Errorf("failed to insert signal: %w", err)
	}
	return nil
}

// BotStatus bot_status 表的一行
type BotStatus struct {
	Name          string
	Status        string // RUNNING|STOPPED|ERROR
	OpenPositions int
	ErrorCount    int
	LastError     string
	LastHeartbeat time.Time
}

// UpdateBotStatus 写入心跳
func (p *PostgresDB) UpdateBotStatus(ctx context.Context, s BotStatus) error {
	_, err := p.db.ExecContext(ctx, `
		INSERT INTO bot_status (bot_name, status, open_positions, error_count, last_error, last_heartbeat)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (bot_name)
		DO UPDATE SET
			status = EXCLUDED.status,
			open_positions = EXCLUDED.open_positions,
			error_count = EXCLUDED.error_count,
			last_error = EXCLUDED.last_error,
			last_heartbeat = EXCLUDED.last_heartbeat
	`, s.Name, s.Status, s.OpenPositions, s.ErrorCount, nullString(s.LastError), s.LastHeartbeat)
	if err != nil {
		return fmt.Errorf("failed to update bot status: %w", err)
	}
	return nil
}
