package audit

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/xpwu/go-log/log"
)

// EventType 事件类型
type EventType string

const (
	EventOrderAttempt EventType = "ORDER_ATTEMPT"
	EventOrderSuccess EventType = "ORDER_SUCCESS"
	EventOrderFailed  EventType = "ORDER_FAILED"
	EventError        EventType = "ERROR"
	EventSignal       EventType = "SIGNAL"
	EventSystem       EventType = "SYSTEM"
)

// Severity 事件级别
type Severity string

const (
	SeverityInfo    Severity = "INFO"
	SeverityWarning Severity = "WARNING"
	SeverityError   Severity = "ERROR"
)

// Event 只追加的审计事件，CorrelationID 把一次下单尝试和它的结果关联起来
type Event struct {
	Type          EventType              `json:"event_type"`
	Category      string                 `json:"event_category"`
	Symbol        string                 `json:"symbol,omitempty"`
	Strategy      string                 `json:"strategy_name,omitempty"`
	Severity      Severity               `json:"severity"`
	Message       string                 `json:"message"`
	Details       map[string]interface{} `json:"details,omitempty"`
	OrderType     string                 `json:"order_type,omitempty"`
	OrderStatus   string                 `json:"order_status,omitempty"`
	Price         decimal.NullDecimal    `json:"price"`
	Amount        decimal.NullDecimal    `json:"amount"`
	OrderID       string                 `json:"order_id,omitempty"`
	CorrelationID string                 `json:"correlation_id,omitempty"`
	ErrorCode     string                 `json:"error_code,omitempty"`
	Timestamp     time.Time              `json:"timestamp"`
}

// Sink 审计事件落地
type Sink interface {
	Record(ctx context.Context, event Event) error
}

// NewCorrelationID 每次下单尝试一个
func NewCorrelationID() string {
	return uuid.NewString()
}

// LogSink 没有数据库时把事件写进日志
type LogSink struct{}

// Record 写一行日志
func (LogSink) Record(ctx context.Context, event Event) error {
	_, logger := log.WithCtx(ctx)
	logger.PushPrefix("Audit")

	line := fmt.Sprintf("[%s] %s %s: %s", event.Severity, event.Type, event.Symbol, event.Message)
	if event.CorrelationID != "" {
		line += " correlation_id=" + event.CorrelationID
	}
	if len(event.Details) > 0 {
		if raw, err := json.Marshal(event.Details); err == nil {
			line += " details=" + string(raw)
		}
	}

	if event.Severity == SeverityError {
		logger.Error(line)
	} else {
		logger.Info(line)
	}
	return nil
}

// Record 写入失败只记日志，调用方不因审计失败中断
func Record(ctx context.Context, sink Sink, event Event) {
	if sink == nil {
		return
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}
	if event.Severity == "" {
		event.Severity = SeverityInfo
	}
	if err := sink.Record(ctx, event); err != nil {
		_, logger := log.WithCtx(ctx)
		logger.PushPrefix("Audit")
		logger.Error(fmt.Sprintf("记录审计事件失败 %s %s: %v", event.Type, event.Symbol, err))
	}
}

// Multi 依次写入多个 Sink，返回第一个错误
type Multi []Sink

// Record 写入全部
func (m Multi) Record(ctx context.Context, event Event) error {
	var first error
	for _, s := range m {
		if err := s.Record(ctx, event); err != nil && first == nil {
			first = err
		}
	}
	return first
}
