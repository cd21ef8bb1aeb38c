package engine

import (
	"context"
	"errors"
	"fmt"
	"time"

	"multicryptobot/src/audit"
	"multicryptobot/src/cex"
	"multicryptobot/src/executor"
	"multicryptobot/src/notify"
	"multicryptobot/src/risk"
	"multicryptobot/src/strategy"

	"github.com/shopspring/decimal"
	"github.com/xpwu/go-log/log"
)

// TradeRequest 交给信号处理器的下单请求
type TradeRequest struct {
	Ledger    *executor.Ledger
	OrderType executor.OrderType
	Price     decimal.Decimal
	Amount    decimal.Decimal // 卖出时忽略，总是卖出全部持仓
	Reason    string
	Strategy  string
}

// SignalHandler 信号处理器接口
type SignalHandler interface {
	// HandleSignal 执行下单并返回成交记录
	HandleSignal(ctx context.Context, req *TradeRequest) (*executor.OrderRecord, error)
}

// SignalHandlerRegistry 信号处理器注册表
type SignalHandlerRegistry struct {
	handlers map[strategy.Action]SignalHandler
}

// NewSignalHandlerRegistry 创建信号处理器注册表
func NewSignalHandlerRegistry() *SignalHandlerRegistry {
	return &SignalHandlerRegistry{
		handlers: make(map[strategy.Action]SignalHandler),
	}
}

// RegisterHandler 注册信号处理器
func (r *SignalHandlerRegistry) RegisterHandler(action strategy.Action, handler SignalHandler) {
	r.handlers[action] = handler
}

// HandleSignal 处理信号
func (r *SignalHandlerRegistry) HandleSignal(ctx context.Context, action strategy.Action, req *TradeRequest) (*executor.OrderRecord, error) {
	handler, exists := r.handlers[action]
	if !exists {
		return nil, fmt.Errorf("未知信号类型: %s", action)
	}
	return handler.HandleSignal(ctx, req)
}

// orderFlow 下单前后的公共步骤：关联ID、审计事件、风控计数、通知
type orderFlow struct {
	sink     audit.Sink
	gate     *risk.Gate
	notifier notify.Notifier
}

func (f *orderFlow) execute(ctx context.Context, req *TradeRequest,
	place func(ctx context.Context, order executor.Order) (*executor.OrderRecord, error)) (*executor.OrderRecord, error) {

	ctx, logger := log.WithCtx(ctx)
	symbol := req.Ledger.Pair().String()
	cid := audit.NewCorrelationID()

	attempt := audit.Event{
		Type:          audit.EventOrderAttempt,
		Category:      "trading",
		Symbol:        symbol,
		Strategy:      req.Strategy,
		Severity:      audit.SeverityInfo,
		Message:       fmt.Sprintf("%s order attempt", req.OrderType),
		Details:       map[string]interface{}{"reason": req.Reason, "paper": req.Ledger.IsPaper()},
		OrderType:     string(req.OrderType),
		OrderStatus:   "PENDING",
		Price:         decimal.NewNullDecimal(req.Price),
		CorrelationID: cid,
	}
	if req.Amount.IsPositive() {
		attempt.Amount = decimal.NewNullDecimal(req.Amount)
	}
	audit.Record(ctx, f.sink, attempt)

	record, err := place(ctx, executor.Order{
		Type:          req.OrderType,
		Price:         req.Price,
		Amount:        req.Amount,
		Reason:        req.Reason,
		Strategy:      req.Strategy,
		CorrelationID: cid,
	})
	if err != nil {
		logger.Error(fmt.Sprintf("%s %s 下单失败: %v", symbol, req.OrderType, err))
		audit.Record(ctx, f.sink, audit.Event{
			Type:          audit.EventOrderFailed,
			Category:      "trading",
			Symbol:        symbol,
			Strategy:      req.Strategy,
			Severity:      audit.SeverityError,
			Message:       err.Error(),
			OrderType:     string(req.OrderType),
			OrderStatus:   "FAILED",
			Price:         decimal.NewNullDecimal(req.Price),
			CorrelationID: cid,
			ErrorCode:     errorCode(err),
		})
		f.send(ctx, notify.ErrorMessage(err.Error(), fmt.Sprintf("%s %s", symbol, req.OrderType), time.Now()))
		return nil, err
	}

	details := map[string]interface{}{"cash": record.TotalValue.String(), "paper": record.PaperTrade}
	if record.Side == cex.OrderSideSell {
		details["realized_pnl"] = record.RealizedPnL.String()
	}
	audit.Record(ctx, f.sink, audit.Event{
		Type:          audit.EventOrderSuccess,
		Category:      "trading",
		Symbol:        symbol,
		Strategy:      req.Strategy,
		Severity:      audit.SeverityInfo,
		Message:       fmt.Sprintf("%s order filled", record.Type),
		Details:       details,
		OrderType:     string(record.Type),
		OrderStatus:   record.Status,
		Price:         decimal.NewNullDecimal(record.Price),
		Amount:        decimal.NewNullDecimal(record.Amount),
		OrderID:       record.OrderID,
		CorrelationID: cid,
		Timestamp:     record.ExecutedAt,
	})

	if f.gate != nil {
		f.gate.RecordTrade(symbol)
		if record.Side == cex.OrderSideSell {
			f.gate.RecordResult(symbol, record.RealizedPnL)
		}
	}

	trade := notify.Trade{
		Symbol:     symbol,
		OrderType:  string(record.Type),
		Strategy:   record.Strategy,
		Price:      record.Price,
		Amount:     record.Amount,
		Reason:     record.Reason,
		Cash:       req.Ledger.Cash(),
		Crypto:     req.Ledger.Crypto(),
		Paper:      record.PaperTrade,
		ExecutedAt: record.ExecutedAt,
	}
	if record.Side == cex.OrderSideSell {
		trade.PnL = decimal.NewNullDecimal(record.RealizedPnL)
	}
	f.send(ctx, notify.TradeMessage(trade))

	return record, nil
}

func (f *orderFlow) send(ctx context.Context, msg string) {
	if f.notifier == nil {
		return
	}
	if err := f.notifier.Send(ctx, msg); err != nil {
		_, logger := log.WithCtx(ctx)
		logger.Error("发送通知失败", "error", err)
	}
}

// errorCode 审计事件中的错误分类
func errorCode(err error) string {
	switch {
	case errors.Is(err, executor.ErrInsufficientBalance):
		return "INSUFFICIENT_BALANCE"
	case errors.Is(err, executor.ErrInvalidTransition):
		return "INVALID_TRANSITION"
	case errors.Is(err, cex.ErrGateway):
		return "GATEWAY"
	default:
		return "EXECUTION"
	}
}

// BuySignalHandler 买入信号处理器
type BuySignalHandler struct {
	flow *orderFlow
}

// NewBuySignalHandler 创建买入信号处理器
func NewBuySignalHandler(sink audit.Sink, gate *risk.Gate, notifier notify.Notifier) *BuySignalHandler {
	return &BuySignalHandler{flow: &orderFlow{sink: sink, gate: gate, notifier: notifier}}
}

// HandleSignal 处理买入信号
func (h *BuySignalHandler) HandleSignal(ctx context.Context, req *TradeRequest) (*executor.OrderRecord, error) {
	ctx, logger := log.WithCtx(ctx)
	logger.Info("处理买入信号",
		"symbol", req.Ledger.Pair().String(),
		"reason", req.Reason,
		"amount", req.Amount.String(),
		"price", req.Price.String())

	req.OrderType = executor.OrderTypeBuy
	return h.flow.execute(ctx, req, req.Ledger.Buy)
}

// SellSignalHandler 卖出信号处理器，止损止盈也走这里
type SellSignalHandler struct {
	flow *orderFlow
}

// NewSellSignalHandler 创建卖出信号处理器
func NewSellSignalHandler(sink audit.Sink, gate *risk.Gate, notifier notify.Notifier) *SellSignalHandler {
	return &SellSignalHandler{flow: &orderFlow{sink: sink, gate: gate, notifier: notifier}}
}

// HandleSignal 处理卖出信号
func (h *SellSignalHandler) HandleSignal(ctx context.Context, req *TradeRequest) (*executor.OrderRecord, error) {
	ctx, logger := log.WithCtx(ctx)
	logger.Info("处理卖出信号",
		"symbol", req.Ledger.Pair().String(),
		"type", string(req.OrderType),
		"reason", req.Reason,
		"price", req.Price.String())

	// 空仓直接拒绝，不产生下单审计
	if !req.Ledger.IsLong() {
		logger.Info("无持仓，跳过卖出")
		return nil, fmt.Errorf("%w: sell while %s on %s", executor.ErrInvalidTransition, req.Ledger.State(), req.Ledger.Pair())
	}
	if req.OrderType == "" || req.OrderType == executor.OrderTypeBuy {
		req.OrderType = executor.OrderTypeSell
	}
	return h.flow.execute(ctx, req, req.Ledger.Sell)
}
