package strategy

import (
	"errors"
	"fmt"
	"time"

	"multicryptobot/src/cex"
)

// ErrDataValidation K线数据不合法
var ErrDataValidation = errors.New("invalid market data")

// Action 信号动作
type Action string

const (
	ActionBuy  Action = "BUY"
	ActionSell Action = "SELL"
	ActionHold Action = "HOLD"
)

// Type 策略类型标签
type Type string

const (
	TypeSMACrossover Type = "sma_crossover"
	TypeRSI          Type = "rsi"
	TypeBollinger    Type = "bollinger"
)

// Types 支持的策略类型
func Types() []Type {
	return []Type{TypeSMACrossover, TypeRSI, TypeBollinger}
}

const (
	// validateTail 校验最近多少根K线
	validateTail = 5
	// maxSignalHistory 每个策略保留的信号数
	maxSignalHistory = 100
)

// Signal 单个策略产生的信号
type Signal struct {
	StrategyID string             `json:"strategy_id"`
	Action     Action             `json:"action"`
	Reason     string             `json:"reason"`
	Confidence float64            `json:"confidence"` // 0-1
	Indicators map[string]float64 `json:"indicators"`
	Timestamp  time.Time          `json:"timestamp"`
}

// variant 策略变体的计算逻辑，集合是封闭的，由New按类型分派
type variant interface {
	minDataPoints() int
	calculate(candles []*cex.KlineData, closes []float64) (map[string]float64, error)
	shouldBuy(ind map[string]float64) (bool, string)
	shouldSell(ind map[string]float64) (bool, string)
	confidence(candles []*cex.KlineData, ind map[string]float64, action Action) float64
	params() map[string]interface{}
	status() map[string]interface{}
}

// Strategy 一个交易对上的策略实例
//
// 实例自己维护是否持仓的标记，不在持仓时才会发BUY，持仓时才会发SELL。
// 实例不是并发安全的，同一交易对的评估由引擎顺序调用。
type Strategy struct {
	id   string
	kind Type
	v    variant

	long    bool
	history []Signal
	counts  map[Action]int
	now     func() time.Time
}

// New 按类型标签创建策略，params来自配置库的parameters字段
func New(id string, kind Type, params map[string]interface{}) (*Strategy, error) {
	var v variant
	var err error

	switch kind {
	case TypeSMACrossover:
		v, err = newSMACrossover(params)
	case TypeRSI:
		v, err = newRSI(params)
	case TypeBollinger:
		v, err = newBollinger(params)
	default:
		return nil, fmt.Errorf("unknown strategy type: %s", kind)
	}
	if err != nil {
		return nil, fmt.Errorf("invalid %s parameters: %w", kind, err)
	}

	if id == "" {
		id = string(kind)
	}
	return &Strategy{
		id:     id,
		kind:   kind,
		v:      v,
		counts: make(map[Action]int),
		now:    time.Now,
	}, nil
}

// ID 策略标识
func (s *Strategy) ID() string { return s.id }

// Type 策略类型
func (s *Strategy) Type() Type { return s.kind }

// IsLong 策略认为自己是否持仓
func (s *Strategy) IsLong() bool { return s.long }

// SetPosition 订单成交后由引擎同步持仓标记
func (s *Strategy) SetPosition(long bool) { s.long = long }

// Params 当前生效的参数
func (s *Strategy) Params() map[string]interface{} { return s.v.params() }

// Evaluate 根据升序K线序列生成信号
//
// 数据不足、数据不合法或指标计算失败时返回HOLD，置信度为0。
func (s *Strategy) Evaluate(candles []*cex.KlineData) Signal {
	sig := Signal{
		StrategyID: s.id,
		Action:     ActionHold,
		Indicators: map[string]float64{},
		Timestamp:  s.now(),
	}

	if need := s.v.minDataPoints(); len(candles) < need {
		sig.Reason = fmt.Sprintf("insufficient data (have %d, need %d)", len(candles), need)
		return s.record(sig)
	}
	if err := ValidateCandles(candles); err != nil {
		sig.Reason = err.Error()
		return s.record(sig)
	}

	ind, err := s.v.calculate(candles, Closes(candles))
	if err != nil {
		sig.Reason = fmt.Sprintf("indicator error: %v", err)
		return s.record(sig)
	}
	sig.Indicators = ind

	if !s.long {
		ok, reason := s.v.shouldBuy(ind)
		sig.Reason = reason
		if ok {
			sig.Action = ActionBuy
		}
	} else {
		ok, reason := s.v.shouldSell(ind)
		sig.Reason = reason
		if ok {
			sig.Action = ActionSell
		}
	}

	if sig.Action != ActionHold {
		sig.Confidence = clamp(s.v.confidence(candles, ind, sig.Action))
	}
	return s.record(sig)
}

func (s *Strategy) record(sig Signal) Signal {
	s.history = append(s.history, sig)
	if len(s.history) > maxSignalHistory {
		s.history = s.history[len(s.history)-maxSignalHistory:]
	}
	s.counts[sig.Action]++
	return sig
}

// RecentSignals 最近n个信号，按时间升序
func (s *Strategy) RecentSignals(n int) []Signal {
	if n <= 0 || n > len(s.history) {
		n = len(s.history)
	}
	out := make([]Signal, n)
	copy(out, s.history[len(s.history)-n:])
	return out
}

// Status 诊断信息
func (s *Strategy) Status() map[string]interface{} {
	status := map[string]interface{}{
		"id":            s.id,
		"type":          string(s.kind),
		"position":      "FLAT",
		"total_signals": len(s.history),
		"buy_signals":   s.counts[ActionBuy],
		"sell_signals":  s.counts[ActionSell],
		"hold_signals":  s.counts[ActionHold],
		"parameters":    s.v.params(),
	}
	if s.long {
		status["position"] = "LONG"
	}
	for k, v := range s.v.status() {
		status[k] = v
	}
	return status
}

// ValidateCandles 校验最近5根K线，OHLCV必须为正
func ValidateCandles(candles []*cex.KlineData) error {
	if len(candles) == 0 {
		return fmt.Errorf("%w: no candles", ErrDataValidation)
	}
	start := len(candles) - validateTail
	if start < 0 {
		start = 0
	}
	for i := start; i < len(candles); i++ {
		c := candles[i]
		if c == nil {
			return fmt.Errorf("%w: candle %d missing", ErrDataValidation, i)
		}
		if !c.Open.IsPositive() || !c.High.IsPositive() || !c.Low.IsPositive() ||
			!c.Close.IsPositive() || !c.Volume.IsPositive() {
			return fmt.Errorf("%w: candle %d at %s has non-positive field", ErrDataValidation, i, c.OpenTime.Format(time.RFC3339))
		}
	}
	return nil
}

// Closes 提取收盘价序列
func Closes(candles []*cex.KlineData) []float64 {
	out := make([]float64, len(candles))
	for i, c := range candles {
		out[i] = c.Close.InexactFloat64()
	}
	return out
}

func clamp(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
