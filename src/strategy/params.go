package strategy

import (
	"fmt"
	"math"
)

// SMAParams 均线交叉参数
type SMAParams struct {
	ShortPeriod int `json:"short_period"`
	LongPeriod  int `json:"long_period"`
}

// RSIParams RSI参数
type RSIParams struct {
	Period     int     `json:"period"`
	Oversold   float64 `json:"oversold"`
	Overbought float64 `json:"overbought"`
	Cooldown   int     `json:"cooldown"` // 发出信号后静默的计算次数
}

// BollingerParams 布林道均值回归参数
type BollingerParams struct {
	Period     int     `json:"period"`
	Multiplier float64 `json:"multiplier"`
}

// GetDefaultSMAParams 默认均线参数
func GetDefaultSMAParams() SMAParams {
	return SMAParams{ShortPeriod: 10, LongPeriod: 30}
}

// GetDefaultRSIParams 默认RSI参数
func GetDefaultRSIParams() RSIParams {
	return RSIParams{Period: 14, Oversold: 30, Overbought: 70, Cooldown: 5}
}

// GetDefaultBollingerParams 默认布林道参数
func GetDefaultBollingerParams() BollingerParams {
	return BollingerParams{Period: 20, Multiplier: 2.0}
}

// Validate 验证参数有效性
func (p SMAParams) Validate() error {
	if p.ShortPeriod <= 0 || p.LongPeriod <= 0 {
		return fmt.Errorf("periods must be positive, got short=%d long=%d", p.ShortPeriod, p.LongPeriod)
	}
	if p.ShortPeriod >= p.LongPeriod {
		return fmt.Errorf("short_period %d must be less than long_period %d", p.ShortPeriod, p.LongPeriod)
	}
	return nil
}

// Validate 验证参数有效性
func (p RSIParams) Validate() error {
	if p.Period <= 0 {
		return fmt.Errorf("period must be positive, got %d", p.Period)
	}
	if p.Oversold <= 0 || p.Overbought >= 100 || p.Oversold >= p.Overbought {
		return fmt.Errorf("thresholds must satisfy 0 < oversold < overbought < 100, got %v/%v", p.Oversold, p.Overbought)
	}
	if p.Cooldown < 0 {
		return fmt.Errorf("cooldown must be non-negative, got %d", p.Cooldown)
	}
	return nil
}

// Validate 验证参数有效性
func (p BollingerParams) Validate() error {
	if p.Period <= 1 {
		return fmt.Errorf("period must be greater than 1, got %d", p.Period)
	}
	if p.Multiplier <= 0 {
		return fmt.Errorf("multiplier must be positive, got %f", p.Multiplier)
	}
	return nil
}

// intParam 读取整数参数，JSON数字会以float64出现
func intParam(params map[string]interface{}, key string, def int) (int, error) {
	raw, ok := params[key]
	if !ok || raw == nil {
		return def, nil
	}
	switch v := raw.(type) {
	case int:
		return v, nil
	case int64:
		return int(v), nil
	case float64:
		if v != math.Trunc(v) {
			return 0, fmt.Errorf("%s must be an integer, got %v", key, v)
		}
		return int(v), nil
	default:
		return 0, fmt.Errorf("%s must be a number, got %T", key, raw)
	}
}

func floatParam(params map[string]interface{}, key string, def float64) (float64, error) {
	raw, ok := params[key]
	if !ok || raw == nil {
		return def, nil
	}
	switch v := raw.(type) {
	case int:
		return float64(v), nil
	case int64:
		return float64(v), nil
	case float64:
		return v, nil
	default:
		return 0, fmt.Errorf("%s must be a number, got %T", key, raw)
	}
}
