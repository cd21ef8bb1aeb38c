package timeframes

import (
	"fmt"
	"time"
)

// Timeframe K线周期
type Timeframe string

const (
	Timeframe1m  Timeframe = "1m"
	Timeframe5m  Timeframe = "5m"
	Timeframe15m Timeframe = "15m"
	Timeframe30m Timeframe = "30m"
	Timeframe1h  Timeframe = "1h"
	Timeframe4h  Timeframe = "4h"
	Timeframe1d  Timeframe = "1d"
)

var durations = map[Timeframe]time.Duration{
	Timeframe1m:  time.Minute,
	Timeframe5m:  5 * time.Minute,
	Timeframe15m: 15 * time.Minute,
	Timeframe30m: 30 * time.Minute,
	Timeframe1h:  time.Hour,
	Timeframe4h:  4 * time.Hour,
	Timeframe1d:  24 * time.Hour,
}

// All 按从短到长返回支持的周期
func All() []Timeframe {
	return []Timeframe{Timeframe1m, Timeframe5m, Timeframe15m, Timeframe30m, Timeframe1h, Timeframe4h, Timeframe1d}
}

// Parse 解析周期字符串
func Parse(s string) (Timeframe, error) {
	tf := Timeframe(s)
	if _, ok := durations[tf]; !ok {
		return "", fmt.Errorf("unsupported timeframe: %s", s)
	}
	return tf, nil
}

// String 返回字符串表示
func (tf Timeframe) String() string {
	return string(tf)
}

// Duration 单根K线的时长，未知周期返回0
func (tf Timeframe) Duration() time.Duration {
	return durations[tf]
}

// Interval 交易所API使用的周期参数
func (tf Timeframe) Interval() string {
	return string(tf)
}

// IsStale 最新K线落后超过两个周期视为行情停滞
func (tf Timeframe) IsStale(lastOpen, now time.Time) bool {
	d := tf.Duration()
	if d == 0 || lastOpen.IsZero() {
		return false
	}
	return now.Sub(lastOpen) > 2*d
}
