package config

import (
	"fmt"
	"time"

	"multicryptobot/src/timeframes"

	"github.com/xpwu/go-config/configs"
)

// Config 进程级配置，交易对、策略、风控等运行配置在配置库中
type Config struct {
	Engine        EngineConfig `conf:"engine,交易引擎配置"`
	Cache         CacheConfig  `conf:"cache,配置缓存"`
	Exchange      string       `conf:"exchange,交易所 - 目前支持binance"`
	EnableTrading bool         `conf:"enable_trading,允许实盘下单 - 关闭时即使paper_trading=false也只做模拟盘"`
	NotifyQueue   int          `conf:"notify_queue,异步通知队列长度 - 满了丢弃"`
}

// EngineConfig 交易引擎配置
type EngineConfig struct {
	Name                string `conf:"name,运行状态表中的名称"`
	Timeframe           string `conf:"timeframe,K线周期 - 支持1m,3m,5m,15m,30m,1h,2h,4h,6h,8h,12h,1d,3d,1w,1M"`
	CandleLimit         int    `conf:"candle_limit,每轮获取的K线数 - 最大1000"`
	WindowSize          int    `conf:"window_size,每个交易对保留的K线数"`
	DefaultIntervalSecs int    `conf:"default_interval_secs,check_interval缺失时的轮询间隔(秒)"`
	ErrorBackoffSecs    int    `conf:"error_backoff_secs,一轮失败后的等待时间(秒)"`
}

// CacheConfig 配置缓存
type CacheConfig struct {
	TTLSecs          int `conf:"ttl_secs,缓存默认有效期(秒)"`
	WarmIntervalSecs int `conf:"warm_interval_secs,自动预热间隔(秒)"`
	WarmCheckSecs    int `conf:"warm_check_secs,自动预热检查周期(秒)"`
}

// AppConfig 全局配置实例
var AppConfig = &Config{
	Engine: EngineConfig{
		Name:                "multi-crypto-bot",
		Timeframe:           "1h",
		CandleLimit:         100,
		WindowSize:          200,
		DefaultIntervalSecs: 60,
		ErrorBackoffSecs:    30,
	},
	Cache: CacheConfig{
		TTLSecs:          300,
		WarmIntervalSecs: 3600,
		WarmCheckSecs:    60,
	},
	Exchange:      "binance",
	EnableTrading: false,
	NotifyQueue:   100,
}

// 在包的 init() 函数中注册配置
func init() {
	configs.Unmarshal(AppConfig)
}

// Validate 验证配置
func (c *Config) Validate() error {
	if _, err := timeframes.Parse(c.Engine.Timeframe); err != nil {
		return fmt.Errorf("invalid timeframe: %w", err)
	}

	if c.Engine.CandleLimit <= 0 || c.Engine.CandleLimit > 1000 {
		return fmt.Errorf("candle limit must be between 1 and 1000, got %d", c.Engine.CandleLimit)
	}
	if c.Engine.WindowSize < c.Engine.CandleLimit {
		return fmt.Errorf("window size %d must not be smaller than candle limit %d", c.Engine.WindowSize, c.Engine.CandleLimit)
	}
	if c.Engine.DefaultIntervalSecs <= 0 {
		return fmt.Errorf("default interval must be positive")
	}
	if c.Engine.ErrorBackoffSecs <= 0 {
		return fmt.Errorf("error backoff must be positive")
	}

	if c.Cache.TTLSecs <= 0 {
		return fmt.Errorf("cache ttl must be positive")
	}
	if c.Cache.WarmCheckSecs <= 0 || c.Cache.WarmIntervalSecs < c.Cache.WarmCheckSecs {
		return fmt.Errorf("warm interval %ds must be at least the check period %ds",
			c.Cache.WarmIntervalSecs, c.Cache.WarmCheckSecs)
	}

	if c.Exchange == "" {
		return fmt.Errorf("exchange cannot be empty")
	}
	if c.NotifyQueue <= 0 {
		return fmt.Errorf("notify queue must be positive")
	}
	return nil
}

// DefaultInterval check_interval 缺失时的轮询间隔
func (c *Config) DefaultInterval() time.Duration {
	return time.Duration(c.Engine.DefaultIntervalSecs) * time.Second
}

// ErrorBackoff 一轮失败后的等待时间
func (c *Config) ErrorBackoff() time.Duration {
	return time.Duration(c.Engine.ErrorBackoffSecs) * time.Second
}

// CacheTTL 缓存默认有效期
func (c *Config) CacheTTL() time.Duration {
	return time.Duration(c.Cache.TTLSecs) * time.Second
}

// WarmInterval 自动预热间隔
func (c *Config) WarmInterval() time.Duration {
	return time.Duration(c.Cache.WarmIntervalSecs) * time.Second
}

// WarmCheck 自动预热检查周期
func (c *Config) WarmCheck() time.Duration {
	return time.Duration(c.Cache.WarmCheckSecs) * time.Second
}
