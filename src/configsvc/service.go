package configsvc

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"multicryptobot/src/configcache"
	"multicryptobot/src/database"

	"github.com/xpwu/go-log/log"
)

// ErrConfigUnavailable 配置库不可达且缓存中没有可用值
var ErrConfigUnavailable = errors.New("config store unavailable")

const (
	// DefaultWarmInterval 自动预热间隔
	DefaultWarmInterval = 3600 * time.Second
	// DefaultWarmCheck 自动预热检查周期
	DefaultWarmCheck = 60 * time.Second
)

// 缓存键
const (
	keySystemConfig      = "system_config"
	keyTradingPairs      = "trading_pairs"
	keyPortfolioSettings = "portfolio_settings"
)

func systemConfigKey(key string) string     { return "system_config:" + key }
func pairConfigKey(symbol string) string     { return "pair_config:" + symbol }
func pairStrategiesKey(symbol string) string { return "pair_strategies:" + symbol }
func pairRiskKey(symbol string) string       { return "pair_risk:" + symbol }

func strategyConfigKey(symbol, name string) string {
	return "strategy_config:" + symbol + ":" + name
}

// Store 配置库
type Store interface {
	GetSystemConfig(ctx context.Context, key string) (*database.SystemConfigRow, error)
	ListSystemConfig(ctx context.Context) ([]database.SystemConfigRow, error)
	UpsertSystemConfig(ctx context.Context, row database.SystemConfigRow) error

	ListActivePairs(ctx context.Context) ([]database.TradingPairRow, error)
	GetTradingPair(ctx context.Context, symbol string) (*database.TradingPairRow, error)
	UpsertTradingPair(ctx context.Context, row database.TradingPairRow) error

	ListPairStrategies(ctx context.Context, symbol string) ([]database.StrategyConfigRow, error)
	UpsertStrategyConfig(ctx context.Context, row database.StrategyConfigRow) error
	UpdateStrategyConfig(ctx context.Context, symbol, name string, update database.StrategyUpdate) error

	GetRiskConfig(ctx context.Context, symbol string) (*database.RiskConfigRow, error)
	UpsertRiskConfig(ctx context.Context, row database.RiskConfigRow) error
	UpdateRiskConfig(ctx context.Context, symbol string, fields map[string]interface{}) error
}

// Mirror 预热快照的外部副本
type Mirror interface {
	Publish(ctx context.Context, key string, value interface{}) error
	Fetch(ctx context.Context, key string, out interface{}) (bool, error)
}

// Service 带缓存的配置服务，进程启动时创建一次，传给需要它的组件
type Service struct {
	store  Store
	cache  *configcache.Cache
	mirror Mirror

	warmInterval time.Duration
	warmCheck    time.Duration

	mu       sync.Mutex
	lastWarm time.Time
	now      func() time.Time
}

// New 创建配置服务
func New(store Store, cache *configcache.Cache) *Service {
	if cache == nil {
		cache = configcache.New(configcache.DefaultTTL)
	}
	return &Service{
		store:        store,
		cache:        cache,
		warmInterval: DefaultWarmInterval,
		warmCheck:    DefaultWarmCheck,
		now:          time.Now,
	}
}

// SetMirror 设置快照副本，nil 表示不使用
func (s *Service) SetMirror(m Mirror) {
	s.mirror = m
}

// SetWarmSchedule 设置预热间隔和检查周期，非正数保持默认
func (s *Service) SetWarmSchedule(interval, check time.Duration) {
	if interval > 0 {
		s.warmInterval = interval
	}
	if check > 0 {
		s.warmCheck = check
	}
}

// Cache 底层缓存
func (s *Service) Cache() *configcache.Cache {
	return s.cache
}

// cached 先查缓存，未命中时从配置库加载并写回缓存
//
// 加载在锁外进行，缓存自身的锁只覆盖map访问。
func (s *Service) cached(ctx context.Context, key string, load func(ctx context.Context) (interface{}, error)) (interface{}, error) {
	if v, ok := s.cache.Get(key); ok {
		return v, nil
	}

	v, err := load(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrConfigUnavailable, key, err)
	}
	if v != nil {
		s.cache.Set(key, v)
	}
	return v, nil
}

// refresh 绕过缓存直接从配置库加载，成功后才覆盖缓存；失败时旧值保留
func (s *Service) refresh(ctx context.Context, key string, load func(ctx context.Context) (interface{}, error)) (interface{}, error) {
	v, err := load(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrConfigUnavailable, key, err)
	}
	if v != nil {
		s.cache.Set(key, v)
	} else {
		s.cache.Delete(key)
	}
	return v, nil
}

// invalidate 删除写入涉及的缓存键
func (s *Service) invalidate(keys ...string) {
	for _, k := range keys {
		s.cache.Delete(k)
	}
}

// unavailable 读路径上配置库不可用时记录日志，调用方使用默认值
func unavailable(ctx context.Context, what string, err error) {
	_, logger := log.WithCtx(ctx)
	logger.PushPrefix("ConfigService")
	logger.Error(fmt.Sprintf("读取%s失败，使用默认值: %v", what, err))
}

// ClearCache 清空缓存
func (s *Service) ClearCache() {
	s.cache.Clear()
}

// CacheStats 缓存统计
func (s *Service) CacheStats() configcache.Stats {
	return s.cache.Stats()
}
