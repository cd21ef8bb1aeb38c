package configsvc

import (
	"context"
	"fmt"

	"multicryptobot/src/database"

	"github.com/xpwu/go-log/log"
)

// 必须存在的系统配置
var RequiredSystemKeys = []string{
	"paper_trading",
	"check_interval",
	"max_concurrent_positions",
	"total_portfolio_balance",
}

// SystemConfig 读取一个系统配置，不存在或配置库不可用时返回def
func (s *Service) SystemConfig(ctx context.Context, key string, def interface{}) interface{} {
	v, err := s.cached(ctx, systemConfigKey(key), func(ctx context.Context) (interface{}, error) {
		row, err := s.store.GetSystemConfig(ctx, key)
		if err != nil || row == nil {
			return nil, err
		}
		return typedValue(ctx, row), nil
	})
	if err != nil {
		unavailable(ctx, "系统配置 "+key, err)
		return def
	}
	if v == nil {
		return def
	}
	return v
}

// Bool 读取布尔配置
func (s *Service) Bool(ctx context.Context, key string, def bool) bool {
	return asBool(s.SystemConfig(ctx, key, def), def)
}

// Float 读取数值配置
func (s *Service) Float(ctx context.Context, key string, def float64) float64 {
	return asFloat(s.SystemConfig(ctx, key, def), def)
}

// Int 读取整数配置
func (s *Service) Int(ctx context.Context, key string, def int) int {
	return asInt(s.SystemConfig(ctx, key, def), def)
}

// AllSystemConfig 全部系统配置
func (s *Service) AllSystemConfig(ctx context.Context) (map[string]interface{}, error) {
	all, err := s.loadSystemConfig(ctx)
	if err != nil {
		var snap Snapshot
		if s.fetchSnapshot(ctx, &snap) && snap.SystemConfig != nil {
			return snap.SystemConfig, nil
		}
		return nil, err
	}
	return all, nil
}

func (s *Service) loadSystemConfig(ctx context.Context) (map[string]interface{}, error) {
	v, err := s.cached(ctx, keySystemConfig, s.fetchSystemConfig)
	if err != nil {
		return nil, err
	}
	return v.(map[string]interface{}), nil
}

func (s *Service) fetchSystemConfig(ctx context.Context) (interface{}, error) {
	rows, err := s.store.ListSystemConfig(ctx)
	if err != nil {
		return nil, err
	}
	out := make(map[string]interface{}, len(rows))
	for i := range rows {
		out[rows[i].Key] = typedValue(ctx, &rows[i])
	}
	return out, nil
}

// SystemConfigRows 原始的系统配置行（CLI展示用），不经过缓存
func (s *Service) SystemConfigRows(ctx context.Context) ([]database.SystemConfigRow, error) {
	return s.store.ListSystemConfig(ctx)
}

func typedValue(ctx context.Context, row *database.SystemConfigRow) interface{} {
	v, err := ParseValue(row.Value, row.Type)
	if err != nil {
		_, logger := log.WithCtx(ctx)
		logger.PushPrefix("ConfigService")
		logger.Info(fmt.Sprintf("警告: 配置 %s 解析失败，按字符串处理: %v", row.Key, err))
	}
	return v
}

// SetSystemConfig 写入系统配置，先落库再删缓存
func (s *Service) SetSystemConfig(ctx context.Context, key string, value interface{}, typ, description, category string) error {
	ctx, logger := log.WithCtx(ctx)
	logger.PushPrefix("ConfigService")

	raw, typ, err := FormatValue(value, typ)
	if err != nil {
		return err
	}
	if category == "" {
		category = "general"
	}

	err = s.store.UpsertSystemConfig(ctx, database.SystemConfigRow{
		Key:         key,
		Value:       raw,
		Type:        typ,
		Description: description,
		Category:    category,
	})
	if err != nil {
		return fmt.Errorf("failed to set system config %s: %w", key, err)
	}

	s.invalidate(systemConfigKey(key), keySystemConfig, keyPortfolioSettings)
	logger.Info("系统配置已更新", "key", key, "value", raw, "type", typ)
	return nil
}

// PortfolioSettings 组合配置
type PortfolioSettings struct {
	TotalBalance              float64 `json:"total_balance"`
	MaxConcurrentPositions    int     `json:"max_concurrent_positions"`
	PaperTrading              bool    `json:"paper_trading"`
	CheckInterval             int     `json:"check_interval"`
	CorrelationCheckEnabled   bool    `json:"correlation_check_enabled"`
	EmergencyStopEnabled      bool    `json:"emergency_stop_enabled"`
	GlobalMaxDailyLossPercent float64 `json:"global_max_daily_loss_percent"`
	TotalAllocationPercent    float64 `json:"total_allocation_percent"`
	ActivePairsCount          int     `json:"active_pairs_count"`
}

// PortfolioSettings 汇总系统级配置和全部启用交易对的仓位占比
func (s *Service) PortfolioSettings(ctx context.Context) PortfolioSettings {
	if v, ok := s.cache.Get(keyPortfolioSettings); ok {
		return v.(PortfolioSettings)
	}
	return s.buildPortfolioSettings(ctx)
}

// buildPortfolioSettings 重新汇总，交易对读取成功时写入缓存
func (s *Service) buildPortfolioSettings(ctx context.Context) PortfolioSettings {
	pairs, err := s.LoadActivePairs(ctx)
	if err != nil {
		unavailable(ctx, "交易对", err)
	}
	total := 0.0
	for _, p := range pairs {
		total += p.MaxPositionPercent
	}

	settings := PortfolioSettings{
		TotalBalance:              s.Float(ctx, "total_portfolio_balance", 10000),
		MaxConcurrentPositions:    s.Int(ctx, "max_concurrent_positions", 3),
		PaperTrading:              s.Bool(ctx, "paper_trading", true),
		CheckInterval:             s.Int(ctx, "check_interval", 60),
		CorrelationCheckEnabled:   s.Bool(ctx, "correlation_check_enabled", true),
		EmergencyStopEnabled:      s.Bool(ctx, "emergency_stop_enabled", true),
		GlobalMaxDailyLossPercent: s.Float(ctx, "global_max_daily_loss_percent", 10),
		TotalAllocationPercent:    total,
		ActivePairsCount:          len(pairs),
	}
	if err == nil {
		s.cache.Set(keyPortfolioSettings, settings)
	}
	return settings
}
