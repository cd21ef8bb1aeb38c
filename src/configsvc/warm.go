package configsvc

import (
	"context"
	"fmt"
	"time"

	"multicryptobot/src/database"

	"github.com/xpwu/go-log/log"
)

// snapshotKey 快照在 Mirror 中的键
const snapshotKey = "config_snapshot"

// WarmResult 一次预热加载的条目数
type WarmResult struct {
	SystemConfig int           `json:"system_config"`
	TradingPairs int           `json:"trading_pairs"`
	Strategies   int           `json:"strategies"`
	RiskConfigs  int           `json:"risk_configs"`
	Duration     time.Duration `json:"duration"`
}

// Snapshot 预热后发布到 Mirror 的完整配置
type Snapshot struct {
	SystemConfig map[string]interface{}                  `json:"system_config"`
	Pairs        []database.TradingPairRow               `json:"pairs"`
	Strategies   map[string][]database.StrategyConfigRow `json:"strategies"`
	Risk         map[string]database.RiskConfigRow       `json:"risk"`
	WarmedAt     time.Time                               `json:"warmed_at"`
}

// WarmCache 把热点配置重新加载进缓存
//
// 每个键都是读成功后才覆盖，配置库不可用时缓存保持原值。单个交易对失败只记日志。
func (s *Service) WarmCache(ctx context.Context) (WarmResult, error) {
	ctx, logger := log.WithCtx(ctx)
	logger.PushPrefix("ConfigService")

	start := s.now()
	var result WarmResult

	v, err := s.refresh(ctx, keySystemConfig, s.fetchSystemConfig)
	if err != nil {
		return result, fmt.Errorf("failed to warm system config: %w", err)
	}
	system := v.(map[string]interface{})
	result.SystemConfig = len(system)
	for k, v := range system {
		s.cache.Set(systemConfigKey(k), v)
	}

	pairs, err := pairRows(s.refresh(ctx, keyTradingPairs, s.fetchPairs))
	if err != nil {
		return result, fmt.Errorf("failed to warm trading pairs: %w", err)
	}
	result.TradingPairs = len(pairs)

	snap := Snapshot{
		SystemConfig: system,
		Pairs:        pairs,
		Strategies:   make(map[string][]database.StrategyConfigRow, len(pairs)),
		Risk:         make(map[string]database.RiskConfigRow, len(pairs)),
	}

	for _, p := range pairs {
		s.cache.Set(pairConfigKey(p.Symbol), p)
		strategies, err := strategyRows(s.refresh(ctx, pairStrategiesKey(p.Symbol), s.fetchStrategies(p.Symbol)))
		if err != nil {
			logger.Error("预热策略配置失败", "symbol", p.Symbol, "error", err)
		} else {
			result.Strategies += len(strategies)
			snap.Strategies[p.Symbol] = strategies
			for _, st := range strategies {
				s.cache.Set(strategyConfigKey(p.Symbol, st.Name), st)
			}
		}

		rc, err := riskRow(s.refresh(ctx, pairRiskKey(p.Symbol), s.fetchRisk(p.Symbol)))
		if err != nil {
			logger.Error("预热风控配置失败", "symbol", p.Symbol, "error", err)
		} else if rc != nil {
			result.RiskConfigs++
			snap.Risk[p.Symbol] = *rc
		}
	}

	s.buildPortfolioSettings(ctx)

	s.mu.Lock()
	s.lastWarm = s.now()
	s.mu.Unlock()
	snap.WarmedAt = s.lastWarm
	result.Duration = s.now().Sub(start)

	logger.Info("配置缓存预热完成",
		"system_config", result.SystemConfig,
		"trading_pairs", result.TradingPairs,
		"strategies", result.Strategies,
		"risk_configs", result.RiskConfigs)

	if s.mirror != nil {
		if err := s.mirror.Publish(ctx, snapshotKey, snap); err != nil {
			logger.Error("发布配置快照失败", "error", err)
		}
	}

	return result, nil
}

// LastWarm 最近一次成功预热的时间
func (s *Service) LastWarm() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastWarm
}

// warmDue 距上次预热是否已超过间隔
func (s *Service) warmDue() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastWarm.IsZero() || s.now().Sub(s.lastWarm) >= s.warmInterval
}

// StartAutoWarm 后台定期预热，ctx 取消后退出；返回的 channel 在退出时关闭
func (s *Service) StartAutoWarm(ctx context.Context) <-chan struct{} {
	done := make(chan struct{})

	go func() {
		defer close(done)
		ctx, logger := log.WithCtx(ctx)
		logger.PushPrefix("AutoWarm")
		logger.Info("自动预热已启动", "interval", s.warmInterval.String(), "check", s.warmCheck.String())

		ticker := time.NewTicker(s.warmCheck)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				logger.Info("自动预热已停止")
				return
			case <-ticker.C:
				if !s.warmDue() {
					continue
				}
				if _, err := s.WarmCache(ctx); err != nil {
					logger.Error("自动预热失败，下个周期重试", "error", err)
				}
			}
		}
	}()

	return done
}

// fetchSnapshot 从 Mirror 读取最近一次预热快照
func (s *Service) fetchSnapshot(ctx context.Context, out *Snapshot) bool {
	if s.mirror == nil {
		return false
	}
	ctx, logger := log.WithCtx(ctx)
	logger.PushPrefix("ConfigService")

	ok, err := s.mirror.Fetch(ctx, snapshotKey, out)
	if err != nil {
		logger.Error("读取配置快照失败", "error", err)
		return false
	}
	if ok {
		logger.Info("警告: 配置库不可用，使用快照", "warmed_at", out.WarmedAt.Format(time.RFC3339))
	}
	return ok
}
