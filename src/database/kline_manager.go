package database

import (
	"context"
	"sort"
	"time"

	"multicryptobot/src/cex"
	"multicryptobot/src/timeframes"

	"github.com/shopspring/decimal"
	"github.com/xpwu/go-log/log"
)

// klineStore K线持久化
type klineStore interface {
	SaveMarketData(ctx context.Context, timeframe string, klines []*cex.KlineData) error
	GetMarketData(ctx context.Context, pair cex.TradingPair, timeframe string, limit int) ([]*cex.KlineData, error)
}

// KlineManager K线数据管理器
//
// 实现 cex.MarketData：数据库里的数据覆盖当前周期时直接返回，
// 否则从交易所补充并落库；交易所失败时退回数据库中已有的数据。
type KlineManager struct {
	store    klineStore
	upstream cex.MarketData
	now      func() time.Time
}

// NewKlineManager 创建K线数据管理器
func NewKlineManager(store klineStore, upstream cex.MarketData) *KlineManager {
	return &KlineManager{
		store:    store,
		upstream: upstream,
		now:      time.Now,
	}
}

// CurrentPrice 最新价总是来自交易所
func (km *KlineManager) CurrentPrice(ctx context.Context, pair cex.TradingPair) (decimal.Decimal, error) {
	return km.upstream.CurrentPrice(ctx, pair)
}

// GetKlines 智能获取K线数据（优先数据库，缺失时从网络补充）
func (km *KlineManager) GetKlines(ctx context.Context, pair cex.TradingPair, interval string, limit int) ([]*cex.KlineData, error) {
	ctx, logger := log.WithCtx(ctx)
	logger.PushPrefix("KlineManager")

	logger.Debug("尝试从数据库获取K线数据", "symbol", pair.String(), "timeframe", interval, "limit", limit)

	dbKlines, err := km.store.GetMarketData(ctx, pair, interval, limit)
	if err != nil {
		logger.Error("从数据库获取K线数据失败", "error", err)
		dbKlines = nil
	}

	if len(dbKlines) >= limit && km.covers(dbKlines, interval) {
		logger.Debug("数据库数据充足", "count", len(dbKlines), "required", limit)
		return dbKlines, nil
	}

	logger.Debug("数据库数据不足，从网络补充", "db_count", len(dbKlines), "required", limit)

	networkKlines, err := km.upstream.GetKlines(ctx, pair, interval, limit)
	if err != nil {
		if len(dbKlines) == 0 {
			return nil, err
		}
		logger.Error("从网络获取K线数据失败，使用数据库数据", "error", err, "count", len(dbKlines))
		return dbKlines, nil
	}

	if len(networkKlines) > 0 {
		if err := km.store.SaveMarketData(ctx, interval, networkKlines); err != nil {
			logger.Error("保存K线数据到数据库失败", "error", err)
		}
	}

	all := MergeKlines(dbKlines, networkKlines)
	if len(all) > limit {
		return all[len(all)-limit:], nil
	}
	return all, nil
}

// covers 最新一根K线是否就是当前周期
func (km *KlineManager) covers(klines []*cex.KlineData, interval string) bool {
	tf, err := timeframes.Parse(interval)
	if err != nil || len(klines) == 0 {
		return false
	}
	last := klines[len(klines)-1].OpenTime
	return km.now().Sub(last) < tf.Duration()
}

// MergeKlines 合并K线数据，按开盘时间去重（后者覆盖前者）并升序排列
func MergeKlines(older, newer []*cex.KlineData) []*cex.KlineData {
	byTime := make(map[int64]*cex.KlineData, len(older)+len(newer))
	for _, k := range older {
		byTime[k.OpenTime.UnixMilli()] = k
	}
	for _, k := range newer {
		byTime[k.OpenTime.UnixMilli()] = k
	}

	result := make([]*cex.KlineData, 0, len(byTime))
	for _, k := range byTime {
		result = append(result, k)
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].OpenTime.Before(result[j].OpenTime)
	})
	return result
}
