package aggregator

import (
	"fmt"
	"sort"
	"strings"

	"multicryptobot/src/strategy"
)

// DecisionThreshold 加权得分的最低阈值
const DecisionThreshold = 0.5

// Decision 一个交易对聚合后的决策
type Decision struct {
	Action     strategy.Action    `json:"action"`
	BuyScore   float64            `json:"buy_score"`
	SellScore  float64            `json:"sell_score"`
	Reason     string             `json:"reason"`
	Indicators map[string]float64 `json:"indicators"` // 以 "策略ID.指标名" 命名
	Signals    []strategy.Signal  `json:"signals"`
}

// Aggregate 对各策略最新信号加权投票
//
// weights 为已归一化的权重，缺失的策略按0计。long 表示该交易对当前是否持仓：
// 只有空仓才会BUY，只有持仓才会SELL，得分相同一律HOLD。
func Aggregate(signals []strategy.Signal, weights map[string]float64, long bool) Decision {
	d := Decision{
		Action:     strategy.ActionHold,
		Indicators: make(map[string]float64),
		Signals:    signals,
	}

	var buyers, sellers []string
	for _, sig := range signals {
		w := weights[sig.StrategyID]
		switch sig.Action {
		case strategy.ActionBuy:
			d.BuyScore += w
			buyers = append(buyers, sig.StrategyID)
		case strategy.ActionSell:
			d.SellScore += w
			sellers = append(sellers, sig.StrategyID)
		}
		for k, v := range sig.Indicators {
			d.Indicators[sig.StrategyID+"."+k] = v
		}
	}

	switch {
	case d.BuyScore > d.SellScore && d.BuyScore >= DecisionThreshold:
		if long {
			d.Reason = fmt.Sprintf("buy score %.2f blocked: already long", d.BuyScore)
			return d
		}
		d.Action = strategy.ActionBuy
		d.Reason = fmt.Sprintf("buy score %.2f from %s", d.BuyScore, join(buyers))
	case d.SellScore > d.BuyScore && d.SellScore >= DecisionThreshold:
		if !long {
			d.Reason = fmt.Sprintf("sell score %.2f blocked: no position", d.SellScore)
			return d
		}
		d.Action = strategy.ActionSell
		d.Reason = fmt.Sprintf("sell score %.2f from %s", d.SellScore, join(sellers))
	default:
		d.Reason = fmt.Sprintf("no consensus (buy %.2f, sell %.2f)", d.BuyScore, d.SellScore)
	}
	return d
}

func join(ids []string) string {
	sorted := append([]string(nil), ids...)
	sort.Strings(sorted)
	return strings.Join(sorted, ",")
}
