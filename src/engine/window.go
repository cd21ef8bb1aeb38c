package engine

import (
	"multicryptobot/src/cex"
	"multicryptobot/src/database"
)

// DefaultWindowSize 每个交易对保留的K线数
const DefaultWindowSize = 200

// CandleWindow 交易对的滚动K线窗口，按开盘时间升序、去重
type CandleWindow struct {
	size    int
	candles []*cex.KlineData
}

// NewCandleWindow 创建窗口，size<=0时使用DefaultWindowSize
func NewCandleWindow(size int) *CandleWindow {
	if size <= 0 {
		size = DefaultWindowSize
	}
	return &CandleWindow{size: size}
}

// Merge 合并新K线，相同开盘时间以新数据为准，返回新增的根数
func (w *CandleWindow) Merge(klines []*cex.KlineData) int {
	before := len(w.candles)
	merged := database.MergeKlines(w.candles, klines)
	added := len(merged) - before

	if len(merged) > w.size {
		merged = merged[len(merged)-w.size:]
	}
	w.candles = merged
	return added
}

// Candles 窗口内容的副本
func (w *CandleWindow) Candles() []*cex.KlineData {
	return append([]*cex.KlineData(nil), w.candles...)
}

// Len K线数
func (w *CandleWindow) Len() int {
	return len(w.candles)
}

// Latest 最新一根K线，窗口为空时返回nil
func (w *CandleWindow) Latest() *cex.KlineData {
	if len(w.candles) == 0 {
		return nil
	}
	return w.candles[len(w.candles)-1]
}
