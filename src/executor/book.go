package executor

import (
	"sort"
	"sync"

	"multicryptobot/src/cex"

	"github.com/shopspring/decimal"
)

// Book 每个交易对一个账本，按交易对符号索引
type Book struct {
	mu       sync.Mutex
	ledgers  map[string]*Ledger
	gateway  cex.OrderGateway
	recorder Recorder
}

// NewBook gateway 为空时所有账本都是模拟盘
func NewBook(gateway cex.OrderGateway, recorder Recorder) *Book {
	return &Book{
		ledgers:  make(map[string]*Ledger),
		gateway:  gateway,
		recorder: recorder,
	}
}

// Ledger 取得交易对的账本，不存在时用初始资金创建
func (b *Book) Ledger(pair cex.TradingPair, initialCash decimal.Decimal) *Ledger {
	b.mu.Lock()
	defer b.mu.Unlock()

	symbol := pair.String()
	if l, ok := b.ledgers[symbol]; ok {
		return l
	}
	l := NewLedger(pair, initialCash, b.gateway, b.recorder)
	b.ledgers[symbol] = l
	return l
}

// Get 查找已有账本
func (b *Book) Get(symbol string) (*Ledger, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	l, ok := b.ledgers[symbol]
	return l, ok
}

// Symbols 已创建账本的交易对
func (b *Book) Symbols() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]string, 0, len(b.ledgers))
	for s := range b.ledgers {
		out = append(out, s)
	}
	sort.Strings(out)
	return out
}

// OpenPositions 当前持仓的交易对数量
func (b *Book) OpenPositions() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	n := 0
	for _, l := range b.ledgers {
		if l.IsLong() {
			n++
		}
	}
	return n
}
