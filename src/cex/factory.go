package cex

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
)

// ErrUnsupportedCEX 未注册的交易所名称
var ErrUnsupportedCEX = errors.New("unsupported CEX")

// CEXFactory 按全局配置创建交易所客户端
type CEXFactory interface {
	CreateClient() (CEXClient, error)
}

// CEXFactoryRegistry 交易所名称(小写) -> 工厂
var (
	registryMu         sync.RWMutex
	CEXFactoryRegistry = make(map[string]CEXFactory)
)

func normalizeName(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}

// RegisterCEXFactory 注册交易所工厂，重复注册同一名称会 panic
func RegisterCEXFactory(name string, factory CEXFactory) {
	registryMu.Lock()
	defer registryMu.Unlock()

	key := normalizeName(name)
	if factory == nil {
		panic("cex: RegisterCEXFactory factory is nil for " + key)
	}
	if _, dup := CEXFactoryRegistry[key]; dup {
		panic("cex: RegisterCEXFactory called twice for " + key)
	}
	CEXFactoryRegistry[key] = factory
}

// CreateCEXClient 按配置里的 exchange 名称创建客户端，名称不区分大小写
func CreateCEXClient(cexName string) (CEXClient, error) {
	registryMu.RLock()
	factory, exists := CEXFactoryRegistry[normalizeName(cexName)]
	registryMu.RUnlock()
	if !exists {
		return nil, fmt.Errorf("%w: %q (supported: %s)", ErrUnsupportedCEX, cexName, strings.Join(GetSupportedCEXes(), ", "))
	}

	client, err := factory.CreateClient()
	if err != nil {
		return nil, fmt.Errorf("failed to create %s client: %w", cexName, err)
	}
	return client, nil
}

// GetSupportedCEXes 已注册的交易所，按名称排序
func GetSupportedCEXes() []string {
	registryMu.RLock()
	defer registryMu.RUnlock()

	cexes := make([]string, 0, len(CEXFactoryRegistry))
	for name := range CEXFactoryRegistry {
		cexes = append(cexes, name)
	}
	sort.Strings(cexes)
	return cexes
}
