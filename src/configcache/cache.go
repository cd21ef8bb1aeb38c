package configcache

import (
	"encoding/json"
	"strings"
	"sync"
	"time"
)

// DefaultTTL 默认缓存有效期
const DefaultTTL = 300 * time.Second

// entry 缓存条目
type entry struct {
	value    interface{}
	storedAt time.Time
}

// Stats 缓存统计
type Stats struct {
	Total       int `json:"total"`        // 条目总数
	Active      int `json:"active"`       // 未过期条目
	Expired     int `json:"expired"`      // 已过期但尚未淘汰的条目
	ApproxBytes int `json:"approx_bytes"` // 估算内存占用
}

// Cache 带TTL的配置缓存，过期条目在读取时惰性淘汰
//
// 锁只保护内存map，调用方不会在持锁期间做任何外部IO。
type Cache struct {
	mu         sync.Mutex
	entries    map[string]*entry
	defaultTTL time.Duration
	now        func() time.Time
}

// New 创建缓存，ttl<=0时使用DefaultTTL
func New(ttl time.Duration) *Cache {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Cache{
		entries:    make(map[string]*entry),
		defaultTTL: ttl,
		now:        time.Now,
	}
}

// SetClock 替换时钟（测试用）
func (c *Cache) SetClock(now func() time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = now
}

// DefaultTTL 返回默认有效期
func (c *Cache) DefaultTTL() time.Duration {
	return c.defaultTTL
}

// Get 读取缓存，ttl为0时使用默认有效期
func (c *Cache) Get(key string, ttl ...time.Duration) (interface{}, bool) {
	maxAge := c.defaultTTL
	if len(ttl) > 0 && ttl[0] > 0 {
		maxAge = ttl[0]
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[key]
	if !ok {
		return nil, false
	}
	if c.now().Sub(e.storedAt) > maxAge {
		delete(c.entries, key)
		return nil, false
	}
	return e.value, true
}

// Set 写入缓存
func (c *Cache) Set(key string, value interface{}) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[key] = &entry{value: value, storedAt: c.now()}
}

// Delete 删除单个键
func (c *Cache) Delete(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, key)
}

// Clear 清空缓存
func (c *Cache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = make(map[string]*entry)
}

// InvalidatePattern 删除所有包含pattern的键，返回删除数量
func (c *Cache) InvalidatePattern(pattern string) int {
	c.mu.Lock()
	defer c.mu.Unlock()

	removed := 0
	for key := range c.entries {
		if strings.Contains(key, pattern) {
			delete(c.entries, key)
			removed++
		}
	}
	return removed
}

// Keys 返回当前所有键（含已过期未淘汰的）
func (c *Cache) Keys() []string {
	c.mu.Lock()
	defer c.mu.Unlock()

	keys := make([]string, 0, len(c.entries))
	for key := range c.entries {
		keys = append(keys, key)
	}
	return keys
}

// Stats 统计缓存状态，按默认有效期判断是否过期
func (c *Cache) Stats() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()

	stats := Stats{Total: len(c.entries)}
	now := c.now()
	for key, e := range c.entries {
		if now.Sub(e.storedAt) > c.defaultTTL {
			stats.Expired++
		} else {
			stats.Active++
		}
		stats.ApproxBytes += len(key) + approxSize(e.value)
	}
	return stats
}

// approxSize 粗略估算值的大小
func approxSize(v interface{}) int {
	switch val := v.(type) {
	case nil:
		return 0
	case string:
		return len(val)
	case bool:
		return 1
	case int, int64, float64:
		return 8
	default:
		data, err := json.Marshal(val)
		if err != nil {
			return 0
		}
		return len(data)
	}
}
