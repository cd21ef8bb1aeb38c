package mirror

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// Redis 把预热后的配置快照和账本快照以JSON写入Redis，供其他进程读取
type Redis struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
}

// New 连接Redis并测试连通性
func New(ctx context.Context, cfg Config) (*Redis, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	return NewWithClient(client, cfg.Prefix, time.Duration(cfg.TTLSeconds)*time.Second), nil
}

// NewWithClient 使用已有的客户端
func NewWithClient(client *redis.Client, prefix string, ttl time.Duration) *Redis {
	return &Redis{client: client, prefix: prefix, ttl: ttl}
}

// Key 加上前缀
func (r *Redis) Key(key string) string {
	return r.prefix + key
}

// Publish 写入JSON，带TTL
func (r *Redis) Publish(ctx context.Context, key string, value interface{}) error {
	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("failed to marshal %s: %w", key, err)
	}
	if err := r.client.Set(ctx, r.Key(key), data, r.ttl).Err(); err != nil {
		return fmt.Errorf("failed to publish %s: %w", key, err)
	}
	return nil
}

// Fetch 读取JSON，不存在时返回false
func (r *Redis) Fetch(ctx context.Context, key string, out interface{}) (bool, error) {
	data, err := r.client.Get(ctx, r.Key(key)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return false, nil
		}
		return false, fmt.Errorf("failed to fetch %s: %w", key, err)
	}
	if err := json.Unmarshal(data, out); err != nil {
		return false, fmt.Errorf("failed to unmarshal %s: %w", key, err)
	}
	return true, nil
}

// Close 关闭连接
func (r *Redis) Close() error {
	return r.client.Close()
}
