package alert

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	goredis "github.com/redis/go-redis/v9"
)

const pruneThreshold = 1024

// MemoryCooldown keeps last-alert times in process memory. State is lost on
// restart and not shared between instances.
type MemoryCooldown struct {
	window time.Duration

	mu   sync.Mutex
	last map[string]time.Time
}

func NewMemoryCooldown(window time.Duration) *MemoryCooldown {
	if window <= 0 {
		window = DefaultCooldown
	}
	return &MemoryCooldown{window: window, last: make(map[string]time.Time)}
}

func (c *MemoryCooldown) Allow(_ context.Context, key string, now time.Time) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if last, ok := c.last[key]; ok && now.Sub(last) <= c.window {
		return false, nil
	}
	c.last[key] = now
	if len(c.last) > pruneThreshold {
		for k, t := range c.last {
			if now.Sub(t) > c.window {
				delete(c.last, k)
			}
		}
	}
	return true, nil
}

const defaultRedisPrefix = "integrity:alert"

// RedisCooldown shares the cooldown across instances with SET NX PX.
type RedisCooldown struct {
	client *goredis.Client
	prefix string
	window time.Duration
}

func NewRedisCooldown(addr string, window time.Duration) (*RedisCooldown, error) {
	if strings.TrimSpace(addr) == "" {
		return nil, fmt.Errorf("redis addr is required")
	}
	client := goredis.NewClient(&goredis.Options{Addr: addr})
	if err := client.Ping(context.Background()).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis ping failed: %w", err)
	}
	return NewRedisCooldownWithClient(client, defaultRedisPrefix, window), nil
}

func NewRedisCooldownWithClient(client *goredis.Client, prefix string, window time.Duration) *RedisCooldown {
	if window <= 0 {
		window = DefaultCooldown
	}
	if prefix == "" {
		prefix = defaultRedisPrefix
	}
	return &RedisCooldown{client: client, prefix: prefix, window: window}
}

func (c *RedisCooldown) Allow(ctx context.Context, key string, now time.Time) (bool, error) {
	ok, err := c.client.SetNX(ctx, c.prefix+":"+key, now.UnixMilli(), c.window).Result()
	if err != nil {
		return false, fmt.Errorf("alert cooldown: %w", err)
	}
	return ok, nil
}

func (c *RedisCooldown) Close() error {
	return c.client.Close()
}
