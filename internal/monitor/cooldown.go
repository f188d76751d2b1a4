package monitor

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// CooldownStore rate-limits alerts per dedupe key.
type CooldownStore interface {
	// Allow reports whether key may fire at now and, when it may, starts its cooldown.
	Allow(ctx context.Context, key string, now time.Time, cooldown time.Duration) (bool, error)
	// Reset forgets every key.
	Reset(ctx context.Context) error
}

// MemoryCooldowns is a map from key to the last time it fired. Keys older than the longest
// cooldown seen so far can no longer suppress anything and are dropped.
type MemoryCooldowns struct {
	mu      sync.Mutex
	last    map[string]time.Time
	longest time.Duration
	pruned  time.Time
}

func NewMemoryCooldowns() *MemoryCooldowns {
	return &MemoryCooldowns{last: make(map[string]time.Time)}
}

func (m *MemoryCooldowns) Allow(_ context.Context, key string, now time.Time, cooldown time.Duration) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if cooldown > m.longest {
		m.longest = cooldown
	}
	m.prune(now)
	if last, ok := m.last[key]; ok && now.Sub(last) < cooldown {
		return false, nil
	}
	m.last[key] = now
	return true, nil
}

// prune runs at most once per longest cooldown.
func (m *MemoryCooldowns) prune(now time.Time) {
	if now.Sub(m.pruned) < m.longest {
		return
	}
	for key, last := range m.last {
		if now.Sub(last) >= m.longest {
			delete(m.last, key)
		}
	}
	m.pruned = now
}

func (m *MemoryCooldowns) Reset(context.Context) error {
	m.mu.Lock()
	m.last = make(map[string]time.Time)
	m.mu.Unlock()
	return nil
}

// Len returns the number of tracked keys.
func (m *MemoryCooldowns) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.last)
}

// RedisCooldowns shares cooldowns between replicas. A key exists exactly while it is cooling down.
type RedisCooldowns struct {
	client *redis.Client
	prefix string
}

func NewRedisCooldowns(client *redis.Client, prefix string) *RedisCooldowns {
	if prefix == "" {
		prefix = "tablemind:cooldown:"
	}
	return &RedisCooldowns{client: client, prefix: prefix}
}

func (r *RedisCooldowns) Allow(ctx context.Context, key string, now time.Time, cooldown time.Duration) (bool, error) {
	if cooldown <= 0 {
		return true, nil
	}
	ok, err := r.client.SetNX(ctx, r.prefix+key, now.UnixMilli(), cooldown).Result()
	if err != nil {
		return false, fmt.Errorf("redis setnx %s: %w", key, err)
	}
	return ok, nil
}

func (r *RedisCooldowns) Reset(ctx context.Context) error {
	iter := r.client.Scan(ctx, 0, r.prefix+"*", 100).Iterator()
	var keys []string
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	if err := iter.Err(); err != nil {
		return fmt.Errorf("redis scan: %w", err)
	}
	if len(keys) == 0 {
		return nil
	}
	return r.client.Del(ctx, keys...).Err()
}
