package reward

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// Cooldown grants at most one acquisition per user within a window.
type Cooldown interface {
	Acquire(ctx context.Context, userID string, window time.Duration) (bool, error)
	Release(ctx context.Context, userID string) error
}

// MemoryCooldown keeps grant times in process memory.
type MemoryCooldown struct {
	mu    sync.Mutex
	until map[string]time.Time
	now   func() time.Time
}

func NewMemoryCooldown() *MemoryCooldown {
	return &MemoryCooldown{until: make(map[string]time.Time), now: time.Now}
}

func (m *MemoryCooldown) Acquire(ctx context.Context, userID string, window time.Duration) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	if until, ok := m.until[userID]; ok && now.Before(until) {
		return false, nil
	}
	m.until[userID] = now.Add(window)
	return true, nil
}

func (m *MemoryCooldown) Release(ctx context.Context, userID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.until, userID)
	return nil
}

const cooldownPrefix = "coinbot:reward:"

// RedisCooldown shares the cooldown across replicas using SET NX with an
// expiry.
type RedisCooldown struct {
	client *redis.Client
}

func NewRedisCooldown(client *redis.Client) *RedisCooldown {
	return &RedisCooldown{client: client}
}

func (r *RedisCooldown) Acquire(ctx context.Context, userID string, window time.Duration) (bool, error) {
	ok, err := r.client.SetNX(ctx, cooldownPrefix+userID, time.Now().Unix(), window).Result()
	if err != nil {
		return false, fmt.Errorf("failed to acquire reward cooldown: %w", err)
	}
	return ok, nil
}

func (r *RedisCooldown) Release(ctx context.Context, userID string) error {
	if err := r.client.Del(ctx, cooldownPrefix+userID).Err(); err != nil {
		return fmt.Errorf("failed to release reward cooldown: %w", err)
	}
	return nil
}
