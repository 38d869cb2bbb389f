package dayreset

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// claimTTL keeps a claim past the end of its day in every timezone
const claimTTL = 48 * time.Hour

// Guard makes a day reset happen once per branch and date
type Guard interface {
	Claim(ctx context.Context, branch, date string) (bool, error)
	Release(ctx context.Context, branch, date string) error
}

// MemoryGuard deduplicates resets within one process
type MemoryGuard struct {
	mu      sync.Mutex
	claimed map[string]bool
}

func NewMemoryGuard() *MemoryGuard {
	return &MemoryGuard{claimed: make(map[string]bool)}
}

func (g *MemoryGuard) Claim(_ context.Context, branch, date string) (bool, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	key := claimKey(branch, date)
	if g.claimed[key] {
		return false, nil
	}
	g.claimed[key] = true
	return true, nil
}

func (g *MemoryGuard) Release(_ context.Context, branch, date string) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	delete(g.claimed, claimKey(branch, date))
	return nil
}

// RedisGuard deduplicates resets across processes sharing one Redis
type RedisGuard struct {
	client redis.UniversalClient
}

// NewRedisGuard connects to Redis
func NewRedisGuard(addr, password string, db int) *RedisGuard {
	return &RedisGuard{client: redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})}
}

// NewRedisGuardFromClient wraps an existing client
func NewRedisGuardFromClient(client redis.UniversalClient) *RedisGuard {
	return &RedisGuard{client: client}
}

func (g *RedisGuard) Claim(ctx context.Context, branch, date string) (bool, error) {
	ok, err := g.client.SetNX(ctx, claimKey(branch, date), time.Now().UTC().Format(time.RFC3339), claimTTL).Result()
	if err != nil {
		return false, fmt.Errorf("redis setnx: %w", err)
	}
	return ok, nil
}

func (g *RedisGuard) Release(ctx context.Context, branch, date string) error {
	if err := g.client.Del(ctx, claimKey(branch, date)).Err(); err != nil {
		return fmt.Errorf("redis del: %w", err)
	}
	return nil
}

// Ping checks the Redis connection
func (g *RedisGuard) Ping(ctx context.Context) error {
	return g.client.Ping(ctx).Err()
}

func (g *RedisGuard) Close() error {
	return g.client.Close()
}

func claimKey(branch, date string) string {
	return "pos:day_reset:" + branch + ":" + date
}
