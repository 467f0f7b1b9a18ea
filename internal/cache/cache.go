package cache

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/EmpoweredVote/lots-backend/internal/config"
	"github.com/EmpoweredVote/lots-backend/internal/logger"
	"github.com/redis/go-redis/v9"
)

const generationKey = "lots:export:generation"

// Redis caches rendered exports. Keys embed a generation counter that is
// bumped after every write, so stale entries are simply never read again
// and expire on their TTL.
type Redis struct {
	client *redis.Client
	ttl    time.Duration
	log    *logger.Logger
}

// OpenRedis connects to the configured Redis. It returns nil, nil when no
// address is configured.
func OpenRedis(ctx context.Context, cfg config.Config, log *logger.Logger) (*Redis, error) {
	if cfg.RedisAddr == "" {
		return nil, nil
	}
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("ping redis %s: %w", cfg.RedisAddr, err)
	}
	log.Debug("redis connected", "addr", cfg.RedisAddr, "db", cfg.RedisDB)
	return NewRedis(client, cfg.ExportCacheTTL, log), nil
}

func NewRedis(client *redis.Client, ttl time.Duration, log *logger.Logger) *Redis {
	return &Redis{client: client, ttl: ttl, log: log.With("component", "ExportCache")}
}

func (r *Redis) Get(ctx context.Context, key string) ([]byte, bool) {
	b, err := r.client.Get(ctx, key).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			r.log.Warn("cache get failed", "key", key, "error", err)
		}
		return nil, false
	}
	return b, true
}

func (r *Redis) Set(ctx context.Context, key string, val []byte) {
	if err := r.client.Set(ctx, key, val, r.ttl).Err(); err != nil {
		r.log.Warn("cache set failed", "key", key, "error", err)
	}
}

func (r *Redis) Generation(ctx context.Context) int64 {
	v, err := r.client.Get(ctx, generationKey).Result()
	if err != nil {
		return 0
	}
	n, _ := strconv.ParseInt(v, 10, 64)
	return n
}

func (r *Redis) Bump(ctx context.Context) {
	if err := r.client.Incr(ctx, generationKey).Err(); err != nil {
		r.log.Warn("cache generation bump failed", "error", err)
	}
}

func (r *Redis) Close() error {
	return r.client.Close()
}

// Noop never stores anything.
type Noop struct{}

func (Noop) Get(context.Context, string) ([]byte, bool) { return nil, false }
func (Noop) Set(context.Context, string, []byte)        {}
func (Noop) Generation(context.Context) int64           { return 0 }
func (Noop) Bump(context.Context)                       {}

// Memory is a process-local cache for tests and single-instance runs.
type Memory struct {
	mu      sync.Mutex
	entries map[string][]byte
	gen     int64
}

func NewMemory() *Memory {
	return &Memory{entries: map[string][]byte{}}
}

func (m *Memory) Get(_ context.Context, key string) ([]byte, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	b, ok := m.entries[key]
	return b, ok
}

func (m *Memory) Set(_ context.Context, key string, val []byte) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries[key] = val
}

func (m *Memory) Generation(context.Context) int64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.gen
}

func (m *Memory) Bump(context.Context) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.gen++
	m.entries = map[string][]byte{}
}
