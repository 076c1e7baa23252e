// Package lease serializes ingestion per user. Two ingestions for the same
// user never run at once; different users proceed independently.
package lease

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/hyperjump/moodify/internal/apperr"
	"github.com/hyperjump/moodify/internal/config"
)

// Locker hands out per-key leases.
type Locker interface {
	// Acquire takes the lease for key or fails with apperr.ErrConflict.
	// The returned func releases it.
	Acquire(ctx context.Context, key string) (release func(), err error)
	Close() error
}

// New builds the configured Locker.
func New(ctx context.Context, cfg config.LeaseConfig) (Locker, error) {
	switch cfg.Backend {
	case "", "local":
		return NewLocal(), nil
	case "redis":
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		defer cancel()
		if err := client.Ping(pingCtx).Err(); err != nil {
			_ = client.Close()
			return nil, fmt.Errorf("failed to connect to Redis: %w", err)
		}
		return NewRedis(client, cfg.TTL), nil
	default:
		return nil, fmt.Errorf("unknown lease backend: %q", cfg.Backend)
	}
}

// Local is an in-process Locker.
type Local struct {
	mu   sync.Mutex
	held map[string]struct{}
}

func NewLocal() *Local {
	return &Local{held: make(map[string]struct{})}
}

func (l *Local) Acquire(ctx context.Context, key string) (func(), error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if _, ok := l.held[key]; ok {
		return nil, fmt.Errorf("%w: ingestion already running for %s", apperr.ErrConflict, key)
	}
	l.held[key] = struct{}{}
	var once sync.Once
	return func() {
		once.Do(func() {
			l.mu.Lock()
			delete(l.held, key)
			l.mu.Unlock()
		})
	}, nil
}

func (l *Local) Close() error { return nil }
