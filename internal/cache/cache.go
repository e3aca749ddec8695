// Package cache stores successful forecast payloads keyed by the exact
// argument vector that produced them.
package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/jonboulle/clockwork"

	"aquacast-server/internal/config"
)

const keyPrefix = "aquacast:forecast:"

type Cache interface {
	// Get returns the stored bytes and true on a hit.
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, val []byte, ttl time.Duration) error
}

// Key derives a cache key from an argument vector. Arguments are joined
// with NUL so "a b" and ["a", "b"] never collide.
func Key(argv []string) string {
	sum := sha256.Sum256([]byte(strings.Join(argv, "\x00")))
	return keyPrefix + hex.EncodeToString(sum[:])
}

// New builds the cache selected by cfg.CacheBackend.
func New(cfg config.Config, logger *slog.Logger) (Cache, error) {
	switch cfg.CacheBackend {
	case "none":
		return Nop{}, nil
	case "memory":
		return NewMemory(clockwork.NewRealClock(), defaultMaxEntries), nil
	case "redis":
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		logger.Info("forecast cache using redis", "addr", cfg.RedisAddr, "db", cfg.RedisDB)
		return NewRedis(client), nil
	default:
		return nil, fmt.Errorf("unknown cache backend %q", cfg.CacheBackend)
	}
}

// Nop never stores anything.
type Nop struct{}

func (Nop) Get(context.Context, string) ([]byte, bool, error)        { return nil, false, nil }
func (Nop) Set(context.Context, string, []byte, time.Duration) error { return nil }
