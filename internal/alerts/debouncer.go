// Package alerts sends critical-vitals notifications, debounced per
// patient so a patient stuck in a critical state does not page on every
// simulator tick.
package alerts

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	goredis "github.com/redis/go-redis/v9"
)

// DefaultCooldown is the minimum gap between alerts for the same patient.
const DefaultCooldown = 5 * time.Minute

// Debouncer reports whether an alert for key may fire now. A true result
// claims the cooldown window.
type Debouncer interface {
	Allow(ctx context.Context, key string) bool
}

// RedisDebouncer coordinates the cooldown across instances with SET NX.
type RedisDebouncer struct {
	rdb      *goredis.Client
	cooldown time.Duration
}

func NewRedisDebouncer(rdb *goredis.Client, cooldown time.Duration) *RedisDebouncer {
	return &RedisDebouncer{rdb: rdb, cooldown: cooldown}
}

func (d *RedisDebouncer) Allow(ctx context.Context, key string) bool {
	args := goredis.SetArgs{TTL: d.cooldown, Mode: "NX"}
	_, err := d.rdb.SetArgs(ctx, "alert:"+key, "1", args).Result()
	if errors.Is(err, goredis.Nil) {
		return false
	}
	if err != nil {
		// Fail open: a redis outage must not swallow critical alerts.
		slog.Warn("alert debounce check failed", "key", key, "error", err)
		return true
	}
	return true
}

// MemoryDebouncer is the single-instance debouncer used when redis is not
// configured.
type MemoryDebouncer struct {
	clock    clockwork.Clock
	cooldown time.Duration

	mu   sync.Mutex
	last map[string]time.Time
}

func NewMemoryDebouncer(clock clockwork.Clock, cooldown time.Duration) *MemoryDebouncer {
	return &MemoryDebouncer{
		clock:    clock,
		cooldown: cooldown,
		last:     make(map[string]time.Time),
	}
}

func (d *MemoryDebouncer) Allow(_ context.Context, key string) bool {
	d.mu.Lock()
	defer d.mu.Unlock()

	now := d.clock.Now()
	if at, ok := d.last[key]; ok && now.Sub(at) < d.cooldown {
		return false
	}
	d.last[key] = now
	return true
}
