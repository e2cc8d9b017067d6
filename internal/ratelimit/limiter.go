// Package ratelimit implements per-provider sliding-window admission control.
//
// A provider with limit N and window W admits at most N requests in any trailing W.
// Each Admit is a single check-and-record step: a denied request is never recorded
// and an admitted one is never rolled back.
package ratelimit

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/nulzo/model-bridge/internal/config"
	"github.com/nulzo/model-bridge/pkg/api"
	"github.com/redis/go-redis/v9"
)

// Limit is the sliding-window constant of one provider.
type Limit struct {
	Requests int
	Window   time.Duration
}

// Unlimited reports whether the limit admits everything.
func (l Limit) Unlimited() bool {
	return l.Requests <= 0 || l.Window <= 0
}

// Limiter is the admission check shared by every intake channel.
type Limiter interface {
	// Admit records now and returns true when the provider's window has room.
	Admit(ctx context.Context, provider api.ProviderID, now time.Time) (bool, error)
	// Limit returns the configured limit, false when the provider is unlimited.
	Limit(provider api.ProviderID) (Limit, bool)
	Limits() map[api.ProviderID]Limit
}

// LimitsFromConfig converts the rate_limits section, dropping unlimited entries.
func LimitsFromConfig(cfg map[string]config.RateLimitConfig) map[api.ProviderID]Limit {
	out := make(map[api.ProviderID]Limit, len(cfg))
	for id, rl := range cfg {
		l := Limit{Requests: rl.Requests, Window: rl.Window()}
		if l.Unlimited() {
			continue
		}
		out[api.ProviderID(id)] = l
	}
	return out
}

// New builds the limiter selected by rate_limit.backend. The returned close func releases
// backend connections.
func New(ctx context.Context, cfg *config.Config) (Limiter, func() error, error) {
	limits := LimitsFromConfig(cfg.RateLimits)

	switch strings.ToLower(cfg.RateLimit.Backend) {
	case "", "memory":
		return NewMemory(limits), func() error { return nil }, nil
	case "redis":
		rdb := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		pingCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
		defer cancel()
		if err := rdb.Ping(pingCtx).Err(); err != nil {
			_ = rdb.Close()
			return nil, nil, fmt.Errorf("connect redis %s: %w", cfg.Redis.Addr, err)
		}
		return NewRedis(rdb, cfg.Redis.Prefix, limits), rdb.Close, nil
	default:
		return nil, nil, fmt.Errorf("unknown rate limit backend %q", cfg.RateLimit.Backend)
	}
}

func copyLimits(in map[api.ProviderID]Limit) map[api.ProviderID]Limit {
	out := make(map[api.ProviderID]Limit, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}
