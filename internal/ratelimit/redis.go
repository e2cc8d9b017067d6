package ratelimit

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/nulzo/model-bridge/pkg/api"
	"github.com/redis/go-redis/v9"
)

// slidingWindow prunes, counts and records in one server-side step.
// KEYS[1] zset key; ARGV now ms, window ms, limit, member.
var slidingWindow = redis.NewScript(`
local key = KEYS[1]
local now = tonumber(ARGV[1])
local window = tonumber(ARGV[2])
local limit = tonumber(ARGV[3])

redis.call('ZREMRANGEBYSCORE', key, '-inf', now - window)
if redis.call('ZCARD', key) >= limit then
	return 0
end
redis.call('ZADD', key, now, ARGV[4])
redis.call('PEXPIRE', key, window * 2)
return 1
`)

// Redis shares windows between broker replicas through sorted sets keyed <prefix>:<provider>.
type Redis struct {
	client redis.Scripter
	prefix string
	limits map[api.ProviderID]Limit
}

func NewRedis(client redis.Scripter, prefix string, limits map[api.ProviderID]Limit) *Redis {
	if prefix == "" {
		prefix = "model-bridge:ratelimit"
	}
	return &Redis{client: client, prefix: prefix, limits: copyLimits(limits)}
}

func (r *Redis) key(provider api.ProviderID) string {
	return fmt.Sprintf("%s:%s", r.prefix, provider)
}

// Admit fails closed: a backend error is returned and nothing is admitted.
func (r *Redis) Admit(ctx context.Context, provider api.ProviderID, now time.Time) (bool, error) {
	limit, ok := r.Limit(provider)
	if !ok {
		return true, nil
	}

	nowMS := now.UnixMilli()
	member := fmt.Sprintf("%d-%s", nowMS, uuid.NewString())

	res, err := slidingWindow.Run(ctx, r.client,
		[]string{r.key(provider)},
		nowMS, limit.Window.Milliseconds(), limit.Requests, member,
	).Int()
	if err != nil {
		return false, fmt.Errorf("rate limit check for %s: %w", provider, err)
	}
	return res == 1, nil
}

func (r *Redis) Limit(provider api.ProviderID) (Limit, bool) {
	l, ok := r.limits[provider]
	if !ok || l.Unlimited() {
		return Limit{}, false
	}
	return l, true
}

func (r *Redis) Limits() map[api.ProviderID]Limit {
	return copyLimits(r.limits)
}
