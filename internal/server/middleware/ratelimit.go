package middleware

import (
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/nulzo/model-bridge/pkg/api"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

const (
	clientIdleTTL = 10 * time.Minute
	sweepEvery    = time.Minute
)

type visitor struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// IngressLimiter is a per-client token bucket in front of the API. It protects the broker
// itself and is independent of the per-provider sliding windows.
type IngressLimiter struct {
	mu        sync.Mutex
	visitors  map[string]*visitor
	rps       rate.Limit
	burst     int
	logger    *zap.Logger
	now       func() time.Time
	lastSweep time.Time
}

func NewIngressLimiter(rps float64, burst int, logger *zap.Logger) *IngressLimiter {
	if burst < 1 {
		burst = 1
	}
	return &IngressLimiter{
		visitors:  make(map[string]*visitor),
		rps:       rate.Limit(rps),
		burst:     burst,
		logger:    logger,
		now:       time.Now,
		lastSweep: time.Now(),
	}
}

// allow takes a token from ip's bucket, creating it on first sight. Buckets idle for
// clientIdleTTL are dropped at most once per sweepEvery.
func (rl *IngressLimiter) allow(ip string) bool {
	now := rl.now()

	rl.mu.Lock()
	v, ok := rl.visitors[ip]
	if !ok {
		v = &visitor{limiter: rate.NewLimiter(rl.rps, rl.burst)}
		rl.visitors[ip] = v
	}
	v.lastSeen = now

	if now.Sub(rl.lastSweep) >= sweepEvery {
		for key, other := range rl.visitors {
			if now.Sub(other.lastSeen) > clientIdleTTL {
				delete(rl.visitors, key)
			}
		}
		rl.lastSweep = now
	}
	rl.mu.Unlock()

	return v.limiter.AllowN(now, 1)
}

func (rl *IngressLimiter) tracked() int {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	return len(rl.visitors)
}

func (rl *IngressLimiter) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		ip := c.ClientIP()

		if !rl.allow(ip) {
			rl.logger.Warn("Ingress rate limit exceeded",
				zap.String("ip", ip),
				zap.String("path", c.Request.URL.Path),
			)
			c.Header("Retry-After", "1")
			c.AbortWithStatusJSON(http.StatusTooManyRequests, api.ErrorResponse{
				Error:   "Too many requests",
				Details: "client request rate exceeded",
			})
			return
		}

		c.Next()
	}
}
