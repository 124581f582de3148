package middleware

import (
	"strconv"
	"sync"
	"time"

	"github.com/labstack/echo/v4"
	"golang.org/x/time/rate"

	"github.com/iliyamo/charge-slot-reservation/internal/config"
)

// localLimiter keeps one rate.Limiter per key in memory.  Idle keys are
// dropped after cfg.TTL.
type localLimiter struct {
	cfg   config.RateLimitConfig
	limit rate.Limit
	now   func() time.Time

	mu      sync.Mutex
	buckets map[string]*localBucket
	lastGC  time.Time
}

type localBucket struct {
	lim  *rate.Limiter
	seen time.Time
}

func newLocalLimiter(cfg config.RateLimitConfig) *localLimiter {
	perSec := float64(cfg.RefillTokens) / cfg.RefillInterval.Seconds()
	return &localLimiter{
		cfg:     cfg,
		limit:   rate.Limit(perSec),
		now:     time.Now,
		buckets: make(map[string]*localBucket),
	}
}

func (l *localLimiter) reserve(key string) (ok bool, remaining int, retry time.Duration) {
	now := l.now()
	l.mu.Lock()
	defer l.mu.Unlock()

	if now.Sub(l.lastGC) > l.cfg.TTL {
		for k, b := range l.buckets {
			if now.Sub(b.seen) > l.cfg.TTL {
				delete(l.buckets, k)
			}
		}
		l.lastGC = now
	}

	b, found := l.buckets[key]
	if !found {
		b = &localBucket{lim: rate.NewLimiter(l.limit, l.cfg.Capacity)}
		l.buckets[key] = b
	}
	b.seen = now

	r := b.lim.ReserveN(now, 1)
	if d := r.DelayFrom(now); d > 0 {
		r.CancelAt(now)
		return false, 0, d
	}
	return true, int(b.lim.TokensAt(now)), 0
}

func (l *localLimiter) middleware(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		ok, remaining, retry := l.reserve(buildRateKey(l.cfg, c))
		c.Response().Header().Set("X-RateLimit-Limit", strconv.Itoa(l.cfg.Capacity))
		c.Response().Header().Set("X-RateLimit-Remaining", strconv.Itoa(remaining))
		if !ok {
			return tooManyRequests(c, retry)
		}
		return next(c)
	}
}
