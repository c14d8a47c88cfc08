package ratelimit

import (
	"sync"
	"time"

	xhttp "BoostLab/pkg/http"

	"github.com/labstack/echo/v4"
	"golang.org/x/time/rate"
)

// Limiter keeps one token bucket per key. Every key shares one capacity and
// refill rate.
type Limiter struct {
	mu       sync.Mutex
	limiters map[string]*rate.Limiter
	limit    rate.Limit
	burst    int
	now      func() time.Time
}

func New(capacity, refillPerSec float64) *Limiter {
	burst := int(capacity)
	if burst < 1 {
		burst = 1
	}
	return &Limiter{
		limiters: make(map[string]*rate.Limiter),
		limit:    rate.Limit(refillPerSec),
		burst:    burst,
		now:      time.Now,
	}
}

func (l *Limiter) get(key string) *rate.Limiter {
	l.mu.Lock()
	defer l.mu.Unlock()
	lim, ok := l.limiters[key]
	if !ok {
		lim = rate.NewLimiter(l.limit, l.burst)
		l.limiters[key] = lim
	}
	return lim
}

// Allow returns true if one token can be consumed for key.
func (l *Limiter) Allow(key string) bool {
	return l.get(key).AllowN(l.now(), 1)
}

// Middleware limits requests per client IP. It is meant for the expensive
// training and walk-forward routes.
func (l *Limiter) Middleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if !l.Allow(c.RealIP()) {
				return xhttp.AppErrorResponse(c, xhttp.TooManyRequestsError("too many requests"))
			}
			return next(c)
		}
	}
}
