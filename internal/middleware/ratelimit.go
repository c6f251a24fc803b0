package middleware

import (
	"context"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"

	"github.com/liutentor/tentor/internal/metrics"
	"github.com/liutentor/tentor/internal/pkg/response"
)

// Limiter admits at most a fixed number of hits per key inside a sliding window.
type Limiter interface {
	Allow(ctx context.Context, key string) (bool, error)
}

type rateLimiter struct {
	scope   string
	limiter Limiter
}

// RateLimit gates requests per client ip. Limiter errors fail open.
func RateLimit(scope string, limiter Limiter) gin.HandlerFunc {
	l := &rateLimiter{scope: scope, limiter: limiter}
	return l.handle
}

func (l *rateLimiter) handle(c *gin.Context) {
	if l.limiter == nil {
		c.Next()
		return
	}
	ip := ClientIP(c)
	ctx := c.Request.Context()
	ok, err := l.limiter.Allow(ctx, l.scope+":"+ip)
	if err != nil {
		logutil.GetLogger(ctx).Warn("rate limiter unavailable, allowing request",
			zap.String("scope", l.scope),
			zap.Error(err),
		)
		c.Next()
		return
	}
	if !ok {
		metrics.RateLimited.WithLabelValues(l.scope).Inc()
		logutil.GetLogger(ctx).Warn("rate limit hit",
			zap.String("scope", l.scope),
			zap.String("ip", ip),
			zap.String("path", c.Request.URL.Path),
		)
		response.Abort(c, http.StatusTooManyRequests, "Too many requests")
		return
	}
	c.Next()
}

// ClientIP prefers the first X-Forwarded-For hop, then X-Real-IP.
func ClientIP(c *gin.Context) string {
	if fwd := c.GetHeader("X-Forwarded-For"); fwd != "" {
		first, _, _ := strings.Cut(fwd, ",")
		if ip := strings.TrimSpace(first); ip != "" {
			return ip
		}
	}
	if ip := strings.TrimSpace(c.GetHeader("X-Real-IP")); ip != "" {
		return ip
	}
	return "unknown"
}

// slidingLog is the in-process Limiter used when no redis is configured.
type slidingLog struct {
	mu            sync.Mutex
	limit         int
	window        time.Duration
	hits          map[string][]time.Time
	sweepInterval time.Duration
	lastSweep     time.Time
	now           func() time.Time
}

func NewMemoryLimiter(limit int, window time.Duration) Limiter {
	return &slidingLog{
		limit:         limit,
		window:        window,
		hits:          make(map[string][]time.Time),
		sweepInterval: window,
		now:           time.Now,
	}
}

func (l *slidingLog) Allow(_ context.Context, key string) (bool, error) {
	if l.limit <= 0 || l.window <= 0 {
		return true, nil
	}
	now := l.now()
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.sweepInterval > 0 && now.Sub(l.lastSweep) >= l.sweepInterval {
		l.cleanupExpiredLocked(now)
	}
	kept := trimBefore(l.hits[key], now.Add(-l.window))
	if len(kept) >= l.limit {
		l.hits[key] = kept
		return false, nil
	}
	l.hits[key] = append(kept, now)
	return true, nil
}

func (l *slidingLog) cleanupExpiredLocked(now time.Time) {
	cutoff := now.Add(-l.window)
	for key, hits := range l.hits {
		kept := trimBefore(hits, cutoff)
		if len(kept) == 0 {
			delete(l.hits, key)
			continue
		}
		l.hits[key] = kept
	}
	l.lastSweep = now
}

// trimBefore drops hits at or before cutoff; hits are in ascending order.
func trimBefore(hits []time.Time, cutoff time.Time) []time.Time {
	i := 0
	for i < len(hits) && !hits[i].After(cutoff) {
		i++
	}
	return hits[i:]
}
