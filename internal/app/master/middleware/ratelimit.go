/**
 * 中间件:限流器中间件
 * @author: sun977
 * @date: 2026.03.10
 * @description: 令牌桶限流 (golang.org/x/time/rate)
 * @func:
 *   - KeyedLimiter 按键分桶，长期不活跃的桶在访问时顺带清理
 *   - GinRateLimitMiddleware 以 Agent 令牌为键，没有令牌时以客户端IP为键
 */
package middleware

import (
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"

	"neofleet/internal/pkg/logger"
)

// idleBucketTTL 超过该时间未访问的桶被回收
const idleBucketTTL = 10 * time.Minute

type bucket struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// KeyedLimiter 按键分桶的令牌桶限流器
type KeyedLimiter struct {
	mu        sync.Mutex
	buckets   map[string]*bucket
	limit     rate.Limit
	burst     int
	lastSweep time.Time
	now       func() time.Time
}

// NewKeyedLimiter 每个键每秒 rps 个令牌，桶容量 burst
func NewKeyedLimiter(rps float64, burst int) *KeyedLimiter {
	return &KeyedLimiter{
		buckets: make(map[string]*bucket),
		limit:   rate.Limit(rps),
		burst:   burst,
		now:     time.Now,
	}
}

// Allow 消费一个令牌
func (l *KeyedLimiter) Allow(key string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	now := l.now()
	if now.Sub(l.lastSweep) > idleBucketTTL {
		for k, b := range l.buckets {
			if now.Sub(b.lastSeen) > idleBucketTTL {
				delete(l.buckets, k)
			}
		}
		l.lastSweep = now
	}
	b, ok := l.buckets[key]
	if !ok {
		b = &bucket{limiter: rate.NewLimiter(l.limit, l.burst)}
		l.buckets[key] = b
	}
	b.lastSeen = now
	return b.limiter.AllowN(now, 1)
}

// Len 当前桶数量
func (l *KeyedLimiter) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.buckets)
}

// GinRateLimitMiddleware 限流中间件，未启用时直接放行
func (m *MiddlewareManager) GinRateLimitMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		if m.limiter == nil || inPaths(c.Request.URL.Path, m.rateLimitConfig.SkipPaths) {
			c.Next()
			return
		}
		key := c.Param("token")
		if key == "" {
			key = "ip:" + c.GetString(ContextClientIP)
		}
		if !m.limiter.Allow(key) {
			logger.LogWarn("rate limit exceeded", c.GetString(ContextRequestID), c.Param("token"), c.GetString(ContextClientIP), c.Request.URL.Path, c.Request.Method, nil)
			abort(c, http.StatusTooManyRequests, "rate limit exceeded")
			return
		}
		c.Next()
	}
}
