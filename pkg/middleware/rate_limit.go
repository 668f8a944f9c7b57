package middleware

import (
	"net"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"

	"github.com/yeisme/pubvault/pkg/configs"
)

const (
	// limiterIdleTTL 超过该时间未访问的 limiter 会被清理.
	limiterIdleTTL = 10 * time.Minute
	// limiterSweepEvery 清理间隔，在请求路径上惰性执行.
	limiterSweepEvery = time.Minute
)

// RateLimitMiddleware 返回一个基于配置的限流中间件. 超限返回 429 并带 Retry-After.
func RateLimitMiddleware(cfg configs.RateLimitConfig) gin.HandlerFunc {
	if !cfg.Enabled || cfg.RPS <= 0 {
		return func(c *gin.Context) { c.Next() }
	}

	keyMode := strings.ToLower(strings.TrimSpace(cfg.Key))
	limiters := newLimiterSet(cfg.RPS, cfg.Burst)

	return func(c *gin.Context) {
		key := limiterKey(c, keyMode)

		r := limiters.get(key, time.Now()).Reserve()
		if !r.OK() || r.Delay() > 0 {
			delay := r.Delay()
			r.Cancel()

			c.Header("Retry-After", strconv.Itoa(int(delay.Seconds())+1))
			c.AbortWithStatusJSON(http.StatusTooManyRequests,
				gin.H{"error": "rate limit exceeded, request too frequent, please try again later"})

			return
		}

		c.Next()
	}
}

// limiterKey 选择限流维度：global、ip 或 header:Name（缺失时回退到 IP）.
func limiterKey(c *gin.Context, mode string) string {
	switch {
	case mode == "global" || mode == "":
		return "global"
	case strings.HasPrefix(mode, "header:"):
		if v := c.GetHeader(strings.TrimPrefix(mode, "header:")); v != "" {
			return "h:" + v
		}
	}

	if ip := clientIP(c); ip != "" {
		return "ip:" + ip
	}

	return "unknown"
}

type limiterEntry struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// limiterSet 按键维护 limiter，闲置的定期清理.
type limiterSet struct {
	mu        sync.Mutex
	rps       rate.Limit
	burst     int
	entries   map[string]*limiterEntry
	lastSweep time.Time
}

func newLimiterSet(rps float64, burst int) *limiterSet {
	return &limiterSet{rps: rate.Limit(rps), burst: burst, entries: map[string]*limiterEntry{}}
}

func (s *limiterSet) get(key string, now time.Time) *rate.Limiter {
	s.mu.Lock()
	defer s.mu.Unlock()

	if now.Sub(s.lastSweep) >= limiterSweepEvery {
		for k, e := range s.entries {
			if now.Sub(e.lastSeen) > limiterIdleTTL {
				delete(s.entries, k)
			}
		}

		s.lastSweep = now
	}

	e, ok := s.entries[key]
	if !ok {
		e = &limiterEntry{limiter: rate.NewLimiter(s.rps, s.burst)}
		s.entries[key] = e
	}

	e.lastSeen = now

	return e.limiter
}

func clientIP(c *gin.Context) string {
	if ip := c.ClientIP(); ip != "" {
		return ip
	}

	host, _, err := net.SplitHostPort(c.Request.RemoteAddr)
	if err != nil {
		return c.Request.RemoteAddr
	}

	return host
}
