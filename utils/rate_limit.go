package utils

import (
	"net/http"

	"github.com/gin-gonic/gin"
	cmap "github.com/orcaman/concurrent-map/v2"
	"golang.org/x/time/rate"
)

// RateLimiter keeps one token bucket per client IP
type RateLimiter struct {
	limit    rate.Limit
	burst    int
	limiters cmap.ConcurrentMap[string, *rate.Limiter]
}

func NewRateLimiter(perSecond float64, burst int) *RateLimiter {
	return &RateLimiter{
		limit:    rate.Limit(perSecond),
		burst:    burst,
		limiters: cmap.New[*rate.Limiter](),
	}
}

func (rl *RateLimiter) Allow(key string) bool {
	limiter := rl.limiters.Upsert(key, nil, func(exist bool, current, _ *rate.Limiter) *rate.Limiter {
		if exist {
			return current
		}
		return rate.NewLimiter(rl.limit, rl.burst)
	})
	return limiter.Allow()
}

func (rl *RateLimiter) Handler() gin.HandlerFunc {
	return func(c *gin.Context) {
		if rl.limit <= 0 {
			c.Next()
			return
		}
		if !rl.Allow(c.ClientIP()) {
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{"error": "too many requests"})
			return
		}
		c.Next()
	}
}
