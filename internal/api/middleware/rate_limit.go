package middleware

import (
	"fmt"
	"sync"
	"time"

	"recipe-content-studio/internal/pkg/common"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// RateLimiter 令牌桶限流器
type RateLimiter struct {
	mu       sync.Mutex
	tokens   float64
	capacity float64
	rate     float64
	lastTime time.Time
	now      func() time.Time
}

// NewRateLimiter 創建新的限流器
func NewRateLimiter(requests int, window time.Duration) *RateLimiter {
	return newRateLimiter(requests, window, time.Now)
}

func newRateLimiter(requests int, window time.Duration, now func() time.Time) *RateLimiter {
	return &RateLimiter{
		tokens:   float64(requests),
		capacity: float64(requests),
		rate:     float64(requests) / window.Seconds(),
		lastTime: now(),
		now:      now,
	}
}

// Allow 檢查是否允許請求
func (rl *RateLimiter) Allow() bool {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := rl.now()
	elapsed := now.Sub(rl.lastTime).Seconds()
	rl.lastTime = now

	// 添加新令牌
	rl.tokens = min(rl.capacity, rl.tokens+elapsed*rl.rate)

	if rl.tokens >= 1 {
		rl.tokens--
		return true
	}
	return false
}

// clientLimiters 每個來源 IP 一個令牌桶
type clientLimiters struct {
	mu       sync.Mutex
	requests int
	window   time.Duration
	now      func() time.Time
	buckets  map[string]*bucketEntry
}

type bucketEntry struct {
	limiter  *RateLimiter
	lastSeen time.Time
}

func (cl *clientLimiters) get(ip string) *RateLimiter {
	cl.mu.Lock()
	defer cl.mu.Unlock()

	now := cl.now()
	e, ok := cl.buckets[ip]
	if !ok {
		// 清除閒置超過兩個視窗的桶
		for k, v := range cl.buckets {
			if now.Sub(v.lastSeen) > 2*cl.window {
				delete(cl.buckets, k)
			}
		}
		e = &bucketEntry{limiter: newRateLimiter(cl.requests, cl.window, cl.now)}
		cl.buckets[ip] = e
	}
	e.lastSeen = now
	return e.limiter
}

// RateLimit 依來源 IP 限流的中間件
func RateLimit(requests int, window time.Duration) gin.HandlerFunc {
	return rateLimit(requests, window, time.Now)
}

func rateLimit(requests int, window time.Duration, now func() time.Time) gin.HandlerFunc {
	limiters := &clientLimiters{
		requests: requests,
		window:   window,
		now:      now,
		buckets:  make(map[string]*bucketEntry),
	}

	return func(c *gin.Context) {
		if !limiters.get(c.ClientIP()).Allow() {
			common.LogInfo("Rate limit exceeded",
				zap.String("ip", c.ClientIP()),
				zap.String("path", c.Request.URL.Path),
			)

			c.Header("Retry-After", fmt.Sprintf("%d", int(window.Seconds())))
			common.WriteError(c, common.ErrTooManyRequests, gin.H{"retry_after": window.Seconds()})
			c.Abort()
			return
		}

		c.Next()
	}
}
