package middleware

import (
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/huangang/codecritic/pkg/response"
	"golang.org/x/time/rate"
)

const (
	cleanupInterval = 3 * time.Minute
	minIdleTTL      = 5 * time.Minute
)

// ipLimiter holds a rate limiter and last-seen time per IP.
type ipLimiter struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// RateLimiter holds the state for IP-based rate limiting.
type RateLimiter struct {
	mu       sync.Mutex
	limiters map[string]*ipLimiter
	rps      rate.Limit
	burst    int
	idleTTL  time.Duration
	stop     chan struct{}
	once     sync.Once
}

// NewRateLimiter creates a new RateLimiter.
// rps is the allowed requests per second; burst is the max burst size.
func NewRateLimiter(rps float64, burst int) *RateLimiter {
	if burst < 1 {
		burst = 1
	}
	rl := &RateLimiter{
		limiters: make(map[string]*ipLimiter),
		rps:      rate.Limit(rps),
		burst:    burst,
		idleTTL:  idleTTL(rps, burst),
		stop:     make(chan struct{}),
	}
	go rl.cleanup()
	return rl
}

// NewHourlyRateLimiter allows perHour requests per client IP, refilled evenly over the hour.
func NewHourlyRateLimiter(perHour, burst int) *RateLimiter {
	return NewRateLimiter(float64(perHour)/3600, burst)
}

// NewDailyRateLimiter allows perDay requests per client IP. The whole allowance is available
// at once and refills evenly over the day.
func NewDailyRateLimiter(perDay int) *RateLimiter {
	return NewRateLimiter(float64(perDay)/86400, perDay)
}

// idleTTL is how long an entry may sit unused before it is dropped. An entry is only dropped once
// its bucket would have refilled completely, so eviction never hands a client a fresh burst early.
func idleTTL(rps float64, burst int) time.Duration {
	if rps <= 0 {
		return 24 * time.Hour
	}
	refill := time.Duration(float64(burst) / rps * float64(time.Second))
	if refill < minIdleTTL {
		return minIdleTTL
	}
	return refill
}

func (rl *RateLimiter) getLimiter(ip string) *rate.Limiter {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	v, exists := rl.limiters[ip]
	if !exists {
		limiter := rate.NewLimiter(rl.rps, rl.burst)
		rl.limiters[ip] = &ipLimiter{limiter: limiter, lastSeen: time.Now()}
		return limiter
	}

	v.lastSeen = time.Now()
	return v.limiter
}

func (rl *RateLimiter) cleanup() {
	ticker := time.NewTicker(cleanupInterval)
	defer ticker.Stop()
	for {
		select {
		case <-rl.stop:
			return
		case <-ticker.C:
			rl.evictIdle(time.Now())
		}
	}
}

func (rl *RateLimiter) evictIdle(now time.Time) {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	for ip, v := range rl.limiters {
		if now.Sub(v.lastSeen) > rl.idleTTL {
			delete(rl.limiters, ip)
		}
	}
}

func (rl *RateLimiter) size() int {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	return len(rl.limiters)
}

// Stop ends the background cleanup.
func (rl *RateLimiter) Stop() {
	if rl == nil {
		return
	}
	rl.once.Do(func() { close(rl.stop) })
}

// Middleware returns a Gin middleware that enforces IP-based rate limiting.
// A nil limiter lets every request through.
func (rl *RateLimiter) Middleware() gin.HandlerFunc {
	if rl == nil {
		return func(c *gin.Context) { c.Next() }
	}
	tooMany := response.NewTooManyRequests("Rate limit exceeded")
	return func(c *gin.Context) {
		if !rl.getLimiter(c.ClientIP()).Allow() {
			response.Abort(c, tooMany)
			return
		}
		c.Next()
	}
}
