// middleware/ratelimit.go
package middleware

import (
	"strings"
	"sync"
	"time"

	"github.com/gofiber/fiber/v2"
	"golang.org/x/time/rate"

	"wizzzard/config"
)

type visitor struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// RateLimiter keeps one token bucket per client key.
type RateLimiter struct {
	mu       sync.Mutex
	visitors map[string]*visitor
	limit    rate.Limit
	burst    int
	idle     time.Duration
}

// NewRateLimiter allows maxRequests per window with bursts up to maxRequests.
func NewRateLimiter(maxRequests int, window, idle time.Duration) *RateLimiter {
	if maxRequests <= 0 {
		maxRequests = 1
	}
	if window <= 0 {
		window = time.Minute
	}
	return &RateLimiter{
		visitors: make(map[string]*visitor),
		limit:    rate.Limit(float64(maxRequests) / window.Seconds()),
		burst:    maxRequests,
		idle:     idle,
	}
}

func (rl *RateLimiter) Allow(key string) bool {
	rl.mu.Lock()
	v, ok := rl.visitors[key]
	if !ok {
		v = &visitor{limiter: rate.NewLimiter(rl.limit, rl.burst)}
		rl.visitors[key] = v
	}
	v.lastSeen = time.Now()
	rl.mu.Unlock()

	return v.limiter.Allow()
}

// Cleanup drops visitors idle for longer than the idle expiration.
func (rl *RateLimiter) Cleanup() {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := time.Now()
	for key, v := range rl.visitors {
		if now.Sub(v.lastSeen) > rl.idle {
			delete(rl.visitors, key)
		}
	}
}

// Size returns the number of tracked visitors.
func (rl *RateLimiter) Size() int {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	return len(rl.visitors)
}

// RateLimits holds the general and auth limiters built from config.
type RateLimits struct {
	General  *RateLimiter
	Auth     *RateLimiter
	disabled bool
	stop     chan struct{}
	once     sync.Once
}

func NewRateLimits(cfg config.RateLimitConfig) *RateLimits {
	rl := &RateLimits{
		General:  NewRateLimiter(cfg.Requests, cfg.Window, cfg.IdleExpiration),
		Auth:     NewRateLimiter(cfg.AuthRequests, cfg.AuthWindow, cfg.IdleExpiration),
		disabled: cfg.Disabled,
		stop:     make(chan struct{}),
	}
	if cfg.CleanupEvery > 0 {
		go rl.cleanupLoop(cfg.CleanupEvery)
	}
	return rl
}

func (rl *RateLimits) cleanupLoop(every time.Duration) {
	ticker := time.NewTicker(every)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			rl.General.Cleanup()
			rl.Auth.Cleanup()
		case <-rl.stop:
			return
		}
	}
}

// Close stops the cleanup loop.
func (rl *RateLimits) Close() {
	rl.once.Do(func() { close(rl.stop) })
}

// GeneralMiddleware applies the general limit, skipping health and metrics endpoints.
func (rl *RateLimits) GeneralMiddleware() fiber.Handler {
	return func(c *fiber.Ctx) error {
		if rl.disabled {
			return c.Next()
		}
		path := c.Path()
		if path == "/health" || path == "/metrics" || strings.HasPrefix(path, "/ws/") {
			return c.Next()
		}

		if !rl.General.Allow(c.IP()) {
			return c.Status(fiber.StatusTooManyRequests).JSON(fiber.Map{
				"success": false,
				"error":   "Rate limit exceeded. Please try again later.",
			})
		}
		return c.Next()
	}
}

// AuthMiddleware applies the stricter limit to sign-in endpoints.
func (rl *RateLimits) AuthMiddleware() fiber.Handler {
	return func(c *fiber.Ctx) error {
		if rl.disabled {
			return c.Next()
		}
		if !rl.Auth.Allow(c.IP()) {
			return c.Status(fiber.StatusTooManyRequests).JSON(fiber.Map{
				"success": false,
				"error":   "Too many authentication attempts. Please try again later.",
			})
		}
		return c.Next()
	}
}
