package api

import (
	"log/slog"
	"net/http"
	"sync"
	"time"

	"locker/internal/server/service"
	"locker/internal/server/session"

	"github.com/labstack/echo/v4"
	"golang.org/x/time/rate"
)

// adminKey marks a request as carrying a live admin session.
const adminKey = "admin"

// visitor tracks the rate limit state for a single IP.
type visitor struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// RateLimiter is a per-IP token-bucket rate limiter.
type RateLimiter struct {
	mu        sync.Mutex
	visitors  map[string]*visitor
	limit     rate.Limit
	burst     int
	lastPrune time.Time
}

// NewRateLimiter creates a rate limiter with the given rate (requests/sec) and burst size.
// A non-positive rate disables limiting.
func NewRateLimiter(rps float64, burst int) *RateLimiter {
	limit := rate.Limit(rps)
	if rps <= 0 {
		limit = rate.Inf
	}
	return &RateLimiter{
		visitors:  make(map[string]*visitor),
		limit:     limit,
		burst:     burst,
		lastPrune: time.Now(),
	}
}

// Middleware returns an echo middleware function that enforces rate limits.
func (rl *RateLimiter) Middleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			ip := c.RealIP()
			if !rl.allow(ip) {
				slog.Warn("rate limit exceeded", "ip", ip, "path", c.Path())
				return c.JSON(http.StatusTooManyRequests, echo.Map{
					"success": false,
					"message": "rate limit exceeded, try again later",
				})
			}
			return next(c)
		}
	}
}

func (rl *RateLimiter) allow(ip string) bool {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := time.Now()

	// Drop visitors idle for 10 minutes, checked at most every 5 minutes.
	if now.Sub(rl.lastPrune) > 5*time.Minute {
		cutoff := now.Add(-10 * time.Minute)
		for addr, v := range rl.visitors {
			if v.lastSeen.Before(cutoff) {
				delete(rl.visitors, addr)
			}
		}
		rl.lastPrune = now
	}

	v, exists := rl.visitors[ip]
	if !exists {
		v = &visitor{limiter: rate.NewLimiter(rl.limit, rl.burst)}
		rl.visitors[ip] = v
	}
	v.lastSeen = now

	return v.limiter.AllowN(now, 1)
}

// RequestLogger returns an echo middleware that logs requests using slog.
func RequestLogger() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()

			err := next(c)
			if err != nil {
				c.Error(err)
			}

			req := c.Request()
			res := c.Response()

			slog.Info("request",
				"method", req.Method,
				"path", req.URL.Path,
				"status", res.Status,
				"latency_ms", time.Since(start).Milliseconds(),
				"ip", c.RealIP(),
				"user_agent", req.UserAgent(),
				"bytes_out", res.Size,
			)

			return nil
		}
	}
}

// SessionLoader marks the request as admin when its session cookie maps to a
// live session.
func SessionLoader(sessions *session.Manager) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if cookie, err := c.Cookie(session.CookieName); err == nil && sessions.Valid(cookie.Value) {
				c.Set(adminKey, true)
			}
			return next(c)
		}
	}
}

// RequireAdmin redirects to the login page unless SessionLoader marked the
// request as admin.
func RequireAdmin() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if !isAdmin(c) {
				slog.Debug("admin route refused", "path", c.Request().URL.Path, "error", service.ErrNotAuthenticated)
				return c.Redirect(http.StatusFound, "/admin/login")
			}
			return next(c)
		}
	}
}

// RequireInitialized redirects to first-run setup until an admin password exists.
func RequireInitialized(locker *service.Locker) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if !locker.IsInitialized() {
				return c.Redirect(http.StatusFound, "/initialize")
			}
			return next(c)
		}
	}
}

func isAdmin(c echo.Context) bool {
	admin, _ := c.Get(adminKey).(bool)
	return admin
}
