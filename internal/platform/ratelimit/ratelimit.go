package ratelimit

import (
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/corvusHold/courier/internal/metrics"
)

// TenantHeader carries the calling tenant on send requests.
const TenantHeader = "X-Tenant-ID"

// Policy defines a fixed-window rate limit: at most Limit requests per Window per key.
type Policy struct {
	// Name identifies the limited endpoint in logs and metrics (e.g. "messages:email").
	Name   string
	Window time.Duration
	Limit  int
	// Optional per-request overrides, typically read from tenant settings.
	WindowFunc func(echo.Context) time.Duration
	LimitFunc  func(echo.Context) int
	// Key builds the bucket key for this request.
	Key func(echo.Context) string
}

// Store is a shared fixed-window counter store.
type Store interface {
	// Allow counts one request for key and reports whether it fits the window.
	// When it does not, retryAfterSec is the number of seconds until the window resets.
	Allow(c echo.Context, key string, limit int, window time.Duration) (allowed bool, retryAfterSec int, err error)
}

func (p *Policy) normalize() {
	if p.Window <= 0 {
		p.Window = time.Minute
	}
	if p.Limit <= 0 {
		p.Limit = 60
	}
}

func (p Policy) effective(c echo.Context) (string, int, time.Duration) {
	key := "global"
	if p.Key != nil {
		key = p.Key(c)
	}
	win, lim := p.Window, p.Limit
	if p.WindowFunc != nil {
		if w := p.WindowFunc(c); w > 0 {
			win = w
		}
	}
	if p.LimitFunc != nil {
		if l := p.LimitFunc(c); l > 0 {
			lim = l
		}
	}
	return key, lim, win
}

func reject(c echo.Context, p Policy, key string, lim int, win time.Duration, retryAfter int) error {
	src := "ip"
	if strings.Contains(key, ":ten:") {
		src = "tenant"
	}
	metrics.IncRateLimitExceeded(p.Name, src)
	c.Logger().Warnf("rate limit exceeded: endpoint=%s key=%s limit=%d window=%s retry_after=%ds", p.Name, key, lim, win, retryAfter)
	if retryAfter > 0 {
		c.Response().Header().Set("Retry-After", strconv.Itoa(retryAfter))
	}
	return c.JSON(http.StatusTooManyRequests, map[string]string{"error": "rate limit exceeded"})
}

// Middleware enforces p with a process-local store. Prefer MiddlewareWithStore when
// more than one instance serves traffic.
func Middleware(p Policy) echo.MiddlewareFunc {
	p.normalize()
	type bucket struct {
		start time.Time
		count int
	}
	var (
		mu      sync.Mutex
		buckets = make(map[string]*bucket)
	)
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			key, lim, win := p.effective(c)
			now := time.Now()
			mu.Lock()
			b, ok := buckets[key]
			if !ok || now.Sub(b.start) >= win {
				buckets[key] = &bucket{start: now, count: 1}
				mu.Unlock()
				return next(c)
			}
			if b.count < lim {
				b.count++
				mu.Unlock()
				return next(c)
			}
			retryAfter := int((win - now.Sub(b.start) + time.Second - 1) / time.Second)
			mu.Unlock()
			return reject(c, p, key, lim, win, retryAfter)
		}
	}
}

// MiddlewareWithStore enforces p against a shared Store. Store errors fail open.
func MiddlewareWithStore(p Policy, s Store) echo.MiddlewareFunc {
	p.normalize()
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			key, lim, win := p.effective(c)
			allowed, retryAfter, err := s.Allow(c, key, lim, win)
			if err != nil {
				c.Logger().Errorf("rate limit store: %v", err)
				return next(c)
			}
			if allowed {
				return next(c)
			}
			return reject(c, p, key, lim, win, retryAfter)
		}
	}
}

// KeyTenantOrIP buckets by the X-Tenant-ID header (or ?tenant_id) and falls back to the
// client IP. prefix separates endpoints.
func KeyTenantOrIP(prefix string) func(echo.Context) string {
	return func(c echo.Context) string {
		ten := strings.TrimSpace(c.Request().Header.Get(TenantHeader))
		if ten == "" {
			ten = c.QueryParam("tenant_id")
		}
		if ten == "" {
			return prefix + ":ip:" + c.RealIP()
		}
		return prefix + ":ten:" + ten
	}
}
