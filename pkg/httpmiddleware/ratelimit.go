package httpmiddleware

import (
	"context"
	"math"
	"net"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// RateLimitConfig configures the per-client token bucket limiter.
type RateLimitConfig struct {
	// Max requests per Window. The bucket holds Max tokens and refills at
	// Max/Window.
	Max    int
	Window time.Duration
	// KeyFunc identifies the client. Defaults to the client IP.
	KeyFunc func(*http.Request) string
}

type client struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// Limiter tracks one token bucket per client key.
type Limiter struct {
	cfg     RateLimitConfig
	every   rate.Limit
	mu      sync.Mutex
	clients map[string]*client
	now     func() time.Time
}

// NewLimiter creates a Limiter. Non-positive Max or Window disable limiting.
func NewLimiter(cfg RateLimitConfig) *Limiter {
	if cfg.KeyFunc == nil {
		cfg.KeyFunc = ClientIP
	}
	l := &Limiter{
		cfg:     cfg,
		every:   rate.Inf,
		clients: make(map[string]*client),
		now:     time.Now,
	}
	if cfg.Max > 0 && cfg.Window > 0 {
		l.every = rate.Every(cfg.Window / time.Duration(cfg.Max))
	}
	return l
}

// Allow takes a token for key. When denied it returns how long to wait.
func (l *Limiter) Allow(key string) (remaining int, retryAfter time.Duration, ok bool) {
	if l.every == rate.Inf {
		return l.cfg.Max, 0, true
	}
	now := l.now()

	l.mu.Lock()
	c, found := l.clients[key]
	if !found {
		c = &client{limiter: rate.NewLimiter(l.every, l.cfg.Max)}
		l.clients[key] = c
	}
	c.lastSeen = now
	l.mu.Unlock()

	r := c.limiter.ReserveN(now, 1)
	if delay := r.DelayFrom(now); delay > 0 {
		r.CancelAt(now)
		return 0, delay, false
	}
	remaining = int(math.Floor(c.limiter.TokensAt(now)))
	if remaining < 0 {
		remaining = 0
	}
	return remaining, 0, true
}

// Evict drops clients idle for longer than the window.
func (l *Limiter) Evict() int {
	cutoff := l.now().Add(-l.cfg.Window)

	l.mu.Lock()
	defer l.mu.Unlock()

	var n int
	for key, c := range l.clients {
		if c.lastSeen.Before(cutoff) {
			delete(l.clients, key)
			n++
		}
	}
	return n
}

// RunEviction calls Evict every window until ctx is done.
func (l *Limiter) RunEviction(ctx context.Context) {
	if l.cfg.Window <= 0 {
		return
	}
	ticker := time.NewTicker(l.cfg.Window)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			l.Evict()
		}
	}
}

// Middleware rejects clients over the limit with 429 and a JSON error.
// Every response carries X-RateLimit-Limit and X-RateLimit-Remaining.
func (l *Limiter) Middleware() Middleware {
	limit := strconv.Itoa(l.cfg.Max)
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			remaining, retryAfter, ok := l.Allow(l.cfg.KeyFunc(r))

			w.Header().Set("X-RateLimit-Limit", limit)
			w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(remaining))
			if !ok {
				w.Header().Set("Retry-After", strconv.Itoa(int(math.Ceil(retryAfter.Seconds()))))
				writeError(w, http.StatusTooManyRequests, "rate limit exceeded")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// RateLimit returns the middleware of a new Limiter and evicts idle clients
// in the background until ctx is done.
func RateLimit(ctx context.Context, cfg RateLimitConfig) Middleware {
	l := NewLimiter(cfg)
	go l.RunEviction(ctx)
	return l.Middleware()
}

// ClientIP returns the first X-Forwarded-For hop, X-Real-IP or the remote
// address host.
func ClientIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		first, _, _ := strings.Cut(xff, ",")
		return strings.TrimSpace(first)
	}
	if xri := r.Header.Get("X-Real-IP"); xri != "" {
		return xri
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
