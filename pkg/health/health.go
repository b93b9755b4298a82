// Package health serves liveness and readiness probes backed by periodic
// checks. A check flips to unhealthy only after FailureThreshold consecutive
// failures and back to healthy on the first success.
package health

import (
	"context"
	"net/http"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/go-faster/jx"
	"golang.org/x/sync/errgroup"
)

// CheckFunc returns nil when the checked dependency is healthy.
type CheckFunc func(ctx context.Context) error

// Kind selects the probe a check contributes to.
type Kind int

const (
	Liveness Kind = iota
	Readiness
)

// Check describes a registered check.
type Check struct {
	Name string
	Kind Kind
	Func CheckFunc
	// Timeout bounds a single run. Defaults to 5s.
	Timeout time.Duration
	// FailureThreshold defaults to 3.
	FailureThreshold int
}

type state struct {
	Check

	healthy atomic.Bool
	lastErr atomic.Pointer[string]
	fails   int // owned by the runner goroutine
}

func (s *state) run(ctx context.Context) {
	ctx, cancel := context.WithTimeout(ctx, s.Timeout)
	defer cancel()

	if err := s.Func(ctx); err != nil {
		msg := err.Error()
		s.lastErr.Store(&msg)
		s.fails++
		if s.fails >= s.FailureThreshold {
			s.healthy.Store(false)
		}
		return
	}
	s.lastErr.Store(nil)
	s.fails = 0
	s.healthy.Store(true)
}

func (s *state) failure() string {
	if p := s.lastErr.Load(); p != nil {
		return *p
	}
	return "check is unhealthy"
}

// Health aggregates checks and serves their status.
type Health struct {
	ready atomic.Bool

	mu     sync.RWMutex
	checks []*state
	cancel context.CancelFunc
}

// New returns a Health that reports not-ready until SetReady(true).
func New() *Health {
	return &Health{}
}

// Register adds a check. Checks start healthy. Register before Start.
func (h *Health) Register(c Check) {
	if c.Timeout <= 0 {
		c.Timeout = 5 * time.Second
	}
	if c.FailureThreshold <= 0 {
		c.FailureThreshold = 3
	}
	s := &state{Check: c}
	s.healthy.Store(true)

	h.mu.Lock()
	h.checks = append(h.checks, s)
	h.mu.Unlock()
}

// RunOnce runs every check concurrently and waits for all of them.
func (h *Health) RunOnce(ctx context.Context) {
	var g errgroup.Group
	for _, s := range h.snapshot() {
		g.Go(func() error {
			s.run(ctx)
			return nil
		})
	}
	_ = g.Wait()
}

// Start runs all checks immediately and then every interval until Stop or
// ctx cancellation.
func (h *Health) Start(ctx context.Context, interval time.Duration) {
	ctx, cancel := context.WithCancel(ctx)
	h.mu.Lock()
	h.cancel = cancel
	h.mu.Unlock()

	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			h.RunOnce(ctx)
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
			}
		}
	}()
}

// Stop halts background checks. It is safe to call more than once.
func (h *Health) Stop() {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.cancel != nil {
		h.cancel()
		h.cancel = nil
	}
}

// SetReady sets the manual readiness gate, closed during startup and
// shutdown.
func (h *Health) SetReady(ready bool) {
	h.ready.Store(ready)
}

// Ready reports whether the gate is open and all readiness checks pass.
func (h *Health) Ready() bool {
	return h.ready.Load() && len(h.failures(Readiness)) == 0
}

// Handler serves the probe of kind: 200 {"status":"ok"} or
// 503 {"status":"unhealthy","checks":{name: error}}.
func (h *Health) Handler(kind Kind) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		failures := h.failures(kind)
		if kind == Readiness && !h.ready.Load() {
			failures["_readiness"] = "service is not ready"
		}
		writeStatus(w, failures)
	})
}

func (h *Health) snapshot() []*state {
	h.mu.RLock()
	defer h.mu.RUnlock()
	out := make([]*state, len(h.checks))
	copy(out, h.checks)
	return out
}

func (h *Health) failures(kind Kind) map[string]string {
	failures := make(map[string]string)
	for _, s := range h.snapshot() {
		if s.Kind == kind && !s.healthy.Load() {
			failures[s.Name] = s.failure()
		}
	}
	return failures
}

func writeStatus(w http.ResponseWriter, failures map[string]string) {
	e := jx.GetEncoder()
	defer jx.PutEncoder(e)

	status, code := "ok", http.StatusOK
	if len(failures) > 0 {
		status, code = "unhealthy", http.StatusServiceUnavailable
	}

	names := make([]string, 0, len(failures))
	for name := range failures {
		names = append(names, name)
	}
	sort.Strings(names)

	e.Obj(func(e *jx.Encoder) {
		e.Field("status", func(e *jx.Encoder) { e.Str(status) })
		if len(names) == 0 {
			return
		}
		e.Field("checks", func(e *jx.Encoder) {
			e.Obj(func(e *jx.Encoder) {
				for _, name := range names {
					e.Field(name, func(e *jx.Encoder) { e.Str(failures[name]) })
				}
			})
		})
	})

	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(code)
	_, _ = w.Write(e.Bytes())
}
