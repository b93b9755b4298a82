package health

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/go-faster/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type pingerFunc func(ctx context.Context) error

func (f pingerFunc) Ping(ctx context.Context) error { return f(ctx) }

func probe(t *testing.T, h *Health, kind Kind) *httptest.ResponseRecorder {
	t.Helper()
	w := httptest.NewRecorder()
	h.Handler(kind).ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, "application/json", w.Header().Get("Content-Type"))
	return w
}

func TestLiveness_Passing(t *testing.T) {
	h := New()
	h.Register(Check{Name: "goroutines", Kind: Liveness, Func: GoroutineCountCheck(1 << 20)})
	h.RunOnce(context.Background())

	w := probe(t, h, Liveness)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"status":"ok"}`, w.Body.String())
}

func TestLiveness_FailureThreshold(t *testing.T) {
	h := New()
	h.Register(Check{
		Name: "db",
		Kind: Liveness,
		Func: func(context.Context) error { return errors.New("connection refused") },
	})
	ctx := context.Background()

	h.RunOnce(ctx)
	h.RunOnce(ctx)
	assert.Equal(t, http.StatusOK, probe(t, h, Liveness).Code, "below threshold")

	h.RunOnce(ctx)
	w := probe(t, h, Liveness)
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.JSONEq(t, `{"status":"unhealthy","checks":{"db":"connection refused"}}`, w.Body.String())
}

func TestCheck_RecoversOnSuccess(t *testing.T) {
	var failing atomic.Bool
	failing.Store(true)

	h := New()
	h.SetReady(true)
	h.Register(Check{
		Name:             "postgres",
		Kind:             Readiness,
		FailureThreshold: 1,
		Func: PingCheck(pingerFunc(func(context.Context) error {
			if failing.Load() {
				return errors.New("dial tcp: refused")
			}
			return nil
		})),
	})
	ctx := context.Background()

	h.RunOnce(ctx)
	assert.False(t, h.Ready())
	assert.Equal(t, http.StatusServiceUnavailable, probe(t, h, Readiness).Code)

	failing.Store(false)
	h.RunOnce(ctx)
	assert.True(t, h.Ready())
	assert.Equal(t, http.StatusOK, probe(t, h, Readiness).Code)
}

func TestReadiness_Gate(t *testing.T) {
	h := New()
	w := probe(t, h, Readiness)
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.Contains(t, w.Body.String(), "service is not ready")

	h.SetReady(true)
	assert.Equal(t, http.StatusOK, probe(t, h, Readiness).Code)
	assert.True(t, h.Ready())
}

func TestReadiness_IgnoresLivenessChecks(t *testing.T) {
	h := New()
	h.SetReady(true)
	h.Register(Check{
		Name:             "goroutines",
		Kind:             Liveness,
		FailureThreshold: 1,
		Func:             GoroutineCountCheck(0),
	})
	h.RunOnce(context.Background())

	assert.Equal(t, http.StatusOK, probe(t, h, Readiness).Code)
	assert.Equal(t, http.StatusServiceUnavailable, probe(t, h, Liveness).Code)
}

func TestCheck_Timeout(t *testing.T) {
	h := New()
	h.Register(Check{
		Name:             "slow",
		Kind:             Liveness,
		Timeout:          10 * time.Millisecond,
		FailureThreshold: 1,
		Func: func(ctx context.Context) error {
			<-ctx.Done()
			return ctx.Err()
		},
	})
	h.RunOnce(context.Background())

	w := probe(t, h, Liveness)
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.Contains(t, w.Body.String(), "deadline exceeded")
}

func TestStartStop(t *testing.T) {
	var runs atomic.Int32
	h := New()
	h.Register(Check{Name: "count", Kind: Liveness, Func: func(context.Context) error {
		runs.Add(1)
		return nil
	}})

	h.Start(context.Background(), 5*time.Millisecond)
	require.Eventually(t, func() bool { return runs.Load() >= 3 }, time.Second, time.Millisecond)

	h.Stop()
	h.Stop()
	time.Sleep(20 * time.Millisecond)
	stopped := runs.Load()
	time.Sleep(20 * time.Millisecond)
	assert.LessOrEqual(t, runs.Load(), stopped+1)
}
