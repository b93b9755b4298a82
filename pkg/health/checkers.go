package health

import (
	"context"
	"runtime"

	"github.com/go-faster/errors"
)

// Pinger is implemented by database pools, clients and brokers.
type Pinger interface {
	Ping(ctx context.Context) error
}

// PingCheck checks a dependency by pinging it.
func PingCheck(p Pinger) CheckFunc {
	return func(ctx context.Context) error {
		if err := p.Ping(ctx); err != nil {
			return errors.Wrap(err, "ping")
		}
		return nil
	}
}

// GoroutineCountCheck fails when more than threshold goroutines are running.
func GoroutineCountCheck(threshold int) CheckFunc {
	return func(context.Context) error {
		if n := runtime.NumGoroutine(); n > threshold {
			return errors.Errorf("goroutine count %d exceeds threshold %d", n, threshold)
		}
		return nil
	}
}
