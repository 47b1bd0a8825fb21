package retry

import (
	"context"
	"math/rand/v2"
	"time"
)

// Policy controls how many times an operation is attempted and how long to
// wait between attempts. The delay before retry n is BaseDelay * 2^(n-1),
// scaled by a random factor in [0.8, 1.2) when Jitter is enabled.
type Policy struct {
	Tries     int
	BaseDelay time.Duration
	Jitter    bool
}

var DefaultPolicy = Policy{Tries: 3, BaseDelay: 300 * time.Millisecond, Jitter: true}

// Do runs op until it succeeds or Tries consecutive attempts have failed,
// returning the last error. Backoff sleeps are context-aware: if ctx is
// cancelled while waiting, Do returns ctx.Err() without further attempts.
func (p Policy) Do(ctx context.Context, op func(context.Context) error) error {
	tries := p.Tries
	if tries < 1 {
		tries = 1
	}

	var err error
	for attempt := 1; attempt <= tries; attempt++ {
		if err = op(ctx); err == nil {
			return nil
		}
		if attempt == tries {
			break
		}
		if serr := sleep(ctx, p.delay(attempt)); serr != nil {
			return serr
		}
	}
	return err
}

// DoValue is Do for operations that return a value.
func DoValue[T any](ctx context.Context, p Policy, op func(context.Context) (T, error)) (T, error) {
	var val T
	err := p.Do(ctx, func(ctx context.Context) error {
		v, opErr := op(ctx)
		if opErr != nil {
			return opErr
		}
		val = v
		return nil
	})
	if err != nil {
		var zero T
		return zero, err
	}
	return val, nil
}

func (p Policy) delay(attempt int) time.Duration {
	d := p.BaseDelay << (attempt - 1)
	if p.Jitter {
		d = time.Duration(float64(d) * (0.8 + 0.4*rand.Float64()))
	}
	return d
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
