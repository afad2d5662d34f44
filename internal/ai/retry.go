package ai

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math/rand"
	"net"
	"net/http"
	"strconv"
	"time"
)

type retryPolicy struct {
	max      int
	base     time.Duration
	maxDelay time.Duration
}

// newRetryPolicy fills zero values with the given defaults.
func newRetryPolicy(max int, base, maxDelay time.Duration, defMax int, defBase, defMaxDelay time.Duration) retryPolicy {
	if max <= 0 {
		max = defMax
	}
	if base <= 0 {
		base = defBase
	}
	if maxDelay <= 0 {
		maxDelay = defMaxDelay
	}
	return retryPolicy{max: max, base: base, maxDelay: maxDelay}
}

func (p retryPolicy) next(d time.Duration) time.Duration {
	d *= 2
	if d > p.maxDelay {
		return p.maxDelay
	}
	return d
}

// sleepCtx waits for d or until ctx is done.
func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
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

func isRetryableNetErr(err error) bool {
	var nerr net.Error
	if errors.As(err, &nerr) && nerr.Timeout() {
		return true
	}
	return errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF)
}

// parseRetryAfterSeconds tries to interpret Retry-After header value as seconds or HTTP date.
func parseRetryAfterSeconds(v string) (int, error) {
	if s, err := strconv.Atoi(v); err == nil {
		if s < 0 {
			s = 0
		}
		return s, nil
	}
	if t, err := http.ParseTime(v); err == nil {
		d := time.Until(t)
		if d < 0 {
			d = 0
		}
		return int(d.Seconds()), nil
	}
	return 0, fmt.Errorf("invalid Retry-After: %q", v)
}

// withJitter returns a backoff duration with +/- 20% jitter applied.
func withJitter(d time.Duration) time.Duration {
	if d <= 0 {
		return 500 * time.Millisecond
	}
	f := 0.8 + rand.Float64()*0.4
	out := time.Duration(float64(d) * f)
	if out <= 0 {
		return d
	}
	return out
}
