package util

import (
	"context"
	"errors"
	"time"
)

// RetryErrWithContext calls fn up to maxTries times until it returns nil,
// without pausing between attempts. If maxTries <= 0, it defaults to 1.
func RetryErrWithContext(ctx context.Context, maxTries int, fn func(context.Context) error) error {
	return RetryErrWithBackoff(ctx, maxTries, 0, fn)
}

// RetryErrWithBackoff calls fn up to maxTries times until it returns nil.
// The pause between attempts starts at base and doubles after every failure;
// a base of zero retries immediately. Context errors, from ctx or returned
// by fn, end the loop at once. Otherwise the last error is returned.
func RetryErrWithBackoff(ctx context.Context, maxTries int, base time.Duration, fn func(context.Context) error) error {
	if maxTries <= 0 {
		maxTries = 1
	}

	wait := base
	var lastErr error
	for attempt := 1; attempt <= maxTries; attempt++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		err := fn(ctx)
		if err == nil {
			return nil
		}
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return err
		}
		lastErr = err
		if attempt == maxTries || wait <= 0 {
			continue
		}

		t := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			t.Stop()
			return ctx.Err()
		case <-t.C:
		}
		wait *= 2
	}
	return lastErr
}
