package usecase

import (
	"context"
	"errors"
	"time"
)

// errRestartAbandoned stops a restart loop without counting as a failure.
var errRestartAbandoned = errors.New("restart no longer wanted")

// retryPolicy is an exponential backoff. MaxAttempts <= 0 retries until the
// context ends.
type retryPolicy struct {
	MaxAttempts  int
	InitialDelay time.Duration
	MaxDelay     time.Duration
	Multiplier   float64
}

// withRetry runs fn until it succeeds, returns errRestartAbandoned, the
// context ends or the attempts run out. The first attempt runs immediately.
func withRetry(ctx context.Context, policy retryPolicy, fn func(attempt int) error) error {
	delay := policy.InitialDelay
	if delay <= 0 {
		delay = 100 * time.Millisecond
	}
	if policy.Multiplier < 1 {
		policy.Multiplier = 2
	}

	var lastErr error
	for attempt := 1; policy.MaxAttempts <= 0 || attempt <= policy.MaxAttempts; attempt++ {
		err := fn(attempt)
		if err == nil {
			return nil
		}
		if errors.Is(err, errRestartAbandoned) || errors.Is(err, context.Canceled) {
			return err
		}
		lastErr = err

		if attempt == policy.MaxAttempts {
			break
		}

		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}

		delay = time.Duration(float64(delay) * policy.Multiplier)
		if policy.MaxDelay > 0 && delay > policy.MaxDelay {
			delay = policy.MaxDelay
		}
	}
	return lastErr
}
