package retry

import (
	"context"
	"errors"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/run-bigpig/traceai/pkg/logging"
)

// Executor runs operations under a retry policy
type Executor struct {
	policy *Policy
	logger logging.Logger
}

// NewExecutor creates an executor for the given policy. A nil policy uses NewPolicy defaults.
func NewExecutor(policy *Policy, logger logging.Logger) *Executor {
	if policy == nil {
		policy = NewPolicy()
	}
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Executor{
		policy: policy,
		logger: logger,
	}
}

// Permanent marks err as not worth retrying
func Permanent(err error) error {
	return backoff.Permanent(err)
}

// Do runs op until it succeeds, returns a permanent error, the attempts are
// exhausted or ctx is done. The last error of op is returned unchanged.
func (e *Executor) Do(ctx context.Context, op func(ctx context.Context) error) error {
	attempt := 0
	notify := func(err error, wait time.Duration) {
		e.logger.Warn(ctx, "Retrying operation", map[string]interface{}{
			"attempt": attempt,
			"wait":    wait.String(),
			"error":   err.Error(),
		})
	}

	err := backoff.RetryNotify(func() error {
		attempt++
		return op(ctx)
	}, e.backOff(ctx), notify)

	var permanent *backoff.PermanentError
	if errors.As(err, &permanent) {
		return permanent.Err
	}
	return err
}

func (e *Executor) backOff(ctx context.Context) backoff.BackOff {
	exponentialBackoff := backoff.NewExponentialBackOff()
	exponentialBackoff.InitialInterval = e.policy.InitialInterval
	exponentialBackoff.Multiplier = e.policy.Multiplier
	exponentialBackoff.MaxInterval = e.policy.MaxInterval
	exponentialBackoff.RandomizationFactor = e.policy.Jitter
	exponentialBackoff.MaxElapsedTime = 0
	exponentialBackoff.Reset()

	var b backoff.BackOff = exponentialBackoff
	if e.policy.MaxAttempts > 0 {
		b = backoff.WithMaxRetries(b, uint64(e.policy.MaxAttempts-1))
	}
	return backoff.WithContext(b, ctx)
}
