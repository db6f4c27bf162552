package restclient

import (
	"context"
	"errors"
	"slices"
	"time"

	"github.com/cenkalti/backoff/v4"
)

// BackoffStrategy selects how the delay between attempts grows.
type BackoffStrategy string

const (
	// BackoffConstant waits InitialDelay between every attempt.
	BackoffConstant BackoffStrategy = "constant"
	// BackoffExponential doubles the delay each attempt, randomized and
	// capped at MaxDelay.
	BackoffExponential BackoffStrategy = "exponential"
)

const (
	// DefaultInitialDelay is the starting delay between attempts.
	DefaultInitialDelay = 1 * time.Second
	// DefaultMaxDelay caps the delay between attempts.
	DefaultMaxDelay = 30 * time.Second
)

// DefaultRetryableKinds are the failure kinds considered transient.
var DefaultRetryableKinds = []Kind{NoConnectivity, Timeout}

// RetryPolicy drives repeated attempts of an operation while the failure
// kind stays transient and attempts remain.
type RetryPolicy struct {
	// MaxAttempts is the total number of invocations, not extra retries:
	// 3 means one initial attempt plus up to two retries.
	MaxAttempts int `validate:"min=1"`
	// RetryableKinds lists the kinds eligible for retry. Nil means
	// DefaultRetryableKinds. BadRequest, Unauthorized and MalformedResponse
	// are never retried even if listed here.
	RetryableKinds []Kind
	Strategy       BackoffStrategy `validate:"omitempty,oneof=constant exponential"`
	InitialDelay   time.Duration   `validate:"min=0"`
	MaxDelay       time.Duration   `validate:"min=0"`
	// Notify, when set, is called before each backoff wait.
	Notify func(err error, attempt int, next time.Duration)
}

// DefaultRetryPolicy performs a single attempt. Widen it with MaxAttempts or
// Builder.WithRetry.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxAttempts:    1,
		RetryableKinds: DefaultRetryableKinds,
		Strategy:       BackoffExponential,
		InitialDelay:   DefaultInitialDelay,
		MaxDelay:       DefaultMaxDelay,
	}
}

// retryState tracks one operation's progress through the policy. It is
// exclusively owned by that operation and discarded when it terminates.
type retryState struct {
	attempt int
	started time.Time
	lastErr error
}

// WithRetry invokes op until it succeeds, the failure kind stops being
// retryable, or attempts are exhausted — whichever comes first. The context
// is consulted before every attempt and during every backoff wait: an
// expired enclosing deadline returns Timeout, caller cancellation returns
// the cancellation-classified error immediately.
func WithRetry[T any](ctx context.Context, policy RetryPolicy, op func(ctx context.Context) (T, error)) (T, error) {
	var zero T

	maxAttempts := policy.MaxAttempts
	if maxAttempts < 1 {
		maxAttempts = 1
	}
	kinds := policy.RetryableKinds
	if kinds == nil {
		kinds = DefaultRetryableKinds
	}

	next := policy.delayFunc()
	state := &retryState{started: time.Now()}

	for {
		if err := ctx.Err(); err != nil {
			return zero, classifyInterrupt(err)
		}

		state.attempt++
		result, err := op(ctx)
		if err == nil {
			return result, nil
		}
		state.lastErr = err

		if state.attempt >= maxAttempts || !isRetryableKind(err, kinds) {
			return zero, state.lastErr
		}

		wait := next()
		if policy.Notify != nil {
			policy.Notify(err, state.attempt, wait)
		}
		if err := sleepContext(ctx, wait); err != nil {
			return zero, classifyInterrupt(err)
		}
	}
}

// delayFunc returns a generator for successive backoff delays.
func (p RetryPolicy) delayFunc() func() time.Duration {
	initial := p.InitialDelay
	if initial <= 0 {
		initial = DefaultInitialDelay
	}
	maxDelay := p.MaxDelay
	if maxDelay <= 0 {
		maxDelay = DefaultMaxDelay
	}

	if p.Strategy == BackoffConstant {
		return func() time.Duration { return initial }
	}

	exp := backoff.NewExponentialBackOff()
	exp.InitialInterval = initial
	exp.Multiplier = 2
	exp.MaxInterval = maxDelay
	// Attempts bound the loop; no wall-clock budget on the schedule itself.
	exp.MaxElapsedTime = 0
	exp.Reset()

	return func() time.Duration {
		d := exp.NextBackOff()
		if d == backoff.Stop || d > maxDelay {
			d = maxDelay
		}
		return d
	}
}

// isRetryableKind reports whether the error's kind is eligible for retry.
// BadRequest, Unauthorized and MalformedResponse are terminal by contract.
func isRetryableKind(err error, kinds []Kind) bool {
	kind := KindOf(err)
	switch kind {
	case BadRequest, Unauthorized, MalformedResponse:
		return false
	}
	return slices.Contains(kinds, kind)
}

// classifyInterrupt maps a context error observed between attempts onto the
// taxonomy: deadline expiry is Timeout, cancellation is the
// cancellation-classified Unknown.
func classifyInterrupt(err error) *Error {
	if errors.Is(err, context.DeadlineExceeded) {
		return NewTimeout("deadline elapsed while retrying", 0)
	}
	return NewUnknown("operation canceled", context.Canceled)
}

// sleepContext waits for d or until ctx is done, whichever comes first.
func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer func() {
		if !timer.Stop() {
			select {
			case <-timer.C:
			default:
			}
		}
	}()

	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
