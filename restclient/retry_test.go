package restclient

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// quickRetry returns a policy with delays short enough for tests.
func quickRetry(maxAttempts int, kinds ...Kind) RetryPolicy {
	policy := RetryPolicy{
		MaxAttempts:  maxAttempts,
		Strategy:     BackoffConstant,
		InitialDelay: time.Millisecond,
		MaxDelay:     5 * time.Millisecond,
	}
	if len(kinds) > 0 {
		policy.RetryableKinds = kinds
	}
	return policy
}

func TestWithRetrySuccess(t *testing.T) {
	t.Run("first attempt succeeds", func(t *testing.T) {
		calls := 0
		got, err := WithRetry(context.Background(), quickRetry(3), func(context.Context) (string, error) {
			calls++
			return "ok", nil
		})

		require.NoError(t, err)
		assert.Equal(t, "ok", got)
		assert.Equal(t, 1, calls)
	})

	t.Run("recovers after transient failures", func(t *testing.T) {
		calls := 0
		got, err := WithRetry(context.Background(), quickRetry(3), func(context.Context) (string, error) {
			calls++
			if calls < 3 {
				return "", NewTimeout("request deadline elapsed", time.Millisecond)
			}
			return "ok", nil
		})

		require.NoError(t, err)
		assert.Equal(t, "ok", got)
		assert.Equal(t, 3, calls)
	})
}

func TestWithRetryAttemptBudget(t *testing.T) {
	t.Run("max attempts counts total invocations", func(t *testing.T) {
		calls := 0
		_, err := WithRetry(context.Background(), quickRetry(3), func(context.Context) (*Response, error) {
			calls++
			return nil, NewNoConnectivity("connection failed", nil)
		})

		require.Error(t, err)
		assert.True(t, IsKind(err, NoConnectivity))
		assert.Equal(t, 3, calls)
	})

	t.Run("single attempt by default", func(t *testing.T) {
		calls := 0
		_, err := WithRetry(context.Background(), DefaultRetryPolicy(), func(context.Context) (int, error) {
			calls++
			return 0, NewTimeout("request deadline elapsed", time.Millisecond)
		})

		require.Error(t, err)
		assert.Equal(t, 1, calls)
	})

	t.Run("zero max attempts clamps to one", func(t *testing.T) {
		calls := 0
		_, err := WithRetry(context.Background(), quickRetry(0), func(context.Context) (int, error) {
			calls++
			return 0, NewTimeout("request deadline elapsed", time.Millisecond)
		})

		require.Error(t, err)
		assert.Equal(t, 1, calls)
	})

	t.Run("exhaustion returns the last error", func(t *testing.T) {
		calls := 0
		_, err := WithRetry(context.Background(), quickRetry(2), func(context.Context) (int, error) {
			calls++
			if calls == 1 {
				return 0, NewNoConnectivity("first failure", nil)
			}
			return 0, NewTimeout("second failure", time.Millisecond)
		})

		require.Error(t, err)
		assert.True(t, IsKind(err, Timeout))
		assert.Contains(t, err.Error(), "second failure")
	})
}

func TestWithRetryKindGating(t *testing.T) {
	terminalKinds := []struct {
		name string
		err  *Error
	}{
		{name: "bad request", err: NewBadRequest(400, nil)},
		{name: "unauthorized", err: NewUnauthorized(401)},
		{name: "malformed response", err: NewMalformedResponse(errors.New("bad json"))},
	}

	for _, tt := range terminalKinds {
		t.Run(tt.name+" never retries even when listed", func(t *testing.T) {
			policy := quickRetry(5, tt.err.Kind())
			calls := 0
			_, err := WithRetry(context.Background(), policy, func(context.Context) (int, error) {
				calls++
				return 0, tt.err
			})

			require.Error(t, err)
			assert.Equal(t, 1, calls)
			assert.True(t, IsKind(err, tt.err.Kind()))
		})
	}

	t.Run("unlisted kind is not retried", func(t *testing.T) {
		calls := 0
		_, err := WithRetry(context.Background(), quickRetry(5), func(context.Context) (int, error) {
			calls++
			return 0, NewServerError(500, nil)
		})

		require.Error(t, err)
		assert.Equal(t, 1, calls)
	})

	t.Run("server error retries when listed", func(t *testing.T) {
		calls := 0
		got, err := WithRetry(context.Background(), quickRetry(3, ServerError), func(context.Context) (string, error) {
			calls++
			if calls < 2 {
				return "", NewServerError(500, nil)
			}
			return "ok", nil
		})

		require.NoError(t, err)
		assert.Equal(t, "ok", got)
		assert.Equal(t, 2, calls)
	})

	t.Run("unclassified error is not retried", func(t *testing.T) {
		calls := 0
		_, err := WithRetry(context.Background(), quickRetry(5), func(context.Context) (int, error) {
			calls++
			return 0, errors.New("plain failure")
		})

		require.Error(t, err)
		assert.Equal(t, 1, calls)
	})

	t.Run("nil kinds fall back to defaults", func(t *testing.T) {
		policy := quickRetry(2)
		policy.RetryableKinds = nil
		calls := 0
		_, err := WithRetry(context.Background(), policy, func(context.Context) (int, error) {
			calls++
			return 0, NewTimeout("request deadline elapsed", time.Millisecond)
		})

		require.Error(t, err)
		assert.Equal(t, 2, calls)
	})
}

func TestWithRetryContext(t *testing.T) {
	t.Run("pre-canceled context never invokes op", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		calls := 0
		_, err := WithRetry(ctx, quickRetry(3), func(context.Context) (int, error) {
			calls++
			return 0, nil
		})

		require.Error(t, err)
		assert.Equal(t, 0, calls)
		assert.True(t, IsCanceled(err))
		assert.True(t, IsKind(err, Unknown))
	})

	t.Run("cancel during backoff returns promptly", func(t *testing.T) {
		policy := RetryPolicy{
			MaxAttempts:  2,
			Strategy:     BackoffConstant,
			InitialDelay: 2 * time.Second,
		}

		ctx, cancel := context.WithCancel(context.Background())
		go func() {
			time.Sleep(50 * time.Millisecond)
			cancel()
		}()

		start := time.Now()
		calls := 0
		_, err := WithRetry(ctx, policy, func(context.Context) (int, error) {
			calls++
			return 0, NewNoConnectivity("connection failed", nil)
		})
		elapsed := time.Since(start)

		require.Error(t, err)
		assert.True(t, IsCanceled(err))
		assert.Equal(t, 1, calls)
		assert.Less(t, elapsed, 500*time.Millisecond, "cancellation must interrupt the backoff wait")
	})

	t.Run("deadline during backoff is timeout", func(t *testing.T) {
		policy := RetryPolicy{
			MaxAttempts:  2,
			Strategy:     BackoffConstant,
			InitialDelay: 2 * time.Second,
		}

		ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
		defer cancel()

		_, err := WithRetry(ctx, policy, func(context.Context) (int, error) {
			return 0, NewNoConnectivity("connection failed", nil)
		})

		require.Error(t, err)
		assert.True(t, IsKind(err, Timeout))
	})
}

func TestWithRetryNotify(t *testing.T) {
	var attempts []int
	var waits []time.Duration
	policy := quickRetry(3)
	policy.Notify = func(_ error, attempt int, next time.Duration) {
		attempts = append(attempts, attempt)
		waits = append(waits, next)
	}

	_, err := WithRetry(context.Background(), policy, func(context.Context) (int, error) {
		return 0, NewTimeout("request deadline elapsed", time.Millisecond)
	})

	require.Error(t, err)
	assert.Equal(t, []int{1, 2}, attempts, "notify runs before each wait, not after the final attempt")
	for _, w := range waits {
		assert.Equal(t, time.Millisecond, w)
	}
}

func TestRetryPolicyDelayFunc(t *testing.T) {
	t.Run("constant strategy repeats the initial delay", func(t *testing.T) {
		policy := RetryPolicy{Strategy: BackoffConstant, InitialDelay: 7 * time.Millisecond}
		next := policy.delayFunc()

		for range 5 {
			assert.Equal(t, 7*time.Millisecond, next())
		}
	})

	t.Run("exponential delays stay within the cap", func(t *testing.T) {
		policy := RetryPolicy{
			Strategy:     BackoffExponential,
			InitialDelay: 10 * time.Millisecond,
			MaxDelay:     50 * time.Millisecond,
		}
		next := policy.delayFunc()

		first := next()
		assert.GreaterOrEqual(t, first, 5*time.Millisecond, "first delay is jittered around the initial delay")
		assert.LessOrEqual(t, first, 15*time.Millisecond)

		for range 20 {
			d := next()
			assert.Greater(t, d, time.Duration(0))
			assert.LessOrEqual(t, d, 50*time.Millisecond)
		}
	})

	t.Run("non-positive delays fall back to defaults", func(t *testing.T) {
		policy := RetryPolicy{Strategy: BackoffConstant}
		next := policy.delayFunc()
		assert.Equal(t, DefaultInitialDelay, next())
	})
}

func TestDefaultRetryPolicy(t *testing.T) {
	policy := DefaultRetryPolicy()

	assert.Equal(t, 1, policy.MaxAttempts)
	assert.Equal(t, DefaultRetryableKinds, policy.RetryableKinds)
	assert.Equal(t, BackoffExponential, policy.Strategy)
	assert.Equal(t, DefaultInitialDelay, policy.InitialDelay)
	assert.Equal(t, DefaultMaxDelay, policy.MaxDelay)
}

func TestClassifyInterrupt(t *testing.T) {
	t.Run("deadline exceeded", func(t *testing.T) {
		err := classifyInterrupt(context.DeadlineExceeded)
		assert.Equal(t, Timeout, err.Kind())
	})

	t.Run("canceled", func(t *testing.T) {
		err := classifyInterrupt(context.Canceled)
		assert.Equal(t, Unknown, err.Kind())
		assert.True(t, IsCanceled(err))
	})
}
