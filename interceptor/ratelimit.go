package interceptor

import (
	"context"
	"errors"

	"golang.org/x/time/rate"

	"github.com/gaborage/go-restclient/restclient"
)

// ErrRateLimited marks calls rejected by a fail-fast RateLimit stage. Detect
// it with errors.Is; the surfaced *restclient.Error has kind Unknown.
var ErrRateLimited = errors.New("client-side rate limit exceeded")

// RateLimit throttles outbound calls with a token bucket shared by every
// request of the client it is wired into. A call that finds the bucket empty
// waits for a token, bounded by its context deadline; FailFast switches the
// stage to rejecting such calls immediately.
type RateLimit struct {
	limiter  *rate.Limiter
	failFast bool
}

// NewRateLimit returns a stage allowing rps requests per second with the
// given burst capacity. If rps is 0 or negative the stage is disabled and
// passes every call through. A burst below 1 is raised to 1 so calls can
// still acquire a token.
func NewRateLimit(rps float64, burst int) *RateLimit {
	if rps <= 0 {
		return &RateLimit{}
	}
	if burst < 1 {
		burst = 1
	}
	return &RateLimit{limiter: rate.NewLimiter(rate.Limit(rps), burst)}
}

// FailFast makes the stage reject throttled calls immediately instead of
// waiting for a token. Returns the stage for chaining.
func (r *RateLimit) FailFast() *RateLimit {
	r.failFast = true
	return r
}

// Name implements restclient.Stage.
func (r *RateLimit) Name() string { return "ratelimit" }

// HandleRequest implements restclient.RequestHandler.
func (r *RateLimit) HandleRequest(ctx context.Context, ex *restclient.Exchange) error {
	if r.limiter == nil {
		return nil
	}

	if r.failFast {
		if !r.limiter.Allow() {
			ex.Fail(restclient.NewUnknown("rate limit exceeded", ErrRateLimited))
		}
		return nil
	}

	if err := r.limiter.Wait(ctx); err != nil {
		// Wait fails when the context ends or when the required delay
		// already overshoots its deadline.
		if errors.Is(ctx.Err(), context.Canceled) {
			ex.Fail(restclient.NewUnknown("rate limit wait canceled", err))
			return nil
		}
		ex.Fail(restclient.NewTimeout("rate limit wait exceeded deadline", 0))
	}
	return nil
}
