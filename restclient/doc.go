// Package restclient provides a resilient REST client with deadline-bounded
// transport, a closed error taxonomy, retry with backoff over transient
// failures, and an onion-model interceptor chain for cross-cutting concerns.
//
// Error classification
//   - Every failed operation returns a *Error with one of seven kinds:
//     NoConnectivity, Timeout, BadRequest, Unauthorized, ServerError,
//     MalformedResponse, Unknown.
//   - 2xx responses are decoded; a body that fails to decode is
//     MalformedResponse. 400, 401 and 500 map to their dedicated kinds;
//     every other status is Unknown carrying the status code.
//
// Retries
//   - Controlled via Builder.WithRetry(RetryPolicy).
//   - RetryPolicy.MaxAttempts counts total invocations: 3 means one initial
//     attempt plus up to two retries.
//   - Only NoConnectivity and Timeout are retried by default; the set can
//     be widened with RetryPolicy.RetryableKinds, but BadRequest,
//     Unauthorized and MalformedResponse are never retried.
//   - Backoff is constant or exponential (doubling from InitialDelay,
//     randomized, capped at MaxDelay). Backoff waits abort promptly on
//     context cancellation.
//
// Interceptors
//   - Stages registered with Builder.WithStages run in registration order on
//     the request path and in reverse order on the response and error paths.
//   - A stage may mutate the Exchange or short-circuit it with an immediate
//     response or error, skipping the transport.
//   - A stage that returns an error or panics surfaces as an Unknown error
//     and aborts the remaining chain for that direction.
//
// Notes
//   - Request bodies are re-sent by rebuilding the http.Request on each
//     attempt.
//   - The per-request deadline elapses client-side: each attempt races the
//     request against a timer derived from Request.Deadline.
package restclient
