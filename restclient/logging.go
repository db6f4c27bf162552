package restclient

import (
	"fmt"
	"time"
	"unicode/utf8"
)

// maxLoggedPayload caps request and response bodies in log output so large
// payloads cannot flood the log stream.
const maxLoggedPayload = 1024

// logRequest logs one outgoing attempt.
func (c *client) logRequest(req *Request, attempt int) {
	event := c.log.Info().
		Str("direction", "outbound").
		Str("method", req.Method).
		Str("url", req.URL).
		Int("attempt", attempt)

	if len(req.Headers) > 0 {
		event.Interface("headers", req.Headers)
	}
	if len(req.Body) > 0 {
		event.Bytes("body", truncatePayload(req.Body))
	}

	event.Msg("REST client request")
}

// logResponse logs the final response of an operation.
func (c *client) logResponse(req *Request, resp *Response, elapsed time.Duration, attempts int, callCount int64) {
	event := c.log.Info().
		Str("direction", "inbound").
		Str("method", req.Method).
		Str("url", req.URL).
		Int("status", resp.StatusCode).
		Dur("elapsed", elapsed).
		Int("attempts", attempts).
		Int64("call_count", callCount)

	if len(resp.Body) > 0 {
		event.Bytes("body", truncatePayload(resp.Body))
	}

	event.Msg("REST client response")
}

// logFailure logs an operation that ended in a classified error.
func (c *client) logFailure(req *Request, err error, elapsed time.Duration, attempts int) {
	c.log.Warn().
		Str("method", req.Method).
		Str("url", req.URL).
		Dur("elapsed", elapsed).
		Int("attempts", attempts).
		Str("kind", string(KindOf(err))).
		Err(err).
		Msg("REST client request failed")
}

// truncatePayload clips b to maxLoggedPayload bytes, marking the cut.
// Non-text payloads are summarized instead of dumped. The input slice is
// never mutated.
func truncatePayload(b []byte) []byte {
	if !utf8.Valid(b) {
		return []byte(fmt.Sprintf("<binary payload, %d bytes>", len(b)))
	}
	if len(b) <= maxLoggedPayload {
		return b
	}
	clipped := make([]byte, 0, maxLoggedPayload+16)
	clipped = append(clipped, b[:maxLoggedPayload]...)
	return append(clipped, "... (truncated)"...)
}
