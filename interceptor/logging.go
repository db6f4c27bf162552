package interceptor

import (
	"context"
	"fmt"
	"time"
	"unicode/utf8"

	"github.com/gaborage/go-restclient/logger"
	"github.com/gaborage/go-restclient/restclient"
)

// maxLoggedBody caps bodies in stage log output so large payloads cannot
// flood the log stream.
const maxLoggedBody = 1024

// Logging logs every call passing through the chain at debug level, with
// failures raised to warn. Unlike the client's own operation log it observes
// the exchange where it sits in the chain, after the stages outside it have
// run, which makes it useful for debugging stage interplay.
type Logging struct {
	log logger.Logger
}

type loggingStartKey struct{}

// NewLogging returns a logging stage writing to log.
func NewLogging(log logger.Logger) *Logging {
	if log == nil {
		log = logger.NewNop()
	}
	return &Logging{log: log}
}

// Name implements restclient.Stage.
func (l *Logging) Name() string { return "logging" }

// HandleRequest implements restclient.RequestHandler.
func (l *Logging) HandleRequest(_ context.Context, ex *restclient.Exchange) error {
	ex.Set(loggingStartKey{}, time.Now())

	req := ex.Request()
	event := l.log.Debug().
		Str("direction", "outbound").
		Str("method", req.Method).
		Str("url", req.URL)

	if len(req.Headers) > 0 {
		event.Interface("headers", req.Headers)
	}
	if len(req.Body) > 0 {
		event.Bytes("body", truncateBody(req.Body))
	}

	event.Msg("chain request")
	return nil
}

// HandleResponse implements restclient.ResponseHandler.
func (l *Logging) HandleResponse(_ context.Context, ex *restclient.Exchange) error {
	req := ex.Request()
	event := l.log.Debug().
		Str("direction", "inbound").
		Str("method", req.Method).
		Str("url", req.URL).
		Dur("elapsed", l.elapsed(ex))

	if resp := ex.Response(); resp != nil {
		event.Int("status", resp.StatusCode)
		if len(resp.Body) > 0 {
			event.Bytes("body", truncateBody(resp.Body))
		}
	}

	event.Msg("chain response")
	return nil
}

// HandleError implements restclient.ErrorHandler.
func (l *Logging) HandleError(_ context.Context, ex *restclient.Exchange) error {
	req := ex.Request()
	err := ex.Err()
	l.log.Warn().
		Str("method", req.Method).
		Str("url", req.URL).
		Dur("elapsed", l.elapsed(ex)).
		Str("kind", string(restclient.KindOf(err))).
		Err(err).
		Msg("chain request failed")
	return nil
}

func (l *Logging) elapsed(ex *restclient.Exchange) time.Duration {
	start, ok := ex.Value(loggingStartKey{}).(time.Time)
	if !ok {
		return 0
	}
	return time.Since(start)
}

// truncateBody clips b to maxLoggedBody bytes, marking the cut. Non-text
// payloads are summarized instead of dumped. The input slice is never
// mutated.
func truncateBody(b []byte) []byte {
	if !utf8.Valid(b) {
		return []byte(fmt.Sprintf("<binary payload, %d bytes>", len(b)))
	}
	if len(b) <= maxLoggedBody {
		return b
	}
	clipped := make([]byte, 0, maxLoggedBody+16)
	clipped = append(clipped, b[:maxLoggedBody]...)
	return append(clipped, "... (truncated)"...)
}
