package resttest

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"slices"
	"sync"
	"time"

	"github.com/gaborage/go-restclient/restclient"
)

// step is one scripted outcome: a response or an error, with an optional
// delay honored against the attempt deadline.
type step struct {
	resp  *restclient.Response
	err   error
	delay time.Duration
}

// ScriptedTransport is a restclient.Transport that replays a fixed script of
// outcomes in order, recording every request it sees. It is safe for
// concurrent use; concurrent calls consume steps in arrival order. A call
// arriving past the end of the script fails unless Repeat was set.
type ScriptedTransport struct {
	mu     sync.Mutex
	steps  []step
	next   int
	repeat bool
	calls  []*restclient.Request
}

var _ restclient.Transport = (*ScriptedTransport)(nil)

// NewScriptedTransport creates an empty script.
func NewScriptedTransport() *ScriptedTransport {
	return &ScriptedTransport{}
}

// Respond appends a step returning resp.
func (s *ScriptedTransport) Respond(resp *restclient.Response) *ScriptedTransport {
	return s.append(step{resp: resp})
}

// RespondJSON appends a step returning v marshaled as a JSON response.
func (s *ScriptedTransport) RespondJSON(status int, v any) *ScriptedTransport {
	return s.Respond(JSONResponse(status, v))
}

// Fail appends a step returning err. The error reaches the retry layer
// as-is, so scripts should fail with restclient constructors (NewTimeout,
// NewNoConnectivity) when the test depends on failure classification.
func (s *ScriptedTransport) Fail(err error) *ScriptedTransport {
	return s.append(step{err: err})
}

// After delays the most recently appended step by d. The wait honors the
// attempt context and the request deadline, reporting an interrupted wait
// the way the HTTP transport would. It panics on an empty script.
func (s *ScriptedTransport) After(d time.Duration) *ScriptedTransport {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.steps) == 0 {
		panic("resttest: After called on an empty script")
	}
	s.steps[len(s.steps)-1].delay = d
	return s
}

// Repeat replays the final step forever once the script is exhausted.
func (s *ScriptedTransport) Repeat() *ScriptedTransport {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.repeat = true
	return s
}

// Issue implements restclient.Transport. Unlike the HTTP transport it
// tolerates a zero request deadline; the deadline only bounds delayed steps.
func (s *ScriptedTransport) Issue(ctx context.Context, req *restclient.Request) (*restclient.Response, error) {
	st, err := s.take(req)
	if err != nil {
		return nil, err
	}

	if st.delay > 0 {
		if req.Deadline > 0 {
			var cancel context.CancelFunc
			ctx, cancel = context.WithTimeout(ctx, req.Deadline)
			defer cancel()
		}
		timer := time.NewTimer(st.delay)
		defer timer.Stop()
		select {
		case <-ctx.Done():
			return nil, classifyWait(ctx.Err(), req.Deadline)
		case <-timer.C:
		}
	}

	if st.err != nil {
		return nil, st.err
	}
	return st.resp, nil
}

// Calls returns a copy of every request issued so far, in order. Each entry
// is a snapshot taken at issue time, so later mutation by stages or retries
// does not disturb it.
func (s *ScriptedTransport) Calls() []*restclient.Request {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Clone(s.calls)
}

// CallCount reports how many times Issue ran.
func (s *ScriptedTransport) CallCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.calls)
}

func (s *ScriptedTransport) append(st step) *ScriptedTransport {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.steps = append(s.steps, st)
	return s
}

// take records the call and pops the next scripted step.
func (s *ScriptedTransport) take(req *restclient.Request) (step, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.calls = append(s.calls, snapshot(req))

	if s.next >= len(s.steps) {
		if !s.repeat || len(s.steps) == 0 {
			return step{}, fmt.Errorf("resttest: unscripted call %d: %s %s", len(s.calls), req.Method, req.URL)
		}
		s.next = len(s.steps) - 1
	}
	st := s.steps[s.next]
	s.next++
	return st, nil
}

func snapshot(req *restclient.Request) *restclient.Request {
	out := *req
	if req.Headers != nil {
		out.Headers = maps.Clone(req.Headers)
	}
	if req.Body != nil {
		out.Body = slices.Clone(req.Body)
	}
	return &out
}

// classifyWait mirrors the HTTP transport's reporting of an interrupted
// attempt: deadline expiry is Timeout, cancellation is Unknown.
func classifyWait(err error, deadline time.Duration) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return restclient.NewTimeout("request deadline elapsed", deadline)
	}
	return restclient.NewUnknown("request canceled", err)
}
