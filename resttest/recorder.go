package resttest

import (
	"context"
	"slices"
	"sync"

	"github.com/gaborage/go-restclient/restclient"
)

// recordSink collects events from every Recorder forked off one root.
type recordSink struct {
	mu     sync.Mutex
	events []string
}

func (s *recordSink) add(event string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, event)
}

// Recorder is a chain stage that records the order it is traversed in, as
// "name:request", "name:response" and "name:error" events. It never alters
// the exchange. Safe for concurrent use; events from concurrent calls
// interleave in arrival order.
type Recorder struct {
	name string
	sink *recordSink
}

var (
	_ restclient.RequestHandler  = (*Recorder)(nil)
	_ restclient.ResponseHandler = (*Recorder)(nil)
	_ restclient.ErrorHandler    = (*Recorder)(nil)
)

// NewRecorder creates a recorder stage with its own event log.
func NewRecorder(name string) *Recorder {
	return &Recorder{name: name, sink: &recordSink{}}
}

// Fork creates a sibling stage writing into the same event log, so one test
// can assert the interleaving of several stages.
func (r *Recorder) Fork(name string) *Recorder {
	return &Recorder{name: name, sink: r.sink}
}

// Name implements restclient.Stage.
func (r *Recorder) Name() string { return r.name }

// HandleRequest implements restclient.RequestHandler.
func (r *Recorder) HandleRequest(_ context.Context, _ *restclient.Exchange) error {
	r.sink.add(r.name + ":request")
	return nil
}

// HandleResponse implements restclient.ResponseHandler.
func (r *Recorder) HandleResponse(_ context.Context, _ *restclient.Exchange) error {
	r.sink.add(r.name + ":response")
	return nil
}

// HandleError implements restclient.ErrorHandler.
func (r *Recorder) HandleError(_ context.Context, _ *restclient.Exchange) error {
	r.sink.add(r.name + ":error")
	return nil
}

// Events returns a copy of the recorded events in order.
func (r *Recorder) Events() []string {
	r.sink.mu.Lock()
	defer r.sink.mu.Unlock()
	return slices.Clone(r.sink.events)
}

// Reset clears the shared event log.
func (r *Recorder) Reset() {
	r.sink.mu.Lock()
	defer r.sink.mu.Unlock()
	r.sink.events = nil
}
