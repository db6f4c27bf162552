package restclient

import (
	"context"
	"fmt"
)

// Stage is a named link in a client's interceptor chain. A stage gains
// behavior by additionally implementing RequestHandler, ResponseHandler or
// ErrorHandler; the chain discovers capabilities by type assertion, so a
// stage implements only the directions it cares about.
type Stage interface {
	Name() string
}

// RequestHandler runs before the transport issues the request, in
// registration order. A handler may mutate the request, satisfy the call
// itself via Exchange.ShortCircuit, or abort it via Exchange.Fail or by
// returning an error.
type RequestHandler interface {
	Stage
	HandleRequest(ctx context.Context, ex *Exchange) error
}

// ResponseHandler runs once a response is available, in reverse
// registration order: the stage closest to the transport sees it first.
type ResponseHandler interface {
	Stage
	HandleResponse(ctx context.Context, ex *Exchange) error
}

// ErrorHandler runs when the call failed, in reverse registration order.
// A handler may replace the error via Exchange.Fail or recover the call
// with Exchange.ShortCircuit.
type ErrorHandler interface {
	Stage
	HandleError(ctx context.Context, ex *Exchange) error
}

// Exchange carries one call through the chain: the outbound request, the
// response or error it produced, and a stash stages use to hand values
// from their request side to their response side. An Exchange belongs to
// exactly one call and must not be shared across goroutines.
type Exchange struct {
	req   *Request
	resp  *Response
	err   error
	done  bool
	stash map[any]any
}

// Request returns the outbound request. Request handlers may mutate it in
// place; later stages and the transport observe the mutations.
func (ex *Exchange) Request() *Request { return ex.req }

// Response returns the response, or nil while none exists.
func (ex *Exchange) Response() *Response { return ex.resp }

// SetResponse replaces the response seen by outer stages and the caller.
func (ex *Exchange) SetResponse(resp *Response) { ex.resp = resp }

// Err returns the error being propagated, or nil.
func (ex *Exchange) Err() error { return ex.err }

// ShortCircuit satisfies the call with resp. During the request direction
// the transport is skipped and the response direction starts at the next
// stage out; during the error direction it clears the error and lets outer
// stages handle resp instead.
func (ex *Exchange) ShortCircuit(resp *Response) {
	ex.resp = resp
	ex.err = nil
	ex.done = true
}

// Fail aborts the call with err as-is. Unlike returning an error from a
// handler, err is not rewrapped, so a stage can fail with a classified
// *Error of its choosing.
func (ex *Exchange) Fail(err error) {
	ex.err = err
	ex.done = true
}

// Set stashes a value on the exchange. Stages should key entries with an
// unexported type of their own to avoid collisions.
func (ex *Exchange) Set(key, value any) {
	if ex.stash == nil {
		ex.stash = make(map[any]any)
	}
	ex.stash[key] = value
}

// Value returns the stashed value for key, or nil.
func (ex *Exchange) Value(key any) any {
	if ex.stash == nil {
		return nil
	}
	return ex.stash[key]
}

// Invoker issues the request once the request direction completes; the
// client wires its retrying transport call here.
type Invoker func(ctx context.Context, req *Request) (*Response, error)

// Chain runs calls through an ordered stage list around an Invoker. The
// stage list is fixed at construction and the chain itself is safe for
// concurrent use; stages shared across calls must be concurrency-safe too.
type Chain struct {
	stages []Stage
}

// NewChain returns a chain over stages in the given order.
func NewChain(stages ...Stage) *Chain {
	return &Chain{stages: stages}
}

// Len reports the number of stages in the chain.
func (c *Chain) Len() int { return len(c.stages) }

// Execute runs req through the chain around invoke. Request handlers run
// first to last; the response or error direction then runs in reverse over
// the stages the request passed through, so the first stage sees the
// outcome last. A handler that returns an error or panics aborts its
// direction and surfaces as an Unknown error to the stages outside it.
func (c *Chain) Execute(ctx context.Context, req *Request, invoke Invoker) (*Response, error) {
	ex := &Exchange{req: req}

	entered := 0
	for _, s := range c.stages {
		h, ok := s.(RequestHandler)
		if !ok {
			entered++
			continue
		}
		if err := c.dispatchRequest(ctx, h, ex); err != nil {
			ex.err = stageFailure(s, err)
			ex.done = true
		}
		if ex.done {
			break
		}
		entered++
	}
	ex.done = false

	if ex.err == nil && ex.resp == nil {
		ex.resp, ex.err = invoke(ctx, ex.req)
	}

	if ex.err != nil {
		c.unwindError(ctx, ex, entered)
	} else {
		c.unwindResponse(ctx, ex, entered)
	}
	return ex.resp, ex.err
}

// unwindResponse runs response handlers in reverse over stages [0, from).
// A handler failure switches the remaining outer stages to the error
// direction.
func (c *Chain) unwindResponse(ctx context.Context, ex *Exchange, from int) {
	for i := from - 1; i >= 0; i-- {
		h, ok := c.stages[i].(ResponseHandler)
		if !ok {
			continue
		}
		if err := c.dispatchResponse(ctx, h, ex); err != nil {
			ex.err = stageFailure(c.stages[i], err)
		}
		if ex.err != nil {
			c.unwindError(ctx, ex, i)
			return
		}
	}
}

// unwindError runs error handlers in reverse over stages [0, from). A
// handler that recovers via ShortCircuit switches the remaining outer
// stages back to the response direction.
func (c *Chain) unwindError(ctx context.Context, ex *Exchange, from int) {
	for i := from - 1; i >= 0; i-- {
		h, ok := c.stages[i].(ErrorHandler)
		if !ok {
			continue
		}
		if err := c.dispatchError(ctx, h, ex); err != nil {
			ex.err = stageFailure(c.stages[i], err)
			continue
		}
		if ex.err == nil {
			c.unwindResponse(ctx, ex, i)
			return
		}
	}
}

func (c *Chain) dispatchRequest(ctx context.Context, h RequestHandler, ex *Exchange) (err error) {
	defer recoverStagePanic(&err)
	return h.HandleRequest(ctx, ex)
}

func (c *Chain) dispatchResponse(ctx context.Context, h ResponseHandler, ex *Exchange) (err error) {
	defer recoverStagePanic(&err)
	return h.HandleResponse(ctx, ex)
}

func (c *Chain) dispatchError(ctx context.Context, h ErrorHandler, ex *Exchange) (err error) {
	defer recoverStagePanic(&err)
	return h.HandleError(ctx, ex)
}

func recoverStagePanic(err *error) {
	if r := recover(); r != nil {
		*err = fmt.Errorf("panic: %v", r)
	}
}

func stageFailure(s Stage, err error) *Error {
	return NewUnknown(fmt.Sprintf("stage %s failed", s.Name()), err)
}
