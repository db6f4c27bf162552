package interceptor

import (
	"context"
	nethttp "net/http"
	"sync/atomic"
	"time"

	"github.com/gaborage/go-restclient/internal/testutil"
	"github.com/gaborage/go-restclient/restclient"
)

const (
	testURL  = testutil.UserURL
	testPath = testutil.UserPath
	testBody = testutil.UserJSON
)

func newTestRequest(method string) *restclient.Request {
	return &restclient.Request{
		Method:   method,
		URL:      testURL,
		Path:     testPath,
		Headers:  make(map[string]string),
		Deadline: 5 * time.Second,
	}
}

// okInvoker returns a fixed response for every call.
func okInvoker(status int, body []byte) restclient.Invoker {
	return func(context.Context, *restclient.Request) (*restclient.Response, error) {
		return &restclient.Response{
			StatusCode: status,
			Headers:    nethttp.Header{"Content-Type": []string{"application/json"}},
			Body:       body,
		}, nil
	}
}

// errInvoker fails every call with err.
func errInvoker(err error) restclient.Invoker {
	return func(context.Context, *restclient.Request) (*restclient.Response, error) {
		return nil, err
	}
}

// countingInvoker counts transport calls around another invoker.
type countingInvoker struct {
	calls atomic.Int32
	next  restclient.Invoker
}

func (ci *countingInvoker) invoke(ctx context.Context, req *restclient.Request) (*restclient.Response, error) {
	ci.calls.Add(1)
	return ci.next(ctx, req)
}
