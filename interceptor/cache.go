package interceptor

import (
	"context"
	"encoding/json"
	"errors"
	nethttp "net/http"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/gaborage/go-restclient/cache"
	"github.com/gaborage/go-restclient/logger"
	"github.com/gaborage/go-restclient/restclient"
)

// DefaultCacheTTL bounds entry lifetime when NewCache is given no TTL.
const DefaultCacheTTL = 5 * time.Minute

// cachedResponse is the stored envelope: enough of a Response to replay it.
type cachedResponse struct {
	Status  int            `json:"status"`
	Headers nethttp.Header `json:"headers,omitempty"`
	Body    []byte         `json:"body,omitempty"`
}

func (cr *cachedResponse) toResponse() *restclient.Response {
	return &restclient.Response{StatusCode: cr.Status, Headers: cr.Headers, Body: cr.Body}
}

// flight tracks one in-progress upstream fetch so concurrent calls for the
// same key wait for its result instead of stampeding the remote service.
type flight struct {
	done chan struct{}
	env  *cachedResponse // nil when the fetch failed
}

type cacheLeaderKey struct{}

// leadership marks the exchange that owns a flight and must resolve it.
type leadership struct {
	key  string
	f    *flight
	once sync.Once
}

// Cache short-circuits GET calls with previously stored responses. Misses
// fall through to the transport; the 200 response that comes back is stored
// under the request's method and URL for ttl. Concurrent calls for the same
// key share one store lookup, and on a miss one upstream fetch: a single
// leader proceeds while the rest wait for its result. Non-GET calls and
// non-200 responses pass through untouched.
type Cache struct {
	store cache.Store
	ttl   time.Duration
	log   logger.Logger

	group    singleflight.Group
	mu       sync.Mutex
	inflight map[string]*flight
}

// NewCache returns a caching stage over store. A ttl of 0 or less falls back
// to DefaultCacheTTL; a nil log disables the stage's degraded-store warnings.
func NewCache(store cache.Store, ttl time.Duration, log logger.Logger) *Cache {
	if ttl <= 0 {
		ttl = DefaultCacheTTL
	}
	if log == nil {
		log = logger.NewNop()
	}
	return &Cache{
		store:    store,
		ttl:      ttl,
		log:      log,
		inflight: make(map[string]*flight),
	}
}

// Name implements restclient.Stage.
func (c *Cache) Name() string { return "cache" }

// HandleRequest implements restclient.RequestHandler.
func (c *Cache) HandleRequest(ctx context.Context, ex *restclient.Exchange) error {
	req := ex.Request()
	if req.Method != nethttp.MethodGet {
		return nil
	}
	key := cacheKey(req)

	v, err, _ := c.group.Do(key, func() (any, error) {
		return c.lookup(ctx, key)
	})
	if err == nil {
		ex.ShortCircuit(v.(*cachedResponse).toResponse())
		return nil
	}
	if !errors.Is(err, cache.ErrNotFound) {
		// Degraded store: treat as a miss and let the call through.
		c.log.Warn().Err(err).Str("key", key).Msg("cache lookup failed")
	}

	c.mu.Lock()
	if f, ok := c.inflight[key]; ok {
		c.mu.Unlock()
		return c.await(ctx, ex, f)
	}
	f := &flight{done: make(chan struct{})}
	c.inflight[key] = f
	c.mu.Unlock()

	ex.Set(cacheLeaderKey{}, &leadership{key: key, f: f})
	return nil
}

// await blocks a follower until the leader's fetch resolves. If the leader
// failed, the follower fetches independently rather than inherit an error
// that may not apply to it.
func (c *Cache) await(ctx context.Context, ex *restclient.Exchange, f *flight) error {
	select {
	case <-f.done:
		if f.env != nil {
			ex.ShortCircuit(f.env.toResponse())
		}
		return nil
	case <-ctx.Done():
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			ex.Fail(restclient.NewTimeout("deadline elapsed waiting for shared fetch", 0))
		} else {
			ex.Fail(restclient.NewUnknown("canceled waiting for shared fetch", ctx.Err()))
		}
		return nil
	}
}

// HandleResponse implements restclient.ResponseHandler.
func (c *Cache) HandleResponse(ctx context.Context, ex *restclient.Exchange) error {
	lead, _ := ex.Value(cacheLeaderKey{}).(*leadership)
	req := ex.Request()
	resp := ex.Response()

	if req.Method != nethttp.MethodGet || resp == nil || resp.StatusCode != nethttp.StatusOK {
		c.resolve(lead, nil)
		return nil
	}

	env := &cachedResponse{Status: resp.StatusCode, Headers: resp.Headers, Body: resp.Body}
	data, err := json.Marshal(env)
	if err != nil {
		c.resolve(lead, nil)
		return nil
	}

	key := cacheKey(req)
	if err := c.store.Set(ctx, key, data, c.ttl); err != nil {
		c.log.Warn().Err(err).Str("key", key).Msg("cache store failed")
	}
	c.resolve(lead, env)
	return nil
}

// HandleError implements restclient.ErrorHandler.
func (c *Cache) HandleError(_ context.Context, ex *restclient.Exchange) error {
	lead, _ := ex.Value(cacheLeaderKey{}).(*leadership)
	c.resolve(lead, nil)
	return nil
}

// resolve publishes the leader's outcome and releases waiting followers.
// Safe to call multiple times and with a nil leadership.
func (c *Cache) resolve(lead *leadership, env *cachedResponse) {
	if lead == nil {
		return
	}
	lead.once.Do(func() {
		lead.f.env = env
		c.mu.Lock()
		delete(c.inflight, lead.key)
		c.mu.Unlock()
		close(lead.f.done)
	})
}

func (c *Cache) lookup(ctx context.Context, key string) (*cachedResponse, error) {
	data, err := c.store.Get(ctx, key)
	if err != nil {
		return nil, err
	}
	var env cachedResponse
	if err := json.Unmarshal(data, &env); err != nil {
		// Corrupt entry: drop it and report a miss.
		_ = c.store.Delete(ctx, key)
		return nil, cache.ErrNotFound
	}
	return &env, nil
}

func cacheKey(req *restclient.Request) string {
	return req.Method + " " + req.URL
}
