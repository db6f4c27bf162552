package config

import (
	"fmt"

	"github.com/gaborage/go-restclient/cache"
	"github.com/gaborage/go-restclient/cache/redis"
	"github.com/gaborage/go-restclient/interceptor"
	"github.com/gaborage/go-restclient/logger"
	"github.com/gaborage/go-restclient/restclient"
)

// FromConfig builds a client from cfg, wiring the stages its sections
// enable: bearer auth, response caching and rate limiting. A nil log builds
// a logger from cfg.Log.
//
// Stores created for the cache stage live for the life of the client;
// callers needing teardown should build the store themselves and wire
// interceptor.NewCache directly.
func FromConfig(cfg *Config, log logger.Logger) (restclient.Client, error) {
	if cfg == nil {
		return nil, fmt.Errorf("%w: nil config", restclient.ErrContract)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if log == nil {
		log = logger.New(cfg.Log.Level, cfg.Log.Pretty)
	}

	policy, err := cfg.Retry.policy()
	if err != nil {
		return nil, err
	}

	b := restclient.NewBuilder(cfg.BaseURL).
		WithLogger(log).
		WithRetry(policy)

	if cfg.Deadline > 0 {
		b.WithDeadline(cfg.Deadline)
	}
	if len(cfg.Headers) > 0 {
		b.WithDefaultHeaders(cfg.Headers)
	}
	if cfg.Auth.BearerToken == "" && cfg.Auth.Username != "" {
		b.WithBasicAuth(cfg.Auth.Username, cfg.Auth.Password)
	}

	stages, err := cfg.stages(log)
	if err != nil {
		return nil, err
	}
	if len(stages) > 0 {
		b.WithStages(stages...)
	}

	return b.Build()
}

// stages assembles the configured chain, outermost first: auth, then cache
// so hits skip the rate limiter, then rate limiting next to the transport.
func (c *Config) stages(log logger.Logger) ([]restclient.Stage, error) {
	var stages []restclient.Stage

	if c.Auth.BearerToken != "" {
		stages = append(stages, interceptor.NewBearerAuth(c.Auth.BearerToken))
	}

	if c.Cache.Enabled {
		store, err := c.Cache.store()
		if err != nil {
			return nil, err
		}
		stages = append(stages, interceptor.NewCache(store, c.Cache.TTL, log))
	}

	if c.RateLimit.RPS > 0 {
		rl := interceptor.NewRateLimit(c.RateLimit.RPS, c.RateLimit.Burst)
		if c.RateLimit.FailFast {
			rl.FailFast()
		}
		stages = append(stages, rl)
	}

	return stages, nil
}

func (c *CacheConfig) store() (cache.Store, error) {
	if c.Redis != nil {
		client, err := redis.NewClient(c.Redis)
		if err != nil {
			return nil, fmt.Errorf("cache store: %w", err)
		}
		return client, nil
	}
	return cache.NewMemoryStore(c.MaxEntries), nil
}

func (c *RetryConfig) policy() (restclient.RetryPolicy, error) {
	policy := restclient.RetryPolicy{
		MaxAttempts:  c.MaxAttempts,
		Strategy:     restclient.BackoffStrategy(c.Strategy),
		InitialDelay: c.InitialDelay,
		MaxDelay:     c.MaxDelay,
	}
	for _, s := range c.RetryableKinds {
		kind, err := restclient.ParseKind(s)
		if err != nil {
			return restclient.RetryPolicy{}, fmt.Errorf("invalid configuration: retry.retryable_kinds: %w", err)
		}
		policy.RetryableKinds = append(policy.RetryableKinds, kind)
	}
	return policy, nil
}
