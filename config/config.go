// Package config loads REST client configuration from layered sources:
// struct defaults, an optional YAML file and RESTCLIENT_-prefixed
// environment variables, in ascending priority. FromConfig turns a loaded
// Config into a ready client.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/confmap"
	env "github.com/knadh/koanf/providers/env/v2"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/rawbytes"
	"github.com/knadh/koanf/v2"

	"github.com/gaborage/go-restclient/cache/redis"
	"github.com/gaborage/go-restclient/internal/validation"
	"github.com/gaborage/go-restclient/restclient"
)

// EnvPrefix filters the environment variables the loader reads. Nesting uses
// a double underscore: RESTCLIENT_RETRY__MAX_ATTEMPTS sets retry.max_attempts.
const EnvPrefix = "RESTCLIENT_"

// Config is the full client configuration.
type Config struct {
	// BaseURL is the service root every request path is joined to.
	BaseURL string `koanf:"base_url" validate:"required,url"`

	// Deadline bounds each attempt. Zero falls back to the client default.
	Deadline time.Duration `koanf:"deadline" validate:"min=0"`

	// Headers are sent with every request unless overridden per call.
	Headers map[string]string `koanf:"headers" validate:"omitempty,dive,keys,header_name,endkeys"`

	Log       LogConfig       `koanf:"log"`
	Retry     RetryConfig     `koanf:"retry"`
	Auth      AuthConfig      `koanf:"auth"`
	Cache     CacheConfig     `koanf:"cache"`
	RateLimit RateLimitConfig `koanf:"rate_limit"`
}

// LogConfig controls the client's structured logging.
type LogConfig struct {
	Level  string `koanf:"level" validate:"omitempty,oneof=trace debug info warn error fatal panic disabled"`
	Pretty bool   `koanf:"pretty"`
}

// RetryConfig mirrors restclient.RetryPolicy in loadable form.
type RetryConfig struct {
	MaxAttempts    int           `koanf:"max_attempts" validate:"min=1"`
	Strategy       string        `koanf:"strategy" validate:"omitempty,oneof=constant exponential"`
	InitialDelay   time.Duration `koanf:"initial_delay" validate:"min=0"`
	MaxDelay       time.Duration `koanf:"max_delay" validate:"min=0"`
	RetryableKinds []string      `koanf:"retryable_kinds"`
}

// AuthConfig holds optional static credentials. BearerToken wins when both
// bearer and basic credentials are set.
type AuthConfig struct {
	// BearerToken should come from the environment: RESTCLIENT_AUTH__BEARER_TOKEN.
	BearerToken string `koanf:"bearer_token"`
	Username    string `koanf:"username"`
	Password    string `koanf:"password"`
}

// CacheConfig enables the GET response cache. With no Redis block the cache
// is an in-process LRU; with one it is shared through Redis.
type CacheConfig struct {
	Enabled bool `koanf:"enabled"`

	// TTL bounds entry lifetime. Zero uses the stage default.
	TTL time.Duration `koanf:"ttl" validate:"min=0"`

	// MaxEntries caps the in-memory store. Zero means unbounded. Ignored
	// when Redis is configured.
	MaxEntries int `koanf:"max_entries" validate:"min=0"`

	// Redis selects the Redis-backed store when present.
	Redis *redis.Config `koanf:"redis"`
}

// RateLimitConfig enables client-side throttling when RPS is positive.
type RateLimitConfig struct {
	RPS      float64 `koanf:"rps" validate:"min=0"`
	Burst    int     `koanf:"burst" validate:"min=0"`
	FailFast bool    `koanf:"fail_fast"`
}

// Load reads configuration from defaults, the YAML file at path (skipped
// when path is empty or the file does not exist) and the environment.
func Load(path string) (*Config, error) {
	k, err := newKoanf()
	if err != nil {
		return nil, err
	}

	if path != "" {
		if _, statErr := os.Stat(path); statErr == nil {
			if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
				return nil, fmt.Errorf("load %s: %w", path, err)
			}
		}
	}

	if err := loadEnv(k); err != nil {
		return nil, err
	}
	return unmarshal(k)
}

// LoadBytes reads configuration from defaults, the given YAML document and
// the environment.
func LoadBytes(data []byte) (*Config, error) {
	k, err := newKoanf()
	if err != nil {
		return nil, err
	}

	if err := k.Load(rawbytes.Provider(data), yaml.Parser()); err != nil {
		return nil, fmt.Errorf("parse config bytes: %w", err)
	}

	if err := loadEnv(k); err != nil {
		return nil, err
	}
	return unmarshal(k)
}

func newKoanf() (*koanf.Koanf, error) {
	k := koanf.New(".")
	if err := k.Load(confmap.Provider(defaults(), "."), nil); err != nil {
		return nil, fmt.Errorf("load defaults: %w", err)
	}
	return k, nil
}

func defaults() map[string]any {
	return map[string]any{
		"deadline": "30s",

		"log.level":  "info",
		"log.pretty": false,

		"retry.max_attempts":  1,
		"retry.strategy":      "exponential",
		"retry.initial_delay": "1s",
		"retry.max_delay":     "30s",

		"cache.enabled": false,
		"cache.ttl":     "5m",

		"rate_limit.rps":   0,
		"rate_limit.burst": 0,
	}
}

func loadEnv(k *koanf.Koanf) error {
	provider := env.Provider(".", env.Opt{
		Prefix: EnvPrefix,
		TransformFunc: func(key, value string) (string, any) {
			key = strings.ToLower(strings.TrimPrefix(key, EnvPrefix))
			key = strings.ReplaceAll(key, "__", ".")
			// List-valued keys are comma-separated in the environment.
			// Header values keep their commas.
			if key == "retry.retryable_kinds" {
				return key, strings.Split(value, ",")
			}
			return key, value
		},
	})
	if err := k.Load(provider, nil); err != nil {
		return fmt.Errorf("load environment: %w", err)
	}
	return nil
}

func unmarshal(k *koanf.Koanf) (*Config, error) {
	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks field constraints and that every configured retryable kind
// names a known failure kind.
func (c *Config) Validate() error {
	if err := validation.Struct(c); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	for _, s := range c.Retry.RetryableKinds {
		if _, err := restclient.ParseKind(s); err != nil {
			return fmt.Errorf("invalid configuration: retry.retryable_kinds: %w", err)
		}
	}
	return nil
}
