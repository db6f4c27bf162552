package redis

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gaborage/go-restclient/cache"
	"github.com/gaborage/go-restclient/internal/testutil"
)

const (
	testKey1   = "resp:GET:" + testutil.UserPath
	testValue1 = testutil.UserJSON
)

// setupTestRedis creates a miniredis server and client for testing.
func setupTestRedis(t *testing.T) (*Client, *miniredis.Miniredis) {
	t.Helper()

	mr := miniredis.RunT(t)

	cfg := &Config{
		Host:     mr.Host(),
		Port:     mr.Server().Addr().Port,
		Database: 0,
		PoolSize: 10,
	}

	client, err := NewClient(cfg)
	require.NoError(t, err)
	require.NotNil(t, client)

	return client, mr
}

func TestNewClient(t *testing.T) {
	t.Run("Success", func(t *testing.T) {
		client, _ := setupTestRedis(t)
		defer client.Close()

		assert.NotNil(t, client)
		assert.NotNil(t, client.client)
		assert.False(t, client.closed.Load())
	})

	t.Run("InvalidConfig", func(t *testing.T) {
		cfg := &Config{
			Host: "", // Missing host
			Port: 6379,
		}

		client, err := NewClient(cfg)
		assert.Error(t, err)
		assert.Nil(t, client)

		var configErr *cache.ConfigError
		assert.True(t, errors.As(err, &configErr))
	})

	t.Run("ConnectionFailed", func(t *testing.T) {
		mr := miniredis.RunT(t)
		host := mr.Host()
		port := mr.Server().Addr().Port
		mr.Close()

		cfg := &Config{
			Host:        host,
			Port:        port,
			DialTimeout: 100 * time.Millisecond,
		}

		client, err := NewClient(cfg)
		assert.Error(t, err)
		assert.Nil(t, client)

		var connErr *cache.ConnectionError
		assert.True(t, errors.As(err, &connErr))
	})
}

func TestClientGet(t *testing.T) {
	t.Run("Success", func(t *testing.T) {
		client, mr := setupTestRedis(t)
		defer client.Close()

		mr.Set(testKey1, testValue1)

		ctx := context.Background()
		result, err := client.Get(ctx, testKey1)
		require.NoError(t, err)
		assert.Equal(t, []byte(testValue1), result)
	})

	t.Run("NotFound", func(t *testing.T) {
		client, _ := setupTestRedis(t)
		defer client.Close()

		ctx := context.Background()
		result, err := client.Get(ctx, "nonexistent")
		assert.Error(t, err)
		assert.Nil(t, result)
		assert.True(t, errors.Is(err, cache.ErrNotFound))
	})

	t.Run("Expired", func(t *testing.T) {
		client, mr := setupTestRedis(t)
		defer client.Close()

		ctx := context.Background()
		err := client.Set(ctx, testKey1, []byte(testValue1), time.Minute)
		require.NoError(t, err)

		mr.FastForward(2 * time.Minute)

		result, err := client.Get(ctx, testKey1)
		assert.Error(t, err)
		assert.Nil(t, result)
		assert.True(t, errors.Is(err, cache.ErrNotFound))
	})

	t.Run("Closed", func(t *testing.T) {
		client, _ := setupTestRedis(t)
		client.Close()

		ctx := context.Background()
		result, err := client.Get(ctx, testKey1)
		assert.Error(t, err)
		assert.Nil(t, result)
		assert.True(t, errors.Is(err, cache.ErrClosed))
	})
}

// TestClientSet tests the Set method of the Redis client.
func TestClientSet(t *testing.T) {
	t.Run("Success", func(t *testing.T) {
		client, mr := setupTestRedis(t)
		defer client.Close()

		ctx := context.Background()
		err := client.Set(ctx, testKey1, []byte(testValue1), 5*time.Minute)
		require.NoError(t, err)

		// Verify with miniredis
		assert.True(t, mr.Exists(testKey1))
		value, _ := mr.Get(testKey1)
		assert.Equal(t, testValue1, value)
	})

	t.Run("ZeroTTL_NoExpiration", func(t *testing.T) {
		client, mr := setupTestRedis(t)
		defer client.Close()

		ctx := context.Background()
		// TTL=0 means no expiration (should succeed)
		err := client.Set(ctx, testKey1, []byte(testValue1), 0)
		assert.NoError(t, err)

		mr.FastForward(24 * time.Hour)
		assert.True(t, mr.Exists(testKey1))
	})

	t.Run("NegativeTTL", func(t *testing.T) {
		client, _ := setupTestRedis(t)
		defer client.Close()

		ctx := context.Background()
		err := client.Set(ctx, testKey1, []byte(testValue1), -1*time.Second)
		assert.Error(t, err)
		assert.True(t, errors.Is(err, cache.ErrInvalidTTL))
	})

	t.Run("Closed", func(t *testing.T) {
		client, _ := setupTestRedis(t)
		client.Close()

		ctx := context.Background()
		err := client.Set(ctx, testKey1, []byte(testValue1), 5*time.Minute)
		assert.Error(t, err)
		assert.True(t, errors.Is(err, cache.ErrClosed))
	})
}

// TestClientDelete tests the Delete method of the Redis client.
func TestClientDelete(t *testing.T) {
	t.Run("Success", func(t *testing.T) {
		client, mr := setupTestRedis(t)
		defer client.Close()

		mr.Set(testKey1, testValue1)

		ctx := context.Background()
		err := client.Delete(ctx, testKey1)
		require.NoError(t, err)

		// Verify deletion
		assert.False(t, mr.Exists(testKey1))
	})

	t.Run("NonexistentKey", func(t *testing.T) {
		client, _ := setupTestRedis(t)
		defer client.Close()

		ctx := context.Background()
		err := client.Delete(ctx, "nonexistent")
		assert.NoError(t, err) // Delete of nonexistent key is not an error
	})

	t.Run("Closed", func(t *testing.T) {
		client, _ := setupTestRedis(t)
		client.Close()

		ctx := context.Background()
		err := client.Delete(ctx, testKey1)
		assert.Error(t, err)
		assert.True(t, errors.Is(err, cache.ErrClosed))
	})
}

func TestClientHealth(t *testing.T) {
	t.Run("Success", func(t *testing.T) {
		client, _ := setupTestRedis(t)
		defer client.Close()

		ctx := context.Background()
		err := client.Health(ctx)
		assert.NoError(t, err)
	})

	t.Run("ServerDown", func(t *testing.T) {
		client, mr := setupTestRedis(t)
		defer client.Close()

		mr.Close()

		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()

		err := client.Health(ctx)
		assert.Error(t, err)

		var connErr *cache.ConnectionError
		assert.True(t, errors.As(err, &connErr))
	})

	t.Run("Closed", func(t *testing.T) {
		client, _ := setupTestRedis(t)
		client.Close()

		ctx := context.Background()
		err := client.Health(ctx)
		assert.Error(t, err)
		assert.True(t, errors.Is(err, cache.ErrClosed))
	})
}

// TestClientClose tests the Close method of the Redis client.
func TestClientClose(t *testing.T) {
	t.Run("Success", func(t *testing.T) {
		client, _ := setupTestRedis(t)

		err := client.Close()
		assert.NoError(t, err)
		assert.True(t, client.closed.Load())

		// Verify operations fail after close
		ctx := context.Background()
		_, err = client.Get(ctx, testKey1)
		assert.Error(t, err)
		assert.True(t, errors.Is(err, cache.ErrClosed))
	})

	t.Run("Idempotent", func(t *testing.T) {
		client, _ := setupTestRedis(t)
		client.Close()

		err := client.Close()
		assert.NoError(t, err)
	})
}

// TestConfigValidate tests the Validate method of the Config struct.
func TestConfigValidate(t *testing.T) {
	t.Run("ValidConfig", func(t *testing.T) {
		cfg := &Config{
			Host:     "localhost",
			Port:     6379,
			Database: 0,
			PoolSize: 10,
		}

		err := cfg.Validate()
		assert.NoError(t, err)
	})

	t.Run("MissingHost", func(t *testing.T) {
		cfg := &Config{
			Host: "",
			Port: 6379,
		}

		err := cfg.Validate()
		assert.Error(t, err)
		assert.Contains(t, err.Error(), "host is required")
	})

	t.Run("InvalidPort", func(t *testing.T) {
		tests := []struct {
			name string
			port int
		}{
			{"ZeroPort", 0},
			{"NegativePort", -1},
			{"PortTooHigh", 70000},
		}

		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				cfg := &Config{
					Host: "localhost",
					Port: tt.port,
				}

				err := cfg.Validate()
				assert.Error(t, err)
				assert.Contains(t, err.Error(), "invalid port")
			})
		}
	})

	t.Run("InvalidDatabase", func(t *testing.T) {
		tests := []struct {
			name string
			db   int
		}{
			{"NegativeDB", -1},
			{"DBTooHigh", 16},
		}

		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				cfg := &Config{
					Host:     "localhost",
					Port:     6379,
					Database: tt.db,
					PoolSize: 10,
				}

				err := cfg.Validate()
				assert.Error(t, err)
				assert.Contains(t, err.Error(), "invalid database number")
			})
		}
	})

	t.Run("InvalidPoolSize", func(t *testing.T) {
		cfg := &Config{
			Host:     "localhost",
			Port:     6379,
			PoolSize: -1,
		}

		err := cfg.Validate()
		assert.Error(t, err)
		assert.Contains(t, err.Error(), "invalid pool size")
	})
}

func TestConfigDefaults(t *testing.T) {
	cfg := &Config{Host: "redis.example.com"}
	cfg.withDefaults()

	assert.Equal(t, 6379, cfg.Port)
	assert.Equal(t, 10, cfg.PoolSize)
	assert.Equal(t, 5*time.Second, cfg.DialTimeout)
	assert.Equal(t, 3*time.Second, cfg.ReadTimeout)
	assert.Equal(t, 3*time.Second, cfg.WriteTimeout)
}

// TestConfigAddress tests the Address method of the Config struct.
func TestConfigAddress(t *testing.T) {
	cfg := &Config{
		Host: "redis.example.com",
		Port: 6379,
	}

	assert.Equal(t, "redis.example.com:6379", cfg.Address())
}
