package cache

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
)

func TestRedisOptions(t *testing.T) {
	opts, err := RedisOptions(RedisConfig{
		Address:  " cache.internal:6380 ",
		Username: " app ",
		Password: "pw",
		DB:       3,
		TLS:      true,
	})
	require.NoError(t, err)
	require.Equal(t, "cache.internal:6380", opts.Addr)
	require.Equal(t, "app", opts.Username)
	require.Equal(t, "pw", opts.Password)
	require.Equal(t, 3, opts.DB)
	require.Equal(t, defaultRedisTimeout, opts.DialTimeout)
	require.NotNil(t, opts.TLSConfig)

	_, err = RedisOptions(RedisConfig{})
	require.Error(t, err)
}

func TestConnectRedisGivesUpAfterRetries(t *testing.T) {
	start := time.Now()
	_, err := ConnectRedis(context.Background(), RedisConfig{
		Address:       "127.0.0.1:1",
		Timeout:       100 * time.Millisecond,
		RetryAttempts: 2,
		RetryInterval: 10 * time.Millisecond,
	})
	require.Error(t, err)
	require.True(t, errors.Is(err, ErrRedisNotReady))
	require.Less(t, time.Since(start), 5*time.Second)
}

func TestConnectRedisHonoursContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := ConnectRedis(ctx, RedisConfig{Address: "127.0.0.1:1", RetryAttempts: 3, RetryInterval: time.Hour})
	require.ErrorIs(t, err, ErrRedisNotReady)
	require.ErrorIs(t, err, context.Canceled)
}

func TestRedisHealthcheck(t *testing.T) {
	require.Error(t, RedisHealthcheck(context.Background(), nil))

	client := redis.NewClient(&redis.Options{Addr: "127.0.0.1:1", DialTimeout: 100 * time.Millisecond, MaxRetries: -1})
	t.Cleanup(func() { _ = client.Close() })
	require.Error(t, RedisHealthcheck(context.Background(), client))
}
