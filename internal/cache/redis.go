package cache

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisConfig captures the connection parameters for the shared Redis instance.
type RedisConfig struct {
	Address       string
	Username      string
	Password      string
	DB            int
	TLS           bool
	Timeout       time.Duration
	RetryAttempts int
	RetryInterval time.Duration
}

const (
	defaultRedisTimeout       = 5 * time.Second
	defaultRedisRetryAttempts = 3
	defaultRedisRetryInterval = 2 * time.Second
)

// ErrRedisNotReady is returned when no connection attempt succeeds.
var ErrRedisNotReady = errors.New("redis: server not ready")

// RedisOptions converts the configuration into go-redis client options.
func RedisOptions(cfg RedisConfig) (*redis.Options, error) {
	address := strings.TrimSpace(cfg.Address)
	if address == "" {
		return nil, errors.New("redis: address is required")
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultRedisTimeout
	}

	opts := &redis.Options{
		Addr:         address,
		Username:     strings.TrimSpace(cfg.Username),
		Password:     cfg.Password,
		DB:           cfg.DB,
		DialTimeout:  timeout,
		ReadTimeout:  timeout,
		WriteTimeout: timeout,
	}
	if cfg.TLS {
		opts.TLSConfig = &tls.Config{MinVersion: tls.VersionTLS12}
	}
	return opts, nil
}

// ConnectRedis dials Redis and pings it until it answers or the attempts run out.
func ConnectRedis(ctx context.Context, cfg RedisConfig) (*redis.Client, error) {
	opts, err := RedisOptions(cfg)
	if err != nil {
		return nil, err
	}

	attempts := cfg.RetryAttempts
	if attempts <= 0 {
		attempts = defaultRedisRetryAttempts
	}
	interval := cfg.RetryInterval
	if interval <= 0 {
		interval = defaultRedisRetryInterval
	}

	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		client := redis.NewClient(opts)
		if lastErr = client.Ping(ctx).Err(); lastErr == nil {
			return client, nil
		}
		_ = client.Close()

		if attempt == attempts {
			break
		}
		select {
		case <-ctx.Done():
			return nil, errors.Join(ErrRedisNotReady, ctx.Err())
		case <-time.After(interval):
		}
	}

	return nil, errors.Join(ErrRedisNotReady, fmt.Errorf("after %d attempts: %w", attempts, lastErr))
}

// RedisHealthcheck pings the client.
func RedisHealthcheck(ctx context.Context, client redis.UniversalClient) error {
	if client == nil {
		return errors.New("redis: client is not configured")
	}
	if err := client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("redis: ping: %w", err)
	}
	return nil
}
