package checks

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/charlesng35/notifystream/internal/cache"
	"github.com/charlesng35/notifystream/internal/monitoring"
)

const defaultRedisTimeout = 2 * time.Second

// Redis probes the pub/sub relay. A nil client means the in-process
// broadcaster is in use and the probe reports up.
func Redis(client redis.UniversalClient, timeout time.Duration) monitoring.Check {
	return monitoring.NewCheck("redis", func(ctx context.Context) monitoring.ProbeResult {
		start := time.Now()
		if client == nil {
			return monitoring.ProbeResult{Status: monitoring.StatusUp, Details: "redis disabled"}
		}

		probeCtx, cancel := context.WithTimeout(ctx, chooseTimeout(timeout, defaultRedisTimeout))
		defer cancel()

		return monitoring.ResultFromError(cache.RedisHealthcheck(probeCtx, client), time.Since(start))
	})
}
