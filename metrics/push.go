package metrics

import (
	"context"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/push"
	"go.uber.org/zap"
)

// StartPushingMetrics pushes the default registry to a prometheus push gateway
// every period until ctx is canceled.
func StartPushingMetrics(ctx context.Context, logger *zap.Logger, url, job string, period time.Duration) {
	pusher := push.New(url, job).Gatherer(prometheus.DefaultGatherer)
	go func() {
		ticker := time.NewTicker(period)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if err := pusher.PushContext(ctx); err != nil {
					logger.Warn("failed to push metrics", zap.Error(err))
				}
			}
		}
	}()
}
