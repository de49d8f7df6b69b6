package pubsub

import (
	"errors"

	"github.com/spacemeshos/go-delivery/metrics"
)

const subsystem = "pubsub"

var (
	processedMessages = metrics.NewCounter(
		"processed_messages",
		subsystem,
		"number of realtime messages validated by result",
		[]string{"result"},
	)
	processedDuration = metrics.NewHistogramWithBuckets(
		"processed_duration_seconds",
		subsystem,
		"time spent validating realtime messages",
		[]string{"result"},
		[]float64{0.0001, 0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1},
	)
)

func castResult(err error) string {
	switch {
	case err == nil:
		return "accept"
	case errors.Is(err, ErrValidationReject):
		return "reject"
	default:
		return "ignore"
	}
}
