package ordering

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/spacemeshos/go-delivery/metrics"
)

const subsystem = "ordering"

var (
	gapsFound = metrics.NewCounter(
		"gaps_found",
		subsystem,
		"number of gaps detected in message chains",
		[]string{},
	).WithLabelValues()
	gapsResolved = metrics.NewCounter(
		"gaps_resolved",
		subsystem,
		"number of gaps closed by resent or late messages",
		[]string{},
	).WithLabelValues()
	unfillableGaps = metrics.NewCounter(
		"unfillable_gaps",
		subsystem,
		"number of missing intervals skipped",
		[]string{},
	).WithLabelValues()

	resendRequests = metrics.NewCounter(
		"resend_requests",
		subsystem,
		"number of resend requests issued to fill gaps",
		[]string{"result"},
	)
	resendOk    = resendRequests.WithLabelValues("ok")
	resendError = resendRequests.WithLabelValues("error")

	gapFillDuration = metrics.NewHistogramWithBuckets(
		"gap_fill_duration_seconds",
		subsystem,
		"time from gap detection until the gap filler finished",
		[]string{"outcome"},
		prometheus.ExponentialBuckets(0.01, 2, 14),
	)

	activeChains = metrics.NewGauge(
		"active_chains",
		subsystem,
		"number of message chains tracked by live multiplexers",
		[]string{},
	).WithLabelValues()
)
