package resend

import "github.com/spacemeshos/go-delivery/metrics"

const subsystem = "resend"

var (
	requests = metrics.NewCounter(
		"storage_node_requests",
		subsystem,
		"number of requests to storage nodes",
		[]string{"endpoint", "status"},
	)
	fetched = metrics.NewCounter(
		"messages_fetched",
		subsystem,
		"number of messages fetched from storage nodes",
		[]string{},
	).WithLabelValues()
)
