package presets

import (
	"time"

	"github.com/spacemeshos/go-delivery/config"
)

func init() {
	register("fast", fast())
}

// fast gives up on gaps quickly. Used by simulations.
func fast() config.Config {
	conf := config.DefaultConfig()
	conf.Ordering.GapFillTimeout = 50 * time.Millisecond
	conf.Ordering.RetryResendAfter = 50 * time.Millisecond
	conf.Ordering.MaxGapRequests = 3
	conf.Resend.MaxRequestRetries = 1
	conf.Resend.RequestRetryDelay = 10 * time.Millisecond
	return conf
}
