package presets

import (
	"time"

	"github.com/spacemeshos/go-delivery/config"
	"github.com/spacemeshos/go-delivery/ordering"
)

func init() {
	register("strict", strict())
}

// strict keeps every gap open longer and resolves gaps one at a time.
func strict() config.Config {
	conf := config.DefaultConfig()
	conf.Ordering.GapFillStrategy = ordering.StrategyFull
	conf.Ordering.MaxGapRequests = 10
	conf.Ordering.GapFillTimeout = 10 * time.Second
	conf.Ordering.RetryResendAfter = 10 * time.Second
	return conf
}
