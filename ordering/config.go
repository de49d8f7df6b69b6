package ordering

import (
	"errors"
	"fmt"
	"time"
)

// Strategy selects how a gap filler retries and how it gives up.
type Strategy string

const (
	// StrategyLight narrows the requested window to the current head of the
	// chain before every attempt and, once attempts run out, skips every
	// hole left in the chain.
	StrategyLight Strategy = "light"
	// StrategyFull repeats the window observed when the gap was found and,
	// once attempts run out, skips holes only up to the end of that gap.
	StrategyFull Strategy = "full"
)

func (s Strategy) String() string {
	return string(s)
}

func (s Strategy) Validate() error {
	switch s {
	case StrategyLight, StrategyFull:
		return nil
	}
	return fmt.Errorf("unknown gap fill strategy %q", string(s))
}

func (s *Strategy) UnmarshalText(text []byte) error {
	strategy := Strategy(text)
	if err := strategy.Validate(); err != nil {
		return err
	}
	*s = strategy
	return nil
}

func DefaultConfig() Config {
	return Config{
		OrderMessages:    true,
		GapFill:          true,
		GapFillStrategy:  StrategyLight,
		MaxGapRequests:   5,
		RetryResendAfter: 5 * time.Second,
		GapFillTimeout:   5 * time.Second,
		BufferSize:       256,
	}
}

type Config struct {
	// OrderMessages enables ordering of subscribed messages. Without it
	// messages are delivered as they arrive.
	OrderMessages bool `mapstructure:"order-messages"`

	// GapFill enables requesting missing messages from storage nodes.
	GapFill bool `mapstructure:"gap-fill"`

	GapFillStrategy Strategy `mapstructure:"gap-fill-strategy"`

	// MaxGapRequests is the number of resend requests issued for one gap.
	MaxGapRequests int `mapstructure:"max-gap-requests"`

	// RetryResendAfter is the pause between resend requests for one gap.
	RetryResendAfter time.Duration `mapstructure:"retry-resend-after"`

	// GapFillTimeout is how long a gap is left to close on its own before
	// the first resend request.
	GapFillTimeout time.Duration `mapstructure:"gap-fill-timeout"`

	// BufferSize is the capacity of the ordered output.
	BufferSize int `mapstructure:"buffer-size"`
}

func (c Config) Validate() error {
	var errs []error
	if err := c.GapFillStrategy.Validate(); err != nil {
		errs = append(errs, err)
	}
	if c.MaxGapRequests < 0 {
		errs = append(errs, fmt.Errorf("max-gap-requests must not be negative: %d", c.MaxGapRequests))
	}
	if c.RetryResendAfter < 0 {
		errs = append(errs, fmt.Errorf("retry-resend-after must not be negative: %s", c.RetryResendAfter))
	}
	if c.GapFillTimeout < 0 {
		errs = append(errs, fmt.Errorf("gap-fill-timeout must not be negative: %s", c.GapFillTimeout))
	}
	if c.BufferSize < 0 {
		errs = append(errs, fmt.Errorf("buffer-size must not be negative: %d", c.BufferSize))
	}
	return errors.Join(errs...)
}

// maxRequestsPerGap is the resend budget of a gap. Zero disables resends.
func (c Config) maxRequestsPerGap() int {
	if !c.GapFill {
		return 0
	}
	return c.MaxGapRequests
}
