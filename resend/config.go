package resend

import (
	"errors"
	"time"

	"github.com/spacemeshos/go-delivery/codec"
)

type Config struct {
	// Nodes maps storage node addresses to the base url of their http api.
	Nodes map[string]string `mapstructure:"nodes"`

	// StreamNodes lists the storage nodes of streams. Streams not listed
	// are stored by every node in Nodes.
	StreamNodes map[string][]string `mapstructure:"stream-nodes"`

	MaxRequestRetries int           `mapstructure:"max-request-retries"`
	RequestRetryDelay time.Duration `mapstructure:"request-retry-delay"`

	NodeCacheSize int           `mapstructure:"node-cache-size"`
	NodeCacheTTL  time.Duration `mapstructure:"node-cache-ttl"`

	// RequestsPerSecond limits the requests sent to one storage node. Zero
	// disables the limit.
	RequestsPerSecond float64 `mapstructure:"requests-per-second"`
	RequestBurst      int     `mapstructure:"request-burst"`

	MaxFrameSize int `mapstructure:"max-frame-size"`
	BufferSize   int `mapstructure:"buffer-size"`
}

func DefaultConfig() Config {
	return Config{
		Nodes:             map[string]string{},
		StreamNodes:       map[string][]string{},
		MaxRequestRetries: 3,
		RequestRetryDelay: time.Second,
		NodeCacheSize:     1000,
		NodeCacheTTL:      30 * time.Minute,
		RequestBurst:      10,
		MaxFrameSize:      codec.DefaultMaxFrameSize,
		BufferSize:        256,
	}
}

func (c Config) Validate() error {
	var errs []error
	if c.MaxRequestRetries < 0 {
		errs = append(errs, errors.New("max-request-retries must not be negative"))
	}
	if c.RequestRetryDelay < 0 {
		errs = append(errs, errors.New("request-retry-delay must not be negative"))
	}
	if c.RequestsPerSecond < 0 {
		errs = append(errs, errors.New("requests-per-second must not be negative"))
	}
	if c.RequestsPerSecond > 0 && c.RequestBurst <= 0 {
		errs = append(errs, errors.New("request-burst must be positive"))
	}
	if c.NodeCacheSize <= 0 {
		errs = append(errs, errors.New("node-cache-size must be positive"))
	}
	if c.MaxFrameSize <= 0 {
		errs = append(errs, errors.New("max-frame-size must be positive"))
	}
	if c.BufferSize <= 0 {
		errs = append(errs, errors.New("buffer-size must be positive"))
	}
	return errors.Join(errs...)
}
