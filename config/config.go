// Package config contains the configuration of delivery processes.
package config

import (
	"errors"
	"fmt"
	"time"

	"github.com/mitchellh/mapstructure"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/spacemeshos/go-delivery/log"
	"github.com/spacemeshos/go-delivery/ordering"
	"github.com/spacemeshos/go-delivery/p2p/pubsub"
	"github.com/spacemeshos/go-delivery/resend"
)

// Config defines the top level configuration of a delivery process.
type Config struct {
	Logging  log.Config      `mapstructure:"logging"`
	Ordering ordering.Config `mapstructure:"ordering"`
	Resend   resend.Config   `mapstructure:"resend"`
	PubSub   pubsub.Config   `mapstructure:"pubsub"`
	Metrics  MetricsConfig   `mapstructure:"metrics"`
}

type MetricsConfig struct {
	// Addr of the prometheus endpoint. Metrics are not served when empty.
	Addr string `mapstructure:"addr"`

	// Push metrics to this push gateway every PushPeriod.
	Push       string        `mapstructure:"push"`
	PushPeriod time.Duration `mapstructure:"push-period"`
}

func DefaultConfig() Config {
	return Config{
		Logging:  log.DefaultConfig(),
		Ordering: ordering.DefaultConfig(),
		Resend:   resend.DefaultConfig(),
		PubSub:   pubsub.DefaultConfig(),
		Metrics: MetricsConfig{
			PushPeriod: time.Minute,
		},
	}
}

func (c Config) Validate() error {
	var errs []error
	if _, err := log.ParseLevel(c.Logging.Level); err != nil {
		errs = append(errs, fmt.Errorf("logging: %w", err))
	}
	if err := c.Ordering.Validate(); err != nil {
		errs = append(errs, fmt.Errorf("ordering: %w", err))
	}
	if err := c.Resend.Validate(); err != nil {
		errs = append(errs, fmt.Errorf("resend: %w", err))
	}
	if err := c.PubSub.Validate(); err != nil {
		errs = append(errs, fmt.Errorf("pubsub: %w", err))
	}
	if c.Metrics.Push != "" && c.Metrics.PushPeriod <= 0 {
		errs = append(errs, errors.New("metrics: push-period must be positive"))
	}
	return errors.Join(errs...)
}

// LoadConfig reads the config file at fileLocation into vip.
func LoadConfig(fileLocation string, vip *viper.Viper) error {
	vip.SetConfigFile(fileLocation)
	if err := vip.ReadInConfig(); err != nil {
		return fmt.Errorf("failed to read config file %s: %w", fileLocation, err)
	}
	return nil
}

// Load decodes the defaults overridden by the file at path, if not empty,
// and by the flags bound to vip. Unknown keys are rejected.
func Load(path string, vip *viper.Viper) (*Config, error) {
	return LoadWithDefaults(path, vip, DefaultConfig())
}

func LoadWithDefaults(path string, vip *viper.Viper, conf Config) (*Config, error) {
	if path != "" {
		if err := LoadConfig(path, vip); err != nil {
			return nil, err
		}
	}
	hook := mapstructure.ComposeDecodeHookFunc(
		mapstructure.StringToTimeDurationHookFunc(),
		mapstructure.StringToSliceHookFunc(","),
		mapstructure.TextUnmarshallerHookFunc(),
	)
	err := vip.Unmarshal(&conf, viper.DecodeHook(hook), func(dc *mapstructure.DecoderConfig) {
		dc.ErrorUnused = true
	})
	if err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	if err := conf.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return &conf, nil
}

// flag name to config key.
var flagKeys = map[string]string{
	"log-level":          "logging.level",
	"log-encoder":        "logging.encoder",
	"order-messages":     "ordering.order-messages",
	"gap-fill":           "ordering.gap-fill",
	"gap-fill-strategy":  "ordering.gap-fill-strategy",
	"max-gap-requests":   "ordering.max-gap-requests",
	"retry-resend-after": "ordering.retry-resend-after",
	"gap-fill-timeout":   "ordering.gap-fill-timeout",
	"metrics-addr":       "metrics.addr",
	"metrics-push":       "metrics.push",
}

// AddFlags registers the command line flags that override config values.
// Defaults come from conf.
func AddFlags(fs *pflag.FlagSet, conf Config) {
	fs.String("log-level", conf.Logging.Level, "log level")
	fs.String("log-encoder", conf.Logging.Encoder, "log encoder, console or json")
	fs.Bool("order-messages", conf.Ordering.OrderMessages, "deliver messages in publish order")
	fs.Bool("gap-fill", conf.Ordering.GapFill, "request missing messages from storage nodes")
	fs.String("gap-fill-strategy", conf.Ordering.GapFillStrategy.String(), "gap fill strategy, light or full")
	fs.Int("max-gap-requests", conf.Ordering.MaxGapRequests, "resend requests issued for one gap")
	fs.Duration("retry-resend-after", conf.Ordering.RetryResendAfter, "pause between resend requests for one gap")
	fs.Duration("gap-fill-timeout", conf.Ordering.GapFillTimeout, "wait before the first resend request for a gap")
	fs.String("metrics-addr", conf.Metrics.Addr, "serve prometheus metrics on this address")
	fs.String("metrics-push", conf.Metrics.Push, "push metrics to this prometheus push gateway")
}

// BindFlags makes the changed flags registered by AddFlags override the
// config file.
func BindFlags(vip *viper.Viper, fs *pflag.FlagSet) error {
	var errs []error
	fs.Visit(func(f *pflag.Flag) {
		key, ok := flagKeys[f.Name]
		if !ok {
			return
		}
		if err := vip.BindPFlag(key, f); err != nil {
			errs = append(errs, fmt.Errorf("bind flag %s: %w", f.Name, err))
		}
	})
	return errors.Join(errs...)
}
