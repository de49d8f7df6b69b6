// gapsim exercises message ordering and gap filling, either against a
// simulated lossy network or over a real gossip network.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/spacemeshos/go-delivery/config"
	"github.com/spacemeshos/go-delivery/config/presets"
	"github.com/spacemeshos/go-delivery/log"
	"github.com/spacemeshos/go-delivery/metrics"
)

// Version is the app's semantic version. Designed to be overwritten by make.
var Version string

var (
	configPath string
	preset     string
)

func rootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:           "gapsim",
		Short:         "ordered delivery and gap fill simulator",
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	cmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "load configuration from file")
	cmd.PersistentFlags().StringVarP(&preset, "preset", "p", "",
		fmt.Sprintf("preset overwrites default values of the config. options %+s", presets.Options()))
	config.AddFlags(cmd.PersistentFlags(), config.DefaultConfig())
	cmd.AddCommand(runCmd(), listenCmd(), publishCmd())
	return cmd
}

// loadConfig merges the preset, the config file and the changed flags.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	defaults := config.DefaultConfig()
	if preset != "" {
		var err error
		if defaults, err = presets.Get(preset); err != nil {
			return nil, err
		}
	}
	vip := viper.New()
	if err := config.BindFlags(vip, cmd.Flags()); err != nil {
		return nil, err
	}
	return config.LoadWithDefaults(configPath, vip, defaults)
}

// setup loads the config, builds the logger and starts the metrics exporters.
func setup(cmd *cobra.Command) (*config.Config, *zap.Logger, error) {
	conf, err := loadConfig(cmd)
	if err != nil {
		return nil, nil, err
	}
	logger, err := log.FromConfig("gapsim", conf.Logging)
	if err != nil {
		return nil, nil, err
	}
	ctx := cmd.Context()
	if conf.Metrics.Addr != "" {
		srv, err := metrics.StartMetricsServer(ctx, logger.Named("metrics"), conf.Metrics.Addr)
		if err != nil {
			return nil, nil, err
		}
		logger.Info("serving metrics", zap.String("addr", srv.Addr()))
	}
	if conf.Metrics.Push != "" {
		metrics.StartPushingMetrics(ctx, logger.Named("metrics"), conf.Metrics.Push, "gapsim", conf.Metrics.PushPeriod)
	}
	return conf, logger, nil
}

// module returns the logger of a component with its configured level.
func module(logger *zap.Logger, conf *config.Config, name string) *zap.Logger {
	lgr, err := log.Module(logger, conf.Logging, name)
	if err != nil {
		logger.Warn("invalid module level", zap.String("module", name), zap.Error(err))
		return logger.Named(name)
	}
	return lgr
}

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()
	if err := rootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
