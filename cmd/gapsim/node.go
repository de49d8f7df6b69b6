package main

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/spacemeshos/go-delivery/common/types"
	"github.com/spacemeshos/go-delivery/config"
	"github.com/spacemeshos/go-delivery/p2p/pubsub"
	"github.com/spacemeshos/go-delivery/publish"
	"github.com/spacemeshos/go-delivery/realtime"
	"github.com/spacemeshos/go-delivery/resend"
	"github.com/spacemeshos/go-delivery/subscribe"
)

// startGossip starts a libp2p host joined to the gossip network.
func startGossip(ctx context.Context, logger *zap.Logger, conf *config.Config) (*realtime.Source, func(), error) {
	h, err := pubsub.NewHost(ctx, logger, conf.PubSub)
	if err != nil {
		return nil, nil, err
	}
	ps, err := pubsub.New(ctx, logger, h, conf.PubSub)
	if err != nil {
		h.Close()
		return nil, nil, err
	}
	return realtime.NewSource(ps, realtime.WithLogger(logger)), func() { h.Close() }, nil
}

func listenCmd() *cobra.Command {
	var (
		stream string
		last   int
	)
	cmd := &cobra.Command{
		Use:   "listen",
		Short: "print the ordered messages of a stream partition",
		RunE: func(cmd *cobra.Command, _ []string) error {
			part, err := types.ParseStreamPartID(stream)
			if err != nil {
				return err
			}
			conf, logger, err := setup(cmd)
			if err != nil {
				return err
			}
			defer logger.Sync()
			ctx := cmd.Context()

			source, stop, err := startGossip(ctx, module(logger, conf, "p2p"), conf)
			if err != nil {
				return err
			}
			defer stop()
			resends, err := resend.New(conf.Resend, resend.WithLogger(module(logger, conf, "resend")))
			if err != nil {
				return err
			}
			registry, err := resend.NewStaticRegistry(conf.Resend)
			if err != nil {
				return err
			}
			nodes := resend.NewNodeCache(registry, conf.Resend.NodeCacheSize, conf.Resend.NodeCacheTTL)

			opts := []subscribe.Opt{
				subscribe.WithConfig(conf.Ordering),
				subscribe.WithLogger(module(logger, conf, "subscribe")),
			}
			var sub *subscribe.Subscription
			if last > 0 {
				sub, err = subscribe.ResendThenRealtime(ctx, part, last, source, resends, nodes, opts...)
				if err != nil {
					return err
				}
			} else {
				live, err := source.Subscribe(ctx, part)
				if err != nil {
					return err
				}
				sub = subscribe.New(ctx, part, live, resends, nodes, opts...)
			}
			defer sub.Unsubscribe()
			return printMessages(ctx, cmd.OutOrStdout(), sub)
		},
	}
	cmd.Flags().StringVar(&stream, "stream", "gapsim#0", "stream partition, <stream>#<partition>")
	cmd.Flags().IntVar(&last, "last", 0, "resend this many stored messages before the realtime ones")
	return cmd
}

func printMessages(ctx context.Context, w io.Writer, sub *subscribe.Subscription) error {
	for msg, err := range sub.All(ctx) {
		if err != nil {
			return err
		}
		fmt.Fprintf(w, "%s %s\n", msg.ID, msg.Content)
	}
	return nil
}

func publishCmd() *cobra.Command {
	var (
		stream   string
		count    int
		interval time.Duration
	)
	cmd := &cobra.Command{
		Use:   "publish",
		Short: "gossip chained messages to a stream partition",
		RunE: func(cmd *cobra.Command, _ []string) error {
			part, err := types.ParseStreamPartID(stream)
			if err != nil {
				return err
			}
			conf, logger, err := setup(cmd)
			if err != nil {
				return err
			}
			defer logger.Sync()
			ctx := cmd.Context()

			source, stop, err := startGossip(ctx, module(logger, conf, "p2p"), conf)
			if err != nil {
				return err
			}
			defer stop()
			if err := source.Register(part); err != nil {
				return err
			}
			var publisher types.UserID
			id := uuid.New()
			copy(publisher[:], id[:])
			chainer := publish.NewChainer(publisher)

			ticker := time.NewTicker(interval)
			defer ticker.Stop()
			for n := 0; count <= 0 || n < count; n++ {
				select {
				case <-ctx.Done():
					return nil
				case now := <-ticker.C:
					msg := chainer.Create(part, now.UnixMilli(), fmt.Appendf(nil, `{"n":%d}`, n))
					if err := source.Publish(ctx, msg); err != nil {
						logger.Warn("failed to publish", zap.Object("id", msg.ID), zap.Error(err))
						continue
					}
					logger.Debug("published", zap.Object("id", msg.ID))
				}
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&stream, "stream", "gapsim#0", "stream partition, <stream>#<partition>")
	cmd.Flags().IntVar(&count, "count", 0, "messages to publish, 0 publishes until interrupted")
	cmd.Flags().DurationVar(&interval, "interval", time.Second, "pause between messages")
	return cmd
}
