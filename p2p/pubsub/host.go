package pubsub

import (
	"context"
	"fmt"

	"github.com/libp2p/go-libp2p"
	"github.com/libp2p/go-libp2p/core/host"
	"github.com/libp2p/go-libp2p/core/peer"
	"github.com/libp2p/go-libp2p/p2p/net/connmgr"
	"go.uber.org/zap"
)

const userAgent = "go-delivery"

// NewHost starts a libp2p host listening on the configured addresses and
// connects it to the bootnodes.
func NewHost(ctx context.Context, logger *zap.Logger, cfg Config) (host.Host, error) {
	bootnodes := make([]peer.AddrInfo, 0, len(cfg.Bootnodes))
	for _, raw := range cfg.Bootnodes {
		info, err := peer.AddrInfoFromString(raw)
		if err != nil {
			return nil, fmt.Errorf("parse bootnode %s: %w", raw, err)
		}
		bootnodes = append(bootnodes, *info)
	}
	cm, err := connmgr.NewConnManager(cfg.LowPeers, cfg.HighPeers, connmgr.WithGracePeriod(cfg.GracePeriod))
	if err != nil {
		return nil, fmt.Errorf("create connection manager: %w", err)
	}
	h, err := libp2p.New(
		libp2p.ListenAddrStrings(cfg.Listen...),
		libp2p.UserAgent(userAgent),
		libp2p.ConnectionManager(cm),
	)
	if err != nil {
		return nil, fmt.Errorf("create libp2p host: %w", err)
	}
	for _, info := range bootnodes {
		cm.Protect(info.ID, "bootnode")
		if err := h.Connect(ctx, info); err != nil {
			logger.Warn("failed to connect to bootnode", zap.Stringer("peer", info.ID), zap.Error(err))
			continue
		}
		logger.Info("connected to bootnode", zap.Stringer("peer", info.ID))
	}
	logger.Info("host started",
		zap.Stringer("id", h.ID()),
		zap.Any("addresses", h.Addrs()),
	)
	return h, nil
}
