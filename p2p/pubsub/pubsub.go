// Package pubsub carries realtime stream messages over libp2p gossipsub.
package pubsub

import (
	"context"
	"errors"
	"fmt"
	"time"

	pubsub "github.com/libp2p/go-libp2p-pubsub"
	pb "github.com/libp2p/go-libp2p-pubsub/pb"
	"github.com/libp2p/go-libp2p/core/host"
	"github.com/libp2p/go-libp2p/core/peer"
	"github.com/multiformats/go-multiaddr"
	"go.uber.org/zap"

	"github.com/spacemeshos/go-delivery/common/types"
	"github.com/spacemeshos/go-delivery/hash"
)

const (
	GossipScoreThreshold             = -500
	PublishScoreThreshold            = -1000
	GraylistScoreThreshold           = -2500
	AcceptPXScoreThreshold           = 1000
	OpportunisticGraftScoreThreshold = 3.5
)

// ErrValidationReject is returned by a GossipHandler for malformed payloads.
// The sender is disconnected.
var ErrValidationReject = errors.New("validation reject")

// GossipHandler validates and consumes a payload received on a topic. Any
// error other than ErrValidationReject only stops the payload from being
// relayed.
type GossipHandler = func(context.Context, peer.ID, []byte) error

// DefaultConfig for PubSub.
func DefaultConfig() Config {
	return Config{
		Listen:         []string{"/ip4/0.0.0.0/tcp/7513"},
		Flood:          true,
		MaxMessageSize: 2 << 20,
		LowPeers:       20,
		HighPeers:      40,
		GracePeriod:    20 * time.Second,
	}
}

// Config for PubSub.
type Config struct {
	Listen    []string `mapstructure:"listen"`
	Bootnodes []string `mapstructure:"bootnodes"`

	Flood          bool `mapstructure:"flood"`
	IsBootnode     bool `mapstructure:"bootnode"`
	MaxMessageSize int  `mapstructure:"max-message-size"`

	LowPeers    int           `mapstructure:"low-peers"`
	HighPeers   int           `mapstructure:"high-peers"`
	GracePeriod time.Duration `mapstructure:"grace-period"`
}

func (c Config) Validate() error {
	var errs []error
	for _, addr := range c.Listen {
		if _, err := multiaddr.NewMultiaddr(addr); err != nil {
			errs = append(errs, fmt.Errorf("listen address %s: %w", addr, err))
		}
	}
	for _, addr := range c.Bootnodes {
		if _, err := peer.AddrInfoFromString(addr); err != nil {
			errs = append(errs, fmt.Errorf("bootnode %s: %w", addr, err))
		}
	}
	if c.LowPeers > c.HighPeers {
		errs = append(errs, fmt.Errorf("low-peers %d above high-peers %d", c.LowPeers, c.HighPeers))
	}
	return errors.Join(errs...)
}

// Topic is the gossip topic of a stream partition.
func Topic(streamPart types.StreamPartID) string {
	return "/delivery/1/" + string(streamPart)
}

// New creates PubSub instance.
func New(ctx context.Context, logger *zap.Logger, h host.Host, cfg Config) (*PubSub, error) {
	ps, err := pubsub.NewGossipSub(ctx, h, getOptions(cfg)...)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize gossipsub instance: %w", err)
	}
	return &PubSub{
		logger: logger,
		pubsub: ps,
		host:   h,
		topics: map[string]*pubsub.Topic{},
	}, nil
}

func msgID(msg *pb.Message) string {
	digest := hash.Sum([]byte(msg.GetTopic()), msg.Data)
	return string(digest[:])
}

func gossipParams(cfg Config) pubsub.GossipSubParams {
	params := pubsub.DefaultGossipSubParams()
	params.D = 8
	params.Dscore = 6
	params.Dout = 3
	params.Dlo = 6
	params.Dhi = 12
	params.Dlazy = 12
	params.DirectConnectInitialDelay = 30 * time.Second
	params.IWantFollowupTime = 5 * time.Second
	params.HistoryLength = 10
	params.GossipFactor = 0.1
	if cfg.IsBootnode {
		// only gossip and peer exchange on bootnodes
		params.D = 0
		params.Dscore = 0
		params.Dlo = 0
		params.Dhi = 0
		params.Dout = 0
		params.Dlazy = 64
		params.GossipFactor = 0.25
		params.PruneBackoff = 5 * time.Minute
	}
	return params
}

func getOptions(cfg Config) []pubsub.Option {
	options := []pubsub.Option{
		pubsub.WithGossipSubParams(gossipParams(cfg)),
		pubsub.WithFloodPublish(cfg.Flood),
		pubsub.WithMessageIdFn(msgID),
		pubsub.WithNoAuthor(),
		pubsub.WithMessageSignaturePolicy(pubsub.StrictNoSign),
		pubsub.WithPeerOutboundQueueSize(8192),
		pubsub.WithValidateQueueSize(8192),
		pubsub.WithPeerScore(
			&pubsub.PeerScoreParams{
				AppSpecificScore:  func(peer.ID) float64 { return 0 },
				AppSpecificWeight: 1,

				// behavioural penalties, decay after 1hr
				BehaviourPenaltyThreshold: 6,
				BehaviourPenaltyWeight:    -10,
				BehaviourPenaltyDecay:     pubsub.ScoreParameterDecay(time.Hour),

				DecayInterval: pubsub.DefaultDecayInterval,
				DecayToZero:   pubsub.DefaultDecayToZero,

				RetainScore: 6 * time.Hour,
			},
			&pubsub.PeerScoreThresholds{
				GossipThreshold:             GossipScoreThreshold,
				PublishThreshold:            PublishScoreThreshold,
				GraylistThreshold:           GraylistScoreThreshold,
				AcceptPXThreshold:           AcceptPXScoreThreshold,
				OpportunisticGraftThreshold: OpportunisticGraftScoreThreshold,
			},
		),
	}
	if cfg.MaxMessageSize != 0 {
		options = append(options, pubsub.WithMaxMessageSize(cfg.MaxMessageSize))
	}
	if cfg.IsBootnode {
		options = append(options, pubsub.WithPeerExchange(true))
	}
	return options
}
