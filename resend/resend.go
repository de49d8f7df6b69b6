// Package resend fetches stored messages of stream partitions from storage
// nodes.
package resend

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"

	"go.uber.org/zap"

	"github.com/spacemeshos/go-delivery/common/types"
	"github.com/spacemeshos/go-delivery/log"
	"github.com/spacemeshos/go-delivery/pipeline"
)

var (
	ErrNoStorageNodes = errors.New("no storage nodes")
	ErrUnknownNode    = errors.New("unknown storage node")
)

type Opt func(*Resends)

func WithLogger(logger *zap.Logger) Opt {
	return func(r *Resends) {
		r.logger = logger
	}
}

// Resends issues resend requests to the storage nodes listed in Config.
type Resends struct {
	cfg     Config
	logger  *zap.Logger
	clients map[types.EthereumAddress]*Client
}

func New(cfg Config, opts ...Opt) (*Resends, error) {
	r := &Resends{
		cfg:     cfg,
		logger:  zap.NewNop(),
		clients: make(map[types.EthereumAddress]*Client, len(cfg.Nodes)),
	}
	for _, opt := range opts {
		opt(r)
	}
	for address, nodeURL := range cfg.Nodes {
		node, err := types.ParseAddress(address)
		if err != nil {
			return nil, fmt.Errorf("storage node %q: %w", address, err)
		}
		client, err := NewClient(nodeURL, cfg, WithClientLogger(r.logger.Named("client")))
		if err != nil {
			return nil, fmt.Errorf("storage node %s: %w", node, err)
		}
		r.clients[node] = client
	}
	return r, nil
}

// Resend requests the messages selected by opts from one of nodes picked at
// random. The messages are pushed into the returned pipeline in the order the
// node sends them. A request for zero last messages returns an ended
// pipeline without contacting any node.
func (r *Resends) Resend(
	ctx context.Context,
	streamPart types.StreamPartID,
	opts Options,
	nodes []types.EthereumAddress,
) (*pipeline.PushPipeline[*types.StreamMessage], error) {
	out := pipeline.NewPushPipeline[*types.StreamMessage](r.cfg.BufferSize, pipeline.WithLogger(r.logger))
	if last, ok := opts.(LastOptions); ok && last.Last <= 0 {
		out.EndWrite(nil)
		return out, nil
	}
	if len(nodes) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrNoStorageNodes, streamPart)
	}
	node := nodes[rand.IntN(len(nodes))]
	client, ok := r.clients[node]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownNode, node)
	}
	r.logger.Debug("resend",
		log.ZContext(ctx),
		log.ZStreamPart(streamPart),
		zap.Stringer("node", node),
		zap.String("endpoint", opts.endpoint()),
	)
	go func() {
		if err := out.Pull(ctx, client.Fetch(ctx, streamPart, opts)); err != nil {
			r.logger.Debug("resend failed",
				log.ZContext(ctx),
				log.ZStreamPart(streamPart),
				zap.Stringer("node", node),
				log.NiceZapError(err),
			)
		}
	}()
	return out, nil
}

func (r *Resends) Last(
	ctx context.Context,
	streamPart types.StreamPartID,
	last int,
	nodes []types.EthereumAddress,
) (*pipeline.PushPipeline[*types.StreamMessage], error) {
	return r.Resend(ctx, streamPart, LastOptions{Last: last}, nodes)
}

func (r *Resends) From(
	ctx context.Context,
	streamPart types.StreamPartID,
	opts FromOptions,
	nodes []types.EthereumAddress,
) (*pipeline.PushPipeline[*types.StreamMessage], error) {
	return r.Resend(ctx, streamPart, opts, nodes)
}

func (r *Resends) Range(
	ctx context.Context,
	streamPart types.StreamPartID,
	opts RangeOptions,
	nodes []types.EthereumAddress,
) (*pipeline.PushPipeline[*types.StreamMessage], error) {
	return r.Resend(ctx, streamPart, opts, nodes)
}
