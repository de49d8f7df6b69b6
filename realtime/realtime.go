// Package realtime delivers the messages gossiped on stream partition topics.
package realtime

import (
	"context"
	"errors"
	"fmt"

	"github.com/libp2p/go-libp2p/core/peer"
	"go.uber.org/zap"

	"github.com/spacemeshos/go-delivery/codec"
	"github.com/spacemeshos/go-delivery/common/types"
	"github.com/spacemeshos/go-delivery/log"
	"github.com/spacemeshos/go-delivery/p2p/pubsub"
	"github.com/spacemeshos/go-delivery/pipeline"
)

var errWrongStreamPart = errors.New("message published on a foreign stream partition")

type Opt func(*Source)

func WithLogger(logger *zap.Logger) Opt {
	return func(s *Source) {
		s.logger = logger
	}
}

func WithBufferSize(size int) Opt {
	return func(s *Source) {
		s.bufferSize = size
	}
}

// Source publishes and subscribes to the realtime messages of stream
// partitions.
type Source struct {
	ps         *pubsub.PubSub
	logger     *zap.Logger
	bufferSize int
}

func NewSource(ps *pubsub.PubSub, opts ...Opt) *Source {
	s := &Source{
		ps:         ps,
		logger:     zap.NewNop(),
		bufferSize: pipeline.DefaultBufferSize,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// validator rejects payloads that are not messages of streamPart.
func validator(streamPart types.StreamPartID) pubsub.GossipHandler {
	return func(_ context.Context, _ peer.ID, data []byte) error {
		var msg types.StreamMessage
		if err := codec.Decode(data, &msg); err != nil {
			return fmt.Errorf("%w: decode: %w", pubsub.ErrValidationReject, err)
		}
		if msg.ID.StreamPartID() != streamPart {
			return fmt.Errorf("%w: %w: %s", pubsub.ErrValidationReject, errWrongStreamPart, msg.ID.StreamPartID())
		}
		return nil
	}
}

// Register joins the topic of streamPart. Registering twice is a no-op.
func (s *Source) Register(streamPart types.StreamPartID) error {
	err := s.ps.Register(pubsub.Topic(streamPart), validator(streamPart))
	if errors.Is(err, pubsub.ErrAlreadyRegistered) {
		return nil
	}
	return err
}

// Publish gossips msg on the topic of its stream partition.
func (s *Source) Publish(ctx context.Context, msg *types.StreamMessage) error {
	data, err := codec.Encode(msg)
	if err != nil {
		return fmt.Errorf("encode %s: %w", msg.ID, err)
	}
	return s.ps.Publish(ctx, pubsub.Topic(msg.ID.StreamPartID()), data)
}

// Subscribe returns a pipeline of the messages received for streamPart.
// Pushing waits while the pipeline is full. The pipeline ends when ctx is
// canceled or the pipeline is returned.
func (s *Source) Subscribe(ctx context.Context, streamPart types.StreamPartID) (*pipeline.PushPipeline[*types.StreamMessage], error) {
	if err := s.Register(streamPart); err != nil {
		return nil, err
	}
	sub, err := s.ps.Subscribe(pubsub.Topic(streamPart))
	if err != nil {
		return nil, err
	}
	logger := s.logger.With(log.ZStreamPart(streamPart))
	out := pipeline.NewPushPipeline[*types.StreamMessage](s.bufferSize, pipeline.WithLogger(logger))
	ctx, cancel := context.WithCancel(ctx)
	out.OnBeforeFinally.Listen(func(context.Context, struct{}) error {
		cancel()
		return nil
	})
	go func() {
		defer sub.Cancel()
		defer cancel()
		err := out.Pull(ctx, decode(logger, sub.All(ctx)))
		if err != nil && ctx.Err() == nil {
			logger.Warn("realtime subscription failed", zap.Error(err))
		}
	}()
	logger.Debug("subscribed to realtime messages")
	return out, nil
}
