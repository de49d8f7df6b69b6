// Package subscribe delivers the messages of a stream partition to a
// consumer, optionally ordered and gap filled.
package subscribe

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"sync"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/spacemeshos/go-delivery/common/types"
	"github.com/spacemeshos/go-delivery/log"
	"github.com/spacemeshos/go-delivery/ordering"
	"github.com/spacemeshos/go-delivery/pipeline"
	"github.com/spacemeshos/go-delivery/resend"
)

// Resender requests stored messages from storage nodes.
type Resender interface {
	Last(ctx context.Context, streamPart types.StreamPartID, last int, nodes []types.EthereumAddress) (*pipeline.PushPipeline[*types.StreamMessage], error)
	Range(ctx context.Context, streamPart types.StreamPartID, opts resend.RangeOptions, nodes []types.EthereumAddress) (*pipeline.PushPipeline[*types.StreamMessage], error)
}

type StorageNodeResolver interface {
	StorageNodes(ctx context.Context, stream types.StreamID) ([]types.EthereumAddress, error)
}

type Opt func(*Subscription)

func WithLogger(logger *zap.Logger) Opt {
	return func(s *Subscription) {
		s.logger = logger
	}
}

func WithConfig(cfg ordering.Config) Opt {
	return func(s *Subscription) {
		s.cfg = cfg
	}
}

// Subscription reads an input source into its output. With ordering enabled
// the input goes through ordering.OrderMessages first.
type Subscription struct {
	streamPart types.StreamPartID
	input      pipeline.Source[*types.StreamMessage]
	resends    Resender
	resolver   StorageNodeResolver
	cfg        ordering.Config
	logger     *zap.Logger

	// OnUnfillableGap fires for every gap skipped by the ordering.
	OnUnfillableGap *pipeline.Signal[*ordering.Gap]

	output *pipeline.PushPipeline[*types.StreamMessage]
	order  *ordering.OrderMessages
	cancel context.CancelFunc
	once   sync.Once
	done   chan struct{}
}

// New starts delivering input. The subscription lasts until input ends, ctx
// is canceled or Unsubscribe is called.
func New(
	ctx context.Context,
	streamPart types.StreamPartID,
	input pipeline.Source[*types.StreamMessage],
	resends Resender,
	resolver StorageNodeResolver,
	opts ...Opt,
) *Subscription {
	s := newSubscription(streamPart, input, resends, resolver, opts...)
	s.start(ctx)
	return s
}

func newSubscription(
	streamPart types.StreamPartID,
	input pipeline.Source[*types.StreamMessage],
	resends Resender,
	resolver StorageNodeResolver,
	opts ...Opt,
) *Subscription {
	s := &Subscription{
		streamPart:      streamPart,
		input:           input,
		resends:         resends,
		resolver:        resolver,
		cfg:             ordering.DefaultConfig(),
		logger:          zap.NewNop(),
		OnUnfillableGap: pipeline.NewSignal[*ordering.Gap](pipeline.TriggerParallel),
		done:            make(chan struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = s.logger.With(log.ZStreamPart(streamPart))
	s.output = pipeline.NewPushPipeline[*types.StreamMessage](s.cfg.BufferSize, pipeline.WithLogger(s.logger))
	return s
}

func (s *Subscription) start(ctx context.Context) {
	ctx, s.cancel = context.WithCancel(ctx)
	if !s.cfg.OrderMessages {
		go func() {
			defer close(s.done)
			s.report(s.output.Pull(ctx, s.input.All(ctx)))
		}()
		return
	}
	s.order = ordering.New(s.streamPart, s.resends, s.resolver,
		ordering.WithConfig(s.cfg),
		ordering.WithLogger(s.logger),
	)
	s.order.OnUnfillableGap.Listen(func(ctx context.Context, gap *ordering.Gap) error {
		return s.OnUnfillableGap.Trigger(ctx, gap)
	})
	go func() {
		defer close(s.done)
		var eg errgroup.Group
		eg.Go(func() error {
			return s.order.AddMessages(ctx, s.input.All(ctx))
		})
		eg.Go(func() error {
			return s.output.Pull(ctx, s.order.All(ctx))
		})
		s.report(eg.Wait())
		s.order.Destroy()
		s.order.Wait()
	}()
}

func (s *Subscription) report(err error) {
	if err != nil && !errors.Is(err, context.Canceled) {
		s.logger.Warn("subscription ended with error", log.NiceZapError(err))
	}
}

func (s *Subscription) StreamPart() types.StreamPartID {
	return s.streamPart
}

// All iterates the delivered messages. An input failure is yielded as the
// last element.
func (s *Subscription) All(ctx context.Context) iter.Seq2[*types.StreamMessage, error] {
	return s.output.All(ctx)
}

// Unsubscribe stops the input and the gap fills and waits for the delivery
// to stop. Messages already delivered to the output stay readable.
func (s *Subscription) Unsubscribe() {
	s.once.Do(func() {
		s.cancel()
		if r, ok := s.input.(pipeline.Returner); ok {
			r.Return()
		}
		if s.order != nil {
			s.order.Destroy()
		}
		s.output.EndWrite(nil)
	})
	<-s.done
}

// ResendThenRealtime delivers the last n stored messages of streamPart
// followed by its realtime messages. The realtime subscription is opened
// first, and ordering drops the realtime copies of resent messages.
func ResendThenRealtime(
	ctx context.Context,
	streamPart types.StreamPartID,
	last int,
	realtime RealtimeSubscriber,
	resends Resender,
	resolver StorageNodeResolver,
	opts ...Opt,
) (*Subscription, error) {
	live, err := realtime.Subscribe(ctx, streamPart)
	if err != nil {
		return nil, fmt.Errorf("subscribe to %s: %w", streamPart, err)
	}
	nodes, err := resolver.StorageNodes(ctx, streamPart.StreamID())
	if err != nil {
		live.Return()
		return nil, fmt.Errorf("storage nodes of %s: %w", streamPart, err)
	}
	resent, err := resends.Last(ctx, streamPart, last, nodes)
	if err != nil {
		live.Return()
		return nil, fmt.Errorf("resend last %d of %s: %w", last, streamPart, err)
	}
	s := newSubscription(streamPart, concat(resent, live), resends, resolver, opts...)
	s.cfg.OrderMessages = true
	s.start(ctx)
	return s, nil
}

// RealtimeSubscriber is implemented by realtime.Source.
type RealtimeSubscriber interface {
	Subscribe(ctx context.Context, streamPart types.StreamPartID) (*pipeline.PushPipeline[*types.StreamMessage], error)
}
