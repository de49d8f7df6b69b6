// Package ordering restores the publish order of the messages of a stream
// partition and repairs gaps with messages resent by storage nodes.
package ordering

import (
	"context"
	"fmt"
	"iter"
	"sync"

	"github.com/jonboulle/clockwork"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/spacemeshos/go-delivery/common/types"
	"github.com/spacemeshos/go-delivery/log"
	"github.com/spacemeshos/go-delivery/pipeline"
	"github.com/spacemeshos/go-delivery/resend"
)

type Opt func(*OrderMessages)

func WithLogger(logger *zap.Logger) Opt {
	return func(o *OrderMessages) {
		o.logger = logger
	}
}

func WithConfig(cfg Config) Opt {
	return func(o *OrderMessages) {
		o.cfg = cfg
	}
}

func withClock(clock clockwork.Clock) Opt {
	return func(o *OrderMessages) {
		o.clock = clock
	}
}

type cachedData[T any] struct {
	mu      sync.Mutex
	data    T
	loaded  bool
	loading chan struct{}
}

// get returns the cached value, calling init until it succeeds once. Only one
// init runs at a time; callers waiting on it give up when ctx is done.
func (c *cachedData[T]) get(ctx context.Context, init func() (T, error)) (T, error) {
	for {
		c.mu.Lock()
		if c.loaded {
			c.mu.Unlock()
			return c.data, nil
		}
		if c.loading == nil {
			break
		}
		loading := c.loading
		c.mu.Unlock()
		select {
		case <-loading:
		case <-ctx.Done():
			var empty T
			return empty, ctx.Err()
		}
	}
	loading := make(chan struct{})
	c.loading = loading
	c.mu.Unlock()

	d, err := init()

	c.mu.Lock()
	if err == nil {
		c.data = d
		c.loaded = true
	}
	c.loading = nil
	close(loading)
	c.mu.Unlock()
	return d, err
}

type chainEntry struct {
	chain  *OrderedMessageChain
	filler *GapFiller
}

// OrderMessages splits the messages of a stream partition into chains by
// publisher and message chain id and merges the ordered output of all chains
// into one sequence. Order is kept within a chain; chains interleave freely.
//
// All gap fills share one scope that Destroy cancels.
type OrderMessages struct {
	streamPart types.StreamPartID
	resends    resender
	resolver   storageNodeResolver
	cfg        Config
	logger     *zap.Logger
	clock      clockwork.Clock

	OnUnfillableGap *pipeline.Signal[*Gap]

	ctx    context.Context
	cancel context.CancelFunc
	output *pipeline.PushBuffer[*types.StreamMessage]
	nodes  cachedData[[]types.EthereumAddress]

	destroyOnce sync.Once

	mu     sync.Mutex
	chains map[ChainKey]*chainEntry
}

func New(
	streamPart types.StreamPartID,
	resends resender,
	resolver storageNodeResolver,
	opts ...Opt,
) *OrderMessages {
	o := &OrderMessages{
		streamPart:      streamPart,
		resends:         resends,
		resolver:        resolver,
		cfg:             DefaultConfig(),
		logger:          zap.NewNop(),
		clock:           clockwork.NewRealClock(),
		OnUnfillableGap: pipeline.NewSignal[*Gap](pipeline.TriggerParallel),
		chains:          make(map[ChainKey]*chainEntry),
	}
	for _, opt := range opts {
		opt(o)
	}
	o.ctx, o.cancel = context.WithCancel(context.Background())
	o.output = pipeline.NewPushBuffer[*types.StreamMessage](o.cfg.BufferSize)
	return o
}

// AddMessages routes src to the chains. Once src is exhausted it waits until
// every chain delivered or skipped its pending messages and ends the output.
// An error from src ends the output with that error.
func (o *OrderMessages) AddMessages(ctx context.Context, src iter.Seq2[*types.StreamMessage, error]) error {
	for msg, err := range src {
		if err != nil {
			o.output.EndWrite(err)
			return err
		}
		if o.ctx.Err() != nil {
			break
		}
		o.chainFor(msg).AddMessage(msg)
	}

	o.mu.Lock()
	chains := make([]*OrderedMessageChain, 0, len(o.chains))
	for _, entry := range o.chains {
		chains = append(chains, entry.chain)
	}
	o.mu.Unlock()

	var eg errgroup.Group
	for _, chain := range chains {
		eg.Go(func() error {
			return chain.WaitUntilIdle(ctx)
		})
	}
	err := eg.Wait()
	o.output.EndWrite(nil)
	if err != nil {
		return fmt.Errorf("wait for chains of %s: %w", o.streamPart, err)
	}
	return nil
}

// All iterates the ordered messages.
func (o *OrderMessages) All(ctx context.Context) iter.Seq2[*types.StreamMessage, error] {
	return o.output.All(ctx)
}

// Destroy cancels every gap fill. Messages already ordered are still
// delivered. Destroy is idempotent.
func (o *OrderMessages) Destroy() {
	o.destroyOnce.Do(func() {
		o.cancel()
		o.output.EndWrite(nil)

		o.mu.Lock()
		defer o.mu.Unlock()
		activeChains.Sub(float64(len(o.chains)))
	})
}

// Wait blocks until the gap fillers of all chains returned.
func (o *OrderMessages) Wait() {
	o.mu.Lock()
	fillers := make([]*GapFiller, 0, len(o.chains))
	for _, entry := range o.chains {
		fillers = append(fillers, entry.filler)
	}
	o.mu.Unlock()
	for _, filler := range fillers {
		filler.Wait()
	}
}

func (o *OrderMessages) chainFor(msg *types.StreamMessage) *OrderedMessageChain {
	key := KeyOf(msg)
	o.mu.Lock()
	defer o.mu.Unlock()
	if entry, ok := o.chains[key]; ok {
		return entry.chain
	}
	chain := NewOrderedMessageChain(o.ctx, o.streamPart, key, WithChainLogger(o.logger))
	chain.OnOrderedMessageAdded.Listen(func(_ context.Context, msg *types.StreamMessage) error {
		_, err := o.output.Push(o.ctx, msg)
		return err
	})
	chain.OnUnfillableGap.Listen(func(ctx context.Context, gap *Gap) error {
		return o.OnUnfillableGap.Trigger(ctx, gap)
	})
	filler := NewGapFiller(chain, o.resend, o.storageNodes, FillerConfig{
		Strategy:    o.cfg.GapFillStrategy,
		InitialWait: o.cfg.GapFillTimeout,
		RetryWait:   o.cfg.RetryResendAfter,
		MaxRequests: o.cfg.maxRequestsPerGap(),
	}, WithFillerLogger(o.logger), withFillerClock(o.clock))
	filler.Start(o.ctx)
	o.chains[key] = &chainEntry{chain: chain, filler: filler}
	activeChains.Inc()
	o.logger.Debug("new message chain",
		log.ZStreamPart(o.streamPart),
		zap.Object("chain", key),
	)
	return chain
}

// storageNodes resolves the storage nodes of the stream once per instance.
func (o *OrderMessages) storageNodes(ctx context.Context) ([]types.EthereumAddress, error) {
	return o.nodes.get(ctx, func() ([]types.EthereumAddress, error) {
		return o.resolver.StorageNodes(ctx, o.streamPart.StreamID())
	})
}

// resend requests the messages strictly between the ends of gap.
func (o *OrderMessages) resend(
	ctx context.Context,
	gap *Gap,
	node types.EthereumAddress,
) iter.Seq2[*types.StreamMessage, error] {
	return func(yield func(*types.StreamMessage, error) bool) {
		from := gap.From.Ref()
		publisher := gap.To.PublisherID()
		opts := resend.RangeOptions{
			From:        types.MessageRef{Timestamp: from.Timestamp, SequenceNumber: from.SequenceNumber + 1},
			To:          *gap.To.PrevMsgRef,
			PublisherID: &publisher,
			MsgChainID:  gap.To.MsgChainID(),
		}
		messages, err := o.resends.Range(ctx, o.streamPart, opts, []types.EthereumAddress{node})
		if err != nil {
			yield(nil, err)
			return
		}
		for msg, err := range messages.All(ctx) {
			if !yield(msg, err) || err != nil {
				return
			}
		}
	}
}
