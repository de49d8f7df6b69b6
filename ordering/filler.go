package ordering

import (
	"context"
	"fmt"
	"iter"
	"math/rand/v2"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"go.uber.org/zap"

	"github.com/spacemeshos/go-delivery/common/types"
	"github.com/spacemeshos/go-delivery/log"
)

// ResendFunc fetches the messages missing in gap from a storage node, in
// ascending order. It must stop once ctx is canceled.
type ResendFunc func(ctx context.Context, gap *Gap, node types.EthereumAddress) iter.Seq2[*types.StreamMessage, error]

// StorageNodesFunc returns the storage nodes of the stream.
type StorageNodesFunc func(ctx context.Context) ([]types.EthereumAddress, error)

type FillerConfig struct {
	Strategy Strategy
	// InitialWait is how long a gap may close on its own before the first
	// request.
	InitialWait time.Duration
	// RetryWait is the pause between requests.
	RetryWait time.Duration
	// MaxRequests is the number of requests per gap. With zero the filler
	// only waits InitialWait and then skips the gap.
	MaxRequests int
}

type FillerOpt func(*GapFiller)

func WithFillerLogger(logger *zap.Logger) FillerOpt {
	return func(f *GapFiller) {
		f.logger = logger
	}
}

func withFillerClock(clock clockwork.Clock) FillerOpt {
	return func(f *GapFiller) {
		f.clock = clock
	}
}

// GapFiller repairs the gaps of one chain.
//
// For each gap it first waits for the missing messages to arrive on their
// own. If the gap is still open it requests the missing window from a random
// storage node up to MaxRequests times. A failed request counts as an
// attempt. When the budget is spent the remaining holes are skipped according
// to the strategy and reported by the chain as unfillable. A gap closing on
// its own at any point stops the work for it.
type GapFiller struct {
	chain        *OrderedMessageChain
	resend       ResendFunc
	storageNodes StorageNodesFunc
	cfg          FillerConfig
	logger       *zap.Logger
	clock        clockwork.Clock

	wg     sync.WaitGroup
	mu     sync.Mutex
	cancel context.CancelFunc
}

func NewGapFiller(
	chain *OrderedMessageChain,
	resend ResendFunc,
	storageNodes StorageNodesFunc,
	cfg FillerConfig,
	opts ...FillerOpt,
) *GapFiller {
	f := &GapFiller{
		chain:        chain,
		resend:       resend,
		storageNodes: storageNodes,
		cfg:          cfg,
		logger:       zap.NewNop(),
		clock:        clockwork.NewRealClock(),
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// Start subscribes the filler to the gaps of its chain. Canceling ctx
// aborts all work, including requests in flight, without resolving anything.
func (f *GapFiller) Start(ctx context.Context) {
	f.chain.OnGapFound.Listen(func(_ context.Context, gap *Gap) error {
		f.startTask(ctx, gap)
		return nil
	})
	f.chain.OnGapResolved.Listen(func(context.Context, *Gap) error {
		f.stopTask()
		return nil
	})
}

// Wait blocks until no gap is being filled.
func (f *GapFiller) Wait() {
	f.wg.Wait()
}

func (f *GapFiller) startTask(ctx context.Context, gap *Gap) {
	ctx, cancel := context.WithCancel(ctx)
	f.mu.Lock()
	if f.cancel != nil {
		f.cancel()
	}
	f.cancel = cancel
	f.mu.Unlock()

	f.wg.Add(1)
	go func() {
		defer f.wg.Done()
		defer cancel()
		f.fill(log.WithNewRequestID(ctx), gap)
	}()
}

func (f *GapFiller) stopTask() {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.cancel != nil {
		f.cancel()
		f.cancel = nil
	}
}

func (f *GapFiller) fill(ctx context.Context, gap *Gap) {
	start := f.clock.Now()
	outcome := "resolved"
	defer func() {
		if f.chain.ctx.Err() != nil {
			outcome = "canceled"
		}
		gapFillDuration.WithLabelValues(outcome).Observe(f.clock.Since(start).Seconds())
	}()

	select {
	case <-ctx.Done():
		return
	case <-f.clock.After(f.cfg.InitialWait):
	}
	if f.cfg.MaxRequests > 0 {
		f.fetch(ctx, gap)
	}
	if ctx.Err() != nil {
		return
	}

	var skipped bool
	switch f.cfg.Strategy {
	case StrategyFull:
		to := gap.To.Ref()
		skipped = f.chain.resolveGap(gap, &to, true)
	default:
		skipped = f.chain.resolveGap(gap, nil, false)
	}
	if skipped {
		outcome = "unfillable"
	}
}

func (f *GapFiller) fetch(ctx context.Context, gap *Gap) {
	nodes, err := f.storageNodes(ctx)
	switch {
	case err != nil:
		f.logger.Debug("failed to get storage nodes",
			log.ZContext(ctx),
			log.ZStreamPart(f.chain.StreamPart()),
			log.NiceZapError(err),
		)
		return
	case len(nodes) == 0:
		f.logger.Debug("no storage nodes to fill gap",
			log.ZContext(ctx),
			log.ZStreamPart(f.chain.StreamPart()),
		)
		return
	}
	for attempt := range f.cfg.MaxRequests {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return
			case <-f.clock.After(f.cfg.RetryWait):
			}
		}
		window := gap
		if f.cfg.Strategy == StrategyLight {
			window = f.narrow(gap)
		}
		node := nodes[rand.IntN(len(nodes))]
		if err := f.request(ctx, window, node); err != nil {
			if ctx.Err() != nil {
				return
			}
			resendError.Inc()
			f.logger.Debug("resend failed",
				log.ZContext(ctx),
				log.ZStreamPart(f.chain.StreamPart()),
				zap.Object("chain", f.chain.Key()),
				zap.Int("attempt", attempt+1),
				zap.Stringer("node", node),
				log.NiceZapError(err),
			)
			continue
		}
		if ctx.Err() != nil {
			return
		}
		resendOk.Inc()
	}
}

// narrow moves the start of the window to the current head of the chain.
func (f *GapFiller) narrow(gap *Gap) *Gap {
	head := f.chain.Head()
	if head == nil || head.Ref().Compare(gap.From.Ref()) <= 0 || head.Ref().Compare(gap.To.Ref()) >= 0 {
		return gap
	}
	return &Gap{From: head, To: gap.To}
}

func (f *GapFiller) request(ctx context.Context, gap *Gap, node types.EthereumAddress) error {
	for msg, err := range f.resend(ctx, gap, node) {
		if err != nil {
			return fmt.Errorf("resend from %s: %w", node, err)
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		f.chain.AddMessage(msg)
	}
	return nil
}
