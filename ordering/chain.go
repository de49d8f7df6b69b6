package ordering

import (
	"container/heap"
	"context"
	"sync"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/spacemeshos/go-delivery/common/types"
	"github.com/spacemeshos/go-delivery/log"
	"github.com/spacemeshos/go-delivery/pipeline"
)

// ChainKey identifies a message chain within a stream partition.
type ChainKey struct {
	PublisherID types.UserID
	MsgChainID  string
}

func KeyOf(msg *types.StreamMessage) ChainKey {
	return ChainKey{PublisherID: msg.PublisherID(), MsgChainID: msg.MsgChainID()}
}

func (k ChainKey) MarshalLogObject(encoder zapcore.ObjectEncoder) error {
	encoder.AddString("publisher", k.PublisherID.String())
	encoder.AddString("msg_chain", k.MsgChainID)
	return nil
}

// Gap is a hole between two messages of a chain. From is the last message
// delivered before the hole and To the first known message after it. To
// always has a previous message reference.
type Gap struct {
	From *types.StreamMessage
	To   *types.StreamMessage
}

func (g *Gap) MarshalLogObject(encoder zapcore.ObjectEncoder) error {
	if err := encoder.AddObject("from", g.From.Ref()); err != nil {
		return err
	}
	return encoder.AddObject("to", g.To.Ref())
}

type messageHeap []*types.StreamMessage

func (h messageHeap) Len() int           { return len(h) }
func (h messageHeap) Less(i, j int) bool { return h[i].Ref().Less(h[j].Ref()) }
func (h messageHeap) Swap(i, j int)      { h[i], h[j] = h[j], h[i] }
func (h *messageHeap) Push(x any)        { *h = append(*h, x.(*types.StreamMessage)) }

func (h *messageHeap) Pop() any {
	old := *h
	n := len(old)
	x := old[n-1]
	old[n-1] = nil
	*h = old[:n-1]
	return x
}

type ChainOpt func(*OrderedMessageChain)

func WithChainLogger(logger *zap.Logger) ChainOpt {
	return func(c *OrderedMessageChain) {
		c.logger = logger
	}
}

// OrderedMessageChain delivers the messages of one chain in ascending order.
//
// A message is delivered when its previous reference points at the last
// delivered message. Other messages are kept pending, ordered by reference,
// and the first of them opens a gap. Only one gap is open at a time: every
// OnGapFound is followed by OnGapResolved before the next OnGapFound.
//
// Events are emitted while the chain is locked. Listeners must not call back
// into the chain on the same goroutine.
type OrderedMessageChain struct {
	streamPart types.StreamPartID
	key        ChainKey
	logger     *zap.Logger
	ctx        context.Context

	OnOrderedMessageAdded *pipeline.Signal[*types.StreamMessage]
	OnGapFound            *pipeline.Signal[*Gap]
	OnGapResolved         *pipeline.Signal[*Gap]
	OnUnfillableGap       *pipeline.Signal[*Gap]

	mu          sync.Mutex
	lastOrdered *types.StreamMessage
	pending     messageHeap
	pendingRefs map[types.MessageRef]struct{}
	currentGap  *Gap
	// open while nothing is pending, locked once the chain is aborted.
	idle *pipeline.Gate
}

// NewOrderedMessageChain creates a chain living until ctx is canceled. Once
// canceled the chain drops its listeners and emits nothing.
func NewOrderedMessageChain(
	ctx context.Context,
	streamPart types.StreamPartID,
	key ChainKey,
	opts ...ChainOpt,
) *OrderedMessageChain {
	c := &OrderedMessageChain{
		streamPart:            streamPart,
		key:                   key,
		logger:                zap.NewNop(),
		ctx:                   ctx,
		OnOrderedMessageAdded: pipeline.NewSignal[*types.StreamMessage](pipeline.TriggerParallel),
		OnGapFound:            pipeline.NewSignal[*Gap](pipeline.TriggerParallel),
		OnGapResolved:         pipeline.NewSignal[*Gap](pipeline.TriggerParallel),
		OnUnfillableGap:       pipeline.NewSignal[*Gap](pipeline.TriggerParallel),
		pendingRefs:           make(map[types.MessageRef]struct{}),
		idle:                  pipeline.NewGate(true),
	}
	for _, opt := range opts {
		opt(c)
	}
	context.AfterFunc(ctx, c.abort)
	return c
}

func (c *OrderedMessageChain) abort() {
	c.OnOrderedMessageAdded.Clear()
	c.OnGapFound.Clear()
	c.OnGapResolved.Clear()
	c.OnUnfillableGap.Clear()
	c.idle.Lock()
}

func (c *OrderedMessageChain) Key() ChainKey {
	return c.key
}

func (c *OrderedMessageChain) StreamPart() types.StreamPartID {
	return c.streamPart
}

// Head returns the last delivered message.
func (c *OrderedMessageChain) Head() *types.StreamMessage {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lastOrdered
}

// CurrentGap returns the open gap, if any.
func (c *OrderedMessageChain) CurrentGap() *Gap {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.currentGap
}

func (c *OrderedMessageChain) PendingCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.pending.Len()
}

// AddMessage adds a message from any source. Messages at or before the head
// and messages already pending are ignored.
func (c *OrderedMessageChain) AddMessage(msg *types.StreamMessage) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.isStale(msg) {
		return
	}
	heap.Push(&c.pending, msg)
	c.pendingRefs[msg.Ref()] = struct{}{}
	c.consume(c.isNextOrdered, true)
}

// ResolveMessages delivers pending messages up to and including to, or all
// of them when to is nil, even if messages before them are missing. Every
// skipped hole is reported through OnUnfillableGap. With gapCheck disabled
// no new gap is opened for the messages left pending.
func (c *OrderedMessageChain) ResolveMessages(to *types.MessageRef, gapCheck bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.resolve(to, gapCheck)
}

// resolveGap is ResolveMessages for the owner of gap. It does nothing if gap
// is no longer the open gap.
func (c *OrderedMessageChain) resolveGap(gap *Gap, to *types.MessageRef, gapCheck bool) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.currentGap != gap {
		return false
	}
	c.resolve(to, gapCheck)
	return true
}

func (c *OrderedMessageChain) resolve(to *types.MessageRef, gapCheck bool) {
	c.consume(func(msg *types.StreamMessage) bool {
		if c.isNextOrdered(msg) {
			return true
		}
		if to == nil || msg.Ref().Compare(*to) <= 0 {
			gap := &Gap{From: c.lastOrdered, To: msg}
			unfillableGaps.Inc()
			c.logger.Debug("unfillable gap",
				log.ZStreamPart(c.streamPart),
				zap.Object("chain", c.key),
				log.ZGap(gap.From.Ref(), gap.To.Ref()),
			)
			emit(c, c.OnUnfillableGap, gap)
			return true
		}
		return false
	}, gapCheck)
}

// WaitUntilIdle waits until no message is pending. It returns early without
// an error if the chain is aborted.
func (c *OrderedMessageChain) WaitUntilIdle(ctx context.Context) error {
	_, err := c.idle.Check(ctx)
	return err
}

func (c *OrderedMessageChain) consume(consumable func(*types.StreamMessage) bool, gapCheck bool) {
	for c.pending.Len() > 0 && consumable(c.pending[0]) {
		next := heap.Pop(&c.pending).(*types.StreamMessage)
		delete(c.pendingRefs, next.Ref())
		c.lastOrdered = next
		emit(c, c.OnOrderedMessageAdded, next)
		c.checkGapResolved()
	}
	if gapCheck {
		c.checkGapFound()
	}
	c.idle.SetOpenState(c.pending.Len() == 0)
}

func (c *OrderedMessageChain) checkGapFound() {
	if c.pending.Len() == 0 || c.currentGap != nil {
		return
	}
	c.currentGap = &Gap{From: c.lastOrdered, To: c.pending[0]}
	gapsFound.Inc()
	c.logger.Debug("gap found",
		log.ZStreamPart(c.streamPart),
		zap.Object("chain", c.key),
		log.ZGap(c.currentGap.From.Ref(), c.currentGap.To.Ref()),
	)
	emit(c, c.OnGapFound, c.currentGap)
}

func (c *OrderedMessageChain) checkGapResolved() {
	if c.currentGap == nil || c.lastOrdered.Ref() != c.currentGap.To.Ref() {
		return
	}
	gap := c.currentGap
	c.currentGap = nil
	gapsResolved.Inc()
	c.logger.Debug("gap resolved",
		log.ZStreamPart(c.streamPart),
		zap.Object("chain", c.key),
		log.ZGap(gap.From.Ref(), gap.To.Ref()),
	)
	emit(c, c.OnGapResolved, gap)
}

// emit runs the listeners of signal unless the chain was aborted.
func emit[T any](c *OrderedMessageChain, signal *pipeline.Signal[T], value T) {
	if c.ctx.Err() != nil {
		return
	}
	if err := signal.Trigger(c.ctx, value); err != nil {
		c.logger.Debug("chain listener failed", log.ZStreamPart(c.streamPart), zap.Error(err))
	}
}

func (c *OrderedMessageChain) isNextOrdered(msg *types.StreamMessage) bool {
	return c.lastOrdered == nil || msg.PrevMsgRef == nil || *msg.PrevMsgRef == c.lastOrdered.Ref()
}

func (c *OrderedMessageChain) isStale(msg *types.StreamMessage) bool {
	if c.lastOrdered != nil && msg.Ref().Compare(c.lastOrdered.Ref()) <= 0 {
		return true
	}
	_, ok := c.pendingRefs[msg.Ref()]
	return ok
}
