package ordering

import (
	"context"
	"slices"
	"sync"

	"github.com/spacemeshos/go-delivery/common/types"
	"github.com/spacemeshos/go-delivery/pipeline"
)

var (
	part      = types.NewStreamPartID("stream", 0)
	publisher = types.MustParseAddress("0x1111111111111111111111111111111111111111")
	node      = types.MustParseAddress("0xaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa")
)

const chainID = "msg-chain"

func ref(ts int64, seq uint32) types.MessageRef {
	return types.MessageRef{Timestamp: ts, SequenceNumber: seq}
}

// message at ts linked to the message 1000 before it.
func message(ts int64) *types.StreamMessage {
	return chainMessage(chainID, ts)
}

func chainMessage(chain string, ts int64) *types.StreamMessage {
	prev := ref(ts-1000, 0)
	return &types.StreamMessage{
		ID: types.MessageID{
			StreamID:    part.StreamID(),
			Partition:   part.Partition(),
			Timestamp:   ts,
			PublisherID: publisher,
			MsgChainID:  chain,
		},
		PrevMsgRef: &prev,
		Content:    []byte(`{"ts":1}`),
	}
}

// messages at 1000, 2000, ... n*1000.
func messages(n int) []*types.StreamMessage {
	out := make([]*types.StreamMessage, 0, n)
	for i := 1; i <= n; i++ {
		out = append(out, message(int64(i)*1000))
	}
	return out
}

func without(msgs []*types.StreamMessage, ts ...int64) []*types.StreamMessage {
	return slices.DeleteFunc(slices.Clone(msgs), func(msg *types.StreamMessage) bool {
		return slices.Contains(ts, msg.ID.Timestamp)
	})
}

func only(msgs []*types.StreamMessage, ts ...int64) []*types.StreamMessage {
	return slices.DeleteFunc(slices.Clone(msgs), func(msg *types.StreamMessage) bool {
		return !slices.Contains(ts, msg.ID.Timestamp)
	})
}

func timestamps(msgs []*types.StreamMessage) []int64 {
	out := make([]int64, 0, len(msgs))
	for _, msg := range msgs {
		out = append(out, msg.ID.Timestamp)
	}
	return out
}

func seqOf(msgs ...*types.StreamMessage) func(func(*types.StreamMessage, error) bool) {
	return func(yield func(*types.StreamMessage, error) bool) {
		for _, msg := range msgs {
			if !yield(msg, nil) {
				return
			}
		}
	}
}

func stream(msgs ...*types.StreamMessage) *pipeline.PushPipeline[*types.StreamMessage] {
	p := pipeline.NewPushPipeline[*types.StreamMessage](len(msgs) + 1)
	for _, msg := range msgs {
		p.Push(context.Background(), msg)
	}
	p.EndWrite(nil)
	return p
}

type gapRecord struct {
	from, to int64
}

type chainEvents struct {
	ordered    []int64
	found      []gapRecord
	resolved   []gapRecord
	unfillable []gapRecord
}

type events struct {
	mu sync.Mutex
	chainEvents
}

func record(gap *Gap) gapRecord {
	return gapRecord{from: gap.From.ID.Timestamp, to: gap.To.ID.Timestamp}
}

func (e *events) watch(c *OrderedMessageChain) {
	c.OnOrderedMessageAdded.Listen(func(_ context.Context, msg *types.StreamMessage) error {
		e.mu.Lock()
		defer e.mu.Unlock()
		e.ordered = append(e.ordered, msg.ID.Timestamp)
		return nil
	})
	add := func(dst *[]gapRecord) pipeline.Listener[*Gap] {
		return func(_ context.Context, gap *Gap) error {
			e.mu.Lock()
			defer e.mu.Unlock()
			*dst = append(*dst, record(gap))
			return nil
		}
	}
	c.OnGapFound.Listen(add(&e.found))
	c.OnGapResolved.Listen(add(&e.resolved))
	c.OnUnfillableGap.Listen(add(&e.unfillable))
}

func (e *events) snapshot() chainEvents {
	e.mu.Lock()
	defer e.mu.Unlock()
	return chainEvents{
		ordered:    slices.Clone(e.ordered),
		found:      slices.Clone(e.found),
		resolved:   slices.Clone(e.resolved),
		unfillable: slices.Clone(e.unfillable),
	}
}
