// Package publish assigns message ids to the messages of one publisher.
package publish

import (
	"sync"

	"github.com/google/uuid"

	"github.com/spacemeshos/go-delivery/common/types"
)

type Opt func(*Chainer)

// WithChainIDs replaces the generator of message chain ids.
func WithChainIDs(next func() string) Opt {
	return func(c *Chainer) {
		c.newChainID = next
	}
}

type chainState struct {
	id   string
	prev *types.MessageRef
}

// Chainer links the messages a publisher sends to a stream partition into a
// single message chain. Each stream partition gets its own chain id.
//
// Messages sent within the same millisecond get increasing sequence numbers.
// A timestamp older than the previous message is moved up to it so that the
// chain stays ordered.
type Chainer struct {
	publisher  types.UserID
	newChainID func() string

	mu     sync.Mutex
	chains map[types.StreamPartID]*chainState
}

func NewChainer(publisher types.UserID, opts ...Opt) *Chainer {
	c := &Chainer{
		publisher:  publisher,
		newChainID: uuid.NewString,
		chains:     make(map[types.StreamPartID]*chainState),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *Chainer) Publisher() types.UserID {
	return c.publisher
}

// Next returns the id of the next message in streamPart and the reference
// to the message before it, nil for the first one.
func (c *Chainer) Next(streamPart types.StreamPartID, timestamp int64) (types.MessageID, *types.MessageRef) {
	c.mu.Lock()
	defer c.mu.Unlock()
	state, ok := c.chains[streamPart]
	if !ok {
		state = &chainState{id: c.newChainID()}
		c.chains[streamPart] = state
	}
	ref := types.MessageRef{Timestamp: timestamp}
	if state.prev != nil && timestamp <= state.prev.Timestamp {
		ref = types.MessageRef{Timestamp: state.prev.Timestamp, SequenceNumber: state.prev.SequenceNumber + 1}
	}
	id := types.MessageID{
		StreamID:       streamPart.StreamID(),
		Partition:      streamPart.Partition(),
		Timestamp:      ref.Timestamp,
		SequenceNumber: ref.SequenceNumber,
		PublisherID:    c.publisher,
		MsgChainID:     state.id,
	}
	prev := state.prev
	state.prev = &ref
	return id, prev
}

// Create builds the next message of streamPart.
func (c *Chainer) Create(streamPart types.StreamPartID, timestamp int64, content []byte) *types.StreamMessage {
	id, prev := c.Next(streamPart, timestamp)
	return &types.StreamMessage{
		ID:          id,
		PrevMsgRef:  prev,
		Content:     content,
		ContentType: types.ContentTypeJSON,
	}
}
