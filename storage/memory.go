// Package storage is an in-memory storage node. It keeps the messages of
// stream partitions and serves them over the resend http api.
package storage

import (
	"bytes"
	"cmp"
	"slices"
	"sync"

	"go.uber.org/zap"

	"github.com/spacemeshos/go-delivery/common/types"
)

type Opt func(*Memory)

func WithLogger(logger *zap.Logger) Opt {
	return func(m *Memory) {
		m.logger = logger
	}
}

// WithHidden hides the messages for which hidden returns true from every
// query, as if the node never stored them.
func WithHidden(hidden func(*types.StreamMessage) bool) Opt {
	return func(m *Memory) {
		m.hidden = hidden
	}
}

type Memory struct {
	logger *zap.Logger
	hidden func(*types.StreamMessage) bool

	mu    sync.RWMutex
	parts map[types.StreamPartID][]*types.StreamMessage
}

func NewMemory(opts ...Opt) *Memory {
	m := &Memory{
		logger: zap.NewNop(),
		hidden: func(*types.StreamMessage) bool { return false },
		parts:  make(map[types.StreamPartID][]*types.StreamMessage),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

func compareMessages(a, b *types.StreamMessage) int {
	if c := a.Ref().Compare(b.Ref()); c != 0 {
		return c
	}
	if c := bytes.Compare(a.ID.PublisherID[:], b.ID.PublisherID[:]); c != 0 {
		return c
	}
	return cmp.Compare(a.ID.MsgChainID, b.ID.MsgChainID)
}

// Store adds messages. A message stored twice is kept once.
func (m *Memory) Store(msgs ...*types.StreamMessage) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, msg := range msgs {
		part := msg.ID.StreamPartID()
		stored := m.parts[part]
		idx, found := slices.BinarySearchFunc(stored, msg, compareMessages)
		if found {
			continue
		}
		m.parts[part] = slices.Insert(stored, idx, msg)
	}
}

func (m *Memory) Len(part types.StreamPartID) int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.parts[part])
}

func (m *Memory) query(part types.StreamPartID, match func(*types.StreamMessage) bool) []*types.StreamMessage {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []*types.StreamMessage
	for _, msg := range m.parts[part] {
		if match(msg) && !m.hidden(msg) {
			out = append(out, msg)
		}
	}
	return out
}

// Last returns the newest n messages in ascending order.
func (m *Memory) Last(part types.StreamPartID, n int) []*types.StreamMessage {
	if n <= 0 {
		return nil
	}
	all := m.query(part, func(*types.StreamMessage) bool { return true })
	if len(all) > n {
		all = all[len(all)-n:]
	}
	return all
}

// From returns the messages at or after from, of publisher if set.
func (m *Memory) From(part types.StreamPartID, from types.MessageRef, publisher *types.UserID) []*types.StreamMessage {
	return m.query(part, func(msg *types.StreamMessage) bool {
		return msg.Ref().Compare(from) >= 0 && (publisher == nil || msg.PublisherID() == *publisher)
	})
}

// Range returns the messages between from and to, both included, of
// publisher and chain if set.
func (m *Memory) Range(
	part types.StreamPartID,
	from, to types.MessageRef,
	publisher *types.UserID,
	chain string,
) []*types.StreamMessage {
	return m.query(part, func(msg *types.StreamMessage) bool {
		ref := msg.Ref()
		return ref.Compare(from) >= 0 && ref.Compare(to) <= 0 &&
			(publisher == nil || msg.PublisherID() == *publisher) &&
			(chain == "" || msg.MsgChainID() == chain)
	})
}
