package types

import (
	"cmp"
	"fmt"

	"go.uber.org/zap/zapcore"
)

//go:generate scalegen -types MessageRef,MessageID,StreamMessage

// MessageRef is the position of a message within its chain. References are
// ordered by timestamp, then by sequence number.
type MessageRef struct {
	Timestamp      int64
	SequenceNumber uint32
}

// Compare returns -1, 0 or 1 when r is before, equal to or after other.
func (r MessageRef) Compare(other MessageRef) int {
	if c := cmp.Compare(r.Timestamp, other.Timestamp); c != 0 {
		return c
	}
	return cmp.Compare(r.SequenceNumber, other.SequenceNumber)
}

func (r MessageRef) Less(other MessageRef) bool {
	return r.Compare(other) < 0
}

func (r MessageRef) String() string {
	return fmt.Sprintf("%d-%d", r.Timestamp, r.SequenceNumber)
}

func (r MessageRef) MarshalLogObject(encoder zapcore.ObjectEncoder) error {
	encoder.AddInt64("timestamp", r.Timestamp)
	encoder.AddUint32("seq", r.SequenceNumber)
	return nil
}

type ContentType uint8

const (
	ContentTypeJSON ContentType = iota
	ContentTypeBinary
)

type EncryptionType uint8

const (
	EncryptionNone EncryptionType = iota
	EncryptionAES
)

type SignatureType uint8

const (
	SignatureSecp256k1 SignatureType = iota
	SignatureERC1271
)

// MessageID identifies a message in a stream partition.
type MessageID struct {
	StreamID       StreamID
	Partition      uint32
	Timestamp      int64
	SequenceNumber uint32
	PublisherID    UserID
	MsgChainID     string
}

func (id MessageID) Ref() MessageRef {
	return MessageRef{Timestamp: id.Timestamp, SequenceNumber: id.SequenceNumber}
}

func (id MessageID) StreamPartID() StreamPartID {
	return NewStreamPartID(id.StreamID, id.Partition)
}

func (id MessageID) String() string {
	return fmt.Sprintf("%s/%d/%d/%d/%s/%s",
		id.StreamID, id.Partition, id.Timestamp, id.SequenceNumber, id.PublisherID.String(), id.MsgChainID)
}

func (id MessageID) MarshalLogObject(encoder zapcore.ObjectEncoder) error {
	encoder.AddString("stream_part", string(id.StreamPartID()))
	encoder.AddInt64("timestamp", id.Timestamp)
	encoder.AddUint32("seq", id.SequenceNumber)
	encoder.AddString("publisher", id.PublisherID.String())
	encoder.AddString("msg_chain", id.MsgChainID)
	return nil
}

// StreamMessage is a single message published to a stream partition.
// PrevMsgRef is nil for the first message of a chain.
type StreamMessage struct {
	ID             MessageID
	PrevMsgRef     *MessageRef
	Content        []byte
	ContentType    ContentType
	EncryptionType EncryptionType
	Signature      []byte
	SignatureType  SignatureType
}

func (m *StreamMessage) Ref() MessageRef {
	return m.ID.Ref()
}

func (m *StreamMessage) PublisherID() UserID {
	return m.ID.PublisherID
}

func (m *StreamMessage) MsgChainID() string {
	return m.ID.MsgChainID
}

func (m *StreamMessage) MarshalLogObject(encoder zapcore.ObjectEncoder) error {
	if m == nil {
		return nil
	}
	if err := encoder.AddObject("id", m.ID); err != nil {
		return err
	}
	if m.PrevMsgRef != nil {
		if err := encoder.AddObject("prev", *m.PrevMsgRef); err != nil {
			return err
		}
	}
	encoder.AddInt("content_size", len(m.Content))
	return nil
}
