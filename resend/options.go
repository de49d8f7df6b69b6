package resend

import (
	"net/url"
	"strconv"

	"github.com/spacemeshos/go-delivery/common/types"
)

// Options select the messages of a resend request. Implemented by
// LastOptions, FromOptions and RangeOptions.
type Options interface {
	endpoint() string
	query() url.Values
}

// LastOptions requests the newest Last messages.
type LastOptions struct {
	Last int
}

func (LastOptions) endpoint() string { return "last" }

func (o LastOptions) query() url.Values {
	q := url.Values{}
	q.Set("count", strconv.Itoa(o.Last))
	return q
}

// FromOptions requests every message starting at From, optionally of one
// publisher.
type FromOptions struct {
	From        types.MessageRef
	PublisherID *types.UserID
}

func (FromOptions) endpoint() string { return "from" }

func (o FromOptions) query() url.Values {
	q := url.Values{}
	setRef(q, "from", o.From)
	if o.PublisherID != nil {
		q.Set("publisherId", o.PublisherID.String())
	}
	return q
}

// RangeOptions requests the messages between From and To, both included.
// When MsgChainID is set only that chain of PublisherID is returned.
type RangeOptions struct {
	From        types.MessageRef
	To          types.MessageRef
	PublisherID *types.UserID
	MsgChainID  string
}

func (RangeOptions) endpoint() string { return "range" }

func (o RangeOptions) query() url.Values {
	q := url.Values{}
	setRef(q, "from", o.From)
	setRef(q, "to", o.To)
	if o.PublisherID != nil {
		q.Set("publisherId", o.PublisherID.String())
	}
	if o.MsgChainID != "" {
		q.Set("msgChainId", o.MsgChainID)
	}
	return q
}

func setRef(q url.Values, prefix string, ref types.MessageRef) {
	q.Set(prefix+"Timestamp", strconv.FormatInt(ref.Timestamp, 10))
	q.Set(prefix+"SequenceNumber", strconv.FormatUint(uint64(ref.SequenceNumber), 10))
}
