package realtime

import (
	"iter"

	"go.uber.org/zap"

	"github.com/spacemeshos/go-delivery/codec"
	"github.com/spacemeshos/go-delivery/common/types"
	"github.com/spacemeshos/go-delivery/p2p/pubsub"
)

// decode turns accepted gossip payloads into messages. The topic validator
// already decoded each payload once, so failures here are only logged.
func decode(logger *zap.Logger, src iter.Seq2[*pubsub.Message, error]) iter.Seq2[*types.StreamMessage, error] {
	return func(yield func(*types.StreamMessage, error) bool) {
		for gossip, err := range src {
			if err != nil {
				yield(nil, err)
				return
			}
			msg := &types.StreamMessage{}
			if err := codec.Decode(gossip.Data, msg); err != nil {
				logger.Debug("dropping undecodable message",
					zap.Stringer("peer", gossip.From),
					zap.Error(err),
				)
				continue
			}
			if !yield(msg, nil) {
				return
			}
		}
	}
}
