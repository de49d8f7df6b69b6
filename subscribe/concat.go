package subscribe

import (
	"context"
	"iter"

	"github.com/spacemeshos/go-delivery/common/types"
	"github.com/spacemeshos/go-delivery/pipeline"
)

type sources []*pipeline.PushPipeline[*types.StreamMessage]

// concat reads its sources one after the other. An error ends the sequence.
func concat(srcs ...*pipeline.PushPipeline[*types.StreamMessage]) sources {
	return srcs
}

func (c sources) All(ctx context.Context) iter.Seq2[*types.StreamMessage, error] {
	return func(yield func(*types.StreamMessage, error) bool) {
		defer c.Return()
		for _, src := range c {
			for msg, err := range src.All(ctx) {
				if !yield(msg, err) || err != nil {
					return
				}
			}
		}
	}
}

func (c sources) Return() {
	for _, src := range c {
		src.Return()
	}
}
