package log

import (
	"context"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/spacemeshos/go-delivery/common/types"
)

func ZStreamPart(id types.StreamPartID) zap.Field {
	return zap.String("stream_part", string(id))
}

func ZPublisher(id types.UserID) zap.Field {
	return zap.Stringer("publisher", id)
}

func ZChain(id string) zap.Field {
	return zap.String("msg_chain", id)
}

func ZRef(name string, ref types.MessageRef) zap.Field {
	return zap.Object(name, ref)
}

type gapRange struct {
	from, to types.MessageRef
}

func (g gapRange) MarshalLogObject(encoder zapcore.ObjectEncoder) error {
	if err := encoder.AddObject("from", g.from); err != nil {
		return err
	}
	return encoder.AddObject("to", g.to)
}

// ZGap logs the references bounding a missing interval.
func ZGap(from, to types.MessageRef) zap.Field {
	return zap.Object("gap", gapRange{from: from, to: to})
}

// NiceZapError logs err as a plain string instead of the verbose error object.
func NiceZapError(err error) zap.Field {
	if err == nil {
		return zap.Skip()
	}
	return zap.String("error", err.Error())
}

// ZContext adds the request id carried by ctx, if any.
func ZContext(ctx context.Context) zap.Field {
	id, ok := ExtractRequestID(ctx)
	if !ok {
		return zap.Skip()
	}
	return zap.String("request_id", id)
}
