package ordering

import (
	"context"

	"github.com/spacemeshos/go-delivery/common/types"
	"github.com/spacemeshos/go-delivery/pipeline"
	"github.com/spacemeshos/go-delivery/resend"
)

//go:generate mockgen -typed -package=mocks -destination=./mocks/mocks.go -source=./interface.go

type resender interface {
	Range(
		ctx context.Context,
		streamPart types.StreamPartID,
		opts resend.RangeOptions,
		nodes []types.EthereumAddress,
	) (*pipeline.PushPipeline[*types.StreamMessage], error)
}

type storageNodeResolver interface {
	StorageNodes(ctx context.Context, stream types.StreamID) ([]types.EthereumAddress, error)
}
