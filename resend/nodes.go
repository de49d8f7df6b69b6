package resend

import (
	"context"
	"fmt"
	"slices"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"

	"github.com/spacemeshos/go-delivery/common/types"
)

// Registry knows which storage nodes store a stream.
type Registry interface {
	StorageNodes(ctx context.Context, stream types.StreamID) ([]types.EthereumAddress, error)
}

// StaticRegistry is a Registry built from Config.
type StaticRegistry struct {
	all     []types.EthereumAddress
	streams map[types.StreamID][]types.EthereumAddress
}

func NewStaticRegistry(cfg Config) (*StaticRegistry, error) {
	r := &StaticRegistry{streams: make(map[types.StreamID][]types.EthereumAddress)}
	for address := range cfg.Nodes {
		node, err := types.ParseAddress(address)
		if err != nil {
			return nil, fmt.Errorf("storage node %q: %w", address, err)
		}
		r.all = append(r.all, node)
	}
	slices.SortFunc(r.all, func(a, b types.EthereumAddress) int {
		return slices.Compare(a[:], b[:])
	})
	for stream, addresses := range cfg.StreamNodes {
		nodes := make([]types.EthereumAddress, 0, len(addresses))
		for _, address := range addresses {
			node, err := types.ParseAddress(address)
			if err != nil {
				return nil, fmt.Errorf("storage node %q of stream %s: %w", address, stream, err)
			}
			nodes = append(nodes, node)
		}
		r.streams[types.StreamID(stream)] = nodes
	}
	return r, nil
}

func (r *StaticRegistry) StorageNodes(_ context.Context, stream types.StreamID) ([]types.EthereumAddress, error) {
	if nodes, ok := r.streams[stream]; ok {
		return slices.Clone(nodes), nil
	}
	return slices.Clone(r.all), nil
}

// NodeCache memoizes the storage nodes of streams for a limited time.
type NodeCache struct {
	registry Registry
	cache    *expirable.LRU[types.StreamID, []types.EthereumAddress]
}

func NewNodeCache(registry Registry, size int, ttl time.Duration) *NodeCache {
	return &NodeCache{
		registry: registry,
		cache:    expirable.NewLRU[types.StreamID, []types.EthereumAddress](size, nil, ttl),
	}
}

func (c *NodeCache) StorageNodes(ctx context.Context, stream types.StreamID) ([]types.EthereumAddress, error) {
	if nodes, ok := c.cache.Get(stream); ok {
		return nodes, nil
	}
	nodes, err := c.registry.StorageNodes(ctx, stream)
	if err != nil {
		return nil, fmt.Errorf("storage nodes of %s: %w", stream, err)
	}
	c.cache.Add(stream, nodes)
	return nodes, nil
}

// Invalidate drops the cached storage nodes of stream.
func (c *NodeCache) Invalidate(stream types.StreamID) {
	c.cache.Remove(stream)
}
