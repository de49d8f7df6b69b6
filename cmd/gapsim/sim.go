package main

import (
	"context"
	"encoding/binary"
	"fmt"
	"math/rand/v2"
	"sync/atomic"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/spacemeshos/go-delivery/common/types"
	"github.com/spacemeshos/go-delivery/config"
	"github.com/spacemeshos/go-delivery/ordering"
	"github.com/spacemeshos/go-delivery/pipeline"
	"github.com/spacemeshos/go-delivery/publish"
	"github.com/spacemeshos/go-delivery/resend"
	"github.com/spacemeshos/go-delivery/storage"
	"github.com/spacemeshos/go-delivery/subscribe"
)

// the only storage node of a simulation.
var storageNode = types.MustParseAddress("0x5700000000000000000000000000000000000001")

// simulation describes the traffic of one run. Probabilities apply to every
// message independently.
type simulation struct {
	Stream     string
	Partition  uint32
	Publishers int
	Messages   int

	// Loss drops a message on its way to the subscriber.
	Loss float64
	// Duplicate delivers a message twice.
	Duplicate float64
	// Reorder swaps a message with the one after it.
	Reorder float64
	// StorageLoss hides a message from the storage node.
	StorageLoss float64

	Seed uint64
}

func defaultSimulation() simulation {
	return simulation{
		Stream:     "gapsim",
		Publishers: 3,
		Messages:   100,
		Loss:       0.05,
		Duplicate:  0.02,
		Reorder:    0.05,
		Seed:       1,
	}
}

func (s simulation) validate() error {
	if s.Publishers <= 0 || s.Messages <= 0 {
		return fmt.Errorf("publishers and messages must be positive: %d, %d", s.Publishers, s.Messages)
	}
	for name, p := range map[string]float64{
		"loss":         s.Loss,
		"duplicate":    s.Duplicate,
		"reorder":      s.Reorder,
		"storage-loss": s.StorageLoss,
	} {
		if p < 0 || p > 1 {
			return fmt.Errorf("%s must be a probability: %v", name, p)
		}
	}
	return nil
}

type report struct {
	Published  int
	Received   int
	Delivered  int
	Duplicates int
	OutOfOrder int
	Missing    int
	Unfillable int
}

func (r *report) MarshalLogObject(encoder zapcore.ObjectEncoder) error {
	encoder.AddInt("published", r.Published)
	encoder.AddInt("received", r.Received)
	encoder.AddInt("delivered", r.Delivered)
	encoder.AddInt("duplicates", r.Duplicates)
	encoder.AddInt("out_of_order", r.OutOfOrder)
	encoder.AddInt("missing", r.Missing)
	encoder.AddInt("unfillable", r.Unfillable)
	return nil
}

func (r *report) String() string {
	return fmt.Sprintf(
		"published=%d received=%d delivered=%d duplicates=%d out-of-order=%d missing=%d unfillable=%d",
		r.Published, r.Received, r.Delivered, r.Duplicates, r.OutOfOrder, r.Missing, r.Unfillable,
	)
}

func publisherAddress(i int) types.UserID {
	var addr types.UserID
	binary.BigEndian.PutUint32(addr[types.AddressLength-4:], uint32(i+1))
	return addr
}

// generate publishes sim.Messages messages per publisher. Publishers
// interleave by timestamp.
func generate(part types.StreamPartID, sim simulation) []*types.StreamMessage {
	chainers := make([]*publish.Chainer, sim.Publishers)
	for i := range chainers {
		chainers[i] = publish.NewChainer(publisherAddress(i))
	}
	msgs := make([]*types.StreamMessage, 0, sim.Publishers*sim.Messages)
	for n := range sim.Messages {
		for p, chainer := range chainers {
			ts := int64(n+1)*1000 + int64(p)
			content := fmt.Appendf(nil, `{"publisher":%d,"n":%d}`, p, n)
			msgs = append(msgs, chainer.Create(part, ts, content))
		}
	}
	return msgs
}

// distort applies loss, duplication and reordering to msgs.
func distort(rng *rand.Rand, msgs []*types.StreamMessage, sim simulation) []*types.StreamMessage {
	out := make([]*types.StreamMessage, 0, len(msgs))
	for _, msg := range msgs {
		if rng.Float64() < sim.Loss {
			continue
		}
		out = append(out, msg)
		if rng.Float64() < sim.Duplicate {
			out = append(out, msg)
		}
	}
	for i := 0; i+1 < len(out); i++ {
		if rng.Float64() < sim.Reorder {
			out[i], out[i+1] = out[i+1], out[i]
			i++
		}
	}
	return out
}

// simulate delivers distorted traffic through a subscription backed by an
// in-memory storage node and reports what the subscriber observed.
func simulate(ctx context.Context, logger *zap.Logger, conf *config.Config, sim simulation) (*report, error) {
	if err := sim.validate(); err != nil {
		return nil, err
	}
	rng := rand.New(rand.NewPCG(sim.Seed, sim.Seed+1))
	part := types.NewStreamPartID(types.StreamID(sim.Stream), sim.Partition)
	published := generate(part, sim)

	hidden := make(map[types.MessageID]struct{})
	for _, msg := range published {
		if rng.Float64() < sim.StorageLoss {
			hidden[msg.ID] = struct{}{}
		}
	}
	memory := storage.NewMemory(
		storage.WithLogger(logger.Named("storage")),
		storage.WithHidden(func(msg *types.StreamMessage) bool {
			_, ok := hidden[msg.ID]
			return ok
		}),
	)
	memory.Store(published...)

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	srv, err := storage.Serve(ctx, logger.Named("storage"), "127.0.0.1:0", memory)
	if err != nil {
		return nil, err
	}

	resendCfg := conf.Resend
	resendCfg.Nodes = map[string]string{storageNode.String(): srv.URL()}
	resendCfg.StreamNodes = nil
	resends, err := resend.New(resendCfg, resend.WithLogger(logger.Named("resend")))
	if err != nil {
		return nil, err
	}
	registry, err := resend.NewStaticRegistry(resendCfg)
	if err != nil {
		return nil, err
	}
	nodes := resend.NewNodeCache(registry, resendCfg.NodeCacheSize, resendCfg.NodeCacheTTL)

	received := distort(rng, published, sim)
	sub := subscribe.New(ctx, part, pipeline.FromSlice(received...), resends, nodes,
		subscribe.WithConfig(conf.Ordering),
		subscribe.WithLogger(logger.Named("subscribe")),
	)
	defer sub.Unsubscribe()
	var unfillable atomic.Int64
	sub.OnUnfillableGap.Listen(func(context.Context, *ordering.Gap) error {
		unfillable.Add(1)
		return nil
	})

	r := &report{Published: len(published), Received: len(received)}
	last := make(map[ordering.ChainKey]types.MessageRef)
	seen := make(map[types.MessageID]struct{})
	for msg, err := range sub.All(ctx) {
		if err != nil {
			return nil, err
		}
		r.Delivered++
		if _, ok := seen[msg.ID]; ok {
			r.Duplicates++
			continue
		}
		seen[msg.ID] = struct{}{}
		key := ordering.KeyOf(msg)
		if prev, ok := last[key]; ok && msg.Ref().Compare(prev) <= 0 {
			r.OutOfOrder++
		}
		last[key] = msg.Ref()
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.Missing = r.Published - len(seen)
	r.Unfillable = int(unfillable.Load())
	return r, nil
}
