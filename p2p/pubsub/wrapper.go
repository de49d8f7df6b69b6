package pubsub

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"sync"
	"time"

	pubsub "github.com/libp2p/go-libp2p-pubsub"
	"github.com/libp2p/go-libp2p/core/host"
	"github.com/libp2p/go-libp2p/core/peer"
	"go.uber.org/zap"

	"github.com/spacemeshos/go-delivery/log"
)

var (
	ErrNotRegistered     = errors.New("topic is not registered")
	ErrAlreadyRegistered = errors.New("topic is already registered")
)

// Message is a validated payload received on a topic.
type Message struct {
	From peer.ID
	Data []byte
}

// PubSub is a wrapper around gossipsub with one validator per topic.
type PubSub struct {
	logger *zap.Logger
	pubsub *pubsub.PubSub
	host   host.Host

	mu     sync.RWMutex
	topics map[string]*pubsub.Topic
}

// Register validates every payload of topic with handler and joins the
// topic. Payloads are relayed even without a local subscription.
func (ps *PubSub) Register(topic string, handler GossipHandler) error {
	ps.mu.Lock()
	defer ps.mu.Unlock()
	if _, exist := ps.topics[topic]; exist {
		return fmt.Errorf("%w: %s", ErrAlreadyRegistered, topic)
	}
	err := ps.pubsub.RegisterTopicValidator(
		topic,
		func(ctx context.Context, pid peer.ID, msg *pubsub.Message) pubsub.ValidationResult {
			start := time.Now()
			err := handler(log.WithNewRequestID(ctx), pid, msg.Data)
			result := castResult(err)
			processedMessages.WithLabelValues(result).Inc()
			processedDuration.WithLabelValues(result).Observe(time.Since(start).Seconds())
			if err != nil {
				ps.logger.Debug("topic validation failed",
					zap.String("topic", topic),
					zap.Stringer("peer", pid),
					zap.Error(err),
				)
			}
			switch {
			case errors.Is(err, ErrValidationReject):
				if pid != ps.host.ID() {
					ps.host.Network().ClosePeer(pid)
				}
				return pubsub.ValidationReject
			case err != nil:
				return pubsub.ValidationIgnore
			default:
				return pubsub.ValidationAccept
			}
		},
	)
	if err != nil {
		return fmt.Errorf("register validator for %s: %w", topic, err)
	}
	topich, err := ps.pubsub.Join(topic)
	if err != nil {
		return fmt.Errorf("join topic %s: %w", topic, err)
	}
	if _, err := topich.Relay(); err != nil {
		return fmt.Errorf("enable relay for topic %s: %w", topic, err)
	}
	ps.topics[topic] = topich
	return nil
}

func (ps *PubSub) topic(topic string) (*pubsub.Topic, error) {
	ps.mu.RLock()
	defer ps.mu.RUnlock()
	topich := ps.topics[topic]
	if topich == nil {
		return nil, fmt.Errorf("%w: %s", ErrNotRegistered, topic)
	}
	return topich, nil
}

// Publish message to the topic.
func (ps *PubSub) Publish(ctx context.Context, topic string, msg []byte) error {
	topich, err := ps.topic(topic)
	if err != nil {
		return err
	}
	if err := topich.Publish(ctx, msg); err != nil {
		return fmt.Errorf("failed to publish to topic %v: %w", topic, err)
	}
	return nil
}

// Subscribe returns the payloads of topic accepted by its handler.
func (ps *PubSub) Subscribe(topic string) (*Subscription, error) {
	topich, err := ps.topic(topic)
	if err != nil {
		return nil, err
	}
	sub, err := topich.Subscribe()
	if err != nil {
		return nil, fmt.Errorf("subscribe to %s: %w", topic, err)
	}
	return &Subscription{sub: sub}, nil
}

// TopicPeers returns the peers known to be subscribed to topic.
func (ps *PubSub) TopicPeers(topic string) []peer.ID {
	return ps.pubsub.ListPeers(topic)
}

func (ps *PubSub) ID() peer.ID {
	return ps.host.ID()
}

// Subscription to a single topic.
type Subscription struct {
	sub *pubsub.Subscription
}

// All iterates received messages until ctx is canceled or the subscription
// is canceled.
func (s *Subscription) All(ctx context.Context) iter.Seq2[*Message, error] {
	return func(yield func(*Message, error) bool) {
		for {
			msg, err := s.sub.Next(ctx)
			switch {
			case err != nil && (ctx.Err() != nil || errors.Is(err, pubsub.ErrSubscriptionCancelled)):
				return
			case err != nil:
				yield(nil, err)
				return
			}
			if !yield(&Message{From: msg.ReceivedFrom, Data: msg.Data}, nil) {
				return
			}
		}
	}
}

func (s *Subscription) Cancel() {
	s.sub.Cancel()
}
