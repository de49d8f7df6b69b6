// Package pipeline implements the streaming primitives used by the delivery
// path: gates, signals, bounded push buffers and transform pipelines built
// on range-over-func iterators.
package pipeline

import (
	"context"
	"errors"
	"iter"
	"slices"
	"sync"

	"go.uber.org/zap"
)

var ErrPipelineStarted = errors.New("pipeline already started")

// Source is anything a pipeline can read from.
type Source[T any] interface {
	All(ctx context.Context) iter.Seq2[T, error]
}

// Returner is implemented by sources that hold resources beyond the
// lifetime of a single iteration.
type Returner interface {
	Return()
}

// Stage transforms a sequence. A stage may drop, rewrite or add items and
// must stop reading src once its consumer stops.
type Stage[T any] func(ctx context.Context, src iter.Seq2[T, error]) iter.Seq2[T, error]

type options struct {
	logger *zap.Logger
}

type Opt func(*options)

func WithLogger(logger *zap.Logger) Opt {
	return func(o *options) {
		o.logger = logger
	}
}

// Pipeline reads a source through an ordered list of stages.
//
// Whichever way consumption ends, teardown runs once: the error, if any, is
// routed through OnError, the source is released, then OnBeforeFinally and
// OnFinally fire.
type Pipeline[T any] struct {
	source Source[T]
	logger *zap.Logger

	OnMessage       *Signal[T]
	OnError         *ErrorSignal
	OnBeforeFinally *Signal[struct{}]
	OnFinally       *Signal[error]

	mu       sync.Mutex
	stages   []Stage[T]
	started  bool
	finished bool
	cancel   context.CancelFunc
	done     chan struct{}
	result   error
}

func New[T any](source Source[T], opts ...Opt) *Pipeline[T] {
	o := options{logger: zap.NewNop()}
	for _, opt := range opts {
		opt(&o)
	}
	return &Pipeline[T]{
		source:          source,
		logger:          o.logger,
		OnMessage:       NewSignal[T](TriggerParallel),
		OnError:         NewErrorSignal(),
		OnBeforeFinally: NewSignal[struct{}](TriggerOnce, WithLogger(o.logger)),
		OnFinally:       NewSignal[error](TriggerOnce, WithLogger(o.logger)),
		done:            make(chan struct{}),
	}
}

// Pipe appends a stage. Stages can only be added before consumption starts.
func (p *Pipeline[T]) Pipe(stage Stage[T]) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.started {
		return ErrPipelineStarted
	}
	p.stages = append(p.stages, stage)
	return nil
}

// Started reports whether consumption has started or the pipeline was
// returned.
func (p *Pipeline[T]) Started() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.started
}

// Done is closed after teardown completed.
func (p *Pipeline[T]) Done() <-chan struct{} {
	return p.done
}

// Err is the error the pipeline terminated with. It is valid after Done.
func (p *Pipeline[T]) Err() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.result
}

// All consumes the pipeline. The only error yielded is the one terminating
// the pipeline and it is always the last element. A pipeline can be consumed
// once.
func (p *Pipeline[T]) All(ctx context.Context) iter.Seq2[T, error] {
	return func(yield func(T, error) bool) {
		var zero T
		p.mu.Lock()
		if p.finished {
			p.mu.Unlock()
			return
		}
		if p.started {
			p.mu.Unlock()
			yield(zero, ErrConcurrentIteration)
			return
		}
		p.started = true
		ctx, cancel := context.WithCancel(ctx)
		p.cancel = cancel
		stages := slices.Clone(p.stages)
		p.mu.Unlock()
		defer cancel()

		seq := p.source.All(ctx)
		for _, stage := range stages {
			seq = stage(ctx, seq)
		}

		var (
			err     error
			stopped bool
		)
		for item, serr := range seq {
			if serr != nil {
				err = serr
				break
			}
			if serr := p.OnMessage.Trigger(ctx, item); serr != nil {
				err = serr
				break
			}
			if !yield(item, nil) {
				stopped = true
				break
			}
		}
		if err = p.teardown(ctx, err); err != nil && !stopped {
			yield(zero, err)
		}
	}
}

// Flow consumes the pipeline in the background, for pipelines whose
// listeners do the work.
func (p *Pipeline[T]) Flow(ctx context.Context) {
	go func() {
		for _, err := range p.All(ctx) {
			if err != nil {
				p.logger.Warn("unhandled error in pipeline", zap.Error(err))
			}
		}
	}()
}

// Return stops the pipeline. A running consumption ends at its next
// suspension point. A pipeline that was never consumed is torn down right
// away.
func (p *Pipeline[T]) Return() {
	p.mu.Lock()
	if !p.started {
		p.started = true
		p.mu.Unlock()
		p.teardown(context.Background(), nil)
		return
	}
	cancel := p.cancel
	p.mu.Unlock()
	if cancel != nil {
		cancel()
	}
	if r, ok := p.source.(Returner); ok {
		r.Return()
	}
}

func (p *Pipeline[T]) teardown(ctx context.Context, err error) error {
	p.mu.Lock()
	if p.finished {
		p.mu.Unlock()
		<-p.done
		return p.Err()
	}
	p.finished = true
	p.mu.Unlock()
	defer close(p.done)

	ctx = context.WithoutCancel(ctx)
	if err != nil {
		err = p.OnError.Trigger(ctx, err)
	}
	if r, ok := p.source.(Returner); ok {
		r.Return()
	}
	if ferr := p.OnBeforeFinally.Trigger(ctx, struct{}{}); ferr != nil {
		err = errors.Join(err, ferr)
	}
	if ferr := p.OnFinally.Trigger(ctx, err); ferr != nil {
		err = errors.Join(err, ferr)
	}

	p.mu.Lock()
	p.stages = nil
	p.result = err
	p.mu.Unlock()
	return err
}

// Collect drains seq into a slice.
func Collect[T any](seq iter.Seq2[T, error]) ([]T, error) {
	var items []T
	for item, err := range seq {
		if err != nil {
			return items, err
		}
		items = append(items, item)
	}
	return items, nil
}

type sliceSource[T any] []T

func (s sliceSource[T]) All(ctx context.Context) iter.Seq2[T, error] {
	return func(yield func(T, error) bool) {
		for _, item := range s {
			if ctx.Err() != nil || !yield(item, nil) {
				return
			}
		}
	}
}

// FromSlice returns a source yielding items.
func FromSlice[T any](items ...T) Source[T] {
	return sliceSource[T](items)
}

// FromSeq adapts an iterator to a Source. It can be consumed once.
func FromSeq[T any](seq iter.Seq2[T, error]) Source[T] {
	return seqSource[T](seq)
}

type seqSource[T any] iter.Seq2[T, error]

func (s seqSource[T]) All(context.Context) iter.Seq2[T, error] {
	return iter.Seq2[T, error](s)
}
