package pipeline

import (
	"context"
	"reflect"
	"slices"
	"sync"

	"go.uber.org/zap"
)

// TriggerType decides what happens when a signal is triggered while a
// previous run of its listeners has not finished.
type TriggerType int

const (
	// TriggerParallel runs listeners for every trigger independently.
	TriggerParallel TriggerType = iota
	// TriggerOnce runs listeners for the first trigger only and remembers
	// its value.
	TriggerOnce
	// TriggerOne joins triggers to the run in flight.
	TriggerOne
	// TriggerQueue serializes runs.
	TriggerQueue
)

func (t TriggerType) String() string {
	switch t {
	case TriggerParallel:
		return "parallel"
	case TriggerOnce:
		return "once"
	case TriggerOne:
		return "one"
	case TriggerQueue:
		return "queue"
	}
	return "unknown"
}

type Listener[T any] func(ctx context.Context, value T) error

type listenerEntry[T any] struct {
	fn   Listener[T]
	once bool
}

type signalRun struct {
	done chan struct{}
	err  error
}

// Signal is a single event with an ordered list of listeners. Listeners of
// one run are called in registration order; the first failing listener stops
// the run and its error is returned by Trigger.
type Signal[T any] struct {
	trigger TriggerType
	logger  *zap.Logger

	mu        sync.Mutex
	listeners []*listenerEntry[T]
	triggered int

	// TriggerOnce
	ended bool
	value T
	first *signalRun

	// TriggerOne
	inflight *signalRun

	// TriggerQueue
	queue chan struct{}
}

func NewSignal[T any](trigger TriggerType, opts ...Opt) *Signal[T] {
	o := options{logger: zap.NewNop()}
	for _, opt := range opts {
		opt(&o)
	}
	s := &Signal[T]{trigger: trigger, logger: o.logger}
	if trigger == TriggerQueue {
		s.queue = make(chan struct{}, 1)
	}
	return s
}

// Listen registers fn and returns a function removing it. On an ended once
// signal fn is called right away with the captured value.
func (s *Signal[T]) Listen(fn Listener[T]) func() {
	return s.listen(&listenerEntry[T]{fn: fn})
}

// ListenOnce registers fn for the next run only.
func (s *Signal[T]) ListenOnce(fn Listener[T]) func() {
	return s.listen(&listenerEntry[T]{fn: fn, once: true})
}

func (s *Signal[T]) listen(entry *listenerEntry[T]) func() {
	s.mu.Lock()
	if s.ended {
		value := s.value
		s.mu.Unlock()
		if err := entry.fn(context.Background(), value); err != nil {
			s.logger.Debug("late listener failed", zap.Error(err))
		}
		return func() {}
	}
	s.listeners = append(s.listeners, entry)
	s.mu.Unlock()
	return func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		s.listeners = slices.DeleteFunc(s.listeners, func(e *listenerEntry[T]) bool { return e == entry })
	}
}

// Clear removes every listener.
func (s *Signal[T]) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.listeners = nil
}

func (s *Signal[T]) Count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.listeners)
}

// Triggered is the number of runs started so far.
func (s *Signal[T]) Triggered() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.triggered
}

// Ended reports whether a once signal has been triggered.
func (s *Signal[T]) Ended() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ended
}

// Value returns the value captured by a once signal.
func (s *Signal[T]) Value() (T, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.value, s.ended
}

// Trigger runs the listeners with value according to the trigger type.
func (s *Signal[T]) Trigger(ctx context.Context, value T) error {
	switch s.trigger {
	case TriggerOnce:
		return s.triggerOnce(ctx, value)
	case TriggerOne:
		return s.triggerOne(ctx, value)
	case TriggerQueue:
		select {
		case s.queue <- struct{}{}:
		case <-ctx.Done():
			return ctx.Err()
		}
		defer func() { <-s.queue }()
		return s.run(ctx, value)
	default:
		return s.run(ctx, value)
	}
}

func (s *Signal[T]) triggerOnce(ctx context.Context, value T) error {
	s.mu.Lock()
	if s.ended {
		first := s.first
		s.mu.Unlock()
		return waitRun(ctx, first)
	}
	s.ended = true
	s.value = value
	s.first = &signalRun{done: make(chan struct{})}
	first := s.first
	s.mu.Unlock()

	first.err = s.run(ctx, value)
	s.Clear()
	close(first.done)
	return first.err
}

func (s *Signal[T]) triggerOne(ctx context.Context, value T) error {
	s.mu.Lock()
	if s.inflight != nil {
		inflight := s.inflight
		s.mu.Unlock()
		return waitRun(ctx, inflight)
	}
	current := &signalRun{done: make(chan struct{})}
	s.inflight = current
	s.mu.Unlock()

	current.err = s.run(ctx, value)
	s.mu.Lock()
	s.inflight = nil
	s.mu.Unlock()
	close(current.done)
	return current.err
}

func waitRun(ctx context.Context, r *signalRun) error {
	select {
	case <-r.done:
		return r.err
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *Signal[T]) snapshot() []*listenerEntry[T] {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.triggered++
	tasks := slices.Clone(s.listeners)
	s.listeners = slices.DeleteFunc(s.listeners, func(e *listenerEntry[T]) bool { return e.once })
	return tasks
}

func (s *Signal[T]) run(ctx context.Context, value T) error {
	for _, l := range s.snapshot() {
		if err := l.fn(ctx, value); err != nil {
			return err
		}
	}
	return nil
}

// ErrorSignal routes errors to listeners. A listener returning nil handles
// the error. A listener returning an error replaces it for the listeners
// after it, and the error left after the last listener is returned.
type ErrorSignal struct {
	*Signal[error]

	mu      sync.Mutex
	seen    map[error]struct{}
	ignored map[error]struct{}
}

func NewErrorSignal() *ErrorSignal {
	return &ErrorSignal{
		Signal:  NewSignal[error](TriggerParallel),
		seen:    make(map[error]struct{}),
		ignored: make(map[error]struct{}),
	}
}

func isComparable(err error) bool {
	return reflect.TypeOf(err).Comparable()
}

// Trigger returns nil if the listeners handled err. Without listeners err is
// returned as is. An error that was already triggered is not passed to the
// listeners again: it is returned unless it was handled the first time.
func (s *ErrorSignal) Trigger(ctx context.Context, err error) error {
	if err == nil {
		return nil
	}
	track := isComparable(err)
	if track {
		s.mu.Lock()
		_, ignored := s.ignored[err]
		_, seen := s.seen[err]
		if !ignored && !seen {
			s.seen[err] = struct{}{}
		}
		s.mu.Unlock()
		switch {
		case ignored:
			return nil
		case seen:
			return err
		}
	}

	tasks := s.snapshot()
	if len(tasks) == 0 {
		return err
	}
	var failed error
	for _, l := range tasks {
		if failed != nil {
			failed = l.fn(ctx, failed)
		} else {
			failed = l.fn(ctx, err)
		}
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if failed != nil {
		if isComparable(failed) {
			s.seen[failed] = struct{}{}
		}
		return failed
	}
	if track {
		s.ignored[err] = struct{}{}
	}
	return nil
}
