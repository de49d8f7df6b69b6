package pipeline

import (
	"context"
	"errors"
	"io"
	"iter"
	"sync"
)

// DefaultBufferSize is the capacity used when a buffer is created with a
// non-positive size.
const DefaultBufferSize = 256

var ErrConcurrentIteration = errors.New("already being consumed")

// PushBuffer is a bounded FIFO queue. Producers push into it and block while
// it is full; a single consumer iterates it and blocks while it is empty.
type PushBuffer[T any] struct {
	capacity int

	// writeGate is open while the buffer accepts items without blocking.
	writeGate *Gate
	// readGate is open while items are queued. Both gates are locked once
	// writing has ended.
	readGate *Gate

	mu         sync.Mutex
	queue      []T
	writeEnded bool
	ended      bool
	err        error
	iterating  bool
}

func NewPushBuffer[T any](capacity int) *PushBuffer[T] {
	if capacity <= 0 {
		capacity = DefaultBufferSize
	}
	return &PushBuffer[T]{
		capacity:  capacity,
		writeGate: NewGate(true),
		readGate:  NewGate(false),
	}
}

// Push enqueues item and waits while the buffer is full. It returns false if
// the item was not accepted or if writing ended while waiting for space.
// Producers stop on false.
func (b *PushBuffer[T]) Push(ctx context.Context, item T) (bool, error) {
	b.mu.Lock()
	if b.writeEnded {
		b.mu.Unlock()
		return false, nil
	}
	b.queue = append(b.queue, item)
	b.readGate.Open()
	if len(b.queue) >= b.capacity {
		b.writeGate.Close()
	}
	b.mu.Unlock()
	return b.writeGate.Check(ctx)
}

// End drops all queued items and stops the buffer. Consumers receive err, if
// any, instead of the dropped items.
func (b *PushBuffer[T]) End(err error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.queue = nil
	b.ended = true
	b.stopWrites(err)
}

// EndWrite rejects further pushes. Queued items are still delivered, followed
// by err, if any.
func (b *PushBuffer[T]) EndWrite(err error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.stopWrites(err)
}

func (b *PushBuffer[T]) stopWrites(err error) {
	if !b.writeEnded {
		b.writeEnded = true
		b.err = err
	} else if b.err == nil {
		b.err = err
	}
	b.writeGate.LockWith(err)
	b.readGate.LockWith(err)
}

// Return stops the buffer without an error.
func (b *PushBuffer[T]) Return() {
	b.End(nil)
}

func (b *PushBuffer[T]) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.queue)
}

// IsWritable reports whether Push still accepts items.
func (b *PushBuffer[T]) IsWritable() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return !b.writeEnded
}

// IsDone reports whether writing ended and every item was consumed.
func (b *PushBuffer[T]) IsDone() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.writeEnded && len(b.queue) == 0
}

// Next waits for the next item. It returns io.EOF once the buffer is drained
// and ended without an error.
func (b *PushBuffer[T]) Next(ctx context.Context) (T, error) {
	var zero T
	for {
		b.mu.Lock()
		if len(b.queue) > 0 {
			item := b.queue[0]
			b.queue[0] = zero
			b.queue = b.queue[1:]
			if len(b.queue) < b.capacity {
				b.writeGate.Open()
			}
			if len(b.queue) == 0 {
				b.readGate.Close()
			}
			b.mu.Unlock()
			return item, nil
		}
		if b.writeEnded {
			err := b.err
			b.mu.Unlock()
			if err != nil {
				return zero, err
			}
			return zero, io.EOF
		}
		b.mu.Unlock()
		if _, err := b.readGate.Check(ctx); err != nil {
			return zero, err
		}
	}
}

// All iterates the buffer until it ends. Only one consumer may iterate at a
// time. Leaving the loop early, or cancelling ctx, ends the buffer.
func (b *PushBuffer[T]) All(ctx context.Context) iter.Seq2[T, error] {
	return func(yield func(T, error) bool) {
		var zero T
		b.mu.Lock()
		if b.iterating {
			b.mu.Unlock()
			yield(zero, ErrConcurrentIteration)
			return
		}
		b.iterating = true
		b.mu.Unlock()

		completed := false
		defer func() {
			if !completed {
				b.End(nil)
			}
			b.mu.Lock()
			b.iterating = false
			b.mu.Unlock()
		}()
		for {
			item, err := b.Next(ctx)
			switch {
			case errors.Is(err, io.EOF):
				completed = true
				return
			case err != nil && ctx.Err() != nil:
				return
			case err != nil:
				completed = true
				yield(zero, err)
				return
			}
			if !yield(item, nil) {
				return
			}
		}
	}
}

// Pull copies src into dst and ends writing with the error src failed with.
// It stops early when dst stops accepting items.
func Pull[T any](ctx context.Context, src iter.Seq2[T, error], dst *PushBuffer[T]) error {
	for item, err := range src {
		if err != nil {
			dst.EndWrite(err)
			return err
		}
		ok, err := dst.Push(ctx, item)
		if err != nil {
			dst.EndWrite(nil)
			return err
		}
		if !ok {
			return nil
		}
	}
	dst.EndWrite(nil)
	return nil
}
