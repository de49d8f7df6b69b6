package pipeline

import (
	"context"
	"iter"
)

// PushPipeline is a Pipeline reading from its own PushBuffer. Producers
// push into it while stages and the consumer observe the items.
type PushPipeline[T any] struct {
	*Pipeline[T]
	buffer *PushBuffer[T]
}

func NewPushPipeline[T any](capacity int, opts ...Opt) *PushPipeline[T] {
	buffer := NewPushBuffer[T](capacity)
	return &PushPipeline[T]{
		Pipeline: New[T](buffer, opts...),
		buffer:   buffer,
	}
}

// Push blocks while the buffer is full. See PushBuffer.Push.
func (p *PushPipeline[T]) Push(ctx context.Context, item T) (bool, error) {
	return p.buffer.Push(ctx, item)
}

// End stops the pipeline dropping queued items.
func (p *PushPipeline[T]) End(err error) {
	p.buffer.End(err)
}

// EndWrite stops writes and lets queued items drain.
func (p *PushPipeline[T]) EndWrite(err error) {
	p.buffer.EndWrite(err)
}

func (p *PushPipeline[T]) IsWritable() bool {
	return p.buffer.IsWritable()
}

func (p *PushPipeline[T]) Len() int {
	return p.buffer.Len()
}

// Pull feeds src into the pipeline, see Pull.
func (p *PushPipeline[T]) Pull(ctx context.Context, src iter.Seq2[T, error]) error {
	return Pull(ctx, src, p.buffer)
}
