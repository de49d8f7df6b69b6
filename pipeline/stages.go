package pipeline

import (
	"context"
	"iter"
)

// Filter keeps items for which keep returns true.
func Filter[T any](keep func(T) bool) Stage[T] {
	return func(_ context.Context, src iter.Seq2[T, error]) iter.Seq2[T, error] {
		return func(yield func(T, error) bool) {
			for item, err := range src {
				if err == nil && !keep(item) {
					continue
				}
				if !yield(item, err) {
					return
				}
			}
		}
	}
}

// Map replaces every item with fn(item). An error from fn ends the sequence.
func Map[T any](fn func(context.Context, T) (T, error)) Stage[T] {
	return func(ctx context.Context, src iter.Seq2[T, error]) iter.Seq2[T, error] {
		return func(yield func(T, error) bool) {
			for item, err := range src {
				if err == nil {
					item, err = fn(ctx, item)
				}
				if !yield(item, err) || err != nil {
					return
				}
			}
		}
	}
}

// ForEach calls fn for every item passing through.
func ForEach[T any](fn func(T)) Stage[T] {
	return func(_ context.Context, src iter.Seq2[T, error]) iter.Seq2[T, error] {
		return func(yield func(T, error) bool) {
			for item, err := range src {
				if err == nil {
					fn(item)
				}
				if !yield(item, err) {
					return
				}
			}
		}
	}
}
