package pipeline

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
	"golang.org/x/sync/errgroup"
)

func TestSignalOrder(t *testing.T) {
	s := NewSignal[int](TriggerParallel)
	var calls []string
	s.Listen(func(_ context.Context, v int) error {
		calls = append(calls, "first")
		return nil
	})
	remove := s.Listen(func(_ context.Context, v int) error {
		calls = append(calls, "removed")
		return nil
	})
	s.Listen(func(_ context.Context, v int) error {
		calls = append(calls, "last")
		return nil
	})
	remove()
	require.NoError(t, s.Trigger(context.Background(), 1))
	require.Equal(t, []string{"first", "last"}, calls)
	require.Equal(t, 2, s.Count())
	require.Equal(t, 1, s.Triggered())
}

func TestSignalListenerError(t *testing.T) {
	s := NewSignal[int](TriggerParallel)
	failure := errors.New("listener failed")
	var skipped bool
	s.Listen(func(context.Context, int) error { return failure })
	s.Listen(func(context.Context, int) error {
		skipped = false
		return nil
	})
	skipped = true
	require.ErrorIs(t, s.Trigger(context.Background(), 1), failure)
	require.True(t, skipped)
}

func TestSignalListenOnce(t *testing.T) {
	s := NewSignal[int](TriggerParallel)
	var got []int
	s.ListenOnce(func(_ context.Context, v int) error {
		got = append(got, v)
		return nil
	})
	require.NoError(t, s.Trigger(context.Background(), 1))
	require.NoError(t, s.Trigger(context.Background(), 2))
	require.Equal(t, []int{1}, got)
}

func TestSignalOnce(t *testing.T) {
	s := NewSignal[string](TriggerOnce)
	var got []string
	s.Listen(func(_ context.Context, v string) error {
		got = append(got, "early:"+v)
		return nil
	})
	require.NoError(t, s.Trigger(context.Background(), "a"))
	require.NoError(t, s.Trigger(context.Background(), "b"))
	require.True(t, s.Ended())
	value, ok := s.Value()
	require.True(t, ok)
	require.Equal(t, "a", value)

	s.Listen(func(_ context.Context, v string) error {
		got = append(got, "late:"+v)
		return nil
	})
	require.Equal(t, []string{"early:a", "late:a"}, got)
	require.Equal(t, 1, s.Triggered())
}

func TestSignalOnceLateListenerError(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	s := NewSignal[int](TriggerOnce, WithLogger(zap.New(core)))
	require.NoError(t, s.Trigger(context.Background(), 7))

	called := false
	s.Listen(func(_ context.Context, v int) error {
		called = true
		return errors.New("late failure")
	})
	require.True(t, called)
	entries := logs.FilterMessage("late listener failed").All()
	require.Len(t, entries, 1)
	require.Equal(t, "late failure", entries[0].ContextMap()["error"])
}

func TestSignalOnceConcurrent(t *testing.T) {
	s := NewSignal[int](TriggerOnce)
	var calls atomic.Int32
	s.Listen(func(context.Context, int) error {
		calls.Add(1)
		time.Sleep(10 * time.Millisecond)
		return nil
	})
	var eg errgroup.Group
	for i := range 5 {
		eg.Go(func() error { return s.Trigger(context.Background(), i) })
	}
	require.NoError(t, eg.Wait())
	require.EqualValues(t, 1, calls.Load())
}

func TestSignalOne(t *testing.T) {
	s := NewSignal[int](TriggerOne)
	started := make(chan struct{})
	release := make(chan struct{})
	var calls atomic.Int32
	s.Listen(func(context.Context, int) error {
		if calls.Add(1) == 1 {
			close(started)
		}
		<-release
		return nil
	})
	var eg errgroup.Group
	eg.Go(func() error { return s.Trigger(context.Background(), 1) })
	<-started
	eg.Go(func() error { return s.Trigger(context.Background(), 2) })
	time.Sleep(20 * time.Millisecond)
	close(release)
	require.NoError(t, eg.Wait())
	require.EqualValues(t, 1, calls.Load())

	require.NoError(t, s.Trigger(context.Background(), 3))
	require.EqualValues(t, 2, calls.Load())
}

func TestSignalQueue(t *testing.T) {
	s := NewSignal[int](TriggerQueue)
	var (
		mu      sync.Mutex
		active  int
		maxSeen int
		calls   int
	)
	s.Listen(func(context.Context, int) error {
		mu.Lock()
		active++
		calls++
		maxSeen = max(maxSeen, active)
		mu.Unlock()
		time.Sleep(5 * time.Millisecond)
		mu.Lock()
		active--
		mu.Unlock()
		return nil
	})
	var eg errgroup.Group
	for i := range 4 {
		eg.Go(func() error { return s.Trigger(context.Background(), i) })
	}
	require.NoError(t, eg.Wait())
	require.Equal(t, 4, calls)
	require.Equal(t, 1, maxSeen)
}

func TestErrorSignal(t *testing.T) {
	ctx := context.Background()
	t.Run("no listeners", func(t *testing.T) {
		s := NewErrorSignal()
		err := errors.New("fatal")
		require.Equal(t, err, s.Trigger(ctx, err))
		require.NoError(t, s.Trigger(ctx, nil))
	})
	t.Run("handled once", func(t *testing.T) {
		s := NewErrorSignal()
		var calls int
		s.Listen(func(context.Context, error) error {
			calls++
			return nil
		})
		err := errors.New("handled")
		require.NoError(t, s.Trigger(ctx, err))
		require.NoError(t, s.Trigger(ctx, err))
		require.Equal(t, 1, calls)
	})
	t.Run("rethrown once", func(t *testing.T) {
		s := NewErrorSignal()
		var calls int
		s.Listen(func(_ context.Context, err error) error {
			calls++
			return err
		})
		err := errors.New("rethrown")
		require.Equal(t, err, s.Trigger(ctx, err))
		require.Equal(t, err, s.Trigger(ctx, err))
		require.Equal(t, 1, calls)
	})
	t.Run("substitute", func(t *testing.T) {
		s := NewErrorSignal()
		original := errors.New("original")
		replaced := errors.New("replaced")
		var seen []error
		s.Listen(func(_ context.Context, err error) error {
			seen = append(seen, err)
			return replaced
		})
		s.Listen(func(_ context.Context, err error) error {
			seen = append(seen, err)
			return err
		})
		require.Equal(t, replaced, s.Trigger(ctx, original))
		require.Equal(t, []error{original, replaced}, seen)

		// the substitute is not handed to listeners again
		require.Equal(t, replaced, s.Trigger(ctx, replaced))
		require.Len(t, seen, 2)
	})
	t.Run("substitute handled", func(t *testing.T) {
		s := NewErrorSignal()
		s.Listen(func(_ context.Context, err error) error {
			return errors.New("wrapped")
		})
		s.Listen(func(context.Context, error) error { return nil })
		require.NoError(t, s.Trigger(ctx, errors.New("original")))
	})
}
