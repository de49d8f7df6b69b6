package pipeline

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestGate(t *testing.T) {
	t.Run("open", func(t *testing.T) {
		g := NewGate(true)
		require.True(t, g.IsOpen())
		ok, err := g.Check(context.Background())
		require.NoError(t, err)
		require.True(t, ok)
	})
	t.Run("waits until opened", func(t *testing.T) {
		g := NewGate(false)
		require.False(t, g.IsOpen())
		result := make(chan bool, 1)
		go func() {
			ok, err := g.Check(context.Background())
			if err == nil {
				result <- ok
			}
		}()
		select {
		case <-result:
			require.FailNow(t, "check returned on a closed gate")
		case <-time.After(20 * time.Millisecond):
		}
		g.Open()
		select {
		case ok := <-result:
			require.True(t, ok)
		case <-time.After(time.Second):
			require.FailNow(t, "timed out")
		}
	})
	t.Run("canceled", func(t *testing.T) {
		g := NewGate(false)
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
		defer cancel()
		ok, err := g.Check(ctx)
		require.ErrorIs(t, err, context.DeadlineExceeded)
		require.False(t, ok)
	})
	t.Run("lock is terminal", func(t *testing.T) {
		g := NewGate(false)
		reason := errors.New("teardown")
		g.LockWith(reason)
		g.Open()
		g.SetOpenState(true)
		g.LockWith(errors.New("ignored"))
		require.Equal(t, GateLocked, g.State())
		require.False(t, g.IsOpen())
		require.True(t, g.IsLocked())
		require.Equal(t, reason, g.Err())
		ok, err := g.Check(context.Background())
		require.NoError(t, err)
		require.False(t, ok)
	})
	t.Run("lock releases waiters", func(t *testing.T) {
		g := NewGate(false)
		result := make(chan bool, 1)
		go func() {
			ok, _ := g.Check(context.Background())
			result <- ok
		}()
		g.Lock()
		select {
		case ok := <-result:
			require.False(t, ok)
		case <-time.After(time.Second):
			require.FailNow(t, "timed out")
		}
	})
	t.Run("open state", func(t *testing.T) {
		g := NewGate(true)
		g.SetOpenState(false)
		require.Equal(t, GateClosed, g.State())
		g.SetOpenState(true)
		require.Equal(t, GateOpen, g.State())
		g.Close()
		g.Close()
		g.Open()
		require.True(t, g.IsOpen())
	})
}
