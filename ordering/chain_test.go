package ordering

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/spacemeshos/go-delivery/common/types"
	"github.com/spacemeshos/go-delivery/log/logtest"
)

func newChain(t *testing.T) (*OrderedMessageChain, *events, context.CancelFunc) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	key := ChainKey{PublisherID: publisher, MsgChainID: chainID}
	c := NewOrderedMessageChain(ctx, part, key, WithChainLogger(logtest.New(t)))
	e := &events{}
	e.watch(c)
	return c, e, cancel
}

func TestChainInOrder(t *testing.T) {
	c, e, _ := newChain(t)
	for _, msg := range messages(5) {
		c.AddMessage(msg)
	}
	got := e.snapshot()
	require.Equal(t, []int64{1000, 2000, 3000, 4000, 5000}, got.ordered)
	require.Empty(t, got.found)
	require.Equal(t, 5000, int(c.Head().ID.Timestamp))
	require.Zero(t, c.PendingCount())
	require.Nil(t, c.CurrentGap())
}

func TestChainReorders(t *testing.T) {
	c, e, _ := newChain(t)
	msgs := messages(5)
	for _, i := range []int{0, 3, 2, 4, 1} {
		c.AddMessage(msgs[i])
	}
	got := e.snapshot()
	require.Equal(t, []int64{1000, 2000, 3000, 4000, 5000}, got.ordered)
	require.Equal(t, []gapRecord{{1000, 4000}}, got.found)
	require.Equal(t, []gapRecord{{1000, 4000}}, got.resolved)
	require.Empty(t, got.unfillable)
}

func TestChainDropsDuplicates(t *testing.T) {
	c, e, _ := newChain(t)
	msgs := messages(4)
	for _, i := range []int{0, 0, 2, 2, 1, 0, 1, 3, 2} {
		c.AddMessage(msgs[i])
	}
	require.Equal(t, []int64{1000, 2000, 3000, 4000}, e.snapshot().ordered)
}

func TestChainOneGapAtATime(t *testing.T) {
	c, e, _ := newChain(t)
	msgs := messages(6)
	c.AddMessage(msgs[0])
	c.AddMessage(msgs[2])
	c.AddMessage(msgs[4])
	require.Equal(t, []gapRecord{{1000, 3000}}, e.snapshot().found)
	require.Equal(t, 2, c.PendingCount())

	c.AddMessage(msgs[1])
	got := e.snapshot()
	require.Equal(t, []int64{1000, 2000, 3000}, got.ordered)
	require.Equal(t, []gapRecord{{1000, 3000}, {3000, 5000}}, got.found)
	require.Equal(t, []gapRecord{{1000, 3000}}, got.resolved)

	gap := c.CurrentGap()
	require.NotNil(t, gap)
	require.Equal(t, ref(3000, 0), gap.From.Ref())
	require.Equal(t, ref(5000, 0), gap.To.Ref())
}

func TestChainResolveAll(t *testing.T) {
	c, e, _ := newChain(t)
	msgs := messages(6)
	for _, msg := range only(msgs, 1000, 3000, 5000, 6000) {
		c.AddMessage(msg)
	}
	c.ResolveMessages(nil, false)

	got := e.snapshot()
	require.Equal(t, []int64{1000, 3000, 5000, 6000}, got.ordered)
	require.Equal(t, []gapRecord{{1000, 3000}, {3000, 5000}}, got.unfillable)
	require.Equal(t, []gapRecord{{1000, 3000}}, got.found)
	require.Equal(t, []gapRecord{{1000, 3000}}, got.resolved)
	require.Nil(t, c.CurrentGap())
}

func TestChainResolveUpTo(t *testing.T) {
	c, e, _ := newChain(t)
	msgs := messages(6)
	for _, msg := range only(msgs, 1000, 3000, 5000) {
		c.AddMessage(msg)
	}
	to := ref(3000, 0)
	c.ResolveMessages(&to, true)

	got := e.snapshot()
	require.Equal(t, []int64{1000, 3000}, got.ordered)
	require.Equal(t, []gapRecord{{1000, 3000}}, got.unfillable)
	require.Equal(t, []gapRecord{{1000, 3000}, {3000, 5000}}, got.found)
	require.Equal(t, 1, c.PendingCount())
}

func TestChainResolveGapOwnership(t *testing.T) {
	c, e, _ := newChain(t)
	msgs := messages(3)
	c.AddMessage(msgs[0])
	c.AddMessage(msgs[2])
	gap := c.CurrentGap()
	c.AddMessage(msgs[1])

	require.False(t, c.resolveGap(gap, nil, false))
	require.Empty(t, e.snapshot().unfillable)
}

func TestChainWithoutPrevRef(t *testing.T) {
	c, e, _ := newChain(t)
	msgs := messages(3)
	c.AddMessage(msgs[0])
	detached := message(5000)
	detached.PrevMsgRef = nil
	c.AddMessage(detached)
	c.AddMessage(msgs[2])

	require.Equal(t, []int64{1000, 5000}, e.snapshot().ordered)
}

func TestChainWaitUntilIdle(t *testing.T) {
	c, _, _ := newChain(t)
	msgs := messages(3)
	c.AddMessage(msgs[0])
	require.NoError(t, c.WaitUntilIdle(context.Background()))

	c.AddMessage(msgs[2])
	done := make(chan error, 1)
	go func() {
		done <- c.WaitUntilIdle(context.Background())
	}()
	select {
	case <-done:
		require.Fail(t, "idle with pending messages")
	case <-time.After(20 * time.Millisecond):
	}
	c.AddMessage(msgs[1])
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(time.Second):
		require.Fail(t, "not idle")
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	c.AddMessage(message(5000))
	require.ErrorIs(t, c.WaitUntilIdle(ctx), context.Canceled)
}

func TestChainAbort(t *testing.T) {
	c, e, cancel := newChain(t)
	msgs := messages(4)
	c.AddMessage(msgs[0])
	c.AddMessage(msgs[2])
	cancel()

	require.Eventually(t, func() bool {
		return c.WaitUntilIdle(context.Background()) == nil
	}, time.Second, time.Millisecond)
	c.AddMessage(msgs[1])
	c.ResolveMessages(nil, false)
	c.AddMessage(msgs[3])

	got := e.snapshot()
	require.Equal(t, []int64{1000}, got.ordered)
	require.Empty(t, got.unfillable)
}

func TestChainKeyOf(t *testing.T) {
	msg := message(1000)
	require.Equal(t, ChainKey{PublisherID: publisher, MsgChainID: chainID}, KeyOf(msg))
	require.NotEqual(t, KeyOf(msg), KeyOf(chainMessage("other", 1000)))
	require.Equal(t, types.UserID(publisher), KeyOf(msg).PublisherID)
}
