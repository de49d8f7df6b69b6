package resend

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"

	"github.com/spacemeshos/go-delivery/common/types"
	"github.com/spacemeshos/go-delivery/log/logtest"
	"github.com/spacemeshos/go-delivery/pipeline"
	"github.com/spacemeshos/go-delivery/publish"
	"github.com/spacemeshos/go-delivery/storage"
)

var (
	part      = types.NewStreamPartID("stream-id", 2)
	publisher = types.MustParseAddress("0x1111111111111111111111111111111111111111")
	node      = types.MustParseAddress("0xaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa")
)

func timestamps(msgs []*types.StreamMessage) []int64 {
	var out []int64
	for _, msg := range msgs {
		out = append(out, msg.ID.Timestamp)
	}
	return out
}

func newResends(t *testing.T, handler http.Handler) *Resends {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	cfg := DefaultConfig()
	cfg.MaxRequestRetries = 0
	cfg.Nodes = map[string]string{node.String(): srv.URL}
	r, err := New(cfg, WithLogger(logtest.New(t)))
	require.NoError(t, err)
	return r
}

func storedMessages(t *testing.T) *storage.Memory {
	t.Helper()
	m := storage.NewMemory()
	c := publish.NewChainer(publisher)
	for ts := int64(1000); ts <= 5000; ts += 1000 {
		m.Store(c.Create(part, ts, []byte("content")))
	}
	return m
}

func TestResendRange(t *testing.T) {
	var query atomic.Value
	memory := storedMessages(t)
	r := newResends(t, http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		query.Store(req.URL.RawQuery)
		memory.Handler().ServeHTTP(w, req)
	}))

	msgs, err := r.Range(context.Background(), part, RangeOptions{
		From:        types.MessageRef{Timestamp: 2000},
		To:          types.MessageRef{Timestamp: 4000},
		PublisherID: &publisher,
	}, []types.EthereumAddress{node})
	require.NoError(t, err)
	got, err := pipeline.Collect(msgs.All(context.Background()))
	require.NoError(t, err)
	require.Equal(t, []int64{2000, 3000, 4000}, timestamps(got))
	require.Equal(t, []byte("content"), got[0].Content)
	require.Contains(t, query.Load(), "format=raw")
	require.Contains(t, query.Load(), "publisherId="+publisher.String())
}

func TestResendLastAndFrom(t *testing.T) {
	r := newResends(t, storedMessages(t).Handler())
	ctx := context.Background()

	last, err := r.Last(ctx, part, 2, []types.EthereumAddress{node})
	require.NoError(t, err)
	got, err := pipeline.Collect(last.All(ctx))
	require.NoError(t, err)
	require.Equal(t, []int64{4000, 5000}, timestamps(got))

	from, err := r.From(ctx, part, FromOptions{From: types.MessageRef{Timestamp: 3000}}, []types.EthereumAddress{node})
	require.NoError(t, err)
	got, err = pipeline.Collect(from.All(ctx))
	require.NoError(t, err)
	require.Equal(t, []int64{3000, 4000, 5000}, timestamps(got))
}

func TestResendLastZero(t *testing.T) {
	var calls atomic.Int32
	r := newResends(t, http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		calls.Add(1)
	}))
	msgs, err := r.Last(context.Background(), part, 0, nil)
	require.NoError(t, err)
	got, err := pipeline.Collect(msgs.All(context.Background()))
	require.NoError(t, err)
	require.Empty(t, got)
	require.Zero(t, calls.Load())
}

func TestResendNodeErrors(t *testing.T) {
	r := newResends(t, storedMessages(t).Handler())
	ctx := context.Background()

	_, err := r.Last(ctx, part, 1, nil)
	require.ErrorIs(t, err, ErrNoStorageNodes)

	other := types.MustParseAddress("0xbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbb")
	_, err = r.Last(ctx, part, 1, []types.EthereumAddress{other})
	require.ErrorIs(t, err, ErrUnknownNode)
}

func TestResendStorageNodeFailure(t *testing.T) {
	r := newResends(t, http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "storage is down", http.StatusInternalServerError)
	}))
	msgs, err := r.Last(context.Background(), part, 3, []types.EthereumAddress{node})
	require.NoError(t, err)
	_, err = pipeline.Collect(msgs.All(context.Background()))
	require.ErrorIs(t, err, ErrStorageNode)
	require.ErrorContains(t, err, "storage is down")
}

func TestResendEarlyReturn(t *testing.T) {
	r := newResends(t, storedMessages(t).Handler())
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	msgs, err := r.Last(ctx, part, 5, []types.EthereumAddress{node})
	require.NoError(t, err)
	for msg, err := range msgs.All(ctx) {
		require.NoError(t, err)
		require.EqualValues(t, 1000, msg.ID.Timestamp)
		break
	}
	select {
	case <-msgs.Done():
	case <-ctx.Done():
		require.Fail(t, "pipeline not finished")
	}
}

type countingRegistry struct {
	calls atomic.Int32
	nodes []types.EthereumAddress
	err   error
}

func (r *countingRegistry) StorageNodes(context.Context, types.StreamID) ([]types.EthereumAddress, error) {
	r.calls.Add(1)
	return r.nodes, r.err
}

func TestNodeCache(t *testing.T) {
	registry := &countingRegistry{nodes: []types.EthereumAddress{node}}
	cache := NewNodeCache(registry, 10, time.Minute)
	ctx := context.Background()

	for range 3 {
		nodes, err := cache.StorageNodes(ctx, "stream")
		require.NoError(t, err)
		require.Equal(t, []types.EthereumAddress{node}, nodes)
	}
	require.EqualValues(t, 1, registry.calls.Load())

	cache.Invalidate("stream")
	_, err := cache.StorageNodes(ctx, "stream")
	require.NoError(t, err)
	require.EqualValues(t, 2, registry.calls.Load())

	registry.err = errors.New("registry down")
	_, err = cache.StorageNodes(ctx, "other")
	require.ErrorIs(t, err, registry.err)
}

func TestStaticRegistry(t *testing.T) {
	other := types.MustParseAddress("0xbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbb")
	cfg := DefaultConfig()
	cfg.Nodes = map[string]string{node.String(): "localhost:1", other.String(): "localhost:2"}
	cfg.StreamNodes = map[string][]string{"stream": {other.String()}}
	registry, err := NewStaticRegistry(cfg)
	require.NoError(t, err)

	nodes, err := registry.StorageNodes(context.Background(), "stream")
	require.NoError(t, err)
	require.Equal(t, []types.EthereumAddress{other}, nodes)

	nodes, err = registry.StorageNodes(context.Background(), "any")
	require.NoError(t, err)
	require.Equal(t, []types.EthereumAddress{node, other}, nodes)

	cfg.StreamNodes = map[string][]string{"stream": {"nope"}}
	_, err = NewStaticRegistry(cfg)
	require.ErrorIs(t, err, types.ErrInvalidAddress)
}

func TestConfigValidate(t *testing.T) {
	require.NoError(t, DefaultConfig().Validate())
	cfg := DefaultConfig()
	cfg.NodeCacheSize = 0
	cfg.MaxRequestRetries = -1
	err := cfg.Validate()
	require.ErrorContains(t, err, "node-cache-size")
	require.ErrorContains(t, err, "max-request-retries")
}

func TestClientRateLimit(t *testing.T) {
	srv := httptest.NewServer(storedMessages(t).Handler())
	t.Cleanup(srv.Close)

	cfg := DefaultConfig()
	cfg.RequestsPerSecond = 0.1
	cfg.RequestBurst = 1
	client, err := NewClient(srv.URL, cfg, WithClientLogger(logtest.New(t)))
	require.NoError(t, err)

	got, err := pipeline.Collect(client.Fetch(context.Background(), part, LastOptions{Last: 2}))
	require.NoError(t, err)
	require.Equal(t, []int64{4000, 5000}, timestamps(got))

	limited := testutil.ToFloat64(requests.WithLabelValues("last", "limited"))
	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()
	_, err = pipeline.Collect(client.Fetch(ctx, part, LastOptions{Last: 2}))
	require.ErrorContains(t, err, "request budget")
	require.Equal(t, limited+1, testutil.ToFloat64(requests.WithLabelValues("last", "limited")))
}

func TestClientRetriesThenReportsStatus(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls.Add(1)
		http.Error(w, "overloaded", http.StatusServiceUnavailable)
	}))
	t.Cleanup(srv.Close)

	cfg := DefaultConfig()
	cfg.MaxRequestRetries = 2
	cfg.RequestRetryDelay = time.Millisecond
	client, err := NewClient(srv.URL, cfg, WithClientLogger(logtest.New(t)))
	require.NoError(t, err)

	_, err = pipeline.Collect(client.Fetch(context.Background(), part, LastOptions{Last: 2}))
	require.ErrorIs(t, err, ErrStorageNode)
	require.ErrorContains(t, err, "503")
	require.ErrorContains(t, err, "overloaded")
	require.EqualValues(t, 3, calls.Load())
}
