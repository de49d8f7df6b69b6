package storage

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/spacemeshos/go-delivery/codec"
	"github.com/spacemeshos/go-delivery/common/types"
)

// Handler serves GET /streams/{stream}/data/partitions/{partition}/{last|from|range}
// as a stream of length-prefixed scale frames. Only format=raw is supported.
func (m *Memory) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /streams/{stream}/data/partitions/{partition}/{endpoint}", m.serve)
	return mux
}

func (m *Memory) serve(w http.ResponseWriter, r *http.Request) {
	partition, err := strconv.ParseUint(r.PathValue("partition"), 10, 32)
	if err != nil {
		http.Error(w, "invalid partition", http.StatusBadRequest)
		return
	}
	part := types.NewStreamPartID(types.StreamID(r.PathValue("stream")), uint32(partition))
	q := r.URL.Query()
	if format := q.Get("format"); format != "raw" {
		http.Error(w, fmt.Sprintf("unsupported format %q", format), http.StatusBadRequest)
		return
	}

	msgs, err := m.find(part, r.PathValue("endpoint"), q)
	if errors.Is(err, errNotFound) {
		http.NotFound(w, r)
		return
	}
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	w.Header().Set("Content-Type", "application/octet-stream")
	w.WriteHeader(http.StatusOK)
	for _, msg := range msgs {
		if _, err := codec.WriteFrame(w, msg); err != nil {
			m.logger.Debug("write message", zap.Stringer("id", msg.ID), zap.Error(err))
			return
		}
	}
}

var errNotFound = errors.New("not found")

func (m *Memory) find(part types.StreamPartID, endpoint string, q url.Values) ([]*types.StreamMessage, error) {
	switch endpoint {
	case "last":
		count, err := strconv.Atoi(q.Get("count"))
		if err != nil {
			return nil, fmt.Errorf("invalid count: %w", err)
		}
		return m.Last(part, count), nil
	case "from":
		from, err := parseRef(q, "from")
		if err != nil {
			return nil, err
		}
		publisher, err := parsePublisher(q)
		if err != nil {
			return nil, err
		}
		return m.From(part, from, publisher), nil
	case "range":
		from, err := parseRef(q, "from")
		if err != nil {
			return nil, err
		}
		to, err := parseRef(q, "to")
		if err != nil {
			return nil, err
		}
		publisher, err := parsePublisher(q)
		if err != nil {
			return nil, err
		}
		return m.Range(part, from, to, publisher, q.Get("msgChainId")), nil
	}
	return nil, errNotFound
}

func parseRef(q url.Values, prefix string) (types.MessageRef, error) {
	ts, err := strconv.ParseInt(q.Get(prefix+"Timestamp"), 10, 64)
	if err != nil {
		return types.MessageRef{}, fmt.Errorf("invalid %sTimestamp: %w", prefix, err)
	}
	var seq uint64
	if raw := q.Get(prefix + "SequenceNumber"); raw != "" {
		seq, err = strconv.ParseUint(raw, 10, 32)
		if err != nil {
			return types.MessageRef{}, fmt.Errorf("invalid %sSequenceNumber: %w", prefix, err)
		}
	}
	return types.MessageRef{Timestamp: ts, SequenceNumber: uint32(seq)}, nil
}

func parsePublisher(q url.Values) (*types.UserID, error) {
	raw := q.Get("publisherId")
	if raw == "" {
		return nil, nil
	}
	publisher, err := types.ParseAddress(raw)
	if err != nil {
		return nil, fmt.Errorf("invalid publisherId: %w", err)
	}
	return &publisher, nil
}

// Server serves a Memory until its context is canceled.
type Server struct {
	srv *http.Server
	lis net.Listener
}

func Serve(ctx context.Context, logger *zap.Logger, addr string, m *Memory) (*Server, error) {
	lis, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("listen storage on %s: %w", addr, err)
	}
	s := &Server{
		srv: &http.Server{Handler: m.Handler(), ReadHeaderTimeout: 5 * time.Second},
		lis: lis,
	}
	go func() {
		if err := s.srv.Serve(lis); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Warn("storage server stopped", zap.Error(err))
		}
	}()
	context.AfterFunc(ctx, func() {
		s.srv.Close()
	})
	return s, nil
}

// URL is the base url of the server.
func (s *Server) URL() string {
	return "http://" + s.lis.Addr().String()
}
