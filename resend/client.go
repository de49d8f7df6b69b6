package resend

import (
	"context"
	"errors"
	"fmt"
	"io"
	"iter"
	"net/http"
	"net/url"
	"strconv"

	"github.com/hashicorp/go-retryablehttp"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/spacemeshos/go-delivery/codec"
	"github.com/spacemeshos/go-delivery/common/types"
	"github.com/spacemeshos/go-delivery/log"
)

var ErrStorageNode = errors.New("storage node request failed")

// bodySnippet bounds the part of an error response included in errors.
const bodySnippet = 512

func checkRetry(ctx context.Context, resp *http.Response, err error) (bool, error) {
	if resp != nil && resp.StatusCode == http.StatusNotFound {
		return false, nil
	}
	return retryablehttp.DefaultRetryPolicy(ctx, resp, err)
}

// A wrapper around zap.Logger to make it compatible with
// retryablehttp.LeveledLogger interface.
type retryableHttpLogger struct {
	inner *zap.Logger
}

func (r retryableHttpLogger) Error(format string, args ...any) {
	r.inner.Sugar().Errorw(format, args...)
}

func (r retryableHttpLogger) Info(format string, args ...any) {
	r.inner.Sugar().Infow(format, args...)
}

func (r retryableHttpLogger) Warn(format string, args ...any) {
	r.inner.Sugar().Warnw(format, args...)
}

func (r retryableHttpLogger) Debug(format string, args ...any) {
	r.inner.Sugar().Debugw(format, args...)
}

type ClientOpt func(*Client)

func withCustomHttpClient(client *http.Client) ClientOpt {
	return func(c *Client) {
		c.client.HTTPClient = client
	}
}

func WithClientLogger(logger *zap.Logger) ClientOpt {
	return func(c *Client) {
		c.logger = logger
		c.client.Logger = &retryableHttpLogger{inner: logger}
		c.client.ResponseLogHook = func(_ retryablehttp.Logger, resp *http.Response) {
			c.logger.Debug(
				"response received",
				zap.Stringer("url", resp.Request.URL),
				zap.Int("status", resp.StatusCode),
			)
		}
	}
}

// Client fetches stored messages from the http api of one storage node.
type Client struct {
	baseURL      *url.URL
	client       *retryablehttp.Client
	limiter      *rate.Limiter
	maxFrameSize int
	logger       *zap.Logger
}

func NewClient(address string, cfg Config, opts ...ClientOpt) (*Client, error) {
	baseURL, err := url.Parse(address)
	if err != nil {
		return nil, fmt.Errorf("parsing address: %w", err)
	}
	if baseURL.Scheme == "" {
		baseURL.Scheme = "http"
	}
	c := &Client{
		baseURL: baseURL,
		client: &retryablehttp.Client{
			RetryMax:     cfg.MaxRequestRetries,
			RetryWaitMin: cfg.RequestRetryDelay,
			RetryWaitMax: 2 * cfg.RequestRetryDelay,
			Backoff:      retryablehttp.LinearJitterBackoff,
			CheckRetry:   checkRetry,
			ErrorHandler: retryablehttp.PassthroughErrorHandler,
		},
		limiter:      rate.NewLimiter(rate.Inf, 0),
		maxFrameSize: cfg.MaxFrameSize,
		logger:       zap.NewNop(),
	}
	if cfg.RequestsPerSecond > 0 {
		c.limiter = rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), cfg.RequestBurst)
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

func (c *Client) Address() string {
	return c.baseURL.String()
}

// Fetch streams the messages of streamPart selected by opts. The response
// body stays open until the iteration ends.
func (c *Client) Fetch(
	ctx context.Context,
	streamPart types.StreamPartID,
	opts Options,
) iter.Seq2[*types.StreamMessage, error] {
	return func(yield func(*types.StreamMessage, error) bool) {
		body, err := c.open(ctx, streamPart, opts)
		if err != nil {
			yield(nil, err)
			return
		}
		defer body.Close()

		reader := codec.NewFrameReader(body, c.maxFrameSize)
		for {
			var msg types.StreamMessage
			err := reader.Next(&msg)
			if errors.Is(err, io.EOF) {
				return
			}
			if err != nil {
				yield(nil, fmt.Errorf("reading message from %s: %w", c.baseURL.Host, err))
				return
			}
			fetched.Inc()
			if !yield(&msg, nil) {
				return
			}
		}
	}
}

func (c *Client) open(ctx context.Context, streamPart types.StreamPartID, opts Options) (io.ReadCloser, error) {
	endpoint := opts.endpoint()
	u := c.baseURL.JoinPath(
		"streams",
		url.PathEscape(string(streamPart.StreamID())),
		"data", "partitions",
		strconv.FormatUint(uint64(streamPart.Partition()), 10),
		endpoint,
	)
	query := opts.query()
	query.Set("format", "raw")
	u.RawQuery = query.Encode()

	req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("creating HTTP request: %w", err)
	}
	if err := c.limiter.Wait(ctx); err != nil {
		requests.WithLabelValues(endpoint, "limited").Inc()
		return nil, fmt.Errorf("waiting for request budget: %w", err)
	}
	res, err := c.client.Do(req)
	if err != nil {
		requests.WithLabelValues(endpoint, "error").Inc()
		return nil, fmt.Errorf("doing request: %w", err)
	}
	requests.WithLabelValues(endpoint, strconv.Itoa(res.StatusCode)).Inc()
	if res.StatusCode == http.StatusOK {
		return res.Body, nil
	}
	defer res.Body.Close()

	data, err := io.ReadAll(io.LimitReader(res.Body, bodySnippet))
	if err != nil {
		return nil, fmt.Errorf("reading response body (%w)", err)
	}
	c.logger.Debug("storage node request failed",
		log.ZContext(ctx),
		log.ZStreamPart(streamPart),
		zap.String("status", res.Status),
		zap.String("body", string(data)),
	)
	return nil, fmt.Errorf("%w: response status code: %s, body: %s", ErrStorageNode, res.Status, string(data))
}
