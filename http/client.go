package http

import (
	"bytes"
	"context"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/freekieb7/webapi/stream"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

// Client issues outbound requests without blocking the caller: every call
// returns a future resolved from its own goroutine.
type Client struct {
	client *http.Client
}

func NewClient(timeout time.Duration) *Client {
	return &Client{
		client: &http.Client{
			Transport: otelhttp.NewTransport(http.DefaultTransport),
			Timeout:   timeout,
		},
	}
}

// Post sends body to url. The response body of the resolved future must be
// drained by the caller; it closes itself at the end of the stream.
func (c *Client) Post(ctx context.Context, url, contentType string, body []byte) Future {
	future := stream.NewDeferred[*Response]()

	go func() {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
		if err != nil {
			_ = future.Fail(err)
			return
		}
		req.Header.Set("Content-Type", contentType)

		res, err := c.client.Do(req)
		if err != nil {
			_ = future.Fail(err)
			return
		}

		out := NewResponse(res.StatusCode, &closingSource{
			src:    stream.FromReader(res.Body, DefaultReadChunkSize),
			closer: res.Body,
		})
		out.Header = res.Header
		_ = future.Resolve(out)
	}()

	return future
}

// closingSource closes the underlying body once the stream has ended.
type closingSource struct {
	src    stream.Source
	closer io.Closer
	closed bool
}

func (s *closingSource) Next(ctx context.Context) (stream.Chunk, error) {
	chunk, err := s.src.Next(ctx)
	if err != nil && !s.closed {
		s.closed = true
		if closeErr := s.closer.Close(); closeErr != nil && errors.Is(err, io.EOF) {
			return nil, closeErr
		}
	}
	return chunk, err
}
