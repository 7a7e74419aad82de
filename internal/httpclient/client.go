package httpclient

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"time"

	ierr "github.com/twelvenexus/oneplan-billing/internal/errors"
)

// defaultTimeout bounds every outbound gateway call. Providers are
// expected to answer well within this; a hung call must not hold a
// payment transaction open indefinitely.
const defaultTimeout = 30 * time.Second

// Request is an outbound HTTP request to a payment provider.
type Request struct {
	Method  string
	URL     string
	Headers map[string]string
	Body    []byte
}

// Response carries the provider's reply. Body is fully read before
// the response is returned.
type Response struct {
	StatusCode int
	Body       []byte
	Headers    map[string]string
}

// Client sends requests to external payment providers.
type Client interface {
	Send(ctx context.Context, req *Request) (*Response, error)
}

type defaultClient struct {
	client *http.Client
}

// NewDefaultClient returns a Client with a bounded timeout.
func NewDefaultClient() Client {
	return &defaultClient{
		client: &http.Client{
			Timeout: defaultTimeout,
		},
	}
}

func (c *defaultClient) Send(ctx context.Context, req *Request) (*Response, error) {
	var body io.Reader
	if req.Body != nil {
		body = bytes.NewReader(req.Body)
	}

	httpReq, err := http.NewRequestWithContext(ctx, req.Method, req.URL, body)
	if err != nil {
		return nil, ierr.WithError(err).
			WithHint("Invalid gateway request").
			Mark(ierr.ErrHTTPClient)
	}

	if req.Body != nil {
		httpReq.ContentLength = int64(len(req.Body))
		httpReq.Header.Set("Content-Type", "application/json")
	}
	for k, v := range req.Headers {
		httpReq.Header.Set(k, v)
	}

	resp, err := c.client.Do(httpReq)
	if err != nil {
		return nil, ierr.WithError(err).
			WithHint("Gateway request failed").
			Mark(ierr.ErrHTTPClient)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, ierr.WithError(err).
			WithHint("Failed to read gateway response").
			Mark(ierr.ErrHTTPClient)
	}

	headers := make(map[string]string, len(resp.Header))
	for k, v := range resp.Header {
		if len(v) > 0 {
			headers[k] = v[0]
		}
	}

	// Non-2xx replies surface as HTTPError so adapters can map provider
	// status codes onto gateway sentinel errors.
	if resp.StatusCode >= 400 {
		return nil, NewError(resp.StatusCode, respBody)
	}

	return &Response{
		StatusCode: resp.StatusCode,
		Body:       respBody,
		Headers:    headers,
	}, nil
}
