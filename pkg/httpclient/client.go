// Package httpclient is the HTTP capability used by negotiation and the HTTP
// based transports. Non-2xx responses are returned, not treated as errors;
// callers decide which status codes they accept.
package httpclient

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/ajitpratap0/rtconn-go/pkg/logging"
)

// UserAgent is sent on every request unless overridden.
const UserAgent = "rtconn-go/1"

// Request is an outbound HTTP request.
type Request struct {
	Content []byte
	Headers map[string]string

	// Timeout bounds this request on top of the context. Zero means none.
	Timeout time.Duration
}

// Response is a fully read HTTP response.
type Response struct {
	StatusCode int
	Content    []byte
	Header     http.Header
}

// Client performs HTTP requests.
type Client interface {
	Get(ctx context.Context, url string, req Request) (*Response, error)
	Post(ctx context.Context, url string, req Request) (*Response, error)
	Delete(ctx context.Context, url string, req Request) (*Response, error)
}

// Options configures the default client.
type Options struct {
	HTTPClient *http.Client
	Logger     logging.Logger
	Headers    map[string]string
	Timeout    time.Duration
}

// Option configures the default client.
type Option func(*Options)

// WithHTTPClient sets the underlying *http.Client.
func WithHTTPClient(c *http.Client) Option {
	return func(o *Options) { o.HTTPClient = c }
}

// WithLogger logs every request at debug level.
func WithLogger(l logging.Logger) Option {
	return func(o *Options) { o.Logger = l }
}

// WithHeaders adds headers to every request. Per-request headers win.
func WithHeaders(h map[string]string) Option {
	return func(o *Options) {
		if o.Headers == nil {
			o.Headers = make(map[string]string, len(h))
		}
		for k, v := range h {
			o.Headers[k] = v
		}
	}
}

// WithTimeout sets a default per-request timeout.
func WithTimeout(d time.Duration) Option {
	return func(o *Options) { o.Timeout = d }
}

// DefaultClient is the net/http backed Client.
type DefaultClient struct {
	client  *http.Client
	headers map[string]string
	timeout time.Duration
}

// New creates a DefaultClient.
func New(options ...Option) *DefaultClient {
	opts := &Options{}
	for _, o := range options {
		o(opts)
	}

	client := opts.HTTPClient
	if client == nil {
		client = &http.Client{}
	}
	if opts.Logger != nil {
		wrapped := *client
		wrapped.Transport = logging.RoundTripper(opts.Logger, client.Transport)
		client = &wrapped
	}

	return &DefaultClient{
		client:  client,
		headers: opts.Headers,
		timeout: opts.Timeout,
	}
}

// HTTPClient returns the underlying client, for streaming consumers that need
// the raw response body.
func (c *DefaultClient) HTTPClient() *http.Client {
	return c.client
}

// Get issues a GET request
func (c *DefaultClient) Get(ctx context.Context, url string, req Request) (*Response, error) {
	return c.do(ctx, http.MethodGet, url, req)
}

// Post issues a POST request
func (c *DefaultClient) Post(ctx context.Context, url string, req Request) (*Response, error) {
	return c.do(ctx, http.MethodPost, url, req)
}

// Delete issues a DELETE request
func (c *DefaultClient) Delete(ctx context.Context, url string, req Request) (*Response, error) {
	return c.do(ctx, http.MethodDelete, url, req)
}

func (c *DefaultClient) do(ctx context.Context, method, url string, req Request) (*Response, error) {
	timeout := req.Timeout
	if timeout == 0 {
		timeout = c.timeout
	}
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	var body io.Reader
	if req.Content != nil {
		body = bytes.NewReader(req.Content)
	}

	httpReq, err := http.NewRequestWithContext(ctx, method, url, body)
	if err != nil {
		return nil, fmt.Errorf("create %s request: %w", method, err)
	}

	httpReq.Header.Set("User-Agent", UserAgent)
	for key, value := range c.headers {
		httpReq.Header.Set(key, value)
	}
	for key, value := range req.Headers {
		httpReq.Header.Set(key, value)
	}

	resp, err := c.client.Do(httpReq)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	content, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read %s response: %w", method, err)
	}

	return &Response{
		StatusCode: resp.StatusCode,
		Content:    content,
		Header:     resp.Header,
	}, nil
}

// BearerHeaders returns headers carrying token as a bearer credential, or nil
// when token is empty.
func BearerHeaders(token string) map[string]string {
	if token == "" {
		return nil
	}
	return map[string]string{"Authorization": "Bearer " + token}
}

// Streaming returns an *http.Client suitable for reading long-lived response
// bodies: the one behind c when it is a DefaultClient, otherwise http.DefaultClient.
func Streaming(c Client) *http.Client {
	if dc, ok := c.(*DefaultClient); ok {
		return dc.HTTPClient()
	}
	return http.DefaultClient
}
