// Package negotiate performs a single negotiate round trip. Redirect following
// and validation of the response content belong to the connection.
package negotiate

import (
	"context"
	"net/http"

	"github.com/ajitpratap0/rtconn-go/pkg/endpoint"
	rterrors "github.com/ajitpratap0/rtconn-go/pkg/errors"
	"github.com/ajitpratap0/rtconn-go/pkg/httpclient"
	"github.com/ajitpratap0/rtconn-go/pkg/logging"
	"github.com/ajitpratap0/rtconn-go/pkg/protocol"
)

// AccessTokenFunc supplies a bearer token. It is invoked once per request; an
// empty token sends no Authorization header.
type AccessTokenFunc func(ctx context.Context) (string, error)

// StaticToken returns an AccessTokenFunc that always yields token.
func StaticToken(token string) AccessTokenFunc {
	return func(context.Context) (string, error) { return token, nil }
}

// Token invokes f, tolerating a nil f.
func (f AccessTokenFunc) Token(ctx context.Context) (string, error) {
	if f == nil {
		return "", nil
	}
	return f(ctx)
}

// Client negotiates with a server.
type Client struct {
	http    httpclient.Client
	headers map[string]string
	logger  logging.Logger
}

// Option configures a Client
type Option func(*Client)

// WithHeaders adds headers to every negotiate request.
func WithHeaders(h map[string]string) Option {
	return func(c *Client) { c.headers = h }
}

// WithLogger sets the logger.
func WithLogger(l logging.Logger) Option {
	return func(c *Client) { c.logger = l }
}

// New creates a Client over the given HTTP capability.
func New(hc httpclient.Client, options ...Option) *Client {
	c := &Client{http: hc, logger: logging.GetGlobalLogger()}
	for _, o := range options {
		o(c)
	}
	c.logger = c.logger.WithFields(logging.String("component", "negotiate"))
	return c
}

// Negotiate posts an empty body to the negotiate endpoint derived from url and
// decodes the response. Only transport failures, non-200 statuses and
// undecodable bodies are errors here; a response carrying an error message, a
// redirect or the legacy marker is returned as is.
func (c *Client) Negotiate(ctx context.Context, url string, token AccessTokenFunc) (*protocol.NegotiateResponse, error) {
	negotiateURL := endpoint.NegotiateURL(url)

	headers := make(map[string]string, len(c.headers)+1)
	for k, v := range c.headers {
		headers[k] = v
	}

	tok, err := token.Token(ctx)
	if err != nil {
		return nil, rterrors.NegotiationFailed(negotiateURL, err)
	}
	for k, v := range httpclient.BearerHeaders(tok) {
		headers[k] = v
	}

	c.logger.WithContext(ctx).Debug("Sending negotiation request", logging.String("url", url))

	resp, err := c.http.Post(ctx, negotiateURL, httpclient.Request{Headers: headers})
	if err != nil {
		c.logger.WithContext(ctx).WithError(err).Error("Failed to complete negotiation with the server")
		return nil, rterrors.NegotiationFailed(negotiateURL, err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, rterrors.UnexpectedStatus(negotiateURL, resp.StatusCode)
	}

	result, err := protocol.DecodeNegotiateResponse(resp.Content)
	if err != nil {
		return nil, rterrors.MalformedResponse(negotiateURL, err)
	}

	return result, nil
}
