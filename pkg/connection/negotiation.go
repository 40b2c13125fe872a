package connection

import (
	"context"
	"net/url"
	"time"

	"go.opentelemetry.io/otel/trace"

	"github.com/ajitpratap0/rtconn-go/pkg/endpoint"
	rterrors "github.com/ajitpratap0/rtconn-go/pkg/errors"
	"github.com/ajitpratap0/rtconn-go/pkg/logging"
	"github.com/ajitpratap0/rtconn-go/pkg/negotiate"
	"github.com/ajitpratap0/rtconn-go/pkg/observability"
	"github.com/ajitpratap0/rtconn-go/pkg/protocol"
	"github.com/ajitpratap0/rtconn-go/pkg/transport"
)

// attempt is the mutable state of one start or reconnect attempt. The URL
// and token may be replaced by negotiation redirects.
type attempt struct {
	epoch  uint64
	url    string
	format protocol.TransferFormat
	token  negotiate.AccessTokenFunc
}

// negotiate runs negotiate round trips from a.url, following redirects. Up
// to MaxRedirects redirects are followed; one more is an error.
func (c *Connection) negotiate(ctx context.Context, a *attempt) (*protocol.NegotiateResponse, error) {
	for redirects := 0; ; redirects++ {
		resp, err := c.negotiateOnce(ctx, a, redirects)
		if err != nil {
			return nil, err
		}

		if c.stoppedSince(a.epoch) {
			return nil, rterrors.StoppedWhileConnecting()
		}
		if err := checkNegotiation(resp); err != nil {
			return nil, err
		}

		if resp.AccessToken != "" {
			a.token = negotiate.StaticToken(resp.AccessToken)
		}

		if !resp.IsRedirect() {
			return resp, nil
		}
		if redirects >= rterrors.MaxRedirects {
			return nil, rterrors.RedirectLimitExceeded(a.url)
		}

		next, err := resolveRedirect(a.url, resp.URL)
		if err != nil {
			return nil, err
		}
		c.logger.Debug("Following negotiate redirect",
			logging.String("from", transport.RedactURL(a.url)),
			logging.String("to", transport.RedactURL(next)),
			logging.Int("redirects", redirects+1))
		a.url = next
	}
}

// renegotiate performs a single round trip to obtain a fresh connection ID
// for a.url. Redirects in the response are not followed.
func (c *Connection) renegotiate(ctx context.Context, a *attempt) (*protocol.NegotiateResponse, error) {
	resp, err := c.negotiateOnce(ctx, a, 0)
	if err != nil {
		return nil, err
	}
	if err := checkNegotiation(resp); err != nil {
		return nil, err
	}
	if resp.AccessToken != "" {
		a.token = negotiate.StaticToken(resp.AccessToken)
	}
	return resp, nil
}

func (c *Connection) negotiateOnce(ctx context.Context, a *attempt, redirects int) (*protocol.NegotiateResponse, error) {
	ctx, span := c.tracer.Start(ctx, observability.SpanNegotiate, trace.WithAttributes(
		observability.AttrURL.String(transport.RedactURL(a.url)),
		observability.AttrRedirects.Int(redirects),
		observability.AttrTraceID.String(c.traceID),
	))
	start := time.Now()

	resp, err := c.negotiator.Negotiate(ctx, a.url, a.token)

	outcome := observability.OutcomeSuccess
	switch {
	case err != nil:
		outcome = observability.OutcomeFailure
	case resp.IsRedirect():
		outcome = observability.OutcomeRedirect
	}
	c.cfg.metrics.NegotiationCompleted(outcome, time.Since(start))
	if err == nil && resp.ConnectionID != "" {
		span.SetAttributes(observability.AttrConnectionID.String(resp.ConnectionID))
	}
	observability.EndSpan(span, err)

	return resp, err
}

// checkNegotiation rejects responses carrying a server error or coming from
// a legacy server.
func checkNegotiation(resp *protocol.NegotiateResponse) error {
	if resp.Error != "" {
		return rterrors.ServerReported(resp.Error)
	}
	if resp.IsLegacy() {
		return rterrors.LegacyServer()
	}
	return nil
}

// resolveRedirect resolves a redirect target against the URL that issued it.
func resolveRedirect(current, target string) (string, error) {
	base, err := url.Parse(current)
	if err != nil {
		base = nil
	}
	return endpoint.Resolve(target, base)
}
