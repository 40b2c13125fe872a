package connection

import (
	"context"
	"errors"
	"sync/atomic"

	"github.com/ajitpratap0/rtconn-go/pkg/endpoint"
	rterrors "github.com/ajitpratap0/rtconn-go/pkg/errors"
	"github.com/ajitpratap0/rtconn-go/pkg/logging"
	"github.com/ajitpratap0/rtconn-go/pkg/negotiate"
	"github.com/ajitpratap0/rtconn-go/pkg/observability"
	"github.com/ajitpratap0/rtconn-go/pkg/protocol"
	"github.com/ajitpratap0/rtconn-go/pkg/transport"
)

// instanceKind labels a caller supplied transport in logs and metrics.
const instanceKind = "Instance"

var errClosedBeforeConnected = errors.New("the transport closed before the connection was established")

// activeTransport is a transport owned by one attempt. The closed fields are
// guarded by Connection.mu.
type activeTransport struct {
	t         transport.Transport
	kind      string
	discarded atomic.Bool

	closed   bool
	closeErr error
}

// establish produces a connected transport and its connection ID.
func (c *Connection) establish(ctx context.Context, a *attempt) (*activeTransport, string, error) {
	if c.cfg.skipNegotiation {
		return c.connectWithoutNegotiation(ctx, a)
	}

	resp, err := c.negotiate(ctx, a)
	if err != nil {
		return nil, "", err
	}
	return c.createTransport(ctx, a, resp)
}

func (c *Connection) connectWithoutNegotiation(ctx context.Context, a *attempt) (*activeTransport, string, error) {
	sel, ok := c.cfg.selection.(transport.KindSelection)
	if !ok || sel.Kinds != transport.WebSockets {
		return nil, "", rterrors.NegotiationSkipUnsupported()
	}

	kind := transport.WebSockets
	if !c.cfg.environment.Supports(kind) {
		return nil, "", rterrors.TransportUnavailable(kind.String())
	}
	t, err := c.cfg.environment.New(kind, c.transportConfig(a.token))
	if err != nil {
		return nil, "", rterrors.TransportFailed(kind.String(), err)
	}

	at := c.newActive(t, kind.String())
	if err := c.connect(ctx, at, a.url, a.format); err != nil {
		return nil, "", rterrors.TransportFailed(kind.String(), err)
	}
	return at, "", nil
}

// createTransport walks the server's menu in the order given and connects
// the first transport that passes every filter. Skips and failures are
// collected and reported together when nothing connects.
func (c *Connection) createTransport(ctx context.Context, a *attempt, resp *protocol.NegotiateResponse) (*activeTransport, string, error) {
	if sel, ok := c.cfg.selection.(transport.InstanceSelection); ok {
		c.logger.Debug("Connection was provided a transport instance, using it directly")
		at := c.newActive(sel.Transport, instanceKind)
		if err := c.connect(ctx, at, endpoint.ConnectURL(a.url, resp.ConnectionID), a.format); err != nil {
			return nil, "", rterrors.TransportFailed(instanceKind, err)
		}
		return at, resp.ConnectionID, nil
	}

	allowed := c.cfg.selection.(transport.KindSelection).Kinds
	var (
		reasons []error
		known   int
	)

	for _, offered := range resp.AvailableTransports {
		if c.stoppedSince(a.epoch) {
			return nil, "", rterrors.StoppedWhileConnecting()
		}

		kind, ok := transport.ParseKind(offered.Transport)
		if !ok {
			c.logger.Debug("Skipping transport because it is not supported by this client",
				logging.String("transport", offered.Transport))
			reasons = append(reasons, rterrors.TransportUnknown(offered.Transport))
			continue
		}
		known++

		if err := c.screen(kind, offered, allowed, a.format); err != nil {
			c.logger.Debug("Skipping transport", logging.String("transport", kind.String()), logging.ErrorField(err))
			c.cfg.metrics.TransportAttempt(kind.String(), observability.OutcomeSkipped, 0)
			reasons = append(reasons, err)
			continue
		}
		c.logger.Debug("Selecting transport", logging.String("transport", kind.String()))

		if resp.ConnectionID == "" {
			fresh, err := c.renegotiate(ctx, a)
			if err != nil {
				c.logger.WithError(err).Warn("Renegotiation failed, trying the next transport",
					logging.String("transport", kind.String()))
				reasons = append(reasons, rterrors.TransportFailed(kind.String(), err))
				continue
			}
			resp = fresh
		}

		at, err := c.tryTransport(ctx, a, kind, endpoint.ConnectURL(a.url, resp.ConnectionID))
		if err == nil {
			return at, resp.ConnectionID, nil
		}

		c.logger.WithError(err).Error("Failed to start the transport", logging.String("transport", kind.String()))
		reasons = append(reasons, rterrors.TransportFailed(kind.String(), err))

		// The identity was bound to the failed transport; the next
		// candidate negotiates a fresh one.
		resp = resp.Clone()
		resp.ConnectionID = ""

		if c.stoppedSince(a.epoch) {
			return nil, "", rterrors.StoppedWhileConnecting()
		}
	}

	if known == 0 {
		return nil, "", rterrors.NoCommonTransports()
	}
	return nil, "", rterrors.AggregateFallback(reasons)
}

// screen reports why kind cannot be used for this attempt, or nil.
func (c *Connection) screen(kind transport.Kind, offered protocol.AvailableTransport, allowed transport.Kind, format protocol.TransferFormat) error {
	if allowed&kind == 0 {
		return rterrors.TransportDisabled(kind.String())
	}
	if !offered.Formats().Has(format) {
		return rterrors.TransportFormatUnsupported(kind.String(), format.String())
	}
	if !c.cfg.environment.Supports(kind) {
		return rterrors.TransportUnavailable(kind.String())
	}
	return nil
}

func (c *Connection) tryTransport(ctx context.Context, a *attempt, kind transport.Kind, connectURL string) (*activeTransport, error) {
	t, err := c.cfg.environment.New(kind, c.transportConfig(a.token))
	if err != nil {
		return nil, err
	}
	at := c.newActive(t, kind.String())
	if err := c.connect(ctx, at, connectURL, a.format); err != nil {
		at.discarded.Store(true)
		return nil, err
	}
	return at, nil
}

func (c *Connection) newActive(t transport.Transport, kind string) *activeTransport {
	return &activeTransport{
		t:    observability.InstrumentTransport(t, kind, c.cfg.metrics, c.tracer),
		kind: kind,
	}
}

// connect wires the handlers and opens at. Handlers are set first so a close
// racing with Connect is not lost.
func (c *Connection) connect(ctx context.Context, at *activeTransport, connectURL string, format protocol.TransferFormat) error {
	at.t.SetReceiveHandler(func(data []byte) { c.handleReceive(at, data) })
	at.t.SetCloseHandler(func(err error) { c.handleTransportClosed(at, err) })

	c.logger.Debug("Connecting transport",
		logging.String("transport", at.kind),
		logging.String("url", transport.RedactURL(connectURL)),
		logging.String("format", format.String()))
	return at.t.Connect(ctx, connectURL, format)
}

func (c *Connection) transportConfig(token negotiate.AccessTokenFunc) transport.Config {
	return transport.Config{
		HTTPClient:        c.cfg.httpClient,
		AccessToken:       transport.TokenFunc(token),
		Headers:           c.cfg.headers,
		Logger:            c.logger,
		LogMessageContent: c.cfg.logMessageContent,
		PollTimeout:       c.cfg.pollTimeout,
	}
}
