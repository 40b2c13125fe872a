// Package connection implements a persistent real-time connection: it
// negotiates with the server, falls back across transports in the order the
// server offers them, tracks its lifecycle as a state machine and optionally
// reconnects when the transport is lost.
//
// A Connection is safe for concurrent use. Start, Send and Stop may be called
// from any goroutine; events are delivered to subscribers on the goroutine
// that raised them.
package connection

import (
	"context"
	"sync"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/trace"

	"github.com/ajitpratap0/rtconn-go/pkg/endpoint"
	rterrors "github.com/ajitpratap0/rtconn-go/pkg/errors"
	"github.com/ajitpratap0/rtconn-go/pkg/httpclient"
	"github.com/ajitpratap0/rtconn-go/pkg/logging"
	"github.com/ajitpratap0/rtconn-go/pkg/negotiate"
	"github.com/ajitpratap0/rtconn-go/pkg/observability"
	"github.com/ajitpratap0/rtconn-go/pkg/protocol"
	"github.com/ajitpratap0/rtconn-go/pkg/transport"
)

// Features describes properties of the established transport.
type Features struct {
	// InherentKeepAlive is true when the transport keeps the connection
	// alive by itself, as long polling does.
	InherentKeepAlive bool
}

// Connection is a client connection to a real-time endpoint.
type Connection struct {
	cfg        config
	baseURL    string
	traceID    string
	logger     logging.Logger
	tracer     trace.Tracer
	negotiator *negotiate.Client

	state  stateMachine
	events eventBus

	mu           sync.Mutex
	transport    *activeTransport
	format       protocol.TransferFormat
	lostErr      error
	attemptDone  chan struct{}
	wake         chan struct{}
	epoch        uint64
	started      bool
	connectionID string
	features     Features
}

// New creates a Connection to rawURL. The URL must be absolute http(s) unless
// WithDocumentURL is given. No network activity happens until Start.
func New(rawURL string, options ...Option) (*Connection, error) {
	cfg := defaultConfig()
	for _, opt := range options {
		opt(&cfg)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}

	if cfg.logger == nil {
		cfg.logger = logging.GetGlobalLogger()
	}
	if cfg.metrics == nil {
		cfg.metrics = observability.NoopMetrics{}
	}

	baseURL, err := endpoint.Resolve(rawURL, cfg.documentURL)
	if err != nil {
		return nil, err
	}

	traceID := uuid.NewString()
	logger := cfg.logger.WithFields(
		logging.String("component", "connection"),
		logging.String(logging.TraceIDKey, traceID),
	)
	if baseURL != rawURL {
		logger.Info("Normalized connection url",
			logging.String("from", rawURL),
			logging.String("to", transport.RedactURL(baseURL)))
	}

	if cfg.httpClient == nil {
		cfg.httpClient = httpclient.New(
			httpclient.WithLogger(logger),
			httpclient.WithHeaders(cfg.headers),
		)
	}

	c := &Connection{
		cfg:     cfg,
		baseURL: baseURL,
		traceID: traceID,
		logger:  logger,
		tracer:  observability.Tracer(cfg.tracerProvider),
		format:  cfg.format,
	}
	c.negotiator = negotiate.New(cfg.httpClient,
		negotiate.WithHeaders(cfg.headers),
		negotiate.WithLogger(logger),
	)
	c.state.observer = c.stateChanged

	return c, nil
}

// Start connects with the configured transfer format.
func (c *Connection) Start(ctx context.Context) error {
	return c.StartWithFormat(ctx, c.cfg.format)
}

// StartWithFormat negotiates, selects a transport and connects it. It is only
// permitted in the Disconnected state. A Stop while it runs makes it fail with
// ErrStoppedWhileConnecting; in-flight network calls are not aborted.
func (c *Connection) StartWithFormat(ctx context.Context, format protocol.TransferFormat) error {
	if !format.Valid() {
		return rterrors.InvalidArgument("transferFormat", format.String(), "must be Text or Binary")
	}

	c.logger.Debug("Starting connection", logging.String("format", format.String()))

	if !c.state.transition(Disconnected, Connecting) {
		return rterrors.InvalidState("start", c.state.current().String(), Disconnected.String())
	}

	c.mu.Lock()
	c.format = format
	c.lostErr = nil
	c.wake = make(chan struct{})
	epoch := c.epoch
	done := make(chan struct{})
	c.attemptDone = done
	c.mu.Unlock()
	defer c.endAttempt(done)

	ctx = logging.ContextWithTraceID(ctx, c.traceID)
	ctx, span := c.tracer.Start(ctx, observability.SpanStart, trace.WithAttributes(
		observability.AttrURL.String(transport.RedactURL(c.baseURL)),
		observability.AttrFormat.String(format.String()),
		observability.AttrTraceID.String(c.traceID),
	))

	err := c.connectOnce(ctx, format, Connecting, epoch)
	if err == nil {
		span.SetAttributes(observability.AttrConnectionID.String(c.ConnectionID()))
	}
	observability.EndSpan(span, err)
	return err
}

// connectOnce runs one negotiation and fallback pass and installs the
// resulting transport if the connection is still in state from.
func (c *Connection) connectOnce(ctx context.Context, format protocol.TransferFormat, from State, epoch uint64) error {
	a := &attempt{
		epoch:  epoch,
		url:    c.baseURL,
		format: format,
		token:  c.cfg.accessToken,
	}

	at, id, err := c.establish(ctx, a)
	if err == nil {
		err = c.install(ctx, at, id, a, from)
	}
	if err != nil {
		// Only an attempt that Stop did not supersede owns the Connecting state.
		c.mu.Lock()
		if c.epoch == epoch && c.state.transition(Connecting, Disconnected) {
			c.logger.WithError(err).Error("Failed to start the connection")
		}
		c.mu.Unlock()
		return err
	}
	return nil
}

// install makes at the active transport. It fails, stopping at, when the
// connection was stopped meanwhile or at already closed.
func (c *Connection) install(ctx context.Context, at *activeTransport, id string, a *attempt, from State) error {
	var err error

	c.mu.Lock()
	switch {
	case c.epoch != a.epoch:
		err = rterrors.StoppedWhileConnecting()
	case at.closed:
		cause := at.closeErr
		if cause == nil {
			cause = errClosedBeforeConnected
		}
		err = rterrors.TransportFailed(at.kind, cause)
	case !c.state.transition(from, Connected):
		err = rterrors.StoppedWhileConnecting()
	}
	if err == nil {
		c.transport = at
		c.connectionID = id
		c.started = true
		c.features = Features{InherentKeepAlive: inherentKeepAlive(at.t)}
	}
	c.mu.Unlock()

	if err != nil {
		at.discarded.Store(true)
		if stopErr := at.t.Stop(ctx); stopErr != nil {
			c.logger.WithError(stopErr).Debug("Failed to stop discarded transport")
		}
		return err
	}

	c.logger.Info("Connection started",
		logging.String("transport", at.kind),
		logging.String("connection_id", id))
	return nil
}

// Send transmits data over the active transport. It is only permitted in the
// Connected state; otherwise it fails without touching the transport.
func (c *Connection) Send(ctx context.Context, data []byte) error {
	state := c.state.current()
	if state != Connected {
		return rterrors.InvalidState("send", state.String(), Connected.String())
	}

	c.mu.Lock()
	at := c.transport
	c.mu.Unlock()
	if at == nil {
		return rterrors.InvalidState("send", c.state.current().String(), Connected.String())
	}

	if c.cfg.logMessageContent {
		c.logger.Debug("Sending data", logging.String("transport", at.kind), logging.Any("content", data))
	}
	return at.t.Send(ctx, data)
}

// Stop closes the connection. err, when non-nil, is reported by the close
// event instead of any error the transport reports. Stop waits for an
// in-flight start or reconnect attempt before closing the transport; ctx
// bounds that wait. Receive handlers must not call Stop synchronously since
// Stop waits for the transport's read loop.
func (c *Connection) Stop(ctx context.Context, err error) error {
	c.mu.Lock()
	if c.state.current() == Disconnected && c.transport == nil && c.attemptDone == nil && !c.started {
		c.mu.Unlock()
		return nil
	}
	c.epoch++
	done := c.attemptDone
	if c.wake != nil {
		close(c.wake)
		c.wake = nil
	}
	// The transport leaves the connection before Disconnected is published,
	// so its close cannot touch a later Start.
	at := c.transport
	if at != nil {
		at.discarded.Store(true)
	}
	started := c.started
	c.transport = nil
	c.started = false
	c.lostErr = nil
	c.connectionID = ""
	c.state.set(Disconnected)
	c.mu.Unlock()

	if done != nil {
		select {
		case <-done:
		case <-ctx.Done():
			go func() {
				<-done
				c.finishStop(context.Background(), at, started, err)
			}()
			return ctx.Err()
		}
	}

	c.finishStop(ctx, at, started, err)
	return nil
}

// finishStop stops a transport detached by Stop and emits the close event
// for the session it belonged to.
func (c *Connection) finishStop(ctx context.Context, at *activeTransport, started bool, err error) {
	var closeErr error
	if at == nil {
		c.logger.Debug("No transport to stop")
	} else if stopErr := at.t.Stop(ctx); stopErr != nil {
		c.logger.WithError(stopErr).Warn("Failed to stop the transport")
		closeErr = stopErr
	} else {
		c.mu.Lock()
		closeErr = at.closeErr
		c.mu.Unlock()
	}

	if !started {
		return
	}
	if err == nil {
		err = closeErr
	}
	c.emitClose(err)
}

// ConnectionLost reports that the link died without a local Stop. The
// transport is stopped and, when a reconnect policy is configured, the
// connection starts reconnecting with err as the reason.
func (c *Connection) ConnectionLost(ctx context.Context, err error) error {
	c.mu.Lock()
	done := c.attemptDone
	c.mu.Unlock()
	if done != nil {
		select {
		case <-done:
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	c.mu.Lock()
	at := c.transport
	if at != nil {
		c.lostErr = err
	}
	c.mu.Unlock()
	if at == nil {
		return nil
	}

	if stopErr := at.t.Stop(ctx); stopErr != nil {
		c.stopConnection(at, stopErr)
		return stopErr
	}
	return nil
}

// handleTransportClosed routes the close of the active transport either into
// reconnection or straight to shutdown. Closes of transports that are not
// installed are only recorded.
func (c *Connection) handleTransportClosed(at *activeTransport, err error) {
	c.mu.Lock()
	if c.transport != at {
		at.closed = true
		at.closeErr = err
		c.mu.Unlock()
		return
	}
	if c.lostErr != nil {
		err = c.lostErr
		c.lostErr = nil
	}
	reconnecting := c.cfg.reconnectPolicy != nil && c.state.current() == Connected
	if reconnecting {
		c.transport = nil
	}
	c.mu.Unlock()

	if reconnecting {
		go c.reconnect(err)
		return
	}
	c.stopConnection(at, err)
}

// stopConnection moves to Disconnected and emits the close event once per
// started connection. A nil at matches whatever transport is active.
func (c *Connection) stopConnection(at *activeTransport, err error) {
	c.mu.Lock()
	if at != nil && c.transport != at {
		c.mu.Unlock()
		return
	}
	c.transport = nil
	c.lostErr = nil
	c.connectionID = ""
	started := c.started
	c.started = false
	c.mu.Unlock()

	c.state.set(Disconnected)

	if !started {
		return
	}
	c.emitClose(err)
}

func (c *Connection) emitClose(err error) {
	if err != nil {
		c.logger.WithError(err).Error("Connection disconnected with error")
	} else {
		c.logger.Info("Connection disconnected")
	}
	c.events.emit(Event{Type: EventClose, Err: err})
}

func (c *Connection) handleReceive(at *activeTransport, data []byte) {
	if at.discarded.Load() {
		return
	}
	if c.cfg.logMessageContent {
		c.logger.Debug("Data received", logging.String("transport", at.kind), logging.Any("content", data))
	}
	c.events.emit(Event{Type: EventReceive, Data: data})
}

func (c *Connection) endAttempt(done chan struct{}) {
	c.mu.Lock()
	if c.attemptDone == done {
		c.attemptDone = nil
	}
	c.mu.Unlock()
	close(done)
}

// stoppedSince reports whether Stop was called after the attempt of epoch began.
func (c *Connection) stoppedSince(epoch uint64) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.epoch != epoch || c.state.current() == Disconnected
}

func (c *Connection) stateChanged(from, to State) {
	c.logger.Debug("Connection state changed",
		logging.String("from", from.String()),
		logging.String("to", to.String()))
	c.cfg.metrics.StateChanged(from.String(), to.String())
}

// State returns the current lifecycle state.
func (c *Connection) State() State {
	return c.state.current()
}

// ConnectionID returns the server-assigned ID of the current connection, or
// "" when not connected or when negotiation was skipped.
func (c *Connection) ConnectionID() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.connectionID
}

// Features describes the current transport.
func (c *Connection) Features() Features {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.features
}

// BaseURL returns the resolved URL the connection was created with.
func (c *Connection) BaseURL() string {
	return c.baseURL
}

// TraceID returns the client-side ID attached to this connection's logs and spans.
func (c *Connection) TraceID() string {
	return c.traceID
}

func inherentKeepAlive(t transport.Transport) bool {
	ka, ok := t.(transport.KeepAliver)
	return ok && ka.InherentKeepAlive()
}
