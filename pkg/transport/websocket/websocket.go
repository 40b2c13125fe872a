// Package websocket implements transport.Transport over a WebSocket using
// nhooyr.io/websocket. Each payload is one WebSocket message; the transfer
// format picks text or binary frames.
package websocket

import (
	"context"
	"net/http"
	"sync"

	"golang.org/x/sync/errgroup"
	"nhooyr.io/websocket"

	"github.com/ajitpratap0/rtconn-go/pkg/endpoint"
	rterrors "github.com/ajitpratap0/rtconn-go/pkg/errors"
	"github.com/ajitpratap0/rtconn-go/pkg/httpclient"
	"github.com/ajitpratap0/rtconn-go/pkg/logging"
	"github.com/ajitpratap0/rtconn-go/pkg/protocol"
	"github.com/ajitpratap0/rtconn-go/pkg/transport"
)

const name = "WebSockets"

// readLimit bounds a single received message.
const readLimit = 32 << 20

// Transport is a WebSocket transport.
type Transport struct {
	transport.Base

	cfg    transport.Config
	logger logging.Logger

	mu       sync.Mutex
	conn     *websocket.Conn
	msgType  websocket.MessageType
	cancel   context.CancelFunc
	group    *errgroup.Group
	stopping bool
}

// New creates an unconnected WebSocket transport.
func New(cfg transport.Config) *Transport {
	logger := cfg.Logger
	if logger == nil {
		logger = logging.GetGlobalLogger()
	}
	return &Transport{
		cfg:    cfg,
		logger: logger.WithFields(logging.String("transport", name)),
	}
}

// Connect dials url after rewriting its scheme to ws(s).
func (t *Transport) Connect(ctx context.Context, url string, format protocol.TransferFormat) error {
	if !format.Valid() {
		return rterrors.InvalidArgument("format", format.String(), "must be Text or Binary")
	}
	t.Reopen()

	headers, err := t.cfg.RequestHeaders(ctx)
	if err != nil {
		return err
	}
	h := http.Header{}
	for k, v := range headers {
		h.Set(k, v)
	}

	opts := &websocket.DialOptions{HTTPHeader: h}
	if dc, ok := t.cfg.HTTPClient.(*httpclient.DefaultClient); ok {
		opts.HTTPClient = dc.HTTPClient()
	}

	wsURL := endpoint.WebSocketURL(url)
	t.logger.Debug("Connecting", logging.String("url", transport.RedactURL(wsURL)))

	conn, _, err := websocket.Dial(ctx, wsURL, opts)
	if err != nil {
		return err
	}
	conn.SetReadLimit(readLimit)

	msgType := websocket.MessageBinary
	if format == protocol.Text {
		msgType = websocket.MessageText
	}

	readCtx, cancel := context.WithCancel(context.Background())
	group, readCtx := errgroup.WithContext(readCtx)

	t.mu.Lock()
	t.conn = conn
	t.msgType = msgType
	t.cancel = cancel
	t.group = group
	t.stopping = false
	t.mu.Unlock()

	group.Go(func() error {
		return t.readLoop(readCtx, conn)
	})

	t.logger.Info("WebSocket connected")
	return nil
}

// Send writes data as one message.
func (t *Transport) Send(ctx context.Context, data []byte) error {
	t.mu.Lock()
	conn, msgType, stopping := t.conn, t.msgType, t.stopping
	t.mu.Unlock()

	if conn == nil || stopping {
		return rterrors.TransportClosed(name)
	}

	if t.cfg.LogMessageContent {
		t.logger.Debug("Sending data", logging.Any("content", data))
	} else {
		t.logger.Debug("Sending data", logging.Int("length", len(data)))
	}

	return conn.Write(ctx, msgType, data)
}

// Stop closes the socket and waits for the read loop, which fires the close
// handler. It must not be called from the close handler itself.
func (t *Transport) Stop(ctx context.Context) error {
	t.mu.Lock()
	conn, group, cancel := t.conn, t.group, t.cancel
	if conn == nil || t.stopping {
		t.mu.Unlock()
		return nil
	}
	t.stopping = true
	t.mu.Unlock()

	closeErr := conn.Close(websocket.StatusNormalClosure, "")

	done := make(chan struct{})
	go func() {
		_ = group.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-ctx.Done():
		cancel()
		<-done
	}
	cancel()

	if closeErr != nil && websocket.CloseStatus(closeErr) == -1 {
		t.logger.Debug("Close handshake did not complete", logging.ErrorField(closeErr))
	}
	return nil
}

func (t *Transport) readLoop(ctx context.Context, conn *websocket.Conn) error {
	for {
		_, data, err := conn.Read(ctx)
		if err != nil {
			t.signalClosed(err)
			return nil
		}

		if t.cfg.LogMessageContent {
			t.logger.Debug("Data received", logging.Any("content", data))
		} else {
			t.logger.Debug("Data received", logging.Int("length", len(data)))
		}
		t.Deliver(data)
	}
}

// signalClosed treats normal closure, going-away and a local Stop as clean.
func (t *Transport) signalClosed(err error) {
	t.mu.Lock()
	stopping := t.stopping
	t.conn = nil
	t.mu.Unlock()

	status := websocket.CloseStatus(err)
	switch {
	case stopping, status == websocket.StatusNormalClosure, status == websocket.StatusGoingAway:
		t.logger.Info("WebSocket closed")
		t.NotifyClosed(nil)
	default:
		t.logger.WithError(err).Warn("WebSocket closed with an error")
		t.NotifyClosed(rterrors.TransportFailed(name, err))
	}
}
