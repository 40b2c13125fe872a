// Package sse implements transport.Transport with Server-Sent Events for the
// server-to-client direction and HTTP POST for sends. Only the Text transfer
// format is supported.
package sse

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"

	"golang.org/x/sync/errgroup"

	rterrors "github.com/ajitpratap0/rtconn-go/pkg/errors"
	"github.com/ajitpratap0/rtconn-go/pkg/httpclient"
	"github.com/ajitpratap0/rtconn-go/pkg/logging"
	"github.com/ajitpratap0/rtconn-go/pkg/protocol"
	"github.com/ajitpratap0/rtconn-go/pkg/transport"
)

const name = "ServerSentEvents"

// Transport is a Server-Sent Events transport.
type Transport struct {
	transport.Base

	cfg    transport.Config
	logger logging.Logger

	mu       sync.Mutex
	url      string
	cancel   context.CancelFunc
	group    *errgroup.Group
	stopping bool
}

// New creates an unconnected SSE transport.
func New(cfg transport.Config) *Transport {
	logger := cfg.Logger
	if logger == nil {
		logger = logging.GetGlobalLogger()
	}
	if cfg.HTTPClient == nil {
		cfg.HTTPClient = httpclient.New()
	}
	return &Transport{
		cfg:    cfg,
		logger: logger.WithFields(logging.String("transport", name)),
	}
}

// Connect opens the event stream. It returns once the server answered 200
// with an event-stream body.
func (t *Transport) Connect(ctx context.Context, url string, format protocol.TransferFormat) error {
	if format != protocol.Text {
		return rterrors.TransportFormatUnsupported(name, format.String())
	}
	t.Reopen()

	headers, err := t.cfg.RequestHeaders(ctx)
	if err != nil {
		return err
	}

	streamCtx, cancel := context.WithCancel(context.Background())
	// The stream outlives ctx; cancel it if ctx ends before the headers arrive.
	stopWatch := context.AfterFunc(ctx, cancel)
	defer stopWatch()

	req, err := http.NewRequestWithContext(streamCtx, http.MethodGet, url, nil)
	if err != nil {
		cancel()
		return err
	}
	req.Header.Set("Accept", "text/event-stream")
	req.Header.Set("Cache-Control", "no-cache")
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	t.logger.Debug("Connecting", logging.String("url", transport.RedactURL(url)))

	resp, err := httpclient.Streaming(t.cfg.HTTPClient).Do(req)
	if err != nil {
		cancel()
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return err
	}

	if resp.StatusCode != http.StatusOK {
		resp.Body.Close()
		cancel()
		return fmt.Errorf("unexpected status code %d from event stream", resp.StatusCode)
	}
	if ct := resp.Header.Get("Content-Type"); !strings.HasPrefix(ct, "text/event-stream") {
		resp.Body.Close()
		cancel()
		return fmt.Errorf("expected content-type 'text/event-stream', got '%s'", ct)
	}

	group := &errgroup.Group{}

	t.mu.Lock()
	t.url = url
	t.cancel = cancel
	t.group = group
	t.stopping = false
	t.mu.Unlock()

	group.Go(func() error {
		t.readLoop(resp.Body)
		return nil
	})

	t.logger.Info("SSE connected")
	return nil
}

func (t *Transport) readLoop(body io.ReadCloser) {
	defer body.Close()

	err := readEvents(body, func(ev event) {
		if t.cfg.LogMessageContent {
			t.logger.Debug("Data received", logging.String("content", ev.Data))
		} else {
			t.logger.Debug("Data received", logging.Int("length", len(ev.Data)))
		}
		t.Deliver([]byte(ev.Data))
	})

	t.mu.Lock()
	stopping := t.stopping
	t.url = ""
	t.mu.Unlock()

	if stopping {
		t.NotifyClosed(nil)
		return
	}
	if errors.Is(err, io.EOF) {
		err = errors.New("the server closed the event stream")
	}
	t.logger.WithError(err).Warn("Event stream ended")
	t.NotifyClosed(rterrors.TransportFailed(name, err))
}

// Send posts data to the connection URL.
func (t *Transport) Send(ctx context.Context, data []byte) error {
	t.mu.Lock()
	url, stopping := t.url, t.stopping
	t.mu.Unlock()

	if url == "" || stopping {
		return rterrors.TransportClosed(name)
	}
	return send(ctx, t.cfg, t.logger, url, data)
}

// Stop cancels the stream and waits for the reader, which fires the close
// handler. It must not be called from the close handler itself.
func (t *Transport) Stop(ctx context.Context) error {
	t.mu.Lock()
	cancel, group := t.cancel, t.group
	if cancel == nil || t.stopping {
		t.mu.Unlock()
		return nil
	}
	t.stopping = true
	t.mu.Unlock()

	cancel()

	done := make(chan struct{})
	go func() {
		_ = group.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// send posts one payload to url.
func send(ctx context.Context, cfg transport.Config, logger logging.Logger, url string, data []byte) error {
	headers, err := cfg.RequestHeaders(ctx)
	if err != nil {
		return err
	}
	headers["Content-Type"] = "text/plain;charset=UTF-8"

	if cfg.LogMessageContent {
		logger.Debug("Sending data", logging.String("content", string(data)))
	} else {
		logger.Debug("Sending data", logging.Int("length", len(data)))
	}

	resp, err := cfg.HTTPClient.Post(ctx, url, httpclient.Request{Content: data, Headers: headers})
	if err != nil {
		return err
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("send failed with status code %d", resp.StatusCode)
	}
	return nil
}
