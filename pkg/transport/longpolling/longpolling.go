// Package longpolling implements transport.Transport by repeatedly polling the
// connection URL with GET requests. Sends are POSTs and Stop sends a DELETE.
//
// A poll answered with 204 means the server closed the connection. Long
// polling keeps the connection alive on its own, so it reports
// InherentKeepAlive.
package longpolling

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	rterrors "github.com/ajitpratap0/rtconn-go/pkg/errors"
	"github.com/ajitpratap0/rtconn-go/pkg/httpclient"
	"github.com/ajitpratap0/rtconn-go/pkg/logging"
	"github.com/ajitpratap0/rtconn-go/pkg/protocol"
	"github.com/ajitpratap0/rtconn-go/pkg/transport"
)

const name = "LongPolling"

// DefaultPollTimeout bounds one poll request.
const DefaultPollTimeout = 100 * time.Second

// Transport is a long-polling transport.
type Transport struct {
	transport.Base

	cfg    transport.Config
	logger logging.Logger

	mu       sync.Mutex
	url      string
	running  bool
	closeErr error
	cancel   context.CancelFunc
	group    *errgroup.Group
}

// New creates an unconnected long-polling transport.
func New(cfg transport.Config) *Transport {
	logger := cfg.Logger
	if logger == nil {
		logger = logging.GetGlobalLogger()
	}
	if cfg.HTTPClient == nil {
		cfg.HTTPClient = httpclient.New()
	}
	if cfg.PollTimeout <= 0 {
		cfg.PollTimeout = DefaultPollTimeout
	}
	return &Transport{
		cfg:    cfg,
		logger: logger.WithFields(logging.String("transport", name)),
	}
}

// InherentKeepAlive reports true; every poll keeps the connection alive.
func (t *Transport) InherentKeepAlive() bool { return true }

// Connect issues the first poll synchronously and starts the poll loop once it
// succeeded.
func (t *Transport) Connect(ctx context.Context, url string, format protocol.TransferFormat) error {
	if !format.Valid() {
		return rterrors.InvalidArgument("format", format.String(), "must be Text or Binary")
	}
	t.Reopen()

	t.logger.Debug("Connecting", logging.String("url", transport.RedactURL(url)))

	resp, err := t.poll(ctx, url)
	if err != nil {
		return err
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unexpected status code %d from initial poll", resp.StatusCode)
	}

	loopCtx, cancel := context.WithCancel(context.Background())
	group, loopCtx := errgroup.WithContext(loopCtx)

	t.mu.Lock()
	t.url = url
	t.running = true
	t.closeErr = nil
	t.cancel = cancel
	t.group = group
	t.mu.Unlock()

	group.Go(func() error {
		t.pollLoop(loopCtx, url)
		return nil
	})

	return nil
}

func (t *Transport) poll(ctx context.Context, url string) (*httpclient.Response, error) {
	headers, err := t.cfg.RequestHeaders(ctx)
	if err != nil {
		return nil, err
	}
	return t.cfg.HTTPClient.Get(ctx, pollURL(url), httpclient.Request{
		Headers: headers,
		Timeout: t.cfg.PollTimeout,
	})
}

func (t *Transport) pollLoop(ctx context.Context, url string) {
	defer t.finish()

	for t.isRunning() {
		resp, err := t.poll(ctx, url)
		if err != nil {
			if !t.isRunning() {
				t.logger.Debug("Poll aborted by stop")
				return
			}
			if ctx.Err() == nil && isTimeout(err) {
				// Server holds the poll longer than we wait; poll again.
				t.logger.Debug("Poll timed out, reissuing")
				continue
			}
			t.fail(rterrors.TransportFailed(name, err))
			return
		}

		switch {
		case resp.StatusCode == http.StatusNoContent:
			t.logger.Info("Poll terminated by server")
			t.markStopped()
			return
		case resp.StatusCode != http.StatusOK:
			t.fail(rterrors.TransportFailed(name, fmt.Errorf("unexpected response code: %d", resp.StatusCode)))
			return
		}

		if len(resp.Content) == 0 {
			t.logger.Debug("Poll timed out on the server, reissuing")
			continue
		}
		if t.cfg.LogMessageContent {
			t.logger.Debug("Data received", logging.Any("content", resp.Content))
		} else {
			t.logger.Debug("Data received", logging.Int("length", len(resp.Content)))
		}
		t.Deliver(resp.Content)
	}
}

// Send posts data to the connection URL.
func (t *Transport) Send(ctx context.Context, data []byte) error {
	t.mu.Lock()
	url, running := t.url, t.running
	t.mu.Unlock()

	if !running {
		return rterrors.TransportClosed(name)
	}

	headers, err := t.cfg.RequestHeaders(ctx)
	if err != nil {
		return err
	}

	if t.cfg.LogMessageContent {
		t.logger.Debug("Sending data", logging.Any("content", data))
	} else {
		t.logger.Debug("Sending data", logging.Int("length", len(data)))
	}

	resp, err := t.cfg.HTTPClient.Post(ctx, url, httpclient.Request{Content: data, Headers: headers})
	if err != nil {
		return err
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("send failed with status code %d", resp.StatusCode)
	}
	return nil
}

// Stop ends polling, waits for the loop, and tells the server with a DELETE.
// The close handler has run when Stop returns. It must not be called from the
// close handler itself.
func (t *Transport) Stop(ctx context.Context) error {
	t.mu.Lock()
	if t.group == nil {
		t.mu.Unlock()
		return nil
	}
	url, cancel, group, wasRunning := t.url, t.cancel, t.group, t.running
	t.running = false
	t.group = nil
	t.mu.Unlock()

	cancel()
	_ = group.Wait()

	var deleteErr error
	if wasRunning {
		headers, err := t.cfg.RequestHeaders(ctx)
		if err == nil {
			_, err = t.cfg.HTTPClient.Delete(ctx, url, httpclient.Request{Headers: headers})
		}
		if err != nil {
			deleteErr = err
			t.logger.WithError(err).Warn("DELETE request failed")
		} else {
			t.logger.Debug("DELETE request sent")
		}
	}

	t.NotifyClosed(t.storedError())
	return deleteErr
}

func (t *Transport) isRunning() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.running
}

func (t *Transport) markStopped() {
	t.mu.Lock()
	t.running = false
	t.mu.Unlock()
}

func (t *Transport) fail(err error) {
	t.logger.WithError(err).Warn("Polling failed")
	t.mu.Lock()
	t.running = false
	t.closeErr = err
	t.mu.Unlock()
}

func (t *Transport) storedError() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.closeErr
}

// finish raises the close notification when the loop ended on its own. When
// Stop ended it, Stop raises the notification after the DELETE.
func (t *Transport) finish() {
	t.mu.Lock()
	stoppedLocally := t.group == nil
	if !stoppedLocally {
		t.group = nil
		t.cancel()
	}
	err := t.closeErr
	t.mu.Unlock()

	if !stoppedLocally {
		t.NotifyClosed(err)
	}
}

// pollURL adds a cache-busting timestamp.
func pollURL(url string) string {
	sep := "?"
	if strings.Contains(url, "?") {
		sep = "&"
	}
	return url + sep + "_=" + strconv.FormatInt(time.Now().UnixMilli(), 10)
}

func isTimeout(err error) bool {
	type timeout interface{ Timeout() bool }
	te, ok := err.(timeout)
	return ok && te.Timeout()
}
