package sse

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	rterrors "github.com/ajitpratap0/rtconn-go/pkg/errors"
	"github.com/ajitpratap0/rtconn-go/pkg/httpclient"
	"github.com/ajitpratap0/rtconn-go/pkg/logging"
	"github.com/ajitpratap0/rtconn-go/pkg/protocol"
	"github.com/ajitpratap0/rtconn-go/pkg/transport"
)

// streamServer pushes every value sent on events to the connected stream and
// records POSTed bodies.
type streamServer struct {
	*httptest.Server
	events chan string
	end    chan struct{}
	posts  chan string
}

func newStreamServer(t *testing.T) *streamServer {
	t.Helper()
	s := &streamServer{
		events: make(chan string, 8),
		end:    make(chan struct{}),
		posts:  make(chan string, 8),
	}
	s.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodPost:
			body, _ := io.ReadAll(r.Body)
			s.posts <- string(body)
		case http.MethodGet:
			assert.Equal(t, "text/event-stream", r.Header.Get("Accept"))
			assert.Equal(t, "Bearer tok", r.Header.Get("Authorization"))
			w.Header().Set("Content-Type", "text/event-stream")
			w.WriteHeader(http.StatusOK)
			w.(http.Flusher).Flush()
			for {
				select {
				case data := <-s.events:
					fmt.Fprintf(w, "data: %s\n\n", data)
					w.(http.Flusher).Flush()
				case <-s.end:
					return
				case <-r.Context().Done():
					return
				}
			}
		}
	}))
	t.Cleanup(s.Server.Close)
	return s
}

func newTransport() *Transport {
	return New(transport.Config{
		HTTPClient:  httpclient.New(),
		Logger:      logging.Nop(),
		AccessToken: func(context.Context) (string, error) { return "tok", nil },
	})
}

func TestReceiveAndSend(t *testing.T) {
	srv := newStreamServer(t)
	tr := newTransport()

	received := make(chan []byte, 1)
	tr.SetReceiveHandler(func(data []byte) { received <- data })

	require.NoError(t, tr.Connect(context.Background(), srv.URL+"/chat?id=abc", protocol.Text))
	defer tr.Stop(context.Background())

	srv.events <- "hello"
	select {
	case data := <-received:
		assert.Equal(t, "hello", string(data))
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for event")
	}

	require.NoError(t, tr.Send(context.Background(), []byte("ping")))
	assert.Equal(t, "ping", <-srv.posts)
}

func TestBinaryFormatRejected(t *testing.T) {
	err := newTransport().Connect(context.Background(), "http://127.0.0.1:1", protocol.Binary)
	require.Error(t, err)
	assert.ErrorIs(t, err, rterrors.ErrTransportRejected)
	assert.Contains(t, err.Error(), "does not support Binary")
}

func TestStopIsClean(t *testing.T) {
	srv := newStreamServer(t)
	tr := newTransport()

	closed := make(chan error, 1)
	tr.SetCloseHandler(func(err error) { closed <- err })

	require.NoError(t, tr.Connect(context.Background(), srv.URL, protocol.Text))
	require.NoError(t, tr.Stop(context.Background()))

	select {
	case err := <-closed:
		assert.NoError(t, err)
	default:
		t.Fatal("close handler must have run before Stop returned")
	}

	assert.ErrorIs(t, tr.Send(context.Background(), []byte("x")), rterrors.ErrTransportClosed)
}

func TestServerEndIsAnError(t *testing.T) {
	srv := newStreamServer(t)
	tr := newTransport()

	closed := make(chan error, 1)
	tr.SetCloseHandler(func(err error) { closed <- err })

	require.NoError(t, tr.Connect(context.Background(), srv.URL, protocol.Text))
	close(srv.end)

	select {
	case err := <-closed:
		assert.ErrorIs(t, err, rterrors.ErrTransportFailed)
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for close")
	}
}

func TestConnectRejectsNonStream(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("{}"))
	}))
	defer srv.Close()

	err := newTransport().Connect(context.Background(), srv.URL, protocol.Text)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "text/event-stream")
}
