package longpolling

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
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

// pollServer answers the first poll immediately, then serves queued payloads.
// A nil payload answers 204.
type pollServer struct {
	*httptest.Server
	polls   atomic.Int32
	queue   chan []byte
	posts   chan string
	deletes atomic.Int32
}

func newPollServer(t *testing.T) *pollServer {
	t.Helper()
	s := &pollServer{
		queue: make(chan []byte, 8),
		posts: make(chan string, 8),
	}
	s.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "abc", r.URL.Query().Get("id"))
		switch r.Method {
		case http.MethodGet:
			assert.NotEmpty(t, r.URL.Query().Get("_"))
			if s.polls.Add(1) == 1 {
				w.WriteHeader(http.StatusOK)
				return
			}
			select {
			case data := <-s.queue:
				if data == nil {
					w.WriteHeader(http.StatusNoContent)
					return
				}
				_, _ = w.Write(data)
			case <-r.Context().Done():
			}
		case http.MethodPost:
			body, _ := io.ReadAll(r.Body)
			s.posts <- string(body)
		case http.MethodDelete:
			s.deletes.Add(1)
		}
	}))
	t.Cleanup(s.Server.Close)
	return s
}

func newTransport() *Transport {
	return New(transport.Config{HTTPClient: httpclient.New(), Logger: logging.Nop()})
}

func TestPollReceiveAndSend(t *testing.T) {
	srv := newPollServer(t)
	tr := newTransport()
	assert.True(t, tr.InherentKeepAlive())

	received := make(chan []byte, 1)
	tr.SetReceiveHandler(func(data []byte) { received <- data })

	require.NoError(t, tr.Connect(context.Background(), srv.URL+"?id=abc", protocol.Binary))
	defer tr.Stop(context.Background())

	srv.queue <- []byte{0x01, 0x02}
	select {
	case data := <-received:
		assert.Equal(t, []byte{0x01, 0x02}, data)
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for poll data")
	}

	require.NoError(t, tr.Send(context.Background(), []byte("up")))
	assert.Equal(t, "up", <-srv.posts)
}

func TestServerTerminatesWith204(t *testing.T) {
	srv := newPollServer(t)
	tr := newTransport()

	closed := make(chan error, 1)
	tr.SetCloseHandler(func(err error) { closed <- err })

	require.NoError(t, tr.Connect(context.Background(), srv.URL+"?id=abc", protocol.Text))
	srv.queue <- nil

	select {
	case err := <-closed:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for close")
	}

	assert.ErrorIs(t, tr.Send(context.Background(), []byte("x")), rterrors.ErrTransportClosed)
	assert.NoError(t, tr.Stop(context.Background()))
	assert.Equal(t, int32(0), srv.deletes.Load())
}

func TestStopSendsDeleteAndClosesCleanly(t *testing.T) {
	srv := newPollServer(t)
	tr := newTransport()

	var closes atomic.Int32
	var closeErr error
	tr.SetCloseHandler(func(err error) {
		closes.Add(1)
		closeErr = err
	})

	require.NoError(t, tr.Connect(context.Background(), srv.URL+"?id=abc", protocol.Text))
	require.NoError(t, tr.Stop(context.Background()))

	assert.Equal(t, int32(1), closes.Load())
	assert.NoError(t, closeErr)
	assert.Equal(t, int32(1), srv.deletes.Load())

	require.NoError(t, tr.Stop(context.Background()))
	assert.Equal(t, int32(1), closes.Load())
}

func TestInitialPollFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer srv.Close()

	err := newTransport().Connect(context.Background(), srv.URL, protocol.Text)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "401")
}

func TestPollErrorClosesWithError(t *testing.T) {
	var polls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if polls.Add(1) == 1 {
			return
		}
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	tr := newTransport()
	closed := make(chan error, 1)
	tr.SetCloseHandler(func(err error) { closed <- err })

	require.NoError(t, tr.Connect(context.Background(), srv.URL, protocol.Text))

	select {
	case err := <-closed:
		require.Error(t, err)
		assert.ErrorIs(t, err, rterrors.ErrTransportFailed)
		assert.Contains(t, err.Error(), "500")
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for close")
	}
}

func TestPollURL(t *testing.T) {
	assert.Regexp(t, `^http://a/x\?_=\d+$`, pollURL("http://a/x"))
	assert.Regexp(t, `^http://a/x\?id=1&_=\d+$`, pollURL("http://a/x?id=1"))
}
