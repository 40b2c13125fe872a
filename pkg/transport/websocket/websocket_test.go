package websocket

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"nhooyr.io/websocket"

	rterrors "github.com/ajitpratap0/rtconn-go/pkg/errors"
	"github.com/ajitpratap0/rtconn-go/pkg/logging"
	"github.com/ajitpratap0/rtconn-go/pkg/protocol"
	"github.com/ajitpratap0/rtconn-go/pkg/transport"
)

// echoServer echoes every message and hands the server side conn to the test.
func echoServer(t *testing.T, onRequest func(r *http.Request)) (*httptest.Server, <-chan *websocket.Conn) {
	t.Helper()

	conns := make(chan *websocket.Conn, 1)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if onRequest != nil {
			onRequest(r)
		}
		conn, err := websocket.Accept(w, r, nil)
		if err != nil {
			t.Errorf("server accept failed: %v", err)
			return
		}
		conns <- conn
		for {
			typ, data, err := conn.Read(context.Background())
			if err != nil {
				return
			}
			if err := conn.Write(context.Background(), typ, data); err != nil {
				return
			}
		}
	}))
	t.Cleanup(srv.Close)
	return srv, conns
}

func newTransport(token string) *Transport {
	return New(transport.Config{
		Logger: logging.Nop(),
		AccessToken: func(context.Context) (string, error) {
			return token, nil
		},
	})
}

func TestSendAndReceive(t *testing.T) {
	var auth, query string
	srv, _ := echoServer(t, func(r *http.Request) {
		auth = r.Header.Get("Authorization")
		query = r.URL.RawQuery
	})

	tr := newTransport("tok")
	received := make(chan []byte, 1)
	tr.SetReceiveHandler(func(data []byte) { received <- data })

	require.NoError(t, tr.Connect(context.Background(), srv.URL+"?id=abc", protocol.Text))
	defer tr.Stop(context.Background())

	assert.Equal(t, "Bearer tok", auth)
	assert.Equal(t, "id=abc", query)

	require.NoError(t, tr.Send(context.Background(), []byte("hello over websocket")))

	select {
	case data := <-received:
		assert.Equal(t, "hello over websocket", string(data))
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for echo")
	}
}

func TestStopFiresCleanCloseBeforeReturning(t *testing.T) {
	srv, _ := echoServer(t, nil)

	tr := newTransport("")
	closed := make(chan error, 2)
	tr.SetCloseHandler(func(err error) { closed <- err })

	require.NoError(t, tr.Connect(context.Background(), srv.URL, protocol.Binary))

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, tr.Stop(ctx))

	select {
	case err := <-closed:
		assert.NoError(t, err)
	default:
		t.Fatal("close handler must have run before Stop returned")
	}

	// Second stop is a no-op and the handler stays at one call.
	require.NoError(t, tr.Stop(ctx))
	assert.Len(t, closed, 0)

	err := tr.Send(context.Background(), []byte("x"))
	assert.ErrorIs(t, err, rterrors.ErrTransportClosed)
}

func TestServerAbortReportsError(t *testing.T) {
	srv, conns := echoServer(t, nil)

	tr := newTransport("")
	closed := make(chan error, 1)
	tr.SetCloseHandler(func(err error) { closed <- err })

	require.NoError(t, tr.Connect(context.Background(), srv.URL, protocol.Binary))

	serverConn := <-conns
	_ = serverConn.Close(websocket.StatusInternalError, "boom")

	select {
	case err := <-closed:
		require.Error(t, err)
		assert.ErrorIs(t, err, rterrors.ErrTransportFailed)
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for close")
	}
}

func TestServerNormalCloseIsClean(t *testing.T) {
	srv, conns := echoServer(t, nil)

	tr := newTransport("")
	closed := make(chan error, 1)
	tr.SetCloseHandler(func(err error) { closed <- err })

	require.NoError(t, tr.Connect(context.Background(), srv.URL, protocol.Binary))
	_ = (<-conns).Close(websocket.StatusNormalClosure, "")

	select {
	case err := <-closed:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for close")
	}
}

func TestConnectFailure(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	defer srv.Close()

	err := newTransport("").Connect(context.Background(), srv.URL, protocol.Binary)
	assert.Error(t, err)
}

func TestConnectRejectsFormatSet(t *testing.T) {
	err := newTransport("").Connect(context.Background(), "http://127.0.0.1:1", protocol.AllFormats)
	assert.ErrorIs(t, err, rterrors.ErrInvalidArgument)
}

func TestReusedInstanceAfterStop(t *testing.T) {
	srv, conns := echoServer(t, nil)

	tr := newTransport("")
	closed := make(chan error, 2)
	received := make(chan []byte, 1)
	tr.SetCloseHandler(func(err error) { closed <- err })
	tr.SetReceiveHandler(func(data []byte) { received <- data })

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	require.NoError(t, tr.Connect(ctx, srv.URL, protocol.Text))
	<-conns
	require.NoError(t, tr.Stop(ctx))
	assert.NoError(t, <-closed)

	require.NoError(t, tr.Connect(ctx, srv.URL, protocol.Text))
	serverConn := <-conns
	require.NoError(t, tr.Send(ctx, []byte("again")))

	select {
	case data := <-received:
		assert.Equal(t, "again", string(data))
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for echo")
	}

	_ = serverConn.Close(websocket.StatusInternalError, "boom")
	select {
	case err := <-closed:
		assert.ErrorIs(t, err, rterrors.ErrTransportFailed)
	case <-time.After(5 * time.Second):
		t.Fatal("second connection loss was not reported")
	}
}
