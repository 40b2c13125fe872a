package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"nhooyr.io/websocket"

	rtconn "github.com/ajitpratap0/rtconn-go"
	rterrors "github.com/ajitpratap0/rtconn-go/pkg/errors"
)

// syncBuffer is written by transport goroutines and read by the test.
type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func executeCommand(stdin io.Reader, args ...string) (stdout, stderr string, err error) {
	var out, errOut syncBuffer
	root := newRootCmd(stdin)
	root.SetOut(&out)
	root.SetErr(&errOut)
	root.SetArgs(args)
	err = root.ExecuteContext(context.Background())
	return out.String(), errOut.String(), err
}

// hubServer answers negotiate with a WebSockets offer and echoes every
// WebSocket message back to the sender.
func hubServer(t *testing.T, negotiate func(w http.ResponseWriter, r *http.Request)) *httptest.Server {
	t.Helper()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if strings.HasSuffix(r.URL.Path, "/negotiate") {
			negotiate(w, r)
			return
		}
		conn, err := websocket.Accept(w, r, nil)
		if err != nil {
			t.Errorf("accept failed: %v", err)
			return
		}
		defer conn.CloseNow()
		for {
			typ, data, err := conn.Read(r.Context())
			if err != nil {
				return
			}
			if err := conn.Write(r.Context(), typ, data); err != nil {
				return
			}
		}
	}))
	t.Cleanup(srv.Close)
	return srv
}

func offerWebSockets(w http.ResponseWriter, _ *http.Request) {
	fmt.Fprint(w, `{"connectionId":"abc","availableTransports":[{"transport":"WebSockets","transferFormats":["Text","Binary"]}]}`)
}

func TestVersionCommand(t *testing.T) {
	out, _, err := executeCommand(nil, "version")
	require.NoError(t, err)
	assert.Contains(t, out, "rtconnctl version "+rtconn.Version)
}

func TestNegotiateCommand(t *testing.T) {
	auth := make(chan string, 1)
	srv := hubServer(t, func(w http.ResponseWriter, r *http.Request) {
		auth <- r.Header.Get("Authorization")
		offerWebSockets(w, r)
	})

	t.Setenv("RTCONN_ACCESS_TOKEN", "tok")
	out, _, err := executeCommand(nil, "negotiate", "--url", srv.URL+"/hub")
	require.NoError(t, err)
	assert.Equal(t, "Bearer tok", <-auth)

	var result negotiateResult
	require.NoError(t, json.Unmarshal([]byte(out), &result))
	assert.Equal(t, srv.URL+"/hub", result.URL)
	assert.Equal(t, 0, result.Redirects)
	assert.Equal(t, "abc", result.Response.ConnectionID)
	require.Len(t, result.Response.AvailableTransports, 1)
	assert.Equal(t, "WebSockets", result.Response.AvailableTransports[0].Transport)
}

func TestNegotiateCommandFollowsRedirect(t *testing.T) {
	var srv *httptest.Server
	srv = hubServer(t, func(w http.ResponseWriter, r *http.Request) {
		if strings.HasPrefix(r.URL.Path, "/first/") {
			fmt.Fprintf(w, `{"url":%q,"accessToken":"redirected"}`, srv.URL+"/second")
			return
		}
		assert.Equal(t, "Bearer redirected", r.Header.Get("Authorization"))
		offerWebSockets(w, r)
	})

	out, _, err := executeCommand(nil, "negotiate", "--url", srv.URL+"/first")
	require.NoError(t, err)

	var result negotiateResult
	require.NoError(t, json.Unmarshal([]byte(out), &result))
	assert.Equal(t, srv.URL+"/second", result.URL)
	assert.Equal(t, 1, result.Redirects)

	out, _, err = executeCommand(nil, "negotiate", "--no-follow", "--url", srv.URL+"/first")
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal([]byte(out), &result))
	assert.Equal(t, 0, result.Redirects)
	assert.Equal(t, srv.URL+"/second", result.Response.URL)
}

func TestNegotiateCommandServerError(t *testing.T) {
	srv := hubServer(t, func(w http.ResponseWriter, _ *http.Request) {
		fmt.Fprint(w, `{"error":"Hub is full"}`)
	})

	out, _, err := executeCommand(nil, "negotiate", "--url", srv.URL+"/hub")
	require.Error(t, err)
	assert.ErrorIs(t, err, rterrors.ErrServerReported)
	assert.Equal(t, "Hub is full", err.Error())
	assert.Contains(t, out, "Hub is full")
}

func TestNegotiateCommandRequiresURL(t *testing.T) {
	_, _, err := executeCommand(nil, "negotiate")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "--url")
}

func TestInvalidFlagsAreRejected(t *testing.T) {
	_, _, err := executeCommand(nil, "negotiate", "--url", "http://x/hub", "--transport", "Carrier")
	assert.True(t, rterrors.IsCode(err, rterrors.CodeInvalidConfig))

	_, _, err = executeCommand(nil, "negotiate", "--url", "http://x/hub", "--format", "morse")
	assert.True(t, rterrors.IsCode(err, rterrors.CodeInvalidConfig))
}

func TestConnectCommandEchoes(t *testing.T) {
	srv := hubServer(t, offerWebSockets)

	out, errOut, err := executeCommand(strings.NewReader("hello\n"),
		"connect", "--url", srv.URL+"/hub", "--format", "text", "--transport", "WebSockets", "-n", "1")
	require.NoError(t, err)
	assert.Equal(t, "hello\n", out)
	assert.Contains(t, errOut, `connection id "abc"`)
}

func TestConnectCommandUsesConfigFile(t *testing.T) {
	srv := hubServer(t, offerWebSockets)

	path := filepath.Join(t.TempDir(), "rtconn.yaml")
	cfg := fmt.Sprintf("url: %s/hub\ntransfer_format: text\nlog_level: warn\n", srv.URL)
	require.NoError(t, os.WriteFile(path, []byte(cfg), 0o600))

	out, _, err := executeCommand(strings.NewReader("one\ntwo\n"), "connect", "--config", path, "-n", "2")
	require.NoError(t, err)
	assert.Equal(t, "one\ntwo\n", out)
}

func TestConnectCommandServesMetrics(t *testing.T) {
	srv := hubServer(t, offerWebSockets)

	_, errOut, err := executeCommand(strings.NewReader("ping\n"),
		"connect", "--url", srv.URL+"/hub", "--metrics-listen", "127.0.0.1:0", "-n", "1")
	require.NoError(t, err)
	assert.Contains(t, errOut, "Serving metrics on http://127.0.0.1:")
}

func TestConnectCommandStartFailure(t *testing.T) {
	srv := hubServer(t, func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	})

	_, _, err := executeCommand(nil, "connect", "--url", srv.URL+"/hub")
	require.Error(t, err)
	assert.ErrorIs(t, err, rterrors.ErrUnexpectedStatus)
}
