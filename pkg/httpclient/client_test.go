package httpclient

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ajitpratap0/rtconn-go/pkg/logging"
)

func TestPost(t *testing.T) {
	var gotBody []byte
	var gotHeaders http.Header
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		gotBody, _ = io.ReadAll(r.Body)
		gotHeaders = r.Header.Clone()
		w.WriteHeader(http.StatusAccepted)
		_, _ = w.Write([]byte("ok"))
	}))
	defer server.Close()

	c := New(WithHeaders(map[string]string{"X-Default": "d", "X-Both": "default"}))
	resp, err := c.Post(context.Background(), server.URL, Request{
		Content: []byte("payload"),
		Headers: map[string]string{"X-Both": "request", "Authorization": "Bearer t"},
	})
	require.NoError(t, err)

	assert.Equal(t, http.StatusAccepted, resp.StatusCode)
	assert.Equal(t, "ok", string(resp.Content))
	assert.Equal(t, "payload", string(gotBody))
	assert.Equal(t, "d", gotHeaders.Get("X-Default"))
	assert.Equal(t, "request", gotHeaders.Get("X-Both"))
	assert.Equal(t, "Bearer t", gotHeaders.Get("Authorization"))
	assert.Equal(t, UserAgent, gotHeaders.Get("User-Agent"))
}

func TestNon2xxIsNotAnError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "missing", http.StatusNotFound)
	}))
	defer server.Close()

	resp, err := New().Get(context.Background(), server.URL, Request{})
	require.NoError(t, err)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestDelete(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodDelete, r.Method)
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	resp, err := New().Delete(context.Background(), server.URL, Request{})
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestRequestTimeout(t *testing.T) {
	release := make(chan struct{})
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer server.Close()
	defer close(release)

	_, err := New().Get(context.Background(), server.URL, Request{Timeout: 50 * time.Millisecond})
	require.Error(t, err)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestLoggerWrapsTransport(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.NotEmpty(t, r.Header.Get(logging.RequestIDHeader))
	}))
	defer server.Close()

	var buf bytes.Buffer
	logger := logging.New(&buf, logging.NewJSONFormatter())
	logger.SetLevel(logging.DebugLevel)

	_, err := New(WithLogger(logger)).Post(context.Background(), server.URL, Request{})
	require.NoError(t, err)
	assert.Contains(t, buf.String(), "HTTP request completed")
}

func TestBearerHeaders(t *testing.T) {
	assert.Nil(t, BearerHeaders(""))
	assert.Equal(t, map[string]string{"Authorization": "Bearer abc"}, BearerHeaders("abc"))
}
