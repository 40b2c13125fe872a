package connection

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"sync"

	"github.com/ajitpratap0/rtconn-go/pkg/httpclient"
	"github.com/ajitpratap0/rtconn-go/pkg/logging"
	"github.com/ajitpratap0/rtconn-go/pkg/protocol"
	"github.com/ajitpratap0/rtconn-go/pkg/transport"
)

// postCall is one request seen by fakeHTTP.
type postCall struct {
	URL     string
	Headers map[string]string
}

// fakeHTTP answers negotiate POSTs with respond.
type fakeHTTP struct {
	mu      sync.Mutex
	calls   []postCall
	respond func(n int, url string) (*httpclient.Response, error)
}

func (f *fakeHTTP) Post(ctx context.Context, url string, req httpclient.Request) (*httpclient.Response, error) {
	f.mu.Lock()
	n := len(f.calls)
	f.calls = append(f.calls, postCall{URL: url, Headers: req.Headers})
	f.mu.Unlock()
	return f.respond(n, url)
}

func (f *fakeHTTP) Get(context.Context, string, httpclient.Request) (*httpclient.Response, error) {
	return nil, errors.New("unexpected GET")
}

func (f *fakeHTTP) Delete(context.Context, string, httpclient.Request) (*httpclient.Response, error) {
	return nil, errors.New("unexpected DELETE")
}

func (f *fakeHTTP) Calls() []postCall {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]postCall(nil), f.calls...)
}

// negotiateOK answers every POST with body.
func negotiateOK(body interface{}) *fakeHTTP {
	return &fakeHTTP{respond: func(int, string) (*httpclient.Response, error) {
		return jsonResponse(body), nil
	}}
}

func jsonResponse(body interface{}) *httpclient.Response {
	var content []byte
	switch b := body.(type) {
	case string:
		content = []byte(b)
	default:
		content, _ = json.Marshal(b)
	}
	return &httpclient.Response{StatusCode: http.StatusOK, Content: content}
}

func menu(id string, entries ...protocol.AvailableTransport) *protocol.NegotiateResponse {
	return &protocol.NegotiateResponse{ConnectionID: id, AvailableTransports: entries}
}

func offer(kind string, formats ...string) protocol.AvailableTransport {
	return protocol.AvailableTransport{Transport: kind, TransferFormats: formats}
}

// fakeTransport records what the connection does with it.
type fakeTransport struct {
	transport.Base

	kind       transport.Kind
	connectErr error
	stopErr    error
	keepAlive  bool
	onConnect  func(ctx context.Context) error
	onStop     func()

	mu         sync.Mutex
	connectURL string
	format     protocol.TransferFormat
	sent       [][]byte
	stops      int
}

func (f *fakeTransport) Connect(ctx context.Context, url string, format protocol.TransferFormat) error {
	f.Reopen()
	f.mu.Lock()
	f.connectURL = url
	f.format = format
	f.mu.Unlock()
	if f.onConnect != nil {
		if err := f.onConnect(ctx); err != nil {
			return err
		}
	}
	return f.connectErr
}

func (f *fakeTransport) Send(_ context.Context, data []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, append([]byte(nil), data...))
	return nil
}

func (f *fakeTransport) Stop(context.Context) error {
	f.mu.Lock()
	f.stops++
	f.mu.Unlock()
	if f.onStop != nil {
		f.onStop()
	}
	f.NotifyClosed(f.stopErr)
	return nil
}

func (f *fakeTransport) InherentKeepAlive() bool {
	return f.keepAlive
}

// drop simulates the server closing the link.
func (f *fakeTransport) drop(err error) {
	f.NotifyClosed(err)
}

func (f *fakeTransport) ConnectURL() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.connectURL
}

func (f *fakeTransport) Sent() [][]byte {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([][]byte(nil), f.sent...)
}

// fakeEnv builds fakeTransports for the kinds it supports.
type fakeEnv struct {
	supported transport.Kind
	build     func(kind transport.Kind) *fakeTransport

	mu      sync.Mutex
	created []*fakeTransport
}

func newFakeEnv(supported transport.Kind) *fakeEnv {
	return &fakeEnv{supported: supported}
}

func (e *fakeEnv) Supports(kind transport.Kind) bool {
	return e.supported&kind != 0
}

func (e *fakeEnv) New(kind transport.Kind, _ transport.Config) (transport.Transport, error) {
	var ft *fakeTransport
	if e.build != nil {
		ft = e.build(kind)
	}
	if ft == nil {
		ft = &fakeTransport{}
	}
	ft.kind = kind

	e.mu.Lock()
	e.created = append(e.created, ft)
	e.mu.Unlock()
	return ft, nil
}

func (e *fakeEnv) Created() []*fakeTransport {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]*fakeTransport(nil), e.created...)
}

func (e *fakeEnv) Last() *fakeTransport {
	created := e.Created()
	if len(created) == 0 {
		return nil
	}
	return created[len(created)-1]
}

// testOptions are the options every test connection starts from.
func testOptions(hc httpclient.Client, env transport.Environment, extra ...Option) []Option {
	return append([]Option{
		WithHTTPClient(hc),
		WithEnvironment(env),
		WithLogger(logging.Nop()),
	}, extra...)
}
