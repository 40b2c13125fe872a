package transport

import (
	"context"
	"errors"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/ajitpratap0/rtconn-go/pkg/httpclient"
	"github.com/ajitpratap0/rtconn-go/pkg/logging"
	"github.com/ajitpratap0/rtconn-go/pkg/protocol"
)

// Transport is a bidirectional channel to the server.
type Transport interface {
	// Connect opens the channel. url is the identity-qualified connect URL.
	Connect(ctx context.Context, url string, format protocol.TransferFormat) error

	// Send transmits one payload.
	Send(ctx context.Context, data []byte) error

	// Stop closes the channel. Stopping a closed transport is a no-op.
	Stop(ctx context.Context) error

	SetReceiveHandler(handler ReceiveHandler)
	SetCloseHandler(handler CloseHandler)
}

// KeepAliver is implemented by transports that keep the connection alive on
// their own, so no application-level ping is needed.
type KeepAliver interface {
	InherentKeepAlive() bool
}

// ReceiveHandler processes one received payload
type ReceiveHandler func(data []byte)

// CloseHandler is told that the transport closed; err is nil for a clean close.
type CloseHandler func(err error)

// ErrNotConnected is returned when sending on a transport that is not open.
var ErrNotConnected = errors.New("transport is not connected")

// Kind identifies a transport implementation. Values are bit flags.
type Kind uint8

const (
	// None selects nothing.
	None Kind = 0
	// WebSockets is a full-duplex socket.
	WebSockets Kind = 1 << (iota - 1)
	// ServerSentEvents streams from the server and posts to send.
	ServerSentEvents
	// LongPolling repeatedly polls and posts to send.
	LongPolling
)

// All selects every kind.
const All = WebSockets | ServerSentEvents | LongPolling

var kindNames = []struct {
	kind Kind
	name string
}{
	{WebSockets, "WebSockets"},
	{ServerSentEvents, "ServerSentEvents"},
	{LongPolling, "LongPolling"},
}

// String returns the wire name of a single kind, or a "|" joined list for a set.
func (k Kind) String() string {
	if k == None {
		return "None"
	}
	var names []string
	for _, kn := range kindNames {
		if k&kn.kind != 0 {
			names = append(names, kn.name)
		}
	}
	return strings.Join(names, "|")
}

// Kinds splits a set into its single kinds, in declaration order.
func (k Kind) Kinds() []Kind {
	var out []Kind
	for _, kn := range kindNames {
		if k&kn.kind != 0 {
			out = append(out, kn.kind)
		}
	}
	return out
}

// ParseKind maps a wire name to its kind. Matching is exact, as sent by servers.
func ParseKind(name string) (Kind, bool) {
	for _, kn := range kindNames {
		if kn.name == name {
			return kn.kind, true
		}
	}
	return None, false
}

// ParseKinds parses a list of names (case-insensitive) into a set, for
// configuration files and flags.
func ParseKinds(names []string) (Kind, error) {
	var set Kind
	for _, name := range names {
		found := false
		for _, kn := range kindNames {
			if strings.EqualFold(kn.name, strings.TrimSpace(name)) {
				set |= kn.kind
				found = true
				break
			}
		}
		if !found {
			return None, &UnknownKindError{Name: name}
		}
	}
	return set, nil
}

// UnknownKindError reports a transport name the client does not know.
type UnknownKindError struct {
	Name string
}

func (e *UnknownKindError) Error() string {
	return "unknown transport " + `"` + e.Name + `"`
}

// Selection restricts which transport a connection uses: ByKind or ByInstance.
type Selection interface {
	selection()
}

// KindSelection allows any kind in Kinds, negotiated with the server.
type KindSelection struct {
	Kinds Kind
}

func (KindSelection) selection() {}

// InstanceSelection uses Transport as is, without walking the server's menu.
type InstanceSelection struct {
	Transport Transport
}

func (InstanceSelection) selection() {}

// ByKind selects negotiated transports of the given kinds.
func ByKind(kinds Kind) Selection {
	return KindSelection{Kinds: kinds}
}

// ByInstance selects a pre-built transport.
func ByInstance(t Transport) Selection {
	return InstanceSelection{Transport: t}
}

// TokenFunc supplies the bearer token for a request.
type TokenFunc func(ctx context.Context) (string, error)

// Config is what an Environment needs to construct a transport.
type Config struct {
	HTTPClient        httpclient.Client
	AccessToken       TokenFunc
	Headers           map[string]string
	Logger            logging.Logger
	LogMessageContent bool

	// PollTimeout bounds a single long-polling request.
	PollTimeout time.Duration
}

// Token resolves the access token, tolerating a nil func.
func (c Config) Token(ctx context.Context) (string, error) {
	if c.AccessToken == nil {
		return "", nil
	}
	return c.AccessToken(ctx)
}

// RequestHeaders merges the configured headers with the bearer token.
func (c Config) RequestHeaders(ctx context.Context) (map[string]string, error) {
	headers := make(map[string]string, len(c.Headers)+1)
	for k, v := range c.Headers {
		headers[k] = v
	}
	token, err := c.Token(ctx)
	if err != nil {
		return nil, err
	}
	for k, v := range httpclient.BearerHeaders(token) {
		headers[k] = v
	}
	return headers, nil
}

// Environment reports and constructs the transports the host supports.
type Environment interface {
	Supports(kind Kind) bool
	New(kind Kind, cfg Config) (Transport, error)
}

// Unsupported is an Environment with no transports.
type Unsupported struct{}

// Supports always reports false
func (Unsupported) Supports(Kind) bool { return false }

// New always fails
func (Unsupported) New(kind Kind, _ Config) (Transport, error) {
	return nil, errors.New("'" + kind.String() + "' is not supported in your environment.")
}

// Base carries handler bookkeeping shared by the concrete transports. The close
// handler is invoked at most once per connection; Connect re-arms it with
// Reopen so a reused instance reports every loss.
type Base struct {
	mu        sync.RWMutex
	onReceive ReceiveHandler
	onClose   CloseHandler
	closed    bool
}

// SetReceiveHandler sets the receive handler
func (b *Base) SetReceiveHandler(handler ReceiveHandler) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.onReceive = handler
}

// SetCloseHandler sets the close handler
func (b *Base) SetCloseHandler(handler CloseHandler) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.onClose = handler
}

// Deliver passes a received payload to the receive handler.
func (b *Base) Deliver(data []byte) {
	b.mu.RLock()
	h := b.onReceive
	b.mu.RUnlock()
	if h != nil {
		h(data)
	}
}

// Reopen re-arms the close notification for a new connection.
func (b *Base) Reopen() {
	b.mu.Lock()
	b.closed = false
	b.mu.Unlock()
}

// NotifyClosed runs the close handler once; later calls are ignored until
// Reopen.
func (b *Base) NotifyClosed(err error) {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return
	}
	b.closed = true
	h := b.onClose
	b.mu.Unlock()
	if h != nil {
		h(err)
	}
}

// RedactURL drops the query of u for logging.
func RedactURL(u string) string {
	parsed, err := url.Parse(u)
	if err != nil {
		return "<invalid url>"
	}
	if parsed.RawQuery != "" {
		parsed.RawQuery = "..."
	}
	return parsed.String()
}
