package rtconn

import (
	"github.com/ajitpratap0/rtconn-go/pkg/connection"
	"github.com/ajitpratap0/rtconn-go/pkg/protocol"
	"github.com/ajitpratap0/rtconn-go/pkg/reconnect"
	"github.com/ajitpratap0/rtconn-go/pkg/transport"
)

// Version represents the current version of the library
const Version = "0.3.0"

// Core types
type (
	Connection = connection.Connection
	Option     = connection.Option
	Event      = connection.Event
	State      = connection.State
)

// NewConnection creates a connection to url. Nothing is sent until Start.
var NewConnection = connection.New

// Connection states
const (
	Disconnected = connection.Disconnected
	Connecting   = connection.Connecting
	Connected    = connection.Connected
	Reconnecting = connection.Reconnecting
)

// Transport kinds
const (
	WebSockets       = transport.WebSockets
	ServerSentEvents = transport.ServerSentEvents
	LongPolling      = transport.LongPolling
	AllTransports    = transport.All
)

// Transfer formats
const (
	Text   = protocol.Text
	Binary = protocol.Binary
)

// Connection options
var (
	WithTransport         = connection.WithTransport
	WithTransferFormat    = connection.WithTransferFormat
	WithAccessTokenFunc   = connection.WithAccessTokenFunc
	WithReconnectPolicy   = connection.WithReconnectPolicy
	WithLogMessageContent = connection.WithLogMessageContent
	WithEnvironment       = connection.WithEnvironment
	WithHTTPClient        = connection.WithHTTPClient
	WithDocumentURL       = connection.WithDocumentURL
	WithSkipNegotiation   = connection.WithSkipNegotiation
	WithHeaders           = connection.WithHeaders
	WithPollTimeout       = connection.WithPollTimeout
	WithLogger            = connection.WithLogger
	WithMetrics           = connection.WithMetrics
	WithTracerProvider    = connection.WithTracerProvider
)

// Transport selection
var (
	ByKind     = transport.ByKind
	ByInstance = transport.ByInstance
)

// Reconnect policies
var (
	DefaultReconnect     = reconnect.Default
	FixedReconnect       = reconnect.Fixed
	ExponentialReconnect = reconnect.Exponential
	BackOffReconnect     = reconnect.FromBackOff
)
