package connection

import (
	"net/url"
	"time"

	"go.opentelemetry.io/otel/trace"

	rterrors "github.com/ajitpratap0/rtconn-go/pkg/errors"
	"github.com/ajitpratap0/rtconn-go/pkg/httpclient"
	"github.com/ajitpratap0/rtconn-go/pkg/logging"
	"github.com/ajitpratap0/rtconn-go/pkg/negotiate"
	"github.com/ajitpratap0/rtconn-go/pkg/observability"
	"github.com/ajitpratap0/rtconn-go/pkg/protocol"
	"github.com/ajitpratap0/rtconn-go/pkg/reconnect"
	"github.com/ajitpratap0/rtconn-go/pkg/transport"
	"github.com/ajitpratap0/rtconn-go/pkg/transport/registry"
)

// Option configures a Connection. Options are applied once by New; the
// resulting configuration never changes afterwards.
type Option func(*config)

type config struct {
	selection         transport.Selection
	format            protocol.TransferFormat
	accessToken       negotiate.AccessTokenFunc
	reconnectPolicy   reconnect.Policy
	logMessageContent bool
	environment       transport.Environment
	httpClient        httpclient.Client
	documentURL       *url.URL
	skipNegotiation   bool
	headers           map[string]string
	pollTimeout       time.Duration
	logger            logging.Logger
	metrics           observability.Metrics
	tracerProvider    trace.TracerProvider
}

func defaultConfig() config {
	return config{
		selection:   transport.ByKind(transport.All),
		format:      protocol.Binary,
		environment: registry.Default,
		metrics:     observability.NoopMetrics{},
	}
}

func (c *config) validate() error {
	switch sel := c.selection.(type) {
	case transport.KindSelection:
		if sel.Kinds == transport.None || sel.Kinds&^transport.All != 0 {
			return rterrors.InvalidArgument("transport", sel.Kinds.String(), "must select at least one known transport kind")
		}
	case transport.InstanceSelection:
		if sel.Transport == nil {
			return rterrors.InvalidArgument("transport", nil, "instance selection requires a transport")
		}
	default:
		return rterrors.InvalidArgument("transport", nil, "a transport selection is required")
	}

	if !c.format.Valid() {
		return rterrors.InvalidArgument("transferFormat", c.format.String(), "must be Text or Binary")
	}
	if c.environment == nil {
		return rterrors.InvalidArgument("environment", nil, "must not be nil")
	}
	if c.pollTimeout < 0 {
		return rterrors.InvalidArgument("pollTimeout", c.pollTimeout.String(), "must not be negative")
	}
	return nil
}

// WithTransport restricts the transports used. Default: ByKind(transport.All).
func WithTransport(sel transport.Selection) Option {
	return func(c *config) {
		c.selection = sel
	}
}

// WithTransferFormat sets the format used by Start. Default: Binary.
func WithTransferFormat(f protocol.TransferFormat) Option {
	return func(c *config) {
		c.format = f
	}
}

// WithAccessTokenFunc sets the bearer token supplier, invoked once per
// request. Default: none.
func WithAccessTokenFunc(fn negotiate.AccessTokenFunc) Option {
	return func(c *config) {
		c.accessToken = fn
	}
}

// WithReconnectPolicy enables automatic reconnection. Default: nil, the
// connection closes when the transport is lost.
func WithReconnectPolicy(p reconnect.Policy) Option {
	return func(c *config) {
		c.reconnectPolicy = p
	}
}

// WithLogMessageContent logs payloads at debug level. Default: false.
func WithLogMessageContent(enabled bool) Option {
	return func(c *config) {
		c.logMessageContent = enabled
	}
}

// WithEnvironment sets the provider of transport implementations.
// Default: registry.Default.
func WithEnvironment(env transport.Environment) Option {
	return func(c *config) {
		c.environment = env
	}
}

// WithHTTPClient sets the HTTP capability used for negotiation and by the
// HTTP based transports. Default: httpclient.New with the connection logger.
func WithHTTPClient(hc httpclient.Client) Option {
	return func(c *config) {
		c.httpClient = hc
	}
}

// WithDocumentURL sets the URL relative addresses are resolved against.
// Default: none, only absolute http(s) URLs are accepted.
func WithDocumentURL(u *url.URL) Option {
	return func(c *config) {
		c.documentURL = u
	}
}

// WithSkipNegotiation connects straight to the URL. Only valid together
// with WithTransport(transport.ByKind(transport.WebSockets)). Default: false.
func WithSkipNegotiation(skip bool) Option {
	return func(c *config) {
		c.skipNegotiation = skip
	}
}

// WithHeaders adds headers to every request. Default: none.
func WithHeaders(headers map[string]string) Option {
	return func(c *config) {
		c.headers = make(map[string]string, len(headers))
		for k, v := range headers {
			c.headers[k] = v
		}
	}
}

// WithPollTimeout bounds a single long-polling request. Default: the
// transport's own default.
func WithPollTimeout(d time.Duration) Option {
	return func(c *config) {
		c.pollTimeout = d
	}
}

// WithLogger sets the logger. Default: the global logger.
func WithLogger(l logging.Logger) Option {
	return func(c *config) {
		c.logger = l
	}
}

// WithMetrics sets the metrics sink. Default: observability.NoopMetrics.
func WithMetrics(m observability.Metrics) Option {
	return func(c *config) {
		c.metrics = m
	}
}

// WithTracerProvider sets the OpenTelemetry provider. Default: the otel global.
func WithTracerProvider(tp trace.TracerProvider) Option {
	return func(c *config) {
		c.tracerProvider = tp
	}
}
