package observability

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics receives connection lifecycle measurements.
type Metrics interface {
	// StateChanged records an applied state transition.
	StateChanged(from, to string)
	// NegotiationCompleted records one negotiate round trip.
	NegotiationCompleted(outcome string, duration time.Duration)
	// TransportAttempt records one candidate of the fallback walk.
	TransportAttempt(kind, outcome string, duration time.Duration)
	// ReconnectAttempt records one reconnect attempt.
	ReconnectAttempt(outcome string)
	// MessageSent records an outbound payload of size bytes.
	MessageSent(size int)
	// MessageReceived records an inbound payload of size bytes.
	MessageReceived(size int)
}

// Outcome labels
const (
	OutcomeSuccess  = "success"
	OutcomeFailure  = "failure"
	OutcomeSkipped  = "skipped"
	OutcomeRedirect = "redirect"
	OutcomeGiveUp   = "give_up"
)

// NoopMetrics discards everything.
type NoopMetrics struct{}

func (NoopMetrics) StateChanged(string, string)                    {}
func (NoopMetrics) NegotiationCompleted(string, time.Duration)     {}
func (NoopMetrics) TransportAttempt(string, string, time.Duration) {}
func (NoopMetrics) ReconnectAttempt(string)                        {}
func (NoopMetrics) MessageSent(int)                                {}
func (NoopMetrics) MessageReceived(int)                            {}

// MetricsConfig configures PrometheusMetrics
type MetricsConfig struct {
	// Namespace prefixes every metric (default: rtconn)
	Namespace string
	Subsystem string

	// HistogramBuckets in seconds for latency histograms
	HistogramBuckets []float64

	// Labels to add to all metrics
	ConstLabels prometheus.Labels
}

// States reported by the state gauge.
var knownStates = []string{"Disconnected", "Connecting", "Connected", "Reconnecting"}

// PrometheusMetrics implements Metrics on a private Prometheus registry.
type PrometheusMetrics struct {
	config   MetricsConfig
	registry *prometheus.Registry

	state               *prometheus.GaugeVec
	transitions         *prometheus.CounterVec
	negotiationDuration *prometheus.HistogramVec
	transportAttempts   *prometheus.CounterVec
	transportDuration   *prometheus.HistogramVec
	reconnectAttempts   *prometheus.CounterVec
	messagesSent        prometheus.Counter
	messagesReceived    prometheus.Counter
	bytesSent           prometheus.Counter
	bytesReceived       prometheus.Counter

	mu     sync.Mutex
	server *http.Server
}

// NewPrometheusMetrics creates and registers the connection metrics.
func NewPrometheusMetrics(config MetricsConfig) (*PrometheusMetrics, error) {
	if config.Namespace == "" {
		config.Namespace = "rtconn"
	}
	if config.HistogramBuckets == nil {
		config.HistogramBuckets = []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10}
	}

	p := &PrometheusMetrics{
		config:   config,
		registry: prometheus.NewRegistry(),
	}
	p.initializeMetrics()

	if err := p.registerMetrics(); err != nil {
		return nil, fmt.Errorf("failed to register metrics: %w", err)
	}

	for _, s := range knownStates {
		p.state.WithLabelValues(s).Set(0)
	}
	p.state.WithLabelValues("Disconnected").Set(1)

	return p, nil
}

func (p *PrometheusMetrics) initializeMetrics() {
	c := p.config
	p.state = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Namespace:   c.Namespace,
		Subsystem:   c.Subsystem,
		Name:        "connection_state",
		Help:        "Current connection state (1 for the active state)",
		ConstLabels: c.ConstLabels,
	}, []string{"state"})

	p.transitions = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace:   c.Namespace,
		Subsystem:   c.Subsystem,
		Name:        "state_transitions_total",
		Help:        "Applied connection state transitions",
		ConstLabels: c.ConstLabels,
	}, []string{"from", "to"})

	p.negotiationDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace:   c.Namespace,
		Subsystem:   c.Subsystem,
		Name:        "negotiation_duration_seconds",
		Help:        "Duration of negotiate round trips",
		Buckets:     c.HistogramBuckets,
		ConstLabels: c.ConstLabels,
	}, []string{"outcome"})

	p.transportAttempts = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace:   c.Namespace,
		Subsystem:   c.Subsystem,
		Name:        "transport_attempts_total",
		Help:        "Transport candidates considered during fallback",
		ConstLabels: c.ConstLabels,
	}, []string{"transport", "outcome"})

	p.transportDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace:   c.Namespace,
		Subsystem:   c.Subsystem,
		Name:        "transport_connect_duration_seconds",
		Help:        "Duration of transport connect attempts",
		Buckets:     c.HistogramBuckets,
		ConstLabels: c.ConstLabels,
	}, []string{"transport", "outcome"})

	p.reconnectAttempts = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace:   c.Namespace,
		Subsystem:   c.Subsystem,
		Name:        "reconnect_attempts_total",
		Help:        "Reconnect attempts by outcome",
		ConstLabels: c.ConstLabels,
	}, []string{"outcome"})

	p.messagesSent = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: c.Namespace, Subsystem: c.Subsystem, ConstLabels: c.ConstLabels,
		Name: "messages_sent_total", Help: "Payloads sent",
	})
	p.messagesReceived = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: c.Namespace, Subsystem: c.Subsystem, ConstLabels: c.ConstLabels,
		Name: "messages_received_total", Help: "Payloads received",
	})
	p.bytesSent = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: c.Namespace, Subsystem: c.Subsystem, ConstLabels: c.ConstLabels,
		Name: "sent_bytes_total", Help: "Payload bytes sent",
	})
	p.bytesReceived = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: c.Namespace, Subsystem: c.Subsystem, ConstLabels: c.ConstLabels,
		Name: "received_bytes_total", Help: "Payload bytes received",
	})
}

func (p *PrometheusMetrics) registerMetrics() error {
	collectors := []prometheus.Collector{
		p.state,
		p.transitions,
		p.negotiationDuration,
		p.transportAttempts,
		p.transportDuration,
		p.reconnectAttempts,
		p.messagesSent,
		p.messagesReceived,
		p.bytesSent,
		p.bytesReceived,
	}
	for _, c := range collectors {
		if err := p.registry.Register(c); err != nil {
			return err
		}
	}
	return nil
}

// StateChanged records a transition and moves the state gauge
func (p *PrometheusMetrics) StateChanged(from, to string) {
	p.transitions.WithLabelValues(from, to).Inc()
	p.state.WithLabelValues(from).Set(0)
	p.state.WithLabelValues(to).Set(1)
}

// NegotiationCompleted records a negotiate round trip
func (p *PrometheusMetrics) NegotiationCompleted(outcome string, duration time.Duration) {
	p.negotiationDuration.WithLabelValues(outcome).Observe(duration.Seconds())
}

// TransportAttempt records a fallback candidate
func (p *PrometheusMetrics) TransportAttempt(kind, outcome string, duration time.Duration) {
	p.transportAttempts.WithLabelValues(kind, outcome).Inc()
	if outcome != OutcomeSkipped {
		p.transportDuration.WithLabelValues(kind, outcome).Observe(duration.Seconds())
	}
}

// ReconnectAttempt records a reconnect attempt
func (p *PrometheusMetrics) ReconnectAttempt(outcome string) {
	p.reconnectAttempts.WithLabelValues(outcome).Inc()
}

// MessageSent records an outbound payload
func (p *PrometheusMetrics) MessageSent(size int) {
	p.messagesSent.Inc()
	p.bytesSent.Add(float64(size))
}

// MessageReceived records an inbound payload
func (p *PrometheusMetrics) MessageReceived(size int) {
	p.messagesReceived.Inc()
	p.bytesReceived.Add(float64(size))
}

// Registry returns the private registry
func (p *PrometheusMetrics) Registry() *prometheus.Registry {
	return p.registry
}

// Handler serves the registry in the Prometheus exposition format
func (p *PrometheusMetrics) Handler() http.Handler {
	return promhttp.HandlerFor(p.registry, promhttp.HandlerOpts{})
}

// Start serves /metrics on addr until Shutdown. It returns the bound address.
func (p *PrometheusMetrics) Start(ctx context.Context, addr string) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.server != nil {
		return "", errors.New("metrics server already started")
	}

	var lc net.ListenConfig
	ln, err := lc.Listen(ctx, "tcp", addr)
	if err != nil {
		return "", fmt.Errorf("listen on %s: %w", addr, err)
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", p.Handler())
	p.server = &http.Server{
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func(srv *http.Server) {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			fmt.Printf("metrics server error: %v\n", err)
		}
	}(p.server)

	return ln.Addr().String(), nil
}

// Shutdown stops the metrics server
func (p *PrometheusMetrics) Shutdown(ctx context.Context) error {
	p.mu.Lock()
	srv := p.server
	p.server = nil
	p.mu.Unlock()

	if srv != nil {
		return srv.Shutdown(ctx)
	}
	return nil
}
