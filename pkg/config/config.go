// Package config loads connection settings from YAML files and turns them into
// connection options.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"gopkg.in/yaml.v3"

	"github.com/ajitpratap0/rtconn-go/pkg/connection"
	rterrors "github.com/ajitpratap0/rtconn-go/pkg/errors"
	"github.com/ajitpratap0/rtconn-go/pkg/logging"
	"github.com/ajitpratap0/rtconn-go/pkg/negotiate"
	"github.com/ajitpratap0/rtconn-go/pkg/observability"
	"github.com/ajitpratap0/rtconn-go/pkg/protocol"
	"github.com/ajitpratap0/rtconn-go/pkg/reconnect"
	"github.com/ajitpratap0/rtconn-go/pkg/transport"
)

// Reconnect modes
const (
	ReconnectNone        = "none"
	ReconnectDefault     = "default"
	ReconnectFixed       = "fixed"
	ReconnectExponential = "exponential"
	ReconnectBackOff     = "backoff"
)

// Environment variables consulted by ApplyEnv
const (
	EnvURL         = "RTCONN_URL"
	EnvAccessToken = "RTCONN_ACCESS_TOKEN"
	EnvLogLevel    = "RTCONN_LOG_LEVEL"
)

// Config is the file representation of a connection.
type Config struct {
	URL               string            `yaml:"url" json:"url"`
	Transports        []string          `yaml:"transports,omitempty" json:"transports,omitempty"`
	TransferFormat    string            `yaml:"transfer_format" json:"transfer_format"`
	SkipNegotiation   bool              `yaml:"skip_negotiation" json:"skip_negotiation"`
	AccessToken       string            `yaml:"access_token,omitempty" json:"access_token,omitempty"`
	Headers           map[string]string `yaml:"headers,omitempty" json:"headers,omitempty"`
	LogMessageContent bool              `yaml:"log_message_content" json:"log_message_content"`
	LogLevel          string            `yaml:"log_level" json:"log_level"`
	LogFormat         string            `yaml:"log_format" json:"log_format"`
	PollTimeout       time.Duration     `yaml:"poll_timeout,omitempty" json:"poll_timeout,omitempty"`

	Reconnect ReconnectConfig `yaml:"reconnect" json:"reconnect"`
	Metrics   MetricsConfig   `yaml:"metrics" json:"metrics"`
	Tracing   TracingConfig   `yaml:"tracing" json:"tracing"`
}

// ReconnectConfig selects and tunes the reconnect policy.
type ReconnectConfig struct {
	Mode         string          `yaml:"mode" json:"mode"`
	Delays       []time.Duration `yaml:"delays,omitempty" json:"delays,omitempty"`
	InitialDelay time.Duration   `yaml:"initial_delay,omitempty" json:"initial_delay,omitempty"`
	MaxDelay     time.Duration   `yaml:"max_delay,omitempty" json:"max_delay,omitempty"`
	Factor       float64         `yaml:"factor,omitempty" json:"factor,omitempty"`
	MaxRetries   int             `yaml:"max_retries,omitempty" json:"max_retries,omitempty"`
	MaxElapsed   time.Duration   `yaml:"max_elapsed,omitempty" json:"max_elapsed,omitempty"`
	Jitter       float64         `yaml:"jitter,omitempty" json:"jitter,omitempty"`
}

// MetricsConfig controls the Prometheus endpoint.
type MetricsConfig struct {
	Enabled   bool   `yaml:"enabled" json:"enabled"`
	Namespace string `yaml:"namespace" json:"namespace"`
	Listen    string `yaml:"listen,omitempty" json:"listen,omitempty"`
}

// TracingConfig controls the OpenTelemetry exporter.
type TracingConfig struct {
	Exporter    string  `yaml:"exporter" json:"exporter"`
	Endpoint    string  `yaml:"endpoint,omitempty" json:"endpoint,omitempty"`
	Insecure    bool    `yaml:"insecure" json:"insecure"`
	SampleRate  float64 `yaml:"sample_rate" json:"sample_rate"`
	ServiceName string  `yaml:"service_name,omitempty" json:"service_name,omitempty"`
}

// Default returns the configuration used when a file leaves a field out.
func Default() *Config {
	return &Config{
		TransferFormat: protocol.Binary.String(),
		LogLevel:       "info",
		LogFormat:      "text",
		Reconnect:      ReconnectConfig{Mode: ReconnectNone},
		Metrics:        MetricsConfig{Namespace: "rtconn", Listen: ":9090"},
		Tracing:        TracingConfig{Exporter: string(observability.ExporterTypeNoop), SampleRate: 1},
	}
}

// Load reads and validates the YAML file at path on top of Default.
func Load(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open config: %w", err)
	}
	defer f.Close()

	cfg, err := Decode(f)
	if err != nil {
		return nil, fmt.Errorf("load %s: %w", path, err)
	}
	return cfg, nil
}

// Decode reads YAML from r on top of Default and validates the result.
// Unknown keys are rejected.
func Decode(r io.Reader) (*Config, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}

	cfg := Default()
	if len(bytes.TrimSpace(data)) > 0 {
		dec := yaml.NewDecoder(bytes.NewReader(data))
		dec.KnownFields(true)
		if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// ApplyEnv overrides fields from the environment. lookup is usually os.LookupEnv.
func (c *Config) ApplyEnv(lookup func(string) (string, bool)) {
	if v, ok := lookup(EnvURL); ok && v != "" {
		c.URL = v
	}
	if v, ok := lookup(EnvAccessToken); ok && v != "" {
		c.AccessToken = v
	}
	if v, ok := lookup(EnvLogLevel); ok && v != "" {
		c.LogLevel = v
	}
}

// Validate checks every field. URL may be empty here; commands require it
// once flags are applied.
func (c *Config) Validate() error {
	if _, err := c.kinds(); err != nil {
		return rterrors.InvalidConfig("transports", err.Error())
	}
	if _, err := protocol.ParseTransferFormat(c.TransferFormat); err != nil {
		return rterrors.InvalidConfig("transfer_format", err.Error())
	}
	if _, err := logging.ParseLevel(c.LogLevel); err != nil {
		return rterrors.InvalidConfig("log_level", err.Error())
	}
	switch strings.ToLower(c.LogFormat) {
	case "", "text", "json":
	default:
		return rterrors.InvalidConfig("log_format", fmt.Sprintf("unknown format %q", c.LogFormat))
	}
	if c.PollTimeout < 0 {
		return rterrors.InvalidConfig("poll_timeout", "must not be negative")
	}
	if err := c.Reconnect.validate(); err != nil {
		return err
	}
	if c.Metrics.Enabled && c.Metrics.Listen == "" {
		return rterrors.InvalidConfig("metrics.listen", "required when metrics are enabled")
	}
	switch observability.ExporterType(c.Tracing.Exporter) {
	case "", observability.ExporterTypeNoop, observability.ExporterTypeOTLPGRPC, observability.ExporterTypeOTLPHTTP:
	default:
		return rterrors.InvalidConfig("tracing.exporter", fmt.Sprintf("unsupported exporter %q", c.Tracing.Exporter))
	}
	if c.Tracing.SampleRate < 0 || c.Tracing.SampleRate > 1 {
		return rterrors.InvalidConfig("tracing.sample_rate", "must be between 0 and 1")
	}
	return nil
}

func (r ReconnectConfig) validate() error {
	switch strings.ToLower(r.Mode) {
	case "", ReconnectNone, ReconnectDefault:
	case ReconnectFixed:
		if len(r.Delays) == 0 {
			return rterrors.InvalidConfig("reconnect.delays", "required for fixed mode")
		}
		for _, d := range r.Delays {
			if d < 0 {
				return rterrors.InvalidConfig("reconnect.delays", "must not be negative")
			}
		}
	case ReconnectExponential, ReconnectBackOff:
		if r.InitialDelay <= 0 {
			return rterrors.InvalidConfig("reconnect.initial_delay", "must be positive")
		}
		if r.MaxDelay != 0 && r.MaxDelay < r.InitialDelay {
			return rterrors.InvalidConfig("reconnect.max_delay", "must not be below initial_delay")
		}
		if r.Factor != 0 && r.Factor < 1 {
			return rterrors.InvalidConfig("reconnect.factor", "must be at least 1")
		}
		if r.Jitter < 0 || r.Jitter > 1 {
			return rterrors.InvalidConfig("reconnect.jitter", "must be between 0 and 1")
		}
	default:
		return rterrors.InvalidConfig("reconnect.mode", fmt.Sprintf("unknown mode %q", r.Mode))
	}
	if r.MaxRetries < 0 {
		return rterrors.InvalidConfig("reconnect.max_retries", "must not be negative")
	}
	return nil
}

func (c *Config) kinds() (transport.Kind, error) {
	if len(c.Transports) == 0 {
		return transport.All, nil
	}
	k, err := transport.ParseKinds(c.Transports)
	if err != nil {
		return transport.None, err
	}
	if k == transport.None {
		return transport.None, errors.New("no transport selected")
	}
	return k, nil
}

// Policy builds the configured reconnect policy. Mode none returns nil.
func (c *Config) Policy() reconnect.Policy {
	r := c.Reconnect
	switch strings.ToLower(r.Mode) {
	case ReconnectDefault:
		return reconnect.Default()
	case ReconnectFixed:
		return reconnect.Fixed(r.Delays...)
	case ReconnectExponential:
		return reconnect.Exponential(reconnect.ExponentialConfig{
			Initial:    r.InitialDelay,
			Max:        r.MaxDelay,
			Factor:     r.Factor,
			MaxRetries: r.MaxRetries,
			MaxElapsed: r.MaxElapsed,
			Jitter:     r.Jitter,
		})
	case ReconnectBackOff:
		b := backoff.NewExponentialBackOff()
		b.InitialInterval = r.InitialDelay
		if r.MaxDelay > 0 {
			b.MaxInterval = r.MaxDelay
		}
		if r.Factor >= 1 {
			b.Multiplier = r.Factor
		}
		b.RandomizationFactor = r.Jitter
		b.MaxElapsedTime = r.MaxElapsed
		var schedule backoff.BackOff = b
		if r.MaxRetries > 0 {
			schedule = backoff.WithMaxRetries(b, uint64(r.MaxRetries))
		}
		return reconnect.FromBackOff(schedule)
	default:
		return nil
	}
}

// Logger builds the configured logger writing to w.
func (c *Config) Logger(w io.Writer) (logging.Logger, error) {
	return logging.NewFromSettings(w, c.LogLevel, c.LogFormat)
}

// TracingProviderConfig maps the tracing section onto the observability package.
func (c *Config) TracingProviderConfig(version string) observability.TracingConfig {
	return observability.TracingConfig{
		ServiceName:    c.Tracing.ServiceName,
		ServiceVersion: version,
		ExporterType:   observability.ExporterType(c.Tracing.Exporter),
		Endpoint:       c.Tracing.Endpoint,
		Insecure:       c.Tracing.Insecure,
		SampleRate:     c.Tracing.SampleRate,
	}
}

// Options translates the file settings into connection options. Logger,
// metrics and tracing are left to the caller, who owns their lifetimes.
func (c *Config) Options() ([]connection.Option, error) {
	if err := c.Validate(); err != nil {
		return nil, err
	}
	kinds, _ := c.kinds()
	format, _ := protocol.ParseTransferFormat(c.TransferFormat)

	opts := []connection.Option{
		connection.WithTransport(transport.ByKind(kinds)),
		connection.WithTransferFormat(format),
		connection.WithSkipNegotiation(c.SkipNegotiation),
		connection.WithLogMessageContent(c.LogMessageContent),
	}
	if c.AccessToken != "" {
		opts = append(opts, connection.WithAccessTokenFunc(negotiate.StaticToken(c.AccessToken)))
	}
	if len(c.Headers) > 0 {
		opts = append(opts, connection.WithHeaders(c.Headers))
	}
	if c.PollTimeout > 0 {
		opts = append(opts, connection.WithPollTimeout(c.PollTimeout))
	}
	if p := c.Policy(); p != nil {
		opts = append(opts, connection.WithReconnectPolicy(p))
	}
	return opts, nil
}
