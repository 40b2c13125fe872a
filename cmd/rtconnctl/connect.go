package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"sync"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	rtconn "github.com/ajitpratap0/rtconn-go"
	"github.com/ajitpratap0/rtconn-go/pkg/connection"
	"github.com/ajitpratap0/rtconn-go/pkg/logging"
	"github.com/ajitpratap0/rtconn-go/pkg/observability"
)

const stopTimeout = 5 * time.Second

type connectFlags struct {
	metricsListen string
	count         int
}

func newConnectCmd(a *app) *cobra.Command {
	var f connectFlags

	cmd := &cobra.Command{
		Use:   "connect",
		Short: "Connect, print received messages and send lines read from stdin",
		Long: `connect starts a connection and prints every received message on its own
line. Each line read from standard input is sent as one message. The command
runs until interrupted, until the connection closes, or until --count messages
were received.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := a.requireURL(); err != nil {
				return err
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return a.connect(ctx, cmd.OutOrStdout(), cmd.ErrOrStderr(), f)
		},
	}

	cmd.Flags().StringVar(&f.metricsListen, "metrics-listen", "", "serve Prometheus metrics on this address")
	cmd.Flags().IntVarP(&f.count, "count", "n", 0, "exit after receiving this many messages (0 for no limit)")
	return cmd
}

func (a *app) connect(ctx context.Context, stdout, stderr io.Writer, f connectFlags) error {
	opts, err := a.cfg.Options()
	if err != nil {
		return err
	}
	opts = append(opts, connection.WithLogger(a.logger))

	listen := f.metricsListen
	if listen == "" && a.cfg.Metrics.Enabled {
		listen = a.cfg.Metrics.Listen
	}
	if listen != "" {
		metrics, err := observability.NewPrometheusMetrics(observability.MetricsConfig{Namespace: a.cfg.Metrics.Namespace})
		if err != nil {
			return err
		}
		addr, err := metrics.Start(ctx, listen)
		if err != nil {
			return err
		}
		defer shutdown(metrics.Shutdown)
		fmt.Fprintf(stderr, "Serving metrics on http://%s/metrics\n", addr)
		opts = append(opts, connection.WithMetrics(metrics))
	}

	if exp := observability.ExporterType(a.cfg.Tracing.Exporter); exp != "" && exp != observability.ExporterTypeNoop {
		tp, err := observability.NewTracingProvider(a.cfg.TracingProviderConfig(rtconn.Version))
		if err != nil {
			return err
		}
		defer shutdown(tp.Shutdown)
		opts = append(opts, connection.WithTracerProvider(tp.TracerProvider()))
	}

	conn, err := connection.New(a.cfg.URL, opts...)
	if err != nil {
		return err
	}

	out := &lockedWriter{w: stdout}
	done := make(chan struct{})
	var doneOnce sync.Once
	finish := func() { doneOnce.Do(func() { close(done) }) }

	var received atomic.Int64
	conn.OnReceive(func(data []byte) {
		out.Println(string(data))
		if n := received.Add(1); f.count > 0 && n >= int64(f.count) {
			finish()
		}
	})
	closed := make(chan error, 1)
	conn.OnClose(func(err error) {
		closed <- err
	})
	conn.OnReconnecting(func(err error) {
		fmt.Fprintf(stderr, "Connection lost, reconnecting: %v\n", err)
	})
	conn.OnReconnected(func(id string) {
		fmt.Fprintf(stderr, "Reconnected (connection id %s)\n", id)
	})

	if err := conn.Start(ctx); err != nil {
		return err
	}
	fmt.Fprintf(stderr, "Connected to %s (connection id %q)\n", conn.BaseURL(), conn.ConnectionID())

	go a.forward(ctx, conn, a.stdin)

	select {
	case err := <-closed:
		return err
	case <-ctx.Done():
	case <-done:
	}

	stopCtx, cancel := context.WithTimeout(context.Background(), stopTimeout)
	defer cancel()
	if err := conn.Stop(stopCtx, nil); err != nil {
		return err
	}
	return <-closed
}

// forward sends every stdin line until EOF. Send failures are logged; the
// connection may be reconnecting.
func (a *app) forward(ctx context.Context, conn *connection.Connection, in io.Reader) {
	if in == nil {
		return
	}
	scanner := bufio.NewScanner(in)
	for scanner.Scan() {
		if err := conn.Send(ctx, []byte(scanner.Text())); err != nil {
			a.logger.Warn("Failed to send", logging.ErrorField(err))
		}
	}
	if err := scanner.Err(); err != nil {
		a.logger.Warn("Failed to read input", logging.ErrorField(err))
	}
}

func shutdown(fn func(context.Context) error) {
	ctx, cancel := context.WithTimeout(context.Background(), stopTimeout)
	defer cancel()
	_ = fn(ctx)
}

type lockedWriter struct {
	mu sync.Mutex
	w  io.Writer
}

func (l *lockedWriter) Println(s string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	fmt.Fprintln(l.w, s)
}
