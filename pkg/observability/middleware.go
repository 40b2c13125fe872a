package observability

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/ajitpratap0/rtconn-go/pkg/protocol"
	"github.com/ajitpratap0/rtconn-go/pkg/transport"
)

// InstrumentTransport wraps t so that connects are traced and payloads are
// counted. kind labels the spans and metrics.
func InstrumentTransport(t transport.Transport, kind string, metrics Metrics, tracer trace.Tracer) transport.Transport {
	if metrics == nil {
		metrics = NoopMetrics{}
	}
	if tracer == nil {
		tracer = Tracer(nil)
	}
	return &instrumentedTransport{next: t, kind: kind, metrics: metrics, tracer: tracer}
}

type instrumentedTransport struct {
	next    transport.Transport
	kind    string
	metrics Metrics
	tracer  trace.Tracer
}

func (it *instrumentedTransport) Connect(ctx context.Context, url string, format protocol.TransferFormat) error {
	ctx, span := it.tracer.Start(ctx, SpanTransportConnect, trace.WithAttributes(
		AttrTransport.String(it.kind),
		AttrFormat.String(format.String()),
		AttrURL.String(transport.RedactURL(url)),
	))
	start := time.Now()
	err := it.next.Connect(ctx, url, format)

	outcome := OutcomeSuccess
	if err != nil {
		outcome = OutcomeFailure
	}
	it.metrics.TransportAttempt(it.kind, outcome, time.Since(start))
	span.SetAttributes(attribute.String("rtconn.outcome", outcome))
	EndSpan(span, err)
	return err
}

func (it *instrumentedTransport) Send(ctx context.Context, data []byte) error {
	err := it.next.Send(ctx, data)
	if err == nil {
		it.metrics.MessageSent(len(data))
	}
	return err
}

func (it *instrumentedTransport) Stop(ctx context.Context) error {
	return it.next.Stop(ctx)
}

func (it *instrumentedTransport) SetReceiveHandler(handler transport.ReceiveHandler) {
	if handler == nil {
		it.next.SetReceiveHandler(nil)
		return
	}
	it.next.SetReceiveHandler(func(data []byte) {
		it.metrics.MessageReceived(len(data))
		handler(data)
	})
}

func (it *instrumentedTransport) SetCloseHandler(handler transport.CloseHandler) {
	it.next.SetCloseHandler(handler)
}

// InherentKeepAlive forwards to the wrapped transport.
func (it *instrumentedTransport) InherentKeepAlive() bool {
	ka, ok := it.next.(transport.KeepAliver)
	return ok && ka.InherentKeepAlive()
}

// Unwrap returns the wrapped transport.
func (it *instrumentedTransport) Unwrap() transport.Transport {
	return it.next
}
