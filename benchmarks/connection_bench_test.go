package benchmarks

import (
	"context"
	"fmt"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/ajitpratap0/rtconn-go/pkg/connection"
	"github.com/ajitpratap0/rtconn-go/pkg/logging"
	"github.com/ajitpratap0/rtconn-go/pkg/protocol"
)

func newBenchConnection(b *testing.B, endpoint string) *connection.Connection {
	b.Helper()
	conn, err := connection.New(endpoint,
		connection.WithLogger(logging.Nop()),
		connection.WithTransferFormat(protocol.Text),
	)
	require.NoError(b, err)
	return conn
}

// BenchmarkStartStop measures negotiation plus transport setup and teardown.
func BenchmarkStartStop(b *testing.B) {
	endpoint := startHub(b)
	ctx := context.Background()

	b.ResetTimer()
	b.ReportAllocs()
	for i := 0; i < b.N; i++ {
		conn := newBenchConnection(b, endpoint)
		if err := conn.Start(ctx); err != nil {
			b.Fatal(err)
		}
		if err := conn.Stop(ctx, nil); err != nil {
			b.Fatal(err)
		}
	}
}

// BenchmarkRoundTrip measures send-to-receive latency through the hub.
func BenchmarkRoundTrip(b *testing.B) {
	for _, size := range []int{16, 1024, 64 * 1024} {
		b.Run(fmt.Sprintf("%dB", size), func(b *testing.B) {
			endpoint := startHub(b)
			ctx := context.Background()

			conn := newBenchConnection(b, endpoint)
			received := make(chan struct{}, 1)
			conn.OnReceive(func([]byte) { received <- struct{}{} })
			require.NoError(b, conn.Start(ctx))
			defer conn.Stop(ctx, nil)

			payload := make([]byte, size)
			for i := range payload {
				payload[i] = 'a' + byte(i%26)
			}

			b.SetBytes(int64(size))
			b.ResetTimer()
			b.ReportAllocs()
			for i := 0; i < b.N; i++ {
				if err := conn.Send(ctx, payload); err != nil {
					b.Fatal(err)
				}
				<-received
			}
		})
	}
}

// BenchmarkConcurrentSend measures Send throughput from many goroutines on
// one connection.
func BenchmarkConcurrentSend(b *testing.B) {
	endpoint := startHub(b)
	ctx := context.Background()

	conn := newBenchConnection(b, endpoint)
	var received atomic.Int64
	conn.OnReceive(func([]byte) { received.Add(1) })
	require.NoError(b, conn.Start(ctx))
	defer conn.Stop(ctx, nil)

	payload := []byte("concurrent")

	b.ResetTimer()
	b.ReportAllocs()
	b.RunParallel(func(pb *testing.PB) {
		for pb.Next() {
			if err := conn.Send(ctx, payload); err != nil {
				b.Error(err)
				return
			}
		}
	})
	b.StopTimer()
	b.ReportMetric(float64(received.Load())/float64(b.N), "echoes/op")
}
