// Package rtconn is a client for persistent real-time connections.
//
// A connection negotiates with the server, picks the first transport from the
// server's menu that the client allows and the environment supports, and
// falls back through the rest of the menu when a transport fails to connect.
// Once connected it reports received payloads, connection loss and
// reconnection through subscribable events. This package re-exports the core
// of the sub-packages for convenience.
//
// # Overview
//
// The library consists of several sub-packages:
//
//   - pkg/connection: the connection lifecycle, negotiation loop and transport fallback
//   - pkg/transport: the transport capability plus WebSocket, SSE and long-polling implementations
//   - pkg/reconnect: reconnect policies
//   - pkg/negotiate: a single negotiate round trip
//   - pkg/config: YAML configuration files
//   - pkg/observability: Prometheus metrics and OpenTelemetry tracing
//
// # Connecting
//
//	import (
//	    "context"
//	    "fmt"
//
//	    "github.com/ajitpratap0/rtconn-go"
//	)
//
//	func main() {
//	    conn, err := rtconn.NewConnection("https://example.com/chat",
//	        rtconn.WithTransport(rtconn.ByKind(rtconn.WebSockets|rtconn.LongPolling)),
//	        rtconn.WithTransferFormat(rtconn.Text),
//	        rtconn.WithReconnectPolicy(rtconn.DefaultReconnect()),
//	    )
//	    if err != nil {
//	        // Handle error
//	    }
//
//	    unsubscribe := conn.OnReceive(func(data []byte) {
//	        fmt.Println(string(data))
//	    })
//	    defer unsubscribe()
//
//	    ctx := context.Background()
//	    if err := conn.Start(ctx); err != nil {
//	        // Handle error
//	    }
//	    defer conn.Stop(ctx, nil)
//
//	    _ = conn.Send(ctx, []byte("hello"))
//	}
//
// # Examples
//
// The examples directory holds a chat client driven by a config file. The
// rtconnctl command in cmd/rtconnctl exposes negotiation and connections on
// the command line.
package rtconn
