// Package pkg holds the building blocks of the rtconn client.
//
// The sub-packages are layered bottom-up:
//
//   - errors: coded errors with category and severity
//   - logging: structured logger used by every other package
//   - protocol: negotiate wire types and transfer formats
//   - endpoint: base URL resolution and negotiate/connect URL building
//   - httpclient: the HTTP client abstraction used for negotiation
//   - negotiate: a single negotiate round trip
//   - transport: the Transport interface, transport kinds and selection,
//     plus the websocket, sse and longpolling implementations and the
//     registry Environment
//   - reconnect: reconnect policies
//   - observability: Prometheus metrics and OpenTelemetry tracing
//   - connection: the Connection state machine tying it all together
//   - config: YAML and environment configuration producing connection options
//
// Most programs only need the root rtconn package, which re-exports the
// connection API:
//
//	conn, err := rtconn.NewConnection("https://example.com/chat",
//	    rtconn.WithReconnectPolicy(rtconn.DefaultReconnect()),
//	)
//	if err != nil {
//	    return err
//	}
//	conn.OnReceive(func(data []byte) { fmt.Printf("%s\n", data) })
//	if err := conn.Start(ctx); err != nil {
//	    return err
//	}
//	defer conn.Stop(context.Background(), nil)
package pkg
