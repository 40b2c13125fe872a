// Package transport defines the capability every low-level channel satisfies
// and the values a connection uses to choose one.
//
// # Transport capability
//
// A Transport connects to a URL with a transfer format, sends payloads, stops,
// and reports received payloads and its own closure through handlers:
//
//	t.SetReceiveHandler(func(data []byte) { ... })
//	t.SetCloseHandler(func(err error) { ... })
//	if err := t.Connect(ctx, url, protocol.Binary); err != nil { ... }
//
// The close handler fires at most once. When Stop closes an open transport the
// handler has run by the time Stop returns. A nil error means a clean close.
//
// # Kinds and selection
//
// Kind values are bit flags, so a caller restricts the client to a set of kinds
// with ByKind(WebSockets|LongPolling), or hands over a pre-built transport with
// ByInstance(t), which bypasses the negotiated transport menu entirely.
//
// # Environment
//
// An Environment reports which kinds the host can construct and constructs
// them. The registry subpackage provides the default environment backed by the
// websocket, sse and longpolling subpackages.
package transport
