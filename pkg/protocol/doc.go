// Package protocol defines the wire types of the connection handshake.
//
// A client starts every connection with a negotiate round trip: an empty POST to
// <base>/negotiate[?query]. The server answers with a JSON object describing the
// connection identity and the transports it offers, or redirects the client to
// another endpoint, or reports an error:
//
//	{
//	  "connectionId": "abc",
//	  "availableTransports": [
//	    {"transport": "WebSockets", "transferFormats": ["Text", "Binary"]},
//	    {"transport": "LongPolling", "transferFormats": ["Text", "Binary"]}
//	  ]
//	}
//
//	{"url": "https://other/chat", "accessToken": "token"}
//
//	{"error": "Negotiation rejected"}
//
// Servers speaking the legacy protocol answer with a ProtocolVersion field, which
// DecodeNegotiateResponse surfaces so the caller can refuse the server.
//
// The transport names and transfer format names are kept as strings here. The
// transport package maps them to kinds the client knows.
package protocol
