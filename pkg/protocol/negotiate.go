package protocol

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// AvailableTransport is one entry of the server's transport menu.
type AvailableTransport struct {
	// Transport is the kind name, e.g. "WebSockets".
	Transport string `json:"transport"`

	// TransferFormats lists the supported format names, e.g. ["Text", "Binary"].
	TransferFormats []string `json:"transferFormats"`
}

// Formats returns the union of the known formats this entry supports.
// Unknown names are ignored.
func (t AvailableTransport) Formats() TransferFormat {
	var set TransferFormat
	for _, name := range t.TransferFormats {
		if f, err := ParseTransferFormat(name); err == nil {
			set |= f
		}
	}
	return set
}

// NegotiateResponse is the body of a successful negotiate round trip.
type NegotiateResponse struct {
	ConnectionID        string               `json:"connectionId,omitempty"`
	AvailableTransports []AvailableTransport `json:"availableTransports,omitempty"`

	// URL redirects the client to another endpoint.
	URL string `json:"url,omitempty"`

	// AccessToken overrides the caller's token for the redirected endpoint.
	AccessToken string `json:"accessToken,omitempty"`

	// Error is a server-reported failure; when set the start attempt fails with it.
	Error string `json:"error,omitempty"`

	// ProtocolVersion is only sent by legacy servers.
	ProtocolVersion string `json:"ProtocolVersion,omitempty"`
}

// IsRedirect reports whether the response points the client to another endpoint.
func (r *NegotiateResponse) IsRedirect() bool {
	return r.URL != ""
}

// IsLegacy reports whether the response came from a legacy server.
func (r *NegotiateResponse) IsLegacy() bool {
	return r.ProtocolVersion != ""
}

// Clone returns a deep copy.
func (r *NegotiateResponse) Clone() *NegotiateResponse {
	if r == nil {
		return nil
	}
	c := *r
	if r.AvailableTransports != nil {
		c.AvailableTransports = make([]AvailableTransport, len(r.AvailableTransports))
		for i, t := range r.AvailableTransports {
			c.AvailableTransports[i] = AvailableTransport{
				Transport:       t.Transport,
				TransferFormats: append([]string(nil), t.TransferFormats...),
			}
		}
	}
	return &c
}

// DecodeNegotiateResponse parses a negotiate body. The body must be a JSON
// object; the legacy ProtocolVersion marker is accepted with any JSON type but
// only under that exact key.
func DecodeNegotiateResponse(body []byte) (*NegotiateResponse, error) {
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) == 0 || trimmed[0] != '{' {
		return nil, fmt.Errorf("negotiate response is not a JSON object")
	}

	// The raw field absorbs any spelling of the key so a non-string value does
	// not fail the decode; the marker itself is read case-sensitively below.
	var wire struct {
		NegotiateResponse
		ProtocolVersion json.RawMessage `json:"ProtocolVersion,omitempty"`
	}
	if err := json.Unmarshal(trimmed, &wire); err != nil {
		return nil, fmt.Errorf("failed to decode negotiate response: %w", err)
	}
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(trimmed, &fields); err != nil {
		return nil, fmt.Errorf("failed to decode negotiate response: %w", err)
	}

	resp := wire.NegotiateResponse
	resp.ProtocolVersion = legacyMarker(fields["ProtocolVersion"])
	return &resp, nil
}

// legacyMarker renders a present ProtocolVersion value as a string. Empty
// strings, zero, false and null count as absent.
func legacyMarker(raw json.RawMessage) string {
	marker := string(bytes.TrimSpace(raw))
	switch marker {
	case "", "null", "false", "0", `""`:
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	return marker
}
