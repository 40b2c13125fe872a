package errors

import "fmt"

// MaxRedirects bounds negotiate redirect following.
const MaxRedirects = 100

// NegotiationErrorData contains structured data for negotiation errors
type NegotiationErrorData struct {
	URL        string `json:"url,omitempty"`
	StatusCode int    `json:"status_code,omitempty"`
	Redirects  int    `json:"redirects,omitempty"`
}

// NegotiationFailed wraps a transport-level failure of the negotiate round trip.
func NegotiationFailed(url string, cause error) Error {
	msg := "Failed to complete negotiation with the server"
	if cause != nil {
		msg = fmt.Sprintf("%s: %s", msg, cause.Error())
	}
	return wrapCoded(cause, CodeNegotiationFailed, msg).WithData(&NegotiationErrorData{URL: url})
}

// UnexpectedStatus is returned when negotiate answers with anything but 200.
func UnexpectedStatus(url string, statusCode int) Error {
	return newCoded(CodeUnexpectedStatus,
		fmt.Sprintf("Unexpected status code returned from negotiate '%d'", statusCode),
	).WithData(&NegotiationErrorData{URL: url, StatusCode: statusCode})
}

// MalformedResponse is returned when the negotiate body is not a valid response object.
func MalformedResponse(url string, cause error) Error {
	e := wrapCoded(cause, CodeMalformedResponse, "Malformed negotiate response")
	if cause != nil {
		e = e.WithDetail(cause.Error())
	}
	return e.WithData(&NegotiationErrorData{URL: url})
}

// ServerReported carries the server's error message verbatim.
func ServerReported(message string) Error {
	return newCoded(CodeServerReported, message)
}

// LegacyServer is returned when the negotiate response exposes the legacy protocol marker.
func LegacyServer() Error {
	return newCoded(CodeLegacyServer,
		"Detected a connection attempt to a legacy server. This client only supports servers "+
			"speaking the current negotiation protocol.")
}

// RedirectLimitExceeded is returned after MaxRedirects redirects without a final answer.
func RedirectLimitExceeded(url string) Error {
	return newCoded(CodeRedirectLimitExceeded, "Negotiate redirection limit exceeded.").
		WithData(&NegotiationErrorData{URL: url, Redirects: MaxRedirects})
}

// UnresolvableURL names an address that is neither absolute nor resolvable.
func UnresolvableURL(url string) Error {
	return newCoded(CodeUnresolvableURL, fmt.Sprintf("Cannot resolve '%s'.", url))
}

// NegotiationSkipUnsupported is returned when negotiation is skipped without
// selecting the WebSockets transport alone.
func NegotiationSkipUnsupported() Error {
	return newCoded(CodeNegotiationSkipUnsupported,
		"Negotiation can only be skipped when using the WebSocket transport directly.")
}
