package errors

import "fmt"

// Sentinels for errors.Is. Any error carrying the same code matches.
var (
	ErrInvalidState               = newCoded(CodeInvalidState, "invalid state")
	ErrStoppedWhileConnecting     = newCoded(CodeStoppedWhileConnecting, "stopped while connecting")
	ErrNegotiationFailed          = newCoded(CodeNegotiationFailed, "negotiation failed")
	ErrUnexpectedStatus           = newCoded(CodeUnexpectedStatus, "unexpected status")
	ErrMalformedResponse          = newCoded(CodeMalformedResponse, "malformed response")
	ErrServerReported             = newCoded(CodeServerReported, "server reported error")
	ErrLegacyServer               = newCoded(CodeLegacyServer, "legacy server")
	ErrRedirectLimitExceeded      = newCoded(CodeRedirectLimitExceeded, "redirect limit exceeded")
	ErrUnresolvableURL            = newCoded(CodeUnresolvableURL, "unresolvable url")
	ErrNegotiationSkipUnsupported = newCoded(CodeNegotiationSkipUnsupported, "negotiation skip unsupported")
	ErrTransportUnavailable       = newCoded(CodeTransportUnavailable, "transport unavailable")
	ErrTransportRejected          = newCoded(CodeTransportRejected, "transport rejected")
	ErrTransportFailed            = newCoded(CodeTransportFailed, "transport failed")
	ErrAggregateFallback          = newCoded(CodeAggregateFallback, "aggregate fallback")
	ErrNoCommonTransports         = newCoded(CodeNoCommonTransports, "no common transports")
	ErrTransportClosed            = newCoded(CodeTransportClosed, "transport closed")
	ErrInvalidArgument            = newCoded(CodeInvalidArgument, "invalid argument")
	ErrInvalidConfig              = newCoded(CodeInvalidConfig, "invalid config")
)

// StateErrorData contains structured data for state errors
type StateErrorData struct {
	Operation string `json:"operation"`
	State     string `json:"state"`
	Required  string `json:"required"`
}

// InvalidState is returned synchronously when an operation is called from a
// state that forbids it. No network call has been made.
func InvalidState(operation, state, required string) Error {
	var msg string
	switch operation {
	case "start":
		msg = fmt.Sprintf("Cannot start a connection that is not in the '%s' state.", required)
	case "send":
		msg = fmt.Sprintf("Cannot send data if the connection is not in the '%s' state.", required)
	default:
		msg = fmt.Sprintf("Cannot %s while the connection is in the '%s' state.", operation, state)
	}
	return newCoded(CodeInvalidState, msg).WithData(&StateErrorData{
		Operation: operation,
		State:     state,
		Required:  required,
	})
}

// StoppedWhileConnecting is returned by a start attempt that observed an explicit stop.
func StoppedWhileConnecting() Error {
	return newCoded(CodeStoppedWhileConnecting, "The connection was stopped while connecting.")
}
