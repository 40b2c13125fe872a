package errors

import (
	stderrors "errors"
	"fmt"
	"strings"
)

// TransportErrorData contains structured data for transport-related errors
type TransportErrorData struct {
	Transport string `json:"transport"`
	Format    string `json:"format,omitempty"`
	Endpoint  string `json:"endpoint,omitempty"`
	Reason    string `json:"reason,omitempty"`
}

// FallbackErrorData lists every reason recorded while walking the transport menu.
type FallbackErrorData struct {
	Reasons []string `json:"reasons"`
}

// TransportUnavailable reports a transport the execution environment cannot provide.
func TransportUnavailable(transport string) Error {
	return newCoded(CodeTransportUnavailable,
		fmt.Sprintf("'%s' is not supported in your environment.", transport),
	).WithData(&TransportErrorData{Transport: transport, Reason: "environment"})
}

// TransportUnknown reports a transport name the client does not recognize.
func TransportUnknown(transport string) Error {
	return newCoded(CodeTransportRejected,
		fmt.Sprintf("'%s' is not supported by this client.", transport),
	).WithData(&TransportErrorData{Transport: transport, Reason: "unknown"})
}

// TransportDisabled reports a transport excluded by the client's selection.
func TransportDisabled(transport string) Error {
	return newCoded(CodeTransportRejected,
		fmt.Sprintf("'%s' is disabled by the client.", transport),
	).WithData(&TransportErrorData{Transport: transport, Reason: "disabled"})
}

// TransportFormatUnsupported reports a transport lacking the requested transfer format.
func TransportFormatUnsupported(transport, format string) Error {
	return newCoded(CodeTransportRejected,
		fmt.Sprintf("'%s' does not support %s.", transport, format),
	).WithData(&TransportErrorData{Transport: transport, Format: format, Reason: "format"})
}

// TransportFailed records a candidate that was constructed but failed to connect.
func TransportFailed(transport string, cause error) Error {
	return wrapCoded(cause, CodeTransportFailed,
		fmt.Sprintf("%s failed: %v", transport, cause),
	).WithData(&TransportErrorData{Transport: transport, Reason: "connect"})
}

// TransportClosed is returned by transports asked to send after they stopped.
func TransportClosed(transport string) Error {
	return newCoded(CodeTransportClosed, fmt.Sprintf("%s transport is not connected", transport)).
		WithData(&TransportErrorData{Transport: transport})
}

// AggregateFallback concatenates every skip and failure reason. The reasons stay
// reachable through errors.Is / errors.As.
func AggregateFallback(reasons []error) Error {
	msgs := make([]string, 0, len(reasons))
	for _, r := range reasons {
		msgs = append(msgs, r.Error())
	}
	return wrapCoded(stderrors.Join(reasons...), CodeAggregateFallback,
		"Unable to connect to the server with any of the available transports. "+strings.Join(msgs, " "),
	).WithData(&FallbackErrorData{Reasons: msgs})
}

// NoCommonTransports is returned when the server offered nothing the client knows.
func NoCommonTransports() Error {
	return newCoded(CodeNoCommonTransports,
		"None of the transports supported by the client are supported by the server.")
}
