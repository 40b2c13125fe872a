package errors

// Connection state errors (1000-1099)
const (
	CodeInvalidState           int = 1000 // Operation not permitted in the current connection state
	CodeStoppedWhileConnecting int = 1001 // Stop was observed while a start attempt was in flight
)

// Negotiation errors (1100-1199)
const (
	CodeNegotiationFailed          int = 1100 // Negotiate round trip failed at the transport level
	CodeUnexpectedStatus           int = 1101 // Negotiate returned a non-200 status
	CodeMalformedResponse          int = 1102 // Negotiate body could not be decoded
	CodeServerReported             int = 1103 // Negotiate response carried an error message
	CodeLegacyServer               int = 1104 // Server speaks the legacy protocol
	CodeRedirectLimitExceeded      int = 1105 // Too many negotiate redirects
	CodeUnresolvableURL            int = 1106 // Relative URL without a document URL to resolve against
	CodeNegotiationSkipUnsupported int = 1107 // Negotiation skipped with a transport other than WebSockets
)

// Transport errors (1200-1299)
const (
	CodeTransportUnavailable int = 1200 // Transport kind not supported by the environment
	CodeTransportRejected    int = 1201 // Transport filtered out by format or client restriction
	CodeTransportFailed      int = 1202 // Transport failed to connect
	CodeAggregateFallback    int = 1203 // Every offered transport was skipped or failed
	CodeNoCommonTransports   int = 1204 // Client and server share no transport
	CodeTransportClosed      int = 1205 // Operation on a transport that is not open
)

// Validation and configuration errors (1300-1399)
const (
	CodeInvalidArgument int = 1300 // Caller passed an invalid argument
	CodeInvalidConfig   int = 1301 // Configuration is invalid
)

// ErrorCodeInfo provides human-readable information about error codes
type ErrorCodeInfo struct {
	Code        int
	Name        string
	Description string
	Category    Category
	Severity    Severity
}

// errorCodeRegistry maps error codes to their information
var errorCodeRegistry = map[int]ErrorCodeInfo{
	CodeInvalidState:           {CodeInvalidState, "InvalidState", "Operation not permitted in the current state", CategoryState, SeverityError},
	CodeStoppedWhileConnecting: {CodeStoppedWhileConnecting, "StoppedWhileConnecting", "Connection stopped while connecting", CategoryState, SeverityWarning},

	CodeNegotiationFailed:          {CodeNegotiationFailed, "NegotiationFailed", "Negotiation request failed", CategoryNegotiation, SeverityError},
	CodeUnexpectedStatus:           {CodeUnexpectedStatus, "UnexpectedStatus", "Unexpected negotiate status code", CategoryNegotiation, SeverityError},
	CodeMalformedResponse:          {CodeMalformedResponse, "MalformedResponse", "Malformed negotiate response", CategoryNegotiation, SeverityError},
	CodeServerReported:             {CodeServerReported, "ServerReported", "Server reported a negotiation error", CategoryNegotiation, SeverityError},
	CodeLegacyServer:               {CodeLegacyServer, "LegacyServer", "Legacy server detected", CategoryNegotiation, SeverityCritical},
	CodeRedirectLimitExceeded:      {CodeRedirectLimitExceeded, "RedirectLimitExceeded", "Negotiate redirect limit exceeded", CategoryNegotiation, SeverityError},
	CodeUnresolvableURL:            {CodeUnresolvableURL, "UnresolvableURL", "URL cannot be resolved", CategoryValidation, SeverityError},
	CodeNegotiationSkipUnsupported: {CodeNegotiationSkipUnsupported, "NegotiationSkipUnsupported", "Negotiation can only be skipped for WebSockets", CategoryConfig, SeverityError},

	CodeTransportUnavailable: {CodeTransportUnavailable, "TransportUnavailable", "Transport not supported by the environment", CategoryTransport, SeverityWarning},
	CodeTransportRejected:    {CodeTransportRejected, "TransportRejected", "Transport rejected by the client", CategoryTransport, SeverityInfo},
	CodeTransportFailed:      {CodeTransportFailed, "TransportFailed", "Transport failed to connect", CategoryTransport, SeverityError},
	CodeAggregateFallback:    {CodeAggregateFallback, "AggregateFallback", "No available transport could connect", CategoryTransport, SeverityCritical},
	CodeNoCommonTransports:   {CodeNoCommonTransports, "NoCommonTransports", "No transport in common with the server", CategoryTransport, SeverityCritical},
	CodeTransportClosed:      {CodeTransportClosed, "TransportClosed", "Transport is closed", CategoryTransport, SeverityError},

	CodeInvalidArgument: {CodeInvalidArgument, "InvalidArgument", "Invalid argument", CategoryValidation, SeverityError},
	CodeInvalidConfig:   {CodeInvalidConfig, "InvalidConfig", "Invalid configuration", CategoryConfig, SeverityError},
}

// GetErrorCodeInfo returns information about an error code
func GetErrorCodeInfo(code int) (ErrorCodeInfo, bool) {
	info, exists := errorCodeRegistry[code]
	return info, exists
}

// GetErrorCodeName returns the name of an error code
func GetErrorCodeName(code int) string {
	if info, exists := errorCodeRegistry[code]; exists {
		return info.Name
	}
	return "UnknownError"
}

// GetErrorCodeCategory returns the category of an error code
func GetErrorCodeCategory(code int) Category {
	if info, exists := errorCodeRegistry[code]; exists {
		return info.Category
	}
	return CategoryInternal
}

// GetErrorCodeSeverity returns the severity of an error code
func GetErrorCodeSeverity(code int) Severity {
	if info, exists := errorCodeRegistry[code]; exists {
		return info.Severity
	}
	return SeverityError
}

// newCoded builds an error whose category and severity come from the registry.
func newCoded(code int, message string) Error {
	return NewError(code, message, GetErrorCodeCategory(code), GetErrorCodeSeverity(code))
}

// wrapCoded is newCoded with a cause.
func wrapCoded(err error, code int, message string) Error {
	return WrapError(err, code, message, GetErrorCodeCategory(code), GetErrorCodeSeverity(code))
}
