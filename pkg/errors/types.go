// Package errors provides structured error handling for rtconn.
// It defines the error taxonomy of the connection lifecycle (state, negotiation,
// transport selection) with stable codes, categories and rich context so callers can
// branch on failures with errors.Is / errors.As instead of comparing strings.
package errors

import (
	"encoding/json"
	stderrors "errors"
	"fmt"
	"time"
)

// Category represents the type/category of an error for classification and handling
type Category string

const (
	CategoryState       Category = "state"
	CategoryNegotiation Category = "negotiation"
	CategoryTransport   Category = "transport"
	CategoryValidation  Category = "validation"
	CategoryConfig      Category = "config"
	CategoryInternal    Category = "internal"
)

// Severity indicates how critical an error is
type Severity string

const (
	SeverityInfo     Severity = "info"
	SeverityWarning  Severity = "warning"
	SeverityError    Severity = "error"
	SeverityCritical Severity = "critical"
)

// Context provides additional context about where and when an error occurred
type Context struct {
	ConnectionID string    `json:"connection_id,omitempty"`
	TraceID      string    `json:"trace_id,omitempty"`
	URL          string    `json:"url,omitempty"`
	Transport    string    `json:"transport,omitempty"`
	Component    string    `json:"component,omitempty"`
	Operation    string    `json:"operation,omitempty"`
	Timestamp    time.Time `json:"timestamp"`
}

// Error defines the interface for all rtconn errors
type Error interface {
	error

	// Code returns the stable error code
	Code() int

	// Message returns a human-readable error message
	Message() string

	// Details returns detailed technical description for debugging
	Details() string

	// Data returns structured error data for programmatic handling
	Data() interface{}

	// Category returns the error category for classification
	Category() Category

	// Severity returns the error severity level
	Severity() Severity

	// Context returns the error context information
	Context() *Context

	// WithContext returns a new error with the provided context
	WithContext(ctx *Context) Error

	// WithDetail returns a new error with additional detail
	WithDetail(detail string) Error

	// WithData returns a new error with structured data
	WithData(data interface{}) Error

	// Unwrap returns the underlying error for error chain traversal
	Unwrap() error

	// ToJSON returns the error as a JSON-serializable map
	ToJSON() map[string]interface{}
}

// baseError implements the Error interface
type baseError struct {
	code     int
	message  string
	details  string
	data     interface{}
	category Category
	severity Severity
	context  *Context
	cause    error
}

// Error implements the error interface
func (e *baseError) Error() string {
	if e.details != "" {
		return fmt.Sprintf("%s: %s", e.message, e.details)
	}
	return e.message
}

// Code returns the error code
func (e *baseError) Code() int {
	return e.code
}

// Message returns the human-readable error message
func (e *baseError) Message() string {
	return e.message
}

// Details returns detailed technical description
func (e *baseError) Details() string {
	return e.details
}

// Data returns structured error data
func (e *baseError) Data() interface{} {
	return e.data
}

// Category returns the error category
func (e *baseError) Category() Category {
	return e.category
}

// Severity returns the error severity
func (e *baseError) Severity() Severity {
	return e.severity
}

// Context returns the error context
func (e *baseError) Context() *Context {
	return e.context
}

// WithContext returns a new error with the provided context
func (e *baseError) WithContext(ctx *Context) Error {
	newErr := *e
	if ctx != nil && ctx.Timestamp.IsZero() {
		c := *ctx
		c.Timestamp = time.Now()
		ctx = &c
	}
	newErr.context = ctx
	return &newErr
}

// WithDetail returns a new error with additional detail
func (e *baseError) WithDetail(detail string) Error {
	newErr := *e
	if newErr.details != "" {
		newErr.details = fmt.Sprintf("%s; %s", newErr.details, detail)
	} else {
		newErr.details = detail
	}
	return &newErr
}

// WithData returns a new error with structured data
func (e *baseError) WithData(data interface{}) Error {
	newErr := *e
	newErr.data = data
	return &newErr
}

// Unwrap returns the underlying error
func (e *baseError) Unwrap() error {
	return e.cause
}

// Is reports whether target carries the same code. It lets the package-level
// sentinels (ErrInvalidState, ErrStoppedWhileConnecting, ...) match any error
// built for that code, whatever its message or context.
func (e *baseError) Is(target error) bool {
	t, ok := target.(*baseError)
	if !ok {
		return false
	}
	return t.code == e.code
}

// ToJSON returns the error as a JSON-serializable map
func (e *baseError) ToJSON() map[string]interface{} {
	result := map[string]interface{}{
		"code":     e.code,
		"name":     GetErrorCodeName(e.code),
		"message":  e.message,
		"category": string(e.category),
		"severity": string(e.severity),
	}

	if e.details != "" {
		result["details"] = e.details
	}

	if e.data != nil {
		result["data"] = e.data
	}

	if e.context != nil {
		result["context"] = e.context
	}

	if e.cause != nil {
		result["cause"] = e.cause.Error()
	}

	return result
}

// MarshalJSON implements json.Marshaler for baseError
func (e *baseError) MarshalJSON() ([]byte, error) {
	return json.Marshal(e.ToJSON())
}

// NewError creates a new Error with the specified parameters
func NewError(code int, message string, category Category, severity Severity) Error {
	return &baseError{
		code:     code,
		message:  message,
		category: category,
		severity: severity,
		context: &Context{
			Timestamp: time.Now(),
		},
	}
}

// NewErrorf creates a new Error with formatted message
func NewErrorf(code int, category Category, severity Severity, format string, args ...interface{}) Error {
	return NewError(code, fmt.Sprintf(format, args...), category, severity)
}

// WrapError wraps an existing error as an Error
func WrapError(err error, code int, message string, category Category, severity Severity) Error {
	return &baseError{
		code:     code,
		message:  message,
		category: category,
		severity: severity,
		cause:    err,
		context: &Context{
			Timestamp: time.Now(),
		},
	}
}

// WrapErrorf wraps an existing error as an Error with formatted message
func WrapErrorf(err error, code int, category Category, severity Severity, format string, args ...interface{}) Error {
	return WrapError(err, code, fmt.Sprintf(format, args...), category, severity)
}

// AsError extracts the first Error in err's chain
func AsError(err error) (Error, bool) {
	if err == nil {
		return nil, false
	}

	var e Error
	if stderrors.As(err, &e) {
		return e, true
	}

	return nil, false
}

// IsCategory checks if an error is of a specific category
func IsCategory(err error, category Category) bool {
	if e, ok := AsError(err); ok {
		return e.Category() == category
	}
	return false
}

// IsCode checks if an error has a specific error code
func IsCode(err error, code int) bool {
	if e, ok := AsError(err); ok {
		return e.Code() == code
	}
	return false
}
