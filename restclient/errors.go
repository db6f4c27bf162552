package restclient

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// Kind is the closed set of classified failure categories. Callers can
// switch exhaustively over it; no other kinds are ever produced.
type Kind string

const (
	NoConnectivity    Kind = "no_connectivity"
	Timeout           Kind = "timeout"
	BadRequest        Kind = "bad_request"
	Unauthorized      Kind = "unauthorized"
	ServerError       Kind = "server_error"
	MalformedResponse Kind = "malformed_response"
	Unknown           Kind = "unknown"
)

// ErrContract marks programming-contract violations (empty method, malformed
// path, non-positive deadline). These are caller bugs, deliberately kept
// outside the failure taxonomy; detect them with errors.Is.
var ErrContract = errors.New("restclient: contract violation")

// Error is the single classified error type produced by the client. The kind
// discriminates the failure category; status code, body and cause carry
// enough context to render a message without re-inspecting the response.
type Error struct {
	kind       Kind
	message    string
	statusCode int
	body       []byte
	cause      error
}

// Error implements the error interface.
func (e *Error) Error() string {
	msg := fmt.Sprintf("%s: %s", e.kind, e.message)
	if e.statusCode != 0 {
		msg = fmt.Sprintf("%s (status: %d)", msg, e.statusCode)
	}
	if e.cause != nil {
		msg = fmt.Sprintf("%s: %v", msg, e.cause)
	}
	return msg
}

// Kind returns the classified failure category.
func (e *Error) Kind() Kind {
	return e.kind
}

// StatusCode returns the HTTP status that produced this error, or 0 when the
// failure happened below the HTTP layer.
func (e *Error) StatusCode() int {
	return e.statusCode
}

// Body returns the captured response body, if any.
func (e *Error) Body() []byte {
	return e.body
}

// Unwrap returns the underlying cause for errors.Is/As support.
func (e *Error) Unwrap() error {
	return e.cause
}

// NewNoConnectivity creates a connectivity error (DNS failure, connection
// refused or reset).
func NewNoConnectivity(message string, cause error) *Error {
	return &Error{kind: NoConnectivity, message: message, cause: cause}
}

// NewTimeout creates a timeout error. The wrapped cause is always
// context.DeadlineExceeded so errors.Is(err, context.DeadlineExceeded) holds.
func NewTimeout(message string, deadline time.Duration) *Error {
	if deadline > 0 {
		message = fmt.Sprintf("%s (deadline: %v)", message, deadline)
	}
	return &Error{kind: Timeout, message: message, cause: context.DeadlineExceeded}
}

// NewBadRequest creates an error for a request the server rejected as invalid.
func NewBadRequest(statusCode int, body []byte) *Error {
	return &Error{kind: BadRequest, message: "server rejected the request", statusCode: statusCode, body: body}
}

// NewUnauthorized creates an error for a request that failed authentication.
func NewUnauthorized(statusCode int) *Error {
	return &Error{kind: Unauthorized, message: "authentication required", statusCode: statusCode}
}

// NewServerError creates an error for a server-side failure.
func NewServerError(statusCode int, body []byte) *Error {
	return &Error{kind: ServerError, message: "server failed to process the request", statusCode: statusCode, body: body}
}

// NewMalformedResponse creates an error for a success response whose body
// could not be decoded.
func NewMalformedResponse(cause error) *Error {
	return &Error{kind: MalformedResponse, message: "response body could not be decoded", cause: cause}
}

// NewUnknown creates an error for an unrecognized failure.
func NewUnknown(message string, cause error) *Error {
	return &Error{kind: Unknown, message: message, cause: cause}
}

// NewUnknownStatus creates an Unknown error carrying an unclassified status.
func NewUnknownStatus(statusCode int, body []byte) *Error {
	return &Error{kind: Unknown, message: "unexpected response status", statusCode: statusCode, body: body}
}

// ParseKind converts a configuration string into a Kind.
func ParseKind(s string) (Kind, error) {
	switch Kind(s) {
	case NoConnectivity, Timeout, BadRequest, Unauthorized, ServerError, MalformedResponse, Unknown:
		return Kind(s), nil
	default:
		return "", fmt.Errorf("unknown failure kind %q", s)
	}
}

// KindOf returns the classified kind of err, or the empty string when err is
// nil or carries no classification.
func KindOf(err error) Kind {
	var clientErr *Error
	if errors.As(err, &clientErr) {
		return clientErr.Kind()
	}
	return ""
}

// IsKind reports whether err is classified with the given kind.
func IsKind(err error, kind Kind) bool {
	return KindOf(err) == kind
}

// IsStatus reports whether err is a classified error carrying the given
// HTTP status code.
func IsStatus(err error, statusCode int) bool {
	var clientErr *Error
	if errors.As(err, &clientErr) {
		return clientErr.StatusCode() == statusCode
	}
	return false
}

// IsCanceled reports whether err resulted from caller cancellation.
func IsCanceled(err error) bool {
	return errors.Is(err, context.Canceled)
}

// IsSuccessStatus checks if a status code represents success (2xx)
func IsSuccessStatus(statusCode int) bool {
	return statusCode >= 200 && statusCode < 300
}
