package shipper

import (
	"errors"
	"fmt"
	"net/http"
)

// ErrorKind classifies carrier failures.
type ErrorKind int

const (
	// KindConfig: credentials absent or structurally invalid. Nothing was sent.
	KindConfig ErrorKind = iota + 1
	// KindTransport: network failure or non-2xx HTTP status.
	KindTransport
	// KindProtocol: the response could not be decoded into the expected shape.
	KindProtocol
	// KindRejected: the carrier answered with an application-level failure.
	KindRejected
)

// String returns the kind label used in logs and metrics.
func (k ErrorKind) String() string {
	switch k {
	case KindConfig:
		return "config"
	case KindTransport:
		return "transport"
	case KindProtocol:
		return "protocol"
	case KindRejected:
		return "rejected"
	}
	return "unknown"
}

func (k ErrorKind) sentinel() error {
	switch k {
	case KindConfig:
		return ErrCarrierConfig
	case KindTransport:
		return ErrCarrierTransport
	case KindProtocol:
		return ErrCarrierProtocol
	case KindRejected:
		return ErrCarrierRejected
	}
	return nil
}

// ShipperError represents an error from a shipping carrier.
type ShipperError struct {
	Carrier    Carrier
	Kind       ErrorKind
	Code       string
	Message    string
	StatusCode int      // HTTP status, transport errors only
	Body       string   // raw response body kept for diagnostics
	Details    []string // carrier messages, verbatim
	Cause      error
}

// Error implements the error interface.
func (e *ShipperError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s %s error (%s): %s: %v", e.Carrier, e.Kind, e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s %s error (%s): %s", e.Carrier, e.Kind, e.Code, e.Message)
}

// Unwrap returns the underlying cause.
func (e *ShipperError) Unwrap() error {
	return e.Cause
}

// Is matches another ShipperError with the same code, or the sentinel of
// the error's kind.
func (e *ShipperError) Is(target error) bool {
	if t, ok := target.(*ShipperError); ok {
		return e.Code == t.Code
	}
	return target != nil && target == e.Kind.sentinel()
}

func newError(kind ErrorKind, carrier Carrier, code, message string) *ShipperError {
	return &ShipperError{
		Carrier: carrier,
		Kind:    kind,
		Code:    code,
		Message: message,
	}
}

// NewConfigError creates a configuration error.
func NewConfigError(carrier Carrier, code, message string) *ShipperError {
	return newError(KindConfig, carrier, code, message)
}

// NewTransportError creates a transport error for a non-2xx response.
func NewTransportError(carrier Carrier, statusCode int, body []byte) *ShipperError {
	return newError(KindTransport, carrier, fmt.Sprintf("HTTP_%d", statusCode), http.StatusText(statusCode)).
		WithStatusCode(statusCode).
		WithBody(body)
}

// NewNetworkError creates a transport error for a request that never got a response.
func NewNetworkError(carrier Carrier, err error) *ShipperError {
	return newError(KindTransport, carrier, "NETWORK", "request failed").WithCause(err)
}

// NewProtocolError creates a protocol error.
func NewProtocolError(carrier Carrier, code, message string) *ShipperError {
	return newError(KindProtocol, carrier, code, message)
}

// NewRejectedError creates an application-level carrier error.
func NewRejectedError(carrier Carrier, code, message string) *ShipperError {
	return newError(KindRejected, carrier, code, message)
}

// WithCause adds a cause to the error.
func (e *ShipperError) WithCause(err error) *ShipperError {
	e.Cause = err
	return e
}

// WithStatusCode adds an HTTP status code to the error.
func (e *ShipperError) WithStatusCode(code int) *ShipperError {
	e.StatusCode = code
	return e
}

// WithBody keeps the raw response body.
func (e *ShipperError) WithBody(body []byte) *ShipperError {
	e.Body = string(body)
	return e
}

// WithDetails attaches the carrier's own messages.
func (e *ShipperError) WithDetails(details ...string) *ShipperError {
	e.Details = append(e.Details, details...)
	return e
}

// Sentinel errors, one per error kind.
var (
	ErrCarrierConfig    = errors.New("carrier configuration error")
	ErrCarrierTransport = errors.New("carrier transport error")
	ErrCarrierProtocol  = errors.New("carrier protocol error")
	ErrCarrierRejected  = errors.New("carrier rejected request")
)

// Sentinel errors for common shipping scenarios.
var (
	// ErrInvalidRequest indicates the request failed validation.
	ErrInvalidRequest = errors.New("invalid request")

	// ErrInvalidAddress indicates the address is invalid or incomplete.
	ErrInvalidAddress = errors.New("invalid address")

	// ErrInvalidPackage indicates the parcel weight is invalid.
	ErrInvalidPackage = errors.New("invalid package")

	// ErrAuthenticationFailed indicates carrier authentication failed.
	ErrAuthenticationFailed = errors.New("authentication failed")

	// ErrCredentialsNotFound indicates no credentials are configured for a carrier.
	ErrCredentialsNotFound = errors.New("credentials not found")

	// ErrCarrierNotFound indicates the requested carrier is not registered.
	ErrCarrierNotFound = errors.New("carrier not found")

	// ErrUnsupportedOperation indicates the carrier does not offer the operation.
	ErrUnsupportedOperation = errors.New("unsupported operation")
)

// KindOf returns the kind of a carrier error, or 0 when err is not one.
func KindOf(err error) ErrorKind {
	var shipperErr *ShipperError
	if errors.As(err, &shipperErr) {
		return shipperErr.Kind
	}
	return 0
}

// IsRetryable reports whether the failure may succeed if the caller tries
// again later. This layer never retries by itself.
func IsRetryable(err error) bool {
	var shipperErr *ShipperError
	if !errors.As(err, &shipperErr) || shipperErr.Kind != KindTransport {
		return false
	}
	switch {
	case shipperErr.StatusCode == 0:
		return true
	case shipperErr.StatusCode == http.StatusTooManyRequests:
		return true
	case shipperErr.StatusCode >= 500:
		return true
	}
	return false
}

// Classify returns err unchanged when it already carries a kind, and as a
// transport error of carrier c otherwise. Adapters call it on whatever their
// API client returned after handling their own error types.
func Classify(c Carrier, err error) error {
	if err == nil || KindOf(err) != 0 {
		return err
	}
	if errors.Is(err, ErrUnsupportedOperation) || errors.Is(err, ErrInvalidRequest) {
		return err
	}
	return NewNetworkError(c, err)
}
