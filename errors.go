package sessgate

import (
	"errors"
	"fmt"
)

// Error type identifiers carried by CallError.Type.
const (
	// ErrorTypeTransport means no response was received at all; StatusCode
	// is always 0 for this type.
	ErrorTypeTransport = "Transport"
	// ErrorTypeHTTP means the server responded with a non-success status.
	ErrorTypeHTTP = "HTTP"
	// ErrorTypeSessionExpired means an authentication failure survived the
	// one-shot refresh; the session is gone for good.
	ErrorTypeSessionExpired = "SessionExpired"
	// ErrorTypeTokenUnavailable means the anti-forgery token could not be
	// fetched and the client is configured for strict tokens.
	ErrorTypeTokenUnavailable = "TokenUnavailable"
	// ErrorTypeValidation means the client configuration is invalid.
	ErrorTypeValidation = "Validation"
	// ErrorTypeEncoding means a request body could not be serialized.
	ErrorTypeEncoding = "Encoding"
)

// Sentinel errors for common failure scenarios
var (
	// ErrSessionExpired is matched by errors.Is for terminal auth failures.
	ErrSessionExpired = errors.New("sessgate: session expired")

	// ErrTokenUnavailable is matched by errors.Is when a strict client
	// refuses to dispatch without an anti-forgery token.
	ErrTokenUnavailable = errors.New("sessgate: anti-forgery token unavailable")
)

// CallError is the single error shape the public surface raises, regardless
// of whether the failure was transport-level, HTTP-level, or session-level.
type CallError struct {
	Type       string
	Message    string
	StatusCode int
	Body       []byte
	Method     string
	Path       string
	Cause      error
}

// Error implements error interface.
func (e *CallError) Error() string {
	if e == nil {
		return "<nil>"
	}
	msg := fmt.Sprintf("%s: %s", e.Type, e.Message)
	if e.Method != "" && e.Path != "" {
		msg = fmt.Sprintf("%s (%s %s)", msg, e.Method, e.Path)
	}
	if e.StatusCode > 0 {
		msg = fmt.Sprintf("%s (status %d)", msg, e.StatusCode)
	}
	if e.Cause != nil {
		msg = fmt.Sprintf("%s: %v", msg, e.Cause)
	}
	return msg
}

// Unwrap returns the underlying cause or the matching sentinel.
func (e *CallError) Unwrap() error {
	if e == nil {
		return nil
	}
	switch e.Type {
	case ErrorTypeSessionExpired:
		return ErrSessionExpired
	case ErrorTypeTokenUnavailable:
		return ErrTokenUnavailable
	}
	return e.Cause
}

// Is compares error types for errors.Is.
func (e *CallError) Is(target error) bool {
	if e == nil {
		return false
	}
	if targetErr, ok := target.(*CallError); ok {
		return e.Type == targetErr.Type
	}
	return false
}

// IsSessionExpired reports whether err is a terminal authentication failure.
// Applications route this to their force-logout handler.
func IsSessionExpired(err error) bool {
	return errors.Is(err, ErrSessionExpired)
}

// IsTransportFailure reports whether err means no response was received
// (connection refused, aborted, name resolution failure).
func IsTransportFailure(err error) bool {
	var callErr *CallError
	if errors.As(err, &callErr) {
		return callErr.Type == ErrorTypeTransport
	}
	return false
}
