package gateway

import (
	"errors"
	"fmt"
)

// ErrorKind classifies provider failures for retry and HTTP mapping.
type ErrorKind string

const (
	KindDeclined       ErrorKind = "declined"
	KindInvalidRequest ErrorKind = "invalid_request"
	KindAPIError       ErrorKind = "api_error"
	KindConnection     ErrorKind = "connection"
	KindAuth           ErrorKind = "auth"
)

// Error is a failure reported by (or while reaching) a payment provider.
type Error struct {
	Kind       ErrorKind
	Code       string
	Message    string
	StatusCode int
}

func (e *Error) Error() string {
	return fmt.Sprintf("gateway error [%s/%s]: %s (status: %d)", e.Kind, e.Code, e.Message, e.StatusCode)
}

// IsRetryable reports whether the caller may safely retry. Connection
// failures and provider 5xx responses are transient; everything else is
// a definitive answer.
func (e *Error) IsRetryable() bool {
	return e.Kind == KindConnection || (e.Kind == KindAPIError && e.StatusCode >= 500)
}

func IsGatewayError(err error) (*Error, bool) {
	var gwErr *Error
	ok := errors.As(err, &gwErr)
	return gwErr, ok
}

// IsRetryable reports whether err is a transient gateway failure.
func IsRetryable(err error) bool {
	if gwErr, ok := IsGatewayError(err); ok {
		return gwErr.IsRetryable()
	}
	return false
}

func newConnectionError(err error) *Error {
	return &Error{
		Kind:    KindConnection,
		Code:    "connection",
		Message: err.Error(),
	}
}
