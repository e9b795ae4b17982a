package domain

import (
	"errors"
	"fmt"
)

// DomainError represents a business logic error
type DomainError struct {
	Code    string
	Message string
	Err     error
}

func (e *DomainError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

// Unwrap returns the underlying error for errors.Is/As support
func (e *DomainError) Unwrap() error {
	return e.Err
}

const (
	ErrCodeValidation           = "VALIDATION_ERROR"
	ErrCodeNotFound             = "NOT_FOUND"
	ErrCodeAuthorization        = "AUTHORIZATION_ERROR"
	ErrCodeInvalidAmount        = "INVALID_AMOUNT"
	ErrCodeAmountMismatch       = "AMOUNT_MISMATCH"
	ErrCodeAlreadyCompleted     = "ALREADY_COMPLETED"
	ErrCodeRefundExceedsBalance = "REFUND_EXCEEDS_BALANCE"
	ErrCodeCapacityExceeded     = "CAPACITY_EXCEEDED"
	ErrCodeInvalidTransition    = "INVALID_TRANSITION"
	ErrCodeInvalidState         = "INVALID_STATE"
	ErrCodeConfiguration        = "CONFIGURATION_ERROR"
)

func NewValidationError(message string) *DomainError {
	return &DomainError{
		Code:    ErrCodeValidation,
		Message: message,
	}
}

func NewNotFoundError(resource, id string) *DomainError {
	return &DomainError{
		Code:    ErrCodeNotFound,
		Message: fmt.Sprintf("%s %s not found", resource, id),
	}
}

func NewAuthorizationError(message string) *DomainError {
	return &DomainError{
		Code:    ErrCodeAuthorization,
		Message: message,
	}
}

func NewInvalidAmountError(amountCents int64) *DomainError {
	return &DomainError{
		Code:    ErrCodeInvalidAmount,
		Message: fmt.Sprintf("invalid amount %d", amountCents),
	}
}

func NewAmountMismatchError(expected, actual int64) *DomainError {
	return &DomainError{
		Code:    ErrCodeAmountMismatch,
		Message: fmt.Sprintf("amount mismatch: expected %d, got %d", expected, actual),
	}
}

func NewAlreadyCompletedError(message string) *DomainError {
	return &DomainError{
		Code:    ErrCodeAlreadyCompleted,
		Message: message,
	}
}

func NewRefundExceedsBalanceError(requested, balance int64) *DomainError {
	return &DomainError{
		Code:    ErrCodeRefundExceedsBalance,
		Message: fmt.Sprintf("refund of %d exceeds refundable balance %d", requested, balance),
	}
}

func NewCapacityExceededError(courseID string) *DomainError {
	return &DomainError{
		Code:    ErrCodeCapacityExceeded,
		Message: fmt.Sprintf("course %s has no seats left", courseID),
	}
}

func NewInvalidTransitionError(entity, from, to string) *DomainError {
	return &DomainError{
		Code:    ErrCodeInvalidTransition,
		Message: fmt.Sprintf("cannot transition %s from %s to %s", entity, from, to),
	}
}

func NewInvalidStateError(entity, current, expected string) *DomainError {
	return &DomainError{
		Code:    ErrCodeInvalidState,
		Message: fmt.Sprintf("invalid state: %s is %s, expected %s", entity, current, expected),
	}
}

func NewConfigurationError(message string) *DomainError {
	return &DomainError{
		Code:    ErrCodeConfiguration,
		Message: message,
	}
}

// IsErrorCode checks if an error is a DomainError with a specific code
func IsErrorCode(err error, code string) bool {
	var domainErr *DomainError
	if errors.As(err, &domainErr) {
		return domainErr.Code == code
	}
	return false
}
