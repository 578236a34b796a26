package shared

import (
	"errors"
	"fmt"
)

// Error codes shared across the revenue, statement and reconciliation contexts
const (
	CodeNotFound             = "NOT_FOUND"
	CodeInvalidInput         = "INVALID_INPUT"
	CodeInvalidState         = "INVALID_STATE"
	CodeInvalidRevenueInput  = "INVALID_REVENUE_INPUT"
	CodeInvalidBusinessModel = "INVALID_BUSINESS_MODEL"
	CodeAlreadyLocked        = "ALREADY_LOCKED"
	CodeNotReconciled        = "NOT_RECONCILED"
)

// DomainError represents a domain-level error
type DomainError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Error implements the error interface
func (e *DomainError) Error() string {
	return e.Message
}

// Is reports whether target is a DomainError with the same code, so that
// errors.Is(err, ErrAlreadyLocked) matches any message variant.
func (e *DomainError) Is(target error) bool {
	var t *DomainError
	if !errors.As(target, &t) {
		return false
	}
	return t.Code == e.Code
}

// NewDomainError creates a new domain error
func NewDomainError(code, message string) *DomainError {
	return &DomainError{
		Code:    code,
		Message: message,
	}
}

// NewDomainErrorf creates a domain error with a formatted message
func NewDomainErrorf(code, format string, args ...any) *DomainError {
	return NewDomainError(code, fmt.Sprintf(format, args...))
}

// IsCode reports whether err wraps a DomainError carrying code.
func IsCode(err error, code string) bool {
	var de *DomainError
	if errors.As(err, &de) {
		return de.Code == code
	}
	return false
}

// Common domain errors
var (
	ErrNotFound             = NewDomainError(CodeNotFound, "Resource not found")
	ErrInvalidInput         = NewDomainError(CodeInvalidInput, "Invalid input provided")
	ErrInvalidState         = NewDomainError(CodeInvalidState, "Operation not allowed in current state")
	ErrInvalidRevenueInput  = NewDomainError(CodeInvalidRevenueInput, "Invalid reservation revenue input")
	ErrInvalidBusinessModel = NewDomainError(CodeInvalidBusinessModel, "Invalid listing business model")
	ErrAlreadyLocked        = NewDomainError(CodeAlreadyLocked, "Statement is already locked")
	ErrNotReconciled        = NewDomainError(CodeNotReconciled, "Statement payouts do not reconcile with the selected transactions")
)
