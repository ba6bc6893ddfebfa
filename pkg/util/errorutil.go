package util

import (
	"errors"
	"fmt"
	"net/http"
)

// Rejection codes surfaced to callers of the command surface.
const (
	CodeNotAuthorized   = "NOT_AUTHORIZED"
	CodeDuplicate       = "DUPLICATE"
	CodeNotFound        = "NOT_FOUND"
	CodeInvalidDuration = "INVALID_DURATION"
	CodeRankTooHigh     = "RANK_TOO_HIGH"
	CodeSelfClaimDenied = "SELF_CLAIM_DENIED"
	CodeValidation      = "VALIDATION_FAILED"
	CodeAdapterFailed   = "ADAPTER_FAILED"
	CodeUnauthorized    = "UNAUTHORIZED"
	CodeInternal        = "INTERNAL_ERROR"
)

// DomainError standardizes application errors.
type DomainError struct {
	Code       string
	Message    string
	HTTPStatus int
	Details    map[string]any
	Err        error
}

func (e *DomainError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *DomainError) Unwrap() error {
	return e.Err
}

// NewDomainError constructs a DomainError.
func NewDomainError(code, message string, status int, details map[string]any) *DomainError {
	return &DomainError{Code: code, Message: message, HTTPStatus: status, Details: details}
}

func NewNotAuthorized(reason string) error {
	return NewDomainError(CodeNotAuthorized, reason, http.StatusForbidden, nil)
}

func NewDuplicate(message string, details map[string]any) error {
	return NewDomainError(CodeDuplicate, message, http.StatusConflict, details)
}

func NewNotFound(resource string, details map[string]any) error {
	if details == nil {
		details = map[string]any{}
	}
	return &DomainError{
		Code:       CodeNotFound,
		Message:    fmt.Sprintf("%s not found", resource),
		HTTPStatus: http.StatusNotFound,
		Details:    details,
	}
}

func NewInvalidDuration(spec string) error {
	return NewDomainError(CodeInvalidDuration, fmt.Sprintf("unparsable duration %q", spec), http.StatusBadRequest, map[string]any{"duration": spec})
}

func NewRankTooHigh(message string) error {
	return NewDomainError(CodeRankTooHigh, message, http.StatusForbidden, nil)
}

func NewSelfClaimDenied() error {
	return NewDomainError(CodeSelfClaimDenied, "ticket owners cannot claim their own ticket", http.StatusForbidden, nil)
}

func NewValidationError(message string, details map[string]any) error {
	return NewDomainError(CodeValidation, message, http.StatusBadRequest, details)
}

// NewAdapterFailure wraps a failed primary platform call. Failures of
// best-effort calls are logged at the call site instead of wrapped.
func NewAdapterFailure(operation string, err error) error {
	return &DomainError{
		Code:       CodeAdapterFailed,
		Message:    fmt.Sprintf("platform operation %s failed", operation),
		HTTPStatus: http.StatusBadGateway,
		Details:    map[string]any{"operation": operation},
		Err:        err,
	}
}

func NewUnauthorized(message string) error {
	return NewDomainError(CodeUnauthorized, message, http.StatusUnauthorized, nil)
}

func NewInternalError(err error) error {
	return &DomainError{
		Code:       CodeInternal,
		Message:    "internal server error",
		HTTPStatus: http.StatusInternalServerError,
		Err:        err,
	}
}

// ToDomainError converts generic errors to DomainError.
func ToDomainError(err error) *DomainError {
	if err == nil {
		return nil
	}
	var domainErr *DomainError
	if errors.As(err, &domainErr) {
		return domainErr
	}
	return &DomainError{
		Code:       CodeInternal,
		Message:    "internal server error",
		HTTPStatus: http.StatusInternalServerError,
		Err:        err,
	}
}

// CodeOf returns the rejection code carried by err, or INTERNAL_ERROR
// for unrecognized errors. A nil error has no code.
func CodeOf(err error) string {
	if err == nil {
		return ""
	}
	return ToDomainError(err).Code
}
