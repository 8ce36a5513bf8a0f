package core

import (
	"errors"
	"fmt"
)

// ErrNotExist is returned by stores when the requested row is missing.
var ErrNotExist = errors.New("not found")

type ErrorCode string

const (
	ErrBadRequest        ErrorCode = "bad_request"
	ErrInvalidIncidentID ErrorCode = "invalid_incident_id"
	ErrUnauthorized      ErrorCode = "unauthorized"
	ErrForbidden         ErrorCode = "forbidden"
	ErrIncidentNotFound  ErrorCode = "incident_not_found"
	ErrRecordNotFound    ErrorCode = "audit_record_not_found"
	ErrIncidentResolved  ErrorCode = "incident_resolved"
	ErrLedgerUnavailable ErrorCode = "ledger_unavailable"
	ErrInternal          ErrorCode = "internal_error"
)

// HTTPStatus returns the HTTP status code for this error code.
func (e ErrorCode) HTTPStatus() int {
	switch e {
	case ErrBadRequest, ErrInvalidIncidentID:
		return 400
	case ErrUnauthorized:
		return 401
	case ErrForbidden:
		return 403
	case ErrIncidentNotFound, ErrRecordNotFound:
		return 404
	case ErrIncidentResolved:
		return 409
	case ErrLedgerUnavailable:
		return 503
	default:
		return 500
	}
}

type AppError struct {
	Code    ErrorCode `json:"code"`
	Message string    `json:"message"`
}

func (e *AppError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func NewAppError(code ErrorCode, msg string) *AppError {
	return &AppError{Code: code, Message: msg}
}

// AsAppError unwraps err into an AppError, falling back to the given code.
func AsAppError(err error, fallback ErrorCode, msg string) *AppError {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr
	}
	return NewAppError(fallback, msg)
}
