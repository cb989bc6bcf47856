package service

import (
	"errors"
	"net/http"
)

// Code is the machine-readable error code the UI branches on.
type Code string

const (
	CodeUnauthorized         Code = "UNAUTHORIZED"
	CodeForbidden            Code = "FORBIDDEN"
	CodeNotFound             Code = "NOT_FOUND"
	CodeInvalidInput         Code = "INVALID_INPUT"
	CodeInvalidState         Code = "INVALID_STATE"
	CodeAlreadyPaid          Code = "ALREADY_PAID"
	CodeNoConnectAccount     Code = "NO_CONNECT_ACCOUNT"
	CodeAccountNotReady      Code = "ACCOUNT_NOT_READY"
	CodeMissingContributions Code = "MISSING_CONTRIBUTIONS"
	CodeInsufficientBalance  Code = "INSUFFICIENT_BALANCE"
	CodeAlreadyExists        Code = "ALREADY_EXISTS"
	CodeProcessorError       Code = "PROCESSOR_ERROR"
	CodeInternal             Code = "INTERNAL_ERROR"
)

// Error is a service failure with the HTTP status and code the API contract
// promises. Validation and authorization errors are built before any
// external call; processor failures surface as CodeProcessorError with the
// detail kept in logs and audit, not in the response.
type Error struct {
	Code    Code
	Status  int
	Message string

	// Missing carries member names for CodeMissingContributions.
	Missing []string
}

func (e *Error) Error() string {
	return e.Message
}

func errUnauthorized(msg string) *Error {
	return &Error{Code: CodeUnauthorized, Status: http.StatusUnauthorized, Message: msg}
}

func errForbidden(msg string) *Error {
	return &Error{Code: CodeForbidden, Status: http.StatusForbidden, Message: msg}
}

func errNotFound(msg string) *Error {
	return &Error{Code: CodeNotFound, Status: http.StatusNotFound, Message: msg}
}

func errInvalidInput(msg string) *Error {
	return &Error{Code: CodeInvalidInput, Status: http.StatusBadRequest, Message: msg}
}

func errInvalidState(msg string) *Error {
	return &Error{Code: CodeInvalidState, Status: http.StatusBadRequest, Message: msg}
}

func errWithCode(code Code, msg string) *Error {
	return &Error{Code: code, Status: http.StatusBadRequest, Message: msg}
}

func errAlreadyExists(msg string) *Error {
	return &Error{Code: CodeAlreadyExists, Status: http.StatusConflict, Message: msg}
}

func errProcessor(msg string) *Error {
	return &Error{Code: CodeProcessorError, Status: http.StatusBadGateway, Message: msg}
}

func errInternal(msg string) *Error {
	return &Error{Code: CodeInternal, Status: http.StatusInternalServerError, Message: msg}
}

// AsError extracts the service error from err, or wraps unexpected failures
// as an internal error so handlers never leak raw error text.
func AsError(err error) *Error {
	var svcErr *Error
	if errors.As(err, &svcErr) {
		return svcErr
	}
	return errInternal("internal error")
}
