package api

import "net/http"

// Code enumerates the API's coded error kinds (spec §6: "Error envelope:
// {error:{code, message, details?}} with coded kinds (VALIDATION_ERROR,
// NOT_FOUND, RATE_LIMITED, INSUFFICIENT_BALANCE, BATCH_TOO_LARGE, ...)").
type Code string

const (
	CodeValidationError      Code = "VALIDATION_ERROR"
	CodeNotFound             Code = "NOT_FOUND"
	CodeRateLimited          Code = "RATE_LIMITED"
	CodeInsufficientBalance  Code = "INSUFFICIENT_BALANCE"
	CodeBatchTooLarge        Code = "BATCH_TOO_LARGE"
	CodeInternal             Code = "INTERNAL_ERROR"
)

// HandlerError is the uniform error type every route handler returns,
// grounded on apiserver/utils.HandlerError's (status code, message)
// shape, extended with the spec's coded-kind taxonomy.
type HandlerError struct {
	HTTPStatus int
	ErrCode    Code
	Message    string
	Details    string
}

func (e *HandlerError) Error() string { return e.Message }

// NewHandlerError constructs a HandlerError.
func NewHandlerError(status int, code Code, message string) *HandlerError {
	return &HandlerError{HTTPStatus: status, ErrCode: code, Message: message}
}

// WithDetails attaches a details string, returning e for chaining.
func (e *HandlerError) WithDetails(details string) *HandlerError {
	e.Details = details
	return e
}

func errValidation(message string) *HandlerError {
	return NewHandlerError(http.StatusUnprocessableEntity, CodeValidationError, message)
}

func errNotFound(message string) *HandlerError {
	return NewHandlerError(http.StatusNotFound, CodeNotFound, message)
}

func errRateLimited(message string) *HandlerError {
	return NewHandlerError(http.StatusTooManyRequests, CodeRateLimited, message)
}

func errInsufficientBalance(message string) *HandlerError {
	return NewHandlerError(http.StatusBadRequest, CodeInsufficientBalance, message)
}

func errInternal(message string) *HandlerError {
	return NewHandlerError(http.StatusInternalServerError, CodeInternal, message)
}

// errorEnvelope is the JSON shape every error response serializes to.
type errorEnvelope struct {
	Error struct {
		Code    Code   `json:"code"`
		Message string `json:"message"`
		Details string `json:"details,omitempty"`
	} `json:"error"`
}

func (e *HandlerError) envelope() errorEnvelope {
	var env errorEnvelope
	env.Error.Code = e.ErrCode
	env.Error.Message = e.Message
	env.Error.Details = e.Details
	return env
}
