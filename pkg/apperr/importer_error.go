package apperr

import (
	"errors"
	"fmt"
	"net/http"
)

// Error codes
const (
	// Token lifecycle
	CodeTokenUnavailable = "TOKEN_UNAVAILABLE"
	CodeExchangeFailed   = "EXCHANGE_FAILED"
	CodeRefreshFailed    = "REFRESH_FAILED"
	CodeAuthUnavailable  = "AUTH_UNAVAILABLE"

	// Import pipeline
	CodeMalformedFilename    = "MALFORMED_FILENAME"
	CodeUnresolvedIdentifier = "UNRESOLVED_IDENTIFIER"
	CodePartialFanout        = "PARTIAL_FANOUT"
	CodeImportLocked         = "IMPORT_LOCKED"

	// Generic
	CodeBadRequest      = "BAD_REQUEST"
	CodeUnauthorized    = "UNAUTHORIZED"
	CodeNotFound        = "NOT_FOUND"
	CodeUpstreamFailure = "UPSTREAM_FAILURE"
	CodeInternalError   = "INTERNAL_ERROR"
)

// AppError represents a structured application error
type AppError struct {
	Code    string         `json:"code"`
	Message string         `json:"message"`
	Status  int            `json:"-"`
	Details map[string]any `json:"details,omitempty"`
	Err     error          `json:"-"`
}

func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

func (e *AppError) Unwrap() error {
	return e.Err
}

func (e *AppError) WithDetail(key string, value any) *AppError {
	if e.Details == nil {
		e.Details = make(map[string]any)
	}
	e.Details[key] = value
	return e
}

func (e *AppError) WithError(err error) *AppError {
	e.Err = err
	return e
}

// New creates an AppError with an explicit code, message and status.
func New(code, message string, status int) *AppError {
	return &AppError{Code: code, Message: message, Status: status}
}

// Wrap creates an AppError that wraps an underlying error.
func Wrap(err error, code, message string, status int) *AppError {
	return &AppError{Code: code, Message: message, Status: status, Err: err}
}

// TokenUnavailable signals that no token is stored for the tenant and
// the authorization flow must be run.
func TokenUnavailable(account string) *AppError {
	return &AppError{
		Code:    CodeTokenUnavailable,
		Message: "no stored token, authorization required",
		Status:  http.StatusUnauthorized,
		Details: map[string]any{"account": account},
	}
}

// ExchangeFailed signals that the authorization-code exchange was rejected.
func ExchangeFailed(err error) *AppError {
	return &AppError{
		Code:    CodeExchangeFailed,
		Message: "authorization code exchange failed",
		Status:  http.StatusBadGateway,
		Err:     err,
	}
}

// RefreshFailed signals that the refresh grant was rejected or impossible.
func RefreshFailed(err error) *AppError {
	return &AppError{
		Code:    CodeRefreshFailed,
		Message: "token refresh failed",
		Status:  http.StatusBadGateway,
		Err:     err,
	}
}

// AuthUnavailable signals that a remote call was skipped because no
// usable token could be produced.
func AuthUnavailable(err error) *AppError {
	return &AppError{
		Code:    CodeAuthUnavailable,
		Message: "no usable token for remote call",
		Status:  http.StatusUnauthorized,
		Err:     err,
	}
}

// MalformedFilename signals a filename outside the naming convention.
func MalformedFilename(name, reason string) *AppError {
	return &AppError{
		Code:    CodeMalformedFilename,
		Message: fmt.Sprintf("malformed filename %q: %s", name, reason),
		Status:  http.StatusBadRequest,
		Details: map[string]any{"filename": name},
	}
}

// UnresolvedIdentifier signals that a catalog lookup returned nothing.
func UnresolvedIdentifier(idType, id string) *AppError {
	return &AppError{
		Code:    CodeUnresolvedIdentifier,
		Message: fmt.Sprintf("%s %q resolved to no SKUs", idType, id),
		Status:  http.StatusNotFound,
		Details: map[string]any{"identifier_type": idType, "identifier": id},
	}
}

// ImportLocked signals an overlapping import run for the tenant.
func ImportLocked(account string) *AppError {
	return &AppError{
		Code:    CodeImportLocked,
		Message: "an import run is already in progress",
		Status:  http.StatusConflict,
		Details: map[string]any{"account": account},
	}
}

// UpstreamFailure signals a non-2xx answer from a remote dependency.
func UpstreamFailure(service string, status int, body string) *AppError {
	return &AppError{
		Code:    CodeUpstreamFailure,
		Message: fmt.Sprintf("%s returned status %d", service, status),
		Status:  http.StatusBadGateway,
		Details: map[string]any{"service": service, "upstream_status": status, "body": body},
	}
}

func BadRequest(message string) *AppError {
	return &AppError{Code: CodeBadRequest, Message: message, Status: http.StatusBadRequest}
}

func Unauthorized(message string) *AppError {
	if message == "" {
		message = "unauthorized"
	}
	return &AppError{Code: CodeUnauthorized, Message: message, Status: http.StatusUnauthorized}
}

func NotFound(resource string) *AppError {
	return &AppError{
		Code:    CodeNotFound,
		Message: fmt.Sprintf("%s not found", resource),
		Status:  http.StatusNotFound,
	}
}

func Internal(err error) *AppError {
	return &AppError{
		Code:    CodeInternalError,
		Message: "internal server error",
		Status:  http.StatusInternalServerError,
		Err:     err,
	}
}

// Helper functions

func IsAppError(err error) bool {
	var appErr *AppError
	return errors.As(err, &appErr)
}

func AsAppError(err error) *AppError {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr
	}
	return Internal(err)
}

// IsCode reports whether err is an AppError with the given code.
func IsCode(err error, code string) bool {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Code == code
	}
	return false
}

func GetHTTPStatus(err error) int {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Status
	}
	return http.StatusInternalServerError
}
