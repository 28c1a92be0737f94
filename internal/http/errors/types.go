package errors

import (
	"errors"
	"fmt"
	"net/http"
)

// AppError es el error estándar de la capa HTTP. Se serializa como
// {"error": Code, "error_description": Description}.
type AppError struct {
	Code        string `json:"error"`
	Description string `json:"error_description,omitempty"`
	HTTPStatus  int    `json:"-"`
	Err         error  `json:"-"` // causa original, sólo para logs
}

func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Description, e.Err)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Description)
}

func (e *AppError) Unwrap() error {
	return e.Err
}

// New crea un AppError.
func New(status int, code, description string) *AppError {
	return &AppError{Code: code, Description: description, HTTPStatus: status}
}

// FromError convierte cualquier error en AppError. Lo que no es AppError
// termina como server_error conservando la causa.
func FromError(err error) *AppError {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr
	}
	return ErrServerError.WithCause(err)
}

// WithDetail devuelve una COPIA con otra descripción (no muta las variables base).
func (e *AppError) WithDetail(description string) *AppError {
	n := *e
	n.Description = description
	return &n
}

// WithCause devuelve una COPIA con la causa original.
func (e *AppError) WithCause(err error) *AppError {
	n := *e
	n.Err = err
	return &n
}

// =================================================================================
// ERRORES PREDEFINIDOS
// =================================================================================

// 400
var (
	ErrInvalidRequest          = New(http.StatusBadRequest, "invalid_request", "the request is missing a required parameter or is malformed")
	ErrInvalidGrant            = New(http.StatusBadRequest, "invalid_grant", "the provided grant is invalid, expired or already used")
	ErrUnauthorizedClient      = New(http.StatusBadRequest, "unauthorized_client", "the client is not allowed to use this grant")
	ErrUnsupportedGrantType    = New(http.StatusBadRequest, "unsupported_grant_type", "grant_type not supported")
	ErrUnsupportedResponseType = New(http.StatusBadRequest, "unsupported_response_type", "response_type not supported")
	ErrInvalidScope            = New(http.StatusBadRequest, "invalid_scope", "the requested scope is invalid or exceeds what was granted")
	ErrInvalidRedirectURI      = New(http.StatusBadRequest, "invalid_redirect_uri", "redirect_uri is invalid")
	ErrInvalidClientMetadata   = New(http.StatusBadRequest, "invalid_client_metadata", "client metadata is invalid")
)

// 401
var (
	ErrInvalidClient              = New(http.StatusUnauthorized, "invalid_client", "client authentication failed")
	ErrInvalidToken               = New(http.StatusUnauthorized, "invalid_token", "the access token is invalid or expired")
	ErrMissingAuthorizationHeader = New(http.StatusUnauthorized, "missing_authorization_header", "authorization header is required")
	ErrInvalidAuthorizationHeader = New(http.StatusUnauthorized, "invalid_authorization_header", "authorization header must be 'Bearer <token>'")
)

// 403
var (
	ErrInsufficientScope = New(http.StatusForbidden, "insufficient_scope", "the token lacks the required scope")
	ErrForbidden         = New(http.StatusForbidden, "forbidden", "access denied")
)

// 404 / 405
var (
	ErrNotFound         = New(http.StatusNotFound, "not_found", "resource not found")
	ErrMethodNotAllowed = New(http.StatusMethodNotAllowed, "method_not_allowed", "method not allowed")
)

// 429
var ErrRateLimited = New(http.StatusTooManyRequests, "rate_limited", "too many requests")

// 5xx
var (
	ErrServerError        = New(http.StatusInternalServerError, "server_error", "internal server error")
	ErrServiceUnavailable = New(http.StatusServiceUnavailable, "temporarily_unavailable", "service unavailable")
)
