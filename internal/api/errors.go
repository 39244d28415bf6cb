package api

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/labstack/echo/v4"
	apperrors "signalbot/internal/errors"
)

// AppError is an error rendered to the client with an HTTP status.
type AppError struct {
	Code    string                 `json:"code"`
	Message string                 `json:"message"`
	Field   string                 `json:"field,omitempty"`
	Params  map[string]interface{} `json:"params,omitempty"`
	Status  int                    `json:"-"`
	Err     error                  `json:"-"`
}

func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

// Unwrap returns underlying error.
func (e *AppError) Unwrap() error {
	return e.Err
}

// NewAppError creates a new application error.
func NewAppError(code, field, message string, status int) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
		Field:   field,
		Status:  status,
	}
}

// WithParam sets a single error param.
func (e *AppError) WithParam(key string, value interface{}) *AppError {
	if e.Params == nil {
		e.Params = make(map[string]interface{})
	}
	e.Params[key] = value
	return e
}

// WithError wraps an underlying error.
func (e *AppError) WithError(err error) *AppError {
	e.Err = err
	return e
}

// BadRequestError creates a 400 error.
func BadRequestError(message string) *AppError {
	return NewAppError("ERR_BAD_REQUEST", "", message, http.StatusBadRequest)
}

// ConflictError creates a 409 error.
func ConflictError(message string) *AppError {
	return NewAppError("ERR_CONFLICT", "", message, http.StatusConflict)
}

// InternalError creates a 500 error.
func InternalError(message string) *AppError {
	return NewAppError("ERR_INTERNAL", "", message, http.StatusInternalServerError)
}

// FromError maps an error returned by the bot, echo or a handler onto an
// AppError.
func FromError(err error) *AppError {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr
	}

	var he *echo.HTTPError
	if errors.As(err, &he) {
		return NewAppError(httpErrorCode(he.Code), "", fmt.Sprint(he.Message), he.Code).WithError(err)
	}

	var ve *apperrors.ValidationError
	var llmErr *apperrors.LLMError
	switch {
	case errors.As(err, &ve):
		return NewAppError("ERR_VALIDATION", ve.Field, ve.Message, http.StatusBadRequest).WithError(err)
	case errors.Is(err, apperrors.ErrInputValidation):
		return NewAppError("ERR_VALIDATION", "", err.Error(), http.StatusBadRequest).WithError(err)
	case errors.Is(err, apperrors.ErrBotInactive):
		return NewAppError("ERR_BOT_INACTIVE", "", err.Error(), http.StatusConflict).WithError(err)
	case errors.Is(err, apperrors.ErrLLMUnavailable):
		return NewAppError("ERR_LLM_UNAVAILABLE", "", err.Error(), http.StatusServiceUnavailable).WithError(err)
	case errors.As(err, &llmErr):
		return NewAppError("ERR_LLM", "", "language model request failed", http.StatusBadGateway).
			WithParam("model", llmErr.Model).
			WithError(err)
	default:
		return InternalError("internal server error").WithError(err)
	}
}

func httpErrorCode(status int) string {
	switch status {
	case http.StatusBadRequest:
		return "ERR_BAD_REQUEST"
	case http.StatusNotFound:
		return "ERR_NOT_FOUND"
	case http.StatusMethodNotAllowed:
		return "ERR_METHOD_NOT_ALLOWED"
	case http.StatusRequestEntityTooLarge:
		return "ERR_BODY_TOO_LARGE"
	case http.StatusUnsupportedMediaType:
		return "ERR_UNSUPPORTED_MEDIA_TYPE"
	case http.StatusTooManyRequests:
		return "ERR_RATE_LIMITED"
	default:
		return fmt.Sprintf("ERR_HTTP_%d", status)
	}
}
