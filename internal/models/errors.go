package models

import (
	"errors"
	"fmt"

	"github.com/gofiber/fiber/v2"
)

// ErrorResponse is the JSON body of every failed API call.
type ErrorResponse struct {
	Error   string `json:"error"`
	Code    string `json:"code,omitempty"`
	Details string `json:"details,omitempty"`
}

// Error codes carried by AppError.
const (
	CodeNotFound        = "NOT_FOUND"
	CodeValidation      = "VALIDATION_ERROR"
	CodeUnauthorized    = "UNAUTHORIZED"
	CodeForbidden       = "FORBIDDEN"
	CodeConflict        = "CONFLICT"
	CodePolicyViolation = "POLICY_VIOLATION"
	CodeRetryable       = "RETRYABLE"
	CodeInternal        = "INTERNAL_ERROR"
)

// AppError is an error with a stable code that maps to an HTTP status.
type AppError struct {
	Code    string
	Message string
	Err     error
}

func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *AppError) Unwrap() error {
	return e.Err
}

func newError(code, message string) *AppError {
	return &AppError{Code: code, Message: message}
}

func NewNotFoundError(resource string, id interface{}) *AppError {
	return newError(CodeNotFound, fmt.Sprintf("%s with ID %v not found", resource, id))
}

func NewValidationError(message string) *AppError { return newError(CodeValidation, message) }

func NewUnauthorizedError(message string) *AppError { return newError(CodeUnauthorized, message) }

// NewForbiddenError reports a write the caller is not permitted to make.
func NewForbiddenError(message string) *AppError { return newError(CodeForbidden, message) }

func NewConflictError(message string) *AppError { return newError(CodeConflict, message) }

// NewPolicyViolationError is returned when moderation rejects a publish.
func NewPolicyViolationError(message string) *AppError {
	return newError(CodePolicyViolation, message)
}

// NewRetryableError wraps a rejected store write. Nothing was committed, so
// the caller may retry the same operation.
func NewRetryableError(err error) *AppError {
	return &AppError{
		Code:    CodeRetryable,
		Message: "Write was rejected, please retry",
		Err:     err,
	}
}

func NewInternalError(err error) *AppError {
	return &AppError{
		Code:    CodeInternal,
		Message: "Internal server error",
		Err:     err,
	}
}

// ErrorCode returns the AppError code found in err's chain, or "".
func ErrorCode(err error) string {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Code
	}
	return ""
}

// IsCode reports whether err carries the given AppError code.
func IsCode(err error, code string) bool {
	return ErrorCode(err) == code
}

// StatusFor maps an error to the HTTP status used to report it.
func StatusFor(err error) int {
	switch ErrorCode(err) {
	case CodeNotFound:
		return fiber.StatusNotFound
	case CodeValidation:
		return fiber.StatusBadRequest
	case CodeUnauthorized:
		return fiber.StatusUnauthorized
	case CodeForbidden:
		return fiber.StatusForbidden
	case CodeConflict:
		return fiber.StatusConflict
	case CodePolicyViolation:
		return fiber.StatusUnprocessableEntity
	case CodeRetryable:
		return fiber.StatusServiceUnavailable
	default:
		return fiber.StatusInternalServerError
	}
}

// RespondWithError creates a standardized error response
func RespondWithError(c *fiber.Ctx, status int, err error) error {
	var response ErrorResponse

	var appErr *AppError
	if errors.As(err, &appErr) {
		response = ErrorResponse{
			Error: appErr.Message,
			Code:  appErr.Code,
		}
		if appErr.Err != nil && appErr.Code != CodeInternal {
			response.Details = appErr.Err.Error()
		}
	} else {
		response = ErrorResponse{
			Error: err.Error(),
		}
	}

	return c.Status(status).JSON(response)
}
