package apperr

import "fmt"

// AppError is the error type surfaced to HTTP clients. Code is a stable
// machine-readable identifier, Status the HTTP status the handler layer maps
// it to.
type AppError struct {
	Code    string        `json:"code"`
	Status  int           `json:"-"`
	Message string        `json:"message"`
	Details []ErrorDetail `json:"details,omitempty"`
}

type ErrorDetail struct {
	Field   string `json:"field,omitempty"`
	Module  string `json:"module,omitempty"`
	Rule    string `json:"rule,omitempty"`
	Message string `json:"message"`
}

func (e *AppError) Error() string {
	return e.Message
}

type ErrorResponse struct {
	Error *AppError `json:"error"`
}

func New(code string, status int, msg string) *AppError {
	return &AppError{Code: code, Status: status, Message: msg}
}

func Unauthorized(msg string) *AppError {
	return &AppError{Code: "UNAUTHORIZED", Status: 401, Message: msg}
}

func Forbidden(msg string) *AppError {
	return &AppError{Code: "FORBIDDEN", Status: 403, Message: msg}
}

func NotFound(kind, id string) *AppError {
	return &AppError{
		Code:    "NOT_FOUND",
		Status:  404,
		Message: fmt.Sprintf("%s %s not found", kind, id),
	}
}

func Validation(msg string, details ...ErrorDetail) *AppError {
	return &AppError{
		Code:    "VALIDATION",
		Status:  422,
		Message: msg,
		Details: details,
	}
}

// DBError wraps an adapter failure. The core treats these as opaque and
// non-retriable; any retry policy belongs below the store boundary.
func DBError(op string, err error) *AppError {
	return &AppError{
		Code:    "DB_ERROR",
		Status:  500,
		Message: fmt.Sprintf("%s: %v", op, err),
	}
}
