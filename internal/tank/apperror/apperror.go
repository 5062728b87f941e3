package apperror

import (
	"errors"
	"fmt"
	"net/http"
)

// Error codes
const (
	CodeValidation  = "VALIDATION_ERROR"
	CodeNotFound    = "RESOURCE_NOT_FOUND"
	CodeParse       = "PARSE_ERROR"
	CodePersistence = "PERSISTENCE_ERROR"
)

// AppError carries a code and the HTTP status it maps to.
type AppError struct {
	Code       string `json:"code"`
	Message    string `json:"message"`
	HTTPStatus int    `json:"-"`
	Err        error  `json:"-"`
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

// Is matches on code so callers can write errors.Is(err, apperror.ErrNotFound).
func (e *AppError) Is(target error) bool {
	t, ok := target.(*AppError)
	if !ok {
		return false
	}
	return t.Code == e.Code
}

// Sentinels for errors.Is checks.
var (
	ErrValidation  = &AppError{Code: CodeValidation}
	ErrNotFound    = &AppError{Code: CodeNotFound}
	ErrParse       = &AppError{Code: CodeParse}
	ErrPersistence = &AppError{Code: CodePersistence}
)

func Validation(format string, args ...any) *AppError {
	return &AppError{Code: CodeValidation, Message: fmt.Sprintf(format, args...), HTTPStatus: http.StatusBadRequest}
}

func NotFound(format string, args ...any) *AppError {
	return &AppError{Code: CodeNotFound, Message: fmt.Sprintf(format, args...), HTTPStatus: http.StatusNotFound}
}

func Parse(err error, format string, args ...any) *AppError {
	return &AppError{Code: CodeParse, Message: fmt.Sprintf(format, args...), HTTPStatus: http.StatusBadRequest, Err: err}
}

func Persistence(err error, format string, args ...any) *AppError {
	return &AppError{Code: CodePersistence, Message: fmt.Sprintf(format, args...), HTTPStatus: http.StatusInternalServerError, Err: err}
}

// From extracts an AppError, treating anything else as a persistence failure.
func From(err error) *AppError {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr
	}
	return Persistence(err, "internal error")
}
