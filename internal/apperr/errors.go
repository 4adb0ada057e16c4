// Package apperr carries the error codes the HTTP layer reports to clients.
package apperr

import (
	"errors"
	"fmt"
	"net/http"

	goerrors "github.com/go-errors/errors"
)

type Code string

const (
	CodeNoToken          Code = "NO_TOKEN"
	CodeInvalidToken     Code = "INVALID_TOKEN"
	CodeEmailNotVerified Code = "EMAIL_NOT_VERIFIED"
	CodeForbidden        Code = "FORBIDDEN"
	CodeInvalidInput     Code = "INVALID_INPUT"
	CodeNotFound         Code = "NOT_FOUND"
	CodeNoResults        Code = "NO_RESULTS"
	CodeUnavailable      Code = "UNAVAILABLE"
	CodeInternal         Code = "INTERNAL"
)

// Status returns the HTTP status a code is reported with.
func (c Code) Status() int {
	switch c {
	case CodeNoToken, CodeInvalidToken:
		return http.StatusUnauthorized
	case CodeEmailNotVerified, CodeForbidden:
		return http.StatusForbidden
	case CodeInvalidInput:
		return http.StatusBadRequest
	case CodeNotFound, CodeNoResults:
		return http.StatusNotFound
	case CodeUnavailable:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

type Error struct {
	Code    Code
	Message string
	Err     error
	Stack   []byte
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Err
}

func (e *Error) StackTrace() []byte {
	return e.Stack
}

func New(code Code, message string, err error) *Error {
	var stack []byte
	if err != nil {
		if stackErr, ok := err.(*goerrors.Error); ok {
			stack = stackErr.Stack()
		} else {
			stack = goerrors.Wrap(err, 2).Stack()
		}
	} else {
		stack = goerrors.New(message).Stack()
	}

	return &Error{
		Code:    code,
		Message: message,
		Err:     err,
		Stack:   stack,
	}
}

func NoToken(message string) *Error {
	return New(CodeNoToken, message, nil)
}

func InvalidToken(message string, err error) *Error {
	return New(CodeInvalidToken, message, err)
}

func EmailNotVerified(message string) *Error {
	return New(CodeEmailNotVerified, message, nil)
}

func Forbidden(message string) *Error {
	return New(CodeForbidden, message, nil)
}

func InvalidInput(message string) *Error {
	return New(CodeInvalidInput, message, nil)
}

func NotFound(message string, err error) *Error {
	return New(CodeNotFound, message, err)
}

func NoResults(message string) *Error {
	return New(CodeNoResults, message, nil)
}

func Unavailable(message string, err error) *Error {
	return New(CodeUnavailable, message, err)
}

func Internal(message string, err error) *Error {
	return New(CodeInternal, message, err)
}

// As returns the first *Error in err's chain. Anything else is reported as
// an internal error that keeps err as its cause.
func As(err error) *Error {
	if err == nil {
		return nil
	}
	var appErr *Error
	if errors.As(err, &appErr) {
		return appErr
	}
	return Internal("internal error", err)
}

// Is reports whether err carries the given code.
func Is(err error, code Code) bool {
	var appErr *Error
	if errors.As(err, &appErr) {
		return appErr.Code == code
	}
	return false
}
