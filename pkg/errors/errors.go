package errors

import "fmt"

type AppError struct {
	Code    Code   `json:"code"`
	Message string `json:"message"`
	Cause   error  `json:"-"`
}

func (e *AppError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Cause)
	}
	return e.Message
}

func (e *AppError) Unwrap() error { return e.Cause }

// Is matches on code and message so that wrapped copies of a sentinel
// (see WithCause) still compare equal with errors.Is.
func (e *AppError) Is(target error) bool {
	t, ok := target.(*AppError)
	if !ok {
		return false
	}
	return e.Code == t.Code && e.Message == t.Message
}

// Constructors
func New(code Code, message string) *AppError {
	return &AppError{Code: code, Message: message}
}

func Wrap(code Code, message string, cause error) error {
	return &AppError{Code: code, Message: message, Cause: cause}
}

// WithCause returns a copy of the sentinel carrying the underlying cause for
// server-side logging. The code and user-facing message stay unchanged.
func (e *AppError) WithCause(cause error) error {
	return &AppError{Code: e.Code, Message: e.Message, Cause: cause}
}

func InvalidArg(msg string) *AppError {
	return New(CodeInvalidArgument, msg)
}

func NotFound(msg string) *AppError {
	return New(CodeNotFound, msg)
}

func AlreadyExists(msg string) *AppError {
	return New(CodeAlreadyExists, msg)
}

func Conflict(msg string) *AppError {
	return New(CodeConflict, msg)
}

func FailedPrecondition(msg string) *AppError {
	return New(CodeFailedPrecondition, msg)
}

func Internal(msg string) *AppError {
	return New(CodeInternal, msg)
}
