// Package apperr provides the error kinds surfaced by the meeting report
// service, each carrying a machine-readable code and the HTTP status it maps to.
package apperr

import (
	stderrors "errors"
	"fmt"
	"net/http"
)

// Code is a machine-readable error code.
type Code string

const (
	CodeMissingInput  Code = "MISSING_INPUT"
	CodeInvalidInput  Code = "INVALID_INPUT"
	CodeConfiguration Code = "CONFIGURATION_ERROR"
	CodeTranscription Code = "TRANSCRIPTION_ERROR"
	CodeGeneration    Code = "GENERATION_ERROR"
	CodeRender        Code = "RENDER_ERROR"
	CodeInternal      Code = "INTERNAL_ERROR"
)

// Error is the unified application error type.
type Error struct {
	// Code is a machine-readable error code.
	Code Code
	// Message is a generic, human-readable message.
	Message string
	// HTTPStatus is the status code returned to the caller.
	HTTPStatus int
	// Details contains additional context for the error.
	Details map[string]any
	// Cause is the underlying error.
	Cause error
}

// Error returns the string representation of the error.
func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s (cause: %v)", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap returns the underlying cause of the error.
func (e *Error) Unwrap() error { return e.Cause }

// Detail returns the text of the underlying cause, or "" when there is none.
func (e *Error) Detail() string {
	if e.Cause == nil {
		return ""
	}
	return e.Cause.Error()
}

// WithDetail sets a single detail key-value pair and returns the receiver.
func (e *Error) WithDetail(key string, value any) *Error {
	if e.Details == nil {
		e.Details = make(map[string]any)
	}
	e.Details[key] = value
	return e
}

// MissingInput reports an absent audio payload or required text field.
func MissingInput(field string) *Error {
	return &Error{
		Code: CodeMissingInput, Message: fmt.Sprintf("Missing required input: %s", field),
		HTTPStatus: http.StatusBadRequest,
		Details:    map[string]any{"field": field},
	}
}

// InvalidInput reports a request body that could not be parsed or holds an
// unsupported value.
func InvalidInput(message string, cause error) *Error {
	return &Error{
		Code: CodeInvalidInput, Message: message,
		HTTPStatus: http.StatusBadRequest, Cause: cause,
	}
}

// Configuration reports a generation backend that is not configured or
// authenticated.
func Configuration(cause error) *Error {
	return &Error{
		Code: CodeConfiguration, Message: "The generation service is unavailable. Check its API key.",
		HTTPStatus: http.StatusInternalServerError, Cause: cause,
	}
}

// Transcription reports a speech-to-text failure.
func Transcription(cause error) *Error {
	return &Error{
		Code: CodeTranscription, Message: "The audio could not be transcribed.",
		HTTPStatus: http.StatusInternalServerError, Cause: cause,
	}
}

// Generation reports a text-generation failure for one analysis kind.
func Generation(kind string, cause error) *Error {
	return &Error{
		Code: CodeGeneration, Message: fmt.Sprintf("The %s could not be generated.", kind),
		HTTPStatus: http.StatusInternalServerError, Cause: cause,
		Details:    map[string]any{"analysis": kind},
	}
}

// Render reports an unrecoverable document rendering failure.
func Render(cause error) *Error {
	return &Error{
		Code: CodeRender, Message: "The document could not be rendered.",
		HTTPStatus: http.StatusInternalServerError, Cause: cause,
	}
}

// Internal wraps any other failure.
func Internal(cause error) *Error {
	return &Error{
		Code: CodeInternal, Message: "An unexpected error occurred.",
		HTTPStatus: http.StatusInternalServerError, Cause: cause,
	}
}

// As returns the *Error in err's chain, if any.
func As(err error) (*Error, bool) {
	var appErr *Error
	if stderrors.As(err, &appErr) {
		return appErr, true
	}
	return nil, false
}

// From converts err to an *Error, wrapping unknown errors as Internal.
func From(err error) *Error {
	if appErr, ok := As(err); ok {
		return appErr
	}
	return Internal(err)
}

// IsCode reports whether err carries the given code.
func IsCode(err error, code Code) bool {
	appErr, ok := As(err)
	return ok && appErr.Code == code
}
