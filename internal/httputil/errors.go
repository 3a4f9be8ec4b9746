package httputil

import (
	"errors"
	"fmt"
	"net/http"
)

// Machine-readable error codes.
const (
	CodeValidation         = "VALIDATION_ERROR"
	CodeInvalidRequestBody = "INVALID_REQUEST_BODY"
	CodeConflict           = "CONFLICT"
	CodeNotFound           = "NOT_FOUND"
	CodeInvalidCredentials = "INVALID_CREDENTIALS"
	CodeUnauthorized       = "UNAUTHORIZED"
	CodeInvalidToken       = "INVALID_OR_EXPIRED_TOKEN"
	CodeInternalError      = "INTERNAL_ERROR"
)

// Error is an error that knows how it should be rendered over HTTP.
type Error struct {
	Status  int
	Code    string
	Message string
	Details []string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Err
}

// NewError builds an *Error with no underlying cause.
func NewError(status int, code, message string, details ...string) *Error {
	return &Error{Status: status, Code: code, Message: message, Details: details}
}

// Wrap attaches cause to a new *Error.
func Wrap(cause error, status int, code, message string) *Error {
	return &Error{Status: status, Code: code, Message: message, Err: cause}
}

// HandlerFunc is an http.HandlerFunc that reports failure by returning an error.
type HandlerFunc func(w http.ResponseWriter, r *http.Request) error

// ErrorHook is called with every error rendered by the boundary.
type ErrorHook func(r *http.Request, status int, err error)

// Boundary converts returned errors into the error envelope.
// With exposeStack set the full error chain is included as "stack".
type Boundary struct {
	exposeStack bool
	hook        ErrorHook
}

func NewBoundary(exposeStack bool, hook ErrorHook) *Boundary {
	return &Boundary{exposeStack: exposeStack, hook: hook}
}

// Handle adapts fn to an http.HandlerFunc.
func (b *Boundary) Handle(fn HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := fn(w, r); err != nil {
			b.Render(w, r, err)
		}
	}
}

// Render writes err as the error envelope.
func (b *Boundary) Render(w http.ResponseWriter, r *http.Request, err error) {
	var apiErr *Error
	if !errors.As(err, &apiErr) {
		apiErr = Wrap(err, http.StatusInternalServerError, CodeInternalError, "Internal Server Error")
	}

	resp := ErrorResponse{
		Success: false,
		Message: apiErr.Message,
		Code:    apiErr.Code,
		Errors:  apiErr.Details,
	}
	if resp.Errors == nil {
		resp.Errors = []string{}
	}
	if b.exposeStack {
		resp.Stack = err.Error()
	}

	if b.hook != nil {
		b.hook(r, apiErr.Status, err)
	}

	RespondJSON(w, resp, apiErr.Status)
}
