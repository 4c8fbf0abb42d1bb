package dto

import (
	"errors"
	"net/http"
	"sort"
	"strings"

	"github.com/helixframework/helix/internal/orm"
)

// Error codes rendered in ErrorInfo.Code
const (
	ErrCodeInternal     = "ERR_INTERNAL"
	ErrCodeValidation   = "ERR_VALIDATION"
	ErrCodeBadRequest   = "ERR_BAD_REQUEST"
	ErrCodeUnauthorized = "ERR_UNAUTHORIZED"
	ErrCodeForbidden    = "ERR_FORBIDDEN"
	ErrCodeNotFound     = "ERR_NOT_FOUND"
	ErrCodeConflict     = "ERR_CONFLICT"
	ErrCodeRateLimited  = "ERR_RATE_LIMITED"
	ErrCodeTooLarge     = "ERR_REQUEST_TOO_LARGE"
)

// statusCodes maps HTTP statuses to error codes
var statusCodes = map[int]string{
	http.StatusBadRequest:            ErrCodeBadRequest,
	http.StatusUnauthorized:          ErrCodeUnauthorized,
	http.StatusForbidden:             ErrCodeForbidden,
	http.StatusNotFound:              ErrCodeNotFound,
	http.StatusConflict:              ErrCodeConflict,
	http.StatusRequestEntityTooLarge: ErrCodeTooLarge,
	http.StatusUnprocessableEntity:   ErrCodeValidation,
	http.StatusTooManyRequests:       ErrCodeRateLimited,
}

// CodeForStatus returns the error code rendered for an HTTP status.
// Unknown statuses are reported as internal errors.
func CodeForStatus(status int) string {
	if code, ok := statusCodes[status]; ok {
		return code
	}
	return ErrCodeInternal
}

// ClientError is returned by actions to answer with a specific HTTP status
type ClientError struct {
	Status  int
	Message string
	// Errors holds per-field validation messages
	Errors map[string]string
}

// NewClientError creates a client error. An empty message uses the status text.
func NewClientError(status int, message string) *ClientError {
	if message == "" {
		message = http.StatusText(status)
	}
	return &ClientError{Status: status, Message: message}
}

// NotFound is a 404 client error
func NotFound() *ClientError {
	return NewClientError(http.StatusNotFound, "")
}

// BadData is a 400 client error carrying field errors
func BadData(errors map[string]string) *ClientError {
	e := NewClientError(http.StatusBadRequest, "")
	e.Errors = errors
	return e
}

// ServerError is a 500 client error
func ServerError(message string) *ClientError {
	return NewClientError(http.StatusInternalServerError, message)
}

func (e *ClientError) Error() string {
	if len(e.Errors) == 0 {
		return e.Message
	}
	fields := make([]string, 0, len(e.Errors))
	for field := range e.Errors {
		fields = append(fields, field)
	}
	sort.Strings(fields)
	parts := make([]string, 0, len(fields))
	for _, field := range fields {
		parts = append(parts, field+": "+e.Errors[field])
	}
	return e.Message + " (" + strings.Join(parts, ", ") + ")"
}

// Code returns the error code of the status
func (e *ClientError) Code() string {
	if len(e.Errors) > 0 {
		return ErrCodeValidation
	}
	return CodeForStatus(e.Status)
}

// Response renders the error as an API response
func (e *ClientError) Response() Response {
	r := NewErrorResponse(e.Code(), e.Message)
	for field, message := range e.Errors {
		r.Error.Details = append(r.Error.Details, ValidationDetail{Field: field, Message: message})
	}
	sort.Slice(r.Error.Details, func(i, j int) bool { return r.Error.Details[i].Field < r.Error.Details[j].Field })
	return r
}

// FromValidation converts an orm.ValidationError into a 400 client error and returns
// other errors unchanged
func FromValidation(err error) error {
	var verr *orm.ValidationError
	if errors.As(err, &verr) {
		return BadData(verr.Fields)
	}
	return err
}
