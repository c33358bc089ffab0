package pipeline_type

import (
	"errors"
	"fmt"
	"net/http"
)

type ErrorKind string

const (
	KindValidation       ErrorKind = "validation"
	KindUnsupportedMedia ErrorKind = "unsupported_media"
	KindRasterization    ErrorKind = "rasterization"
	KindExternalService  ErrorKind = "external_service"
	KindConfiguration    ErrorKind = "configuration"
)

// Error is a pipeline failure with a client-safe message. Message is what
// callers may show to users; Err carries the internal cause for logs only.
type Error struct {
	Kind    ErrorKind
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// HTTPStatus maps the error kind to the response status: input problems are
// the client's fault, everything else is a processing failure.
func (e *Error) HTTPStatus() int {
	switch e.Kind {
	case KindValidation, KindUnsupportedMedia:
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

func ValidationError(message string, err error) error {
	return &Error{Kind: KindValidation, Message: message, Err: err}
}

func UnsupportedMediaError(message string, err error) error {
	return &Error{Kind: KindUnsupportedMedia, Message: message, Err: err}
}

func RasterizationError(message string, err error) error {
	return &Error{Kind: KindRasterization, Message: message, Err: err}
}

func ExternalServiceError(message string, err error) error {
	return &Error{Kind: KindExternalService, Message: message, Err: err}
}

func ConfigurationError(message string, err error) error {
	return &Error{Kind: KindConfiguration, Message: message, Err: err}
}

// AsError unwraps err into a pipeline *Error if there is one in the chain.
func AsError(err error) (*Error, bool) {
	var pe *Error
	if errors.As(err, &pe) {
		return pe, true
	}
	return nil, false
}
