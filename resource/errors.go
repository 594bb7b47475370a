package resource

import (
	"errors"
	"fmt"
)

// ErrorCode is the flat error taxonomy reported to error handlers.
type ErrorCode int

const (
	Success ErrorCode = iota
	ErrorCommunication
	ErrorInvalidType
)

func (c ErrorCode) String() string {
	switch c {
	case Success:
		return "success"
	case ErrorCommunication:
		return "communication"
	case ErrorInvalidType:
		return "invalid_type"
	}
	return fmt.Sprintf("code(%d)", int(c))
}

var (
	// ErrCommunication is returned when the store could not be reached or
	// rejected a request.
	ErrCommunication = errors.New("store communication failed")

	// ErrInvalidType is returned when a resource is stored with a type that is
	// incompatible with the requested one.
	ErrInvalidType = errors.New("incompatible resource type")

	// ErrReleased is returned when a released handle is used.
	ErrReleased = errors.New("resource handle released")
)

// Error describes a failed operation on a resource.
type Error struct {
	URI  string
	Code ErrorCode
	err  error
}

func newError(uri string, code ErrorCode, err error) *Error {
	return &Error{URI: uri, Code: code, err: err}
}

func (e *Error) Error() string {
	if e.URI == "" {
		return fmt.Sprintf("%s: %v", e.sentinel(), e.err)
	}
	return fmt.Sprintf("%s %s: %v", e.sentinel(), e.URI, e.err)
}

// Unwrap exposes both the code sentinel and the underlying cause.
func (e *Error) Unwrap() []error {
	return []error{e.sentinel(), e.err}
}

func (e *Error) sentinel() error {
	if e.Code == ErrorInvalidType {
		return ErrInvalidType
	}
	return ErrCommunication
}

// CodeOf returns the error code carried by err. Nil maps to Success and
// errors that are not resource errors map to ErrorCommunication.
func CodeOf(err error) ErrorCode {
	if err == nil {
		return Success
	}
	var re *Error
	if errors.As(err, &re) {
		return re.Code
	}
	if errors.Is(err, ErrInvalidType) {
		return ErrorInvalidType
	}
	return ErrorCommunication
}

// ErrorHandler is notified about every failed resolution, load or sync.
type ErrorHandler func(uri string, code ErrorCode)
