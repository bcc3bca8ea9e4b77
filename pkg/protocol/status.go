package protocol

import (
	"errors"
	"fmt"
)

// ErrorNum is the numeric error code carried in an envelope header.
// Values below 600 track HTTP status codes; 6xx codes are CMS-specific.
type ErrorNum int

const (
	// ErrSuccessOK indicates the request succeeded.
	ErrSuccessOK ErrorNum = 200

	// ErrClientBadRequest indicates a malformed request or missing attribute.
	ErrClientBadRequest ErrorNum = 400

	// ErrClientUnauthorized indicates the session has not registered.
	ErrClientUnauthorized ErrorNum = 401

	// ErrRequestTimeout indicates the device did not reply in time.
	ErrRequestTimeout ErrorNum = 408

	// ErrConflict indicates another session holds the same serial.
	ErrConflict ErrorNum = 409

	// ErrServerInternal indicates a hub-side failure (e.g. token minting).
	ErrServerInternal ErrorNum = 500

	// ErrServerNotImplemented indicates an unsupported message kind.
	ErrServerNotImplemented ErrorNum = 501

	// ErrDeviceNotFound indicates the requested serial is not registered.
	ErrDeviceNotFound ErrorNum = 603

	// ErrServiceNotFound indicates no media relay is available.
	ErrServiceNotFound ErrorNum = 605
)

// String returns the canonical error string for the code.
func (e ErrorNum) String() string {
	switch e {
	case ErrSuccessOK:
		return "Success OK"
	case ErrClientBadRequest:
		return "Client Bad Request"
	case ErrClientUnauthorized:
		return "Client Unauthorized"
	case ErrRequestTimeout:
		return "Request Timeout"
	case ErrConflict:
		return "Conflict"
	case ErrServerInternal:
		return "Server Internal Error"
	case ErrServerNotImplemented:
		return "Server Not Implemented"
	case ErrDeviceNotFound:
		return "Device Not Found"
	case ErrServiceNotFound:
		return "Service Not Found"
	default:
		return "Unknown Error"
	}
}

// StatusError is a handler failure destined for the envelope header.
// Handlers return it instead of writing error responses themselves; the
// dispatcher maps it onto the ack kind paired with the request.
type StatusError struct {
	Num     ErrorNum
	Message string
}

// Error implements the error interface.
func (e *StatusError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("%s: %s", e.Num, e.Message)
	}
	return e.Num.String()
}

// NewStatusError creates a StatusError for the given code.
func NewStatusError(num ErrorNum, message string) *StatusError {
	return &StatusError{Num: num, Message: message}
}

// StatusOf extracts the ErrorNum from a handler error.
// Non-StatusError values fall back to ErrClientBadRequest, mirroring the
// dispatcher's catch-all mapping.
func StatusOf(err error) ErrorNum {
	if err == nil {
		return ErrSuccessOK
	}
	var se *StatusError
	if errors.As(err, &se) {
		return se.Num
	}
	return ErrClientBadRequest
}
