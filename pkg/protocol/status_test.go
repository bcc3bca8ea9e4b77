package protocol

import (
	"errors"
	"fmt"
	"testing"
)

func TestStatusOf(t *testing.T) {
	t.Run("Nil", func(t *testing.T) {
		if got := StatusOf(nil); got != ErrSuccessOK {
			t.Errorf("StatusOf(nil) = %v, want %v", got, ErrSuccessOK)
		}
	})

	t.Run("StatusError", func(t *testing.T) {
		err := NewStatusError(ErrDeviceNotFound, "CAM001")
		if got := StatusOf(err); got != ErrDeviceNotFound {
			t.Errorf("StatusOf = %v, want %v", got, ErrDeviceNotFound)
		}
	})

	t.Run("WrappedStatusError", func(t *testing.T) {
		err := fmt.Errorf("dispatch: %w", NewStatusError(ErrServiceNotFound, ""))
		if got := StatusOf(err); got != ErrServiceNotFound {
			t.Errorf("StatusOf = %v, want %v", got, ErrServiceNotFound)
		}
	})

	t.Run("PlainErrorFallsBack", func(t *testing.T) {
		if got := StatusOf(errors.New("boom")); got != ErrClientBadRequest {
			t.Errorf("StatusOf = %v, want %v", got, ErrClientBadRequest)
		}
	})
}

func TestStatusErrorMessage(t *testing.T) {
	err := NewStatusError(ErrConflict, "serial CAM001 already registered")
	if want := "Conflict: serial CAM001 already registered"; err.Error() != want {
		t.Errorf("Error() = %q, want %q", err.Error(), want)
	}

	bare := NewStatusError(ErrRequestTimeout, "")
	if bare.Error() != "Request Timeout" {
		t.Errorf("Error() = %q", bare.Error())
	}
}

func TestErrorNumStrings(t *testing.T) {
	cases := map[ErrorNum]string{
		ErrSuccessOK:            "Success OK",
		ErrClientBadRequest:     "Client Bad Request",
		ErrClientUnauthorized:   "Client Unauthorized",
		ErrRequestTimeout:       "Request Timeout",
		ErrConflict:             "Conflict",
		ErrServerInternal:       "Server Internal Error",
		ErrServerNotImplemented: "Server Not Implemented",
		ErrDeviceNotFound:       "Device Not Found",
		ErrServiceNotFound:      "Service Not Found",
		ErrorNum(999):           "Unknown Error",
	}
	for num, want := range cases {
		if got := num.String(); got != want {
			t.Errorf("%d.String() = %q, want %q", num, got, want)
		}
	}
}
