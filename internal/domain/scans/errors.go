package scans

import (
	"errors"
	"fmt"
)

var (
	// ErrNoImage is returned when a scan is started without an image handle.
	ErrNoImage = errors.New("No image selected")

	// ErrNotFound is returned by Get for an unknown id.
	ErrNotFound = errors.New("scan result not found")
)

// IOError means the image bytes behind a handle could not be read.
type IOError struct {
	Handle Handle
	Err    error
}

func (e *IOError) Error() string {
	return fmt.Sprintf("failed to read image %q: %v", e.Handle, e.Err)
}

func (e *IOError) Unwrap() error { return e.Err }

// ServiceError is a failed prediction call. StatusCode is set for non-2xx
// responses; Err is set when the body could not be parsed.
type ServiceError struct {
	StatusCode int
	Err        error
}

func (e *ServiceError) Error() string {
	if e.StatusCode != 0 && e.Err != nil {
		return fmt.Sprintf("API Error: %d: %v", e.StatusCode, e.Err)
	}
	if e.StatusCode != 0 {
		return fmt.Sprintf("API Error: %d", e.StatusCode)
	}
	return fmt.Sprintf("invalid response: %v", e.Err)
}

func (e *ServiceError) Unwrap() error { return e.Err }

// IsServerError returns true for 5xx responses.
func (e *ServiceError) IsServerError() bool {
	return e.StatusCode >= 500 && e.StatusCode < 600
}

// StoreError is a persistence failure.
type StoreError struct {
	Op  string
	Err error
}

func (e *StoreError) Error() string {
	return fmt.Sprintf("failed to %s result: %v", e.Op, e.Err)
}

func (e *StoreError) Unwrap() error { return e.Err }

// Message converts an attempt failure into the text carried by the Error state.
func Message(err error) string {
	if err == nil {
		return ""
	}
	var (
		ioErr  *IOError
		svcErr *ServiceError
		stErr  *StoreError
	)
	switch {
	case errors.Is(err, ErrNoImage):
		return ErrNoImage.Error()
	case errors.As(err, &ioErr):
		return fmt.Sprintf("failed to read image: %v", ioErr.Err)
	case errors.As(err, &svcErr):
		return svcErr.Error()
	case errors.As(err, &stErr):
		return stErr.Error()
	default:
		return err.Error()
	}
}
