package capture

import (
	"errors"
	"os"
	"strings"
)

// Capture initialisation failures, each with a user-facing message from
// [UserMessage].
var (
	ErrPermissionDenied = errors.New("capture: microphone permission denied")
	ErrDeviceNotFound   = errors.New("capture: no microphone found")
	ErrDeviceBusy       = errors.New("capture: microphone busy")
	ErrCaptureInit      = errors.New("capture: initialisation failed")
	ErrAlreadyStarted   = errors.New("capture: pipeline already started")
)

// InitError is an initialisation failure that matched no known category.
// It matches [ErrCaptureInit] via errors.Is.
type InitError struct {
	Err error
}

func (e *InitError) Error() string {
	return "capture: initialisation failed: " + e.Err.Error()
}

func (e *InitError) Unwrap() []error {
	return []error{ErrCaptureInit, e.Err}
}

// Classify maps a platform error into one of the capture error categories.
// Errors that already carry a category are returned unchanged.
func Classify(err error) error {
	if err == nil {
		return nil
	}
	for _, known := range []error{ErrPermissionDenied, ErrDeviceNotFound, ErrDeviceBusy, ErrCaptureInit} {
		if errors.Is(err, known) {
			return err
		}
	}
	if errors.Is(err, os.ErrPermission) {
		return wrap(ErrPermissionDenied, err)
	}

	msg := strings.ToLower(err.Error())
	switch {
	case containsAny(msg, "permission", "denied", "not allowed", "access"):
		return wrap(ErrPermissionDenied, err)
	case containsAny(msg, "not found", "no device", "no such device", "no capture device"):
		return wrap(ErrDeviceNotFound, err)
	case containsAny(msg, "busy", "in use", "unavailable", "not readable"):
		return wrap(ErrDeviceBusy, err)
	default:
		return &InitError{Err: err}
	}
}

// UserMessage returns a short message suitable for showing to the user, or ""
// if err is not a capture initialisation failure.
func UserMessage(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrPermissionDenied):
		return "Microphone access was denied. Allow microphone access and try again."
	case errors.Is(err, ErrDeviceNotFound):
		return "No microphone was found. Connect a microphone and try again."
	case errors.Is(err, ErrDeviceBusy):
		return "The microphone is in use by another application."
	case errors.Is(err, ErrCaptureInit):
		return "Could not start the microphone."
	default:
		return ""
	}
}

type categorized struct {
	kind  error
	cause error
}

func (c *categorized) Error() string { return c.kind.Error() + ": " + c.cause.Error() }

func (c *categorized) Unwrap() []error { return []error{c.kind, c.cause} }

func wrap(kind, cause error) error { return &categorized{kind: kind, cause: cause} }

func containsAny(s string, subs ...string) bool {
	for _, sub := range subs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}
