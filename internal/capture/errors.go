package capture

import (
	"context"
	"errors"
	"fmt"

	"github.com/cjeanneret/SnapGo/internal/hw/camera"
)

// Kind classifies capture failures.
type Kind int

const (
	KindCapabilityUnsupported Kind = iota + 1
	KindAccessDenied
	KindDeviceUnavailable
	KindCaptureWithoutSession
	KindEncodeFailed
)

func (k Kind) String() string {
	switch k {
	case KindCapabilityUnsupported:
		return "capability_unsupported"
	case KindAccessDenied:
		return "access_denied"
	case KindDeviceUnavailable:
		return "device_unavailable"
	case KindCaptureWithoutSession:
		return "capture_without_session"
	case KindEncodeFailed:
		return "encode_failed"
	default:
		return fmt.Sprintf("Kind(%d)", int(k))
	}
}

// Message is the human-readable notice text shown for the kind.
func (k Kind) Message() string {
	switch k {
	case KindCapabilityUnsupported:
		return "This device does not support camera access."
	case KindAccessDenied:
		return "Camera access was denied. Allow camera access and try again."
	case KindDeviceUnavailable:
		return "Could not access the camera. Check that it is connected and not used by another application."
	case KindCaptureWithoutSession:
		return "Open the camera before capturing the photo."
	case KindEncodeFailed:
		return "The photo could not be encoded."
	default:
		return "Camera error."
	}
}

// Error is a classified capture failure.
type Error struct {
	Kind Kind
	Err  error
}

func (e *Error) Error() string {
	if e.Err == nil {
		return e.Kind.String()
	}
	return e.Kind.String() + ": " + e.Err.Error()
}

func (e *Error) Unwrap() error { return e.Err }

// Is matches another *Error of the same kind with no cause, so the sentinels
// below work with errors.Is.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && t.Err == nil && t.Kind == e.Kind
}

// Sentinels for errors.Is.
var (
	ErrCapabilityUnsupported = &Error{Kind: KindCapabilityUnsupported}
	ErrAccessDenied          = &Error{Kind: KindAccessDenied}
	ErrDeviceUnavailable     = &Error{Kind: KindDeviceUnavailable}
	ErrCaptureWithoutSession = &Error{Kind: KindCaptureWithoutSession}
	ErrEncodeFailed          = &Error{Kind: KindEncodeFailed}
)

var (
	errPromptDenied = errors.New("permission prompt denied")
	errNoSession    = errors.New("no active camera session")
	errNoFrame      = errors.New("preview has no frame")
)

// KindOf returns the kind of a capture error, or 0.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return 0
}

// classifyOpen maps device errors onto the capture taxonomy.
func classifyOpen(err error) *Error {
	switch {
	case errors.Is(err, camera.ErrUnsupported):
		return &Error{Kind: KindCapabilityUnsupported, Err: err}
	case errors.Is(err, camera.ErrPermission),
		errors.Is(err, context.Canceled),
		errors.Is(err, context.DeadlineExceeded):
		return &Error{Kind: KindAccessDenied, Err: err}
	default:
		return &Error{Kind: KindDeviceUnavailable, Err: err}
	}
}
