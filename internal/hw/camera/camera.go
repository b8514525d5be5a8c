package camera

import (
	"context"
	"errors"
	"image"
)

// Device is an abstract camera capability, regardless of how frames are
// obtained (V4L2, synthetic pattern, network source...).
type Device interface {
	// Name identifies the device in logs and notices.
	Name() string
	// Open acquires the camera hardware and starts a video-only stream.
	Open(ctx context.Context) (Stream, error)
}

// Stream is a live, continuous feed of frames from an opened Device.
type Stream interface {
	// Tracks lists the media tracks of the stream (one video track for now).
	Tracks() []*Track
	// ReadFrame blocks until the next frame is available.
	ReadFrame(ctx context.Context) (image.Image, error)
	// Stop ends every track and releases the hardware. Safe to call twice.
	Stop() error
}

var (
	// ErrUnsupported means the host exposes no usable camera capability.
	ErrUnsupported = errors.New("camera: capture not supported on this host")
	// ErrPermission means access to the device was refused.
	ErrPermission = errors.New("camera: permission denied")
	// ErrNoDevice means no capture device answers at the configured path.
	ErrNoDevice = errors.New("camera: no such device")
	// ErrBusy means another process holds the device.
	ErrBusy = errors.New("camera: device busy")
	// ErrStreamClosed is returned by ReadFrame after Stop.
	ErrStreamClosed = errors.New("camera: stream closed")
	// ErrFrameTimeout means the device produced no frame in time.
	ErrFrameTimeout = errors.New("camera: frame timeout")
	// ErrBadFrame means one frame arrived but could not be decoded.
	ErrBadFrame = errors.New("camera: undecodable frame")
)
