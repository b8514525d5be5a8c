//go:build linux

package camera

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"image/jpeg"
	"sync"
	"syscall"
	"time"

	"github.com/blackjack/webcam"

	"github.com/cjeanneret/SnapGo/internal/debug"
)

// V4L2 pixel formats SnapGo can decode, in order of preference.
const (
	pixFmtMJPEG webcam.PixelFormat = 0x47504A4D // 'MJPG'
	pixFmtYUYV  webcam.PixelFormat = 0x56595559 // 'YUYV'
)

// V4L2Device is a Video4Linux2 webcam, e.g. /dev/video0.
type V4L2Device struct {
	path         string
	width        uint32
	height       uint32
	frameTimeout time.Duration
}

// NewV4L2Device describes a webcam at path. width and height are the native
// size requested from the driver; the driver may pick the closest it supports.
func NewV4L2Device(path string, width, height int, frameTimeout time.Duration) *V4L2Device {
	return &V4L2Device{
		path:         path,
		width:        uint32(width),
		height:       uint32(height),
		frameTimeout: frameTimeout,
	}
}

func (d *V4L2Device) Name() string { return d.path }

// Open opens the device, negotiates a decodable pixel format and starts streaming.
func (d *V4L2Device) Open(ctx context.Context) (Stream, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	debug.Verbose("Camera: opening %s", d.path)
	cam, err := webcam.Open(d.path)
	if err != nil {
		return nil, classifyOpenError(d.path, err)
	}

	format, ok := pickFormat(cam.GetSupportedFormats())
	if !ok {
		cam.Close()
		return nil, fmt.Errorf("%w: %s offers neither MJPEG nor YUYV", ErrUnsupported, d.path)
	}

	f, w, h, err := cam.SetImageFormat(format, d.width, d.height)
	if err != nil {
		cam.Close()
		return nil, fmt.Errorf("set image format on %s: %w", d.path, err)
	}
	debug.Verbose("Camera: %s negotiated format=%#x size=%dx%d", d.path, uint32(f), w, h)

	if err := cam.StartStreaming(); err != nil {
		cam.Close()
		return nil, classifyOpenError(d.path, err)
	}

	s := &v4l2Stream{
		cam:     cam,
		format:  f,
		width:   int(w),
		height:  int(h),
		timeout: waitSeconds(d.frameTimeout),
	}
	s.track = NewTrack("video", d.path, s.release)
	return s, nil
}

type v4l2Stream struct {
	mu      sync.Mutex
	cam     *webcam.Webcam
	closed  bool
	format  webcam.PixelFormat
	width   int
	height  int
	timeout uint32
	track   *Track
}

func (s *v4l2Stream) Tracks() []*Track { return []*Track{s.track} }

func (s *v4l2Stream) ReadFrame(ctx context.Context) (image.Image, error) {
	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		s.mu.Lock()
		if s.closed {
			s.mu.Unlock()
			return nil, ErrStreamClosed
		}
		err := s.cam.WaitForFrame(s.timeout)
		if err != nil {
			s.mu.Unlock()
			var timeout *webcam.Timeout
			if errors.As(err, &timeout) {
				return nil, ErrFrameTimeout
			}
			return nil, fmt.Errorf("wait for frame: %w", err)
		}
		data, err := s.cam.ReadFrame()
		s.mu.Unlock()
		if err != nil {
			return nil, fmt.Errorf("read frame: %w", err)
		}
		if len(data) == 0 {
			continue
		}
		debug.Trace("Camera: frame %d bytes", len(data))
		return s.decode(data)
	}
}

func (s *v4l2Stream) decode(data []byte) (image.Image, error) {
	switch s.format {
	case pixFmtMJPEG:
		img, err := jpeg.Decode(bytes.NewReader(withDefaultHuffman(data)))
		if err != nil {
			return nil, fmt.Errorf("%w: decode mjpeg: %w", ErrBadFrame, err)
		}
		return img, nil
	case pixFmtYUYV:
		return yuyvToImage(data, s.width, s.height)
	default:
		return nil, fmt.Errorf("%w: pixel format %#x", ErrUnsupported, uint32(s.format))
	}
}

func (s *v4l2Stream) Stop() error {
	s.track.Stop()
	return nil
}

// release runs once, from the track's Stop.
func (s *v4l2Stream) release() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.closed = true
	if err := s.cam.StopStreaming(); err != nil {
		debug.Error(fmt.Errorf("stop streaming: %w", err))
	}
	if err := s.cam.Close(); err != nil {
		debug.Error(fmt.Errorf("close webcam: %w", err))
	}
}

func pickFormat(supported map[webcam.PixelFormat]string) (webcam.PixelFormat, bool) {
	for _, f := range []webcam.PixelFormat{pixFmtMJPEG, pixFmtYUYV} {
		if _, ok := supported[f]; ok {
			return f, true
		}
	}
	return 0, false
}

// waitSeconds converts a frame timeout to the whole seconds WaitForFrame takes.
func waitSeconds(d time.Duration) uint32 {
	if d < time.Second {
		return 1
	}
	return uint32(d / time.Second)
}

func classifyOpenError(path string, err error) error {
	switch {
	case errors.Is(err, syscall.EACCES), errors.Is(err, syscall.EPERM):
		return fmt.Errorf("%w: %s: %w", ErrPermission, path, err)
	case errors.Is(err, syscall.ENOENT), errors.Is(err, syscall.ENODEV), errors.Is(err, syscall.ENXIO):
		return fmt.Errorf("%w: %s: %w", ErrNoDevice, path, err)
	case errors.Is(err, syscall.EBUSY):
		return fmt.Errorf("%w: %s: %w", ErrBusy, path, err)
	default:
		return fmt.Errorf("open %s: %w", path, err)
	}
}
