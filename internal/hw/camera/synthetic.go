package camera

import (
	"context"
	"image"
	"image/color"
	"sync"
	"time"
)

// SyntheticDevice produces a moving test pattern. It stands in for a real
// webcam on development machines and in tests, the way the mock GPIO driver
// stands in for a Raspberry Pi.
type SyntheticDevice struct {
	Width    int
	Height   int
	Interval time.Duration // delay between frames

	// OpenErr, when set, is returned by Open to simulate a refused or missing device.
	OpenErr error
}

// NewSyntheticDevice returns a pattern generator at the given native size.
func NewSyntheticDevice(width, height int, fps int) *SyntheticDevice {
	if fps <= 0 {
		fps = 30
	}
	return &SyntheticDevice{
		Width:    width,
		Height:   height,
		Interval: time.Second / time.Duration(fps),
	}
}

func (d *SyntheticDevice) Name() string { return "synthetic" }

func (d *SyntheticDevice) Open(ctx context.Context) (Stream, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if d.OpenErr != nil {
		return nil, d.OpenErr
	}
	s := &syntheticStream{
		width:    d.Width,
		height:   d.Height,
		interval: d.Interval,
		done:     make(chan struct{}),
	}
	s.track = NewTrack("video", "synthetic", s.release)
	return s, nil
}

type syntheticStream struct {
	width    int
	height   int
	interval time.Duration
	track    *Track

	mu    sync.Mutex
	frame int
	done  chan struct{}
}

func (s *syntheticStream) Tracks() []*Track { return []*Track{s.track} }

func (s *syntheticStream) ReadFrame(ctx context.Context) (image.Image, error) {
	select {
	case <-s.done:
		return nil, ErrStreamClosed
	default:
	}

	if s.interval > 0 {
		timer := time.NewTimer(s.interval)
		defer timer.Stop()
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-s.done:
			return nil, ErrStreamClosed
		case <-timer.C:
		}
	}

	s.mu.Lock()
	n := s.frame
	s.frame++
	s.mu.Unlock()
	return Pattern(s.width, s.height, n), nil
}

func (s *syntheticStream) Stop() error {
	s.track.Stop()
	return nil
}

func (s *syntheticStream) release() {
	close(s.done)
}

// Pattern draws frame n of the test pattern: a diagonal gradient with a
// vertical bar that moves one column per frame.
func Pattern(width, height, n int) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, width, height))
	bar := 0
	if width > 0 {
		bar = n % width
	}
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			c := color.RGBA{
				R: uint8(x * 255 / max(width-1, 1)),
				G: uint8(y * 255 / max(height-1, 1)),
				B: 128,
				A: 255,
			}
			if x >= bar && x < bar+8 {
				c = color.RGBA{R: 255, G: 255, B: 255, A: 255}
			}
			img.SetRGBA(x, y, c)
		}
	}
	return img
}
