package capture

import (
	"context"
	"errors"
	"image"
	"sync"
	"time"

	"github.com/cjeanneret/SnapGo/internal/debug"
	"github.com/cjeanneret/SnapGo/internal/hw/camera"
)

// maxMissedFrames is how many consecutive missed frames (timeouts or
// undecodable frames) a stream may drop before the next one ends it.
const maxMissedFrames = 3

// Frame is a captured photo as written to the output slot.
type Frame struct {
	DataURL    string
	Width      int
	Height     int
	CapturedAt time.Time
}

// Capturer is the camera capture component.
type Capturer struct {
	cfg     Config
	enabled bool

	mu      sync.Mutex
	state   State
	session *Session
	pending *AccessRequest
}

// New builds a Capturer from cfg. A Capturer missing its preview, surface or
// output slot is disabled: every operation becomes a no-op.
func New(cfg Config) *Capturer {
	c := &Capturer{cfg: cfg}
	c.enabled = cfg.Preview != nil && cfg.Surface != nil && cfg.Output != nil
	if c.cfg.Notifier == nil {
		c.cfg.Notifier = logNotifier{}
	}
	if c.cfg.Prompter == nil {
		c.cfg.Prompter = AlwaysGrant
	}
	if c.cfg.Indicator == nil {
		c.cfg.Indicator = nopIndicator{}
	}
	if c.cfg.Observer == nil {
		c.cfg.Observer = nopObserver{}
	}
	if c.cfg.JPEGQuality <= 0 || c.cfg.JPEGQuality > 100 {
		c.cfg.JPEGQuality = 92
	}
	if !c.enabled {
		debug.Info("Capture component disabled: preview, surface and output slot are all required")
	}
	return c
}

// Enabled reports whether all required hooks were provided.
func (c *Capturer) Enabled() bool { return c.enabled }

// State returns the current state.
func (c *Capturer) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Session returns the active session, or nil.
func (c *Capturer) Session() *Session {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.session
}

// RequestAccess asks for the camera and returns the pending request. ctx
// bounds the whole request, prompt included; there is no other timeout.
//
// While Active it returns an already resolved request carrying the current
// session; while another request is pending it returns that request.
// A disabled Capturer returns a resolved, empty result.
func (c *Capturer) RequestAccess(ctx context.Context) *AccessRequest {
	if !c.enabled {
		return resolvedRequest(AccessResult{})
	}

	c.mu.Lock()
	switch c.state {
	case StateActive:
		s := c.session
		c.mu.Unlock()
		return resolvedRequest(AccessResult{Session: s})
	case StateRequesting:
		p := c.pending
		c.mu.Unlock()
		return p
	}

	if c.cfg.Device == nil {
		c.mu.Unlock()
		err := &Error{Kind: KindCapabilityUnsupported, Err: camera.ErrUnsupported}
		c.reportAccess(err)
		return resolvedRequest(AccessResult{Err: err})
	}

	reqCtx, cancel := context.WithCancel(ctx)
	req := newAccessRequest(cancel)
	c.state = StateRequesting
	c.pending = req
	c.mu.Unlock()

	debug.Live("Camera access requested (%s)", c.cfg.Device.Name())
	go c.runAccess(reqCtx, req)
	return req
}

func (c *Capturer) runAccess(ctx context.Context, req *AccessRequest) {
	defer req.cancel()

	s, err := c.acquire(ctx)

	c.mu.Lock()
	if c.pending != req {
		// Released while we were waiting: the session, if any, is not wanted.
		c.mu.Unlock()
		if s != nil {
			s.stop()
			s.stopTracks()
		}
		if err == nil {
			err = &Error{Kind: KindAccessDenied, Err: context.Canceled}
		}
		// Whoever released already knows; other pages get no alert.
		c.observeAccess(err)
		req.resolve(AccessResult{Err: err})
		return
	}
	c.pending = nil
	if err != nil {
		c.state = StateIdle
		c.mu.Unlock()
		c.reportAccess(err)
		req.resolve(AccessResult{Err: err})
		return
	}
	c.state = StateActive
	c.session = s
	if err := c.cfg.Indicator.On(); err != nil {
		debug.Error(err)
	}
	c.mu.Unlock()

	go c.pump(s)

	debug.Session(s.ID, "opened on "+s.Device)
	debug.Access("granted")
	c.cfg.Observer.ObserveAccess("granted")
	c.cfg.Observer.ObserveSession(true)
	c.cfg.Notifier.Notify(noticeReady)
	req.resolve(AccessResult{Session: s})
}

// acquire runs the prompt, opens the device and waits for the first frame to
// reach the preview. It holds no lock.
func (c *Capturer) acquire(ctx context.Context) (*Session, error) {
	dev := c.cfg.Device

	granted, err := c.cfg.Prompter.Prompt(ctx, dev.Name())
	if err != nil {
		return nil, &Error{Kind: KindAccessDenied, Err: err}
	}
	if !granted {
		return nil, &Error{Kind: KindAccessDenied, Err: errPromptDenied}
	}
	debug.Access("prompt granted")

	stream, err := dev.Open(ctx)
	if err != nil {
		return nil, classifyOpen(err)
	}

	s := newSession(dev.Name(), stream)

	img, err := firstFrame(ctx, stream)
	if err != nil {
		s.stop()
		s.stopTracks()
		return nil, classifyOpen(err)
	}
	c.cfg.Preview.Show(img)
	return s, nil
}

// firstFrame reads until the stream yields a frame, tolerating the same
// missed frames as pump.
func firstFrame(ctx context.Context, stream camera.Stream) (image.Image, error) {
	for missed := 0; ; missed++ {
		img, err := stream.ReadFrame(ctx)
		if err == nil || missed == maxMissedFrames || !missedFrame(err) || ctx.Err() != nil {
			return img, err
		}
		debug.Live("Camera: first frame missed (%d/%d): %v", missed+1, maxMissedFrames, err)
	}
}

// missedFrame reports whether err costs one frame but leaves the stream usable.
func missedFrame(err error) bool {
	return errors.Is(err, camera.ErrFrameTimeout) || errors.Is(err, camera.ErrBadFrame)
}

// pump keeps the preview fed until the session is stopped or the stream fails.
func (c *Capturer) pump(s *Session) {
	defer close(s.pumped)
	missed := 0
	for {
		img, err := s.stream.ReadFrame(s.pumpCtx)
		if err != nil {
			if s.pumpCtx.Err() != nil {
				return
			}
			if missedFrame(err) && missed < maxMissedFrames {
				missed++
				debug.Live("Camera: frame missed (%d/%d): %v", missed, maxMissedFrames, err)
				continue
			}
			c.endSession(s, err)
			return
		}
		missed = 0
		c.cfg.Preview.Show(img)
	}
}

// endSession handles a stream failure: Active -> Idle.
func (c *Capturer) endSession(s *Session, cause error) {
	c.mu.Lock()
	if c.session != s {
		c.mu.Unlock()
		return
	}
	c.session = nil
	c.state = StateIdle
	c.indicatorOffLocked()
	c.mu.Unlock()

	s.stop()
	s.stopTracks()
	c.cfg.Preview.Clear()
	debug.Session(s.ID, "stream failed: "+cause.Error())
	c.cfg.Observer.ObserveSession(false)
	c.cfg.Notifier.Notify(noticeStreamLost)
}

// CapturePhoto copies the current preview frame into the 320x240 surface,
// encodes it and overwrites the output slot. Without an active session it
// fails with ErrCaptureWithoutSession and leaves the slot untouched.
func (c *Capturer) CapturePhoto() (Frame, error) {
	if !c.enabled {
		return Frame{}, nil
	}

	c.mu.Lock()
	if c.state != StateActive || c.session == nil {
		c.mu.Unlock()
		err := &Error{Kind: KindCaptureWithoutSession, Err: errNoSession}
		c.reportCapture(err, 0)
		return Frame{}, err
	}

	img, _ := c.cfg.Preview.Frame()
	if img == nil {
		c.mu.Unlock()
		err := &Error{Kind: KindCaptureWithoutSession, Err: errNoFrame}
		c.reportCapture(err, 0)
		return Frame{}, err
	}

	start := time.Now()
	c.cfg.Surface.Draw(img)
	url, err := c.cfg.Surface.DataURL(c.cfg.JPEGQuality)
	elapsed := time.Since(start)
	if err != nil {
		c.mu.Unlock()
		cerr := &Error{Kind: KindEncodeFailed, Err: err}
		c.reportCapture(cerr, elapsed)
		return Frame{}, cerr
	}
	c.cfg.Output.Set(url)
	c.mu.Unlock()

	frame := Frame{DataURL: url, Width: Width, Height: Height, CapturedAt: time.Now()}
	debug.Capture(frame.Width, frame.Height, len(url))
	c.cfg.Observer.ObserveCapture("ok", elapsed)
	c.cfg.Notifier.Notify(noticeCaptured)
	return frame, nil
}

// ReleaseSession stops every track of the active stream and returns to Idle.
// A pending access request is cancelled. Safe to call in any state.
func (c *Capturer) ReleaseSession() {
	if !c.enabled {
		return
	}

	c.mu.Lock()
	pending := c.pending
	c.pending = nil
	s := c.session
	c.session = nil
	c.state = StateIdle
	if s != nil {
		c.indicatorOffLocked()
	}
	c.mu.Unlock()

	if pending != nil {
		pending.Cancel()
	}
	if s == nil {
		return
	}

	s.stop()
	s.stopTracks()
	<-s.pumped
	c.cfg.Preview.Clear()
	debug.Session(s.ID, "released")
	c.cfg.Observer.ObserveSession(false)
}

func (c *Capturer) indicatorOffLocked() {
	if err := c.cfg.Indicator.Off(); err != nil {
		debug.Error(err)
	}
}

func (c *Capturer) reportAccess(err error) {
	c.cfg.Notifier.Notify(errorNotice(c.observeAccess(err)))
}

// observeAccess logs and counts a failed request without notifying anyone.
func (c *Capturer) observeAccess(err error) *Error {
	var cerr *Error
	if !errors.As(err, &cerr) {
		cerr = &Error{Kind: KindDeviceUnavailable, Err: err}
	}
	debug.Access("failed: " + cerr.Error())
	c.cfg.Observer.ObserveAccess(cerr.Kind.String())
	return cerr
}

func (c *Capturer) reportCapture(err *Error, elapsed time.Duration) {
	debug.Error(err)
	c.cfg.Observer.ObserveCapture(err.Kind.String(), elapsed)
	c.cfg.Notifier.Notify(errorNotice(err))
}
