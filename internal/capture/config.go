package capture

import (
	"context"
	"time"

	"github.com/cjeanneret/SnapGo/internal/hw/camera"
)

// Prompter asks the person in front of the page whether the camera may be used.
// It may block for as long as nobody answers; ctx cancels the prompt.
type Prompter interface {
	Prompt(ctx context.Context, device string) (bool, error)
}

// PromptFunc adapts a function to Prompter.
type PromptFunc func(ctx context.Context, device string) (bool, error)

func (f PromptFunc) Prompt(ctx context.Context, device string) (bool, error) { return f(ctx, device) }

// Static prompters for hosts without an interactive permission UI.
var (
	AlwaysGrant Prompter = PromptFunc(func(context.Context, string) (bool, error) { return true, nil })
	AlwaysDeny  Prompter = PromptFunc(func(context.Context, string) (bool, error) { return false, nil })
)

// Indicator is a camera-in-use light.
type Indicator interface {
	On() error
	Off() error
}

// Observer receives capture outcomes, e.g. for metrics.
type Observer interface {
	ObserveAccess(result string)
	ObserveCapture(result string, encode time.Duration)
	ObserveSession(active bool)
}

// Config names everything a Capturer operates on. Preview, Surface and
// Output are required: if any of them is missing the Capturer disables itself.
type Config struct {
	Device   camera.Device // nil: the host has no camera capability
	Preview  *Preview
	Surface  *Surface
	Output   Slot
	Notifier Notifier // nil: notices go to the debug log
	Prompter Prompter // nil: AlwaysGrant

	Indicator Indicator // optional
	Observer  Observer  // optional

	JPEGQuality int // 1-100, 0 means 92
}

type nopIndicator struct{}

func (nopIndicator) On() error  { return nil }
func (nopIndicator) Off() error { return nil }

type nopObserver struct{}

func (nopObserver) ObserveAccess(string)                 {}
func (nopObserver) ObserveCapture(string, time.Duration) {}
func (nopObserver) ObserveSession(bool)                  {}
