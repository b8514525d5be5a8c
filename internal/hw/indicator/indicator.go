package indicator

import (
	"fmt"
	"sync"

	"github.com/cjeanneret/SnapGo/internal/debug"
	"github.com/cjeanneret/SnapGo/internal/hw/gpio"
)

// LED is a camera-in-use light on a single GPIO output pin.
// It mirrors the browser's camera indicator: lit while a session holds the camera.
type LED struct {
	gpio gpio.Driver
	pin  int

	mu sync.Mutex
	on bool
}

// NewLED configures pin as an output and switches the light off.
func NewLED(g gpio.Driver, pin int) (*LED, error) {
	if err := g.SetupOutput(pin); err != nil {
		return nil, fmt.Errorf("indicator: setup pin %d: %w", pin, err)
	}
	if err := g.WritePin(pin, gpio.Low); err != nil {
		return nil, fmt.Errorf("indicator: write pin %d: %w", pin, err)
	}
	return &LED{gpio: g, pin: pin}, nil
}

// On lights the LED. Repeated calls are cheap no-ops.
func (l *LED) On() error {
	return l.set(true)
}

// Off switches the LED off.
func (l *LED) Off() error {
	return l.set(false)
}

// Lit reports the last state written.
func (l *LED) Lit() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.on
}

func (l *LED) set(on bool) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.on == on {
		return nil
	}
	if err := l.gpio.WritePin(l.pin, gpio.Level(on)); err != nil {
		return err
	}
	l.on = on
	debug.Live("Camera indicator (pin %d) on=%v", l.pin, on)
	return nil
}
