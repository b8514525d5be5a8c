package capture

import (
	"context"
	"image"
	"sync"
)

// Preview is the live preview surface: it holds the latest frame of the
// active stream and wakes up anyone watching it.
type Preview struct {
	mu      sync.Mutex
	frame   image.Image
	seq     uint64
	changed chan struct{}
}

// NewPreview returns an empty preview.
func NewPreview() *Preview {
	return &Preview{changed: make(chan struct{})}
}

// Show replaces the displayed frame.
func (p *Preview) Show(img image.Image) {
	p.mu.Lock()
	p.frame = img
	p.bumpLocked()
	p.mu.Unlock()
}

// Clear blanks the preview, e.g. when the session ends.
func (p *Preview) Clear() {
	p.mu.Lock()
	p.frame = nil
	p.bumpLocked()
	p.mu.Unlock()
}

func (p *Preview) bumpLocked() {
	p.seq++
	close(p.changed)
	p.changed = make(chan struct{})
}

// Frame returns the displayed frame (nil when blank) and its sequence number.
func (p *Preview) Frame() (image.Image, uint64) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.frame, p.seq
}

// Live reports whether a frame is displayed.
func (p *Preview) Live() bool {
	img, _ := p.Frame()
	return img != nil
}

// Next blocks until the sequence number moves past after, then returns the
// frame (possibly nil) and the new sequence number.
func (p *Preview) Next(ctx context.Context, after uint64) (image.Image, uint64, error) {
	for {
		p.mu.Lock()
		if p.seq > after {
			img, seq := p.frame, p.seq
			p.mu.Unlock()
			return img, seq, nil
		}
		ch := p.changed
		p.mu.Unlock()

		select {
		case <-ctx.Done():
			return nil, after, ctx.Err()
		case <-ch:
		}
	}
}
