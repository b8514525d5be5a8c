package web

import (
	"context"
	"errors"
	"sync"
)

// ErrNoPrompt is returned by Answer when no permission prompt is open.
var ErrNoPrompt = errors.New("no permission prompt pending")

// WebPrompter asks for camera permission through the page: it broadcasts a
// prompt event and blocks until POST /camera/permission answers it.
type WebPrompter struct {
	b *StatusBroadcaster

	mu     sync.Mutex
	answer chan bool
}

// NewWebPrompter returns a prompter that publishes on b.
func NewWebPrompter(b *StatusBroadcaster) *WebPrompter {
	return &WebPrompter{b: b}
}

// Prompt implements capture.Prompter. It has no timeout of its own.
func (p *WebPrompter) Prompt(ctx context.Context, device string) (bool, error) {
	ch := make(chan bool, 1)
	p.mu.Lock()
	p.answer = ch
	p.mu.Unlock()
	defer func() {
		p.mu.Lock()
		if p.answer == ch {
			p.answer = nil
		}
		p.mu.Unlock()
	}()

	p.b.Publish(StatusEvent{
		Level: levelPrompt,
		Code:  "permission_request",
		Msg:   "Allow SnapGo to use the camera (" + device + ")?",
	})

	select {
	case ok := <-ch:
		return ok, nil
	case <-ctx.Done():
		p.b.Publish(StatusEvent{Level: levelPrompt, Code: "permission_closed", Msg: "Permission prompt closed."})
		return false, ctx.Err()
	}
}

// Answer resolves the open prompt.
func (p *WebPrompter) Answer(granted bool) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.answer == nil {
		return ErrNoPrompt
	}
	p.answer <- granted
	p.answer = nil
	return nil
}

// Pending reports whether a prompt is waiting for an answer.
func (p *WebPrompter) Pending() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.answer != nil
}
