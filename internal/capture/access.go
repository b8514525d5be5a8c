package capture

import (
	"context"
	"sync"
)

// AccessResult is the outcome of an access request: a session on success,
// a *Error otherwise.
type AccessResult struct {
	Session *Session
	Err     error
}

// OK reports whether the request produced a session.
func (r AccessResult) OK() bool { return r.Err == nil && r.Session != nil }

// AccessRequest is a pending camera access request. It resolves once, when
// the prompt is answered and the device opened (or failed), or when cancelled.
type AccessRequest struct {
	done   chan struct{}
	once   sync.Once
	result AccessResult
	cancel context.CancelFunc
}

func newAccessRequest(cancel context.CancelFunc) *AccessRequest {
	return &AccessRequest{done: make(chan struct{}), cancel: cancel}
}

// resolvedRequest returns a request that is already complete.
func resolvedRequest(res AccessResult) *AccessRequest {
	r := newAccessRequest(func() {})
	r.resolve(res)
	return r
}

func (r *AccessRequest) resolve(res AccessResult) {
	r.once.Do(func() {
		r.result = res
		close(r.done)
	})
}

// Done is closed once the request is resolved.
func (r *AccessRequest) Done() <-chan struct{} { return r.done }

// Result returns the outcome, and false while the request is still pending.
func (r *AccessRequest) Result() (AccessResult, bool) {
	select {
	case <-r.done:
		return r.result, true
	default:
		return AccessResult{}, false
	}
}

// Wait blocks until the request resolves or ctx is done. Giving up on the
// wait does not cancel the request; use Cancel for that.
func (r *AccessRequest) Wait(ctx context.Context) (AccessResult, error) {
	select {
	case <-r.done:
		return r.result, nil
	case <-ctx.Done():
		return AccessResult{}, ctx.Err()
	}
}

// Cancel abandons the request, like dismissing the permission prompt.
// The request then resolves with ErrAccessDenied.
func (r *AccessRequest) Cancel() {
	r.cancel()
}
