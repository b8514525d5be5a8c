// Package capture implements the camera capture component: it requests access
// to a camera, keeps a live preview fed from the stream, snapshots the current
// preview frame into a fixed 320x240 offscreen surface, encodes it as a JPEG
// data URL and writes it to an output slot (the hidden form field of a page).
//
// The component has two states, Idle and Active, plus the transient
// Requesting state while an access request waits for the permission prompt.
// Every failure is converted into a user-visible Notice and returned as a
// typed *Error; nothing panics past the component boundary.
package capture
