package capture

import "fmt"

// State is the lifecycle state of a Capturer.
type State int

const (
	// StateIdle: no session, capture fails.
	StateIdle State = iota
	// StateRequesting: an access request is waiting on the prompt or device.
	// For capture purposes it behaves like Idle.
	StateRequesting
	// StateActive: a session is bound to the preview.
	StateActive
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateRequesting:
		return "requesting"
	case StateActive:
		return "active"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}
