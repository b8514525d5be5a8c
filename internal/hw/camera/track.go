package camera

import (
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/cjeanneret/SnapGo/internal/debug"
)

// TrackState is the lifecycle state of a media track.
type TrackState int32

const (
	TrackLive TrackState = iota
	TrackEnded
)

func (s TrackState) String() string {
	switch s {
	case TrackLive:
		return "live"
	case TrackEnded:
		return "ended"
	default:
		return fmt.Sprintf("TrackState(%d)", int32(s))
	}
}

var trackSeq atomic.Uint64

// Track is one media track of a Stream.
type Track struct {
	ID    string
	Kind  string
	Label string

	state  atomic.Int32
	once   sync.Once
	onStop func()
}

// NewTrack creates a live track. onStop, if non-nil, runs once on the first Stop.
func NewTrack(kind, label string, onStop func()) *Track {
	t := &Track{
		ID:     fmt.Sprintf("%s-%d", kind, trackSeq.Add(1)),
		Kind:   kind,
		Label:  label,
		onStop: onStop,
	}
	debug.Track(t.ID, kind, TrackLive.String())
	return t
}

// State returns the current track state.
func (t *Track) State() TrackState {
	return TrackState(t.state.Load())
}

// Stop ends the track. Subsequent calls do nothing.
func (t *Track) Stop() {
	t.once.Do(func() {
		t.state.Store(int32(TrackEnded))
		if t.onStop != nil {
			t.onStop()
		}
		debug.Track(t.ID, t.Kind, TrackEnded.String())
	})
}
