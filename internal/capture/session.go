package capture

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/cjeanneret/SnapGo/internal/hw/camera"
)

// Session wraps an active camera stream. It is owned by the Capturer that
// created it and lives until ReleaseSession or a stream failure.
type Session struct {
	ID        string
	Device    string
	StartedAt time.Time

	stream  camera.Stream
	pumpCtx context.Context
	stop    context.CancelFunc
	pumped  chan struct{}
}

func newSession(device string, stream camera.Stream) *Session {
	ctx, cancel := context.WithCancel(context.Background())
	return &Session{
		ID:        uuid.NewString(),
		Device:    device,
		StartedAt: time.Now(),
		stream:    stream,
		pumpCtx:   ctx,
		stop:      cancel,
		pumped:    make(chan struct{}),
	}
}

// Tracks lists the media tracks of the underlying stream.
func (s *Session) Tracks() []*camera.Track {
	return s.stream.Tracks()
}

// stopTracks ends every track, releasing the hardware.
func (s *Session) stopTracks() {
	for _, t := range s.stream.Tracks() {
		t.Stop()
	}
	_ = s.stream.Stop()
}
