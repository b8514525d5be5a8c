package capture

import (
	"github.com/cjeanneret/SnapGo/internal/debug"
)

// Notice levels.
const (
	LevelInfo  = "info"
	LevelError = "error"
)

// Notice is a user-visible message, the equivalent of a page alert.
type Notice struct {
	Level   string `json:"level"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Notifier delivers notices to the person using the page.
type Notifier interface {
	Notify(n Notice)
}

// NotifierFunc adapts a function to Notifier.
type NotifierFunc func(n Notice)

func (f NotifierFunc) Notify(n Notice) { f(n) }

// logNotifier is used when no Notifier is configured.
type logNotifier struct{}

func (logNotifier) Notify(n Notice) {
	if n.Level == LevelError {
		debug.Info("Notice [%s] %s", n.Code, n.Message)
		return
	}
	debug.Live("Notice [%s] %s", n.Code, n.Message)
}

func errorNotice(err *Error) Notice {
	return Notice{Level: LevelError, Code: err.Kind.String(), Message: err.Kind.Message()}
}

var (
	noticeReady      = Notice{Level: LevelInfo, Code: "camera_ready", Message: "Camera ready."}
	noticeCaptured   = Notice{Level: LevelInfo, Code: "photo_captured", Message: "Photo captured successfully!"}
	noticeStreamLost = Notice{Level: LevelError, Code: "stream_ended", Message: "The camera stream ended. Open the camera again to continue."}
)
