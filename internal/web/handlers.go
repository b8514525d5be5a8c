package web

import (
	"context"
	"encoding/json"
	"errors"
	"io/fs"
	"net/http"
	"time"

	"golang.org/x/time/rate"

	"github.com/cjeanneret/SnapGo/internal/capture"
	"github.com/cjeanneret/SnapGo/internal/debug"
)

// defaultOpenWait is how long POST /camera/open waits for the access
// outcome before answering 202.
const defaultOpenWait = 2 * time.Second

// maxBodyBytes caps JSON request bodies.
const maxBodyBytes = 1 << 10

// PageConfig holds the values the page needs from config.
type PageConfig struct {
	FieldName      string `json:"field_name"`
	Width          int    `json:"width"`
	Height         int    `json:"height"`
	JPEGQuality    int    `json:"jpeg_quality"`
	PermissionMode string `json:"permission_mode"`
	PreviewFPS     int    `json:"preview_fps"`
}

// Deps are the capture objects the handlers operate on.
type Deps struct {
	Broadcaster *StatusBroadcaster
	Capturer    *capture.Capturer
	Preview     *capture.Preview
	Slot        *capture.FieldSlot
	Prompter    *WebPrompter // nil unless permission is asked on the page
	Page        PageConfig

	CaptureInterval time.Duration // minimum spacing of captures, 0 = unlimited
	PreviewInterval time.Duration // minimum spacing of preview frames
}

// Handlers holds dependencies for HTTP handlers.
type Handlers struct {
	Deps
	limiter  *rate.Limiter
	openWait time.Duration
	staticFS fs.FS
}

// NewHandlers creates handlers with the given dependencies.
// If d.Capturer is nil or disabled, camera routes return 503 Service Unavailable.
func NewHandlers(d Deps, staticFS fs.FS) *Handlers {
	limit := rate.Inf
	if d.CaptureInterval > 0 {
		limit = rate.Every(d.CaptureInterval)
	}
	return &Handlers{
		Deps:     d,
		limiter:  rate.NewLimiter(limit, 1),
		openWait: defaultOpenWait,
		staticFS: staticFS,
	}
}

type statusResponse struct {
	Status  string `json:"status"`
	Session string `json:"session,omitempty"`
}

type stateResponse struct {
	State         string `json:"state"`
	Session       string `json:"session,omitempty"`
	PromptPending bool   `json:"prompt_pending"`
}

type photoResponse struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

type errorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// statusFor maps a capture error kind to an HTTP status.
func statusFor(k capture.Kind) int {
	switch k {
	case capture.KindCapabilityUnsupported:
		return http.StatusNotImplemented
	case capture.KindAccessDenied:
		return http.StatusForbidden
	case capture.KindDeviceUnavailable:
		return http.StatusServiceUnavailable
	case capture.KindCaptureWithoutSession:
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

func writeCaptureError(w http.ResponseWriter, err error) {
	k := capture.KindOf(err)
	writeJSON(w, statusFor(k), errorResponse{Error: k.String(), Message: k.Message()})
}

func (h *Handlers) available(w http.ResponseWriter) bool {
	if h.Capturer == nil || !h.Capturer.Enabled() {
		http.Error(w, "camera not configured", http.StatusServiceUnavailable)
		return false
	}
	return true
}

// HandleConfig returns the page configuration as JSON.
func (h *Handlers) HandleConfig(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.Page)
}

// ServeIndex serves the main HTML page (root path only).
func (h *Handlers) ServeIndex(w http.ResponseWriter, r *http.Request) {
	data, err := fs.ReadFile(h.staticFS, "index.html")
	if err != nil {
		http.Error(w, "not found", http.StatusNotFound)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Write(data)
}

// HandleOpen handles POST /camera/open. The request outlives the HTTP call:
// when the outcome is not known within openWait it answers 202 and the
// result reaches the page as a notice.
func (h *Handlers) HandleOpen(w http.ResponseWriter, r *http.Request) {
	if !h.available(w) {
		return
	}
	req := h.Capturer.RequestAccess(context.Background())

	timer := time.NewTimer(h.openWait)
	defer timer.Stop()
	select {
	case <-req.Done():
	case <-timer.C:
		writeJSON(w, http.StatusAccepted, statusResponse{Status: "pending"})
		return
	case <-r.Context().Done():
		return
	}

	res, _ := req.Result()
	if res.Err != nil {
		writeCaptureError(w, res.Err)
		return
	}
	writeJSON(w, http.StatusOK, statusResponse{Status: "active", Session: res.Session.ID})
}

// HandlePermission handles POST /camera/permission {"granted": bool}.
func (h *Handlers) HandlePermission(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	var body struct {
		Granted *bool `json:"granted"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil || body.Granted == nil {
		http.Error(w, `body must be {"granted": true|false}`, http.StatusBadRequest)
		return
	}
	if h.Prompter == nil {
		http.Error(w, ErrNoPrompt.Error(), http.StatusConflict)
		return
	}
	if err := h.Prompter.Answer(*body.Granted); err != nil {
		if errors.Is(err, ErrNoPrompt) {
			http.Error(w, err.Error(), http.StatusConflict)
			return
		}
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// HandleCapture handles POST /camera/capture.
func (h *Handlers) HandleCapture(w http.ResponseWriter, r *http.Request) {
	if !h.available(w) {
		return
	}
	// Only captures that can succeed spend a token.
	if h.Capturer.State() == capture.StateActive && !h.limiter.Allow() {
		writeJSON(w, http.StatusTooManyRequests, errorResponse{Error: "rate_limited", Message: "Too many captures, slow down."})
		return
	}
	frame, err := h.Capturer.CapturePhoto()
	if err != nil {
		writeCaptureError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, photoResponse{Name: h.slotName(), Value: frame.DataURL})
}

// HandleRelease handles POST /camera/release, sent as a beacon when the page unloads.
func (h *Handlers) HandleRelease(w http.ResponseWriter, r *http.Request) {
	if h.Capturer != nil {
		h.Capturer.ReleaseSession()
	}
	w.WriteHeader(http.StatusNoContent)
}

// HandlePhoto returns the current slot value, empty until the first capture.
func (h *Handlers) HandlePhoto(w http.ResponseWriter, r *http.Request) {
	if h.Slot == nil {
		http.Error(w, "camera not configured", http.StatusServiceUnavailable)
		return
	}
	writeJSON(w, http.StatusOK, photoResponse{Name: h.Slot.Name(), Value: h.Slot.Value()})
}

// HandleState returns the capture state.
func (h *Handlers) HandleState(w http.ResponseWriter, r *http.Request) {
	if !h.available(w) {
		return
	}
	resp := stateResponse{State: h.Capturer.State().String()}
	if s := h.Capturer.Session(); s != nil {
		resp.Session = s.ID
	}
	if h.Prompter != nil {
		resp.PromptPending = h.Prompter.Pending()
	}
	writeJSON(w, http.StatusOK, resp)
}

// HandleStatusStream handles GET /status/stream for SSE.
func (h *Handlers) HandleStatusStream(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming not supported", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no") // nginx

	ch, unsub := h.Broadcaster.Subscribe()
	defer unsub()

	w.Write([]byte(": connected\n\n"))
	flusher.Flush()
	debug.Verbose("SSE client connected from %s", r.RemoteAddr)

	ticker := time.NewTicker(30 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case msg, ok := <-ch:
			if !ok {
				return
			}
			w.Write([]byte("data: " + msg + "\n\n"))
			flusher.Flush()

		case <-ticker.C:
			w.Write([]byte(": heartbeat\n\n"))
			flusher.Flush()

		case <-r.Context().Done():
			return
		}
	}
}

func (h *Handlers) slotName() string {
	if h.Slot != nil {
		return h.Slot.Name()
	}
	return h.Page.FieldName
}
