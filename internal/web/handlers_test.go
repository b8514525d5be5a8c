package web

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"image/jpeg"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"testing/fstest"
	"time"

	"github.com/gorilla/websocket"

	"github.com/cjeanneret/SnapGo/internal/capture"
	"github.com/cjeanneret/SnapGo/internal/hw/camera"
)

// ---------- helpers ----------

type testRig struct {
	h *Handlers
	c *capture.Capturer
}

func newTestRig(t *testing.T, dev camera.Device, prompter capture.Prompter, web *WebPrompter) *testRig {
	t.Helper()
	b := NewStatusBroadcaster()
	if web != nil {
		web.b = b
		prompter = web
	}
	preview := capture.NewPreview()
	slot := capture.NewFieldSlot("foto_base64")
	cfg := capture.Config{
		Preview:  preview,
		Surface:  capture.NewSurface(),
		Output:   slot,
		Notifier: b.Notifier(),
		Prompter: prompter,
	}
	if dev != nil {
		cfg.Device = dev
	}
	c := capture.New(cfg)
	t.Cleanup(c.ReleaseSession)

	staticFS := fstest.MapFS{
		"index.html": &fstest.MapFile{Data: []byte("<html>test</html>")},
	}
	h := NewHandlers(Deps{
		Broadcaster: b,
		Capturer:    c,
		Preview:     preview,
		Slot:        slot,
		Prompter:    web,
		Page: PageConfig{
			FieldName:      "foto_base64",
			Width:          320,
			Height:         240,
			JPEGQuality:    92,
			PermissionMode: "prompt",
			PreviewFPS:     10,
		},
	}, staticFS)
	return &testRig{h: h, c: c}
}

func synthetic() camera.Device {
	return &camera.SyntheticDevice{Width: 640, Height: 480, Interval: 2 * time.Millisecond}
}

func post(h http.HandlerFunc, path, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(body))
	w := httptest.NewRecorder()
	h(w, req)
	return w
}

func get(h http.HandlerFunc, path string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	h(w, httptest.NewRequest(http.MethodGet, path, nil))
	return w
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.NewDecoder(w.Body).Decode(&v); err != nil {
		t.Fatalf("decode %q: %v", w.Body.String(), err)
	}
	return v
}

// ---------- open / capture / release ----------

func TestHandleCapture_WithoutSession(t *testing.T) {
	rig := newTestRig(t, synthetic(), capture.AlwaysGrant, nil)

	w := post(rig.h.HandleCapture, "/camera/capture", "")

	if w.Code != http.StatusConflict {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusConflict)
	}
	if resp := decode[errorResponse](t, w); resp.Error != "capture_without_session" {
		t.Errorf("error = %q, want capture_without_session", resp.Error)
	}
	if v := rig.h.Slot.Value(); v != "" {
		t.Errorf("slot written without a session: %q", v)
	}
}

func TestHandlers_OpenCaptureRelease(t *testing.T) {
	rig := newTestRig(t, synthetic(), capture.AlwaysGrant, nil)

	w := post(rig.h.HandleOpen, "/camera/open", "")
	if w.Code != http.StatusOK {
		t.Fatalf("open: status = %d, want %d (%s)", w.Code, http.StatusOK, w.Body.String())
	}
	open := decode[statusResponse](t, w)
	if open.Status != "active" || open.Session == "" {
		t.Errorf("open response = %+v", open)
	}

	w = post(rig.h.HandleCapture, "/camera/capture", "")
	if w.Code != http.StatusOK {
		t.Fatalf("capture: status = %d, want %d", w.Code, http.StatusOK)
	}
	photo := decode[photoResponse](t, w)
	if photo.Name != "foto_base64" || !strings.HasPrefix(photo.Value, capture.JPEGDataURLPrefix) {
		t.Errorf("photo = %q, %.40q", photo.Name, photo.Value)
	}

	stored := decode[photoResponse](t, get(rig.h.HandlePhoto, "/camera/photo"))
	if stored.Value != photo.Value {
		t.Error("GET /camera/photo does not return the captured value")
	}

	st := decode[stateResponse](t, get(rig.h.HandleState, "/camera/state"))
	if st.State != "active" || st.Session != open.Session {
		t.Errorf("state = %+v", st)
	}

	if w := post(rig.h.HandleRelease, "/camera/release", ""); w.Code != http.StatusNoContent {
		t.Errorf("release: status = %d, want %d", w.Code, http.StatusNoContent)
	}
	st = decode[stateResponse](t, get(rig.h.HandleState, "/camera/state"))
	if st.State != "idle" || st.Session != "" {
		t.Errorf("state after release = %+v", st)
	}
}

func TestHandleOpen_ErrorStatuses(t *testing.T) {
	cases := []struct {
		name     string
		dev      camera.Device
		prompter capture.Prompter
		want     int
		kind     string
	}{
		{"no_capability", nil, capture.AlwaysGrant, http.StatusNotImplemented, "capability_unsupported"},
		{"denied", synthetic(), capture.AlwaysDeny, http.StatusForbidden, "access_denied"},
		{"busy", &camera.SyntheticDevice{OpenErr: camera.ErrBusy}, capture.AlwaysGrant, http.StatusServiceUnavailable, "device_unavailable"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rig := newTestRig(t, tc.dev, tc.prompter, nil)

			w := post(rig.h.HandleOpen, "/camera/open", "")

			if w.Code != tc.want {
				t.Fatalf("status = %d, want %d", w.Code, tc.want)
			}
			if resp := decode[errorResponse](t, w); resp.Error != tc.kind || resp.Message == "" {
				t.Errorf("response = %+v, want kind %s", resp, tc.kind)
			}
		})
	}
}

func TestHandlers_DisabledCapturer(t *testing.T) {
	h := NewHandlers(Deps{Broadcaster: NewStatusBroadcaster()}, fstest.MapFS{})

	for name, fn := range map[string]http.HandlerFunc{
		"open":    h.HandleOpen,
		"capture": h.HandleCapture,
		"state":   h.HandleState,
		"photo":   h.HandlePhoto,
	} {
		if w := post(fn, "/", ""); w.Code != http.StatusServiceUnavailable {
			t.Errorf("%s: status = %d, want %d", name, w.Code, http.StatusServiceUnavailable)
		}
	}
	if w := post(h.HandleRelease, "/camera/release", ""); w.Code != http.StatusNoContent {
		t.Errorf("release: status = %d, want %d", w.Code, http.StatusNoContent)
	}
}

func TestHandleCapture_RateLimiting(t *testing.T) {
	rig := newTestRig(t, synthetic(), capture.AlwaysGrant, nil)
	rig.h.limiter = NewHandlers(Deps{CaptureInterval: time.Hour}, nil).limiter

	// no session: 409 without spending the token
	if w := post(rig.h.HandleCapture, "/camera/capture", ""); w.Code != http.StatusConflict {
		t.Fatalf("capture before open: status = %d, want %d", w.Code, http.StatusConflict)
	}
	if w := post(rig.h.HandleOpen, "/camera/open", ""); w.Code != http.StatusOK {
		t.Fatalf("open: status = %d", w.Code)
	}
	if w := post(rig.h.HandleCapture, "/camera/capture", ""); w.Code != http.StatusOK {
		t.Fatalf("first capture: status = %d, want %d", w.Code, http.StatusOK)
	}
	w := post(rig.h.HandleCapture, "/camera/capture", "")
	if w.Code != http.StatusTooManyRequests {
		t.Fatalf("second capture: status = %d, want %d", w.Code, http.StatusTooManyRequests)
	}
	if resp := decode[errorResponse](t, w); resp.Error != "rate_limited" || resp.Message == "" {
		t.Errorf("429 body = %+v", resp)
	}
}

// ---------- permission prompt ----------

func TestHandlers_PermissionFlow(t *testing.T) {
	rig := newTestRig(t, synthetic(), nil, NewWebPrompter(nil))
	rig.h.openWait = 20 * time.Millisecond

	w := post(rig.h.HandleOpen, "/camera/open", "")
	if w.Code != http.StatusAccepted {
		t.Fatalf("open: status = %d, want %d", w.Code, http.StatusAccepted)
	}
	if resp := decode[statusResponse](t, w); resp.Status != "pending" {
		t.Errorf("open status = %q, want pending", resp.Status)
	}

	for !rig.h.Prompter.Pending() {
		time.Sleep(time.Millisecond)
	}
	st := decode[stateResponse](t, get(rig.h.HandleState, "/camera/state"))
	if st.State != "requesting" || !st.PromptPending {
		t.Fatalf("state while prompting = %+v", st)
	}

	if w := post(rig.h.HandlePermission, "/camera/permission", `{"granted":true}`); w.Code != http.StatusNoContent {
		t.Fatalf("permission: status = %d, want %d", w.Code, http.StatusNoContent)
	}

	deadline := time.Now().Add(2 * time.Second)
	for rig.c.State() != capture.StateActive {
		if time.Now().After(deadline) {
			t.Fatalf("state = %s after grant, want active", rig.c.State())
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestHandlePermission_BadRequests(t *testing.T) {
	rig := newTestRig(t, synthetic(), nil, NewWebPrompter(nil))

	cases := []struct {
		name string
		body string
		want int
	}{
		{"not_json", "yes please", http.StatusBadRequest},
		{"missing_field", `{}`, http.StatusBadRequest},
		{"oversized", `{"granted":true,"pad":"` + strings.Repeat("x", 2<<10) + `"}`, http.StatusBadRequest},
		{"nothing_pending", `{"granted":true}`, http.StatusConflict},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if w := post(rig.h.HandlePermission, "/camera/permission", tc.body); w.Code != tc.want {
				t.Errorf("status = %d, want %d", w.Code, tc.want)
			}
		})
	}
}

// ---------- config / index ----------

func TestHandleConfig(t *testing.T) {
	rig := newTestRig(t, synthetic(), capture.AlwaysGrant, nil)

	w := get(rig.h.HandleConfig, "/config")

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusOK)
	}
	pc := decode[PageConfig](t, w)
	if pc.FieldName != "foto_base64" || pc.Width != 320 || pc.Height != 240 {
		t.Errorf("config = %+v", pc)
	}
}

func TestServeIndex(t *testing.T) {
	rig := newTestRig(t, synthetic(), capture.AlwaysGrant, nil)

	w := get(rig.h.ServeIndex, "/")

	if w.Code != http.StatusOK {
		t.Errorf("status = %d, want %d", w.Code, http.StatusOK)
	}
	if ct := w.Header().Get("Content-Type"); ct != "text/html; charset=utf-8" {
		t.Errorf("Content-Type = %q, want text/html; charset=utf-8", ct)
	}
	if !strings.Contains(w.Body.String(), "<html>") {
		t.Error("body should contain HTML content")
	}
}

func TestEmbeddedPageHasHiddenField(t *testing.T) {
	data, err := staticFiles.ReadFile("static/index.html")
	if err != nil {
		t.Fatalf("read embedded index: %v", err)
	}
	for _, id := range []string{`id="video"`, `id="open-camera"`, `id="capture"`, `id="foto_base64"`} {
		if !bytes.Contains(data, []byte(id)) {
			t.Errorf("index.html lacks %s", id)
		}
	}
	// "/" only answers GET, so the form must not post to it by default.
	if bytes.Contains(data, []byte(`method="post"`)) && !bytes.Contains(data, []byte(`action=`)) {
		t.Error("photo form posts to the page itself")
	}
}

// ---------- routing, SSE, preview feed ----------

func TestRoutes(t *testing.T) {
	rig := newTestRig(t, synthetic(), capture.AlwaysGrant, nil)
	srv := httptest.NewServer(routes(rig.h))
	defer srv.Close()

	cases := []struct {
		method, path string
		want         int
	}{
		{http.MethodGet, "/", http.StatusOK},
		{http.MethodGet, "/config", http.StatusOK},
		{http.MethodGet, "/camera/state", http.StatusOK},
		{http.MethodGet, "/metrics", http.StatusOK},
		{http.MethodGet, "/camera/open", http.StatusMethodNotAllowed},
		{http.MethodPost, "/camera/capture", http.StatusConflict},
		{http.MethodGet, "/nope", http.StatusNotFound},
	}
	for _, tc := range cases {
		req, _ := http.NewRequest(tc.method, srv.URL+tc.path, nil)
		resp, err := http.DefaultClient.Do(req)
		if err != nil {
			t.Fatalf("%s %s: %v", tc.method, tc.path, err)
		}
		resp.Body.Close()
		if resp.StatusCode != tc.want {
			t.Errorf("%s %s: status = %d, want %d", tc.method, tc.path, resp.StatusCode, tc.want)
		}
	}
}

func TestStatusStream_RelaysNotices(t *testing.T) {
	rig := newTestRig(t, synthetic(), capture.AlwaysGrant, nil)
	srv := httptest.NewServer(routes(rig.h))
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	req, _ := http.NewRequestWithContext(ctx, http.MethodGet, srv.URL+"/status/stream", nil)
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("GET /status/stream: %v", err)
	}
	defer resp.Body.Close()
	if ct := resp.Header.Get("Content-Type"); ct != "text/event-stream" {
		t.Errorf("Content-Type = %q", ct)
	}

	rd := bufio.NewReader(resp.Body)
	line, err := rd.ReadString('\n')
	if err != nil || !strings.HasPrefix(line, ": connected") {
		t.Fatalf("first line = %q, %v", line, err)
	}

	rig.c.CapturePhoto()

	for {
		line, err := rd.ReadString('\n')
		if err != nil {
			t.Fatalf("read: %v", err)
		}
		data, ok := strings.CutPrefix(line, "data: ")
		if !ok {
			continue
		}
		var evt StatusEvent
		if err := json.Unmarshal([]byte(data), &evt); err != nil {
			t.Fatalf("unmarshal %q: %v", data, err)
		}
		if evt.Code == "capture_without_session" && evt.Level == "error" {
			return
		}
	}
}

func TestPreviewWS_StreamsJPEGFrames(t *testing.T) {
	rig := newTestRig(t, synthetic(), capture.AlwaysGrant, nil)
	srv := httptest.NewServer(routes(rig.h))
	defer srv.Close()

	if w := post(rig.h.HandleOpen, "/camera/open", ""); w.Code != http.StatusOK {
		t.Fatalf("open: status = %d", w.Code)
	}

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/preview/ws"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))

	for i := 0; i < 2; i++ {
		kind, data, err := conn.ReadMessage()
		if err != nil {
			t.Fatalf("frame %d: %v", i, err)
		}
		if kind != websocket.BinaryMessage {
			t.Fatalf("frame %d: message type %d, want binary", i, kind)
		}
		img, err := jpeg.Decode(bytes.NewReader(data))
		if err != nil {
			t.Fatalf("frame %d: decode: %v", i, err)
		}
		if img.Bounds().Dx() != 640 {
			t.Errorf("frame %d: width %d, want native 640", i, img.Bounds().Dx())
		}
	}

	rig.c.ReleaseSession()
	for {
		kind, data, err := conn.ReadMessage()
		if err != nil {
			t.Fatalf("waiting for idle message: %v", err)
		}
		if kind == websocket.TextMessage {
			if string(data) != idleMessage {
				t.Errorf("text message = %q, want %q", data, idleMessage)
			}
			return
		}
	}
}
