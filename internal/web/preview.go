package web

import (
	"bytes"
	"context"
	"image/jpeg"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/cjeanneret/SnapGo/internal/debug"
)

const (
	// writeWait is how long a single frame write may take.
	writeWait = 5 * time.Second

	// pongWait is how long to wait for a pong response.
	pongWait = 60 * time.Second

	// pingPeriod must be less than pongWait.
	pingPeriod = (pongWait * 9) / 10

	previewQuality = 70
)

// idleMessage is sent as text when the preview goes blank.
const idleMessage = `{"live":false}`

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 64 * 1024,
}

// HandlePreviewWS streams the live preview as binary JPEG messages, at most
// one every PreviewInterval. A blank preview is announced with idleMessage.
func (h *Handlers) HandlePreviewWS(w http.ResponseWriter, r *http.Request) {
	if h.Preview == nil {
		http.Error(w, "camera not configured", http.StatusServiceUnavailable)
		return
	}
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		debug.Verbose("preview upgrade failed: %v", err)
		return
	}
	defer conn.Close()

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()
	go readPump(conn, cancel)

	debug.Verbose("Preview client connected from %s", r.RemoteAddr)
	h.writePump(ctx, conn)
	debug.Verbose("Preview client %s gone", r.RemoteAddr)
}

// readPump drains the client side so pongs and close frames are seen.
func readPump(conn *websocket.Conn, cancel context.CancelFunc) {
	defer cancel()
	conn.SetReadLimit(512)
	conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
	}
}

// writePump is the only writer on conn.
func (h *Handlers) writePump(ctx context.Context, conn *websocket.Conn) {
	ping := time.NewTicker(pingPeriod)
	defer ping.Stop()

	frames := make(chan []byte)
	go h.encodeFrames(ctx, frames)

	for {
		select {
		case <-ctx.Done():
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			conn.WriteMessage(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
			return

		case data := <-frames:
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			kind := websocket.BinaryMessage
			if data == nil {
				kind, data = websocket.TextMessage, []byte(idleMessage)
			}
			if err := conn.WriteMessage(kind, data); err != nil {
				return
			}

		case <-ping.C:
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// encodeFrames waits for preview updates and sends each one as JPEG bytes,
// or nil for a blank preview.
func (h *Handlers) encodeFrames(ctx context.Context, out chan<- []byte) {
	img, seq := h.Preview.Frame()
	var buf bytes.Buffer
	for {
		var data []byte
		if img != nil {
			buf.Reset()
			if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: previewQuality}); err != nil {
				debug.Error(err)
			} else {
				data = append([]byte(nil), buf.Bytes()...)
			}
		}
		select {
		case out <- data:
		case <-ctx.Done():
			return
		}

		if h.PreviewInterval > 0 {
			t := time.NewTimer(h.PreviewInterval)
			select {
			case <-t.C:
			case <-ctx.Done():
				t.Stop()
				return
			}
		}

		var err error
		img, seq, err = h.Preview.Next(ctx, seq)
		if err != nil {
			return
		}
	}
}
