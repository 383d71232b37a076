package api

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"giggleglitch/pkg/audio"
	"giggleglitch/pkg/live"
	"giggleglitch/pkg/pcm"
	"giggleglitch/pkg/playback"
)

// LiveController is a live session bound to the local audio devices.
type LiveController interface {
	Connect(ctx context.Context) error
	Disconnect() error
	Status() live.Status
}

// LiveHandler serves the local live session and the browser relay.
type LiveHandler struct {
	local  LiveController // nil when the host has no audio devices
	dialer live.Dialer
	opts   live.Options
}

// NewLiveHandler creates a new LiveHandler. local may be nil.
func NewLiveHandler(local LiveController, dialer live.Dialer, opts live.Options) *LiveHandler {
	return &LiveHandler{local: local, dialer: dialer, opts: opts}
}

// HandleConnect handles POST /api/live/connect
func (h *LiveHandler) HandleConnect(w http.ResponseWriter, r *http.Request) {
	if h.local == nil {
		http.Error(w, "no local audio devices; use /api/live/ws", http.StatusNotImplemented)
		return
	}
	if err := h.local.Connect(r.Context()); err != nil {
		writeJSON(w, statusFor(err), h.local.Status())
		return
	}
	writeJSON(w, http.StatusOK, h.local.Status())
}

// HandleDisconnect handles POST /api/live/disconnect
func (h *LiveHandler) HandleDisconnect(w http.ResponseWriter, r *http.Request) {
	if h.local == nil {
		http.Error(w, "no local audio devices", http.StatusNotImplemented)
		return
	}
	if err := h.local.Disconnect(); err != nil {
		slog.Warn("Live: Disconnect reported an error", "error", err)
	}
	writeJSON(w, http.StatusOK, h.local.Status())
}

// HandleStatus handles GET /api/live/status
func (h *LiveHandler) HandleStatus(w http.ResponseWriter, r *http.Request) {
	if h.local == nil {
		writeJSON(w, http.StatusOK, live.Status{State: live.Disconnected, Transcripts: []string{}})
		return
	}
	writeJSON(w, http.StatusOK, h.local.Status())
}

// relayCommand is a text frame from the browser.
type relayCommand struct {
	Type string `json:"type"` // "disconnect"
}

// HandleRelay handles GET /api/live/ws. The browser streams 16 kHz PCM as
// binary frames and receives status, audio and stop messages as JSON.
// The session ends with the socket.
func (h *LiveHandler) HandleRelay(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		slog.Warn("Live: WebSocket upgrade failed", "error", err)
		return
	}
	ws := newWSConn(conn)
	defer ws.Close()

	id := uuid.NewString()
	source := audio.NewStreamSource(h.opts.SendBuffer)
	player := newWSPlayer(ws)

	ended := make(chan struct{})
	var endOnce sync.Once

	opts := h.opts
	opts.Notify = func(st live.Status) {
		if err := ws.WriteJSON(wsMessage{Type: "status", Data: st}); err != nil {
			slog.Debug("Live: Relay status not delivered", "session", id, "error", err)
		}
		if st.State == live.Disconnected {
			endOnce.Do(func() { close(ended) })
		}
	}
	ctrl := live.New(h.dialer, source, player, opts)
	defer ctrl.Disconnect()

	slog.Info("Live: Relay opened", "session", id, "remote", r.RemoteAddr)
	if err := ctrl.Connect(r.Context()); err != nil {
		slog.Info("Live: Relay could not connect", "session", id, "error", err)
		return
	}

	readDone := make(chan struct{})
	go func() {
		defer close(readDone)
		for {
			kind, data, err := conn.ReadMessage()
			if err != nil {
				return
			}
			switch kind {
			case websocket.BinaryMessage:
				if err := source.Push(data); err != nil {
					slog.Debug("Live: Relay frame rejected", "session", id, "error", err)
				}
			case websocket.TextMessage:
				var cmd relayCommand
				if json.Unmarshal(data, &cmd) == nil && cmd.Type == "disconnect" {
					return
				}
			}
		}
	}()

	select {
	case <-readDone:
	case <-ended:
	}
	slog.Info("Live: Relay closed", "session", id, "dropped_input", source.Drops())
}

// relayAudio tells the browser to play PCM at an offset on the relay clock.
type relayAudio struct {
	ID         int    `json:"id"`
	AtMs       int64  `json:"atMs"`
	SampleRate int    `json:"sampleRate"`
	PCM        string `json:"pcm"` // base64 16-bit LE mono
}

// wsPlayer schedules reply audio in the browser. Its clock starts when the
// relay opens; the browser anchors its own audio clock to the first message.
type wsPlayer struct {
	ws    *wsConn
	start time.Time
	next  atomic.Int64
}

func newWSPlayer(ws *wsConn) *wsPlayer {
	return &wsPlayer{ws: ws, start: time.Now()}
}

func (p *wsPlayer) Now() time.Duration {
	return time.Since(p.start)
}

func (p *wsPlayer) Schedule(buf *pcm.AudioBuffer, at time.Duration) (playback.Voice, error) {
	id := int(p.next.Add(1))
	raw := pcm.Int16ToBytes(pcm.FloatToInt16(buf.Channels[0]))
	msg := wsMessage{Type: "audio", Data: relayAudio{
		ID:         id,
		AtMs:       at.Milliseconds(),
		SampleRate: buf.SampleRate,
		PCM:        pcm.EncodeBytes(raw),
	}}
	if err := p.ws.WriteJSON(msg); err != nil {
		return nil, err
	}
	return &wsVoice{ws: p.ws, id: id}, nil
}

type wsVoice struct {
	ws      *wsConn
	id      int
	stopped atomic.Bool
}

func (v *wsVoice) Stop() {
	if v.stopped.Swap(true) {
		return
	}
	_ = v.ws.WriteJSON(wsMessage{Type: "stop", Data: map[string]int{"id": v.id}})
}
