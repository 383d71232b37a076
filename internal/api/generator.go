package api

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"giggleglitch/pkg/audio"
	"giggleglitch/pkg/generator"
	"giggleglitch/pkg/model"
)

// intentTimeout bounds generator intents. They are detached from the
// request so a reload does not abort a joke half way.
const intentTimeout = 2 * time.Minute

// JokeService is the joke pipeline behind the generator endpoints.
type JokeService interface {
	Snapshot() generator.State
	SelectVibe(v model.Vibe) generator.State
	SetTopic(topic string) generator.State
	FetchJoke(ctx context.Context) generator.State
	RequestAudio(ctx context.Context) (generator.State, error)
	RequestExplanation(ctx context.Context) (generator.State, error)
	EditVisual(ctx context.Context, prompt string) (generator.State, error)
	Subscribe() (<-chan generator.State, func())
}

// GeneratorHandler serves the joke generator intents.
type GeneratorHandler struct {
	svc JokeService
}

// NewGeneratorHandler creates a new GeneratorHandler.
func NewGeneratorHandler(svc JokeService) *GeneratorHandler {
	return &GeneratorHandler{svc: svc}
}

func intentContext(r *http.Request) (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.WithoutCancel(r.Context()), intentTimeout)
}

// HandleState handles GET /api/generator/state
func (h *GeneratorHandler) HandleState(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.svc.Snapshot())
}

// HandleVibe handles POST /api/generator/vibe
func (h *GeneratorHandler) HandleVibe(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Vibe string `json:"vibe"`
	}
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, err)
		return
	}
	v, err := model.ParseVibe(req.Vibe)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, h.svc.SelectVibe(v))
}

// HandleTopic handles POST /api/generator/topic
func (h *GeneratorHandler) HandleTopic(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Topic string `json:"topic"`
	}
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, h.svc.SetTopic(strings.TrimSpace(req.Topic)))
}

// HandleJoke handles POST /api/generator/joke. A failed fetch answers with
// the error status and the state, whose error field carries the message.
func (h *GeneratorHandler) HandleJoke(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := intentContext(r)
	defer cancel()

	st := h.svc.FetchJoke(ctx)
	status := http.StatusOK
	if st.Joke.Status == generator.Failed && st.Joke.Err != nil {
		status = statusFor(st.Joke.Err)
	}
	writeJSON(w, status, st)
}

// HandleAudio handles POST /api/generator/audio
func (h *GeneratorHandler) HandleAudio(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := intentContext(r)
	defer cancel()
	h.respond(w)(h.svc.RequestAudio(ctx))
}

// HandleExplain handles POST /api/generator/explain
func (h *GeneratorHandler) HandleExplain(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := intentContext(r)
	defer cancel()
	h.respond(w)(h.svc.RequestExplanation(ctx))
}

// HandleEditVisual handles POST /api/generator/visual/edit
func (h *GeneratorHandler) HandleEditVisual(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Prompt string `json:"prompt"`
	}
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, err)
		return
	}
	if strings.TrimSpace(req.Prompt) == "" {
		writeError(w, badRequest("prompt is required"))
		return
	}
	ctx, cancel := intentContext(r)
	defer cancel()
	h.respond(w)(h.svc.EditVisual(ctx, req.Prompt))
}

func (h *GeneratorHandler) respond(w http.ResponseWriter) func(generator.State, error) {
	return func(st generator.State, err error) {
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, st)
	}
}

// HandleAudioWAV handles GET /api/generator/audio.wav
func (h *GeneratorHandler) HandleAudioWAV(w http.ResponseWriter, r *http.Request) {
	st := h.svc.Snapshot()
	if !st.Audio.IsReady() || st.Audio.Value.Buffer == nil {
		http.Error(w, "no audio for the current joke", http.StatusNotFound)
		return
	}
	data, err := audio.EncodeWAV(st.Audio.Value.Buffer)
	if err != nil {
		writeError(w, err)
		return
	}
	w.Header().Set("Content-Type", "audio/wav")
	w.Header().Set("Content-Length", strconv.Itoa(len(data)))
	w.Header().Set("Cache-Control", "no-store")
	if _, err := w.Write(data); err != nil {
		slog.Debug("Failed to write speech audio", "error", err)
	}
}

// HandleEvents handles GET /api/generator/ws and pushes every state change
// to the socket until either side goes away.
func (h *GeneratorHandler) HandleEvents(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		slog.Warn("Generator: WebSocket upgrade failed", "error", err)
		return
	}
	ws := newWSConn(conn)
	defer ws.Close()

	states, unsubscribe := h.svc.Subscribe()
	defer unsubscribe()
	done := ws.DiscardReads()

	for {
		select {
		case <-done:
			return
		case st, ok := <-states:
			if !ok {
				return
			}
			if err := ws.WriteJSON(wsMessage{Type: "state", Data: st}); err != nil {
				return
			}
		}
	}
}
