package api

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"giggleglitch/pkg/model"
	"giggleglitch/pkg/probe"
	"giggleglitch/pkg/version"
)

// HealthHandler runs the health probes on demand.
type HealthHandler struct {
	probes []probe.Probe
}

// NewHealthHandler creates a new HealthHandler.
func NewHealthHandler(probes []probe.Probe) *HealthHandler {
	return &HealthHandler{probes: probes}
}

// ServeHTTP answers 200 when every critical probe passes and 503 otherwise.
// Without probes it is a plain liveness check.
func (h *HealthHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if h == nil || len(h.probes) == 0 {
		w.WriteHeader(http.StatusOK)
		if _, err := w.Write([]byte("OK")); err != nil {
			slog.Error("Failed to write health response", "error", err)
		}
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), 10*time.Second)
	defer cancel()

	results := probe.Run(ctx, h.probes)
	status := http.StatusOK
	if !probe.Healthy(results) {
		status = http.StatusServiceUnavailable
	}
	writeJSON(w, status, map[string]any{"ok": status == http.StatusOK, "checks": results})
}

// Handlers groups the endpoint handlers. Nil members leave their routes
// unregistered.
type Handlers struct {
	Generator *GeneratorHandler
	Studio    *StudioHandler
	Chat      *ChatHandler
	Live      *LiveHandler
	Media     *MediaHandler
	Stats     *StatsHandler
	Health    *HealthHandler
	Metrics   http.Handler
}

// NewServer creates and configures the HTTP server.
// shutdown is called after POST /api/shutdown has been answered.
func NewServer(addr string, h Handlers, shutdown func()) *http.Server {
	mux := http.NewServeMux()

	// 1. Health, version, logs
	mux.Handle("GET /health", h.Health)
	mux.HandleFunc("GET /api/version", handleVersion)
	mux.HandleFunc("GET /api/log/latest", handleLatestLog)
	mux.HandleFunc("GET /api/voices", handleVoices)

	// 2. Stats
	if h.Stats != nil {
		mux.Handle("GET /api/stats", h.Stats)
	}
	if h.Metrics != nil {
		mux.Handle("GET /metrics", h.Metrics)
	}

	// 3. Joke generator
	if g := h.Generator; g != nil {
		mux.HandleFunc("GET /api/generator/state", g.HandleState)
		mux.HandleFunc("GET /api/generator/ws", g.HandleEvents)
		mux.HandleFunc("POST /api/generator/vibe", g.HandleVibe)
		mux.HandleFunc("POST /api/generator/topic", g.HandleTopic)
		mux.HandleFunc("POST /api/generator/joke", g.HandleJoke)
		mux.HandleFunc("POST /api/generator/audio", g.HandleAudio)
		mux.HandleFunc("GET /api/generator/audio.wav", g.HandleAudioWAV)
		mux.HandleFunc("POST /api/generator/explain", g.HandleExplain)
		mux.HandleFunc("POST /api/generator/visual/edit", g.HandleEditVisual)
	}

	// 4. Studio
	if s := h.Studio; s != nil {
		mux.HandleFunc("POST /api/studio/image", s.HandleImage)
		mux.HandleFunc("POST /api/studio/edit", s.HandleEdit)
		mux.HandleFunc("POST /api/studio/video", s.HandleVideo)
	}

	// 5. Chat
	if c := h.Chat; c != nil {
		mux.HandleFunc("GET /api/chat/messages", c.HandleList)
		mux.HandleFunc("POST /api/chat/messages", c.HandleSend)
		mux.HandleFunc("DELETE /api/chat/messages", c.HandleReset)
	}

	// 6. Live
	if l := h.Live; l != nil {
		mux.HandleFunc("POST /api/live/connect", l.HandleConnect)
		mux.HandleFunc("POST /api/live/disconnect", l.HandleDisconnect)
		mux.HandleFunc("GET /api/live/status", l.HandleStatus)
		mux.HandleFunc("GET /api/live/ws", l.HandleRelay)
	}

	// 7. Media
	if m := h.Media; m != nil {
		mux.HandleFunc("GET /api/media/{id}", m.HandleGet)
	}

	// 8. Shutdown
	mux.HandleFunc("POST /api/shutdown", func(w http.ResponseWriter, r *http.Request) {
		slog.Info("Graceful shutdown initiated via API")
		w.WriteHeader(http.StatusOK)
		if _, err := w.Write([]byte("Shutting down...")); err != nil {
			slog.Error("Failed to write shutdown response", "error", err)
		}
		// let the response flush first
		go func() {
			time.Sleep(100 * time.Millisecond)
			shutdown()
		}()
	})

	return &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 15 * time.Second,
		// Image generation takes tens of seconds; video lifts its own deadline.
		WriteTimeout: 3 * time.Minute,
		IdleTimeout:  60 * time.Second,
	}
}

func handleVersion(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"version": version.Version})
}

func handleVoices(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, model.Voices)
}
