package api

import (
	"context"
	"log/slog"
	"net/http"
	"runtime"
	"sync"
	"time"

	"giggleglitch/pkg/tracker"
)

// MediaStats reports the size of the media store.
type MediaStats interface {
	Stats(ctx context.Context) (count, bytes int64, err error)
}

// StatsHandler serves usage and process statistics.
type StatsHandler struct {
	tracker *tracker.Tracker
	media   MediaStats
	started time.Time

	mu     sync.Mutex
	maxMem uint64
}

// NewStatsHandler creates a new StatsHandler. media may be nil.
func NewStatsHandler(t *tracker.Tracker, media MediaStats) *StatsHandler {
	return &StatsHandler{tracker: t, media: media, started: time.Now()}
}

// OperationStatsDTO is the per-operation view of the tracker.
type OperationStatsDTO struct {
	CacheHits     int64 `json:"cache_hits"`
	CacheMisses   int64 `json:"cache_misses"`
	APISuccess    int64 `json:"api_success"`
	APIZeroResult int64 `json:"api_zero"`
	APIFailures   int64 `json:"api_errors"`
	HitRate       int64 `json:"hit_rate"`
}

// ProcessStats describes the server process.
type ProcessStats struct {
	MemoryMB    uint64  `json:"memory_mb"`
	MemoryMaxMB uint64  `json:"memory_max_mb"`
	Goroutines  int     `json:"goroutines"`
	UptimeSec   float64 `json:"uptime_sec"`
}

// MediaStatsDTO describes the media store.
type MediaStatsDTO struct {
	Items int64 `json:"items"`
	MB    int64 `json:"mb"`
}

// StatsResponse is the body of GET /api/stats.
type StatsResponse struct {
	Process    ProcessStats                 `json:"process"`
	Media      *MediaStatsDTO               `json:"media,omitempty"`
	Operations map[string]OperationStatsDTO `json:"operations"`
}

func (h *StatsHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	resp := StatsResponse{
		Process:    h.process(),
		Operations: make(map[string]OperationStatsDTO),
	}

	for op, s := range h.tracker.Snapshot() {
		total := s.CacheHits + s.CacheMisses
		hitRate := int64(0)
		if total > 0 {
			hitRate = (s.CacheHits * 100) / total
		}
		resp.Operations[op] = OperationStatsDTO{
			CacheHits:     s.CacheHits,
			CacheMisses:   s.CacheMisses,
			APISuccess:    s.APISuccess,
			APIZeroResult: s.APIZeroResult,
			APIFailures:   s.APIFailures,
			HitRate:       hitRate,
		}
	}

	if h.media != nil {
		count, size, err := h.media.Stats(r.Context())
		if err != nil {
			slog.Warn("Stats: Media store unavailable", "error", err)
		} else {
			resp.Media = &MediaStatsDTO{Items: count, MB: size / 1024 / 1024}
		}
	}

	writeJSON(w, http.StatusOK, resp)
}

func (h *StatsHandler) process() ProcessStats {
	var m runtime.MemStats
	runtime.ReadMemStats(&m)

	h.mu.Lock()
	if m.Sys > h.maxMem {
		h.maxMem = m.Sys
	}
	maxMem := h.maxMem
	h.mu.Unlock()

	return ProcessStats{
		MemoryMB:    bToMb(m.Sys),
		MemoryMaxMB: bToMb(maxMem),
		Goroutines:  runtime.NumGoroutine(),
		UptimeSec:   time.Since(h.started).Seconds(),
	}
}

func bToMb(b uint64) uint64 {
	return b / 1024 / 1024
}
