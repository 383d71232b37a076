package tracker

import (
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Tracker tracks usage statistics per backend operation ("joke", "visual",
// "speech", ...) and mirrors them into a Prometheus registry.
type Tracker struct {
	mu    sync.RWMutex
	stats map[string]*OperationStats

	registry     *prometheus.Registry
	requests     *prometheus.CounterVec
	duration     *prometheus.HistogramVec
	cache        *prometheus.CounterVec
	liveActive   prometheus.Gauge
	liveFrames   *prometheus.CounterVec
	liveSessions *prometheus.CounterVec
}

// OperationStats holds counters for one operation.
// Fields are accessed atomically.
type OperationStats struct {
	CacheHits     int64 `json:"cache_hits"`
	CacheMisses   int64 `json:"cache_misses"`
	APISuccess    int64 `json:"api_success"`
	APIFailures   int64 `json:"api_failures"`
	APIZeroResult int64 `json:"api_zero_result"` // call succeeded but carried no usable payload
}

// New creates a new Tracker with its own registry.
func New() *Tracker {
	reg := prometheus.NewRegistry()
	t := &Tracker{
		stats:    make(map[string]*OperationStats),
		registry: reg,
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "giggleglitch",
			Name:      "backend_requests_total",
			Help:      "Backend calls by operation and outcome",
		}, []string{"operation", "status"}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "giggleglitch",
			Name:      "backend_request_duration_seconds",
			Help:      "Backend call latency",
			Buckets:   []float64{0.25, 0.5, 1, 2, 5, 10, 30, 60, 180, 600},
		}, []string{"operation"}),
		cache: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "giggleglitch",
			Name:      "cache_lookups_total",
			Help:      "Memoized media lookups by result",
		}, []string{"operation", "result"}),
		liveActive: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "giggleglitch",
			Name:      "live_sessions_active",
			Help:      "Open realtime voice sessions",
		}),
		liveSessions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "giggleglitch",
			Name:      "live_sessions_total",
			Help:      "Realtime voice sessions by outcome",
		}, []string{"status"}),
		liveFrames: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "giggleglitch",
			Name:      "live_frames_total",
			Help:      "Realtime audio frames by direction",
		}, []string{"direction"}),
	}
	reg.MustRegister(t.requests, t.duration, t.cache, t.liveActive, t.liveSessions, t.liveFrames)
	return t
}

// getStats returns the stats object for an operation, creating it if needed.
func (t *Tracker) getStats(op string) *OperationStats {
	t.mu.RLock()
	s, ok := t.stats[op]
	t.mu.RUnlock()
	if ok {
		return s
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	if s, ok = t.stats[op]; ok {
		return s
	}
	s = &OperationStats{}
	t.stats[op] = s
	return s
}

// TrackCacheHit records a memoized result served without a backend call.
func (t *Tracker) TrackCacheHit(op string) {
	atomic.AddInt64(&t.getStats(op).CacheHits, 1)
	t.cache.WithLabelValues(op, "hit").Inc()
}

func (t *Tracker) TrackCacheMiss(op string) {
	atomic.AddInt64(&t.getStats(op).CacheMisses, 1)
	t.cache.WithLabelValues(op, "miss").Inc()
}

func (t *Tracker) TrackAPISuccess(op string) {
	atomic.AddInt64(&t.getStats(op).APISuccess, 1)
	t.requests.WithLabelValues(op, "success").Inc()
}

func (t *Tracker) TrackAPIFailure(op string) {
	atomic.AddInt64(&t.getStats(op).APIFailures, 1)
	t.requests.WithLabelValues(op, "failure").Inc()
}

func (t *Tracker) TrackAPIZero(op string) {
	atomic.AddInt64(&t.getStats(op).APIZeroResult, 1)
	t.requests.WithLabelValues(op, "empty").Inc()
}

// ObserveLatency records how long a backend call took.
func (t *Tracker) ObserveLatency(op string, d time.Duration) {
	t.duration.WithLabelValues(op).Observe(d.Seconds())
}

// LiveOpened marks a realtime session as open.
func (t *Tracker) LiveOpened() {
	t.liveActive.Inc()
	t.liveSessions.WithLabelValues("opened").Inc()
}

// LiveClosed marks a realtime session as closed.
func (t *Tracker) LiveClosed() {
	t.liveActive.Dec()
	t.liveSessions.WithLabelValues("closed").Inc()
}

// LiveFailed records a session that never reached streaming.
func (t *Tracker) LiveFailed() {
	t.liveSessions.WithLabelValues("failed").Inc()
}

// LiveFrame counts one audio frame; direction is "in", "out" or "dropped".
func (t *Tracker) LiveFrame(direction string) {
	t.liveFrames.WithLabelValues(direction).Inc()
}

// Snapshot returns a copy of the current stats.
func (t *Tracker) Snapshot() map[string]OperationStats {
	t.mu.RLock()
	defer t.mu.RUnlock()

	result := make(map[string]OperationStats, len(t.stats))
	for k, v := range t.stats {
		result[k] = OperationStats{
			CacheHits:     atomic.LoadInt64(&v.CacheHits),
			CacheMisses:   atomic.LoadInt64(&v.CacheMisses),
			APISuccess:    atomic.LoadInt64(&v.APISuccess),
			APIFailures:   atomic.LoadInt64(&v.APIFailures),
			APIZeroResult: atomic.LoadInt64(&v.APIZeroResult),
		}
	}
	return result
}

// Registry exposes the Prometheus registry.
func (t *Tracker) Registry() *prometheus.Registry {
	return t.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (t *Tracker) Handler() http.Handler {
	return promhttp.HandlerFor(t.registry, promhttp.HandlerOpts{})
}
