// Package playback schedules inbound audio buffers on a virtual clock so
// they play back to back without gaps or overlap.
package playback

import (
	"log/slog"
	"sync"
	"time"
)

// Voice is a buffer handed to an output device that can still be stopped.
type Voice interface {
	Stop()
}

// Entry is one scheduled buffer.
type Entry struct {
	Seq   int
	Start time.Duration
	End   time.Duration
	voice Voice
}

// Queue tracks scheduled buffers and the virtual clock, which is the end of
// the last scheduled buffer. Times are offsets on the output device clock.
type Queue struct {
	mu      sync.Mutex
	clock   time.Duration
	entries []*Entry
	seq     int
}

// NewQueue creates an empty queue with the clock at zero.
func NewQueue() *Queue {
	return &Queue{
		entries: make([]*Entry, 0),
	}
}

// Schedule reserves a slot of length d starting at max(clock, now) and
// advances the clock to its end.
func (q *Queue) Schedule(now, d time.Duration) *Entry {
	q.mu.Lock()
	defer q.mu.Unlock()

	q.pruneLocked(now)
	start := q.clock
	if now > start {
		start = now
	}
	q.seq++
	e := &Entry{Seq: q.seq, Start: start, End: start + d}
	q.clock = e.End
	q.entries = append(q.entries, e)
	slog.Debug("PlaybackQueue: Scheduled buffer", "seq", e.Seq, "start", start, "duration", d, "queue_len", len(q.entries))
	return e
}

// Attach records the voice playing e so an interruption can stop it.
// If e was already discarded the voice is stopped immediately.
func (q *Queue) Attach(e *Entry, v Voice) {
	q.mu.Lock()
	for _, cur := range q.entries {
		if cur == e {
			e.voice = v
			q.mu.Unlock()
			return
		}
	}
	q.mu.Unlock()
	if v != nil {
		v.Stop()
	}
}

// Interrupt stops every scheduled voice, drops the queue and resets the
// clock to now. It returns how many buffers were discarded.
func (q *Queue) Interrupt(now time.Duration) int {
	q.mu.Lock()
	dropped := q.entries
	q.entries = make([]*Entry, 0)
	q.clock = now
	q.mu.Unlock()

	for _, e := range dropped {
		if e.voice != nil {
			e.voice.Stop()
		}
	}
	if len(dropped) > 0 {
		slog.Debug("PlaybackQueue: Interrupted", "discarded", len(dropped), "clock", now)
	}
	return len(dropped)
}

// Pending returns the number of buffers that have not finished by now.
func (q *Queue) Pending(now time.Duration) int {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.pruneLocked(now)
	return len(q.entries)
}

// Clock returns the end of the last scheduled buffer.
func (q *Queue) Clock() time.Duration {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.clock
}

// Reset stops everything and puts the clock back to zero, for a new session.
func (q *Queue) Reset() {
	q.Interrupt(0)
}

func (q *Queue) pruneLocked(now time.Duration) {
	i := 0
	for i < len(q.entries) && q.entries[i].End <= now {
		i++
	}
	if i > 0 {
		q.entries = q.entries[i:]
	}
}
