package playback

import (
	"sync/atomic"
	"testing"
	"time"
)

type stopCounter struct{ stops atomic.Int32 }

func (s *stopCounter) Stop() { s.stops.Add(1) }

func TestQueue_ScheduleBackToBack(t *testing.T) {
	q := NewQueue()

	a := q.Schedule(100*time.Millisecond, 200*time.Millisecond)
	b := q.Schedule(110*time.Millisecond, 200*time.Millisecond)
	c := q.Schedule(120*time.Millisecond, 50*time.Millisecond)

	if a.Start != 100*time.Millisecond {
		t.Errorf("first start = %v, want 100ms", a.Start)
	}
	if b.Start != a.End {
		t.Errorf("second start = %v, want %v", b.Start, a.End)
	}
	if c.Start != b.End {
		t.Errorf("third start = %v, want %v", c.Start, b.End)
	}
	if q.Clock() != 550*time.Millisecond {
		t.Errorf("clock = %v, want 550ms", q.Clock())
	}
}

func TestQueue_ScheduleAfterGap(t *testing.T) {
	q := NewQueue()
	q.Schedule(0, 100*time.Millisecond)

	// the device clock moved past the last buffer: play now, not in the past
	e := q.Schedule(time.Second, 100*time.Millisecond)
	if e.Start != time.Second {
		t.Errorf("start = %v, want 1s", e.Start)
	}
	if got := q.Pending(time.Second); got != 1 {
		t.Errorf("pending = %d, want 1 (finished buffer pruned)", got)
	}
}

func TestQueue_InterruptMidPlayback(t *testing.T) {
	q := NewQueue()
	voices := make([]*stopCounter, 3)
	for i := range voices {
		voices[i] = &stopCounter{}
		e := q.Schedule(0, 500*time.Millisecond)
		q.Attach(e, voices[i])
	}
	if q.Clock() != 1500*time.Millisecond {
		t.Fatalf("clock = %v, want 1.5s", q.Clock())
	}

	now := 700 * time.Millisecond
	if n := q.Interrupt(now); n != 3 {
		t.Errorf("discarded = %d, want 3", n)
	}
	for i, v := range voices {
		if v.stops.Load() != 1 {
			t.Errorf("voice %d stopped %d times, want 1", i, v.stops.Load())
		}
	}
	if q.Clock() != now {
		t.Errorf("clock = %v, want %v", q.Clock(), now)
	}

	next := q.Schedule(now, 100*time.Millisecond)
	if next.Start != now {
		t.Errorf("next start = %v, want reset time %v", next.Start, now)
	}
	if q.Pending(now) != 1 {
		t.Errorf("pending = %d, want 1", q.Pending(now))
	}
}

func TestQueue_AttachAfterInterrupt(t *testing.T) {
	q := NewQueue()
	e := q.Schedule(0, time.Second)
	q.Interrupt(0)

	v := &stopCounter{}
	q.Attach(e, v)
	if v.stops.Load() != 1 {
		t.Errorf("late voice not stopped")
	}
}

func TestQueue_Reset(t *testing.T) {
	q := NewQueue()
	q.Schedule(5*time.Second, time.Second)
	q.Reset()
	if q.Clock() != 0 || q.Pending(0) != 0 {
		t.Errorf("reset left clock=%v pending=%d", q.Clock(), q.Pending(0))
	}
}
