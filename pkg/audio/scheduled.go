package audio

import (
	"sync"
	"time"

	"github.com/gopxl/beep/v2"
	"github.com/gopxl/beep/v2/speaker"

	"giggleglitch/pkg/pcm"
	"giggleglitch/pkg/playback"
)

// ScheduledPlayer mixes buffers that start at given offsets on its own
// sample clock. The clock advances only as the device pulls samples, so
// Now matches what the listener hears.
type ScheduledPlayer struct {
	rate beep.SampleRate

	mu     sync.Mutex
	pos    int // samples rendered so far
	voices []*scheduledVoice
	tmp    [][2]float64
}

type scheduledVoice struct {
	start    int
	streamer beep.Streamer
	done     bool
	player   *ScheduledPlayer
}

// NewScheduledPlayer creates a player rendering at rate. It does not touch
// the speaker until Start.
func NewScheduledPlayer(rate beep.SampleRate) *ScheduledPlayer {
	if rate <= 0 {
		rate = DeviceSampleRate
	}
	return &ScheduledPlayer{rate: rate}
}

// Start hands the player to the speaker.
func (p *ScheduledPlayer) Start() error {
	if err := initSpeaker(); err != nil {
		return err
	}
	speaker.Play(p)
	return nil
}

// Now returns the playback clock.
func (p *ScheduledPlayer) Now() time.Duration {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.rate.D(p.pos)
}

// Schedule queues buf to start at offset at on the playback clock. A start
// time already in the past plays immediately.
func (p *ScheduledPlayer) Schedule(buf *pcm.AudioBuffer, at time.Duration) (playback.Voice, error) {
	if buf == nil || buf.Frames() == 0 {
		return nil, pcm.ErrEmpty
	}
	var s beep.Streamer = NewBufferStreamer(buf)
	if src := beep.SampleRate(buf.SampleRate); src != p.rate {
		s = beep.Resample(3, src, p.rate, s)
	}
	v := &scheduledVoice{start: p.rate.N(at), streamer: s, player: p}

	p.mu.Lock()
	p.voices = append(p.voices, v)
	p.mu.Unlock()
	return v, nil
}

// Active returns the number of voices not yet finished or stopped.
func (p *ScheduledPlayer) Active() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.voices)
}

// Stream renders the mix. It never drains so the speaker keeps pulling.
func (p *ScheduledPlayer) Stream(samples [][2]float64) (n int, ok bool) {
	p.mu.Lock()
	defer p.mu.Unlock()

	for i := range samples {
		samples[i] = [2]float64{}
	}
	if cap(p.tmp) < len(samples) {
		p.tmp = make([][2]float64, len(samples))
	}

	end := p.pos + len(samples)
	live := p.voices[:0]
	for _, v := range p.voices {
		if v.done {
			continue
		}
		if v.start >= end {
			live = append(live, v)
			continue
		}
		offset := v.start - p.pos
		if offset < 0 {
			offset = 0
		}
		want := len(samples) - offset
		tmp := p.tmp[:want]
		got, more := v.streamer.Stream(tmp)
		for i := 0; i < got; i++ {
			samples[offset+i][0] += tmp[i][0]
			samples[offset+i][1] += tmp[i][1]
		}
		if !more || got < want {
			v.done = true
			continue
		}
		live = append(live, v)
	}
	for i := len(live); i < len(p.voices); i++ {
		p.voices[i] = nil
	}
	p.voices = live
	p.pos = end
	return len(samples), true
}

func (p *ScheduledPlayer) Err() error { return nil }

// Stop silences the voice. Stopping twice is harmless.
func (v *scheduledVoice) Stop() {
	v.player.mu.Lock()
	v.done = true
	v.player.mu.Unlock()
}
