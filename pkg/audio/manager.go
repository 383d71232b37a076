// Package audio plays generated speech on the local speaker and captures
// microphone or file input for live sessions.
package audio

import (
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/gopxl/beep/v2"
	"github.com/gopxl/beep/v2/effects"
	"github.com/gopxl/beep/v2/speaker"

	"giggleglitch/pkg/pcm"
)

// DeviceSampleRate is the rate the speaker is opened at. Buffers at other
// rates are resampled.
const DeviceSampleRate = beep.SampleRate(48000)

var (
	speakerMu   sync.Mutex
	speakerInit bool
)

// initSpeaker opens the default output device once per process.
func initSpeaker() error {
	speakerMu.Lock()
	defer speakerMu.Unlock()
	if speakerInit {
		return nil
	}
	if err := speaker.Init(DeviceSampleRate, DeviceSampleRate.N(time.Second/10)); err != nil {
		slog.Error("Failed to initialize speaker", "error", err)
		return fmt.Errorf("failed to initialize speaker: %w", err)
	}
	speakerInit = true
	return nil
}

// Manager plays one buffer at a time on the speaker, with volume and pause.
type Manager struct {
	mu       sync.RWMutex
	ctrl     *beep.Ctrl
	volume   float64
	isPaused bool
	streamer *effects.Volume
	track    beep.StreamSeeker
	rate     beep.SampleRate
}

// New creates a Manager at full volume.
func New() *Manager {
	return &Manager{volume: 1.0}
}

// Play starts buf, replacing anything already playing. onComplete runs when
// the buffer finishes, not when it is stopped.
func (m *Manager) Play(buf *pcm.AudioBuffer, onComplete func()) error {
	if buf == nil || buf.Frames() == 0 {
		return pcm.ErrEmpty
	}
	if err := initSpeaker(); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.stopLocked()

	track := NewBufferStreamer(buf)
	rate := beep.SampleRate(buf.SampleRate)
	resampled := beep.Resample(3, rate, DeviceSampleRate, track)
	vol := &effects.Volume{
		Streamer: resampled,
		Base:     2,
		Volume:   volumeToPower(m.volume),
		Silent:   m.volume <= 0.01,
	}
	ctrl := &beep.Ctrl{Streamer: vol}

	m.streamer = vol
	m.track = track
	m.rate = rate
	m.ctrl = ctrl
	m.isPaused = false

	speaker.Play(beep.Seq(ctrl, beep.Callback(func() {
		// leave the speaker goroutine before taking the lock
		go func() {
			m.mu.Lock()
			finished := m.ctrl == ctrl
			if finished {
				m.ctrl = nil
				m.track = nil
			}
			m.mu.Unlock()
			if finished && onComplete != nil {
				onComplete()
			}
		}()
	})))
	slog.Debug("Audio: Playing buffer", "duration", buf.Duration(), "rate", buf.SampleRate)
	return nil
}

// Pause pauses current playback.
func (m *Manager) Pause() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.ctrl != nil {
		speaker.Lock()
		m.ctrl.Paused = true
		speaker.Unlock()
		m.isPaused = true
	}
}

// Resume resumes paused playback.
func (m *Manager) Resume() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.ctrl != nil && m.isPaused {
		speaker.Lock()
		m.ctrl.Paused = false
		speaker.Unlock()
		m.isPaused = false
	}
}

// Stop stops current playback.
func (m *Manager) Stop() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.stopLocked()
}

func (m *Manager) stopLocked() {
	if m.ctrl != nil {
		speaker.Lock()
		m.ctrl.Streamer = nil
		speaker.Unlock()
		m.ctrl = nil
		m.track = nil
		m.isPaused = false
	}
}

// IsPlaying returns true if audio is playing and not paused.
func (m *Manager) IsPlaying() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.ctrl != nil && !m.isPaused
}

// IsBusy returns true if audio is loaded, playing or paused.
func (m *Manager) IsBusy() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.ctrl != nil
}

// SetVolume sets playback volume (0.0 to 1.0).
func (m *Manager) SetVolume(vol float64) {
	m.mu.Lock()
	defer m.mu.Unlock()

	vol = clampVolume(vol)
	m.volume = vol
	if m.streamer != nil {
		speaker.Lock()
		m.streamer.Volume = volumeToPower(vol)
		m.streamer.Silent = vol <= 0.01
		speaker.Unlock()
	}
}

// Volume returns the current volume level.
func (m *Manager) Volume() float64 {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.volume
}

// Remaining returns how much of the current buffer is left to play.
func (m *Manager) Remaining() time.Duration {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.track == nil || m.rate == 0 {
		return 0
	}
	speaker.Lock()
	left := m.track.Len() - m.track.Position()
	speaker.Unlock()
	if left < 0 {
		return 0
	}
	return m.rate.D(left)
}
