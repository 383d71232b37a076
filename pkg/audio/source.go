package audio

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"time"

	"github.com/gopxl/beep/v2"
	"github.com/gopxl/beep/v2/wav"

	"giggleglitch/pkg/pcm"
)

// Source produces 16 kHz mono capture frames in [-1, 1]. The channel is
// closed when the source ends or is closed.
type Source interface {
	Open(ctx context.Context) (<-chan []float32, error)
	Close() error
}

// ErrSourceOpen is returned when a source is opened twice.
var ErrSourceOpen = errors.New("capture source already open")

// WAVSource replays a WAV file as if it were a microphone: resampled to
// 16 kHz, mixed to mono and paced in real time.
type WAVSource struct {
	Path      string
	FrameSize int
	Unpaced   bool // deliver frames as fast as they are read

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
}

// Open starts reading the file.
func (w *WAVSource) Open(ctx context.Context) (<-chan []float32, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.cancel != nil {
		return nil, ErrSourceOpen
	}

	f, err := os.Open(w.Path)
	if err != nil {
		return nil, fmt.Errorf("failed to open capture file: %w", err)
	}
	s, format, err := wav.Decode(f)
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("failed to decode capture file: %w", err)
	}
	var stream beep.Streamer = s
	if format.SampleRate != pcm.InputSampleRate {
		stream = beep.Resample(4, format.SampleRate, pcm.InputSampleRate, s)
	}

	frameSize := w.FrameSize
	if frameSize <= 0 {
		frameSize = 4096
	}
	ctx, cancel := context.WithCancel(ctx)
	w.cancel = cancel
	w.done = make(chan struct{})
	out := make(chan []float32, 4)

	slog.Info("Audio: Capturing from file", "path", w.Path, "rate", format.SampleRate, "channels", format.NumChannels)
	go func() {
		defer close(w.done)
		defer close(out)
		defer s.Close()
		w.pump(ctx, stream, frameSize, out)
	}()
	return out, nil
}

func (w *WAVSource) pump(ctx context.Context, stream beep.Streamer, frameSize int, out chan<- []float32) {
	period := beep.SampleRate(pcm.InputSampleRate).D(frameSize)
	var tick <-chan time.Time
	if !w.Unpaced {
		ticker := time.NewTicker(period)
		defer ticker.Stop()
		tick = ticker.C
	}

	buf := make([][2]float64, frameSize)
	for {
		n, ok := stream.Stream(buf)
		if n > 0 {
			frame := make([]float32, n)
			for i := 0; i < n; i++ {
				frame[i] = float32((buf[i][0] + buf[i][1]) / 2)
			}
			select {
			case out <- frame:
			case <-ctx.Done():
				return
			}
		}
		if !ok || n < frameSize {
			if err := stream.Err(); err != nil {
				slog.Warn("Audio: Capture file read failed", "path", w.Path, "error", err)
			}
			return
		}
		if tick != nil {
			select {
			case <-tick:
			case <-ctx.Done():
				return
			}
		}
	}
}

// Close stops reading and waits for the reader to let go of the file.
func (w *WAVSource) Close() error {
	w.mu.Lock()
	cancel, done := w.cancel, w.done
	w.cancel, w.done = nil, nil
	w.mu.Unlock()
	if cancel == nil {
		return nil
	}
	cancel()
	<-done
	return nil
}

// StreamSource is fed 16 kHz little-endian PCM from a network client.
type StreamSource struct {
	mu     sync.Mutex
	out    chan []float32
	closed bool
	drops  int
}

// NewStreamSource creates a source holding up to depth pending frames.
func NewStreamSource(depth int) *StreamSource {
	if depth <= 0 {
		depth = 16
	}
	return &StreamSource{out: make(chan []float32, depth)}
}

// Open returns the frame channel.
func (s *StreamSource) Open(context.Context) (<-chan []float32, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil, errors.New("capture stream closed")
	}
	return s.out, nil
}

// Push converts raw PCM to a frame and queues it. Frames are dropped while
// the queue is full; Push never blocks.
func (s *StreamSource) Push(raw []byte) error {
	buf, err := pcm.ToAudioBuffer(raw, pcm.InputSampleRate, 1)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	select {
	case s.out <- buf.Channels[0]:
	default:
		s.drops++
	}
	return nil
}

// Drops returns how many pushed frames were discarded.
func (s *StreamSource) Drops() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.drops
}

// Close ends the stream. Closing twice is harmless.
func (s *StreamSource) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.closed {
		s.closed = true
		close(s.out)
	}
	return nil
}
