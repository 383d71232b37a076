//go:build portaudio

package audio

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/gordonklaus/portaudio"

	"giggleglitch/pkg/pcm"
)

// Microphone captures the default input device through PortAudio.
type Microphone struct {
	FrameSize int

	mu     sync.Mutex
	stream *portaudio.Stream
	cancel context.CancelFunc
	done   chan struct{}
}

// MicrophoneAvailable reports whether this build can capture from a device.
const MicrophoneAvailable = true

// NewMicrophone creates a microphone reading frameSize samples per frame.
func NewMicrophone(frameSize int) *Microphone {
	return &Microphone{FrameSize: frameSize}
}

// Open initializes PortAudio and starts the input stream.
func (m *Microphone) Open(ctx context.Context) (<-chan []float32, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.stream != nil {
		return nil, ErrSourceOpen
	}
	if m.FrameSize <= 0 {
		m.FrameSize = 4096
	}

	if err := portaudio.Initialize(); err != nil {
		return nil, fmt.Errorf("failed to initialize PortAudio: %w", err)
	}
	in := make([]float32, m.FrameSize)
	stream, err := portaudio.OpenDefaultStream(1, 0, float64(pcm.InputSampleRate), m.FrameSize, in)
	if err != nil {
		portaudio.Terminate()
		return nil, fmt.Errorf("failed to open input stream: %w", err)
	}
	if err := stream.Start(); err != nil {
		stream.Close()
		portaudio.Terminate()
		return nil, fmt.Errorf("failed to start input stream: %w", err)
	}

	ctx, cancel := context.WithCancel(ctx)
	m.stream = stream
	m.cancel = cancel
	m.done = make(chan struct{})
	out := make(chan []float32, 4)
	slog.Info("Audio: Microphone opened", "rate", pcm.InputSampleRate, "frame_size", m.FrameSize)

	go func() {
		defer close(m.done)
		defer close(out)
		for ctx.Err() == nil {
			if err := stream.Read(); err != nil {
				if ctx.Err() == nil {
					slog.Warn("Audio: Microphone read failed", "error", err)
				}
				return
			}
			frame := make([]float32, len(in))
			copy(frame, in)
			select {
			case out <- frame:
			case <-ctx.Done():
				return
			default:
				// capture never waits on the consumer
			}
		}
	}()
	return out, nil
}

// Close stops the stream and releases the device.
func (m *Microphone) Close() error {
	m.mu.Lock()
	stream, cancel, done := m.stream, m.cancel, m.done
	m.stream, m.cancel, m.done = nil, nil, nil
	m.mu.Unlock()
	if stream == nil {
		return nil
	}
	cancel()
	err := stream.Stop()
	<-done
	if cerr := stream.Close(); err == nil {
		err = cerr
	}
	portaudio.Terminate()
	slog.Info("Audio: Microphone closed")
	return err
}
