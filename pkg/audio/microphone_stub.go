//go:build !portaudio

package audio

import (
	"context"
	"errors"
)

// ErrNoMicrophone is returned by builds without PortAudio.
var ErrNoMicrophone = errors.New("microphone capture needs a build with -tags portaudio")

// MicrophoneAvailable reports whether this build can capture from a device.
const MicrophoneAvailable = false

// Microphone is unavailable in this build.
type Microphone struct {
	FrameSize int
}

// NewMicrophone creates a microphone that always fails to open.
func NewMicrophone(frameSize int) *Microphone {
	return &Microphone{FrameSize: frameSize}
}

func (m *Microphone) Open(context.Context) (<-chan []float32, error) {
	return nil, ErrNoMicrophone
}

func (m *Microphone) Close() error { return nil }
