// Package pcm converts between base64 payloads, 16-bit little-endian linear
// PCM and normalized float sample buffers.
package pcm

import (
	"encoding/base64"
	"encoding/binary"
	"errors"
	"fmt"
	"math"
	"time"
)

const (
	// InputSampleRate is the rate of captured microphone frames.
	InputSampleRate = 16000
	// OutputSampleRate is the rate of synthesized speech and live replies.
	OutputSampleRate = 24000
	// InputMIMEType labels outbound realtime audio.
	InputMIMEType = "audio/pcm;rate=16000"

	bytesPerSample = 2
)

var (
	// ErrMisaligned is returned when a byte buffer does not hold a whole number of frames.
	ErrMisaligned = errors.New("pcm data not aligned to frame size")
	// ErrEmpty is returned when there is no audio to decode.
	ErrEmpty = errors.New("empty audio data")
)

// EncodeFrame base64-encodes the little-endian byte image of samples.
func EncodeFrame(samples []int16) string {
	return EncodeBytes(Int16ToBytes(samples))
}

// EncodeBytes base64-encodes raw PCM bytes.
func EncodeBytes(raw []byte) string {
	return base64.StdEncoding.EncodeToString(raw)
}

// DecodeFrame is the inverse of EncodeFrame and returns the raw bytes.
func DecodeFrame(payload string) ([]byte, error) {
	if payload == "" {
		return nil, ErrEmpty
	}
	raw, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to decode base64 audio: %w", err)
	}
	return raw, nil
}

// Int16ToBytes lays samples out as little-endian bytes.
func Int16ToBytes(samples []int16) []byte {
	out := make([]byte, len(samples)*bytesPerSample)
	for i, s := range samples {
		binary.LittleEndian.PutUint16(out[i*bytesPerSample:], uint16(s))
	}
	return out
}

// BytesToInt16 reinterprets little-endian bytes as samples.
func BytesToInt16(raw []byte) ([]int16, error) {
	if len(raw)%bytesPerSample != 0 {
		return nil, fmt.Errorf("%w: %d bytes", ErrMisaligned, len(raw))
	}
	out := make([]int16, len(raw)/bytesPerSample)
	for i := range out {
		out[i] = int16(binary.LittleEndian.Uint16(raw[i*bytesPerSample:]))
	}
	return out, nil
}

// FloatToInt16 scales samples in [-1, 1] by 32768 and truncates toward zero.
// Values outside the int16 range are clamped.
func FloatToInt16(samples []float32) []int16 {
	out := make([]int16, len(samples))
	for i, f := range samples {
		v := float64(f) * 32768
		switch {
		case v >= math.MaxInt16:
			out[i] = math.MaxInt16
		case v <= math.MinInt16:
			out[i] = math.MinInt16
		default:
			out[i] = int16(v)
		}
	}
	return out
}

// AudioBuffer is de-interleaved normalized audio, one slice per channel.
type AudioBuffer struct {
	SampleRate int
	Channels   [][]float32
}

// ToAudioBuffer interprets raw as interleaved 16-bit samples and normalizes
// each by 1/32768. Input that is not a multiple of 2*channels bytes is rejected.
func ToAudioBuffer(raw []byte, sampleRate, channels int) (*AudioBuffer, error) {
	if channels < 1 {
		return nil, fmt.Errorf("invalid channel count %d", channels)
	}
	if sampleRate <= 0 {
		return nil, fmt.Errorf("invalid sample rate %d", sampleRate)
	}
	frameBytes := bytesPerSample * channels
	if len(raw)%frameBytes != 0 {
		return nil, fmt.Errorf("%w: %d bytes for %d channel(s)", ErrMisaligned, len(raw), channels)
	}

	frames := len(raw) / frameBytes
	buf := &AudioBuffer{SampleRate: sampleRate, Channels: make([][]float32, channels)}
	for c := range buf.Channels {
		buf.Channels[c] = make([]float32, frames)
	}
	for i := 0; i < frames; i++ {
		for c := 0; c < channels; c++ {
			off := (i*channels + c) * bytesPerSample
			s := int16(binary.LittleEndian.Uint16(raw[off:]))
			buf.Channels[c][i] = float32(s) / 32768
		}
	}
	return buf, nil
}

// DecodeToBuffer decodes a base64 payload straight into an AudioBuffer.
func DecodeToBuffer(payload string, sampleRate, channels int) (*AudioBuffer, error) {
	raw, err := DecodeFrame(payload)
	if err != nil {
		return nil, err
	}
	return ToAudioBuffer(raw, sampleRate, channels)
}

// Frames returns the number of sample frames.
func (b *AudioBuffer) Frames() int {
	if b == nil || len(b.Channels) == 0 {
		return 0
	}
	return len(b.Channels[0])
}

// Duration returns the playback length of the buffer.
func (b *AudioBuffer) Duration() time.Duration {
	if b == nil || b.SampleRate == 0 {
		return 0
	}
	return time.Duration(b.Frames()) * time.Second / time.Duration(b.SampleRate)
}

// Sample returns frame i of channel c, falling back to channel 0 for
// mono buffers played on stereo outputs.
func (b *AudioBuffer) Sample(c, i int) float32 {
	if c >= len(b.Channels) {
		c = 0
	}
	return b.Channels[c][i]
}
