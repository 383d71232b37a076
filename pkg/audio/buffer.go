package audio

import (
	"errors"
	"fmt"
	"io"

	"github.com/gopxl/beep/v2"
	"github.com/gopxl/beep/v2/wav"

	"giggleglitch/pkg/pcm"
)

// bufferStreamer plays a decoded PCM buffer. Mono buffers are copied to
// both speaker channels.
type bufferStreamer struct {
	buf *pcm.AudioBuffer
	pos int
}

// NewBufferStreamer wraps buf as a seekable beep streamer at the buffer's
// own sample rate.
func NewBufferStreamer(buf *pcm.AudioBuffer) beep.StreamSeeker {
	return &bufferStreamer{buf: buf}
}

func (b *bufferStreamer) Stream(samples [][2]float64) (n int, ok bool) {
	frames := b.buf.Frames()
	if b.pos >= frames {
		return 0, false
	}
	stereo := len(b.buf.Channels) > 1
	for n < len(samples) && b.pos < frames {
		l := float64(b.buf.Sample(0, b.pos))
		r := l
		if stereo {
			r = float64(b.buf.Sample(1, b.pos))
		}
		samples[n][0], samples[n][1] = l, r
		n++
		b.pos++
	}
	return n, true
}

func (b *bufferStreamer) Err() error    { return nil }
func (b *bufferStreamer) Len() int      { return b.buf.Frames() }
func (b *bufferStreamer) Position() int { return b.pos }

func (b *bufferStreamer) Seek(p int) error {
	if p < 0 || p > b.buf.Frames() {
		return fmt.Errorf("seek position %d out of range [0, %d]", p, b.buf.Frames())
	}
	b.pos = p
	return nil
}

// memFile is an in-memory io.WriteSeeker for the WAV encoder, which
// rewrites the header sizes after the data is written.
type memFile struct {
	data []byte
	off  int64
}

func (m *memFile) Write(p []byte) (int, error) {
	end := m.off + int64(len(p))
	if end > int64(len(m.data)) {
		grown := make([]byte, end)
		copy(grown, m.data)
		m.data = grown
	}
	copy(m.data[m.off:], p)
	m.off = end
	return len(p), nil
}

func (m *memFile) Seek(offset int64, whence int) (int64, error) {
	var base int64
	switch whence {
	case io.SeekStart:
	case io.SeekCurrent:
		base = m.off
	case io.SeekEnd:
		base = int64(len(m.data))
	default:
		return 0, errors.New("invalid whence")
	}
	next := base + offset
	if next < 0 {
		return 0, errors.New("negative position")
	}
	m.off = next
	return next, nil
}

// EncodeWAV renders buf as a 16-bit PCM RIFF file.
func EncodeWAV(buf *pcm.AudioBuffer) ([]byte, error) {
	if buf == nil || buf.Frames() == 0 {
		return nil, pcm.ErrEmpty
	}
	channels := len(buf.Channels)
	if channels > 2 {
		channels = 2
	}
	format := beep.Format{
		SampleRate:  beep.SampleRate(buf.SampleRate),
		NumChannels: channels,
		Precision:   2,
	}
	out := &memFile{}
	if err := wav.Encode(out, NewBufferStreamer(buf), format); err != nil {
		return nil, fmt.Errorf("failed to encode wav: %w", err)
	}
	return out.data, nil
}
