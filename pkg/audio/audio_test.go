package audio

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/gopxl/beep/v2"
	"github.com/gopxl/beep/v2/wav"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"giggleglitch/pkg/pcm"
)

func constBuffer(rate, frames int, v float32) *pcm.AudioBuffer {
	ch := make([]float32, frames)
	for i := range ch {
		ch[i] = v
	}
	return &pcm.AudioBuffer{SampleRate: rate, Channels: [][]float32{ch}}
}

func TestBufferStreamer(t *testing.T) {
	s := NewBufferStreamer(constBuffer(24000, 5, 0.5))
	out := make([][2]float64, 3)

	n, ok := s.Stream(out)
	assert.Equal(t, 3, n)
	assert.True(t, ok)
	assert.Equal(t, [2]float64{0.5, 0.5}, out[0])

	n, ok = s.Stream(out)
	assert.Equal(t, 2, n)
	assert.True(t, ok)

	n, ok = s.Stream(out)
	assert.Equal(t, 0, n)
	assert.False(t, ok)

	require.NoError(t, s.Seek(1))
	assert.Equal(t, 1, s.Position())
	assert.Error(t, s.Seek(6))
}

func TestEncodeWAV(t *testing.T) {
	raw := pcm.Int16ToBytes([]int16{0, 16384, -16384, 32767, -32768})
	buf, err := pcm.ToAudioBuffer(raw, pcm.OutputSampleRate, 1)
	require.NoError(t, err)

	data, err := EncodeWAV(buf)
	require.NoError(t, err)
	assert.Equal(t, "RIFF", string(data[:4]))
	assert.Equal(t, "WAVE", string(data[8:12]))

	s, format, err := wav.Decode(bytes.NewReader(data))
	require.NoError(t, err)
	assert.Equal(t, beep.SampleRate(24000), format.SampleRate)
	assert.Equal(t, 1, format.NumChannels)
	assert.Equal(t, 2, format.Precision)
	assert.Equal(t, 5, s.Len())

	out := make([][2]float64, 5)
	n, _ := s.Stream(out)
	require.Equal(t, 5, n)
	assert.InDelta(t, 0.5, out[1][0], 1e-4)
	assert.InDelta(t, -0.5, out[2][0], 1e-4)
	assert.InDelta(t, -1.0, out[4][0], 1e-4)

	_, err = EncodeWAV(&pcm.AudioBuffer{SampleRate: 24000, Channels: [][]float32{{}}})
	assert.ErrorIs(t, err, pcm.ErrEmpty)
}

func TestScheduledPlayerBackToBack(t *testing.T) {
	p := NewScheduledPlayer(48000)
	_, err := p.Schedule(constBuffer(48000, 480, 0.25), 0)
	require.NoError(t, err)
	_, err = p.Schedule(constBuffer(48000, 480, 0.5), 10*time.Millisecond)
	require.NoError(t, err)
	assert.Equal(t, 2, p.Active())

	out := make([][2]float64, 1200)
	n, ok := p.Stream(out)
	require.Equal(t, 1200, n)
	require.True(t, ok)

	assert.Equal(t, 0.25, out[0][0])
	assert.Equal(t, 0.25, out[479][1])
	assert.Equal(t, 0.5, out[480][0])
	assert.Equal(t, 0.5, out[959][0])
	assert.Equal(t, 0.0, out[960][0])
	assert.Equal(t, 25*time.Millisecond, p.Now())
	assert.Equal(t, 0, p.Active())
}

func TestScheduledPlayerStop(t *testing.T) {
	p := NewScheduledPlayer(48000)
	v, err := p.Schedule(constBuffer(48000, 960, 0.5), 5*time.Millisecond)
	require.NoError(t, err)

	out := make([][2]float64, 480)
	p.Stream(out)
	assert.Equal(t, 0.0, out[0][0])
	assert.Equal(t, 0.5, out[240][0])

	v.Stop()
	v.Stop()
	p.Stream(out)
	for i := range out {
		if out[i][0] != 0 {
			t.Fatalf("sample %d = %v after stop, want silence", i, out[i][0])
		}
	}
	assert.Equal(t, 0, p.Active())
}

func TestScheduledPlayerLateStart(t *testing.T) {
	p := NewScheduledPlayer(48000)
	out := make([][2]float64, 480)
	p.Stream(out)

	// scheduled in the past: plays from the start of the next block
	_, err := p.Schedule(constBuffer(48000, 10, 1), 0)
	require.NoError(t, err)
	p.Stream(out)
	assert.Equal(t, 1.0, out[0][0])
	assert.Equal(t, 0.0, out[10][0])
}

func TestScheduledPlayerResamples(t *testing.T) {
	p := NewScheduledPlayer(48000)
	_, err := p.Schedule(constBuffer(24000, 240, 0.5), 0)
	require.NoError(t, err)

	out := make([][2]float64, 960)
	p.Stream(out)
	assert.InDelta(t, 0.5, out[200][0], 0.05)
	assert.Equal(t, 0.0, out[900][0])
}

func writeWAV(t *testing.T, frames int, v float32) string {
	t.Helper()
	data, err := EncodeWAV(constBuffer(pcm.InputSampleRate, frames, v))
	require.NoError(t, err)
	path := filepath.Join(t.TempDir(), "input.wav")
	require.NoError(t, os.WriteFile(path, data, 0o644))
	return path
}

func TestWAVSource(t *testing.T) {
	src := &WAVSource{Path: writeWAV(t, 10000, 0.5), FrameSize: 4096, Unpaced: true}
	frames, err := src.Open(context.Background())
	require.NoError(t, err)

	var sizes []int
	for f := range frames {
		sizes = append(sizes, len(f))
		assert.InDelta(t, 0.5, f[0], 1e-4)
	}
	assert.Equal(t, []int{4096, 4096, 1808}, sizes)
	require.NoError(t, src.Close())
	require.NoError(t, src.Close())
}

func TestWAVSourceCloseStopsReader(t *testing.T) {
	src := &WAVSource{Path: writeWAV(t, 64000, 0.1), FrameSize: 1600}
	frames, err := src.Open(context.Background())
	require.NoError(t, err)

	<-frames
	_, err = src.Open(context.Background())
	assert.ErrorIs(t, err, ErrSourceOpen)

	require.NoError(t, src.Close())
	for range frames {
		// drain until the reader exits
	}
}

func TestWAVSourceMissingFile(t *testing.T) {
	src := &WAVSource{Path: filepath.Join(t.TempDir(), "missing.wav")}
	_, err := src.Open(context.Background())
	assert.Error(t, err)
}

func TestStreamSource(t *testing.T) {
	s := NewStreamSource(1)
	frames, err := s.Open(context.Background())
	require.NoError(t, err)

	require.NoError(t, s.Push(pcm.Int16ToBytes([]int16{16384, -32768})))
	require.NoError(t, s.Push(pcm.Int16ToBytes([]int16{1})))
	assert.Equal(t, 1, s.Drops())
	assert.ErrorIs(t, s.Push([]byte{1, 2, 3}), pcm.ErrMisaligned)

	f := <-frames
	assert.Equal(t, []float32{0.5, -1}, f)

	require.NoError(t, s.Close())
	require.NoError(t, s.Close())
	require.NoError(t, s.Push(pcm.Int16ToBytes([]int16{1})))
	_, open := <-frames
	assert.False(t, open)
}

func TestMicrophoneStubOrDevice(t *testing.T) {
	if MicrophoneAvailable {
		t.Skip("device build")
	}
	_, err := NewMicrophone(1024).Open(context.Background())
	assert.Error(t, err)
}
