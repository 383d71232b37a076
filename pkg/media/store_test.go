package media

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"giggleglitch/pkg/db"
)

func newStore(t *testing.T) *Store {
	t.Helper()
	d, err := db.Init(db.MemoryPath)
	require.NoError(t, err)
	s := NewStore(d)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestPutGet(t *testing.T) {
	tests := []struct {
		name string
		mime string
		data []byte
	}{
		{"image", "image/png", []byte{0x89, 'P', 'N', 'G', 1, 2, 3}},
		{"audio is compressed", "audio/wav", make([]byte, 48000)},
		{"video", "video/mp4", []byte("ftypmp42")},
	}

	s := newStore(t)
	ctx := context.Background()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			id, err := s.Put(ctx, tt.mime, tt.data)
			require.NoError(t, err)

			it, err := s.Get(ctx, id)
			require.NoError(t, err)
			assert.Equal(t, tt.mime, it.MIMEType)
			assert.Equal(t, tt.data, it.Data)
			assert.WithinDuration(t, time.Now(), it.CreatedAt, time.Minute)
		})
	}

	count, size, err := s.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(3), count)
	assert.Equal(t, int64(7+48000+8), size)
}

func TestPublish(t *testing.T) {
	s := newStore(t)
	url, err := s.Publish(context.Background(), "image/jpeg", []byte{1})
	require.NoError(t, err)
	require.True(t, strings.HasPrefix(url, URLPrefix))

	it, err := s.Get(context.Background(), strings.TrimPrefix(url, URLPrefix))
	require.NoError(t, err)
	assert.Equal(t, "image/jpeg", it.MIMEType)
}

func TestGetUnknown(t *testing.T) {
	s := newStore(t)
	for _, id := range []string{"", "../etc/passwd", "5b0c6a8e-6f8f-4f62-9d37-1b8f8f3c8a11"} {
		_, err := s.Get(context.Background(), id)
		if err != ErrNotFound {
			t.Errorf("Get(%q) = %v, want ErrNotFound", id, err)
		}
	}
}

func TestPutRejectsEmpty(t *testing.T) {
	s := newStore(t)
	_, err := s.Put(context.Background(), "image/png", nil)
	assert.Error(t, err)
}

func TestPrune(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()
	id, err := s.Put(ctx, "image/png", []byte{1})
	require.NoError(t, err)

	n, err := s.Prune(time.Hour)
	require.NoError(t, err)
	assert.Zero(t, n)

	_, err = s.db.Exec("UPDATE media SET created_at = '2000-01-01 00:00:00'")
	require.NoError(t, err)
	n, err = s.Prune(time.Hour)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	_, err = s.Get(ctx, id)
	assert.ErrorIs(t, err, ErrNotFound)
}
