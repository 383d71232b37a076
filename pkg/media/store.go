// Package media keeps generated images, videos and speech addressable by id
// so the API can hand out short URLs instead of inline payloads.
package media

import (
	"bytes"
	"compress/gzip"
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"giggleglitch/pkg/db"
)

// URLPrefix is where the API serves stored media.
const URLPrefix = "/api/media/"

// ErrNotFound is returned for an unknown or pruned id.
var ErrNotFound = errors.New("media not found")

// Item is one stored blob.
type Item struct {
	ID        string
	MIMEType  string
	Data      []byte
	CreatedAt time.Time
}

// Store implements media storage on pkg/db.
type Store struct {
	db *db.DB
}

// NewStore creates a store on an initialized database.
func NewStore(d *db.DB) *Store {
	return &Store{db: d}
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

// Put stores data and returns its new id.
func (s *Store) Put(ctx context.Context, mimeType string, data []byte) (string, error) {
	if len(data) == 0 {
		return "", fmt.Errorf("media: empty %s payload", mimeType)
	}
	if mimeType == "" {
		mimeType = "application/octet-stream"
	}

	val, packed := data, false
	// Images and videos are already compressed; raw audio is not.
	if strings.HasPrefix(mimeType, "audio/") {
		if c, err := compress(data); err == nil && len(c) < len(data) {
			val, packed = c, true
		}
	}

	id := uuid.NewString()
	query := `INSERT INTO media (id, mime_type, data, size, compressed, created_at) VALUES (?, ?, ?, ?, ?, ?)`
	now := time.Now().UTC().Format("2006-01-02 15:04:05")
	if _, err := s.db.ExecContext(ctx, query, id, mimeType, val, len(data), packed, now); err != nil {
		return "", fmt.Errorf("media: insert: %w", err)
	}
	return id, nil
}

// Publish stores data and returns the URL it is served at.
func (s *Store) Publish(ctx context.Context, mimeType string, data []byte) (string, error) {
	id, err := s.Put(ctx, mimeType, data)
	if err != nil {
		return "", err
	}
	return URLPrefix + id, nil
}

// Get loads a blob by id.
func (s *Store) Get(ctx context.Context, id string) (*Item, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, ErrNotFound
	}

	var (
		it      = Item{ID: id}
		packed  bool
		created string
	)
	err := s.db.QueryRowContext(ctx,
		"SELECT mime_type, data, compressed, created_at FROM media WHERE id = ?", id,
	).Scan(&it.MIMEType, &it.Data, &packed, &created)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("media: query: %w", err)
	}

	if packed {
		raw, err := decompress(it.Data)
		if err != nil {
			return nil, fmt.Errorf("media: corrupt blob %s: %w", id, err)
		}
		it.Data = raw
	}
	it.CreatedAt = parseTimestamp(created)
	return &it, nil
}

// Stats reports the number of blobs and their uncompressed size.
func (s *Store) Stats(ctx context.Context) (count, bytes int64, err error) {
	err = s.db.QueryRowContext(ctx, "SELECT count(*), coalesce(sum(size), 0) FROM media").Scan(&count, &bytes)
	return count, bytes, err
}

// Prune drops blobs older than maxAge.
func (s *Store) Prune(maxAge time.Duration) (int64, error) {
	return s.db.PruneMedia(maxAge)
}

func parseTimestamp(s string) time.Time {
	for _, layout := range []string{"2006-01-02 15:04:05", time.RFC3339Nano} {
		if t, err := time.Parse(layout, s); err == nil {
			return t
		}
	}
	return time.Time{}
}

var (
	gzipWriterPool = sync.Pool{
		New: func() interface{} {
			return gzip.NewWriter(io.Discard)
		},
	}
	bufferPool = sync.Pool{
		New: func() interface{} {
			return new(bytes.Buffer)
		},
	}
)

func compress(data []byte) ([]byte, error) {
	buf := bufferPool.Get().(*bytes.Buffer)
	buf.Reset()
	defer bufferPool.Put(buf)

	w := gzipWriterPool.Get().(*gzip.Writer)
	defer gzipWriterPool.Put(w)
	w.Reset(buf)

	if _, err := w.Write(data); err != nil {
		return nil, err
	}
	if err := w.Close(); err != nil {
		return nil, err
	}

	// buf goes back to the pool
	out := make([]byte, buf.Len())
	copy(out, buf.Bytes())
	return out, nil
}

func decompress(data []byte) ([]byte, error) {
	r, err := gzip.NewReader(bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	defer r.Close()
	return io.ReadAll(r)
}
