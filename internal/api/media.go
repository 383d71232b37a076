package api

import (
	"bytes"
	"context"
	"net/http"

	"giggleglitch/pkg/media"
)

// MediaStore looks up stored media.
type MediaStore interface {
	Get(ctx context.Context, id string) (*media.Item, error)
}

// MediaHandler serves generated media by id.
type MediaHandler struct {
	store MediaStore
}

// NewMediaHandler creates a new MediaHandler.
func NewMediaHandler(store MediaStore) *MediaHandler {
	return &MediaHandler{store: store}
}

// HandleGet handles GET /api/media/{id}. Range requests are honored so
// videos can seek.
func (h *MediaHandler) HandleGet(w http.ResponseWriter, r *http.Request) {
	item, err := h.store.Get(r.Context(), r.PathValue("id"))
	if err != nil {
		writeError(w, err)
		return
	}
	w.Header().Set("Content-Type", item.MIMEType)
	// ids are never reused
	w.Header().Set("Cache-Control", "private, max-age=31536000, immutable")
	http.ServeContent(w, r, "", item.CreatedAt, bytes.NewReader(item.Data))
}
