package api

import (
	"context"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"giggleglitch/pkg/model"
)

// StudioService renders free-form images and videos.
type StudioService interface {
	GenerateProImage(ctx context.Context, prompt string, cfg model.ImageConfig) (model.ImageRef, error)
	EditImage(ctx context.Context, img model.ImageRef, prompt string) (model.ImageRef, error)
	GenerateVideo(ctx context.Context, prompt string, image *model.ImageRef) (model.VideoRef, error)
}

// Publisher stores generated media and returns the URL it is served at.
type Publisher interface {
	Publish(ctx context.Context, mimeType string, data []byte) (string, error)
}

// StudioHandler serves the image and video studio.
type StudioHandler struct {
	svc       StudioService
	publisher Publisher
}

// NewStudioHandler creates a new StudioHandler. Without a publisher images
// are returned inline as data URLs.
func NewStudioHandler(svc StudioService, publisher Publisher) *StudioHandler {
	return &StudioHandler{svc: svc, publisher: publisher}
}

// ImageResponse is the result of an image intent.
type ImageResponse struct {
	ImageURL string `json:"imageUrl"`
	MIMEType string `json:"mimeType"`
}

// VideoResponse is the result of a video intent.
type VideoResponse struct {
	VideoURL string `json:"videoUrl,omitempty"`
	URI      string `json:"uri"`
	MIMEType string `json:"mimeType,omitempty"`
}

// HandleImage handles POST /api/studio/image
func (h *StudioHandler) HandleImage(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Prompt      string `json:"prompt"`
		Size        string `json:"size"`
		AspectRatio string `json:"aspectRatio"`
	}
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, err)
		return
	}
	if strings.TrimSpace(req.Prompt) == "" {
		writeError(w, badRequest("prompt is required"))
		return
	}

	cfg := model.ImageConfig{Size: model.ImageSize(req.Size), AspectRatio: req.AspectRatio}
	if err := cfg.Validate(); err != nil {
		writeError(w, err)
		return
	}
	img, err := h.svc.GenerateProImage(r.Context(), req.Prompt, cfg)
	if err != nil {
		writeError(w, err)
		return
	}
	h.writeImage(w, r, img)
}

// HandleEdit handles POST /api/studio/edit
func (h *StudioHandler) HandleEdit(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Image  string `json:"image"`
		Prompt string `json:"prompt"`
	}
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, err)
		return
	}
	if strings.TrimSpace(req.Prompt) == "" {
		writeError(w, badRequest("prompt is required"))
		return
	}
	src, err := model.ParseImage(req.Image)
	if err != nil {
		writeError(w, badRequest("image: %v", err))
		return
	}

	img, err := h.svc.EditImage(r.Context(), src, req.Prompt)
	if err != nil {
		writeError(w, err)
		return
	}
	h.writeImage(w, r, img)
}

// HandleVideo handles POST /api/studio/video. The request stays open until
// the job finishes, fails, or the client goes away.
func (h *StudioHandler) HandleVideo(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Prompt string `json:"prompt"`
		Image  string `json:"image,omitempty"`
	}
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, err)
		return
	}
	if strings.TrimSpace(req.Prompt) == "" {
		writeError(w, badRequest("prompt is required"))
		return
	}
	var ref *model.ImageRef
	if req.Image != "" {
		img, err := model.ParseImage(req.Image)
		if err != nil {
			writeError(w, badRequest("image: %v", err))
			return
		}
		ref = &img
	}

	// lift the server write timeout for this response only
	rc := http.NewResponseController(w)
	if err := rc.SetWriteDeadline(time.Time{}); err != nil {
		slog.Debug("Studio: Cannot lift write deadline", "error", err)
	}

	start := time.Now()
	video, err := h.svc.GenerateVideo(r.Context(), req.Prompt, ref)
	if err != nil {
		writeError(w, err)
		return
	}
	slog.Info("Studio: Video ready", "duration", time.Since(start).Round(time.Second), "bytes", len(video.Data))

	resp := VideoResponse{URI: video.URI, MIMEType: video.MIMEType}
	if len(video.Data) > 0 && h.publisher != nil {
		mime := video.MIMEType
		if mime == "" {
			mime = "video/mp4"
		}
		url, err := h.publisher.Publish(r.Context(), mime, video.Data)
		if err != nil {
			writeError(w, err)
			return
		}
		resp.VideoURL = url
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *StudioHandler) writeImage(w http.ResponseWriter, r *http.Request, img model.ImageRef) {
	url := img.DataURL()
	if h.publisher != nil {
		u, err := h.publisher.Publish(r.Context(), img.MIMEType, img.Data)
		if err != nil {
			writeError(w, err)
			return
		}
		url = u
	}
	writeJSON(w, http.StatusOK, ImageResponse{ImageURL: url, MIMEType: img.MIMEType})
}
