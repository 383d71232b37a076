package gateway

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"google.golang.org/genai"

	"giggleglitch/pkg/model"
)

// GenerateProImage renders prompt at the requested size and aspect ratio.
func (c *Client) GenerateProImage(ctx context.Context, prompt string, cfg model.ImageConfig) (model.ImageRef, error) {
	const op = "pro_image"
	if err := cfg.Validate(); err != nil {
		return model.ImageRef{}, err
	}
	b, err := c.backend(ctx, op)
	if err != nil {
		return model.ImageRef{}, err
	}

	gcfg := &genai.GenerateContentConfig{
		ImageConfig: &genai.ImageConfig{
			AspectRatio: cfg.AspectRatio,
			ImageSize:   string(cfg.Size),
		},
	}
	resp, err := c.generate(ctx, b, op, c.models.ProImage, genai.Text(prompt), gcfg)
	if err != nil {
		return model.ImageRef{}, err
	}
	return c.imageFrom(op, resp)
}

// EditImage applies an edit instruction to an existing image.
func (c *Client) EditImage(ctx context.Context, img model.ImageRef, prompt string) (model.ImageRef, error) {
	const op = "edit"
	if len(img.Data) == 0 {
		return model.ImageRef{}, fmt.Errorf("edit: no source image")
	}
	b, err := c.backend(ctx, op)
	if err != nil {
		return model.ImageRef{}, err
	}

	contents := []*genai.Content{
		genai.NewContentFromParts([]*genai.Part{
			genai.NewPartFromBytes(img.Data, img.MIMEType),
			genai.NewPartFromText(prompt),
		}, genai.RoleUser),
	}
	resp, err := c.generate(ctx, b, op, c.models.Edit, contents, nil)
	if err != nil {
		return model.ImageRef{}, err
	}
	return c.imageFrom(op, resp)
}

// GenerateVideo submits a video job and polls it every PollInterval until
// it completes, ctx is cancelled, or MaxWait (if non-zero) elapses.
// A reference image, when given, seeds the first frame.
func (c *Client) GenerateVideo(ctx context.Context, prompt string, image *model.ImageRef) (model.VideoRef, error) {
	const op = "video"
	b, err := c.backend(ctx, op)
	if err != nil {
		return model.VideoRef{}, err
	}

	if limit := c.video.MaxWait.Std(); limit > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, limit)
		defer cancel()
	}

	var seed *genai.Image
	if image != nil && len(image.Data) > 0 {
		seed = &genai.Image{ImageBytes: image.Data, MIMEType: image.MIMEType}
	}
	cfg := &genai.GenerateVideosConfig{
		NumberOfVideos: 1,
		AspectRatio:    "16:9",
	}

	start := time.Now()
	opState, err := b.GenerateVideos(ctx, c.models.Video, prompt, seed, cfg)
	if err != nil {
		c.tracker.TrackAPIFailure(op)
		return model.VideoRef{}, c.videoErr(op, err)
	}
	slog.Info("Video job submitted", "operation", opState.Name)

	ticker := time.NewTicker(c.video.PollInterval.Std())
	defer ticker.Stop()
	for !opState.Done {
		select {
		case <-ctx.Done():
			c.tracker.TrackAPIFailure(op)
			return model.VideoRef{}, c.videoErr(op, ctx.Err())
		case <-ticker.C:
		}
		opState, err = b.GetVideosOperation(ctx, opState)
		if err != nil {
			c.tracker.TrackAPIFailure(op)
			return model.VideoRef{}, c.videoErr(op, err)
		}
		slog.Debug("Video job polled", "operation", opState.Name, "done", opState.Done, "elapsed", time.Since(start))
	}
	c.tracker.ObserveLatency(op, time.Since(start))

	if len(opState.Error) > 0 {
		c.tracker.TrackAPIFailure(op)
		return model.VideoRef{}, newError(op, ErrUpstream, fmt.Errorf("video job failed: %v", opState.Error["message"]))
	}
	if opState.Response == nil || len(opState.Response.GeneratedVideos) == 0 || opState.Response.GeneratedVideos[0].Video == nil {
		c.tracker.TrackAPIZero(op)
		return model.VideoRef{}, newError(op, ErrInvalidResponse, fmt.Errorf("video job finished without a video"))
	}

	video := opState.Response.GeneratedVideos[0].Video
	ref := model.VideoRef{URI: video.URI, MIMEType: video.MIMEType, Data: video.VideoBytes}
	if ref.MIMEType == "" {
		ref.MIMEType = "video/mp4"
	}
	if len(ref.Data) == 0 && ref.URI != "" {
		data, err := b.DownloadVideo(ctx, video)
		if err != nil {
			// the URI is still usable by a client holding the key
			slog.Warn("Video download failed", "uri", ref.URI, "error", err)
		} else {
			ref.Data = data
		}
	}
	c.tracker.TrackAPISuccess(op)
	return ref, nil
}

// videoErr reports an expired MaxWait as ErrVideoTimeout.
func (c *Client) videoErr(op string, err error) error {
	if c.video.MaxWait > 0 && errors.Is(err, context.DeadlineExceeded) {
		return newError(op, ErrVideoTimeout, err)
	}
	return classify(op, err)
}
