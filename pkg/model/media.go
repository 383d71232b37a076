package model

import (
	"encoding/base64"
	"errors"
	"fmt"
	"strings"
)

// ImageSize is the output resolution tier for studio images.
type ImageSize string

const (
	ImageSize1K ImageSize = "1K"
	ImageSize2K ImageSize = "2K"
	ImageSize4K ImageSize = "4K"
)

// AspectRatios lists the accepted image aspect ratios.
var AspectRatios = []string{"1:1", "2:3", "3:2", "3:4", "4:3", "9:16", "16:9", "21:9"}

// ErrInvalidImageConfig is returned when a size or aspect ratio is not supported.
var ErrInvalidImageConfig = errors.New("invalid image config")

// ImageConfig controls studio image generation.
type ImageConfig struct {
	Size        ImageSize `json:"size"`
	AspectRatio string    `json:"aspectRatio"`
}

// DefaultImageConfig returns 1K square output.
func DefaultImageConfig() ImageConfig {
	return ImageConfig{Size: ImageSize1K, AspectRatio: "1:1"}
}

// Validate checks the config against the supported values.
// Empty fields are filled with defaults.
func (c *ImageConfig) Validate() error {
	if c.Size == "" {
		c.Size = ImageSize1K
	}
	if c.AspectRatio == "" {
		c.AspectRatio = "1:1"
	}
	switch c.Size {
	case ImageSize1K, ImageSize2K, ImageSize4K:
	default:
		return fmt.Errorf("%w: size %q", ErrInvalidImageConfig, c.Size)
	}
	for _, r := range AspectRatios {
		if r == c.AspectRatio {
			return nil
		}
	}
	return fmt.Errorf("%w: aspect ratio %q", ErrInvalidImageConfig, c.AspectRatio)
}

// ImageRef is an inline generated image.
type ImageRef struct {
	MIMEType string `json:"mimeType"`
	Data     []byte `json:"-"`
}

// DataURL renders the image as a data: URL.
func (r ImageRef) DataURL() string {
	if len(r.Data) == 0 {
		return ""
	}
	return "data:" + r.MIMEType + ";base64," + base64.StdEncoding.EncodeToString(r.Data)
}

// ParseImage accepts either a data: URL or a bare base64 payload (assumed PNG).
func ParseImage(s string) (ImageRef, error) {
	mime := "image/png"
	payload := strings.TrimSpace(s)
	if strings.HasPrefix(payload, "data:") {
		head, body, ok := strings.Cut(payload, ",")
		if !ok {
			return ImageRef{}, fmt.Errorf("malformed data url")
		}
		head = strings.TrimPrefix(head, "data:")
		head = strings.TrimSuffix(head, ";base64")
		if head != "" {
			mime = head
		}
		payload = body
	}
	data, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return ImageRef{}, fmt.Errorf("decode image: %w", err)
	}
	if len(data) == 0 {
		return ImageRef{}, fmt.Errorf("empty image")
	}
	return ImageRef{MIMEType: mime, Data: data}, nil
}

// VideoRef points at a finished video. Data is set when the bytes were fetched.
type VideoRef struct {
	URI      string `json:"uri"`
	MIMEType string `json:"mimeType,omitempty"`
	Data     []byte `json:"-"`
}
