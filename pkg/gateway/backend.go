package gateway

import (
	"context"
	"fmt"
	"strings"

	"google.golang.org/genai"
)

// Backend is the subset of the generative API the gateway drives.
// The genai implementation is the only production one; tests supply fakes.
type Backend interface {
	GenerateContent(ctx context.Context, model string, contents []*genai.Content, cfg *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error)
	GenerateVideos(ctx context.Context, model, prompt string, image *genai.Image, cfg *genai.GenerateVideosConfig) (*genai.GenerateVideosOperation, error)
	GetVideosOperation(ctx context.Context, op *genai.GenerateVideosOperation) (*genai.GenerateVideosOperation, error)
	DownloadVideo(ctx context.Context, video *genai.Video) ([]byte, error)
	ConnectLive(ctx context.Context, model string, cfg *genai.LiveConnectConfig) (LiveConn, error)
	GetModel(ctx context.Context, name string) error
	ListModels(ctx context.Context) ([]string, error)
}

// LiveConn is an open realtime session. *genai.Session satisfies it.
type LiveConn interface {
	SendRealtimeInput(input genai.LiveRealtimeInput) error
	Receive() (*genai.LiveServerMessage, error)
	Close() error
}

// Factory builds a Backend for one call from the credential resolved for it.
type Factory func(ctx context.Context, apiKey string) (Backend, error)

// GenAIFactory builds backends on google.golang.org/genai.
func GenAIFactory(ctx context.Context, apiKey string) (Backend, error) {
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create genai client: %w", err)
	}
	return &genaiBackend{client: client}, nil
}

type genaiBackend struct {
	client *genai.Client
}

func (b *genaiBackend) GenerateContent(ctx context.Context, model string, contents []*genai.Content, cfg *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error) {
	return b.client.Models.GenerateContent(ctx, model, contents, cfg)
}

func (b *genaiBackend) GenerateVideos(ctx context.Context, model, prompt string, image *genai.Image, cfg *genai.GenerateVideosConfig) (*genai.GenerateVideosOperation, error) {
	return b.client.Models.GenerateVideos(ctx, model, prompt, image, cfg)
}

func (b *genaiBackend) GetVideosOperation(ctx context.Context, op *genai.GenerateVideosOperation) (*genai.GenerateVideosOperation, error) {
	return b.client.Operations.GetVideosOperation(ctx, op, nil)
}

func (b *genaiBackend) DownloadVideo(ctx context.Context, video *genai.Video) ([]byte, error) {
	return b.client.Files.Download(ctx, genai.NewDownloadURIFromVideo(video), nil)
}

func (b *genaiBackend) ConnectLive(ctx context.Context, model string, cfg *genai.LiveConnectConfig) (LiveConn, error) {
	session, err := b.client.Live.Connect(ctx, model, cfg)
	if err != nil {
		return nil, err
	}
	return session, nil
}

func (b *genaiBackend) GetModel(ctx context.Context, name string) error {
	if !strings.HasPrefix(name, "models/") {
		name = "models/" + name
	}
	_, err := b.client.Models.Get(ctx, name, nil)
	return err
}

func (b *genaiBackend) ListModels(ctx context.Context) ([]string, error) {
	var names []string
	for m, err := range b.client.Models.All(ctx) {
		if err != nil {
			return names, err
		}
		names = append(names, m.Name)
	}
	return names, nil
}
