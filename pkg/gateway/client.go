// Package gateway wraps the generative backend: jokes, images, speech,
// video, grounded chat and realtime voice sessions.
//
// The client is stateless between calls. Each operation resolves the
// credential and builds a fresh Backend through the injected Factory, so a
// rotated key takes effect on the next call. Nothing is retried.
package gateway

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand"
	"strings"
	"sync"
	"time"

	"google.golang.org/genai"

	"giggleglitch/pkg/config"
	"giggleglitch/pkg/credential"
	"giggleglitch/pkg/logging"
	"giggleglitch/pkg/model"
	"giggleglitch/pkg/tracker"
)

// Options configures a Client. Zero fields fall back to defaults.
type Options struct {
	Models  config.ModelsConfig
	Video   config.VideoConfig
	Tracker *tracker.Tracker
	History *logging.PromptHistory
	Rand    *rand.Rand
}

// Client issues backend calls on behalf of the orchestrators.
type Client struct {
	creds   credential.Provider
	factory Factory
	models  config.ModelsConfig
	video   config.VideoConfig
	tracker *tracker.Tracker
	history *logging.PromptHistory

	rngMu sync.Mutex
	rng   *rand.Rand
}

// New creates a Client.
func New(creds credential.Provider, factory Factory, opts Options) *Client {
	defaults := config.DefaultConfig()
	if opts.Models == (config.ModelsConfig{}) {
		opts.Models = defaults.Gemini.Models
	}
	if opts.Video.PollInterval <= 0 {
		opts.Video.PollInterval = defaults.Video.PollInterval
	}
	if opts.Tracker == nil {
		opts.Tracker = tracker.New()
	}
	if opts.Rand == nil {
		opts.Rand = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	if factory == nil {
		factory = GenAIFactory
	}
	return &Client{
		creds:   creds,
		factory: factory,
		models:  opts.Models,
		video:   opts.Video,
		tracker: opts.Tracker,
		history: opts.History,
		rng:     opts.Rand,
	}
}

// Tracker returns the usage tracker shared with the API layer.
func (c *Client) Tracker() *tracker.Tracker {
	return c.tracker
}

// ResolveVibe turns SURPRISE into a concrete vibe using the client's random source.
func (c *Client) ResolveVibe(v model.Vibe) model.Vibe {
	c.rngMu.Lock()
	defer c.rngMu.Unlock()
	return v.Resolve(c.rng)
}

// backend resolves the credential and builds a backend for op.
func (c *Client) backend(ctx context.Context, op string) (Backend, error) {
	if c.creds == nil {
		return nil, newError(op, ErrAuth, credential.ErrNoCredential)
	}
	key, err := c.creds.Credential(ctx)
	if err != nil {
		c.tracker.TrackAPIFailure(op)
		return nil, classify(op, err)
	}
	b, err := c.factory(ctx, key)
	if err != nil {
		c.tracker.TrackAPIFailure(op)
		return nil, classify(op, err)
	}
	return b, nil
}

// generate runs one GenerateContent call with tracking and prompt history.
func (c *Client) generate(ctx context.Context, b Backend, op, modelName string, contents []*genai.Content, cfg *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error) {
	start := time.Now()
	resp, err := b.GenerateContent(ctx, modelName, contents, cfg)
	c.tracker.ObserveLatency(op, time.Since(start))

	prompt := contentText(contents)
	if err != nil {
		c.history.Record(op, prompt, fmt.Sprintf("ERROR: %v", err))
		c.tracker.TrackAPIFailure(op)
		slog.Warn("Gemini call failed", "op", op, "model", modelName, "error", err)
		return nil, classify(op, err)
	}

	text, _ := getResponseText(resp)
	if text == "" && firstInline(resp, "") != nil {
		text = "[inline media]"
	}
	c.history.Record(op, prompt, text)
	slog.Debug("Gemini call finished", "op", op, "model", modelName, "duration", time.Since(start))
	return resp, nil
}

// HealthCheck verifies that a credential is present and the joke model is
// reachable. On failure it logs the models the key can see.
func (c *Client) HealthCheck(ctx context.Context) error {
	const op = "health"
	b, err := c.backend(ctx, op)
	if err != nil {
		return err
	}
	if err := b.GetModel(ctx, c.models.Joke); err != nil {
		if names, listErr := b.ListModels(ctx); listErr == nil {
			var gemini []string
			for _, n := range names {
				if strings.Contains(strings.ToLower(n), "gemini") {
					gemini = append(gemini, n)
				}
			}
			slog.Error("Configured model not found", "configured", c.models.Joke, "available", gemini)
		}
		return classify(op, err)
	}
	return nil
}

func getResponseText(resp *genai.GenerateContentResponse) (string, error) {
	if resp == nil || len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return "", fmt.Errorf("empty response")
	}
	var parts []string
	for _, p := range resp.Candidates[0].Content.Parts {
		if p != nil && p.Text != "" && !p.Thought {
			parts = append(parts, p.Text)
		}
	}
	if len(parts) == 0 {
		return "", fmt.Errorf("no text in response")
	}
	return strings.Join(parts, ""), nil
}

// firstInline returns the first inline blob whose MIME type starts with
// prefix. An empty prefix matches any blob.
func firstInline(resp *genai.GenerateContentResponse, prefix string) *genai.Blob {
	if resp == nil {
		return nil
	}
	for _, cand := range resp.Candidates {
		if cand == nil || cand.Content == nil {
			continue
		}
		for _, p := range cand.Content.Parts {
			if p == nil || p.InlineData == nil || len(p.InlineData.Data) == 0 {
				continue
			}
			if prefix == "" || strings.HasPrefix(p.InlineData.MIMEType, prefix) {
				return p.InlineData
			}
		}
	}
	return nil
}

func cleanJSONBlock(text string) string {
	text = strings.TrimSpace(text)
	if strings.HasPrefix(text, "```json") {
		text = strings.TrimPrefix(text, "```json")
		text = strings.TrimSuffix(text, "```")
	} else if strings.HasPrefix(text, "```") {
		text = strings.TrimPrefix(text, "```")
		text = strings.TrimSuffix(text, "```")
	}
	return strings.TrimSpace(text)
}

func contentText(contents []*genai.Content) string {
	var b strings.Builder
	for _, c := range contents {
		if c == nil {
			continue
		}
		for _, p := range c.Parts {
			if p == nil {
				continue
			}
			if p.Text != "" {
				if b.Len() > 0 {
					b.WriteByte('\n')
				}
				b.WriteString(p.Text)
			} else if p.InlineData != nil {
				fmt.Fprintf(&b, "\n[%s, %d bytes]", p.InlineData.MIMEType, len(p.InlineData.Data))
			}
		}
	}
	return b.String()
}
