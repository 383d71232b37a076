package gateway

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"google.golang.org/genai"

	"giggleglitch/pkg/model"
	"giggleglitch/pkg/pcm"
)

const jokeRequest = "Tell me a fresh, uplifting 2-line joke."

// ExplainFallback is shown when the explanation call fails.
const ExplainFallback = "Sometimes a joke is funnier when you don't overthink it!"

var jokeSchema = &genai.Schema{
	Type: genai.TypeObject,
	Properties: map[string]*genai.Schema{
		"setup":     {Type: genai.TypeString, Description: "The setup of the joke."},
		"punchline": {Type: genai.TypeString, Description: "The surprising or funny punchline."},
	},
	Required: []string{"setup", "punchline"},
}

func jokeInstruction(v model.Vibe) string {
	return fmt.Sprintf(`You are a professional comedian and therapist.
Your goal is to generate short, clever, 2-line jokes that lift the spirits of people who are sad or tensed.
Format requirements:
- Line 1: Setup
- Line 2: Punchline
Content Guidelines:
- Must be witty, surprising, or wholesome.
- Strictly avoid dark humor, insults, or offensive topics.
- Style: %s (%s)`, v, v.Style())
}

func jokePrompt(topic string) string {
	topic = strings.TrimSpace(topic)
	if topic == "" {
		return jokeRequest
	}
	return jokeRequest + "\nAbout: " + topic
}

// GenerateJoke asks for a two-line joke in the given vibe. SURPRISE is
// resolved to a concrete vibe before the request is built.
func (c *Client) GenerateJoke(ctx context.Context, vibe model.Vibe, topic string) (model.Joke, error) {
	const op = "joke"
	concrete := c.ResolveVibe(vibe)

	b, err := c.backend(ctx, op)
	if err != nil {
		return model.Joke{}, err
	}

	cfg := &genai.GenerateContentConfig{
		SystemInstruction: genai.NewContentFromText(jokeInstruction(concrete), genai.RoleUser),
		ResponseMIMEType:  "application/json",
		ResponseSchema:    jokeSchema,
	}
	resp, err := c.generate(ctx, b, op, c.models.Joke, genai.Text(jokePrompt(topic)), cfg)
	if err != nil {
		return model.Joke{}, err
	}

	text, err := getResponseText(resp)
	if err != nil {
		c.tracker.TrackAPIZero(op)
		return model.Joke{}, newError(op, ErrInvalidResponse, err)
	}
	joke, err := parseJoke(text)
	if err != nil {
		c.tracker.TrackAPIZero(op)
		return model.Joke{}, newError(op, ErrInvalidResponse, err)
	}
	c.tracker.TrackAPISuccess(op)
	return joke, nil
}

func parseJoke(text string) (model.Joke, error) {
	var raw struct {
		Setup     string `json:"setup"`
		Punchline string `json:"punchline"`
	}
	cleaned := cleanJSONBlock(text)
	if err := json.Unmarshal([]byte(cleaned), &raw); err != nil {
		return model.Joke{}, fmt.Errorf("failed to unmarshal joke: %w", err)
	}
	setup := strings.TrimSpace(raw.Setup)
	punch := strings.TrimSpace(raw.Punchline)
	if setup == "" || punch == "" {
		return model.Joke{}, fmt.Errorf("joke missing setup or punchline: %s", cleaned)
	}
	return model.Joke{ID: uuid.NewString(), Setup: setup, Punchline: punch}, nil
}

// GenerateJokeVisual renders an illustration for the joke.
func (c *Client) GenerateJokeVisual(ctx context.Context, joke model.Joke) (model.ImageRef, error) {
	const op = "visual"
	b, err := c.backend(ctx, op)
	if err != nil {
		return model.ImageRef{}, err
	}

	prompt := fmt.Sprintf("A vibrant, surreal 3D cartoon illustration for this joke. Setup: %q Punchline: %q. "+
		"Playful lighting, saturated neon colors, expressive characters, no text or lettering in the image.",
		joke.Setup, joke.Punchline)
	cfg := &genai.GenerateContentConfig{
		ImageConfig: &genai.ImageConfig{AspectRatio: "1:1"},
	}
	resp, err := c.generate(ctx, b, op, c.models.Visual, genai.Text(prompt), cfg)
	if err != nil {
		return model.ImageRef{}, err
	}
	return c.imageFrom(op, resp)
}

func (c *Client) imageFrom(op string, resp *genai.GenerateContentResponse) (model.ImageRef, error) {
	blob := firstInline(resp, "image/")
	if blob == nil {
		c.tracker.TrackAPIZero(op)
		return model.ImageRef{}, newError(op, ErrNoVisualPart, nil)
	}
	c.tracker.TrackAPISuccess(op)
	return model.ImageRef{MIMEType: blob.MIMEType, Data: blob.Data}, nil
}

// GenerateJokeSpeech reads text aloud in the voice mapped to vibe and
// returns base64 encoded 24 kHz mono PCM.
func (c *Client) GenerateJokeSpeech(ctx context.Context, text string, vibe model.Vibe) (string, error) {
	const op = "speech"
	b, err := c.backend(ctx, op)
	if err != nil {
		return "", err
	}

	cfg := &genai.GenerateContentConfig{
		ResponseModalities: []string{string(genai.ModalityAudio)},
		SpeechConfig: &genai.SpeechConfig{
			VoiceConfig: &genai.VoiceConfig{
				PrebuiltVoiceConfig: &genai.PrebuiltVoiceConfig{VoiceName: vibe.Voice()},
			},
		},
	}
	prompt := "Say this joke with perfect comedic timing: " + text
	resp, err := c.generate(ctx, b, op, c.models.Speech, genai.Text(prompt), cfg)
	if err != nil {
		return "", err
	}

	blob := firstInline(resp, "audio/")
	if blob == nil {
		blob = firstInline(resp, "")
	}
	if blob == nil {
		c.tracker.TrackAPIZero(op)
		return "", newError(op, ErrSpeech, nil)
	}
	c.tracker.TrackAPISuccess(op)
	return pcm.EncodeBytes(blob.Data), nil
}

// Explanation is the result of ExplainJoke. Fallback is set when the
// backend failed and Text is the stock fallback line.
type Explanation struct {
	Text     string `json:"text"`
	Fallback bool   `json:"fallback"`
}

// ExplainJoke explains why the joke works. It never fails; backend
// problems produce the fallback explanation.
func (c *Client) ExplainJoke(ctx context.Context, joke model.Joke) Explanation {
	const op = "explain"
	b, err := c.backend(ctx, op)
	if err != nil {
		return Explanation{Text: ExplainFallback, Fallback: true}
	}

	prompt := fmt.Sprintf("Explain in two or three friendly sentences why this joke is funny.\nSetup: %s\nPunchline: %s",
		joke.Setup, joke.Punchline)
	resp, err := c.generate(ctx, b, op, c.models.Explain, genai.Text(prompt), nil)
	if err != nil {
		return Explanation{Text: ExplainFallback, Fallback: true}
	}
	text, err := getResponseText(resp)
	if err != nil || strings.TrimSpace(text) == "" {
		c.tracker.TrackAPIZero(op)
		return Explanation{Text: ExplainFallback, Fallback: true}
	}
	c.tracker.TrackAPISuccess(op)
	return Explanation{Text: strings.TrimSpace(text)}
}
