package gateway

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/genai"

	"giggleglitch/pkg/config"
	"giggleglitch/pkg/credential"
	"giggleglitch/pkg/model"
	"giggleglitch/pkg/pcm"
	"giggleglitch/pkg/tracker"
)

func TestGenerateJoke(t *testing.T) {
	tests := []struct {
		name     string
		response string
		err      error
		wantKind error
		check    func(t *testing.T, j model.Joke)
	}{
		{
			name:     "Valid",
			response: `{"setup":"Why did the scarecrow win an award?","punchline":"He was outstanding in his field."}`,
			check: func(t *testing.T, j model.Joke) {
				assert.Equal(t, "Why did the scarecrow win an award?", j.Setup)
				assert.Equal(t, "He was outstanding in his field.", j.Punchline)
				assert.NotEmpty(t, j.ID)
			},
		},
		{
			name:     "FencedJSON",
			response: "```json\n{\"setup\":\"A\",\"punchline\":\"B\"}\n```",
			check: func(t *testing.T, j model.Joke) {
				assert.Equal(t, "A", j.Setup)
				assert.Equal(t, "B", j.Punchline)
			},
		},
		{name: "MissingPunchline", response: `{"setup":"Knock knock"}`, wantKind: ErrInvalidResponse},
		{name: "BlankSetup", response: `{"setup":"  ","punchline":"x"}`, wantKind: ErrInvalidResponse},
		{name: "NotJSON", response: `haha`, wantKind: ErrInvalidResponse},
		{name: "Upstream", err: errors.New("connection reset"), wantKind: ErrUpstream},
		{name: "Unauthorized", err: genai.APIError{Code: 403, Message: "permission denied"}, wantKind: ErrAuth},
		{name: "BadKey", err: genai.APIError{Code: 400, Message: "API key not valid. Please pass a valid API key."}, wantKind: ErrAuth},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fb := &fakeBackend{generate: func(generateCall) (*genai.GenerateContentResponse, error) {
				if tt.err != nil {
					return nil, tt.err
				}
				return textResponse(tt.response), nil
			}}
			c, _ := newTestClient(fb)

			joke, err := c.GenerateJoke(context.Background(), model.VibeClever, "")
			if tt.wantKind != nil {
				require.Error(t, err)
				assert.ErrorIs(t, err, tt.wantKind)
				return
			}
			require.NoError(t, err)
			tt.check(t, joke)
		})
	}
}

func TestGenerateJokeRequest(t *testing.T) {
	fb := &fakeBackend{generate: func(generateCall) (*genai.GenerateContentResponse, error) {
		return textResponse(`{"setup":"a","punchline":"b"}`), nil
	}}
	c, _ := newTestClient(fb)

	_, err := c.GenerateJoke(context.Background(), model.VibeWitty, "cats")
	require.NoError(t, err)

	call := fb.lastCall()
	assert.Equal(t, "gemini-3-flash-preview", call.Model)
	assert.Equal(t, "application/json", call.Config.ResponseMIMEType)
	require.NotNil(t, call.Config.ResponseSchema)
	assert.ElementsMatch(t, []string{"setup", "punchline"}, call.Config.ResponseSchema.Required)
	assert.Contains(t, call.Config.SystemInstruction.Parts[0].Text, "Style: witty")
	assert.Contains(t, contentText(call.Contents), "Tell me a fresh, uplifting 2-line joke.")
	assert.Contains(t, contentText(call.Contents), "About: cats")
}

func TestGenerateJokeSurpriseSendsConcreteVibe(t *testing.T) {
	fb := &fakeBackend{generate: func(generateCall) (*genai.GenerateContentResponse, error) {
		return textResponse(`{"setup":"a","punchline":"b"}`), nil
	}}
	c, _ := newTestClient(fb)

	for i := 0; i < 20; i++ {
		_, err := c.GenerateJoke(context.Background(), model.VibeSurprise, "")
		require.NoError(t, err)
		instr := fb.lastCall().Config.SystemInstruction.Parts[0].Text
		assert.NotContains(t, instr, "Style: surprise")
	}
}

func TestNoCredentialSkipsBackend(t *testing.T) {
	fb := &fakeBackend{}
	factoryCalls := 0
	c := New(credential.Static(""), func(context.Context, string) (Backend, error) {
		factoryCalls++
		return fb, nil
	}, Options{})

	_, err := c.GenerateJoke(context.Background(), model.VibeClever, "")
	assert.ErrorIs(t, err, ErrAuth)
	assert.Equal(t, 0, factoryCalls)
	assert.Equal(t, 0, fb.callCount())
	assert.Equal(t, UserMessage(err), "An API key is required. Set GEMINI_API_KEY and try again.")
}

func TestFactoryCalledPerOperation(t *testing.T) {
	fb := &fakeBackend{generate: func(generateCall) (*genai.GenerateContentResponse, error) {
		return textResponse(`{"setup":"a","punchline":"b"}`), nil
	}}
	c, calls := newTestClient(fb)
	for i := 0; i < 3; i++ {
		_, err := c.GenerateJoke(context.Background(), model.VibeClever, "")
		require.NoError(t, err)
	}
	assert.Equal(t, 3, *calls)
}

func TestGenerateJokeVisual(t *testing.T) {
	png := []byte{0x89, 'P', 'N', 'G'}
	fb := &fakeBackend{generate: func(generateCall) (*genai.GenerateContentResponse, error) {
		return blobResponse("image/png", png), nil
	}}
	c, _ := newTestClient(fb)

	img, err := c.GenerateJokeVisual(context.Background(), model.Joke{Setup: "s", Punchline: "p"})
	require.NoError(t, err)
	assert.Equal(t, png, img.Data)
	assert.Equal(t, "image/png", img.MIMEType)
	assert.Equal(t, "gemini-2.5-flash-image", fb.lastCall().Model)

	fb.generate = func(generateCall) (*genai.GenerateContentResponse, error) {
		return textResponse("I cannot draw that"), nil
	}
	_, err = c.GenerateJokeVisual(context.Background(), model.Joke{Setup: "s", Punchline: "p"})
	assert.ErrorIs(t, err, ErrNoVisualPart)
	assert.Equal(t, int64(1), c.Tracker().Snapshot()["visual"].APIZeroResult)
}

func TestGenerateJokeSpeech(t *testing.T) {
	audio := pcm.Int16ToBytes([]int16{1, 2, 3, 4})
	fb := &fakeBackend{generate: func(generateCall) (*genai.GenerateContentResponse, error) {
		return blobResponse("audio/L16;codec=pcm;rate=24000", audio), nil
	}}
	c, _ := newTestClient(fb)

	payload, err := c.GenerateJokeSpeech(context.Background(), "setup ... punch", model.VibeAbsurd)
	require.NoError(t, err)
	raw, err := pcm.DecodeFrame(payload)
	require.NoError(t, err)
	assert.Equal(t, audio, raw)

	cfg := fb.lastCall().Config
	assert.Equal(t, []string{"AUDIO"}, cfg.ResponseModalities)
	assert.Equal(t, "Puck", cfg.SpeechConfig.VoiceConfig.PrebuiltVoiceConfig.VoiceName)

	fb.generate = func(generateCall) (*genai.GenerateContentResponse, error) {
		return textResponse("no audio"), nil
	}
	_, err = c.GenerateJokeSpeech(context.Background(), "x", model.VibeAbsurd)
	assert.ErrorIs(t, err, ErrSpeech)
}

func TestExplainJokeFallback(t *testing.T) {
	fb := &fakeBackend{generate: func(generateCall) (*genai.GenerateContentResponse, error) {
		return textResponse("It's a pun on 'outstanding'."), nil
	}}
	c, _ := newTestClient(fb)

	exp := c.ExplainJoke(context.Background(), model.Joke{Setup: "s", Punchline: "p"})
	assert.False(t, exp.Fallback)
	assert.Equal(t, "It's a pun on 'outstanding'.", exp.Text)

	fb.generate = func(generateCall) (*genai.GenerateContentResponse, error) {
		return nil, errors.New("boom")
	}
	exp = c.ExplainJoke(context.Background(), model.Joke{Setup: "s", Punchline: "p"})
	assert.True(t, exp.Fallback)
	assert.Equal(t, ExplainFallback, exp.Text)
}

func TestGenerateProImage(t *testing.T) {
	fb := &fakeBackend{generate: func(generateCall) (*genai.GenerateContentResponse, error) {
		return blobResponse("image/png", []byte{1}), nil
	}}
	c, _ := newTestClient(fb)

	_, err := c.GenerateProImage(context.Background(), "a cat", model.ImageConfig{Size: model.ImageSize2K, AspectRatio: "16:9"})
	require.NoError(t, err)
	cfg := fb.lastCall().Config
	assert.Equal(t, "2K", cfg.ImageConfig.ImageSize)
	assert.Equal(t, "16:9", cfg.ImageConfig.AspectRatio)
	assert.Equal(t, "gemini-3-pro-image-preview", fb.lastCall().Model)

	_, err = c.GenerateProImage(context.Background(), "a cat", model.ImageConfig{Size: "9K"})
	assert.ErrorIs(t, err, model.ErrInvalidImageConfig)
	assert.Equal(t, 1, fb.callCount(), "invalid config must not reach the backend")
}

func TestEditImage(t *testing.T) {
	fb := &fakeBackend{generate: func(generateCall) (*genai.GenerateContentResponse, error) {
		return blobResponse("image/png", []byte{9, 9}), nil
	}}
	c, _ := newTestClient(fb)

	out, err := c.EditImage(context.Background(), model.ImageRef{MIMEType: "image/jpeg", Data: []byte{1, 2}}, "add a hat")
	require.NoError(t, err)
	assert.Equal(t, []byte{9, 9}, out.Data)

	parts := fb.lastCall().Contents[0].Parts
	require.Len(t, parts, 2)
	assert.Equal(t, "image/jpeg", parts[0].InlineData.MIMEType)
	assert.Equal(t, "add a hat", parts[1].Text)

	fb.generate = func(generateCall) (*genai.GenerateContentResponse, error) {
		return textResponse("no"), nil
	}
	_, err = c.EditImage(context.Background(), model.ImageRef{MIMEType: "image/png", Data: []byte{1}}, "x")
	assert.ErrorIs(t, err, ErrNoVisualPart)
}

func TestGenerateVideo(t *testing.T) {
	fb := &fakeBackend{
		pollsLeft: 2,
		video:     &genai.Video{URI: "https://files/v1.mp4"},
		download:  []byte("mp4"),
	}
	c, _ := newTestClient(fb)

	ref, err := c.GenerateVideo(context.Background(), "a dancing robot", nil)
	require.NoError(t, err)
	assert.Equal(t, "https://files/v1.mp4", ref.URI)
	assert.Equal(t, []byte("mp4"), ref.Data)
	assert.Equal(t, "video/mp4", ref.MIMEType)
	assert.Equal(t, 3, fb.polls)
}

func TestGenerateVideoMaxWait(t *testing.T) {
	fb := &fakeBackend{pollsLeft: -1}
	c, _ := newTestClient(fb)
	c.video.MaxWait = config.Duration(20 * time.Millisecond)

	_, err := c.GenerateVideo(context.Background(), "forever", nil)
	assert.ErrorIs(t, err, ErrVideoTimeout)
}

func TestGenerateVideoCancel(t *testing.T) {
	fb := &fakeBackend{pollsLeft: -1}
	c, _ := newTestClient(fb)
	c.video.MaxWait = 0

	ctx, cancel := context.WithCancel(context.Background())
	time.AfterFunc(20*time.Millisecond, cancel)
	_, err := c.GenerateVideo(ctx, "forever", nil)
	assert.ErrorIs(t, err, context.Canceled)
	assert.NotErrorIs(t, err, ErrVideoTimeout)
}

func TestGenerateVideoJobError(t *testing.T) {
	fb := &fakeBackend{videoOp: &genai.GenerateVideosOperation{
		Name:  "operations/2",
		Done:  true,
		Error: map[string]any{"message": "quota exceeded"},
	}}
	c, _ := newTestClient(fb)

	_, err := c.GenerateVideo(context.Background(), "x", nil)
	assert.ErrorIs(t, err, ErrUpstream)
	assert.Contains(t, UserMessage(err), "quota exceeded")
}

func TestHealthCheck(t *testing.T) {
	fb := &fakeBackend{}
	c, _ := newTestClient(fb)
	assert.NoError(t, c.HealthCheck(context.Background()))

	fb.modelErr = genai.APIError{Code: 404, Message: "model not found"}
	assert.ErrorIs(t, c.HealthCheck(context.Background()), ErrUpstream)
}

func TestUserMessage(t *testing.T) {
	assert.Equal(t, "", UserMessage(nil))
	assert.Equal(t, "No image came back this time.", UserMessage(newError("visual", ErrNoVisualPart, nil)))
	long := strings.Repeat("x", 500)
	assert.Len(t, UserMessage(newError("joke", ErrUpstream, errors.New(long))), 160)
}

func TestTrackerCounts(t *testing.T) {
	fb := &fakeBackend{generate: func(generateCall) (*genai.GenerateContentResponse, error) {
		return nil, errors.New("down")
	}}
	c, _ := newTestClient(fb)
	c.tracker = tracker.New()

	_, _ = c.GenerateJoke(context.Background(), model.VibeClever, "")
	assert.Equal(t, int64(1), c.Tracker().Snapshot()["joke"].APIFailures)
}
