package gateway

import (
	"context"
	"errors"
	"math/rand"
	"sync"

	"google.golang.org/genai"

	"giggleglitch/pkg/config"
	"giggleglitch/pkg/credential"
	"giggleglitch/pkg/tracker"
)

type generateCall struct {
	Model    string
	Contents []*genai.Content
	Config   *genai.GenerateContentConfig
}

// fakeBackend records calls and replays canned responses.
type fakeBackend struct {
	mu sync.Mutex

	calls    []generateCall
	generate func(call generateCall) (*genai.GenerateContentResponse, error)

	videoOp   *genai.GenerateVideosOperation
	videoErr  error
	polls     int
	pollsLeft int // polls before the operation reports done, -1 never
	video     *genai.Video
	download  []byte

	live    *fakeConn
	liveErr error
	liveCfg *genai.LiveConnectConfig

	modelErr error
}

func (f *fakeBackend) GenerateContent(_ context.Context, model string, contents []*genai.Content, cfg *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error) {
	f.mu.Lock()
	call := generateCall{Model: model, Contents: contents, Config: cfg}
	f.calls = append(f.calls, call)
	gen := f.generate
	f.mu.Unlock()
	if gen == nil {
		return nil, errors.New("no response configured")
	}
	return gen(call)
}

func (f *fakeBackend) GenerateVideos(_ context.Context, _, _ string, _ *genai.Image, _ *genai.GenerateVideosConfig) (*genai.GenerateVideosOperation, error) {
	if f.videoErr != nil {
		return nil, f.videoErr
	}
	if f.videoOp != nil {
		return f.videoOp, nil
	}
	return &genai.GenerateVideosOperation{Name: "operations/1"}, nil
}

func (f *fakeBackend) GetVideosOperation(_ context.Context, op *genai.GenerateVideosOperation) (*genai.GenerateVideosOperation, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.polls++
	if f.pollsLeft < 0 {
		return op, nil
	}
	if f.pollsLeft > 0 {
		f.pollsLeft--
		return op, nil
	}
	return &genai.GenerateVideosOperation{
		Name: op.Name,
		Done: true,
		Response: &genai.GenerateVideosResponse{
			GeneratedVideos: []*genai.GeneratedVideo{{Video: f.video}},
		},
	}, nil
}

func (f *fakeBackend) DownloadVideo(context.Context, *genai.Video) ([]byte, error) {
	return f.download, nil
}

func (f *fakeBackend) ConnectLive(_ context.Context, _ string, cfg *genai.LiveConnectConfig) (LiveConn, error) {
	f.liveCfg = cfg
	if f.liveErr != nil {
		return nil, f.liveErr
	}
	return f.live, nil
}

func (f *fakeBackend) GetModel(context.Context, string) error { return f.modelErr }

func (f *fakeBackend) ListModels(context.Context) ([]string, error) {
	return []string{"models/gemini-test"}, nil
}

func (f *fakeBackend) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

func (f *fakeBackend) lastCall() generateCall {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[len(f.calls)-1]
}

// fakeConn is an in-memory live connection.
type fakeConn struct {
	in     chan *genai.LiveServerMessage
	mu     sync.Mutex
	sent   [][]byte
	closed chan struct{}
	once   sync.Once
}

func newFakeConn() *fakeConn {
	return &fakeConn{in: make(chan *genai.LiveServerMessage, 16), closed: make(chan struct{})}
}

func (c *fakeConn) SendRealtimeInput(in genai.LiveRealtimeInput) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sent = append(c.sent, in.Audio.Data)
	return nil
}

func (c *fakeConn) Receive() (*genai.LiveServerMessage, error) {
	select {
	case msg, ok := <-c.in:
		if !ok {
			return nil, errors.New("stream ended")
		}
		return msg, nil
	case <-c.closed:
		return nil, errors.New("use of closed connection")
	}
}

func (c *fakeConn) Close() error {
	c.once.Do(func() { close(c.closed) })
	return nil
}

func (c *fakeConn) sentCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.sent)
}

func textResponse(text string) *genai.GenerateContentResponse {
	return &genai.GenerateContentResponse{
		Candidates: []*genai.Candidate{{Content: genai.NewContentFromText(text, genai.RoleModel)}},
	}
}

func blobResponse(mime string, data []byte) *genai.GenerateContentResponse {
	return &genai.GenerateContentResponse{
		Candidates: []*genai.Candidate{{Content: genai.NewContentFromParts(
			[]*genai.Part{genai.NewPartFromText("here you go"), genai.NewPartFromBytes(data, mime)}, genai.RoleModel)}},
	}
}

// newTestClient wires a client to fb with a fixed key and seeded random source.
func newTestClient(fb *fakeBackend) (*Client, *int) {
	factoryCalls := 0
	factory := func(_ context.Context, key string) (Backend, error) {
		factoryCalls++
		if key != "test-key" {
			return nil, errors.New("unexpected key " + key)
		}
		return fb, nil
	}
	video := config.DefaultConfig().Video
	video.PollInterval = config.Duration(1)
	c := New(credential.Static("test-key"), factory, Options{
		Video:   video,
		Tracker: tracker.New(),
		Rand:    rand.New(rand.NewSource(7)),
	})
	return c, &factoryCalls
}
