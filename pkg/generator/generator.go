// Package generator runs the joke pipeline: joke text, then its visual, with
// speech and explanation on demand. Each step is an independent stage; the
// aggregate is guarded by one mutex so HTTP handlers may call in parallel.
package generator

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	"giggleglitch/pkg/gateway"
	"giggleglitch/pkg/model"
	"giggleglitch/pkg/pcm"
	"giggleglitch/pkg/tracker"
)

// Gateway is the subset of the AI gateway the generator drives.
type Gateway interface {
	GenerateJoke(ctx context.Context, vibe model.Vibe, topic string) (model.Joke, error)
	GenerateJokeVisual(ctx context.Context, joke model.Joke) (model.ImageRef, error)
	GenerateJokeSpeech(ctx context.Context, text string, vibe model.Vibe) (string, error)
	ExplainJoke(ctx context.Context, joke model.Joke) gateway.Explanation
	EditImage(ctx context.Context, img model.ImageRef, prompt string) (model.ImageRef, error)
}

// Publisher turns generated media into a URL the renderer can load.
type Publisher interface {
	Publish(ctx context.Context, mimeType string, data []byte) (string, error)
}

// Visual is a rendered joke illustration.
type Visual struct {
	Image model.ImageRef
	URL   string
}

// Speech is the decoded speech for one joke.
type Speech struct {
	JokeID string
	Buffer *pcm.AudioBuffer
}

// Errors for intents that cannot run in the current state.
var (
	ErrNoJoke   = errors.New("no joke to work with yet")
	ErrNoVisual = errors.New("no visual to edit yet")
)

// Options configures a Generator.
type Options struct {
	Vibe      model.Vibe
	Publisher Publisher
	Tracker   *tracker.Tracker
}

// Generator owns the joke pipeline state.
type Generator struct {
	gw        Gateway
	publisher Publisher
	tracker   *tracker.Tracker

	mu    sync.Mutex
	state State
	gen   uint64 // bumped by every joke fetch; stale stage results are dropped
	subs  map[int]chan State
	subID int
}

// New creates a generator in the idle state.
func New(gw Gateway, opts Options) *Generator {
	if opts.Vibe == "" {
		opts.Vibe = model.VibeClever
	}
	if opts.Tracker == nil {
		opts.Tracker = tracker.New()
	}
	return &Generator{
		gw:        gw,
		publisher: opts.Publisher,
		tracker:   opts.Tracker,
		state: State{
			Joke:        Stage[model.Joke]{Status: NotStarted},
			Visual:      Stage[Visual]{Status: NotStarted},
			Audio:       Stage[Speech]{Status: NotStarted},
			Explanation: Stage[gateway.Explanation]{Status: NotStarted},
			Vibe:        opts.Vibe,
			IsFirstJoke: true,
		},
		subs: make(map[int]chan State),
	}
}

// Snapshot returns a copy of the current state.
func (g *Generator) Snapshot() State {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.state
}

// SelectVibe sets the vibe used by the next fetch and speech request.
func (g *Generator) SelectVibe(v model.Vibe) State {
	return g.update(func(s *State) { s.Vibe = v })
}

// SetTopic sets the optional topic for the next fetch.
func (g *Generator) SetTopic(topic string) State {
	return g.update(func(s *State) { s.Topic = topic })
}

// FetchJoke fetches a new joke and then its visual. It returns at once with
// the current state when a fetch is already running.
func (g *Generator) FetchJoke(ctx context.Context) State {
	g.mu.Lock()
	if g.state.Joke.IsPending() {
		st := g.state
		g.mu.Unlock()
		slog.Debug("Generator: Fetch already pending")
		return st
	}
	g.gen++
	gen := g.gen
	g.state.Joke = pendingWith(g.state.Joke.Value)
	g.state.Visual = Stage[Visual]{Status: NotStarted}
	g.state.Audio = Stage[Speech]{Status: NotStarted}
	g.state.Explanation = Stage[gateway.Explanation]{Status: NotStarted}
	g.state.Error = ""
	vibe, topic := g.state.Vibe, g.state.Topic
	g.publishLocked()
	g.mu.Unlock()

	slog.Info("Generator: Fetching joke", "vibe", vibe, "topic", topic)
	joke, err := g.gw.GenerateJoke(ctx, vibe, topic)

	g.mu.Lock()
	if gen != g.gen {
		st := g.state
		g.mu.Unlock()
		return st
	}
	if err != nil {
		slog.Warn("Generator: Joke fetch failed", "error", err)
		g.state.Joke = failedWith(model.Joke{}, err)
		g.state.Error = gateway.UserMessage(err)
		g.publishLocked()
		st := g.state
		g.mu.Unlock()
		return st
	}
	g.state.Joke = readyWith(joke)
	g.state.IsFirstJoke = false
	g.state.Visual = pendingWith(Visual{})
	g.publishLocked()
	g.mu.Unlock()

	g.runVisual(ctx, gen, joke)
	return g.Snapshot()
}

func (g *Generator) runVisual(ctx context.Context, gen uint64, joke model.Joke) {
	img, err := g.gw.GenerateJokeVisual(ctx, joke)
	var v Visual
	if err == nil {
		v, err = g.visual(ctx, img)
	}

	g.mu.Lock()
	defer g.mu.Unlock()
	if gen != g.gen {
		return
	}
	if err != nil {
		// the joke stays up without a picture
		slog.Info("Generator: Visual unavailable", "joke", joke.ID, "error", err)
		g.state.Visual = failedWith(Visual{}, err)
	} else {
		g.state.Visual = readyWith(v)
	}
	g.publishLocked()
}

func (g *Generator) visual(ctx context.Context, img model.ImageRef) (Visual, error) {
	v := Visual{Image: img}
	if g.publisher == nil {
		v.URL = img.DataURL()
		return v, nil
	}
	url, err := g.publisher.Publish(ctx, img.MIMEType, img.Data)
	if err != nil {
		return Visual{}, err
	}
	v.URL = url
	return v, nil
}

// RequestAudio synthesizes speech for the current joke. Speech already
// produced for this joke is reused without a backend call.
func (g *Generator) RequestAudio(ctx context.Context) (State, error) {
	g.mu.Lock()
	if !g.state.Joke.IsReady() {
		st := g.state
		g.mu.Unlock()
		return st, ErrNoJoke
	}
	joke := g.state.Joke.Value
	if g.state.Audio.IsPending() {
		st := g.state
		g.mu.Unlock()
		return st, nil
	}
	if g.state.Audio.IsReady() && g.state.Audio.Value.JokeID == joke.ID {
		g.tracker.TrackCacheHit("speech")
		st := g.state
		g.mu.Unlock()
		slog.Debug("Generator: Replaying cached speech", "joke", joke.ID)
		return st, nil
	}
	g.tracker.TrackCacheMiss("speech")
	gen := g.gen
	vibe := g.state.Vibe
	g.state.Audio = pendingWith(Speech{})
	g.publishLocked()
	g.mu.Unlock()

	var buf *pcm.AudioBuffer
	payload, err := g.gw.GenerateJokeSpeech(ctx, joke.Spoken(), vibe)
	if err == nil {
		buf, err = pcm.DecodeToBuffer(payload, pcm.OutputSampleRate, 1)
	}

	g.mu.Lock()
	defer g.mu.Unlock()
	if gen != g.gen {
		return g.state, nil
	}
	if err != nil {
		slog.Info("Generator: Speech unavailable", "joke", joke.ID, "error", err)
		g.state.Audio = failedWith(Speech{}, err)
	} else {
		g.state.Audio = readyWith(Speech{JokeID: joke.ID, Buffer: buf})
	}
	g.publishLocked()
	return g.state, nil
}

// RequestExplanation explains the current joke. A failed call still yields
// the fallback explanation, marked as such.
func (g *Generator) RequestExplanation(ctx context.Context) (State, error) {
	g.mu.Lock()
	if !g.state.Joke.IsReady() {
		st := g.state
		g.mu.Unlock()
		return st, ErrNoJoke
	}
	// a fallback explanation may be asked for again
	if g.state.Explanation.IsPending() || (g.state.Explanation.IsReady() && !g.state.Explanation.Value.Fallback) {
		st := g.state
		g.mu.Unlock()
		return st, nil
	}
	joke := g.state.Joke.Value
	gen := g.gen
	g.state.Explanation = pendingWith(gateway.Explanation{})
	g.publishLocked()
	g.mu.Unlock()

	exp := g.gw.ExplainJoke(ctx, joke)

	g.mu.Lock()
	defer g.mu.Unlock()
	if gen != g.gen {
		return g.state, nil
	}
	g.state.Explanation = readyWith(exp)
	g.publishLocked()
	return g.state, nil
}

// EditVisual applies an edit instruction to the current visual and replaces
// it on success. On failure the previous picture stays.
func (g *Generator) EditVisual(ctx context.Context, prompt string) (State, error) {
	g.mu.Lock()
	if g.state.Visual.IsPending() {
		st := g.state
		g.mu.Unlock()
		return st, nil
	}
	prev := g.state.Visual.Value
	if len(prev.Image.Data) == 0 {
		st := g.state
		g.mu.Unlock()
		return st, ErrNoVisual
	}
	gen := g.gen
	g.state.Visual = pendingWith(prev)
	g.publishLocked()
	g.mu.Unlock()

	img, err := g.gw.EditImage(ctx, prev.Image, prompt)
	var v Visual
	if err == nil {
		v, err = g.visual(ctx, img)
	}

	g.mu.Lock()
	defer g.mu.Unlock()
	if gen != g.gen {
		return g.state, nil
	}
	if err != nil {
		slog.Info("Generator: Visual edit failed", "error", err)
		g.state.Visual = failedWith(prev, err)
		g.publishLocked()
		return g.state, err
	}
	g.state.Visual = readyWith(v)
	g.publishLocked()
	return g.state, nil
}

// Subscribe returns a channel that receives the latest state after every
// change, and a function that ends the subscription. Slow readers only
// miss intermediate states.
func (g *Generator) Subscribe() (<-chan State, func()) {
	ch := make(chan State, 1)
	g.mu.Lock()
	g.subID++
	id := g.subID
	g.subs[id] = ch
	ch <- g.state
	g.mu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			g.mu.Lock()
			delete(g.subs, id)
			g.mu.Unlock()
			close(ch)
		})
	}
}

func (g *Generator) update(fn func(s *State)) State {
	g.mu.Lock()
	defer g.mu.Unlock()
	fn(&g.state)
	g.publishLocked()
	return g.state
}

func (g *Generator) publishLocked() {
	for _, ch := range g.subs {
		select {
		case <-ch:
		default:
		}
		ch <- g.state
	}
}
