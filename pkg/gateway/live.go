package gateway

import (
	"context"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"
	"google.golang.org/genai"

	"giggleglitch/pkg/logging"
	"giggleglitch/pkg/pcm"
	"giggleglitch/pkg/tracker"
)

// LiveEvent is a message delivered by a realtime session.
type LiveEvent interface {
	EventType() string
}

// AudioEvent carries a chunk of 24 kHz mono 16-bit PCM.
type AudioEvent struct {
	Data []byte
}

// TranscriptEvent carries a fragment of the transcript of the model's speech.
type TranscriptEvent struct {
	Text     string
	Finished bool
}

// InterruptedEvent signals that the user barged in; queued audio is stale.
type InterruptedEvent struct{}

// TurnCompleteEvent marks the end of a model turn.
type TurnCompleteEvent struct{}

// ClosedEvent is the last event of a session that ended on its own.
type ClosedEvent struct {
	Err error
}

func (AudioEvent) EventType() string        { return "audio" }
func (TranscriptEvent) EventType() string   { return "transcript" }
func (InterruptedEvent) EventType() string  { return "interrupted" }
func (TurnCompleteEvent) EventType() string { return "turn_complete" }
func (ClosedEvent) EventType() string       { return "closed" }

// LiveOptions configures a realtime session.
type LiveOptions struct {
	Persona    string
	Voice      string
	SendBuffer int // outbound frames held before new ones are dropped
}

// LiveSession is an open bidirectional voice session.
// Send never blocks; the events channel is closed when the session ends.
type LiveSession struct {
	ID string

	conn    LiveConn
	events  chan LiveEvent
	out     chan []byte
	ctx     context.Context
	cancel  context.CancelFunc
	tracker *tracker.Tracker

	closeOnce sync.Once
	closeErr  error
	onClose   func()
	dropped   atomic.Int64
}

// ConnectLive opens a realtime voice session with the given persona and voice.
func (c *Client) ConnectLive(ctx context.Context, opts LiveOptions) (*LiveSession, error) {
	const op = "live"
	b, err := c.backend(ctx, op)
	if err != nil {
		c.tracker.LiveFailed()
		return nil, err
	}

	cfg := &genai.LiveConnectConfig{
		ResponseModalities: []genai.Modality{genai.ModalityAudio},
		SpeechConfig: &genai.SpeechConfig{
			VoiceConfig: &genai.VoiceConfig{
				PrebuiltVoiceConfig: &genai.PrebuiltVoiceConfig{VoiceName: opts.Voice},
			},
		},
		OutputAudioTranscription: &genai.AudioTranscriptionConfig{},
	}
	if opts.Persona != "" {
		cfg.SystemInstruction = genai.NewContentFromText(opts.Persona, genai.RoleUser)
	}

	conn, err := b.ConnectLive(ctx, c.models.Live, cfg)
	if err != nil {
		c.tracker.TrackAPIFailure(op)
		c.tracker.LiveFailed()
		return nil, classify(op, err)
	}
	c.tracker.TrackAPISuccess(op)
	c.tracker.LiveOpened()

	// The session outlives the request that opened it.
	sctx, cancel := context.WithCancel(context.Background())
	if opts.SendBuffer <= 0 {
		opts.SendBuffer = 32
	}
	s := &LiveSession{
		ID:      uuid.NewString(),
		conn:    conn,
		events:  make(chan LiveEvent, 64),
		out:     make(chan []byte, opts.SendBuffer),
		ctx:     sctx,
		cancel:  cancel,
		tracker: c.tracker,
		onClose: c.tracker.LiveClosed,
	}
	go s.sendLoop()
	go s.receiveLoop()
	slog.Info("Live session opened", "session", s.ID, "model", c.models.Live, "voice", opts.Voice)
	return s, nil
}

// Events returns the inbound event stream.
func (s *LiveSession) Events() <-chan LiveEvent {
	return s.events
}

// Send queues one frame of 16 kHz mono PCM. It reports false when the
// frame was dropped because the session is closed or the queue is full.
func (s *LiveSession) Send(frame []byte) bool {
	if s.ctx.Err() != nil {
		return false
	}
	select {
	case s.out <- frame:
		return true
	default:
		s.dropped.Add(1)
		s.tracker.LiveFrame("dropped")
		return false
	}
}

// Dropped returns how many outbound frames were discarded.
func (s *LiveSession) Dropped() int64 {
	return s.dropped.Load()
}

// Close ends the session. It does not wait for in-flight sends.
func (s *LiveSession) Close() error {
	s.closeOnce.Do(func() {
		s.cancel()
		s.closeErr = s.conn.Close()
		if s.onClose != nil {
			s.onClose()
		}
		slog.Info("Live session closed", "session", s.ID, "dropped_frames", s.dropped.Load())
	})
	return s.closeErr
}

func (s *LiveSession) sendLoop() {
	for {
		select {
		case <-s.ctx.Done():
			return
		case frame := <-s.out:
			err := s.conn.SendRealtimeInput(genai.LiveRealtimeInput{
				Audio: &genai.Blob{Data: frame, MIMEType: pcm.InputMIMEType},
			})
			if err != nil {
				if s.ctx.Err() == nil {
					slog.Warn("Live send failed", "session", s.ID, "error", err)
				}
				return
			}
			s.tracker.LiveFrame("out")
			logging.TraceDefault("Live frame sent", "session", s.ID, "bytes", len(frame))
		}
	}
}

func (s *LiveSession) receiveLoop() {
	defer close(s.events)
	for {
		msg, err := s.conn.Receive()
		if err != nil {
			if s.ctx.Err() != nil {
				return
			}
			s.emit(ClosedEvent{Err: classify("live", err)})
			return
		}
		for _, ev := range translate(msg) {
			if !s.emit(ev) {
				return
			}
		}
		if msg != nil && msg.GoAway != nil {
			slog.Info("Live session going away", "session", s.ID)
		}
	}
}

func (s *LiveSession) emit(ev LiveEvent) bool {
	if _, ok := ev.(AudioEvent); ok {
		s.tracker.LiveFrame("in")
	}
	select {
	case s.events <- ev:
		return true
	case <-s.ctx.Done():
		return false
	}
}

// translate flattens a server message into events, interruption first so
// stale audio is discarded before anything new is scheduled.
func translate(msg *genai.LiveServerMessage) []LiveEvent {
	if msg == nil || msg.ServerContent == nil {
		return nil
	}
	sc := msg.ServerContent
	var evs []LiveEvent
	if sc.Interrupted {
		evs = append(evs, InterruptedEvent{})
	}
	if sc.ModelTurn != nil {
		for _, p := range sc.ModelTurn.Parts {
			if p == nil || p.InlineData == nil || len(p.InlineData.Data) == 0 {
				continue
			}
			if mt := p.InlineData.MIMEType; mt != "" && !strings.HasPrefix(mt, "audio/") {
				continue
			}
			evs = append(evs, AudioEvent{Data: p.InlineData.Data})
		}
	}
	if t := sc.OutputTranscription; t != nil && (t.Text != "" || t.Finished) {
		evs = append(evs, TranscriptEvent{Text: t.Text, Finished: t.Finished})
	}
	if sc.TurnComplete {
		evs = append(evs, TurnCompleteEvent{})
	}
	return evs
}
