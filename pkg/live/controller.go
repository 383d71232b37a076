// Package live drives one realtime voice session: microphone frames go out,
// reply audio is scheduled gaplessly, transcripts are kept in a short
// rolling window and barge-in discards whatever is still queued.
package live

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"giggleglitch/pkg/gateway"
	"giggleglitch/pkg/logging"
	"giggleglitch/pkg/pcm"
	"giggleglitch/pkg/playback"
)

// State is the connection state of the controller.
type State string

const (
	Disconnected State = "disconnected"
	Connecting   State = "connecting"
	Streaming    State = "streaming"
)

// Session is an open realtime session.
type Session interface {
	Send(frame []byte) bool
	Events() <-chan gateway.LiveEvent
	Close() error
	Dropped() int64
}

// Dialer opens realtime sessions.
type Dialer interface {
	Dial(ctx context.Context, opts gateway.LiveOptions) (Session, error)
}

// DialFunc adapts a function to Dialer.
type DialFunc func(ctx context.Context, opts gateway.LiveOptions) (Session, error)

func (f DialFunc) Dial(ctx context.Context, opts gateway.LiveOptions) (Session, error) {
	return f(ctx, opts)
}

// FromGateway dials through the gateway client.
func FromGateway(c *gateway.Client) Dialer {
	return DialFunc(func(ctx context.Context, opts gateway.LiveOptions) (Session, error) {
		s, err := c.ConnectLive(ctx, opts)
		if err != nil {
			return nil, err
		}
		return s, nil
	})
}

// Capture produces 16 kHz mono frames in [-1, 1].
type Capture interface {
	Open(ctx context.Context) (<-chan []float32, error)
	Close() error
}

// Player renders reply audio at offsets on its own clock.
type Player interface {
	Now() time.Duration
	Schedule(buf *pcm.AudioBuffer, at time.Duration) (playback.Voice, error)
}

// Options configures a Controller.
type Options struct {
	Persona     string
	Voice       string
	SendBuffer  int
	Transcripts int
	// Notify, when set, receives the status after every change. It is
	// called without locks held and must not block for long.
	Notify func(Status)
}

// Status is a snapshot of the controller.
type Status struct {
	State         State    `json:"state"`
	Transcripts   []string `json:"transcripts"`
	Interruptions int      `json:"interruptions"`
	Queued        int      `json:"queued"`
	DroppedFrames int64    `json:"droppedFrames"`
	LastError     string   `json:"lastError,omitempty"`
}

// Controller owns the lifecycle of one live session at a time.
type Controller struct {
	dialer  Dialer
	capture Capture
	player  Player
	opts    Options
	queue   *playback.Queue

	mu            sync.Mutex
	state         State
	conn          uint64 // bumped per Connect; loops of an older connection are ignored
	cancel        context.CancelFunc
	session       Session
	transcripts   []string
	interruptions int
	lastErr       string
}

// New creates a disconnected controller.
func New(dialer Dialer, capture Capture, player Player, opts Options) *Controller {
	if opts.Transcripts <= 0 {
		opts.Transcripts = 5
	}
	return &Controller{
		dialer:  dialer,
		capture: capture,
		player:  player,
		opts:    opts,
		queue:   playback.NewQueue(),
		state:   Disconnected,
	}
}

// Connect opens the capture device and then the session. It is a no-op
// unless the controller is disconnected. Any failure leaves it fully torn
// down with LastError set.
func (c *Controller) Connect(ctx context.Context) error {
	c.mu.Lock()
	if c.state != Disconnected {
		c.mu.Unlock()
		return nil
	}
	c.conn++
	conn := c.conn
	// the session outlives the request that opened it
	sctx, cancel := context.WithCancel(context.Background())
	c.cancel = cancel
	c.state = Connecting
	c.lastErr = ""
	c.transcripts = nil
	c.mu.Unlock()
	c.notify()

	frames, err := c.capture.Open(sctx)
	if err != nil {
		slog.Warn("Live: Capture unavailable", "error", err)
		c.fail(conn, err)
		return err
	}

	dctx, stop := context.WithCancel(ctx)
	defer stop()
	unhook := context.AfterFunc(sctx, stop)
	defer unhook()

	sess, err := c.dialer.Dial(dctx, gateway.LiveOptions{
		Persona:    c.opts.Persona,
		Voice:      c.opts.Voice,
		SendBuffer: c.opts.SendBuffer,
	})
	if err != nil {
		c.closeCapture()
		if sctx.Err() != nil {
			return context.Canceled
		}
		slog.Warn("Live: Session open failed", "error", err)
		c.fail(conn, err)
		return err
	}

	c.mu.Lock()
	if c.conn != conn || sctx.Err() != nil {
		// disconnected while dialing
		c.mu.Unlock()
		_ = sess.Close()
		c.closeCapture()
		return context.Canceled
	}
	c.session = sess
	c.state = Streaming
	c.mu.Unlock()

	c.queue.Interrupt(c.player.Now())
	go c.captureLoop(sctx, frames, sess)
	go c.receiveLoop(sctx, conn, sess)
	slog.Info("Live: Streaming", "voice", c.opts.Voice)
	c.notify()
	return nil
}

// Disconnect stops capture, closes the session and silences queued audio.
// Calling it while disconnected does nothing.
func (c *Controller) Disconnect() error {
	c.mu.Lock()
	if c.state == Disconnected {
		c.mu.Unlock()
		return nil
	}
	sess := c.detachLocked()
	c.mu.Unlock()

	c.closeCapture()
	var err error
	if sess != nil {
		err = sess.Close()
	}
	c.queue.Interrupt(c.player.Now())
	slog.Info("Live: Disconnected")
	c.notify()
	return err
}

// Status returns a snapshot of the controller.
func (c *Controller) Status() Status {
	c.mu.Lock()
	st := Status{
		State:         c.state,
		Transcripts:   append([]string(nil), c.transcripts...),
		Interruptions: c.interruptions,
		LastError:     c.lastErr,
	}
	sess := c.session
	c.mu.Unlock()

	if sess != nil {
		st.DroppedFrames = sess.Dropped()
	}
	st.Queued = c.queue.Pending(c.player.Now())
	return st
}

// detachLocked moves the controller to Disconnected and returns the session
// to close.
func (c *Controller) detachLocked() Session {
	if c.cancel != nil {
		c.cancel()
		c.cancel = nil
	}
	sess := c.session
	c.session = nil
	c.state = Disconnected
	return sess
}

func (c *Controller) closeCapture() {
	if err := c.capture.Close(); err != nil {
		slog.Warn("Live: Failed to release capture device", "error", err)
	}
}

// fail tears down connection conn after an error.
func (c *Controller) fail(conn uint64, err error) {
	c.mu.Lock()
	if c.conn != conn {
		c.mu.Unlock()
		return
	}
	sess := c.detachLocked()
	c.lastErr = message(err)
	c.mu.Unlock()

	if sess != nil {
		_ = sess.Close()
	}
	c.queue.Interrupt(c.player.Now())
	c.notify()
}

func message(err error) string {
	if err == nil {
		return "Live session ended."
	}
	var gwErr *gateway.Error
	if errors.As(err, &gwErr) {
		return gateway.UserMessage(err)
	}
	return err.Error()
}

// captureLoop forwards capture frames without ever waiting on the network.
func (c *Controller) captureLoop(ctx context.Context, frames <-chan []float32, sess Session) {
	for {
		select {
		case <-ctx.Done():
			return
		case frame, ok := <-frames:
			if !ok {
				slog.Info("Live: Capture ended")
				return
			}
			raw := pcm.Int16ToBytes(pcm.FloatToInt16(frame))
			if !sess.Send(raw) {
				logging.TraceDefault("Live: Capture frame dropped", "samples", len(frame))
			}
		}
	}
}

// receiveLoop handles inbound events until the session ends.
func (c *Controller) receiveLoop(ctx context.Context, conn uint64, sess Session) {
	var closeErr error
	for ev := range sess.Events() {
		// events still buffered after a disconnect belong to a dead session
		if ctx.Err() != nil {
			return
		}
		switch e := ev.(type) {
		case gateway.AudioEvent:
			c.schedule(conn, e.Data)
		case gateway.TranscriptEvent:
			c.addTranscript(conn, e.Text)
		case gateway.InterruptedEvent:
			if !c.current(conn) {
				return
			}
			n := c.queue.Interrupt(c.player.Now())
			c.mu.Lock()
			c.interruptions++
			c.mu.Unlock()
			slog.Debug("Live: Interrupted", "discarded", n)
			c.notify()
		case gateway.TurnCompleteEvent:
			logging.TraceDefault("Live: Turn complete")
		case gateway.ClosedEvent:
			closeErr = e.Err
		}
	}
	if ctx.Err() != nil {
		return
	}
	slog.Info("Live: Session ended by server", "error", closeErr)
	c.closeCapture()
	c.fail(conn, closeErr)
}

// current reports whether conn is still the streaming connection.
func (c *Controller) current(conn uint64) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.currentLocked(conn)
}

func (c *Controller) currentLocked(conn uint64) bool {
	return c.conn == conn && c.state == Streaming
}

func (c *Controller) schedule(conn uint64, data []byte) {
	buf, err := pcm.ToAudioBuffer(data, pcm.OutputSampleRate, 1)
	if err != nil {
		slog.Warn("Live: Dropping undecodable audio", "bytes", len(data), "error", err)
		return
	}
	if buf.Frames() == 0 {
		return
	}

	// Reserving the slot under c.mu orders it before any teardown, whose
	// queue interrupt then discards it.
	c.mu.Lock()
	if !c.currentLocked(conn) {
		c.mu.Unlock()
		return
	}
	entry := c.queue.Schedule(c.player.Now(), buf.Duration())
	c.mu.Unlock()

	voice, err := c.player.Schedule(buf, entry.Start)
	if err != nil {
		slog.Warn("Live: Playback failed", "error", err)
		return
	}
	if !c.current(conn) {
		voice.Stop()
		return
	}
	c.queue.Attach(entry, voice)
}

func (c *Controller) addTranscript(conn uint64, text string) {
	if text == "" {
		return
	}
	c.mu.Lock()
	if !c.currentLocked(conn) {
		c.mu.Unlock()
		return
	}
	c.transcripts = append(c.transcripts, text)
	if over := len(c.transcripts) - c.opts.Transcripts; over > 0 {
		c.transcripts = append([]string(nil), c.transcripts[over:]...)
	}
	c.mu.Unlock()
	c.notify()
}

func (c *Controller) notify() {
	if c.opts.Notify != nil {
		c.opts.Notify(c.Status())
	}
}
