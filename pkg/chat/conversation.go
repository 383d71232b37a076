// Package chat keeps the append-only transcript of the grounded chat.
package chat

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"giggleglitch/pkg/gateway"
	"giggleglitch/pkg/model"
)

// ErrEmptyMessage is returned for a message with neither text nor media.
var ErrEmptyMessage = errors.New("message needs text or an attachment")

// Gateway is the chat call of the AI gateway.
type Gateway interface {
	NeuralChat(ctx context.Context, message string, history []model.ChatMessage, opts gateway.ChatOptions) (gateway.ChatResult, error)
}

// Publisher turns an attachment into a URL for the transcript. Without one
// attachments are inlined as data URLs.
type Publisher interface {
	Publish(ctx context.Context, mimeType string, data []byte) (string, error)
}

// Conversation is a chat transcript. Messages are never modified once
// appended.
type Conversation struct {
	gw        Gateway
	publisher Publisher
	now       func() time.Time

	sendMu   sync.Mutex // one exchange at a time keeps history ordered
	mu       sync.RWMutex
	messages []model.ChatMessage
}

// New creates an empty conversation. publisher may be nil.
func New(gw Gateway, publisher Publisher) *Conversation {
	return &Conversation{gw: gw, publisher: publisher, now: time.Now}
}

// Send appends the user message, asks the model and appends its reply.
// When the call fails only the user message remains.
func (c *Conversation) Send(ctx context.Context, text string, att *gateway.Attachment, opts gateway.ChatOptions) (model.ChatMessage, error) {
	text = strings.TrimSpace(text)
	if att != nil && len(att.Data) == 0 {
		att = nil
	}
	if text == "" && att == nil {
		return model.ChatMessage{}, ErrEmptyMessage
	}

	c.sendMu.Lock()
	defer c.sendMu.Unlock()

	history := c.Messages()
	user := model.ChatMessage{
		ID:        uuid.NewString(),
		Role:      model.RoleUser,
		Text:      text,
		CreatedAt: c.now(),
	}
	if att != nil {
		url := c.attachmentURL(ctx, att)
		switch {
		case strings.HasPrefix(att.MIMEType, "image/"):
			user.Image = url
		case strings.HasPrefix(att.MIMEType, "video/"):
			user.Video = url
		}
	}
	c.append(user)

	opts.Media = att
	res, err := c.gw.NeuralChat(ctx, text, history, opts)
	if err != nil {
		slog.Warn("Chat: Reply failed", "error", err)
		return model.ChatMessage{}, err
	}

	reply := model.ChatMessage{
		ID:            uuid.NewString(),
		Role:          model.RoleModel,
		Text:          res.Text,
		GroundingURLs: res.Grounding,
		Suggestions:   res.Suggestions,
		IsThinking:    opts.Thinking,
		CreatedAt:     c.now(),
	}
	c.append(reply)
	slog.Debug("Chat: Reply appended", "model", res.Model, "sources", len(res.Grounding))
	return reply, nil
}

func (c *Conversation) attachmentURL(ctx context.Context, att *gateway.Attachment) string {
	if c.publisher != nil {
		url, err := c.publisher.Publish(ctx, att.MIMEType, att.Data)
		if err == nil {
			return url
		}
		slog.Warn("Chat: Failed to store attachment, inlining", "error", err)
	}
	return model.ImageRef{MIMEType: att.MIMEType, Data: att.Data}.DataURL()
}

func (c *Conversation) append(m model.ChatMessage) {
	c.mu.Lock()
	c.messages = append(c.messages, m)
	c.mu.Unlock()
}

// Messages returns a copy of the transcript.
func (c *Conversation) Messages() []model.ChatMessage {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return append([]model.ChatMessage(nil), c.messages...)
}
