package api

import (
	"net/http"

	"giggleglitch/pkg/chat"
	"giggleglitch/pkg/gateway"
	"giggleglitch/pkg/model"
)

// SessionHeader carries the client's chat session id. The "session" query
// parameter is accepted too; without either the default session is used.
const SessionHeader = "X-Session-ID"

// ChatSessions resolves the conversation of a client.
type ChatSessions interface {
	Get(id string) *chat.Conversation
	Reset(id string)
}

// ChatHandler serves the neural chat.
type ChatHandler struct {
	sessions ChatSessions
}

// NewChatHandler creates a new ChatHandler.
func NewChatHandler(sessions ChatSessions) *ChatHandler {
	return &ChatHandler{sessions: sessions}
}

func sessionID(r *http.Request) string {
	if id := r.Header.Get(SessionHeader); id != "" {
		return id
	}
	return r.URL.Query().Get("session")
}

// ChatRequest is the body of POST /api/chat/messages. Media is a data URL.
type ChatRequest struct {
	Text    string              `json:"text"`
	Media   string              `json:"media,omitempty"`
	Options gateway.ChatOptions `json:"options"`
}

// ChatResponse returns the reply together with the whole transcript.
type ChatResponse struct {
	Reply    *model.ChatMessage  `json:"reply,omitempty"`
	Messages []model.ChatMessage `json:"messages"`
	Error    string              `json:"error,omitempty"`
}

// HandleList handles GET /api/chat/messages
func (h *ChatHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	conv := h.sessions.Get(sessionID(r))
	writeJSON(w, http.StatusOK, ChatResponse{Messages: nonNil(conv.Messages())})
}

// HandleReset handles DELETE /api/chat/messages and starts a new chat.
func (h *ChatHandler) HandleReset(w http.ResponseWriter, r *http.Request) {
	h.sessions.Reset(sessionID(r))
	writeJSON(w, http.StatusOK, ChatResponse{Messages: []model.ChatMessage{}})
}

// HandleSend handles POST /api/chat/messages. On failure the transcript
// still contains the user message, so it is returned with the error.
func (h *ChatHandler) HandleSend(w http.ResponseWriter, r *http.Request) {
	var req ChatRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, err)
		return
	}

	var att *gateway.Attachment
	if req.Media != "" {
		m, err := model.ParseImage(req.Media)
		if err != nil {
			writeError(w, badRequest("media: %v", err))
			return
		}
		att = &gateway.Attachment{MIMEType: m.MIMEType, Data: m.Data}
	}
	if loc := req.Options.Location; loc != nil && !validLatLng(*loc) {
		writeError(w, badRequest("location out of range"))
		return
	}

	conv := h.sessions.Get(sessionID(r))
	reply, err := conv.Send(r.Context(), req.Text, att, req.Options)
	if err != nil {
		status := statusFor(err)
		if status == http.StatusBadRequest {
			writeError(w, err)
			return
		}
		writeJSON(w, status, ChatResponse{
			Messages: nonNil(conv.Messages()),
			Error:    gateway.UserMessage(err),
		})
		return
	}
	writeJSON(w, http.StatusOK, ChatResponse{Reply: &reply, Messages: nonNil(conv.Messages())})
}

func validLatLng(l model.LatLng) bool {
	return l.Latitude >= -90 && l.Latitude <= 90 && l.Longitude >= -180 && l.Longitude <= 180
}

func nonNil(msgs []model.ChatMessage) []model.ChatMessage {
	if msgs == nil {
		return []model.ChatMessage{}
	}
	return msgs
}
