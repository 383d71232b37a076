package model

import "time"

// Role is the author of a chat message.
type Role string

const (
	RoleUser  Role = "user"
	RoleModel Role = "model"
)

// GroundingRef is a normalized citation attached to a model reply.
type GroundingRef struct {
	Title string `json:"title"`
	URI   string `json:"uri"`
}

// ChatMessage is one immutable entry of a conversation.
type ChatMessage struct {
	ID            string         `json:"id"`
	Role          Role           `json:"role"`
	Text          string         `json:"text"`
	Image         string         `json:"image,omitempty"` // data URL
	Video         string         `json:"video,omitempty"`
	GroundingURLs []GroundingRef `json:"groundingUrls,omitempty"`
	Suggestions   []string       `json:"suggestions,omitempty"`
	IsThinking    bool           `json:"isThinking,omitempty"`
	CreatedAt     time.Time      `json:"createdAt"`
}

// LatLng is a user location passed to map grounding.
type LatLng struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}
