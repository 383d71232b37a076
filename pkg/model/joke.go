package model

import (
	"errors"
	"fmt"
	"math/rand"
	"strings"
)

// Joke is a two-line joke produced by the language model.
// ID is assigned on receipt and identifies this joke for caching.
type Joke struct {
	ID          string `json:"id"`
	Setup       string `json:"setup"`
	Punchline   string `json:"punchline"`
	Explanation string `json:"explanation,omitempty"`
}

// String returns the clipboard form of the joke.
func (j Joke) String() string {
	return j.Setup + "\n\n" + j.Punchline
}

// Spoken returns the text handed to the speech model.
func (j Joke) Spoken() string {
	return j.Setup + " ... " + j.Punchline
}

// Vibe selects the tone of generated jokes.
type Vibe string

const (
	VibeClever    Vibe = "clever"
	VibeAbsurd    Vibe = "absurd"
	VibeWholesome Vibe = "wholesome"
	VibeWitty     Vibe = "witty"
	VibeSurprise  Vibe = "surprise"
)

// ConcreteVibes are the vibes SURPRISE may resolve to.
var ConcreteVibes = []Vibe{VibeClever, VibeAbsurd, VibeWholesome, VibeWitty}

// ErrUnknownVibe is returned by ParseVibe for values outside the enum.
var ErrUnknownVibe = errors.New("unknown vibe")

// ParseVibe parses a case-insensitive vibe name.
func ParseVibe(s string) (Vibe, error) {
	v := Vibe(strings.ToLower(strings.TrimSpace(s)))
	switch v {
	case VibeClever, VibeAbsurd, VibeWholesome, VibeWitty, VibeSurprise:
		return v, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownVibe, s)
}

// Resolve returns v unchanged unless it is VibeSurprise, in which case one
// of the concrete vibes is drawn uniformly from rng.
func (v Vibe) Resolve(rng *rand.Rand) Vibe {
	if v != VibeSurprise {
		return v
	}
	return ConcreteVibes[rng.Intn(len(ConcreteVibes))]
}

var vibeStyles = map[Vibe]string{
	VibeClever:    "Clever wordplay and smart observations that reward a second read.",
	VibeAbsurd:    "Absurd, surreal logic played completely straight.",
	VibeWholesome: "Warm, wholesome humor that leaves everyone smiling.",
	VibeWitty:     "Quick, dry wit with a sharp twist at the end.",
}

// Style returns the persona style line for the vibe.
// SURPRISE has no style of its own and must be resolved first.
func (v Vibe) Style() string {
	if s, ok := vibeStyles[v]; ok {
		return s
	}
	return string(v)
}

var vibeVoices = map[Vibe]string{
	VibeClever:    "Kore",
	VibeWitty:     "Zephyr",
	VibeAbsurd:    "Puck",
	VibeWholesome: "Aoede",
	VibeSurprise:  "Fenrir",
}

// Voice returns the prebuilt speech voice used for the vibe.
func (v Vibe) Voice() string {
	if voice, ok := vibeVoices[v]; ok {
		return voice
	}
	return "Kore"
}
