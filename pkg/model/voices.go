package model

import "strings"

// VoiceProfile describes a prebuilt speech voice.
type VoiceProfile struct {
	Name   string `json:"name"`
	Gender string `json:"gender"`
	Style  string `json:"style"`
}

// Voices lists the prebuilt voices usable for speech and live sessions.
var Voices = []VoiceProfile{
	{Name: "Kore", Gender: "Female", Style: "Firm, calm, clear"},
	{Name: "Zephyr", Gender: "Female", Style: "Bright, energetic, fast-paced"},
	{Name: "Aoede", Gender: "Female", Style: "Breezy, warm, composed"},
	{Name: "Leda", Gender: "Female", Style: "Youthful, direct"},
	{Name: "Callirrhoe", Gender: "Female", Style: "Easy-going, expressive"},
	{Name: "Puck", Gender: "Male", Style: "Upbeat, playful, mischievous"},
	{Name: "Fenrir", Gender: "Male", Style: "Excitable, resonant, dramatic"},
	{Name: "Charon", Gender: "Male", Style: "Informative, smooth, steady"},
	{Name: "Orus", Gender: "Male", Style: "Firm, balanced"},
	{Name: "Umbriel", Gender: "Male", Style: "Easy-going, narrator-like"},
}

// LookupVoice finds a voice by name, ignoring case.
func LookupVoice(name string) (VoiceProfile, bool) {
	for _, v := range Voices {
		if strings.EqualFold(v.Name, strings.TrimSpace(name)) {
			return v, true
		}
	}
	return VoiceProfile{}, false
}
