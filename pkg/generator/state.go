package generator

import (
	"encoding/json"

	"giggleglitch/pkg/gateway"
	"giggleglitch/pkg/model"
)

// State is the aggregate of the pipeline stages.
type State struct {
	Joke        Stage[model.Joke]
	Visual      Stage[Visual]
	Audio       Stage[Speech]
	Explanation Stage[gateway.Explanation]

	Error       string // last primary failure, empty when none
	Vibe        model.Vibe
	Topic       string
	IsFirstJoke bool
}

// CurrentJoke returns the joke on display, which is the previous one while
// a fetch is pending.
func (s State) CurrentJoke() (model.Joke, bool) {
	j := s.Joke.Value
	return j, j.ID != ""
}

type stateJSON struct {
	Joke          *model.Joke          `json:"joke"`
	Vibe          model.Vibe           `json:"vibe"`
	Topic         string               `json:"topic"`
	Error         *string              `json:"error"`
	IsFirstJoke   bool                 `json:"isFirstJoke"`
	Loading       bool                 `json:"loading"`
	VisualLoading bool                 `json:"visualLoading"`
	AudioLoading  bool                 `json:"audioLoading"`
	Explaining    bool                 `json:"explaining"`
	ImageURL      *string              `json:"imageUrl"`
	HasAudio      bool                 `json:"hasAudio"`
	AudioSeconds  float64              `json:"audioSeconds,omitempty"`
	Explanation   *gateway.Explanation `json:"explanation"`
	Stages        map[string]Status    `json:"stages"`
}

// MarshalJSON renders the snapshot consumed by the renderer, including the
// flat loading flags derived from the stages.
func (s State) MarshalJSON() ([]byte, error) {
	out := stateJSON{
		Vibe:          s.Vibe,
		Topic:         s.Topic,
		IsFirstJoke:   s.IsFirstJoke,
		Loading:       s.Joke.IsPending(),
		VisualLoading: s.Visual.IsPending(),
		AudioLoading:  s.Audio.IsPending(),
		Explaining:    s.Explanation.IsPending(),
		Stages: map[string]Status{
			"joke":        s.Joke.Status,
			"visual":      s.Visual.Status,
			"audio":       s.Audio.Status,
			"explanation": s.Explanation.Status,
		},
	}
	if j, ok := s.CurrentJoke(); ok {
		if s.Explanation.IsReady() {
			j.Explanation = s.Explanation.Value.Text
		}
		out.Joke = &j
	}
	if s.Error != "" {
		e := s.Error
		out.Error = &e
	}
	if u := s.Visual.Value.URL; u != "" {
		out.ImageURL = &u
	}
	if s.Audio.IsReady() && s.Audio.Value.Buffer != nil {
		out.HasAudio = true
		out.AudioSeconds = s.Audio.Value.Buffer.Duration().Seconds()
	}
	if s.Explanation.IsReady() {
		e := s.Explanation.Value
		out.Explanation = &e
	}
	return json.Marshal(out)
}
