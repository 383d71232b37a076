package gateway

import (
	"context"
	"log/slog"
	"strings"

	"golang.org/x/net/html"
	"google.golang.org/genai"

	"giggleglitch/pkg/model"
)

// reasoningBudget is the thinking budget granted in thinking mode.
const reasoningBudget = 32768

// Attachment is inline media sent with a chat message.
type Attachment struct {
	MIMEType string
	Data     []byte
}

// ChatOptions selects the chat model tier and grounding tools.
type ChatOptions struct {
	Thinking bool          `json:"thinking"`
	Search   bool          `json:"search"`
	Maps     bool          `json:"maps"`
	Location *model.LatLng `json:"location,omitempty"`
	Media    *Attachment   `json:"-"`
}

// ChatResult is a model reply with its normalized grounding.
type ChatResult struct {
	Text        string
	Grounding   []model.GroundingRef
	Suggestions []string
	Model       string
}

// chatModel applies the tier policy: thinking wins, then maps, then fast.
func (c *Client) chatModel(opts ChatOptions) string {
	switch {
	case opts.Thinking:
		return c.models.Reasoning
	case opts.Maps:
		return c.models.Maps
	default:
		return c.models.Fast
	}
}

func chatConfig(opts ChatOptions) *genai.GenerateContentConfig {
	cfg := &genai.GenerateContentConfig{}
	if opts.Thinking {
		cfg.ThinkingConfig = &genai.ThinkingConfig{ThinkingBudget: genai.Ptr[int32](reasoningBudget)}
	}
	if opts.Search {
		cfg.Tools = append(cfg.Tools, &genai.Tool{GoogleSearch: &genai.GoogleSearch{}})
	}
	if opts.Maps {
		cfg.Tools = append(cfg.Tools, &genai.Tool{GoogleMaps: &genai.GoogleMaps{}})
		if opts.Location != nil {
			cfg.ToolConfig = &genai.ToolConfig{
				RetrievalConfig: &genai.RetrievalConfig{
					LatLng: &genai.LatLng{
						Latitude:  genai.Ptr(opts.Location.Latitude),
						Longitude: genai.Ptr(opts.Location.Longitude),
					},
				},
			}
		}
	}
	return cfg
}

// NeuralChat sends message with the prior conversation and returns the reply.
func (c *Client) NeuralChat(ctx context.Context, message string, history []model.ChatMessage, opts ChatOptions) (ChatResult, error) {
	const op = "chat"
	b, err := c.backend(ctx, op)
	if err != nil {
		return ChatResult{}, err
	}

	contents := make([]*genai.Content, 0, len(history)+1)
	for _, m := range history {
		if strings.TrimSpace(m.Text) == "" {
			continue
		}
		role := genai.RoleUser
		if m.Role == model.RoleModel {
			role = genai.RoleModel
		}
		contents = append(contents, genai.NewContentFromText(m.Text, genai.Role(role)))
	}

	parts := []*genai.Part{}
	if opts.Media != nil && len(opts.Media.Data) > 0 {
		parts = append(parts, genai.NewPartFromBytes(opts.Media.Data, opts.Media.MIMEType))
	}
	if message != "" {
		parts = append(parts, genai.NewPartFromText(message))
	}
	contents = append(contents, genai.NewContentFromParts(parts, genai.RoleUser))

	modelName := c.chatModel(opts)
	resp, err := c.generate(ctx, b, op, modelName, contents, chatConfig(opts))
	if err != nil {
		return ChatResult{}, err
	}
	text, err := getResponseText(resp)
	if err != nil {
		c.tracker.TrackAPIZero(op)
		return ChatResult{}, newError(op, ErrInvalidResponse, err)
	}
	c.tracker.TrackAPISuccess(op)

	result := ChatResult{Text: text, Model: modelName}
	if meta := resp.Candidates[0].GroundingMetadata; meta != nil {
		result.Grounding = normalizeGrounding(meta.GroundingChunks)
		if meta.SearchEntryPoint != nil {
			result.Suggestions = searchSuggestions(meta.SearchEntryPoint.RenderedContent)
		}
		slog.Info("Gemini: grounding used", "op", op, "sources", len(result.Grounding), "queries", meta.WebSearchQueries)
	}
	return result, nil
}

// normalizeGrounding flattens web and map chunks into title/uri pairs,
// defaulting to "Source" and "#".
func normalizeGrounding(chunks []*genai.GroundingChunk) []model.GroundingRef {
	var refs []model.GroundingRef
	for _, ch := range chunks {
		if ch == nil {
			continue
		}
		var title, uri string
		if ch.Web != nil {
			title, uri = ch.Web.Title, ch.Web.URI
		}
		if ch.Maps != nil {
			if title == "" {
				title = ch.Maps.Title
			}
			if uri == "" {
				uri = ch.Maps.URI
			}
		}
		if title == "" {
			title = "Source"
		}
		if uri == "" {
			uri = "#"
		}
		refs = append(refs, model.GroundingRef{Title: title, URI: uri})
	}
	return refs
}

// searchSuggestions pulls the suggestion chip labels out of the rendered
// search entry point.
func searchSuggestions(rendered string) []string {
	if strings.TrimSpace(rendered) == "" {
		return nil
	}
	doc, err := html.Parse(strings.NewReader(rendered))
	if err != nil {
		return nil
	}

	var out []string
	seen := map[string]bool{}
	var walk func(n *html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode && n.Data == "a" {
			label := strings.TrimSpace(nodeText(n))
			if label != "" && !seen[label] {
				seen[label] = true
				out = append(out, label)
			}
			return
		}
		for ch := n.FirstChild; ch != nil; ch = ch.NextSibling {
			walk(ch)
		}
	}
	walk(doc)
	return out
}

func nodeText(n *html.Node) string {
	if n.Type == html.TextNode {
		return n.Data
	}
	var b strings.Builder
	for ch := n.FirstChild; ch != nil; ch = ch.NextSibling {
		b.WriteString(nodeText(ch))
	}
	return b.String()
}
