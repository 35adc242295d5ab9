// Package gemini implements the Gemini gateway on the official Go SDK.
package gemini

import (
	"context"
	"strings"

	"google.golang.org/genai"

	"github.com/nexus-ai/nexus/pkg/core"
	"github.com/nexus-ai/nexus/pkg/core/types"
)

const (
	// DefaultModel is used when no model is configured.
	DefaultModel = "gemini-2.5-flash"

	// SystemInstruction anchors every request in the assistant persona.
	SystemInstruction = "Nexus Core V6.0 initialized."
)

// Gateway answers prompts through the Gemini API.
type Gateway struct {
	client *genai.Client
	model  string
}

// Option configures the Gemini gateway.
type Option func(*Gateway)

// WithModel overrides the default model.
func WithModel(model string) Option {
	return func(g *Gateway) {
		if model != "" {
			g.model = model
		}
	}
}

// New creates a Gemini gateway from an API key.
func New(ctx context.Context, apiKey string, opts ...Option) (*Gateway, error) {
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, core.NewProviderError("gemini", err)
	}
	g := &Gateway{client: client, model: DefaultModel}
	for _, opt := range opts {
		opt(g)
	}
	return g, nil
}

// Name returns the gateway identifier.
func (g *Gateway) Name() string {
	return "gemini"
}

// Process sends the prompt and prior turns to Gemini and returns the
// model's reply.
func (g *Gateway) Process(ctx context.Context, text string, history []types.Message) (*core.Reply, error) {
	contents := buildContents(text, history)
	config := &genai.GenerateContentConfig{
		SystemInstruction: genai.NewContentFromText(SystemInstruction, genai.RoleUser),
	}

	resp, err := g.client.Models.GenerateContent(ctx, g.model, contents, config)
	if err != nil {
		return nil, core.NewProviderError("gemini", err)
	}

	reply := strings.TrimSpace(resp.Text())
	if reply == "" {
		return nil, core.NewAPIError("gemini returned an empty response")
	}
	return &core.Reply{Text: reply}, nil
}

// buildContents maps a conversation to Gemini turn contents. A non-empty
// history already ends with the current user turn; an empty history means
// a single standalone prompt.
func buildContents(text string, history []types.Message) []*genai.Content {
	if len(history) == 0 {
		return []*genai.Content{genai.NewContentFromText(text, genai.RoleUser)}
	}
	contents := make([]*genai.Content, 0, len(history))
	for _, msg := range history {
		var role genai.Role = genai.RoleUser
		if msg.Role == types.RoleAssistant {
			role = genai.RoleModel
		}
		contents = append(contents, genai.NewContentFromText(msg.Text, role))
	}
	return contents
}
