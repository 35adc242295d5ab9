// Package openai implements the assistant gateway on the OpenAI Chat
// Completions API.
package openai

import (
	"context"
	"strings"

	goopenai "github.com/sashabaranov/go-openai"

	"github.com/nexus-ai/nexus/pkg/core"
	"github.com/nexus-ai/nexus/pkg/core/types"
)

const (
	// DefaultModel is used when no model is configured.
	DefaultModel = goopenai.GPT4oMini

	// SystemInstruction anchors every request in the assistant persona.
	SystemInstruction = "Nexus Core V6.0 initialized."
)

// Gateway answers prompts through the OpenAI API.
type Gateway struct {
	client *goopenai.Client
	model  string
}

// Option configures the OpenAI gateway.
type Option func(*Gateway)

// WithModel overrides the default model.
func WithModel(model string) Option {
	return func(g *Gateway) {
		if model != "" {
			g.model = model
		}
	}
}

// WithBaseURL points the client at a compatible endpoint, for proxies or
// tests.
func WithBaseURL(apiKey, baseURL string) Option {
	return func(g *Gateway) {
		cfg := goopenai.DefaultConfig(apiKey)
		cfg.BaseURL = baseURL
		g.client = goopenai.NewClientWithConfig(cfg)
	}
}

// New creates an OpenAI gateway from an API key.
func New(apiKey string, opts ...Option) *Gateway {
	g := &Gateway{
		client: goopenai.NewClient(apiKey),
		model:  DefaultModel,
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Name returns the gateway identifier.
func (g *Gateway) Name() string {
	return "openai"
}

// Process sends the prompt and prior turns to OpenAI and returns the
// model's reply.
func (g *Gateway) Process(ctx context.Context, text string, history []types.Message) (*core.Reply, error) {
	resp, err := g.client.CreateChatCompletion(ctx, goopenai.ChatCompletionRequest{
		Model:    g.model,
		Messages: buildMessages(text, history),
	})
	if err != nil {
		return nil, core.NewProviderError("openai", err)
	}
	if len(resp.Choices) == 0 {
		return nil, core.NewAPIError("openai returned no choices")
	}

	reply := strings.TrimSpace(resp.Choices[0].Message.Content)
	if reply == "" {
		return nil, core.NewAPIError("openai returned an empty response")
	}
	return &core.Reply{Text: reply}, nil
}

// buildMessages maps a conversation to chat completion messages, starting
// with the system instruction. A non-empty history already ends with the
// current user turn.
func buildMessages(text string, history []types.Message) []goopenai.ChatCompletionMessage {
	msgs := make([]goopenai.ChatCompletionMessage, 0, len(history)+2)
	msgs = append(msgs, goopenai.ChatCompletionMessage{
		Role:    goopenai.ChatMessageRoleSystem,
		Content: SystemInstruction,
	})
	if len(history) == 0 {
		return append(msgs, goopenai.ChatCompletionMessage{
			Role:    goopenai.ChatMessageRoleUser,
			Content: text,
		})
	}
	for _, msg := range history {
		role := goopenai.ChatMessageRoleUser
		if msg.Role == types.RoleAssistant {
			role = goopenai.ChatMessageRoleAssistant
		}
		msgs = append(msgs, goopenai.ChatCompletionMessage{
			Role:    role,
			Content: msg.Text,
		})
	}
	return msgs
}
