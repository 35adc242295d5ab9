// Package core defines the assistant gateway contract and the shared
// error taxonomy for the Nexus session orchestration core.
package core

import (
	"context"

	"github.com/nexus-ai/nexus/pkg/core/types"
)

// Fixed user-facing strings. Both the chat store and the voice session fold
// gateway failures into these instead of surfacing raw errors.
const (
	Greeting     = "Nexus Online.\nHow can I help you today?"
	DefaultTitle = "New conversation"
	ChatApology  = "I encountered an error processing your request."
	VoiceApology = "I'm sorry, I ran into a problem answering that. Please try again."
)

// Reply is the result of one assistant request.
type Reply struct {
	Text     string `json:"text"`
	ImageURL string `json:"imageUrl,omitempty"`
}

// Gateway is the sole network-facing dependency of the core. When called
// from a chat thread, history holds the full thread including the current
// user turn as its last element. The live voice path always sends a nil
// history; text alone is the prompt.
type Gateway interface {
	// Name returns the provider identifier (e.g. "gemini", "openai").
	Name() string

	// Process turns request text plus optional history into a reply.
	Process(ctx context.Context, text string, history []types.Message) (*Reply, error)
}

// GatewayRegistry manages the configured gateways by name.
type GatewayRegistry interface {
	Register(gw Gateway)
	Get(name string) (Gateway, bool)
	List() []string
}

type defaultRegistry struct {
	gateways map[string]Gateway
}

// NewGatewayRegistry creates an empty registry.
func NewGatewayRegistry() GatewayRegistry {
	return &defaultRegistry{gateways: make(map[string]Gateway)}
}

func (r *defaultRegistry) Register(gw Gateway) {
	r.gateways[gw.Name()] = gw
}

func (r *defaultRegistry) Get(name string) (Gateway, bool) {
	gw, ok := r.gateways[name]
	return gw, ok
}

func (r *defaultRegistry) List() []string {
	names := make([]string, 0, len(r.gateways))
	for name := range r.gateways {
		names = append(names, name)
	}
	return names
}
