// Package remote implements the assistant gateway against an external
// custom brain: an HTTP service that accepts POST /v1/process with the
// prompt and history and answers with the reply JSON, instead of a model
// API being called directly.
package remote

import (
	"context"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/nexus-ai/nexus/pkg/core"
	"github.com/nexus-ai/nexus/pkg/core/types"
)

// DefaultTimeout bounds each upstream request.
const DefaultTimeout = 60 * time.Second

// Gateway forwards prompts to a remote assistant endpoint.
type Gateway struct {
	client *resty.Client
}

// Option configures the remote gateway.
type Option func(*Gateway)

// WithTimeout overrides the per-request timeout.
func WithTimeout(d time.Duration) Option {
	return func(g *Gateway) {
		g.client.SetTimeout(d)
	}
}

// WithRetries enables retrying transient upstream failures.
func WithRetries(n int) Option {
	return func(g *Gateway) {
		g.client.SetRetryCount(n)
	}
}

// New creates a remote gateway targeting baseURL. The API key is sent as a
// bearer token.
func New(baseURL, apiKey string, opts ...Option) *Gateway {
	client := resty.New().
		SetBaseURL(baseURL).
		SetAuthToken(apiKey).
		SetTimeout(DefaultTimeout).
		SetHeader("Content-Type", "application/json")
	g := &Gateway{client: client}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Name returns the gateway identifier.
func (g *Gateway) Name() string {
	return "remote"
}

type processRequest struct {
	Text    string          `json:"text"`
	History []types.Message `json:"history,omitempty"`
}

type processError struct {
	Error struct {
		Type    string `json:"type"`
		Message string `json:"message"`
	} `json:"error"`
}

// Process forwards the prompt to the remote endpoint and returns its
// reply.
func (g *Gateway) Process(ctx context.Context, text string, history []types.Message) (*core.Reply, error) {
	var reply core.Reply
	var apiErr processError

	resp, err := g.client.R().
		SetContext(ctx).
		SetBody(processRequest{Text: text, History: history}).
		SetResult(&reply).
		SetError(&apiErr).
		Post("/v1/process")
	if err != nil {
		return nil, core.NewProviderError("remote", err)
	}
	if resp.IsError() {
		msg := apiErr.Error.Message
		if msg == "" {
			msg = resp.Status()
		}
		return nil, core.NewAPIError("remote gateway: " + msg)
	}
	if reply.Text == "" {
		return nil, core.NewAPIError("remote gateway returned an empty reply")
	}
	return &reply, nil
}
