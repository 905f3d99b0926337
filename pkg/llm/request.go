package llm

import "errors"

// ChatRequest is the OpenAI-style chat completion body sent upstream:
// {model, messages, stream, ...generation params}.
type ChatRequest struct {
	// Model name (e.g., "deepseek-chat", "moonshot-v1-8k")
	Model string `json:"model,omitempty"`

	// Conversation messages in conversational order
	Messages []Turn `json:"messages"`

	// Whether to stream the response
	Stream bool `json:"stream"`

	// Generation parameters
	MaxTokens   *int     `json:"max_tokens,omitempty"`
	Temperature *float64 `json:"temperature,omitempty"`
	TopP        *float64 `json:"top_p,omitempty"`
}

// Params are the generation parameters of a provider binding.
// Nil fields are omitted from the upstream request.
type Params struct {
	Temperature *float64 `json:"temperature,omitempty" toml:"temperature,omitempty"`
	TopP        *float64 `json:"top_p,omitempty" toml:"top_p,omitempty"`
	MaxTokens   *int     `json:"max_tokens,omitempty" toml:"max_tokens,omitempty"`
}

// Merge returns p with any nil field filled from fallback.
func (p Params) Merge(fallback Params) Params {
	if p.Temperature == nil {
		p.Temperature = fallback.Temperature
	}
	if p.TopP == nil {
		p.TopP = fallback.TopP
	}
	if p.MaxTokens == nil {
		p.MaxTokens = fallback.MaxTokens
	}
	return p
}

// Binding is the configuration a provider adapter needs to open a stream:
// where to send it, how to authenticate, which model, which parameters.
// The core treats it as opaque beyond presence checks.
type Binding struct {
	Provider string
	Endpoint string
	APIKey   string

	// Secret is an optional second credential for providers that sign
	// requests instead of sending a bearer token.
	Secret string

	Model  string
	Params Params

	// Extra holds provider-specific body fields merged into the request.
	Extra map[string]any
}

// Validate checks that the binding carries an endpoint.
// Model and credential requirements are provider specific and are checked
// by the adapter.
func (b Binding) Validate() error {
	if b.Endpoint == "" {
		return errors.New("binding endpoint is required")
	}
	return nil
}

// NewChatRequest builds a streaming ChatRequest from a binding and turns.
func NewChatRequest(b Binding, turns []Turn) ChatRequest {
	return ChatRequest{
		Model:       b.Model,
		Messages:    CloneTurns(turns),
		Stream:      true,
		MaxTokens:   b.Params.MaxTokens,
		Temperature: b.Params.Temperature,
		TopP:        b.Params.TopP,
	}
}
