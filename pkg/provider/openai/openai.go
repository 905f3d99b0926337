// Package openai adapts OpenAI-compatible chat completion APIs. Most hosted
// providers (DeepSeek, Yi, Moonshot, Baichuan, Ollama's /v1 endpoint) speak
// this dialect.
package openai

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"maps"
	"net/http"
	"slices"

	"github.com/tidwall/sjson"

	"github.com/papercomputeco/scribe/pkg/llm"
	"github.com/papercomputeco/scribe/pkg/relay"
)

const providerName = "openai"

// Provider implements the provider interface for OpenAI-compatible APIs.
type Provider struct{}

func New() *Provider { return &Provider{} }

// Name returns the provider name.
func (p *Provider) Name() string {
	return providerName
}

// NewRequest builds a POST with body {model, messages, stream: true, ...}.
// Binding.Extra entries are written into the body by sjson path, so keys
// like "stream_options.include_usage" set nested fields.
func (p *Provider) NewRequest(ctx context.Context, b llm.Binding, turns []llm.Turn) (*http.Request, error) {
	if err := b.Validate(); err != nil {
		return nil, err
	}
	if b.Model == "" {
		return nil, errors.New("openai: model is required")
	}

	body, err := json.Marshal(llm.NewChatRequest(b, turns))
	if err != nil {
		return nil, fmt.Errorf("marshaling request: %w", err)
	}

	for _, key := range slices.Sorted(maps.Keys(b.Extra)) {
		body, err = sjson.SetBytes(body, key, b.Extra[key])
		if err != nil {
			return nil, fmt.Errorf("setting %q: %w", key, err)
		}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, b.Endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "text/event-stream")
	if b.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+b.APIKey)
	}
	return req, nil
}

// RelayOptions returns nil: the relay's defaults are the OpenAI framing.
func (p *Provider) RelayOptions() []relay.Option {
	return nil
}
