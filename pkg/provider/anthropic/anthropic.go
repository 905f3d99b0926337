// Package anthropic adapts the Anthropic messages API.
package anthropic

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/papercomputeco/scribe/pkg/llm"
	"github.com/papercomputeco/scribe/pkg/relay"
)

const (
	providerName = "anthropic"

	// apiVersion is sent as the anthropic-version header.
	apiVersion = "2023-06-01"

	// defaultMaxTokens is used when the binding sets none; the API
	// requires the field.
	defaultMaxTokens = 1024

	// DeltaPath selects the text of a content_block_delta event.
	DeltaPath = "delta.text"

	// DoneToken is the payload of the final message_stop event.
	DoneToken = `{"type":"message_stop"}`
)

// Provider implements the provider interface for Anthropic's Messages API.
type Provider struct{}

func New() *Provider { return &Provider{} }

// Name returns the provider name.
func (p *Provider) Name() string {
	return providerName
}

// NewRequest builds a streaming messages request. System turns are joined
// into the top-level system prompt.
func (p *Provider) NewRequest(ctx context.Context, b llm.Binding, turns []llm.Turn) (*http.Request, error) {
	if err := b.Validate(); err != nil {
		return nil, err
	}
	if b.Model == "" {
		return nil, errors.New("anthropic: model is required")
	}
	if b.APIKey == "" {
		return nil, errors.New("anthropic: api key is required")
	}

	ar := anthropicRequest{
		Model:       b.Model,
		MaxTokens:   defaultMaxTokens,
		Temperature: b.Params.Temperature,
		TopP:        b.Params.TopP,
		Stream:      true,
		Messages:    make([]anthropicMessage, 0, len(turns)),
	}
	if b.Params.MaxTokens != nil {
		ar.MaxTokens = *b.Params.MaxTokens
	}

	var system []string
	for _, t := range turns {
		if t.Role == llm.RoleSystem {
			system = append(system, t.Content)
			continue
		}
		ar.Messages = append(ar.Messages, anthropicMessage{Role: string(t.Role), Content: t.Content})
	}
	ar.System = strings.Join(system, "\n\n")

	body, err := json.Marshal(ar)
	if err != nil {
		return nil, fmt.Errorf("marshaling request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, b.Endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "text/event-stream")
	req.Header.Set("x-api-key", b.APIKey)
	req.Header.Set("anthropic-version", apiVersion)
	return req, nil
}

// RelayOptions reads text deltas and stops at message_stop.
func (p *Provider) RelayOptions() []relay.Option {
	return []relay.Option{
		relay.WithDeltaPath(DeltaPath),
		relay.WithDoneToken(DoneToken),
	}
}
