// Package skywork adapts Singularity AI's sky-work chat API, which signs
// each request instead of taking a bearer token and streams cumulative
// message parts.
package skywork

import (
	"bytes"
	"context"
	"crypto/md5"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/papercomputeco/scribe/pkg/llm"
	"github.com/papercomputeco/scribe/pkg/relay"
)

const (
	providerName = "skywork"

	// DefaultEndpoint is the hosted sky-work chat endpoint.
	DefaultEndpoint = "https://api-maas.singularity-ai.com/sky-work/api/v1/chat"

	// DeltaPath selects every message text in a sky-work chunk.
	DeltaPath = "arguments.0.messages.#.text"
)

// DefaultParams are the generation parameters sent when none are configured.
func DefaultParams() llm.Params {
	maxTokens, topP, temperature := 2048, 0.9, 0.3
	return llm.Params{MaxTokens: &maxTokens, TopP: &topP, Temperature: &temperature}
}

// request is the sky-work chat body. It has no model field.
type request struct {
	Messages    []llm.Turn `json:"messages"`
	Intent      string     `json:"intent"`
	MaxTokens   *int       `json:"max_tokens,omitempty"`
	TopP        *float64   `json:"top_p,omitempty"`
	Temperature *float64   `json:"temperature,omitempty"`
}

// Provider implements the provider interface for sky-work.
type Provider struct {
	now func() time.Time
}

func New() *Provider {
	return &Provider{now: time.Now}
}

// NewWithClock returns a Provider that signs with the given clock.
func NewWithClock(now func() time.Time) *Provider {
	return &Provider{now: now}
}

// Name returns the provider name.
func (p *Provider) Name() string {
	return providerName
}

// NewRequest builds a signed POST. The binding's APIKey is the app key and
// Secret is the app secret.
func (p *Provider) NewRequest(ctx context.Context, b llm.Binding, turns []llm.Turn) (*http.Request, error) {
	if err := b.Validate(); err != nil {
		return nil, err
	}
	if b.APIKey == "" || b.Secret == "" {
		return nil, errors.New("skywork: app key and app secret are required")
	}

	params := b.Params.Merge(DefaultParams())
	body, err := json.Marshal(request{
		Messages:    llm.CloneTurns(turns),
		MaxTokens:   params.MaxTokens,
		TopP:        params.TopP,
		Temperature: params.Temperature,
	})
	if err != nil {
		return nil, fmt.Errorf("marshaling request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, b.Endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}

	timestamp := strconv.FormatInt(p.now().Unix(), 10)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("app_key", b.APIKey)
	req.Header.Set("timestamp", timestamp)
	req.Header.Set("sign", Sign(b.APIKey, b.Secret, timestamp))
	return req, nil
}

// RelayOptions selects every message text of a chunk and drops texts the
// stream already delivered.
func (p *Provider) RelayOptions() []relay.Option {
	return []relay.Option{
		relay.WithDeltaPath(DeltaPath),
		relay.WithDedupe(),
	}
}

// Sign returns the hex MD5 of appKey+appSecret+timestamp.
func Sign(appKey, appSecret, timestamp string) string {
	sum := md5.Sum([]byte(appKey + appSecret + timestamp))
	return hex.EncodeToString(sum[:])
}
