// Package provider adapts llm bindings to concrete upstream chat APIs.
//
// A Provider builds the streaming HTTP request for one API family and tells
// the relay how that family frames its stream. Everything else (transport,
// parsing, accumulation) is shared.
package provider

import (
	"context"
	"net/http"

	"github.com/papercomputeco/scribe/pkg/llm"
	"github.com/papercomputeco/scribe/pkg/relay"
)

// Provider builds upstream requests for one API family.
type Provider interface {
	// Name returns the canonical adapter name (e.g., "openai", "skywork").
	Name() string

	// NewRequest builds the streaming chat request for turns. The binding
	// is validated by the adapter, so a binding missing something the API
	// requires fails here, before any network call.
	NewRequest(ctx context.Context, b llm.Binding, turns []llm.Turn) (*http.Request, error)

	// RelayOptions returns the stream parsing policy for responses of this
	// API family.
	RelayOptions() []relay.Option
}
