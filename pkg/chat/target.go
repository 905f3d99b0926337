package chat

import (
	"cmp"
	"fmt"

	"github.com/papercomputeco/scribe/pkg/llm"
	"github.com/papercomputeco/scribe/pkg/provider"
	"github.com/papercomputeco/scribe/pkg/relay"
)

// Defaults is the configured binding used when a request names nothing.
// Model, Endpoint and Params only apply to the default provider.
type Defaults struct {
	Provider string
	Model    string
	Endpoint string
	Scene    string
	Params   llm.Params

	StripCitations bool
}

// Selection is what a caller asks for; empty fields take the defaults.
type Selection struct {
	Provider string
	Model    string
	Scene    string
}

// KeyFunc returns the API key and optional secret for a provider preset.
type KeyFunc func(provider string) (key, secret string, err error)

// Resolver turns a Selection into a Target.
type Resolver struct {
	defaults Defaults
	keys     KeyFunc
}

// NewResolver creates a Resolver. A nil keys func resolves no credentials.
func NewResolver(defaults Defaults, keys KeyFunc) *Resolver {
	if keys == nil {
		keys = func(string) (string, string, error) { return "", "", nil }
	}
	return &Resolver{defaults: defaults, keys: keys}
}

// Defaults returns the configured defaults.
func (r *Resolver) Defaults() Defaults {
	return r.defaults
}

// Resolve builds the Target for sel. Parameter precedence is the selected
// scene, then the configured params (default provider only), then the
// preset's own defaults.
func (r *Resolver) Resolve(sel Selection) (Target, error) {
	name := cmp.Or(sel.Provider, r.defaults.Provider)
	if name == "" {
		return Target{}, fmt.Errorf("no provider selected")
	}

	prov, preset, err := provider.ForName(name)
	if err != nil {
		return Target{}, err
	}

	isDefault := name == r.defaults.Provider

	binding := llm.Binding{
		Provider: name,
		Endpoint: preset.Endpoint,
		Model:    cmp.Or(sel.Model, preset.DefaultModel()),
	}

	var params llm.Params
	if isDefault {
		binding.Endpoint = cmp.Or(r.defaults.Endpoint, binding.Endpoint)
		binding.Model = cmp.Or(sel.Model, r.defaults.Model, preset.DefaultModel())
		params = r.defaults.Params
	}

	if scene := cmp.Or(sel.Scene, r.defaultScene(isDefault)); scene != "" {
		sceneParams, ok := llm.Scene(scene)
		if !ok {
			return Target{}, fmt.Errorf("unknown scene: %q", scene)
		}
		if sel.Scene != "" {
			params = sceneParams.Merge(params)
		} else {
			params = params.Merge(sceneParams)
		}
	}
	binding.Params = params.Merge(preset.Params)

	binding.APIKey, binding.Secret, err = r.keys(name)
	if err != nil {
		return Target{}, fmt.Errorf("resolving credentials for %s: %w", name, err)
	}

	target := Target{Name: name, Provider: prov, Binding: binding}
	if r.defaults.StripCitations {
		target.Transforms = append(target.Transforms, relay.StripCitations)
	}
	return target, nil
}

func (r *Resolver) defaultScene(isDefault bool) string {
	if isDefault {
		return r.defaults.Scene
	}
	return ""
}
