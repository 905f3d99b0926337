package provider

import (
	"fmt"
	"slices"

	"github.com/papercomputeco/scribe/pkg/llm"
	"github.com/papercomputeco/scribe/pkg/provider/anthropic"
	"github.com/papercomputeco/scribe/pkg/provider/openai"
	"github.com/papercomputeco/scribe/pkg/provider/skywork"
)

// Supported adapter type constants
const (
	OpenAI    = "openai"
	Anthropic = "anthropic"
	Skywork   = "skywork"
)

// Preset is a named upstream: an adapter plus its endpoint and models.
type Preset struct {
	Name     string   `json:"name"`
	Adapter  string   `json:"adapter"`
	Endpoint string   `json:"endpoint"`
	Models   []string `json:"models,omitempty"`

	// Params are generation defaults applied beneath the caller's params.
	Params llm.Params `json:"-"`
}

// DefaultModel is the first listed model, or empty for model-less APIs.
func (p Preset) DefaultModel() string {
	if len(p.Models) == 0 {
		return ""
	}
	return p.Models[0]
}

var presets = []Preset{
	{
		Name:     "gpt",
		Adapter:  OpenAI,
		Endpoint: "https://api.bianxieai.com/v1/chat/completions",
		Models:   []string{"gpt-3.5-turbo", "gpt-4", "gpt-4o", "gpt-4-all"},
	},
	{
		Name:     "deepseek",
		Adapter:  OpenAI,
		Endpoint: "https://api.deepseek.com/v1/chat/completions",
		Models:   []string{"deepseek-chat", "deepseek-coder"},
	},
	{
		Name:     "yi",
		Adapter:  OpenAI,
		Endpoint: "https://api.lingyiwanwu.com/v1/chat/completions",
		Models: []string{
			"yi-large", "yi-medium", "yi-medium-200k", "yi-spark",
			"yi-large-rag", "yi-large-turbo", "yi-large-preview",
		},
	},
	{
		Name:     "moonshot",
		Adapter:  OpenAI,
		Endpoint: "https://api.moonshot.cn/v1/chat/completions",
		Models:   []string{"moonshot-v1-8k", "moonshot-v1-32k", "moonshot-v1-128k"},
	},
	{
		Name:     "baichuan",
		Adapter:  OpenAI,
		Endpoint: "https://api.baichuan-ai.com/v1/chat/completions",
		Models: []string{
			"Baichuan4", "Baichuan3-Turbo", "Baichuan3-Turbo-128k",
			"Baichuan2-Turbo", "Baichuan2-Turbo-192k",
		},
	},
	{
		Name:     "ollama",
		Adapter:  OpenAI,
		Endpoint: "http://localhost:11434/v1/chat/completions",
		Models:   []string{"llama3.2"},
	},
	{
		Name:     "anthropic",
		Adapter:  Anthropic,
		Endpoint: "https://api.anthropic.com/v1/messages",
		Models:   []string{"claude-sonnet-4-5", "claude-haiku-4-5"},
	},
	{
		Name:     "skywork",
		Adapter:  Skywork,
		Endpoint: skywork.DefaultEndpoint,
		Params:   skywork.DefaultParams(),
	},
}

// SupportedProviders returns the list of all supported adapter type names.
func SupportedProviders() []string {
	return []string{OpenAI, Anthropic, Skywork}
}

// Presets returns every known upstream preset.
func Presets() []Preset {
	out := make([]Preset, len(presets))
	for i, p := range presets {
		p.Models = slices.Clone(p.Models)
		out[i] = p
	}
	return out
}

// LookupPreset returns the preset called name.
func LookupPreset(name string) (Preset, bool) {
	for _, p := range presets {
		if p.Name == name {
			p.Models = slices.Clone(p.Models)
			return p, true
		}
	}
	return Preset{}, false
}

// New creates a new Provider instance for the given adapter type.
// Returns an error if the adapter type is not recognized.
func New(providerType string) (Provider, error) {
	switch providerType {
	case OpenAI:
		return openai.New(), nil
	case Anthropic:
		return anthropic.New(), nil
	case Skywork:
		return skywork.New(), nil
	default:
		return nil, fmt.Errorf("unknown provider type: %q (supported: %v)", providerType, SupportedProviders())
	}
}

// ForName resolves a preset or adapter name to a Provider and the preset
// it came from. Adapter names resolve with a zero Preset.
func ForName(name string) (Provider, Preset, error) {
	if preset, ok := LookupPreset(name); ok {
		p, err := New(preset.Adapter)
		return p, preset, err
	}

	p, err := New(name)
	if err != nil {
		return nil, Preset{}, fmt.Errorf("unknown provider or preset: %q", name)
	}
	return p, Preset{Adapter: name}, nil
}
