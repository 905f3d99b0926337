package llm

import "slices"

// scenes are generation presets keyed by use case.
var scenes = map[string]Params{
	"chat":      sceneParams(512, 0.8, 0.7),
	"code":      sceneParams(2048, 0.3, 0.2),
	"short":     sceneParams(1024, 0.5, 0.5),
	"article":   sceneParams(2048, 0.7, 0.6),
	"poetry":    sceneParams(2048, 0.9, 1.0),
	"novel":     sceneParams(4096, 0.9, 1.2),
	"qa":        sceneParams(1024, 0.4, 0.3),
	"recommend": sceneParams(1024, 0.6, 0.5),
	"news":      sceneParams(1024, 0.7, 0.6),
	"support":   sceneParams(1024, 0.5, 0.4),
}

func sceneParams(maxTokens int, topP, temperature float64) Params {
	return Params{
		MaxTokens:   &maxTokens,
		TopP:        &topP,
		Temperature: &temperature,
	}
}

// DefaultScene is used when no scene is configured.
const DefaultScene = "chat"

// Scene returns a copy of the named generation preset.
func Scene(name string) (Params, bool) {
	p, ok := scenes[name]
	if !ok {
		return Params{}, false
	}

	maxTokens, topP, temperature := *p.MaxTokens, *p.TopP, *p.Temperature
	return Params{MaxTokens: &maxTokens, TopP: &topP, Temperature: &temperature}, true
}

// SceneNames returns the sorted names of all generation presets.
func SceneNames() []string {
	names := make([]string, 0, len(scenes))
	for name := range scenes {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}
