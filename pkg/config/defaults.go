package config

const (
	defaultStorageDriver = "file"
	defaultServerListen  = ":8080"
	defaultServerTarget  = "http://localhost:8080"
	defaultOwner         = "local"

	defaultProvider = "ollama"

	defaultEventsDriver = "none"
	defaultEventsTopic  = "scribe.sessions"

	defaultMediaEndpoint      = "https://api.openai.com/v1"
	defaultTranscriptionModel = "whisper-1"
	defaultImageModel         = "dall-e-3"
	defaultImageSize          = "1024x1024"
	defaultSlidesTheme        = "auto"
)

// NewDefaultConfig returns a Config with sane defaults for all fields.
// This is the single source of truth for default values.
func NewDefaultConfig() *Config {
	return &Config{
		Version: CurrentV,
		Storage: StorageConfig{
			Driver: defaultStorageDriver,
		},
		Server: ServerConfig{
			Listen: defaultServerListen,
		},
		Client: ClientConfig{
			ServerTarget: defaultServerTarget,
			Owner:        defaultOwner,
		},
		Provider: ProviderConfig{
			Name: defaultProvider,
		},
		Events: EventsConfig{
			Driver: defaultEventsDriver,
			Topic:  defaultEventsTopic,
		},
		Media: MediaConfig{
			Endpoint:           defaultMediaEndpoint,
			TranscriptionModel: defaultTranscriptionModel,
			ImageModel:         defaultImageModel,
			ImageSize:          defaultImageSize,
			SlidesTheme:        defaultSlidesTheme,
		},
	}
}

// applyDefaults fills zero-value fields in cfg with values from NewDefaultConfig().
func applyDefaults(cfg *Config) {
	d := NewDefaultConfig()

	if cfg.Version == 0 {
		cfg.Version = d.Version
	}

	fill := func(dst *string, def string) {
		if *dst == "" {
			*dst = def
		}
	}

	fill(&cfg.Storage.Driver, d.Storage.Driver)
	fill(&cfg.Server.Listen, d.Server.Listen)
	fill(&cfg.Client.ServerTarget, d.Client.ServerTarget)
	fill(&cfg.Client.Owner, d.Client.Owner)
	fill(&cfg.Provider.Name, d.Provider.Name)
	fill(&cfg.Events.Driver, d.Events.Driver)
	fill(&cfg.Events.Topic, d.Events.Topic)
	fill(&cfg.Media.Endpoint, d.Media.Endpoint)
	fill(&cfg.Media.TranscriptionModel, d.Media.TranscriptionModel)
	fill(&cfg.Media.ImageModel, d.Media.ImageModel)
	fill(&cfg.Media.ImageSize, d.Media.ImageSize)
	fill(&cfg.Media.SlidesTheme, d.Media.SlidesTheme)
}
