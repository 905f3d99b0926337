package config

import (
	"fmt"
	"strconv"
	"strings"
)

// Config represents the persistent scribe configuration stored as config.toml
// in the .scribe/ directory. The TOML layout uses sections for logical grouping.
type Config struct {
	Version  int            `toml:"version"`
	Storage  StorageConfig  `toml:"storage"`
	Server   ServerConfig   `toml:"server"`
	Client   ClientConfig   `toml:"client"`
	Provider ProviderConfig `toml:"provider"`
	Events   EventsConfig   `toml:"events"`
	Media    MediaConfig    `toml:"media"`
}

// StorageConfig selects and configures the session store driver.
type StorageConfig struct {
	// Driver is one of "file", "memory", "sqlite", "postgres".
	Driver string `toml:"driver,omitempty"`

	// Dir is the root of the file driver. Empty means .scribe/sessions.
	Dir         string `toml:"dir,omitempty"`
	SQLitePath  string `toml:"sqlite_path,omitempty"`
	PostgresDSN string `toml:"postgres_dsn,omitempty"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Listen string `toml:"listen,omitempty"`

	// RateLimit caps messages per second per owner. Nil means unlimited.
	RateLimit *float64 `toml:"rate_limit,omitempty"`

	// LogFile, when set, receives a JSON copy of the server log.
	LogFile string `toml:"log_file,omitempty"`
}

// ClientConfig holds settings for CLI commands that talk to a running
// scribe server. ServerTarget is a full URL (scheme + host + port).
type ClientConfig struct {
	ServerTarget string `toml:"server_target,omitempty"`
	Owner        string `toml:"owner,omitempty"`
}

// ProviderConfig is the default provider binding for new requests.
// Nil generation parameters fall back to the scene, then to the preset.
type ProviderConfig struct {
	Name           string   `toml:"name,omitempty"`
	Model          string   `toml:"model,omitempty"`
	Endpoint       string   `toml:"endpoint,omitempty"`
	Scene          string   `toml:"scene,omitempty"`
	Temperature    *float64 `toml:"temperature,omitempty"`
	TopP           *float64 `toml:"top_p,omitempty"`
	MaxTokens      *int     `toml:"max_tokens,omitempty"`
	StripCitations bool     `toml:"strip_citations,omitempty"`

	// RawLog, when set, receives every raw upstream stream line.
	RawLog string `toml:"raw_log,omitempty"`
}

// EventsConfig configures the session event stream.
type EventsConfig struct {
	// Driver is "none" or "kafka".
	Driver string `toml:"driver,omitempty"`

	// Brokers is a comma separated list of host:port pairs.
	Brokers string `toml:"brokers,omitempty"`
	Topic   string `toml:"topic,omitempty"`
}

// BrokerList splits Brokers into trimmed, non-empty addresses.
func (e EventsConfig) BrokerList() []string {
	var out []string
	for b := range strings.SplitSeq(e.Brokers, ",") {
		if b = strings.TrimSpace(b); b != "" {
			out = append(out, b)
		}
	}
	return out
}

// MediaConfig configures transcription, image and slide generation.
type MediaConfig struct {
	Endpoint           string `toml:"endpoint,omitempty"`
	TranscriptionModel string `toml:"transcription_model,omitempty"`
	ImageModel         string `toml:"image_model,omitempty"`
	ImageSize          string `toml:"image_size,omitempty"`

	// Inbox is the directory watched for finished recordings.
	Inbox string `toml:"inbox,omitempty"`

	SlidesEndpoint string `toml:"slides_endpoint,omitempty"`
	SlidesTheme    string `toml:"slides_theme,omitempty"`
}

// configKeyInfo maps a user-facing dotted key name to a getter and setter on *Config.
type configKeyInfo struct {
	get func(c *Config) string
	set func(c *Config, v string) error
}

func stringKey(field func(c *Config) *string) configKeyInfo {
	return configKeyInfo{
		get: func(c *Config) string { return *field(c) },
		set: func(c *Config, v string) error { *field(c) = v; return nil },
	}
}

func floatKey(key string, field func(c *Config) **float64) configKeyInfo {
	return configKeyInfo{
		get: func(c *Config) string {
			if *field(c) == nil {
				return ""
			}
			return strconv.FormatFloat(**field(c), 'g', -1, 64)
		},
		set: func(c *Config, v string) error {
			if v == "" {
				*field(c) = nil
				return nil
			}
			f, err := strconv.ParseFloat(v, 64)
			if err != nil {
				return fmt.Errorf("invalid value for %s: %w", key, err)
			}
			*field(c) = &f
			return nil
		},
	}
}

// configKeys is the authoritative map of all supported config keys.
// Keys use dotted notation matching the TOML section structure.
var configKeys = map[string]configKeyInfo{
	"storage.driver":       stringKey(func(c *Config) *string { return &c.Storage.Driver }),
	"storage.dir":          stringKey(func(c *Config) *string { return &c.Storage.Dir }),
	"storage.sqlite_path":  stringKey(func(c *Config) *string { return &c.Storage.SQLitePath }),
	"storage.postgres_dsn": stringKey(func(c *Config) *string { return &c.Storage.PostgresDSN }),
	"server.listen":        stringKey(func(c *Config) *string { return &c.Server.Listen }),
	"server.rate_limit":    floatKey("server.rate_limit", func(c *Config) **float64 { return &c.Server.RateLimit }),
	"server.log_file":      stringKey(func(c *Config) *string { return &c.Server.LogFile }),
	"client.server_target": stringKey(func(c *Config) *string { return &c.Client.ServerTarget }),
	"client.owner":         stringKey(func(c *Config) *string { return &c.Client.Owner }),
	"provider.name":        stringKey(func(c *Config) *string { return &c.Provider.Name }),
	"provider.model":       stringKey(func(c *Config) *string { return &c.Provider.Model }),
	"provider.endpoint":    stringKey(func(c *Config) *string { return &c.Provider.Endpoint }),
	"provider.scene":       stringKey(func(c *Config) *string { return &c.Provider.Scene }),
	"provider.temperature": floatKey("provider.temperature", func(c *Config) **float64 { return &c.Provider.Temperature }),
	"provider.top_p":       floatKey("provider.top_p", func(c *Config) **float64 { return &c.Provider.TopP }),
	"provider.max_tokens": {
		get: func(c *Config) string {
			if c.Provider.MaxTokens == nil {
				return ""
			}
			return strconv.Itoa(*c.Provider.MaxTokens)
		},
		set: func(c *Config, v string) error {
			if v == "" {
				c.Provider.MaxTokens = nil
				return nil
			}
			n, err := strconv.Atoi(v)
			if err != nil || n <= 0 {
				return fmt.Errorf("invalid value for provider.max_tokens: %q", v)
			}
			c.Provider.MaxTokens = &n
			return nil
		},
	},
	"provider.strip_citations": {
		get: func(c *Config) string { return strconv.FormatBool(c.Provider.StripCitations) },
		set: func(c *Config, v string) error {
			b, err := strconv.ParseBool(v)
			if err != nil {
				return fmt.Errorf("invalid value for provider.strip_citations: %w", err)
			}
			c.Provider.StripCitations = b
			return nil
		},
	},
	"provider.raw_log":          stringKey(func(c *Config) *string { return &c.Provider.RawLog }),
	"events.driver":             stringKey(func(c *Config) *string { return &c.Events.Driver }),
	"events.brokers":            stringKey(func(c *Config) *string { return &c.Events.Brokers }),
	"events.topic":              stringKey(func(c *Config) *string { return &c.Events.Topic }),
	"media.endpoint":            stringKey(func(c *Config) *string { return &c.Media.Endpoint }),
	"media.transcription_model": stringKey(func(c *Config) *string { return &c.Media.TranscriptionModel }),
	"media.image_model":         stringKey(func(c *Config) *string { return &c.Media.ImageModel }),
	"media.image_size":          stringKey(func(c *Config) *string { return &c.Media.ImageSize }),
	"media.inbox":               stringKey(func(c *Config) *string { return &c.Media.Inbox }),
	"media.slides_endpoint":     stringKey(func(c *Config) *string { return &c.Media.SlidesEndpoint }),
	"media.slides_theme":        stringKey(func(c *Config) *string { return &c.Media.SlidesTheme }),
}

// orderedKeys lists configKeys in the TOML section layout.
var orderedKeys = []string{
	"storage.driver",
	"storage.dir",
	"storage.sqlite_path",
	"storage.postgres_dsn",
	"server.listen",
	"server.rate_limit",
	"server.log_file",
	"client.server_target",
	"client.owner",
	"provider.name",
	"provider.model",
	"provider.endpoint",
	"provider.scene",
	"provider.temperature",
	"provider.top_p",
	"provider.max_tokens",
	"provider.strip_citations",
	"provider.raw_log",
	"events.driver",
	"events.brokers",
	"events.topic",
	"media.endpoint",
	"media.transcription_model",
	"media.image_model",
	"media.image_size",
	"media.inbox",
	"media.slides_endpoint",
	"media.slides_theme",
}
