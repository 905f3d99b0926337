package config

import (
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// Flag is the single source of truth for a CLI flag.
// Commands reference flags by registry key rather than hard-coding names,
// shorthands, defaults, and descriptions inline. This prevents flag drift
// when the same logical flag appears on multiple commands (e.g., --provider
// on both "scribe serve" and "scribe chat").
type Flag struct {
	// Name is the long flag name (e.g. "provider").
	Name string

	// Shorthand is the one-letter short flag (e.g. "p"). Empty for no shorthand.
	Shorthand string

	// ViperKey is the dotted config key this flag maps to (e.g. "provider.name").
	ViperKey string

	// Description is the help text shown in --help output.
	Description string
}

// FlagSet is a mapping of flag names to Flag structs that hold their name,
// shorthand, viper key, etc.
type FlagSet map[string]Flag

// Flag registry keys.
// Use these constants when calling AddStringFlag and BindRegisteredFlags
// to avoid typos or drift from one command to another.
const (
	FlagListen         = "listen"
	FlagServerTarget   = "server-target"
	FlagOwner          = "owner"
	FlagProvider       = "provider"
	FlagModel          = "model"
	FlagEndpoint       = "endpoint"
	FlagScene          = "scene"
	FlagStorageDriver  = "storage-driver"
	FlagSessionsDir    = "sessions-dir"
	FlagSQLite         = "sqlite"
	FlagPostgres       = "postgres"
	FlagEventsDriver   = "events-driver"
	FlagKafkaBrokers   = "kafka-brokers"
	FlagKafkaTopic     = "kafka-topic"
	FlagMediaEndpoint  = "media-endpoint"
	FlagMediaInbox     = "inbox"
	FlagStripCitations = "strip-citations"
	FlagLogFile        = "log-file"
	FlagSlidesEndpoint = "slides-endpoint"
)

// Flags is the shared registry every scribe command draws from.
var Flags = FlagSet{
	FlagListen:         {Name: "listen", Shorthand: "l", ViperKey: "server.listen", Description: "Address for the scribe server to listen on"},
	FlagServerTarget:   {Name: "server-target", ViperKey: "client.server_target", Description: "Scribe server URL"},
	FlagOwner:          {Name: "owner", Shorthand: "u", ViperKey: "client.owner", Description: "Owner whose sessions are used"},
	FlagProvider:       {Name: "provider", Shorthand: "p", ViperKey: "provider.name", Description: "Provider preset or adapter name"},
	FlagModel:          {Name: "model", Shorthand: "m", ViperKey: "provider.model", Description: "Model name (defaults to the preset's first model)"},
	FlagEndpoint:       {Name: "endpoint", ViperKey: "provider.endpoint", Description: "Override the provider endpoint URL"},
	FlagScene:          {Name: "scene", ViperKey: "provider.scene", Description: "Generation scene preset"},
	FlagStorageDriver:  {Name: "storage", ViperKey: "storage.driver", Description: "Session store driver (file, memory, sqlite, postgres)"},
	FlagSessionsDir:    {Name: "sessions-dir", ViperKey: "storage.dir", Description: "Root directory of the file session store"},
	FlagSQLite:         {Name: "sqlite", Shorthand: "s", ViperKey: "storage.sqlite_path", Description: "Path to the SQLite session database"},
	FlagPostgres:       {Name: "postgres", ViperKey: "storage.postgres_dsn", Description: "PostgreSQL connection string"},
	FlagEventsDriver:   {Name: "events", ViperKey: "events.driver", Description: "Session event stream (none, kafka)"},
	FlagKafkaBrokers:   {Name: "kafka-brokers", ViperKey: "events.brokers", Description: "Comma separated Kafka brokers"},
	FlagKafkaTopic:     {Name: "kafka-topic", ViperKey: "events.topic", Description: "Kafka topic for session events"},
	FlagMediaEndpoint:  {Name: "media-endpoint", ViperKey: "media.endpoint", Description: "OpenAI-compatible base URL for transcription and images"},
	FlagMediaInbox:     {Name: "inbox", ViperKey: "media.inbox", Description: "Directory watched for finished recordings"},
	FlagStripCitations: {Name: "strip-citations", ViperKey: "provider.strip_citations", Description: "Remove <sup>n</sup> citation markers from replies"},
	FlagLogFile:        {Name: "log-file", ViperKey: "server.log_file", Description: "Also write JSON logs to this file"},
	FlagSlidesEndpoint: {Name: "slides-endpoint", ViperKey: "media.slides_endpoint", Description: "Base URL of the slide generation API"},
}

// AddStringFlag registers a string flag on cmd from the given FlagSet.
// The flag's name, shorthand, default, and description all come from the
// FlagSet entry so they cannot drift across commands.
func AddStringFlag(cmd *cobra.Command, fs FlagSet, key string, target *string) {
	def, ok := fs[key]
	if !ok {
		return
	}

	defaultVal := defaultString(def.ViperKey)
	if def.Shorthand != "" {
		cmd.Flags().StringVarP(target, def.Name, def.Shorthand, defaultVal, def.Description)
	} else {
		cmd.Flags().StringVar(target, def.Name, defaultVal, def.Description)
	}
}

// AddBoolFlag registers a bool flag on cmd from the given FlagSet.
func AddBoolFlag(cmd *cobra.Command, fs FlagSet, key string, target *bool) {
	def, ok := fs[key]
	if !ok {
		return
	}

	defaultVal := defaultBool(def.ViperKey)
	if def.Shorthand != "" {
		cmd.Flags().BoolVarP(target, def.Name, def.Shorthand, defaultVal, def.Description)
	} else {
		cmd.Flags().BoolVar(target, def.Name, defaultVal, def.Description)
	}
}

// BindRegisteredFlags binds already-registered flags to viper using definitions
// from the given FlagSet. Call this in PreRunE after InitViper to connect flags
// to the viper precedence chain (flag > env > config file > default).
func BindRegisteredFlags(v *viper.Viper, cmd *cobra.Command, fs FlagSet, registryKeys []string) {
	for _, registryKey := range registryKeys {
		def, ok := fs[registryKey]
		if !ok {
			continue
		}

		f := cmd.Flags().Lookup(def.Name)
		if f == nil {
			continue
		}

		_ = v.BindPFlag(def.ViperKey, f)
	}
}

// defaultString returns the default string value for a viper key from NewDefaultConfig.
func defaultString(viperKey string) string {
	v := viper.New()
	setViperDefaults(v)
	return v.GetString(viperKey)
}

// defaultBool returns the default bool value for a viper key from NewDefaultConfig.
func defaultBool(viperKey string) bool {
	v := viper.New()
	setViperDefaults(v)
	return v.GetBool(viperKey)
}
