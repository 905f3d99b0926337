// Package wiring assembles the scribe runtime (config, logger, session
// store, event stream and chat services) for the cobra commands.
package wiring

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"os"
	"slices"

	"github.com/spf13/cobra"
	"golang.org/x/time/rate"

	"github.com/papercomputeco/scribe/pkg/chat"
	"github.com/papercomputeco/scribe/pkg/config"
	"github.com/papercomputeco/scribe/pkg/credentials"
	"github.com/papercomputeco/scribe/pkg/dotdir"
	"github.com/papercomputeco/scribe/pkg/eventstream"
	"github.com/papercomputeco/scribe/pkg/eventstream/async"
	"github.com/papercomputeco/scribe/pkg/eventstream/kafka"
	"github.com/papercomputeco/scribe/pkg/eventstream/nop"
	"github.com/papercomputeco/scribe/pkg/logger"
	"github.com/papercomputeco/scribe/pkg/media"
	"github.com/papercomputeco/scribe/pkg/provider"
	"github.com/papercomputeco/scribe/pkg/session"
	sessionutils "github.com/papercomputeco/scribe/pkg/session/utils"
)

// Events drivers.
const (
	EventsNone  = "none"
	EventsKafka = "kafka"
)

// Credentials entries used by the media clients.
const (
	mediaCredential  = "openai"
	slidesCredential = "xfyun"
)

var (
	// ErrNoMediaKey is returned by NewMediaClient when no openai credential
	// is stored or set in the environment.
	ErrNoMediaKey = errors.New("no openai credential for transcription and images; run 'scribe auth openai'")

	// ErrNoSlidesKey is returned by NewSlides when the xfyun app id or
	// secret is missing.
	ErrNoSlidesKey = errors.New("no xfyun credential for slides; run 'scribe auth xfyun'")
)

// LoadConfig resolves the configuration for cmd: registered flags, then
// SCRIBE_* environment variables, then config.toml, then defaults.
func LoadConfig(cmd *cobra.Command, flagKeys []string) (*config.Config, error) {
	v, err := config.InitViper(ConfigDir(cmd))
	if err != nil {
		return nil, err
	}
	config.BindRegisteredFlags(v, cmd, config.Flags, flagKeys)
	return config.FromViper(v)
}

// ConfigDir returns the --config-dir override, empty when unset.
func ConfigDir(cmd *cobra.Command) string {
	dir, _ := cmd.Flags().GetString("config-dir")
	return dir
}

// NewLogger builds the terminal logger for cmd, honoring --debug.
func NewLogger(cmd *cobra.Command) *slog.Logger {
	debug, _ := cmd.Flags().GetBool("debug")
	return logger.New(
		logger.WithDebug(debug),
		logger.WithPretty(true),
		logger.WithWriter(os.Stderr),
	)
}

// TeeLogger returns a logger writing to base and, as JSON, to the file at
// path. The returned func closes the file.
func TeeLogger(base *slog.Logger, path string, debug bool) (*slog.Logger, func() error, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o600)
	if err != nil {
		return nil, nil, fmt.Errorf("opening log file: %w", err)
	}

	file := logger.New(
		logger.WithDebug(debug),
		logger.WithJSON(true),
		logger.WithWriter(f),
	)
	return logger.Multi(base, file), f.Close, nil
}

// OpenStore opens the configured session store.
func OpenStore(ctx context.Context, cfg *config.Config, configDir string, l *slog.Logger) (session.Store, error) {
	opts := &sessionutils.NewStoreOpts{
		Driver:      cfg.Storage.Driver,
		Dir:         cfg.Storage.Dir,
		SQLitePath:  cfg.Storage.SQLitePath,
		PostgresDSN: cfg.Storage.PostgresDSN,
		Logger:      l,
	}

	switch opts.Driver {
	case sessionutils.DriverFile, "":
		if opts.Dir == "" {
			dir, err := dotdir.NewManager().SessionsDir(configDir)
			if err != nil {
				return nil, err
			}
			opts.Dir = dir
		}
	case sessionutils.DriverSQLite:
		path, err := ResolveSQLitePath(opts.SQLitePath, configDir)
		if err != nil {
			return nil, err
		}
		opts.SQLitePath = path
	}

	store, err := sessionutils.NewStore(ctx, opts)
	if err != nil {
		return nil, fmt.Errorf("opening %s session store: %w", opts.Driver, err)
	}

	l.Debug("opened session store", "driver", opts.Driver, "dir", opts.Dir, "sqlite", opts.SQLitePath)
	return store, nil
}

// NewPublisher builds the configured session event publisher. Kafka
// publishing goes through a worker pool so chat streams never wait on it.
func NewPublisher(cfg *config.Config, l *slog.Logger) (eventstream.Publisher, error) {
	switch cfg.Events.Driver {
	case EventsNone, "":
		return nop.NewPublisher(), nil
	case EventsKafka:
		pub, err := kafka.NewPublisher(kafka.Config{
			Brokers: cfg.Events.BrokerList(),
			Topic:   cfg.Events.Topic,
		})
		if err != nil {
			return nil, err
		}

		pool, err := async.NewPool(&async.Config{Publisher: pub, Logger: l})
		if err != nil {
			_ = pub.Close()
			return nil, err
		}

		l.Info("publishing session events", "driver", EventsKafka, "topic", cfg.Events.Topic)
		return pool, nil
	default:
		return nil, fmt.Errorf("unsupported events driver: %s", cfg.Events.Driver)
	}
}

// NewResolver builds the provider resolver from the provider section and the
// stored credentials.
func NewResolver(cfg *config.Config, configDir string) (*chat.Resolver, error) {
	params, err := cfg.Provider.Params()
	if err != nil {
		return nil, err
	}

	creds, err := credentials.NewManager(configDir)
	if err != nil {
		return nil, fmt.Errorf("loading credentials: %w", err)
	}

	defaults := chat.Defaults{
		Provider:       cfg.Provider.Name,
		Model:          cfg.Provider.Model,
		Endpoint:       cfg.Provider.Endpoint,
		Scene:          cfg.Provider.Scene,
		Params:         params,
		StripCitations: cfg.Provider.StripCitations,
	}

	return chat.NewResolver(defaults, func(provider string) (string, string, error) {
		pc, err := creds.Resolve(provider)
		if err != nil {
			return "", "", err
		}
		return pc.APIKey, pc.Secret, nil
	}), nil
}

// NewMediaClient builds the transcription and image client from the media
// section, authenticated with the stored openai credential.
func NewMediaClient(cfg *config.Config, configDir string) (*media.Client, error) {
	creds, err := credentials.NewManager(configDir)
	if err != nil {
		return nil, fmt.Errorf("loading credentials: %w", err)
	}

	pc, err := creds.Resolve(mediaCredential)
	if err != nil {
		return nil, err
	}
	if pc.APIKey == "" {
		return nil, ErrNoMediaKey
	}

	return media.NewClient(media.Config{
		APIKey:             pc.APIKey,
		BaseURL:            cfg.Media.Endpoint,
		TranscriptionModel: cfg.Media.TranscriptionModel,
		ImageModel:         cfg.Media.ImageModel,
		ImageSize:          cfg.Media.ImageSize,
	}), nil
}

// NewExtractor builds the document extractor for a resolved target. Only
// OpenAI-compatible providers can extract, with the target's own key.
func NewExtractor(target chat.Target) (*media.Client, error) {
	if target.Provider == nil || target.Provider.Name() != provider.OpenAI {
		return nil, fmt.Errorf("%s cannot extract documents; pick an OpenAI-compatible provider such as moonshot", target.Name)
	}

	base, err := media.ChatBaseURL(target.Binding.Endpoint)
	if err != nil {
		return nil, err
	}
	if target.Binding.APIKey == "" {
		return nil, fmt.Errorf("no credential for %s; run 'scribe auth %s'", target.Name, target.Name)
	}

	return media.NewClient(media.Config{APIKey: target.Binding.APIKey, BaseURL: base}), nil
}

// Extractors adapts NewExtractor to the API server's dependency.
func Extractors(target chat.Target) (media.Extractor, error) {
	return NewExtractor(target)
}

// NewSlides builds the slide generation client from the media section and
// the stored xfyun credential. Fields already set in base win.
func NewSlides(cfg *config.Config, configDir string, base media.SlidesConfig) (*media.Slides, error) {
	creds, err := credentials.NewManager(configDir)
	if err != nil {
		return nil, fmt.Errorf("loading credentials: %w", err)
	}

	pc, err := creds.Resolve(slidesCredential)
	if err != nil {
		return nil, err
	}
	if pc.APIKey == "" || pc.Secret == "" {
		return nil, ErrNoSlidesKey
	}

	base.AppID = pc.APIKey
	base.Secret = pc.Secret
	base.BaseURL = cmp.Or(base.BaseURL, cfg.Media.SlidesEndpoint)
	base.Theme = cmp.Or(base.Theme, cfg.Media.SlidesTheme)
	return media.NewSlides(base)
}

// Runtime is everything a chatting command needs.
type Runtime struct {
	Config    *config.Config
	ConfigDir string
	Logger    *slog.Logger

	Store     session.Store
	Publisher eventstream.Publisher
	Registry  *chat.Registry
	Service   *chat.Service
	Resolver  *chat.Resolver

	closers []func() error
}

// Open resolves the configuration for cmd and opens the runtime. The caller
// must Close it.
func Open(ctx context.Context, cmd *cobra.Command, flagKeys []string) (*Runtime, error) {
	cfg, err := LoadConfig(cmd, flagKeys)
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}

	rt := &Runtime{
		Config:    cfg,
		ConfigDir: ConfigDir(cmd),
		Logger:    NewLogger(cmd),
	}

	if cfg.Server.LogFile != "" {
		debug, _ := cmd.Flags().GetBool("debug")
		l, closeLog, err := TeeLogger(rt.Logger, cfg.Server.LogFile, debug)
		if err != nil {
			return nil, err
		}
		rt.Logger = l
		rt.closers = append(rt.closers, closeLog)
	}

	rt.Resolver, err = NewResolver(cfg, rt.ConfigDir)
	if err != nil {
		_ = rt.Close()
		return nil, err
	}

	rt.Store, err = OpenStore(ctx, cfg, rt.ConfigDir, rt.Logger)
	if err != nil {
		_ = rt.Close()
		return nil, err
	}
	rt.closers = append(rt.closers, rt.Store.Close)

	rt.Publisher, err = NewPublisher(cfg, rt.Logger)
	if err != nil {
		_ = rt.Close()
		return nil, err
	}
	rt.closers = append(rt.closers, rt.Publisher.Close)

	opts, closeRaw, err := ServiceOptions(cfg, rt.Logger)
	if err != nil {
		_ = rt.Close()
		return nil, err
	}
	if closeRaw != nil {
		rt.closers = append(rt.closers, closeRaw)
	}

	rt.Registry = chat.NewRegistry(rt.Store, rt.Publisher)
	rt.Service = chat.NewService(append(opts, chat.WithPublisher(rt.Publisher))...)

	return rt, nil
}

// ServiceOptions translates the provider and server sections into chat
// service options. The returned close func is non-nil when a raw stream
// log was opened.
func ServiceOptions(cfg *config.Config, l *slog.Logger) ([]chat.Option, func() error, error) {
	opts := []chat.Option{chat.WithLogger(l)}

	if r := cfg.Server.RateLimit; r != nil && *r > 0 {
		burst := max(int(math.Ceil(*r)), 1)
		opts = append(opts, chat.WithRateLimit(rate.Limit(*r), burst))
	}

	if cfg.Provider.RawLog == "" {
		return opts, nil, nil
	}

	f, err := os.OpenFile(cfg.Provider.RawLog, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o600)
	if err != nil {
		return nil, nil, fmt.Errorf("opening raw stream log: %w", err)
	}
	l.Debug("capturing raw provider streams", "path", cfg.Provider.RawLog)

	return append(opts, chat.WithRawCapture(f)), f.Close, nil
}

// Close releases everything Open acquired, newest first.
func (r *Runtime) Close() error {
	var errs []error
	for _, c := range slices.Backward(r.closers) {
		errs = append(errs, c())
	}
	r.closers = nil
	return errors.Join(errs...)
}
