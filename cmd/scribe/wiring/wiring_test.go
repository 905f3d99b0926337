package wiring_test

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/spf13/cobra"

	"github.com/papercomputeco/scribe/cmd/scribe/wiring"
	"github.com/papercomputeco/scribe/pkg/chat"
	"github.com/papercomputeco/scribe/pkg/config"
	"github.com/papercomputeco/scribe/pkg/credentials"
	"github.com/papercomputeco/scribe/pkg/eventstream/async"
	"github.com/papercomputeco/scribe/pkg/eventstream/nop"
	"github.com/papercomputeco/scribe/pkg/llm"
	"github.com/papercomputeco/scribe/pkg/logger"
	"github.com/papercomputeco/scribe/pkg/media"
	"github.com/papercomputeco/scribe/pkg/provider"
	"github.com/papercomputeco/scribe/pkg/session/file"
	"github.com/papercomputeco/scribe/pkg/session/inmemory"
)

var flagKeys = []string{config.FlagProvider, config.FlagModel, config.FlagStorageDriver}

func newCmd(configDir string, args ...string) *cobra.Command {
	var providerName, model, driver string

	cmd := &cobra.Command{Use: "test", RunE: func(*cobra.Command, []string) error { return nil }}
	cmd.Flags().String("config-dir", "", "")
	cmd.Flags().Bool("debug", false, "")
	config.AddStringFlag(cmd, config.Flags, config.FlagProvider, &providerName)
	config.AddStringFlag(cmd, config.Flags, config.FlagModel, &model)
	config.AddStringFlag(cmd, config.Flags, config.FlagStorageDriver, &driver)

	Expect(cmd.ParseFlags(append([]string{"--config-dir", configDir}, args...))).To(Succeed())
	return cmd
}

var _ = Describe("wiring", func() {
	var (
		ctx context.Context
		dir string
	)

	BeforeEach(func() {
		ctx = context.Background()
		dir = GinkgoT().TempDir()
	})

	Describe("LoadConfig", func() {
		It("returns defaults when nothing is configured", func() {
			cfg, err := wiring.LoadConfig(newCmd(dir), flagKeys)
			Expect(err).NotTo(HaveOccurred())
			Expect(cfg.Provider.Name).To(Equal("ollama"))
			Expect(cfg.Storage.Driver).To(Equal("file"))
		})

		It("reads config.toml and lets flags win", func() {
			cfger, err := config.NewConfiger(dir)
			Expect(err).NotTo(HaveOccurred())
			Expect(cfger.SetConfigValue("provider.name", "deepseek")).To(Succeed())
			Expect(cfger.SetConfigValue("provider.model", "deepseek-chat")).To(Succeed())

			cfg, err := wiring.LoadConfig(newCmd(dir, "--model", "deepseek-coder"), flagKeys)
			Expect(err).NotTo(HaveOccurred())
			Expect(cfg.Provider.Name).To(Equal("deepseek"))
			Expect(cfg.Provider.Model).To(Equal("deepseek-coder"))
		})
	})

	Describe("OpenStore", func() {
		It("defaults the file store to the sessions dir", func() {
			cfg := config.NewDefaultConfig()
			store, err := wiring.OpenStore(ctx, cfg, dir, logger.Nop())
			Expect(err).NotTo(HaveOccurred())
			DeferCleanup(store.Close)

			fileStore, ok := store.(*file.Driver)
			Expect(ok).To(BeTrue())
			Expect(fileStore.Root()).To(Equal(filepath.Join(dir, "sessions")))
		})

		It("opens the memory store", func() {
			cfg := config.NewDefaultConfig()
			cfg.Storage.Driver = "memory"

			store, err := wiring.OpenStore(ctx, cfg, dir, logger.Nop())
			Expect(err).NotTo(HaveOccurred())
			Expect(store).To(BeAssignableToTypeOf(&inmemory.Driver{}))
		})

		It("rejects unknown drivers", func() {
			cfg := config.NewDefaultConfig()
			cfg.Storage.Driver = "tape"

			_, err := wiring.OpenStore(ctx, cfg, dir, logger.Nop())
			Expect(err).To(MatchError(ContainSubstring("unsupported storage driver")))
		})
	})

	Describe("NewPublisher", func() {
		It("uses the nop publisher by default", func() {
			pub, err := wiring.NewPublisher(config.NewDefaultConfig(), logger.Nop())
			Expect(err).NotTo(HaveOccurred())
			Expect(pub).To(BeAssignableToTypeOf(&nop.Publisher{}))
		})

		It("wraps kafka in the async pool", func() {
			cfg := config.NewDefaultConfig()
			cfg.Events.Driver = "kafka"
			cfg.Events.Brokers = "localhost:9092"

			pub, err := wiring.NewPublisher(cfg, logger.Nop())
			Expect(err).NotTo(HaveOccurred())
			Expect(pub).To(BeAssignableToTypeOf(&async.Pool{}))
			Expect(pub.Close()).To(Succeed())
		})

		It("requires kafka brokers", func() {
			cfg := config.NewDefaultConfig()
			cfg.Events.Driver = "kafka"

			_, err := wiring.NewPublisher(cfg, logger.Nop())
			Expect(err).To(HaveOccurred())
		})
	})

	Describe("NewResolver", func() {
		It("binds the configured provider with stored credentials", func() {
			mgr, err := credentials.NewManager(dir)
			Expect(err).NotTo(HaveOccurred())
			Expect(mgr.SetKey("deepseek", "sk-deep")).To(Succeed())

			cfg := config.NewDefaultConfig()
			cfg.Provider.Name = "deepseek"
			cfg.Provider.Scene = "code"

			resolver, err := wiring.NewResolver(cfg, dir)
			Expect(err).NotTo(HaveOccurred())

			target, err := resolver.Resolve(chat.Selection{})
			Expect(err).NotTo(HaveOccurred())
			Expect(target.Name).To(Equal("deepseek"))
			Expect(target.Provider.Name()).To(Equal(provider.OpenAI))
			Expect(target.Binding.APIKey).To(Equal("sk-deep"))

			code, _ := llm.Scene("code")
			Expect(*target.Binding.Params.Temperature).To(Equal(*code.Temperature))
		})

		It("rejects an unknown scene", func() {
			cfg := config.NewDefaultConfig()
			cfg.Provider.Scene = "limerick"

			_, err := wiring.NewResolver(cfg, dir)
			Expect(err).To(HaveOccurred())
		})
	})

	Describe("NewExtractor", func() {
		resolve := func(name string) chat.Target {
			mgr, err := credentials.NewManager(dir)
			Expect(err).NotTo(HaveOccurred())
			Expect(mgr.SetKey("moonshot", "sk-moon")).To(Succeed())

			resolver, err := wiring.NewResolver(config.NewDefaultConfig(), dir)
			Expect(err).NotTo(HaveOccurred())
			target, err := resolver.Resolve(chat.Selection{Provider: name})
			Expect(err).NotTo(HaveOccurred())
			return target
		}

		It("uses the target's key against its API base", func() {
			client, err := wiring.NewExtractor(resolve("moonshot"))
			Expect(err).NotTo(HaveOccurred())
			Expect(client).NotTo(BeNil())
		})

		It("asks for a credential when the target has none", func() {
			GinkgoT().Setenv("DEEPSEEK_API_KEY", "")

			_, err := wiring.NewExtractor(resolve("deepseek"))
			Expect(err).To(MatchError(ContainSubstring("scribe auth deepseek")))
		})

		It("rejects adapters without a files API", func() {
			_, err := wiring.NewExtractor(resolve("anthropic"))
			Expect(err).To(MatchError(ContainSubstring("cannot extract documents")))
		})
	})

	Describe("NewSlides", func() {
		BeforeEach(func() {
			GinkgoT().Setenv("XFYUN_APP_ID", "")
			GinkgoT().Setenv("XFYUN_API_SECRET", "")
		})

		It("needs both halves of the xfyun credential", func() {
			mgr, err := credentials.NewManager(dir)
			Expect(err).NotTo(HaveOccurred())
			Expect(mgr.SetKey("xfyun", "app-1")).To(Succeed())

			_, err = wiring.NewSlides(config.NewDefaultConfig(), dir, media.SlidesConfig{})
			Expect(err).To(MatchError(wiring.ErrNoSlidesKey))

			Expect(mgr.SetSecret("xfyun", "s3cret")).To(Succeed())
			slides, err := wiring.NewSlides(config.NewDefaultConfig(), dir, media.SlidesConfig{Mode: "topic"})
			Expect(err).NotTo(HaveOccurred())
			Expect(slides).NotTo(BeNil())
		})

		It("takes the app id and secret from the environment", func() {
			GinkgoT().Setenv("XFYUN_APP_ID", "app-env")
			GinkgoT().Setenv("XFYUN_API_SECRET", "secret-env")

			_, err := wiring.NewSlides(config.NewDefaultConfig(), dir, media.SlidesConfig{})
			Expect(err).NotTo(HaveOccurred())
		})
	})

	Describe("ServiceOptions", func() {
		It("adds only the logger by default", func() {
			opts, closeRaw, err := wiring.ServiceOptions(config.NewDefaultConfig(), logger.Nop())
			Expect(err).NotTo(HaveOccurred())
			Expect(opts).To(HaveLen(1))
			Expect(closeRaw).To(BeNil())
		})

		It("adds a rate limit and a raw stream log", func() {
			cfg := config.NewDefaultConfig()
			limit := 0.5
			cfg.Server.RateLimit = &limit
			cfg.Provider.RawLog = filepath.Join(GinkgoT().TempDir(), "raw.log")

			opts, closeRaw, err := wiring.ServiceOptions(cfg, logger.Nop())
			Expect(err).NotTo(HaveOccurred())
			Expect(opts).To(HaveLen(3))
			Expect(closeRaw).NotTo(BeNil())
			Expect(closeRaw()).To(Succeed())
			Expect(cfg.Provider.RawLog).To(BeAnExistingFile())
		})

		It("fails when the raw log cannot be opened", func() {
			cfg := config.NewDefaultConfig()
			cfg.Provider.RawLog = filepath.Join(GinkgoT().TempDir(), "missing", "raw.log")

			_, _, err := wiring.ServiceOptions(cfg, logger.Nop())
			Expect(err).To(MatchError(ContainSubstring("opening raw stream log")))
		})
	})

	Describe("TeeLogger", func() {
		It("writes JSON records to the log file as well", func() {
			var buf bytes.Buffer
			path := filepath.Join(GinkgoT().TempDir(), "scribe.log")

			l, closeLog, err := wiring.TeeLogger(logger.New(logger.WithWriter(&buf)), path, false)
			Expect(err).NotTo(HaveOccurred())
			l.Info("relaying", "session", "trip")
			l.Debug("quiet")
			Expect(closeLog()).To(Succeed())

			Expect(buf.String()).To(ContainSubstring("relaying"))

			data, err := os.ReadFile(path)
			Expect(err).NotTo(HaveOccurred())
			var record map[string]any
			Expect(json.Unmarshal(bytes.TrimSpace(data), &record)).To(Succeed())
			Expect(record).To(HaveKeyWithValue("msg", "relaying"))
			Expect(record).To(HaveKeyWithValue("session", "trip"))
		})

		It("fails when the file cannot be opened", func() {
			path := filepath.Join(GinkgoT().TempDir(), "missing", "scribe.log")
			_, _, err := wiring.TeeLogger(logger.Nop(), path, false)
			Expect(err).To(MatchError(ContainSubstring("opening log file")))
		})
	})

	Describe("Open", func() {
		It("assembles and closes a runtime", func() {
			cmd := newCmd(GinkgoT().TempDir(), "--storage", "memory")

			rt, err := wiring.Open(context.Background(), cmd, flagKeys)
			Expect(err).NotTo(HaveOccurred())
			Expect(rt.Store).To(BeAssignableToTypeOf(&inmemory.Driver{}))
			Expect(rt.Publisher).To(BeAssignableToTypeOf(&nop.Publisher{}))
			Expect(rt.Registry).NotTo(BeNil())
			Expect(rt.Service).NotTo(BeNil())
			Expect(rt.Config.Provider.Name).To(Equal("ollama"))
			Expect(rt.Close()).To(Succeed())
		})
	})

	Describe("ResolveSQLitePath", func() {
		It("prefers an explicit path", func() {
			path, err := wiring.ResolveSQLitePath("/tmp/custom.db", dir)
			Expect(err).NotTo(HaveOccurred())
			Expect(path).To(Equal("/tmp/custom.db"))
		})

		It("honors SCRIBE_DB", func() {
			orig, had := os.LookupEnv("SCRIBE_DB")
			Expect(os.Setenv("SCRIBE_DB", "/tmp/env.db")).To(Succeed())
			DeferCleanup(func() {
				if had {
					_ = os.Setenv("SCRIBE_DB", orig)
				} else {
					_ = os.Unsetenv("SCRIBE_DB")
				}
			})

			path, err := wiring.ResolveSQLitePath("", dir)
			Expect(err).NotTo(HaveOccurred())
			Expect(path).To(Equal("/tmp/env.db"))
		})

		It("falls back to the scribe directory", func() {
			path, err := wiring.ResolveSQLitePath("", dir)
			Expect(err).NotTo(HaveOccurred())
			Expect(path).To(Equal(filepath.Join(dir, "scribe.db")))
		})
	})
})
